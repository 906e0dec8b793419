// Package runner measures the kernel duration of each test in an external
// elementwise-operation suite.
//
// The main components are:
//   - Discoverer: Enumerates the suite's test names through the collection command
//   - Executor: Runs one measurement attempt and extracts the kernel duration sample
//   - Progress: Tracks per-test wall time and estimates the remaining time
//   - Runner: Drives selection, repeated measurement, incremental saves and the upload trigger
//
// Tests are measured strictly one at a time because they contend for the same
// accelerator device.
package runner
