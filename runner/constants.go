package runner

import "time"

const (
	// KernelDurationMarker prefixes the total kernel duration line printed by the measurement tool.
	KernelDurationMarker = "DEVICE KERNEL DURATION [ns] total:"

	// stderrExcerptBytes bounds how much stderr is kept in attempt failure logs.
	stderrExcerptBytes = 200

	// DefaultAttemptTimeout applies when an executor is built without a timeout.
	DefaultAttemptTimeout = 300 * time.Second

	// DefaultDiscoverTimeout applies when a discoverer is built without a timeout.
	DefaultDiscoverTimeout = 60 * time.Second

	// waitDelay bounds how long output pipes are drained after a command is killed.
	waitDelay = 5 * time.Second

	// CalculatingETA is reported before any test has completed.
	CalculatingETA = "calculating..."
)
