// Package exitcodes defines the exit codes used by eltwise-perf and perf-upload.
//
// * Success (0): the run or upload completed
// * UploadFailure (1): perf-upload could not publish the artifact, or was misused
// * RuntimeErr (2): configuration or setup errors that prevented a run
package exitcodes

const (
	Success       = 0
	UploadFailure = 1
	RuntimeErr    = 2
)
