package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/Aswintechie/ttnn-performance-dashboard/metrics"
	"github.com/Aswintechie/ttnn-performance-dashboard/types"
)

// Attempt outcomes, also used as metric labels.
const (
	AttemptOK        = "ok"
	AttemptNoMarker  = "no_marker"
	AttemptExitError = "exit_error"
	AttemptTimeout   = "timeout"
	AttemptFailed    = "error"
)

// AttemptError describes why an attempt produced no sample.
type AttemptError struct {
	Outcome string
	Err     error
	Stderr  string
}

func (e *AttemptError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %v\nstderr: %s", e.Outcome, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", e.Outcome, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// Executor runs one measurement attempt of a test.
type Executor interface {
	// Attempt returns the kernel duration sample in nanoseconds, or an
	// *AttemptError when the attempt yields no sample.
	Attempt(ctx context.Context, testName string) (float64, error)
}

// ExecutorConfig holds configuration for creating an executor.
type ExecutorConfig struct {
	Suite       types.SuiteConfig
	Measurement types.MeasurementConfig
	WorkDir     string
	Log         log.Logger
	CmdBuilder  CmdBuilder
}

type commandExecutor struct {
	suite      types.SuiteConfig
	command    []string
	timeout    time.Duration
	workDir    string
	log        log.Logger
	cmdBuilder CmdBuilder
}

var _ Executor = (*commandExecutor)(nil)

// NewExecutor creates an Executor that runs the configured measurement command.
func NewExecutor(cfg ExecutorConfig) (Executor, error) {
	if len(cfg.Measurement.Command) == 0 {
		return nil, fmt.Errorf("measurement command is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	timeout := cfg.Measurement.Timeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	e := &commandExecutor{
		suite:      cfg.Suite,
		command:    cfg.Measurement.Command,
		timeout:    timeout,
		workDir:    cfg.WorkDir,
		log:        cfg.Log,
		cmdBuilder: cfg.CmdBuilder,
	}
	if e.cmdBuilder == nil {
		e.cmdBuilder = e.commandContext
	}
	return e, nil
}

func (e *commandExecutor) Attempt(ctx context.Context, testName string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := e.suite.ExpandCommand(e.command, testName)
	cmd, cleanup := e.cmdBuilder(ctx, args[0], args[1:]...)
	defer cleanup()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.log.Debug("Running measurement attempt", "test", testName, "command", cmd.String())

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	var attemptErr *AttemptError
	switch {
	case runErr != nil && ctx.Err() == context.DeadlineExceeded:
		attemptErr = &AttemptError{Outcome: AttemptTimeout, Err: fmt.Errorf("timed out after %s", e.timeout)}
	case runErr != nil:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			attemptErr = &AttemptError{
				Outcome: AttemptExitError,
				Err:     fmt.Errorf("exit code %d", exitErr.ExitCode()),
				Stderr:  excerpt(stderr.String(), stderrExcerptBytes),
			}
		} else {
			attemptErr = &AttemptError{Outcome: AttemptFailed, Err: runErr}
		}
	}
	if attemptErr != nil {
		metrics.RecordAttempt(attemptErr.Outcome, elapsed)
		return 0, attemptErr
	}

	sample, ok := ParseKernelDuration(stdout.String())
	if !ok {
		metrics.RecordAttempt(AttemptNoMarker, elapsed)
		return 0, &AttemptError{Outcome: AttemptNoMarker, Err: errors.New("kernel duration not found in output")}
	}
	metrics.RecordAttempt(AttemptOK, elapsed)
	metrics.RecordSample(sample)
	return sample, nil
}

func (e *commandExecutor) commandContext(ctx context.Context, name string, arg ...string) (*exec.Cmd, func()) {
	cmd := exec.CommandContext(ctx, name, arg...)
	cmd.WaitDelay = waitDelay
	cmd.Dir = e.workDir
	return cmd, func() {}
}
