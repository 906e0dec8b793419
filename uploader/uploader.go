// Package uploader selects how result artifacts reach the dashboard: through
// the publisher in-process, or by running the standalone upload binary.
package uploader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/Aswintechie/ttnn-performance-dashboard/publisher"
)

// Upload modes.
const (
	ModeAuto       = "auto"
	ModeInProcess  = "inprocess"
	ModeSubprocess = "subprocess"
)

// Modes lists the accepted upload modes.
var Modes = []string{ModeAuto, ModeInProcess, ModeSubprocess}

const (
	// DefaultBinary is the standalone publisher looked up when no binary is configured.
	DefaultBinary = "perf-upload"

	// DefaultTimeout bounds a subprocess upload and each in-process git
	// network operation.
	DefaultTimeout = publisher.DefaultTimeout

	// waitDelay bounds how long output pipes are drained after the process is killed.
	waitDelay = 5 * time.Second
)

// Uploader pushes one artifact to the dashboard.
type Uploader interface {
	Upload(ctx context.Context, artifactPath string) error
	Name() string
}

// InProcessUploader publishes through a publisher.Publisher in this process.
type InProcessUploader struct {
	publisher *publisher.Publisher
}

var _ Uploader = (*InProcessUploader)(nil)

func NewInProcessUploader(p *publisher.Publisher) *InProcessUploader {
	return &InProcessUploader{publisher: p}
}

func (u *InProcessUploader) Upload(ctx context.Context, artifactPath string) error {
	return u.publisher.Upload(ctx, artifactPath)
}

func (u *InProcessUploader) Name() string {
	return ModeInProcess
}

// ProcessUploader runs the standalone publisher binary.
type ProcessUploader struct {
	binary  string
	args    []string
	timeout time.Duration
	log     log.Logger
}

var _ Uploader = (*ProcessUploader)(nil)

// NewProcessUploader runs binary with extraArgs followed by the artifact path.
func NewProcessUploader(binary string, extraArgs []string, timeout time.Duration, logger log.Logger) *ProcessUploader {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.New()
		logger.Error("No logger provided, using default")
	}
	return &ProcessUploader{binary: binary, args: extraArgs, timeout: timeout, log: logger}
}

func (u *ProcessUploader) Upload(ctx context.Context, artifactPath string) error {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	args := append(append([]string{}, u.args...), artifactPath)
	cmd := exec.CommandContext(ctx, u.binary, args...)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	u.log.Info("Running upload binary", "command", cmd.String())
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("upload timed out after %s", u.timeout)
		}
		return fmt.Errorf("upload binary failed: %w\nstderr: %s", err, stderr.String())
	}
	if stdout.Len() > 0 {
		u.log.Debug("Upload binary output", "stdout", stdout.String())
	}
	return nil
}

func (u *ProcessUploader) Name() string {
	return ModeSubprocess
}

// ErrNoRepository is returned when no dashboard repository is configured.
var ErrNoRepository = errors.New("dashboard repository URL is required")

// Config holds the upload settings resolved from flags.
type Config struct {
	Mode    string
	Binary  string
	RepoURL string
	Branch  string
	Timeout time.Duration
	Log     log.Logger
}

// Select picks the uploader once at startup. Auto mode prefers the
// in-process publisher and falls back to the upload binary when the
// publisher can't be built. An empty repository URL is an error in every
// mode, since the upload binary would push to its default repository.
func Select(cfg Config) (Uploader, error) {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	switch cfg.Mode {
	case ModeAuto, "":
		if cfg.RepoURL == "" {
			return nil, ErrNoRepository
		}
		u, err := newInProcess(cfg)
		if err == nil {
			return u, nil
		}
		cfg.Log.Warn("In-process publisher unavailable, falling back to upload binary", "error", err)
		return newProcess(cfg)
	case ModeInProcess:
		return newInProcess(cfg)
	case ModeSubprocess:
		if cfg.RepoURL == "" {
			return nil, ErrNoRepository
		}
		return newProcess(cfg)
	default:
		return nil, fmt.Errorf("unknown upload mode %q, must be one of %v", cfg.Mode, Modes)
	}
}

func newInProcess(cfg Config) (Uploader, error) {
	p, err := publisher.New(publisher.Config{
		RepoURL: cfg.RepoURL,
		Branch:  cfg.Branch,
		Timeout: cfg.Timeout,
		Log:     cfg.Log,
	})
	if err != nil {
		return nil, err
	}
	cfg.Log.Info("Using in-process publisher", "repo", cfg.RepoURL)
	return NewInProcessUploader(p), nil
}

func newProcess(cfg Config) (Uploader, error) {
	binary, err := ResolveBinary(cfg.Binary)
	if err != nil {
		return nil, err
	}
	var args []string
	if cfg.RepoURL != "" {
		args = append(args, "--dashboard.repo", cfg.RepoURL)
	}
	if cfg.Branch != "" {
		args = append(args, "--dashboard.branch", cfg.Branch)
	}
	cfg.Log.Info("Using upload binary", "binary", binary)
	return NewProcessUploader(binary, args, cfg.Timeout, cfg.Log), nil
}

// ResolveBinary returns the upload binary to run: the configured path, or
// DefaultBinary next to the running executable, or DefaultBinary on PATH.
func ResolveBinary(configured string) (string, error) {
	if configured != "" {
		path, err := exec.LookPath(configured)
		if err != nil {
			return "", fmt.Errorf("upload binary %s not found: %w", configured, err)
		}
		return path, nil
	}
	if self, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(self), DefaultBinary)
		if info, err := os.Stat(sibling); err == nil && !info.IsDir() {
			return sibling, nil
		}
	}
	path, err := exec.LookPath(DefaultBinary)
	if err != nil {
		return "", errors.Join(fmt.Errorf("upload binary %s not found", DefaultBinary), err)
	}
	return path, nil
}
