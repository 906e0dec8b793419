package runner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/Aswintechie/ttnn-performance-dashboard/types"
)

var (
	// <Function test_abs> as printed by older collectors.
	functionNodeRegex = regexp.MustCompile(`<Function (test_\w+)`)
	// test_eltwise_operations.py::TestEltwiseOperations::test_abs as printed with -q.
	nodeIDRegex = regexp.MustCompile(`::(test_\w+)`)
)

// CmdBuilder builds a command bound to ctx. The returned func releases any
// resources the builder allocated.
type CmdBuilder func(ctx context.Context, name string, arg ...string) (*exec.Cmd, func())

// Discoverer enumerates the test names of the suite.
type Discoverer interface {
	Discover(ctx context.Context) ([]string, error)
}

// DiscovererConfig holds configuration for creating a discoverer.
type DiscovererConfig struct {
	Suite      types.SuiteConfig
	WorkDir    string
	Log        log.Logger
	CmdBuilder CmdBuilder
}

type commandDiscoverer struct {
	suite      types.SuiteConfig
	workDir    string
	timeout    time.Duration
	log        log.Logger
	cmdBuilder CmdBuilder
}

var _ Discoverer = (*commandDiscoverer)(nil)

// NewDiscoverer creates a Discoverer that runs the suite's collection command.
func NewDiscoverer(cfg DiscovererConfig) (Discoverer, error) {
	if len(cfg.Suite.DiscoverCommand) == 0 {
		return nil, fmt.Errorf("discover command is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	timeout := cfg.Suite.DiscoverTimeout
	if timeout <= 0 {
		timeout = DefaultDiscoverTimeout
	}
	d := &commandDiscoverer{
		suite:      cfg.Suite,
		workDir:    cfg.WorkDir,
		timeout:    timeout,
		log:        cfg.Log,
		cmdBuilder: cfg.CmdBuilder,
	}
	if d.cmdBuilder == nil {
		d.cmdBuilder = d.commandContext
	}
	return d, nil
}

// Discover runs the collection command and returns the non-excluded test
// names in collection order. Errors are returned alongside an empty list so
// callers can treat discovery failure as "nothing to run".
func (d *commandDiscoverer) Discover(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	args := d.suite.ExpandCommand(d.suite.DiscoverCommand, "")
	cmd, cleanup := d.cmdBuilder(ctx, args[0], args[1:]...)
	defer cleanup()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	d.log.Debug("Discovering tests", "command", cmd.String(), "dir", cmd.Dir)

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return []string{}, fmt.Errorf("test discovery timed out after %s", d.timeout)
		}
		return []string{}, fmt.Errorf("test discovery failed: %w\nstderr: %s", err, excerpt(stderr.String(), stderrExcerptBytes))
	}

	all := ParseCollectedTests(stdout.String())
	names := FilterExcluded(all, d.suite.Exclude)
	d.log.Info("Discovered tests", "total", len(all), "selected", len(names), "excluded", len(all)-len(names))
	return names, nil
}

func (d *commandDiscoverer) commandContext(ctx context.Context, name string, arg ...string) (*exec.Cmd, func()) {
	cmd := exec.CommandContext(ctx, name, arg...)
	cmd.WaitDelay = waitDelay
	cmd.Dir = d.workDir
	return cmd, func() {}
}

// ParseCollectedTests extracts test names from collector output, de-duplicated
// and in first-seen order. Parametrized ids ("test_x[float]") collapse to the
// function name.
func ParseCollectedTests(output string) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var match []string
		if m := functionNodeRegex.FindStringSubmatch(line); m != nil {
			match = m
		} else if m := nodeIDRegex.FindStringSubmatch(line); m != nil {
			match = m
		}
		if match == nil {
			continue
		}
		if _, ok := seen[match[1]]; ok {
			continue
		}
		seen[match[1]] = struct{}{}
		names = append(names, match[1])
	}
	return names
}

// FilterExcluded drops every name present in exclude, preserving order.
func FilterExcluded(names, exclude []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if slices.Contains(exclude, name) {
			continue
		}
		out = append(out, name)
	}
	return out
}
