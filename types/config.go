package types

import (
	"fmt"
	"strings"
	"time"
)

// Placeholders substituted into configured command lines.
const (
	PlaceholderFile     = "{file}"
	PlaceholderClass    = "{class}"
	PlaceholderTest     = "{test}"
	PlaceholderSelector = "{selector}"
)

// SuiteConfig describes the external test suite and how to enumerate it.
type SuiteConfig struct {
	File            string        `yaml:"file"`
	Class           string        `yaml:"class"`
	DiscoverCommand []string      `yaml:"discover_command"`
	DiscoverTimeout time.Duration `yaml:"discover_timeout"`
	Exclude         []string      `yaml:"exclude"`
}

// MeasurementConfig describes how each test is measured.
type MeasurementConfig struct {
	Command   []string      `yaml:"command"`
	Attempts  int           `yaml:"attempts"`
	Timeout   time.Duration `yaml:"timeout"`
	Pause     time.Duration `yaml:"pause"`
	SaveEvery int           `yaml:"save_every"`
}

// PerfConfig is the on-disk configuration file.
type PerfConfig struct {
	Suite       SuiteConfig       `yaml:"suite"`
	Measurement MeasurementConfig `yaml:"measurement"`
}

// DefaultPerfConfig returns the settings used when no configuration file is given.
func DefaultPerfConfig() PerfConfig {
	return PerfConfig{
		Suite: SuiteConfig{
			File:            "test_eltwise_operations.py",
			Class:           "TestEltwiseOperations",
			DiscoverCommand: []string{"python", "-m", "pytest", PlaceholderFile, "--collect-only", "-q"},
			DiscoverTimeout: 60 * time.Second,
			// Known-broken tests.
			Exclude: []string{"test_complex_tensor", "test_real", "test_imag", "test_frac_bw"},
		},
		Measurement: MeasurementConfig{
			Command:   []string{"ttperf", PlaceholderSelector},
			Attempts:  3,
			Timeout:   300 * time.Second,
			Pause:     time.Second,
			SaveEvery: 10,
		},
	}
}

// Validate checks the configuration for values the runner can't work with.
func (c PerfConfig) Validate() error {
	if len(c.Suite.DiscoverCommand) == 0 {
		return fmt.Errorf("suite.discover_command must not be empty")
	}
	if len(c.Measurement.Command) == 0 {
		return fmt.Errorf("measurement.command must not be empty")
	}
	if c.Measurement.Attempts < 1 {
		return fmt.Errorf("measurement.attempts must be at least 1, got %d", c.Measurement.Attempts)
	}
	if c.Measurement.Timeout <= 0 {
		return fmt.Errorf("measurement.timeout must be positive")
	}
	if c.Suite.DiscoverTimeout <= 0 {
		return fmt.Errorf("suite.discover_timeout must be positive")
	}
	if c.Measurement.Pause < 0 {
		return fmt.Errorf("measurement.pause must not be negative")
	}
	if c.Measurement.SaveEvery < 1 {
		return fmt.Errorf("measurement.save_every must be at least 1, got %d", c.Measurement.SaveEvery)
	}
	return nil
}

// Selector returns the suite-qualified selector for one test, e.g.
// "test_eltwise_operations.py::TestEltwiseOperations::test_abs".
func (c SuiteConfig) Selector(testName string) string {
	parts := []string{c.File}
	if c.Class != "" {
		parts = append(parts, c.Class)
	}
	return strings.Join(append(parts, testName), "::")
}

// ExpandCommand substitutes the suite placeholders into args.
func (c SuiteConfig) ExpandCommand(args []string, testName string) []string {
	replacer := strings.NewReplacer(
		PlaceholderFile, c.File,
		PlaceholderClass, c.Class,
		PlaceholderTest, testName,
		PlaceholderSelector, c.Selector(testName),
	)
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = replacer.Replace(arg)
	}
	return out
}
