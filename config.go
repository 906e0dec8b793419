package perf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/Aswintechie/ttnn-performance-dashboard/flags"
	"github.com/Aswintechie/ttnn-performance-dashboard/types"
	"github.com/Aswintechie/ttnn-performance-dashboard/uploader"
)

// Config holds the application configuration
type Config struct {
	Perf        types.PerfConfig
	ConfigFile  string // optional YAML overlay, absolute
	OutputDir   string // absolute
	WorkDir     string // absolute
	Rerun       bool
	Upload      bool
	Uploader    uploader.Config
	DatabaseURI string
	Metrics     opmetrics.CLIConfig
	HealthzPort int
	Log         log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	outputDir, err := filepath.Abs(ctx.String(flags.OutputDir.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for output dir '%s': %w", ctx.String(flags.OutputDir.Name), err)
	}
	workDir, err := filepath.Abs(ctx.String(flags.WorkDir.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for work dir '%s': %w", ctx.String(flags.WorkDir.Name), err)
	}
	if info, err := os.Stat(workDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("work dir '%s' is not a directory", workDir)
	}

	var configFile string
	if f := ctx.String(flags.ConfigFile.Name); f != "" {
		configFile, err = filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for config '%s': %w", f, err)
		}
	}
	perfCfg, err := LoadPerfConfig(configFile)
	if err != nil {
		return nil, err
	}

	mode := ctx.String(flags.UploadMode.Name)
	if !slices.Contains(uploader.Modes, mode) {
		return nil, fmt.Errorf("invalid upload mode %q, must be one of %v", mode, uploader.Modes)
	}

	metricsCfg := opmetrics.ReadCLIConfig(ctx)
	if err := metricsCfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid metrics config: %w", err)
	}

	return &Config{
		Perf:       perfCfg,
		ConfigFile: configFile,
		OutputDir:  outputDir,
		WorkDir:    workDir,
		Rerun:      ctx.Bool(flags.Rerun.Name),
		Upload:     ctx.Bool(flags.Upload.Name),
		Uploader: uploader.Config{
			Mode:    mode,
			Binary:  ctx.String(flags.UploadBinary.Name),
			RepoURL: ctx.String(flags.DashboardRepo.Name),
			Branch:  ctx.String(flags.DashboardBranch.Name),
			Timeout: uploader.DefaultTimeout,
			Log:     log,
		},
		DatabaseURI: ctx.String(flags.DatabaseURI.Name),
		Metrics:     metricsCfg,
		HealthzPort: ctx.Int(flags.HealthzPort.Name),
		Log:         log,
	}, nil
}

// LoadPerfConfig overlays the YAML file at path onto the built-in defaults.
// An empty path yields the defaults.
func LoadPerfConfig(path string) (types.PerfConfig, error) {
	cfg := types.DefaultPerfConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}
