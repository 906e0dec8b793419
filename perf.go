package perf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"

	"github.com/Aswintechie/ttnn-performance-dashboard/resultsdb"
	"github.com/Aswintechie/ttnn-performance-dashboard/revision"
	"github.com/Aswintechie/ttnn-performance-dashboard/runner"
	"github.com/Aswintechie/ttnn-performance-dashboard/service"
	"github.com/Aswintechie/ttnn-performance-dashboard/uploader"
)

// perf implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &perf{}

// perf runs one measurement session and then asks the app to shut down.
type perf struct {
	config  *Config
	version string
	runner  *runner.Runner
	sink    *resultsdb.Sink
	svc     *service.Service
	summary *runner.Summary
	out     io.Writer
	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New wires the discoverer, executor, uploader and result sink into a runner.
func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*perf, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if shutdownCallback == nil {
		shutdownCallback = func(error) {}
	}
	log := config.Log

	rev := revision.Current(config.WorkDir)
	log.Debug("Creating perf runner with config",
		"outputDir", config.OutputDir,
		"workDir", config.WorkDir,
		"configFile", config.ConfigFile,
		"rerun", config.Rerun,
		"upload", config.Upload,
		"revision", rev)

	discoverer, err := runner.NewDiscoverer(runner.DiscovererConfig{
		Suite:   config.Perf.Suite,
		WorkDir: config.WorkDir,
		Log:     log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create discoverer: %w", err)
	}
	executor, err := runner.NewExecutor(runner.ExecutorConfig{
		Suite:       config.Perf.Suite,
		Measurement: config.Perf.Measurement,
		WorkDir:     config.WorkDir,
		Log:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create executor: %w", err)
	}

	var up uploader.Uploader
	if config.Upload {
		up, err = uploader.Select(config.Uploader)
		if err != nil {
			// The final artifact can still be published later with perf-upload.
			log.Error("No uploader available, results will only be saved locally", "error", err)
			up = nil
		}
	}

	var sink *resultsdb.Sink
	var resultSink runner.ResultSink
	if config.DatabaseURI != "" {
		sink = openSink(ctx, config)
		if sink != nil {
			resultSink = sink
		}
	}

	r, err := runner.NewRunner(runner.Config{
		Perf:       config.Perf,
		OutputDir:  config.OutputDir,
		Rerun:      config.Rerun,
		Revision:   rev,
		Discoverer: discoverer,
		Executor:   executor,
		Uploader:   up,
		Sink:       resultSink,
		Log:        log,
	})
	if err != nil {
		if sink != nil {
			_ = sink.Close()
		}
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}

	p := &perf{
		config:           config,
		version:          version,
		runner:           r,
		sink:             sink,
		out:              os.Stdout,
		shutdownCallback: shutdownCallback,
	}
	if config.Metrics.Enabled {
		p.svc = service.New(service.Config{
			Host:        config.Metrics.ListenAddr,
			HealthzPort: config.HealthzPort,
			MetricsPort: config.Metrics.ListenPort,
			Log:         log,
		})
	}
	return p, nil
}

// openSink connects to the results database. Failures disable the sink.
func openSink(ctx context.Context, config *Config) *resultsdb.Sink {
	db, err := resultsdb.New(ctx, config.DatabaseURI, config.Log)
	if err != nil {
		config.Log.Error("Results database unavailable, continuing without it", "error", err)
		return nil
	}
	if err := db.Migrate(ctx); err != nil {
		config.Log.Error("Results database unavailable, continuing without it", "error", err)
		_ = db.Close()
		return nil
	}
	sink, err := resultsdb.NewSink(db, config.Log)
	if err != nil {
		_ = db.Close()
		config.Log.Error("Failed to create results sink", "error", err)
		return nil
	}
	return sink
}

// Start runs the measurement session to completion, prints the summary and
// signals shutdown. Interrupts stop the session between tests.
// Start implements the cliapp.Lifecycle interface.
func (p *perf) Start(ctx context.Context) error {
	p.running.Store(true)
	if p.svc != nil {
		p.svc.Start(ctx)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p.config.Log.Info("Starting eltwise-perf", "version", p.version, "rerun", p.config.Rerun, "upload", p.config.Upload)
	summary, err := p.runner.Run(runCtx)
	if err != nil {
		p.config.Log.Error("Runtime error running measurements", "error", err)
		return NewRuntimeError(err)
	}
	p.summary = summary

	printSummary(p.out, summary)
	p.config.Log.Info("Measurement run completed", "run_id", summary.RunID,
		"successful", summary.Results.Metadata.SuccessfulTests,
		"failed", summary.Results.Metadata.FailedTests)

	go func() {
		p.shutdownCallback(nil)
	}()
	return nil
}

// Stop releases the metrics service and database connection.
// Stop implements the cliapp.Lifecycle interface.
func (p *perf) Stop(ctx context.Context) error {
	p.config.Log.Info("Stopping eltwise-perf")
	if !p.running.Swap(false) {
		p.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}

	if p.svc != nil {
		p.svc.Shutdown()
	}
	if p.sink != nil {
		if err := p.sink.Close(); err != nil {
			p.config.Log.Warn("Failed to close results database", "error", err)
		}
	}
	p.config.Log.Info("eltwise-perf stopped successfully")
	return nil
}

// Stopped returns true once Stop has run.
// Stopped implements the cliapp.Lifecycle interface.
func (p *perf) Stopped() bool {
	return !p.running.Load()
}
