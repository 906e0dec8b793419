package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Aswintechie/ttnn-performance-dashboard/artifact"
	"github.com/Aswintechie/ttnn-performance-dashboard/metrics"
	"github.com/Aswintechie/ttnn-performance-dashboard/types"
	"github.com/Aswintechie/ttnn-performance-dashboard/uploader"
)

// ResultSink receives the final result set of a run, e.g. a results database.
type ResultSink interface {
	Record(ctx context.Context, runID string, rs *types.ResultSet) error
}

// Summary describes the outcome of one invocation.
type Summary struct {
	RunID     string
	Results   *types.ResultSet
	Final     artifact.Paths
	Executed  []string
	Elapsed   time.Duration
	PerTest   time.Duration
	Rerun     bool
	Resumed   string // artifact the run resumed from, if any
	Uploaded  bool
	UploadErr error
	Stopped   bool // interrupted before all selected tests ran
}

// Saved reports whether a final artifact was written.
func (s *Summary) Saved() bool {
	return s.Final.JSON != ""
}

// Config holds configuration for creating a new runner
type Config struct {
	Perf       types.PerfConfig
	OutputDir  string
	Rerun      bool
	Revision   string
	Discoverer Discoverer
	Executor   Executor
	Uploader   uploader.Uploader // nil disables uploads
	Sink       ResultSink        // optional
	Log        log.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Runner measures every selected test in sequence.
type Runner struct {
	perf       types.PerfConfig
	outputDir  string
	rerun      bool
	revision   string
	discoverer Discoverer
	executor   Executor
	uploader   uploader.Uploader
	sink       ResultSink
	log        log.Logger
	tracer     trace.Tracer
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a new runner instance
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Discoverer == nil {
		return nil, fmt.Errorf("discoverer is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if err := cfg.Perf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	if cfg.sleep == nil {
		cfg.sleep = sleepContext
	}

	cfg.Log.Debug("NewRunner()", "outputDir", cfg.OutputDir, "rerun", cfg.Rerun,
		"revision", cfg.Revision, "upload", cfg.Uploader != nil)

	return &Runner{
		perf:       cfg.Perf,
		outputDir:  cfg.OutputDir,
		rerun:      cfg.Rerun,
		revision:   cfg.Revision,
		discoverer: cfg.Discoverer,
		executor:   cfg.Executor,
		uploader:   cfg.Uploader,
		sink:       cfg.Sink,
		log:        cfg.Log,
		tracer:     otel.Tracer("eltwise runner"),
		now:        cfg.now,
		sleep:      cfg.sleep,
	}, nil
}

// Run discovers, selects and measures tests, saving partial artifacts along
// the way and a final artifact at the end. Only setup failures are returned;
// per-test, persistence and upload failures are logged and reflected in the
// summary.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	startedAt := r.now()
	runID := uuid.New().String()
	ctx, span := r.tracer.Start(ctx, "run", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.Bool("rerun", r.rerun),
	))
	defer span.End()

	store, err := artifact.NewStore(artifact.Config{Dir: r.outputDir, StartedAt: startedAt, Log: r.log})
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		RunID:   runID,
		Rerun:   r.rerun,
		Results: types.NewResultSet(types.NewTimestamp(startedAt), r.rerun, r.revision),
	}
	rs := summary.Results
	if r.rerun {
		summary.Resumed = r.resume(rs, startedAt)
	}

	names, err := r.discoverer.Discover(ctx)
	if err != nil {
		r.log.Error("Test discovery failed", "error", err)
		metrics.RecordErrorDetails("discovery", err)
	}
	selected := r.selectTests(names, rs)

	r.log.Info("Starting performance measurement", "run_id", runID, "tests", len(selected),
		"start", startedAt.Format(time.DateTime), "revision", rs.Metadata.RevisionID)

	if len(selected) == 0 {
		switch {
		case r.rerun && len(rs.Results) > 0:
			r.log.Info("All tests already completed successfully today, finalizing loaded results")
			r.finalize(ctx, store, summary)
		case r.rerun:
			r.log.Info("Nothing left to run")
		default:
			r.log.Error("No tests found")
		}
		summary.Elapsed = r.now().Sub(startedAt)
		return summary, nil
	}

	progress := newProgressWithClock(len(selected), r.now)
	metrics.SetProgress(0, len(selected))
	for i, name := range selected {
		if ctx.Err() != nil {
			r.log.Warn("Run interrupted, keeping completed measurements", "completed", i, "total", len(selected))
			summary.Stopped = true
			break
		}

		logCtx := []any{
			"progress", fmt.Sprintf("%d/%d", i+1, progress.Total()),
			"percent", fmt.Sprintf("%.1f%%", float64(i+1)/float64(progress.Total())*100),
			"eta", progress.ETA(),
		}
		if progress.Completed() > 0 {
			logCtx = append(logCtx, "avg", FormatDuration(progress.AveragePerTest())+"/test")
		}
		r.log.Info("Measuring "+name, logCtx...)

		testStart := r.now()
		if !r.measure(ctx, rs, name) {
			r.log.Warn("Run interrupted during test, not recording it", "test", name, "completed", i, "total", len(selected))
			summary.Stopped = true
			break
		}
		took := r.now().Sub(testStart)
		progress.Record(took)
		summary.Executed = append(summary.Executed, name)
		metrics.SetProgress(progress.Completed(), len(selected))

		if (i+1)%r.perf.Measurement.SaveEvery == 0 {
			_, err := store.Save(rs, false)
			metrics.RecordSave(artifact.KindPartial, err)
			if err != nil {
				r.log.Error("Intermediate save failed", "error", err)
			} else {
				r.log.Info("Intermediate save completed", "test", i+1)
			}
		}
	}

	summary.Elapsed = r.now().Sub(startedAt)
	summary.PerTest = progress.AveragePerTest()
	if summary.Stopped {
		ctx = context.WithoutCancel(ctx)
	}
	r.finalize(ctx, store, summary)
	return summary, nil
}

// resume loads the newest artifact started today into rs and returns its path.
func (r *Runner) resume(rs *types.ResultSet, startedAt time.Time) string {
	path, err := artifact.LatestForDay(r.outputDir, startedAt)
	if errors.Is(err, artifact.ErrNoArtifact) {
		r.log.Info("No existing results found for today, nothing to resume", "date", startedAt.Format(time.DateOnly))
		return ""
	}
	if err != nil {
		r.log.Warn("Error looking up existing results", "error", err)
		return ""
	}

	loaded, err := artifact.Load(path)
	if err != nil {
		r.log.Warn("Error loading existing results", "path", path, "error", err)
		return ""
	}
	for _, result := range loaded.Results {
		rs.Upsert(result)
	}
	for _, name := range loaded.Metadata.FailedTestNames {
		if _, ok := rs.Result(name); !ok {
			rs.MarkFailed(name)
		}
	}
	rs.Recount()

	r.log.Info("Loaded existing results", "path", path,
		"successful", len(rs.Results), "failed", len(rs.Metadata.FailedTestNames))
	return path
}

// selectTests returns every discovered name in standard mode, and the names
// without a successful result in rerun mode.
func (r *Runner) selectTests(discovered []string, rs *types.ResultSet) []string {
	if !r.rerun {
		r.log.Info("Standard mode: running all tests", "count", len(discovered))
		return discovered
	}
	done := rs.SuccessfulNames()
	selected := make([]string, 0, len(discovered))
	for _, name := range discovered {
		if _, ok := done[name]; ok {
			continue
		}
		selected = append(selected, name)
	}
	r.log.Info("Rerun mode: running remaining tests", "count", len(selected), "skipped", len(discovered)-len(selected))
	return selected
}

// measure runs every attempt of one test and records the outcome in rs. It
// returns false, recording nothing, when the run was interrupted before any
// attempt produced a sample.
func (r *Runner) measure(ctx context.Context, rs *types.ResultSet, name string) bool {
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("test %s", name))
	defer span.End()

	attempts := r.perf.Measurement.Attempts
	samples := make([]float64, 0, attempts)
	for attempt := 1; attempt <= attempts; attempt++ {
		sample, err := r.executor.Attempt(ctx, name)
		if err != nil {
			r.log.Warn("Attempt produced no sample", "test", name, "attempt", attempt, "error", err)
		} else {
			r.log.Info("Attempt succeeded", "test", name, "attempt", attempt, "duration_ns", sample)
			samples = append(samples, sample)
		}
		if err := r.sleep(ctx, r.perf.Measurement.Pause); err != nil {
			break
		}
	}

	if len(samples) == 0 {
		if ctx.Err() != nil {
			span.SetAttributes(attribute.Bool("interrupted", true))
			return false
		}
		r.log.Error("All attempts failed", "test", name)
		rs.MarkFailed(name)
		metrics.RecordTest(metrics.TestFailed)
		span.SetAttributes(attribute.Bool("failed", true))
		return true
	}

	result, err := Summarize(name, samples, types.Now())
	if err != nil {
		r.log.Error("Failed to summarize samples", "test", name, "error", err)
		rs.MarkFailed(name)
		metrics.RecordTest(metrics.TestFailed)
		return true
	}
	wasFailed := rs.IsFailed(name)
	if rs.Upsert(result) {
		r.log.Info("Updated existing result", "test", name)
	}
	if wasFailed {
		r.log.Info("Previously failed test now passed", "test", name)
	}
	r.log.Info("Test measured", "test", name,
		"avg_ns", fmt.Sprintf("%.2f", result.AverageNs),
		"stdev_ns", fmt.Sprintf("%.2f", result.StdDeviationNs),
		"runs", result.SuccessfulRuns)
	metrics.RecordTest(metrics.TestSucceeded)
	span.SetAttributes(attribute.Float64("avg_ns", result.AverageNs))
	return true
}

// finalize writes the final artifact, removes this run's partial artifacts,
// and hands the result set to the sink and uploader.
func (r *Runner) finalize(ctx context.Context, store *artifact.Store, summary *Summary) {
	paths, err := store.Save(summary.Results, true)
	metrics.RecordSave(artifact.KindFinal, err)
	if err != nil {
		r.log.Error("Final save failed", "error", err)
		return
	}
	summary.Final = paths
	store.CleanupPartials()

	if r.sink != nil {
		if err := r.sink.Record(ctx, summary.RunID, summary.Results); err != nil {
			r.log.Error("Failed to record results", "error", err)
			metrics.RecordErrorDetails("sink", err)
		}
	}

	if r.uploader == nil || summary.Stopped {
		return
	}
	ctx, span := r.tracer.Start(ctx, "upload", trace.WithAttributes(attribute.String("uploader", r.uploader.Name())))
	defer span.End()

	r.log.Info("Uploading results", "uploader", r.uploader.Name(), "path", paths.JSON)
	err = r.uploader.Upload(ctx, paths.JSON)
	metrics.RecordUpload(r.uploader.Name(), err)
	if err != nil {
		summary.UploadErr = err
		r.log.Error("Automatic upload failed, results are saved locally", "error", err, "path", paths.JSON)
		return
	}
	summary.Uploaded = true
	r.log.Info("Automatic upload completed successfully")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
