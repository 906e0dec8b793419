package resultsdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the tables written by Sink. It is safe to apply repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS perf_runs (
	id               TEXT PRIMARY KEY,
	measurement_date TIMESTAMP NOT NULL,
	revision         TEXT NOT NULL,
	total_tests      INTEGER NOT NULL,
	successful_tests INTEGER NOT NULL,
	failed_tests     INTEGER NOT NULL,
	failed_names     TEXT[] NOT NULL DEFAULT '{}',
	rerun_mode       BOOLEAN NOT NULL,
	recorded_at      TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS perf_results (
	run_id          TEXT NOT NULL REFERENCES perf_runs(id) ON DELETE CASCADE,
	test_name       TEXT NOT NULL,
	operation_name  TEXT NOT NULL,
	runs            DOUBLE PRECISION[] NOT NULL,
	successful_runs INTEGER NOT NULL,
	average_ns      DOUBLE PRECISION NOT NULL,
	std_dev_ns      DOUBLE PRECISION NOT NULL,
	min_ns          DOUBLE PRECISION NOT NULL,
	max_ns          DOUBLE PRECISION NOT NULL,
	measured_at     TIMESTAMP NOT NULL,
	PRIMARY KEY (run_id, test_name)
);
`

type Run struct {
	ID              string
	MeasurementDate time.Time
	Revision        string
	TotalTests      int
	SuccessfulTests int
	FailedTests     int
	FailedNames     []string
	RerunMode       bool
	RecordedAt      time.Time
}

type Result struct {
	RunID          string
	TestName       string
	OperationName  string
	Runs           []float64
	SuccessfulRuns int
	AverageNs      float64
	StdDevNs       float64
	MinNs          float64
	MaxNs          float64
	MeasuredAt     time.Time
}

type Connection interface {
	Migrate(ctx context.Context) error

	Begin(ctx context.Context) (Transactor, error)
	Close() error
}

type Transactor interface {
	UpsertRun(ctx context.Context, r Run) error
	UpsertResult(ctx context.Context, r Result) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context)
}

type PGXDB struct {
	conn *pgxpool.Pool
	log  log.Logger
}

func New(ctx context.Context, uri string, logger log.Logger) (*PGXDB, error) {
	if logger == nil {
		logger = log.New()
		logger.Error("No logger provided, using default")
	}
	conn, err := pgxpool.New(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}

	return &PGXDB{conn: conn, log: logger}, nil
}

func (p *PGXDB) Migrate(ctx context.Context) error {
	if _, err := p.conn.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (p *PGXDB) Begin(ctx context.Context) (Transactor, error) {
	tx, err := p.conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &PGXTransactor{tx: tx, log: p.log}, nil
}

func (p *PGXDB) Close() error {
	p.conn.Close()
	return nil
}

type PGXTransactor struct {
	tx  pgx.Tx
	log log.Logger
	mtx sync.Mutex
}

const upsertRunSQL = `
INSERT INTO perf_runs (id, measurement_date, revision, total_tests, successful_tests, failed_tests, failed_names, rerun_mode, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
	total_tests = EXCLUDED.total_tests,
	successful_tests = EXCLUDED.successful_tests,
	failed_tests = EXCLUDED.failed_tests,
	failed_names = EXCLUDED.failed_names,
	recorded_at = EXCLUDED.recorded_at
`

const upsertResultSQL = `
INSERT INTO perf_results (run_id, test_name, operation_name, runs, successful_runs, average_ns, std_dev_ns, min_ns, max_ns, measured_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (run_id, test_name) DO UPDATE SET
	runs = EXCLUDED.runs,
	successful_runs = EXCLUDED.successful_runs,
	average_ns = EXCLUDED.average_ns,
	std_dev_ns = EXCLUDED.std_dev_ns,
	min_ns = EXCLUDED.min_ns,
	max_ns = EXCLUDED.max_ns,
	measured_at = EXCLUDED.measured_at
`

func (p *PGXTransactor) UpsertRun(ctx context.Context, r Run) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if _, err := p.tx.Exec(ctx,
		upsertRunSQL,
		r.ID,
		r.MeasurementDate,
		r.Revision,
		r.TotalTests,
		r.SuccessfulTests,
		r.FailedTests,
		r.FailedNames,
		r.RerunMode,
		r.RecordedAt,
	); err != nil {
		return fmt.Errorf("failed to upsert run: %w", err)
	}
	return nil
}

func (p *PGXTransactor) UpsertResult(ctx context.Context, r Result) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if _, err := p.tx.Exec(ctx,
		upsertResultSQL,
		r.RunID,
		r.TestName,
		r.OperationName,
		r.Runs,
		r.SuccessfulRuns,
		r.AverageNs,
		r.StdDevNs,
		r.MinNs,
		r.MaxNs,
		r.MeasuredAt,
	); err != nil {
		return fmt.Errorf("failed to upsert result %s: %w", r.TestName, err)
	}
	return nil
}

func (p *PGXTransactor) Commit(ctx context.Context) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.tx.Commit(ctx)
}

func (p *PGXTransactor) Rollback(ctx context.Context) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if err := p.tx.Rollback(context.WithoutCancel(ctx)); err != nil {
		p.log.Error("error rolling back transaction", "err", err)
	}
}
