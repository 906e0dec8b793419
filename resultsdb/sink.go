package resultsdb

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/Aswintechie/ttnn-performance-dashboard/types"
)

// Sink writes final result sets to the results database.
type Sink struct {
	conn Connection
	log  log.Logger
	now  func() time.Time
}

// NewSink wraps conn. A nil logger falls back to the default logger.
func NewSink(conn Connection, logger log.Logger) (*Sink, error) {
	if conn == nil {
		return nil, fmt.Errorf("connection is required")
	}
	if logger == nil {
		logger = log.New()
		logger.Error("No logger provided, using default")
	}
	return &Sink{conn: conn, log: logger, now: time.Now}, nil
}

// Record stores the run row and every result row in one transaction.
func (s *Sink) Record(ctx context.Context, runID string, rs *types.ResultSet) (err error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	run := RunRow(runID, rs, s.now())
	s.log.Info("inserting run into DB", "run_id", runID, "results", len(rs.Results))
	if err = tx.UpsertRun(ctx, run); err != nil {
		return err
	}
	for _, row := range ResultRows(runID, rs) {
		if err = tx.UpsertResult(ctx, row); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *Sink) Close() error {
	return s.conn.Close()
}

// RunRow builds the perf_runs row for rs.
func RunRow(runID string, rs *types.ResultSet, recordedAt time.Time) Run {
	md := rs.Metadata
	failed := md.FailedTestNames
	if failed == nil {
		failed = []string{}
	}
	return Run{
		ID:              runID,
		MeasurementDate: md.MeasurementDate.Time,
		Revision:        md.RevisionID,
		TotalTests:      md.TotalTests,
		SuccessfulTests: md.SuccessfulTests,
		FailedTests:     md.FailedTests,
		FailedNames:     failed,
		RerunMode:       md.RerunMode,
		RecordedAt:      recordedAt,
	}
}

// ResultRows builds one perf_results row per result, in result order.
func ResultRows(runID string, rs *types.ResultSet) []Result {
	rows := make([]Result, 0, len(rs.Results))
	for _, r := range rs.Results {
		rows = append(rows, Result{
			RunID:          runID,
			TestName:       r.TestName,
			OperationName:  r.OperationName,
			Runs:           r.Runs,
			SuccessfulRuns: r.SuccessfulRuns,
			AverageNs:      r.AverageNs,
			StdDevNs:       r.StdDeviationNs,
			MinNs:          r.MinNs,
			MaxNs:          r.MaxNs,
			MeasuredAt:     r.Timestamp.Time,
		})
	}
	return rows
}
