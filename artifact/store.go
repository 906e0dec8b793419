// Package artifact persists result sets as JSON and CSV artifact pairs.
package artifact

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/Aswintechie/ttnn-performance-dashboard/types"
)

const (
	// FilePrefix starts every artifact file name.
	FilePrefix = "eltwise_perf_results_"

	// RunStampLayout formats the run start time inside artifact file names.
	RunStampLayout = "20060102_150405"

	KindFinal   = "final"
	KindPartial = "partial"
)

// CSVHeader lists the CSV columns. Sample arrays are not projected.
var CSVHeader = []string{
	"test_name",
	"operation_name",
	"average_duration_ns",
	"std_deviation_ns",
	"min_duration_ns",
	"max_duration_ns",
	"successful_runs",
	"timestamp",
}

// ErrNoArtifact is returned when no artifact matches a lookup.
var ErrNoArtifact = errors.New("no artifact found")

// Paths locates one saved artifact pair.
type Paths struct {
	JSON string
	CSV  string
}

// Config holds configuration for creating a store.
type Config struct {
	Dir       string
	StartedAt time.Time
	Log       log.Logger
}

// Store writes the artifacts of a single invocation and remembers the
// partial ones so they can be removed once the final pair exists.
type Store struct {
	dir      string
	runStamp string
	log      log.Logger
	partials []string
}

// NewStore creates a store writing into cfg.Dir.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("artifact directory is required")
	}
	if cfg.StartedAt.IsZero() {
		return nil, fmt.Errorf("run start time is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory %s: %w", cfg.Dir, err)
	}
	return &Store{
		dir:      cfg.Dir,
		runStamp: cfg.StartedAt.Local().Format(RunStampLayout),
		log:      cfg.Log,
	}, nil
}

// BaseName returns the artifact name without extension, e.g.
// eltwise_perf_results_20250714_102233_partial_7.
func (s *Store) BaseName(final bool, successful int) string {
	suffix := KindFinal
	if !final {
		suffix = fmt.Sprintf("%s_%d", KindPartial, successful)
	}
	return FilePrefix + s.runStamp + "_" + suffix
}

// Save recounts rs and writes it as a JSON and CSV pair. Partial pairs are
// tracked for CleanupPartials.
func (s *Store) Save(rs *types.ResultSet, final bool) (Paths, error) {
	rs.Recount()
	base := filepath.Join(s.dir, s.BaseName(final, rs.Metadata.SuccessfulTests))
	paths := Paths{JSON: base + ".json", CSV: base + ".csv"}

	if err := WriteJSON(paths.JSON, rs); err != nil {
		return Paths{}, err
	}
	if !final {
		s.partials = append(s.partials, paths.JSON)
	}

	if err := writeCSVFile(paths.CSV, rs.Results); err != nil {
		return Paths{}, err
	}
	if !final {
		s.partials = append(s.partials, paths.CSV)
	}

	s.log.Info("Saved results", "json", paths.JSON, "csv", paths.CSV, "final", final,
		"successful", rs.Metadata.SuccessfulTests, "failed", rs.Metadata.FailedTests)
	return paths, nil
}

// CleanupPartials deletes every partial file written by this store and
// returns how many were removed.
func (s *Store) CleanupPartials() int {
	removed := 0
	for _, path := range s.partials {
		err := os.Remove(path)
		switch {
		case err == nil:
			removed++
		case errors.Is(err, os.ErrNotExist):
		default:
			s.log.Warn("Could not remove partial file", "path", path, "error", err)
		}
	}
	if removed > 0 {
		s.log.Info("Cleaned up partial files", "count", removed)
	}
	s.partials = nil
	return removed
}

// WriteJSON writes rs as indented JSON.
func WriteJSON(path string, rs *types.ResultSet) error {
	data, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func writeCSVFile(path string, results []types.TestResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteCSV(f, results); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// WriteCSV writes one row per result under CSVHeader. Nothing, not even the
// header, is written for an empty result list.
func WriteCSV(w io.Writer, results []types.TestResult) error {
	if len(results) == 0 {
		return nil
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			r.TestName,
			r.OperationName,
			formatFloat(r.AverageNs),
			formatFloat(r.StdDeviationNs),
			formatFloat(r.MinNs),
			formatFloat(r.MaxNs),
			strconv.Itoa(r.SuccessfulRuns),
			r.Timestamp.String(),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Load reads a result set from a JSON artifact.
func Load(path string) (*types.ResultSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var rs types.ResultSet
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	rs.Recount()
	return &rs, nil
}

// LatestForDay returns the most recently modified JSON artifact in dir whose
// run started on day's calendar date.
func LatestForDay(dir string, day time.Time) (string, error) {
	pattern := filepath.Join(dir, FilePrefix+day.Local().Format("20060102")+"_*.json")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("failed to list artifacts: %w", err)
	}

	var latest string
	var latestMod time.Time
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = path
			latestMod = info.ModTime()
		}
	}
	if latest == "" {
		return "", ErrNoArtifact
	}
	return latest, nil
}
