package types

import (
	"encoding/json"
	"slices"
	"strings"
)

// UnknownRevision is recorded when the revision of the measured tree can't be determined.
const UnknownRevision = "unknown"

// TestResult aggregates the kernel-duration samples of one test.
type TestResult struct {
	TestName       string    `json:"test_name"`
	OperationName  string    `json:"operation_name"`
	Runs           []float64 `json:"runs"`
	SuccessfulRuns int       `json:"successful_runs"`
	AverageNs      float64   `json:"average_duration_ns"`
	StdDeviationNs float64   `json:"std_deviation_ns"`
	MinNs          float64   `json:"min_duration_ns"`
	MaxNs          float64   `json:"max_duration_ns"`
	Timestamp      Timestamp `json:"timestamp"`
}

// OperationName derives the operation a test measures from its name.
// Every "test_" occurrence is dropped so names line up with historical dashboard data.
func OperationName(testName string) string {
	return strings.ReplaceAll(testName, "test_", "")
}

// Metadata describes one measurement invocation.
type Metadata struct {
	MeasurementDate Timestamp `json:"measurement_date"`
	TotalTests      int       `json:"total_tests"`
	SuccessfulTests int       `json:"successful_tests"`
	FailedTests     int       `json:"failed_tests"`
	FailedTestNames []string  `json:"failed_test_names"`
	RerunMode       bool      `json:"rerun_mode"`
	RevisionID      string    `json:"git_commit_id"`
}

// UnmarshalJSON accepts revision_id as an alias of git_commit_id.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	type plain Metadata
	aux := struct {
		*plain
		RevisionAlias string `json:"revision_id"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if m.RevisionID == "" {
		m.RevisionID = aux.RevisionAlias
	}
	return nil
}

// ResultSet is the full outcome of one measurement invocation.
type ResultSet struct {
	Metadata Metadata     `json:"metadata"`
	Results  []TestResult `json:"results"`
}

// NewResultSet creates an empty result set started at startedAt.
func NewResultSet(startedAt Timestamp, rerunMode bool, revision string) *ResultSet {
	if revision == "" {
		revision = UnknownRevision
	}
	return &ResultSet{
		Metadata: Metadata{
			MeasurementDate: startedAt,
			FailedTestNames: []string{},
			RerunMode:       rerunMode,
			RevisionID:      revision,
		},
		Results: []TestResult{},
	}
}

// Upsert records a successful result. An existing entry with the same test
// name is replaced in place; otherwise the result is appended. The name is
// removed from the failed list. It reports whether an entry was replaced.
func (rs *ResultSet) Upsert(result TestResult) bool {
	rs.clearFailed(result.TestName)

	for i := range rs.Results {
		if rs.Results[i].TestName == result.TestName {
			rs.Results[i] = result
			return true
		}
	}
	rs.Results = append(rs.Results, result)
	return false
}

// MarkFailed records a test with no successful samples. A name is listed at most once.
// It reports whether the name was newly added.
func (rs *ResultSet) MarkFailed(testName string) bool {
	if slices.Contains(rs.Metadata.FailedTestNames, testName) {
		return false
	}
	rs.Metadata.FailedTestNames = append(rs.Metadata.FailedTestNames, testName)
	return true
}

// IsFailed reports whether testName is in the failed list.
func (rs *ResultSet) IsFailed(testName string) bool {
	return slices.Contains(rs.Metadata.FailedTestNames, testName)
}

func (rs *ResultSet) clearFailed(testName string) bool {
	idx := slices.Index(rs.Metadata.FailedTestNames, testName)
	if idx < 0 {
		return false
	}
	rs.Metadata.FailedTestNames = slices.Delete(rs.Metadata.FailedTestNames, idx, idx+1)
	return true
}

// Result returns the result recorded for testName.
func (rs *ResultSet) Result(testName string) (TestResult, bool) {
	for _, r := range rs.Results {
		if r.TestName == testName {
			return r, true
		}
	}
	return TestResult{}, false
}

// SuccessfulNames returns the set of test names with a recorded result.
func (rs *ResultSet) SuccessfulNames() map[string]struct{} {
	names := make(map[string]struct{}, len(rs.Results))
	for _, r := range rs.Results {
		names[r.TestName] = struct{}{}
	}
	return names
}

// Recount refreshes the metadata counters from the results and failed list.
func (rs *ResultSet) Recount() {
	if rs.Metadata.FailedTestNames == nil {
		rs.Metadata.FailedTestNames = []string{}
	}
	if rs.Results == nil {
		rs.Results = []TestResult{}
	}
	rs.Metadata.SuccessfulTests = len(rs.Results)
	rs.Metadata.FailedTests = len(rs.Metadata.FailedTestNames)
	rs.Metadata.TotalTests = rs.Metadata.SuccessfulTests + rs.Metadata.FailedTests
}

// IsComplete reports whether every counted test either succeeded or failed.
// Runs with no tests at all are never complete.
func (rs *ResultSet) IsComplete() bool {
	m := rs.Metadata
	return m.TotalTests > 0 && m.TotalTests == m.SuccessfulTests+m.FailedTests
}

