package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResult(name string, avg float64) TestResult {
	return TestResult{
		TestName:       name,
		OperationName:  OperationName(name),
		Runs:           []float64{avg},
		SuccessfulRuns: 1,
		AverageNs:      avg,
		MinNs:          avg,
		MaxNs:          avg,
		Timestamp:      Now(),
	}
}

func TestOperationName(t *testing.T) {
	assert.Equal(t, "abs", OperationName("test_abs"))
	assert.Equal(t, "logical_and", OperationName("test_logical_and"))
	assert.Equal(t, "plain", OperationName("plain"))
}

func TestResultSet_UpsertPreservesPosition(t *testing.T) {
	rs := NewResultSet(Now(), true, "abc123")
	rs.Upsert(newResult("test_a", 1))
	rs.Upsert(newResult("test_b", 2))
	rs.Upsert(newResult("test_c", 3))

	replaced := rs.Upsert(newResult("test_b", 20))
	require.True(t, replaced)
	require.Len(t, rs.Results, 3)
	assert.Equal(t, "test_b", rs.Results[1].TestName)
	assert.Equal(t, 20.0, rs.Results[1].AverageNs)

	replaced = rs.Upsert(newResult("test_d", 4))
	assert.False(t, replaced)
	assert.Equal(t, "test_d", rs.Results[3].TestName)
}

func TestResultSet_FailedListHasNoDuplicates(t *testing.T) {
	rs := NewResultSet(Now(), false, "")
	assert.True(t, rs.MarkFailed("test_c"))
	assert.False(t, rs.MarkFailed("test_c"))
	assert.Equal(t, []string{"test_c"}, rs.Metadata.FailedTestNames)
	assert.Equal(t, UnknownRevision, rs.Metadata.RevisionID)
}

func TestResultSet_UpsertClearsFailure(t *testing.T) {
	rs := NewResultSet(Now(), true, "rev")
	rs.MarkFailed("test_a")
	rs.MarkFailed("test_b")

	rs.Upsert(newResult("test_a", 10))

	assert.False(t, rs.IsFailed("test_a"))
	assert.True(t, rs.IsFailed("test_b"))
	_, ok := rs.Result("test_a")
	assert.True(t, ok)
}

func TestResultSet_RecountKeepsTotalsConsistent(t *testing.T) {
	rs := NewResultSet(Now(), false, "rev")
	assert.False(t, rs.IsComplete())

	rs.Upsert(newResult("test_a", 1))
	rs.Upsert(newResult("test_b", 2))
	rs.MarkFailed("test_c")
	rs.Recount()

	m := rs.Metadata
	assert.Equal(t, 3, m.TotalTests)
	assert.Equal(t, 2, m.SuccessfulTests)
	assert.Equal(t, 1, m.FailedTests)
	assert.Equal(t, m.TotalTests, m.SuccessfulTests+m.FailedTests)
	assert.True(t, rs.IsComplete())
}

func TestResultSet_IsComplete(t *testing.T) {
	tests := []struct {
		name     string
		meta     Metadata
		expected bool
	}{
		{name: "complete", meta: Metadata{TotalTests: 10, SuccessfulTests: 7, FailedTests: 3}, expected: true},
		{name: "incomplete", meta: Metadata{TotalTests: 10, SuccessfulTests: 4, FailedTests: 2}, expected: false},
		{name: "empty", meta: Metadata{}, expected: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := &ResultSet{Metadata: tt.meta}
			assert.Equal(t, tt.expected, rs.IsComplete())
		})
	}
}

func TestResultSet_SuccessfulNames(t *testing.T) {
	rs := NewResultSet(Now(), false, "rev")
	rs.Upsert(newResult("test_a", 1))
	rs.MarkFailed("test_b")

	names := rs.SuccessfulNames()
	assert.Len(t, names, 1)
	assert.Contains(t, names, "test_a")
}

func TestResultSet_JSONShape(t *testing.T) {
	started := NewTimestamp(time.Date(2025, 7, 14, 10, 22, 33, 123456000, time.Local))
	rs := NewResultSet(started, true, "deadbeef")
	rs.Upsert(TestResult{
		TestName:       "test_abs",
		OperationName:  "abs",
		Runs:           []float64{100, 102, 98},
		SuccessfulRuns: 3,
		AverageNs:      100,
		StdDeviationNs: 2,
		MinNs:          98,
		MaxNs:          102,
		Timestamp:      started,
	})
	rs.Recount()

	data, err := json.Marshal(rs)
	require.NoError(t, err)

	var generic map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &generic))

	var meta map[string]any
	require.NoError(t, json.Unmarshal(generic["metadata"], &meta))
	assert.Equal(t, "2025-07-14T10:22:33.123456", meta["measurement_date"])
	assert.Equal(t, "deadbeef", meta["git_commit_id"])
	assert.Equal(t, true, meta["rerun_mode"])
	assert.EqualValues(t, 1, meta["total_tests"])

	var results []map[string]any
	require.NoError(t, json.Unmarshal(generic["results"], &results))
	require.Len(t, results, 1)
	assert.Equal(t, "test_abs", results[0]["test_name"])
	assert.EqualValues(t, 100, results[0]["average_duration_ns"])
	assert.Len(t, results[0]["runs"], 3)
}

func TestMetadata_AcceptsRevisionAlias(t *testing.T) {
	var m Metadata
	err := json.Unmarshal([]byte(`{"measurement_date":"2025-07-14T10:22:33","revision_id":"abc","total_tests":1}`), &m)
	require.NoError(t, err)
	assert.Equal(t, "abc", m.RevisionID)
	assert.Equal(t, 1, m.TotalTests)

	err = json.Unmarshal([]byte(`{"git_commit_id":"primary","revision_id":"alias"}`), &m)
	require.NoError(t, err)
	assert.Equal(t, "primary", m.RevisionID)
}

