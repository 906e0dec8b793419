package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aswintechie/ttnn-performance-dashboard/types"
)

func TestSummarize(t *testing.T) {
	at := types.Now()

	t.Run("three samples", func(t *testing.T) {
		r, err := Summarize("test_abs", []float64{100, 102, 98}, at)
		require.NoError(t, err)
		assert.Equal(t, "abs", r.OperationName)
		assert.Equal(t, 3, r.SuccessfulRuns)
		assert.InDelta(t, 100, r.AverageNs, 1e-9)
		assert.InDelta(t, 2, r.StdDeviationNs, 1e-9)
		assert.Equal(t, 98.0, r.MinNs)
		assert.Equal(t, 102.0, r.MaxNs)
		assert.Equal(t, []float64{100, 102, 98}, r.Runs)
	})

	t.Run("single sample has zero deviation", func(t *testing.T) {
		r, err := Summarize("test_exp", []float64{50}, at)
		require.NoError(t, err)
		assert.Equal(t, 50.0, r.AverageNs)
		assert.Zero(t, r.StdDeviationNs)
		assert.Equal(t, 1, r.SuccessfulRuns)
	})

	t.Run("no samples", func(t *testing.T) {
		_, err := Summarize("test_log", nil, at)
		assert.ErrorIs(t, err, ErrNoSamples)
	})
}

func TestSummarize_Bounds(t *testing.T) {
	samples := [][]float64{
		{1, 1, 1},
		{5, 1000, 3},
		{0.5, 0.25},
	}
	for _, s := range samples {
		r, err := Summarize("test_x", s, types.Now())
		require.NoError(t, err)
		assert.LessOrEqual(t, r.MinNs, r.AverageNs)
		assert.LessOrEqual(t, r.AverageNs, r.MaxNs)
		assert.GreaterOrEqual(t, r.StdDeviationNs, 0.0)
	}
}

func TestSummarize_DoesNotAliasSamples(t *testing.T) {
	samples := []float64{1, 2}
	r, err := Summarize("test_x", samples, types.Now())
	require.NoError(t, err)
	samples[0] = 42
	assert.Equal(t, 1.0, r.Runs[0])
}
