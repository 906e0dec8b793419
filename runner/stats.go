package runner

import (
	"errors"
	"slices"

	"github.com/montanaflynn/stats"

	"github.com/Aswintechie/ttnn-performance-dashboard/types"
)

// ErrNoSamples is returned when a result is requested for a test without samples.
var ErrNoSamples = errors.New("no successful samples")

// Summarize aggregates the samples of one test. The standard deviation is the
// sample (n-1) deviation and is zero when there is a single sample.
func Summarize(testName string, samples []float64, at types.Timestamp) (types.TestResult, error) {
	if len(samples) == 0 {
		return types.TestResult{}, ErrNoSamples
	}
	data := stats.Float64Data(samples)

	mean, err := stats.Mean(data)
	if err != nil {
		return types.TestResult{}, err
	}
	minimum, err := stats.Min(data)
	if err != nil {
		return types.TestResult{}, err
	}
	maximum, err := stats.Max(data)
	if err != nil {
		return types.TestResult{}, err
	}
	var stdev float64
	if len(samples) > 1 {
		stdev, err = stats.StandardDeviationSample(data)
		if err != nil {
			return types.TestResult{}, err
		}
	}

	return types.TestResult{
		TestName:       testName,
		OperationName:  types.OperationName(testName),
		Runs:           slices.Clone(samples),
		SuccessfulRuns: len(samples),
		AverageNs:      mean,
		StdDeviationNs: stdev,
		MinNs:          minimum,
		MaxNs:          maximum,
		Timestamp:      at,
	}, nil
}
