package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "eltwise_perf"
)

// Test outcomes.
const (
	TestSucceeded = "succeeded"
	TestFailed    = "failed"
)

var (
	Debug                bool = true
	validTestOutcomes         = []string{TestSucceeded, TestFailed}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "attempts_total",
		Help:      "Count of measurement attempts by outcome",
	}, []string{
		"outcome",
	})

	attemptDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "attempt_duration_seconds",
		Help:      "Wall time of measurement attempts",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
	}, []string{
		"outcome",
	})

	kernelDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "kernel_duration_ns",
		Help:      "Kernel duration samples in nanoseconds",
		Buckets:   prometheus.ExponentialBuckets(1000, 4, 10),
	})

	testsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "tests_total",
		Help:      "Count of measured tests by outcome",
	}, []string{
		"outcome",
	})

	savesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "artifact_saves_total",
		Help:      "Count of artifact saves",
	}, []string{
		"kind",
		"outcome",
	})

	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "uploads_total",
		Help:      "Count of dashboard uploads",
	}, []string{
		"uploader",
		"outcome",
	})

	progressCompleted = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "progress_completed_tests",
		Help:      "Tests processed in the current run",
	})

	progressTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "progress_total_tests",
		Help:      "Tests selected for the current run",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

func RecordAttempt(outcome string, elapsed time.Duration) {
	attemptsTotal.WithLabelValues(outcome).Inc()
	attemptDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func RecordSample(ns float64) {
	kernelDuration.Observe(ns)
}

func RecordTest(outcome string) {
	if !slices.Contains(validTestOutcomes, outcome) {
		log.Error("RecordTest - invalid outcome", "outcome", outcome)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "tests_total",
			"outcome", outcome)
	}
	testsTotal.WithLabelValues(outcome).Inc()
}

func RecordSave(kind string, err error) {
	savesTotal.WithLabelValues(kind, outcome(err)).Inc()
}

func RecordUpload(uploader string, err error) {
	uploadsTotal.WithLabelValues(uploader, outcome(err)).Inc()
}

func SetProgress(completed, total int) {
	progressCompleted.Set(float64(completed))
	progressTotal.Set(float64(total))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
