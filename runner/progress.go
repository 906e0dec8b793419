package runner

import (
	"fmt"
	"time"
)

// Progress tracks wall time per processed test and estimates the time left.
type Progress struct {
	total     int
	started   time.Time
	durations []time.Duration
	now       func() time.Time
}

// NewProgress starts tracking a run of total tests.
func NewProgress(total int) *Progress {
	return newProgressWithClock(total, time.Now)
}

func newProgressWithClock(total int, now func() time.Time) *Progress {
	return &Progress{
		total:   total,
		started: now(),
		now:     now,
	}
}

// Record notes that one more test finished after d.
func (p *Progress) Record(d time.Duration) {
	p.durations = append(p.durations, d)
}

// Completed returns the number of processed tests.
func (p *Progress) Completed() int {
	return len(p.durations)
}

// Total returns the number of tests selected for the run.
func (p *Progress) Total() int {
	return p.total
}

// Percent returns the share of processed tests in [0, 100].
func (p *Progress) Percent() float64 {
	if p.total == 0 {
		return 100
	}
	return float64(len(p.durations)) / float64(p.total) * 100
}

// AveragePerTest returns the mean wall time of processed tests, or 0 before the first completion.
func (p *Progress) AveragePerTest() time.Duration {
	if len(p.durations) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range p.durations {
		sum += d
	}
	return sum / time.Duration(len(p.durations))
}

// Remaining estimates the time left. The second value is false until a test has completed.
func (p *Progress) Remaining() (time.Duration, bool) {
	if len(p.durations) == 0 {
		return 0, false
	}
	left := p.total - len(p.durations)
	if left < 0 {
		left = 0
	}
	return p.AveragePerTest() * time.Duration(left), true
}

// ETA renders Remaining for humans.
func (p *Progress) ETA() string {
	remaining, ok := p.Remaining()
	if !ok {
		return CalculatingETA
	}
	return FormatDuration(remaining)
}

// Elapsed returns the wall time since the run started.
func (p *Progress) Elapsed() time.Duration {
	return p.now().Sub(p.started)
}

// FormatDuration renders d as "Ns", "Nm Ns" or "Nh Nm", rounded to the
// nearest second.
func FormatDuration(d time.Duration) string {
	seconds := int(d.Round(time.Second).Seconds())
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	default:
		return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
	}
}
