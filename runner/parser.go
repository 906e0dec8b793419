package runner

import (
	"regexp"
	"strconv"

	"github.com/acarl005/stripansi"
)

var kernelDurationRegex = regexp.MustCompile(regexp.QuoteMeta(KernelDurationMarker) + `\s+([\d.]+)\s+ns`)

// ParseKernelDuration extracts the total kernel duration in nanoseconds from
// the measurement tool's output. Colour codes are removed first since the tool
// highlights the summary line. The first marker wins.
func ParseKernelDuration(output string) (float64, bool) {
	match := kernelDurationRegex.FindStringSubmatch(stripansi.Strip(output))
	if match == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// excerpt returns at most n bytes of s for log lines.
func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
