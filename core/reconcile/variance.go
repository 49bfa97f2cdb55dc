package reconcile

import (
	"math"
	"strconv"
	"strings"
)

// Threshold is the maximum share of changed rows, as a percentage of the
// pre-merge target row count.
type Threshold struct {
	Percent float64
	Enabled bool
}

// ParseThreshold parses "15%", "15" or "12.5 %". An empty string disables the check.
func ParseThreshold(raw string) (Threshold, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Threshold{}, nil
	}
	number := strings.TrimSpace(strings.TrimSuffix(trimmed, "%"))
	percent, err := strconv.ParseFloat(number, 64)
	if err != nil || math.IsNaN(percent) || math.IsInf(percent, 0) {
		return Threshold{}, &ValidationError{Field: "threshold", Value: raw, Reason: "expected a percentage such as 15%", Err: err}
	}
	if percent < 0 {
		return Threshold{}, &ValidationError{Field: "threshold", Value: raw, Reason: "must not be negative"}
	}
	return Threshold{Percent: percent, Enabled: true}, nil
}

// Decision is the outcome of the variance gate.
type Decision struct {
	Commit bool
	// Variance is rounded to one decimal place.
	Variance float64
	// Checked is false when the gate was bypassed.
	Checked bool
}

// Decide applies the variance gate. The check is bypassed when no threshold is
// set or the target was empty before the merge.
func Decide(t Threshold, preCount, rowsChanged int64) Decision {
	if !t.Enabled || preCount <= 0 {
		return Decision{Commit: true}
	}
	variance := float64(rowsChanged) * 100 / float64(preCount)
	return Decision{
		Commit:   variance <= t.Percent,
		Variance: math.Round(variance*10) / 10,
		Checked:  true,
	}
}
