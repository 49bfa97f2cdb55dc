package reconcile

import (
	"fmt"
	"strconv"
)

// ValidationError reports a malformed request. It is raised before any
// schema resolution or execution.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Side names one of the two relations of a merge.
type Side string

const (
	SideSource Side = "source"
	SideTarget Side = "target"
)

// SchemaError reports a table that could not be resolved or a column that
// violates the existence rules (keys on both sides, source columns a subset
// of target columns).
type SchemaError struct {
	Side   Side
	Table  string
	Column string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("column %q %s in %s table %s", e.Column, e.Reason, e.Side, e.Table)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s table %s: %v", e.Side, e.Table, e.Err)
	}
	return fmt.Sprintf("%s table %s: %s", e.Side, e.Table, e.Reason)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// HazardKind classifies a synthesis hazard.
type HazardKind string

const (
	// HazardParameterLeakage means the statement text contains a token the
	// driver would bind as a parameter.
	HazardParameterLeakage HazardKind = "parameter_leakage"
	// HazardStatementBreakout means a verbatim fragment could terminate the
	// statement or comment out the remainder of it.
	HazardStatementBreakout HazardKind = "statement_breakout"
)

// HazardError reports an assembled statement that must not be executed.
type HazardError struct {
	Kind     HazardKind
	Fragment string
	Token    string
}

func (e *HazardError) Error() string {
	switch e.Kind {
	case HazardParameterLeakage:
		return fmt.Sprintf("%s contains bind marker %q which would be treated as a parameter", e.Fragment, e.Token)
	default:
		return fmt.Sprintf("%s contains %q which could break out of the merge statement", e.Fragment, e.Token)
	}
}

// VarianceExceededError is returned after a rollback when the share of
// changed rows exceeds the threshold.
type VarianceExceededError struct {
	Threshold   float64
	Variance    float64
	PreCount    int64
	RowsChanged int64
}

func (e *VarianceExceededError) Error() string {
	return fmt.Sprintf("variance %.1f%% exceeds threshold %s%% (%d of %d rows changed); transaction rolled back",
		e.Variance, strconv.FormatFloat(e.Threshold, 'f', -1, 64), e.RowsChanged, e.PreCount)
}

// ExecutionError wraps a database failure. Any open transaction has been rolled back.
type ExecutionError struct {
	Stage string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("merge failed during %s: %v", e.Stage, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// MetadataError reports a failure to stamp the target after a commit.
// It never fails the merge itself.
type MetadataError struct {
	Target string
	Key    string
	Err    error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("merge committed but recording %s on %s failed: %v", e.Key, e.Target, e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }
