package reconcile

import (
	"sqlmerge/core/database"
)

// ColumnDescriptor is one column of the aligned source/target model.
// Ordinals and key positions are 1-based; zero means absent.
type ColumnDescriptor struct {
	// Name is the column identifier.
	Name string `json:"name"`

	// SourceOrdinal is the position of the column in the source relation.
	SourceOrdinal int `json:"source_ordinal,omitempty"`

	// TargetOrdinal is the position of the column in the target's result shape.
	TargetOrdinal int `json:"target_ordinal,omitempty"`

	// KeyPosition is the position of the column in the caller's key list.
	KeyPosition int `json:"key_position,omitempty"`

	// TypeName is the declared type, used for audit table generation.
	TypeName string `json:"type_name"`

	// Nullable is true when either side allows NULL.
	Nullable bool `json:"nullable"`
}

// InSource reports whether the column exists in the source relation.
func (c ColumnDescriptor) InSource() bool { return c.SourceOrdinal > 0 }

// InTarget reports whether the column exists in the target relation.
func (c ColumnDescriptor) InTarget() bool { return c.TargetOrdinal > 0 }

// IsKey reports whether the column was named in the key list.
func (c ColumnDescriptor) IsKey() bool { return c.KeyPosition > 0 }

// PolicyKind selects what happens to target rows with no matching source row.
type PolicyKind string

const (
	// PolicyDelete deletes unmatched target rows.
	PolicyDelete PolicyKind = "delete"
	// PolicyUpdate applies a caller-supplied SET expression to unmatched target rows.
	PolicyUpdate PolicyKind = "update"
	// PolicyIgnore leaves unmatched target rows untouched.
	PolicyIgnore PolicyKind = "ignore"
)

// Policy is the not-matched-by-source behavior. The zero value deletes.
type Policy struct {
	Kind PolicyKind `json:"kind"`

	// Expression is the SET list applied when Kind is PolicyUpdate,
	// e.g. "[IsDeleted] = 1, [DeletedAt] = SYSDATETIME()".
	Expression string `json:"expression,omitempty"`
}

// Delete returns the delete policy.
func Delete() Policy { return Policy{Kind: PolicyDelete} }

// Ignore returns the ignore policy.
func Ignore() Policy { return Policy{Kind: PolicyIgnore} }

// UpdateWith returns a policy applying expr verbatim to unmatched target rows.
func UpdateWith(expr string) Policy { return Policy{Kind: PolicyUpdate, Expression: expr} }

func (p Policy) kind() PolicyKind {
	if p.Kind == "" {
		return PolicyDelete
	}
	return p.Kind
}

// Request is the caller-supplied configuration of a single merge.
type Request struct {
	// Target is the table being replaced, as database.schema.table or #temp.
	Target string `json:"target"`

	// Source is the table providing the new contents.
	Source string `json:"source"`

	// KeyColumns names the columns rows are matched on. Names may carry
	// bracket or quote decoration.
	KeyColumns []string `json:"key_columns"`

	// Policy selects the not-matched-by-source behavior.
	Policy Policy `json:"policy"`

	// TargetFilter restricts the merge to target rows matching this predicate.
	TargetFilter string `json:"target_filter,omitempty"`

	// DuplicateTolerant pairs rows sharing key values by rank instead of
	// failing on duplicate keys.
	DuplicateTolerant bool `json:"duplicate_tolerant"`

	// AuditTable receives one row per change when set.
	AuditTable string `json:"audit_table,omitempty"`

	// Threshold is the maximum allowed variance, e.g. "15%". Empty disables the check.
	Threshold string `json:"threshold,omitempty"`

	// DryRun returns the statement instead of executing it.
	DryRun bool `json:"dry_run"`
}

// Plan is the synthesized, single-use artifact of one merge.
type Plan struct {
	// Statement is the assembled MERGE statement.
	Statement string

	// CountStatement counts the (filtered) target rows before the merge.
	CountStatement string

	// AuditTableScript creates a table matching the audit projection. Only set in dry-run mode.
	AuditTableScript string

	// PreCount is the target row count taken before execution.
	PreCount int64

	// Target is the resolved target table.
	Target database.TableRef

	// Threshold is the parsed variance threshold.
	Threshold Threshold

	// Columns is the aligned column model the statement was built from.
	Columns *ColumnSet

	// DryRun mirrors the request flag.
	DryRun bool
}

// Status is the terminal outcome of a merge.
type Status string

const (
	StatusDryRun     Status = "dry_run"
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolled_back"
	StatusFailed     Status = "failed"
)

// Result is returned for every merge, including rejected ones.
type Result struct {
	Status Status `json:"status"`

	// Statement and AuditTableScript are only set for dry runs.
	Statement        string `json:"statement,omitempty"`
	AuditTableScript string `json:"audit_table_script,omitempty"`

	// RowsChanged is the row count reported by the MERGE.
	RowsChanged int64 `json:"rows_changed"`

	// PreCount is the target row count before the merge. Only set when a threshold was checked.
	PreCount int64 `json:"pre_count"`

	// Variance is RowsChanged as a percentage of PreCount, rounded to one decimal place.
	Variance float64 `json:"variance"`

	// VarianceChecked is false when no threshold was set or the target was empty.
	VarianceChecked bool `json:"variance_checked"`

	// Warning carries a non-fatal metadata recording failure.
	Warning string `json:"warning,omitempty"`

	// MetadataErr is the error behind Warning.
	MetadataErr error `json:"-"`
}
