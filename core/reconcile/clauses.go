package reconcile

import (
	"sqlmerge/core/database"
)

// UpdateClause updates shared non-key columns of matched rows whose values differ.
type UpdateClause struct {
	Columns []ColumnDescriptor
}

// InsertClause inserts source rows with no matching target row.
type InsertClause struct {
	Columns []ColumnDescriptor
}

// SourceMissClause handles target rows with no matching source row.
type SourceMissClause struct {
	Policy Policy
}

// AuditColumn is one column of the audit projection.
type AuditColumn struct {
	Name     string
	TypeName string
	Nullable bool
	// Expr is the OUTPUT expression producing the value.
	Expr string
}

// OutputClause projects every changed row into an audit table.
type OutputClause struct {
	Destination database.TableRef
	Keys        []ColumnDescriptor
	// Images lists the columns written as d_<col> and i_<col> pairs.
	// It is empty when the merge has no update clause.
	Images []ColumnDescriptor
}

// Audit column names.
const (
	AuditTimestampColumn = "MergeTimestamp"
	AuditActionColumn    = "MergeAction"
	PreImagePrefix       = "d_"
	PostImagePrefix      = "i_"
)

// Columns returns the audit projection in output order.
func (o *OutputClause) Columns() []AuditColumn {
	cols := []AuditColumn{
		{Name: AuditTimestampColumn, TypeName: "datetime2", Expr: "SYSDATETIME()"},
		{Name: AuditActionColumn, TypeName: "nvarchar(10)", Expr: "$action"},
	}
	for _, key := range o.Keys {
		q := database.QuoteName(key.Name)
		cols = append(cols, AuditColumn{
			Name:     key.Name,
			TypeName: key.TypeName,
			Nullable: true,
			Expr:     "COALESCE(inserted." + q + ", deleted." + q + ")",
		})
	}
	for _, col := range o.Images {
		q := database.QuoteName(col.Name)
		cols = append(cols,
			AuditColumn{Name: PreImagePrefix + col.Name, TypeName: col.TypeName, Nullable: true, Expr: "deleted." + q},
			AuditColumn{Name: PostImagePrefix + col.Name, TypeName: col.TypeName, Nullable: true, Expr: "inserted." + q},
		)
	}
	return cols
}

// Clauses are the independent fragments of a merge statement.
type Clauses struct {
	// Update is nil when there are no shared non-key columns.
	Update *UpdateClause
	Insert InsertClause
	// NotMatchedBySource is nil for the ignore policy.
	NotMatchedBySource *SourceMissClause
	// Output is nil when no audit table was requested.
	Output *OutputClause
}

// Synthesize builds the clause fragments from the aligned columns.
func Synthesize(cols *ColumnSet, policy Policy, audit *database.TableRef) Clauses {
	var clauses Clauses

	shared := cols.Shared()
	if len(shared) > 0 {
		clauses.Update = &UpdateClause{Columns: shared}
	}

	clauses.Insert = InsertClause{Columns: cols.Inserted()}

	if policy.kind() != PolicyIgnore {
		clauses.NotMatchedBySource = &SourceMissClause{Policy: policy}
	}

	if audit != nil {
		out := &OutputClause{Destination: *audit, Keys: cols.Keys()}
		if clauses.Update != nil {
			out.Images = shared
		}
		clauses.Output = out
	}
	return clauses
}
