package reconcile

import (
	"fmt"
	"strings"

	"sqlmerge/core/database"
)

// Names of the views wrapping target and source.
const (
	targetView = "__merge_target"
	sourceView = "__merge_source"

	// DefaultAuditSuffix names the audit table scripted for dry runs that did
	// not request one.
	DefaultAuditSuffix = "_MergeAudit"
)

// Assembly is the input of Assemble.
type Assembly struct {
	Target            database.TableRef
	Source            database.TableRef
	Filter            string
	DuplicateTolerant bool
	Keys              []ColumnDescriptor
	Predicate         Expr
	Clauses           Clauses
}

// Statement is the rendered output of Assemble.
type Statement struct {
	Text      string
	CountText string
}

// Assemble renders the MERGE statement and the pre-count query.
// Verbatim caller fragments are screened first and the finished text is
// checked for a leading bind marker.
func Assemble(a Assembly) (*Statement, error) {
	if a.Filter != "" {
		if err := CheckFragment("target filter", a.Filter); err != nil {
			return nil, err
		}
	}
	if nmbs := a.Clauses.NotMatchedBySource; nmbs != nil && nmbs.Policy.kind() == PolicyUpdate {
		if err := CheckFragment("not matched by source expression", nmbs.Policy.Expression); err != nil {
			return nil, err
		}
	}

	text := a.render()
	if err := CheckStatement(text); err != nil {
		return nil, err
	}
	return &Statement{Text: text, CountText: a.renderCount()}, nil
}

func (a Assembly) render() string {
	var b strings.Builder

	targetExpr := a.Target.Quoted()
	sourceExpr := a.Source.Quoted()
	var views []string
	if a.Filter != "" || a.DuplicateTolerant {
		views = append(views, a.view(targetView, a.Target, a.Filter))
		targetExpr = database.QuoteName(targetView)
	}
	if a.DuplicateTolerant {
		views = append(views, a.view(sourceView, a.Source, ""))
		sourceExpr = database.QuoteName(sourceView)
	}
	if len(views) > 0 {
		b.WriteString("WITH ")
		b.WriteString(strings.Join(views, ",\n"))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "MERGE INTO %s AS %s\nUSING %s AS %s\n    ON %s\n",
		targetExpr, database.QuoteName(targetAlias), sourceExpr, database.QuoteName(sourceAlias), Render(a.Predicate))

	if u := a.Clauses.Update; u != nil {
		fmt.Fprintf(&b, "WHEN MATCHED AND EXISTS (SELECT %s EXCEPT SELECT %s) THEN\n    UPDATE SET %s\n",
			qualifiedList(sourceAlias, u.Columns), qualifiedList(targetAlias, u.Columns), assignments(u.Columns))
	}

	fmt.Fprintf(&b, "WHEN NOT MATCHED BY TARGET THEN\n    INSERT (%s) VALUES (%s)\n",
		nameList(a.Clauses.Insert.Columns), qualifiedList(sourceAlias, a.Clauses.Insert.Columns))

	if n := a.Clauses.NotMatchedBySource; n != nil {
		b.WriteString("WHEN NOT MATCHED BY SOURCE THEN\n")
		if n.Policy.kind() == PolicyUpdate {
			b.WriteString("    UPDATE SET " + strings.TrimSpace(n.Policy.Expression) + "\n")
		} else {
			b.WriteString("    DELETE\n")
		}
	}

	if o := a.Clauses.Output; o != nil {
		cols := o.Columns()
		exprs := make([]string, len(cols))
		names := make([]string, len(cols))
		for i, c := range cols {
			exprs[i] = c.Expr
			names[i] = database.QuoteName(c.Name)
		}
		fmt.Fprintf(&b, "OUTPUT %s\n    INTO %s (%s)\n",
			strings.Join(exprs, ", "), o.Destination.Quoted(), strings.Join(names, ", "))
	}

	// MERGE must be terminated
	return strings.TrimSuffix(b.String(), "\n") + ";"
}

func (a Assembly) view(name string, table database.TableRef, filter string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s AS (\n    SELECT *", database.QuoteName(name))
	if a.DuplicateTolerant {
		fmt.Fprintf(&b, ", ROW_NUMBER() OVER (PARTITION BY %s ORDER BY %%%%physloc%%%%) AS %s",
			nameList(a.Keys), database.QuoteName(rankColumn))
	}
	fmt.Fprintf(&b, "\n    FROM %s", table.Quoted())
	if filter != "" {
		fmt.Fprintf(&b, "\n    WHERE %s", filter)
	}
	b.WriteString("\n)")
	return b.String()
}

func (a Assembly) renderCount() string {
	query := "SELECT COUNT_BIG(*) FROM " + a.Target.Quoted()
	if a.Filter != "" {
		query += " WHERE " + a.Filter
	}
	return query
}

// AuditTableScript renders a CREATE TABLE statement for the projection of o.
func AuditTableScript(o *OutputClause) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", o.Destination.Quoted())
	cols := o.Columns()
	for i, c := range cols {
		typeName := c.TypeName
		if typeName == "" {
			typeName = "sql_variant"
		}
		null := "NOT NULL"
		if c.Nullable {
			null = "NULL"
		}
		fmt.Fprintf(&b, "    %s %s %s", database.QuoteName(c.Name), typeName, null)
		if i < len(cols)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString(");")
	return b.String()
}

func nameList(cols []ColumnDescriptor) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = database.QuoteName(c.Name)
	}
	return strings.Join(names, ", ")
}

func qualifiedList(alias string, cols []ColumnDescriptor) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = database.QuoteName(alias) + "." + database.QuoteName(c.Name)
	}
	return strings.Join(names, ", ")
}

func assignments(cols []ColumnDescriptor) string {
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = database.QuoteName(c.Name) + " = " + database.QuoteName(sourceAlias) + "." + database.QuoteName(c.Name)
	}
	return strings.Join(sets, ", ")
}
