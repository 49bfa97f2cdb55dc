package reconcile

import (
	"strings"

	"sqlmerge/core/database"
)

// Table aliases used in the rendered statement.
const (
	targetAlias = "t"
	sourceAlias = "s"
	rankColumn  = "__merge_rank"
)

// Expr is a node of a join predicate. It is rendered to T-SQL only when the
// statement is assembled.
type Expr interface {
	render(b *strings.Builder)
}

// ColumnRef is an alias-qualified column.
type ColumnRef struct {
	Alias  string
	Column string
}

func (c ColumnRef) render(b *strings.Builder) {
	b.WriteString(database.QuoteName(c.Alias))
	b.WriteByte('.')
	b.WriteString(database.QuoteName(c.Column))
}

// Equals is a plain equality test.
type Equals struct {
	Left, Right ColumnRef
}

func (e Equals) render(b *strings.Builder) {
	e.Left.render(b)
	b.WriteString(" = ")
	e.Right.render(b)
}

// NullSafeEquals matches equal values and pairs of NULLs.
type NullSafeEquals struct {
	Left, Right ColumnRef
}

func (e NullSafeEquals) render(b *strings.Builder) {
	b.WriteByte('(')
	Equals(e).render(b)
	b.WriteString(" OR (")
	e.Left.render(b)
	b.WriteString(" IS NULL AND ")
	e.Right.render(b)
	b.WriteString(" IS NULL))")
}

// And conjoins its terms.
type And []Expr

func (a And) render(b *strings.Builder) {
	for i, term := range a {
		if i > 0 {
			b.WriteString(" AND ")
		}
		term.render(b)
	}
}

// Render returns the T-SQL text of e.
func Render(e Expr) string {
	var b strings.Builder
	e.render(&b)
	return b.String()
}

// BuildJoinPredicate matches target and source rows on every key column.
// Nullable keys use NullSafeEquals. In duplicate-tolerant mode the rank
// assigned within each key partition must also match.
func BuildJoinPredicate(keys []ColumnDescriptor, duplicateTolerant bool) Expr {
	terms := make(And, 0, len(keys)+1)
	for _, key := range keys {
		left := ColumnRef{Alias: targetAlias, Column: key.Name}
		right := ColumnRef{Alias: sourceAlias, Column: key.Name}
		if key.Nullable {
			terms = append(terms, NullSafeEquals{Left: left, Right: right})
		} else {
			terms = append(terms, Equals{Left: left, Right: right})
		}
	}
	if duplicateTolerant {
		terms = append(terms, Equals{
			Left:  ColumnRef{Alias: targetAlias, Column: rankColumn},
			Right: ColumnRef{Alias: sourceAlias, Column: rankColumn},
		})
	}
	return terms
}
