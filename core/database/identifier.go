package database

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidIdentifier is returned when a table or column identifier cannot be parsed.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// TableRef is a parsed table identifier.
// Permanent tables are always three-part names; temporary tables (#name, ##name)
// may omit the database and schema.
type TableRef struct {
	Database string `json:"database,omitempty"`
	Schema   string `json:"schema,omitempty"`
	Name     string `json:"name"`
}

// ParseTableRef parses a db.schema.table identifier. Each part may be wrapped in
// brackets, double quotes or backticks.
func ParseTableRef(raw string) (TableRef, error) {
	parts, err := splitIdentifier(strings.TrimSpace(raw))
	if err != nil {
		return TableRef{}, err
	}

	var ref TableRef
	switch len(parts) {
	case 1:
		ref.Name = parts[0]
	case 3:
		ref.Database, ref.Schema, ref.Name = parts[0], parts[1], parts[2]
	default:
		return TableRef{}, fmt.Errorf("%w: %q must be fully qualified as database.schema.table", ErrInvalidIdentifier, raw)
	}

	if ref.Name == "" {
		return TableRef{}, fmt.Errorf("%w: %q has an empty table name", ErrInvalidIdentifier, raw)
	}
	if ref.Temporary() {
		if ref.Database != "" && !strings.EqualFold(ref.Database, "tempdb") {
			return TableRef{}, fmt.Errorf("%w: temporary table %q must live in tempdb", ErrInvalidIdentifier, raw)
		}
		return ref, nil
	}
	if ref.Database == "" || ref.Schema == "" {
		return TableRef{}, fmt.Errorf("%w: %q must be fully qualified as database.schema.table", ErrInvalidIdentifier, raw)
	}
	return ref, nil
}

// Temporary reports whether the table lives in tempdb (#local or ##global).
func (r TableRef) Temporary() bool {
	return strings.HasPrefix(r.Name, "#")
}

// SessionScoped reports whether the table is a #local temporary table, visible
// only to the connection that created it.
func (r TableRef) SessionScoped() bool {
	return r.Temporary() && !strings.HasPrefix(r.Name, "##")
}

// Quoted renders the identifier with bracket quoting.
func (r TableRef) Quoted() string {
	if r.Temporary() {
		return QuoteName(r.Name)
	}
	return QuoteName(r.Database) + "." + QuoteName(r.Schema) + "." + QuoteName(r.Name)
}

// ObjectName renders the identifier in the form OBJECT_ID expects.
func (r TableRef) ObjectName() string {
	if r.Temporary() {
		return "tempdb.." + QuoteName(r.Name)
	}
	return r.Quoted()
}

// Parts returns the non-empty identifier parts.
func (r TableRef) Parts() []string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.Database, r.Schema, r.Name} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// WithSuffix returns a reference to a sibling table with suffix appended to the name.
func (r TableRef) WithSuffix(suffix string) TableRef {
	r.Name += suffix
	return r
}

func (r TableRef) String() string {
	return strings.Join(r.Parts(), ".")
}

// QuoteName wraps an identifier in brackets, doubling any closing bracket.
func QuoteName(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// UnquoteName strips one level of bracket, double quote or backtick decoration
// from a single identifier part.
func UnquoteName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) < 2 {
		return name
	}
	switch {
	case name[0] == '[' && name[len(name)-1] == ']':
		return strings.ReplaceAll(name[1:len(name)-1], "]]", "]")
	case name[0] == '"' && name[len(name)-1] == '"':
		return strings.ReplaceAll(name[1:len(name)-1], `""`, `"`)
	case name[0] == '`' && name[len(name)-1] == '`':
		return strings.ReplaceAll(name[1:len(name)-1], "``", "`")
	}
	return name
}

// splitIdentifier splits a multi-part identifier on dots that are not inside
// a quoted part.
func splitIdentifier(raw string) ([]string, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty identifier", ErrInvalidIdentifier)
	}

	var parts []string
	var current strings.Builder
	var closing byte

	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		if closing != 0 {
			current.WriteByte(ch)
			if ch == closing {
				if i+1 < len(raw) && raw[i+1] == closing {
					current.WriteByte(closing)
					i++
					continue
				}
				closing = 0
			}
			continue
		}
		switch ch {
		case '[':
			closing = ']'
		case '"', '`':
			closing = ch
		case '.':
			parts = append(parts, UnquoteName(current.String()))
			current.Reset()
			continue
		}
		current.WriteByte(ch)
	}
	if closing != 0 {
		return nil, fmt.Errorf("%w: unterminated quoted name in %q", ErrInvalidIdentifier, raw)
	}
	parts = append(parts, UnquoteName(current.String()))
	return parts, nil
}
