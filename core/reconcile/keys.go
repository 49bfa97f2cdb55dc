package reconcile

import (
	"fmt"
	"strings"

	"sqlmerge/core/database"
)

// MaxKeyColumns is the largest number of key columns a merge may name.
const MaxKeyColumns = 100

// ParseKeyColumns splits a comma separated key list such as "[Id], [Region]"
// and normalizes it with NormalizeKeyColumns.
func ParseKeyColumns(list string) ([]string, error) {
	var names []string
	var current strings.Builder
	var closing byte

	for i := 0; i < len(list); i++ {
		ch := list[i]
		switch {
		case closing != 0:
			if ch == closing {
				closing = 0
			}
		case ch == '[':
			closing = ']'
		case ch == '"' || ch == '`':
			closing = ch
		case ch == ',':
			names = append(names, current.String())
			current.Reset()
			continue
		}
		current.WriteByte(ch)
	}
	if closing != 0 {
		return nil, &ValidationError{Field: "key columns", Value: list, Reason: "unterminated quoted name"}
	}
	names = append(names, current.String())
	return NormalizeKeyColumns(names)
}

// NormalizeKeyColumns strips decoration from each key name and rejects empty,
// repeated or too many names.
func NormalizeKeyColumns(names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, &ValidationError{Field: "key columns", Reason: "at least one key column is required"}
	}
	if len(names) > MaxKeyColumns {
		return nil, &ValidationError{
			Field:  "key columns",
			Reason: fmt.Sprintf("%d key columns given, the limit is %d", len(names), MaxKeyColumns),
		}
	}

	seen := make(map[string]struct{}, len(names))
	keys := make([]string, 0, len(names))
	for _, raw := range names {
		name := database.UnquoteName(raw)
		if name == "" {
			return nil, &ValidationError{Field: "key column", Value: raw, Reason: "empty name"}
		}
		if _, dup := seen[name]; dup {
			return nil, &ValidationError{Field: "key column", Value: name, Reason: "listed more than once"}
		}
		seen[name] = struct{}{}
		keys = append(keys, name)
	}
	return keys, nil
}
