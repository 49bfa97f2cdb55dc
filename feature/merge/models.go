package merge

import (
	"strings"

	"sqlmerge/core/database"
	"sqlmerge/core/reconcile"
)

// MergeRequest is the JSON body accepted by the merge endpoints.
type MergeRequest struct {
	Target string `json:"target"`
	Source string `json:"source"`
	// KeyColumns is a comma separated list, e.g. "[Id], [Region]".
	KeyColumns string `json:"key_columns"`
	// Policy is delete (default), update or ignore.
	Policy string `json:"policy"`
	// UpdateExpression is the SET list used by the update policy.
	UpdateExpression  string `json:"update_expression"`
	TargetFilter      string `json:"target_filter"`
	DuplicateTolerant bool   `json:"duplicate_tolerant"`
	AuditTable        string `json:"audit_table"`
	Threshold         string `json:"threshold"`
	DryRun            bool   `json:"dry_run"`
}

// ToRequest converts the body into an engine request.
// #local temporary tables are rejected: they belong to the caller's session,
// which never matches a pooled service connection. ##global tables work.
func (m MergeRequest) ToRequest() (reconcile.Request, error) {
	tables := []struct{ field, value string }{
		{"target", m.Target},
		{"source", m.Source},
		{"audit table", m.AuditTable},
	}
	for _, tbl := range tables {
		if ref, err := database.ParseTableRef(tbl.value); err == nil && ref.SessionScoped() {
			return reconcile.Request{}, &reconcile.ValidationError{
				Field:  tbl.field,
				Value:  tbl.value,
				Reason: "local temporary tables are not visible to the service; use a ##global temporary table",
			}
		}
	}

	keys, err := reconcile.ParseKeyColumns(m.KeyColumns)
	if err != nil {
		return reconcile.Request{}, err
	}
	return reconcile.Request{
		Target:     m.Target,
		Source:     m.Source,
		KeyColumns: keys,
		Policy: reconcile.Policy{
			Kind:       reconcile.PolicyKind(strings.ToLower(strings.TrimSpace(m.Policy))),
			Expression: m.UpdateExpression,
		},
		TargetFilter:      m.TargetFilter,
		DuplicateTolerant: m.DuplicateTolerant,
		AuditTable:        m.AuditTable,
		Threshold:         m.Threshold,
		DryRun:            m.DryRun,
	}, nil
}

// Outcome is the response of a merge, including rejected ones.
type Outcome struct {
	Target string `json:"target"`
	Source string `json:"source"`
	reconcile.Result
	DurationMs int64 `json:"duration_ms"`
}
