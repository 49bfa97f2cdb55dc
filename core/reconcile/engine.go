package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"sqlmerge/core/database"
)

// Engine synthesizes and executes merges.
// It holds no state between invocations.
type Engine struct {
	resolver SchemaResolver
	executor *Executor
	cfg      Config
	logger   *zap.Logger
}

// NewEngine creates an engine. recorder may be nil to skip metadata stamping.
func NewEngine(db *gorm.DB, resolver SchemaResolver, recorder MetadataRecorder, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		resolver: resolver,
		executor: NewExecutor(db, recorder, cfg.MetadataKey, logger),
		cfg:      cfg,
		logger:   logger,
	}
}

// Run plans the merge and, unless req.DryRun is set, executes it.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	plan, err := e.Plan(ctx, req)
	if err != nil {
		return nil, err
	}
	if plan.DryRun {
		return &Result{
			Status:           StatusDryRun,
			Statement:        plan.Statement,
			AuditTableScript: plan.AuditTableScript,
		}, nil
	}
	return e.executor.Execute(ctx, plan)
}

// Plan validates req, resolves both tables and assembles the statement.
// Nothing is executed.
func (e *Engine) Plan(ctx context.Context, req Request) (*Plan, error) {
	v, err := e.validate(req)
	if err != nil {
		return nil, err
	}

	sourceCols, err := e.resolve(ctx, SideSource, v.source)
	if err != nil {
		return nil, err
	}
	targetCols, err := e.resolve(ctx, SideTarget, v.target)
	if err != nil {
		return nil, err
	}

	cols, err := Reconcile(sourceCols, targetCols, v.keys)
	if err != nil {
		var schemaErr *SchemaError
		if errors.As(err, &schemaErr) {
			schemaErr.Table = v.tableFor(schemaErr.Side).String()
		}
		return nil, err
	}

	keys := cols.Keys()
	clauses := Synthesize(cols, req.Policy, v.audit)
	stmt, err := Assemble(Assembly{
		Target:            v.target,
		Source:            v.source,
		Filter:            strings.TrimSpace(req.TargetFilter),
		DuplicateTolerant: req.DuplicateTolerant,
		Keys:              keys,
		Predicate:         BuildJoinPredicate(keys, req.DuplicateTolerant),
		Clauses:           clauses,
	})
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Statement:      stmt.Text,
		CountStatement: stmt.CountText,
		Target:         v.target,
		Threshold:      v.threshold,
		Columns:        cols,
		DryRun:         req.DryRun,
	}
	if req.DryRun {
		plan.AuditTableScript = AuditTableScript(auditProjection(clauses, keys, v.target))
	}

	e.logger.Debug("Merge statement assembled",
		zap.String("target", v.target.String()),
		zap.String("source", v.source.String()),
		zap.Int("keys", len(keys)),
		zap.Int("shared_columns", len(cols.Shared())),
		zap.Bool("dry_run", req.DryRun))
	return plan, nil
}

// auditProjection returns the requested audit projection, or a default one
// next to the target when none was requested.
func auditProjection(clauses Clauses, keys []ColumnDescriptor, target database.TableRef) *OutputClause {
	if clauses.Output != nil {
		return clauses.Output
	}
	out := &OutputClause{Destination: target.WithSuffix(DefaultAuditSuffix), Keys: keys}
	if clauses.Update != nil {
		out.Images = clauses.Update.Columns
	}
	return out
}

func (e *Engine) resolve(ctx context.Context, side Side, table database.TableRef) ([]database.ColumnInfo, error) {
	cols, err := e.resolver.Resolve(ctx, table)
	if err != nil {
		if errors.Is(err, database.ErrTableNotFound) || errors.Is(err, database.ErrIntrospectionUnavailable) {
			return nil, &SchemaError{Side: side, Table: table.String(), Err: err}
		}
		return nil, fmt.Errorf("failed to resolve %s table %s: %w", side, table, err)
	}
	return cols, nil
}

type validatedRequest struct {
	target    database.TableRef
	source    database.TableRef
	audit     *database.TableRef
	keys      []string
	threshold Threshold
}

func (v *validatedRequest) tableFor(side Side) database.TableRef {
	if side == SideSource {
		return v.source
	}
	return v.target
}

func (e *Engine) validate(req Request) (*validatedRequest, error) {
	v := &validatedRequest{}
	var err error

	if v.target, err = parseTable("target", req.Target); err != nil {
		return nil, err
	}
	if v.source, err = parseTable("source", req.Source); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.AuditTable) != "" {
		audit, err := parseTable("audit table", req.AuditTable)
		if err != nil {
			return nil, err
		}
		v.audit = &audit
	}

	if v.keys, err = NormalizeKeyColumns(req.KeyColumns); err != nil {
		return nil, err
	}
	for _, key := range v.keys {
		if err := screenIdentifier("key column", key); err != nil {
			return nil, err
		}
	}

	raw := req.Threshold
	if strings.TrimSpace(raw) == "" {
		raw = e.cfg.DefaultThreshold
	}
	if v.threshold, err = ParseThreshold(raw); err != nil {
		return nil, err
	}

	switch req.Policy.kind() {
	case PolicyDelete, PolicyIgnore:
	case PolicyUpdate:
		if strings.TrimSpace(req.Policy.Expression) == "" {
			return nil, &ValidationError{Field: "policy", Value: string(PolicyUpdate), Reason: "an update expression is required"}
		}
	default:
		return nil, &ValidationError{Field: "policy", Value: string(req.Policy.Kind), Reason: "expected delete, update or ignore"}
	}
	return v, nil
}

func parseTable(field, raw string) (database.TableRef, error) {
	ref, err := database.ParseTableRef(raw)
	if err != nil {
		return database.TableRef{}, &ValidationError{
			Field:  field,
			Value:  raw,
			Reason: "must be fully qualified as database.schema.table unless it is a #temporary table",
			Err:    err,
		}
	}
	for _, part := range ref.Parts() {
		// # is a comment marker in MySQL syntax
		if err := screenIdentifier(field, strings.TrimLeft(part, "#")); err != nil {
			return database.TableRef{}, err
		}
	}
	return ref, nil
}
