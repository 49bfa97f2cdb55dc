package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"sqlmerge/core/database"
)

// State is a step of a live merge.
type State int

const (
	StateIdle State = iota
	StateCounted
	StateExecuting
	StateCommitted
	StateRolledBack
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:       "idle",
	StateCounted:    "counted",
	StateExecuting:  "executing",
	StateCommitted:  "committed",
	StateRolledBack: "rolled back",
	StateFailed:     "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Idle and Counted may fail before a transaction is opened.
var transitions = map[State][]State{
	StateIdle:      {StateCounted, StateFailed},
	StateCounted:   {StateExecuting, StateFailed},
	StateExecuting: {StateCommitted, StateRolledBack, StateFailed},
}

// CanTransition reports whether the executor may move from s to next.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends the merge.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// Executor runs a plan inside a transaction behind the variance gate.
type Executor struct {
	db          *gorm.DB
	recorder    MetadataRecorder
	metadataKey string
	logger      *zap.Logger
	now         func() time.Time
}

// NewExecutor creates an executor. recorder may be nil to skip metadata stamping.
func NewExecutor(db *gorm.DB, recorder MetadataRecorder, metadataKey string, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metadataKey == "" {
		metadataKey = DefaultMetadataKey
	}
	return &Executor{
		db:          db,
		recorder:    recorder,
		metadataKey: metadataKey,
		logger:      logger,
		now:         time.Now,
	}
}

type execution struct {
	state  State
	logger *zap.Logger
}

func (x *execution) moveTo(next State, fields ...zap.Field) error {
	if !x.state.CanTransition(next) {
		return fmt.Errorf("invalid merge state transition %s -> %s", x.state, next)
	}
	x.state = next
	x.logger.Debug("Merge "+next.String(), fields...)
	return nil
}

// Execute runs plan. A VarianceExceededError or ExecutionError is returned
// together with a result describing the rolled back or failed attempt.
// Metadata recording failures are reported through Result.Warning.
func (e *Executor) Execute(ctx context.Context, plan *Plan) (*Result, error) {
	if e.db == nil {
		return nil, &ExecutionError{Stage: "connect", Err: errors.New("no database connection")}
	}
	x := &execution{state: StateIdle, logger: e.logger.With(zap.String("target", plan.Target.String()))}
	result := &Result{}

	fail := func(stage string, err error) (*Result, error) {
		var execErr *ExecutionError
		if !errors.As(err, &execErr) {
			execErr = &ExecutionError{Stage: stage, Err: err}
		}
		_ = x.moveTo(StateFailed)
		result.Status = StatusFailed
		x.logger.Error("Merge failed", zap.String("stage", execErr.Stage), zap.Error(execErr.Err))
		return result, execErr
	}

	if plan.Threshold.Enabled {
		var count int64
		if err := e.db.WithContext(ctx).Raw(plan.CountStatement).Row().Scan(&count); err != nil {
			return fail("count", err)
		}
		plan.PreCount = count
		result.PreCount = count
	}
	if err := x.moveTo(StateCounted, zap.Int64("pre_count", plan.PreCount)); err != nil {
		return fail("count", err)
	}
	if err := ctx.Err(); err != nil {
		return fail("begin", err)
	}

	var decision Decision
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := x.moveTo(StateExecuting); err != nil {
			return err
		}
		res := tx.Exec(plan.Statement)
		if res.Error != nil {
			return &ExecutionError{Stage: "execute", Err: res.Error}
		}
		result.RowsChanged = res.RowsAffected
		decision = Decide(plan.Threshold, plan.PreCount, res.RowsAffected)
		result.Variance = decision.Variance
		result.VarianceChecked = decision.Checked
		if !decision.Commit {
			return &VarianceExceededError{
				Threshold:   plan.Threshold.Percent,
				Variance:    decision.Variance,
				PreCount:    plan.PreCount,
				RowsChanged: res.RowsAffected,
			}
		}
		return nil
	})

	var varianceErr *VarianceExceededError
	switch {
	case err == nil:
		_ = x.moveTo(StateCommitted,
			zap.Int64("rows_changed", result.RowsChanged),
			zap.Float64("variance", result.Variance))
		result.Status = StatusCommitted
	case errors.As(err, &varianceErr):
		_ = x.moveTo(StateRolledBack)
		result.Status = StatusRolledBack
		x.logger.Warn("Merge rolled back",
			zap.Int64("rows_changed", varianceErr.RowsChanged),
			zap.Int64("pre_count", varianceErr.PreCount),
			zap.Float64("variance", varianceErr.Variance),
			zap.Float64("threshold", varianceErr.Threshold))
		return result, varianceErr
	default:
		// begin or commit failures surface here as plain driver errors
		return fail("transaction", err)
	}

	x.logger.Info("Merge committed",
		zap.Int64("rows_changed", result.RowsChanged),
		zap.Int64("pre_count", result.PreCount),
		zap.Float64("variance", result.Variance))

	e.record(ctx, plan.Target, result, x.logger)
	return result, nil
}

func (e *Executor) record(ctx context.Context, target database.TableRef, result *Result, logger *zap.Logger) {
	if e.recorder == nil {
		return
	}
	stamp := e.now().UTC().Format(time.RFC3339)

	err := e.recorder.EnsureProperty(ctx, target, e.metadataKey)
	if err == nil {
		err = e.recorder.SetProperty(ctx, target, e.metadataKey, stamp)
	}
	if err != nil {
		metaErr := &MetadataError{Target: target.String(), Key: e.metadataKey, Err: err}
		result.MetadataErr = metaErr
		result.Warning = metaErr.Error()
		logger.Warn("Failed to record merge metadata", zap.String("key", e.metadataKey), zap.Error(err))
	}
}
