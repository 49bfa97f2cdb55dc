package merge

import (
	"context"
	"time"

	"sqlmerge/core/reconcile"

	"go.uber.org/zap"
)

// Service runs merges through the engine.
type Service struct {
	engine *reconcile.Engine
	logger *zap.Logger
}

// NewService creates a new merge service.
func NewService(engine *reconcile.Engine, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{engine: engine, logger: logger}
}

// Merge runs req. The outcome is returned alongside the error whenever the
// engine produced a result, so rolled back merges still report their variance.
func (s *Service) Merge(ctx context.Context, req reconcile.Request) (*Outcome, error) {
	start := time.Now()
	result, err := s.engine.Run(ctx, req)
	if result == nil {
		return nil, err
	}
	return &Outcome{
		Target:     req.Target,
		Source:     req.Source,
		Result:     *result,
		DurationMs: time.Since(start).Milliseconds(),
	}, err
}
