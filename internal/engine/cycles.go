package engine

import (
	"context"

	"github.com/roach88/cyclelog/internal/model"
)

// CreateCycle starts a new active cycle, completing any other.
func (e *Engine) CreateCycle(ctx context.Context) (int64, error) {
	return change(ctx, e, "create cycle", func() (int64, error) {
		return e.store.CreateCycle(ctx)
	})
}

// CompleteCycle marks a cycle completed. Completing it again keeps the
// original completion time.
func (e *Engine) CompleteCycle(ctx context.Context, id int64) error {
	return e.mutate(ctx, "complete cycle", func() error {
		return e.store.CompleteCycle(ctx, id)
	})
}

// ActivateCycle makes id the only active cycle.
func (e *Engine) ActivateCycle(ctx context.Context, id int64) error {
	return e.mutate(ctx, "activate cycle", func() error {
		return e.store.ActivateCycle(ctx, id)
	})
}

// DeleteCycle removes a cycle and everything recorded in it.
func (e *Engine) DeleteCycle(ctx context.Context, id int64) error {
	return e.mutate(ctx, "delete cycle", func() error {
		return e.store.DeleteCycle(ctx, id)
	})
}

// CurrentCycleID returns the active cycle, or nil when none is active.
func (e *Engine) CurrentCycleID(ctx context.Context) (*int64, error) {
	return query(e, func() (*int64, error) { return e.store.CurrentCycleID(ctx) })
}

// GetCycle returns one cycle.
func (e *Engine) GetCycle(ctx context.Context, id int64) (model.Cycle, error) {
	return query(e, func() (model.Cycle, error) { return e.store.GetCycle(ctx, id) })
}

// ListCycles returns every cycle, highest number first.
func (e *Engine) ListCycles(ctx context.Context) ([]model.Cycle, error) {
	return query(e, func() ([]model.Cycle, error) { return e.store.ListCycles(ctx) })
}
