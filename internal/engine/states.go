package engine

import (
	"context"

	"github.com/roach88/cyclelog/internal/model"
	"github.com/roach88/cyclelog/internal/store"
)

// EnterState records entry into situation, closing the open row.
func (e *Engine) EnterState(ctx context.Context, situation model.Situation, cycleID *int64) (int64, error) {
	return change(ctx, e, "enter state", func() (int64, error) {
		return e.store.RecordStateEntry(ctx, situation, cycleID)
	})
}

// ExitState closes the open row for situation. It reports whether a row
// was closed; nothing is saved when none was open.
func (e *Engine) ExitState(ctx context.Context, situation model.Situation, cycleID *int64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false, ErrClosed
	}
	closed, err := e.store.RecordStateExit(ctx, situation, cycleID)
	if err != nil || !closed {
		return closed, err
	}
	return true, e.persist(ctx, "exit state")
}

// CurrentState returns the open interval for a cycle, or nil.
func (e *Engine) CurrentState(ctx context.Context, cycleID *int64) (*model.StateTransition, error) {
	return query(e, func() (*model.StateTransition, error) { return e.store.CurrentState(ctx, cycleID) })
}

// ListTransitions returns intervals in entry order.
func (e *Engine) ListTransitions(ctx context.Context, filter store.TransitionFilter) ([]model.StateTransition, error) {
	return query(e, func() ([]model.StateTransition, error) { return e.store.ListTransitions(ctx, filter) })
}

// Counter returns one transition counter.
func (e *Engine) Counter(ctx context.Context, key string) (model.TransitionCounter, error) {
	return query(e, func() (model.TransitionCounter, error) { return e.store.Counter(ctx, key) })
}

// ListCounters returns every counter ordered by key.
func (e *Engine) ListCounters(ctx context.Context) ([]model.TransitionCounter, error) {
	return query(e, func() ([]model.TransitionCounter, error) { return e.store.ListCounters(ctx) })
}

// ResetCounter zeroes a transition counter.
func (e *Engine) ResetCounter(ctx context.Context, key string) error {
	return e.mutate(ctx, "reset counter", func() error {
		return e.store.ResetCounter(ctx, key)
	})
}

// StartRest opens an unconscious period.
func (e *Engine) StartRest(ctx context.Context, previousCycleID *int64, reason *string) (int64, error) {
	return change(ctx, e, "start unconscious period", func() (int64, error) {
		return e.store.StartUnconsciousPeriod(ctx, previousCycleID, reason)
	})
}

// EndRest closes an unconscious period.
func (e *Engine) EndRest(ctx context.Context, id int64, nextCycleID *int64, exitReason *string) error {
	return e.mutate(ctx, "end unconscious period", func() error {
		return e.store.EndUnconsciousPeriod(ctx, id, nextCycleID, exitReason)
	})
}

// CurrentRest returns the open unconscious period, or nil.
func (e *Engine) CurrentRest(ctx context.Context) (*model.UnconsciousPeriod, error) {
	return query(e, func() (*model.UnconsciousPeriod, error) { return e.store.CurrentUnconsciousPeriod(ctx) })
}

// ListRests returns every unconscious period, newest first.
func (e *Engine) ListRests(ctx context.Context) ([]model.UnconsciousPeriod, error) {
	return query(e, func() ([]model.UnconsciousPeriod, error) { return e.store.ListUnconsciousPeriods(ctx) })
}
