package engine

import (
	"context"

	"github.com/roach88/cyclelog/internal/model"
	"github.com/roach88/cyclelog/internal/store"
)

// DailyStatistics returns conscious and unconscious minutes per date.
func (e *Engine) DailyStatistics(ctx context.Context, r store.DateRange) ([]model.DailyStat, error) {
	return query(e, func() ([]model.DailyStat, error) { return e.store.DailyStatistics(ctx, r) })
}

// StateTimeStatistics summarises closed intervals per situation.
func (e *Engine) StateTimeStatistics(ctx context.Context, r store.DateRange, cycleID *int64) ([]model.StateStat, error) {
	return query(e, func() ([]model.StateStat, error) { return e.store.StateTimeStatistics(ctx, r, cycleID) })
}

// DailyStateStatistics returns minutes per date and situation.
func (e *Engine) DailyStateStatistics(ctx context.Context, r store.DateRange) ([]model.DailyStateStat, error) {
	return query(e, func() ([]model.DailyStateStat, error) { return e.store.DailyStateStatistics(ctx, r) })
}
