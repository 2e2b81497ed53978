package engine

import (
	"context"

	"github.com/roach88/cyclelog/internal/model"
)

// SaveSnapshot captures every answer under a snapshot row.
func (e *Engine) SaveSnapshot(ctx context.Context, situation model.Situation, description *string) (int64, error) {
	return change(ctx, e, "save snapshot", func() (int64, error) {
		return e.store.SaveSnapshot(ctx, situation, description)
	})
}

// RestoreSnapshot replaces all answers with the snapshot's and returns the
// situation it was taken in.
func (e *Engine) RestoreSnapshot(ctx context.Context, id int64) (model.Situation, error) {
	return change(ctx, e, "restore snapshot", func() (model.Situation, error) {
		return e.store.RestoreSnapshot(ctx, id)
	})
}

// DeleteSnapshot removes a snapshot.
func (e *Engine) DeleteSnapshot(ctx context.Context, id int64) error {
	return e.mutate(ctx, "delete snapshot", func() error {
		return e.store.DeleteSnapshot(ctx, id)
	})
}

// ListSnapshots returns snapshots, newest first.
func (e *Engine) ListSnapshots(ctx context.Context) ([]model.Snapshot, error) {
	return query(e, func() ([]model.Snapshot, error) { return e.store.ListSnapshots(ctx) })
}

// GetSnapshot returns a snapshot with its decoded answers.
func (e *Engine) GetSnapshot(ctx context.Context, id int64) (model.SnapshotDetails, error) {
	return query(e, func() (model.SnapshotDetails, error) { return e.store.GetSnapshot(ctx, id) })
}
