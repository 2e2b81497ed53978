package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/cyclelog/internal/model"
)

const cycleColumns = `id, cycle_number, started_at, completed_at, status, unconscious_entered_at, unconscious_exited_at, unconscious_entry_reason`

// CreateCycle starts a new active cycle numbered max(existing)+1.
// Any other active cycle is completed in the same transaction so that at
// most one cycle is ever active.
func (s *Store) CreateCycle(ctx context.Context) (int64, error) {
	const op = "create cycle"
	if err := s.ensureReady(op); err != nil {
		return 0, err
	}
	now := model.FormatTime(s.timestamp())

	var id int64
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		var next int64
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(cycle_number), 0) + 1 FROM cycles`).Scan(&next); err != nil {
			return fmt.Errorf("%s: next number: %w", op, err)
		}
		if err := completeActive(ctx, tx, now, 0); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		result, err := tx.ExecContext(ctx, `
			INSERT INTO cycles (cycle_number, started_at, completed_at, status)
			VALUES (?, ?, NULL, ?)
		`, next, now, string(model.CycleActive))
		if err != nil {
			return fmt.Errorf("%s: insert: %w", op, err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("%s: last insert id: %w", op, err)
		}
		slog.Debug("cycle created", "id", id, "cycle_number", next)
		return nil
	})
	return id, err
}

// CompleteCycle marks a cycle completed. Completing an already completed
// cycle is a no-op that keeps the original completed_at.
func (s *Store) CompleteCycle(ctx context.Context, id int64) error {
	const op = "complete cycle"
	if err := s.ensureReady(op); err != nil {
		return err
	}
	c, err := s.GetCycle(ctx, id)
	if err != nil {
		return err
	}
	if c.Status == model.CycleCompleted && c.CompletedAt != nil {
		return nil
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE cycles SET status = ?, completed_at = ? WHERE id = ?
	`, string(model.CycleCompleted), model.FormatTime(s.timestamp()), id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ActivateCycle makes id the only active cycle. Other active cycles are
// completed; a previously completed target is reopened with completed_at
// cleared.
func (s *Store) ActivateCycle(ctx context.Context, id int64) error {
	const op = "activate cycle"
	if err := s.ensureReady(op); err != nil {
		return err
	}
	now := model.FormatTime(s.timestamp())

	return s.withTx(ctx, op, func(tx *sql.Tx) error {
		var exists int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM cycles WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(op, "cycle", id)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if err := completeActive(ctx, tx, now, id); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE cycles SET status = ?, completed_at = NULL WHERE id = ?
		`, string(model.CycleActive), id)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
}

// completeActive completes every active cycle except keep.
func completeActive(ctx context.Context, q querier, now string, keep int64) error {
	_, err := q.ExecContext(ctx, `
		UPDATE cycles SET status = ?, completed_at = ?
		WHERE status = ? AND id != ?
	`, string(model.CycleCompleted), now, string(model.CycleActive), keep)
	if err != nil {
		return fmt.Errorf("complete active cycles: %w", err)
	}
	return nil
}

// CurrentCycleID returns the active cycle with the highest number, or nil.
func (s *Store) CurrentCycleID(ctx context.Context) (*int64, error) {
	const op = "current cycle"
	if err := s.ensureReady(op); err != nil {
		return nil, err
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM cycles
		WHERE status = ?
		ORDER BY cycle_number DESC, id DESC
		LIMIT 1
	`, string(model.CycleActive)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &id, nil
}

// GetCycle returns one cycle by id.
func (s *Store) GetCycle(ctx context.Context, id int64) (model.Cycle, error) {
	const op = "get cycle"
	if err := s.ensureReady(op); err != nil {
		return model.Cycle{}, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+cycleColumns+` FROM cycles WHERE id = ?`, id)
	c, err := scanCycle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Cycle{}, notFound(op, "cycle", id)
	}
	if err != nil {
		return model.Cycle{}, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// ListCycles returns every cycle, highest number first.
func (s *Store) ListCycles(ctx context.Context) ([]model.Cycle, error) {
	const op = "list cycles"
	if err := s.ensureReady(op); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+cycleColumns+` FROM cycles ORDER BY cycle_number DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	cycles := []model.Cycle{}
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return cycles, nil
}

// DeleteCycle removes a cycle and everything recorded in it: answers,
// state transitions and context rows (both pinned into and pinned from the
// cycle). Unconscious periods survive with their cycle reference cleared.
// Not undoable.
func (s *Store) DeleteCycle(ctx context.Context, id int64) error {
	const op = "delete cycle"
	if err := s.ensureReady(op); err != nil {
		return err
	}

	return s.withTx(ctx, op, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM cycles WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if err := expectAffected(result, op, "cycle", id); err != nil {
			return err
		}

		cascade := []string{
			`DELETE FROM question_answers WHERE cycle_id = ?`,
			`DELETE FROM state_transitions WHERE cycle_id = ?`,
			`DELETE FROM cycle_context WHERE cycle_id = ?1 OR source_cycle_id = ?1`,
			`UPDATE unconscious_periods SET previous_cycle_id = NULL WHERE previous_cycle_id = ?`,
			`UPDATE unconscious_periods SET next_cycle_id = NULL WHERE next_cycle_id = ?`,
		}
		for _, stmt := range cascade {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("%s: cascade: %w", op, err)
			}
		}
		slog.Info("cycle deleted", "id", id)
		return nil
	})
}

func scanCycle(row rowScanner) (model.Cycle, error) {
	var c model.Cycle
	var startedAt, status string
	var completedAt, unconsciousEntered, unconsciousExited, unconsciousReason sql.NullString

	err := row.Scan(&c.ID, &c.Number, &startedAt, &completedAt, &status, &unconsciousEntered, &unconsciousExited, &unconsciousReason)
	if err != nil {
		return model.Cycle{}, err
	}
	c.Status = model.CycleStatus(status)
	if c.StartedAt, err = parseTime("started_at", startedAt); err != nil {
		return model.Cycle{}, err
	}
	if c.CompletedAt, err = parseNullTime("completed_at", completedAt); err != nil {
		return model.Cycle{}, err
	}
	if c.UnconsciousEnteredAt, err = parseNullTime("unconscious_entered_at", unconsciousEntered); err != nil {
		return model.Cycle{}, err
	}
	if c.UnconsciousExitedAt, err = parseNullTime("unconscious_exited_at", unconsciousExited); err != nil {
		return model.Cycle{}, err
	}
	c.UnconsciousEntryReason = stringPtr(unconsciousReason)
	return c, nil
}
