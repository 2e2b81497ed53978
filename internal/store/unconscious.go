package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/cyclelog/internal/model"
)

const periodColumns = `id, started_at, ended_at, entry_reason, exit_reason, previous_cycle_id, next_cycle_id`

// StartUnconsciousPeriod opens a rest period after previousCycleID.
// Only one period may be open at a time; a second start is a CONFLICT.
func (s *Store) StartUnconsciousPeriod(ctx context.Context, previousCycleID *int64, reason *string) (int64, error) {
	const op = "start unconscious period"
	if err := s.ensureReady(op); err != nil {
		return 0, err
	}

	var id int64
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		open, err := openPeriod(ctx, tx)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if open != nil {
			return &Error{
				Code:    CodeConflict,
				Op:      op,
				Entity:  "unconscious period",
				ID:      open.ID,
				Message: "another unconscious period is still open",
			}
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO unconscious_periods (started_at, ended_at, entry_reason, exit_reason, previous_cycle_id, next_cycle_id)
			VALUES (?, NULL, ?, NULL, ?, NULL)
		`, model.FormatTime(s.timestamp()), nullString(reason), nullInt(previousCycleID))
		if err != nil {
			return fmt.Errorf("%s: insert: %w", op, err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("%s: last insert id: %w", op, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	slog.Debug("unconscious period started", "id", id, "previous_cycle_id", previousCycleID)
	return id, nil
}

// EndUnconsciousPeriod closes a period and links it to the cycle that
// follows. A period that has already ended is left untouched.
func (s *Store) EndUnconsciousPeriod(ctx context.Context, id int64, nextCycleID *int64, exitReason *string) error {
	const op = "end unconscious period"
	if err := s.ensureReady(op); err != nil {
		return err
	}

	return s.withTx(ctx, op, func(tx *sql.Tx) error {
		p, err := getPeriod(ctx, tx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(op, "unconscious period", id)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if p.EndedAt != nil {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE unconscious_periods SET ended_at = ?, exit_reason = ?, next_cycle_id = ?
			WHERE id = ?
		`, model.FormatTime(s.timestamp()), nullString(exitReason), nullInt(nextCycleID), id)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
}

// CurrentUnconsciousPeriod returns the open period, or nil.
func (s *Store) CurrentUnconsciousPeriod(ctx context.Context) (*model.UnconsciousPeriod, error) {
	const op = "current unconscious period"
	if err := s.ensureReady(op); err != nil {
		return nil, err
	}
	p, err := openPeriod(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// ListUnconsciousPeriods returns every period, newest first.
func (s *Store) ListUnconsciousPeriods(ctx context.Context) ([]model.UnconsciousPeriod, error) {
	const op = "list unconscious periods"
	if err := s.ensureReady(op); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+periodColumns+` FROM unconscious_periods
		ORDER BY julianday(started_at) DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	periods := []model.UnconsciousPeriod{}
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		periods = append(periods, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return periods, nil
}

func openPeriod(ctx context.Context, q querier) (*model.UnconsciousPeriod, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+periodColumns+` FROM unconscious_periods
		WHERE ended_at IS NULL
		ORDER BY julianday(started_at) DESC, id DESC
		LIMIT 1
	`)
	p, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func getPeriod(ctx context.Context, q querier, id int64) (model.UnconsciousPeriod, error) {
	row := q.QueryRowContext(ctx, `SELECT `+periodColumns+` FROM unconscious_periods WHERE id = ?`, id)
	return scanPeriod(row)
}

func scanPeriod(row rowScanner) (model.UnconsciousPeriod, error) {
	var p model.UnconsciousPeriod
	var startedAt string
	var endedAt, entryReason, exitReason sql.NullString
	var prev, next sql.NullInt64

	if err := row.Scan(&p.ID, &startedAt, &endedAt, &entryReason, &exitReason, &prev, &next); err != nil {
		return model.UnconsciousPeriod{}, err
	}
	var err error
	if p.StartedAt, err = parseTime("started_at", startedAt); err != nil {
		return model.UnconsciousPeriod{}, err
	}
	if p.EndedAt, err = parseNullTime("ended_at", endedAt); err != nil {
		return model.UnconsciousPeriod{}, err
	}
	p.EntryReason = stringPtr(entryReason)
	p.ExitReason = stringPtr(exitReason)
	p.PreviousCycleID = intPtr(prev)
	p.NextCycleID = intPtr(next)
	return p, nil
}
