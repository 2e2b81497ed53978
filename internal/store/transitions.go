package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/cyclelog/internal/model"
)

const transitionColumns = `id, cycle_id, situation, entered_at, exited_at`

// RecordStateEntry opens an interval for situation in a cycle and returns
// its id. cycleID defaults to the current active cycle.
//
// Any interval still open for the cycle is closed at the same instant the
// new one opens, so a cycle never has two open intervals and the closed
// interval's duration is exactly the gap between the two entries. When an
// interval was closed, the from->to transition counter is bumped and the
// edge policy (if any) is consulted first.
func (s *Store) RecordStateEntry(ctx context.Context, situation model.Situation, cycleID *int64) (int64, error) {
	const op = "record state entry"
	if err := s.ensureReady(op); err != nil {
		return 0, err
	}
	if !situation.Valid() {
		return 0, invalidInput(op, "unknown situation %q", situation)
	}
	if cycleID == nil {
		current, err := s.CurrentCycleID(ctx)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		cycleID = current
	}
	now := s.timestamp()
	nowText := model.FormatTime(now)

	var id int64
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		open, err := openTransition(ctx, tx, cycleID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if open != nil && s.policy != nil && !s.policy.Allows(open.Situation, situation) {
			if s.policy.Strict() {
				return invalidInput(op, "transition %s is not allowed", model.TransitionKey(open.Situation, situation))
			}
			slog.Warn("transition not in policy",
				"from", open.Situation,
				"to", situation,
				"cycle_id", cycleID,
			)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE state_transitions SET exited_at = ?
			WHERE cycle_id IS ? AND exited_at IS NULL
		`, nowText, nullInt(cycleID)); err != nil {
			return fmt.Errorf("%s: close open interval: %w", op, err)
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO state_transitions (cycle_id, situation, entered_at, exited_at)
			VALUES (?, ?, ?, NULL)
		`, nullInt(cycleID), string(situation), nowText)
		if err != nil {
			return fmt.Errorf("%s: insert: %w", op, err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("%s: last insert id: %w", op, err)
		}

		if open != nil {
			if _, err := incrementCounter(ctx, tx, model.TransitionKey(open.Situation, situation), nowText); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	slog.Debug("state entered", "situation", situation, "cycle_id", cycleID, "transition_id", id)
	return id, nil
}

// RecordStateExit closes the most recent open interval for situation in a
// cycle. It reports whether an interval was closed; having nothing open is
// not an error.
func (s *Store) RecordStateExit(ctx context.Context, situation model.Situation, cycleID *int64) (bool, error) {
	const op = "record state exit"
	if err := s.ensureReady(op); err != nil {
		return false, err
	}
	if cycleID == nil {
		current, err := s.CurrentCycleID(ctx)
		if err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		cycleID = current
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE state_transitions SET exited_at = ?
		WHERE id = (
			SELECT id FROM state_transitions
			WHERE situation = ? AND cycle_id IS ? AND exited_at IS NULL
			ORDER BY julianday(entered_at) DESC, id DESC
			LIMIT 1
		)
	`, model.FormatTime(s.timestamp()), string(situation), nullInt(cycleID))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: rows affected: %w", op, err)
	}
	return n > 0, nil
}

// CurrentState returns the open interval for a cycle, or nil when the
// cycle is not in any situation. cycleID defaults to the active cycle.
func (s *Store) CurrentState(ctx context.Context, cycleID *int64) (*model.StateTransition, error) {
	const op = "current state"
	if err := s.ensureReady(op); err != nil {
		return nil, err
	}
	if cycleID == nil {
		current, err := s.CurrentCycleID(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		cycleID = current
	}
	t, err := openTransition(ctx, s.db, cycleID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// TransitionFilter restricts ListTransitions. A nil CycleID lists all cycles.
type TransitionFilter struct {
	CycleID *int64
}

// ListTransitions returns intervals in the order they were entered.
func (s *Store) ListTransitions(ctx context.Context, filter TransitionFilter) ([]model.StateTransition, error) {
	const op = "list transitions"
	if err := s.ensureReady(op); err != nil {
		return nil, err
	}
	query := `SELECT ` + transitionColumns + ` FROM state_transitions`
	var args []any
	if filter.CycleID != nil {
		query += ` WHERE cycle_id = ?`
		args = append(args, *filter.CycleID)
	}
	query += ` ORDER BY julianday(entered_at) ASC, id ASC`
	return readTransitions(ctx, s.db, op, query, args...)
}

// openTransition returns the open interval for a cycle (NULL cycle included).
func openTransition(ctx context.Context, q querier, cycleID *int64) (*model.StateTransition, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+transitionColumns+`
		FROM state_transitions
		WHERE cycle_id IS ? AND exited_at IS NULL
		ORDER BY julianday(entered_at) DESC, id DESC
		LIMIT 1
	`, nullInt(cycleID))
	t, err := scanTransition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open transition: %w", err)
	}
	return &t, nil
}

func readTransitions(ctx context.Context, q querier, op, query string, args ...any) ([]model.StateTransition, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}
	defer rows.Close()

	transitions := []model.StateTransition{}
	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		transitions = append(transitions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return transitions, nil
}

func scanTransition(row rowScanner) (model.StateTransition, error) {
	var t model.StateTransition
	var cycleID sql.NullInt64
	var situation, enteredAt string
	var exitedAt sql.NullString

	if err := row.Scan(&t.ID, &cycleID, &situation, &enteredAt, &exitedAt); err != nil {
		return model.StateTransition{}, err
	}
	var err error
	t.CycleID = intPtr(cycleID)
	t.Situation = model.Situation(situation)
	if t.EnteredAt, err = parseTime("entered_at", enteredAt); err != nil {
		return model.StateTransition{}, err
	}
	if t.ExitedAt, err = parseNullTime("exited_at", exitedAt); err != nil {
		return model.StateTransition{}, err
	}
	return t, nil
}
