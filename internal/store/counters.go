package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cyclelog/internal/model"
)

// MaxTransitionCount is the ceiling at which transition counters saturate.
const MaxTransitionCount int64 = 1<<31 - 1

// IncrementCounter bumps the counter for key, creating it at 1.
// Returns the new count.
func (s *Store) IncrementCounter(ctx context.Context, key string) (int64, error) {
	const op = "increment counter"
	if err := s.ensureReady(op); err != nil {
		return 0, err
	}
	if key == "" {
		return 0, invalidInput(op, "transition key is empty")
	}
	n, err := incrementCounter(ctx, s.db, key, model.FormatTime(s.timestamp()))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func incrementCounter(ctx context.Context, q querier, key, now string) (int64, error) {
	_, err := q.ExecContext(ctx, `
		INSERT INTO transition_counters (transition_key, count, last_reset_at, updated_at)
		VALUES (?, 1, NULL, ?)
		ON CONFLICT(transition_key) DO UPDATE SET
			count = MIN(count + 1, ?),
			updated_at = excluded.updated_at
	`, key, now, MaxTransitionCount)
	if err != nil {
		return 0, fmt.Errorf("upsert counter %q: %w", key, err)
	}
	var count int64
	if err := q.QueryRowContext(ctx, `SELECT count FROM transition_counters WHERE transition_key = ?`, key).Scan(&count); err != nil {
		return 0, fmt.Errorf("read counter %q: %w", key, err)
	}
	return count, nil
}

// Counter returns the counter for key.
func (s *Store) Counter(ctx context.Context, key string) (model.TransitionCounter, error) {
	const op = "get counter"
	if err := s.ensureReady(op); err != nil {
		return model.TransitionCounter{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT transition_key, count, last_reset_at, updated_at
		FROM transition_counters WHERE transition_key = ?
	`, key)
	c, err := scanCounter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TransitionCounter{}, &Error{Code: CodeNotFound, Op: op, Message: fmt.Sprintf("no counter %q", key)}
	}
	if err != nil {
		return model.TransitionCounter{}, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// ResetCounter sets a counter back to zero and records the reset time.
func (s *Store) ResetCounter(ctx context.Context, key string) error {
	const op = "reset counter"
	if err := s.ensureReady(op); err != nil {
		return err
	}
	now := model.FormatTime(s.timestamp())
	result, err := s.db.ExecContext(ctx, `
		UPDATE transition_counters SET count = 0, last_reset_at = ?, updated_at = ?
		WHERE transition_key = ?
	`, now, now, key)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return &Error{Code: CodeNotFound, Op: op, Message: fmt.Sprintf("no counter %q", key)}
	}
	return nil
}

// ListCounters returns every counter ordered by key.
func (s *Store) ListCounters(ctx context.Context) ([]model.TransitionCounter, error) {
	const op = "list counters"
	if err := s.ensureReady(op); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT transition_key, count, last_reset_at, updated_at
		FROM transition_counters ORDER BY transition_key ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	counters := []model.TransitionCounter{}
	for rows.Next() {
		c, err := scanCounter(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		counters = append(counters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return counters, nil
}

func scanCounter(row rowScanner) (model.TransitionCounter, error) {
	var c model.TransitionCounter
	var lastReset sql.NullString
	var updatedAt string
	if err := row.Scan(&c.Key, &c.Count, &lastReset, &updatedAt); err != nil {
		return model.TransitionCounter{}, err
	}
	var err error
	if c.LastResetAt, err = parseNullTime("last_reset_at", lastReset); err != nil {
		return model.TransitionCounter{}, err
	}
	if c.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return model.TransitionCounter{}, err
	}
	return c, nil
}
