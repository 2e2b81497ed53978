package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cyclelog/internal/model"
)

// ContextInput pins a historical answer into a cycle.
type ContextInput struct {
	CycleID        int64
	SourceCycleID  int64
	SourceAnswerID int64
	QuestionID     string
	AnswerText     string
	Situation      model.Situation
}

const contextColumns = `id, cycle_id, source_cycle_id, source_answer_id, question_id, answer_text, situation, added_at`

// AddContext pins an answer into a cycle and returns the row id.
// Pinning the same source answer twice returns the existing row.
func (s *Store) AddContext(ctx context.Context, in ContextInput) (int64, error) {
	const op = "add context"
	if err := s.ensureReady(op); err != nil {
		return 0, err
	}
	if in.QuestionID == "" {
		return 0, invalidInput(op, "question id is empty")
	}
	if !in.Situation.Valid() {
		return 0, invalidInput(op, "unknown situation %q", in.Situation)
	}

	var id int64
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM cycle_context WHERE cycle_id = ? AND source_answer_id = ?
		`, in.CycleID, in.SourceAnswerID).Scan(&id)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: lookup: %w", op, err)
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO cycle_context (cycle_id, source_cycle_id, source_answer_id, question_id, answer_text, situation, added_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, in.CycleID, in.SourceCycleID, in.SourceAnswerID, in.QuestionID, in.AnswerText, string(in.Situation),
			model.FormatTime(s.timestamp()))
		if err != nil {
			return fmt.Errorf("%s: insert: %w", op, err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("%s: last insert id: %w", op, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// RemoveContext unpins a context row.
func (s *Store) RemoveContext(ctx context.Context, id int64) error {
	const op = "remove context"
	if err := s.ensureReady(op); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM cycle_context WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(result, op, "context", id)
}

// GetContext returns the answers pinned into a cycle, most recently added first.
func (s *Store) GetContext(ctx context.Context, cycleID int64) ([]model.CycleContext, error) {
	const op = "get context"
	if err := s.ensureReady(op); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contextColumns+` FROM cycle_context
		WHERE cycle_id = ?
		ORDER BY julianday(added_at) DESC, id DESC
	`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	items := []model.CycleContext{}
	for rows.Next() {
		var c model.CycleContext
		var situation, addedAt string
		if err := rows.Scan(&c.ID, &c.CycleID, &c.SourceCycleID, &c.SourceAnswerID, &c.QuestionID, &c.AnswerText, &situation, &addedAt); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		c.Situation = model.Situation(situation)
		if c.AddedAt, err = parseTime("added_at", addedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return items, nil
}

// PreviousCyclesAnswers returns the non-boolean answers of every cycle other
// than excludingCycleID, grouped by cycle with the newest cycle first.
// Cycles without such answers are omitted.
func (s *Store) PreviousCyclesAnswers(ctx context.Context, excludingCycleID int64) ([]model.CycleAnswers, error) {
	const op = "previous cycles answers"
	if err := s.ensureReady(op); err != nil {
		return nil, err
	}
	cycles, err := s.ListCycles(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	groups := []model.CycleAnswers{}
	for _, c := range cycles {
		if c.ID == excludingCycleID {
			continue
		}
		answers, err := readAnswers(ctx, s.db, op, `
			SELECT `+answerColumns+` FROM question_answers
			WHERE cycle_id = ? AND answer NOT IN ('true', 'false')
			ORDER BY julianday(answered_at) DESC, id DESC
		`, c.ID)
		if err != nil {
			return nil, err
		}
		if len(answers) == 0 {
			continue
		}
		groups = append(groups, model.CycleAnswers{CycleID: c.ID, CycleNumber: c.Number, Answers: answers})
	}
	return groups, nil
}
