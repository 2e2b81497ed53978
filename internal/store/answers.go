package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/cyclelog/internal/model"
)

// AnswerInput is one answer submission.
type AnswerInput struct {
	QuestionID string
	Situation  model.Situation
	Text       string

	// AnsweredAt defaults to the store clock when zero.
	AnsweredAt time.Time

	// CycleID defaults to the current active cycle when nil.
	CycleID *int64

	// Links overrides automatic relationship linking.
	Links Links
}

// Links holds explicit relationship ids. A nil field means "resolve
// automatically"; a non-nil field is used as given.
type Links struct {
	IntentID  *int64
	ProblemID *int64
	ParentID  *int64
}

const answerColumns = `id, question_id, situation, answer, answered_at, intent_id, problem_id, parent_id, cycle_id`

// RecordAnswer appends an answer and returns its id.
// Intent and problem links are resolved by resolveLinks unless overridden.
func (s *Store) RecordAnswer(ctx context.Context, in AnswerInput) (int64, error) {
	const op = "record answer"
	if err := s.ensureReady(op); err != nil {
		return 0, err
	}
	if in.QuestionID == "" {
		return 0, invalidInput(op, "question id is empty")
	}
	if !in.Situation.Valid() {
		return 0, invalidInput(op, "unknown situation %q", in.Situation)
	}

	answeredAt := in.AnsweredAt
	if answeredAt.IsZero() {
		answeredAt = s.timestamp()
	}

	cycleID := in.CycleID
	if cycleID == nil {
		current, err := s.CurrentCycleID(ctx)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		cycleID = current
	}

	intentID, problemID, err := s.resolveLinks(ctx, in.QuestionID, in.Situation, in.Links)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO question_answers
		(question_id, situation, answer, answered_at, intent_id, problem_id, parent_id, cycle_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		in.QuestionID,
		string(in.Situation),
		in.Text,
		model.FormatTime(answeredAt),
		nullInt(intentID),
		nullInt(problemID),
		nullInt(in.Links.ParentID),
		nullInt(cycleID),
	)
	if err != nil {
		return 0, fmt.Errorf("%s: insert: %w", op, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: last insert id: %w", op, err)
	}
	return id, nil
}

// EditAnswer replaces the text of an existing answer.
func (s *Store) EditAnswer(ctx context.Context, id int64, text string) error {
	const op = "edit answer"
	if err := s.ensureReady(op); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `UPDATE question_answers SET answer = ? WHERE id = ?`, text, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(result, op, "answer", id)
}

// DeleteAnswer removes one answer. Answers that link to it keep their
// (now dangling) references; links are not enforced as foreign keys.
func (s *Store) DeleteAnswer(ctx context.Context, id int64) error {
	const op = "delete answer"
	if err := s.ensureReady(op); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM question_answers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(result, op, "answer", id)
}

// GetAnswer returns one answer by id.
func (s *Store) GetAnswer(ctx context.Context, id int64) (model.Answer, error) {
	const op = "get answer"
	if err := s.ensureReady(op); err != nil {
		return model.Answer{}, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+answerColumns+` FROM question_answers WHERE id = ?`, id)
	a, err := scanAnswer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Answer{}, notFound(op, "answer", id)
	}
	if err != nil {
		return model.Answer{}, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// LatestAnswer returns the most recent answer to a question.
func (s *Store) LatestAnswer(ctx context.Context, questionID string) (model.Answer, error) {
	const op = "latest answer"
	if err := s.ensureReady(op); err != nil {
		return model.Answer{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+answerColumns+`
		FROM question_answers
		WHERE question_id = ?
		ORDER BY julianday(answered_at) DESC, id DESC
		LIMIT 1
	`, questionID)
	a, err := scanAnswer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Answer{}, &Error{Code: CodeNotFound, Op: op, Message: fmt.Sprintf("no answer for question %q", questionID)}
	}
	if err != nil {
		return model.Answer{}, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// AnswerHistory returns every answer to a question, newest first.
func (s *Store) AnswerHistory(ctx context.Context, questionID string) ([]model.Answer, error) {
	return s.queryAnswers(ctx, "answer history", `WHERE question_id = ?`, questionID)
}

// AnswersBySituation returns answers recorded at a situation, newest first,
// optionally restricted to one cycle.
func (s *Store) AnswersBySituation(ctx context.Context, situation model.Situation, cycleID *int64) ([]model.Answer, error) {
	if cycleID == nil {
		return s.queryAnswers(ctx, "answers by situation", `WHERE situation = ?`, string(situation))
	}
	return s.queryAnswers(ctx, "answers by situation", `WHERE situation = ? AND cycle_id = ?`, string(situation), *cycleID)
}

// AnswersByIntent returns every answer linked to an intent anchor.
func (s *Store) AnswersByIntent(ctx context.Context, intentID int64) ([]model.Answer, error) {
	return s.queryAnswers(ctx, "answers by intent", `WHERE intent_id = ?`, intentID)
}

// AnswersByProblem returns every answer linked to a problem anchor.
func (s *Store) AnswersByProblem(ctx context.Context, problemID int64) ([]model.Answer, error) {
	return s.queryAnswers(ctx, "answers by problem", `WHERE problem_id = ?`, problemID)
}

// AnswersByCycle returns every answer recorded in a cycle, newest first.
func (s *Store) AnswersByCycle(ctx context.Context, cycleID int64) ([]model.Answer, error) {
	return s.queryAnswers(ctx, "answers by cycle", `WHERE cycle_id = ?`, cycleID)
}

// ListAnswers returns the whole answer log, newest first.
func (s *Store) ListAnswers(ctx context.Context) ([]model.Answer, error) {
	return s.queryAnswers(ctx, "list answers", "")
}

// queryAnswers runs a filtered answer query with the standard ordering.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) queryAnswers(ctx context.Context, op, where string, args ...any) ([]model.Answer, error) {
	if err := s.ensureReady(op); err != nil {
		return nil, err
	}
	return readAnswers(ctx, s.db, op, `
		SELECT `+answerColumns+`
		FROM question_answers
		`+where+`
		ORDER BY julianday(answered_at) DESC, id DESC
	`, args...)
}

func readAnswers(ctx context.Context, q querier, op, query string, args ...any) ([]model.Answer, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}
	defer rows.Close()

	answers := []model.Answer{}
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		answers = append(answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return answers, nil
}

func scanAnswer(row rowScanner) (model.Answer, error) {
	var a model.Answer
	var situation, answeredAt string
	var intentID, problemID, parentID, cycleID sql.NullInt64

	err := row.Scan(&a.ID, &a.QuestionID, &situation, &a.Text, &answeredAt, &intentID, &problemID, &parentID, &cycleID)
	if err != nil {
		return model.Answer{}, err
	}
	a.Situation = model.Situation(situation)
	a.AnsweredAt, err = parseTime("answered_at", answeredAt)
	if err != nil {
		return model.Answer{}, err
	}
	a.IntentID = intPtr(intentID)
	a.ProblemID = intPtr(problemID)
	a.ParentID = intPtr(parentID)
	a.CycleID = intPtr(cycleID)
	return a, nil
}

// insertAnswerWithID writes an answer keeping its original id and timestamp.
// Used by snapshot restore.
func insertAnswerWithID(ctx context.Context, q querier, a model.Answer) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO question_answers
		(id, question_id, situation, answer, answered_at, intent_id, problem_id, parent_id, cycle_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID,
		a.QuestionID,
		string(a.Situation),
		a.Text,
		model.FormatTime(a.AnsweredAt),
		nullInt(a.IntentID),
		nullInt(a.ProblemID),
		nullInt(a.ParentID),
		nullInt(a.CycleID),
	)
	return err
}

// expectAffected turns a zero-row update or delete into a NOT_FOUND error.
func expectAffected(result sql.Result, op, entity string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return notFound(op, entity, id)
	}
	return nil
}
