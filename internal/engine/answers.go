package engine

import (
	"context"

	"github.com/roach88/cyclelog/internal/model"
	"github.com/roach88/cyclelog/internal/store"
)

// RecordAnswer records an answer with automatic relationship linking.
func (e *Engine) RecordAnswer(ctx context.Context, in store.AnswerInput) (int64, error) {
	return change(ctx, e, "record answer", func() (int64, error) {
		return e.store.RecordAnswer(ctx, in)
	})
}

// EditAnswer replaces an answer's text.
func (e *Engine) EditAnswer(ctx context.Context, id int64, text string) error {
	return e.mutate(ctx, "edit answer", func() error {
		return e.store.EditAnswer(ctx, id, text)
	})
}

// DeleteAnswer removes one answer.
func (e *Engine) DeleteAnswer(ctx context.Context, id int64) error {
	return e.mutate(ctx, "delete answer", func() error {
		return e.store.DeleteAnswer(ctx, id)
	})
}

// GetAnswer returns one answer.
func (e *Engine) GetAnswer(ctx context.Context, id int64) (model.Answer, error) {
	return query(e, func() (model.Answer, error) { return e.store.GetAnswer(ctx, id) })
}

// LatestAnswer returns the most recent answer to questionID.
func (e *Engine) LatestAnswer(ctx context.Context, questionID string) (model.Answer, error) {
	return query(e, func() (model.Answer, error) { return e.store.LatestAnswer(ctx, questionID) })
}

// AnswerHistory returns every answer to questionID, newest first.
func (e *Engine) AnswerHistory(ctx context.Context, questionID string) ([]model.Answer, error) {
	return query(e, func() ([]model.Answer, error) { return e.store.AnswerHistory(ctx, questionID) })
}

// AnswersBySituation lists answers recorded at situation, optionally in one cycle.
func (e *Engine) AnswersBySituation(ctx context.Context, situation model.Situation, cycleID *int64) ([]model.Answer, error) {
	return query(e, func() ([]model.Answer, error) { return e.store.AnswersBySituation(ctx, situation, cycleID) })
}

// AnswersByIntent lists answers linked to an intent.
func (e *Engine) AnswersByIntent(ctx context.Context, intentID int64) ([]model.Answer, error) {
	return query(e, func() ([]model.Answer, error) { return e.store.AnswersByIntent(ctx, intentID) })
}

// AnswersByProblem lists answers linked to a problem.
func (e *Engine) AnswersByProblem(ctx context.Context, problemID int64) ([]model.Answer, error) {
	return query(e, func() ([]model.Answer, error) { return e.store.AnswersByProblem(ctx, problemID) })
}

// AnswersByCycle lists the answers recorded in a cycle.
func (e *Engine) AnswersByCycle(ctx context.Context, cycleID int64) ([]model.Answer, error) {
	return query(e, func() ([]model.Answer, error) { return e.store.AnswersByCycle(ctx, cycleID) })
}

// ListAnswers returns every answer, newest first.
func (e *Engine) ListAnswers(ctx context.Context) ([]model.Answer, error) {
	return query(e, func() ([]model.Answer, error) { return e.store.ListAnswers(ctx) })
}

// ActiveIntent returns the intent answers are currently linked to.
func (e *Engine) ActiveIntent(ctx context.Context) (model.Answer, error) {
	return query(e, func() (model.Answer, error) { return e.store.ActiveIntent(ctx) })
}

// ActiveProblem returns the problem answers are currently linked to.
func (e *Engine) ActiveProblem(ctx context.Context) (model.Answer, error) {
	return query(e, func() (model.Answer, error) { return e.store.ActiveProblem(ctx) })
}
