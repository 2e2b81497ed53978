package engine

import (
	"context"

	"github.com/roach88/cyclelog/internal/model"
	"github.com/roach88/cyclelog/internal/store"
)

// AddContext pins an answer into a cycle. Repeating a pin is a no-op that
// returns the existing row.
func (e *Engine) AddContext(ctx context.Context, in store.ContextInput) (int64, error) {
	return change(ctx, e, "add context", func() (int64, error) {
		return e.store.AddContext(ctx, in)
	})
}

// PinAnswer pins a stored answer into cycleID, copying its fields.
func (e *Engine) PinAnswer(ctx context.Context, cycleID, answerID int64) (int64, error) {
	const op = "pin answer"
	return change(ctx, e, op, func() (int64, error) {
		a, err := e.store.GetAnswer(ctx, answerID)
		if err != nil {
			return 0, err
		}
		if a.CycleID == nil {
			return 0, &store.Error{Code: store.CodeInvalidInput, Op: op, Entity: "answer", ID: answerID, Message: "answer belongs to no cycle"}
		}
		return e.store.AddContext(ctx, store.ContextInput{
			CycleID:        cycleID,
			SourceCycleID:  *a.CycleID,
			SourceAnswerID: a.ID,
			QuestionID:     a.QuestionID,
			AnswerText:     a.Text,
			Situation:      a.Situation,
		})
	})
}

// RemoveContext unpins a context row.
func (e *Engine) RemoveContext(ctx context.Context, id int64) error {
	return e.mutate(ctx, "remove context", func() error {
		return e.store.RemoveContext(ctx, id)
	})
}

// GetContext returns the answers pinned into a cycle, newest first.
func (e *Engine) GetContext(ctx context.Context, cycleID int64) ([]model.CycleContext, error) {
	return query(e, func() ([]model.CycleContext, error) { return e.store.GetContext(ctx, cycleID) })
}

// PreviousCyclesAnswers groups the text answers of every other cycle.
func (e *Engine) PreviousCyclesAnswers(ctx context.Context, excludingCycleID int64) ([]model.CycleAnswers, error) {
	return query(e, func() ([]model.CycleAnswers, error) {
		return e.store.PreviousCyclesAnswers(ctx, excludingCycleID)
	})
}
