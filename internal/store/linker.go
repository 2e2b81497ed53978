package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/cyclelog/internal/model"
)

// resolveLinks decides the intent and problem ids for a new answer.
//
//   - An intent question answered while defining intent is a new anchor:
//     it links to nothing.
//   - A problem question answered while selecting a problem is a new problem
//     anchor: it links to the active intent but never to another problem.
//   - Every other answer links to the active intent and the active problem.
//
// Explicit links always win over resolution, except that anchors never
// carry the link kind they anchor.
func (s *Store) resolveLinks(ctx context.Context, questionID string, situation model.Situation, links Links) (intentID, problemID *int64, err error) {
	switch {
	case situation == model.SituationDefiningIntent && model.IsIntentQuestion(questionID):
		return nil, nil, nil

	case situation == model.SituationSelectingProblem && model.IsProblemQuestion(questionID):
		intentID = links.IntentID
		if intentID == nil {
			intentID, err = s.activeAnchorID(ctx, model.SituationDefiningIntent, model.IntentQuestionPrefix)
			if err != nil {
				return nil, nil, err
			}
		}
		return intentID, nil, nil

	default:
		intentID = links.IntentID
		if intentID == nil {
			intentID, err = s.activeAnchorID(ctx, model.SituationDefiningIntent, model.IntentQuestionPrefix)
			if err != nil {
				return nil, nil, err
			}
		}
		problemID = links.ProblemID
		if problemID == nil {
			problemID, err = s.activeAnchorID(ctx, model.SituationSelectingProblem, model.ProblemQuestionPrefix)
			if err != nil {
				return nil, nil, err
			}
		}
		return intentID, problemID, nil
	}
}

// ActiveIntent returns the most recently answered intent anchor.
func (s *Store) ActiveIntent(ctx context.Context) (model.Answer, error) {
	return s.activeAnchor(ctx, "active intent", model.SituationDefiningIntent, model.IntentQuestionPrefix)
}

// ActiveProblem returns the most recently answered problem anchor.
func (s *Store) ActiveProblem(ctx context.Context) (model.Answer, error) {
	return s.activeAnchor(ctx, "active problem", model.SituationSelectingProblem, model.ProblemQuestionPrefix)
}

func (s *Store) activeAnchor(ctx context.Context, op string, situation model.Situation, prefix string) (model.Answer, error) {
	if err := s.ensureReady(op); err != nil {
		return model.Answer{}, err
	}
	id, err := s.activeAnchorID(ctx, situation, prefix)
	if err != nil {
		return model.Answer{}, fmt.Errorf("%s: %w", op, err)
	}
	if id == nil {
		return model.Answer{}, &Error{Code: CodeNotFound, Op: op, Message: "no anchor answer recorded"}
	}
	return s.GetAnswer(ctx, *id)
}

// activeAnchorID scans answers at situation from newest to oldest and
// returns the first whose question id carries prefix. It is derived on
// every call; nothing is cached.
func (s *Store) activeAnchorID(ctx context.Context, situation model.Situation, prefix string) (*int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question_id
		FROM question_answers
		WHERE situation = ?
		ORDER BY julianday(answered_at) DESC, id DESC
	`, string(situation))
	if err != nil {
		return nil, fmt.Errorf("scan anchors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var questionID string
		if err := rows.Scan(&id, &questionID); err != nil {
			return nil, fmt.Errorf("scan anchors: %w", err)
		}
		if strings.HasPrefix(questionID, prefix) {
			return &id, nil
		}
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scan anchors: %w", err)
	}
	return nil, nil
}
