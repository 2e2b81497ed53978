package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cyclelog/internal/model"
)

func TestRecordAnswer_Validation(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	_, err := s.RecordAnswer(ctx, AnswerInput{Situation: model.SituationPlanning, Text: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.RecordAnswer(ctx, AnswerInput{QuestionID: "q", Situation: "Daydreaming", Text: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecordAnswer_DefaultsToCurrentCycle(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	noCycle := recordAnswer(t, s, "q1", model.SituationPlanning, "before")
	cycleID, err := s.CreateCycle(ctx)
	require.NoError(t, err)
	inCycle := recordAnswer(t, s, "q1", model.SituationPlanning, "after")

	a, err := s.GetAnswer(ctx, noCycle)
	require.NoError(t, err)
	assert.Nil(t, a.CycleID)

	a, err = s.GetAnswer(ctx, inCycle)
	require.NoError(t, err)
	require.NotNil(t, a.CycleID)
	assert.Equal(t, cycleID, *a.CycleID)
}

func TestLatestAnswer_MostRecentWins(t *testing.T) {
	s, clock := createTestStore(t)
	ctx := context.Background()

	recordAnswer(t, s, "plan_scope", model.SituationPlanning, "small")
	clock.Advance(time.Minute)
	recordAnswer(t, s, "plan_scope", model.SituationPlanning, "medium")
	clock.Advance(time.Minute)
	recordAnswer(t, s, "other", model.SituationPlanning, "unrelated")

	latest, err := s.LatestAnswer(ctx, "plan_scope")
	require.NoError(t, err)
	assert.Equal(t, "medium", latest.Text)
	assert.Equal(t, "2024-01-01T09:01:00.000Z", model.FormatTime(latest.AnsweredAt))
}

func TestLatestAnswer_TieBreaksOnID(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	recordAnswer(t, s, "q", model.SituationPlanning, "first")
	second := recordAnswer(t, s, "q", model.SituationPlanning, "second")

	latest, err := s.LatestAnswer(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, second, latest.ID)
}

func TestLatestAnswer_NotFound(t *testing.T) {
	s, _ := createTestStore(t)

	_, err := s.LatestAnswer(context.Background(), "never")
	assert.True(t, IsNotFound(err))
}

func TestRecordAnswer_ExplicitTimestampIsKept(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	at := time.Date(2023, 12, 31, 23, 59, 59, 123_456_789, time.UTC)

	id, err := s.RecordAnswer(ctx, AnswerInput{
		QuestionID: "q",
		Situation:  model.SituationReflecting,
		Text:       model.BoolText(true),
		AnsweredAt: at,
	})
	require.NoError(t, err)

	a, err := s.GetAnswer(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "2023-12-31T23:59:59.123Z", model.FormatTime(a.AnsweredAt))
	assert.True(t, a.IsBoolean())
}

func TestAnswerHistory_NewestFirst(t *testing.T) {
	s, clock := createTestStore(t)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		recordAnswer(t, s, "q", model.SituationResearching, text)
		clock.Advance(time.Second)
	}

	history, err := s.AnswerHistory(ctx, "q")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "three", history[0].Text)
	assert.Equal(t, "two", history[1].Text)
	assert.Equal(t, "one", history[2].Text)
}

func TestEditAndDeleteAnswer(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	id := recordAnswer(t, s, "q", model.SituationPlanning, "draft")

	require.NoError(t, s.EditAnswer(ctx, id, "final"))
	a, err := s.GetAnswer(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "final", a.Text)

	require.NoError(t, s.DeleteAnswer(ctx, id))
	_, err = s.GetAnswer(ctx, id)
	assert.True(t, IsNotFound(err))

	assert.True(t, IsNotFound(s.EditAnswer(ctx, id, "again")))
	assert.True(t, IsNotFound(s.DeleteAnswer(ctx, id)))
}

func TestAnswersBySituation_OptionalCycleFilter(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	first, err := s.CreateCycle(ctx)
	require.NoError(t, err)
	recordAnswer(t, s, "q", model.SituationPlanning, "cycle one")
	second, err := s.CreateCycle(ctx)
	require.NoError(t, err)
	recordAnswer(t, s, "q", model.SituationPlanning, "cycle two")
	recordAnswer(t, s, "q", model.SituationVerifying, "elsewhere")

	all, err := s.AnswersBySituation(ctx, model.SituationPlanning, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyFirst, err := s.AnswersBySituation(ctx, model.SituationPlanning, &first)
	require.NoError(t, err)
	require.Len(t, onlyFirst, 1)
	assert.Equal(t, "cycle one", onlyFirst[0].Text)

	bySecond, err := s.AnswersByCycle(ctx, second)
	require.NoError(t, err)
	assert.Len(t, bySecond, 2)
}

func TestLinking_IntentAndProblemScenario(t *testing.T) {
	s, clock := createTestStore(t)
	ctx := context.Background()

	intent := recordAnswer(t, s, "intent_goal", model.SituationDefiningIntent, "learn go")
	clock.Advance(time.Second)
	problem := recordAnswer(t, s, "problem_statement", model.SituationSelectingProblem, "write a store")
	clock.Advance(time.Second)
	research := recordAnswer(t, s, "research_notes", model.SituationResearching, "read sqlite docs")

	a, err := s.GetAnswer(ctx, intent)
	require.NoError(t, err)
	assert.Nil(t, a.IntentID, "an intent anchor links to nothing")
	assert.Nil(t, a.ProblemID)

	a, err = s.GetAnswer(ctx, problem)
	require.NoError(t, err)
	require.NotNil(t, a.IntentID)
	assert.Equal(t, intent, *a.IntentID)
	assert.Nil(t, a.ProblemID, "a problem anchor never links to a problem")

	a, err = s.GetAnswer(ctx, research)
	require.NoError(t, err)
	require.NotNil(t, a.IntentID)
	require.NotNil(t, a.ProblemID)
	assert.Equal(t, intent, *a.IntentID)
	assert.Equal(t, problem, *a.ProblemID)

	linked, err := s.AnswersByIntent(ctx, intent)
	require.NoError(t, err)
	assert.Len(t, linked, 2)

	linked, err = s.AnswersByProblem(ctx, problem)
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, research, linked[0].ID)
}

func TestLinking_NewIntentBecomesActive(t *testing.T) {
	s, clock := createTestStore(t)
	ctx := context.Background()

	recordAnswer(t, s, "intent_goal", model.SituationDefiningIntent, "old")
	clock.Advance(time.Second)
	// Non-intent questions at DefiningIntent never become anchors.
	recordAnswer(t, s, "why_now", model.SituationDefiningIntent, "because")
	clock.Advance(time.Second)
	newer := recordAnswer(t, s, "intent_goal", model.SituationDefiningIntent, "new")
	clock.Advance(time.Second)
	recordAnswer(t, s, "intent_scope", model.SituationPlanning, "planning answers are not anchors")

	active, err := s.ActiveIntent(ctx)
	require.NoError(t, err)
	assert.Equal(t, newer, active.ID)

	_, err = s.ActiveProblem(ctx)
	assert.True(t, IsNotFound(err))
}

func TestLinking_ExplicitLinksOverride(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	recordAnswer(t, s, "intent_goal", model.SituationDefiningIntent, "auto")

	id, err := s.RecordAnswer(ctx, AnswerInput{
		QuestionID: "notes",
		Situation:  model.SituationImplementing,
		Text:       "explicit",
		Links: Links{
			IntentID:  ptr(int64(42)),
			ProblemID: ptr(int64(43)),
			ParentID:  ptr(int64(44)),
		},
	})
	require.NoError(t, err)

	a, err := s.GetAnswer(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(42), *a.IntentID)
	assert.Equal(t, int64(43), *a.ProblemID)
	assert.Equal(t, int64(44), *a.ParentID)
}
