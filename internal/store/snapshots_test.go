package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cyclelog/internal/model"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	s, clock := createTestStore(t)
	ctx := context.Background()

	_, err := s.CreateCycle(ctx)
	require.NoError(t, err)
	intent := recordAnswer(t, s, "intent_goal", model.SituationDefiningIntent, "café ☕")
	clock.Advance(time.Minute)
	recordAnswer(t, s, "ready", model.SituationPlanning, model.BoolText(true))

	before, err := s.ListAnswers(ctx)
	require.NoError(t, err)

	snapID, err := s.SaveSnapshot(ctx, model.SituationPlanning, ptr("before experiment"))
	require.NoError(t, err)

	clock.Advance(time.Minute)
	require.NoError(t, s.EditAnswer(ctx, intent, "changed"))
	recordAnswer(t, s, "extra", model.SituationImplementing, "noise")

	situation, err := s.RestoreSnapshot(ctx, snapID)
	require.NoError(t, err)
	assert.Equal(t, model.SituationPlanning, situation)

	after, err := s.ListAnswers(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after, "ids, timestamps and links survive a restore")
}

func TestSnapshot_ListAndGet(t *testing.T) {
	s, clock := createTestStore(t)
	ctx := context.Background()

	recordAnswer(t, s, "q", model.SituationPlanning, "a")
	first, err := s.SaveSnapshot(ctx, model.SituationPlanning, nil)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	second, err := s.SaveSnapshot(ctx, model.SituationReflecting, ptr("later"))
	require.NoError(t, err)

	list, err := s.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second, list[0].ID)
	assert.Equal(t, first, list[1].ID)
	assert.Nil(t, list[0].Payload)

	details, err := s.GetSnapshot(ctx, first)
	require.NoError(t, err)
	assert.Nil(t, details.Description)
	require.Len(t, details.Answers, 1)
	assert.Equal(t, "a", details.Answers[0].Text)

	require.NoError(t, s.DeleteSnapshot(ctx, first))
	_, err = s.GetSnapshot(ctx, first)
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(s.DeleteSnapshot(ctx, first)))
	_, err = s.RestoreSnapshot(ctx, first)
	assert.True(t, IsNotFound(err))
}

func TestRestoreSnapshot_MalformedPayloadLeavesStoreUntouched(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	recordAnswer(t, s, "q", model.SituationPlanning, "precious")

	payloads := map[string]string{
		"not json":          `{{{`,
		"wrong shape":       `{"answers": "nope"}`,
		"missing field":     `[{"id": 1, "question_id": "q", "situation": "Planning", "answered_at": "2024-01-01T00:00:00.000Z"}]`,
		"bad timestamp":     `[{"id": 1, "question_id": "q", "situation": "Planning", "answer": "x", "answered_at": "yesterday"}]`,
		"unknown situation": `[{"id": 1, "question_id": "q", "situation": "Dreaming", "answer": "x", "answered_at": "2024-01-01T00:00:00.000Z"}]`,
		"bad checksum":      `{"version": 1, "checksum": "deadbeef", "answers": []}`,
	}
	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			res, err := s.DB().Exec(`
				INSERT INTO workflow_states (current_situation, saved_at, description, snapshot_data)
				VALUES ('Planning', '2024-01-01T00:00:00.000Z', NULL, ?)`, payload)
			require.NoError(t, err)
			id, err := res.LastInsertId()
			require.NoError(t, err)

			_, err = s.RestoreSnapshot(ctx, id)
			assert.ErrorIs(t, err, ErrSerializationFailure)

			answers, err := s.ListAnswers(ctx)
			require.NoError(t, err)
			require.Len(t, answers, 1)
			assert.Equal(t, "precious", answers[0].Text)
		})
	}
}

func TestRestoreSnapshot_AcceptsLegacyArray(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	recordAnswer(t, s, "q", model.SituationPlanning, "current")

	res, err := s.DB().Exec(`
		INSERT INTO workflow_states (current_situation, saved_at, description, snapshot_data)
		VALUES ('Researching', '2023-06-01T00:00:00.000Z', 'legacy', ?)`,
		`[{"id": 7, "question_id": "old", "situation": "Researching", "answer": "from the past",
		   "answered_at": "2023-06-01T00:00:00.000Z", "intent_id": null, "problem_id": null, "parent_id": null, "cycle_id": null}]`)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)

	situation, err := s.RestoreSnapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.SituationResearching, situation)

	answers, err := s.ListAnswers(ctx)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, int64(7), answers[0].ID)
	assert.Equal(t, "from the past", answers[0].Text)
}
