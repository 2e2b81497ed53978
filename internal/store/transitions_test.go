package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cyclelog/internal/model"
)

// edgeTable is a minimal EdgePolicy for tests.
type edgeTable struct {
	allowed map[string]bool
	strict  bool
}

func (p edgeTable) Allows(from, to model.Situation) bool {
	return p.allowed[model.TransitionKey(from, to)]
}

func (p edgeTable) Strict() bool { return p.strict }

func TestRecordStateEntry_ClosesPreviousAtSameInstant(t *testing.T) {
	s, clock := createTestStore(t)
	ctx := context.Background()
	cycleID, err := s.CreateCycle(ctx)
	require.NoError(t, err)

	first, err := s.RecordStateEntry(ctx, model.SituationResearching, nil)
	require.NoError(t, err)
	clock.Advance(25 * time.Minute)
	second, err := s.RecordStateEntry(ctx, model.SituationPlanning, nil)
	require.NoError(t, err)

	transitions, err := s.ListTransitions(ctx, TransitionFilter{CycleID: &cycleID})
	require.NoError(t, err)
	require.Len(t, transitions, 2)

	a, b := transitions[0], transitions[1]
	assert.Equal(t, first, a.ID)
	assert.Equal(t, second, b.ID)
	require.NotNil(t, a.ExitedAt)
	assert.True(t, a.ExitedAt.Equal(b.EnteredAt))
	assert.Equal(t, b.EnteredAt.Sub(a.EnteredAt), a.Duration())
	assert.Equal(t, 25*time.Minute, a.Duration())
	assert.Nil(t, b.ExitedAt)
	assert.Zero(t, b.Duration())

	current, err := s.CurrentState(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, model.SituationPlanning, current.Situation)
}

func TestRecordStateEntry_OneOpenRowPerCycle(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	first, err := s.CreateCycle(ctx)
	require.NoError(t, err)
	second, err := s.CreateCycle(ctx)
	require.NoError(t, err)

	_, err = s.RecordStateEntry(ctx, model.SituationPlanning, &first)
	require.NoError(t, err)
	_, err = s.RecordStateEntry(ctx, model.SituationImplementing, &second)
	require.NoError(t, err)
	_, err = s.RecordStateEntry(ctx, model.SituationVerifying, &second)
	require.NoError(t, err)

	// Entries in another cycle leave first's interval open.
	cur, err := s.CurrentState(ctx, &first)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, model.SituationPlanning, cur.Situation)

	var open int
	require.NoError(t, s.DB().QueryRow(
		`SELECT COUNT(*) FROM state_transitions WHERE cycle_id = ? AND exited_at IS NULL`, second,
	).Scan(&open))
	assert.Equal(t, 1, open)
}

func TestRecordStateEntry_WithoutCycle(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	_, err := s.RecordStateEntry(ctx, model.SituationReflecting, nil)
	require.NoError(t, err)
	_, err = s.RecordStateEntry(ctx, model.SituationResearching, nil)
	require.NoError(t, err)

	all, err := s.ListTransitions(ctx, TransitionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Nil(t, all[0].CycleID)
	assert.NotNil(t, all[0].ExitedAt, "NULL-cycle intervals close each other too")
}

func TestRecordStateEntry_RejectsUnknownSituation(t *testing.T) {
	s, _ := createTestStore(t)

	_, err := s.RecordStateEntry(context.Background(), "Sleeping", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecordStateExit(t *testing.T) {
	s, clock := createTestStore(t)
	ctx := context.Background()
	_, err := s.CreateCycle(ctx)
	require.NoError(t, err)

	closed, err := s.RecordStateExit(ctx, model.SituationPlanning, nil)
	require.NoError(t, err)
	assert.False(t, closed, "nothing open is a no-op")

	_, err = s.RecordStateEntry(ctx, model.SituationPlanning, nil)
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)

	closed, err = s.RecordStateExit(ctx, model.SituationImplementing, nil)
	require.NoError(t, err)
	assert.False(t, closed, "situation must match")

	closed, err = s.RecordStateExit(ctx, model.SituationPlanning, nil)
	require.NoError(t, err)
	assert.True(t, closed)

	current, err := s.CurrentState(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, current)

	all, err := s.ListTransitions(ctx, TransitionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 10*time.Minute, all[0].Duration())
}

func TestRecordStateEntry_BumpsTransitionCounter(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	_, err := s.CreateCycle(ctx)
	require.NoError(t, err)

	for _, sit := range []model.Situation{
		model.SituationPlanning,
		model.SituationImplementing,
		model.SituationPlanning,
		model.SituationImplementing,
	} {
		_, err := s.RecordStateEntry(ctx, sit, nil)
		require.NoError(t, err)
	}

	c, err := s.Counter(ctx, "Planning->Implementing")
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.Count)

	c, err = s.Counter(ctx, "Implementing->Planning")
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Count)

	counters, err := s.ListCounters(ctx)
	require.NoError(t, err)
	require.Len(t, counters, 2)
	assert.Equal(t, "Implementing->Planning", counters[0].Key)
}

func TestRecordStateEntry_NonStrictPolicyOnlyWarns(t *testing.T) {
	policy := edgeTable{allowed: map[string]bool{}}
	s, _ := createTestStore(t, WithPolicy(policy))
	ctx := context.Background()

	_, err := s.RecordStateEntry(ctx, model.SituationPlanning, nil)
	require.NoError(t, err)
	_, err = s.RecordStateEntry(ctx, model.SituationReleasing, nil)
	require.NoError(t, err)

	current, err := s.CurrentState(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, model.SituationReleasing, current.Situation)
}

func TestRecordStateEntry_StrictPolicyRejects(t *testing.T) {
	policy := edgeTable{
		allowed: map[string]bool{"Planning->Implementing": true},
		strict:  true,
	}
	s, _ := createTestStore(t, WithPolicy(policy))
	ctx := context.Background()

	_, err := s.RecordStateEntry(ctx, model.SituationPlanning, nil)
	require.NoError(t, err, "the first entry has no edge to check")

	_, err = s.RecordStateEntry(ctx, model.SituationReleasing, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	current, err := s.CurrentState(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, model.SituationPlanning, current.Situation, "rejected entry changes nothing")
	assert.Nil(t, current.ExitedAt)

	_, err = s.RecordStateEntry(ctx, model.SituationImplementing, nil)
	assert.NoError(t, err)
}

func TestCounters_IncrementResetSaturate(t *testing.T) {
	s, clock := createTestStore(t)
	ctx := context.Background()

	n, err := s.IncrementCounter(ctx, "A->B")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = s.IncrementCounter(ctx, "A->B")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	clock.Advance(time.Minute)
	require.NoError(t, s.ResetCounter(ctx, "A->B"))
	c, err := s.Counter(ctx, "A->B")
	require.NoError(t, err)
	assert.Zero(t, c.Count)
	require.NotNil(t, c.LastResetAt)
	assert.Equal(t, "2024-01-01T09:01:00.000Z", model.FormatTime(*c.LastResetAt))

	_, err = s.DB().Exec(`UPDATE transition_counters SET count = ? WHERE transition_key = 'A->B'`, MaxTransitionCount)
	require.NoError(t, err)
	n, err = s.IncrementCounter(ctx, "A->B")
	require.NoError(t, err)
	assert.Equal(t, MaxTransitionCount, n)

	assert.True(t, IsNotFound(s.ResetCounter(ctx, "missing")))
	_, err = s.Counter(ctx, "missing")
	assert.True(t, IsNotFound(err))
	_, err = s.IncrementCounter(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
