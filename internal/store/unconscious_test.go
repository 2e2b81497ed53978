package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnconsciousPeriod_Lifecycle(t *testing.T) {
	s, clock := createTestStore(t)
	ctx := context.Background()

	prev, err := s.CreateCycle(ctx)
	require.NoError(t, err)

	id, err := s.StartUnconsciousPeriod(ctx, &prev, ptr("end of day"))
	require.NoError(t, err)

	current, err := s.CurrentUnconsciousPeriod(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, id, current.ID)
	assert.Nil(t, current.DurationMs())
	assert.Equal(t, "end of day", *current.EntryReason)

	clock.Advance(8 * time.Hour)
	next, err := s.CreateCycle(ctx)
	require.NoError(t, err)
	require.NoError(t, s.EndUnconsciousPeriod(ctx, id, &next, ptr("morning")))

	current, err = s.CurrentUnconsciousPeriod(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	periods, err := s.ListUnconsciousPeriods(ctx)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	p := periods[0]
	require.NotNil(t, p.DurationMs())
	assert.Equal(t, (8 * time.Hour).Milliseconds(), *p.DurationMs())
	assert.Equal(t, prev, *p.PreviousCycleID)
	assert.Equal(t, next, *p.NextCycleID)
	assert.Equal(t, "morning", *p.ExitReason)
}

func TestUnconsciousPeriod_SecondOpenIsConflict(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	_, err := s.StartUnconsciousPeriod(ctx, nil, nil)
	require.NoError(t, err)

	_, err = s.StartUnconsciousPeriod(ctx, nil, nil)
	assert.True(t, IsConflict(err), "got %v", err)
}

func TestEndUnconsciousPeriod_AlreadyEndedIsUntouched(t *testing.T) {
	s, clock := createTestStore(t)
	ctx := context.Background()

	id, err := s.StartUnconsciousPeriod(ctx, nil, nil)
	require.NoError(t, err)
	clock.Advance(time.Hour)
	require.NoError(t, s.EndUnconsciousPeriod(ctx, id, nil, ptr("first")))
	clock.Advance(time.Hour)
	require.NoError(t, s.EndUnconsciousPeriod(ctx, id, ptr(int64(7)), ptr("second")))

	periods, err := s.ListUnconsciousPeriods(ctx)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, int64(time.Hour/time.Millisecond), *periods[0].DurationMs())
	assert.Equal(t, "first", *periods[0].ExitReason)
	assert.Nil(t, periods[0].NextCycleID)

	assert.True(t, IsNotFound(s.EndUnconsciousPeriod(ctx, 999, nil, nil)))
}
