package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicClock_DefaultsToEpoch(t *testing.T) {
	clock := NewDeterministicClock(time.Time{})
	assert.Equal(t, DefaultEpoch, clock.Current())
}

func TestDeterministicClock_FrozenWithoutStep(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := NewDeterministicClock(start)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start, clock.Now())
}

func TestDeterministicClock_StepAdvancesAfterEachCall(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := NewDeterministicClock(start).WithStep(time.Second)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start.Add(time.Second), clock.Now())
	assert.Equal(t, start.Add(2*time.Second), clock.Current())
}

func TestDeterministicClock_AdvanceAndSet(t *testing.T) {
	clock := NewDeterministicClock(time.Time{})

	clock.Advance(30 * time.Minute)
	assert.Equal(t, DefaultEpoch.Add(30*time.Minute), clock.Now())

	target := time.Date(2025, 6, 1, 0, 0, 0, 0, time.FixedZone("X", 3600))
	clock.Set(target)
	assert.Equal(t, time.UTC, clock.Now().Location())
	assert.True(t, target.Equal(clock.Now()))
}

func TestDeterministicClock_Reset(t *testing.T) {
	clock := NewDeterministicClock(time.Time{}).WithStep(time.Minute)
	clock.Now()
	clock.Now()
	clock.Advance(time.Hour)

	clock.Reset()
	assert.Equal(t, DefaultEpoch, clock.Now())
}

func TestDeterministicClock_ThreadSafe(t *testing.T) {
	clock := NewDeterministicClock(time.Time{}).WithStep(time.Millisecond)
	const goroutines = 50
	const callsPerGoroutine = 20

	var mu sync.Mutex
	seen := make(map[time.Time]bool)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				ts := clock.Now()
				mu.Lock()
				seen[ts] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, goroutines*callsPerGoroutine, "every call should see a distinct instant")
}
