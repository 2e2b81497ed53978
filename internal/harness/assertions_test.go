package harness

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cyclelog/internal/model"
)

func sampleTrace() []TraceEvent {
	r := NewResult()
	r.AddInvocationTrace("Cycle.create", map[string]any{}, 1)
	r.AddCompletionTrace("Cycle.create", CaseSuccess, map[string]any{"id": int64(1)}, 2)
	r.AddInvocationTrace("State.enter", map[string]any{"situation": "Planning", "cycle": 1}, 3)
	r.AddCompletionTrace("State.enter", CaseSuccess, map[string]any{"id": int64(1)}, 4)
	r.AddInvocationTrace("State.enter", map[string]any{"situation": "Implementing"}, 5)
	r.AddCompletionTrace("State.enter", CaseSuccess, map[string]any{"id": int64(2)}, 6)
	return r.Trace
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Action: "State.enter"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Action: "State.enter", Args: map[string]any{"situation": "Planning"}}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Action: "State.enter", Args: map[string]any{"cycle": int64(1)}}))

	err := assertTraceContains(trace, Assertion{Action: "State.enter", Args: map[string]any{"situation": "Releasing"}})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Contains(t, err.Error(), "Full trace:")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Actions: []string{"Cycle.create", "State.enter"}}))

	err := assertTraceOrder(trace, Assertion{Actions: []string{"State.enter", "Cycle.create"}})
	assert.ErrorContains(t, err, "should be before")

	err = assertTraceOrder(trace, Assertion{Actions: []string{"Cycle.create", "Rest.start"}})
	assert.ErrorContains(t, err, "missing action: Rest.start")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Action: "State.enter", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Action: "Rest.start", Count: 0}))
	assert.ErrorContains(t, assertTraceCount(trace, Assertion{Action: "Cycle.create", Count: 2}), "1 occurrences")
}

// openTestDB returns a database with one small table.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "t.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE cycles (id INTEGER PRIMARY KEY, status TEXT NOT NULL, completed_at TEXT);
		INSERT INTO cycles VALUES (1, 'completed', '2024-03-04T10:00:00.000Z'), (2, 'active', NULL);
	`)
	require.NoError(t, err)
	return db
}

func TestAssertFinalState(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"match", Assertion{Table: "cycles", Where: map[string]any{"id": 1}, Expect: map[string]any{"status": "completed"}}, ""},
		{"null column", Assertion{Table: "cycles", Where: map[string]any{"id": 2}, Expect: map[string]any{"completed_at": nil}}, ""},
		{"where null", Assertion{Table: "cycles", Where: map[string]any{"completed_at": nil}, Expect: map[string]any{"id": 2}}, ""},
		{"mismatch", Assertion{Table: "cycles", Where: map[string]any{"id": 2}, Expect: map[string]any{"status": "completed"}}, `field "status" = active`},
		{"missing row", Assertion{Table: "cycles", Where: map[string]any{"id": 9}, Expect: map[string]any{"status": "active"}}, "row not found"},
		{"ambiguous", Assertion{Table: "cycles", Expect: map[string]any{"status": "active"}}, "multiple rows matched"},
		{"unknown column", Assertion{Table: "cycles", Where: map[string]any{"id": 1}, Expect: map[string]any{"colour": "red"}}, `field "colour" to exist`},
		{"unknown table", Assertion{Table: "nope", Expect: map[string]any{"a": 1}}, "query error"},
		{"bad table name", Assertion{Table: "cycles; DROP TABLE cycles", Expect: map[string]any{"a": 1}}, "invalid table name"},
		{"bad column name", Assertion{Table: "cycles", Where: map[string]any{"id = 1 OR 1": 1}, Expect: map[string]any{"a": 1}}, "invalid column name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFinalState(ctx, db, tt.assertion)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestAssertRowCount(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	assert.NoError(t, assertRowCount(ctx, db, Assertion{Table: "cycles", Count: 2}))
	assert.NoError(t, assertRowCount(ctx, db, Assertion{Table: "cycles", Where: map[string]any{"status": "active"}, Count: 1}))
	assert.ErrorContains(t, assertRowCount(ctx, db, Assertion{Table: "cycles", Count: 3}), "2 rows")
}

func TestAssertStats(t *testing.T) {
	stats := Stats{
		Daily: []model.DailyStat{{Date: "2024-03-04", ConsciousMinutes: 90, UnconsciousMinutes: 60}},
		States: []model.StateStat{
			{Situation: model.SituationImplementing, Count: 1, TotalMinutes: 60, AverageMinutes: 60, MinMinutes: 60, MaxMinutes: 60},
			{Situation: model.SituationPlanning, Count: 2, TotalMinutes: 30, AverageMinutes: 15, MinMinutes: 10, MaxMinutes: 20},
		},
	}

	assert.NoError(t, assertStats(stats, Assertion{Stats: StatsDaily, Rows: []map[string]any{
		{"date": "2024-03-04", "conscious_minutes": 90},
	}}))
	assert.NoError(t, assertStats(stats, Assertion{Stats: StatsStates, Rows: []map[string]any{
		{"situation": "Implementing"},
		{"situation": "Planning", "average_minutes": 15, "min_minutes": 10},
	}}))
	assert.NoError(t, assertStats(stats, Assertion{Stats: StatsDailyStates}))

	assert.ErrorContains(t, assertStats(stats, Assertion{Stats: StatsStates, Rows: []map[string]any{
		{"situation": "Planning"},
		{"situation": "Implementing"},
	}}), "row 0")
	assert.ErrorContains(t, assertStats(stats, Assertion{Stats: StatsDaily}), "0 daily rows")
}

func TestMatchArgs(t *testing.T) {
	actual := map[string]any{"id": int64(3), "closed": true, "name": []byte("x")}

	assert.True(t, matchArgs(actual, nil))
	assert.True(t, matchArgs(actual, map[string]any{"id": 3}))
	assert.True(t, matchArgs(actual, map[string]any{"id": 3.0, "closed": true}))
	assert.True(t, matchArgs(actual, map[string]any{"name": "x"}))
	assert.True(t, matchArgs(actual, map[string]any{"parent_id": nil}))
	assert.False(t, matchArgs(actual, map[string]any{"id": 4}))
	assert.False(t, matchArgs(actual, map[string]any{"missing": 1}))
	assert.False(t, matchArgs(nil, map[string]any{"id": 3}))
}

func TestEvaluateAssertions_NeedsDatabase(t *testing.T) {
	result := NewResult()
	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertFinalState, Table: "cycles", Expect: map[string]any{"id": 1}},
		{Type: AssertTraceCount, Action: "Cycle.create", Count: 0},
	}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "requires database context")
}
