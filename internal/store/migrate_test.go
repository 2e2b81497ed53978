package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cyclelog/internal/model"
)

func TestEnsureSchema_CreatesEverythingOnEmptyStore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()

	report, err := s.EnsureSchema(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, TableNames(), report.CreatedTables)
	assert.Empty(t, report.AddedColumns)
	assert.Equal(t, 0, report.FromVersion)
	assert.Equal(t, currentSchemaVersion, report.ToVersion)
	assert.True(t, s.Ready())

	var version int
	require.NoError(t, s.DB().QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	s, _ := createTestStore(t)

	report, err := s.EnsureSchema(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Changed())
	assert.True(t, s.Ready())
}

func TestEnsureSchema_AddsMissingColumnsWithoutRewritingRows(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "legacy.db"))
	require.NoError(t, err)
	defer s.Close()

	// A version 1 answers table: no relationship columns.
	_, err = s.DB().Exec(`
		CREATE TABLE question_answers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			question_id TEXT NOT NULL,
			answer TEXT NOT NULL,
			answered_at TEXT NOT NULL,
			situation TEXT NOT NULL
		)`)
	require.NoError(t, err)
	_, err = s.DB().Exec(`
		INSERT INTO question_answers (question_id, answer, answered_at, situation)
		VALUES ('intent_goal', 'legacy answer', '2023-05-01T10:00:00.000Z', 'DefiningIntent')`)
	require.NoError(t, err)
	_, err = s.DB().Exec("PRAGMA user_version = 1")
	require.NoError(t, err)

	report, err := s.EnsureSchema(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.FromVersion)
	assert.ElementsMatch(t, []string{
		"question_answers.intent_id",
		"question_answers.problem_id",
		"question_answers.parent_id",
		"question_answers.cycle_id",
	}, report.AddedColumns)
	assert.NotContains(t, report.CreatedTables, "question_answers")
	assert.Contains(t, report.CreatedTables, "cycle_context")

	a, err := s.GetAnswer(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "legacy answer", a.Text)
	assert.Equal(t, model.SituationDefiningIntent, a.Situation)
	assert.Nil(t, a.IntentID)
	assert.Nil(t, a.ProblemID)
	assert.Nil(t, a.ParentID)
	assert.Nil(t, a.CycleID)
}

func TestEnsureSchema_FailureLeavesStoreNotReady(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "broken.db"))
	require.NoError(t, err)
	defer s.Close()

	// A view squatting on a table name cannot be indexed.
	_, err = s.DB().Exec(`CREATE VIEW state_transitions AS SELECT 1 AS id`)
	require.NoError(t, err)

	_, err = s.EnsureSchema(context.Background())
	require.Error(t, err)
	assert.True(t, IsMigrationFailure(err), "got %v", err)
	assert.False(t, s.Ready())

	_, err = s.ListAnswers(context.Background())
	assert.True(t, IsNotInitialized(err))
}

func TestMigrationReport_ChangedOnValue(t *testing.T) {
	tests := []struct {
		name   string
		report MigrationReport
		want   bool
	}{
		{"nothing", MigrationReport{FromVersion: 1, ToVersion: 1}, false},
		{"table", MigrationReport{CreatedTables: []string{"cycles"}, FromVersion: 1, ToVersion: 1}, true},
		{"column", MigrationReport{AddedColumns: []string{"cycles.status"}, FromVersion: 1, ToVersion: 1}, true},
		{"version", MigrationReport{FromVersion: 0, ToVersion: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.report.Changed())
		})
	}
}
