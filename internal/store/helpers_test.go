package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cyclelog/internal/model"
	"github.com/roach88/cyclelog/internal/testutil"
)

// createTestStore opens a migrated store in a temp dir driven by a frozen clock.
func createTestStore(t *testing.T, opts ...Option) (*Store, *testutil.DeterministicClock) {
	t.Helper()
	clock := testutil.NewDeterministicClock(time.Time{})
	opts = append([]Option{WithClock(clock.Now)}, opts...)

	s, err := Open(filepath.Join(t.TempDir(), "test.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.EnsureSchema(context.Background())
	require.NoError(t, err)
	return s, clock
}

// recordAnswer records an answer with automatic linking.
func recordAnswer(t *testing.T, s *Store, questionID string, situation model.Situation, text string) int64 {
	t.Helper()
	id, err := s.RecordAnswer(context.Background(), AnswerInput{
		QuestionID: questionID,
		Situation:  situation,
		Text:       text,
	})
	require.NoError(t, err)
	return id
}

func ptr[T any](v T) *T {
	return &v
}
