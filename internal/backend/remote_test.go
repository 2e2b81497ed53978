package backend

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_PathLifecycle(t *testing.T) {
	_, client, _ := startBackend(t)
	ctx := context.Background()

	require.NoError(t, client.Health(ctx))

	path, err := client.Path(ctx)
	require.NoError(t, err)
	assert.Nil(t, path)

	info, err := client.Info(ctx)
	require.NoError(t, err)
	assert.False(t, info.Configured)

	require.NoError(t, client.SetPath(ctx, "work/cyclelog.db"))
	path, err = client.Path(ctx)
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Contains(t, *path, "cyclelog.db")

	info, err = client.Info(ctx)
	require.NoError(t, err)
	assert.True(t, info.Configured)
	assert.Equal(t, *path, info.Path)

	require.NoError(t, client.ClearPath(ctx))
	path, err = client.Path(ctx)
	require.NoError(t, err)
	assert.Nil(t, path)
}

func TestClient_PushAndFetch(t *testing.T) {
	_, client, _ := startBackend(t)
	ctx := context.Background()

	image, err := client.Fetch(ctx)
	require.NoError(t, err)
	assert.Empty(t, image, "nothing stored yet")

	require.NoError(t, client.SetPath(ctx, "db.sqlite"))
	image, err = client.Fetch(ctx)
	require.NoError(t, err)
	assert.Empty(t, image, "path set but never pushed")

	require.NoError(t, client.Push(ctx, []byte("image-v1")))
	require.NoError(t, client.Push(ctx, []byte("image-v2")))

	image, err = client.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("image-v2"), image, "last write wins")
}

func TestClient_PushWithoutPathIsStatusError(t *testing.T) {
	_, client, _ := startBackend(t)

	err := client.Push(context.Background(), []byte("image"))
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusConflict, statusErr.Status)
	assert.False(t, IsUnreachable(err))
}

func TestClient_SendsRequestIDs(t *testing.T) {
	_, client, log := startBackend(t, WithIDGenerator(NewFixedGenerator("req-1", "req-2")))
	ctx := context.Background()

	require.NoError(t, client.Health(ctx))
	_, err := client.Path(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"req-1", "req-2"}, log.all())
}

func TestClient_DefaultRequestIDsAreUUIDv7(t *testing.T) {
	_, client, log := startBackend(t)

	require.NoError(t, client.Health(context.Background()))

	ids := log.all()
	require.Len(t, ids, 1)
	parsed, err := uuid.Parse(ids[0])
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestClient_UnreachableServer(t *testing.T) {
	client := NewClient(deadURL(t), WithProbeTimeout(200*time.Millisecond))

	err := client.Health(context.Background())
	assert.True(t, IsUnreachable(err), "got %v", err)

	_, err = client.Fetch(context.Background())
	assert.True(t, IsUnreachable(err), "got %v", err)
}

func TestClient_ProbeTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := http.NewServeMux()
	srv.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	})
	ts := startRaw(t, srv)
	defer close(block)

	client := NewClient(ts, WithProbeTimeout(50*time.Millisecond))
	start := time.Now()
	err := client.Health(context.Background())
	assert.True(t, IsUnreachable(err), "got %v", err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
