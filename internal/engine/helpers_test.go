package engine

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cyclelog/internal/backend"
	"github.com/roach88/cyclelog/internal/store"
	"github.com/roach88/cyclelog/internal/testutil"
)

// fixture is one engine plus the backends behind it.
type fixture struct {
	engine  *Engine
	local   *backend.LocalBlob
	metrics *backend.Metrics
	clock   *testutil.DeterministicClock
}

// openEngine opens an engine on a fresh work path. remote may be nil.
func openEngine(t *testing.T, local *backend.LocalBlob, remote backend.Remote) *fixture {
	t.Helper()
	clock := testutil.NewDeterministicClock(time.Time{}).WithStep(time.Second)
	metrics := backend.NewMetrics(nil)
	sel := backend.NewSelector(remote, local, metrics)

	e, err := Open(context.Background(), filepath.Join(t.TempDir(), "work.db"), sel, store.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return &fixture{engine: e, local: local, metrics: metrics, clock: clock}
}

// localOnly opens an engine with no remote and a blob in a temp dir.
func localOnly(t *testing.T) *fixture {
	t.Helper()
	return openEngine(t, backend.NewLocalBlob(filepath.Join(t.TempDir(), "cyclelog.b64")), nil)
}

// startRemote runs a reference backend with a configured path.
func startRemote(t *testing.T) *backend.Client {
	t.Helper()
	srv, err := backend.NewServer("", t.TempDir(), nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client := backend.NewClient(ts.URL, backend.WithHTTPClient(ts.Client()))
	require.NoError(t, client.SetPath(context.Background(), "cyclelog.db"))
	return client
}

func ptr[T any](v T) *T {
	return &v
}
