package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cyclelog/internal/backend"
)

// testEnv is an isolated config with its own work path and fallback blob.
type testEnv struct {
	dir    string
	config string
}

func newTestEnv(t *testing.T, remoteURL string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`store:
  work_path: %s
local:
  blob_path: %s
remote:
  url: %q
logging:
  level: error
stats:
  timezone: UTC
server:
  data_dir: %s
`, filepath.Join(dir, "work.db"), filepath.Join(dir, "blob.b64"), remoteURL, filepath.Join(dir, "server"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return &testEnv{dir: dir, config: path}
}

// run executes the CLI and returns stdout, stderr and the exit code.
func (e *testEnv) run(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	return e.runContext(t, context.Background(), args...)
}

func (e *testEnv) runContext(t *testing.T, ctx context.Context, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Execute(ctx, append([]string{"--config", e.config}, args...), &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

// mustRun executes the CLI and fails the test on a non-zero exit.
func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	stdout, stderr, code := e.run(t, args...)
	require.Equal(t, ExitSuccess, code, "stdout: %s\nstderr: %s", stdout, stderr)
	return stdout
}

// runJSON executes the CLI with --format json and decodes the envelope.
func (e *testEnv) runJSON(t *testing.T, args ...string) (CLIResponse, int) {
	t.Helper()
	stdout, _, code := e.run(t, append([]string{"--format", "json"}, args...)...)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), "stdout: %s", stdout)
	return resp, code
}

// decodeData re-decodes an envelope's data into out.
func decodeData(t *testing.T, resp CLIResponse, out any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

// startServer runs a reference backend and returns its URL.
func startServer(t *testing.T) string {
	t.Helper()
	srv, err := backend.NewServer("", t.TempDir(), nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}
