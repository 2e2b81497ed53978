package backend

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// headerLog records the request id of every request a test server sees.
type headerLog struct {
	mu  sync.Mutex
	ids []string
}

func (l *headerLog) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l.mu.Lock()
		l.ids = append(l.ids, r.Header.Get(RequestIDHeader))
		l.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (l *headerLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ids...)
}

// startBackend runs a reference Server behind httptest and returns a client for it.
func startBackend(t *testing.T, opts ...ClientOption) (*Server, *Client, *headerLog) {
	t.Helper()
	srv, err := NewServer("", t.TempDir(), nil)
	require.NoError(t, err)

	log := &headerLog{}
	ts := httptest.NewServer(log.wrap(srv.Handler()))
	t.Cleanup(ts.Close)

	opts = append([]ClientOption{WithHTTPClient(ts.Client())}, opts...)
	return srv, NewClient(ts.URL, opts...), log
}

// deadURL returns the URL of a server that is no longer listening.
func deadURL(t *testing.T) string {
	t.Helper()
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()
	return url
}

// startRaw serves h on a test server and returns its URL.
func startRaw(t *testing.T, h http.Handler) string {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts.URL
}
