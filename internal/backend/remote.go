package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Default timeouts for remote calls.
const (
	DefaultProbeTimeout   = 2 * time.Second
	DefaultRequestTimeout = 10 * time.Second
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// Info is the remote's description of its storage configuration.
type Info struct {
	Configured bool   `json:"configured"`
	Path       string `json:"path"`
	// ModifiedAt is when the stored image was last written. Remotes that
	// do not track it leave it out.
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
}

// pathBody is the JSON body of /db/path.
type pathBody struct {
	Path *string `json:"path"`
}

// Client talks to a remote backend over HTTP.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	probeTimeout   time.Duration
	requestTimeout time.Duration
	ids            IDGenerator
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client (e.g. an httptest server's client).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithProbeTimeout bounds the reachability probe.
func WithProbeTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.probeTimeout = d
		}
	}
}

// WithRequestTimeout bounds every data call.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithIDGenerator sets the source of X-Request-ID values.
func WithIDGenerator(g IDGenerator) ClientOption {
	return func(c *Client) {
		if g != nil {
			c.ids = g
		}
	}
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{},
		probeTimeout:   DefaultProbeTimeout,
		requestTimeout: DefaultRequestTimeout,
		ids:            UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the backend base URL.
func (c *Client) URL() string {
	return c.baseURL
}

// Health probes GET /health within the probe timeout.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	resp, err := c.do(ctx, "health", http.MethodGet, "/health", nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return nil
}

// Fetch downloads the stored image. An empty result means the remote has
// nothing stored.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp, err := c.do(ctx, "fetch image", http.MethodGet, "/db", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch image: read body: %w", err)
	}
	return data, nil
}

// Push uploads a full image.
func (c *Client) Push(ctx context.Context, image []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp, err := c.do(ctx, "push image", http.MethodPost, "/db", bytes.NewReader(image), "application/octet-stream")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return nil
}

// Path returns the remote's configured storage path, or nil when none.
func (c *Client) Path(ctx context.Context) (*string, error) {
	var body pathBody
	if err := c.getJSON(ctx, "get path", "/db/path", &body); err != nil {
		return nil, err
	}
	if body.Path != nil && *body.Path == "" {
		return nil, nil
	}
	return body.Path, nil
}

// SetPath configures where the remote stores the image.
func (c *Client) SetPath(ctx context.Context, path string) error {
	payload, err := json.Marshal(pathBody{Path: &path})
	if err != nil {
		return fmt.Errorf("set path: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp, err := c.do(ctx, "set path", http.MethodPost, "/db/path", bytes.NewReader(payload), "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return nil
}

// ClearPath removes the remote's configured path.
func (c *Client) ClearPath(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp, err := c.do(ctx, "clear path", http.MethodDelete, "/db/path", nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return nil
}

// Info returns the remote's storage description.
func (c *Client) Info(ctx context.Context) (Info, error) {
	var info Info
	if err := c.getJSON(ctx, "get info", "/db/info", &info); err != nil {
		return Info{}, err
	}
	return info, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp, err := c.do(ctx, op, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// do sends one request. Transport failures wrap ErrUnreachable; non-2xx
// responses become *StatusError. On success the caller owns resp.Body.
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	requestID := c.ids.Generate()
	req.Header.Set(RequestIDHeader, requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		slog.Debug("remote call failed", "op", op, "request_id", requestID, "error", err)
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	slog.Debug("remote call", "op", op, "request_id", requestID, "status", resp.StatusCode)
	return resp, nil
}
