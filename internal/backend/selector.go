package backend

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Remote is the subset of Client the Selector depends on.
type Remote interface {
	URL() string
	Health(ctx context.Context) error
	Fetch(ctx context.Context) ([]byte, error)
	Push(ctx context.Context, image []byte) error
	Path(ctx context.Context) (*string, error)
	SetPath(ctx context.Context, path string) error
	ClearPath(ctx context.Context) error
	Info(ctx context.Context) (Info, error)
}

// Selector chooses between the remote backend and the local blob.
type Selector struct {
	remote  Remote
	local   *LocalBlob
	metrics *Metrics
}

// NewSelector creates a selector. remote may be nil, in which case every
// operation goes to the local blob.
func NewSelector(remote Remote, local *LocalBlob, metrics *Metrics) *Selector {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Selector{remote: remote, local: local, metrics: metrics}
}

// Status describes where images currently go.
type Status struct {
	RemoteURL  string `json:"remote_url,omitempty"`
	Reachable  bool   `json:"reachable"`
	Configured bool   `json:"configured"`
	RemotePath string `json:"remote_path,omitempty"`
	LocalPath  string `json:"local_path"`
	Active     string `json:"active"`
}

// remoteReady probes the remote and reports whether it should be used.
// The reason is a fallback label when it should not.
func (s *Selector) remoteReady(ctx context.Context, op string) (bool, string) {
	if s.remote == nil {
		return false, reasonUnconfigured
	}
	if err := s.remote.Health(ctx); err != nil {
		slog.Warn("remote backend unavailable, using local fallback", "op", op, "url", s.remote.URL(), "error", err)
		return false, reasonUnreachable
	}
	path, err := s.remote.Path(ctx)
	if err != nil {
		slog.Warn("remote path lookup failed, using local fallback", "op", op, "error", err)
		s.metrics.RemoteFailures.WithLabelValues(op).Inc()
		return false, reasonRemoteFailure
	}
	if path == nil {
		slog.Debug("remote has no path configured", "op", op)
		return false, reasonUnconfigured
	}
	return true, ""
}

// Load returns the most authoritative image available.
//
// The remote wins when it is reachable, has a path configured and returns
// a non-empty image. An empty remote image never shadows local history.
// When the remote wins over a newer local blob a warning is logged; the
// next save overwrites the remote with the loaded image.
func (s *Selector) Load(ctx context.Context) ([]byte, error) {
	if ok, reason := s.remoteReady(ctx, opLoad); ok {
		image, err := s.remote.Fetch(ctx)
		switch {
		case err != nil:
			slog.Warn("remote fetch failed, using local fallback", "error", err)
			s.metrics.RemoteFailures.WithLabelValues(opLoad).Inc()
			reason = reasonRemoteFailure
		case len(image) == 0:
			reason = reasonEmpty
		default:
			s.checkShadowedLocal(ctx, image)
			s.metrics.Operations.WithLabelValues(opLoad, sourceRemote).Inc()
			s.metrics.ImageBytes.Set(float64(len(image)))
			slog.Debug("image loaded", "source", sourceRemote, "bytes", len(image))
			return image, nil
		}
		s.metrics.Fallbacks.WithLabelValues(opLoad, reason).Inc()
	} else {
		s.metrics.Fallbacks.WithLabelValues(opLoad, reason).Inc()
	}

	image, err := s.local.Load()
	if err != nil {
		return nil, err
	}
	s.metrics.Operations.WithLabelValues(opLoad, sourceLocal).Inc()
	s.metrics.ImageBytes.Set(float64(len(image)))
	slog.Debug("image loaded", "source", sourceLocal, "bytes", len(image))
	return image, nil
}

// checkShadowedLocal warns when the local blob holds saves the remote image
// does not. The remote's modification time decides when it reports one;
// otherwise any difference in content counts.
func (s *Selector) checkShadowedLocal(ctx context.Context, remoteImage []byte) {
	localAt, ok, err := s.local.ModTime()
	if err != nil || !ok {
		return
	}
	var remoteAt *time.Time
	if info, err := s.remote.Info(ctx); err == nil {
		remoteAt = info.ModifiedAt
	}
	if remoteAt != nil {
		if !localAt.After(*remoteAt) {
			return
		}
	} else {
		local, err := s.local.Load()
		if err != nil || bytes.Equal(local, remoteImage) {
			return
		}
	}
	s.metrics.ShadowedLocal.Inc()
	attrs := []any{"local_path", s.local.Path(), "local_modified", localAt.UTC()}
	if remoteAt != nil {
		attrs = append(attrs, "remote_modified", remoteAt.UTC())
	}
	slog.Warn("local fallback blob is newer than the remote image and will be overwritten on the next save", attrs...)
}

// Save persists a full image. A successful remote push ends the operation;
// the local blob is written only when the remote cannot take it. Local
// write failures are returned.
func (s *Selector) Save(ctx context.Context, image []byte) error {
	ok, reason := s.remoteReady(ctx, opSave)
	if ok {
		err := s.remote.Push(ctx, image)
		if err == nil {
			s.metrics.Operations.WithLabelValues(opSave, sourceRemote).Inc()
			s.metrics.ImageBytes.Set(float64(len(image)))
			slog.Debug("image saved", "source", sourceRemote, "bytes", len(image))
			return nil
		}
		slog.Warn("remote push failed, writing local fallback", "error", err)
		s.metrics.RemoteFailures.WithLabelValues(opSave).Inc()
		reason = reasonRemoteFailure
	}
	s.metrics.Fallbacks.WithLabelValues(opSave, reason).Inc()

	if err := s.local.Save(image); err != nil {
		return err
	}
	s.metrics.Operations.WithLabelValues(opSave, sourceLocal).Inc()
	s.metrics.ImageBytes.Set(float64(len(image)))
	slog.Debug("image saved", "source", sourceLocal, "bytes", len(image))
	return nil
}

// Status probes the remote and reports which backend is in use.
func (s *Selector) Status(ctx context.Context) Status {
	st := Status{LocalPath: s.local.Path(), Active: sourceLocal}
	if s.remote == nil {
		return st
	}
	st.RemoteURL = s.remote.URL()
	if err := s.remote.Health(ctx); err != nil {
		return st
	}
	st.Reachable = true
	info, err := s.remote.Info(ctx)
	if err != nil {
		slog.Warn("remote info failed", "error", err)
		return st
	}
	st.Configured = info.Configured
	st.RemotePath = info.Path
	if info.Configured {
		st.Active = sourceRemote
	}
	return st
}

// RemotePath returns the remote's configured path.
func (s *Selector) RemotePath(ctx context.Context) (*string, error) {
	if s.remote == nil {
		return nil, ErrNoRemote
	}
	return s.remote.Path(ctx)
}

// SetRemotePath configures the remote's storage path.
func (s *Selector) SetRemotePath(ctx context.Context, path string) error {
	if s.remote == nil {
		return ErrNoRemote
	}
	if path == "" {
		return fmt.Errorf("set remote path: path is empty")
	}
	return s.remote.SetPath(ctx, path)
}

// ClearRemotePath removes the remote's storage path.
func (s *Selector) ClearRemotePath(ctx context.Context) error {
	if s.remote == nil {
		return ErrNoRemote
	}
	return s.remote.ClearPath(ctx)
}
