package backend

import (
	"errors"
	"fmt"
)

// ErrUnreachable means the remote backend could not be contacted at all.
// The Selector treats it as "use the local fallback", never as a failure.
var ErrUnreachable = errors.New("remote backend unreachable")

// ErrNoRemote is returned by remote path management when no remote URL is
// configured.
var ErrNoRemote = errors.New("no remote backend configured")

// StatusError is a non-2xx response from the remote backend.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: remote returned %d: %s", e.Op, e.Status, e.Body)
	}
	return fmt.Sprintf("%s: remote returned %d", e.Op, e.Status)
}

// IsUnreachable reports whether err means the remote could not be contacted.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}
