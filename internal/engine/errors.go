package engine

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by every call after Close.
var ErrClosed = errors.New("engine is closed")

// PersistError reports a mutation that committed to the working database
// but whose image could not be saved to any backend. The change is still
// visible to this Engine and will be included in the next successful save.
type PersistError struct {
	// Op is the mutation that triggered the save.
	Op string

	// Err is the selector error, usually a local fallback write failure.
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s: persist image: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// IsPersistError returns true if err is or wraps a PersistError.
func IsPersistError(err error) bool {
	var pe *PersistError
	return errors.As(err, &pe)
}
