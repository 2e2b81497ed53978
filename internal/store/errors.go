package store

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// CodeNotInitialized indicates the store was used before EnsureSchema succeeded.
	CodeNotInitialized ErrorCode = "NOT_INITIALIZED"

	// CodeNotFound indicates a referenced row does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeMigrationFailure indicates a schema upgrade step failed.
	CodeMigrationFailure ErrorCode = "MIGRATION_FAILURE"

	// CodeSerializationFailure indicates a snapshot payload or image is malformed.
	CodeSerializationFailure ErrorCode = "SERIALIZATION_FAILURE"

	// CodeInvalidInput indicates the caller passed an unusable argument.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeConflict indicates the operation would break a store invariant.
	CodeConflict ErrorCode = "CONFLICT"
)

// Error is a structural store failure. Transient I/O errors are returned
// wrapped with fmt.Errorf instead.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the failing operation (e.g. "delete answer").
	Op string

	// Entity and ID identify the missing or conflicting row, when relevant.
	Entity string
	ID     int64

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Sentinels for errors.Is matching by code.
var (
	ErrNotInitialized       = &Error{Code: CodeNotInitialized}
	ErrNotFound             = &Error{Code: CodeNotFound}
	ErrMigrationFailure     = &Error{Code: CodeMigrationFailure}
	ErrSerializationFailure = &Error{Code: CodeSerializationFailure}
	ErrInvalidInput         = &Error{Code: CodeInvalidInput}
	ErrConflict             = &Error{Code: CodeConflict}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Entity != "" {
		msg = fmt.Sprintf("%s %d not found", e.Entity, e.ID)
	}
	if msg == "" {
		msg = string(e.Code)
	} else {
		msg = fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so callers can compare against
// the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// IsNotFound returns true if err is a NOT_FOUND store error.
// Uses errors.As semantics to handle wrapped errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsNotInitialized returns true if err is a NOT_INITIALIZED store error.
func IsNotInitialized(err error) bool {
	return errors.Is(err, ErrNotInitialized)
}

// IsConflict returns true if err is a CONFLICT store error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func notFound(op, entity string, id int64) *Error {
	return &Error{Code: CodeNotFound, Op: op, Entity: entity, ID: id}
}

func invalidInput(op, format string, args ...any) *Error {
	return &Error{Code: CodeInvalidInput, Op: op, Message: fmt.Sprintf(format, args...)}
}
