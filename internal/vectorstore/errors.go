package vectorstore

import (
	"errors"
	"fmt"
)

// Kind classifies store failures so callers can map them to responses.
type Kind string

const (
	// KindValidation marks malformed input (empty content, bad topK, empty query).
	KindValidation Kind = "validation"
	// KindAuthorization marks a failed ownership check.
	KindAuthorization Kind = "authorization"
	// KindPersistence marks a snapshot read or write failure.
	KindPersistence Kind = "persistence"
	// KindProvider marks an embedding provider failure.
	KindProvider Kind = "provider"
	// KindInternal marks anything else (closed store, invariant violations).
	KindInternal Kind = "internal"
)

// Sentinel errors for store operations.
var (
	// ErrValidation matches any validation failure via errors.Is.
	ErrValidation = &Error{Kind: KindValidation}

	// ErrAuthorization matches any authorization failure via errors.Is.
	ErrAuthorization = &Error{Kind: KindAuthorization}

	// ErrPersistence matches any persistence failure via errors.Is.
	ErrPersistence = &Error{Kind: KindPersistence}

	// ErrProvider matches any embedding provider failure via errors.Is.
	ErrProvider = &Error{Kind: KindProvider}

	// ErrAccessDenied is the only message an authorization failure exposes.
	// It does not reveal whether the project exists.
	ErrAccessDenied = errors.New("project not found or access denied")

	// ErrEmptyContent indicates empty or whitespace-only ingest content.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyQuery indicates an empty search query.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrInvalidTopK indicates topK outside [1, max].
	ErrInvalidTopK = errors.New("invalid topK")

	// ErrInvalidIdentifier indicates a malformed project or user ID.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrDimensionMismatch indicates a vector whose length differs from the store dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrProjectMismatch indicates an entry appended to another project's index.
	ErrProjectMismatch = errors.New("entry project does not match index project")

	// ErrDuplicateID indicates an entry ID that already exists in the store.
	ErrDuplicateID = errors.New("duplicate entry id")

	// ErrInvalidSnapshot indicates a persisted snapshot that violates store invariants.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrInvalidConfig indicates invalid store configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrClosed indicates the store no longer accepts operations.
	ErrClosed = errors.New("vector store closed")
)

// Error is a classified store failure.
type Error struct {
	// Op is the failing operation, e.g. "Ingest".
	Op string

	// Kind classifies the failure.
	Kind Kind

	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind) + " error"
	}
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a bare kind sentinel (ErrValidation etc.) of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// Message returns the caller-facing message, without the operation prefix.
func (e *Error) Message() string {
	if e.Kind == KindAuthorization {
		return ErrAccessDenied.Error()
	}
	if e.Err == nil {
		return string(e.Kind) + " error"
	}
	return e.Err.Error()
}

// KindOf returns the Kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

func newError(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}
