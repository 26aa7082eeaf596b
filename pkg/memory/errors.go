package memory

import (
	"errors"
	"fmt"
)

// Kind enumerates the memory subsystem's error taxonomy.
type Kind string

const (
	BackendIo          Kind = "backend_io"
	BackendInvalid     Kind = "backend_invalid"
	Serialization      Kind = "serialization"
	EmbeddingFailure   Kind = "embedding_failure"
	VectorStoreFailure Kind = "vector_store_failure"
	PolicyViolation    Kind = "policy_violation"
	Cancellation       Kind = "cancellation"
)

// Error wraps an underlying cause with a stable Kind for callers that
// need to branch on failure category, e.g. retrieval degrading a
// non-primary source failure to an empty list.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, &Error{Kind: memory.BackendIo}) match any
// wrapped error sharing the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind from err, returning "" if err does not carry one.
// It unwraps via errors.As, so a *Error wrapped one or more levels deep is
// still recognized.
func KindOf(err error) Kind {
	var asErr *Error
	if errors.As(err, &asErr) {
		return asErr.Kind
	}
	return ""
}
