package memory

import "fmt"

// Error categorises in-memory repository failures the same way the Firestore
// implementations do, so services stay backend-agnostic.
type Error struct {
	op       string
	message  string
	notFound bool
	conflict bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.op != "" {
		return fmt.Sprintf("%s: %s", e.op, e.message)
	}
	return e.message
}

// Unwrap always returns nil; in-memory errors carry no cause.
func (e *Error) Unwrap() error { return nil }

// IsNotFound reports whether the error represents a missing record.
func (e *Error) IsNotFound() bool { return e != nil && e.notFound }

// IsConflict reports whether the error represents a conflicting write.
func (e *Error) IsConflict() bool { return e != nil && e.conflict }

// IsUnavailable always reports false for the in-memory backend.
func (e *Error) IsUnavailable() bool { return false }

func notFoundError(op, message string) *Error {
	return &Error{op: op, message: message, notFound: true}
}

func conflictError(op, message string) *Error {
	return &Error{op: op, message: message, conflict: true}
}
