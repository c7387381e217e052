/*
errors.go - Centralized error taxonomy for the assessment engine

PURPOSE:
  Every externally visible failure carries a Kind so transport layers
  can map it to a status code without string matching, and callers can
  branch with errors.As / the Is* helpers.

ERROR CATEGORIES:
  NotFound      referenced entity does not exist (or is not visible)
  InvalidState  operation not legal for the entity's current status
  InvalidInput  malformed value (bad date, unknown enum, role mismatch)
  Conflict      uniqueness violation
  Transient     downstream I/O failure, safe to retry

PROPAGATION POLICY:
  Validation errors are detected before any mutation and abort the
  whole operation with no partial effect. The one exception is the
  batch response update, which isolates failures per edit (see
  responses.go). Transaction failures roll back fully and surface as
  Transient; the caller or the queue redelivery retries the whole step.

USAGE:
  if assessment.IsNotFound(err) { ... }

  var e *assessment.Error
  if errors.As(err, &e) && e.Kind == assessment.KindInvalidState { ... }
*/
package assessment

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERROR KINDS
// =============================================================================

type ErrorKind string

const (
	KindNotFound     ErrorKind = "NotFound"
	KindInvalidState ErrorKind = "InvalidState"
	KindInvalidInput ErrorKind = "InvalidInput"
	KindConflict     ErrorKind = "Conflict"
	KindTransient    ErrorKind = "Transient"
)

// Error is the single structured error type crossing the engine
// boundary. Message never contains internal identifiers or driver
// details; the wrapped cause (if any) stays server-side.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// =============================================================================
// CONSTRUCTORS
// =============================================================================

func NotFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func InvalidStatef(format string, args ...any) error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func InvalidInputf(format string, args ...any) error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Transientf wraps a downstream failure. The cause is preserved for
// logging but not rendered into the caller-facing message.
func Transientf(cause error, format string, args ...any) error {
	return &Error{Kind: KindTransient, Message: fmt.Sprintf(format, args...), cause: cause}
}

// =============================================================================
// HELPERS
// =============================================================================

func kindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsNotFound reports whether err is a missing-entity failure.
func IsNotFound(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindNotFound
}

func IsInvalidState(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindInvalidState
}

func IsInvalidInput(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindInvalidInput
}

func IsConflict(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindConflict
}

// IsRetryable reports whether the operation might succeed on retry.
func IsRetryable(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindTransient
}
