// Package coreerrors defines the error taxonomy shared by the discussion
// engine's components, so callers can distinguish configuration mistakes,
// missing resources, capability violations, and transient vs. fatal model
// failures without string-matching error text.
package coreerrors

import "errors"

var (
	// ErrNotFound is returned when a session, event, agent or scenario
	// lookup finds nothing.
	ErrNotFound = errors.New("not found")

	// ErrConfiguration marks a problem with process configuration (missing
	// API key, invalid scenario, unknown provider id).
	ErrConfiguration = errors.New("configuration error")

	// ErrCapability marks an operation that is not permitted in the
	// session's current state (speaking out of turn, controlling a
	// completed session, an agent acting outside its granted permissions).
	ErrCapability = errors.New("capability error")

	// ErrTransientModel marks a model-call failure expected to succeed on
	// retry (timeout, rate limit, 5xx).
	ErrTransientModel = errors.New("transient model error")

	// ErrAuthModel marks a model-call failure caused by bad credentials;
	// retrying will not help.
	ErrAuthModel = errors.New("model authentication error")

	// ErrFatal marks an unrecoverable internal error that should abort the
	// session rather than retry.
	ErrFatal = errors.New("fatal error")
)

// HandlerError wraps a panic or unexpected failure recovered while running
// a subscriber, command handler or discussion-loop step. Its Cause is the
// original error or a value derived from a recovered panic.
type HandlerError struct {
	Op    string
	Cause error
}

func (e *HandlerError) Error() string {
	return e.Op + ": " + e.Cause.Error()
}

func (e *HandlerError) Unwrap() error {
	return e.Cause
}

// NewHandlerError wraps cause with the operation name that produced it.
func NewHandlerError(op string, cause error) *HandlerError {
	return &HandlerError{Op: op, Cause: cause}
}

// Is reports whether err (or anything it wraps) matches target, using the
// standard errors.Is semantics. Provided for symmetry with the rest of the
// package's small surface.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
