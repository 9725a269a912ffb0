//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import (
	"errors"
	"strings"
)

// Error kinds. Every error surfaced by the session runtime is an *Error whose Kind is one
// of these sentinels, so callers can classify failures with errors.Is.
var (
	// ErrAcquisition is returned when the data source cannot hand out a connection.
	ErrAcquisition = errors.New("connection acquisition failed")

	// ErrTransaction is returned when begin, commit, rollback or close fails on a connection.
	ErrTransaction = errors.New("transaction operation failed")

	// ErrExecution is returned when a statement fails to run.
	ErrExecution = errors.New("statement execution failed")

	// ErrUnknownStatement is returned when a statement id is not registered.
	ErrUnknownStatement = errors.New("unknown mapped statement")

	// ErrUsage is returned when an operation is attempted on a closed session or executor.
	ErrUsage = errors.New("invalid usage")
)

// Causes carried inside an *Error.
var (
	// ErrUnsupported marks an operation the selected executor does not implement.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrTooManyResults is returned by SelectOne when more than one row matches.
	ErrTooManyResults = errors.New("expected one result (or none) but found more")

	// ErrSessionNotOpened is returned when a session handle that was never opened is used.
	ErrSessionNotOpened = errors.New("session was never opened")

	// ErrClosed is the cause of usage errors raised after Close.
	ErrClosed = errors.New("already closed")
)

// Error carries the failure kind together with diagnostic context: the operation that
// failed and, when known, the mapped statement id.
type Error struct {
	Kind        error
	Op          string
	StatementID string
	Err         error
}

// NewError creates an *Error of the given kind for operation op.
func NewError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithStatement returns e annotated with the mapped statement id.
func (e *Error) WithStatement(id string) *Error {
	e.StatementID = id
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.StatementID != "" {
		b.WriteString(" [")
		b.WriteString(e.StatementID)
		b.WriteString("]")
	}
	if e.Kind != nil {
		b.WriteString(": ")
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Wrap converts err to an *Error of the given kind unless it already is one, in which case
// the existing classification is kept and only missing context is filled in.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return NewError(kind, op, err)
}
