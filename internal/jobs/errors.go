package jobs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers that need to map it to a response.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindForbidden  Kind = "forbidden"
	KindValidation Kind = "validation"
	KindTransient  Kind = "transient"
	KindInternal   Kind = "internal"
)

// Error is the typed failure returned by Service operations.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

// Sentinels for errors.Is checks against a failure kind.
var (
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrForbidden  = &Error{Kind: KindForbidden}
	ErrValidation = &Error{Kind: KindValidation}
	ErrTransient  = &Error{Kind: KindTransient}
)

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorKind exposes the classification as a plain string.
func (e *Error) ErrorKind() string { return string(e.Kind) }

// Is matches a bare sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op != "" || t.Msg != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the classification of err, or KindInternal when err carries
// none.
func KindOf(err error) Kind {
	var jobErr *Error
	if errors.As(err, &jobErr) {
		return jobErr.Kind
	}
	return KindInternal
}

func notFound(op, id string) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf("job with ID %q not found", id)}
}

func forbidden(op string) error {
	return &Error{Kind: KindForbidden, Op: op, Msg: "only the user who created this job may modify it"}
}

func invalid(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func conflict(op, format string, args ...any) error {
	return &Error{Kind: KindConflict, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func transient(op string, err error) error {
	return &Error{Kind: KindTransient, Op: op, Msg: "queue reassignment failed; retry the request", Err: err}
}

func internal(op string, err error) error {
	return &Error{Kind: KindInternal, Op: op, Err: err}
}
