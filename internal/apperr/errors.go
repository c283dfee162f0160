package apperr

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies an error so transports can map it without string matching.
type Kind uint8

const (
	Internal Kind = iota
	Unauthenticated
	InvalidCredential
	NotFound
	Forbidden
	Persistence
	DeleteFailed
	Validation
	Conflict
)

func (k Kind) String() string {
	switch k {
	case Unauthenticated:
		return "unauthenticated"
	case InvalidCredential:
		return "invalid_credential"
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	case Persistence:
		return "persistence_error"
	case DeleteFailed:
		return "delete_failed"
	case Validation:
		return "validation_error"
	case Conflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is the error type returned by services.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an Error. The cause may be nil.
func E(kind Kind, op string, cause error) *Error {
	if cause != nil {
		cause = pkgerrors.WithStack(cause)
	}
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Ef builds an Error with a user facing message and no cause.
func Ef(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the text safe to show to a client.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal server error"
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Kind == Persistence || e.Kind == Internal {
		return "internal server error"
	}
	return e.Kind.String()
}
