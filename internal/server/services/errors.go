package services

import (
	"fmt"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/juju/errors"
)

// Kind classifies the result of a service call. Every failure maps to
// exactly one Kind.
type Kind int

const (
	KindOK Kind = iota
	KindBadRequest
	KindNotFound
	KindUnauthorized
	KindConnection
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindBadRequest:
		return "bad request"
	case KindNotFound:
		return "not found"
	case KindUnauthorized:
		return "unauthorized"
	case KindConnection:
		return "connection error"
	case KindConflict:
		return "conflict"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrConnection marks failures of the metadata or blob store, expected or not.
const ErrConnection = errors.ConstError("connection error")

// connectionError tags err as a backing-store failure while keeping it in
// the chain for logging.
func connectionError(err error, msg string) error {
	return fmt.Errorf("%w: %s: %w", ErrConnection, msg, err)
}

// KindOf classifies err. Anything not recognised is a connection error, so
// unexpected faults are never reported as caller mistakes.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, errors.BadRequest), errors.Is(err, errors.NotValid):
		return KindBadRequest
	case errors.Is(err, errors.NotFound), errors.Is(err, common.ErrorNotFound):
		return KindNotFound
	case errors.Is(err, errors.Unauthorized), errors.Is(err, common.ErrorUnauthorized):
		return KindUnauthorized
	case errors.Is(err, errors.AlreadyExists), errors.Is(err, common.ErrConflict):
		return KindConflict
	default:
		return KindConnection
	}
}

// Outcome is the immutable per-call result: a Kind and a human readable message.
type Outcome struct {
	Kind    Kind
	Message string
}

// OK reports whether the call succeeded.
func (o Outcome) OK() bool {
	return o.Kind == KindOK
}

// Err returns nil for a successful outcome and an *Error otherwise.
func (o Outcome) Err() error {
	if o.OK() {
		return nil
	}
	return &Error{Outcome: o}
}

// OutcomeOf builds the Outcome for err.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return Outcome{Kind: KindOK}
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Outcome
	}
	k := KindOf(err)
	msg := err.Error()
	if k == KindConnection {
		// Store internals stay in the logs.
		msg = ErrConnection.Error()
	}
	return Outcome{Kind: k, Message: msg}
}

// Error is the failure returned across the service boundary.
type Error struct {
	Outcome
	cause error
}

// fail converts err into an *Error carrying its classification.
func fail(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Outcome: OutcomeOf(err), cause: err}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}
