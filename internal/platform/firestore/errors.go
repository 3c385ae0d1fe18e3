package firestore

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type errorKind uint8

const (
	kindOther errorKind = iota
	kindNotFound
	kindConflict
	kindUnavailable
)

func kindOf(err error) errorKind {
	switch status.Code(err) {
	case codes.NotFound:
		return kindNotFound
	case codes.AlreadyExists, codes.FailedPrecondition, codes.Aborted:
		return kindConflict
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal:
		return kindUnavailable
	default:
		return kindOther
	}
}

// Error is a classified Firestore failure. It satisfies repositories.RepositoryError.
type Error struct {
	op   string
	kind errorKind
	err  error
}

func (e *Error) Error() string {
	if e.op == "" {
		return e.err.Error()
	}
	return e.op + ": " + e.err.Error()
}

func (e *Error) Unwrap() error       { return e.err }
func (e *Error) IsNotFound() bool    { return e.kind == kindNotFound }
func (e *Error) IsConflict() bool    { return e.kind == kindConflict }
func (e *Error) IsUnavailable() bool { return e.kind == kindUnavailable }

// WrapError classifies err by its gRPC status. Cancellation and deadline errors come back as
// the plain context sentinels so handlers can tell them apart from store failures.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.Canceled), status.Code(err) == codes.Canceled:
		return context.Canceled
	case errors.Is(err, context.DeadlineExceeded), status.Code(err) == codes.DeadlineExceeded:
		return context.DeadlineExceeded
	}

	var existing *Error
	if errors.As(err, &existing) {
		if existing.op == "" {
			existing.op = op
		}
		return existing
	}
	return &Error{op: op, kind: kindOf(err), err: err}
}
