package fieldservice

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNotFound is matched by APIError values describing a missing entity.
	ErrNotFound = errors.New("fieldservice: not found")
	// ErrUnavailable is matched by transport failures, decode failures and 5xx responses.
	ErrUnavailable = errors.New("fieldservice: unavailable")
	// ErrRejected is matched by responses where the remote refused the operation.
	ErrRejected = errors.New("fieldservice: request rejected")
)

// APIError describes an unsuccessful field-service call.
type APIError struct {
	Resource   Resource
	Op         string
	StatusCode int
	Message    string
	kind       error
	cause      error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && e.cause != nil {
		msg = e.cause.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("fieldservice: %s %s: status %d: %s", e.Op, e.Resource, e.StatusCode, msg)
	}
	return fmt.Sprintf("fieldservice: %s %s: %s", e.Op, e.Resource, msg)
}

func (e *APIError) Unwrap() error { return e.cause }

// Is matches ErrNotFound, ErrUnavailable or ErrRejected according to the failure class.
func (e *APIError) Is(target error) bool {
	return target == e.kind
}

func newResponseError(resource Resource, op string, status int, message string) *APIError {
	return &APIError{
		Resource:   resource,
		Op:         op,
		StatusCode: status,
		Message:    strings.TrimSpace(message),
		kind:       classify(status, message),
	}
}

func transportError(resource Resource, op string, err error) *APIError {
	return &APIError{Resource: resource, Op: op, kind: ErrUnavailable, cause: err}
}

func classify(status int, message string) error {
	if status == http.StatusNotFound {
		return ErrNotFound
	}
	msg := strings.ToLower(message)
	if strings.Contains(msg, "not found") || (strings.HasPrefix(msg, "no ") && strings.Contains(msg, " found")) {
		return ErrNotFound
	}
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		return ErrUnavailable
	}
	return ErrRejected
}
