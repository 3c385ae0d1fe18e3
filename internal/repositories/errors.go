package repositories

import (
	"errors"
	"fmt"
)

// ErrAppointmentNotCancelled is returned when the field-service refuses to cancel an appointment.
var ErrAppointmentNotCancelled = errors.New("repositories: appointment not cancelled")

// EntityNotFoundError reports a missing remote entity.
type EntityNotFoundError struct {
	Entity string
	ID     int
	Err    error
}

func (e *EntityNotFoundError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("repositories: %s not found", e.Entity)
	}
	return fmt.Sprintf("repositories: %s %d not found", e.Entity, e.ID)
}

func (e *EntityNotFoundError) Unwrap() error       { return e.Err }
func (e *EntityNotFoundError) IsNotFound() bool    { return true }
func (e *EntityNotFoundError) IsConflict() bool    { return false }
func (e *EntityNotFoundError) IsUnavailable() bool { return false }

// InternalServerError reports an upstream failure while talking to an external system.
type InternalServerError struct {
	Entity string
	Op     string
	Err    error
}

func (e *InternalServerError) Error() string {
	return fmt.Sprintf("repositories: %s %s failed: %v", e.Op, e.Entity, e.Err)
}

func (e *InternalServerError) Unwrap() error       { return e.Err }
func (e *InternalServerError) IsNotFound() bool    { return false }
func (e *InternalServerError) IsConflict() bool    { return false }
func (e *InternalServerError) IsUnavailable() bool { return true }

// IsNotFound reports whether err carries a not-found repository classification.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
