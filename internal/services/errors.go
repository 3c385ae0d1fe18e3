package services

import "errors"

var (
	// ErrAccountNotFound indicates the caller has no linked field-service account.
	ErrAccountNotFound = errors.New("services: account not found")
	// ErrAccountMismatch indicates the resource belongs to a different customer.
	ErrAccountMismatch = errors.New("services: resource does not belong to account")
	// ErrAccountFrozen indicates the account may not perform mutations.
	ErrAccountFrozen = errors.New("services: account is frozen")
	// ErrCustomerNotFound indicates no field-service customer matched the lookup.
	ErrCustomerNotFound = errors.New("services: customer not found")

	ErrNoEligibleSubscription  = errors.New("services: no eligible subscription")
	ErrNotesRequired           = errors.New("services: notes are required")
	ErrCannotCreateAppointment = errors.New("services: appointment cannot be created")
	ErrCannotReschedule        = errors.New("services: appointment cannot be rescheduled")
	ErrCannotCancel            = errors.New("services: appointment cannot be cancelled")
	ErrSpotAlreadyUsed         = errors.New("services: spot is not available")

	ErrCannotCreateSubscription = errors.New("services: subscription cannot be created")

	ErrPaymentProfileNotFound = errors.New("services: payment profile not found")
	ErrProfileInUse           = errors.New("services: payment profile is used for autopay")
	ErrInvalidAmount          = errors.New("services: invalid amount")

	ErrDocumentNotFound = errors.New("services: document not found")
	ErrInvalidDocument  = errors.New("services: unknown document kind")
)

// RuleError carries the reason a rule check denied an operation. It unwraps to the sentinel so
// callers match with errors.Is.
type RuleError struct {
	Err    error
	Reason string
}

func (e *RuleError) Error() string {
	if e.Reason == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Reason
}

func (e *RuleError) Unwrap() error { return e.Err }

func denied(sentinel error, reason string) error {
	return &RuleError{Err: sentinel, Reason: reason}
}
