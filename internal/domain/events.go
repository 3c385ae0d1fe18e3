package domain

import "time"

// EventType names a domain event published after a successful mutation.
type EventType string

const (
	EventAppointmentScheduled   EventType = "appointment.scheduled"
	EventAppointmentRescheduled EventType = "appointment.rescheduled"
	EventAppointmentCanceled    EventType = "appointment.canceled"
	EventSubscriptionCreated    EventType = "subscription.created"
	EventPaymentCreated         EventType = "payment.created"
	EventPaymentProfileAdded    EventType = "payment_profile.added"
	EventPaymentProfileDeleted  EventType = "payment_profile.deleted"
)

// Event is a fire-and-observe notification for downstream listeners.
type Event struct {
	ID            string
	Type          EventType
	OfficeID      int
	AccountNumber int
	SubjectID     int
	OccurredAt    time.Time
	Attributes    map[string]string
}
