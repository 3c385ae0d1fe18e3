package services

import (
	"sort"
	"time"

	domain "github.com/fieldline/customer-api/internal/domain"
)

const (
	reserviceDuration       = 20 * time.Minute
	fallbackServiceDuration = 30 * time.Minute
	maxServiceDuration      = 60 * time.Minute
	baseSquareFeet          = 4000
	squareFeetStep          = 2000
	squareFeetIncrement     = 10 * time.Minute
	defaultCancelCutoff     = 24 * time.Hour
)

// Reasons reported by denied rule checks.
const (
	ReasonAccountFrozen       = "account is frozen"
	ReasonDuplicateUpcoming   = "an upcoming appointment of this service type already exists"
	ReasonInitialAppointment  = "initial appointments cannot be rescheduled"
	ReasonNotPending          = "appointment is not pending"
	ReasonInPast              = "appointment date is in the past"
	ReasonAlreadyClosed       = "appointment is already cancelled or completed"
	ReasonInsideCancelCutoff  = "appointment starts too soon to cancel"
	ReasonCustomerInactive    = "customer is inactive"
	ReasonDuplicateAgreement  = "an active subscription of this service type already exists"
	ReasonServiceNotRecurring = "service type is not offered as a subscription"
)

// AppointmentRules holds the scheduling policy shared by the appointment actions.
type AppointmentRules struct {
	Now          func() time.Time
	CancelCutoff time.Duration
}

// NewAppointmentRules returns rules using clock, defaulting to time.Now.
func NewAppointmentRules(clock func() time.Time) AppointmentRules {
	if clock == nil {
		clock = time.Now
	}
	return AppointmentRules{Now: clock, CancelCutoff: defaultCancelCutoff}
}

func (r AppointmentRules) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// EligibleSubscription picks the subscription a new appointment attaches to: active ones only,
// preferring a recurring service type, then the most recently created.
func (r AppointmentRules) EligibleSubscription(subscriptions []domain.Subscription) (domain.Subscription, error) {
	active := make([]domain.Subscription, 0, len(subscriptions))
	for _, sub := range subscriptions {
		if sub.Active {
			active = append(active, sub)
		}
	}
	if len(active) == 0 {
		return domain.Subscription{}, ErrNoEligibleSubscription
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})
	for _, sub := range active {
		if st, err := sub.ServiceType(); err == nil && st.Recurring {
			return sub, nil
		}
	}
	return active[0], nil
}

// IsReservice reports whether a new appointment on sub is a reservice: the initial service was
// completed and the agreement is still active.
func (r AppointmentRules) IsReservice(sub domain.Subscription) bool {
	return sub.Active && sub.InitialCompleted
}

// CanCreateAppointment refuses frozen accounts and duplicates of an upcoming visit.
func (r AppointmentRules) CanCreateAppointment(account domain.Account, customer domain.Customer, serviceTypeID int, upcoming []domain.Appointment) domain.Check {
	if account.Frozen {
		return domain.Deny(ReasonAccountFrozen)
	}
	if !customer.Active {
		return domain.Deny(ReasonCustomerInactive)
	}
	for _, appt := range upcoming {
		if appt.Status == domain.AppointmentStatusCancelled {
			continue
		}
		if appt.ServiceTypeID == serviceTypeID {
			return domain.Deny(ReasonDuplicateUpcoming)
		}
	}
	return domain.Allow()
}

// CanReschedule allows pending appointments whose date has not passed.
func (r AppointmentRules) CanReschedule(appt domain.Appointment) domain.Check {
	if isInitial(appt) {
		return domain.Deny(ReasonInitialAppointment)
	}
	if appt.Status != domain.AppointmentStatusPending {
		return domain.Deny(ReasonNotPending)
	}
	now := r.now().In(appt.Start.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if appt.Date().Before(today) {
		return domain.Deny(ReasonInPast)
	}
	return domain.Allow()
}

// CanCancel allows open appointments that start more than the cutoff from now.
func (r AppointmentRules) CanCancel(appt domain.Appointment) domain.Check {
	switch appt.Status {
	case domain.AppointmentStatusCancelled, domain.AppointmentStatusCompleted:
		return domain.Deny(ReasonAlreadyClosed)
	}
	cutoff := r.CancelCutoff
	if cutoff <= 0 {
		cutoff = defaultCancelCutoff
	}
	if appt.Start.Sub(r.now()) <= cutoff {
		return domain.Deny(ReasonInsideCancelCutoff)
	}
	return domain.Allow()
}

// Duration computes the visit length. Reservices are fixed; other visits start from the service
// type default and grow with the customer's square footage, capped at one hour.
func (r AppointmentRules) Duration(serviceType domain.ServiceType, customer domain.Customer, reservice bool) time.Duration {
	if reservice || serviceType.Reservice {
		return reserviceDuration
	}
	duration := serviceType.DefaultDuration
	if duration <= 0 {
		duration = fallbackServiceDuration
	}
	if extra := customer.SquareFeet - baseSquareFeet; extra > 0 {
		duration += time.Duration(extra/squareFeetStep) * squareFeetIncrement
	}
	if duration > maxServiceDuration {
		duration = maxServiceDuration
	}
	return duration
}

// EndTime is start plus duration, clamped to 23:59:59 of the start date.
func (r AppointmentRules) EndTime(start time.Time, duration time.Duration) time.Time {
	end := start.Add(duration)
	y, m, d := start.Date()
	lastSecond := time.Date(y, m, d, 23, 59, 59, 0, start.Location())
	if end.After(lastSecond) {
		return lastSecond
	}
	return end
}

func isInitial(appt domain.Appointment) bool {
	if appt.Initial {
		return true
	}
	st, err := appt.ServiceType()
	return err == nil && st.Initial
}
