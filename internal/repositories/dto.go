package repositories

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/fieldline/customer-api/internal/domain"
)

// ErrInvalidDTO is wrapped by every DTO validation failure.
var ErrInvalidDTO = errors.New("repositories: invalid dto")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDTO, fmt.Sprintf(format, args...))
}

// CreateAppointmentDTO carries the fields needed to book an appointment in a spot.
type CreateAppointmentDTO struct {
	CustomerID     int
	SubscriptionID int
	ServiceTypeID  int
	SpotID         int
	EmployeeID     int
	Start          time.Time
	End            time.Time
	Duration       time.Duration
	Window         domain.Window
	Notes          string
}

func (d CreateAppointmentDTO) Validate() error {
	switch {
	case d.CustomerID <= 0:
		return invalid("customer id is required")
	case d.ServiceTypeID <= 0:
		return invalid("service type is required")
	case d.SpotID <= 0:
		return invalid("spot id is required")
	case d.Start.IsZero() || d.End.IsZero():
		return invalid("start and end are required")
	case !d.End.After(d.Start):
		return invalid("end must be after start")
	}
	return nil
}

// UpdateAppointmentDTO moves an appointment to a new spot.
type UpdateAppointmentDTO struct {
	AppointmentID int
	SpotID        int
	ServiceTypeID int
	Start         time.Time
	End           time.Time
	Duration      time.Duration
	Window        domain.Window
	Notes         string
}

func (d UpdateAppointmentDTO) Validate() error {
	switch {
	case d.AppointmentID <= 0:
		return invalid("appointment id is required")
	case d.SpotID <= 0:
		return invalid("spot id is required")
	case d.Start.IsZero() || !d.End.After(d.Start):
		return invalid("a valid time range is required")
	}
	return nil
}

// SearchAppointmentsDTO filters appointments of one customer.
type SearchAppointmentsDTO struct {
	CustomerIDs []int
	DateStart   *time.Time
	DateEnd     *time.Time
	Statuses    []domain.AppointmentStatus
}

func (d SearchAppointmentsDTO) Validate() error {
	if len(d.CustomerIDs) == 0 {
		return invalid("at least one customer id is required")
	}
	if d.DateStart != nil && d.DateEnd != nil && d.DateEnd.Before(*d.DateStart) {
		return invalid("date end precedes date start")
	}
	return nil
}

// SearchSpotsDTO filters bookable spots.
type SearchSpotsDTO struct {
	SpotIDs       []int
	DateStart     time.Time
	DateEnd       time.Time
	AvailableOnly bool
}

func (d SearchSpotsDTO) Validate() error {
	if len(d.SpotIDs) > 0 {
		return nil
	}
	if d.DateStart.IsZero() || d.DateEnd.IsZero() {
		return invalid("date range is required")
	}
	if d.DateEnd.Before(d.DateStart) {
		return invalid("date end precedes date start")
	}
	return nil
}

// SearchSubscriptionsDTO filters subscriptions of customers.
type SearchSubscriptionsDTO struct {
	CustomerIDs []int
	ActiveOnly  bool
}

func (d SearchSubscriptionsDTO) Validate() error {
	if len(d.CustomerIDs) == 0 {
		return invalid("at least one customer id is required")
	}
	return nil
}

// CreateSubscriptionDTO opens a new recurring agreement.
type CreateSubscriptionDTO struct {
	CustomerID      int
	ServiceTypeID   int
	RecurringCharge decimal.Decimal
	FrequencyDays   int
	SoldBy          int
}

func (d CreateSubscriptionDTO) Validate() error {
	switch {
	case d.CustomerID <= 0:
		return invalid("customer id is required")
	case d.ServiceTypeID <= 0:
		return invalid("service type is required")
	case d.RecurringCharge.IsNegative():
		return invalid("recurring charge must not be negative")
	}
	return nil
}

// AddPaymentDTO records a collected payment.
type AddPaymentDTO struct {
	CustomerID       int
	PaymentProfileID int
	Amount           decimal.Decimal
	Method           domain.PaymentMethod
	GatewayReference string
}

func (d AddPaymentDTO) Validate() error {
	switch {
	case d.CustomerID <= 0:
		return invalid("customer id is required")
	case !d.Amount.IsPositive():
		return invalid("amount must be positive")
	case strings.TrimSpace(d.GatewayReference) == "":
		return invalid("gateway reference is required")
	}
	return nil
}

// SearchPaymentsDTO filters payments of a customer.
type SearchPaymentsDTO struct {
	CustomerID int
	DateStart  *time.Time
}

func (d SearchPaymentsDTO) Validate() error {
	if d.CustomerID <= 0 {
		return invalid("customer id is required")
	}
	return nil
}

// AddPaymentProfileDTO stores a verified card on a customer.
type AddPaymentProfileDTO struct {
	CustomerID   int
	Method       domain.PaymentMethod
	BillingName  string
	CardType     string
	LastFour     string
	ExpMonth     int
	ExpYear      int
	GatewayToken string
	Description  string
}

func (d AddPaymentProfileDTO) Validate() error {
	switch {
	case d.CustomerID <= 0:
		return invalid("customer id is required")
	case strings.TrimSpace(d.GatewayToken) == "":
		return invalid("gateway token is required")
	case d.Method == domain.PaymentMethodCard && (d.ExpMonth < 1 || d.ExpMonth > 12 || d.ExpYear <= 0):
		return invalid("card expiry is invalid")
	}
	return nil
}

// SearchPaymentProfilesDTO filters payment profiles of a customer.
type SearchPaymentProfilesDTO struct {
	CustomerID int
	ActiveOnly bool
}

func (d SearchPaymentProfilesDTO) Validate() error {
	if d.CustomerID <= 0 {
		return invalid("customer id is required")
	}
	return nil
}

// SearchDocumentsDTO filters customer-visible documents.
type SearchDocumentsDTO struct {
	CustomerID  int
	VisibleOnly bool
}

func (d SearchDocumentsDTO) Validate() error {
	if d.CustomerID <= 0 {
		return invalid("customer id is required")
	}
	return nil
}

// SearchTicketsDTO filters invoices of a customer.
type SearchTicketsDTO struct {
	CustomerID     int
	SubscriptionID int
	DateStart      *time.Time
}

func (d SearchTicketsDTO) Validate() error {
	if d.CustomerID <= 0 && d.SubscriptionID <= 0 {
		return invalid("customer or subscription id is required")
	}
	return nil
}

// UpdateCustomerDTO changes mutable customer settings.
type UpdateCustomerDTO struct {
	CustomerID       int
	AutoPayProfileID *int
	Email            *string
}

func (d UpdateCustomerDTO) Validate() error {
	if d.CustomerID <= 0 {
		return invalid("customer id is required")
	}
	if d.AutoPayProfileID == nil && d.Email == nil {
		return invalid("no changes supplied")
	}
	return nil
}
