package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Relation names accepted by the field-service repositories.
const (
	RelationServiceType     = "serviceType"
	RelationCustomer        = "customer"
	RelationSubscription    = "subscription"
	RelationSpot            = "spot"
	RelationSubscriptions   = "subscriptions"
	RelationAppointments    = "appointments"
	RelationPaymentProfiles = "paymentProfiles"
	RelationRecurringTicket = "recurringTicket"
)

// AppointmentStatus mirrors the field-service appointment state.
type AppointmentStatus string

const (
	AppointmentStatusPending     AppointmentStatus = "pending"
	AppointmentStatusCompleted   AppointmentStatus = "completed"
	AppointmentStatusNoShow      AppointmentStatus = "no_show"
	AppointmentStatusRescheduled AppointmentStatus = "rescheduled"
	AppointmentStatusCancelled   AppointmentStatus = "cancelled"
)

// Window is the customer-facing arrival window of a spot or appointment.
type Window string

const (
	WindowAM  Window = "AM"
	WindowPM  Window = "PM"
	WindowAny Window = "AT"
)

// Address is a postal address as stored by the field-service.
type Address struct {
	Street string
	City   string
	State  string
	Zip    string
}

// Appointment is a scheduled service visit.
type Appointment struct {
	ID             int
	OfficeID       int
	CustomerID     int
	SubscriptionID int
	ServiceTypeID  int
	SpotID         int
	RouteID        int
	EmployeeID     int
	Status         AppointmentStatus
	Initial        bool
	Window         Window
	Start          time.Time
	End            time.Time
	Duration       time.Duration
	Notes          string
	CreatedAt      time.Time
	CancelledAt    *time.Time
	CompletedAt    *time.Time

	serviceType  Relation[ServiceType]
	customer     Relation[Customer]
	subscription Relation[Subscription]
	spot         Relation[Spot]
}

// Date returns the calendar day of the appointment in its own location.
func (a Appointment) Date() time.Time {
	y, m, d := a.Start.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, a.Start.Location())
}

func (a Appointment) ServiceType() (ServiceType, error) {
	return a.serviceType.get("appointment", RelationServiceType)
}

func (a Appointment) Customer() (Customer, error) {
	return a.customer.get("appointment", RelationCustomer)
}

func (a Appointment) Subscription() (Subscription, error) {
	return a.subscription.get("appointment", RelationSubscription)
}

func (a Appointment) Spot() (Spot, error) {
	return a.spot.get("appointment", RelationSpot)
}

func (a *Appointment) SetServiceType(v ServiceType)   { a.serviceType = LoadedRelation(v) }
func (a *Appointment) SetCustomer(v Customer)         { a.customer = LoadedRelation(v) }
func (a *Appointment) SetSubscription(v Subscription) { a.subscription = LoadedRelation(v) }
func (a *Appointment) SetSpot(v Spot)                 { a.spot = LoadedRelation(v) }

// HasServiceType reports whether the serviceType relation was loaded.
func (a Appointment) HasServiceType() bool { return a.serviceType.Loaded() }

// Customer is a field-service customer record.
type Customer struct {
	ID               int
	OfficeID         int
	FirstName        string
	LastName         string
	CompanyName      string
	Email            string
	Phone            string
	Address          Address
	Active           bool
	Balance          decimal.Decimal
	AutoPayProfileID int
	SquareFeet       int
	PaperlessBilling bool
	CreatedAt        time.Time
	subscriptions    RelationList[Subscription]
	appointments     RelationList[Appointment]
	paymentProfiles  RelationList[PaymentProfile]
}

// DisplayName joins the customer's first and last name, falling back to the company name.
func (c Customer) DisplayName() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	case c.LastName != "":
		return c.LastName
	default:
		return c.CompanyName
	}
}

func (c Customer) Subscriptions() ([]Subscription, error) {
	return c.subscriptions.get("customer", RelationSubscriptions)
}

func (c Customer) Appointments() ([]Appointment, error) {
	return c.appointments.get("customer", RelationAppointments)
}

func (c Customer) PaymentProfiles() ([]PaymentProfile, error) {
	return c.paymentProfiles.get("customer", RelationPaymentProfiles)
}

func (c *Customer) SetSubscriptions(v []Subscription)     { c.subscriptions = LoadedRelationList(v) }
func (c *Customer) SetAppointments(v []Appointment)       { c.appointments = LoadedRelationList(v) }
func (c *Customer) SetPaymentProfiles(v []PaymentProfile) { c.paymentProfiles = LoadedRelationList(v) }

// Subscription is a recurring service agreement.
type Subscription struct {
	ID                   int
	OfficeID             int
	CustomerID           int
	ServiceTypeID        int
	Active               bool
	FrequencyDays        int
	RecurringCharge      decimal.Decimal
	ContractValue        decimal.Decimal
	RecurringTicketID    int
	InitialAppointmentID int
	InitialCompleted     bool
	LastCompletedService *time.Time
	CreatedAt            time.Time
	serviceType          Relation[ServiceType]
	recurringTicket      Relation[Ticket]
}

func (s Subscription) ServiceType() (ServiceType, error) {
	return s.serviceType.get("subscription", RelationServiceType)
}

func (s Subscription) RecurringTicket() (Ticket, error) {
	return s.recurringTicket.get("subscription", RelationRecurringTicket)
}

func (s *Subscription) SetServiceType(v ServiceType) { s.serviceType = LoadedRelation(v) }
func (s *Subscription) SetRecurringTicket(v Ticket)  { s.recurringTicket = LoadedRelation(v) }

// ServiceType describes the kind of visit performed for an appointment or subscription.
type ServiceType struct {
	ID              int
	OfficeID        int
	Description     string
	DefaultDuration time.Duration
	FrequencyDays   int
	Initial         bool
	Reservice       bool
	Recurring       bool
	DefaultCharge   decimal.Decimal
}

// Spot is a bookable time slot on a technician route.
type Spot struct {
	ID             int
	OfficeID       int
	RouteID        int
	Start          time.Time
	End            time.Time
	Open           bool
	Reserved       bool
	AppointmentIDs []int
}

// Available reports whether a new appointment can be placed in the spot.
func (s Spot) Available() bool {
	return s.Open && !s.Reserved && len(s.AppointmentIDs) == 0
}

// Window derives the arrival window from the spot start hour.
func (s Spot) Window() Window {
	if s.Start.Hour() < 12 {
		return WindowAM
	}
	return WindowPM
}

// Employee is an office staff member or technician.
type Employee struct {
	ID        int
	OfficeID  int
	FirstName string
	LastName  string
	Type      string
	Active    bool
}

// FullName joins first and last names.
func (e Employee) FullName() string {
	if e.LastName == "" {
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}

// PaymentStatus mirrors the field-service payment state.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusSuccessful PaymentStatus = "successful"
	PaymentStatusDeclined   PaymentStatus = "declined"
	PaymentStatusVoided     PaymentStatus = "voided"
)

// Payment is a recorded customer payment.
type Payment struct {
	ID               int
	OfficeID         int
	CustomerID       int
	PaymentProfileID int
	Amount           decimal.Decimal
	AppliedAmount    decimal.Decimal
	Method           string
	Status           PaymentStatus
	GatewayReference string
	Date             time.Time
}

// PaymentMethod enumerates stored payment profile kinds.
type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "card"
	PaymentMethodACH  PaymentMethod = "ach"
)

// PaymentProfile is a stored payment instrument on a customer.
type PaymentProfile struct {
	ID           int
	OfficeID     int
	CustomerID   int
	Method       PaymentMethod
	Description  string
	BillingName  string
	CardType     string
	LastFour     string
	ExpMonth     int
	ExpYear      int
	GatewayToken string
	Active       bool
	CreatedAt    time.Time
}

// Expired reports whether a card profile has passed its expiry month.
func (p PaymentProfile) Expired(now time.Time) bool {
	if p.Method != PaymentMethodCard || p.ExpYear == 0 {
		return false
	}
	if now.Year() != p.ExpYear {
		return now.Year() > p.ExpYear
	}
	return int(now.Month()) > p.ExpMonth
}

// DocumentKind distinguishes the three downloadable customer file families.
type DocumentKind string

const (
	DocumentKindDocument DocumentKind = "documents"
	DocumentKindContract DocumentKind = "contracts"
	DocumentKindForm     DocumentKind = "forms"
)

// Document is a customer-visible file such as a service report.
type Document struct {
	ID            int
	OfficeID      int
	CustomerID    int
	AppointmentID int
	Description   string
	URL           string
	Visible       bool
	CreatedAt     time.Time
}

// Office is a field-service branch.
type Office struct {
	ID       int
	Name     string
	Region   string
	TimeZone string
	Address  Address
}

// Location resolves the office time zone, defaulting to UTC.
func (o Office) Location() *time.Location {
	if o.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(o.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Ticket is an invoice. Recurring tickets are templates billed on each service.
type Ticket struct {
	ID             int
	OfficeID       int
	CustomerID     int
	SubscriptionID int
	Total          decimal.Decimal
	Balance        decimal.Decimal
	Items          []TicketItem
	CreatedAt      time.Time
}

// ProductIDs lists the product identifiers referenced by the ticket line items.
func (t Ticket) ProductIDs() []int {
	ids := make([]int, 0, len(t.Items))
	for _, item := range t.Items {
		if item.ProductID != 0 {
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}

// TicketItem is a single invoice line.
type TicketItem struct {
	ProductID   int
	Description string
	Quantity    int
	Amount      decimal.Decimal
}

// Contract is a signed service agreement.
type Contract struct {
	ID              int
	OfficeID        int
	CustomerID      int
	SubscriptionIDs []int
	Description     string
	URL             string
	SignedAt        *time.Time
	CreatedAt       time.Time
}

// Form is a signed customer form.
type Form struct {
	ID          int
	OfficeID    int
	CustomerID  int
	TemplateID  int
	Description string
	URL         string
	SignedAt    *time.Time
	CreatedAt   time.Time
}
