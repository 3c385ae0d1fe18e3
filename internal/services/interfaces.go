package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/fieldline/customer-api/internal/domain"
	"github.com/fieldline/customer-api/internal/payments"
	"github.com/fieldline/customer-api/internal/platform/auth"
	"github.com/fieldline/customer-api/internal/platform/storage"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Account        = domain.Account
	Appointment    = domain.Appointment
	Customer       = domain.Customer
	Subscription   = domain.Subscription
	Spot           = domain.Spot
	Payment        = domain.Payment
	PaymentProfile = domain.PaymentProfile
	UpgradeSummary = domain.UpgradeSummary
	HealthReport   = domain.HealthReport
)

// Logger receives structured service events. main.go adapts it onto zap.
type Logger func(ctx context.Context, event string, fields map[string]any)

func noopLogger(context.Context, string, map[string]any) {}

// EventPublisher delivers domain events after a successful mutation.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// PlanCatalog reads plans from the plan-pricing service.
type PlanCatalog interface {
	Plans(ctx context.Context, officeID int) ([]domain.Plan, error)
	CurrentPlan(ctx context.Context, officeID, customerID int) (domain.Plan, error)
}

// PaymentCharger abstracts payments.Manager. Refund compensates a charge that could not be recorded.
type PaymentCharger interface {
	Charge(ctx context.Context, paymentCtx payments.PaymentContext, req payments.ChargeRequest) (payments.PaymentDetails, error)
	Refund(ctx context.Context, paymentCtx payments.PaymentContext, req payments.RefundRequest) (payments.PaymentDetails, error)
}

// CardVerifier abstracts the Stripe payment method verifier.
type CardVerifier interface {
	Verify(ctx context.Context, token string) (payments.PaymentMethodDetails, error)
}

// DocumentArchiver copies a remote file into the documents bucket.
type DocumentArchiver interface {
	Archive(ctx context.Context, object, sourceURL string) (bool, error)
}

// DownloadSigner issues time-limited download links.
type DownloadSigner interface {
	SignedDownloadURL(ctx context.Context, object string, opts storage.DownloadOptions) (storage.SignedURL, error)
}

// AppointmentService runs the appointment lifecycle for an authenticated account.
type AppointmentService interface {
	Create(ctx context.Context, cmd CreateAppointmentCommand) (Appointment, error)
	Reschedule(ctx context.Context, cmd RescheduleAppointmentCommand) (Appointment, error)
	RescheduleInFlexIVR(ctx context.Context, cmd FlexIVRRescheduleCommand) (Appointment, error)
	Cancel(ctx context.Context, cmd CancelAppointmentCommand) error
	Search(ctx context.Context, cmd SearchAppointmentsCommand) ([]Appointment, error)
	Find(ctx context.Context, account Account, appointmentID int) (Appointment, error)
	Upcoming(ctx context.Context, account Account) ([]Appointment, error)
	AvailableSpots(ctx context.Context, cmd SearchSpotsCommand) ([]Spot, error)
}

// CreateAppointmentCommand books a spot for the account's eligible subscription.
type CreateAppointmentCommand struct {
	Account   Account
	SpotID    int
	Notes     string
	Window    domain.Window
	IsAroSpot bool
}

// RescheduleAppointmentCommand moves an appointment to another spot.
type RescheduleAppointmentCommand struct {
	Account       Account
	AppointmentID int
	SpotID        int
	Notes         string
	Window        domain.Window
	IsAroSpot     bool
}

// FlexIVRRescheduleCommand is issued by the IVR system on behalf of a caller.
type FlexIVRRescheduleCommand struct {
	OfficeID      int
	AccountNumber int
	AppointmentID int
	SpotID        int
	Notes         string
	Window        domain.Window
	// Caller identifies the authenticated service for the audit trail.
	Caller string
}

// CancelAppointmentCommand cancels an appointment owned by the account.
type CancelAppointmentCommand struct {
	Account       Account
	AppointmentID int
}

// SearchAppointmentsCommand filters the account's appointments.
type SearchAppointmentsCommand struct {
	Account   Account
	DateStart *time.Time
	DateEnd   *time.Time
	Statuses  []domain.AppointmentStatus
	Page      int
	PageSize  int
}

// SearchSpotsCommand lists bookable spots in the account's office.
type SearchSpotsCommand struct {
	Account   Account
	DateStart time.Time
	DateEnd   time.Time
}

// CustomerService exposes the account's customer record.
type CustomerService interface {
	GetCustomer(ctx context.Context, account Account) (Customer, error)
	UpdateAutopay(ctx context.Context, account Account, profileID int) (Customer, error)
}

// SubscriptionService lists and opens agreements.
type SubscriptionService interface {
	List(ctx context.Context, account Account) ([]Subscription, error)
	Create(ctx context.Context, cmd CreateSubscriptionCommand) (Subscription, error)
}

// CreateSubscriptionCommand opens a recurring agreement of ServiceTypeID.
type CreateSubscriptionCommand struct {
	Account       Account
	ServiceTypeID int
	FrequencyDays int
}

// UpgradeService evaluates plan upgrades.
type UpgradeService interface {
	ShowUpgrades(ctx context.Context, account Account, subscriptionID int) (UpgradeSummary, error)
}

// PaymentService lists and collects payments.
type PaymentService interface {
	List(ctx context.Context, cmd ListPaymentsCommand) ([]Payment, error)
	Create(ctx context.Context, cmd CreatePaymentCommand) (Payment, error)
}

// ListPaymentsCommand pages through the account's payments.
type ListPaymentsCommand struct {
	Account  Account
	Page     int
	PageSize int
}

// CreatePaymentCommand charges a stored profile.
type CreatePaymentCommand struct {
	Account          Account
	Amount           decimal.Decimal
	PaymentProfileID int
	IdempotencyKey   string
}

// PaymentProfileService manages stored cards.
type PaymentProfileService interface {
	List(ctx context.Context, account Account) ([]PaymentProfile, error)
	AddCard(ctx context.Context, cmd AddCardCommand) (PaymentProfile, error)
	Delete(ctx context.Context, account Account, profileID int) error
}

// AddCardCommand stores a tokenised card on the account's customer.
type AddCardCommand struct {
	Account     Account
	Token       string
	BillingName string
}

// DocumentService lists customer files and hands out download links.
type DocumentService interface {
	List(ctx context.Context, account Account) ([]CustomerFile, error)
	Download(ctx context.Context, account Account, kind domain.DocumentKind, id int) (storage.SignedURL, error)
}

// CustomerFile is the merged view of documents, contracts and forms.
type CustomerFile struct {
	Kind        domain.DocumentKind
	ID          int
	Description string
	URL         string
	CreatedAt   time.Time
	SignedAt    *time.Time
}

// AccountService maps an authenticated identity to its field-service account.
type AccountService interface {
	Resolve(ctx context.Context, identity *auth.Identity) (Account, error)
	Link(ctx context.Context, identity *auth.Identity, email string) (Account, error)
}

// SystemService reports process health.
type SystemService interface {
	HealthReport(ctx context.Context) (HealthReport, error)
}
