package repositories

import (
	"context"
	"errors"

	domain "github.com/fieldline/customer-api/internal/domain"
)

// ErrOfficeNotScoped is returned when a field-service repository is used before Office(id).
var ErrOfficeNotScoped = errors.New("repositories: office scope is required")

// RepositoryError wraps low-level failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// AppointmentRepository reads and mutates appointments in one office. Office, WithRelated and
// Paginate return a new scoped repository and never modify the receiver.
type AppointmentRepository interface {
	Office(officeID int) AppointmentRepository
	WithRelated(relations ...string) AppointmentRepository
	Paginate(page, perPage int) AppointmentRepository

	Find(ctx context.Context, id int) (domain.Appointment, error)
	Search(ctx context.Context, dto SearchAppointmentsDTO) ([]domain.Appointment, error)
	// SearchBy filters on a single remote field (e.g. "appointmentIDs", "subscriptionIDs").
	SearchBy(ctx context.Context, field string, values ...int) ([]domain.Appointment, error)
	UpcomingAppointments(ctx context.Context, customerID int) ([]domain.Appointment, error)
	Create(ctx context.Context, dto CreateAppointmentDTO) (int, error)
	Update(ctx context.Context, dto UpdateAppointmentDTO) (int, error)
	// Cancel returns ErrAppointmentNotCancelled when the remote refuses the cancellation.
	Cancel(ctx context.Context, appointment domain.Appointment) error
}

type CustomerRepository interface {
	Office(officeID int) CustomerRepository
	WithRelated(relations ...string) CustomerRepository

	Find(ctx context.Context, id int) (domain.Customer, error)
	SearchByEmail(ctx context.Context, email string) ([]domain.Customer, error)
	Update(ctx context.Context, dto UpdateCustomerDTO) error
}

type SpotRepository interface {
	Office(officeID int) SpotRepository

	Find(ctx context.Context, id int) (domain.Spot, error)
	Search(ctx context.Context, dto SearchSpotsDTO) ([]domain.Spot, error)
}

type EmployeeRepository interface {
	Office(officeID int) EmployeeRepository

	Find(ctx context.Context, id int) (domain.Employee, error)
	FindSchedulerByName(ctx context.Context, firstName, lastName string) (domain.Employee, error)
	Search(ctx context.Context, ids ...int) ([]domain.Employee, error)
}

type SubscriptionRepository interface {
	Office(officeID int) SubscriptionRepository
	WithRelated(relations ...string) SubscriptionRepository

	Find(ctx context.Context, id int) (domain.Subscription, error)
	Search(ctx context.Context, dto SearchSubscriptionsDTO) ([]domain.Subscription, error)
	Create(ctx context.Context, dto CreateSubscriptionDTO) (int, error)
}

type ServiceTypeRepository interface {
	Office(officeID int) ServiceTypeRepository

	Find(ctx context.Context, id int) (domain.ServiceType, error)
	All(ctx context.Context) ([]domain.ServiceType, error)
}

type PaymentRepository interface {
	Office(officeID int) PaymentRepository
	Paginate(page, perPage int) PaymentRepository

	Find(ctx context.Context, id int) (domain.Payment, error)
	Search(ctx context.Context, dto SearchPaymentsDTO) ([]domain.Payment, error)
	Create(ctx context.Context, dto AddPaymentDTO) (int, error)
}

type PaymentProfileRepository interface {
	Office(officeID int) PaymentProfileRepository

	Find(ctx context.Context, id int) (domain.PaymentProfile, error)
	Search(ctx context.Context, dto SearchPaymentProfilesDTO) ([]domain.PaymentProfile, error)
	Create(ctx context.Context, dto AddPaymentProfileDTO) (int, error)
	Delete(ctx context.Context, id int) error
}

type DocumentRepository interface {
	Office(officeID int) DocumentRepository

	Find(ctx context.Context, id int) (domain.Document, error)
	Search(ctx context.Context, dto SearchDocumentsDTO) ([]domain.Document, error)
}

// OfficeRepository does not need an office scope.
type OfficeRepository interface {
	Find(ctx context.Context, id int) (domain.Office, error)
	All(ctx context.Context) ([]domain.Office, error)
}

type TicketRepository interface {
	Office(officeID int) TicketRepository

	Find(ctx context.Context, id int) (domain.Ticket, error)
	Search(ctx context.Context, dto SearchTicketsDTO) ([]domain.Ticket, error)
}

type ContractRepository interface {
	Office(officeID int) ContractRepository

	Find(ctx context.Context, id int) (domain.Contract, error)
	Search(ctx context.Context, customerID int) ([]domain.Contract, error)
}

type FormRepository interface {
	Office(officeID int) FormRepository

	Find(ctx context.Context, id int) (domain.Form, error)
	Search(ctx context.Context, customerID int) ([]domain.Form, error)
}

// AccountRepository stores the link between authenticated users and field-service customers.
type AccountRepository interface {
	FindByUID(ctx context.Context, uid string) (domain.Account, error)
	Upsert(ctx context.Context, account domain.Account) (domain.Account, error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.HealthReport, error)
}
