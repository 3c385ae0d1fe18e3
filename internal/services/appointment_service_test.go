package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/fieldline/customer-api/internal/domain"
	"github.com/fieldline/customer-api/internal/repositories"
)

var appointmentNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func TestAppointmentServiceCreateReserviceRequiresNotes(t *testing.T) {
	for _, notes := range []string{"", "   ", "<b></b>"} {
		env := newAppointmentEnv(t, reserviceCustomer())
		_, err := env.service.Create(context.Background(), CreateAppointmentCommand{
			Account: testAccount(),
			SpotID:  501,
			Notes:   notes,
		})
		if !errors.Is(err, ErrNotesRequired) {
			t.Fatalf("notes %q: expected ErrNotesRequired, got %v", notes, err)
		}
		if env.spots.findCalls != 0 {
			t.Fatalf("notes %q: expected no spot lookup, got %d", notes, env.spots.findCalls)
		}
		if len(env.publisher.events) != 0 {
			t.Fatalf("notes %q: expected no events, got %d", notes, len(env.publisher.events))
		}
	}
}

func TestAppointmentServiceCreateReserviceWithNotes(t *testing.T) {
	env := newAppointmentEnv(t, reserviceCustomer())

	appt, err := env.service.Create(context.Background(), CreateAppointmentCommand{
		Account: testAccount(),
		SpotID:  501,
		Notes:   "  side gate is <i>locked</i> ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appt.ID != 9001 {
		t.Fatalf("expected created id 9001, got %d", appt.ID)
	}
	if env.appointments.created.Notes != "Customer Portal Notes: side gate is locked" {
		t.Fatalf("unexpected notes %q", env.appointments.created.Notes)
	}
	if env.appointments.created.Duration != reserviceDuration {
		t.Fatalf("expected reservice duration, got %s", env.appointments.created.Duration)
	}
	if env.appointments.created.EmployeeID != 77 {
		t.Fatalf("expected scheduler 77, got %d", env.appointments.created.EmployeeID)
	}
	if len(env.publisher.events) != 1 || env.publisher.events[0].Type != domain.EventAppointmentScheduled {
		t.Fatalf("expected one scheduled event, got %#v", env.publisher.events)
	}
}

func TestAppointmentServiceCreateComputesEndOnSpotDate(t *testing.T) {
	customer := activeCustomer(false)
	customer.SquareFeet = 8500
	env := newAppointmentEnv(t, customer)
	env.spots.spot.Start = time.Date(2025, 3, 12, 23, 30, 0, 0, time.UTC)

	appt, err := env.service.Create(context.Background(), CreateAppointmentCommand{Account: testAccount(), SpotID: 501})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appt.Duration != 50*time.Minute {
		t.Fatalf("expected 50m duration, got %s", appt.Duration)
	}
	want := time.Date(2025, 3, 12, 23, 59, 59, 0, time.UTC)
	if !appt.End.Equal(want) {
		t.Fatalf("expected end clamped to %s, got %s", want, appt.End)
	}

	env.spots.spot.Start = time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC)
	env.appointments.upcoming = nil
	appt, err = env.service.Create(context.Background(), CreateAppointmentCommand{Account: testAccount(), SpotID: 501})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !appt.End.Equal(appt.Start.Add(50 * time.Minute)) {
		t.Fatalf("expected end = start + duration, got %s", appt.End)
	}
	if appt.Window != domain.WindowAM {
		t.Fatalf("expected AM window, got %s", appt.Window)
	}
}

func TestAppointmentServiceCreateAroSpotUsesRequestedWindow(t *testing.T) {
	env := newAppointmentEnv(t, activeCustomer(false))

	appt, err := env.service.Create(context.Background(), CreateAppointmentCommand{
		Account:   testAccount(),
		SpotID:    501,
		Window:    domain.WindowAny,
		IsAroSpot: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appt.Window != domain.WindowAny || env.appointments.created.Window != domain.WindowAny {
		t.Fatalf("expected requested window, got %s", appt.Window)
	}
}

func TestAppointmentServiceCreateFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(env *appointmentEnv)
		account Account
		wantErr error
	}{
		{
			name:    "frozen account",
			account: Account{OfficeID: 1, AccountNumber: 42, Frozen: true},
			wantErr: ErrAccountFrozen,
		},
		{
			name: "duplicate upcoming",
			mutate: func(env *appointmentEnv) {
				env.appointments.upcoming = []domain.Appointment{{ID: 1, CustomerID: 42, ServiceTypeID: 3, Status: domain.AppointmentStatusPending}}
			},
			wantErr: ErrCannotCreateAppointment,
		},
		{
			name: "spot taken",
			mutate: func(env *appointmentEnv) {
				env.spots.spot.AppointmentIDs = []int{12}
			},
			wantErr: ErrSpotAlreadyUsed,
		},
		{
			name: "no active subscription",
			mutate: func(env *appointmentEnv) {
				customer := activeCustomer(false)
				customer.SetSubscriptions([]domain.Subscription{{ID: 5, Active: false}})
				env.customers.customer = customer
			},
			wantErr: ErrNoEligibleSubscription,
		},
		{
			name: "remote failure",
			mutate: func(env *appointmentEnv) {
				env.appointments.createErr = errors.New("remote down")
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newAppointmentEnv(t, activeCustomer(false))
			if tc.mutate != nil {
				tc.mutate(env)
			}
			account := tc.account
			if account.AccountNumber == 0 {
				account = testAccount()
			}
			_, err := env.service.Create(context.Background(), CreateAppointmentCommand{Account: account, SpotID: 501})
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if len(env.publisher.events) != 0 {
				t.Fatalf("expected no events on failure, got %d", len(env.publisher.events))
			}
		})
	}
}

func TestAppointmentServiceCreateSurvivesPublishFailure(t *testing.T) {
	env := newAppointmentEnv(t, activeCustomer(false))
	env.publisher.err = errors.New("topic unavailable")
	var logged []string
	env.rebuild(t, func(deps *AppointmentServiceDeps) {
		deps.Logger = func(_ context.Context, event string, _ map[string]any) {
			logged = append(logged, event)
		}
	})

	if _, err := env.service.Create(context.Background(), CreateAppointmentCommand{Account: testAccount(), SpotID: 501}); err != nil {
		t.Fatalf("expected success despite publish failure, got %v", err)
	}
	if !containsString(logged, "events.publish_failed") {
		t.Fatalf("expected publish failure to be logged, got %v", logged)
	}
}

func TestAppointmentServiceRescheduleInitialSkipsSpotLookup(t *testing.T) {
	env := newAppointmentEnv(t, activeCustomer(false))
	appt := pendingAppointment()
	appt.Initial = true
	env.appointments.found = appt

	_, err := env.service.Reschedule(context.Background(), RescheduleAppointmentCommand{
		Account:       testAccount(),
		AppointmentID: appt.ID,
		SpotID:        501,
	})
	if !errors.Is(err, ErrCannotReschedule) {
		t.Fatalf("expected ErrCannotReschedule, got %v", err)
	}
	var ruleErr *RuleError
	if !errors.As(err, &ruleErr) || ruleErr.Reason != ReasonInitialAppointment {
		t.Fatalf("expected initial appointment reason, got %v", err)
	}
	if env.spots.findCalls != 0 {
		t.Fatalf("expected no spot lookups, got %d", env.spots.findCalls)
	}
	if env.appointments.updateCalls != 0 {
		t.Fatalf("expected no updates, got %d", env.appointments.updateCalls)
	}
	if len(env.publisher.events) != 0 {
		t.Fatalf("expected no events, got %d", len(env.publisher.events))
	}
}

func TestAppointmentServiceRescheduleInitialServiceType(t *testing.T) {
	env := newAppointmentEnv(t, activeCustomer(false))
	appt := pendingAppointment()
	appt.SetServiceType(domain.ServiceType{ID: 2, Initial: true})
	env.appointments.found = appt

	_, err := env.service.Reschedule(context.Background(), RescheduleAppointmentCommand{Account: testAccount(), AppointmentID: appt.ID, SpotID: 501})
	if !errors.Is(err, ErrCannotReschedule) {
		t.Fatalf("expected ErrCannotReschedule, got %v", err)
	}
	if env.spots.findCalls != 0 {
		t.Fatalf("expected no spot lookups, got %d", env.spots.findCalls)
	}
}

func TestAppointmentServiceRescheduleMergesNotes(t *testing.T) {
	env := newAppointmentEnv(t, activeCustomer(false))
	appt := pendingAppointment()
	appt.Notes = "Dog in yard"
	env.appointments.found = appt

	updated, err := env.service.Reschedule(context.Background(), RescheduleAppointmentCommand{
		Account:       testAccount(),
		AppointmentID: appt.ID,
		SpotID:        501,
		Notes:         "Call before arrival",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantNotes := "Dog in yard\nCustomer Portal Notes: Call before arrival"
	if updated.Notes != wantNotes || env.appointments.updated.Notes != wantNotes {
		t.Fatalf("unexpected notes %q", env.appointments.updated.Notes)
	}
	if updated.SpotID != 501 {
		t.Fatalf("expected spot 501, got %d", updated.SpotID)
	}
	if len(env.publisher.events) != 1 || env.publisher.events[0].Type != domain.EventAppointmentRescheduled {
		t.Fatalf("expected one rescheduled event, got %#v", env.publisher.events)
	}
	if env.publisher.events[0].Attributes["source"] != "portal" {
		t.Fatalf("expected portal source, got %v", env.publisher.events[0].Attributes)
	}
}

func TestAppointmentServiceRescheduleRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(appt *domain.Appointment)
		wantErr error
	}{
		{
			name:    "other customer",
			mutate:  func(appt *domain.Appointment) { appt.CustomerID = 99 },
			wantErr: ErrAccountMismatch,
		},
		{
			name:    "completed",
			mutate:  func(appt *domain.Appointment) { appt.Status = domain.AppointmentStatusCompleted },
			wantErr: ErrCannotReschedule,
		},
		{
			name: "in the past",
			mutate: func(appt *domain.Appointment) {
				appt.Start = appointmentNow.AddDate(0, 0, -2)
			},
			wantErr: ErrCannotReschedule,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newAppointmentEnv(t, activeCustomer(false))
			appt := pendingAppointment()
			tc.mutate(&appt)
			env.appointments.found = appt

			_, err := env.service.Reschedule(context.Background(), RescheduleAppointmentCommand{Account: testAccount(), AppointmentID: appt.ID, SpotID: 501})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if env.appointments.updateCalls != 0 || len(env.publisher.events) != 0 {
				t.Fatalf("expected no update or event, got %d updates %d events", env.appointments.updateCalls, len(env.publisher.events))
			}
		})
	}
}

func TestAppointmentServiceRescheduleInFlexIVR(t *testing.T) {
	env := newAppointmentEnv(t, activeCustomer(false))
	env.appointments.found = pendingAppointment()

	_, err := env.service.RescheduleInFlexIVR(context.Background(), FlexIVRRescheduleCommand{
		OfficeID:      1,
		AccountNumber: 42,
		AppointmentID: 300,
		SpotID:        501,
		Notes:         "requested by phone",
		Caller:        "ivr@example.iam.gserviceaccount.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.appointments.updated.Notes != "FlexIVR Notes: requested by phone" {
		t.Fatalf("unexpected notes %q", env.appointments.updated.Notes)
	}
	if len(env.publisher.events) != 1 || env.publisher.events[0].Attributes["source"] != "flexivr" {
		t.Fatalf("expected one flexivr event, got %#v", env.publisher.events)
	}
}

func TestAppointmentServiceCancelMismatchNeverCancels(t *testing.T) {
	env := newAppointmentEnv(t, activeCustomer(false))
	appt := pendingAppointment()
	appt.CustomerID = 99
	env.appointments.found = appt

	err := env.service.Cancel(context.Background(), CancelAppointmentCommand{Account: testAccount(), AppointmentID: appt.ID})
	if !errors.Is(err, ErrAccountMismatch) {
		t.Fatalf("expected ErrAccountMismatch, got %v", err)
	}
	if env.appointments.cancelCalls != 0 {
		t.Fatalf("expected cancel not to be called, got %d", env.appointments.cancelCalls)
	}
	if len(env.publisher.events) != 0 {
		t.Fatalf("expected no events, got %d", len(env.publisher.events))
	}
}

func TestAppointmentServiceCancel(t *testing.T) {
	env := newAppointmentEnv(t, activeCustomer(false))
	env.appointments.found = pendingAppointment()

	if err := env.service.Cancel(context.Background(), CancelAppointmentCommand{Account: testAccount(), AppointmentID: 300}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.appointments.cancelCalls != 1 {
		t.Fatalf("expected one cancel call, got %d", env.appointments.cancelCalls)
	}
	if len(env.publisher.events) != 1 || env.publisher.events[0].Type != domain.EventAppointmentCanceled {
		t.Fatalf("expected one canceled event, got %#v", env.publisher.events)
	}
}

func TestAppointmentServiceCancelRejections(t *testing.T) {
	t.Run("inside cutoff", func(t *testing.T) {
		env := newAppointmentEnv(t, activeCustomer(false))
		appt := pendingAppointment()
		appt.Start = appointmentNow.Add(6 * time.Hour)
		env.appointments.found = appt

		err := env.service.Cancel(context.Background(), CancelAppointmentCommand{Account: testAccount(), AppointmentID: appt.ID})
		if !errors.Is(err, ErrCannotCancel) {
			t.Fatalf("expected ErrCannotCancel, got %v", err)
		}
		if env.appointments.cancelCalls != 0 || len(env.publisher.events) != 0 {
			t.Fatalf("expected no cancel and no event")
		}
	})

	t.Run("remote refusal", func(t *testing.T) {
		env := newAppointmentEnv(t, activeCustomer(false))
		env.appointments.found = pendingAppointment()
		env.appointments.cancelErr = repositories.ErrAppointmentNotCancelled

		err := env.service.Cancel(context.Background(), CancelAppointmentCommand{Account: testAccount(), AppointmentID: 300})
		if !errors.Is(err, repositories.ErrAppointmentNotCancelled) {
			t.Fatalf("expected ErrAppointmentNotCancelled, got %v", err)
		}
		if len(env.publisher.events) != 0 {
			t.Fatalf("expected no events, got %d", len(env.publisher.events))
		}
	})
}

func TestAppointmentServiceFindChecksOwnership(t *testing.T) {
	env := newAppointmentEnv(t, activeCustomer(false))
	appt := pendingAppointment()
	appt.CustomerID = 7
	env.appointments.found = appt

	if _, err := env.service.Find(context.Background(), testAccount(), appt.ID); !errors.Is(err, ErrAccountMismatch) {
		t.Fatalf("expected ErrAccountMismatch, got %v", err)
	}
}

func TestAppointmentServiceSearchScopesToAccount(t *testing.T) {
	env := newAppointmentEnv(t, activeCustomer(false))
	start := appointmentNow
	_, err := env.service.Search(context.Background(), SearchAppointmentsCommand{
		Account:   testAccount(),
		DateStart: &start,
		Statuses:  []domain.AppointmentStatus{domain.AppointmentStatusPending},
		Page:      2,
		PageSize:  10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env.appointments.searched.CustomerIDs) != 1 || env.appointments.searched.CustomerIDs[0] != 42 {
		t.Fatalf("expected search scoped to account, got %#v", env.appointments.searched)
	}
	if env.appointments.page != 2 || env.appointments.perPage != 10 {
		t.Fatalf("expected pagination 2/10, got %d/%d", env.appointments.page, env.appointments.perPage)
	}
	if !containsString(env.appointments.relations, domain.RelationServiceType) {
		t.Fatalf("expected serviceType relation, got %v", env.appointments.relations)
	}
}

func TestNewAppointmentServiceRequiresRepositories(t *testing.T) {
	if _, err := NewAppointmentService(AppointmentServiceDeps{}); err == nil || !strings.Contains(err.Error(), "appointment repository") {
		t.Fatalf("expected missing repository error, got %v", err)
	}
}

type appointmentEnv struct {
	service      AppointmentService
	deps         AppointmentServiceDeps
	appointments *stubAppointmentRepository
	customers    *stubCustomerRepository
	spots        *stubSpotRepository
	publisher    *capturePublisher
}

func newAppointmentEnv(t *testing.T, customer domain.Customer) *appointmentEnv {
	t.Helper()
	env := &appointmentEnv{
		appointments: &stubAppointmentRepository{createdID: 9001},
		customers:    &stubCustomerRepository{customer: customer},
		spots: &stubSpotRepository{spot: domain.Spot{
			ID:      501,
			RouteID: 20,
			Start:   time.Date(2025, 3, 14, 13, 0, 0, 0, time.UTC),
			End:     time.Date(2025, 3, 14, 13, 30, 0, 0, time.UTC),
			Open:    true,
		}},
		publisher: &capturePublisher{},
	}
	env.deps = AppointmentServiceDeps{
		Appointments:  env.appointments,
		Customers:     env.customers,
		Spots:         env.spots,
		Employees:     &stubEmployeeRepository{employee: domain.Employee{ID: 77, FirstName: "Portal", LastName: "Scheduler"}},
		ServiceTypes:  &stubServiceTypeRepository{},
		Publisher:     env.publisher,
		SchedulerName: "Portal Scheduler",
		Clock:         func() time.Time { return appointmentNow },
	}
	env.rebuild(t, nil)
	return env
}

func (e *appointmentEnv) rebuild(t *testing.T, mutate func(*AppointmentServiceDeps)) {
	t.Helper()
	if mutate != nil {
		mutate(&e.deps)
	}
	svc, err := NewAppointmentService(e.deps)
	if err != nil {
		t.Fatalf("new appointment service: %v", err)
	}
	e.service = svc
}

func testAccount() Account {
	return Account{UID: "uid-1", OfficeID: 1, AccountNumber: 42}
}

func activeCustomer(initialCompleted bool) domain.Customer {
	sub := domain.Subscription{
		ID:               5,
		CustomerID:       42,
		ServiceTypeID:    3,
		Active:           true,
		InitialCompleted: initialCompleted,
		CreatedAt:        appointmentNow.AddDate(-1, 0, 0),
	}
	sub.SetServiceType(domain.ServiceType{ID: 3, Recurring: true, DefaultDuration: 30 * time.Minute})
	customer := domain.Customer{ID: 42, OfficeID: 1, Active: true}
	customer.SetSubscriptions([]domain.Subscription{sub})
	return customer
}

func reserviceCustomer() domain.Customer {
	return activeCustomer(true)
}

func pendingAppointment() domain.Appointment {
	appt := domain.Appointment{
		ID:            300,
		OfficeID:      1,
		CustomerID:    42,
		ServiceTypeID: 3,
		SpotID:        400,
		Status:        domain.AppointmentStatusPending,
		Start:         appointmentNow.AddDate(0, 0, 3),
		End:           appointmentNow.AddDate(0, 0, 3).Add(30 * time.Minute),
	}
	appt.SetServiceType(domain.ServiceType{ID: 3, Recurring: true, DefaultDuration: 30 * time.Minute})
	return appt
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

type capturePublisher struct {
	events []domain.Event
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, event domain.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

type stubAppointmentRepository struct {
	found     domain.Appointment
	upcoming  []domain.Appointment
	results   []domain.Appointment
	createdID int
	createErr error
	cancelErr error

	created     repositories.CreateAppointmentDTO
	updated     repositories.UpdateAppointmentDTO
	searched    repositories.SearchAppointmentsDTO
	relations   []string
	page        int
	perPage     int
	updateCalls int
	cancelCalls int
}

func (s *stubAppointmentRepository) Office(int) repositories.AppointmentRepository { return s }

func (s *stubAppointmentRepository) WithRelated(relations ...string) repositories.AppointmentRepository {
	s.relations = append(s.relations, relations...)
	return s
}

func (s *stubAppointmentRepository) Paginate(page, perPage int) repositories.AppointmentRepository {
	s.page, s.perPage = page, perPage
	return s
}

func (s *stubAppointmentRepository) Find(_ context.Context, id int) (domain.Appointment, error) {
	if s.found.ID != id {
		return domain.Appointment{}, &repositories.EntityNotFoundError{Entity: "appointment", ID: id}
	}
	return s.found, nil
}

func (s *stubAppointmentRepository) Search(_ context.Context, dto repositories.SearchAppointmentsDTO) ([]domain.Appointment, error) {
	s.searched = dto
	return s.results, nil
}

func (s *stubAppointmentRepository) SearchBy(context.Context, string, ...int) ([]domain.Appointment, error) {
	return s.results, nil
}

func (s *stubAppointmentRepository) UpcomingAppointments(context.Context, int) ([]domain.Appointment, error) {
	return s.upcoming, nil
}

func (s *stubAppointmentRepository) Create(_ context.Context, dto repositories.CreateAppointmentDTO) (int, error) {
	if s.createErr != nil {
		return 0, s.createErr
	}
	s.created = dto
	return s.createdID, nil
}

func (s *stubAppointmentRepository) Update(_ context.Context, dto repositories.UpdateAppointmentDTO) (int, error) {
	s.updateCalls++
	s.updated = dto
	return dto.AppointmentID, nil
}

func (s *stubAppointmentRepository) Cancel(context.Context, domain.Appointment) error {
	s.cancelCalls++
	return s.cancelErr
}

type stubCustomerRepository struct {
	customer  domain.Customer
	byEmail   map[string][]domain.Customer
	updated   repositories.UpdateCustomerDTO
	updateErr error
}

func (s *stubCustomerRepository) Office(int) repositories.CustomerRepository { return s }

func (s *stubCustomerRepository) WithRelated(...string) repositories.CustomerRepository { return s }

func (s *stubCustomerRepository) Find(_ context.Context, id int) (domain.Customer, error) {
	if s.customer.ID != id {
		return domain.Customer{}, &repositories.EntityNotFoundError{Entity: "customer", ID: id}
	}
	return s.customer, nil
}

func (s *stubCustomerRepository) SearchByEmail(_ context.Context, email string) ([]domain.Customer, error) {
	return s.byEmail[email], nil
}

func (s *stubCustomerRepository) Update(_ context.Context, dto repositories.UpdateCustomerDTO) error {
	s.updated = dto
	return s.updateErr
}

type stubSpotRepository struct {
	spot      domain.Spot
	findCalls int
	searched  repositories.SearchSpotsDTO
}

func (s *stubSpotRepository) Office(int) repositories.SpotRepository { return s }

func (s *stubSpotRepository) Find(_ context.Context, id int) (domain.Spot, error) {
	s.findCalls++
	if s.spot.ID != id {
		return domain.Spot{}, &repositories.EntityNotFoundError{Entity: "spot", ID: id}
	}
	return s.spot, nil
}

func (s *stubSpotRepository) Search(_ context.Context, dto repositories.SearchSpotsDTO) ([]domain.Spot, error) {
	s.searched = dto
	return []domain.Spot{s.spot}, nil
}

type stubEmployeeRepository struct {
	employee domain.Employee
}

func (s *stubEmployeeRepository) Office(int) repositories.EmployeeRepository { return s }

func (s *stubEmployeeRepository) Find(context.Context, int) (domain.Employee, error) {
	return s.employee, nil
}

func (s *stubEmployeeRepository) FindSchedulerByName(_ context.Context, first, last string) (domain.Employee, error) {
	if s.employee.FirstName != first || s.employee.LastName != last {
		return domain.Employee{}, &repositories.EntityNotFoundError{Entity: "employee"}
	}
	return s.employee, nil
}

func (s *stubEmployeeRepository) Search(context.Context, ...int) ([]domain.Employee, error) {
	return []domain.Employee{s.employee}, nil
}

type stubServiceTypeRepository struct {
	types []domain.ServiceType
}

func (s *stubServiceTypeRepository) Office(int) repositories.ServiceTypeRepository { return s }

func (s *stubServiceTypeRepository) Find(_ context.Context, id int) (domain.ServiceType, error) {
	for _, st := range s.types {
		if st.ID == id {
			return st, nil
		}
	}
	return domain.ServiceType{}, &repositories.EntityNotFoundError{Entity: "serviceType", ID: id}
}

func (s *stubServiceTypeRepository) All(context.Context) ([]domain.ServiceType, error) {
	return s.types, nil
}
