package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	domain "github.com/fieldline/customer-api/internal/domain"
	"github.com/fieldline/customer-api/internal/repositories"
)

// AppointmentServiceDeps wires the collaborators of the appointment actions.
type AppointmentServiceDeps struct {
	Appointments repositories.AppointmentRepository
	Customers    repositories.CustomerRepository
	Spots        repositories.SpotRepository
	Employees    repositories.EmployeeRepository
	ServiceTypes repositories.ServiceTypeRepository
	Publisher    EventPublisher
	// SchedulerName is the "First Last" name of the employee recorded as the booking agent.
	SchedulerName string
	Clock         func() time.Time
	Logger        Logger
}

type appointmentService struct {
	appointments  repositories.AppointmentRepository
	customers     repositories.CustomerRepository
	spots         repositories.SpotRepository
	employees     repositories.EmployeeRepository
	serviceTypes  repositories.ServiceTypeRepository
	rules         AppointmentRules
	events        eventEmitter
	schedulerName string
	logger        Logger
}

var _ AppointmentService = (*appointmentService)(nil)

// NewAppointmentService validates deps and returns the appointment actions.
func NewAppointmentService(deps AppointmentServiceDeps) (AppointmentService, error) {
	switch {
	case deps.Appointments == nil:
		return nil, errors.New("appointment service: appointment repository is required")
	case deps.Customers == nil:
		return nil, errors.New("appointment service: customer repository is required")
	case deps.Spots == nil:
		return nil, errors.New("appointment service: spot repository is required")
	case deps.ServiceTypes == nil:
		return nil, errors.New("appointment service: service type repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}

	return &appointmentService{
		appointments:  deps.Appointments,
		customers:     deps.Customers,
		spots:         deps.Spots,
		employees:     deps.Employees,
		serviceTypes:  deps.ServiceTypes,
		rules:         NewAppointmentRules(clock),
		events:        eventEmitter{publisher: deps.Publisher, logger: logger, now: func() time.Time { return clock().UTC() }},
		schedulerName: strings.TrimSpace(deps.SchedulerName),
		logger:        logger,
	}, nil
}

func (s *appointmentService) Create(ctx context.Context, cmd CreateAppointmentCommand) (Appointment, error) {
	account := cmd.Account
	if cmd.SpotID <= 0 {
		return Appointment{}, fmt.Errorf("%w: spot id is required", repositories.ErrInvalidDTO)
	}

	customer, err := s.customers.Office(account.OfficeID).
		WithRelated(domain.RelationSubscriptions).
		Find(ctx, account.AccountNumber)
	if err != nil {
		return Appointment{}, err
	}
	subscriptions, err := customer.Subscriptions()
	if err != nil {
		return Appointment{}, err
	}
	subscription, err := s.rules.EligibleSubscription(subscriptions)
	if err != nil {
		return Appointment{}, err
	}

	serviceType, err := s.subscriptionServiceType(ctx, account.OfficeID, subscription)
	if err != nil {
		return Appointment{}, err
	}
	reservice := s.rules.IsReservice(subscription)
	notes := sanitizeNotes(cmd.Notes)
	if reservice && notes == "" {
		return Appointment{}, ErrNotesRequired
	}

	upcoming, err := s.appointments.Office(account.OfficeID).UpcomingAppointments(ctx, customer.ID)
	if err != nil {
		return Appointment{}, err
	}
	if check := s.rules.CanCreateAppointment(account, customer, serviceType.ID, upcoming); check.Denied() {
		if check.Reason == ReasonAccountFrozen {
			return Appointment{}, ErrAccountFrozen
		}
		return Appointment{}, denied(ErrCannotCreateAppointment, check.Reason)
	}

	spot, err := s.availableSpot(ctx, account.OfficeID, cmd.SpotID)
	if err != nil {
		return Appointment{}, err
	}
	scheduler := s.scheduler(ctx, account.OfficeID)

	duration := s.rules.Duration(serviceType, customer, reservice)
	start := spot.Start
	end := s.rules.EndTime(start, duration)
	window := spot.Window()
	if cmd.IsAroSpot && cmd.Window != "" {
		window = cmd.Window
	}
	if notes != "" {
		notes = portalNotesPrefix + notes
	}

	dto := repositories.CreateAppointmentDTO{
		CustomerID:     customer.ID,
		SubscriptionID: subscription.ID,
		ServiceTypeID:  serviceType.ID,
		SpotID:         spot.ID,
		EmployeeID:     scheduler,
		Start:          start,
		End:            end,
		Duration:       duration,
		Window:         window,
		Notes:          notes,
	}
	id, err := s.appointments.Office(account.OfficeID).Create(ctx, dto)
	if err != nil {
		return Appointment{}, err
	}

	appt := Appointment{
		ID:             id,
		OfficeID:       account.OfficeID,
		CustomerID:     customer.ID,
		SubscriptionID: subscription.ID,
		ServiceTypeID:  serviceType.ID,
		SpotID:         spot.ID,
		RouteID:        spot.RouteID,
		EmployeeID:     scheduler,
		Status:         domain.AppointmentStatusPending,
		Window:         window,
		Start:          start,
		End:            end,
		Duration:       duration,
		Notes:          notes,
	}
	appt.SetServiceType(serviceType)

	s.logger(ctx, "appointments.created", map[string]any{
		"appointmentId": id,
		"accountNumber": account.AccountNumber,
		"spotId":        spot.ID,
		"reservice":     reservice,
	})
	s.events.emit(ctx, domain.EventAppointmentScheduled, account, id, map[string]string{
		"spotId":        strconv.Itoa(spot.ID),
		"serviceTypeId": strconv.Itoa(serviceType.ID),
		"start":         start.Format(time.RFC3339),
	})
	return appt, nil
}

func (s *appointmentService) Reschedule(ctx context.Context, cmd RescheduleAppointmentCommand) (Appointment, error) {
	if cmd.Account.Frozen {
		return Appointment{}, ErrAccountFrozen
	}
	return s.reschedule(ctx, rescheduleRequest{
		account:       cmd.Account,
		appointmentID: cmd.AppointmentID,
		spotID:        cmd.SpotID,
		notes:         cmd.Notes,
		window:        cmd.Window,
		aroSpot:       cmd.IsAroSpot,
		notesPrefix:   portalNotesPrefix,
		source:        "portal",
	})
}

func (s *appointmentService) RescheduleInFlexIVR(ctx context.Context, cmd FlexIVRRescheduleCommand) (Appointment, error) {
	if cmd.OfficeID <= 0 || cmd.AccountNumber <= 0 {
		return Appointment{}, fmt.Errorf("%w: office and account number are required", repositories.ErrInvalidDTO)
	}
	return s.reschedule(ctx, rescheduleRequest{
		account:       Account{OfficeID: cmd.OfficeID, AccountNumber: cmd.AccountNumber},
		appointmentID: cmd.AppointmentID,
		spotID:        cmd.SpotID,
		notes:         cmd.Notes,
		window:        cmd.Window,
		notesPrefix:   flexIVRNotesPrefix,
		source:        "flexivr",
		caller:        cmd.Caller,
	})
}

type rescheduleRequest struct {
	account       Account
	appointmentID int
	spotID        int
	notes         string
	window        domain.Window
	aroSpot       bool
	notesPrefix   string
	source        string
	caller        string
}

func (s *appointmentService) reschedule(ctx context.Context, req rescheduleRequest) (Appointment, error) {
	account := req.account
	if req.appointmentID <= 0 || req.spotID <= 0 {
		return Appointment{}, fmt.Errorf("%w: appointment and spot ids are required", repositories.ErrInvalidDTO)
	}
	appts := s.appointments.Office(account.OfficeID)

	appt, err := appts.WithRelated(domain.RelationServiceType).Find(ctx, req.appointmentID)
	if err != nil {
		return Appointment{}, err
	}
	if !account.Owns(appt.CustomerID) {
		return Appointment{}, ErrAccountMismatch
	}
	if isInitial(appt) {
		return Appointment{}, denied(ErrCannotReschedule, ReasonInitialAppointment)
	}
	if check := s.rules.CanReschedule(appt); check.Denied() {
		return Appointment{}, denied(ErrCannotReschedule, check.Reason)
	}

	spot, err := s.availableSpot(ctx, account.OfficeID, req.spotID)
	if err != nil {
		return Appointment{}, err
	}
	serviceType, err := appt.ServiceType()
	if err != nil {
		return Appointment{}, err
	}
	customer, err := s.customers.Office(account.OfficeID).Find(ctx, appt.CustomerID)
	if err != nil {
		return Appointment{}, err
	}

	duration := s.rules.Duration(serviceType, customer, serviceType.Reservice)
	start := spot.Start
	end := s.rules.EndTime(start, duration)
	window := spot.Window()
	if req.aroSpot && req.window != "" {
		window = req.window
	}
	notes := mergeNotes(appt.Notes, req.notes, req.notesPrefix)

	id, err := appts.Update(ctx, repositories.UpdateAppointmentDTO{
		AppointmentID: appt.ID,
		SpotID:        spot.ID,
		ServiceTypeID: serviceType.ID,
		Start:         start,
		End:           end,
		Duration:      duration,
		Window:        window,
		Notes:         notes,
	})
	if err != nil {
		return Appointment{}, err
	}

	previousStart := appt.Start
	appt.ID = id
	appt.SpotID = spot.ID
	appt.RouteID = spot.RouteID
	appt.Start = start
	appt.End = end
	appt.Duration = duration
	appt.Window = window
	appt.Notes = notes

	s.logger(ctx, "appointments.rescheduled", map[string]any{
		"appointmentId": appt.ID,
		"accountNumber": account.AccountNumber,
		"spotId":        spot.ID,
		"source":        req.source,
		"caller":        req.caller,
	})
	s.events.emit(ctx, domain.EventAppointmentRescheduled, account, appt.ID, map[string]string{
		"source":        req.source,
		"spotId":        strconv.Itoa(spot.ID),
		"previousStart": previousStart.Format(time.RFC3339),
		"start":         start.Format(time.RFC3339),
	})
	return appt, nil
}

func (s *appointmentService) Cancel(ctx context.Context, cmd CancelAppointmentCommand) error {
	account := cmd.Account
	if account.Frozen {
		return ErrAccountFrozen
	}
	appts := s.appointments.Office(account.OfficeID)
	appt, err := appts.Find(ctx, cmd.AppointmentID)
	if err != nil {
		return err
	}
	if !account.Owns(appt.CustomerID) {
		return ErrAccountMismatch
	}
	if check := s.rules.CanCancel(appt); check.Denied() {
		return denied(ErrCannotCancel, check.Reason)
	}
	if err := appts.Cancel(ctx, appt); err != nil {
		return err
	}

	s.logger(ctx, "appointments.cancelled", map[string]any{
		"appointmentId": appt.ID,
		"accountNumber": account.AccountNumber,
	})
	s.events.emit(ctx, domain.EventAppointmentCanceled, account, appt.ID, map[string]string{
		"start": appt.Start.Format(time.RFC3339),
	})
	return nil
}

func (s *appointmentService) Search(ctx context.Context, cmd SearchAppointmentsCommand) ([]Appointment, error) {
	repo := s.appointments.Office(cmd.Account.OfficeID).WithRelated(domain.RelationServiceType)
	if cmd.Page > 0 && cmd.PageSize > 0 {
		repo = repo.Paginate(cmd.Page, cmd.PageSize)
	}
	return repo.Search(ctx, repositories.SearchAppointmentsDTO{
		CustomerIDs: []int{cmd.Account.AccountNumber},
		DateStart:   cmd.DateStart,
		DateEnd:     cmd.DateEnd,
		Statuses:    cmd.Statuses,
	})
}

func (s *appointmentService) Find(ctx context.Context, account Account, appointmentID int) (Appointment, error) {
	appt, err := s.appointments.Office(account.OfficeID).
		WithRelated(domain.RelationServiceType).
		Find(ctx, appointmentID)
	if err != nil {
		return Appointment{}, err
	}
	if !account.Owns(appt.CustomerID) {
		return Appointment{}, ErrAccountMismatch
	}
	return appt, nil
}

func (s *appointmentService) Upcoming(ctx context.Context, account Account) ([]Appointment, error) {
	return s.appointments.Office(account.OfficeID).
		WithRelated(domain.RelationServiceType).
		UpcomingAppointments(ctx, account.AccountNumber)
}

func (s *appointmentService) AvailableSpots(ctx context.Context, cmd SearchSpotsCommand) ([]Spot, error) {
	return s.spots.Office(cmd.Account.OfficeID).Search(ctx, repositories.SearchSpotsDTO{
		DateStart:     cmd.DateStart,
		DateEnd:       cmd.DateEnd,
		AvailableOnly: true,
	})
}

func (s *appointmentService) subscriptionServiceType(ctx context.Context, officeID int, sub Subscription) (domain.ServiceType, error) {
	if st, err := sub.ServiceType(); err == nil {
		return st, nil
	}
	return s.serviceTypes.Office(officeID).Find(ctx, sub.ServiceTypeID)
}

func (s *appointmentService) availableSpot(ctx context.Context, officeID, spotID int) (Spot, error) {
	spot, err := s.spots.Office(officeID).Find(ctx, spotID)
	if err != nil {
		return Spot{}, err
	}
	if !spot.Available() {
		return Spot{}, ErrSpotAlreadyUsed
	}
	return spot, nil
}

// scheduler resolves the booking agent. A missing or failing lookup leaves the appointment
// unattributed.
func (s *appointmentService) scheduler(ctx context.Context, officeID int) int {
	if s.employees == nil || s.schedulerName == "" {
		return 0
	}
	first, last, _ := strings.Cut(s.schedulerName, " ")
	employee, err := s.employees.Office(officeID).FindSchedulerByName(ctx, first, last)
	if err != nil {
		s.logger(ctx, "appointments.scheduler_lookup_failed", map[string]any{
			"officeId": officeID,
			"error":    err.Error(),
		})
		return 0
	}
	return employee.ID
}
