package fieldservice

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	domain "github.com/fieldline/customer-api/internal/domain"
	pfieldservice "github.com/fieldline/customer-api/internal/platform/fieldservice"
	"github.com/fieldline/customer-api/internal/repositories"
)

const appointmentEntity = "appointment"

var appointmentRelations = []string{
	domain.RelationServiceType,
	domain.RelationCustomer,
	domain.RelationSubscription,
	domain.RelationSpot,
}

// AppointmentRepository implements repositories.AppointmentRepository over the field-service API.
type AppointmentRepository struct {
	client *pfieldservice.Client
	opts   options
	scope  scope
}

var _ repositories.AppointmentRepository = (*AppointmentRepository)(nil)

// NewAppointmentRepository constructs an unscoped appointment repository.
func NewAppointmentRepository(client *pfieldservice.Client, opts ...Option) (*AppointmentRepository, error) {
	if client == nil {
		return nil, errors.New("appointment repository: field-service client is required")
	}
	return &AppointmentRepository{client: client, opts: buildOptions(opts)}, nil
}

func (r *AppointmentRepository) Office(officeID int) repositories.AppointmentRepository {
	clone := *r
	clone.scope = r.scope.withOffice(officeID)
	return &clone
}

func (r *AppointmentRepository) WithRelated(relations ...string) repositories.AppointmentRepository {
	clone := *r
	clone.scope = r.scope.withRelations(relations...)
	return &clone
}

func (r *AppointmentRepository) Paginate(page, perPage int) repositories.AppointmentRepository {
	clone := *r
	clone.scope = r.scope.withPage(page, perPage)
	return &clone
}

func (r *AppointmentRepository) prepare() error {
	if err := r.scope.requireOffice(); err != nil {
		return err
	}
	return r.scope.validateRelations(appointmentEntity, appointmentRelations...)
}

func (r *AppointmentRepository) Find(ctx context.Context, id int) (domain.Appointment, error) {
	if err := r.prepare(); err != nil {
		return domain.Appointment{}, err
	}
	wire, err := pfieldservice.Get[pfieldservice.Appointment](ctx, r.client, pfieldservice.ResourceAppointment, r.scope.officeID, id)
	if err != nil {
		return domain.Appointment{}, translate(appointmentEntity, "find", id, err)
	}
	items := []domain.Appointment{toAppointment(wire, r.opts.loc)}
	if err := r.load(ctx, items); err != nil {
		return domain.Appointment{}, err
	}
	return items[0], nil
}

func (r *AppointmentRepository) Search(ctx context.Context, dto repositories.SearchAppointmentsDTO) ([]domain.Appointment, error) {
	if err := r.prepare(); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	params := r.scope.params().SetInts("customerIDs", dto.CustomerIDs)
	switch {
	case dto.DateStart != nil && dto.DateEnd != nil:
		params = params.SetDateRange("date", *dto.DateStart, *dto.DateEnd)
	case dto.DateStart != nil:
		params = params.SetDateFrom("date", *dto.DateStart)
	case dto.DateEnd != nil:
		params = params.SetDateRange("date", time.Time{}, *dto.DateEnd)
	}
	if len(dto.Statuses) > 0 {
		codes := make([]int, 0, len(dto.Statuses))
		for _, status := range dto.Statuses {
			if code, ok := appointmentStatusCode(status); ok {
				codes = append(codes, code)
			}
		}
		params = params.SetInts("status", codes)
	}
	return r.search(ctx, params)
}

func (r *AppointmentRepository) SearchBy(ctx context.Context, field string, values ...int) ([]domain.Appointment, error) {
	if err := r.prepare(); err != nil {
		return nil, err
	}
	if field == "" || len(values) == 0 {
		return nil, fmt.Errorf("%w: search field and values are required", repositories.ErrInvalidDTO)
	}
	return r.search(ctx, r.scope.params().SetInts(field, values))
}

func (r *AppointmentRepository) UpcomingAppointments(ctx context.Context, customerID int) ([]domain.Appointment, error) {
	if err := r.prepare(); err != nil {
		return nil, err
	}
	today := r.opts.now().In(r.opts.loc)
	params := r.scope.params().
		SetInts("customerIDs", []int{customerID}).
		SetDateFrom("date", today).
		SetInts("status", []int{pfieldservice.AppointmentStatusPending})
	items, err := r.search(ctx, params)
	if err != nil {
		return nil, err
	}
	upcoming := items[:0]
	for _, appt := range items {
		if appt.Status == domain.AppointmentStatusPending {
			upcoming = append(upcoming, appt)
		}
	}
	return upcoming, nil
}

func (r *AppointmentRepository) search(ctx context.Context, params pfieldservice.Params) ([]domain.Appointment, error) {
	wire, err := pfieldservice.Search[pfieldservice.Appointment](ctx, r.client, pfieldservice.ResourceAppointment, r.scope.officeID, params)
	if err != nil {
		return nil, translate(appointmentEntity, "search", 0, err)
	}
	items := make([]domain.Appointment, 0, len(wire))
	for _, w := range wire {
		items = append(items, toAppointment(w, r.opts.loc))
	}
	sortAppointments(items)
	if err := r.load(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *AppointmentRepository) load(ctx context.Context, items []domain.Appointment) error {
	if len(r.scope.relations) == 0 || len(items) == 0 {
		return nil
	}
	return newRelationLoader(r.client, r.scope.officeID, r.opts).appointments(ctx, r.scope, items)
}

type appointmentPayload struct {
	CustomerID     int    `json:"customerID,omitempty"`
	SubscriptionID int    `json:"subscriptionID,omitempty"`
	Type           int    `json:"type,omitempty"`
	SpotID         int    `json:"spotID"`
	EmployeeID     int    `json:"employeeID,omitempty"`
	Date           string `json:"date"`
	Start          string `json:"start"`
	End            string `json:"end"`
	Duration       int    `json:"duration"`
	TimeWindow     string `json:"timeWindow,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

func (r *AppointmentRepository) Create(ctx context.Context, dto repositories.CreateAppointmentDTO) (int, error) {
	if err := r.scope.requireOffice(); err != nil {
		return 0, err
	}
	if err := dto.Validate(); err != nil {
		return 0, err
	}
	payload := appointmentPayload{
		CustomerID:     dto.CustomerID,
		SubscriptionID: dto.SubscriptionID,
		Type:           dto.ServiceTypeID,
		SpotID:         dto.SpotID,
		EmployeeID:     dto.EmployeeID,
		Date:           pfieldservice.FormatDate(dto.Start),
		Start:          pfieldservice.FormatClock(dto.Start),
		End:            pfieldservice.FormatClock(dto.End),
		Duration:       int(dto.Duration / time.Minute),
		TimeWindow:     string(dto.Window),
		Notes:          dto.Notes,
	}
	id, err := r.client.Create(ctx, pfieldservice.ResourceAppointment, r.scope.officeID, payload)
	if err != nil {
		return 0, translate(appointmentEntity, "create", 0, err)
	}
	return id, nil
}

func (r *AppointmentRepository) Update(ctx context.Context, dto repositories.UpdateAppointmentDTO) (int, error) {
	if err := r.scope.requireOffice(); err != nil {
		return 0, err
	}
	if err := dto.Validate(); err != nil {
		return 0, err
	}
	payload := appointmentPayload{
		Type:       dto.ServiceTypeID,
		SpotID:     dto.SpotID,
		Date:       pfieldservice.FormatDate(dto.Start),
		Start:      pfieldservice.FormatClock(dto.Start),
		End:        pfieldservice.FormatClock(dto.End),
		Duration:   int(dto.Duration / time.Minute),
		TimeWindow: string(dto.Window),
		Notes:      dto.Notes,
	}
	id, err := r.client.Update(ctx, pfieldservice.ResourceAppointment, r.scope.officeID, dto.AppointmentID, payload)
	if err != nil {
		return 0, translate(appointmentEntity, "update", dto.AppointmentID, err)
	}
	if id == 0 {
		id = dto.AppointmentID
	}
	return id, nil
}

func (r *AppointmentRepository) Cancel(ctx context.Context, appointment domain.Appointment) error {
	if err := r.scope.requireOffice(); err != nil {
		return err
	}
	if appointment.ID <= 0 {
		return fmt.Errorf("%w: appointment id is required", repositories.ErrInvalidDTO)
	}
	err := r.client.Delete(ctx, pfieldservice.ResourceAppointment, r.scope.officeID, appointment.ID)
	if err == nil {
		return nil
	}
	if errors.Is(err, pfieldservice.ErrRejected) {
		return fmt.Errorf("%w: appointment %s: %v", repositories.ErrAppointmentNotCancelled, strconv.Itoa(appointment.ID), err)
	}
	return translate(appointmentEntity, "cancel", appointment.ID, err)
}
