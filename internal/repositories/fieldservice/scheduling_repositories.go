package fieldservice

import (
	"context"
	"errors"
	"strings"

	domain "github.com/fieldline/customer-api/internal/domain"
	pfieldservice "github.com/fieldline/customer-api/internal/platform/fieldservice"
	"github.com/fieldline/customer-api/internal/repositories"
)

// SpotRepository implements repositories.SpotRepository.
type SpotRepository struct {
	client *pfieldservice.Client
	opts   options
	scope  scope
}

var _ repositories.SpotRepository = (*SpotRepository)(nil)

func NewSpotRepository(client *pfieldservice.Client, opts ...Option) (*SpotRepository, error) {
	if client == nil {
		return nil, errors.New("spot repository: field-service client is required")
	}
	return &SpotRepository{client: client, opts: buildOptions(opts)}, nil
}

func (r *SpotRepository) Office(officeID int) repositories.SpotRepository {
	clone := *r
	clone.scope = r.scope.withOffice(officeID)
	return &clone
}

func (r *SpotRepository) Find(ctx context.Context, id int) (domain.Spot, error) {
	if err := r.scope.requireOffice(); err != nil {
		return domain.Spot{}, err
	}
	wire, err := pfieldservice.Get[pfieldservice.Spot](ctx, r.client, pfieldservice.ResourceSpot, r.scope.officeID, id)
	if err != nil {
		return domain.Spot{}, translate("spot", "find", id, err)
	}
	return toSpot(wire, r.opts.loc), nil
}

func (r *SpotRepository) Search(ctx context.Context, dto repositories.SearchSpotsDTO) ([]domain.Spot, error) {
	if err := r.scope.requireOffice(); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	params := pfieldservice.NewParams()
	if len(dto.SpotIDs) > 0 {
		params = params.SetInts("spotIDs", dto.SpotIDs)
	} else {
		params = params.SetDateRange("date", dto.DateStart, dto.DateEnd)
	}
	if dto.AvailableOnly {
		params = params.SetInt("open", 1)
	}
	wire, err := pfieldservice.Search[pfieldservice.Spot](ctx, r.client, pfieldservice.ResourceSpot, r.scope.officeID, params)
	if err != nil {
		return nil, translate("spot", "search", 0, err)
	}
	spots := make([]domain.Spot, 0, len(wire))
	for _, w := range wire {
		spot := toSpot(w, r.opts.loc)
		if dto.AvailableOnly && !spot.Available() {
			continue
		}
		spots = append(spots, spot)
	}
	return spots, nil
}

// EmployeeRepository implements repositories.EmployeeRepository.
type EmployeeRepository struct {
	client *pfieldservice.Client
	scope  scope
}

var _ repositories.EmployeeRepository = (*EmployeeRepository)(nil)

func NewEmployeeRepository(client *pfieldservice.Client) (*EmployeeRepository, error) {
	if client == nil {
		return nil, errors.New("employee repository: field-service client is required")
	}
	return &EmployeeRepository{client: client}, nil
}

func (r *EmployeeRepository) Office(officeID int) repositories.EmployeeRepository {
	clone := *r
	clone.scope = r.scope.withOffice(officeID)
	return &clone
}

func (r *EmployeeRepository) Find(ctx context.Context, id int) (domain.Employee, error) {
	if err := r.scope.requireOffice(); err != nil {
		return domain.Employee{}, err
	}
	wire, err := pfieldservice.Get[pfieldservice.Employee](ctx, r.client, pfieldservice.ResourceEmployee, r.scope.officeID, id)
	if err != nil {
		return domain.Employee{}, translate("employee", "find", id, err)
	}
	return toEmployee(wire), nil
}

// FindSchedulerByName finds the active employee used as the booking agent for portal appointments.
func (r *EmployeeRepository) FindSchedulerByName(ctx context.Context, firstName, lastName string) (domain.Employee, error) {
	if err := r.scope.requireOffice(); err != nil {
		return domain.Employee{}, err
	}
	params := pfieldservice.NewParams().
		Set("fname", strings.TrimSpace(firstName)).
		Set("lname", strings.TrimSpace(lastName)).
		SetInt("active", 1)
	wire, err := pfieldservice.Search[pfieldservice.Employee](ctx, r.client, pfieldservice.ResourceEmployee, r.scope.officeID, params)
	if err != nil {
		return domain.Employee{}, translate("employee", "search", 0, err)
	}
	if len(wire) == 0 {
		return domain.Employee{}, &repositories.EntityNotFoundError{Entity: "employee"}
	}
	return toEmployee(wire[0]), nil
}

func (r *EmployeeRepository) Search(ctx context.Context, ids ...int) ([]domain.Employee, error) {
	if err := r.scope.requireOffice(); err != nil {
		return nil, err
	}
	params := pfieldservice.NewParams()
	if len(ids) > 0 {
		params = params.SetInts("employeeIDs", ids)
	}
	wire, err := pfieldservice.Search[pfieldservice.Employee](ctx, r.client, pfieldservice.ResourceEmployee, r.scope.officeID, params)
	if err != nil {
		return nil, translate("employee", "search", 0, err)
	}
	return mapAll(wire, toEmployee), nil
}

// ServiceTypeRepository implements repositories.ServiceTypeRepository.
type ServiceTypeRepository struct {
	client *pfieldservice.Client
	scope  scope
}

var _ repositories.ServiceTypeRepository = (*ServiceTypeRepository)(nil)

func NewServiceTypeRepository(client *pfieldservice.Client) (*ServiceTypeRepository, error) {
	if client == nil {
		return nil, errors.New("service type repository: field-service client is required")
	}
	return &ServiceTypeRepository{client: client}, nil
}

func (r *ServiceTypeRepository) Office(officeID int) repositories.ServiceTypeRepository {
	clone := *r
	clone.scope = r.scope.withOffice(officeID)
	return &clone
}

func (r *ServiceTypeRepository) Find(ctx context.Context, id int) (domain.ServiceType, error) {
	if err := r.scope.requireOffice(); err != nil {
		return domain.ServiceType{}, err
	}
	wire, err := pfieldservice.Get[pfieldservice.ServiceType](ctx, r.client, pfieldservice.ResourceServiceType, r.scope.officeID, id)
	if err != nil {
		return domain.ServiceType{}, translate("service type", "find", id, err)
	}
	return toServiceType(wire), nil
}

func (r *ServiceTypeRepository) All(ctx context.Context) ([]domain.ServiceType, error) {
	if err := r.scope.requireOffice(); err != nil {
		return nil, err
	}
	wire, err := pfieldservice.Search[pfieldservice.ServiceType](ctx, r.client, pfieldservice.ResourceServiceType, r.scope.officeID, pfieldservice.NewParams())
	if err != nil {
		return nil, translate("service type", "search", 0, err)
	}
	return mapAll(wire, toServiceType), nil
}

// OfficeRepository implements repositories.OfficeRepository.
type OfficeRepository struct {
	client *pfieldservice.Client
}

var _ repositories.OfficeRepository = (*OfficeRepository)(nil)

func NewOfficeRepository(client *pfieldservice.Client) (*OfficeRepository, error) {
	if client == nil {
		return nil, errors.New("office repository: field-service client is required")
	}
	return &OfficeRepository{client: client}, nil
}

func (r *OfficeRepository) Find(ctx context.Context, id int) (domain.Office, error) {
	wire, err := pfieldservice.Get[pfieldservice.Office](ctx, r.client, pfieldservice.ResourceOffice, id, id)
	if err != nil {
		return domain.Office{}, translate("office", "find", id, err)
	}
	return toOffice(wire), nil
}

func (r *OfficeRepository) All(ctx context.Context) ([]domain.Office, error) {
	wire, err := pfieldservice.Search[pfieldservice.Office](ctx, r.client, pfieldservice.ResourceOffice, 0, pfieldservice.NewParams())
	if err != nil {
		return nil, translate("office", "search", 0, err)
	}
	return mapAll(wire, toOffice), nil
}
