package fieldservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/fieldline/customer-api/internal/domain"
	pfieldservice "github.com/fieldline/customer-api/internal/platform/fieldservice"
	"github.com/fieldline/customer-api/internal/repositories"
)

const customerEntity = "customer"

var customerRelations = []string{
	domain.RelationSubscriptions,
	domain.RelationAppointments,
	domain.RelationPaymentProfiles,
}

// CustomerRepository implements repositories.CustomerRepository.
type CustomerRepository struct {
	client *pfieldservice.Client
	opts   options
	scope  scope
}

var _ repositories.CustomerRepository = (*CustomerRepository)(nil)

func NewCustomerRepository(client *pfieldservice.Client, opts ...Option) (*CustomerRepository, error) {
	if client == nil {
		return nil, errors.New("customer repository: field-service client is required")
	}
	return &CustomerRepository{client: client, opts: buildOptions(opts)}, nil
}

func (r *CustomerRepository) Office(officeID int) repositories.CustomerRepository {
	clone := *r
	clone.scope = r.scope.withOffice(officeID)
	return &clone
}

func (r *CustomerRepository) WithRelated(relations ...string) repositories.CustomerRepository {
	clone := *r
	clone.scope = r.scope.withRelations(relations...)
	return &clone
}

func (r *CustomerRepository) Find(ctx context.Context, id int) (domain.Customer, error) {
	if err := r.scope.requireOffice(); err != nil {
		return domain.Customer{}, err
	}
	if err := r.scope.validateRelations(customerEntity, customerRelations...); err != nil {
		return domain.Customer{}, err
	}
	wire, err := pfieldservice.Get[pfieldservice.Customer](ctx, r.client, pfieldservice.ResourceCustomer, r.scope.officeID, id)
	if err != nil {
		return domain.Customer{}, translate(customerEntity, "find", id, err)
	}
	items := []domain.Customer{toCustomer(wire)}
	if len(r.scope.relations) > 0 {
		loader := newRelationLoader(r.client, r.scope.officeID, r.opts)
		if err := loader.customers(ctx, r.scope, items); err != nil {
			return domain.Customer{}, err
		}
	}
	return items[0], nil
}

// SearchByEmail looks a customer up by email. Without an office scope every office is searched,
// which is how first-login account linking discovers the customer's office.
func (r *CustomerRepository) SearchByEmail(ctx context.Context, email string) ([]domain.Customer, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", repositories.ErrInvalidDTO)
	}
	params := pfieldservice.NewParams().Set("email", email).SetInt("status", 1)
	wire, err := pfieldservice.Search[pfieldservice.Customer](ctx, r.client, pfieldservice.ResourceCustomer, r.scope.officeID, params)
	if err != nil {
		return nil, translate(customerEntity, "search", 0, err)
	}
	return mapAll(wire, toCustomer), nil
}

type customerUpdatePayload struct {
	AutoPayPaymentProfileID *int    `json:"autoPayPaymentProfileID,omitempty"`
	Email                   *string `json:"email,omitempty"`
}

func (r *CustomerRepository) Update(ctx context.Context, dto repositories.UpdateCustomerDTO) error {
	if err := r.scope.requireOffice(); err != nil {
		return err
	}
	if err := dto.Validate(); err != nil {
		return err
	}
	payload := customerUpdatePayload{AutoPayPaymentProfileID: dto.AutoPayProfileID, Email: dto.Email}
	if _, err := r.client.Update(ctx, pfieldservice.ResourceCustomer, r.scope.officeID, dto.CustomerID, payload); err != nil {
		return translate(customerEntity, "update", dto.CustomerID, err)
	}
	return nil
}
