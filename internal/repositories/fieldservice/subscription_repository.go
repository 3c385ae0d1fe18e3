package fieldservice

import (
	"context"
	"errors"

	domain "github.com/fieldline/customer-api/internal/domain"
	pfieldservice "github.com/fieldline/customer-api/internal/platform/fieldservice"
	"github.com/fieldline/customer-api/internal/repositories"
)

const subscriptionEntity = "subscription"

var subscriptionRelations = []string{
	domain.RelationServiceType,
	domain.RelationRecurringTicket,
}

// SubscriptionRepository implements repositories.SubscriptionRepository.
type SubscriptionRepository struct {
	client *pfieldservice.Client
	opts   options
	scope  scope
}

var _ repositories.SubscriptionRepository = (*SubscriptionRepository)(nil)

func NewSubscriptionRepository(client *pfieldservice.Client, opts ...Option) (*SubscriptionRepository, error) {
	if client == nil {
		return nil, errors.New("subscription repository: field-service client is required")
	}
	return &SubscriptionRepository{client: client, opts: buildOptions(opts)}, nil
}

func (r *SubscriptionRepository) Office(officeID int) repositories.SubscriptionRepository {
	clone := *r
	clone.scope = r.scope.withOffice(officeID)
	return &clone
}

func (r *SubscriptionRepository) WithRelated(relations ...string) repositories.SubscriptionRepository {
	clone := *r
	clone.scope = r.scope.withRelations(relations...)
	return &clone
}

func (r *SubscriptionRepository) prepare() error {
	if err := r.scope.requireOffice(); err != nil {
		return err
	}
	return r.scope.validateRelations(subscriptionEntity, subscriptionRelations...)
}

func (r *SubscriptionRepository) Find(ctx context.Context, id int) (domain.Subscription, error) {
	if err := r.prepare(); err != nil {
		return domain.Subscription{}, err
	}
	wire, err := pfieldservice.Get[pfieldservice.Subscription](ctx, r.client, pfieldservice.ResourceSubscription, r.scope.officeID, id)
	if err != nil {
		return domain.Subscription{}, translate(subscriptionEntity, "find", id, err)
	}
	items := []domain.Subscription{toSubscription(wire)}
	if err := r.load(ctx, items); err != nil {
		return domain.Subscription{}, err
	}
	return items[0], nil
}

func (r *SubscriptionRepository) Search(ctx context.Context, dto repositories.SearchSubscriptionsDTO) ([]domain.Subscription, error) {
	if err := r.prepare(); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	params := pfieldservice.NewParams().SetInts("customerIDs", dto.CustomerIDs)
	if dto.ActiveOnly {
		params = params.SetInt("active", 1)
	}
	wire, err := pfieldservice.Search[pfieldservice.Subscription](ctx, r.client, pfieldservice.ResourceSubscription, r.scope.officeID, params)
	if err != nil {
		return nil, translate(subscriptionEntity, "search", 0, err)
	}
	items := mapAll(wire, toSubscription)
	if err := r.load(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *SubscriptionRepository) load(ctx context.Context, items []domain.Subscription) error {
	if len(r.scope.relations) == 0 || len(items) == 0 {
		return nil
	}
	return newRelationLoader(r.client, r.scope.officeID, r.opts).subscriptions(ctx, r.scope, items)
}

type subscriptionPayload struct {
	CustomerID      int    `json:"customerID"`
	ServiceID       int    `json:"serviceID"`
	RecurringCharge string `json:"recurringCharge"`
	Frequency       int    `json:"frequency,omitempty"`
	SoldBy          int    `json:"soldBy,omitempty"`
}

func (r *SubscriptionRepository) Create(ctx context.Context, dto repositories.CreateSubscriptionDTO) (int, error) {
	if err := r.scope.requireOffice(); err != nil {
		return 0, err
	}
	if err := dto.Validate(); err != nil {
		return 0, err
	}
	payload := subscriptionPayload{
		CustomerID:      dto.CustomerID,
		ServiceID:       dto.ServiceTypeID,
		RecurringCharge: dto.RecurringCharge.StringFixed(2),
		Frequency:       dto.FrequencyDays,
		SoldBy:          dto.SoldBy,
	}
	id, err := r.client.Create(ctx, pfieldservice.ResourceSubscription, r.scope.officeID, payload)
	if err != nil {
		return 0, translate(subscriptionEntity, "create", 0, err)
	}
	return id, nil
}
