package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	domain "github.com/fieldline/customer-api/internal/domain"
	"github.com/fieldline/customer-api/internal/repositories"
)

// SubscriptionServiceDeps wires the subscription actions.
type SubscriptionServiceDeps struct {
	Subscriptions repositories.SubscriptionRepository
	Customers     repositories.CustomerRepository
	ServiceTypes  repositories.ServiceTypeRepository
	Publisher     EventPublisher
	Clock         func() time.Time
	Logger        Logger
}

type subscriptionService struct {
	subscriptions repositories.SubscriptionRepository
	customers     repositories.CustomerRepository
	serviceTypes  repositories.ServiceTypeRepository
	rules         SubscriptionRules
	events        eventEmitter
	logger        Logger
}

// NewSubscriptionService validates deps and returns the subscription actions.
func NewSubscriptionService(deps SubscriptionServiceDeps) (SubscriptionService, error) {
	switch {
	case deps.Subscriptions == nil:
		return nil, errors.New("subscription service: subscription repository is required")
	case deps.Customers == nil:
		return nil, errors.New("subscription service: customer repository is required")
	case deps.ServiceTypes == nil:
		return nil, errors.New("subscription service: service type repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	return &subscriptionService{
		subscriptions: deps.Subscriptions,
		customers:     deps.Customers,
		serviceTypes:  deps.ServiceTypes,
		events:        eventEmitter{publisher: deps.Publisher, logger: logger, now: func() time.Time { return clock().UTC() }},
		logger:        logger,
	}, nil
}

func (s *subscriptionService) List(ctx context.Context, account Account) ([]Subscription, error) {
	return s.subscriptions.Office(account.OfficeID).
		WithRelated(domain.RelationServiceType).
		Search(ctx, repositories.SearchSubscriptionsDTO{CustomerIDs: []int{account.AccountNumber}})
}

func (s *subscriptionService) Create(ctx context.Context, cmd CreateSubscriptionCommand) (Subscription, error) {
	account := cmd.Account
	if account.Frozen {
		return Subscription{}, ErrAccountFrozen
	}
	customer, err := s.customers.Office(account.OfficeID).
		WithRelated(domain.RelationSubscriptions).
		Find(ctx, account.AccountNumber)
	if err != nil {
		return Subscription{}, err
	}
	existing, err := customer.Subscriptions()
	if err != nil {
		return Subscription{}, err
	}
	serviceType, err := s.serviceTypes.Office(account.OfficeID).Find(ctx, cmd.ServiceTypeID)
	if err != nil {
		return Subscription{}, err
	}
	if check := s.rules.CanCreateSubscription(customer, serviceType, existing); check.Denied() {
		return Subscription{}, denied(ErrCannotCreateSubscription, check.Reason)
	}

	frequency := cmd.FrequencyDays
	if frequency <= 0 {
		frequency = serviceType.FrequencyDays
	}
	dto := repositories.CreateSubscriptionDTO{
		CustomerID:      customer.ID,
		ServiceTypeID:   serviceType.ID,
		RecurringCharge: serviceType.DefaultCharge,
		FrequencyDays:   frequency,
	}
	id, err := s.subscriptions.Office(account.OfficeID).Create(ctx, dto)
	if err != nil {
		return Subscription{}, err
	}

	sub := Subscription{
		ID:              id,
		OfficeID:        account.OfficeID,
		CustomerID:      customer.ID,
		ServiceTypeID:   serviceType.ID,
		Active:          true,
		FrequencyDays:   frequency,
		RecurringCharge: serviceType.DefaultCharge,
		CreatedAt:       s.events.now(),
	}
	sub.SetServiceType(serviceType)

	s.logger(ctx, "subscriptions.created", map[string]any{
		"subscriptionId": id,
		"accountNumber":  account.AccountNumber,
		"serviceTypeId":  serviceType.ID,
	})
	s.events.emit(ctx, domain.EventSubscriptionCreated, account, id, map[string]string{
		"serviceTypeId": strconv.Itoa(serviceType.ID),
		"frequencyDays": strconv.Itoa(frequency),
	})
	return sub, nil
}
