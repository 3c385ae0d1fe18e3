package services

import (
	"context"
	"errors"

	domain "github.com/fieldline/customer-api/internal/domain"
	"github.com/fieldline/customer-api/internal/repositories"
)

// CustomerServiceDeps wires the customer actions.
type CustomerServiceDeps struct {
	Customers       repositories.CustomerRepository
	PaymentProfiles repositories.PaymentProfileRepository
	Logger          Logger
}

type customerService struct {
	customers repositories.CustomerRepository
	profiles  repositories.PaymentProfileRepository
	logger    Logger
}

// NewCustomerService validates deps and returns the customer actions.
func NewCustomerService(deps CustomerServiceDeps) (CustomerService, error) {
	if deps.Customers == nil {
		return nil, errors.New("customer service: customer repository is required")
	}
	if deps.PaymentProfiles == nil {
		return nil, errors.New("customer service: payment profile repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	return &customerService{customers: deps.Customers, profiles: deps.PaymentProfiles, logger: logger}, nil
}

func (s *customerService) GetCustomer(ctx context.Context, account Account) (Customer, error) {
	return s.customers.Office(account.OfficeID).
		WithRelated(domain.RelationSubscriptions).
		Find(ctx, account.AccountNumber)
}

func (s *customerService) UpdateAutopay(ctx context.Context, account Account, profileID int) (Customer, error) {
	if account.Frozen {
		return Customer{}, ErrAccountFrozen
	}
	if profileID > 0 {
		profile, err := s.profiles.Office(account.OfficeID).Find(ctx, profileID)
		if err != nil {
			if repositories.IsNotFound(err) {
				return Customer{}, ErrPaymentProfileNotFound
			}
			return Customer{}, err
		}
		if !account.Owns(profile.CustomerID) {
			return Customer{}, ErrAccountMismatch
		}
	}

	// Zero clears autopay.
	id := profileID
	if err := s.customers.Office(account.OfficeID).Update(ctx, repositories.UpdateCustomerDTO{
		CustomerID:       account.AccountNumber,
		AutoPayProfileID: &id,
	}); err != nil {
		return Customer{}, err
	}
	s.logger(ctx, "customers.autopay_updated", map[string]any{
		"accountNumber":    account.AccountNumber,
		"paymentProfileId": profileID,
	})
	return s.GetCustomer(ctx, account)
}
