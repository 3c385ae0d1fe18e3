package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/fieldline/customer-api/internal/domain"
	"github.com/fieldline/customer-api/internal/repositories"
)

// PaymentProfileServiceDeps wires stored card management.
type PaymentProfileServiceDeps struct {
	PaymentProfiles repositories.PaymentProfileRepository
	Customers       repositories.CustomerRepository
	Cards           CardVerifier
	Publisher       EventPublisher
	Clock           func() time.Time
	Logger          Logger
}

type paymentProfileService struct {
	profiles  repositories.PaymentProfileRepository
	customers repositories.CustomerRepository
	cards     CardVerifier
	events    eventEmitter
	logger    Logger
}

// NewPaymentProfileService validates deps and returns the payment profile actions.
func NewPaymentProfileService(deps PaymentProfileServiceDeps) (PaymentProfileService, error) {
	switch {
	case deps.PaymentProfiles == nil:
		return nil, errors.New("payment profile service: payment profile repository is required")
	case deps.Customers == nil:
		return nil, errors.New("payment profile service: customer repository is required")
	case deps.Cards == nil:
		return nil, errors.New("payment profile service: card verifier is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	return &paymentProfileService{
		profiles:  deps.PaymentProfiles,
		customers: deps.Customers,
		cards:     deps.Cards,
		events:    eventEmitter{publisher: deps.Publisher, logger: logger, now: func() time.Time { return clock().UTC() }},
		logger:    logger,
	}, nil
}

func (s *paymentProfileService) List(ctx context.Context, account Account) ([]PaymentProfile, error) {
	return s.profiles.Office(account.OfficeID).Search(ctx, repositories.SearchPaymentProfilesDTO{
		CustomerID: account.AccountNumber,
		ActiveOnly: true,
	})
}

func (s *paymentProfileService) AddCard(ctx context.Context, cmd AddCardCommand) (PaymentProfile, error) {
	account := cmd.Account
	if account.Frozen {
		return PaymentProfile{}, ErrAccountFrozen
	}
	token := strings.TrimSpace(cmd.Token)
	if token == "" {
		return PaymentProfile{}, fmt.Errorf("%w: payment method token is required", repositories.ErrInvalidDTO)
	}

	card, err := s.cards.Verify(ctx, token)
	if err != nil {
		return PaymentProfile{}, err
	}

	billingName := strings.TrimSpace(cmd.BillingName)
	if billingName == "" {
		customer, err := s.customers.Office(account.OfficeID).Find(ctx, account.AccountNumber)
		if err != nil {
			return PaymentProfile{}, err
		}
		billingName = customer.DisplayName()
	}

	dto := repositories.AddPaymentProfileDTO{
		CustomerID:   account.AccountNumber,
		Method:       domain.PaymentMethodCard,
		BillingName:  billingName,
		CardType:     card.CardType,
		LastFour:     card.Last4,
		ExpMonth:     card.ExpMonth,
		ExpYear:      card.ExpYear,
		GatewayToken: card.Token,
		Description:  fmt.Sprintf("%s ending %s", card.CardType, card.Last4),
	}
	id, err := s.profiles.Office(account.OfficeID).Create(ctx, dto)
	if err != nil {
		return PaymentProfile{}, err
	}

	profile := PaymentProfile{
		ID:           id,
		OfficeID:     account.OfficeID,
		CustomerID:   account.AccountNumber,
		Method:       dto.Method,
		Description:  dto.Description,
		BillingName:  dto.BillingName,
		CardType:     dto.CardType,
		LastFour:     dto.LastFour,
		ExpMonth:     dto.ExpMonth,
		ExpYear:      dto.ExpYear,
		GatewayToken: dto.GatewayToken,
		Active:       true,
		CreatedAt:    s.events.now(),
	}
	s.logger(ctx, "payment_profiles.added", map[string]any{
		"paymentProfileId": id,
		"accountNumber":    account.AccountNumber,
		"cardType":         card.CardType,
	})
	s.events.emit(ctx, domain.EventPaymentProfileAdded, account, id, map[string]string{
		"cardType": card.CardType,
		"lastFour": card.Last4,
	})
	return profile, nil
}

func (s *paymentProfileService) Delete(ctx context.Context, account Account, profileID int) error {
	if account.Frozen {
		return ErrAccountFrozen
	}
	profile, err := ownedProfile(ctx, s.profiles, account, profileID)
	if err != nil {
		return err
	}
	customer, err := s.customers.Office(account.OfficeID).Find(ctx, account.AccountNumber)
	if err != nil {
		return err
	}
	if customer.AutoPayProfileID == profile.ID {
		return ErrProfileInUse
	}
	if err := s.profiles.Office(account.OfficeID).Delete(ctx, profile.ID); err != nil {
		return err
	}
	s.logger(ctx, "payment_profiles.deleted", map[string]any{
		"paymentProfileId": profile.ID,
		"accountNumber":    account.AccountNumber,
	})
	s.events.emit(ctx, domain.EventPaymentProfileDeleted, account, profile.ID, nil)
	return nil
}
