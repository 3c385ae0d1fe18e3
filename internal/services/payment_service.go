package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/fieldline/customer-api/internal/domain"
	"github.com/fieldline/customer-api/internal/payments"
	"github.com/fieldline/customer-api/internal/repositories"
)

const defaultPaymentCurrency = "usd"

// PaymentServiceDeps wires payment collection.
type PaymentServiceDeps struct {
	Payments        repositories.PaymentRepository
	PaymentProfiles repositories.PaymentProfileRepository
	Charger         PaymentCharger
	// Cards resolves the gateway customer owning a stored payment method. Optional.
	Cards     CardVerifier
	Currency  string
	Publisher EventPublisher
	Clock     func() time.Time
	Logger    Logger
}

type paymentService struct {
	payments repositories.PaymentRepository
	profiles repositories.PaymentProfileRepository
	charger  PaymentCharger
	cards    CardVerifier
	currency string
	events   eventEmitter
	logger   Logger
}

// NewPaymentService validates deps and returns the payment actions.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	switch {
	case deps.Payments == nil:
		return nil, errors.New("payment service: payment repository is required")
	case deps.PaymentProfiles == nil:
		return nil, errors.New("payment service: payment profile repository is required")
	case deps.Charger == nil:
		return nil, errors.New("payment service: charger is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	currency := strings.ToLower(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = defaultPaymentCurrency
	}
	return &paymentService{
		payments: deps.Payments,
		profiles: deps.PaymentProfiles,
		charger:  deps.Charger,
		cards:    deps.Cards,
		currency: currency,
		events:   eventEmitter{publisher: deps.Publisher, logger: logger, now: func() time.Time { return clock().UTC() }},
		logger:   logger,
	}, nil
}

func (s *paymentService) List(ctx context.Context, cmd ListPaymentsCommand) ([]Payment, error) {
	repo := s.payments.Office(cmd.Account.OfficeID)
	if cmd.Page > 0 && cmd.PageSize > 0 {
		repo = repo.Paginate(cmd.Page, cmd.PageSize)
	}
	return repo.Search(ctx, repositories.SearchPaymentsDTO{CustomerID: cmd.Account.AccountNumber})
}

func (s *paymentService) Create(ctx context.Context, cmd CreatePaymentCommand) (Payment, error) {
	account := cmd.Account
	if account.Frozen {
		return Payment{}, ErrAccountFrozen
	}
	if _, err := payments.MinorUnits(cmd.Amount); err != nil {
		return Payment{}, fmt.Errorf("%w: %s", ErrInvalidAmount, cmd.Amount.String())
	}

	profile, err := ownedProfile(ctx, s.profiles, account, cmd.PaymentProfileID)
	if err != nil {
		return Payment{}, err
	}

	gatewayCustomer := ""
	if s.cards != nil {
		card, err := s.cards.Verify(ctx, profile.GatewayToken)
		if err != nil {
			return Payment{}, err
		}
		gatewayCustomer = card.Customer
	}

	// Each attempt gets its own gateway key. A reused key would let the gateway replay an
	// earlier intent, possibly one that was refunded, and it would be recorded again.
	chargeKey := fmt.Sprintf("payment-%d-%d-%s", account.OfficeID, account.AccountNumber, ulid.Make().String())
	metadata := map[string]string{
		"officeId":         strconv.Itoa(account.OfficeID),
		"accountNumber":    strconv.Itoa(account.AccountNumber),
		"paymentProfileId": strconv.Itoa(profile.ID),
	}
	if key := strings.TrimSpace(cmd.IdempotencyKey); key != "" {
		metadata["idempotencyKey"] = key
	}
	details, err := s.charger.Charge(ctx, payments.PaymentContext{Currency: s.currency}, payments.ChargeRequest{
		Amount:          cmd.Amount,
		Currency:        s.currency,
		PaymentMethod:   profile.GatewayToken,
		GatewayCustomer: gatewayCustomer,
		Description:     fmt.Sprintf("Customer %d payment", account.AccountNumber),
		IdempotencyKey:  chargeKey,
		Metadata:        metadata,
	})
	if err != nil {
		s.logger(ctx, "payments.charge_failed", map[string]any{
			"accountNumber":    account.AccountNumber,
			"paymentProfileId": profile.ID,
			"error":            err.Error(),
		})
		return Payment{}, err
	}

	id, err := s.payments.Office(account.OfficeID).Create(ctx, repositories.AddPaymentDTO{
		CustomerID:       account.AccountNumber,
		PaymentProfileID: profile.ID,
		Amount:           cmd.Amount,
		Method:           profile.Method,
		GatewayReference: details.IntentID,
	})
	if err != nil {
		s.reverseCharge(ctx, account, details.IntentID, chargeKey, err)
		return Payment{}, err
	}

	payment := Payment{
		ID:               id,
		OfficeID:         account.OfficeID,
		CustomerID:       account.AccountNumber,
		PaymentProfileID: profile.ID,
		Amount:           cmd.Amount,
		Method:           string(profile.Method),
		Status:           domain.PaymentStatusSuccessful,
		GatewayReference: details.IntentID,
		Date:             s.events.now(),
	}
	s.events.emit(ctx, domain.EventPaymentCreated, account, id, map[string]string{
		"amount":   cmd.Amount.StringFixed(2),
		"intentId": details.IntentID,
	})
	return payment, nil
}

// reverseCharge refunds a charge the field-service refused to record, so the customer is never
// billed for a payment their account does not show. A failed refund is logged with the intent id
// for manual reconciliation.
func (s *paymentService) reverseCharge(ctx context.Context, account Account, intentID, chargeKey string, cause error) {
	fields := map[string]any{
		"accountNumber": account.AccountNumber,
		"intentId":      intentID,
		"error":         cause.Error(),
	}
	_, err := s.charger.Refund(ctx, payments.PaymentContext{Currency: s.currency}, payments.RefundRequest{
		IntentID:       intentID,
		Reason:         "duplicate",
		IdempotencyKey: "refund-" + chargeKey,
	})
	if err != nil {
		fields["refundError"] = err
		s.logger(ctx, "payments.record_failed", fields)
		return
	}
	s.logger(ctx, "payments.record_failed_refunded", fields)
}

// ownedProfile loads a payment profile and checks it belongs to account.
func ownedProfile(ctx context.Context, profiles repositories.PaymentProfileRepository, account Account, profileID int) (PaymentProfile, error) {
	if profileID <= 0 {
		return PaymentProfile{}, ErrPaymentProfileNotFound
	}
	profile, err := profiles.Office(account.OfficeID).Find(ctx, profileID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return PaymentProfile{}, ErrPaymentProfileNotFound
		}
		return PaymentProfile{}, err
	}
	if !account.Owns(profile.CustomerID) {
		return PaymentProfile{}, ErrAccountMismatch
	}
	return profile, nil
}
