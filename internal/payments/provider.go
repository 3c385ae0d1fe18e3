package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Status is a gateway-neutral charge state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

var (
	ErrUnsupportedProvider = errors.New("payments: unsupported provider")
	// ErrCardDeclined means the issuer refused an off-session charge.
	ErrCardDeclined = errors.New("payments: card declined")
	// ErrChargeIncomplete means the gateway accepted the charge but it did not settle, for
	// example because the card needs customer authentication.
	ErrChargeIncomplete = errors.New("payments: charge did not complete")
	ErrInvalidAmount    = errors.New("payments: invalid amount")
)

// ChargeRequest is an off-session charge against a stored card.
type ChargeRequest struct {
	Amount          decimal.Decimal
	Currency        string
	PaymentMethod   string
	GatewayCustomer string
	Description     string
	IdempotencyKey  string
	Metadata        map[string]string
}

// RefundRequest reverses a charge. A nil Amount refunds in full.
type RefundRequest struct {
	IntentID       string
	Amount         *decimal.Decimal
	Reason         string
	IdempotencyKey string
}

// PaymentDetails is what the gateway reported about a charge or refund.
type PaymentDetails struct {
	Provider string
	IntentID string
	Status   Status
	Amount   decimal.Decimal
	Currency string
}

// Provider is one payment gateway.
type Provider interface {
	Charge(ctx context.Context, req ChargeRequest) (PaymentDetails, error)
	Refund(ctx context.Context, req RefundRequest) (PaymentDetails, error)
}

// PaymentContext carries routing hints for a single call.
type PaymentContext struct {
	PreferredProvider string
	Currency          string
}

// Manager routes calls to a registered Provider: the preferred one when registered, else the default.
type Manager struct {
	providers map[string]Provider
	fallback  string
}

type ManagerOption func(*Manager)

func WithDefaultProvider(name string) ManagerOption {
	return func(m *Manager) { m.fallback = normaliseProvider(name) }
}

func NewManager(providers map[string]Provider, opts ...ManagerOption) (*Manager, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	m := &Manager{providers: make(map[string]Provider, len(providers))}
	for name, p := range providers {
		key := normaliseProvider(name)
		if key == "" || p == nil {
			return nil, fmt.Errorf("payments: invalid provider registration %q", name)
		}
		m.providers[key] = p
	}
	if len(m.providers) == 1 {
		for key := range m.providers {
			m.fallback = key
		}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

func (m *Manager) route(pc PaymentContext) (string, Provider, error) {
	for _, name := range []string{normaliseProvider(pc.PreferredProvider), m.fallback} {
		if p, ok := m.providers[name]; ok && name != "" {
			return name, p, nil
		}
	}
	return "", nil, ErrUnsupportedProvider
}

// Charge rejects invalid amounts before any gateway is called.
func (m *Manager) Charge(ctx context.Context, pc PaymentContext, req ChargeRequest) (PaymentDetails, error) {
	if _, err := MinorUnits(req.Amount); err != nil {
		return PaymentDetails{}, err
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		return PaymentDetails{}, errors.New("payments: payment method is required")
	}
	name, provider, err := m.route(pc)
	if err != nil {
		return PaymentDetails{}, err
	}
	details, err := provider.Charge(ctx, req)
	if err != nil {
		return details, err
	}
	details.Provider = name
	return details, nil
}

func (m *Manager) Refund(ctx context.Context, pc PaymentContext, req RefundRequest) (PaymentDetails, error) {
	if strings.TrimSpace(req.IntentID) == "" {
		return PaymentDetails{}, errors.New("payments: intent id is required")
	}
	name, provider, err := m.route(pc)
	if err != nil {
		return PaymentDetails{}, err
	}
	details, err := provider.Refund(ctx, req)
	if err != nil {
		return details, err
	}
	details.Provider = name
	return details, nil
}

// MinorUnits converts dollars to cents. The amount must be positive with at most two decimals.
func MinorUnits(amount decimal.Decimal) (int64, error) {
	switch {
	case !amount.IsPositive():
		return 0, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	case !amount.Equal(amount.Truncate(2)):
		return 0, fmt.Errorf("%w: at most two decimal places are allowed", ErrInvalidAmount)
	}
	return amount.Shift(2).IntPart(), nil
}

func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func normaliseProvider(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
