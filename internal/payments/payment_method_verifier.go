package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
)

var (
	// ErrUnsupportedPaymentMethod is returned for tokens that are not cards of an accepted brand.
	ErrUnsupportedPaymentMethod = errors.New("payments: unsupported payment method")
	// ErrCardExpired is returned when the card expiry month has passed.
	ErrCardExpired = errors.New("payments: card expired")
)

var acceptedBrands = map[string]string{
	string(stripe.PaymentMethodCardBrandVisa):       "Visa",
	string(stripe.PaymentMethodCardBrandMastercard): "MasterCard",
	string(stripe.PaymentMethodCardBrandAmex):       "AmericanExpress",
	string(stripe.PaymentMethodCardBrandDiscover):   "Discover",
}

// PaymentMethodDetails captures PSP-sourced metadata for a payment instrument.
type PaymentMethodDetails struct {
	Token    string
	Customer string
	Brand    string
	// CardType is the brand name the field-service expects on payment profiles.
	CardType string
	Last4    string
	ExpMonth int
	ExpYear  int
}

// StripePaymentMethodVerifier retrieves payment method metadata from Stripe.
type StripePaymentMethodVerifier struct {
	api     stripePaymentMethodAPI
	account string
	now     func() time.Time
}

// NewStripePaymentMethodVerifier shares the provider's configuration so both use one Stripe account.
func NewStripePaymentMethodVerifier(cfg StripeProviderConfig) (*StripePaymentMethodVerifier, error) {
	api, err := cfg.clients()
	if err != nil {
		return nil, err
	}
	if api.paymentMethods == nil {
		return nil, errors.New("stripe: payment method client is required")
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &StripePaymentMethodVerifier{
		api:     api.paymentMethods,
		account: strings.TrimSpace(cfg.AccountID),
		now:     now,
	}, nil
}

// Lookup reads the card behind token. A nil result from Stripe yields details holding only the token.
func (v *StripePaymentMethodVerifier) Lookup(ctx context.Context, token string) (PaymentMethodDetails, error) {
	if v == nil {
		return PaymentMethodDetails{}, errors.New("stripe: verifier is nil")
	}
	if token = strings.TrimSpace(token); token == "" {
		return PaymentMethodDetails{}, errors.New("stripe: payment method token is required")
	}

	params := &stripe.PaymentMethodParams{Params: stripe.Params{Context: ctx}}
	if v.account != "" {
		params.SetStripeAccount(v.account)
	}
	pm, err := v.api.Get(token, params)
	if err != nil {
		return PaymentMethodDetails{}, fmt.Errorf("stripe: get payment method %s: %w", token, err)
	}
	return cardDetails(token, pm), nil
}

func cardDetails(token string, pm *stripe.PaymentMethod) PaymentMethodDetails {
	details := PaymentMethodDetails{Token: token}
	if pm == nil {
		return details
	}
	if id := strings.TrimSpace(pm.ID); id != "" {
		details.Token = id
	}
	if pm.Customer != nil {
		details.Customer = pm.Customer.ID
	}
	if pm.Type != stripe.PaymentMethodTypeCard || pm.Card == nil {
		return details
	}
	details.Brand = strings.ToLower(string(pm.Card.Brand))
	details.CardType = acceptedBrands[details.Brand]
	details.Last4 = strings.TrimSpace(pm.Card.Last4)
	details.ExpMonth = int(pm.Card.ExpMonth)
	details.ExpYear = int(pm.Card.ExpYear)
	return details
}

// Verify looks up token and rejects anything that is not an unexpired card of an accepted brand.
func (v *StripePaymentMethodVerifier) Verify(ctx context.Context, token string) (PaymentMethodDetails, error) {
	details, err := v.Lookup(ctx, token)
	if err != nil {
		return PaymentMethodDetails{}, err
	}
	return details, checkCard(details, v.now())
}

func checkCard(details PaymentMethodDetails, now time.Time) error {
	if details.CardType == "" || len(details.Last4) != 4 {
		return ErrUnsupportedPaymentMethod
	}
	if details.ExpMonth < 1 || details.ExpMonth > 12 || details.ExpYear <= 0 {
		return ErrUnsupportedPaymentMethod
	}
	year, month := now.Year(), int(now.Month())
	if details.ExpYear < year || (details.ExpYear == year && details.ExpMonth < month) {
		return ErrCardExpired
	}
	return nil
}
