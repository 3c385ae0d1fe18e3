package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v78"
)

type fakeIntents struct {
	created *stripe.PaymentIntentParams
	intent  *stripe.PaymentIntent
	err     error
}

func (f *fakeIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.created = params
	return f.intent, f.err
}

func (f *fakeIntents) Get(string, *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return f.intent, f.err
}

type fakeRefunds struct{}

func (fakeRefunds) New(*stripe.RefundParams) (*stripe.Refund, error) { return &stripe.Refund{}, nil }

type fakePaymentMethods struct {
	pm *stripe.PaymentMethod
}

func (f fakePaymentMethods) Get(string, *stripe.PaymentMethodParams) (*stripe.PaymentMethod, error) {
	return f.pm, nil
}

func TestStripeProviderChargeOffSession(t *testing.T) {
	intents := &fakeIntents{intent: &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusSucceeded, Amount: 4999, Currency: stripe.CurrencyUSD}}
	provider, err := NewStripeProvider(StripeProviderConfig{Clients: &stripeClients{intents: intents, refunds: fakeRefunds{}}})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	details, err := provider.Charge(context.Background(), ChargeRequest{
		Amount:         decimal.RequireFromString("49.99"),
		PaymentMethod:  "pm_123",
		IdempotencyKey: "idem-1",
		Metadata:       map[string]string{"accountNumber": "2874"},
	})
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if details.IntentID != "pi_1" || details.Status != StatusSucceeded {
		t.Fatalf("unexpected details %+v", details)
	}
	if !details.Amount.Equal(decimal.RequireFromString("49.99")) {
		t.Fatalf("expected amount 49.99, got %s", details.Amount)
	}

	params := intents.created
	if params == nil {
		t.Fatal("expected payment intent params")
	}
	if *params.Amount != 4999 || *params.Currency != "usd" {
		t.Fatalf("unexpected amount/currency %d %s", *params.Amount, *params.Currency)
	}
	if !*params.OffSession || !*params.Confirm {
		t.Fatalf("expected off-session confirmed intent")
	}
	if params.IdempotencyKey == nil || *params.IdempotencyKey != "idem-1" {
		t.Fatalf("expected idempotency key forwarded")
	}
}

func TestStripeProviderChargeDeclined(t *testing.T) {
	intents := &fakeIntents{err: &stripe.Error{Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeCardDeclined, Msg: "Your card was declined."}}
	provider, err := NewStripeProvider(StripeProviderConfig{Clients: &stripeClients{intents: intents, refunds: fakeRefunds{}}})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	_, err = provider.Charge(context.Background(), ChargeRequest{Amount: decimal.NewFromInt(10), PaymentMethod: "pm_1"})
	if !errors.Is(err, ErrCardDeclined) {
		t.Fatalf("expected ErrCardDeclined, got %v", err)
	}
}

func TestStripeProviderChargeIncomplete(t *testing.T) {
	intents := &fakeIntents{intent: &stripe.PaymentIntent{ID: "pi_2", Status: stripe.PaymentIntentStatusRequiresAction, Amount: 1000}}
	provider, err := NewStripeProvider(StripeProviderConfig{Clients: &stripeClients{intents: intents, refunds: fakeRefunds{}}})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	_, err = provider.Charge(context.Background(), ChargeRequest{Amount: decimal.NewFromInt(10), PaymentMethod: "pm_1"})
	if !errors.Is(err, ErrChargeIncomplete) {
		t.Fatalf("expected ErrChargeIncomplete, got %v", err)
	}
}

type recordingRefunds struct {
	params *stripe.RefundParams
}

func (r *recordingRefunds) New(params *stripe.RefundParams) (*stripe.Refund, error) {
	r.params = params
	return &stripe.Refund{ID: "re_1", Amount: 2500, Currency: stripe.CurrencyUSD, Status: stripe.RefundStatusSucceeded}, nil
}

func TestStripeProviderRefund(t *testing.T) {
	refunds := &recordingRefunds{}
	provider, err := NewStripeProvider(StripeProviderConfig{Clients: &stripeClients{intents: &fakeIntents{}, refunds: refunds}})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	details, err := provider.Refund(context.Background(), RefundRequest{IntentID: "pi_9", Reason: "Duplicate", IdempotencyKey: "refund-1"})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if details.Status != StatusRefunded || details.IntentID != "pi_9" || !details.Amount.Equal(decimal.RequireFromString("25")) {
		t.Fatalf("unexpected details %+v", details)
	}
	params := refunds.params
	if params == nil || *params.PaymentIntent != "pi_9" {
		t.Fatal("expected refund against pi_9")
	}
	if params.Reason == nil || *params.Reason != "duplicate" {
		t.Fatalf("expected normalised reason, got %v", params.Reason)
	}
	if params.IdempotencyKey == nil || *params.IdempotencyKey != "refund-1" {
		t.Fatal("expected idempotency key forwarded")
	}
}

func TestStripePaymentMethodVerifier(t *testing.T) {
	now := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)
	card := func(brand stripe.PaymentMethodCardBrand, month, year int64) *stripe.PaymentMethod {
		return &stripe.PaymentMethod{
			ID:   "pm_card",
			Type: stripe.PaymentMethodTypeCard,
			Card: &stripe.PaymentMethodCard{Brand: brand, Last4: "4242", ExpMonth: month, ExpYear: year},
		}
	}

	cases := []struct {
		name string
		pm   *stripe.PaymentMethod
		want error
	}{
		{name: "valid visa", pm: card(stripe.PaymentMethodCardBrandVisa, 6, 2025)},
		{name: "expired", pm: card(stripe.PaymentMethodCardBrandVisa, 5, 2025), want: ErrCardExpired},
		{name: "unknown brand", pm: card(stripe.PaymentMethodCardBrandUnionpay, 1, 2030), want: ErrUnsupportedPaymentMethod},
		{name: "not a card", pm: &stripe.PaymentMethod{ID: "pm_bank", Type: stripe.PaymentMethodTypeUSBankAccount}, want: ErrUnsupportedPaymentMethod},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verifier, err := NewStripePaymentMethodVerifier(StripeProviderConfig{
				Clients: &stripeClients{paymentMethods: fakePaymentMethods{pm: tc.pm}},
				Clock:   func() time.Time { return now },
			})
			if err != nil {
				t.Fatalf("new verifier: %v", err)
			}
			details, err := verifier.Verify(context.Background(), "pm_card")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if tc.want == nil && (details.CardType != "Visa" || details.Last4 != "4242") {
				t.Fatalf("unexpected details %+v", details)
			}
		})
	}
}
