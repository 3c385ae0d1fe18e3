package payments

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// StripeLogger receives charge and refund outcomes.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeRefundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

type stripePaymentMethodAPI interface {
	Get(id string, params *stripe.PaymentMethodParams) (*stripe.PaymentMethod, error)
}

// stripeClients lets tests replace the Stripe resource clients.
type stripeClients struct {
	intents        stripePaymentIntentAPI
	refunds        stripeRefundAPI
	paymentMethods stripePaymentMethodAPI
}

// StripeProviderConfig is shared by StripeProvider and StripePaymentMethodVerifier.
type StripeProviderConfig struct {
	APIKey    string
	AccountID string
	Currency  string
	Backends  *stripe.Backends
	Logger    StripeLogger
	Clock     func() time.Time
	Clients   *stripeClients
}

func (cfg StripeProviderConfig) clients() (stripeClients, error) {
	if cfg.Clients != nil {
		return *cfg.Clients, nil
	}
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return stripeClients{}, errors.New("stripe: api key is required")
	}
	sc := client.New(key, cfg.Backends)
	return stripeClients{intents: sc.PaymentIntents, refunds: sc.Refunds, paymentMethods: sc.PaymentMethods}, nil
}

// StripeProvider charges stored cards with confirmed off-session PaymentIntents.
type StripeProvider struct {
	api      stripeClients
	account  string
	currency string
	log      StripeLogger
}

func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	api, err := cfg.clients()
	if err != nil {
		return nil, err
	}
	if api.intents == nil || api.refunds == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}
	p := &StripeProvider{
		api:      api,
		account:  strings.TrimSpace(cfg.AccountID),
		currency: strings.ToLower(strings.TrimSpace(cfg.Currency)),
		log:      cfg.Logger,
	}
	if p.currency == "" {
		p.currency = string(stripe.CurrencyUSD)
	}
	if p.log == nil {
		p.log = func(context.Context, string, map[string]any) {}
	}
	return p, nil
}

// Charge creates and confirms the intent in one call. The idempotency key is forwarded so a
// retried request never charges twice. A declined card yields ErrCardDeclined; an intent that
// does not succeed immediately yields ErrChargeIncomplete alongside its details.
func (p *StripeProvider) Charge(ctx context.Context, req ChargeRequest) (PaymentDetails, error) {
	cents, err := MinorUnits(req.Amount)
	if err != nil {
		return PaymentDetails{}, err
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = p.currency
	}

	params := &stripe.PaymentIntentParams{
		Params:        stripe.Params{Context: ctx},
		Metadata:      maps.Clone(req.Metadata),
		Amount:        stripe.Int64(cents),
		Currency:      stripe.String(currency),
		PaymentMethod: stripe.String(strings.TrimSpace(req.PaymentMethod)),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	if v := strings.TrimSpace(req.GatewayCustomer); v != "" {
		params.Customer = stripe.String(v)
	}
	if v := strings.TrimSpace(req.Description); v != "" {
		params.Description = stripe.String(v)
	}
	p.scope(&params.Params, req.IdempotencyKey)

	intent, err := p.api.intents.New(params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.Type == stripe.ErrorTypeCard {
			p.log(ctx, "payments.stripe.declined", map[string]any{"code": serr.Code, "declineCode": serr.DeclineCode})
			return PaymentDetails{}, fmt.Errorf("%w: %s", ErrCardDeclined, serr.Msg)
		}
		return PaymentDetails{}, fmt.Errorf("stripe: create payment intent: %w", err)
	}

	details := intentDetails(intent)
	p.log(ctx, "payments.stripe.charged", map[string]any{"paymentIntent": intent.ID, "status": intent.Status, "amount": cents})
	if details.Status != StatusSucceeded {
		return details, fmt.Errorf("%w: status %s", ErrChargeIncomplete, intent.Status)
	}
	return details, nil
}

// Refund reverses a PaymentIntent. Details describe the refund, not the original charge.
func (p *StripeProvider) Refund(ctx context.Context, req RefundRequest) (PaymentDetails, error) {
	params := &stripe.RefundParams{
		Params:        stripe.Params{Context: ctx},
		PaymentIntent: stripe.String(req.IntentID),
	}
	if req.Amount != nil {
		cents, err := MinorUnits(*req.Amount)
		if err != nil {
			return PaymentDetails{}, err
		}
		params.Amount = stripe.Int64(cents)
	}
	switch reason := stripe.RefundReason(strings.ToLower(strings.TrimSpace(req.Reason))); reason {
	case stripe.RefundReasonDuplicate, stripe.RefundReasonFraudulent, stripe.RefundReasonRequestedByCustomer:
		params.Reason = stripe.String(string(reason))
	}
	p.scope(&params.Params, req.IdempotencyKey)

	refund, err := p.api.refunds.New(params)
	if err != nil {
		return PaymentDetails{}, fmt.Errorf("stripe: refund payment intent %s: %w", req.IntentID, err)
	}
	details := refundDetails(req.IntentID, refund)
	p.log(ctx, "payments.stripe.refunded", map[string]any{"paymentIntent": req.IntentID, "status": details.Status})
	return details, nil
}

func (p *StripeProvider) scope(params *stripe.Params, idempotencyKey string) {
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}
}

func intentDetails(intent *stripe.PaymentIntent) PaymentDetails {
	if intent == nil {
		return PaymentDetails{}
	}
	details := PaymentDetails{
		Provider: "stripe",
		IntentID: intent.ID,
		Status:   StatusPending,
		Amount:   FromMinorUnits(intent.Amount),
		Currency: strings.ToUpper(string(intent.Currency)),
	}
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		details.Status = StatusSucceeded
	case stripe.PaymentIntentStatusCanceled, stripe.PaymentIntentStatusRequiresPaymentMethod:
		details.Status = StatusFailed
	}
	return details
}

func refundDetails(intentID string, refund *stripe.Refund) PaymentDetails {
	details := PaymentDetails{Provider: "stripe", IntentID: intentID, Status: StatusPending}
	if refund == nil {
		return details
	}
	details.Amount = FromMinorUnits(refund.Amount)
	details.Currency = strings.ToUpper(string(refund.Currency))
	switch refund.Status {
	case stripe.RefundStatusSucceeded:
		details.Status = StatusRefunded
	case stripe.RefundStatusFailed, stripe.RefundStatusCanceled:
		details.Status = StatusFailed
	}
	return details
}
