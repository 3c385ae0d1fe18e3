package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/fieldline/customer-api/internal/platform/httpx"
	"github.com/fieldline/customer-api/internal/platform/pagination"
	"github.com/fieldline/customer-api/internal/services"
)

const idempotencyHeader = "Idempotency-Key"

// BillingHandlers serves payments and stored payment profiles.
type BillingHandlers struct {
	payments   services.PaymentService
	profiles   services.PaymentProfileService
	customers  services.CustomerService
	idempotent func(http.Handler) http.Handler
}

// BillingOption customises BillingHandlers.
type BillingOption func(*BillingHandlers)

// WithBillingIdempotency guards payment creation with the given middleware.
func WithBillingIdempotency(mw func(http.Handler) http.Handler) BillingOption {
	return func(h *BillingHandlers) {
		if mw != nil {
			h.idempotent = mw
		}
	}
}

// WithBillingCustomers enables the autopay flag on listed payment profiles.
func WithBillingCustomers(customers services.CustomerService) BillingOption {
	return func(h *BillingHandlers) {
		h.customers = customers
	}
}

// NewBillingHandlers constructs the handlers.
func NewBillingHandlers(payments services.PaymentService, profiles services.PaymentProfileService, opts ...BillingOption) *BillingHandlers {
	h := &BillingHandlers{
		payments:   payments,
		profiles:   profiles,
		idempotent: passthrough,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the billing endpoints.
func (h *BillingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/payments", func(rt chi.Router) {
		rt.With(paginated(pagination.Options{})).Get("/", h.listPayments)
		rt.With(h.idempotent).Post("/", h.createPayment)
	})
	r.Route("/payment-profiles", func(rt chi.Router) {
		rt.Get("/", h.listProfiles)
		rt.Post("/", h.addCard)
		rt.Delete("/{profileID}", h.deleteProfile)
	})
}

type paymentAttributes struct {
	Amount           string `json:"amount" validate:"required,numeric"`
	PaymentProfileID int    `json:"payment_profile_id" validate:"required,gt=0"`
}

type cardAttributes struct {
	Token       string `json:"token" validate:"required,max=255"`
	BillingName string `json:"billing_name" validate:"max=120"`
}

func (h *BillingHandlers) listPayments(w http.ResponseWriter, r *http.Request) {
	account, ok := accountFromRequest(w, r)
	if !ok {
		return
	}
	page := pagination.FromContext(r.Context())
	list, err := h.payments.List(r.Context(), services.ListPaymentsCommand{
		Account:  account,
		Page:     page.Number,
		PageSize: page.Size,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	resources := make([]httpx.Resource, 0, len(list))
	for _, p := range list {
		resources = append(resources, paymentResource(p))
	}
	httpx.WriteDocument(w, http.StatusOK, pageDocument(r, resources))
}

func (h *BillingHandlers) createPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, ok := accountFromRequest(w, r)
	if !ok {
		return
	}
	var attrs paymentAttributes
	if errs := decodeAttributes(r, typePayment, &attrs); errs != nil {
		httpx.WriteErrors(ctx, w, errs...)
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(attrs.Amount))
	if err != nil || !amount.IsPositive() {
		httpx.WriteError(ctx, w, httpx.NewError("validation_failed", "amount must be a positive decimal", http.StatusUnprocessableEntity).
			WithPointer("/data/attributes/amount"))
		return
	}

	payment, err := h.payments.Create(ctx, services.CreatePaymentCommand{
		Account:          account,
		Amount:           amount,
		PaymentProfileID: attrs.PaymentProfileID,
		IdempotencyKey:   strings.TrimSpace(r.Header.Get(idempotencyHeader)),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteDocument(w, http.StatusCreated, httpx.One(paymentResource(payment)))
}

func (h *BillingHandlers) listProfiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, ok := accountFromRequest(w, r)
	if !ok {
		return
	}
	profiles, err := h.profiles.List(ctx, account)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	autopayID := 0
	if h.customers != nil {
		if customer, err := h.customers.GetCustomer(ctx, account); err == nil {
			autopayID = customer.AutoPayProfileID
		}
	}
	resources := make([]httpx.Resource, 0, len(profiles))
	for _, p := range profiles {
		resources = append(resources, paymentProfileResource(p, autopayID))
	}
	httpx.WriteDocument(w, http.StatusOK, httpx.Many(resources))
}

func (h *BillingHandlers) addCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, ok := accountFromRequest(w, r)
	if !ok {
		return
	}
	var attrs cardAttributes
	if errs := decodeAttributes(r, typePaymentProfile, &attrs); errs != nil {
		httpx.WriteErrors(ctx, w, errs...)
		return
	}
	profile, err := h.profiles.AddCard(ctx, services.AddCardCommand{
		Account:     account,
		Token:       attrs.Token,
		BillingName: strings.TrimSpace(attrs.BillingName),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteDocument(w, http.StatusCreated, httpx.One(paymentProfileResource(profile, 0)))
}

func (h *BillingHandlers) deleteProfile(w http.ResponseWriter, r *http.Request) {
	account, ok := accountFromRequest(w, r)
	if !ok {
		return
	}
	id, apiErr := pathID(r, "profileID")
	if apiErr != nil {
		writeHTTPError(r.Context(), w, apiErr)
		return
	}
	if err := h.profiles.Delete(r.Context(), account, id); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteNoContent(w)
}
