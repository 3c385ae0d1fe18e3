package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldline/customer-api/internal/platform/auth"
	"github.com/fieldline/customer-api/internal/platform/httpx"
	"github.com/fieldline/customer-api/internal/services"
)

// CustomerHandlers serves the caller's customer record and account linking.
type CustomerHandlers struct {
	accounts  services.AccountService
	customers services.CustomerService
}

// NewCustomerHandlers constructs the handlers.
func NewCustomerHandlers(accounts services.AccountService, customers services.CustomerService) *CustomerHandlers {
	return &CustomerHandlers{accounts: accounts, customers: customers}
}

// LinkRoutes registers the endpoints reachable before an account is linked.
func (h *CustomerHandlers) LinkRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/customer/link", h.linkAccount)
}

// Routes registers the endpoints that need a linked account.
func (h *CustomerHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/customer", h.getCustomer)
	r.Patch("/customer/autopay", h.updateAutopay)
}

type linkAttributes struct {
	Email string `json:"email" validate:"omitempty,email,max=254"`
}

type autopayAttributes struct {
	PaymentProfileID *int `json:"payment_profile_id" validate:"required,gte=0"`
}

func (h *CustomerHandlers) linkAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	var attrs linkAttributes
	if r.ContentLength != 0 {
		if errs := decodeAttributes(r, typeAccount, &attrs); errs != nil {
			httpx.WriteErrors(ctx, w, errs...)
			return
		}
	}

	account, err := h.accounts.Link(ctx, identity, attrs.Email)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteDocument(w, http.StatusOK, httpx.One(accountResource(account)))
}

func (h *CustomerHandlers) getCustomer(w http.ResponseWriter, r *http.Request) {
	account, ok := accountFromRequest(w, r)
	if !ok {
		return
	}
	customer, err := h.customers.GetCustomer(r.Context(), account)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteDocument(w, http.StatusOK, httpx.One(customerResource(customer)))
}

func (h *CustomerHandlers) updateAutopay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, ok := accountFromRequest(w, r)
	if !ok {
		return
	}
	var attrs autopayAttributes
	if errs := decodeAttributes(r, typeCustomer, &attrs); errs != nil {
		httpx.WriteErrors(ctx, w, errs...)
		return
	}

	customer, err := h.customers.UpdateAutopay(ctx, account, *attrs.PaymentProfileID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteDocument(w, http.StatusOK, httpx.One(customerResource(customer)))
}
