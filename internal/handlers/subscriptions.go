package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldline/customer-api/internal/platform/httpx"
	"github.com/fieldline/customer-api/internal/services"
)

// SubscriptionHandlers serves agreements and plan upgrades.
type SubscriptionHandlers struct {
	subscriptions services.SubscriptionService
	upgrades      services.UpgradeService
}

// NewSubscriptionHandlers constructs the handlers. upgrades may be nil when plan pricing is not
// configured; the upgrades endpoint then answers 404.
func NewSubscriptionHandlers(subscriptions services.SubscriptionService, upgrades services.UpgradeService) *SubscriptionHandlers {
	return &SubscriptionHandlers{subscriptions: subscriptions, upgrades: upgrades}
}

// Routes registers the subscription endpoints.
func (h *SubscriptionHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/subscriptions", func(rt chi.Router) {
		rt.Get("/", h.listSubscriptions)
		rt.Post("/", h.createSubscription)
		if h.upgrades != nil {
			rt.Get("/{subscriptionID}/upgrades", h.showUpgrades)
		}
	})
}

type subscriptionAttributes struct {
	ServiceTypeID int `json:"service_type_id" validate:"required,gt=0"`
	FrequencyDays int `json:"frequency_days" validate:"omitempty,gt=0,lte=365"`
}

func (h *SubscriptionHandlers) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	account, ok := accountFromRequest(w, r)
	if !ok {
		return
	}
	subs, err := h.subscriptions.List(r.Context(), account)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	resources := make([]httpx.Resource, 0, len(subs))
	for _, s := range subs {
		resources = append(resources, subscriptionResource(s))
	}
	httpx.WriteDocument(w, http.StatusOK, httpx.Many(resources))
}

func (h *SubscriptionHandlers) createSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, ok := accountFromRequest(w, r)
	if !ok {
		return
	}
	var attrs subscriptionAttributes
	if errs := decodeAttributes(r, typeSubscription, &attrs); errs != nil {
		httpx.WriteErrors(ctx, w, errs...)
		return
	}
	sub, err := h.subscriptions.Create(ctx, services.CreateSubscriptionCommand{
		Account:       account,
		ServiceTypeID: attrs.ServiceTypeID,
		FrequencyDays: attrs.FrequencyDays,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteDocument(w, http.StatusCreated, httpx.One(subscriptionResource(sub)))
}

func (h *SubscriptionHandlers) showUpgrades(w http.ResponseWriter, r *http.Request) {
	account, ok := accountFromRequest(w, r)
	if !ok {
		return
	}
	id, apiErr := pathID(r, "subscriptionID")
	if apiErr != nil {
		writeHTTPError(r.Context(), w, apiErr)
		return
	}
	summary, err := h.upgrades.ShowUpgrades(r.Context(), account, id)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteDocument(w, http.StatusOK, httpx.One(upgradeSummaryResource(summary)))
}
