package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	domain "github.com/fieldline/customer-api/internal/domain"
	"github.com/fieldline/customer-api/internal/platform/auth"
	"github.com/fieldline/customer-api/internal/platform/httpx"
	"github.com/fieldline/customer-api/internal/platform/requestctx"
	"github.com/fieldline/customer-api/internal/services"
)

// FlexIVRHandlers serves the phone system's reschedule endpoint. Callers authenticate with a
// Google-signed OIDC token rather than a customer session.
type FlexIVRHandlers struct {
	appointments services.AppointmentService
}

// NewFlexIVRHandlers constructs the handlers.
func NewFlexIVRHandlers(appointments services.AppointmentService) *FlexIVRHandlers {
	return &FlexIVRHandlers{appointments: appointments}
}

// Routes registers the internal endpoints relative to /internal.
func (h *FlexIVRHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/flexivr/appointments/{appointmentID}/reschedule", h.reschedule)
}

type flexIVRAttributes struct {
	OfficeID      int    `json:"office_id" validate:"required,gt=0"`
	AccountNumber int    `json:"account_number" validate:"required,gt=0"`
	SpotID        int    `json:"spot_id" validate:"required,gt=0"`
	Notes         string `json:"notes" validate:"max=1000"`
	Window        string `json:"window" validate:"omitempty,oneof=AM PM AT"`
}

func (h *FlexIVRHandlers) reschedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, apiErr := pathID(r, "appointmentID")
	if apiErr != nil {
		writeHTTPError(ctx, w, apiErr)
		return
	}
	var attrs flexIVRAttributes
	if errs := decodeAttributes(r, typeAppointment, &attrs); errs != nil {
		httpx.WriteErrors(ctx, w, errs...)
		return
	}

	caller := ""
	if identity, ok := auth.ServiceIdentityFromContext(ctx); ok {
		caller = identity.Email
		if caller == "" {
			caller = identity.Subject
		}
	}

	appt, err := h.appointments.RescheduleInFlexIVR(ctx, services.FlexIVRRescheduleCommand{
		OfficeID:      attrs.OfficeID,
		AccountNumber: attrs.AccountNumber,
		AppointmentID: id,
		SpotID:        attrs.SpotID,
		Notes:         attrs.Notes,
		Window:        domain.Window(attrs.Window),
		Caller:        caller,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteDocument(w, http.StatusOK, httpx.One(appointmentResource(appt)))
}

// PlanInvalidator evicts cached plan data for a customer.
type PlanInvalidator interface {
	Invalidate(ctx context.Context, officeID, customerID int) error
}

// WebhookHandlers receives signed field-service notifications.
type WebhookHandlers struct {
	plans PlanInvalidator
}

// NewWebhookHandlers constructs the handlers.
func NewWebhookHandlers(plans PlanInvalidator) *WebhookHandlers {
	return &WebhookHandlers{plans: plans}
}

// Routes registers the webhook endpoints relative to /webhooks.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/fieldservice/subscriptions", h.subscriptionChanged)
}

type subscriptionChangedAttributes struct {
	OfficeID   int `json:"office_id" validate:"required,gt=0"`
	CustomerID int `json:"customer_id" validate:"required,gt=0"`
}

func (h *WebhookHandlers) subscriptionChanged(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var attrs subscriptionChangedAttributes
	if errs := decodeAttributes(r, typeSubscription, &attrs); errs != nil {
		httpx.WriteErrors(ctx, w, errs...)
		return
	}
	if h.plans != nil {
		if err := h.plans.Invalidate(ctx, attrs.OfficeID, attrs.CustomerID); err != nil {
			// The entry expires on its own TTL; the sender must not retry forever.
			requestctx.Logger(ctx).Warn("plan cache invalidation failed",
				zap.Int("officeId", attrs.OfficeID),
				zap.Int("customerId", attrs.CustomerID),
				zap.Error(err),
			)
		}
	}
	if meta, ok := auth.WebhookFromContext(ctx); ok {
		requestctx.Logger(ctx).Info("webhook processed",
			zap.String("source", meta.Source),
			zap.String("nonce", meta.Nonce),
			zap.Int("customerId", attrs.CustomerID),
		)
	}
	w.WriteHeader(http.StatusAccepted)
}
