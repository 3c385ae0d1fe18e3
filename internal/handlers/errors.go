package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/fieldline/customer-api/internal/payments"
	"github.com/fieldline/customer-api/internal/platform/httpx"
	"github.com/fieldline/customer-api/internal/platform/planpricing"
	"github.com/fieldline/customer-api/internal/platform/requestctx"
	"github.com/fieldline/customer-api/internal/platform/storage"
	"github.com/fieldline/customer-api/internal/repositories"
	"github.com/fieldline/customer-api/internal/services"
)

type errorMapping struct {
	target error
	code   string
	status int
	detail string
}

// Order matters: the first match wins. Details are fixed so wrapped repository and upstream
// text never reaches the client.
var serviceErrorMappings = []errorMapping{
	{services.ErrAccountNotFound, "account_not_linked", http.StatusNotFound, "no customer account is linked to this login"},
	{services.ErrCustomerNotFound, "customer_not_found", http.StatusNotFound, "customer was not found"},
	{services.ErrPaymentProfileNotFound, "payment_profile_not_found", http.StatusNotFound, "payment profile was not found"},
	{services.ErrDocumentNotFound, "document_not_found", http.StatusNotFound, "document was not found"},
	{services.ErrInvalidDocument, "document_not_found", http.StatusNotFound, "document was not found"},
	{planpricing.ErrPlanNotFound, "plan_not_found", http.StatusNotFound, "plan was not found"},

	{services.ErrAccountMismatch, "account_mismatch", http.StatusUnauthorized, "resource belongs to another account"},
	{services.ErrAccountFrozen, "account_frozen", http.StatusUnauthorized, "account is frozen"},
	{storage.ErrPermissionDenied, "account_mismatch", http.StatusUnauthorized, "resource belongs to another account"},

	{services.ErrCannotCreateAppointment, "appointment_not_creatable", http.StatusConflict, "appointment cannot be created"},
	{services.ErrCannotReschedule, "appointment_not_reschedulable", http.StatusConflict, "appointment cannot be rescheduled"},
	{services.ErrCannotCancel, "appointment_not_cancellable", http.StatusConflict, "appointment cannot be cancelled"},
	{services.ErrSpotAlreadyUsed, "spot_unavailable", http.StatusConflict, "spot is no longer available"},
	{services.ErrProfileInUse, "payment_profile_in_use", http.StatusConflict, "payment profile is used for autopay"},
	{services.ErrCannotCreateSubscription, "subscription_not_creatable", http.StatusConflict, "subscription cannot be created"},
	{repositories.ErrAppointmentNotCancelled, "appointment_not_cancelled", http.StatusConflict, "appointment was not cancelled"},

	{services.ErrNotesRequired, "notes_required", http.StatusUnprocessableEntity, "notes are required"},
	{services.ErrNoEligibleSubscription, "no_eligible_subscription", http.StatusUnprocessableEntity, "no eligible subscription"},
	{services.ErrInvalidAmount, "invalid_amount", http.StatusUnprocessableEntity, "amount must be positive with at most two decimals"},
	{repositories.ErrInvalidDTO, "invalid_request", http.StatusUnprocessableEntity, "request is invalid"},
	{payments.ErrCardExpired, "card_expired", http.StatusUnprocessableEntity, "card is expired"},
	{payments.ErrUnsupportedPaymentMethod, "unsupported_payment_method", http.StatusUnprocessableEntity, "payment method is not supported"},

	{payments.ErrCardDeclined, "card_declined", http.StatusPaymentRequired, "card was declined"},
}

// writeServiceError maps a service or repository error to a JSON:API error response.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		httpx.WriteError(ctx, w, httpx.NewError("request_timeout", "request was cancelled or timed out", http.StatusGatewayTimeout))
		return
	}

	for _, m := range serviceErrorMappings {
		if errors.Is(err, m.target) {
			apiErr := httpx.NewError(m.code, m.detail, m.status)
			var ruleErr *services.RuleError
			if errors.As(err, &ruleErr) && ruleErr.Reason != "" {
				apiErr = httpx.NewError(m.code, ruleErr.Reason, m.status)
			}
			httpx.WriteError(ctx, w, apiErr)
			return
		}
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			httpx.WriteError(ctx, w, httpx.NewError("not_found", "resource was not found", http.StatusNotFound))
			return
		case repoErr.IsConflict():
			httpx.WriteError(ctx, w, httpx.NewError("conflict", "resource was modified concurrently", http.StatusConflict))
			return
		}
	}

	requestctx.Logger(ctx).Error("request failed", zap.Error(err))
	httpx.WriteError(ctx, w, httpx.NewError("internal_error", "an unexpected error occurred", http.StatusInternalServerError))
}

func writeHTTPError(ctx context.Context, w http.ResponseWriter, err *httpx.Error) {
	if err == nil {
		return
	}
	httpx.WriteError(ctx, w, *err)
}
