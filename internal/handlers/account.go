package handlers

import (
	"errors"
	"net/http"

	domain "github.com/fieldline/customer-api/internal/domain"
	"github.com/fieldline/customer-api/internal/platform/auth"
	"github.com/fieldline/customer-api/internal/platform/httpx"
	"github.com/fieldline/customer-api/internal/platform/observability"
	"github.com/fieldline/customer-api/internal/platform/requestctx"
	"github.com/fieldline/customer-api/internal/services"
)

// RequireAccount resolves the authenticated identity to its linked account and stores it on the
// request context. Identities without a link get 404 so clients know to call /customer/link.
func RequireAccount(accounts services.AccountService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			identity, ok := auth.IdentityFromContext(ctx)
			if !ok {
				httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
				return
			}
			if accounts == nil {
				httpx.WriteError(ctx, w, httpx.NewError("account_unavailable", "account lookup is not configured", http.StatusServiceUnavailable))
				return
			}

			account, err := accounts.Resolve(ctx, identity)
			if err != nil {
				if errors.Is(err, services.ErrAccountNotFound) {
					httpx.WriteError(ctx, w, httpx.NewError("account_not_linked", "no customer account is linked to this identity", http.StatusNotFound))
					return
				}
				writeServiceError(ctx, w, err)
				return
			}

			observability.AnnotateSubject(ctx, identity.UID, account.AccountNumber)
			next.ServeHTTP(w, r.WithContext(requestctx.WithAccount(ctx, account)))
		})
	}
}

// accountFromRequest returns the account stored by RequireAccount, writing 401 when absent.
func accountFromRequest(w http.ResponseWriter, r *http.Request) (domain.Account, bool) {
	account, ok := requestctx.Account(r.Context())
	if !ok || account.AccountNumber <= 0 {
		httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return domain.Account{}, false
	}
	return account, true
}
