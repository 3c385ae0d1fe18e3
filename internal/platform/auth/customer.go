package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/fieldline/customer-api/internal/platform/httpx"
)

var (
	// ErrTokenExpired signals that the provided Firebase ID token has expired.
	ErrTokenExpired = errors.New("auth: firebase id token expired")
	// ErrTokenInvalid signals that the provided Firebase ID token is invalid for other reasons.
	ErrTokenInvalid = errors.New("auth: firebase id token invalid")
)

// TokenVerifier verifies Firebase ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// Authenticator guards customer routes with Firebase ID tokens.
type Authenticator struct {
	verifier TokenVerifier
	metrics  *verificationMetrics
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(verifier TokenVerifier) *Authenticator {
	return &Authenticator{verifier: verifier, metrics: newVerificationMetrics()}
}

// RequireCustomer rejects requests without a valid bearer token and stores the Identity.
func (a *Authenticator) RequireCustomer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			tokenStr, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				a.metrics.record(ctx, "firebase", "token_missing")
				respondAuthError(w, r, http.StatusUnauthorized, "unauthenticated", "authorization header missing or invalid")
				return
			}
			if a == nil || a.verifier == nil {
				respondAuthError(w, r, http.StatusServiceUnavailable, "verification_unavailable", "authorization service unavailable")
				return
			}

			token, err := a.verifier.VerifyIDToken(ctx, tokenStr)
			if err != nil {
				code, detail := classifyVerificationError(err)
				a.metrics.record(ctx, "firebase", code)
				respondAuthError(w, r, http.StatusUnauthorized, code, detail)
				return
			}

			identity := &Identity{
				UID:           token.UID,
				Email:         strings.ToLower(claimString(token.Claims, "email")),
				EmailVerified: claimBool(token.Claims, "email_verified"),
				token:         token,
			}
			identity.SignInProvider = token.Firebase.SignInProvider

			a.metrics.record(ctx, "firebase", "ok")
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
		})
	}
}

func classifyVerificationError(err error) (string, string) {
	switch {
	case errors.Is(err, ErrTokenExpired), firebaseauth.IsIDTokenExpired(err):
		return "token_expired", "firebase id token expired"
	case firebaseauth.IsIDTokenRevoked(err), firebaseauth.IsUserDisabled(err):
		return "token_revoked", "firebase id token revoked"
	default:
		return "invalid_token", "firebase id token invalid"
	}
}

func claimString(claims map[string]any, key string) string {
	value, _ := claims[key].(string)
	return strings.TrimSpace(value)
}

func claimBool(claims map[string]any, key string) bool {
	value, _ := claims[key].(bool)
	return value
}

func extractBearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func respondAuthError(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	httpx.WriteError(r.Context(), w, httpx.NewError(code, detail, status))
}
