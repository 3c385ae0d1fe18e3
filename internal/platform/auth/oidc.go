package auth

import (
	"errors"
	"log"
	"net/http"
	"slices"
	"strings"

	jwt "github.com/golang-jwt/jwt/v4"
)

// ServiceValidator authenticates internal callers (the IVR system, schedulers) presenting
// Google-signed OIDC or IAP tokens.
type ServiceValidator struct {
	cache   *JWKSCache
	logger  Logger
	metrics *verificationMetrics
}

// NewServiceValidator constructs a ServiceValidator backed by cache.
func NewServiceValidator(cache *JWKSCache, logger Logger) *ServiceValidator {
	if logger == nil {
		logger = log.Default()
	}
	return &ServiceValidator{cache: cache, logger: logger, metrics: newVerificationMetrics()}
}

// RequireService enforces a valid token for audience, issued by one of issuers.
func (v *ServiceValidator) RequireService(audience string, issuers []string) func(http.Handler) http.Handler {
	audience = strings.TrimSpace(audience)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			reject := func(status int, reason, detail string) {
				v.metrics.record(ctx, "oidc", reason)
				respondAuthError(w, r, status, reason, detail)
			}

			if audience == "" || v == nil || v.cache == nil {
				reject(http.StatusServiceUnavailable, "verification_unavailable", "service authentication not configured")
				return
			}
			tokenStr := serviceToken(r)
			if tokenStr == "" {
				reject(http.StatusUnauthorized, "token_missing", "service token missing")
				return
			}

			claims := jwt.MapClaims{}
			parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
			parsed, err := parser.ParseWithClaims(tokenStr, claims, v.cache.Keyfunc(ctx))
			if err != nil {
				v.logger.Printf("auth: service token rejected: %v", err)
				if errors.Is(err, ErrJWKSFetchFailed) {
					reject(http.StatusServiceUnavailable, "jwks_unavailable", "service token verification unavailable")
					return
				}
				reject(http.StatusUnauthorized, "token_invalid", "service token verification failed")
				return
			}

			issuer, _ := claims["iss"].(string)
			if len(issuers) > 0 && !slices.Contains(issuers, issuer) {
				reject(http.StatusUnauthorized, "issuer_mismatch", "service token issuer not allowed")
				return
			}
			if !claims.VerifyAudience(audience, true) {
				reject(http.StatusUnauthorized, "audience_mismatch", "service token audience mismatch")
				return
			}

			identity := &ServiceIdentity{
				Subject:  claimString(claims, "sub"),
				Email:    claimString(claims, "email"),
				Issuer:   issuer,
				Audience: audience,
				Token:    parsed,
			}
			v.metrics.record(ctx, "oidc", "ok")
			next.ServeHTTP(w, r.WithContext(WithServiceIdentity(ctx, identity)))
		})
	}
}

func serviceToken(r *http.Request) string {
	if token, ok := extractBearerToken(r.Header.Get("Authorization")); ok {
		return token
	}
	return strings.TrimSpace(r.Header.Get("X-Goog-Iap-Jwt-Assertion"))
}
