package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"
)

type stubTokenVerifier struct {
	token    *firebaseauth.Token
	err      error
	received string
}

func (s *stubTokenVerifier) VerifyIDToken(_ context.Context, idToken string) (*firebaseauth.Token, error) {
	s.received = idToken
	if s.err != nil {
		return nil, s.err
	}
	return s.token, nil
}

func TestRequireCustomerStoresIdentity(t *testing.T) {
	verifier := &stubTokenVerifier{token: &firebaseauth.Token{
		UID: "uid-123",
		Claims: map[string]any{
			"email":          "Jane@Example.com",
			"email_verified": true,
		},
		Firebase: firebaseauth.FirebaseInfo{SignInProvider: "password"},
	}}

	var identity *Identity
	handler := NewAuthenticator(verifier).RequireCustomer()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v2/customer", nil)
	req.Header.Set("Authorization", "Bearer token-value")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if verifier.received != "token-value" {
		t.Fatalf("expected verifier to receive token-value, got %s", verifier.received)
	}
	if identity == nil || identity.UID != "uid-123" || identity.Email != "jane@example.com" || !identity.EmailVerified {
		t.Fatalf("unexpected identity %+v", identity)
	}
	if identity.SignInProvider != "password" {
		t.Fatalf("unexpected provider %q", identity.SignInProvider)
	}
}

func TestRequireCustomerRejectsExpiredToken(t *testing.T) {
	handler := NewAuthenticator(&stubTokenVerifier{err: ErrTokenExpired}).RequireCustomer()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler should not execute on expired token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v2/customer", nil)
	req.Header.Set("Authorization", "Bearer expired")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	var body struct {
		Errors []struct {
			Code string `json:"code"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if len(body.Errors) != 1 || body.Errors[0].Code != "token_expired" {
		t.Fatalf("expected token_expired, got %+v", body.Errors)
	}
}

func TestRequireCustomerRejectsMissingHeader(t *testing.T) {
	verifier := &stubTokenVerifier{}
	handler := NewAuthenticator(verifier).RequireCustomer()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler should not run")
	}))

	for _, header := range []string{"", "Basic abc", "Bearer   "} {
		req := httptest.NewRequest(http.MethodGet, "/api/v2/customer", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rr.Code)
		}
	}
	if verifier.received != "" {
		t.Fatalf("verifier should not be called")
	}
}
