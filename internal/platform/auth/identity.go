package auth

import (
	"context"

	firebaseauth "firebase.google.com/go/v4/auth"
	jwt "github.com/golang-jwt/jwt/v4"
)

// Identity is the customer principal extracted from a Firebase ID token.
type Identity struct {
	UID            string
	Email          string
	EmailVerified  bool
	SignInProvider string

	token *firebaseauth.Token
}

// Token exposes the decoded Firebase ID token.
func (i *Identity) Token() *firebaseauth.Token {
	if i == nil {
		return nil
	}
	return i.token
}

// ServiceIdentity is an internal caller authenticated with a Google-signed OIDC token.
type ServiceIdentity struct {
	Subject  string
	Email    string
	Issuer   string
	Audience string

	Token *jwt.Token
}

type contextKey int

const (
	identityContextKey contextKey = iota
	serviceIdentityContextKey
	webhookContextKey
)

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	return identity, ok && identity != nil
}

// WithServiceIdentity attaches a verified service identity to the context.
func WithServiceIdentity(ctx context.Context, identity *ServiceIdentity) context.Context {
	if identity == nil {
		return ctx
	}
	return context.WithValue(ctx, serviceIdentityContextKey, identity)
}

// ServiceIdentityFromContext retrieves the identity stored by RequireService.
func ServiceIdentityFromContext(ctx context.Context) (*ServiceIdentity, bool) {
	identity, ok := ctx.Value(serviceIdentityContextKey).(*ServiceIdentity)
	return identity, ok && identity != nil
}
