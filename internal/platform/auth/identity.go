package auth

import (
	"context"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// Role constants used throughout the API when checking authorisation boundaries.
const (
	RoleCustomer = "customer"
	RoleOwner    = "owner"
)

// Identity captures the authenticated principal details for a request.
type Identity struct {
	UID   string
	Email string
	Name  string
	Role  string

	token *firebaseauth.Token
}

// Token exposes the decoded Firebase ID token associated with this identity, when present.
func (i *Identity) Token() *firebaseauth.Token {
	if i == nil {
		return nil
	}
	return i.token
}

// IsOwner reports whether the identity carries the owner role.
func (i *Identity) IsOwner() bool {
	return i != nil && strings.EqualFold(i.Role, RoleOwner)
}

type contextKey string

const identityContextKey contextKey = "github.com/noirthread/storefront-api/internal/platform/auth/identity"

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
