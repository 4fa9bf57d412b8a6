package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/noirthread/storefront-api/internal/platform/httpx"
	"github.com/noirthread/storefront-api/internal/platform/requestctx"
)

// OwnerClaims is the JWT claim set issued to the store owner.
type OwnerClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// OwnerVerifier validates HS256 owner tokens against a shared signing secret.
type OwnerVerifier struct {
	secret []byte
}

// NewOwnerVerifier constructs an OwnerVerifier for the given signing secret.
func NewOwnerVerifier(secret []byte) (*OwnerVerifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: owner signing secret is required")
	}
	return &OwnerVerifier{secret: secret}, nil
}

// Verify parses and validates the token, returning the owner identity.
// It fails on any token that is expired, mis-signed, or lacks the owner role.
func (v *OwnerVerifier) Verify(rawToken string) (*Identity, error) {
	if v == nil || len(v.secret) == 0 {
		return nil, errors.New("auth: owner verifier not initialised")
	}

	claims := &OwnerClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	token, err := parser.ParseWithClaims(rawToken, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("auth: token invalid")
	}
	if !strings.EqualFold(claims.Role, RoleOwner) {
		return nil, errors.New("auth: owner role required")
	}

	return &Identity{
		UID:  claims.Subject,
		Role: RoleOwner,
	}, nil
}

// RequireOwner guards admin routes with owner token verification. Any failure
// is answered with a generic 404 so the admin surface stays unadvertised.
func RequireOwner(verifier *OwnerVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			identity, err := ownerIdentity(ctx, verifier, r)
			if err != nil {
				requestctx.Logger(ctx).Warn("admin access denied", zap.Error(err))
				writeNotFound(ctx, w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
		})
	}
}

func ownerIdentity(_ context.Context, verifier *OwnerVerifier, r *http.Request) (*Identity, error) {
	if verifier == nil {
		return nil, errors.New("auth: owner verifier not configured")
	}
	rawToken, ok := bearerToken(r)
	if !ok {
		return nil, errors.New("auth: missing bearer token")
	}
	return verifier.Verify(rawToken)
}

func writeNotFound(ctx context.Context, w http.ResponseWriter) {
	httpx.WriteError(ctx, w, httpx.NewError("not_found", "resource not found", http.StatusNotFound))
}
