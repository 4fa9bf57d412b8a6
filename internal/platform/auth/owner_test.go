package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const ownerTestSecret = "owner_test_secret"

func mintOwnerToken(t *testing.T, secret, role string, expiresAt time.Time) string {
	t.Helper()
	claims := OwnerClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "owner@noirthread.com",
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign owner token: %v", err)
	}
	return token
}

func TestOwnerVerifierAcceptsValidToken(t *testing.T) {
	verifier, err := NewOwnerVerifier([]byte(ownerTestSecret))
	if err != nil {
		t.Fatalf("NewOwnerVerifier: %v", err)
	}

	identity, err := verifier.Verify(mintOwnerToken(t, ownerTestSecret, RoleOwner, time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if identity.UID != "owner@noirthread.com" || identity.Role != RoleOwner {
		t.Fatalf("identity = %+v, want owner@noirthread.com/%s", identity, RoleOwner)
	}
}

func TestOwnerVerifierRejectsBadTokens(t *testing.T) {
	verifier, err := NewOwnerVerifier([]byte(ownerTestSecret))
	if err != nil {
		t.Fatalf("NewOwnerVerifier: %v", err)
	}

	cases := []struct {
		name  string
		token string
	}{
		{"expired", mintOwnerToken(t, ownerTestSecret, RoleOwner, time.Now().Add(-time.Hour))},
		{"wrong role", mintOwnerToken(t, ownerTestSecret, "customer", time.Now().Add(time.Hour))},
		{"wrong secret", mintOwnerToken(t, "another_secret", RoleOwner, time.Now().Add(time.Hour))},
		{"garbage", "not.a.token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := verifier.Verify(tc.token); err == nil {
				t.Fatal("Verify accepted the token")
			}
		})
	}
}

func TestOwnerVerifierRestrictsSigningMethod(t *testing.T) {
	verifier, err := NewOwnerVerifier([]byte(ownerTestSecret))
	if err != nil {
		t.Fatalf("NewOwnerVerifier: %v", err)
	}

	// HS512 is a valid HMAC method but outside the allowed set.
	claims := OwnerClaims{
		Role: RoleOwner,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(ownerTestSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := verifier.Verify(token); err == nil {
		t.Fatal("Verify accepted an HS512 token")
	}
}

func TestRequireOwnerMasksFailuresAsNotFound(t *testing.T) {
	verifier, err := NewOwnerVerifier([]byte(ownerTestSecret))
	if err != nil {
		t.Fatalf("NewOwnerVerifier: %v", err)
	}
	handler := RequireOwner(verifier)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/orders", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("anonymous status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
	req.Header.Set("Authorization", "Bearer "+mintOwnerToken(t, ownerTestSecret, RoleOwner, time.Now().Add(time.Hour)))
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("owner status = %d, want 204", rec.Code)
	}
}
