package auth

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noirthread/storefront-api/internal/platform/httpx"
	"github.com/noirthread/storefront-api/internal/platform/requestctx"
)

const (
	defaultSignatureHeader = "X-Webhook-Signature"
	defaultNonceHeader     = "X-Webhook-Nonce"

	defaultNonceTTL = 5 * time.Minute
)

// SecretProvider resolves shared secrets used for HMAC validation.
type SecretProvider interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// SecretProviderFunc adapts a function to the SecretProvider interface.
type SecretProviderFunc func(context.Context, string) (string, error)

// GetSecret implements SecretProvider.
func (f SecretProviderFunc) GetSecret(ctx context.Context, name string) (string, error) {
	if f == nil {
		return "", errors.New("auth: secret provider not configured")
	}
	return f(ctx, name)
}

// NonceStore tracks unique nonces for replay prevention.
type NonceStore interface {
	// UseNonce records the nonce if it has not been seen before within the scope.
	// The boolean indicates whether the nonce was stored (true) or already existed (false).
	UseNonce(ctx context.Context, scope, nonce string, expiry time.Time) (bool, error)
}

// InMemoryNonceStore offers an in-memory nonce registry suitable for single-instance deployments and tests.
type InMemoryNonceStore struct {
	mu     sync.Mutex
	nonces map[string]time.Time
}

// NewInMemoryNonceStore constructs the store.
func NewInMemoryNonceStore() *InMemoryNonceStore {
	return &InMemoryNonceStore{nonces: make(map[string]time.Time)}
}

// UseNonce records the nonce until the provided expiry, rejecting replays until then.
func (s *InMemoryNonceStore) UseNonce(_ context.Context, scope, nonce string, expiry time.Time) (bool, error) {
	if scope == "" || nonce == "" {
		return false, errors.New("auth: scope and nonce are required")
	}

	key := scope + "::" + nonce

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for k, exp := range s.nonces {
		if exp.Before(now) {
			delete(s.nonces, k)
		}
	}

	if expiry.Before(now) {
		return false, errors.New("auth: nonce expiry is in the past")
	}
	if existing, ok := s.nonces[key]; ok && existing.After(now) {
		return false, nil
	}

	s.nonces[key] = expiry
	return true, nil
}

// WebhookVerifier enforces HMAC-SHA256 signatures on inbound webhook deliveries.
type WebhookVerifier struct {
	provider SecretProvider
	nonces   NonceStore
	now      func() time.Time

	signatureHeader string
	nonceHeader     string
	nonceTTL        time.Duration

	secretCache sync.Map
}

// WebhookOption customises the verifier.
type WebhookOption func(*WebhookVerifier)

// WithWebhookClock injects a custom clock, primarily for tests.
func WithWebhookClock(now func() time.Time) WebhookOption {
	return func(v *WebhookVerifier) {
		if now != nil {
			v.now = now
		}
	}
}

// WithWebhookHeaders customises the header names used by the middleware.
func WithWebhookHeaders(signature, nonce string) WebhookOption {
	return func(v *WebhookVerifier) {
		if signature != "" {
			v.signatureHeader = signature
		}
		if nonce != "" {
			v.nonceHeader = nonce
		}
	}
}

// WithWebhookNonceTTL customises the nonce retention duration.
func WithWebhookNonceTTL(d time.Duration) WebhookOption {
	return func(v *WebhookVerifier) {
		if d > 0 {
			v.nonceTTL = d
		}
	}
}

// NewWebhookVerifier builds a verifier using the given secret provider and nonce store.
func NewWebhookVerifier(provider SecretProvider, nonces NonceStore, opts ...WebhookOption) *WebhookVerifier {
	verifier := &WebhookVerifier{
		provider:        provider,
		nonces:          nonces,
		now:             time.Now,
		signatureHeader: defaultSignatureHeader,
		nonceHeader:     defaultNonceHeader,
		nonceTTL:        defaultNonceTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(verifier)
		}
	}
	return verifier
}

// RequireSignature enforces a valid payload signature on the request using the named secret.
func (v *WebhookVerifier) RequireSignature(secretName string) func(http.Handler) http.Handler {
	scopedSecret := strings.TrimSpace(secretName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := requestctx.Logger(ctx)

			if scopedSecret == "" {
				httpx.WriteError(ctx, w, httpx.NewError("verification_unavailable", "webhook secret not configured", http.StatusServiceUnavailable))
				return
			}

			secret, err := v.loadSecret(ctx, scopedSecret)
			if err != nil {
				logger.Error("webhook secret lookup failed", zap.Error(err))
				httpx.WriteError(ctx, w, httpx.NewError("verification_unavailable", "webhook secret unavailable", http.StatusServiceUnavailable))
				return
			}

			signatureValue := strings.TrimSpace(r.Header.Get(v.signatureHeader))
			if signatureValue == "" {
				httpx.WriteError(ctx, w, httpx.NewError("signature_missing", "signature header missing", http.StatusUnauthorized))
				return
			}

			signature, err := DecodeSignature(signatureValue)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("signature_invalid", "signature encoding invalid", http.StatusUnauthorized))
				return
			}

			body, err := readAndRestoreBody(r)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_body", "unable to read body for signature verification", http.StatusBadRequest))
				return
			}

			if !hmac.Equal(signature, ComputeSignature(secret, body)) {
				logger.Warn("webhook signature mismatch")
				httpx.WriteError(ctx, w, httpx.NewError("signature_mismatch", "signature verification failed", http.StatusUnauthorized))
				return
			}

			if nonce := strings.TrimSpace(r.Header.Get(v.nonceHeader)); nonce != "" && v.nonces != nil {
				stored, err := v.nonces.UseNonce(ctx, scopedSecret, nonce, v.now().Add(v.nonceTTL))
				if err != nil {
					logger.Error("webhook nonce store error", zap.Error(err))
					httpx.WriteError(ctx, w, httpx.NewError("verification_unavailable", "nonce storage error", http.StatusServiceUnavailable))
					return
				}
				if !stored {
					httpx.WriteError(ctx, w, httpx.NewError("nonce_replay", "duplicate signature nonce", http.StatusUnauthorized))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (v *WebhookVerifier) loadSecret(ctx context.Context, name string) ([]byte, error) {
	if v == nil || v.provider == nil {
		return nil, errors.New("auth: secret provider not configured")
	}

	if cached, ok := v.secretCache.Load(name); ok {
		if secret, ok := cached.([]byte); ok && len(secret) > 0 {
			return secret, nil
		}
	}

	raw, err := v.provider.GetSecret(ctx, name)
	if err != nil {
		return nil, err
	}
	secret := []byte(raw)
	if len(secret) == 0 {
		return nil, errors.New("auth: secret is empty")
	}

	v.secretCache.Store(name, secret)
	return secret, nil
}

// ComputeSignature returns the HMAC-SHA256 digest of the payload.
func ComputeSignature(secret, payload []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(payload)
	return mac.Sum(nil)
}

// DecodeSignature accepts base64 or hex encoded signature values.
func DecodeSignature(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("auth: empty signature")
	}
	if decoded, err := hex.DecodeString(value); err == nil {
		return decoded, nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		return decoded, nil
	}
	return nil, errors.New("auth: signature must be hex or base64 encoded")
}

func readAndRestoreBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()

	buf, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	r.Body = io.NopCloser(bytes.NewReader(buf))
	return buf, nil
}
