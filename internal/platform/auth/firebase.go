package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/noirthread/storefront-api/internal/platform/httpx"
)

const defaultVerifyTimeout = 5 * time.Second

// TokenVerifier validates bearer ID tokens presented by customers.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// FirebaseSettings carries the Admin SDK initialisation parameters.
type FirebaseSettings struct {
	ProjectID       string
	CredentialsFile string
}

// FirebaseVerifier coordinates Firebase Admin SDK initialisation for token verification.
type FirebaseVerifier struct {
	client  *firebaseauth.Client
	timeout time.Duration
}

// FirebaseOption customises FirebaseVerifier instances.
type FirebaseOption func(*FirebaseVerifier)

// WithFirebaseTimeout overrides the timeout used for Admin SDK calls.
func WithFirebaseTimeout(d time.Duration) FirebaseOption {
	return func(v *FirebaseVerifier) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// NewFirebaseVerifier constructs a FirebaseVerifier backed by the Admin SDK.
func NewFirebaseVerifier(ctx context.Context, settings FirebaseSettings, opts ...FirebaseOption) (*FirebaseVerifier, error) {
	if settings.ProjectID == "" {
		return nil, errors.New("firebase project id is required")
	}

	var clientOpts []option.ClientOption
	if settings.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(settings.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: settings.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase app: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase auth client: %w", err)
	}

	verifier := &FirebaseVerifier{
		client:  authClient,
		timeout: defaultVerifyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(verifier)
		}
	}
	return verifier, nil
}

// VerifyIDToken forwards verification to the underlying Firebase client using a bounded context.
func (v *FirebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error) {
	if v == nil || v.client == nil {
		return nil, errors.New("firebase verifier not initialised")
	}

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	return v.client.VerifyIDToken(ctx, idToken)
}

// RequireCustomer enforces a valid Firebase ID token and stores the customer identity in context.
func RequireCustomer(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if verifier == nil {
				httpx.WriteError(ctx, w, httpx.NewError("auth_unavailable", "authentication unavailable", http.StatusServiceUnavailable))
				return
			}

			rawToken, ok := bearerToken(r)
			if !ok {
				httpx.WriteError(ctx, w, httpx.NewError("unauthorized", "missing bearer token", http.StatusUnauthorized))
				return
			}

			token, err := verifier.VerifyIDToken(ctx, rawToken)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("unauthorized", "invalid token", http.StatusUnauthorized))
				return
			}

			identity := &Identity{
				UID:   token.UID,
				Role:  RoleCustomer,
				token: token,
			}
			if email, ok := token.Claims["email"].(string); ok {
				identity.Email = email
			}
			if name, ok := token.Claims["name"].(string); ok {
				identity.Name = name
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
