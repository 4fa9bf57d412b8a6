package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultEnvironment          = "local"
	defaultWebhookSigHeader     = "X-Webhook-Signature"
	defaultWebhookNonceHeader   = "X-Webhook-Nonce"
	defaultWebhookNonceTTL      = 5 * time.Minute
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyInterval  = time.Hour
	defaultIdempotencyBatchSize = 200
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Environment string
	Server      ServerConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	PubSub      PubSubConfig
	PSP         PSPConfig
	Webhooks    WebhookConfig
	Security    SecurityConfig
	Idempotency IdempotencyConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirebaseConfig stores Firebase project settings for customer authentication.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	DatabaseID   string
	EmulatorHost string
}

// PubSubConfig stores event publishing parameters.
type PubSubConfig struct {
	ProjectID       string
	OrderEventTopic string
}

// PSPConfig collects credentials for payment providers.
type PSPConfig struct {
	StripeAPIKey   string
	PayPalClientID string
	PayPalSecret   string
	PayPalSandbox  bool
}

// WebhookConfig contains inbound webhook security parameters.
type WebhookConfig struct {
	SigningSecret   string
	SignatureHeader string
	NonceHeader     string
	NonceTTL        time.Duration
}

// SecurityConfig groups authentication settings for the admin surface.
type SecurityConfig struct {
	OwnerJWTSecret string
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values
// in the map take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets a custom secret resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Load assembles the application configuration by combining defaults, .env
// overrides, environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if value, ok := dotEnvValues[key]; ok {
			return value, true
		}
		return "", false
	}

	cfg := Config{
		Environment: strings.ToLower(stringWithDefault(lookup, "API_ENVIRONMENT", defaultEnvironment)),
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "API_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "API_FIRESTORE_PROJECT_ID", ""),
			DatabaseID:   stringWithDefault(lookup, "API_FIRESTORE_DATABASE_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "API_FIRESTORE_EMULATOR_HOST", ""),
		},
		PubSub: PubSubConfig{
			ProjectID:       stringWithDefault(lookup, "API_PUBSUB_PROJECT_ID", ""),
			OrderEventTopic: stringWithDefault(lookup, "API_PUBSUB_ORDER_EVENT_TOPIC", "order-events"),
		},
		PSP: PSPConfig{
			StripeAPIKey:   stringWithDefault(lookup, "API_PSP_STRIPE_API_KEY", ""),
			PayPalClientID: stringWithDefault(lookup, "API_PSP_PAYPAL_CLIENT_ID", ""),
			PayPalSecret:   stringWithDefault(lookup, "API_PSP_PAYPAL_SECRET", ""),
			PayPalSandbox:  boolWithDefault(lookup, "API_PSP_PAYPAL_SANDBOX", true),
		},
		Webhooks: WebhookConfig{
			SigningSecret:   stringWithDefault(lookup, "API_WEBHOOK_SIGNING_SECRET", ""),
			SignatureHeader: stringWithDefault(lookup, "API_WEBHOOK_HEADER_SIGNATURE", defaultWebhookSigHeader),
			NonceHeader:     stringWithDefault(lookup, "API_WEBHOOK_HEADER_NONCE", defaultWebhookNonceHeader),
			NonceTTL:        durationWithDefault(lookup, "API_WEBHOOK_NONCE_TTL", defaultWebhookNonceTTL),
		},
		Security: SecurityConfig{
			OwnerJWTSecret: stringWithDefault(lookup, "API_SECURITY_OWNER_JWT_SECRET", ""),
		},
		Idempotency: IdempotencyConfig{
			Header:           stringWithDefault(lookup, "API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              durationWithDefault(lookup, "API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  durationWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: intWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatchSize),
		},
	}

	secretFields := []*string{
		&cfg.PSP.StripeAPIKey,
		&cfg.PSP.PayPalClientID,
		&cfg.PSP.PayPalSecret,
		&cfg.Webhooks.SigningSecret,
		&cfg.Security.OwnerJWTSecret,
	}
	for _, field := range secretFields {
		resolved, err := resolveSecret(ctx, *field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*field = resolved
	}

	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "secret://") {
		return trimmed, nil
	}
	if resolver == nil {
		return "", &SecretError{Ref: trimmed, Err: errSecretResolverNotConfigured}
	}
	resolved, err := resolver.ResolveSecret(ctx, trimmed)
	if err != nil {
		return "", &SecretError{Ref: trimmed, Err: err}
	}
	return strings.TrimSpace(resolved), nil
}

func loadDotEnv(path string) (map[string]string, error) {
	values := map[string]string{}
	if strings.TrimSpace(path) == "" {
		return values, nil
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return values, nil
		}
		return nil, fmt.Errorf("config: unable to open env file %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed reading %s: %w", path, err)
	}
	return values, nil
}

type lookupFunc func(string) (string, bool)

func stringWithDefault(lookup lookupFunc, key, fallback string) string {
	if value, ok := lookup(key); ok {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func durationWithDefault(lookup lookupFunc, key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok {
		if parsed, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func intWithDefault(lookup lookupFunc, key string, fallback int) int {
	if value, ok := lookup(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup lookupFunc, key string, fallback bool) bool {
	if value, ok := lookup(key); ok {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}
