package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultFallbackPath = ".secrets.local"
	metricNamespace     = "github.com/noirthread/storefront-api/internal/platform/secrets"
)

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret:// references using Google Secret Manager with
// in-process caching and a local fallback file for development.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool

	logger    *zap.Logger
	projectID string

	fallbackPath string
	fallbackOnce sync.Once
	fallbackVals map[string]string
	fallbackErr  error

	mu    sync.RWMutex
	cache map[string]string

	latency        metric.Float64Histogram
	latencyEnabled bool
}

type fetcherConfig struct {
	logger       *zap.Logger
	projectID    string
	fallbackPath string
	meter        metric.Meter
	client       secretManagerClient
	clientOpts   []option.ClientOption
}

// Option customises Fetcher construction.
type Option func(*fetcherConfig)

// WithLogger sets the logger used for diagnostic output.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *fetcherConfig) {
		cfg.logger = logger
	}
}

// WithProject configures the project ID used when resolving secret references.
func WithProject(projectID string) Option {
	return func(cfg *fetcherConfig) {
		cfg.projectID = strings.TrimSpace(projectID)
	}
}

// WithFallbackFile overrides the path to the local fallback secrets file.
func WithFallbackFile(path string) Option {
	return func(cfg *fetcherConfig) {
		cfg.fallbackPath = strings.TrimSpace(path)
	}
}

// WithMeter injects a custom OpenTelemetry meter.
func WithMeter(m metric.Meter) Option {
	return func(cfg *fetcherConfig) {
		cfg.meter = m
	}
}

// WithSecretManagerClient injects a preconfigured Secret Manager client (primarily for tests).
func WithSecretManagerClient(client secretManagerClient) Option {
	return func(cfg *fetcherConfig) {
		cfg.client = client
	}
}

// WithClientOptions forwards Cloud client options when constructing the Secret Manager client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(cfg *fetcherConfig) {
		cfg.clientOpts = append(cfg.clientOpts, opts...)
	}
}

// NewFetcher builds a Fetcher with secret caching, metrics, and local fallback support.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	cfg := fetcherConfig{
		logger:       zap.NewNop(),
		fallbackPath: defaultFallbackPath,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	meter := cfg.meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(metricNamespace)
	}
	latency, latencyErr := meter.Float64Histogram(
		"secrets.fetch.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency in milliseconds for secret fetch attempts"),
	)
	if latencyErr != nil {
		cfg.logger.Warn("secrets: unable to register latency metric", zap.Error(latencyErr))
	}

	f := &Fetcher{
		logger:         cfg.logger,
		projectID:      cfg.projectID,
		fallbackPath:   cfg.fallbackPath,
		cache:          make(map[string]string),
		latency:        latency,
		latencyEnabled: latencyErr == nil,
	}

	if cfg.client != nil {
		f.client = cfg.client
	} else {
		client, err := secretmanager.NewClient(ctx, cfg.clientOpts...)
		if err != nil {
			cfg.logger.Warn("secrets: secret manager client unavailable; operating in fallback mode", zap.Error(err))
		} else {
			f.client = client
			f.ownsClient = true
		}
	}

	return f, nil
}

// Close releases resources held by the fetcher.
func (f *Fetcher) Close() error {
	if f.ownsClient && f.client != nil {
		return f.client.Close()
	}
	return nil
}

// Resolve retrieves the secret value for the supplied reference, consulting cache and fallbacks as needed.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	start := time.Now()
	parsed, err := parseReference(ref)
	if err != nil {
		return "", err
	}

	if value, ok := f.lookupCache(parsed.Canonical); ok {
		f.recordLatency(ctx, time.Since(start), "cache")
		return value, nil
	}

	projectID := parsed.ProjectOverride
	if projectID == "" {
		projectID = f.projectID
	}

	if projectID != "" && f.client != nil {
		value, fetchErr := f.fetchRemote(ctx, projectID, parsed.Secret, parsed.Version)
		if fetchErr == nil {
			f.storeCache(parsed.Canonical, value)
			f.recordLatency(ctx, time.Since(start), "remote")
			return value, nil
		}
		if !isFallbackError(fetchErr) {
			f.recordLatency(ctx, time.Since(start), "error")
			return "", fmt.Errorf("secrets: fetch failed for %s: %w", parsed.Canonical, fetchErr)
		}
		f.logger.Debug("secrets: falling back to local secrets", zap.String("ref", parsed.Canonical), zap.Error(fetchErr))
	}

	value, ok := f.lookupFallback(parsed.Canonical)
	if !ok {
		f.recordLatency(ctx, time.Since(start), "error")
		return "", fmt.Errorf("secrets: fallback value not found for %s", parsed.Canonical)
	}

	f.storeCache(parsed.Canonical, value)
	f.recordLatency(ctx, time.Since(start), "fallback")
	return value, nil
}

// Invalidate clears the cached value for the supplied reference, forcing a re-fetch.
func (f *Fetcher) Invalidate(ref string) {
	parsed, err := parseReference(ref)
	if err != nil {
		return
	}
	f.mu.Lock()
	delete(f.cache, parsed.Canonical)
	f.mu.Unlock()
}

func (f *Fetcher) lookupCache(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	value, ok := f.cache[key]
	return value, ok
}

func (f *Fetcher) storeCache(key, value string) {
	f.mu.Lock()
	f.cache[key] = value
	f.mu.Unlock()
}

func (f *Fetcher) fetchRemote(ctx context.Context, projectID, secretName, version string) (string, error) {
	if version == "" {
		version = "latest"
	}
	resourceName := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", projectID, secretName, version)
	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resourceName})
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Payload == nil {
		return "", fmt.Errorf("secret manager returned empty payload for %s", resourceName)
	}
	return string(resp.Payload.GetData()), nil
}

func (f *Fetcher) lookupFallback(canonical string) (string, bool) {
	f.loadFallback()
	if f.fallbackErr != nil {
		f.logger.Debug("secrets: fallback load error", zap.Error(f.fallbackErr))
		return "", false
	}
	value, ok := f.fallbackVals[canonical]
	return value, ok
}

func (f *Fetcher) loadFallback() {
	f.fallbackOnce.Do(func() {
		f.fallbackVals = map[string]string{}

		path := strings.TrimSpace(f.fallbackPath)
		if path == "" {
			return
		}

		file, err := os.Open(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				f.fallbackErr = fmt.Errorf("secrets: unable to open fallback file %s: %w", path, err)
			}
			return
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			if key == "" {
				continue
			}
			if parsed, err := parseReference(key); err == nil {
				f.fallbackVals[parsed.Canonical] = value
			} else {
				f.fallbackVals[key] = value
			}
		}
		if err := scanner.Err(); err != nil {
			f.fallbackErr = fmt.Errorf("secrets: failed reading %s: %w", path, err)
		}
	})
}

func (f *Fetcher) recordLatency(ctx context.Context, d time.Duration, source string) {
	if !f.latencyEnabled {
		return
	}
	f.latency.Record(ctx, float64(d)/float64(time.Millisecond),
		metric.WithAttributes(attribute.String("source", source)))
}

type parsedReference struct {
	Canonical       string
	Secret          string
	Version         string
	ProjectOverride string
}

func parseReference(ref string) (parsedReference, error) {
	if strings.TrimSpace(ref) == "" {
		return parsedReference{}, errors.New("secrets: empty reference")
	}
	u, err := url.Parse(ref)
	if err != nil {
		return parsedReference{}, fmt.Errorf("secrets: invalid reference %q: %w", ref, err)
	}
	if u.Scheme != "secret" {
		return parsedReference{}, fmt.Errorf("secrets: unsupported scheme %q", u.Scheme)
	}
	secret := strings.Trim(strings.TrimPrefix(u.Host+u.Path, "/"), "/")
	if secret == "" {
		return parsedReference{}, fmt.Errorf("secrets: missing secret name in %q", ref)
	}

	canonical := *u
	canonical.RawQuery = ""
	canonical.Fragment = ""

	values := u.Query()
	return parsedReference{
		Canonical:       canonical.String(),
		Secret:          secret,
		Version:         strings.TrimSpace(values.Get("version")),
		ProjectOverride: strings.TrimSpace(values.Get("project")),
	}, nil
}

func isFallbackError(err error) bool {
	if err == nil {
		return false
	}
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}
