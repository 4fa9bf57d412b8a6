package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status enumerates the normalised payment states shared across providers.
type Status string

const (
	// StatusPending indicates the payment is awaiting PSP confirmation.
	StatusPending Status = "pending"
	// StatusSucceeded indicates the PSP reports the payment as captured.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the PSP reports a terminal failure.
	StatusFailed Status = "failed"
	// StatusRefunded indicates the payment has been fully refunded.
	StatusRefunded Status = "refunded"
)

// ErrUnsupportedProvider is returned when the manager cannot locate a provider.
var ErrUnsupportedProvider = errors.New("payments: unsupported provider")

// RefundRequest defines a PSP refund attempt. Amount is in minor units; nil
// refunds the full remaining balance.
type RefundRequest struct {
	IntentID       string
	Amount         *int64
	Currency       string
	Reason         string
	IdempotencyKey string
	Metadata       map[string]string
}

// LookupRequest fetches provider specific payment details for reconciliation.
type LookupRequest struct {
	IntentID string
}

// PaymentDetails normalises PSP specific fields for storage.
type PaymentDetails struct {
	Provider   string
	IntentID   string
	Status     Status
	Amount     int64
	Currency   string
	Captured   bool
	CapturedAt *time.Time
	RefundedAt *time.Time
	Raw        map[string]any
}

// Provider defines the contract for PSP adapters. The storefront only talks to
// providers after capture, so the surface is refunds plus reconciliation.
type Provider interface {
	Refund(ctx context.Context, req RefundRequest) (PaymentDetails, error)
	LookupPayment(ctx context.Context, req LookupRequest) (PaymentDetails, error)
}

// Manager selects the provider recorded on an order and delegates to it.
type Manager struct {
	providers       map[string]Provider
	defaultProvider string
}

// ManagerOption configures optional behaviour when building a Manager.
type ManagerOption func(*Manager)

// WithDefaultProvider overrides the provider used when an order carries no
// provider name.
func WithDefaultProvider(provider string) ManagerOption {
	return func(m *Manager) {
		m.defaultProvider = strings.TrimSpace(strings.ToLower(provider))
	}
}

// NewManager constructs a Manager over the supplied providers.
func NewManager(providers map[string]Provider, opts ...ManagerOption) (*Manager, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	registry := make(map[string]Provider, len(providers))
	for k, v := range providers {
		key := strings.TrimSpace(strings.ToLower(k))
		if key == "" || v == nil {
			return nil, fmt.Errorf("payments: invalid provider registration for key %q", k)
		}
		registry[key] = v
	}
	m := &Manager{providers: registry}
	if _, ok := registry["stripe"]; ok {
		m.defaultProvider = "stripe"
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Manager) resolve(name string) (string, Provider, error) {
	if m == nil || len(m.providers) == 0 {
		return "", nil, errors.New("payments: no providers registered")
	}
	if key := strings.TrimSpace(strings.ToLower(name)); key != "" {
		if p, ok := m.providers[key]; ok {
			return key, p, nil
		}
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, key)
	}
	if m.defaultProvider != "" {
		if p, ok := m.providers[m.defaultProvider]; ok {
			return m.defaultProvider, p, nil
		}
	}
	if len(m.providers) == 1 {
		for key, p := range m.providers {
			return key, p, nil
		}
	}
	return "", nil, ErrUnsupportedProvider
}

// Refund delegates the refund to the named provider.
func (m *Manager) Refund(ctx context.Context, provider string, req RefundRequest) (PaymentDetails, error) {
	key, p, err := m.resolve(provider)
	if err != nil {
		return PaymentDetails{}, err
	}
	details, err := p.Refund(ctx, req)
	if err != nil {
		return PaymentDetails{}, err
	}
	details.Provider = key
	return details, nil
}

// LookupPayment delegates the lookup to the named provider.
func (m *Manager) LookupPayment(ctx context.Context, provider string, req LookupRequest) (PaymentDetails, error) {
	key, p, err := m.resolve(provider)
	if err != nil {
		return PaymentDetails{}, err
	}
	details, err := p.LookupPayment(ctx, req)
	if err != nil {
		return PaymentDetails{}, err
	}
	details.Provider = key
	return details, nil
}
