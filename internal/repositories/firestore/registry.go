package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/noirthread/storefront-api/internal/platform/firestore"
	"github.com/noirthread/storefront-api/internal/repositories"
)

// RegistrySettings configures the Firestore-backed registry.
type RegistrySettings struct {
	Version     string
	Environment string
	HealthProbe repositories.DependencyProbe
}

// Registry bundles the Firestore repository implementations behind the
// repositories.Registry interface.
type Registry struct {
	provider *pfirestore.Provider

	orders    *OrderRepository
	counters  *CounterRepository
	auditLogs *AuditLogRepository
	health    repositories.HealthRepository
}

// NewRegistry wires the Firestore repositories over a shared provider.
func NewRegistry(provider *pfirestore.Provider, settings RegistrySettings) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}
	auditLogs, err := NewAuditLogRepository(provider)
	if err != nil {
		return nil, err
	}

	probe := settings.HealthProbe
	if probe.Check == nil {
		probe = repositories.DependencyProbe{
			Name:    "firestore",
			Timeout: 2 * time.Second,
			Check: func(ctx context.Context) error {
				_, err := provider.Client(ctx)
				return err
			},
		}
	}
	if strings.TrimSpace(probe.Name) == "" {
		probe.Name = "firestore"
	}
	health, err := repositories.NewProbeHealthRepository(
		[]repositories.DependencyProbe{probe},
		repositories.WithReportInfo(settings.Version, settings.Environment),
	)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:  provider,
		orders:    orders,
		counters:  counters,
		auditLogs: auditLogs,
		health:    health,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// Counters returns the counter repository.
func (r *Registry) Counters() repositories.CounterRepository { return r.counters }

// AuditLogs returns the audit log repository.
func (r *Registry) AuditLogs() repositories.AuditLogRepository { return r.auditLogs }

// Health returns the health repository.
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// RunInTx executes fn within a Firestore transaction. Repository calls made
// inside fn still issue their own writes; the transaction protects counter
// increments and similar read-modify-write sections.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.provider == nil {
		return errors.New("registry not initialised")
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		return fn(ctx)
	})
}

var _ repositories.Registry = (*Registry)(nil)
