package memory

import (
	"context"

	"github.com/noirthread/storefront-api/internal/repositories"
)

// Registry bundles the in-memory repository implementations. State is lost on
// process exit; it exists for local development and tests.
type Registry struct {
	orders    *OrderRepository
	counters  *CounterRepository
	auditLogs *AuditLogRepository
	health    repositories.HealthRepository
}

// NewRegistry constructs an in-memory registry.
func NewRegistry(version, environment string) (*Registry, error) {
	health, err := repositories.NewProbeHealthRepository(
		[]repositories.DependencyProbe{
			{Name: "memory", Check: func(context.Context) error { return nil }},
		},
		repositories.WithReportInfo(version, environment),
	)
	if err != nil {
		return nil, err
	}
	return &Registry{
		orders:    NewOrderRepository(),
		counters:  NewCounterRepository(),
		auditLogs: NewAuditLogRepository(),
		health:    health,
	}, nil
}

// Close is a no-op for the in-memory registry.
func (r *Registry) Close(context.Context) error { return nil }

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// Counters returns the counter repository.
func (r *Registry) Counters() repositories.CounterRepository { return r.counters }

// AuditLogs returns the audit log repository.
func (r *Registry) AuditLogs() repositories.AuditLogRepository { return r.auditLogs }

// Health returns the health repository.
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// RunInTx runs fn directly; the in-memory backend has no transactions.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var _ repositories.Registry = (*Registry)(nil)
