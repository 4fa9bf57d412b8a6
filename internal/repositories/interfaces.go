package repositories

import (
	"context"
	"time"

	domain "github.com/noirthread/storefront-api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Counters() CounterRepository
	AuditLogs() AuditLogRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order aggregates and provides query helpers for
// customers and the admin surface.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	Delete(ctx context.Context, orderID string) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (domain.Order, error)
	FindByTransactionID(ctx context.Context, transactionID string) ([]domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) ([]domain.Order, error)
	ListByCustomer(ctx context.Context, customerID string, filter OrderListFilter) ([]domain.Order, error)
}

// OrderListFilter constrains the candidate set returned by List. Substring
// search, total ranges, sorting, and pagination run in the service layer.
type OrderListFilter struct {
	PaymentStatus     []domain.PaymentStatus
	FulfillmentStatus []domain.FulfillmentStatus
	Status            []domain.OrderStatus
	DateRange         domain.RangeQuery[time.Time]
	Limit             int
}

// CounterRepository provides transaction-safe sequence numbers keyed by product.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
	Reset(ctx context.Context, counterID string) error
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}

// AuditLogRepository persists immutable audit trail entries.
type AuditLogRepository interface {
	Append(ctx context.Context, entry domain.AuditLogEntry) error
	List(ctx context.Context, filter AuditLogFilter) ([]domain.AuditLogEntry, error)
}

// AuditLogFilter narrows audit listings for support and compliance lookups.
type AuditLogFilter struct {
	TargetRef string
	Actor     string
	Action    string
	DateRange domain.RangeQuery[time.Time]
	Limit     int
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
