package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/noirthread/storefront-api/internal/domain"
	"github.com/noirthread/storefront-api/internal/platform/jobs"
	"github.com/noirthread/storefront-api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	OrderTotals        = domain.OrderTotals
	OrderEvent         = domain.OrderEvent
	Customer           = domain.Customer
	Address            = domain.Address
	Refund             = domain.Refund
	OwnerNote          = domain.OwnerNote
	Shipment           = domain.Shipment
	PaymentStatus      = domain.PaymentStatus
	FulfillmentStatus  = domain.FulfillmentStatus
	OrderStatus        = domain.OrderStatus
	OrderSort          = domain.OrderSort
	SortOrder          = domain.SortOrder
	PageRequest        = domain.PageRequest
	AuditLogEntry      = domain.AuditLogEntry
	SystemHealthReport = domain.SystemHealthReport
)

// Sentinel errors surfaced by the service layer. Handlers translate these to
// HTTP status codes.
var (
	// ErrOrderNotFound indicates no order matches the given identifier.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderExists indicates an insert collided with an existing order id or number.
	ErrOrderExists = errors.New("order: already exists")
	// ErrInvalidTransition indicates a status change violates the transition tables.
	ErrInvalidTransition = errors.New("order: invalid status transition")
	// ErrRefundExceedsTotal indicates cumulative refunds would exceed the order total.
	ErrRefundExceedsTotal = errors.New("order: refund exceeds total")
	// ErrInvalidInput indicates the caller supplied invalid arguments.
	ErrInvalidInput = errors.New("order: invalid input")
	// ErrStoreUnavailable indicates a transient backend outage.
	ErrStoreUnavailable = errors.New("order: store unavailable")
)

// CounterService mints sequential, human-readable order numbers per product.
type CounterService interface {
	MintOrderNumber(ctx context.Context, productName string) (string, error)
	ResetCounter(ctx context.Context, productName string) error
}

// PaymentSecurityService bundles the pre-persistence payment checks.
type PaymentSecurityService interface {
	ValidateAmount(amount int64) error
	ValidateCurrency(code string) error
	VerifyWebhookSignature(payload []byte, signature string) bool
	CheckDuplicatePayment(ctx context.Context, transactionID string) ([]Order, bool, error)
	CheckSuspiciousActivity(userID string, amount int64, history []PaymentRecordSummary) []SuspiciousFlag
}

// PaymentRecordSummary is the minimal payment history row used by the
// suspicious-activity heuristics.
type PaymentRecordSummary struct {
	Amount     int64
	OccurredAt time.Time
}

// SuspiciousFlag is an informational marker attached to a payment check.
type SuspiciousFlag struct {
	Code   string
	Detail string
}

// ConfirmationService drives the post-payment order creation pipeline.
type ConfirmationService interface {
	HandlePaymentConfirmed(ctx context.Context, event PaymentConfirmedEvent) (ConfirmationResult, error)
}

// PaymentConfirmedEvent is the normalised inbound webhook payload.
type PaymentConfirmedEvent struct {
	TransactionID   string
	Status          string
	Provider        string
	PaymentIntentID string
	Amount          int64
	Currency        string
	Customer        Customer
	Items           []ConfirmedItem
	ShippingAddress *Address
	BillingAddress  *Address
	Metadata        map[string]any
	OccurredAt      time.Time
}

// ConfirmedItem is a single purchased line in a payment-confirmed event.
type ConfirmedItem struct {
	Product  string
	SKU      string
	Price    int64
	Quantity int
}

// ConfirmationOutcome enumerates terminal states of the confirmation pipeline.
type ConfirmationOutcome string

const (
	// OutcomeConfirmed indicates orders were minted and persisted.
	OutcomeConfirmed ConfirmationOutcome = "confirmed"
	// OutcomeRejected indicates the event failed validation with zero side effects.
	OutcomeRejected ConfirmationOutcome = "rejected"
	// OutcomeDuplicate indicates the transaction was already processed; existing orders are returned.
	OutcomeDuplicate ConfirmationOutcome = "duplicate"
)

// ConfirmationResult reports the pipeline outcome and the affected orders.
type ConfirmationResult struct {
	Outcome ConfirmationOutcome
	Reason  string
	Orders  []Order
}

// OrderService encapsulates order read/write flows for customers and the admin surface.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	GetOrderForCustomer(ctx context.Context, customerID, orderID string) (Order, error)
	ListCustomerOrders(ctx context.Context, customerID string, page PageRequest) (domain.Page[Order], error)
	SearchOrders(ctx context.Context, query OrderSearchQuery) (domain.Page[Order], error)
	UpdateOrder(ctx context.Context, cmd UpdateOrderCommand) (Order, error)
	ProcessRefund(ctx context.Context, cmd RefundCommand) (Order, error)
	UpdateFulfillment(ctx context.Context, cmd FulfillmentCommand) (Order, error)
	AddOwnerNote(ctx context.Context, cmd OwnerNoteCommand) (Order, error)
	DeleteOrder(ctx context.Context, cmd DeleteOrderCommand) error
}

// CreateOrderCommand inserts a fully-formed order aggregate.
type CreateOrderCommand struct {
	Order Order
	Actor string
}

// OrderSearchQuery combines the admin listing filters. All criteria are
// AND-combined; zero values are ignored.
type OrderSearchQuery struct {
	Search            string
	PaymentStatus     []PaymentStatus
	FulfillmentStatus []FulfillmentStatus
	Status            []OrderStatus
	DateRange         domain.RangeQuery[time.Time]
	TotalRange        domain.RangeQuery[int64]
	Sort              OrderSort
	SortOrder         SortOrder
	Page              PageRequest
}

// UpdateOrderCommand applies a partial admin update to an order.
type UpdateOrderCommand struct {
	OrderID           string
	PaymentStatus     *PaymentStatus
	FulfillmentStatus *FulfillmentStatus
	Status            *OrderStatus
	Metadata          map[string]any
	Message           string
	Actor             string
}

// RefundCommand records a refund and optionally drives the PSP refund.
type RefundCommand struct {
	OrderID     string
	Amount      *int64
	Reason      string
	Actor       string
	ViaProvider bool
}

// FulfillmentCommand updates the fulfillment axis and tracking data.
type FulfillmentCommand struct {
	OrderID         string
	Status          FulfillmentStatus
	Carrier         string
	TrackingNumbers []string
	Actor           string
}

// OwnerNoteCommand attaches free-form owner commentary to an order.
type OwnerNoteCommand struct {
	OrderID string
	Content string
	Actor   string
}

// DeleteOrderCommand removes an order permanently.
type DeleteOrderCommand struct {
	OrderID string
	Actor   string
}

// AuditLogService records owner mutations as immutable audit entries.
type AuditLogService interface {
	Record(ctx context.Context, record AuditRecord)
	List(ctx context.Context, filter repositories.AuditLogFilter) ([]AuditLogEntry, error)
}

// AuditRecord is the write-side payload for an audit entry.
type AuditRecord struct {
	Actor     string
	ActorType string
	Action    string
	TargetRef string
	Metadata  map[string]any
	RequestID string
	Severity  string
}

// OrderEventPublisher publishes order lifecycle events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, message jobs.OrderEventMessage) (string, error)
}

// PaymentRefunder abstracts the payments manager surface the order service needs.
type PaymentRefunder interface {
	Refund(ctx context.Context, provider string, req RefundProviderRequest) error
}

// RefundProviderRequest carries the PSP refund parameters.
type RefundProviderRequest struct {
	IntentID       string
	Amount         *int64
	Currency       string
	Reason         string
	IdempotencyKey string
}

// mapRepositoryError converts categorised repository failures into service sentinels.
func mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrOrderNotFound
		case repoErr.IsConflict():
			return ErrOrderExists
		case repoErr.IsUnavailable():
			return ErrStoreUnavailable
		}
	}
	return err
}
