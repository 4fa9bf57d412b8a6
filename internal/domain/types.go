package domain

import (
	"slices"
	"time"
)

// PaymentStatus enumerates the settlement states tracked per order.
type PaymentStatus string

const (
	// PaymentStatusPending indicates a payment has been initiated but not settled.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusPaid indicates the provider settled the payment.
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusFailed indicates the provider reported a terminal failure.
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusRefunded indicates the payment was refunded after settlement.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// FulfillmentStatus enumerates shipping lifecycle states, independent of payment.
type FulfillmentStatus string

const (
	// FulfillmentStatusPending indicates the order awaits warehouse processing.
	FulfillmentStatusPending FulfillmentStatus = "pending"
	// FulfillmentStatusProcessing indicates the order is being picked and packed.
	FulfillmentStatusProcessing FulfillmentStatus = "processing"
	// FulfillmentStatusShipped indicates the order has been handed to a carrier.
	FulfillmentStatusShipped FulfillmentStatus = "shipped"
	// FulfillmentStatusDelivered indicates the carrier confirmed delivery.
	FulfillmentStatusDelivered FulfillmentStatus = "delivered"
	// FulfillmentStatusCancelled indicates fulfillment was abandoned.
	FulfillmentStatusCancelled FulfillmentStatus = "cancelled"
)

// OrderStatus enumerates the overall order lifecycle.
type OrderStatus string

const (
	// OrderStatusConfirmed indicates the order was created from a settled payment.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusProcessing indicates the order is actively being fulfilled.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusCompleted indicates the order was delivered and closed.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled indicates the order was cancelled before completion.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusRefunded indicates the order's payment was returned to the customer.
	OrderStatusRefunded OrderStatus = "refunded"
)

// Transition tables are the single source of truth for legal status moves.
// Handlers and services must not scatter ad-hoc status checks.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {PaymentStatusPaid, PaymentStatusFailed},
	PaymentStatusPaid:    {PaymentStatusRefunded},
}

var fulfillmentTransitions = map[FulfillmentStatus][]FulfillmentStatus{
	FulfillmentStatusPending:    {FulfillmentStatusProcessing, FulfillmentStatusShipped, FulfillmentStatusCancelled},
	FulfillmentStatusProcessing: {FulfillmentStatusShipped, FulfillmentStatusCancelled},
	FulfillmentStatusShipped:    {FulfillmentStatusDelivered, FulfillmentStatusCancelled},
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusProcessing: {OrderStatusCompleted, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusCompleted:  {OrderStatusRefunded},
}

// CanTransitionPayment reports whether payment status may move from current to target.
// A payment never regresses from paid to pending.
func CanTransitionPayment(current, target PaymentStatus) bool {
	if current == target {
		return true
	}
	return slices.Contains(paymentTransitions[current], target)
}

// CanTransitionFulfillment reports whether fulfillment may move from current to target.
func CanTransitionFulfillment(current, target FulfillmentStatus) bool {
	if current == target {
		return true
	}
	return slices.Contains(fulfillmentTransitions[current], target)
}

// CanTransitionOrder reports whether the order lifecycle may move from current to target.
func CanTransitionOrder(current, target OrderStatus) bool {
	if current == target {
		return true
	}
	return slices.Contains(orderTransitions[current], target)
}

// ValidPaymentStatus reports whether the value is a known payment status.
func ValidPaymentStatus(s PaymentStatus) bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// ValidFulfillmentStatus reports whether the value is a known fulfillment status.
func ValidFulfillmentStatus(s FulfillmentStatus) bool {
	switch s {
	case FulfillmentStatusPending, FulfillmentStatusProcessing, FulfillmentStatusShipped,
		FulfillmentStatusDelivered, FulfillmentStatusCancelled:
		return true
	}
	return false
}

// Address represents postal address structures shared by customer and order layers.
type Address struct {
	Recipient  string
	Line1      string
	Line2      *string
	City       string
	State      *string
	PostalCode string
	Country    string
	Phone      *string
}

// Customer snapshots the purchaser identity at confirmation time.
type Customer struct {
	ID          string
	Email       string
	Name        string
	LoginMethod string
}

// OrderItem stores a single SKU line within an order. LineTotal is computed
// at creation time and never recomputed afterwards.
type OrderItem struct {
	SKU       string
	Name      string
	UnitPrice int64
	Quantity  int
	LineTotal int64
	Metadata  map[string]any
}

// OrderTotals holds rolled-up monetary fields in the smallest currency unit.
type OrderTotals struct {
	Subtotal int64
	Shipping int64
	Tax      int64
	Discount int64
	Total    int64
}

// PaymentRecord captures one entry in the order's payment timeline.
type PaymentRecord struct {
	ID            string
	Provider      string
	TransactionID string
	Status        PaymentStatus
	Amount        int64
	Currency      string
	OccurredAt    time.Time
}

// OrderEvent is one entry in the append-only audit timeline attached to an order.
type OrderEvent struct {
	ID        string
	Type      string
	Actor     string
	Message   string
	Metadata  map[string]any
	CreatedAt time.Time
}

// Refund records a (partial) return of funds. Refunds never mutate order totals.
type Refund struct {
	ID          string
	Amount      int64
	Reason      string
	ProcessedBy string
	CreatedAt   time.Time
}

// OwnerNote is free-form commentary attached by the store owner.
type OwnerNote struct {
	ID        string
	Content   string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Shipment represents a fulfilment record for an order.
type Shipment struct {
	ID              string
	Carrier         string
	TrackingNumbers []string
	Status          FulfillmentStatus
	Events          []ShipmentEvent
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ShipmentEvent stores timestamped updates from carriers or operations.
type ShipmentEvent struct {
	Status     string
	OccurredAt time.Time
	Details    map[string]any
}

// Order is the aggregate root of the post-payment pipeline.
type Order struct {
	ID                string
	OrderNumber       string
	TransactionID     string
	Customer          Customer
	Currency          string
	Totals            OrderTotals
	PaymentStatus     PaymentStatus
	FulfillmentStatus FulfillmentStatus
	Status            OrderStatus
	PaymentProvider   string
	PaymentIntentID   string
	ShippingAddress   *Address
	BillingAddress    *Address
	Items             []OrderItem
	PaymentTimeline   []PaymentRecord
	Events            []OrderEvent
	Refunds           []Refund
	OwnerNotes        []OwnerNote
	Shipments         []Shipment
	TrackingNumbers   []string
	Metadata          map[string]any
	CreatedAt         time.Time
	UpdatedAt         time.Time
	PaidAt            *time.Time
	DeliveredAt       *time.Time
	RefundedAt        *time.Time
	CancelledAt       *time.Time
}

// RefundedTotal sums all recorded refunds in minor units.
func (o *Order) RefundedTotal() int64 {
	var total int64
	for _, r := range o.Refunds {
		total += r.Amount
	}
	return total
}

// AppendEvent appends a timeline entry, clamping its timestamp so the
// timeline stays monotonically non-decreasing.
func (o *Order) AppendEvent(event OrderEvent) {
	if n := len(o.Events); n > 0 {
		if last := o.Events[n-1].CreatedAt; event.CreatedAt.Before(last) {
			event.CreatedAt = last
		}
	}
	o.Events = append(o.Events, event)
}

// LastEvent returns the most recent timeline entry, or false when empty.
func (o *Order) LastEvent() (OrderEvent, bool) {
	if len(o.Events) == 0 {
		return OrderEvent{}, false
	}
	return o.Events[len(o.Events)-1], true
}

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T any] struct {
	From *T
	To   *T
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// OrderSort indicates the field used to order admin listings.
type OrderSort string

const (
	// OrderSortDate sorts by order creation time.
	OrderSortDate OrderSort = "orderDate"
	// OrderSortTotal sorts by order total.
	OrderSortTotal OrderSort = "orderTotal"
	// OrderSortCustomerName sorts by the customer's display name.
	OrderSortCustomerName OrderSort = "customerName"
)

// PageRequest defines offset-based paging inputs for admin list operations.
type PageRequest struct {
	Page  int
	Limit int
}

// PageInfo summarizes pagination state returned alongside a page of results.
type PageInfo struct {
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

// Page packages a page of results with its pagination summary.
type Page[T any] struct {
	Items []T
	Info  PageInfo
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	Environment string
	GeneratedAt time.Time
}

// AuditLogEntry stores normalized audit information for owner actions.
type AuditLogEntry struct {
	ID        string
	Actor     string
	ActorType string
	Action    string
	TargetRef string
	Metadata  map[string]any
	RequestID string
	Severity  string
	CreatedAt time.Time
}
