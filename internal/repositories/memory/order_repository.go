package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	domain "github.com/noirthread/storefront-api/internal/domain"
	"github.com/noirthread/storefront-api/internal/repositories"
)

// OrderRepository keeps order aggregates in process memory. It backs local
// development and tests where no Firestore emulator is available.
type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

// NewOrderRepository constructs an empty in-memory order repository.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{orders: make(map[string]domain.Order)}
}

// Insert stores the order, failing when the ID already exists.
func (r *OrderRepository) Insert(_ context.Context, order domain.Order) error {
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return conflictError("orders.insert", "order id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[id]; exists {
		return conflictError("orders.insert", "order already exists: "+id)
	}
	r.orders[id] = cloneOrder(order)
	return nil
}

// Update replaces the stored order.
func (r *OrderRepository) Update(_ context.Context, order domain.Order) error {
	id := strings.TrimSpace(order.ID)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[id]; !exists {
		return notFoundError("orders.update", "order not found: "+id)
	}
	r.orders[id] = cloneOrder(order)
	return nil
}

// Delete removes the order. Deleting a missing order is not an error.
func (r *OrderRepository) Delete(_ context.Context, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orders, strings.TrimSpace(orderID))
	return nil
}

// FindByID returns the stored order.
func (r *OrderRepository) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[strings.TrimSpace(orderID)]
	if !ok {
		return domain.Order{}, notFoundError("orders.findById", "order not found: "+orderID)
	}
	return cloneOrder(order), nil
}

// FindByOrderNumber resolves the order carrying the given display number.
func (r *OrderRepository) FindByOrderNumber(_ context.Context, orderNumber string) (domain.Order, error) {
	number := strings.TrimSpace(orderNumber)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, order := range r.orders {
		if order.OrderNumber == number {
			return cloneOrder(order), nil
		}
	}
	return domain.Order{}, notFoundError("orders.findByOrderNumber", "order not found: "+number)
}

// FindByTransactionID returns every order minted from the given transaction.
func (r *OrderRepository) FindByTransactionID(_ context.Context, transactionID string) ([]domain.Order, error) {
	txID := strings.TrimSpace(transactionID)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matches []domain.Order
	for _, order := range r.orders {
		if order.TransactionID == txID {
			matches = append(matches, cloneOrder(order))
		}
	}
	sortNewestFirst(matches)
	return matches, nil
}

// List returns orders matching the filter, newest first.
func (r *OrderRepository) List(_ context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	return r.list("", filter), nil
}

// ListByCustomer returns the customer's orders, newest first.
func (r *OrderRepository) ListByCustomer(_ context.Context, customerID string, filter repositories.OrderListFilter) ([]domain.Order, error) {
	uid := strings.TrimSpace(customerID)
	if uid == "" {
		return nil, conflictError("orders.listByCustomer", "customer id is required")
	}
	return r.list(uid, filter), nil
}

func (r *OrderRepository) list(customerID string, filter repositories.OrderListFilter) []domain.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []domain.Order
	for _, order := range r.orders {
		if customerID != "" && order.Customer.ID != customerID {
			continue
		}
		if filter.DateRange.From != nil && order.CreatedAt.Before(*filter.DateRange.From) {
			continue
		}
		if filter.DateRange.To != nil && order.CreatedAt.After(*filter.DateRange.To) {
			continue
		}
		if len(filter.PaymentStatus) > 0 && !containsStatus(filter.PaymentStatus, order.PaymentStatus) {
			continue
		}
		if len(filter.FulfillmentStatus) > 0 && !containsStatus(filter.FulfillmentStatus, order.FulfillmentStatus) {
			continue
		}
		if len(filter.Status) > 0 && !containsStatus(filter.Status, order.Status) {
			continue
		}
		matches = append(matches, cloneOrder(order))
	}

	sortNewestFirst(matches)
	if filter.Limit > 0 && len(matches) > filter.Limit {
		matches = matches[:filter.Limit]
	}
	return matches
}

func containsStatus[T comparable](values []T, target T) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func sortNewestFirst(orders []domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

func cloneOrder(order domain.Order) domain.Order {
	dup := order
	dup.Items = append([]domain.OrderItem(nil), order.Items...)
	dup.PaymentTimeline = append([]domain.PaymentRecord(nil), order.PaymentTimeline...)
	dup.Events = append([]domain.OrderEvent(nil), order.Events...)
	dup.Refunds = append([]domain.Refund(nil), order.Refunds...)
	dup.OwnerNotes = append([]domain.OwnerNote(nil), order.OwnerNotes...)
	dup.Shipments = append([]domain.Shipment(nil), order.Shipments...)
	dup.TrackingNumbers = append([]string(nil), order.TrackingNumbers...)
	if order.Metadata != nil {
		dup.Metadata = make(map[string]any, len(order.Metadata))
		for k, v := range order.Metadata {
			dup.Metadata[k] = v
		}
	}
	return dup
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
