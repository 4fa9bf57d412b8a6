package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/noirthread/storefront-api/internal/domain"
	pfirestore "github.com/noirthread/storefront-api/internal/platform/firestore"
	"github.com/noirthread/storefront-api/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository persists order aggregates within Firestore.
type OrderRepository struct {
	orders   *pfirestore.Collection[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		orders:   pfirestore.NewCollection[orderDocument](provider, ordersCollection),
		provider: provider,
	}, nil
}

// Insert creates the order document, failing when the ID already exists.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.orders == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return errors.New("order repository: order id is required")
	}
	return r.orders.Create(ctx, id, encodeOrder(order))
}

// Update replaces the stored order document.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.orders == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return errors.New("order repository: order id is required")
	}
	return r.orders.Set(ctx, id, encodeOrder(order))
}

// Delete removes the order document.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	if r == nil || r.orders == nil {
		return errors.New("order repository not initialised")
	}
	return r.orders.Delete(ctx, strings.TrimSpace(orderID))
}

// FindByID loads a single order aggregate.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	doc, err := r.orders.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(doc), nil
}

// FindByOrderNumber resolves the order carrying the given display number.
func (r *OrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	number := strings.TrimSpace(orderNumber)
	if number == "" {
		return domain.Order{}, errors.New("order repository: order number is required")
	}

	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderNumber", "==", number).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.NotFoundError("orders.findByOrderNumber")
	}
	return decodeOrder(docs[0]), nil
}

// FindByTransactionID returns every order minted from the given payment transaction.
func (r *OrderRepository) FindByTransactionID(ctx context.Context, transactionID string) ([]domain.Order, error) {
	if r == nil || r.orders == nil {
		return nil, errors.New("order repository not initialised")
	}
	txID := strings.TrimSpace(transactionID)
	if txID == "" {
		return nil, errors.New("order repository: transaction id is required")
	}

	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("transactionId", "==", txID)
	})
	if err != nil {
		return nil, err
	}
	return decodeOrders(docs), nil
}

// List returns candidate orders constrained by date range in Firestore. Status
// filters run in memory because Firestore allows a single disjunction per query.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	return r.list(ctx, "", filter)
}

// ListByCustomer returns the customer's orders, newest first.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string, filter repositories.OrderListFilter) ([]domain.Order, error) {
	uid := strings.TrimSpace(customerID)
	if uid == "" {
		return nil, errors.New("order repository: customer id is required")
	}
	return r.list(ctx, uid, filter)
}

func (r *OrderRepository) list(ctx context.Context, customerID string, filter repositories.OrderListFilter) ([]domain.Order, error) {
	if r == nil || r.orders == nil {
		return nil, errors.New("order repository not initialised")
	}

	statusFiltered := len(filter.PaymentStatus) > 0 || len(filter.FulfillmentStatus) > 0 || len(filter.Status) > 0

	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		if customerID != "" {
			q = q.Where("customer.id", "==", customerID)
		}
		if filter.DateRange.From != nil {
			q = q.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			q = q.Where("createdAt", "<=", filter.DateRange.To.UTC())
		}
		q = q.OrderBy("createdAt", firestore.Desc)
		if filter.Limit > 0 && !statusFiltered {
			q = q.Limit(filter.Limit)
		}
		return q
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		order := decodeOrder(doc)
		if !matchesStatusFilter(order, filter) {
			continue
		}
		orders = append(orders, order)
		if filter.Limit > 0 && len(orders) >= filter.Limit {
			break
		}
	}
	return orders, nil
}

func matchesStatusFilter(order domain.Order, filter repositories.OrderListFilter) bool {
	if len(filter.PaymentStatus) > 0 && !containsPayment(filter.PaymentStatus, order.PaymentStatus) {
		return false
	}
	if len(filter.FulfillmentStatus) > 0 && !containsFulfillment(filter.FulfillmentStatus, order.FulfillmentStatus) {
		return false
	}
	if len(filter.Status) > 0 && !containsOrderStatus(filter.Status, order.Status) {
		return false
	}
	return true
}

func containsPayment(values []domain.PaymentStatus, target domain.PaymentStatus) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func containsFulfillment(values []domain.FulfillmentStatus, target domain.FulfillmentStatus) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func containsOrderStatus(values []domain.OrderStatus, target domain.OrderStatus) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
