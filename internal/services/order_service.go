package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	domain "github.com/noirthread/storefront-api/internal/domain"
	"github.com/noirthread/storefront-api/internal/platform/jobs"
	"github.com/noirthread/storefront-api/internal/platform/pagination"
	"github.com/noirthread/storefront-api/internal/repositories"
)

// OrderServiceDeps bundles collaborators for the order service.
type OrderServiceDeps struct {
	Orders    repositories.OrderRepository
	Payments  PaymentRefunder
	Publisher OrderEventPublisher
	IDs       IDGenerator
	Logger    *zap.Logger
	Clock     func() time.Time
}

type orderService struct {
	orders    repositories.OrderRepository
	payments  PaymentRefunder
	publisher OrderEventPublisher
	ids       IDGenerator
	logger    *zap.Logger
	clock     func() time.Time
}

// NewOrderService constructs the order read/write service.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: repository is required")
	}
	if deps.IDs == nil {
		return nil, errors.New("order service: id generator is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &orderService{
		orders:    deps.Orders,
		payments:  deps.Payments,
		publisher: deps.Publisher,
		ids:       deps.IDs,
		logger:    logger,
		clock:     func() time.Time { return clock().UTC() },
	}, nil
}

// Create inserts a fully-formed order, rejecting duplicate IDs and numbers.
func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	order := cmd.Order
	if strings.TrimSpace(order.ID) == "" {
		order.ID = s.ids.NewID(OrderIDPrefix)
	}
	if strings.TrimSpace(order.OrderNumber) == "" {
		return Order{}, fmt.Errorf("%w: order number is required", ErrInvalidInput)
	}

	if _, err := s.orders.FindByOrderNumber(ctx, order.OrderNumber); err == nil {
		return Order{}, fmt.Errorf("%w: order number %s", ErrOrderExists, order.OrderNumber)
	} else if mapped := mapRepositoryError(err); !errors.Is(mapped, ErrOrderNotFound) {
		return Order{}, mapped
	}

	now := s.clock()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	if err := s.orders.Insert(ctx, order); err != nil {
		return Order{}, mapRepositoryError(err)
	}
	return order, nil
}

// GetOrder loads a single order aggregate.
func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return Order{}, mapRepositoryError(err)
	}
	return order, nil
}

// GetOrderForCustomer loads an order only when it belongs to the customer.
// A foreign order answers not-found so ownership is never leaked.
func (s *orderService) GetOrderForCustomer(ctx context.Context, customerID, orderID string) (Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if order.Customer.ID != strings.TrimSpace(customerID) {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

// ListCustomerOrders returns the customer's orders, newest first, paginated.
func (s *orderService) ListCustomerOrders(ctx context.Context, customerID string, page PageRequest) (domain.Page[Order], error) {
	uid := strings.TrimSpace(customerID)
	if uid == "" {
		return domain.Page[Order]{}, fmt.Errorf("%w: customer id is required", ErrInvalidInput)
	}

	orders, err := s.orders.ListByCustomer(ctx, uid, repositories.OrderListFilter{})
	if err != nil {
		return domain.Page[Order]{}, mapRepositoryError(err)
	}
	sortOrders(orders, domain.OrderSortDate, domain.SortDesc)
	return paginateOrders(orders, page), nil
}

// SearchOrders applies the admin listing criteria. Status and date filters
// are pushed to the repository; substring search, total range, sorting, and
// pagination run here.
func (s *orderService) SearchOrders(ctx context.Context, query OrderSearchQuery) (domain.Page[Order], error) {
	for _, status := range query.PaymentStatus {
		if !domain.ValidPaymentStatus(status) {
			return domain.Page[Order]{}, fmt.Errorf("%w: unknown payment status %q", ErrInvalidInput, status)
		}
	}
	for _, status := range query.FulfillmentStatus {
		if !domain.ValidFulfillmentStatus(status) {
			return domain.Page[Order]{}, fmt.Errorf("%w: unknown fulfillment status %q", ErrInvalidInput, status)
		}
	}

	orders, err := s.orders.List(ctx, repositories.OrderListFilter{
		PaymentStatus:     query.PaymentStatus,
		FulfillmentStatus: query.FulfillmentStatus,
		Status:            query.Status,
		DateRange:         query.DateRange,
	})
	if err != nil {
		return domain.Page[Order]{}, mapRepositoryError(err)
	}

	filtered := orders[:0:0]
	search := strings.ToLower(strings.TrimSpace(query.Search))
	for _, order := range orders {
		if search != "" && !matchesSearch(order, search) {
			continue
		}
		if query.TotalRange.From != nil && order.Totals.Total < *query.TotalRange.From {
			continue
		}
		if query.TotalRange.To != nil && order.Totals.Total > *query.TotalRange.To {
			continue
		}
		filtered = append(filtered, order)
	}

	sortOrders(filtered, query.Sort, query.SortOrder)
	return paginateOrders(filtered, query.Page), nil
}

// UpdateOrder applies a partial admin update, enforcing the transition tables
// on every touched status axis.
func (s *orderService) UpdateOrder(ctx context.Context, cmd UpdateOrderCommand) (Order, error) {
	order, err := s.GetOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}

	now := s.clock()
	var changes []string

	if cmd.PaymentStatus != nil {
		target := *cmd.PaymentStatus
		if !domain.ValidPaymentStatus(target) {
			return Order{}, fmt.Errorf("%w: unknown payment status %q", ErrInvalidInput, target)
		}
		if !domain.CanTransitionPayment(order.PaymentStatus, target) {
			return Order{}, fmt.Errorf("%w: payment %s -> %s", ErrInvalidTransition, order.PaymentStatus, target)
		}
		if order.PaymentStatus != target {
			order.PaymentStatus = target
			changes = append(changes, "paymentStatus="+string(target))
			if target == domain.PaymentStatusPaid && order.PaidAt == nil {
				paidAt := now
				order.PaidAt = &paidAt
			}
		}
	}

	if cmd.FulfillmentStatus != nil {
		target := *cmd.FulfillmentStatus
		if !domain.ValidFulfillmentStatus(target) {
			return Order{}, fmt.Errorf("%w: unknown fulfillment status %q", ErrInvalidInput, target)
		}
		if !domain.CanTransitionFulfillment(order.FulfillmentStatus, target) {
			return Order{}, fmt.Errorf("%w: fulfillment %s -> %s", ErrInvalidTransition, order.FulfillmentStatus, target)
		}
		if order.FulfillmentStatus != target {
			order.FulfillmentStatus = target
			changes = append(changes, "fulfillmentStatus="+string(target))
		}
	}

	if cmd.Status != nil {
		target := *cmd.Status
		if !domain.CanTransitionOrder(order.Status, target) {
			return Order{}, fmt.Errorf("%w: order %s -> %s", ErrInvalidTransition, order.Status, target)
		}
		if order.Status != target {
			order.Status = target
			changes = append(changes, "status="+string(target))
			if target == domain.OrderStatusCancelled && order.CancelledAt == nil {
				cancelledAt := now
				order.CancelledAt = &cancelledAt
			}
		}
	}

	if len(cmd.Metadata) > 0 {
		if order.Metadata == nil {
			order.Metadata = make(map[string]any, len(cmd.Metadata))
		}
		for k, v := range cmd.Metadata {
			order.Metadata[k] = v
		}
		changes = append(changes, "metadata")
	}

	message := strings.TrimSpace(cmd.Message)
	if message == "" {
		message = strings.Join(changes, ", ")
	}
	order.AppendEvent(OrderEvent{
		ID:        s.ids.NewID(EventIDPrefix),
		Type:      "updated",
		Actor:     cmd.Actor,
		Message:   message,
		CreatedAt: now,
	})
	order.UpdatedAt = now

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, mapRepositoryError(err)
	}
	return order, nil
}

// ProcessRefund records a refund against the order. Cumulative refunds may
// never exceed the order total; any refund forces the payment and order axes
// to refunded.
func (s *orderService) ProcessRefund(ctx context.Context, cmd RefundCommand) (Order, error) {
	order, err := s.GetOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}

	if order.PaymentStatus != domain.PaymentStatusPaid && order.PaymentStatus != domain.PaymentStatusRefunded {
		return Order{}, fmt.Errorf("%w: cannot refund order with payment status %s", ErrInvalidTransition, order.PaymentStatus)
	}

	remaining := order.Totals.Total - order.RefundedTotal()
	amount := remaining
	if cmd.Amount != nil {
		amount = *cmd.Amount
	}
	if amount <= 0 {
		return Order{}, fmt.Errorf("%w: refund amount must be positive", ErrInvalidInput)
	}
	if amount > remaining {
		return Order{}, fmt.Errorf("%w: %d requested, %d remaining", ErrRefundExceedsTotal, amount, remaining)
	}

	now := s.clock()
	refundID := s.ids.NewID(RefundIDPrefix)

	if cmd.ViaProvider && s.payments != nil && order.PaymentIntentID != "" {
		err := s.payments.Refund(ctx, order.PaymentProvider, RefundProviderRequest{
			IntentID:       order.PaymentIntentID,
			Amount:         &amount,
			Currency:       order.Currency,
			Reason:         cmd.Reason,
			IdempotencyKey: refundID,
		})
		if err != nil {
			return Order{}, fmt.Errorf("provider refund: %w", err)
		}
	}

	order.Refunds = append(order.Refunds, Refund{
		ID:          refundID,
		Amount:      amount,
		Reason:      strings.TrimSpace(cmd.Reason),
		ProcessedBy: cmd.Actor,
		CreatedAt:   now,
	})
	order.PaymentStatus = domain.PaymentStatusRefunded
	if domain.CanTransitionOrder(order.Status, domain.OrderStatusRefunded) {
		order.Status = domain.OrderStatusRefunded
	}
	if order.RefundedAt == nil {
		refundedAt := now
		order.RefundedAt = &refundedAt
	}
	order.AppendEvent(OrderEvent{
		ID:        s.ids.NewID(EventIDPrefix),
		Type:      "refunded",
		Actor:     cmd.Actor,
		Message:   fmt.Sprintf("refund of %d %s processed", amount, order.Currency),
		CreatedAt: now,
	})
	order.UpdatedAt = now

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, mapRepositoryError(err)
	}

	s.publish(ctx, "order.refunded", order, map[string]any{
		"refund_id": refundID,
		"amount":    amount,
	})
	return order, nil
}

// UpdateFulfillment moves the fulfillment axis, merges tracking numbers, and
// derives the order-level status from the new fulfillment state.
func (s *orderService) UpdateFulfillment(ctx context.Context, cmd FulfillmentCommand) (Order, error) {
	if !domain.ValidFulfillmentStatus(cmd.Status) {
		return Order{}, fmt.Errorf("%w: unknown fulfillment status %q", ErrInvalidInput, cmd.Status)
	}

	order, err := s.GetOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	if !domain.CanTransitionFulfillment(order.FulfillmentStatus, cmd.Status) {
		return Order{}, fmt.Errorf("%w: fulfillment %s -> %s", ErrInvalidTransition, order.FulfillmentStatus, cmd.Status)
	}

	now := s.clock()
	order.FulfillmentStatus = cmd.Status
	order.TrackingNumbers = mergeTracking(order.TrackingNumbers, cmd.TrackingNumbers)

	if len(cmd.TrackingNumbers) > 0 || strings.TrimSpace(cmd.Carrier) != "" {
		order.Shipments = append(order.Shipments, Shipment{
			ID:              s.ids.NewID(ShipmentIDPrefix),
			Carrier:         strings.TrimSpace(cmd.Carrier),
			TrackingNumbers: mergeTracking(nil, cmd.TrackingNumbers),
			Status:          cmd.Status,
			Events: []domain.ShipmentEvent{{
				Status:     string(cmd.Status),
				OccurredAt: now,
			}},
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	switch cmd.Status {
	case domain.FulfillmentStatusProcessing, domain.FulfillmentStatusShipped:
		if domain.CanTransitionOrder(order.Status, domain.OrderStatusProcessing) {
			order.Status = domain.OrderStatusProcessing
		}
	case domain.FulfillmentStatusDelivered:
		if domain.CanTransitionOrder(order.Status, domain.OrderStatusCompleted) {
			order.Status = domain.OrderStatusCompleted
		}
		if order.DeliveredAt == nil {
			deliveredAt := now
			order.DeliveredAt = &deliveredAt
		}
	case domain.FulfillmentStatusCancelled:
		if domain.CanTransitionOrder(order.Status, domain.OrderStatusCancelled) {
			order.Status = domain.OrderStatusCancelled
		}
		if order.CancelledAt == nil {
			cancelledAt := now
			order.CancelledAt = &cancelledAt
		}
	}

	order.AppendEvent(OrderEvent{
		ID:        s.ids.NewID(EventIDPrefix),
		Type:      "fulfillment",
		Actor:     cmd.Actor,
		Message:   "fulfillment moved to " + string(cmd.Status),
		CreatedAt: now,
	})
	order.UpdatedAt = now

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, mapRepositoryError(err)
	}

	s.publish(ctx, "order.fulfillment_updated", order, map[string]any{
		"fulfillment_status": string(cmd.Status),
	})
	return order, nil
}

// AddOwnerNote attaches an owner note to the order.
func (s *orderService) AddOwnerNote(ctx context.Context, cmd OwnerNoteCommand) (Order, error) {
	content := strings.TrimSpace(cmd.Content)
	if content == "" {
		return Order{}, fmt.Errorf("%w: note content is required", ErrInvalidInput)
	}

	order, err := s.GetOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}

	now := s.clock()
	order.OwnerNotes = append(order.OwnerNotes, OwnerNote{
		ID:        s.ids.NewID(NoteIDPrefix),
		Content:   content,
		CreatedBy: cmd.Actor,
		CreatedAt: now,
		UpdatedAt: now,
	})
	order.AppendEvent(OrderEvent{
		ID:        s.ids.NewID(EventIDPrefix),
		Type:      "note",
		Actor:     cmd.Actor,
		Message:   "owner note added",
		CreatedAt: now,
	})
	order.UpdatedAt = now

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, mapRepositoryError(err)
	}
	return order, nil
}

// DeleteOrder removes the order permanently.
func (s *orderService) DeleteOrder(ctx context.Context, cmd DeleteOrderCommand) error {
	order, err := s.GetOrder(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if err := s.orders.Delete(ctx, order.ID); err != nil {
		return mapRepositoryError(err)
	}
	s.logger.Info("order deleted",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("actor", cmd.Actor),
	)
	return nil
}

func (s *orderService) publish(ctx context.Context, eventType string, order Order, payload map[string]any) {
	if s.publisher == nil {
		return
	}
	_, err := s.publisher.PublishOrderEvent(ctx, jobs.OrderEventMessage{
		Event:         eventType,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		TransactionID: order.TransactionID,
		CustomerID:    order.Customer.ID,
		OccurredAt:    s.clock(),
		Payload:       payload,
	})
	if err != nil {
		s.logger.Warn("order event publish failed",
			zap.String("event", eventType),
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
	}
}

func matchesSearch(order Order, search string) bool {
	return strings.Contains(strings.ToLower(order.OrderNumber), search) ||
		strings.Contains(strings.ToLower(order.Customer.Name), search) ||
		strings.Contains(strings.ToLower(order.Customer.Email), search)
}

func mergeTracking(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, group := range [][]string{existing, incoming} {
		for _, number := range group {
			number = strings.TrimSpace(number)
			if number == "" {
				continue
			}
			if _, ok := seen[number]; ok {
				continue
			}
			seen[number] = struct{}{}
			merged = append(merged, number)
		}
	}
	return merged
}

func sortOrders(orders []Order, field OrderSort, direction SortOrder) {
	if field == "" {
		field = domain.OrderSortDate
	}
	if direction == "" {
		if field == domain.OrderSortDate {
			direction = domain.SortDesc
		} else {
			direction = domain.SortAsc
		}
	}

	less := func(a, b Order) bool {
		switch field {
		case domain.OrderSortTotal:
			if a.Totals.Total != b.Totals.Total {
				return a.Totals.Total < b.Totals.Total
			}
		case domain.OrderSortCustomerName:
			an, bn := strings.ToLower(a.Customer.Name), strings.ToLower(b.Customer.Name)
			if an != bn {
				return an < bn
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		}
		return a.ID < b.ID
	}

	sort.SliceStable(orders, func(i, j int) bool {
		if direction == domain.SortDesc {
			return less(orders[j], orders[i])
		}
		return less(orders[i], orders[j])
	})
}

func paginateOrders(orders []Order, page PageRequest) domain.Page[Order] {
	params := pagination.Params{Page: page.Page, Limit: page.Limit}
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Limit <= 0 {
		params.Limit = pagination.DefaultLimit
	}

	total := len(orders)
	start, end := pagination.Slice(total, params)
	items := make([]Order, 0, end-start)
	items = append(items, orders[start:end]...)

	return domain.Page[Order]{
		Items: items,
		Info: domain.PageInfo{
			Page:       params.Page,
			Limit:      params.Limit,
			Total:      total,
			TotalPages: pagination.TotalPages(total, params.Limit),
		},
	}
}
