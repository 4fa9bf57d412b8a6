package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	domain "github.com/noirthread/storefront-api/internal/domain"
	"github.com/noirthread/storefront-api/internal/platform/jobs"
	"github.com/noirthread/storefront-api/internal/platform/textutil"
	"github.com/noirthread/storefront-api/internal/repositories"
)

const paymentStatusSuccess = "success"

// ConfirmationServiceDeps bundles collaborators for the confirmation pipeline.
type ConfirmationServiceDeps struct {
	Security  PaymentSecurityService
	Counters  CounterService
	Orders    repositories.OrderRepository
	Publisher OrderEventPublisher
	IDs       IDGenerator
	Logger    *zap.Logger
	Clock     func() time.Time
}

type confirmationService struct {
	security  PaymentSecurityService
	counters  CounterService
	orders    repositories.OrderRepository
	publisher OrderEventPublisher
	ids       IDGenerator
	logger    *zap.Logger
	clock     func() time.Time
}

// NewConfirmationService constructs the payment-confirmed event handler.
func NewConfirmationService(deps ConfirmationServiceDeps) (ConfirmationService, error) {
	if deps.Security == nil {
		return nil, errors.New("confirmation service: security service is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("confirmation service: counter service is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("confirmation service: order repository is required")
	}
	if deps.IDs == nil {
		return nil, errors.New("confirmation service: id generator is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &confirmationService{
		security:  deps.Security,
		counters:  deps.Counters,
		orders:    deps.Orders,
		publisher: deps.Publisher,
		ids:       deps.IDs,
		logger:    logger,
		clock:     func() time.Time { return clock().UTC() },
	}, nil
}

// HandlePaymentConfirmed runs the event through validation, minting, and
// persistence. Non-success events and validation failures reject with zero
// side effects; duplicates replay the existing orders.
func (s *confirmationService) HandlePaymentConfirmed(ctx context.Context, event PaymentConfirmedEvent) (ConfirmationResult, error) {
	txID := strings.TrimSpace(event.TransactionID)
	if txID == "" {
		return ConfirmationResult{Outcome: OutcomeRejected, Reason: "missing transaction id"}, nil
	}

	if !strings.EqualFold(strings.TrimSpace(event.Status), paymentStatusSuccess) {
		s.logger.Info("payment event rejected",
			zap.String("transaction_id", txID),
			zap.String("status", event.Status),
		)
		return ConfirmationResult{Outcome: OutcomeRejected, Reason: "payment status is not success"}, nil
	}

	if err := s.security.ValidateAmount(event.Amount); err != nil {
		return ConfirmationResult{Outcome: OutcomeRejected, Reason: err.Error()}, nil
	}
	if err := s.security.ValidateCurrency(event.Currency); err != nil {
		return ConfirmationResult{Outcome: OutcomeRejected, Reason: err.Error()}, nil
	}
	if len(event.Items) == 0 {
		return ConfirmationResult{Outcome: OutcomeRejected, Reason: "event carries no items"}, nil
	}

	existing, duplicate, err := s.security.CheckDuplicatePayment(ctx, txID)
	if err != nil {
		return ConfirmationResult{}, err
	}
	if duplicate {
		s.logger.Info("duplicate payment replayed",
			zap.String("transaction_id", txID),
			zap.Int("orders", len(existing)),
		)
		return ConfirmationResult{Outcome: OutcomeDuplicate, Orders: existing}, nil
	}

	if flags := s.security.CheckSuspiciousActivity(event.Customer.ID, event.Amount, s.paymentHistory(ctx, event.Customer.ID)); len(flags) > 0 {
		for _, flag := range flags {
			s.logger.Warn("payment flagged",
				zap.String("transaction_id", txID),
				zap.String("flag", flag.Code),
				zap.String("detail", flag.Detail),
			)
		}
	}

	groups := groupItemsByProduct(event.Items)
	now := s.clock()

	orders := make([]Order, 0, len(groups))
	for _, group := range groups {
		// Mint and persist one group at a time. A persist failure leaves at
		// most one minted number orphaned, which is logged for manual
		// reconciliation; earlier groups stay committed.
		number, err := s.counters.MintOrderNumber(ctx, group.product)
		if err != nil {
			return ConfirmationResult{}, fmt.Errorf("mint order number for %q: %w", group.product, err)
		}

		order := s.buildOrder(event, group, number, now)
		if err := s.orders.Insert(ctx, order); err != nil {
			s.logger.Error("order.number.orphaned",
				zap.String("order_number", number),
				zap.String("transaction_id", txID),
				zap.Error(err),
			)
			return ConfirmationResult{}, mapRepositoryError(err)
		}
		orders = append(orders, order)

		s.publish(ctx, "order.created", order)
	}

	return ConfirmationResult{Outcome: OutcomeConfirmed, Orders: orders}, nil
}

// paymentHistory collects the customer's recent payment records for the
// suspicious-activity heuristics. Lookup failures degrade to an empty history.
func (s *confirmationService) paymentHistory(ctx context.Context, customerID string) []PaymentRecordSummary {
	if strings.TrimSpace(customerID) == "" {
		return nil
	}
	orders, err := s.orders.ListByCustomer(ctx, customerID, repositories.OrderListFilter{Limit: 50})
	if err != nil {
		s.logger.Debug("payment history lookup failed", zap.String("customer_id", customerID), zap.Error(err))
		return nil
	}
	var history []PaymentRecordSummary
	for _, order := range orders {
		for _, record := range order.PaymentTimeline {
			if record.Status == domain.PaymentStatusPaid {
				history = append(history, PaymentRecordSummary{Amount: record.Amount, OccurredAt: record.OccurredAt})
			}
		}
	}
	return history
}

type productGroup struct {
	product string
	items   []ConfirmedItem
}

// groupItemsByProduct buckets items by normalised product key, preserving
// first-seen order so minting stays deterministic for a given event.
func groupItemsByProduct(items []ConfirmedItem) []productGroup {
	index := make(map[string]int)
	var groups []productGroup
	for _, item := range items {
		key := textutil.NormalizeKey(item.Product)
		if key == "" {
			key = textutil.NormalizeKey(item.SKU)
		}
		if pos, ok := index[key]; ok {
			groups[pos].items = append(groups[pos].items, item)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, productGroup{product: item.Product, items: []ConfirmedItem{item}})
	}
	return groups
}

func (s *confirmationService) buildOrder(event PaymentConfirmedEvent, group productGroup, number string, now time.Time) Order {
	items := make([]OrderItem, 0, len(group.items))
	var subtotal int64
	for _, item := range group.items {
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		lineTotal := item.Price * int64(quantity)
		subtotal += lineTotal
		items = append(items, OrderItem{
			SKU:       item.SKU,
			Name:      item.Product,
			UnitPrice: item.Price,
			Quantity:  quantity,
			LineTotal: lineTotal,
		})
	}

	paidAt := now
	order := Order{
		ID:            s.ids.NewID(OrderIDPrefix),
		OrderNumber:   number,
		TransactionID: strings.TrimSpace(event.TransactionID),
		Customer:      event.Customer,
		Currency:      strings.ToUpper(strings.TrimSpace(event.Currency)),
		Totals: OrderTotals{
			Subtotal: subtotal,
			Total:    subtotal,
		},
		PaymentStatus:     domain.PaymentStatusPaid,
		FulfillmentStatus: domain.FulfillmentStatusPending,
		Status:            domain.OrderStatusConfirmed,
		PaymentProvider:   strings.TrimSpace(event.Provider),
		PaymentIntentID:   strings.TrimSpace(event.PaymentIntentID),
		ShippingAddress:   event.ShippingAddress,
		BillingAddress:    event.BillingAddress,
		Items:             items,
		Metadata:          event.Metadata,
		CreatedAt:         now,
		UpdatedAt:         now,
		PaidAt:            &paidAt,
	}

	order.PaymentTimeline = []domain.PaymentRecord{{
		ID:            s.ids.NewID(PaymentIDPrefix),
		Provider:      order.PaymentProvider,
		TransactionID: order.TransactionID,
		Status:        domain.PaymentStatusPaid,
		Amount:        subtotal,
		Currency:      order.Currency,
		OccurredAt:    now,
	}}

	order.AppendEvent(OrderEvent{
		ID:        s.ids.NewID(EventIDPrefix),
		Type:      "created",
		Actor:     "system",
		Message:   "order created from confirmed payment",
		CreatedAt: now,
	})
	order.AppendEvent(OrderEvent{
		ID:        s.ids.NewID(EventIDPrefix),
		Type:      "paid",
		Actor:     "system",
		Message:   "payment settled by " + order.PaymentProvider,
		CreatedAt: now,
	})

	return order
}

func (s *confirmationService) publish(ctx context.Context, eventType string, order Order) {
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
		Payload: map[string]any{
			"total":    order.Totals.Total,
			"currency": order.Currency,
		},
	})
	if err != nil {
		s.logger.Warn("order event publish failed",
			zap.String("event", eventType),
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
	}
}
