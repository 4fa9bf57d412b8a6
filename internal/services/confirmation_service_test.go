package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/noirthread/storefront-api/internal/domain"
	"github.com/noirthread/storefront-api/internal/repositories/memory"
)

type confirmationFixture struct {
	svc       ConfirmationService
	orders    *memory.OrderRepository
	counters  *memory.CounterRepository
	publisher *capturingPublisher
}

func newConfirmationFixture(t *testing.T) *confirmationFixture {
	t.Helper()
	orders := memory.NewOrderRepository()
	counters := memory.NewCounterRepository()
	publisher := &capturingPublisher{}
	clock := func() time.Time { return testNow }

	security, err := NewPaymentSecurityService(PaymentSecurityDeps{
		Orders:        orders,
		SigningSecret: "whsec_test",
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("NewPaymentSecurityService: %v", err)
	}
	counterSvc, err := NewCounterService(CounterServiceDeps{Repository: counters})
	if err != nil {
		t.Fatalf("NewCounterService: %v", err)
	}
	svc, err := NewConfirmationService(ConfirmationServiceDeps{
		Security:  security,
		Counters:  counterSvc,
		Orders:    orders,
		Publisher: publisher,
		IDs:       sequentialIDs(),
		Clock:     clock,
	})
	if err != nil {
		t.Fatalf("NewConfirmationService: %v", err)
	}
	return &confirmationFixture{svc: svc, orders: orders, counters: counters, publisher: publisher}
}

func confirmedEvent(txID string) PaymentConfirmedEvent {
	return PaymentConfirmedEvent{
		TransactionID: txID,
		Status:        "success",
		Provider:      "stripe",
		Amount:        34_800,
		Currency:      "USD",
		Customer: Customer{
			ID:    "cust_1",
			Email: "ayo@example.com",
			Name:  "Ayo Adeyemi",
		},
		Items: []ConfirmedItem{
			{Product: "Hoodie", SKU: "HOODIE-BLK-M", Price: 24_900, Quantity: 1},
			{Product: "Cap", SKU: "CAP-BLK", Price: 9_900, Quantity: 1},
		},
		OccurredAt: testNow,
	}
}

func TestHandlePaymentConfirmedCreatesOrderPerProduct(t *testing.T) {
	f := newConfirmationFixture(t)

	result, err := f.svc.HandlePaymentConfirmed(context.Background(), confirmedEvent("tx_1"))
	if err != nil {
		t.Fatalf("HandlePaymentConfirmed: %v", err)
	}
	if result.Outcome != OutcomeConfirmed {
		t.Fatalf("outcome = %s, want confirmed", result.Outcome)
	}
	if len(result.Orders) != 2 {
		t.Fatalf("orders = %d, want one per product", len(result.Orders))
	}

	byNumber := make(map[string]Order, len(result.Orders))
	for _, order := range result.Orders {
		byNumber[order.OrderNumber] = order
	}
	hoodie, ok := byNumber["HOODIE-0001"]
	if !ok {
		t.Fatalf("missing HOODIE-0001, got %v", keysOf(byNumber))
	}
	if _, ok := byNumber["CAP-0001"]; !ok {
		t.Fatalf("missing CAP-0001, got %v", keysOf(byNumber))
	}

	if hoodie.PaymentStatus != domain.PaymentStatusPaid ||
		hoodie.FulfillmentStatus != domain.FulfillmentStatusPending ||
		hoodie.Status != domain.OrderStatusConfirmed {
		t.Fatalf("statuses = %s/%s/%s", hoodie.PaymentStatus, hoodie.FulfillmentStatus, hoodie.Status)
	}
	if hoodie.Totals.Total != 24_900 {
		t.Fatalf("hoodie total = %d, want 24900", hoodie.Totals.Total)
	}
	if hoodie.PaidAt == nil || !hoodie.PaidAt.Equal(testNow) {
		t.Fatalf("PaidAt = %v, want %v", hoodie.PaidAt, testNow)
	}
	if len(hoodie.Events) != 2 || hoodie.Events[0].Type != "created" || hoodie.Events[1].Type != "paid" {
		t.Fatalf("events = %+v, want created then paid", hoodie.Events)
	}
	if len(hoodie.PaymentTimeline) != 1 || hoodie.PaymentTimeline[0].TransactionID != "tx_1" {
		t.Fatalf("payment timeline = %+v", hoodie.PaymentTimeline)
	}

	if events := f.publisher.events(); len(events) != 2 || events[0] != "order.created" {
		t.Fatalf("published = %v, want two order.created", events)
	}
}

func TestHandlePaymentConfirmedGroupsVariantSpellings(t *testing.T) {
	f := newConfirmationFixture(t)

	event := confirmedEvent("tx_1")
	event.Items = []ConfirmedItem{
		{Product: "T-Shirt", SKU: "TEE-1", Price: 12_000, Quantity: 1},
		{Product: "t shirt", SKU: "TEE-2", Price: 12_000, Quantity: 2},
	}
	event.Amount = 36_000

	result, err := f.svc.HandlePaymentConfirmed(context.Background(), event)
	if err != nil {
		t.Fatalf("HandlePaymentConfirmed: %v", err)
	}
	if len(result.Orders) != 1 {
		t.Fatalf("orders = %d, want variant spellings grouped into one", len(result.Orders))
	}
	order := result.Orders[0]
	if order.OrderNumber != "TSHIRT-0001" {
		t.Fatalf("order number = %q, want TSHIRT-0001", order.OrderNumber)
	}
	if len(order.Items) != 2 || order.Totals.Total != 36_000 {
		t.Fatalf("items = %d total = %d, want 2 items totalling 36000", len(order.Items), order.Totals.Total)
	}
}

func TestHandlePaymentConfirmedRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*PaymentConfirmedEvent)
		reason string
	}{
		{
			name:   "missing transaction id",
			mutate: func(e *PaymentConfirmedEvent) { e.TransactionID = " " },
			reason: "transaction id",
		},
		{
			name:   "non-success status",
			mutate: func(e *PaymentConfirmedEvent) { e.Status = "failed" },
			reason: "not success",
		},
		{
			name:   "invalid amount",
			mutate: func(e *PaymentConfirmedEvent) { e.Amount = 0 },
			reason: "amount",
		},
		{
			name:   "unsupported currency",
			mutate: func(e *PaymentConfirmedEvent) { e.Currency = "BTC" },
			reason: "currency",
		},
		{
			name:   "no items",
			mutate: func(e *PaymentConfirmedEvent) { e.Items = nil },
			reason: "items",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newConfirmationFixture(t)
			event := confirmedEvent("tx_1")
			tc.mutate(&event)

			result, err := f.svc.HandlePaymentConfirmed(context.Background(), event)
			if err != nil {
				t.Fatalf("HandlePaymentConfirmed: %v", err)
			}
			if result.Outcome != OutcomeRejected {
				t.Fatalf("outcome = %s, want rejected", result.Outcome)
			}
			if !strings.Contains(strings.ToLower(result.Reason), tc.reason) {
				t.Fatalf("reason = %q, want mention of %q", result.Reason, tc.reason)
			}
			if len(f.publisher.events()) != 0 {
				t.Fatal("rejected event produced side effects")
			}
			orders, err := f.orders.FindByTransactionID(context.Background(), "tx_1")
			if err != nil {
				t.Fatalf("FindByTransactionID: %v", err)
			}
			if len(orders) != 0 {
				t.Fatalf("rejected event persisted %d orders", len(orders))
			}
		})
	}
}

func TestHandlePaymentConfirmedDuplicateReplays(t *testing.T) {
	f := newConfirmationFixture(t)
	ctx := context.Background()

	first, err := f.svc.HandlePaymentConfirmed(ctx, confirmedEvent("tx_1"))
	if err != nil {
		t.Fatalf("first: %v", err)
	}

	second, err := f.svc.HandlePaymentConfirmed(ctx, confirmedEvent("tx_1"))
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.Outcome != OutcomeDuplicate {
		t.Fatalf("outcome = %s, want duplicate", second.Outcome)
	}
	if len(second.Orders) != len(first.Orders) {
		t.Fatalf("replayed %d orders, want %d", len(second.Orders), len(first.Orders))
	}

	// Counters must not have advanced on the replay.
	number, err := f.counters.Next(ctx, "HOODIE", 1)
	if err != nil {
		t.Fatalf("counter peek: %v", err)
	}
	if number != 2 {
		t.Fatalf("next HOODIE value = %d, want 2", number)
	}
}

func TestHandlePaymentConfirmedDistinctTransactionsAdvanceSequence(t *testing.T) {
	f := newConfirmationFixture(t)
	ctx := context.Background()

	event := confirmedEvent("tx_1")
	event.Items = event.Items[:1]
	event.Amount = 24_900
	if _, err := f.svc.HandlePaymentConfirmed(ctx, event); err != nil {
		t.Fatalf("first: %v", err)
	}

	event2 := confirmedEvent("tx_2")
	event2.Items = event2.Items[:1]
	event2.Amount = 24_900
	result, err := f.svc.HandlePaymentConfirmed(ctx, event2)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if result.Orders[0].OrderNumber != "HOODIE-0002" {
		t.Fatalf("order number = %q, want HOODIE-0002", result.Orders[0].OrderNumber)
	}
}

func TestHandlePaymentConfirmedInsertFailureSurfaces(t *testing.T) {
	f := newConfirmationFixture(t)
	ctx := context.Background()

	// Pre-seed an order whose ID collides with the generator's first mint.
	collision := testOrderFixture("ord_1", "SEEDED-0001")
	collision.TransactionID = "tx_seeded"
	if err := f.orders.Insert(ctx, collision); err != nil {
		t.Fatalf("seed: %v", err)
	}

	event := confirmedEvent("tx_1")
	event.Items = event.Items[:1]
	event.Amount = 24_900
	if _, err := f.svc.HandlePaymentConfirmed(ctx, event); !errors.Is(err, ErrOrderExists) {
		t.Fatalf("err = %v, want ErrOrderExists", err)
	}
}

func keysOf(m map[string]Order) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
