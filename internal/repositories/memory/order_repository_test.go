package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/noirthread/storefront-api/internal/domain"
	"github.com/noirthread/storefront-api/internal/repositories"
)

func testOrder(id, number, txID, customerID string, createdAt time.Time) domain.Order {
	return domain.Order{
		ID:                id,
		OrderNumber:       number,
		TransactionID:     txID,
		Customer:          domain.Customer{ID: customerID, Email: customerID + "@example.com"},
		Currency:          "USD",
		Totals:            domain.OrderTotals{Subtotal: 10000, Total: 10000},
		PaymentStatus:     domain.PaymentStatusPaid,
		FulfillmentStatus: domain.FulfillmentStatusPending,
		Status:            domain.OrderStatusConfirmed,
		Items: []domain.OrderItem{
			{SKU: "TSHIRT-BLK-M", Name: "Logo Tee", UnitPrice: 10000, Quantity: 1, LineTotal: 10000},
		},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestOrderRepositoryInsertRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	order := testOrder("ord_1", "TSHIRT-0001", "tx_1", "cus_1", time.Now())

	if err := repo.Insert(ctx, order); err != nil {
		t.Fatalf("insert: %v", err)
	}

	err := repo.Insert(ctx, order)
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestOrderRepositoryFindByOrderNumber(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	if err := repo.Insert(ctx, testOrder("ord_1", "TSHIRT-0001", "tx_1", "cus_1", time.Now())); err != nil {
		t.Fatalf("insert: %v", err)
	}

	found, err := repo.FindByOrderNumber(ctx, "TSHIRT-0001")
	if err != nil {
		t.Fatalf("find by order number: %v", err)
	}
	if found.ID != "ord_1" {
		t.Fatalf("expected ord_1, got %q", found.ID)
	}

	_, err = repo.FindByOrderNumber(ctx, "HOODIE-0001")
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestOrderRepositoryFindByTransactionID(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	base := time.Now()
	if err := repo.Insert(ctx, testOrder("ord_1", "TSHIRT-0001", "tx_1", "cus_1", base)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.Insert(ctx, testOrder("ord_2", "HOODIE-0001", "tx_1", "cus_1", base.Add(time.Second))); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.Insert(ctx, testOrder("ord_3", "TSHIRT-0002", "tx_2", "cus_2", base)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	matches, err := repo.FindByTransactionID(ctx, "tx_1")
	if err != nil {
		t.Fatalf("find by transaction id: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].ID != "ord_2" {
		t.Fatalf("expected newest first, got %q", matches[0].ID)
	}
}

func TestOrderRepositoryListFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := testOrder("ord_1", "TSHIRT-0001", "tx_1", "cus_1", base)
	second := testOrder("ord_2", "HOODIE-0001", "tx_2", "cus_2", base.Add(time.Hour))
	second.FulfillmentStatus = domain.FulfillmentStatusShipped
	third := testOrder("ord_3", "CAP-0001", "tx_3", "cus_1", base.Add(2*time.Hour))
	third.PaymentStatus = domain.PaymentStatusRefunded
	third.Status = domain.OrderStatusRefunded

	for _, order := range []domain.Order{first, second, third} {
		if err := repo.Insert(ctx, order); err != nil {
			t.Fatalf("insert %s: %v", order.ID, err)
		}
	}

	shipped, err := repo.List(ctx, repositories.OrderListFilter{
		FulfillmentStatus: []domain.FulfillmentStatus{domain.FulfillmentStatusShipped},
	})
	if err != nil {
		t.Fatalf("list shipped: %v", err)
	}
	if len(shipped) != 1 || shipped[0].ID != "ord_2" {
		t.Fatalf("unexpected shipped result: %+v", shipped)
	}

	from := base.Add(30 * time.Minute)
	ranged, err := repo.List(ctx, repositories.OrderListFilter{
		DateRange: domain.RangeQuery[time.Time]{From: &from},
	})
	if err != nil {
		t.Fatalf("list ranged: %v", err)
	}
	if len(ranged) != 2 {
		t.Fatalf("expected 2 ranged results, got %d", len(ranged))
	}

	byCustomer, err := repo.ListByCustomer(ctx, "cus_1", repositories.OrderListFilter{})
	if err != nil {
		t.Fatalf("list by customer: %v", err)
	}
	if len(byCustomer) != 2 {
		t.Fatalf("expected 2 customer orders, got %d", len(byCustomer))
	}
	if byCustomer[0].ID != "ord_3" {
		t.Fatalf("expected newest first, got %q", byCustomer[0].ID)
	}
}

func TestOrderRepositoryUpdateMissing(t *testing.T) {
	repo := NewOrderRepository()
	err := repo.Update(context.Background(), testOrder("ord_missing", "TSHIRT-0001", "tx_1", "cus_1", time.Now()))
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		t.Fatalf("expected not found error, got %v", err)
	}
}
