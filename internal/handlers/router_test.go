package handlers

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	domain "github.com/noirthread/storefront-api/internal/domain"
	"github.com/noirthread/storefront-api/internal/platform/auth"
	"github.com/noirthread/storefront-api/internal/platform/idempotency"
	"github.com/noirthread/storefront-api/internal/repositories"
	"github.com/noirthread/storefront-api/internal/repositories/memory"
	"github.com/noirthread/storefront-api/internal/services"
)

const (
	testWebhookSecret = "whsec_router_test"
	testOwnerSecret   = "owner_router_test"
)

type fakeCustomerVerifier struct {
	tokens map[string]*firebaseauth.Token
}

func (v *fakeCustomerVerifier) VerifyIDToken(_ context.Context, idToken string) (*firebaseauth.Token, error) {
	token, ok := v.tokens[idToken]
	if !ok {
		return nil, errors.New("invalid token")
	}
	return token, nil
}

type testStack struct {
	server   *httptest.Server
	registry *memory.Registry
	orders   *memory.OrderRepository
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	registry, err := memory.NewRegistry("test", "test")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	orders, ok := registry.Orders().(*memory.OrderRepository)
	if !ok {
		t.Fatal("memory registry did not return a memory order repository")
	}

	ids := newSequentialIDs()
	security, err := services.NewPaymentSecurityService(services.PaymentSecurityDeps{
		Orders:        registry.Orders(),
		SigningSecret: testWebhookSecret,
	})
	if err != nil {
		t.Fatalf("NewPaymentSecurityService: %v", err)
	}
	counters, err := services.NewCounterService(services.CounterServiceDeps{Repository: registry.Counters()})
	if err != nil {
		t.Fatalf("NewCounterService: %v", err)
	}
	confirmations, err := services.NewConfirmationService(services.ConfirmationServiceDeps{
		Security: security,
		Counters: counters,
		Orders:   registry.Orders(),
		IDs:      ids,
	})
	if err != nil {
		t.Fatalf("NewConfirmationService: %v", err)
	}
	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders: registry.Orders(),
		IDs:    ids,
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}
	auditSvc, err := services.NewAuditLogService(services.AuditLogServiceDeps{
		Repository: registry.AuditLogs(),
		IDs:        ids,
	})
	if err != nil {
		t.Fatalf("NewAuditLogService: %v", err)
	}

	ownerVerifier, err := auth.NewOwnerVerifier([]byte(testOwnerSecret))
	if err != nil {
		t.Fatalf("NewOwnerVerifier: %v", err)
	}
	webhookVerifier := auth.NewWebhookVerifier(
		auth.SecretProviderFunc(func(context.Context, string) (string, error) {
			return testWebhookSecret, nil
		}),
		auth.NewInMemoryNonceStore(),
	)
	customerVerifier := &fakeCustomerVerifier{
		tokens: map[string]*firebaseauth.Token{
			"customer-token": {
				UID: "cust_1",
				Claims: map[string]any{
					"email": "ayo@example.com",
					"name":  "Ayo Adeyemi",
				},
			},
		},
	}

	router, err := NewRouter(RouterDeps{
		Logger:           zap.NewNop(),
		Orders:           orderSvc,
		Confirmations:    confirmations,
		AuditLogs:        auditSvc,
		Health:           registry.Health(),
		OwnerVerifier:    ownerVerifier,
		CustomerVerifier: customerVerifier,
		WebhookVerifier:  webhookVerifier,
		WebhookSecret:    "payment-webhook",
		IdempotencyStore: idempotency.NewMemoryStore(),
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testStack{server: server, registry: registry, orders: orders}
}

func newSequentialIDs() services.IDGenerator {
	var mu sync.Mutex
	next := 0
	return services.IDGeneratorFunc(func(prefix string) string {
		mu.Lock()
		defer mu.Unlock()
		next++
		return fmt.Sprintf("%s_%d", prefix, next)
	})
}

func (s *testStack) seedOrder(t *testing.T, order domain.Order) {
	t.Helper()
	if err := s.orders.Insert(context.Background(), order); err != nil {
		t.Fatalf("seed order %s: %v", order.ID, err)
	}
}

func seedableOrder(id, number, customerID string) domain.Order {
	now := time.Now().UTC().Add(-time.Hour)
	return domain.Order{
		ID:            id,
		OrderNumber:   number,
		TransactionID: "tx_" + id,
		Customer: domain.Customer{
			ID:    customerID,
			Email: "ayo@example.com",
			Name:  "Ayo Adeyemi",
		},
		Currency:          "USD",
		Totals:            domain.OrderTotals{Subtotal: 24_900, Total: 24_900},
		PaymentStatus:     domain.PaymentStatusPaid,
		FulfillmentStatus: domain.FulfillmentStatusPending,
		Status:            domain.OrderStatusConfirmed,
		PaymentProvider:   "stripe",
		Items: []domain.OrderItem{{
			SKU:       "HOODIE-BLK-M",
			Name:      "Hoodie",
			UnitPrice: 24_900,
			Quantity:  1,
			LineTotal: 24_900,
		}},
		OwnerNotes: []domain.OwnerNote{{
			ID:        "note_seed",
			Content:   "flagged for manual review",
			CreatedBy: "owner@noirthread.com",
			CreatedAt: now,
			UpdatedAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func ownerToken(t *testing.T, role string) string {
	t.Helper()
	claims := auth.OwnerClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "owner@noirthread.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testOwnerSecret))
	if err != nil {
		t.Fatalf("sign owner token: %v", err)
	}
	return token
}

func signWebhook(payload []byte) string {
	return hex.EncodeToString(auth.ComputeSignature([]byte(testWebhookSecret), payload))
}

func doJSON(t *testing.T, method, url string, body []byte, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var decoded map[string]any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("decode %q: %v", data, err)
		}
	}
	return resp, decoded
}

func webhookEventBody(t *testing.T, txID string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"transactionId": txID,
		"status":        "success",
		"provider":      "stripe",
		"amount":        24_900,
		"currency":      "USD",
		"userId":        "cust_1",
		"userEmail":     "ayo@example.com",
		"userName":      "Ayo Adeyemi",
		"products": []map[string]any{
			{
				"name": "Hoodie",
				"items": []map[string]any{
					{"id": "HOODIE-BLK-M", "name": "Hoodie Black M", "price": 24_900, "quantity": 1},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal webhook body: %v", err)
	}
	return body
}

func TestWebhookRequiresValidSignature(t *testing.T) {
	s := newTestStack(t)
	body := webhookEventBody(t, "tx_1")

	resp, _ := doJSON(t, http.MethodPost, s.server.URL+"/api/v1/webhooks/payments", body, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing signature status = %d, want 401", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, s.server.URL+"/api/v1/webhooks/payments", body, map[string]string{
		"X-Webhook-Signature": signWebhook([]byte("other payload")),
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad signature status = %d, want 401", resp.StatusCode)
	}
}

func TestWebhookConfirmsAndReplaysDuplicate(t *testing.T) {
	s := newTestStack(t)
	body := webhookEventBody(t, "tx_1")
	headers := map[string]string{"X-Webhook-Signature": signWebhook(body)}
	url := s.server.URL + "/api/v1/webhooks/payments"

	resp, decoded := doJSON(t, http.MethodPost, url, body, headers)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%v)", resp.StatusCode, decoded)
	}
	if decoded["status"] != "confirmed" {
		t.Fatalf("status field = %v, want confirmed", decoded["status"])
	}
	orders, ok := decoded["orders"].([]any)
	if !ok || len(orders) != 1 {
		t.Fatalf("orders = %v, want one order", decoded["orders"])
	}
	first := orders[0].(map[string]any)
	if first["orderNumber"] != "HOODIE-0001" {
		t.Fatalf("orderNumber = %v, want HOODIE-0001", first["orderNumber"])
	}

	resp, decoded = doJSON(t, http.MethodPost, url, body, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("replay status = %d, want 200", resp.StatusCode)
	}
	if decoded["status"] != "duplicate" {
		t.Fatalf("replay status field = %v, want duplicate", decoded["status"])
	}
}

func TestWebhookCreatesOrderPerProduct(t *testing.T) {
	s := newTestStack(t)
	body, err := json.Marshal(map[string]any{
		"transactionId": "tx_multi",
		"status":        "success",
		"provider":      "stripe",
		"amount":        34_800,
		"currency":      "USD",
		"userId":        "cust_1",
		"userEmail":     "ayo@example.com",
		"userName":      "Ayo Adeyemi",
		"products": []map[string]any{
			{
				"name": "Hoodie",
				"items": []map[string]any{
					{"id": "HOODIE-BLK-M", "name": "Hoodie Black M", "price": 24_900, "quantity": 1},
				},
			},
			{
				"name": "Cap",
				"items": []map[string]any{
					{"id": "CAP-BLK", "name": "Cap Black", "price": 9_900, "quantity": 1},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal webhook body: %v", err)
	}

	resp, decoded := doJSON(t, http.MethodPost, s.server.URL+"/api/v1/webhooks/payments", body, map[string]string{
		"X-Webhook-Signature": signWebhook(body),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%v)", resp.StatusCode, decoded)
	}
	orders, ok := decoded["orders"].([]any)
	if !ok || len(orders) != 2 {
		t.Fatalf("orders = %v, want one per product", decoded["orders"])
	}
	numbers := map[string]bool{}
	for _, raw := range orders {
		order := raw.(map[string]any)
		numbers[order["orderNumber"].(string)] = true
		if order["transactionId"] != "tx_multi" {
			t.Fatalf("transactionId = %v, want tx_multi", order["transactionId"])
		}
	}
	if !numbers["HOODIE-0001"] || !numbers["CAP-0001"] {
		t.Fatalf("order numbers = %v, want HOODIE-0001 and CAP-0001", numbers)
	}
}

func TestWebhookRejectsFailedPayment(t *testing.T) {
	s := newTestStack(t)
	body, _ := json.Marshal(map[string]any{
		"transactionId": "tx_failed",
		"status":        "failed",
		"amount":        24_900,
		"currency":      "USD",
		"userId":        "cust_1",
		"products": []map[string]any{
			{
				"name": "Hoodie",
				"items": []map[string]any{
					{"id": "HOODIE-BLK-M", "name": "Hoodie Black M", "price": 24_900, "quantity": 1},
				},
			},
		},
	})

	resp, decoded := doJSON(t, http.MethodPost, s.server.URL+"/api/v1/webhooks/payments", body, map[string]string{
		"X-Webhook-Signature": signWebhook(body),
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	if decoded["status"] != "rejected" {
		t.Fatalf("status field = %v, want rejected", decoded["status"])
	}
}

func TestAdminSurfaceAnswersNotFoundWithoutOwnerToken(t *testing.T) {
	s := newTestStack(t)
	url := s.server.URL + "/api/v1/admin/orders"

	resp, _ := doJSON(t, http.MethodGet, url, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("anonymous status = %d, want generic 404", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, url, nil, map[string]string{
		"Authorization": "Bearer " + ownerToken(t, "customer"),
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("wrong-role status = %d, want generic 404", resp.StatusCode)
	}
}

func TestAdminListEnvelope(t *testing.T) {
	s := newTestStack(t)
	s.seedOrder(t, seedableOrder("ord_a", "HOODIE-0001", "cust_1"))
	s.seedOrder(t, seedableOrder("ord_b", "CAP-0001", "cust_2"))
	headers := map[string]string{"Authorization": "Bearer " + ownerToken(t, "owner")}

	resp, decoded := doJSON(t, http.MethodGet, s.server.URL+"/api/v1/admin/orders?limit=1", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	orders, ok := decoded["orders"].([]any)
	if !ok || len(orders) != 1 {
		t.Fatalf("orders = %v, want exactly one", decoded["orders"])
	}
	paging, ok := decoded["pagination"].(map[string]any)
	if !ok {
		t.Fatalf("pagination missing: %v", decoded)
	}
	if paging["total"] != float64(2) || paging["totalPages"] != float64(2) || paging["limit"] != float64(1) {
		t.Fatalf("pagination = %v", paging)
	}
}

func TestAdminListSortsByQuery(t *testing.T) {
	s := newTestStack(t)
	cheap := seedableOrder("ord_cheap", "CAP-0001", "cust_2")
	cheap.Totals = domain.OrderTotals{Subtotal: 9_900, Total: 9_900}
	s.seedOrder(t, cheap)
	s.seedOrder(t, seedableOrder("ord_dear", "HOODIE-0001", "cust_1"))
	headers := map[string]string{"Authorization": "Bearer " + ownerToken(t, "owner")}

	resp, decoded := doJSON(t, http.MethodGet, s.server.URL+"/api/v1/admin/orders?sortBy=orderTotal&sortOrder=asc", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	orders, ok := decoded["orders"].([]any)
	if !ok || len(orders) != 2 {
		t.Fatalf("orders = %v, want two", decoded["orders"])
	}
	first := orders[0].(map[string]any)
	if first["id"] != "ord_cheap" {
		t.Fatalf("first order = %v, want ord_cheap when sorting by total ascending", first["id"])
	}
}

func TestAdminListRejectsBadQuery(t *testing.T) {
	s := newTestStack(t)
	headers := map[string]string{"Authorization": "Bearer " + ownerToken(t, "owner")}

	for _, query := range []string{"sortBy=bogus", "sort=bogus"} {
		resp, _ := doJSON(t, http.MethodGet, s.server.URL+"/api/v1/admin/orders?"+query, nil, headers)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s status = %d, want 400", query, resp.StatusCode)
		}
	}
}

func TestAdminRefundActionRecordsAudit(t *testing.T) {
	s := newTestStack(t)
	s.seedOrder(t, seedableOrder("ord_a", "HOODIE-0001", "cust_1"))
	headers := map[string]string{"Authorization": "Bearer " + ownerToken(t, "owner")}

	body, _ := json.Marshal(map[string]any{
		"type":   "refund",
		"reason": "customer return",
	})
	resp, decoded := doJSON(t, http.MethodPost, s.server.URL+"/api/v1/admin/orders/ord_a/actions", body, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%v)", resp.StatusCode, decoded)
	}
	order := decoded["order"].(map[string]any)
	if order["paymentStatus"] != "refunded" || order["status"] != "refunded" {
		t.Fatalf("order statuses = %v/%v, want refunded/refunded", order["paymentStatus"], order["status"])
	}

	entries, err := s.registry.AuditLogs().List(context.Background(), repositories.AuditLogFilter{Action: "order.refund"})
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	if len(entries) != 1 || entries[0].TargetRef != "orders/ord_a" {
		t.Fatalf("audit entries = %+v, want one for orders/ord_a", entries)
	}
	if entries[0].Actor != "owner@noirthread.com" {
		t.Fatalf("audit actor = %q", entries[0].Actor)
	}
}

func TestAdminFulfillmentAction(t *testing.T) {
	s := newTestStack(t)
	s.seedOrder(t, seedableOrder("ord_a", "HOODIE-0001", "cust_1"))
	headers := map[string]string{"Authorization": "Bearer " + ownerToken(t, "owner")}

	body, _ := json.Marshal(map[string]any{
		"type":            "update_fulfillment",
		"status":          "shipped",
		"carrier":         "dhl",
		"trackingNumbers": []string{"TRACK-1"},
	})
	resp, decoded := doJSON(t, http.MethodPost, s.server.URL+"/api/v1/admin/orders/ord_a/actions", body, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%v)", resp.StatusCode, decoded)
	}
	order := decoded["order"].(map[string]any)
	if order["fulfillmentStatus"] != "shipped" || order["status"] != "processing" {
		t.Fatalf("statuses = %v/%v, want shipped/processing", order["fulfillmentStatus"], order["status"])
	}
}

func TestAdminActionInvalidTransitionConflict(t *testing.T) {
	s := newTestStack(t)
	order := seedableOrder("ord_a", "HOODIE-0001", "cust_1")
	order.FulfillmentStatus = domain.FulfillmentStatusDelivered
	order.Status = domain.OrderStatusCompleted
	s.seedOrder(t, order)
	headers := map[string]string{"Authorization": "Bearer " + ownerToken(t, "owner")}

	body, _ := json.Marshal(map[string]any{
		"type":   "update_fulfillment",
		"status": "pending",
	})
	resp, _ := doJSON(t, http.MethodPost, s.server.URL+"/api/v1/admin/orders/ord_a/actions", body, headers)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestAdminDeleteOrder(t *testing.T) {
	s := newTestStack(t)
	s.seedOrder(t, seedableOrder("ord_a", "HOODIE-0001", "cust_1"))
	headers := map[string]string{"Authorization": "Bearer " + ownerToken(t, "owner")}
	url := s.server.URL + "/api/v1/admin/orders/ord_a"

	resp, _ := doJSON(t, http.MethodDelete, url, nil, headers)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, url, nil, headers)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status after delete = %d, want 404", resp.StatusCode)
	}
}

func TestCustomerOrdersScopedToOwner(t *testing.T) {
	s := newTestStack(t)
	s.seedOrder(t, seedableOrder("ord_a", "HOODIE-0001", "cust_1"))
	s.seedOrder(t, seedableOrder("ord_b", "CAP-0001", "cust_2"))
	headers := map[string]string{"Authorization": "Bearer customer-token"}

	resp, decoded := doJSON(t, http.MethodGet, s.server.URL+"/api/v1/orders", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	orders, ok := decoded["orders"].([]any)
	if !ok || len(orders) != 1 {
		t.Fatalf("orders = %v, want only the customer's order", decoded["orders"])
	}
	first := orders[0].(map[string]any)
	if first["id"] != "ord_a" {
		t.Fatalf("order id = %v, want ord_a", first["id"])
	}
	if _, leaked := first["ownerNotes"]; leaked {
		t.Fatal("owner notes leaked to the customer view")
	}

	resp, _ = doJSON(t, http.MethodGet, s.server.URL+"/api/v1/orders/ord_b", nil, headers)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign order status = %d, want 404", resp.StatusCode)
	}
}

func TestCustomerOrdersRequireToken(t *testing.T) {
	s := newTestStack(t)

	resp, _ := doJSON(t, http.MethodGet, s.server.URL+"/api/v1/orders", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, s.server.URL+"/api/v1/orders", nil, map[string]string{
		"Authorization": "Bearer bogus",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want 401", resp.StatusCode)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestStack(t)

	resp, decoded := doJSON(t, http.MethodGet, s.server.URL+"/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK || decoded["status"] != "ok" {
		t.Fatalf("healthz = %d %v", resp.StatusCode, decoded)
	}

	resp, decoded = doJSON(t, http.MethodGet, s.server.URL+"/readyz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz = %d %v", resp.StatusCode, decoded)
	}
	if decoded["status"] != "ok" {
		t.Fatalf("readyz status = %v, want ok", decoded["status"])
	}
	if _, ok := decoded["checks"].(map[string]any); !ok {
		t.Fatalf("readyz checks missing: %v", decoded)
	}
}
