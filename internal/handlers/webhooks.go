package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	domain "github.com/noirthread/storefront-api/internal/domain"
	"github.com/noirthread/storefront-api/internal/platform/httpx"
	"github.com/noirthread/storefront-api/internal/platform/requestctx"
	"github.com/noirthread/storefront-api/internal/services"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// WebhookHandlerDeps bundles collaborators for the payment webhook endpoint.
type WebhookHandlerDeps struct {
	Confirmations services.ConfirmationService
}

// WebhookHandler receives payment-confirmed events from the PSP bridge.
type WebhookHandler struct {
	confirmations services.ConfirmationService
}

// NewWebhookHandler constructs the webhook endpoint handler.
func NewWebhookHandler(deps WebhookHandlerDeps) (*WebhookHandler, error) {
	if deps.Confirmations == nil {
		return nil, errors.New("webhook handler: confirmation service is required")
	}
	return &WebhookHandler{confirmations: deps.Confirmations}, nil
}

type webhookAddressPayload struct {
	Recipient  string  `json:"recipient"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2"`
	City       string  `json:"city"`
	State      *string `json:"state"`
	PostalCode string  `json:"postalCode"`
	Country    string  `json:"country"`
	Phone      *string `json:"phone"`
}

type webhookItemPayload struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

type webhookProductPayload struct {
	Name  string               `json:"name"`
	Items []webhookItemPayload `json:"items"`
}

type webhookPayload struct {
	TransactionID   string                  `json:"transactionId"`
	Status          string                  `json:"status"`
	Provider        string                  `json:"provider"`
	PaymentIntentID string                  `json:"paymentIntentId"`
	Amount          int64                   `json:"amount"`
	Currency        string                  `json:"currency"`
	UserID          string                  `json:"userId"`
	UserEmail       string                  `json:"userEmail"`
	UserName        string                  `json:"userName"`
	LoginMethod     string                  `json:"loginMethod"`
	Products        []webhookProductPayload `json:"products"`
	ShippingAddress *webhookAddressPayload  `json:"shippingAddress"`
	BillingAddress  *webhookAddressPayload  `json:"billingAddress"`
	Metadata        map[string]any          `json:"metadata"`
	OccurredAt      time.Time               `json:"occurredAt"`
}

// HandlePaymentConfirmed processes an inbound payment event. The HMAC
// signature is enforced by middleware before this handler runs.
func (h *WebhookHandler) HandlePaymentConfirmed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload webhookPayload
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err := decoder.Decode(&payload); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_payload", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	event := services.PaymentConfirmedEvent{
		TransactionID:   payload.TransactionID,
		Status:          payload.Status,
		Provider:        payload.Provider,
		PaymentIntentID: payload.PaymentIntentID,
		Amount:          payload.Amount,
		Currency:        payload.Currency,
		Customer: domain.Customer{
			ID:          payload.UserID,
			Email:       payload.UserEmail,
			Name:        payload.UserName,
			LoginMethod: payload.LoginMethod,
		},
		ShippingAddress: webhookAddress(payload.ShippingAddress),
		BillingAddress:  webhookAddress(payload.BillingAddress),
		Metadata:        payload.Metadata,
		OccurredAt:      payload.OccurredAt,
	}
	for _, product := range payload.Products {
		for _, item := range product.Items {
			name := product.Name
			if name == "" {
				name = item.Name
			}
			event.Items = append(event.Items, services.ConfirmedItem{
				Product:  name,
				SKU:      item.ID,
				Price:    item.Price,
				Quantity: item.Quantity,
			})
		}
	}

	result, err := h.confirmations.HandlePaymentConfirmed(ctx, event)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	switch result.Outcome {
	case services.OutcomeConfirmed:
		requestctx.Logger(ctx).Info("payment confirmed",
			zap.String("transaction_id", payload.TransactionID),
			zap.Int("orders", len(result.Orders)),
		)
		httpx.WriteJSON(w, http.StatusCreated, map[string]any{
			"status": "confirmed",
			"orders": presentOrders(result.Orders, true),
		})
	case services.OutcomeDuplicate:
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"status": "duplicate",
			"orders": presentOrders(result.Orders, true),
		})
	default:
		httpx.WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"status": "rejected",
			"reason": result.Reason,
		})
	}
}

func webhookAddress(addr *webhookAddressPayload) *domain.Address {
	if addr == nil {
		return nil
	}
	return &domain.Address{
		Recipient:  addr.Recipient,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
		Phone:      addr.Phone,
	}
}
