package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/noirthread/storefront-api/internal/domain"
	"github.com/noirthread/storefront-api/internal/platform/auth"
	"github.com/noirthread/storefront-api/internal/platform/httpx"
	"github.com/noirthread/storefront-api/internal/platform/pagination"
	"github.com/noirthread/storefront-api/internal/services"
)

// OrderHandlerDeps bundles collaborators for the customer order history.
type OrderHandlerDeps struct {
	Orders services.OrderService
}

// OrderHandler serves the authenticated customer's own orders.
type OrderHandler struct {
	orders services.OrderService
}

// NewOrderHandler constructs the customer order handler.
func NewOrderHandler(deps OrderHandlerDeps) (*OrderHandler, error) {
	if deps.Orders == nil {
		return nil, errors.New("order handler: order service is required")
	}
	return &OrderHandler{orders: deps.Orders}, nil
}

// List serves GET /api/v1/orders, newest first, paginated.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity.UID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthorized", "authentication required", http.StatusUnauthorized))
		return
	}

	params, err := pagination.Parse(r.URL.Query(), pagination.Options{})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_query", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.orders.ListCustomerOrders(ctx, identity.UID, domain.PageRequest{Page: params.Page, Limit: params.Limit})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"orders":     presentOrders(page.Items, false),
		"pagination": presentPagination(page.Info),
	})
}

// Get serves GET /api/v1/orders/{orderID}. Orders belonging to other
// customers answer not-found.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity.UID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthorized", "authentication required", http.StatusUnauthorized))
		return
	}

	order, err := h.orders.GetOrderForCustomer(ctx, identity.UID, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"order": presentCustomerOrder(order)})
}
