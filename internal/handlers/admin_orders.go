package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	domain "github.com/noirthread/storefront-api/internal/domain"
	"github.com/noirthread/storefront-api/internal/platform/auth"
	"github.com/noirthread/storefront-api/internal/platform/httpx"
	"github.com/noirthread/storefront-api/internal/platform/pagination"
	"github.com/noirthread/storefront-api/internal/platform/requestctx"
	"github.com/noirthread/storefront-api/internal/services"
)

const maxActionBody = 1 << 20

// AdminOrderHandlerDeps bundles collaborators for the owner order surface.
type AdminOrderHandlerDeps struct {
	Orders    services.OrderService
	AuditLogs services.AuditLogService
}

// AdminOrderHandler serves the owner-only order management endpoints.
type AdminOrderHandler struct {
	orders services.OrderService
	audits services.AuditLogService
}

// NewAdminOrderHandler constructs the admin order handler.
func NewAdminOrderHandler(deps AdminOrderHandlerDeps) (*AdminOrderHandler, error) {
	if deps.Orders == nil {
		return nil, errors.New("admin order handler: order service is required")
	}
	if deps.AuditLogs == nil {
		return nil, errors.New("admin order handler: audit log service is required")
	}
	return &AdminOrderHandler{orders: deps.Orders, audits: deps.AuditLogs}, nil
}

// List serves GET /api/v1/admin/orders with search, filters, sort, and paging.
func (h *AdminOrderHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query, err := parseSearchQuery(r.URL.Query())
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_query", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.orders.SearchOrders(ctx, query)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"orders":     presentOrders(page.Items, true),
		"pagination": presentPagination(page.Info),
	})
}

// Get serves GET /api/v1/admin/orders/{orderID} with the full aggregate.
func (h *AdminOrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"order": presentOrder(order)})
}

type adminActionPayload struct {
	Type string `json:"type"`

	// refund
	Amount      *int64 `json:"amount"`
	Reason      string `json:"reason"`
	ViaProvider bool   `json:"viaProvider"`

	// update_fulfillment
	Status          string   `json:"status"`
	Carrier         string   `json:"carrier"`
	TrackingNumbers []string `json:"trackingNumbers"`

	// add_note
	Content string `json:"content"`

	// update
	PaymentStatus     string         `json:"paymentStatus"`
	FulfillmentStatus string         `json:"fulfillmentStatus"`
	OrderStatus       string         `json:"orderStatus"`
	Metadata          map[string]any `json:"metadata"`
	Message           string         `json:"message"`
}

// Action serves POST /api/v1/admin/orders/{orderID}/actions, dispatching on
// the payload's type discriminator.
func (h *AdminOrderHandler) Action(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "orderID")
	actor := ownerActor(ctx)

	var payload adminActionPayload
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxActionBody))
	if err := decoder.Decode(&payload); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_payload", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	var (
		order  domain.Order
		err    error
		action string
		detail map[string]any
	)

	switch strings.ToLower(strings.TrimSpace(payload.Type)) {
	case "refund":
		action = "order.refund"
		order, err = h.orders.ProcessRefund(ctx, services.RefundCommand{
			OrderID:     orderID,
			Amount:      payload.Amount,
			Reason:      payload.Reason,
			Actor:       actor,
			ViaProvider: payload.ViaProvider,
		})
		detail = map[string]any{"via_provider": payload.ViaProvider}
		if payload.Amount != nil {
			detail["amount"] = *payload.Amount
		}
	case "update_fulfillment":
		action = "order.update_fulfillment"
		order, err = h.orders.UpdateFulfillment(ctx, services.FulfillmentCommand{
			OrderID:         orderID,
			Status:          domain.FulfillmentStatus(strings.TrimSpace(payload.Status)),
			Carrier:         payload.Carrier,
			TrackingNumbers: payload.TrackingNumbers,
			Actor:           actor,
		})
		detail = map[string]any{"status": payload.Status}
	case "add_note":
		action = "order.add_note"
		order, err = h.orders.AddOwnerNote(ctx, services.OwnerNoteCommand{
			OrderID: orderID,
			Content: payload.Content,
			Actor:   actor,
		})
	case "update":
		action = "order.update"
		cmd := services.UpdateOrderCommand{
			OrderID:  orderID,
			Metadata: payload.Metadata,
			Message:  payload.Message,
			Actor:    actor,
		}
		if s := strings.TrimSpace(payload.PaymentStatus); s != "" {
			status := domain.PaymentStatus(s)
			cmd.PaymentStatus = &status
		}
		if s := strings.TrimSpace(payload.FulfillmentStatus); s != "" {
			status := domain.FulfillmentStatus(s)
			cmd.FulfillmentStatus = &status
		}
		if s := strings.TrimSpace(payload.OrderStatus); s != "" {
			status := domain.OrderStatus(s)
			cmd.Status = &status
		}
		order, err = h.orders.UpdateOrder(ctx, cmd)
	default:
		httpx.WriteError(ctx, w, httpx.NewError("unknown_action", fmt.Sprintf("unknown action type %q", payload.Type), http.StatusBadRequest))
		return
	}

	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	h.recordOwnerAction(ctx, actor, action, order, detail)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"order": presentOrder(order)})
}

// Delete serves DELETE /api/v1/admin/orders/{orderID}.
func (h *AdminOrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "orderID")
	actor := ownerActor(ctx)

	if err := h.orders.DeleteOrder(ctx, services.DeleteOrderCommand{OrderID: orderID, Actor: actor}); err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	h.recordOwnerAction(ctx, actor, "order.delete", domain.Order{ID: orderID}, nil)
	httpx.WriteNoContent(w)
}

// recordOwnerAction emits the structured OWNER ACTION log line and persists
// the matching audit entry.
func (h *AdminOrderHandler) recordOwnerAction(ctx context.Context, actor, action string, order domain.Order, detail map[string]any) {
	fields := []zap.Field{
		zap.String("actor", actor),
		zap.String("action", action),
		zap.String("order_id", order.ID),
	}
	if order.OrderNumber != "" {
		fields = append(fields, zap.String("order_number", order.OrderNumber))
	}
	requestctx.Logger(ctx).Info("OWNER ACTION", fields...)

	h.audits.Record(ctx, services.AuditRecord{
		Actor:     actor,
		ActorType: auth.RoleOwner,
		Action:    action,
		TargetRef: "orders/" + order.ID,
		Metadata:  detail,
		RequestID: middleware.GetReqID(ctx),
	})
}

func ownerActor(ctx context.Context) string {
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity.UID != "" {
		return identity.UID
	}
	return "owner"
}

func parseSearchQuery(values url.Values) (services.OrderSearchQuery, error) {
	params, err := pagination.Parse(values, pagination.Options{})
	if err != nil {
		return services.OrderSearchQuery{}, err
	}

	query := services.OrderSearchQuery{
		Search: strings.TrimSpace(values.Get("search")),
		Page:   domain.PageRequest{Page: params.Page, Limit: params.Limit},
	}

	for _, raw := range splitCSV(values.Get("paymentStatus")) {
		query.PaymentStatus = append(query.PaymentStatus, domain.PaymentStatus(raw))
	}
	for _, raw := range splitCSV(values.Get("fulfillmentStatus")) {
		query.FulfillmentStatus = append(query.FulfillmentStatus, domain.FulfillmentStatus(raw))
	}
	for _, raw := range splitCSV(values.Get("status")) {
		query.Status = append(query.Status, domain.OrderStatus(raw))
	}

	if raw := strings.TrimSpace(values.Get("dateFrom")); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return services.OrderSearchQuery{}, fmt.Errorf("dateFrom must be RFC 3339: %w", err)
		}
		query.DateRange.From = &from
	}
	if raw := strings.TrimSpace(values.Get("dateTo")); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return services.OrderSearchQuery{}, fmt.Errorf("dateTo must be RFC 3339: %w", err)
		}
		query.DateRange.To = &to
	}
	if raw := strings.TrimSpace(values.Get("totalMin")); raw != "" {
		min, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return services.OrderSearchQuery{}, fmt.Errorf("totalMin must be an integer: %w", err)
		}
		query.TotalRange.From = &min
	}
	if raw := strings.TrimSpace(values.Get("totalMax")); raw != "" {
		max, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return services.OrderSearchQuery{}, fmt.Errorf("totalMax must be an integer: %w", err)
		}
		query.TotalRange.To = &max
	}

	sortField := strings.TrimSpace(values.Get("sortBy"))
	if sortField == "" {
		// Legacy alias.
		sortField = strings.TrimSpace(values.Get("sort"))
	}
	switch sortField {
	case "", string(domain.OrderSortDate):
		query.Sort = domain.OrderSortDate
	case string(domain.OrderSortTotal):
		query.Sort = domain.OrderSortTotal
	case string(domain.OrderSortCustomerName):
		query.Sort = domain.OrderSortCustomerName
	default:
		return services.OrderSearchQuery{}, fmt.Errorf("unknown sortBy field %q", sortField)
	}

	switch order := strings.ToLower(strings.TrimSpace(values.Get("sortOrder"))); order {
	case "":
	case string(domain.SortAsc):
		query.SortOrder = domain.SortAsc
	case string(domain.SortDesc):
		query.SortOrder = domain.SortDesc
	default:
		return services.OrderSearchQuery{}, fmt.Errorf("sortOrder must be asc or desc, got %q", order)
	}

	return query, nil
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
