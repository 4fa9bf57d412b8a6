package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/noirthread/storefront-api/internal/platform/httpx"
	"github.com/noirthread/storefront-api/internal/platform/requestctx"
	"github.com/noirthread/storefront-api/internal/services"
)

// writeServiceError translates service sentinels into the canonical JSON
// error envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderExists):
		httpx.WriteError(ctx, w, httpx.NewError("order_exists", "order already exists", http.StatusConflict))
	case errors.Is(err, services.ErrInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrRefundExceedsTotal):
		httpx.WriteError(ctx, w, httpx.NewError("refund_exceeds_total", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_input", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrStoreUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("store_unavailable", "order store unavailable", http.StatusServiceUnavailable))
	default:
		requestctx.Logger(ctx).Error("unhandled service error", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
	}
}
