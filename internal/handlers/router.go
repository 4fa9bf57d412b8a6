package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/noirthread/storefront-api/internal/platform/auth"
	"github.com/noirthread/storefront-api/internal/platform/httpx"
	"github.com/noirthread/storefront-api/internal/platform/idempotency"
	"github.com/noirthread/storefront-api/internal/platform/observability"
	"github.com/noirthread/storefront-api/internal/repositories"
	"github.com/noirthread/storefront-api/internal/services"
)

const defaultRequestTimeout = 30 * time.Second

// RouterDeps bundles everything the HTTP surface needs.
type RouterDeps struct {
	Logger    *zap.Logger
	ProjectID string

	Orders        services.OrderService
	Confirmations services.ConfirmationService
	AuditLogs     services.AuditLogService
	Health        repositories.HealthRepository

	OwnerVerifier    *auth.OwnerVerifier
	CustomerVerifier auth.TokenVerifier
	WebhookVerifier  *auth.WebhookVerifier
	WebhookSecret    string

	IdempotencyStore idempotency.Store
	RequestTimeout   time.Duration
}

// NewRouter assembles the chi router with the full middleware chain and all
// route groups.
func NewRouter(deps RouterDeps) (chi.Router, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	orderHandler, err := NewOrderHandler(OrderHandlerDeps{Orders: deps.Orders})
	if err != nil {
		return nil, err
	}
	adminHandler, err := NewAdminOrderHandler(AdminOrderHandlerDeps{
		Orders:    deps.Orders,
		AuditLogs: deps.AuditLogs,
	})
	if err != nil {
		return nil, err
	}
	webhookHandler, err := NewWebhookHandler(WebhookHandlerDeps{Confirmations: deps.Confirmations})
	if err != nil {
		return nil, err
	}
	healthHandler, err := NewHealthHandler(HealthHandlerDeps{Health: deps.Health})
	if err != nil {
		return nil, err
	}
	if deps.WebhookVerifier == nil {
		return nil, errors.New("router: webhook verifier is required")
	}
	if deps.OwnerVerifier == nil {
		return nil, errors.New("router: owner verifier is required")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.InjectLoggerMiddleware(logger))
	r.Use(observability.TraceMiddleware(deps.ProjectID))
	r.Use(observability.RequestLoggerMiddleware())
	r.Use(observability.RecoveryMiddleware(logger))
	r.Use(middleware.Timeout(timeout))

	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Use(auth.RequireCustomer(deps.CustomerVerifier))
			r.Get("/", orderHandler.List)
			r.Get("/{orderID}", orderHandler.Get)
		})

		r.Route("/admin/orders", func(r chi.Router) {
			r.Use(auth.RequireOwner(deps.OwnerVerifier))
			r.Use(idempotency.Middleware(deps.IdempotencyStore,
				idempotency.WithOptionalKey(),
				idempotency.WithMethods(http.MethodPost, http.MethodDelete),
			))
			r.Get("/", adminHandler.List)
			r.Get("/{orderID}", adminHandler.Get)
			r.Post("/{orderID}/actions", adminHandler.Action)
			r.Delete("/{orderID}", adminHandler.Delete)
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Use(deps.WebhookVerifier.RequireSignature(deps.WebhookSecret))
			r.Use(idempotency.Middleware(deps.IdempotencyStore, idempotency.WithOptionalKey()))
			r.Post("/payments", webhookHandler.HandlePaymentConfirmed)
		})
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_found", "resource not found", http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", "method not allowed", http.StatusMethodNotAllowed))
	})

	return r, nil
}
