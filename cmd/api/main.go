package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/noirthread/storefront-api/internal/handlers"
	"github.com/noirthread/storefront-api/internal/payments"
	"github.com/noirthread/storefront-api/internal/platform/auth"
	"github.com/noirthread/storefront-api/internal/platform/config"
	pfirestore "github.com/noirthread/storefront-api/internal/platform/firestore"
	"github.com/noirthread/storefront-api/internal/platform/idempotency"
	"github.com/noirthread/storefront-api/internal/platform/jobs"
	"github.com/noirthread/storefront-api/internal/platform/observability"
	"github.com/noirthread/storefront-api/internal/platform/secrets"
	"github.com/noirthread/storefront-api/internal/repositories"
	firestorerepo "github.com/noirthread/storefront-api/internal/repositories/firestore"
	"github.com/noirthread/storefront-api/internal/repositories/memory"
	"github.com/noirthread/storefront-api/internal/services"
)

// version is stamped at build time via -ldflags.
var version = "dev"

const (
	webhookSecretName = "payment-webhook"
	shutdownTimeout   = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "storefront-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := observability.NewLogger()
	if err != nil {
		return fmt.Errorf("initialise logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	fetcher, err := secrets.NewFetcher(ctx, secrets.WithLogger(logger))
	var resolver config.SecretResolver
	if err != nil {
		logger.Warn("secret manager unavailable, secret:// references will fail", zap.Error(err))
	} else {
		defer func() { _ = fetcher.Close() }()
		resolver = config.SecretResolverFunc(fetcher.Resolve)
	}

	cfg, err := config.Load(ctx, config.WithSecretResolver(resolver))
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if cfg.Webhooks.SigningSecret == "" {
		return errors.New("webhook signing secret is required")
	}
	if cfg.Security.OwnerJWTSecret == "" {
		return errors.New("owner jwt secret is required")
	}

	logger.Info("starting storefront-api",
		zap.String("version", version),
		zap.String("environment", cfg.Environment),
	)

	var (
		registry          repositories.Registry
		firestoreProvider *pfirestore.Provider
	)
	if cfg.Firestore.ProjectID != "" {
		provider := pfirestore.NewProvider(pfirestore.Settings{
			ProjectID:    cfg.Firestore.ProjectID,
			DatabaseID:   cfg.Firestore.DatabaseID,
			EmulatorHost: cfg.Firestore.EmulatorHost,
		})
		fsRegistry, err := firestorerepo.NewRegistry(provider, firestorerepo.RegistrySettings{
			Version:     version,
			Environment: cfg.Environment,
		})
		if err != nil {
			return fmt.Errorf("initialise firestore registry: %w", err)
		}
		registry = fsRegistry
		firestoreProvider = provider
	} else {
		logger.Warn("firestore project not configured, using in-memory store")
		memRegistry, err := memory.NewRegistry(version, cfg.Environment)
		if err != nil {
			return fmt.Errorf("initialise memory registry: %w", err)
		}
		registry = memRegistry
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := registry.Close(shutdownCtx); err != nil {
			logger.Warn("registry close failed", zap.Error(err))
		}
	}()

	var publisher services.OrderEventPublisher
	if cfg.PubSub.ProjectID != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return fmt.Errorf("initialise pubsub client: %w", err)
		}
		defer func() { _ = client.Close() }()

		pub, err := jobs.NewPubSubOrderEventPublisher(client.Topic(cfg.PubSub.OrderEventTopic))
		if err != nil {
			return fmt.Errorf("initialise order event publisher: %w", err)
		}
		publisher = pub
	} else {
		logger.Warn("pubsub project not configured, order events will not be published")
	}

	refunder, err := buildPaymentRefunder(ctx, cfg, logger)
	if err != nil {
		return err
	}

	ids := services.NewULIDGenerator(nil)

	security, err := services.NewPaymentSecurityService(services.PaymentSecurityDeps{
		Orders:        registry.Orders(),
		SigningSecret: cfg.Webhooks.SigningSecret,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("initialise payment security service: %w", err)
	}
	counters, err := services.NewCounterService(services.CounterServiceDeps{
		Repository: registry.Counters(),
	})
	if err != nil {
		return fmt.Errorf("initialise counter service: %w", err)
	}
	confirmations, err := services.NewConfirmationService(services.ConfirmationServiceDeps{
		Security:  security,
		Counters:  counters,
		Orders:    registry.Orders(),
		Publisher: publisher,
		IDs:       ids,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("initialise confirmation service: %w", err)
	}
	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:    registry.Orders(),
		Payments:  refunder,
		Publisher: publisher,
		IDs:       ids,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("initialise order service: %w", err)
	}
	auditLogs, err := services.NewAuditLogService(services.AuditLogServiceDeps{
		Repository: registry.AuditLogs(),
		IDs:        ids,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("initialise audit log service: %w", err)
	}

	ownerVerifier, err := auth.NewOwnerVerifier([]byte(cfg.Security.OwnerJWTSecret))
	if err != nil {
		return fmt.Errorf("initialise owner verifier: %w", err)
	}
	var customerVerifier auth.TokenVerifier
	if cfg.Firebase.ProjectID != "" {
		fv, err := auth.NewFirebaseVerifier(ctx, auth.FirebaseSettings{
			ProjectID:       cfg.Firebase.ProjectID,
			CredentialsFile: cfg.Firebase.CredentialsFile,
		})
		if err != nil {
			return fmt.Errorf("initialise firebase verifier: %w", err)
		}
		customerVerifier = fv
	} else {
		logger.Warn("firebase project not configured, customer routes will answer 503")
	}
	webhookVerifier := auth.NewWebhookVerifier(
		auth.SecretProviderFunc(func(context.Context, string) (string, error) {
			return cfg.Webhooks.SigningSecret, nil
		}),
		auth.NewInMemoryNonceStore(),
		auth.WithWebhookHeaders(cfg.Webhooks.SignatureHeader, cfg.Webhooks.NonceHeader),
		auth.WithWebhookNonceTTL(cfg.Webhooks.NonceTTL),
	)

	var idemStore idempotency.Store = idempotency.NewMemoryStore()
	if firestoreProvider != nil {
		client, err := firestoreProvider.Client(ctx)
		if err != nil {
			return fmt.Errorf("initialise firestore client for idempotency: %w", err)
		}
		idemStore = idempotency.NewFirestoreStore(client)
	}

	router, err := handlers.NewRouter(handlers.RouterDeps{
		Logger:           logger,
		ProjectID:        cfg.Firestore.ProjectID,
		Orders:           orders,
		Confirmations:    confirmations,
		AuditLogs:        auditLogs,
		Health:           registry.Health(),
		OwnerVerifier:    ownerVerifier,
		CustomerVerifier: customerVerifier,
		WebhookVerifier:  webhookVerifier,
		WebhookSecret:    webhookSecretName,
		IdempotencyStore: idemStore,
	})
	if err != nil {
		return fmt.Errorf("assemble router: %w", err)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// buildPaymentRefunder assembles the payments manager from configured PSP
// credentials. With no credentials present, provider-driven refunds are
// disabled and refunds are recorded locally only.
func buildPaymentRefunder(ctx context.Context, cfg config.Config, logger *zap.Logger) (services.PaymentRefunder, error) {
	providers := make(map[string]payments.Provider)

	if cfg.PSP.StripeAPIKey != "" {
		stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey: cfg.PSP.StripeAPIKey,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("initialise stripe provider: %w", err)
		}
		providers["stripe"] = stripeProvider
	}
	if cfg.PSP.PayPalClientID != "" && cfg.PSP.PayPalSecret != "" {
		paypalProvider, err := payments.NewPayPalProvider(ctx, payments.PayPalProviderConfig{
			ClientID: cfg.PSP.PayPalClientID,
			Secret:   cfg.PSP.PayPalSecret,
			Sandbox:  cfg.PSP.PayPalSandbox,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("initialise paypal provider: %w", err)
		}
		providers["paypal"] = paypalProvider
	}

	if len(providers) == 0 {
		logger.Warn("no payment providers configured, provider refunds disabled")
		return nil, nil
	}

	manager, err := payments.NewManager(providers)
	if err != nil {
		return nil, fmt.Errorf("initialise payments manager: %w", err)
	}
	return &managerRefunder{manager: manager}, nil
}

// managerRefunder adapts the payments manager to the narrow refund surface
// the order service depends on.
type managerRefunder struct {
	manager *payments.Manager
}

func (r *managerRefunder) Refund(ctx context.Context, provider string, req services.RefundProviderRequest) error {
	_, err := r.manager.Refund(ctx, provider, payments.RefundRequest{
		IntentID:       req.IntentID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
	})
	return err
}
