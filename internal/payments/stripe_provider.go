package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"go.uber.org/zap"
)

type stripePaymentIntentAPI interface {
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeRefundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

type stripeClients struct {
	intents stripePaymentIntentAPI
	refunds stripeRefundAPI
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey   string
	Backends *stripe.Backends
	Logger   *zap.Logger
	Clients  *stripeClients
}

// StripeProvider implements the Provider interface using Stripe APIs.
type StripeProvider struct {
	api    stripeClients
	logger *zap.Logger
}

// NewStripeProvider constructs a Stripe Provider using the given configuration.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			intents: sc.PaymentIntents,
			refunds: sc.Refunds,
		}
	}
	if clients.intents == nil || clients.refunds == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StripeProvider{api: clients, logger: logger}, nil
}

// Refund creates a refund against the provided Payment Intent and returns the
// refreshed payment details.
func (p *StripeProvider) Refund(ctx context.Context, req RefundRequest) (PaymentDetails, error) {
	if p == nil {
		return PaymentDetails{}, errors.New("stripe: provider is nil")
	}
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.IntentID),
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if req.Amount != nil {
		params.Amount = stripe.Int64(*req.Amount)
	}
	if reason := mapStripeRefundReason(req.Reason); reason != "" {
		params.Reason = stripe.String(reason)
	}
	if len(req.Metadata) > 0 {
		params.Metadata = make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			params.Metadata[k] = v
		}
	}
	refund, err := p.api.refunds.New(params)
	if err != nil {
		return PaymentDetails{}, fmt.Errorf("stripe: refund payment intent: %w", err)
	}
	p.logger.Info("stripe refund created",
		zap.String("payment_intent", req.IntentID),
		zap.String("refund_id", refund.ID),
	)
	return p.LookupPayment(ctx, LookupRequest{IntentID: req.IntentID})
}

// LookupPayment retrieves a Stripe Payment Intent.
func (p *StripeProvider) LookupPayment(ctx context.Context, req LookupRequest) (PaymentDetails, error) {
	if p == nil {
		return PaymentDetails{}, errors.New("stripe: provider is nil")
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := p.api.intents.Get(req.IntentID, params)
	if err != nil {
		return PaymentDetails{}, fmt.Errorf("stripe: lookup payment intent: %w", err)
	}
	return stripePaymentDetails(intent), nil
}

func stripePaymentDetails(intent *stripe.PaymentIntent) PaymentDetails {
	if intent == nil {
		return PaymentDetails{}
	}

	status := StatusPending
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		status = StatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		status = StatusFailed
	}

	var capturedAt *time.Time
	var refundedAt *time.Time
	captured := intent.Status == stripe.PaymentIntentStatusSucceeded

	if charge := intent.LatestCharge; charge != nil {
		if charge.Paid || charge.Captured {
			t := time.Unix(charge.Created, 0).UTC()
			capturedAt = &t
			captured = true
		}
		if charge.Refunded || charge.AmountRefunded > 0 {
			t := time.Unix(charge.Created, 0).UTC()
			refundedAt = &t
			if charge.AmountRefunded >= charge.Amount && charge.Amount > 0 {
				status = StatusRefunded
			}
		}
	}

	currency := strings.ToUpper(string(intent.Currency))
	if currency == "" && intent.LatestCharge != nil {
		currency = strings.ToUpper(string(intent.LatestCharge.Currency))
	}

	raw := map[string]any{}
	if data, err := json.Marshal(intent); err == nil {
		_ = json.Unmarshal(data, &raw)
	}

	return PaymentDetails{
		Provider:   "stripe",
		IntentID:   intent.ID,
		Status:     status,
		Amount:     intent.Amount,
		Currency:   currency,
		Captured:   captured,
		CapturedAt: capturedAt,
		RefundedAt: refundedAt,
		Raw:        raw,
	}
}

func mapStripeRefundReason(reason string) string {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case string(stripe.RefundReasonDuplicate):
		return string(stripe.RefundReasonDuplicate)
	case string(stripe.RefundReasonFraudulent):
		return string(stripe.RefundReasonFraudulent)
	case string(stripe.RefundReasonRequestedByCustomer):
		return string(stripe.RefundReasonRequestedByCustomer)
	default:
		return ""
	}
}
