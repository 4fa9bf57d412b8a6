package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/plutov/paypal/v4"
	"go.uber.org/zap"
)

type paypalAPI interface {
	GetOrder(ctx context.Context, orderID string) (*paypal.Order, error)
	RefundCapture(ctx context.Context, captureID string, req paypal.RefundCaptureRequest) (*paypal.RefundResponse, error)
}

// PayPalProviderConfig configures the PayPalProvider.
type PayPalProviderConfig struct {
	ClientID string
	Secret   string
	Sandbox  bool
	Logger   *zap.Logger
	Client   paypalAPI
}

// PayPalProvider implements the Provider interface using the PayPal Orders v2 API.
// Order payments reference the PayPal order ID as the intent ID.
type PayPalProvider struct {
	api    paypalAPI
	logger *zap.Logger
}

// NewPayPalProvider constructs a PayPal Provider and performs the initial
// access token exchange.
func NewPayPalProvider(ctx context.Context, cfg PayPalProviderConfig) (*PayPalProvider, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	api := cfg.Client
	if api == nil {
		clientID := strings.TrimSpace(cfg.ClientID)
		secret := strings.TrimSpace(cfg.Secret)
		if clientID == "" || secret == "" {
			return nil, errors.New("paypal: client id and secret are required")
		}
		base := paypal.APIBaseLive
		if cfg.Sandbox {
			base = paypal.APIBaseSandBox
		}
		client, err := paypal.NewClient(clientID, secret, base)
		if err != nil {
			return nil, fmt.Errorf("paypal: create client: %w", err)
		}
		if _, err := client.GetAccessToken(ctx); err != nil {
			return nil, fmt.Errorf("paypal: access token: %w", err)
		}
		api = client
	}

	return &PayPalProvider{api: api, logger: logger}, nil
}

// Refund refunds the capture attached to the PayPal order and returns the
// refreshed payment details.
func (p *PayPalProvider) Refund(ctx context.Context, req RefundRequest) (PaymentDetails, error) {
	if p == nil {
		return PaymentDetails{}, errors.New("paypal: provider is nil")
	}

	order, err := p.api.GetOrder(ctx, req.IntentID)
	if err != nil {
		return PaymentDetails{}, fmt.Errorf("paypal: get order: %w", err)
	}
	captureID := firstCaptureID(order)
	if captureID == "" {
		return PaymentDetails{}, fmt.Errorf("paypal: order %s has no captured payment", req.IntentID)
	}

	refundReq := paypal.RefundCaptureRequest{}
	if note := strings.TrimSpace(req.Reason); note != "" {
		refundReq.NoteToPayer = note
	}
	if req.Amount != nil {
		refundReq.Amount = &paypal.Money{
			Currency: strings.ToUpper(req.Currency),
			Value:    formatMinorUnits(*req.Amount, req.Currency),
		}
	}

	refund, err := p.api.RefundCapture(ctx, captureID, refundReq)
	if err != nil {
		return PaymentDetails{}, fmt.Errorf("paypal: refund capture: %w", err)
	}
	p.logger.Info("paypal refund created",
		zap.String("order_id", req.IntentID),
		zap.String("capture_id", captureID),
		zap.String("refund_id", refund.ID),
	)

	return p.LookupPayment(ctx, LookupRequest{IntentID: req.IntentID})
}

// LookupPayment retrieves a PayPal order and normalises it.
func (p *PayPalProvider) LookupPayment(ctx context.Context, req LookupRequest) (PaymentDetails, error) {
	if p == nil {
		return PaymentDetails{}, errors.New("paypal: provider is nil")
	}
	order, err := p.api.GetOrder(ctx, req.IntentID)
	if err != nil {
		return PaymentDetails{}, fmt.Errorf("paypal: get order: %w", err)
	}
	return paypalPaymentDetails(order), nil
}

func paypalPaymentDetails(order *paypal.Order) PaymentDetails {
	if order == nil {
		return PaymentDetails{}
	}

	status := StatusPending
	switch strings.ToUpper(order.Status) {
	case "COMPLETED":
		status = StatusSucceeded
	case "VOIDED":
		status = StatusFailed
	}

	var amount int64
	currency := ""
	if len(order.PurchaseUnits) > 0 && order.PurchaseUnits[0].Amount != nil {
		unit := order.PurchaseUnits[0].Amount
		currency = strings.ToUpper(unit.Currency)
		amount = parseMinorUnits(unit.Value, currency)
	}

	raw := map[string]any{}
	if data, err := json.Marshal(order); err == nil {
		_ = json.Unmarshal(data, &raw)
	}

	return PaymentDetails{
		Provider: "paypal",
		IntentID: order.ID,
		Status:   status,
		Amount:   amount,
		Currency: currency,
		Captured: status == StatusSucceeded,
		Raw:      raw,
	}
}

func firstCaptureID(order *paypal.Order) string {
	if order == nil {
		return ""
	}
	for _, unit := range order.PurchaseUnits {
		if unit.Payments == nil {
			continue
		}
		for _, capture := range unit.Payments.Captures {
			if capture.ID != "" {
				return capture.ID
			}
		}
	}
	return ""
}

// currencyExponent returns the number of decimal places PayPal expects for a
// currency. Zero-decimal currencies carry no fractional part.
func currencyExponent(currency string) int {
	switch strings.ToUpper(strings.TrimSpace(currency)) {
	case "JPY":
		return 0
	default:
		return 2
	}
}

func formatMinorUnits(amount int64, currency string) string {
	exp := currencyExponent(currency)
	if exp == 0 {
		return strconv.FormatInt(amount, 10)
	}
	divisor := int64(math.Pow10(exp))
	return fmt.Sprintf("%d.%0*d", amount/divisor, exp, amount%divisor)
}

func parseMinorUnits(value, currency string) int64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	exp := currencyExponent(currency)
	whole, frac, _ := strings.Cut(value, ".")
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0
	}
	for len(frac) < exp {
		frac += "0"
	}
	frac = frac[:exp]
	minor := units * int64(math.Pow10(exp))
	if frac != "" {
		fracUnits, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0
		}
		minor += fracUnits
	}
	return minor
}
