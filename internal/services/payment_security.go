package services

import (
	"context"
	"crypto/hmac"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noirthread/storefront-api/internal/platform/auth"
	"github.com/noirthread/storefront-api/internal/repositories"
)

const (
	// maxPaymentAmount caps a single payment at 999,999.99 in major units.
	maxPaymentAmount = int64(99_999_999)

	velocityWindow    = 10 * time.Minute
	velocityThreshold = 5
	deviationFactor   = 10
)

var (
	// ErrAmountInvalid indicates the payment amount is outside the accepted range.
	ErrAmountInvalid = errors.New("payment: invalid amount")
	// ErrCurrencyUnsupported indicates the currency is not on the allow-list.
	ErrCurrencyUnsupported = errors.New("payment: unsupported currency")
)

var supportedCurrencies = map[string]struct{}{
	"USD": {}, "EUR": {}, "GBP": {}, "JPY": {}, "CAD": {}, "AUD": {},
}

// PaymentSecurityDeps bundles constructor inputs for the payment security service.
type PaymentSecurityDeps struct {
	Orders        repositories.OrderRepository
	SigningSecret string
	Logger        *zap.Logger
	Clock         func() time.Time
}

type paymentSecurityService struct {
	orders repositories.OrderRepository
	secret []byte
	logger *zap.Logger
	clock  func() time.Time
}

// NewPaymentSecurityService constructs the pre-persistence payment validator.
func NewPaymentSecurityService(deps PaymentSecurityDeps) (PaymentSecurityService, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment security service: order repository is required")
	}
	if strings.TrimSpace(deps.SigningSecret) == "" {
		return nil, errors.New("payment security service: signing secret is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &paymentSecurityService{
		orders: deps.Orders,
		secret: []byte(deps.SigningSecret),
		logger: logger,
		clock:  func() time.Time { return clock().UTC() },
	}, nil
}

// ValidateAmount accepts strictly positive amounts up to 999,999.99 major units.
func (s *paymentSecurityService) ValidateAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %d", ErrAmountInvalid, amount)
	}
	if amount > maxPaymentAmount {
		return fmt.Errorf("%w: amount %d exceeds maximum %d", ErrAmountInvalid, amount, maxPaymentAmount)
	}
	return nil
}

// ValidateCurrency accepts only the storefront's settlement currencies.
func (s *paymentSecurityService) ValidateCurrency(code string) error {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if _, ok := supportedCurrencies[normalized]; !ok {
		return fmt.Errorf("%w: %q", ErrCurrencyUnsupported, code)
	}
	return nil
}

// VerifyWebhookSignature checks the HMAC-SHA256 signature over the raw
// payload using a constant-time compare. It never errors; a malformed
// signature simply fails verification.
func (s *paymentSecurityService) VerifyWebhookSignature(payload []byte, signature string) bool {
	provided, err := auth.DecodeSignature(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	expected := auth.ComputeSignature(s.secret, payload)
	return hmac.Equal(expected, provided)
}

// CheckDuplicatePayment reports whether orders already reference the
// transaction id, returning them for idempotent replay.
func (s *paymentSecurityService) CheckDuplicatePayment(ctx context.Context, transactionID string) ([]Order, bool, error) {
	txID := strings.TrimSpace(transactionID)
	if txID == "" {
		return nil, false, fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}
	existing, err := s.orders.FindByTransactionID(ctx, txID)
	if err != nil {
		return nil, false, mapRepositoryError(err)
	}
	return existing, len(existing) > 0, nil
}

// CheckSuspiciousActivity applies velocity and deviation heuristics over the
// customer's payment history. Flags are informational only and never block a
// payment.
func (s *paymentSecurityService) CheckSuspiciousActivity(userID string, amount int64, history []PaymentRecordSummary) []SuspiciousFlag {
	var flags []SuspiciousFlag
	now := s.clock()

	recent := 0
	cutoff := now.Add(-velocityWindow)
	for _, record := range history {
		if record.OccurredAt.After(cutoff) {
			recent++
		}
	}
	if recent > velocityThreshold {
		flags = append(flags, SuspiciousFlag{
			Code:   "velocity",
			Detail: fmt.Sprintf("%d payments within %s", recent, velocityWindow),
		})
	}

	if len(history) > 0 {
		var sum int64
		for _, record := range history {
			sum += record.Amount
		}
		average := sum / int64(len(history))
		if average > 0 && amount > average*deviationFactor {
			flags = append(flags, SuspiciousFlag{
				Code:   "amount_deviation",
				Detail: fmt.Sprintf("amount %d exceeds %dx trailing average %d", amount, deviationFactor, average),
			})
		}
	}

	if len(flags) > 0 {
		s.logger.Warn("suspicious payment activity",
			zap.String("user_id", userID),
			zap.Int64("amount", amount),
			zap.Int("flags", len(flags)),
		)
	}
	return flags
}
