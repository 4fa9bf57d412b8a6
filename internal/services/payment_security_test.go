package services

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/noirthread/storefront-api/internal/platform/auth"
	"github.com/noirthread/storefront-api/internal/repositories/memory"
)

func newTestSecurityService(t *testing.T, clock func() time.Time) (PaymentSecurityService, *memory.OrderRepository) {
	t.Helper()
	repo := memory.NewOrderRepository()
	svc, err := NewPaymentSecurityService(PaymentSecurityDeps{
		Orders:        repo,
		SigningSecret: "whsec_test",
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("NewPaymentSecurityService: %v", err)
	}
	return svc, repo
}

func TestValidateAmount(t *testing.T) {
	svc, _ := newTestSecurityService(t, nil)

	cases := []struct {
		name    string
		amount  int64
		wantErr bool
	}{
		{name: "zero", amount: 0, wantErr: true},
		{name: "negative", amount: -500, wantErr: true},
		{name: "minimum", amount: 1},
		{name: "typical", amount: 24_900},
		{name: "maximum", amount: 99_999_999},
		{name: "over maximum", amount: 100_000_000, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.ValidateAmount(tc.amount)
			if tc.wantErr {
				if !errors.Is(err, ErrAmountInvalid) {
					t.Fatalf("ValidateAmount(%d) = %v, want ErrAmountInvalid", tc.amount, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateAmount(%d) = %v", tc.amount, err)
			}
		})
	}
}

func TestValidateCurrency(t *testing.T) {
	svc, _ := newTestSecurityService(t, nil)

	for _, code := range []string{"USD", "usd", " eur ", "JPY"} {
		if err := svc.ValidateCurrency(code); err != nil {
			t.Fatalf("ValidateCurrency(%q) = %v", code, err)
		}
	}
	for _, code := range []string{"", "BTC", "US"} {
		if err := svc.ValidateCurrency(code); !errors.Is(err, ErrCurrencyUnsupported) {
			t.Fatalf("ValidateCurrency(%q) = %v, want ErrCurrencyUnsupported", code, err)
		}
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	svc, _ := newTestSecurityService(t, nil)
	payload := []byte(`{"transactionId":"tx_123","status":"success"}`)
	digest := auth.ComputeSignature([]byte("whsec_test"), payload)

	if !svc.VerifyWebhookSignature(payload, hex.EncodeToString(digest)) {
		t.Fatal("hex signature rejected")
	}
	if !svc.VerifyWebhookSignature(payload, base64.StdEncoding.EncodeToString(digest)) {
		t.Fatal("base64 signature rejected")
	}
	if svc.VerifyWebhookSignature([]byte(`{"tampered":true}`), hex.EncodeToString(digest)) {
		t.Fatal("tampered payload accepted")
	}
	if svc.VerifyWebhookSignature(payload, "") {
		t.Fatal("empty signature accepted")
	}
	if svc.VerifyWebhookSignature(payload, "not-a-signature!") {
		t.Fatal("malformed signature accepted")
	}
}

func TestCheckDuplicatePayment(t *testing.T) {
	svc, repo := newTestSecurityService(t, nil)
	ctx := context.Background()

	order := testOrderFixture("ord_1", "HOODIE-0001")
	order.TransactionID = "tx_dup"
	if err := repo.Insert(ctx, order); err != nil {
		t.Fatalf("insert: %v", err)
	}

	existing, duplicate, err := svc.CheckDuplicatePayment(ctx, "tx_dup")
	if err != nil {
		t.Fatalf("CheckDuplicatePayment: %v", err)
	}
	if !duplicate || len(existing) != 1 {
		t.Fatalf("duplicate = %v with %d orders, want true with 1", duplicate, len(existing))
	}

	_, duplicate, err = svc.CheckDuplicatePayment(ctx, "tx_fresh")
	if err != nil {
		t.Fatalf("CheckDuplicatePayment: %v", err)
	}
	if duplicate {
		t.Fatal("fresh transaction reported as duplicate")
	}

	if _, _, err := svc.CheckDuplicatePayment(ctx, "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestCheckSuspiciousActivityVelocity(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestSecurityService(t, func() time.Time { return now })

	history := make([]PaymentRecordSummary, 0, 6)
	for i := 0; i < 6; i++ {
		history = append(history, PaymentRecordSummary{Amount: 10_000, OccurredAt: now.Add(-time.Duration(i) * time.Minute)})
	}

	flags := svc.CheckSuspiciousActivity("cust_1", 10_000, history)
	if len(flags) != 1 || flags[0].Code != "velocity" {
		t.Fatalf("flags = %+v, want single velocity flag", flags)
	}
}

func TestCheckSuspiciousActivityAmountDeviation(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestSecurityService(t, func() time.Time { return now })

	history := []PaymentRecordSummary{
		{Amount: 5_000, OccurredAt: now.Add(-24 * time.Hour)},
		{Amount: 7_000, OccurredAt: now.Add(-48 * time.Hour)},
	}

	flags := svc.CheckSuspiciousActivity("cust_1", 600_000, history)
	if len(flags) != 1 || flags[0].Code != "amount_deviation" {
		t.Fatalf("flags = %+v, want single amount_deviation flag", flags)
	}
}

func TestCheckSuspiciousActivityCleanHistory(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestSecurityService(t, func() time.Time { return now })

	history := []PaymentRecordSummary{
		{Amount: 20_000, OccurredAt: now.Add(-24 * time.Hour)},
	}
	if flags := svc.CheckSuspiciousActivity("cust_1", 25_000, history); len(flags) != 0 {
		t.Fatalf("flags = %+v, want none", flags)
	}
	if flags := svc.CheckSuspiciousActivity("cust_new", 25_000, nil); len(flags) != 0 {
		t.Fatalf("flags for empty history = %+v, want none", flags)
	}
}
