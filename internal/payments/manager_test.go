package payments

import (
	"context"
	"errors"
	"testing"
)

type fakeProvider struct {
	lastOp  string
	payment PaymentDetails
	err     error
}

func (f *fakeProvider) Refund(ctx context.Context, req RefundRequest) (PaymentDetails, error) {
	f.lastOp = "refund"
	return f.payment, f.err
}

func (f *fakeProvider) LookupPayment(ctx context.Context, req LookupRequest) (PaymentDetails, error) {
	f.lastOp = "lookup"
	return f.payment, f.err
}

func TestManagerRefundUsesNamedProvider(t *testing.T) {
	ctx := context.Background()
	stripe := &fakeProvider{payment: PaymentDetails{IntentID: "pi_1"}}
	pp := &fakeProvider{payment: PaymentDetails{IntentID: "ORDER-1"}}

	mgr, err := NewManager(map[string]Provider{
		"stripe": stripe,
		"paypal": pp,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	details, err := mgr.Refund(ctx, "paypal", RefundRequest{IntentID: "ORDER-1"})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if details.Provider != "paypal" {
		t.Fatalf("expected provider 'paypal', got %q", details.Provider)
	}
	if pp.lastOp != "refund" {
		t.Fatalf("expected paypal provider to handle call")
	}
	if stripe.lastOp != "" {
		t.Fatalf("expected stripe provider to remain unused")
	}
}

func TestManagerFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	stripe := &fakeProvider{payment: PaymentDetails{IntentID: "pi_123"}}

	mgr, err := NewManager(map[string]Provider{"stripe": stripe, "paypal": &fakeProvider{}})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	details, err := mgr.LookupPayment(ctx, "", LookupRequest{IntentID: "pi_123"})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if stripe.lastOp != "lookup" {
		t.Fatalf("expected lookup to invoke default provider")
	}
	if details.Provider != "stripe" {
		t.Fatalf("unexpected provider in details: %q", details.Provider)
	}
}

func TestManagerUnsupportedProvider(t *testing.T) {
	ctx := context.Background()
	mgr, err := NewManager(map[string]Provider{"stripe": &fakeProvider{}})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	_, err = mgr.Refund(ctx, "unknown", RefundRequest{IntentID: "pi_1"})
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestNewManagerValidatesProviders(t *testing.T) {
	if _, err := NewManager(map[string]Provider{"bad": nil}); err == nil {
		t.Fatalf("expected error for nil provider")
	}
	if _, err := NewManager(nil); err == nil {
		t.Fatalf("expected error when providers empty")
	}
}

func TestMinorUnitFormatting(t *testing.T) {
	cases := []struct {
		amount   int64
		currency string
		want     string
	}{
		{12345, "USD", "123.45"},
		{100, "EUR", "1.00"},
		{5, "GBP", "0.05"},
		{5000, "JPY", "5000"},
	}
	for _, tc := range cases {
		if got := formatMinorUnits(tc.amount, tc.currency); got != tc.want {
			t.Fatalf("formatMinorUnits(%d, %s) = %q, want %q", tc.amount, tc.currency, got, tc.want)
		}
	}
}

func TestParseMinorUnits(t *testing.T) {
	cases := []struct {
		value    string
		currency string
		want     int64
	}{
		{"123.45", "USD", 12345},
		{"1.00", "EUR", 100},
		{"0.05", "GBP", 5},
		{"5000", "JPY", 5000},
		{"10.5", "USD", 1050},
		{"", "USD", 0},
	}
	for _, tc := range cases {
		if got := parseMinorUnits(tc.value, tc.currency); got != tc.want {
			t.Fatalf("parseMinorUnits(%q, %s) = %d, want %d", tc.value, tc.currency, got, tc.want)
		}
	}
}
