package firestore

import (
	"context"
	"errors"
	"testing"
	"time"

	pfirestore "github.com/noirthread/storefront-api/internal/platform/firestore"
	"github.com/noirthread/storefront-api/internal/repositories"
)

var counterTestNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func TestAdvanceCounterIncrementsExistingValue(t *testing.T) {
	doc := counterDocument{
		CurrentValue: 1,
		Step:         1,
		UpdatedAt:    counterTestNow.Add(-time.Hour),
	}

	for want := int64(2); want <= 4; want++ {
		next, err := advanceCounter("TSHIRT", doc, 0, counterTestNow)
		if err != nil {
			t.Fatalf("advanceCounter to %d: %v", want, err)
		}
		if next.CurrentValue != want {
			t.Fatalf("CurrentValue = %d, want %d", next.CurrentValue, want)
		}
		if !next.UpdatedAt.Equal(counterTestNow) {
			t.Fatalf("UpdatedAt = %v, want %v", next.UpdatedAt, counterTestNow)
		}
		doc = next
	}
}

func TestAdvanceCounterDefaultsStep(t *testing.T) {
	next, err := advanceCounter("CAP", counterDocument{CurrentValue: 7}, 0, counterTestNow)
	if err != nil {
		t.Fatalf("advanceCounter: %v", err)
	}
	if next.CurrentValue != 8 || next.Step != 1 {
		t.Fatalf("CurrentValue/Step = %d/%d, want 8/1", next.CurrentValue, next.Step)
	}
}

func TestAdvanceCounterPreservesMaxValue(t *testing.T) {
	max := int64(100)
	next, err := advanceCounter("HOODIE", counterDocument{CurrentValue: 3, Step: 1, MaxValue: &max}, 0, counterTestNow)
	if err != nil {
		t.Fatalf("advanceCounter: %v", err)
	}
	if next.MaxValue == nil || *next.MaxValue != max {
		t.Fatalf("MaxValue = %v, want %d retained", next.MaxValue, max)
	}
}

func TestAdvanceCounterReportsExhaustion(t *testing.T) {
	max := int64(2)
	_, err := advanceCounter("HOODIE", counterDocument{CurrentValue: 2, Step: 1, MaxValue: &max}, 0, counterTestNow)

	var counterErr *repositories.CounterError
	if !errors.As(err, &counterErr) || counterErr.Code != repositories.CounterErrorExhausted {
		t.Fatalf("err = %v, want exhausted counter error", err)
	}
}

func TestNextValidatesInput(t *testing.T) {
	repo, err := NewCounterRepository(pfirestore.NewProvider(pfirestore.Settings{ProjectID: "test"}))
	if err != nil {
		t.Fatalf("NewCounterRepository: %v", err)
	}

	cases := []struct {
		name string
		id   string
		step int64
	}{
		{"empty id", "   ", 1},
		{"negative step", "TSHIRT", -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := repo.Next(context.Background(), tc.id, tc.step)
			var counterErr *repositories.CounterError
			if !errors.As(err, &counterErr) || counterErr.Code != repositories.CounterErrorInvalidInput {
				t.Fatalf("err = %v, want invalid input counter error", err)
			}
		})
	}
}
