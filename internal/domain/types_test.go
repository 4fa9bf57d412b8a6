package domain

import (
	"testing"
	"time"
)

func TestAppendEventClampsEarlierTimestamps(t *testing.T) {
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	var order Order
	order.AppendEvent(OrderEvent{ID: "evt_1", Type: "created", CreatedAt: base})
	order.AppendEvent(OrderEvent{ID: "evt_2", Type: "paid", CreatedAt: base.Add(-time.Minute)})
	order.AppendEvent(OrderEvent{ID: "evt_3", Type: "updated", CreatedAt: base.Add(time.Minute)})

	if got := order.Events[1].CreatedAt; !got.Equal(base) {
		t.Fatalf("regressing timestamp = %v, want clamped to %v", got, base)
	}
	if got := order.Events[2].CreatedAt; !got.Equal(base.Add(time.Minute)) {
		t.Fatalf("advancing timestamp = %v, want left at %v", got, base.Add(time.Minute))
	}

	last, ok := order.LastEvent()
	if !ok || last.ID != "evt_3" {
		t.Fatalf("LastEvent = %+v (%v), want evt_3", last, ok)
	}
}
