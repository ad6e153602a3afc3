package events

import (
	"testing"
	"time"
)

func TestHubPublishSubscribe(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe()
	defer h.Unsubscribe(sub)

	h.Publish(BatteryTransition, BatteryTransitionEvent{From: "normal", To: "warning", Level: 18})

	select {
	case ev := <-sub:
		if ev.Name != BatteryTransition {
			t.Fatalf("unexpected event name %q", ev.Name)
		}
		payload, err := DecodeAs[BatteryTransitionEvent](ev)
		if err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		if payload.To != "warning" || payload.Level != 18 {
			t.Fatalf("unexpected payload: %+v", payload)
		}
	case <-time.After(time.Second):
		t.Fatalf("did not receive event")
	}
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe()
	defer h.Unsubscribe(sub)

	// Overfill the subscriber buffer. Publish must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Publish(SearchStarted, SearchEvent{Session: "abc"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a slow subscriber")
	}
}

func TestHubNilSafePublish(t *testing.T) {
	var h *Hub
	h.Publish(BatteryCritical, BatteryTransitionEvent{Level: 5})
}

func TestHubDoubleUnsubscribe(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe()
	h.Unsubscribe(sub)
	h.Unsubscribe(sub)
}

func TestDecodeAsEmptyPayload(t *testing.T) {
	v, err := DecodeAs[SearchEvent](Event{Name: SearchFinished})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Found {
		t.Fatalf("expected zero value")
	}
}
