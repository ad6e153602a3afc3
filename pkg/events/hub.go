// Package events provides a small publish/subscribe hub for daemon
// events. Publishing never blocks: slow subscribers lose events rather
// than stalling the battery monitor.
package events

import (
	"encoding/json"
	"sync"
)

// Hub fans events out to subscribers. A nil *Hub is valid and discards
// every publish, so components can treat the hub as optional.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe returns a buffered channel receiving future events. The
// caller must Unsubscribe when done.
func (h *Hub) Subscribe() chan Event {
	ch := make(chan Event, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes the channel. Unknown channels are
// ignored, so double-unsubscribe is safe.
func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Publish marshals payload and delivers the event to every subscriber
// whose buffer has room.
func (h *Hub) Publish(name string, payload any) {
	if h == nil {
		return
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := Event{Name: name, Data: b}

	h.mu.RLock()
	for ch := range h.subs {
		select {
		case ch <- msg:
		default: // subscriber too slow, drop
		}
	}
	h.mu.RUnlock()
}
