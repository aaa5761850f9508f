// Package monitor serves live teleoperation state to websocket clients.
package monitor

import (
	"context"
	"encoding/json"
	"sync"
)

// Hub fans state snapshots out to subscribers. Slow subscribers drop
// messages instead of stalling the publisher.
type Hub struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan []byte]struct{})}
}

// Subscribe registers a new subscriber. The returned cancel function
// removes it and closes its channel.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 8)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Broadcast JSON-encodes v and sends it to every subscriber. Subscribers
// with a full buffer miss the message.
func (h *Hub) Broadcast(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- data:
		default:
			// Drop for slow clients
		}
	}
	return nil
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Pump re-broadcasts everything received on src until the context ends or
// src closes.
func (h *Hub) Pump(ctx context.Context, src <-chan any) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-src:
			if !ok {
				return
			}
			_ = h.Broadcast(v)
		}
	}
}
