// Package telemetry fans engine events out to UI subscribers (status
// pages, dashboards). Publishing never blocks the trading path: slow
// subscribers drop events.
package telemetry

import (
	"sync"

	"github.com/alejandrodnm/gridbot/internal/ports"
)

const subscriberBuffer = 64

// Hub implements ports.Broadcaster.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan ports.Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan ports.Event]struct{})}
}

// Subscribe registers a new subscriber. Call the returned cancel func
// to unsubscribe; the channel is closed by cancel.
func (h *Hub) Subscribe() (<-chan ports.Event, func()) {
	ch := make(chan ports.Event, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers e to every subscriber with room in its buffer.
func (h *Hub) Publish(e ports.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
