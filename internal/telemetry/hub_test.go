package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/gridbot/internal/ports"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	h := NewHub()

	ch1, cancel1 := h.Subscribe()
	defer cancel1()
	ch2, cancel2 := h.Subscribe()
	defer cancel2()

	h.Publish(ports.Event{Type: "PRICE_UPDATE", Data: 60000.0})

	e1 := <-ch1
	e2 := <-ch2
	assert.Equal(t, "PRICE_UPDATE", e1.Type)
	assert.Equal(t, "PRICE_UPDATE", e2.Type)
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe()
	defer cancel()

	// Overfill the buffer; Publish must return regardless.
	for i := 0; i < subscriberBuffer*2; i++ {
		h.Publish(ports.Event{Type: "FILL"})
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestCancelUnsubscribes(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe()
	cancel()
	cancel() // idempotent

	h.Publish(ports.Event{Type: "FILL"})

	_, open := <-ch
	require.False(t, open)
}
