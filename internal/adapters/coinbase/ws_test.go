package coinbase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextBackoff_EscalatesAndCaps(t *testing.T) {
	flap := time.Second // every session dies quickly

	d := nextBackoff(0, flap)
	assert.Equal(t, wsInitialBackoff, d)

	d = nextBackoff(d, flap)
	assert.Equal(t, 2*time.Second, d)
	d = nextBackoff(d, flap)
	assert.Equal(t, 4*time.Second, d)

	for i := 0; i < 10; i++ {
		d = nextBackoff(d, flap)
	}
	assert.Equal(t, wsMaxBackoff, d, "escalation stops at the cap")
}

func TestNextBackoff_HealthySessionResets(t *testing.T) {
	d := wsMaxBackoff // fully escalated from an earlier flap

	d = nextBackoff(d, 2*time.Hour)
	assert.Equal(t, wsInitialBackoff, d, "a long-lived connection starts the ladder over")

	// The next short-lived session escalates from the bottom again.
	d = nextBackoff(d, time.Second)
	assert.Equal(t, 2*wsInitialBackoff, d)
}
