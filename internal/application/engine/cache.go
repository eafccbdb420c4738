package engine

import (
	"sync"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

// orderCache mirrors the OPEN orders the engine placed, keyed by order
// id. It saves a storage round-trip on the hot path and is rebuilt from
// storage whenever a market's orders are re-synced.
type orderCache struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

func newOrderCache() *orderCache {
	return &orderCache{orders: make(map[string]domain.Order)}
}

func (c *orderCache) Put(o domain.Order) {
	c.mu.Lock()
	c.orders[o.ID] = o
	c.mu.Unlock()
}

func (c *orderCache) Evict(id string) {
	c.mu.Lock()
	delete(c.orders, id)
	c.mu.Unlock()
}

// ForMarket returns the cached OPEN orders of one market.
func (c *orderCache) ForMarket(marketID string) []domain.Order {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []domain.Order
	for _, o := range c.orders {
		if o.MarketID == marketID && o.Status == domain.OrderStatusOpen {
			out = append(out, o)
		}
	}
	return out
}

// ReplaceMarket drops every cached order of the market and installs the
// given set.
func (c *orderCache) ReplaceMarket(marketID string, orders []domain.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, o := range c.orders {
		if o.MarketID == marketID {
			delete(c.orders, id)
		}
	}
	for _, o := range orders {
		c.orders[o.ID] = o
	}
}
