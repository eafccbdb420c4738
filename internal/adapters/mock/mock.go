// Package mock implements ports.Exchange against in-memory state. It
// backs offline runs (-mock) and the engine test suites: prices are set
// by hand, orders rest until cancelled, and balances are enforced the
// way a real venue would.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/gridbot/internal/domain"
	"github.com/alejandrodnm/gridbot/internal/ports"
)

// Exchange is an in-memory spot exchange.
type Exchange struct {
	mu       sync.RWMutex
	products []domain.Product
	prices   map[string]float64
	balances map[string]float64
	orders   map[string]domain.Order
	fills    []domain.Fill
	candles  map[string][]domain.Candle

	// tickInterval drives StreamTicker. Tests shrink it.
	tickInterval time.Duration
}

// New returns a mock exchange seeded with a small product set and
// comfortable balances.
func New() *Exchange {
	return &Exchange{
		products: []domain.Product{
			{ID: "BTC-USD", Base: "BTC", Quote: "USD", Volume24h: 1.2e9, Status: "online"},
			{ID: "ETH-USD", Base: "ETH", Quote: "USD", Volume24h: 6.4e8, Status: "online"},
			{ID: "SOL-USD", Base: "SOL", Quote: "USD", Volume24h: 2.1e8, Status: "online"},
		},
		prices: map[string]float64{
			"BTC-USD": 60000,
			"ETH-USD": 3000,
			"SOL-USD": 150,
		},
		balances: map[string]float64{
			"USD": 100000,
			"BTC": 1,
			"ETH": 10,
			"SOL": 100,
		},
		orders:       make(map[string]domain.Order),
		candles:      make(map[string][]domain.Candle),
		tickInterval: time.Second,
	}
}

// SetPrice moves a product's last price.
func (e *Exchange) SetPrice(productID string, price float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prices[productID] = price
}

// SetBalance overrides one currency balance.
func (e *Exchange) SetBalance(currency string, amount float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.balances[currency] = amount
}

// SetCandles installs the bars GetCandles will serve for a product.
func (e *Exchange) SetCandles(productID string, candles []domain.Candle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.candles[productID] = candles
}

// SetTickInterval changes the StreamTicker cadence.
func (e *Exchange) SetTickInterval(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickInterval = d
}

func (e *Exchange) GetProducts(ctx context.Context) ([]domain.Product, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.Product, len(e.products))
	copy(out, e.products)
	return out, nil
}

func (e *Exchange) GetTicker(ctx context.Context, productID string) (float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.prices[productID]
	if !ok {
		return 0, fmt.Errorf("mock.GetTicker: %q: %w", productID, ports.ErrNotFound)
	}
	return p, nil
}

func (e *Exchange) GetBalances(ctx context.Context) (map[string]float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]float64, len(e.balances))
	for k, v := range e.balances {
		out[k] = v
	}
	return out, nil
}

func (e *Exchange) PlaceLimitOrder(ctx context.Context, productID string, side domain.Side, price, size float64, postOnly bool) (string, error) {
	if price <= 0 || size <= 0 {
		return "", fmt.Errorf("mock.PlaceLimitOrder: price=%v size=%v: %w", price, size, ports.ErrInvalidSize)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.prices[productID]; !ok {
		return "", fmt.Errorf("mock.PlaceLimitOrder: %q: %w", productID, ports.ErrNotFound)
	}

	base, quote := splitProduct(productID)
	switch side {
	case domain.SideBuy:
		if e.balances[quote] < price*size {
			return "", fmt.Errorf("mock.PlaceLimitOrder: need %.2f %s: %w", price*size, quote, ports.ErrInsufficientFunds)
		}
		e.balances[quote] -= price * size
	case domain.SideSell:
		if e.balances[base] < size {
			return "", fmt.Errorf("mock.PlaceLimitOrder: need %v %s: %w", size, base, ports.ErrInsufficientFunds)
		}
		e.balances[base] -= size
	}

	id := "mock_" + uuid.NewString()
	e.orders[id] = domain.Order{
		ID:        id,
		MarketID:  productID,
		Side:      side,
		Price:     price,
		Size:      size,
		Status:    domain.OrderStatusOpen,
		CreatedAt: time.Now().UTC(),
	}
	return id, nil
}

func (e *Exchange) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.orders[orderID]
	if !ok || o.Status != domain.OrderStatusOpen {
		return false, nil
	}

	base, quote := splitProduct(o.MarketID)
	if o.Side == domain.SideBuy {
		e.balances[quote] += o.Price * o.Size
	} else {
		e.balances[base] += o.Size
	}

	o.Status = domain.OrderStatusCanceled
	e.orders[orderID] = o
	return true, nil
}

func (e *Exchange) ListOpenOrders(ctx context.Context, productID string) ([]domain.Order, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []domain.Order
	for _, o := range e.orders {
		if o.Status != domain.OrderStatusOpen {
			continue
		}
		if productID != "" && o.MarketID != productID {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (e *Exchange) GetFills(ctx context.Context, since string) ([]domain.Fill, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var cursor time.Time
	if since != "" {
		cursor, _ = time.Parse(time.RFC3339, since)
	}

	var out []domain.Fill
	for _, f := range e.fills {
		if f.Timestamp.After(cursor) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (e *Exchange) GetCandles(ctx context.Context, productID string, start, end int64, granularity string) ([]domain.Candle, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []domain.Candle
	for _, c := range e.candles[productID] {
		if c.Start >= start && c.Start <= end {
			out = append(out, c)
		}
	}
	return out, nil
}

// StreamTicker emits a slightly wiggled price for every product at the
// tick interval until ctx is cancelled. The wiggle (±0.05%) keeps
// downstream consumers honest about prices that never sit still.
func (e *Exchange) StreamTicker(ctx context.Context, productIDs []string, fn ports.TickerFunc) error {
	e.mu.RLock()
	interval := e.tickInterval
	e.mu.RUnlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	up := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			up = !up
			wiggle := 1 - 0.0005
			if up {
				wiggle = 1 + 0.0005
			}
			for _, id := range productIDs {
				e.mu.RLock()
				p, ok := e.prices[id]
				e.mu.RUnlock()
				if ok {
					fn(domain.TickerEvent{ProductID: id, Price: p * wiggle})
				}
			}
		}
	}
}

// StreamFills blocks until ctx is cancelled; the mock records fills
// only through MatchOpenOrders, which callers read back via GetFills.
func (e *Exchange) StreamFills(ctx context.Context, fn ports.FillFunc) error {
	<-ctx.Done()
	return ctx.Err()
}

// MatchOpenOrders fills every resting order the given price would
// cross, settles balances, and records the fills.
func (e *Exchange) MatchOpenOrders(productID string, price float64) []domain.Fill {
	e.mu.Lock()
	defer e.mu.Unlock()

	base, quote := splitProduct(productID)
	var out []domain.Fill
	for id, o := range e.orders {
		if o.Status != domain.OrderStatusOpen || o.MarketID != productID {
			continue
		}
		crossed := (o.Side == domain.SideBuy && price <= o.Price) ||
			(o.Side == domain.SideSell && price >= o.Price)
		if !crossed {
			continue
		}

		if o.Side == domain.SideBuy {
			e.balances[base] += o.Size
		} else {
			e.balances[quote] += o.Price * o.Size
		}

		o.Status = domain.OrderStatusFilled
		e.orders[id] = o

		f := domain.Fill{
			ID:        "mockfill_" + uuid.NewString(),
			OrderID:   o.ID,
			MarketID:  o.MarketID,
			Side:      o.Side,
			Price:     o.Price,
			Size:      o.Size,
			Timestamp: time.Now().UTC(),
		}
		e.fills = append(e.fills, f)
		out = append(out, f)
	}
	return out
}

func splitProduct(productID string) (base, quote string) {
	for i := 0; i < len(productID); i++ {
		if productID[i] == '-' {
			return productID[:i], productID[i+1:]
		}
	}
	return productID, "USD"
}
