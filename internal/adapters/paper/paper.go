// Package paper wraps a real exchange adapter for simulated trading:
// market data passes through, orders are intercepted and held in
// memory, and fills are produced synchronously by comparing resting
// orders against the live price. No request ever reaches the venue's
// order endpoints.
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/gridbot/internal/domain"
	"github.com/alejandrodnm/gridbot/internal/ports"
)

// paperBalance is the balance reported for every currency.
const paperBalance = 1e12

// Wrapper implements ports.Exchange and ports.FillChecker on top of a
// delegate that provides real market data.
type Wrapper struct {
	delegate ports.Exchange

	mu     sync.Mutex
	orders map[string]domain.Order
}

// New wraps the given adapter.
func New(delegate ports.Exchange) *Wrapper {
	return &Wrapper{
		delegate: delegate,
		orders:   make(map[string]domain.Order),
	}
}

// Market data passes straight through.

func (w *Wrapper) GetProducts(ctx context.Context) ([]domain.Product, error) {
	return w.delegate.GetProducts(ctx)
}

func (w *Wrapper) GetTicker(ctx context.Context, productID string) (float64, error) {
	return w.delegate.GetTicker(ctx, productID)
}

// GetBalances reports effectively unbounded balances: simulated orders
// must never be rejected for funds the paper account "lacks".
func (w *Wrapper) GetBalances(ctx context.Context) (map[string]float64, error) {
	real, err := w.delegate.GetBalances(ctx)
	if err != nil || len(real) == 0 {
		return map[string]float64{"USD": paperBalance}, nil
	}
	out := make(map[string]float64, len(real))
	for cur := range real {
		out[cur] = paperBalance
	}
	return out, nil
}

func (w *Wrapper) GetCandles(ctx context.Context, productID string, start, end int64, granularity string) ([]domain.Candle, error) {
	return w.delegate.GetCandles(ctx, productID, start, end, granularity)
}

func (w *Wrapper) StreamTicker(ctx context.Context, productIDs []string, fn ports.TickerFunc) error {
	return w.delegate.StreamTicker(ctx, productIDs, fn)
}

// PlaceLimitOrder records the order in memory and returns a synthetic
// id. Nothing is sent to the venue.
func (w *Wrapper) PlaceLimitOrder(ctx context.Context, productID string, side domain.Side, price, size float64, postOnly bool) (string, error) {
	if price <= 0 || size <= 0 {
		return "", fmt.Errorf("paper.PlaceLimitOrder: price=%v size=%v: %w", price, size, ports.ErrInvalidSize)
	}

	now := time.Now().UTC()
	id := fmt.Sprintf("paper_%d_%s", now.UnixMilli(), uuid.NewString()[:8])

	w.mu.Lock()
	w.orders[id] = domain.Order{
		ID:        id,
		MarketID:  productID,
		Side:      side,
		Price:     price,
		Size:      size,
		Status:    domain.OrderStatusOpen,
		CreatedAt: now,
	}
	w.mu.Unlock()
	return id, nil
}

// CancelOrder always succeeds in paper mode. Unknown ids were placed
// before a restart; the engine's database row is what matters.
func (w *Wrapper) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if o, ok := w.orders[orderID]; ok && o.Status == domain.OrderStatusOpen {
		o.Status = domain.OrderStatusCanceled
		w.orders[orderID] = o
	}
	return true, nil
}

func (w *Wrapper) ListOpenOrders(ctx context.Context, productID string) ([]domain.Order, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []domain.Order
	for _, o := range w.orders {
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

// GetFills returns nothing: paper fills are produced synchronously by
// CheckFills, never fetched from the venue.
func (w *Wrapper) GetFills(ctx context.Context, since string) ([]domain.Fill, error) {
	return nil, nil
}

// StreamFills blocks until cancelled for the same reason.
func (w *Wrapper) StreamFills(ctx context.Context, fn ports.FillFunc) error {
	<-ctx.Done()
	return ctx.Err()
}

// CheckFills matches the given OPEN orders against the current price: a
// BUY fills when price is at or below its limit, a SELL when price is
// at or above. Fills execute at the limit price with zero fee. Matched
// orders are marked filled in the wrapper's cache.
func (w *Wrapper) CheckFills(marketID string, currentPrice float64, orders []domain.Order) []domain.Fill {
	if currentPrice <= 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now().UTC()
	var out []domain.Fill
	for _, o := range orders {
		if o.MarketID != marketID || o.Status != domain.OrderStatusOpen {
			continue
		}
		crossed := (o.Side == domain.SideBuy && currentPrice <= o.Price) ||
			(o.Side == domain.SideSell && currentPrice >= o.Price)
		if !crossed {
			continue
		}

		if cached, ok := w.orders[o.ID]; ok {
			cached.Status = domain.OrderStatusFilled
			w.orders[o.ID] = cached
		}

		out = append(out, domain.Fill{
			ID:        fmt.Sprintf("paperfill_%d_%s", now.UnixMilli(), uuid.NewString()[:8]),
			OrderID:   o.ID,
			MarketID:  o.MarketID,
			Side:      o.Side,
			Price:     o.Price,
			Size:      o.Size,
			Fee:       0,
			Timestamp: now,
		})
	}
	return out
}
