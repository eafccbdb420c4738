package engine

import (
	"context"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

// CatchUp scans recent one-minute candles for price excursions the
// ticker may have missed: a wick through a buy level fills it at the
// candle low, a wick through a sell level at the candle high. Fill
// handling is idempotent, so revisiting a candle is harmless. In live
// mode the exchange already reports every fill; the scan then only
// re-polls the fill cursor.
func (e *Engine) CatchUp(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	markets, err := e.store.ListEnabledMarkets(ctx)
	if err != nil {
		return err
	}

	if e.checker == nil {
		if len(markets) == 0 {
			return nil
		}
		return e.pollFills(ctx)
	}

	end := e.now().UTC()
	start := end.Add(-catchUpWindow)

	for _, m := range markets {
		if err := e.catchUpMarket(ctx, m.ID, start.Unix(), end.Unix()); err != nil {
			e.log.Error("catch-up failed", "market", m.ID, "error", err)
		}
	}
	return nil
}

func (e *Engine) catchUpMarket(ctx context.Context, marketID string, start, end int64) error {
	candles, err := e.exchange.GetCandles(ctx, marketID, start, end, "ONE_MINUTE")
	if err != nil {
		return err
	}

	for _, c := range candles {
		if err := e.replayCandle(ctx, marketID, c); err != nil {
			return err
		}
	}
	return nil
}

// replayCandle runs the paper matcher at the candle's extremes: the low
// can only cross buy limits, the high only sell limits. Resting orders
// come from the in-memory cache, which mirrors storage between syncs.
func (e *Engine) replayCandle(ctx context.Context, marketID string, c domain.Candle) error {
	for _, price := range []float64{c.Low, c.High} {
		if price <= 0 {
			continue
		}
		open := e.cache.ForMarket(marketID)
		for _, f := range e.checker.CheckFills(marketID, price, open) {
			if f.Side == domain.SideBuy && price != c.Low {
				continue
			}
			if f.Side == domain.SideSell && price != c.High {
				continue
			}
			if err := e.handleFill(ctx, f); err != nil {
				e.log.Error("catch-up fill failed", "order", f.OrderID, "error", err)
			}
		}
	}
	return nil
}
