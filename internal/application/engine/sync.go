package engine

import (
	"context"
	"errors"
	"math"

	"github.com/alejandrodnm/gridbot/internal/domain"
	"github.com/alejandrodnm/gridbot/internal/ports"
)

// syncOrders reconciles a market's resting buy orders with the desired
// grid levels. A buy survives only if it sits on a desired level
// (within tolerance) and inside the staging band; everything else —
// ghost orders off the grid, orders that fell out of the band,
// duplicates on one level — is pruned. Uncovered levels get fresh buys
// unless an open lot already holds that level's inventory. Callers
// hold e.mu.
func (e *Engine) syncOrders(ctx context.Context, marketID string, anchor, price float64) error {
	open, err := e.store.GetOpenOrders(ctx, marketID)
	if err != nil {
		return err
	}
	e.cache.ReplaceMarket(marketID, open)

	desired := e.grid.BuyLevels(anchor, price)
	tol := e.grid.Tolerance()
	covered := make([]bool, len(desired))

	for _, o := range open {
		if o.Side != domain.SideBuy {
			continue
		}
		i := matchLevel(desired, o.Price, tol)
		inBand := !e.grid.ShouldPrune(o.Price, price)
		if i >= 0 && inBand && !covered[i] {
			covered[i] = true
			continue
		}

		reason := "out of band"
		if i < 0 {
			reason = "ghost order"
		} else if covered[i] {
			reason = "duplicate level"
		}
		e.pruneOrder(ctx, o, reason)
	}

	lots, err := e.store.GetOpenLots(ctx, marketID)
	if err != nil {
		return err
	}
	for _, l := range lots {
		// A lot without an exit sell had its placement rejected when
		// the buy filled; retry until one sticks.
		if l.SellOrderID == "" {
			if err := e.placeExitSell(ctx, l); err != nil {
				e.log.Error("exit sell retry failed", "lot", l.ID, "error", err)
			}
		}
		if i := matchLevel(desired, l.BuyPrice, tol); i >= 0 {
			covered[i] = true
		}
	}

	tracker, err := e.loadTracker(ctx)
	if err != nil {
		return err
	}
	budget := e.grid.EffectiveBudget(tracker.CurrentMonthProfitUSD)

	for i, level := range desired {
		if covered[i] {
			continue
		}

		size := e.grid.OrderSize(level, budget)
		id, err := e.exchange.PlaceLimitOrder(ctx, marketID, domain.SideBuy, level, size, true)
		if err != nil {
			if errors.Is(err, ports.ErrInsufficientFunds) {
				e.log.Warn("out of funds, stopping ladder", "market", marketID, "level", level)
				break
			}
			e.log.Error("buy rejected", "market", marketID, "level", level, "error", err)
			continue
		}

		o := domain.Order{
			ID:       id,
			MarketID: marketID,
			Side:     domain.SideBuy,
			Price:    level,
			Size:     size,
			Status:   domain.OrderStatusOpen,
		}
		if err := e.store.SaveOrder(ctx, o); err != nil {
			return err
		}
		e.cache.Put(o)

		e.log.Info("buy placed", "market", marketID, "price", level, "size", size)
	}
	return nil
}

// pruneOrder cancels on the exchange best-effort and marks the order
// CANCELED in storage. Storage is authoritative: an adapter failure is
// logged, not retried.
func (e *Engine) pruneOrder(ctx context.Context, o domain.Order, reason string) {
	if _, err := e.exchange.CancelOrder(ctx, o.ID); err != nil {
		e.log.Error("exchange cancel failed", "order", o.ID, "error", err)
	}
	if err := e.store.UpdateOrderStatus(ctx, o.ID, domain.OrderStatusCanceled); err != nil {
		e.log.Error("cancel not persisted", "order", o.ID, "error", err)
		return
	}
	e.cache.Evict(o.ID)
	e.log.Info("order pruned", "market", o.MarketID, "price", o.Price, "reason", reason)
}

// matchLevel returns the index of the desired level within relative
// tolerance of price, or -1.
func matchLevel(desired []float64, price, tol float64) int {
	for i, level := range desired {
		if math.Abs(price-level)/level < tol {
			return i
		}
	}
	return -1
}
