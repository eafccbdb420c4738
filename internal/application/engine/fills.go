package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/gridbot/internal/domain"
	"github.com/alejandrodnm/gridbot/internal/ports"
)

// processFills detects and applies fills for one market. In paper mode
// the wrapper matches resting orders against the current price; in live
// mode fills are polled from the exchange past the persisted cursor.
// Callers hold e.mu.
func (e *Engine) processFills(ctx context.Context, marketID string, price float64) error {
	if e.checker != nil {
		open, err := e.store.GetOpenOrders(ctx, marketID)
		if err != nil {
			return err
		}
		for _, f := range e.checker.CheckFills(marketID, price, open) {
			if err := e.handleFill(ctx, f); err != nil {
				e.log.Error("fill handling failed", "order", f.OrderID, "error", err)
			}
		}
		return nil
	}
	return e.pollFills(ctx)
}

// pollFills fetches fills past the cursor and advances it. Fills for
// orders the engine does not track are ignored, so manual trading on
// the same account does not disturb the grid.
func (e *Engine) pollFills(ctx context.Context) error {
	var cursor domain.FillsCursor
	if _, err := e.store.GetBotState(ctx, domain.StateKeyFillsCursor, &cursor); err != nil {
		return err
	}

	fills, err := e.exchange.GetFills(ctx, cursor.Since)
	if err != nil {
		return fmt.Errorf("engine.pollFills: %w", err)
	}
	if len(fills) == 0 {
		return nil
	}

	latest := cursor.Since
	for _, f := range fills {
		if err := e.handleFill(ctx, f); err != nil {
			e.log.Error("fill handling failed", "order", f.OrderID, "error", err)
		}
		if ts := f.Timestamp.UTC().Format(time.RFC3339); ts > latest {
			latest = ts
		}
	}

	if latest != cursor.Since {
		return e.store.SetBotState(ctx, domain.StateKeyFillsCursor, domain.FillsCursor{Since: latest})
	}
	return nil
}

// handleFill applies one fill: a filled buy opens a lot and places its
// exit sell one step above; a filled sell closes the lot and books the
// realized profit. Fills for unknown or already-terminal orders are
// no-ops, which makes replays (catch-up scans, cursor overlaps) safe.
func (e *Engine) handleFill(ctx context.Context, f domain.Fill) error {
	order, err := e.store.GetOrder(ctx, f.OrderID)
	if errors.Is(err, ports.ErrNotFound) {
		e.log.Debug("fill for untracked order", "order", f.OrderID)
		return nil
	}
	if err != nil {
		return err
	}
	if order.Status != domain.OrderStatusOpen {
		return nil
	}

	if err := e.store.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusFilled); err != nil {
		return err
	}
	e.cache.Evict(order.ID)
	if err := e.store.SaveFill(ctx, f); err != nil {
		return err
	}

	e.log.Info("order filled",
		"market", order.MarketID, "side", order.Side,
		"price", f.Price, "size", f.Size)
	e.publish(ports.Event{Type: "ORDER_FILLED", Data: map[string]any{
		"market_id": order.MarketID,
		"side":      order.Side,
		"price":     f.Price,
		"size":      f.Size,
	}})

	if order.Side == domain.SideBuy {
		return e.openLot(ctx, order, f)
	}
	return e.closeLot(ctx, order, f)
}

// openLot records the buy and places the matching sell.
func (e *Engine) openLot(ctx context.Context, buy domain.Order, f domain.Fill) error {
	lot := domain.Lot{
		MarketID:   buy.MarketID,
		BuyOrderID: buy.ID,
		BuyPrice:   f.Price,
		BuySize:    f.Size,
		BuyCost:    f.Price * f.Size,
		BuyTime:    f.Timestamp,
		Status:     domain.LotStatusOpen,
	}
	id, err := e.store.SaveLot(ctx, lot)
	if err != nil {
		return err
	}
	lot.ID = id

	if err := e.placeExitSell(ctx, lot); err != nil {
		// The position stays on the books without an exit; every order
		// sync retries the placement until it sticks.
		e.log.Error("exit sell rejected", "market", buy.MarketID, "lot", id, "error", err)
		return nil
	}

	e.log.Info("lot opened",
		"market", buy.MarketID, "buy", f.Price, "size", f.Size)
	return nil
}

// placeExitSell places the exit sell one step above the lot's buy and
// attaches it to the lot.
func (e *Engine) placeExitSell(ctx context.Context, lot domain.Lot) error {
	sellPrice := e.grid.SellPrice(lot.BuyPrice)

	sellID, err := e.exchange.PlaceLimitOrder(ctx, lot.MarketID, domain.SideSell, sellPrice, lot.BuySize, true)
	if err != nil {
		return err
	}

	sell := domain.Order{
		ID:        sellID,
		MarketID:  lot.MarketID,
		Side:      domain.SideSell,
		Price:     sellPrice,
		Size:      lot.BuySize,
		Status:    domain.OrderStatusOpen,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.SaveOrder(ctx, sell); err != nil {
		return err
	}
	e.cache.Put(sell)

	if err := e.store.SetLotSell(ctx, lot.ID, sellID, sellPrice); err != nil {
		return err
	}
	e.log.Info("exit sell placed",
		"market", lot.MarketID, "lot", lot.ID, "price", sellPrice, "size", lot.BuySize)
	return nil
}

// closeLot books the realized profit of a filled sell.
func (e *Engine) closeLot(ctx context.Context, sell domain.Order, f domain.Fill) error {
	lot, ok, err := e.store.GetLotBySellOrder(ctx, sell.ID)
	if err != nil {
		return err
	}

	// Realized profit is the raw price difference; fees stay on the
	// fill record.
	var profit float64
	if ok {
		profit = (f.Price - lot.BuyPrice) * f.Size
		if err := e.store.CloseLot(ctx, lot.ID, profit); err != nil {
			return err
		}
	} else {
		// Orphan sell (lot row lost): estimate the profit from the grid
		// step instead of dropping it.
		step := e.grid.Options().GridStepPct
		estBuy := f.Price / (1 + step)
		profit = f.Size * estBuy * step
		e.log.Warn("sell without lot, estimating profit", "order", sell.ID, "profit", profit)
	}

	if err := e.addProfit(ctx, profit); err != nil {
		return err
	}

	e.log.Info("lot closed", "market", sell.MarketID, "profit", profit)
	e.publish(ports.Event{Type: "PROFIT", Data: map[string]any{
		"market_id": sell.MarketID,
		"profit":    profit,
	}})
	return nil
}
