package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/alejandrodnm/gridbot/internal/domain"
	"github.com/alejandrodnm/gridbot/internal/domain/strategy"
	"github.com/alejandrodnm/gridbot/internal/ports"
)

// The engine is its own control plane: ports.Control is implemented
// directly so CLI or HTTP layers stay thin.

// UpdateConfig hot-reloads strategy settings and persists the changed
// keys so they survive restarts.
func (e *Engine) UpdateConfig(ctx context.Context, p strategy.Patch) error {
	changed := e.grid.Apply(p)
	for k, v := range changed {
		if err := e.store.UpsertConfig(ctx, k, v); err != nil {
			return err
		}
	}
	if len(changed) > 0 {
		e.log.Info("config updated", "changed", len(changed))
		e.publish(ports.Event{Type: "CONFIG_UPDATE", Data: changed})
	}
	return nil
}

// EmergencyStop disables every market and cancels every open order.
// The database flips first, atomically; exchange cancels follow
// best-effort.
func (e *Engine) EmergencyStop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	open, err := e.store.EmergencyStop(ctx)
	if err != nil {
		return fmt.Errorf("engine.EmergencyStop: %w", err)
	}

	for _, o := range open {
		if _, err := e.exchange.CancelOrder(ctx, o.ID); err != nil {
			e.log.Error("emergency cancel failed", "order", o.ID, "error", err)
		}
		e.cache.Evict(o.ID)
	}

	e.log.Warn("emergency stop executed", "cancelled", len(open))
	e.publish(ports.Event{Type: "EMERGENCY_STOP", Data: map[string]any{"cancelled": len(open)}})
	return nil
}

// SetMarketEnabled toggles one market. Enabling a market disables every
// other enabled market first: exactly one grid trades at a time.
func (e *Engine) SetMarketEnabled(ctx context.Context, marketID string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if enabled {
		current, err := e.store.ListEnabledMarkets(ctx)
		if err != nil {
			return err
		}
		for _, m := range current {
			if m.ID == marketID {
				continue
			}
			if err := e.store.SetMarketEnabled(ctx, m.ID, false); err != nil {
				return err
			}
			e.log.Info("market disabled", "market", m.ID, "replaced_by", marketID)
		}
	}

	if err := e.store.SetMarketEnabled(ctx, marketID, enabled); err != nil {
		return err
	}
	e.log.Info("market toggled", "market", marketID, "enabled", enabled)
	e.publish(ports.Event{Type: "MARKET_TOGGLED", Data: map[string]any{
		"market_id": marketID,
		"enabled":   enabled,
	}})
	return nil
}

// CancelOrder cancels one order on the exchange and in storage.
func (e *Engine) CancelOrder(ctx context.Context, orderID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.exchange.CancelOrder(ctx, orderID); err != nil {
		return err
	}
	if err := e.store.UpdateOrderStatus(ctx, orderID, domain.OrderStatusCanceled); err != nil {
		return err
	}
	e.cache.Evict(orderID)
	e.log.Info("order cancelled", "order", orderID)
	return nil
}

// Status builds a read-only snapshot across all markets.
func (e *Engine) Status(ctx context.Context) (domain.EngineStatus, error) {
	markets, err := e.store.ListMarkets(ctx)
	if err != nil {
		return domain.EngineStatus{}, err
	}

	tracker, err := e.loadTracker(ctx)
	if err != nil {
		return domain.EngineStatus{}, err
	}

	e.mu.Lock()
	running := e.running
	e.mu.Unlock()

	st := domain.EngineStatus{
		Running:          running,
		PaperMode:        e.PaperMode(),
		MonthlyProfitUSD: tracker.CurrentMonthProfitUSD,
	}

	for _, m := range markets {
		e.priceMu.RLock()
		price := e.lastPrices[m.ID]
		e.priceMu.RUnlock()

		var anchorState domain.AnchorState
		if _, err := e.store.GetBotState(ctx, domain.AnchorKey(m.ID), &anchorState); err != nil {
			return domain.EngineStatus{}, err
		}

		open, err := e.store.GetOpenOrders(ctx, m.ID)
		if err != nil {
			return domain.EngineStatus{}, err
		}
		lots, err := e.store.GetOpenLots(ctx, m.ID)
		if err != nil {
			return domain.EngineStatus{}, err
		}

		st.Markets = append(st.Markets, domain.MarketStatus{
			ID:         m.ID,
			Enabled:    m.Enabled,
			Price:      price,
			Anchor:     anchorState.Price,
			GridTop:    e.grid.GridTop(anchorState.Price),
			OpenOrders: len(open),
			OpenLots:   len(lots),
		})
	}
	return st, nil
}

// SyncProducts refreshes the markets table from the exchange listing.
// New products appear disabled; existing rows keep their enabled flag.
func (e *Engine) SyncProducts(ctx context.Context) error {
	products, err := e.exchange.GetProducts(ctx)
	if err != nil {
		return fmt.Errorf("engine.SyncProducts: %w", err)
	}

	rank := 1
	for _, p := range products {
		m := domain.Market{
			ID:         p.ID,
			MarketRank: rank,
			Volume24h:  p.Volume24h,
		}
		if err := e.store.UpsertMarket(ctx, m); err != nil {
			return err
		}
		rank++
	}
	e.log.Info("products synced", "count", len(products))
	return nil
}

// hydrateConfig overlays persisted configuration onto the strategy
// defaults at startup.
func (e *Engine) hydrateConfig(ctx context.Context) error {
	cfg, err := e.store.GetAllConfig(ctx)
	if err != nil {
		return err
	}
	if len(cfg) == 0 {
		return nil
	}

	var p strategy.Patch
	fp := func(key string) *float64 {
		if v, ok := cfg[key]; ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return &f
			}
		}
		return nil
	}

	p.GridStepPct = fp("grid_step_pct")
	p.StagingBandPct = fp("staging_band_pct")
	p.BufferPct = fp("buffer_pct")
	p.CustomProfitPct = fp("custom_profit_pct")
	p.MonthlyProfitTargetUSD = fp("monthly_profit_target_usd")
	p.Budget = fp("budget")
	p.FixedUSDPerTrade = fp("fixed_usd_per_trade")
	p.CapitalPctPerTrade = fp("capital_pct_per_trade")

	if v, ok := cfg["max_orders"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			p.MaxOrders = &n
		}
	}
	if v, ok := cfg["buffer_enabled"]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			p.BufferEnabled = &b
		}
	}
	if v, ok := cfg["profit_mode"]; ok {
		pm := strategy.ProfitMode(v)
		p.ProfitMode = &pm
	}
	if v, ok := cfg["sizing_mode"]; ok {
		sm := strategy.SizingMode(v)
		p.SizingMode = &sm
	}

	e.grid.Apply(p)
	e.log.Info("config hydrated", "keys", len(cfg))
	return nil
}
