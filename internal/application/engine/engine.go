// Package engine runs the grid-trading loop: it watches prices, keeps
// the ladder of buy orders in sync with the anchor, turns buy fills
// into sell orders and closed lots into realized profit.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/gridbot/internal/domain"
	"github.com/alejandrodnm/gridbot/internal/domain/strategy"
	"github.com/alejandrodnm/gridbot/internal/ports"
)

const (
	defaultTickInterval    = 5 * time.Second
	defaultCatchUpInterval = 60 * time.Second
	defaultStatusInterval  = 30 * time.Second

	// catchUpWindow is how far back the candle scanner looks for price
	// excursions the ticker stream may have missed.
	catchUpWindow = 5 * time.Minute
)

// Config wires an Engine.
type Config struct {
	Exchange ports.Exchange
	Storage  ports.Storage
	Grid     *strategy.Grid
	Logger   *slog.Logger

	// Broadcaster and Reporter are optional.
	Broadcaster ports.Broadcaster
	Reporter    ports.StatusReporter

	TickInterval    time.Duration
	CatchUpInterval time.Duration
	StatusInterval  time.Duration

	// Now overrides the wall clock. Tests use it to roll the calendar.
	Now func() time.Time
}

// Engine drives every enabled market through the tick cycle. It also
// implements ports.Control.
type Engine struct {
	exchange ports.Exchange
	store    ports.Storage
	grid     *strategy.Grid
	bus      ports.Broadcaster
	reporter ports.StatusReporter
	log      *slog.Logger

	// checker is non-nil when the exchange is the paper wrapper; fills
	// are then produced synchronously instead of polled.
	checker ports.FillChecker

	cache *orderCache

	// mu serializes market processing: ticks, catch-up scans and
	// control calls never interleave.
	mu sync.Mutex

	priceMu    sync.RWMutex
	lastPrices map[string]float64

	running bool

	now func() time.Time

	tickInterval    time.Duration
	catchUpInterval time.Duration
	statusInterval  time.Duration
}

// New builds an engine. If the exchange implements ports.FillChecker
// (the paper wrapper does) fills are matched locally.
func New(cfg Config) *Engine {
	e := &Engine{
		exchange:        cfg.Exchange,
		store:           cfg.Storage,
		grid:            cfg.Grid,
		bus:             cfg.Broadcaster,
		reporter:        cfg.Reporter,
		log:             cfg.Logger.With("component", "engine"),
		cache:           newOrderCache(),
		lastPrices:      make(map[string]float64),
		now:             cfg.Now,
		tickInterval:    cfg.TickInterval,
		catchUpInterval: cfg.CatchUpInterval,
		statusInterval:  cfg.StatusInterval,
	}
	if e.tickInterval <= 0 {
		e.tickInterval = defaultTickInterval
	}
	if e.catchUpInterval <= 0 {
		e.catchUpInterval = defaultCatchUpInterval
	}
	if e.statusInterval <= 0 {
		e.statusInterval = defaultStatusInterval
	}
	if e.now == nil {
		e.now = time.Now
	}
	if fc, ok := cfg.Exchange.(ports.FillChecker); ok {
		e.checker = fc
	}
	return e
}

// PaperMode reports whether fills are simulated locally.
func (e *Engine) PaperMode() bool { return e.checker != nil }

// Run blocks until ctx is cancelled. It hydrates persisted
// configuration, restores the order cache, starts the ticker stream
// and then drives the tick, catch-up and status loops.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.hydrateConfig(ctx); err != nil {
		return err
	}
	if err := e.restoreCache(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	markets, err := e.store.ListMarkets(ctx)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(markets))
	for _, m := range markets {
		ids = append(ids, m.ID)
	}

	if len(ids) > 0 {
		go func() {
			err := e.exchange.StreamTicker(ctx, ids, func(ev domain.TickerEvent) {
				e.onTicker(ctx, ev)
			})
			if err != nil && ctx.Err() == nil {
				e.log.Error("ticker stream stopped", "error", err)
			}
		}()
	}

	// In live mode the user channel shortens fill latency; the polled
	// cursor remains the correctness backbone.
	if e.checker == nil {
		go func() {
			err := e.exchange.StreamFills(ctx, func(f domain.Fill) {
				e.mu.Lock()
				defer e.mu.Unlock()
				if err := e.handleFill(ctx, f); err != nil {
					e.log.Error("streamed fill failed", "order", f.OrderID, "error", err)
				}
			})
			if err != nil && ctx.Err() == nil {
				e.log.Error("fills stream stopped", "error", err)
			}
		}()
	}

	e.log.Info("engine started",
		"paper", e.PaperMode(),
		"tick_interval", e.tickInterval,
		"markets", len(ids))

	tick := time.NewTicker(e.tickInterval)
	defer tick.Stop()
	catchUp := time.NewTicker(e.catchUpInterval)
	defer catchUp.Stop()
	status := time.NewTicker(e.statusInterval)
	defer status.Stop()

	for {
		select {
		case <-ctx.Done():
			e.mu.Lock()
			e.running = false
			e.mu.Unlock()
			e.log.Info("engine stopped")
			return ctx.Err()
		case <-tick.C:
			if err := e.Tick(ctx); err != nil && ctx.Err() == nil {
				e.log.Error("tick failed", "error", err)
			}
		case <-catchUp.C:
			if err := e.CatchUp(ctx); err != nil && ctx.Err() == nil {
				e.log.Error("catch-up scan failed", "error", err)
			}
		case <-status.C:
			e.reportStatus(ctx)
		}
	}
}

// Tick processes every enabled market once.
func (e *Engine) Tick(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	markets, err := e.store.ListEnabledMarkets(ctx)
	if err != nil {
		return err
	}
	for _, m := range markets {
		if err := e.processMarket(ctx, m); err != nil {
			e.log.Error("market tick failed", "market", m.ID, "error", err)
		}
	}
	return nil
}

// processMarket runs one tick for one market. Callers hold e.mu.
func (e *Engine) processMarket(ctx context.Context, m domain.Market) error {
	if err := e.checkMonthlyReset(ctx); err != nil {
		return err
	}

	price, err := e.currentPrice(ctx, m.ID)
	if err != nil {
		return err
	}
	if price <= 0 {
		e.log.Debug("no price yet", "market", m.ID)
		return nil
	}

	if err := e.processFills(ctx, m.ID, price); err != nil {
		return err
	}

	anchor, err := e.rebaseAnchor(ctx, m.ID, price)
	if err != nil {
		return err
	}

	e.publish(ports.Event{Type: "PRICE_UPDATE", Data: map[string]any{
		"market_id": m.ID,
		"price":     price,
		"anchor":    anchor,
		"grid_top":  e.grid.GridTop(anchor),
	}})

	return e.syncOrders(ctx, m.ID, anchor, price)
}

// onTicker records a streamed price, broadcasts it, and in paper mode
// matches resting orders against it so an intra-tick move fills the
// orders it crossed instead of waiting for the next tick.
func (e *Engine) onTicker(ctx context.Context, ev domain.TickerEvent) {
	if ev.Price <= 0 {
		return
	}
	e.priceMu.Lock()
	e.lastPrices[ev.ProductID] = ev.Price
	e.priceMu.Unlock()

	e.publish(ports.Event{Type: "PRICE_UPDATE", Data: map[string]any{
		"market_id": ev.ProductID,
		"price":     ev.Price,
	}})

	if e.checker == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.processFills(ctx, ev.ProductID, ev.Price); err != nil {
		e.log.Error("stream fill check failed", "market", ev.ProductID, "error", err)
	}
}

// currentPrice prefers the last streamed price and falls back to a
// REST ticker call.
func (e *Engine) currentPrice(ctx context.Context, marketID string) (float64, error) {
	e.priceMu.RLock()
	p, ok := e.lastPrices[marketID]
	e.priceMu.RUnlock()
	if ok && p > 0 {
		return p, nil
	}

	p, err := e.exchange.GetTicker(ctx, marketID)
	if err != nil {
		return 0, err
	}
	if p > 0 {
		e.priceMu.Lock()
		e.lastPrices[marketID] = p
		e.priceMu.Unlock()
	}
	return p, nil
}

// rebaseAnchor loads the persisted anchor, moves it up if the price
// made a new high, and persists the change.
func (e *Engine) rebaseAnchor(ctx context.Context, marketID string, price float64) (float64, error) {
	var state domain.AnchorState
	ok, err := e.store.GetBotState(ctx, domain.AnchorKey(marketID), &state)
	if err != nil {
		return 0, err
	}

	var old *float64
	if ok {
		old = &state.Price
	}
	anchor := strategy.RebaseAnchor(price, old)

	if !ok || anchor != state.Price {
		if err := e.store.SetBotState(ctx, domain.AnchorKey(marketID), domain.AnchorState{Price: anchor}); err != nil {
			return 0, err
		}
		e.log.Info("anchor rebased", "market", marketID, "anchor", anchor)
	}
	return anchor, nil
}

// restoreCache rebuilds the in-memory order cache from the OPEN orders
// in storage, so a restart resumes where the last run stopped.
func (e *Engine) restoreCache(ctx context.Context) error {
	open, err := e.store.GetAllOpenOrders(ctx)
	if err != nil {
		return err
	}
	for _, o := range open {
		e.cache.Put(o)
	}
	if len(open) > 0 {
		e.log.Info("restored open orders", "count", len(open))
	}
	return nil
}

func (e *Engine) publish(ev ports.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

func (e *Engine) reportStatus(ctx context.Context) {
	if e.reporter == nil {
		return
	}
	st, err := e.Status(ctx)
	if err != nil {
		e.log.Error("status snapshot failed", "error", err)
		return
	}
	e.reporter.ReportStatus(st)
}
