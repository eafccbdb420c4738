package strategy

import (
	"math"
	"strconv"
	"sync"
)

// ProfitMode selects the sell-price and sizing policy.
type ProfitMode string

const (
	ProfitStep          ProfitMode = "STEP"
	ProfitCustom        ProfitMode = "CUSTOM"
	ProfitStepReinvest  ProfitMode = "STEP_REINVEST"
	ProfitSmartReinvest ProfitMode = "SMART_REINVEST"
)

// SizingMode selects how per-order size is derived.
type SizingMode string

const (
	SizingBudgetSplit SizingMode = "BUDGET_SPLIT"
	SizingFixedUSD    SizingMode = "FIXED_USD"
	SizingCapitalPct  SizingMode = "CAPITAL_PCT"
)

// MinOrderSize is the floor applied to every computed order size.
const MinOrderSize = 1e-5

// Options holds every hot-reloadable strategy setting.
type Options struct {
	GridStepPct            float64
	StagingBandPct         float64
	MaxOrders              int
	BufferEnabled          bool
	BufferPct              float64
	ProfitMode             ProfitMode
	CustomProfitPct        float64
	MonthlyProfitTargetUSD float64
	Budget                 float64
	SizingMode             SizingMode
	FixedUSDPerTrade       float64
	CapitalPctPerTrade     float64
}

// DefaultOptions returns production defaults.
func DefaultOptions() Options {
	return Options{
		GridStepPct:            0.0033,
		StagingBandPct:         0.05,
		MaxOrders:              490,
		BufferEnabled:          false,
		BufferPct:              0,
		ProfitMode:             ProfitStep,
		CustomProfitPct:        0.01,
		MonthlyProfitTargetUSD: 1000,
		Budget:                 1000,
		SizingMode:             SizingBudgetSplit,
		FixedUSDPerTrade:       10,
		CapitalPctPerTrade:     1.0,
	}
}

// Patch is a partial Options update: nil fields are left unchanged.
type Patch struct {
	GridStepPct            *float64
	StagingBandPct         *float64
	MaxOrders              *int
	BufferEnabled          *bool
	BufferPct              *float64
	ProfitMode             *ProfitMode
	CustomProfitPct        *float64
	MonthlyProfitTargetUSD *float64
	Budget                 *float64
	SizingMode             *SizingMode
	FixedUSDPerTrade       *float64
	CapitalPctPerTrade     *float64
}

// Grid is the pure grid-trading strategy. All methods are safe for
// concurrent use; Apply swaps options under the same lock the readers
// take, so a tick always sees a consistent snapshot.
type Grid struct {
	mu   sync.RWMutex
	opts Options
}

// New creates a Grid with the given options.
func New(opts Options) *Grid {
	return &Grid{opts: opts}
}

// Options returns a copy of the current options.
func (g *Grid) Options() Options {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.opts
}

// Apply merges the patch into the current options and returns the
// changed settings as config-table key/value pairs.
func (g *Grid) Apply(p Patch) map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()

	changed := make(map[string]string)
	setF := func(key string, dst *float64, src *float64) {
		if src != nil && *src != *dst {
			*dst = *src
			changed[key] = strconv.FormatFloat(*src, 'f', -1, 64)
		}
	}

	// The step must stay positive; a zero or negative value would leave
	// the grid without converging levels.
	if p.GridStepPct != nil && *p.GridStepPct <= 0 {
		p.GridStepPct = nil
	}

	setF("grid_step_pct", &g.opts.GridStepPct, p.GridStepPct)
	setF("staging_band_pct", &g.opts.StagingBandPct, p.StagingBandPct)
	setF("buffer_pct", &g.opts.BufferPct, p.BufferPct)
	setF("custom_profit_pct", &g.opts.CustomProfitPct, p.CustomProfitPct)
	setF("monthly_profit_target_usd", &g.opts.MonthlyProfitTargetUSD, p.MonthlyProfitTargetUSD)
	setF("budget", &g.opts.Budget, p.Budget)
	setF("fixed_usd_per_trade", &g.opts.FixedUSDPerTrade, p.FixedUSDPerTrade)
	setF("capital_pct_per_trade", &g.opts.CapitalPctPerTrade, p.CapitalPctPerTrade)

	if p.MaxOrders != nil && *p.MaxOrders != g.opts.MaxOrders {
		g.opts.MaxOrders = *p.MaxOrders
		changed["max_orders"] = strconv.Itoa(*p.MaxOrders)
	}
	if p.BufferEnabled != nil && *p.BufferEnabled != g.opts.BufferEnabled {
		g.opts.BufferEnabled = *p.BufferEnabled
		changed["buffer_enabled"] = strconv.FormatBool(*p.BufferEnabled)
	}
	if p.ProfitMode != nil && *p.ProfitMode != g.opts.ProfitMode {
		g.opts.ProfitMode = *p.ProfitMode
		changed["profit_mode"] = string(*p.ProfitMode)
	}
	if p.SizingMode != nil && *p.SizingMode != g.opts.SizingMode {
		g.opts.SizingMode = *p.SizingMode
		changed["sizing_mode"] = string(*p.SizingMode)
	}

	return changed
}

// RebaseAnchor returns the new anchor for a market. Absent old anchor
// the current price becomes the anchor; otherwise the anchor only moves
// up (monotone non-decreasing).
func RebaseAnchor(current float64, old *float64) float64 {
	if old == nil {
		return current
	}
	return math.Max(*old, current)
}

// GridTop is the effective top of the grid: the anchor, discounted by
// the buffer when one is configured.
func (g *Grid) GridTop(anchor float64) float64 {
	o := g.Options()
	if o.BufferEnabled && o.BufferPct > 0 {
		return anchor * (1 - o.BufferPct)
	}
	return anchor
}

// BuyLevels generates the desired buy prices for the current tick:
// geometric steps down from the grid top, kept inside the staging band
// and strictly below the current price. The result is strictly
// decreasing and holds at most MaxOrders entries.
func (g *Grid) BuyLevels(anchor, current float64) []float64 {
	o := g.Options()

	// A non-positive step never converges toward the band bottom.
	if o.GridStepPct <= 0 {
		return nil
	}

	top := anchor
	if o.BufferEnabled && o.BufferPct > 0 {
		top = anchor * (1 - o.BufferPct)
	}
	bottom := current * (1 - o.StagingBandPct)

	var levels []float64
	for p := top * (1 - o.GridStepPct); p > bottom; p *= 1 - o.GridStepPct {
		if p < current {
			if len(levels) >= o.MaxOrders {
				break
			}
			levels = append(levels, round8(p))
		}
	}
	return levels
}

// SellPrice returns the exit price for a buy fill.
func (g *Grid) SellPrice(buyPrice float64) float64 {
	o := g.Options()
	margin := o.GridStepPct
	if o.ProfitMode == ProfitCustom {
		margin = o.CustomProfitPct
	}
	return buyPrice * (1 + margin)
}

// ShouldPrune reports whether an open order has dropped out of the
// staging band and must be cancelled.
func (g *Grid) ShouldPrune(orderPrice, currentPrice float64) bool {
	o := g.Options()
	return orderPrice < currentPrice*(1-o.StagingBandPct)
}

// Tolerance is the relative price tolerance used to match an open order
// (or an open lot) against a desired grid level.
func (g *Grid) Tolerance() float64 {
	o := g.Options()
	return math.Max(o.GridStepPct*0.2, 1e-9)
}

// EffectiveBudget returns the budget available for sizing. Under
// SMART_REINVEST the surplus above the monthly target compounds into
// the budget.
func (g *Grid) EffectiveBudget(currentMonthProfit float64) float64 {
	o := g.Options()
	if o.ProfitMode == ProfitSmartReinvest && currentMonthProfit >= o.MonthlyProfitTargetUSD {
		return o.Budget + (currentMonthProfit - o.MonthlyProfitTargetUSD)
	}
	return o.Budget
}

// OrderSize computes the base size for a buy at the given price from
// the effective budget and the configured sizing mode.
func (g *Grid) OrderSize(price, effectiveBudget float64) float64 {
	o := g.Options()

	var size float64
	switch o.SizingMode {
	case SizingFixedUSD:
		size = o.FixedUSDPerTrade / price
	case SizingCapitalPct:
		size = effectiveBudget * o.CapitalPctPerTrade / 100 / price
	default: // BUDGET_SPLIT
		n := o.MaxOrders
		if n < 1 {
			n = 1
		}
		size = effectiveBudget / float64(n) / price
	}

	return math.Max(round8(size), MinOrderSize)
}

func round8(x float64) float64 {
	return math.Round(x*1e8) / 1e8
}
