package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebaseAnchor_InitialAndMonotone(t *testing.T) {
	assert.Equal(t, 50000.0, RebaseAnchor(50000, nil))

	old := 50000.0
	assert.Equal(t, 50000.0, RebaseAnchor(30000, &old), "anchor never moves down")
	assert.Equal(t, 55000.0, RebaseAnchor(55000, &old))
}

func TestRebaseAnchor_ReplayEqualsMax(t *testing.T) {
	prices := []float64{100, 250, 90, 250.5, 10, 249}

	var anchor *float64
	for _, p := range prices {
		next := RebaseAnchor(p, anchor)
		anchor = &next
	}
	assert.Equal(t, 250.5, *anchor)
}

func TestBuyLevels_Bounds(t *testing.T) {
	g := New(DefaultOptions())
	levels := g.BuyLevels(50000, 50000)

	require.NotEmpty(t, levels)
	assert.LessOrEqual(t, len(levels), DefaultOptions().MaxOrders)

	for i, p := range levels {
		assert.Less(t, p, 50000.0)
		assert.Greater(t, p, 50000.0*(1-0.05))
		if i > 0 {
			assert.Less(t, p, levels[i-1], "levels must be strictly decreasing")
		}
	}
}

func TestBuyLevels_AnchorAboveCurrent(t *testing.T) {
	// Anchor far above: levels must still cluster inside the staging
	// band around the current price.
	g := New(DefaultOptions())
	levels := g.BuyLevels(50000, 30000)

	require.NotEmpty(t, levels)
	for _, p := range levels {
		assert.Less(t, p, 30000.0)
		assert.Greater(t, p, 30000.0*0.95)
	}
}

func TestBuyLevels_NonPositiveStep(t *testing.T) {
	// A zero or negative step cannot walk down toward the band bottom;
	// the ladder must come back empty instead of looping.
	opts := DefaultOptions()
	opts.GridStepPct = 0
	g := New(opts)
	assert.Empty(t, g.BuyLevels(50000, 50000))
	assert.Empty(t, g.BuyLevels(50000, 30000), "anchor above current")

	opts.GridStepPct = -0.01
	g = New(opts)
	assert.Empty(t, g.BuyLevels(50000, 50000))
}

func TestApply_RejectsNonPositiveStep(t *testing.T) {
	g := New(DefaultOptions())

	zero := 0.0
	assert.Empty(t, g.Apply(Patch{GridStepPct: &zero}))
	assert.Equal(t, DefaultOptions().GridStepPct, g.Options().GridStepPct)

	neg := -0.5
	assert.Empty(t, g.Apply(Patch{GridStepPct: &neg}))
	assert.Equal(t, DefaultOptions().GridStepPct, g.Options().GridStepPct)
}

func TestBuyLevels_MaxOrdersCap(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxOrders = 3
	g := New(opts)

	levels := g.BuyLevels(50000, 50000)
	assert.Len(t, levels, 3)
}

func TestBuyLevels_Buffer(t *testing.T) {
	opts := DefaultOptions()
	opts.BufferEnabled = true
	opts.BufferPct = 0.02
	g := New(opts)

	levels := g.BuyLevels(50000, 50000)
	require.NotEmpty(t, levels)
	top := 50000 * (1 - 0.02)
	assert.LessOrEqual(t, levels[0], top*(1-opts.GridStepPct)+1e-6)
	assert.InDelta(t, 50000*0.98, g.GridTop(50000), 1e-9)
}

func TestSellPrice_AlwaysAboveBuy(t *testing.T) {
	g := New(DefaultOptions())
	for _, buy := range []float64{0.0001, 1, 99, 50000} {
		assert.Greater(t, g.SellPrice(buy), buy)
	}

	opts := DefaultOptions()
	opts.ProfitMode = ProfitCustom
	opts.CustomProfitPct = 0.01
	g = New(opts)
	assert.InDelta(t, 99.99, g.SellPrice(99), 1e-9)
}

func TestShouldPrune(t *testing.T) {
	g := New(DefaultOptions())

	assert.True(t, g.ShouldPrune(56999, 60000), "below 5% band")
	assert.False(t, g.ShouldPrune(57001, 60000))
	assert.False(t, g.ShouldPrune(59999, 60000))
}

func TestEffectiveBudget(t *testing.T) {
	opts := DefaultOptions()
	opts.Budget = 1000
	opts.MonthlyProfitTargetUSD = 500
	opts.ProfitMode = ProfitSmartReinvest
	g := New(opts)

	assert.Equal(t, 1000.0, g.EffectiveBudget(499), "below target: base budget")
	assert.Equal(t, 1200.0, g.EffectiveBudget(700), "surplus compounds")

	opts.ProfitMode = ProfitStep
	g = New(opts)
	assert.Equal(t, 1000.0, g.EffectiveBudget(9999), "only SMART_REINVEST compounds")
}

func TestOrderSize_Modes(t *testing.T) {
	opts := DefaultOptions()
	opts.Budget = 1000
	opts.MaxOrders = 100

	opts.SizingMode = SizingBudgetSplit
	g := New(opts)
	assert.InDelta(t, 10.0/50000, g.OrderSize(50000, 1000), 1e-9)

	opts.SizingMode = SizingFixedUSD
	opts.FixedUSDPerTrade = 25
	g = New(opts)
	assert.InDelta(t, 25.0/50000, g.OrderSize(50000, 1000), 1e-9)

	opts.SizingMode = SizingCapitalPct
	opts.CapitalPctPerTrade = 2
	g = New(opts)
	assert.InDelta(t, 20.0/50000, g.OrderSize(50000, 1000), 1e-9)
}

func TestOrderSize_MinFloor(t *testing.T) {
	opts := DefaultOptions()
	opts.SizingMode = SizingFixedUSD
	opts.FixedUSDPerTrade = 0.0001
	g := New(opts)

	assert.Equal(t, MinOrderSize, g.OrderSize(50000, 1000))
}

func TestApply_PartialPatch(t *testing.T) {
	g := New(DefaultOptions())

	step := 0.01
	mode := ProfitCustom
	changed := g.Apply(Patch{GridStepPct: &step, ProfitMode: &mode})

	assert.Equal(t, "0.01", changed["grid_step_pct"])
	assert.Equal(t, "CUSTOM", changed["profit_mode"])
	assert.Len(t, changed, 2)

	o := g.Options()
	assert.Equal(t, 0.01, o.GridStepPct)
	assert.Equal(t, ProfitCustom, o.ProfitMode)
	assert.Equal(t, 0.05, o.StagingBandPct, "untouched options keep their value")

	// Re-applying the same patch is a no-op.
	assert.Empty(t, g.Apply(Patch{GridStepPct: &step, ProfitMode: &mode}))
}

func TestTolerance(t *testing.T) {
	g := New(DefaultOptions())
	assert.InDelta(t, 0.0033*0.2, g.Tolerance(), 1e-12)

	opts := DefaultOptions()
	opts.GridStepPct = 0
	g = New(opts)
	assert.Equal(t, 1e-9, g.Tolerance(), "epsilon floor when step is zero")
}
