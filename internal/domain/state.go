package domain

// Well-known bot_state keys. Anchor keys are "<market>_anchor".
const (
	StateKeyProfitTracker = "profit_tracker"
	StateKeyFillsCursor   = "fills_cursor"
)

// AnchorKey returns the bot_state key holding a market's anchor.
func AnchorKey(marketID string) string { return marketID + "_anchor" }

// AnchorState is the persisted value of "<market>_anchor".
// The anchor is monotone non-decreasing: it only moves up.
type AnchorState struct {
	Price float64 `json:"price"`
}

// ProfitTracker is the persisted value of "profit_tracker".
// LastProfitResetMonth is the calendar month (1-12) in which the
// counter was last zeroed.
type ProfitTracker struct {
	CurrentMonthProfitUSD float64 `json:"current_month_profit_usd"`
	LastProfitResetMonth  int     `json:"last_profit_reset_month"`
}

// FillsCursor is the persisted value of "fills_cursor" used by live-mode
// fill polling.
type FillsCursor struct {
	Since string `json:"since"`
}

// DailySnapshot is one end-of-day PnL row. Date is YYYY-MM-DD.
type DailySnapshot struct {
	Date          string
	RealizedPnL   float64
	TradeCount    int
	CumulativePnL float64
}

// MarketStatus is one market's slice of an engine status snapshot.
type MarketStatus struct {
	ID         string
	Enabled    bool
	Price      float64
	Anchor     float64
	GridTop    float64
	OpenOrders int
	OpenLots   int
}

// EngineStatus is the read-only snapshot exposed through the control port.
type EngineStatus struct {
	Running          bool
	PaperMode        bool
	MonthlyProfitUSD float64
	Markets          []MarketStatus
}
