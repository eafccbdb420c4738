package domain

import "time"

// Market is a tradable product the engine may run a grid on.
// Markets are created on product sync (or on demand) and never deleted;
// the control plane toggles Enabled.
type Market struct {
	ID          string // e.g. "BTC-USD"
	Enabled     bool
	IsFavorite  bool
	MarketRank  int
	Volume24h   float64
	Settings    map[string]any // market-specific overrides, stored as JSON
	LastUpdated time.Time
}

// Product is a listing returned by an exchange adapter.
type Product struct {
	ID        string
	Base      string
	Quote     string
	Volume24h float64
	Status    string
}

// Candle is one OHLCV bar. Start is UNIX seconds.
type Candle struct {
	Start  int64
	Low    float64
	High   float64
	Open   float64
	Close  float64
	Volume float64
}

// TickerEvent is a single price update from an adapter stream.
type TickerEvent struct {
	ProductID string
	Price     float64
}
