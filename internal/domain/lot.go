package domain

import "time"

// LotStatus is the lifecycle of a buy→sell cycle. A lot is CLOSED when
// its matching sell order fills; CLOSED is terminal.
type LotStatus string

const (
	LotStatusOpen   LotStatus = "OPEN"
	LotStatusClosed LotStatus = "CLOSED"
)

// Lot pairs one buy fill with its matching sell order and carries the
// realized PnL once the cycle completes.
type Lot struct {
	ID          int64
	MarketID    string
	BuyOrderID  string
	BuyPrice    float64
	BuySize     float64
	BuyCost     float64 // BuyPrice * BuySize
	BuyTime     time.Time
	SellOrderID string // empty until the exit sell is placed
	SellPrice   float64
	Status      LotStatus
	RealizedPnL float64
}
