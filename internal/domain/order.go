package domain

import "time"

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderStatus represents the lifecycle of an exchange order.
// OPEN is the only non-terminal state: an order moves to FILLED or
// CANCELED exactly once and never back.
type OrderStatus string

const (
	OrderStatusOpen     OrderStatus = "OPEN"
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusCanceled OrderStatus = "CANCELED"
)

// Order is a limit order tracked by the engine. ID is the
// exchange-assigned id (or a synthetic paper id).
type Order struct {
	ID        string
	MarketID  string
	Side      Side
	Price     float64
	Size      float64
	Status    OrderStatus
	CreatedAt time.Time
}

// Fill is one observed execution of an order. Fills are append-only.
type Fill struct {
	ID        string
	OrderID   string
	MarketID  string
	Side      Side
	Price     float64
	Size      float64
	Fee       float64
	Timestamp time.Time
}
