package ports

import (
	"context"
	"errors"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

// Adapter failure kinds. Adapters wrap exchange-specific errors into
// these sentinels so the engine can branch without string matching.
var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidSize       = errors.New("invalid order size")
	ErrRateLimited       = errors.New("rate limited")
)

// TickerFunc receives one price update per call from a ticker stream.
type TickerFunc func(domain.TickerEvent)

// FillFunc receives one user fill per call from a fills stream.
type FillFunc func(domain.Fill)

// Exchange is the adapter contract for a spot exchange. Implementations
// are Mock, Coinbase, and the paper wrapper composing either of them.
type Exchange interface {
	// GetProducts lists tradable products.
	GetProducts(ctx context.Context) ([]domain.Product, error)

	// GetTicker returns the last trade price. Callers treat <= 0 as
	// "no data".
	GetTicker(ctx context.Context, productID string) (float64, error)

	// GetBalances returns available balances keyed by currency.
	GetBalances(ctx context.Context) (map[string]float64, error)

	// PlaceLimitOrder submits a post-only limit order and returns the
	// exchange-assigned order id.
	PlaceLimitOrder(ctx context.Context, productID string, side domain.Side, price, size float64, postOnly bool) (string, error)

	// CancelOrder cancels by id. Cancelling an already-terminal order
	// collapses to false without error.
	CancelOrder(ctx context.Context, orderID string) (bool, error)

	// ListOpenOrders returns open orders, optionally filtered by
	// product ("" means all).
	ListOpenOrders(ctx context.Context, productID string) ([]domain.Order, error)

	// GetFills returns fills after the given cursor ("" means from the
	// start of what the exchange retains).
	GetFills(ctx context.Context, since string) ([]domain.Fill, error)

	// GetCandles returns OHLCV bars between start and end (UNIX
	// seconds) at the given granularity, e.g. "ONE_MINUTE".
	GetCandles(ctx context.Context, productID string, start, end int64, granularity string) ([]domain.Candle, error)

	// StreamTicker delivers price updates until ctx is cancelled,
	// reconnecting with backoff on any failure.
	StreamTicker(ctx context.Context, productIDs []string, fn TickerFunc) error

	// StreamFills delivers user fills until ctx is cancelled.
	StreamFills(ctx context.Context, fn FillFunc) error
}

// FillChecker is the synchronous matcher exposed by the paper wrapper.
// The engine feeds it the OPEN orders it knows about and receives the
// fills the current price would produce.
type FillChecker interface {
	CheckFills(marketID string, currentPrice float64, orders []domain.Order) []domain.Fill
}
