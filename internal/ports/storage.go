package ports

import (
	"context"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

// Storage persists the engine's durable state: markets, orders, fills,
// lots, bot state, configuration and daily snapshots.
type Storage interface {
	// Markets
	UpsertMarket(ctx context.Context, m domain.Market) error
	GetMarket(ctx context.Context, id string) (domain.Market, error)
	ListMarkets(ctx context.Context) ([]domain.Market, error)
	ListEnabledMarkets(ctx context.Context) ([]domain.Market, error)
	SetMarketEnabled(ctx context.Context, id string, enabled bool) error

	// Orders
	SaveOrder(ctx context.Context, o domain.Order) error
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) error
	GetOpenOrders(ctx context.Context, marketID string) ([]domain.Order, error)
	GetAllOpenOrders(ctx context.Context) ([]domain.Order, error)

	// Fills (append-only)
	SaveFill(ctx context.Context, f domain.Fill) error
	ListFills(ctx context.Context, marketID string) ([]domain.Fill, error)

	// Lots
	SaveLot(ctx context.Context, l domain.Lot) (int64, error)
	SetLotSell(ctx context.Context, id int64, sellOrderID string, sellPrice float64) error
	GetOpenLots(ctx context.Context, marketID string) ([]domain.Lot, error)
	GetLotBySellOrder(ctx context.Context, sellOrderID string) (domain.Lot, bool, error)
	CloseLot(ctx context.Context, id int64, realizedPnL float64) error

	// BotState: value is JSON-encoded. GetBotState reports whether the
	// key existed.
	GetBotState(ctx context.Context, key string, out any) (bool, error)
	SetBotState(ctx context.Context, key string, value any) error

	// Configuration
	UpsertConfig(ctx context.Context, key, value string) error
	GetAllConfig(ctx context.Context) (map[string]string, error)

	// Daily snapshots
	SaveDailySnapshot(ctx context.Context, s domain.DailySnapshot) error
	GetDailySnapshots(ctx context.Context) ([]domain.DailySnapshot, error)

	// EmergencyStop disables every market and marks every OPEN order
	// CANCELED in a single transaction, returning the orders that were
	// open so the caller can cancel them on the exchange.
	EmergencyStop(ctx context.Context) ([]domain.Order, error)

	Close() error
}
