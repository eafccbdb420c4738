package ports

import (
	"context"

	"github.com/alejandrodnm/gridbot/internal/domain"
	"github.com/alejandrodnm/gridbot/internal/domain/strategy"
)

// Control is the narrow surface the control plane (HTTP layer, CLI)
// uses to drive the engine. The engine implements it; callers never
// reach into engine internals.
type Control interface {
	// UpdateConfig hot-reloads a subset of strategy options and
	// persists the changed keys.
	UpdateConfig(ctx context.Context, p strategy.Patch) error

	// EmergencyStop disables all markets and cancels all open orders.
	EmergencyStop(ctx context.Context) error

	// SetMarketEnabled toggles one market. Enabling a market disables
	// every other one (only one market trades at a time).
	SetMarketEnabled(ctx context.Context, marketID string, enabled bool) error

	// CancelOrder cancels a single order on the exchange and in
	// storage. Idempotent for already-terminal orders.
	CancelOrder(ctx context.Context, orderID string) error

	// Status returns a read-only snapshot for status endpoints.
	Status(ctx context.Context) (domain.EngineStatus, error)
}
