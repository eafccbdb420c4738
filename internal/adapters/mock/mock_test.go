package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/gridbot/internal/domain"
	"github.com/alejandrodnm/gridbot/internal/ports"
)

func TestPlaceAndCancelRestoresBalance(t *testing.T) {
	e := New()
	ctx := context.Background()
	e.SetBalance("USD", 1000)

	id, err := e.PlaceLimitOrder(ctx, "BTC-USD", domain.SideBuy, 50000, 0.01, true)
	require.NoError(t, err)

	bals, err := e.GetBalances(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 500.0, bals["USD"], 1e-9)

	ok, err := e.CancelOrder(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	bals, _ = e.GetBalances(ctx)
	assert.InDelta(t, 1000.0, bals["USD"], 1e-9)

	// Second cancel is a no-op.
	ok, err = e.CancelOrder(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInsufficientFunds(t *testing.T) {
	e := New()
	e.SetBalance("USD", 10)

	_, err := e.PlaceLimitOrder(context.Background(), "BTC-USD", domain.SideBuy, 50000, 0.01, true)
	assert.ErrorIs(t, err, ports.ErrInsufficientFunds)
}

func TestInvalidSize(t *testing.T) {
	e := New()
	_, err := e.PlaceLimitOrder(context.Background(), "BTC-USD", domain.SideBuy, 50000, 0, true)
	assert.ErrorIs(t, err, ports.ErrInvalidSize)
}

func TestMatchOpenOrders(t *testing.T) {
	e := New()
	ctx := context.Background()

	buyID, err := e.PlaceLimitOrder(ctx, "BTC-USD", domain.SideBuy, 59000, 0.01, true)
	require.NoError(t, err)
	_, err = e.PlaceLimitOrder(ctx, "BTC-USD", domain.SideSell, 61000, 0.01, true)
	require.NoError(t, err)

	// Price between the two: nothing crosses.
	assert.Empty(t, e.MatchOpenOrders("BTC-USD", 60000))

	fills := e.MatchOpenOrders("BTC-USD", 58900)
	require.Len(t, fills, 1)
	assert.Equal(t, buyID, fills[0].OrderID)
	assert.Equal(t, 59000.0, fills[0].Price)

	open, err := e.ListOpenOrders(ctx, "BTC-USD")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, domain.SideSell, open[0].Side)

	// Fills are visible through the polling surface.
	got, err := e.GetFills(ctx, "")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestGetCandlesWindow(t *testing.T) {
	e := New()
	e.SetCandles("BTC-USD", []domain.Candle{
		{Start: 100, Low: 1, High: 2},
		{Start: 160, Low: 3, High: 4},
		{Start: 220, Low: 5, High: 6},
	})

	got, err := e.GetCandles(context.Background(), "BTC-USD", 150, 200, "ONE_MINUTE")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(160), got[0].Start)
}
