package paper

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/gridbot/internal/adapters/mock"
	"github.com/alejandrodnm/gridbot/internal/domain"
)

func TestMarketDataPassesThrough(t *testing.T) {
	delegate := mock.New()
	delegate.SetPrice("BTC-USD", 61234)
	w := New(delegate)

	price, err := w.GetTicker(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, 61234.0, price)

	products, err := w.GetProducts(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, products)
}

func TestBalancesAreUnbounded(t *testing.T) {
	delegate := mock.New()
	delegate.SetBalance("USD", 5)
	w := New(delegate)

	bals, err := w.GetBalances(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1e12, bals["USD"])
	assert.Equal(t, 1e12, bals["BTC"])
}

func TestOrdersNeverReachDelegate(t *testing.T) {
	delegate := mock.New()
	w := New(delegate)
	ctx := context.Background()

	id, err := w.PlaceLimitOrder(ctx, "BTC-USD", domain.SideBuy, 59000, 0.01, true)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "paper_"))

	// The delegate saw nothing.
	delegateOpen, err := delegate.ListOpenOrders(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, delegateOpen)

	open, err := w.ListOpenOrders(ctx, "BTC-USD")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, id, open[0].ID)
}

func TestCancelAlwaysSucceeds(t *testing.T) {
	w := New(mock.New())
	ctx := context.Background()

	id, err := w.PlaceLimitOrder(ctx, "BTC-USD", domain.SideBuy, 59000, 0.01, true)
	require.NoError(t, err)

	ok, err := w.CancelOrder(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	// Unknown id (e.g. from before a restart) still reports success.
	ok, err = w.CancelOrder(ctx, "paper_123_deadbeef")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckFills(t *testing.T) {
	w := New(mock.New())
	ctx := context.Background()

	buyID, err := w.PlaceLimitOrder(ctx, "BTC-USD", domain.SideBuy, 59000, 0.01, true)
	require.NoError(t, err)
	sellID, err := w.PlaceLimitOrder(ctx, "BTC-USD", domain.SideSell, 61000, 0.01, true)
	require.NoError(t, err)

	orders, err := w.ListOpenOrders(ctx, "BTC-USD")
	require.NoError(t, err)

	// Price between buy and sell: no fills.
	assert.Empty(t, w.CheckFills("BTC-USD", 60000, orders))

	// Price at the buy limit fills it, at the limit price, fee zero.
	fills := w.CheckFills("BTC-USD", 59000, orders)
	require.Len(t, fills, 1)
	assert.Equal(t, buyID, fills[0].OrderID)
	assert.Equal(t, 59000.0, fills[0].Price)
	assert.Zero(t, fills[0].Fee)

	// The filled order is out of the cache; the sell remains.
	open, err := w.ListOpenOrders(ctx, "BTC-USD")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, sellID, open[0].ID)

	// A spike through the sell limit fills it too.
	fills = w.CheckFills("BTC-USD", 61500, open)
	require.Len(t, fills, 1)
	assert.Equal(t, sellID, fills[0].OrderID)
	assert.Equal(t, 61000.0, fills[0].Price)
}

func TestCheckFillsIgnoresZeroPrice(t *testing.T) {
	w := New(mock.New())
	orders := []domain.Order{{
		ID: "paper_1_abc", MarketID: "BTC-USD", Side: domain.SideBuy,
		Price: 59000, Size: 0.01, Status: domain.OrderStatusOpen,
	}}
	assert.Empty(t, w.CheckFills("BTC-USD", 0, orders))
}

func TestGetFillsEmpty(t *testing.T) {
	w := New(mock.New())
	fills, err := w.GetFills(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, fills)
}
