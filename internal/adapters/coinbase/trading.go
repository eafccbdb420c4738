package coinbase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/gridbot/internal/domain"
	"github.com/alejandrodnm/gridbot/internal/ports"
)

func (c *Client) GetProducts(ctx context.Context) ([]domain.Product, error) {
	var resp productsResponse
	q := url.Values{"product_type": {"SPOT"}}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v3/brokerage/products", q, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.Product, 0, len(resp.Products))
	for _, p := range resp.Products {
		if p.TradingDisabled {
			continue
		}
		out = append(out, domain.Product{
			ID:        p.ProductID,
			Base:      p.BaseName,
			Quote:     p.QuoteName,
			Volume24h: parseFloat(p.Volume24h),
			Status:    p.Status,
		})
	}
	return out, nil
}

func (c *Client) GetTicker(ctx context.Context, productID string) (float64, error) {
	var resp tickerResponse
	path := fmt.Sprintf("/api/v3/brokerage/products/%s/ticker", productID)
	q := url.Values{"limit": {"1"}}
	if err := c.doJSON(ctx, http.MethodGet, path, q, nil, &resp); err != nil {
		return 0, err
	}
	if len(resp.Trades) > 0 {
		return parseFloat(resp.Trades[0].Price), nil
	}
	// No recent trades: fall back to the mid of the book.
	bid, ask := parseFloat(resp.BestBid), parseFloat(resp.BestAsk)
	if bid > 0 && ask > 0 {
		return (bid + ask) / 2, nil
	}
	return 0, nil
}

func (c *Client) GetBalances(ctx context.Context) (map[string]float64, error) {
	out := make(map[string]float64)
	cursor := ""
	for {
		q := url.Values{"limit": {"250"}}
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		var resp accountsResponse
		if err := c.doJSON(ctx, http.MethodGet, "/api/v3/brokerage/accounts", q, nil, &resp); err != nil {
			return nil, err
		}
		for _, a := range resp.Accounts {
			out[a.Currency] += parseFloat(a.AvailableBalance.Value)
		}
		if !resp.HasNext || resp.Cursor == "" {
			break
		}
		cursor = resp.Cursor
	}
	return out, nil
}

// PlaceLimitOrder submits a GTC limit order. Price and size go on the
// wire as decimal strings so float formatting never produces values the
// venue rejects.
func (c *Client) PlaceLimitOrder(ctx context.Context, productID string, side domain.Side, price, size float64, postOnly bool) (string, error) {
	if price <= 0 || size <= 0 {
		return "", fmt.Errorf("coinbase.PlaceLimitOrder: price=%v size=%v: %w", price, size, ports.ErrInvalidSize)
	}

	req := createOrderRequest{
		ClientOrderID: uuid.NewString(),
		ProductID:     productID,
		Side:          string(side),
		OrderConfiguration: orderConfiguration{
			LimitLimitGTC: limitGTC{
				BaseSize:   decimal.NewFromFloat(size).Round(8).String(),
				LimitPrice: decimal.NewFromFloat(price).Round(2).String(),
				PostOnly:   postOnly,
			},
		},
	}

	var resp createOrderResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v3/brokerage/orders", nil, req, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", mapAPIError(http.StatusBadRequest,
			[]byte(resp.ErrorResponse.Error+" "+resp.ErrorResponse.Message+" "+resp.ErrorResponse.ErrorDetails))
	}
	return resp.SuccessResponse.OrderID, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	req := map[string][]string{"order_ids": {orderID}}
	var resp cancelOrdersResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v3/brokerage/orders/batch_cancel", nil, req, &resp); err != nil {
		return false, err
	}
	for _, r := range resp.Results {
		if r.OrderID == orderID {
			return r.Success, nil
		}
	}
	return false, nil
}

func (c *Client) ListOpenOrders(ctx context.Context, productID string) ([]domain.Order, error) {
	q := url.Values{"order_status": {"OPEN"}, "limit": {"250"}}
	if productID != "" {
		q.Set("product_id", productID)
	}

	var resp listOrdersResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v3/brokerage/orders/historical/batch", q, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.Order, 0, len(resp.Orders))
	for _, o := range resp.Orders {
		created, _ := time.Parse(time.RFC3339, o.CreatedTime)
		out = append(out, domain.Order{
			ID:        o.OrderID,
			MarketID:  o.ProductID,
			Side:      domain.Side(o.Side),
			Price:     parseFloat(o.OrderConfiguration.LimitLimitGTC.LimitPrice),
			Size:      parseFloat(o.OrderConfiguration.LimitLimitGTC.BaseSize),
			Status:    domain.OrderStatusOpen,
			CreatedAt: created,
		})
	}
	return out, nil
}

// GetFills returns fills executed strictly after the since cursor
// (RFC3339; "" means everything the venue retains).
func (c *Client) GetFills(ctx context.Context, since string) ([]domain.Fill, error) {
	q := url.Values{"limit": {"250"}}
	if since != "" {
		q.Set("start_sequence_timestamp", since)
	}

	var resp fillsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v3/brokerage/orders/historical/fills", q, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.Fill, 0, len(resp.Fills))
	for _, f := range resp.Fills {
		ts, _ := time.Parse(time.RFC3339, f.TradeTime)
		out = append(out, domain.Fill{
			ID:        f.TradeID,
			OrderID:   f.OrderID,
			MarketID:  f.ProductID,
			Side:      domain.Side(f.Side),
			Price:     parseFloat(f.Price),
			Size:      parseFloat(f.Size),
			Fee:       parseFloat(f.Commission),
			Timestamp: ts,
		})
	}
	return out, nil
}

func (c *Client) GetCandles(ctx context.Context, productID string, start, end int64, granularity string) ([]domain.Candle, error) {
	path := fmt.Sprintf("/api/v3/brokerage/products/%s/candles", productID)
	q := url.Values{
		"start":       {strconv.FormatInt(start, 10)},
		"end":         {strconv.FormatInt(end, 10)},
		"granularity": {granularity},
	}

	var resp candlesResponse
	if err := c.doJSON(ctx, http.MethodGet, path, q, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.Candle, 0, len(resp.Candles))
	for _, cd := range resp.Candles {
		s, _ := strconv.ParseInt(cd.Start, 10, 64)
		out = append(out, domain.Candle{
			Start:  s,
			Low:    parseFloat(cd.Low),
			High:   parseFloat(cd.High),
			Open:   parseFloat(cd.Open),
			Close:  parseFloat(cd.Close),
			Volume: parseFloat(cd.Volume),
		})
	}
	// The API returns newest first; callers want chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
