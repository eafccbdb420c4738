package coinbase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alejandrodnm/gridbot/internal/domain"
	"github.com/alejandrodnm/gridbot/internal/ports"
)

const (
	wsReadDeadline   = 60 * time.Second
	wsInitialBackoff = time.Second
	wsMaxBackoff     = 30 * time.Second

	// wsHealthySession is how long a connection must live for the next
	// reconnect to start from the initial backoff again.
	wsHealthySession = time.Minute
)

type wsSubscribe struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids,omitempty"`
	Channel    string   `json:"channel"`
	JWT        string   `json:"jwt,omitempty"`
}

type wsMessage struct {
	Channel string `json:"channel"`
	Events  []struct {
		Type    string `json:"type"`
		Tickers []struct {
			ProductID string `json:"product_id"`
			Price     string `json:"price"`
		} `json:"tickers"`
		Fills []struct {
			TradeID   string `json:"trade_id"`
			OrderID   string `json:"order_id"`
			ProductID string `json:"product_id"`
			Side      string `json:"order_side"`
			Price     string `json:"price"`
			Size      string `json:"size"`
			Fee       string `json:"commission"`
			TradeTime string `json:"trade_time"`
		} `json:"fills"`
	} `json:"events"`
}

// StreamTicker subscribes to the ticker channel and delivers every
// price update until ctx is cancelled, reconnecting with exponential
// backoff on any failure.
func (c *Client) StreamTicker(ctx context.Context, productIDs []string, fn ports.TickerFunc) error {
	sub := wsSubscribe{Type: "subscribe", ProductIDs: productIDs, Channel: "ticker"}
	return c.streamLoop(ctx, "ticker", sub, false, func(msg wsMessage) {
		for _, ev := range msg.Events {
			for _, t := range ev.Tickers {
				if p := parseFloat(t.Price); p > 0 {
					fn(domain.TickerEvent{ProductID: t.ProductID, Price: p})
				}
			}
		}
	})
}

// StreamFills subscribes to the authenticated user channel and delivers
// own-order fills until ctx is cancelled.
func (c *Client) StreamFills(ctx context.Context, fn ports.FillFunc) error {
	sub := wsSubscribe{Type: "subscribe", Channel: "user"}
	return c.streamLoop(ctx, "user", sub, true, func(msg wsMessage) {
		for _, ev := range msg.Events {
			for _, f := range ev.Fills {
				ts, _ := time.Parse(time.RFC3339, f.TradeTime)
				fn(domain.Fill{
					ID:        f.TradeID,
					OrderID:   f.OrderID,
					MarketID:  f.ProductID,
					Side:      domain.Side(f.Side),
					Price:     parseFloat(f.Price),
					Size:      parseFloat(f.Size),
					Fee:       parseFloat(f.Fee),
					Timestamp: ts,
				})
			}
		}
	})
}

func (c *Client) streamLoop(ctx context.Context, channel string, sub wsSubscribe, authed bool, handle func(wsMessage)) error {
	var backoff time.Duration
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		err := c.streamOnce(ctx, sub, authed, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		backoff = nextBackoff(backoff, time.Since(start))
		c.log.Warn("websocket dropped, reconnecting",
			"channel", channel, "backoff", backoff, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// nextBackoff returns the delay before the next reconnect attempt.
// Short-lived sessions double the previous delay up to the cap; a
// session that outlived wsHealthySession starts over at the initial
// backoff.
func nextBackoff(prev, sessionLen time.Duration) time.Duration {
	if prev == 0 || sessionLen >= wsHealthySession {
		return wsInitialBackoff
	}
	next := prev * 2
	if next > wsMaxBackoff {
		next = wsMaxBackoff
	}
	return next
}

func (c *Client) streamOnce(ctx context.Context, sub wsSubscribe, authed bool, handle func(wsMessage)) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if authed {
		token, err := c.creds.mintJWT("")
		if err != nil {
			return err
		}
		sub.JWT = token
	}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}

	// Unblock ReadMessage when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		handle(msg)
	}
}
