package coinbase

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/gridbot/internal/domain"
	"github.com/alejandrodnm/gridbot/internal/ports"
)

func testKeyPEM(t *testing.T) (string, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
	return string(pemBytes), key
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	pemStr, _ := testKeyPEM(t)
	c, err := New("organizations/test/apiKeys/key-1", pemStr,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func TestMintJWT(t *testing.T) {
	pemStr, key := testKeyPEM(t)
	creds, err := newCredentials("organizations/test/apiKeys/key-1", pemStr)
	require.NoError(t, err)

	signed, err := creds.mintJWT("GET api.coinbase.com/api/v3/brokerage/accounts")
	require.NoError(t, err)

	tok, err := jwt.Parse(signed, func(tok *jwt.Token) (any, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"ES256"}))
	require.NoError(t, err)
	require.True(t, tok.Valid)

	claims := tok.Claims.(jwt.MapClaims)
	assert.Equal(t, "organizations/test/apiKeys/key-1", claims["sub"])
	assert.Equal(t, "cdp", claims["iss"])
	assert.Equal(t, "GET api.coinbase.com/api/v3/brokerage/accounts", claims["uri"])
	assert.Equal(t, "organizations/test/apiKeys/key-1", tok.Header["kid"])
	assert.NotEmpty(t, tok.Header["nonce"])

	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(2*time.Minute), exp.Time, 10*time.Second)
}

func TestPlaceLimitOrderWire(t *testing.T) {
	var captured createOrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/brokerage/orders", r.URL.Path)
		require.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "Bearer "))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(createOrderResponse{
			Success: true,
			SuccessResponse: struct {
				OrderID string `json:"order_id"`
			}{OrderID: "ord-abc"},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	id, err := c.PlaceLimitOrder(context.Background(), "BTC-USD", domain.SideBuy, 59800.129999, 0.00123456789, true)
	require.NoError(t, err)
	assert.Equal(t, "ord-abc", id)

	cfg := captured.OrderConfiguration.LimitLimitGTC
	assert.Equal(t, "59800.13", cfg.LimitPrice)
	assert.Equal(t, "0.00123457", cfg.BaseSize)
	assert.True(t, cfg.PostOnly)
	assert.Equal(t, "BUY", captured.Side)
	assert.NotEmpty(t, captured.ClientOrderID)
}

func TestPlaceLimitOrderInsufficientFunds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(createOrderResponse{
			Success: false,
			ErrorResponse: struct {
				Error        string `json:"error"`
				Message      string `json:"message"`
				ErrorDetails string `json:"error_details"`
			}{Error: "INSUFFICIENT_FUND", Message: "Insufficient balance in source account"},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.PlaceLimitOrder(context.Background(), "BTC-USD", domain.SideBuy, 59800, 10, true)
	assert.ErrorIs(t, err, ports.ErrInsufficientFunds)
}

func TestRetryAfterRateLimit(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(tickerResponse{
			Trades: []struct {
				Price string `json:"price"`
			}{{Price: "60000.5"}},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	price, err := c.GetTicker(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, 60000.5, price)
	assert.Equal(t, 2, calls)
}

func TestTickerFallsBackToMid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(tickerResponse{BestBid: "59990", BestAsk: "60010"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	price, err := c.GetTicker(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, 60000.0, price)
}

func TestGetCandlesChronological(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Venue returns newest first.
		json.NewEncoder(w).Encode(candlesResponse{Candles: []candleDTO{
			{Start: "180", Low: "3", High: "4"},
			{Start: "120", Low: "1", High: "2"},
		}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	candles, err := c.GetCandles(context.Background(), "BTC-USD", 100, 200, "ONE_MINUTE")
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(120), candles[0].Start)
	assert.Equal(t, int64(180), candles[1].Start)
}

func TestGetBalancesPagination(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		resp := accountsResponse{}
		if calls == 1 {
			resp.HasNext = true
			resp.Cursor = "next"
			resp.Accounts = []struct {
				Currency         string `json:"currency"`
				AvailableBalance struct {
					Value string `json:"value"`
				} `json:"available_balance"`
			}{{Currency: "USD"}}
			resp.Accounts[0].AvailableBalance.Value = "1000.5"
		} else {
			assert.Equal(t, "next", r.URL.Query().Get("cursor"))
			resp.Accounts = []struct {
				Currency         string `json:"currency"`
				AvailableBalance struct {
					Value string `json:"value"`
				} `json:"available_balance"`
			}{{Currency: "BTC"}}
			resp.Accounts[0].AvailableBalance.Value = "0.25"
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	bals, err := c.GetBalances(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1000.5, bals["USD"])
	assert.Equal(t, 0.25, bals["BTC"])
	assert.Equal(t, 2, calls)
}
