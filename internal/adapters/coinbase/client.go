// Package coinbase implements ports.Exchange against the Coinbase
// Advanced Trade REST API and websocket feed.
package coinbase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/gridbot/internal/ports"
)

const (
	defaultBaseURL = "https://api.coinbase.com"
	defaultWSURL   = "wss://advanced-trade-ws.coinbase.com"

	maxRetries = 3
)

// Client is the Advanced Trade adapter. Safe for concurrent use.
type Client struct {
	baseURL string
	wsURL   string
	creds   *credentials
	http    *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different REST endpoint (tests).
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

// WithWSURL points the client at a different websocket endpoint.
func WithWSURL(u string) Option { return func(c *Client) { c.wsURL = u } }

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// New builds a client from a CDP API key name and its EC private key
// PEM. Requests are throttled to stay under the public rate limits.
func New(keyName, privateKeyPEM string, log *slog.Logger, opts ...Option) (*Client, error) {
	creds, err := newCredentials(keyName, privateKeyPEM)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL: defaultBaseURL,
		wsURL:   defaultWSURL,
		creds:   creds,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		log:     log.With("adapter", "coinbase"),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// doJSON performs one authenticated request, retrying transient
// failures with exponential backoff. 429 responses honor Retry-After
// when present.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("coinbase: encode request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(attempt, lastErr)):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		reqURL := c.baseURL + path
		if len(query) > 0 {
			reqURL += "?" + query.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("coinbase: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		host := req.URL.Host
		token, err := c.creds.mintJWT(fmt.Sprintf("%s %s%s", method, host, req.URL.Path))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("coinbase: %s %s: %w", method, path, err)
			c.log.Warn("request failed, retrying", "path", path, "attempt", attempt, "error", err)
			continue
		}

		raw, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("coinbase: read response: %w", readErr)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(raw, out); err != nil {
				return fmt.Errorf("coinbase: decode %s %s: %w", method, path, err)
			}
			return nil
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = httpError{status: resp.StatusCode, retryAfter: resp.Header.Get("Retry-After"), body: raw}
			c.log.Warn("rate limited", "path", path, "attempt", attempt)
			continue
		case resp.StatusCode >= 500:
			lastErr = httpError{status: resp.StatusCode, body: raw}
			c.log.Warn("server error, retrying", "path", path, "status", resp.StatusCode, "attempt", attempt)
			continue
		default:
			// 4xx other than 429 will not improve on retry.
			return mapAPIError(resp.StatusCode, raw)
		}
	}

	if he, ok := lastErr.(httpError); ok && he.status == http.StatusTooManyRequests {
		return fmt.Errorf("coinbase: %s %s after %d retries: %w", method, path, maxRetries, ports.ErrRateLimited)
	}
	return fmt.Errorf("coinbase: %s %s: retries exhausted: %w", method, path, lastErr)
}

type httpError struct {
	status     int
	retryAfter string
	body       []byte
}

func (e httpError) Error() string {
	return fmt.Sprintf("http %d: %s", e.status, string(e.body))
}

// backoff returns the wait before the given retry attempt, honoring a
// 429 Retry-After header when the server sent one.
func backoff(attempt int, lastErr error) time.Duration {
	if he, ok := lastErr.(httpError); ok && he.retryAfter != "" {
		if secs, err := strconv.Atoi(he.retryAfter); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Duration(1<<uint(attempt-1)) * time.Second
}

func mapAPIError(status int, body []byte) error {
	msg := strings.ToLower(string(body))
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("coinbase: http 404: %w", ports.ErrNotFound)
	case strings.Contains(msg, "insufficient"):
		return fmt.Errorf("coinbase: http %d: %s: %w", status, body, ports.ErrInsufficientFunds)
	case strings.Contains(msg, "size") && (strings.Contains(msg, "invalid") || strings.Contains(msg, "too small")):
		return fmt.Errorf("coinbase: http %d: %s: %w", status, body, ports.ErrInvalidSize)
	default:
		return fmt.Errorf("coinbase: http %d: %s", status, body)
	}
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
