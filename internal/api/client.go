// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the client for the shop back-office REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/shopdesk/internal/menu"
	"github.com/jeranaias/shopdesk/internal/session"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 15 * time.Second

	// DefaultMaxRetries is the total number of attempts for idempotent calls.
	DefaultMaxRetries = 3

	// DefaultBackoff is the delay before the first retry; it doubles each time.
	DefaultBackoff = 250 * time.Millisecond

	// MaxBackoff caps the retry delay.
	MaxBackoff = 4 * time.Second

	// MaxResponseSize caps response bodies (5 MiB).
	MaxResponseSize = 5 * 1024 * 1024
)

// sharedTransport pools connections across clients.
var sharedTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	MaxIdleConns:          50,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the back-office API. Configure it with the With* methods
// before first use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	log        *slog.Logger

	token          func() string
	onSuccess      func()
	onUnauthorized func()
}

// New creates a client for baseURL (for example "https://shop.example/api").
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: sharedTransport,
		},
		maxRetries: DefaultMaxRetries,
		backoff:    DefaultBackoff,
		log:        slog.New(slog.DiscardHandler),
		token:      func() string { return "" },
	}
}

// WithTimeout sets the per-request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// WithRateLimit caps outgoing requests per second. rps <= 0 removes the cap.
func (c *Client) WithRateLimit(rps float64) *Client {
	if rps <= 0 {
		c.limiter = nil
		return c
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// WithRetry sets the attempt count and initial backoff for idempotent calls.
func (c *Client) WithRetry(attempts int, backoff time.Duration) *Client {
	if attempts > 0 {
		c.maxRetries = attempts
	}
	if backoff > 0 {
		c.backoff = backoff
	}
	return c
}

// WithLogger sets the request logger.
func (c *Client) WithLogger(l *slog.Logger) *Client {
	if l != nil {
		c.log = l
	}
	return c
}

// WithTokenSource sets where bearer tokens come from, usually Store.Token.
func (c *Client) WithTokenSource(fn func() string) *Client {
	if fn != nil {
		c.token = fn
	}
	return c
}

// OnSuccess registers fn to run after every successful authenticated call.
func (c *Client) OnSuccess(fn func()) *Client {
	c.onSuccess = fn
	return c
}

// OnUnauthorized registers fn to run when the server rejects the token.
func (c *Client) OnUnauthorized(fn func()) *Client {
	c.onUnauthorized = fn
	return c
}

// =============================================================================
// ENDPOINTS
// =============================================================================

// Login exchanges credentials for a session record. It satisfies
// session.Authenticator together with Logout.
func (c *Client) Login(ctx context.Context, username, password string) (session.Record, error) {
	var resp loginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", loginRequest{Username: username, Password: password}, &resp, false)
	if errors.Is(err, ErrUnauthorized) {
		return session.Record{}, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	if err != nil {
		return session.Record{}, err
	}
	if resp.Token == "" {
		return session.Record{}, errors.New("login response carried no token")
	}
	return session.Record{
		Token:    resp.Token,
		IssuedAt: resp.IssuedAt,
		User: session.User{
			ID:   resp.User.ID,
			Name: resp.User.Name,
			Role: resp.User.Role,
		},
	}, nil
}

// Logout revokes token on the server. An already rejected token counts as
// logged out.
func (c *Client) Logout(ctx context.Context, token string) error {
	err := c.doToken(ctx, http.MethodPost, "/auth/logout", nil, nil, token)
	if errors.Is(err, ErrUnauthorized) {
		return nil
	}
	return err
}

// Categories lists the quick shopping categories.
func (c *Client) Categories(ctx context.Context) ([]menu.Category, error) {
	var out []menu.Category
	if err := c.do(ctx, http.MethodGet, "/categories", nil, &out, true); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

// Products lists every product.
func (c *Client) Products(ctx context.Context) ([]menu.Product, error) {
	var out []menu.Product
	if err := c.do(ctx, http.MethodGet, "/products", nil, &out, true); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

// Catalog fetches categories and products.
func (c *Client) Catalog(ctx context.Context) (menu.Catalog, error) {
	cats, err := c.Categories(ctx)
	if err != nil {
		return menu.Catalog{}, err
	}
	prods, err := c.Products(ctx)
	if err != nil {
		return menu.Catalog{}, err
	}
	return menu.Catalog{Categories: cats, Products: prods}, nil
}

// QuickShopOrder fetches the saved arrangement. A shop that never saved one
// gets an empty Order.
func (c *Client) QuickShopOrder(ctx context.Context) (menu.Order, error) {
	var out menu.Order
	err := c.do(ctx, http.MethodGet, "/quick-shopping/order", nil, &out, true)
	if errors.Is(err, ErrNotFound) {
		return menu.Order{}, nil
	}
	if err != nil {
		return menu.Order{}, fmt.Errorf("load quick shopping order: %w", err)
	}
	return out, nil
}

// SaveQuickShopOrder replaces the saved arrangement.
func (c *Client) SaveQuickShopOrder(ctx context.Context, order menu.Order) error {
	if order.Categories == nil {
		order.Categories = []menu.CategoryOrder{}
	}
	if err := c.do(ctx, http.MethodPut, "/quick-shopping/order", order, nil, true); err != nil {
		return fmt.Errorf("save quick shopping order: %w", err)
	}
	return nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

// do sends one request. authed requests carry the current bearer token and
// drive the success and unauthorized hooks.
func (c *Client) do(ctx context.Context, method, path string, body, out any, authed bool) error {
	if !authed {
		return c.send(ctx, method, path, body, out, "")
	}
	token := c.token()
	if token == "" {
		return session.ErrNotAuthenticated
	}
	err := c.send(ctx, method, path, body, out, token)
	switch {
	case err == nil:
		if c.onSuccess != nil {
			c.onSuccess()
		}
	case errors.Is(err, ErrUnauthorized):
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
	}
	return err
}

// doToken sends with an explicit token and skips the hooks.
func (c *Client) doToken(ctx context.Context, method, path string, body, out any, token string) error {
	if token == "" {
		return session.ErrNotAuthenticated
	}
	return c.send(ctx, method, path, body, out, token)
}

func (c *Client) send(ctx context.Context, method, path string, body, out any, token string) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	attempts := 1
	if method == http.MethodGet || method == http.MethodPut {
		attempts = c.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.calculateBackoff(attempt)
			c.log.Debug("retrying request", "method", method, "path", path, "attempt", attempt+1, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		err := c.attempt(ctx, method, path, payload, out, token)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(ctx, err) {
			return err
		}
	}
	return fmt.Errorf("request failed after %d attempts: %w", attempts, lastErr)
}

func (c *Client) attempt(ctx context.Context, method, path string, payload []byte, out any, token string) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := readResponse(resp.Body)
	if err != nil {
		return err
	}
	c.log.Debug("api call", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return handleErrorResponse(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// readResponse reads a body up to MaxResponseSize.
func readResponse(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(data) > MaxResponseSize {
		return nil, ErrResponseTooLarge
	}
	return data, nil
}

// handleErrorResponse maps a status code to an *APIError.
func handleErrorResponse(status int, body []byte) error {
	var parsed errorResponse
	msg := ""
	if json.Unmarshal(body, &parsed) == nil {
		msg = parsed.Message
		if msg == "" {
			msg = parsed.Error
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
	}

	apiErr := &APIError{Status: status, Message: msg}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		apiErr.Err = ErrUnauthorized
	case status == http.StatusNotFound:
		apiErr.Err = ErrNotFound
	case status == http.StatusTooManyRequests:
		apiErr.Err = ErrRateLimited
	case status >= 500:
		apiErr.Err = ErrServer
	}
	return apiErr
}

// isRetryable reports whether err is worth another attempt.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServer) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) || errors.Is(err, ErrResponseTooLarge) {
		return false
	}
	// Transport errors (connection reset, DNS) are retried.
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	d := c.backoff << (attempt - 1)
	if d > MaxBackoff || d <= 0 {
		d = MaxBackoff
	}
	return d
}
