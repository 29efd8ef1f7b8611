// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/shopdesk/internal/menu"
	"github.com/jeranaias/shopdesk/internal/session"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(srv.URL + "/").
		WithRetry(3, time.Millisecond).
		WithTokenSource(func() string { return "tok" })
	return c, srv
}

// =============================================================================
// LOGIN / LOGOUT
// =============================================================================

func TestLogin(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var req loginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Username != "alice" || req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"bad credentials"}`))
			return
		}
		w.Write([]byte(`{"token":"abc","user":{"id":"7","name":"Alice","role":"manager"}}`))
	})

	rec, err := c.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "abc", rec.Token)
	assert.Equal(t, session.User{ID: "7", Name: "Alice", Role: "manager"}, rec.User)

	_, err = c.Login(context.Background(), "alice", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "bad credentials", apiErr.Message)
}

func TestLoginEmptyToken(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user":{"id":"7"}}`))
	})
	_, err := c.Login(context.Background(), "alice", "secret")
	assert.Error(t, err)
}

func TestLogoutSendsToken(t *testing.T) {
	var auth atomic.Value
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/logout", r.URL.Path)
		auth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, c.Logout(context.Background(), "explicit"))
	assert.Equal(t, "Bearer explicit", auth.Load())
}

func TestLogoutRejectedTokenIsFine(t *testing.T) {
	var unauthorized atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	c.OnUnauthorized(func() { unauthorized.Add(1) })

	assert.NoError(t, c.Logout(context.Background(), "old"))
	assert.Equal(t, int32(0), unauthorized.Load(), "logout does not re-invalidate")
}

// =============================================================================
// CATALOG AND ORDER
// =============================================================================

func TestCatalog(t *testing.T) {
	var successes atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/categories":
			w.Write([]byte(`[{"id":"rings","name":"Rings","sort":1}]`))
		case "/products":
			w.Write([]byte(`[{"id":"p1","categoryId":"rings","name":"Gold band","price":120.5,"sort":2}]`))
		default:
			http.NotFound(w, r)
		}
	})
	c.OnSuccess(func() { successes.Add(1) })

	cat, err := c.Catalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []menu.Category{{ID: "rings", Name: "Rings", Sort: 1}}, cat.Categories)
	require.Len(t, cat.Products, 1)
	assert.Equal(t, "rings", cat.Products[0].CategoryID)
	assert.InDelta(t, 120.5, cat.Products[0].Price, 0.001)
	assert.Equal(t, int32(2), successes.Load(), "success hook runs once per call")
}

func TestQuickShopOrderNotFoundIsEmpty(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	order, err := c.QuickShopOrder(context.Background())
	require.NoError(t, err)
	assert.True(t, order.IsEmpty())
}

func TestSaveQuickShopOrder(t *testing.T) {
	var got menu.Order
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/quick-shopping/order", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	})

	order := menu.Order{Categories: []menu.CategoryOrder{{ID: "rings", Products: []string{"p2", "p1"}}}}
	require.NoError(t, c.SaveQuickShopOrder(context.Background(), order))
	assert.Equal(t, order, got)
}

// =============================================================================
// ERRORS AND RETRIES
// =============================================================================

func TestNoTokenFailsFast(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})
	c.WithTokenSource(func() string { return "" })

	_, err := c.Categories(context.Background())
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
	assert.Equal(t, int32(0), hits.Load())
}

func TestUnauthorizedRunsHook(t *testing.T) {
	var hits, calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})
	c.OnUnauthorized(func() { calls.Add(1) })
	c.OnSuccess(func() { t.Error("success hook on a failed call") })

	_, err := c.Products(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(1), hits.Load(), "401/403 is not retried")
}

func TestRetryOnServerError(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[]`))
	})

	cats, err := c.Categories(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cats)
	assert.Equal(t, int32(3), hits.Load())
}

func TestRetryGivesUp(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Categories(context.Background())
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(3), hits.Load())
}

func TestPostIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Login(context.Background(), "alice", "secret")
	assert.ErrorIs(t, err, ErrServer)
	assert.Equal(t, int32(1), hits.Load())
}

func TestResponseTooLarge(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("["))
		w.Write([]byte(strings.Repeat(" ", MaxResponseSize)))
		w.Write([]byte("]"))
	})

	_, err := c.Categories(context.Background())
	assert.ErrorIs(t, err, ErrResponseTooLarge)
}

func TestContextCancelStopsRetries(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	c.WithRetry(3, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Categories(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestRateLimit(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	c.WithRateLimit(20)

	start := time.Now()
	for i := 0; i < 25; i++ {
		_, err := c.Categories(context.Background())
		require.NoError(t, err)
	}
	// Burst of 20, then 5 more at 20/s.
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestHandleErrorResponse(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   error
		msg    string
	}{
		{401, `{"message":"expired"}`, ErrUnauthorized, "expired"},
		{403, `{"error":"forbidden"}`, ErrUnauthorized, "forbidden"},
		{404, ``, ErrNotFound, ""},
		{429, `slow down`, ErrRateLimited, "slow down"},
		{502, `<html>bad gateway</html>`, ErrServer, "<html>bad gateway</html>"},
		{400, `{"message":"bad order"}`, nil, "bad order"},
	}
	for _, tt := range tests {
		err := handleErrorResponse(tt.status, []byte(tt.body))
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, tt.status, apiErr.Status)
		assert.Equal(t, tt.msg, apiErr.Message)
		if tt.want != nil {
			assert.ErrorIs(t, err, tt.want)
		} else {
			assert.Nil(t, apiErr.Unwrap())
		}
	}
}

func TestCalculateBackoff(t *testing.T) {
	c := New("http://x")
	assert.Equal(t, 250*time.Millisecond, c.calculateBackoff(1))
	assert.Equal(t, 500*time.Millisecond, c.calculateBackoff(2))
	assert.Equal(t, MaxBackoff, c.calculateBackoff(10))
}

func TestClientIsAuthenticator(t *testing.T) {
	var _ session.Authenticator = New("http://x")
}
