// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-cst.
//
// go-cst is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jeremyhahn/go-cst/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitMiddleware(t *testing.T) {
	f := newServerFixture(t, func(cfg *config.Config, _ *Options) {
		cfg.Server.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 2}
	})

	sign := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/sign", bytes.NewReader([]byte("image")))
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		f.server.Handler().ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		rec := sign("192.0.2.10:5000")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := sign("192.0.2.10:5001")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, decodeError(t, rec).Error, "rate limit")

	// Other clients have their own bucket
	rec = sign("198.51.100.7:5000")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health checks are not limited
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", nil).Code)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	assert.Nil(t, newRateLimiter(config.RateLimitConfig{}))
	assert.Nil(t, newRateLimiter(config.RateLimitConfig{Enabled: true}))
}

func TestRateLimiter_RefillAndSweep(t *testing.T) {
	l := newRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerMinute: 60})
	require.NotNil(t, l)
	now := time.Now()
	l.now = func() time.Time { return now }

	for i := 0; i < 60; i++ {
		require.True(t, l.Allow("a"))
	}
	assert.False(t, l.Allow("a"))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
	assert.Len(t, l.clients, 2)

	now = now.Add(maxIdle + time.Minute)
	assert.True(t, l.Allow("b"))
	assert.Len(t, l.clients, 1)
}

func TestClientID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/sign", nil)
	req.RemoteAddr = "203.0.113.5:443"
	assert.Equal(t, "ip:203.0.113.5", clientID(req))

	req.RemoteAddr = "pipe"
	assert.Equal(t, "ip:pipe", clientID(req))
}
