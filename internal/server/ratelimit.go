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
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jeremyhahn/go-cst/internal/config"
	"github.com/jeremyhahn/go-cst/pkg/metrics"
	"golang.org/x/time/rate"
)

const (
	sweepInterval = time.Minute
	maxIdle       = 30 * time.Minute
)

// rateLimiter keeps a token bucket per client.
type rateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	rate      rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter returns nil when rate limiting is disabled.
func newRateLimiter(cfg config.RateLimitConfig) *rateLimiter {
	if !cfg.Enabled || cfg.RequestsPerMinute <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RequestsPerMinute
	}
	return &rateLimiter{
		clients:   make(map[string]*clientLimiter),
		rate:      rate.Limit(float64(cfg.RequestsPerMinute) / 60.0),
		burst:     burst,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// Allow reports whether client may make a request now. Idle clients are
// dropped on the way.
func (l *rateLimiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > sweepInterval {
		for id, c := range l.clients {
			if now.Sub(c.lastSeen) > maxIdle {
				delete(l.clients, id)
			}
		}
		l.lastSweep = now
	}

	c, ok := l.clients[client]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[client] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// clientID names the caller for rate limiting: the token subject, then the
// client certificate, then the remote address.
func clientID(r *http.Request) string {
	if sub := Subject(r.Context()); sub != "" {
		return "sub:" + sub
	}
	if r.TLS != nil && len(r.TLS.PeerCertificates) > 0 {
		return "cn:" + r.TLS.PeerCertificates[0].Subject.CommonName
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

// RateLimitMiddleware rejects clients over server.rate_limit with 429.
func (s *Server) RateLimitMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if s.limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := clientID(r)
			if !s.limiter.Allow(id) {
				metrics.RecordError(metrics.OpSign, "server", "rate_limited")
				s.logger.Warn("rate limit exceeded", "client", id, "request_id", RequestID(r.Context()))
				w.Header().Set("Retry-After", "1")
				s.writeError(w, r, ErrRateLimited, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
