// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

package app

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimiter is a per-client fixed-window request limiter. The window
// resets lazily on the first request after expiry.
type RateLimiter struct {
	limit  int
	window time.Duration

	mux      sync.Mutex
	counters map[string]*windowCounter
}

type windowCounter struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter returns a limiter admitting requestsPerWindow per
// client per 60-second window.
func NewRateLimiter(requestsPerWindow int) *RateLimiter {
	return &RateLimiter{
		limit:    requestsPerWindow,
		window:   time.Minute,
		counters: make(map[string]*windowCounter),
	}
}

// Allow reports whether a request from client is admitted.
func (rl *RateLimiter) Allow(client string) bool {
	now := time.Now()
	rl.mux.Lock()
	defer rl.mux.Unlock()

	wc, ok := rl.counters[client]
	if !ok {
		wc = &windowCounter{windowStart: now}
		rl.counters[client] = wc
	}
	if now.Sub(wc.windowStart) >= rl.window {
		wc.count = 0
		wc.windowStart = now
	}
	wc.count++
	return wc.count <= rl.limit
}

// Cleanup removes clients whose window has fully elapsed.
func (rl *RateLimiter) Cleanup() {
	now := time.Now()
	rl.mux.Lock()
	defer rl.mux.Unlock()
	for client, wc := range rl.counters {
		if now.Sub(wc.windowStart) >= rl.window {
			delete(rl.counters, client)
		}
	}
}

// clientKey is the first non-empty X-Forwarded-For token, or "unknown"
// when not behind a reverse proxy.
func clientKey(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first := strings.TrimSpace(strings.Split(forwarded, ",")[0]); first != "" {
			return first
		}
	}
	return "unknown"
}

// NewLimiterMiddleware rejects requests over the per-client limit with
// 429 Too Many Requests.
func NewLimiterMiddleware(limiter *RateLimiter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientKey(r)) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}
