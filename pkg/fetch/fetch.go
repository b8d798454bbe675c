// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

// Package fetch provides HTTP GET with bounded retry and fixed backoff.
//
// The backoff is fixed rather than exponential: the attempt count is
// small (default 2) and the latency budget at the live edge is tight.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultMaxAttempts is one initial attempt plus one retry.
	DefaultMaxAttempts = 2
	// DefaultBackoff is the sleep between consecutive attempts.
	DefaultBackoff = 500 * time.Millisecond
)

// Config controls WithRetry.
type Config struct {
	// MaxAttempts is the total number of attempts (minimum 1; 0 is treated as 1).
	MaxAttempts int
	// Backoff is the sleep duration between consecutive attempts.
	Backoff time.Duration
	// Timeout is an optional per-attempt timeout. Zero means the
	// client's own timeout applies.
	Timeout time.Duration
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     DefaultBackoff,
	}
}

// StatusError is returned when the final attempt got a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned status %d", e.URL, e.StatusCode)
}

// WithRetry performs an HTTP GET, retrying on transport failures and
// non-2xx responses. It returns the first successful response with its
// body unread, or the last error once all attempts are exhausted.
//
// Bodies of failed intermediate responses are drained and closed so the
// underlying connection can be reused.
func WithRetry(ctx context.Context, client *http.Client, url string, cfg Config) (*http.Response, error) {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		reqCtx := ctx
		var cancel context.CancelFunc
		if cfg.Timeout > 0 {
			reqCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		}

		resp, err := doGet(reqCtx, client, url)
		if cancel != nil && err != nil {
			cancel()
		}
		switch {
		case err != nil:
			slog.Warn("HTTP fetch failed", "url", url, "attempt", attempt,
				"maxAttempts", maxAttempts, "err", err)
			lastErr = err
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			// Tie body lifetime to the per-attempt timeout, if any.
			if cancel != nil {
				resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
			}
			return resp, nil
		default:
			slog.Warn("HTTP fetch returned non-2xx", "url", url,
				"status", resp.StatusCode, "attempt", attempt, "maxAttempts", maxAttempts)
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
			_ = resp.Body.Close()
			if cancel != nil {
				cancel()
			}
			lastErr = &StatusError{URL: url, StatusCode: resp.StatusCode}
		}

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.Backoff):
		}
	}
	return nil, lastErr
}

func doGet(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return client.Do(req)
}

// cancelBody releases the per-attempt timeout context when the caller
// closes the response body.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
