// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joeldelpilar/ritcher/internal"
	"github.com/joeldelpilar/ritcher/pkg/ads"
	"github.com/joeldelpilar/ritcher/pkg/logging"
	"github.com/joeldelpilar/ritcher/pkg/mcache"
	"github.com/joeldelpilar/ritcher/pkg/session"
	"github.com/joeldelpilar/ritcher/pkg/vast"
)

// cleanupInterval paces the background eviction pass over sessions,
// provider caches, and rate-limiter windows.
const cleanupInterval = time.Minute

// SetupServer sets up router, middleware, state, and routes.
func SetupServer(ctx context.Context, cfg *ServerConfig) (*Server, error) {
	logger := slog.Default()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logging.SlogMiddleWare(logger))
	r.Use(middleware.Recoverer)
	r.Use(NewPrometheusMiddleware())
	r.Use(addVersionAndCORSHeaders)
	if cfg.TimeoutS > 0 {
		r.Use(middleware.Timeout(time.Duration(cfg.TimeoutS) * time.Second))
	}

	var reqLimiter *RateLimiter
	if cfg.RateLimitRPM > 0 {
		reqLimiter = NewRateLimiter(cfg.RateLimitRPM)
		r.Use(NewLimiterMiddleware(reqLimiter))
	}

	// One pooled client is shared by every origin, ad, and VAST fetch.
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	sessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}

	provider := newAdProvider(cfg, httpClient)

	server := &Server{
		Router:     r,
		Cfg:        cfg,
		httpClient: httpClient,
		sessions:   sessions,
		manifests:  mcache.New(mcache.DefaultTTL),
		provider:   provider,
		reqLimiter: reqLimiter,
		startTime:  time.Now(),
	}
	server.Routes()

	go server.cleanupLoop(ctx)

	logger.Info("ritcher starting",
		"version", internal.GetVersion(),
		"port", cfg.Port,
		"mode", cfg.StitchingMode,
		"adProvider", cfg.AdProviderType,
		"sessionStore", cfg.SessionStore)
	return server, nil
}

func newSessionStore(ctx context.Context, cfg *ServerConfig) (session.Store, error) {
	ttl := time.Duration(cfg.SessionTTLSecs) * time.Second
	switch cfg.SessionStore {
	case StoreValkey:
		return session.NewValkeyStore(ctx, cfg.ValkeyURL, ttl)
	default:
		return session.NewMemoryStore(ttl), nil
	}
}

func newAdProvider(cfg *ServerConfig, client *http.Client) ads.Provider {
	switch cfg.AdProviderType {
	case ProviderVAST:
		resolver := vast.NewResolver(cfg.VASTEndpoint, client)
		return vast.NewProvider(resolver, cfg.AdSegmentDuration, cfg.SlateURL, cfg.SlateSegmentDuration)
	case ProviderDemo:
		return ads.NewDemoProvider(cfg.DemoAdBaseURL)
	default:
		return ads.NewStaticProvider(cfg.AdSourceURL, cfg.AdSegmentDuration)
	}
}

// cleanupLoop runs the periodic eviction pass until the context ends.
func (s *Server) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sessions.CleanupExpired(ctx)
			s.provider.CleanupCache()
			if s.reqLimiter != nil {
				s.reqLimiter.Cleanup()
			}
		}
	}
}
