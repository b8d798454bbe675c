// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/joeldelpilar/ritcher/internal"
	"github.com/joeldelpilar/ritcher/pkg/ads"
	"github.com/joeldelpilar/ritcher/pkg/mcache"
	"github.com/joeldelpilar/ritcher/pkg/session"
)

// Server holds the stitcher's shared state: configuration, the pooled
// HTTP client, the session store, the manifest cache, and the ad
// provider chosen at startup.
type Server struct {
	Router     *chi.Mux
	Cfg        *ServerConfig
	httpClient *http.Client
	sessions   session.Store
	manifests  *mcache.Cache
	provider   ads.Provider
	reqLimiter *RateLimiter
	startTime  time.Time
}

type healthStatus struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	ActiveSessions int    `json:"active_sessions"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
}

func (s *Server) healthzHandlerFunc(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, healthStatus{
		Status:         "ok",
		Version:        internal.GetVersion(),
		ActiveSessions: s.sessions.Count(r.Context()),
		UptimeSeconds:  int64(time.Since(s.startTime).Seconds()),
	}, http.StatusOK)
}

// jsonResponse marshals message and gives a response with code.
//
// Don't add any more content after this since Content-Length is set.
func (s *Server) jsonResponse(w http.ResponseWriter, message any, code int) {
	raw, err := json.Marshal(message)
	if err != nil {
		http.Error(w, fmt.Sprintf("{message: %q}", err), http.StatusInternalServerError)
		slog.Error(err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(raw)))
	w.WriteHeader(code)
	_, err = w.Write(raw)
	if err != nil {
		slog.Error("could not write HTTP response", "err", err)
	}
}

// originBaseOf strips an origin URL to its directory.
func originBaseOf(originURL string) string {
	if idx := strings.LastIndex(originURL, "/"); idx > len("https://") {
		return originURL[:idx]
	}
	return originURL
}
