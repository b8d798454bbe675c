// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

package app

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// defaultAssetListDur is used when the dur query parameter is missing
// or unparsable.
const defaultAssetListDur = 30.0

// assetListEntry is one creative in the HLS Interstitials asset-list
// response.
type assetListEntry struct {
	URI      string  `json:"URI"`
	Duration float64 `json:"DURATION"`
}

type assetListResponse struct {
	Assets []assetListEntry `json:"ASSETS"`
}

// assetListHandlerFunc serves the SGAI asset-list JSON consumed by HLS
// Interstitials players and DASH event-callback players.
func (s *Server) assetListHandlerFunc(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	breakIndex := chi.URLParam(r, "breakIndex")

	dur := defaultAssetListDur
	if raw := r.URL.Query().Get("dur"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed > 0 {
			dur = parsed
		}
	}

	s.sessions.Touch(r.Context(), sessionID)

	slog.Debug("serving asset list", "session", sessionID, "break", breakIndex, "dur", dur)
	creatives := s.provider.GetAdCreatives(r.Context(), dur, sessionID)
	resp := assetListResponse{Assets: make([]assetListEntry, 0, len(creatives))}
	for _, c := range creatives {
		resp.Assets = append(resp.Assets, assetListEntry{URI: c.URI, Duration: c.Duration})
	}
	s.jsonResponse(w, resp, http.StatusOK)
}
