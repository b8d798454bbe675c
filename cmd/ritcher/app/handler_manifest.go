// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

package app

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/joeldelpilar/ritcher/pkg/dash"
)

const dashContentType = "application/dash+xml"

// manifestHandlerFunc serves the rewritten DASH MPD for a session.
func (s *Server) manifestHandlerFunc(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	originURL, err := s.resolveOrigin(r, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	content, err := s.fetchManifest(r, originURL)
	if err != nil {
		writeError(w, err)
		return
	}

	doc, err := dash.Parse(content)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", errPlaylistParse, err))
		return
	}

	breaks := dash.DetectAdBreaks(doc)
	opts := dash.RewriteOptions{
		SessionID:         sessionID,
		BaseURL:           s.Cfg.BaseURL,
		AdSegmentDuration: s.Cfg.AdSegmentDuration,
	}
	switch s.Cfg.StitchingMode {
	case ModeSGAI:
		dash.RewriteSGAI(doc, breaks, opts)
	default:
		dash.RewriteSSAI(doc, breaks, opts)
	}

	serialized, err := dash.Serialize(doc)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", errPlaylistModify, err))
		return
	}
	if err := dash.Validate(serialized); err != nil {
		writeError(w, fmt.Errorf("%w: %v", errPlaylistModify, err))
		return
	}

	w.Header().Set("Content-Type", dashContentType)
	_, _ = w.Write([]byte(serialized))
}
