// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

package app

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/joeldelpilar/ritcher/pkg/fetch"
	"github.com/joeldelpilar/ritcher/pkg/vast"
)

// vastErrMediaFetch is the VAST error code for a media file that could
// not be fetched.
const vastErrMediaFetch = "402"

// adHandlerFunc proxies an ad segment. The opaque name
// break-{b}-seg-{s}.ts is resolved through the ad provider; tracking
// beacons fire detached from the response path, once per segment.
func (s *Server) adHandlerFunc(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	adName := chi.URLParam(r, "adName")

	resolved, ok := s.provider.ResolveSegmentWithTracking(adName, sessionID)
	if !ok {
		writeError(w, fmt.Errorf("%w: unknown ad segment %q", errNotFound, adName))
		return
	}

	if resolved.Tracking != nil {
		if urls := vast.EventsForSegment(resolved.Tracking); len(urls) > 0 {
			slog.Debug("firing tracking beacons", "session", sessionID,
				"ad", adName, "count", len(urls))
			vast.FireBeacons(urls)
		}
	}

	resp, err := fetch.WithRetry(r.Context(), s.httpClient, resolved.URL, fetch.DefaultConfig())
	if err != nil {
		if resolved.Tracking != nil && resolved.Tracking.ErrorURL != "" {
			vast.FireErrorBeacons([]string{resolved.Tracking.ErrorURL}, vastErrMediaFetch)
		}
		writeError(w, fmt.Errorf("%w: %v", errOriginFetch, err))
		return
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = tsContentType
	}
	w.Header().Set("Content-Type", contentType)
	if _, err := io.Copy(w, resp.Body); err != nil {
		slog.Debug("ad stream interrupted", "url", resolved.URL, "err", err)
	}
}
