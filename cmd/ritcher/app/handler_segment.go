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
	"github.com/joeldelpilar/ritcher/pkg/urlguard"
)

const tsContentType = "video/MP2T"

// segmentHandlerFunc proxies a content segment from the origin to the
// player, streaming the body through.
func (s *Server) segmentHandlerFunc(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	segmentPath := chi.URLParam(r, "*")
	if segmentPath == "" {
		writeError(w, fmt.Errorf("%w: empty segment path", errNotFound))
		return
	}

	originBase, err := s.segmentOriginBase(r, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	segmentURL := originBase + "/" + segmentPath

	s.sessions.Touch(r.Context(), sessionID)

	resp, err := fetch.WithRetry(r.Context(), s.httpClient, segmentURL, fetch.DefaultConfig())
	if err != nil {
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
		// Headers are gone; all we can do is log the broken stream.
		slog.Debug("segment stream interrupted", "url", segmentURL, "err", err)
	}
}

// segmentOriginBase resolves the directory segment paths are fetched
// from: a guarded ?origin= override (already a directory), else the
// session's origin stripped to its directory, else the configured
// default.
func (s *Server) segmentOriginBase(r *http.Request, sessionID string) (string, error) {
	if override := r.URL.Query().Get("origin"); override != "" {
		if err := urlguard.ValidateOriginURL(override); err != nil {
			return "", err
		}
		return override, nil
	}
	if sess, ok := s.sessions.Get(r.Context(), sessionID); ok {
		return originBaseOf(sess.OriginURL), nil
	}
	return originBaseOf(s.Cfg.OriginURL), nil
}
