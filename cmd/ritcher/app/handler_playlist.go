// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

package app

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mogiioin/hls-m3u8/m3u8"

	"github.com/joeldelpilar/ritcher/pkg/fetch"
	"github.com/joeldelpilar/ritcher/pkg/hls"
	"github.com/joeldelpilar/ritcher/pkg/urlguard"
)

const hlsContentType = "application/vnd.apple.mpegurl"

// maxManifestSize caps how much manifest text is read from an origin.
const maxManifestSize = 8 << 20

// playlistHandlerFunc serves the rewritten HLS playlist for a session.
//
// Pipeline: session get-or-create, manifest cache, retrying fetch,
// (LL-HLS tag capture), parse, ad-break detection, SSAI or SGAI
// rewrite, URI rewrite, serialize, (LL-HLS tag re-inject).
func (s *Server) playlistHandlerFunc(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
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

	var llTags hls.LLHLSTags
	isLL := hls.IsLLHLS(content)
	if isLL {
		llTags = hls.ExtractLLHLSTags(content)
	}

	media, master, err := hls.Parse(content)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", errPlaylistParse, err))
		return
	}

	opts := hls.RewriteOptions{
		SessionID:  sessionID,
		BaseURL:    s.Cfg.BaseURL,
		OriginBase: originBaseOf(originURL),
	}

	var serialized string
	if master != nil {
		serialized = hls.RewriteMaster(master, opts)
	} else {
		breaks := hls.DetectAdBreaks(media)
		var out *m3u8.MediaPlaylist
		var rwErr error
		switch s.Cfg.StitchingMode {
		case ModeSGAI:
			out, rwErr = hls.RewriteSGAI(media, breaks, opts)
		default:
			out, rwErr = hls.RewriteSSAI(ctx, media, breaks, s.provider, opts)
		}
		if rwErr != nil {
			writeError(w, fmt.Errorf("%w: %v", errPlaylistModify, rwErr))
			return
		}
		serialized = out.Encode().String()

		if isLL {
			// Part groups map positionally onto segments, so they only
			// survive a rewrite that keeps every content segment.
			if s.Cfg.StitchingMode == ModeSGAI {
				serialized = hls.InjectPartGroups(serialized, llTags)
			}
			serialized = hls.InjectLLHLSTags(serialized, llTags)
			serialized = hls.RewriteLLHLSURIs(serialized, sessionID, s.Cfg.BaseURL, opts.OriginBase)
		}
	}

	w.Header().Set("Content-Type", hlsContentType)
	_, _ = w.Write([]byte(serialized))
}

// resolveOrigin determines the effective origin URL for a request:
// a guarded ?origin= override, else the session's captured origin,
// seeded from the configured default. The session is touched.
func (s *Server) resolveOrigin(r *http.Request, sessionID string) (string, error) {
	origin := s.Cfg.OriginURL
	if override := r.URL.Query().Get("origin"); override != "" {
		// Only user-supplied origins pass the SSRF guard; the
		// operator-configured default is trusted.
		if err := urlguard.ValidateOriginURL(override); err != nil {
			return "", err
		}
		origin = override
	}
	sess := s.sessions.GetOrCreate(r.Context(), sessionID, origin)
	s.sessions.Touch(r.Context(), sessionID)
	if r.URL.Query().Get("origin") == "" {
		return sess.OriginURL, nil
	}
	return origin, nil
}

// fetchManifest returns the manifest body for a URL, deduplicating
// origin fetches through the short-TTL cache.
func (s *Server) fetchManifest(r *http.Request, originURL string) (string, error) {
	if body, ok := s.manifests.Get(originURL); ok {
		return body, nil
	}
	resp, err := fetch.WithRetry(r.Context(), s.httpClient, originURL, fetch.DefaultConfig())
	if err != nil {
		return "", fmt.Errorf("%w: %v", errOriginFetch, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errOriginFetch, err)
	}
	content := string(body)
	s.manifests.Insert(originURL, content)
	return content, nil
}
