// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

package app

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes defines dispatches for all routes.
func (s *Server) Routes() {
	s.Router.Get("/", s.healthzHandlerFunc)
	s.Router.Get("/health", s.healthzHandlerFunc)
	s.Router.Mount("/metrics", promhttp.Handler())

	s.Router.Route("/stitch/{sessionID}", func(r chi.Router) {
		r.Get("/playlist.m3u8", s.playlistHandlerFunc)
		r.Get("/manifest.mpd", s.manifestHandlerFunc)
		r.Get("/segment/*", s.segmentHandlerFunc)
		r.Get("/ad/{adName}", s.adHandlerFunc)
		r.Get("/asset-list/{breakIndex}", s.assetListHandlerFunc)
	})

	s.Router.Get("/demo/playlist.m3u8", s.demoPlaylistHandlerFunc)
	s.Router.Get("/demo/manifest.mpd", s.demoManifestHandlerFunc)
	s.Router.Get("/demo/ll-hls/playlist.m3u8", s.demoLLHLSHandlerFunc)
}
