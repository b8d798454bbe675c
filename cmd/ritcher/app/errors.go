// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

package app

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/joeldelpilar/ritcher/pkg/urlguard"
)

var (
	errNotFound       = errors.New("not found")
	errOriginFetch    = errors.New("origin fetch failed")
	errPlaylistParse  = errors.New("playlist parse failed")
	errPlaylistModify = errors.New("playlist rewrite failed")
)

// writeError maps a core error to its status code. Bodies stay terse;
// upstream error payloads are never surfaced to clients.
func writeError(w http.ResponseWriter, err error) {
	var code int
	var msg string
	switch {
	case errors.Is(err, urlguard.ErrInvalidOrigin):
		code, msg = http.StatusBadRequest, "invalid origin URL"
	case errors.Is(err, errNotFound):
		code, msg = http.StatusNotFound, "not found"
	case errors.Is(err, errPlaylistParse):
		code, msg = http.StatusBadGateway, "invalid upstream manifest"
	case errors.Is(err, errOriginFetch):
		code, msg = http.StatusBadGateway, "origin fetch failed"
	case errors.Is(err, errPlaylistModify):
		code, msg = http.StatusInternalServerError, "manifest rewrite failed"
	default:
		code, msg = http.StatusInternalServerError, "internal error"
	}
	if code >= 500 {
		slog.Error("request failed", "status", code, "err", err)
	} else {
		slog.Debug("request rejected", "status", code, "err", err)
	}
	http.Error(w, msg, code)
}
