// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

// Package vast resolves VAST ad responses into playable creatives and
// fires tracking beacons. Wrapper chains are followed with depth and
// cycle limits; hard failures emit the configured Error URLs and yield
// an empty creative list so the caller can fall back to slate or skip.
package vast

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	vastxml "github.com/jeffwalter-rum/vast"

	"github.com/joeldelpilar/ritcher/pkg/ads"
	"github.com/joeldelpilar/ritcher/pkg/fetch"
)

const (
	// DefaultMaxWrapperDepth bounds wrapper chains even without cycles.
	DefaultMaxWrapperDepth = 5
	// DefaultHopTimeout applies to each VAST request.
	DefaultHopTimeout = 3 * time.Second
	// DefaultTotalTimeout bounds a whole wrapper walk.
	DefaultTotalTimeout = 8 * time.Second

	// maxVASTBodySize caps how much XML is read from an ad server.
	maxVASTBodySize = 4 << 20

	// VAST error codes used in [ERRORCODE] macro substitution.
	errCodeWrapperLimit = "302"
	errCodeNoAds        = "303"
	errCodeUndefined    = "900"
)

// ResolvedCreative is a creative extracted from an InLine ad together
// with its tracking metadata.
type ResolvedCreative struct {
	// MediaURL is the creative's media file (progressive MP4 preferred,
	// then HLS).
	MediaURL string
	// DurationS is the creative duration in seconds.
	DurationS float64
	// ImpressionURLs fire when the creative starts.
	ImpressionURLs []string
	// TrackingEvents are quartile/progress beacons.
	TrackingEvents []ads.TrackingEvent
	// ErrorURL fires on playback or resolution failure.
	ErrorURL string
}

// Resolver issues VAST requests and walks wrapper chains.
type Resolver struct {
	Endpoint     string
	Client       *http.Client
	MaxDepth     int
	HopTimeout   time.Duration
	TotalTimeout time.Duration
}

// NewResolver returns a resolver for the given VAST endpoint with
// default limits.
func NewResolver(endpoint string, client *http.Client) *Resolver {
	return &Resolver{
		Endpoint:     endpoint,
		Client:       client,
		MaxDepth:     DefaultMaxWrapperDepth,
		HopTimeout:   DefaultHopTimeout,
		TotalTimeout: DefaultTotalTimeout,
	}
}

// Resolve fetches the VAST document for a session and returns the
// resolved creatives. On exhaustion or any hard failure it fires the
// collected Error URLs and returns an empty list.
func (r *Resolver) Resolve(ctx context.Context, sessionID string) []ResolvedCreative {
	ctx, cancel := context.WithTimeout(ctx, r.TotalTimeout)
	defer cancel()

	reqURL := r.requestURL(sessionID)
	walk := &wrapperWalk{
		resolver: r,
		visited:  map[string]struct{}{},
	}
	creatives, err := walk.fetchAndExtract(ctx, reqURL, 0)
	if err != nil {
		slog.Warn("VAST resolution failed", "session", sessionID, "err", err)
		FireErrorBeacons(walk.errorURLs, walk.errCode)
		return nil
	}
	if len(creatives) == 0 {
		slog.Info("VAST response contained no ads", "session", sessionID)
		FireErrorBeacons(walk.errorURLs, errCodeNoAds)
	}
	return creatives
}

// requestURL appends session context to the configured endpoint.
func (r *Resolver) requestURL(sessionID string) string {
	u, err := url.Parse(r.Endpoint)
	if err != nil {
		return r.Endpoint
	}
	q := u.Query()
	q.Set("session", sessionID)
	u.RawQuery = q.Encode()
	return u.String()
}

// wrapperWalk tracks state for one resolution: visited URLs for cycle
// detection and error URLs collected along the chain.
type wrapperWalk struct {
	resolver  *Resolver
	visited   map[string]struct{}
	errorURLs []string
	errCode   string
}

func (w *wrapperWalk) fetchAndExtract(ctx context.Context, vastURL string, depth int) ([]ResolvedCreative, error) {
	if depth > w.resolver.MaxDepth {
		w.errCode = errCodeWrapperLimit
		return nil, fmt.Errorf("wrapper depth limit %d exceeded", w.resolver.MaxDepth)
	}
	if _, seen := w.visited[vastURL]; seen {
		w.errCode = errCodeWrapperLimit
		return nil, fmt.Errorf("wrapper cycle detected at %s", vastURL)
	}
	w.visited[vastURL] = struct{}{}

	doc, err := w.fetchVAST(ctx, vastURL)
	if err != nil {
		if w.errCode == "" {
			w.errCode = errCodeUndefined
		}
		return nil, err
	}
	for _, e := range doc.Errors {
		if u := strings.TrimSpace(e.CDATA); u != "" {
			w.errorURLs = append(w.errorURLs, u)
		}
	}

	var creatives []ResolvedCreative
	for _, ad := range doc.Ads {
		switch {
		case ad.InLine != nil:
			creatives = append(creatives, extractInLine(ad.InLine)...)
		case ad.Wrapper != nil:
			next := strings.TrimSpace(ad.Wrapper.VASTAdTagURI.CDATA)
			if next == "" {
				continue
			}
			for _, e := range ad.Wrapper.Errors {
				if u := strings.TrimSpace(e.CDATA); u != "" {
					w.errorURLs = append(w.errorURLs, u)
				}
			}
			wrapped, err := w.fetchAndExtract(ctx, next, depth+1)
			if err != nil {
				return nil, err
			}
			// Wrapper-level impressions apply to the wrapped creatives.
			for i := range wrapped {
				for _, imp := range ad.Wrapper.Impressions {
					if u := strings.TrimSpace(imp.URI); u != "" {
						wrapped[i].ImpressionURLs = append(wrapped[i].ImpressionURLs, u)
					}
				}
			}
			creatives = append(creatives, wrapped...)
		}
	}
	return creatives, nil
}

func (w *wrapperWalk) fetchVAST(ctx context.Context, vastURL string) (*vastxml.VAST, error) {
	cfg := fetch.Config{
		MaxAttempts: 1,
		Timeout:     w.resolver.HopTimeout,
	}
	resp, err := fetch.WithRetry(ctx, w.resolver.Client, vastURL, cfg)
	if err != nil {
		return nil, fmt.Errorf("VAST request %s: %w", vastURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxVASTBodySize))
	if err != nil {
		return nil, fmt.Errorf("read VAST body: %w", err)
	}
	var doc vastxml.VAST
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse VAST XML: %w", err)
	}
	return &doc, nil
}

// extractInLine pulls creatives out of an InLine ad: media URL,
// duration, impressions, tracking events, and error URL.
func extractInLine(inline *vastxml.InLine) []ResolvedCreative {
	var impressions []string
	for _, imp := range inline.Impressions {
		if u := strings.TrimSpace(imp.URI); u != "" {
			impressions = append(impressions, u)
		}
	}
	var errorURL string
	if len(inline.Errors) > 0 {
		errorURL = strings.TrimSpace(inline.Errors[0].CDATA)
	}

	var out []ResolvedCreative
	for _, creative := range inline.Creatives {
		linear := creative.Linear
		if linear == nil || linear.MediaFiles == nil {
			continue
		}
		mediaURL := pickMediaFile(*linear.MediaFiles)
		if mediaURL == "" {
			continue
		}
		rc := ResolvedCreative{
			MediaURL:       mediaURL,
			DurationS:      time.Duration(linear.Duration).Seconds(),
			ImpressionURLs: impressions,
			ErrorURL:       errorURL,
		}
		if linear.TrackingEvents != nil {
			for _, ev := range *linear.TrackingEvents {
				if u := strings.TrimSpace(ev.URI); u != "" {
					rc.TrackingEvents = append(rc.TrackingEvents, ads.TrackingEvent{
						Event: ev.Event,
						URL:   u,
					})
				}
			}
		}
		out = append(out, rc)
	}
	return out
}

// pickMediaFile prefers progressive MP4, then HLS, then the first file.
func pickMediaFile(files []vastxml.MediaFile) string {
	var hls, first string
	for _, f := range files {
		uri := strings.TrimSpace(f.URI)
		if uri == "" {
			continue
		}
		if first == "" {
			first = uri
		}
		if f.Delivery == "progressive" && f.Type == "video/mp4" {
			return uri
		}
		if hls == "" && (f.Type == "application/vnd.apple.mpegurl" || f.Type == "application/x-mpegURL") {
			hls = uri
		}
	}
	if hls != "" {
		return hls
	}
	return first
}
