// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

package hls

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/mogiioin/hls-m3u8/m3u8"

	"github.com/joeldelpilar/ritcher/pkg/ads"
)

// interstitialClass is the CLASS attribute for HLS Interstitials.
const interstitialClass = "com.apple.hls.interstitial"

// RewriteOptions carries the per-request context for playlist rewriting.
type RewriteOptions struct {
	// SessionID is the viewer session.
	SessionID string
	// BaseURL is the stitcher's external base URL without trailing slash.
	BaseURL string
	// OriginBase is the origin URL stripped to its directory.
	OriginBase string
	// Now anchors SGAI START-DATE when the input carries no
	// EXT-X-PROGRAM-DATE-TIME. Zero means wall clock.
	Now time.Time
}

// RewriteSSAI replaces the placeholder segments of each detected break
// with ad segments from the provider and rewrites every other segment
// URI to the proxy. The first ad segment of each break carries a
// discontinuity marker. If the provider returns nothing for a break,
// the placeholders pass through unmodified (proxied, not replaced).
func RewriteSSAI(ctx context.Context, pl *m3u8.MediaPlaylist, breaks []AdBreak,
	provider ads.Provider, opts RewriteOptions) (*m3u8.MediaPlaylist, error) {

	segments := pl.GetAllSegments()

	breakAt := make(map[int]int, len(breaks)) // start index → break number
	skip := make(map[int]bool)
	for b, br := range breaks {
		breakAt[br.StartSegmentIndex] = b
		for i := br.StartSegmentIndex; i < br.StartSegmentIndex+br.SegmentCount; i++ {
			skip[i] = true
		}
	}

	var out []*m3u8.MediaSegment
	for i, seg := range segments {
		if b, isStart := breakAt[i]; isStart {
			br := breaks[b]
			adSegs := provider.GetAdSegments(ctx, br.Duration, opts.SessionID)
			if len(adSegs) == 0 {
				// No creatives and no slate: keep the placeholders.
				slog.Warn("ad break left unfilled, passing placeholders through",
					"session", opts.SessionID, "break", b)
				for j := br.StartSegmentIndex; j < br.StartSegmentIndex+br.SegmentCount; j++ {
					skip[j] = false
				}
			} else {
				for j, ad := range adSegs {
					out = append(out, &m3u8.MediaSegment{
						URI: fmt.Sprintf("%s/stitch/%s/ad/%s",
							opts.BaseURL, opts.SessionID, ads.SegmentName(b, j)),
						Duration:      ad.Duration,
						Discontinuity: j == 0,
					})
				}
			}
		}
		if skip[i] {
			continue
		}
		out = append(out, rewriteContentSegment(seg, opts, true))
	}

	return buildFrom(pl, out)
}

// RewriteSGAI leaves content segments in place, rewrites their URIs to
// the proxy, and injects one EXT-X-DATERANGE interstitial marker per
// detected break pointing at the asset-list endpoint. No discontinuity
// markers are emitted.
func RewriteSGAI(pl *m3u8.MediaPlaylist, breaks []AdBreak, opts RewriteOptions) (*m3u8.MediaPlaylist, error) {
	segments := pl.GetAllSegments()
	startDates := breakStartDates(segments, breaks, opts.Now)

	var out []*m3u8.MediaSegment
	for _, seg := range segments {
		out = append(out, rewriteContentSegment(seg, opts, false))
	}

	rewritten, err := buildFrom(pl, out)
	if err != nil {
		return nil, err
	}

	for b, br := range breaks {
		durS := int64(math.Round(br.Duration))
		assetList := fmt.Sprintf("%s/stitch/%s/asset-list/%d?dur=%d",
			opts.BaseURL, opts.SessionID, b, durS)
		duration := br.Duration
		rewritten.DateRanges = append(rewritten.DateRanges, &m3u8.DateRange{
			ID:        fmt.Sprintf("ad-break-%d", b),
			Class:     interstitialClass,
			StartDate: startDates[b],
			Duration:  &duration,
			XAttrs: []m3u8.Attribute{
				{Key: "X-ASSET-LIST", Val: fmt.Sprintf("%q", assetList)},
			},
		})
	}
	return rewritten, nil
}

// RewriteMaster routes every variant and alternative-rendition URI of a
// multivariant playlist through the stitcher playlist endpoint.
func RewriteMaster(master *m3u8.MasterPlaylist, opts RewriteOptions) string {
	for _, variant := range master.Variants {
		if variant == nil {
			continue
		}
		variant.URI = playlistProxyURL(opts, variant.URI)
		for _, alt := range variant.Alternatives {
			if alt != nil && alt.URI != "" {
				alt.URI = playlistProxyURL(opts, alt.URI)
			}
		}
	}
	master.ResetCache()
	return master.Encode().String()
}

// rewriteContentSegment clones a segment with its URI routed through
// the segment proxy. SCTE markers are dropped for SSAI output (the
// break has been stitched) and kept for SGAI.
func rewriteContentSegment(seg *m3u8.MediaSegment, opts RewriteOptions, dropCues bool) *m3u8.MediaSegment {
	clone := *seg
	name, origin := splitSegmentURI(seg.URI, opts.OriginBase)
	clone.URI = fmt.Sprintf("%s/stitch/%s/segment/%s?origin=%s",
		opts.BaseURL, opts.SessionID, name, origin)
	if dropCues {
		clone.SCTE = nil
		clone.SCTE35DateRanges = nil
		clone.Discontinuity = false
	}
	return &clone
}

// splitSegmentURI returns the proxied segment name and its origin
// directory. Absolute URIs carry their own origin; relative ones
// resolve against originBase.
func splitSegmentURI(uri, originBase string) (name, origin string) {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		if idx := strings.LastIndex(uri, "/"); idx > 0 {
			return uri[idx+1:], uri[:idx]
		}
	}
	return uri, originBase
}

// playlistProxyURL routes a playlist URI through the stitcher playlist
// endpoint with the absolute origin URL in the query.
func playlistProxyURL(opts RewriteOptions, uri string) string {
	absolute := uri
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		absolute = opts.OriginBase + "/" + uri
	}
	return fmt.Sprintf("%s/stitch/%s/playlist.m3u8?origin=%s",
		opts.BaseURL, opts.SessionID, absolute)
}

// breakStartDates computes each break's wall-clock start from the
// accumulated EXT-X-PROGRAM-DATE-TIME and EXTINF offsets. When the
// playlist carries no PDT at all, the current time anchors the breaks.
func breakStartDates(segments []*m3u8.MediaSegment, breaks []AdBreak, now time.Time) []time.Time {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	anchor := now
	anchorOffset := 0.0 // seconds of playlist time at the anchor

	offsets := make([]float64, len(segments))
	elapsed := 0.0
	anchors := make([]time.Time, len(segments))
	anchorOffsets := make([]float64, len(segments))
	for i, seg := range segments {
		if !seg.ProgramDateTime.IsZero() {
			anchor = seg.ProgramDateTime
			anchorOffset = elapsed
		}
		anchors[i] = anchor
		anchorOffsets[i] = anchorOffset
		offsets[i] = elapsed
		elapsed += seg.Duration
	}

	dates := make([]time.Time, len(breaks))
	for b, br := range breaks {
		i := br.StartSegmentIndex
		if i >= len(segments) {
			i = len(segments) - 1
		}
		if i < 0 {
			dates[b] = now
			continue
		}
		delta := offsets[i] - anchorOffsets[i]
		dates[b] = anchors[i].Add(time.Duration(delta * float64(time.Second)))
	}
	return dates
}

// buildFrom assembles a fresh media playlist with src's header fields
// and the given segments.
func buildFrom(src *m3u8.MediaPlaylist, segments []*m3u8.MediaSegment) (*m3u8.MediaPlaylist, error) {
	capacity := uint(len(segments))
	if capacity == 0 {
		capacity = 1
	}
	out, err := m3u8.NewMediaPlaylist(0, capacity)
	if err != nil {
		return nil, fmt.Errorf("new media playlist: %w", err)
	}
	out.SetVersion(src.Version())
	out.SetTargetDuration(src.TargetDuration)
	out.SeqNo = src.SeqNo
	out.DiscontinuitySeq = src.DiscontinuitySeq
	out.MediaType = src.MediaType
	out.Closed = src.Closed
	out.StartTime = src.StartTime
	out.StartTimePrecise = src.StartTimePrecise
	out.Key = src.Key
	out.Map = src.Map
	out.DateRanges = append(out.DateRanges, src.DateRanges...)

	for _, seg := range segments {
		if err := out.AppendSegment(seg); err != nil {
			return nil, fmt.Errorf("append segment: %w", err)
		}
	}
	return out, nil
}
