// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

package ads

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// defaultSegmentCount is the number of segments available in an ad
// source directory (out_000.ts .. out_009.ts).
const defaultSegmentCount = 10

// StaticProvider serves a fixed set of ad segments from a configured
// ad source URL, cycling over the available source segments.
type StaticProvider struct {
	adSourceURL     string
	segmentDuration float64
	segmentCount    int
}

// NewStaticProvider returns a provider over adSourceURL with ten source
// segments.
func NewStaticProvider(adSourceURL string, segmentDuration float64) *StaticProvider {
	return NewStaticProviderWithCount(adSourceURL, segmentDuration, defaultSegmentCount)
}

// NewStaticProviderWithCount returns a provider with a custom source
// segment count.
func NewStaticProviderWithCount(adSourceURL string, segmentDuration float64, segmentCount int) *StaticProvider {
	return &StaticProvider{
		adSourceURL:     strings.TrimSuffix(adSourceURL, "/"),
		segmentDuration: segmentDuration,
		segmentCount:    segmentCount,
	}
}

func (p *StaticProvider) GetAdSegments(_ context.Context, duration float64, sessionID string) []Segment {
	n := numSegmentsFor(duration, p.segmentDuration)
	segments := make([]Segment, 0, n)
	for i := 0; i < n; i++ {
		segments = append(segments, Segment{
			URI:      fmt.Sprintf("%s/ad-segment-%d.ts", p.adSourceURL, i),
			Duration: p.segmentDuration,
		})
	}
	slog.Debug("static provider generated ad segments",
		"session", sessionID, "count", n, "totalDuration", float64(n)*p.segmentDuration)
	return segments
}

func (p *StaticProvider) ResolveSegmentURL(adName, _ string) (string, bool) {
	_, segIdx, ok := ParseAdName(adName)
	if !ok {
		return "", false
	}
	// Ad sources use naming like out_000.ts, out_001.ts, cycling through
	// the available segments.
	source := fmt.Sprintf("out_%03d.ts", segIdx%p.segmentCount)
	return fmt.Sprintf("%s/%s", p.adSourceURL, source), true
}

func (p *StaticProvider) ResolveSegmentWithTracking(adName, sessionID string) (ResolvedSegment, bool) {
	url, ok := p.ResolveSegmentURL(adName, sessionID)
	if !ok {
		return ResolvedSegment{}, false
	}
	return ResolvedSegment{URL: url}, true
}

func (p *StaticProvider) GetAdCreatives(ctx context.Context, duration float64, sessionID string) []Creative {
	return segmentsAsCreatives(p.GetAdSegments(ctx, duration, sessionID))
}

func (p *StaticProvider) CleanupCache() {}
