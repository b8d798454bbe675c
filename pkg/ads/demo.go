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

// NumDemoCreatives is the number of built-in demo creatives.
const NumDemoCreatives = 5

// DemoProvider serves visually different ad creatives per break.
//
// Each break index maps to a different creative directory under the
// base URL, producing visually distinct ads for customer demos. The
// break index encoded in the segment name selects the creative source.
type DemoProvider struct {
	creativeSources []string
	segmentDuration float64
	segmentCount    int
}

// NewDemoProvider expects creative directories at {baseURL}/creative-{1..5}/
// each containing segments out_000.ts through out_009.ts.
func NewDemoProvider(baseURL string) *DemoProvider {
	base := strings.TrimSuffix(baseURL, "/")
	sources := make([]string, 0, NumDemoCreatives)
	for i := 1; i <= NumDemoCreatives; i++ {
		sources = append(sources, fmt.Sprintf("%s/creative-%d", base, i))
	}
	return &DemoProvider{
		creativeSources: sources,
		segmentDuration: 1.0,
		segmentCount:    defaultSegmentCount,
	}
}

func (p *DemoProvider) GetAdSegments(_ context.Context, duration float64, sessionID string) []Segment {
	n := numSegmentsFor(duration, p.segmentDuration)
	segments := make([]Segment, 0, n)
	for i := 0; i < n; i++ {
		segments = append(segments, Segment{
			URI:      fmt.Sprintf("%s/ad-segment-%d.ts", p.creativeSources[0], i),
			Duration: p.segmentDuration,
		})
	}
	slog.Debug("demo provider generated ad segments", "session", sessionID, "count", n)
	return segments
}

func (p *DemoProvider) ResolveSegmentURL(adName, _ string) (string, bool) {
	breakIdx, segIdx, ok := ParseAdName(adName)
	if !ok {
		return "", false
	}
	source := p.creativeSources[breakIdx%len(p.creativeSources)]
	segment := fmt.Sprintf("out_%03d.ts", segIdx%p.segmentCount)
	return fmt.Sprintf("%s/%s", source, segment), true
}

func (p *DemoProvider) ResolveSegmentWithTracking(adName, sessionID string) (ResolvedSegment, bool) {
	url, ok := p.ResolveSegmentURL(adName, sessionID)
	if !ok {
		return ResolvedSegment{}, false
	}
	return ResolvedSegment{URL: url}, true
}

func (p *DemoProvider) GetAdCreatives(ctx context.Context, duration float64, sessionID string) []Creative {
	return segmentsAsCreatives(p.GetAdSegments(ctx, duration, sessionID))
}

func (p *DemoProvider) CleanupCache() {}
