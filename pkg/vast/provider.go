// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

package vast

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/joeldelpilar/ritcher/pkg/ads"
)

// resolutionTTL is how long a per-session VAST resolution stays cached.
// Distinct from the manifest cache TTL — ad decisions are stable for
// the life of a session, not a playlist refresh.
const resolutionTTL = 5 * time.Minute

// Provider is a VAST-backed ads.Provider. The first call per session
// fetches and resolves the VAST document; the creative list is cached
// per session until the TTL elapses.
type Provider struct {
	resolver        *Resolver
	segmentDuration float64
	slateURL        string
	slateSegmentDur float64

	mu       sync.Mutex
	cache    map[string]resolution
	fired    map[string]struct{}
	firedAge map[string]time.Time
}

type resolution struct {
	creatives  []ResolvedCreative
	resolvedAt time.Time
}

// NewProvider wires a VAST resolver into the ad provider interface.
// slateURL may be empty; it is the fallback when the ad server returns
// no creatives.
func NewProvider(resolver *Resolver, segmentDuration float64, slateURL string, slateSegmentDur float64) *Provider {
	if segmentDuration <= 0 {
		segmentDuration = 1.0
	}
	if slateSegmentDur <= 0 {
		slateSegmentDur = 1.0
	}
	return &Provider{
		resolver:        resolver,
		segmentDuration: segmentDuration,
		slateURL:        slateURL,
		slateSegmentDur: slateSegmentDur,
		cache:           make(map[string]resolution),
		fired:           make(map[string]struct{}),
		firedAge:        make(map[string]time.Time),
	}
}

// resolveSession returns the cached creatives for a session, fetching
// and walking the VAST document on first use.
func (p *Provider) resolveSession(ctx context.Context, sessionID string) []ResolvedCreative {
	p.mu.Lock()
	if res, ok := p.cache[sessionID]; ok && time.Since(res.resolvedAt) < resolutionTTL {
		p.mu.Unlock()
		return res.creatives
	}
	p.mu.Unlock()

	creatives := p.resolver.Resolve(ctx, sessionID)

	p.mu.Lock()
	p.cache[sessionID] = resolution{creatives: creatives, resolvedAt: time.Now()}
	p.mu.Unlock()
	return creatives
}

// cachedSession returns the resolution without triggering a fetch.
// Segment resolution relies on the cache warmed during playlist rewrite.
func (p *Provider) cachedSession(sessionID string) ([]ResolvedCreative, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	res, ok := p.cache[sessionID]
	if !ok || time.Since(res.resolvedAt) >= resolutionTTL {
		return nil, false
	}
	return res.creatives, true
}

func (p *Provider) GetAdSegments(ctx context.Context, duration float64, sessionID string) []ads.Segment {
	creatives := p.resolveSession(ctx, sessionID)
	if len(creatives) == 0 {
		return p.slateSegments(duration)
	}

	n := int(math.Ceil(duration / p.segmentDuration))
	if n < 1 {
		n = 1
	}
	segments := make([]ads.Segment, 0, n)
	for i := 0; i < n; i++ {
		creative, segInCreative, totalInCreative := p.segmentSlot(creatives, i)
		segments = append(segments, ads.Segment{
			URI:      creative.MediaURL,
			Duration: p.segmentDuration,
			Tracking: &ads.TrackingInfo{
				ImpressionURLs: creative.ImpressionURLs,
				TrackingEvents: creative.TrackingEvents,
				ErrorURL:       creative.ErrorURL,
				TotalSegments:  totalInCreative,
				SegmentIndex:   segInCreative,
			},
		})
	}
	return segments
}

// segmentSlot maps a break-wide segment index to a creative and the
// segment's position within that creative. Each creative contributes
// ceil(duration / segmentDuration) slots (minimum 1); slots cycle over
// the creative list so the mapping is stable for any index.
func (p *Provider) segmentSlot(creatives []ResolvedCreative, segIdx int) (ResolvedCreative, int, int) {
	totalSlots := 0
	slots := make([]int, len(creatives))
	for i, c := range creatives {
		n := int(math.Ceil(c.DurationS / p.segmentDuration))
		if n < 1 {
			n = 1
		}
		slots[i] = n
		totalSlots += n
	}
	idx := segIdx % totalSlots
	for i, n := range slots {
		if idx < n {
			return creatives[i], idx, n
		}
		idx -= n
	}
	// Unreachable: idx < totalSlots by construction.
	return creatives[0], 0, slots[0]
}

func (p *Provider) slateSegments(duration float64) []ads.Segment {
	if p.slateURL == "" {
		slog.Warn("no VAST creatives and no slate configured, ad break left unfilled")
		return nil
	}
	n := int(math.Ceil(duration / p.slateSegmentDur))
	if n < 1 {
		n = 1
	}
	segments := make([]ads.Segment, 0, n)
	for i := 0; i < n; i++ {
		segments = append(segments, ads.Segment{
			URI:      p.slateURL,
			Duration: p.slateSegmentDur,
		})
	}
	return segments
}

func (p *Provider) ResolveSegmentURL(adName, sessionID string) (string, bool) {
	resolved, ok := p.ResolveSegmentWithTracking(adName, sessionID)
	if !ok {
		return "", false
	}
	return resolved.URL, true
}

func (p *Provider) ResolveSegmentWithTracking(adName, sessionID string) (ads.ResolvedSegment, bool) {
	_, segIdx, ok := ads.ParseAdName(adName)
	if !ok {
		return ads.ResolvedSegment{}, false
	}
	creatives, ok := p.cachedSession(sessionID)
	if !ok || len(creatives) == 0 {
		if p.slateURL != "" {
			return ads.ResolvedSegment{URL: p.slateURL}, true
		}
		return ads.ResolvedSegment{}, false
	}

	creative, segInCreative, totalInCreative := p.segmentSlot(creatives, segIdx)
	resolved := ads.ResolvedSegment{URL: creative.MediaURL}

	// Hand out tracking exactly once per (session, segment).
	firedKey := sessionID + "/" + adName
	p.mu.Lock()
	if _, done := p.fired[firedKey]; !done {
		p.fired[firedKey] = struct{}{}
		p.firedAge[firedKey] = time.Now()
		resolved.Tracking = &ads.TrackingInfo{
			ImpressionURLs: creative.ImpressionURLs,
			TrackingEvents: creative.TrackingEvents,
			ErrorURL:       creative.ErrorURL,
			TotalSegments:  totalInCreative,
			SegmentIndex:   segInCreative,
		}
	}
	p.mu.Unlock()
	return resolved, true
}

func (p *Provider) GetAdCreatives(ctx context.Context, duration float64, sessionID string) []ads.Creative {
	creatives := p.resolveSession(ctx, sessionID)
	if len(creatives) == 0 {
		if p.slateURL == "" {
			return nil
		}
		return []ads.Creative{{URI: p.slateURL, Duration: duration}}
	}
	out := make([]ads.Creative, 0, len(creatives))
	for _, c := range creatives {
		out = append(out, ads.Creative{URI: c.MediaURL, Duration: c.DurationS})
	}
	return out
}

// CleanupCache evicts resolutions and fired-markers past the TTL.
func (p *Provider) CleanupCache() {
	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, res := range p.cache {
		if now.Sub(res.resolvedAt) >= resolutionTTL {
			delete(p.cache, id)
		}
	}
	for key, at := range p.firedAge {
		if now.Sub(at) >= resolutionTTL {
			delete(p.firedAge, key)
			delete(p.fired, key)
		}
	}
}
