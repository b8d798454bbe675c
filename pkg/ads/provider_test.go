// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

package ads

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAdName(t *testing.T) {
	cases := []struct {
		in       string
		breakIdx int
		segIdx   int
		ok       bool
	}{
		{"break-0-seg-0.ts", 0, 0, true},
		{"break-0-seg-3.ts", 0, 3, true},
		{"break-2-seg-5.ts", 2, 5, true},
		{"break-1-seg-15.ts", 1, 15, true},
		{"break-4-seg-15", 4, 15, true},
		{"invalid.ts", 0, 0, false},
		{"break-0.ts", 0, 0, false},
		{"break-x-seg-1.ts", 0, 0, false},
		{"break-1-seg-y.ts", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, c := range cases {
		b, s, ok := ParseAdName(c.in)
		assert.Equal(t, c.ok, ok, "name %q", c.in)
		if c.ok {
			assert.Equal(t, c.breakIdx, b, "name %q", c.in)
			assert.Equal(t, c.segIdx, s, "name %q", c.in)
		}
	}
}

func TestStaticExactDuration(t *testing.T) {
	p := NewStaticProvider("https://ads.example.com", 10.0)
	segments := p.GetAdSegments(context.Background(), 30.0, "test-session")

	require.Len(t, segments, 3)
	assert.Equal(t, 10.0, segments[0].Duration)
	assert.Equal(t, "https://ads.example.com/ad-segment-0.ts", segments[0].URI)
	assert.Nil(t, segments[0].Tracking)
	assert.Equal(t, "https://ads.example.com/ad-segment-1.ts", segments[1].URI)
	assert.Equal(t, "https://ads.example.com/ad-segment-2.ts", segments[2].URI)
}

func TestStaticPartialDurationRoundsUp(t *testing.T) {
	p := NewStaticProvider("https://ads.example.com", 10.0)
	// 25 / 10 = 2.5, ceiling = 3 segments
	segments := p.GetAdSegments(context.Background(), 25.0, "test-session")
	assert.Len(t, segments, 3)
}

func TestStaticMinimumOneSegment(t *testing.T) {
	p := NewStaticProvider("https://ads.example.com", 10.0)
	assert.Len(t, p.GetAdSegments(context.Background(), 2.0, "s"), 1)
	assert.Len(t, p.GetAdSegments(context.Background(), 0.0, "s"), 1)
}

func TestStaticResolveSegmentURL(t *testing.T) {
	p := NewStaticProviderWithCount("https://hls.src.tedm.io/content/ts_h264_480p_1s", 1.0, 10)

	url, ok := p.ResolveSegmentURL("break-0-seg-0.ts", "test")
	require.True(t, ok)
	assert.Equal(t, "https://hls.src.tedm.io/content/ts_h264_480p_1s/out_000.ts", url)

	url, ok = p.ResolveSegmentURL("break-0-seg-3.ts", "test")
	require.True(t, ok)
	assert.Equal(t, "https://hls.src.tedm.io/content/ts_h264_480p_1s/out_003.ts", url)

	// Segment 15 wraps to index 5 with segmentCount 10.
	url, ok = p.ResolveSegmentURL("break-1-seg-15.ts", "test")
	require.True(t, ok)
	assert.Equal(t, "https://hls.src.tedm.io/content/ts_h264_480p_1s/out_005.ts", url)

	_, ok = p.ResolveSegmentURL("invalid.ts", "test")
	assert.False(t, ok)
}

func TestStaticResolveWithTrackingHasNoTracking(t *testing.T) {
	p := NewStaticProvider("https://ads.example.com", 1.0)
	resolved, ok := p.ResolveSegmentWithTracking("break-0-seg-1.ts", "test")
	require.True(t, ok)
	assert.Nil(t, resolved.Tracking)
	assert.NotEmpty(t, resolved.URL)
}

func TestStaticCreativesMatchSegments(t *testing.T) {
	p := NewStaticProvider("https://ads.example.com", 1.0)
	creatives := p.GetAdCreatives(context.Background(), 30.0, "test")
	assert.Len(t, creatives, 30)
	assert.Equal(t, "https://ads.example.com/ad-segment-0.ts", creatives[0].URI)
	assert.Equal(t, 1.0, creatives[0].Duration)
}

func TestDemoPerBreakRouting(t *testing.T) {
	p := NewDemoProvider("http://localhost:3333/ads")

	cases := []struct {
		adName string
		want   string
	}{
		{"break-0-seg-0.ts", "http://localhost:3333/ads/creative-1/out_000.ts"},
		{"break-1-seg-3.ts", "http://localhost:3333/ads/creative-2/out_003.ts"},
		{"break-2-seg-0.ts", "http://localhost:3333/ads/creative-3/out_000.ts"},
		{"break-4-seg-7.ts", "http://localhost:3333/ads/creative-5/out_007.ts"},
		// Break 5 wraps back to creative-1, break 6 to creative-2.
		{"break-5-seg-0.ts", "http://localhost:3333/ads/creative-1/out_000.ts"},
		{"break-6-seg-0.ts", "http://localhost:3333/ads/creative-2/out_000.ts"},
		// Segment 15 wraps to out_005.
		{"break-0-seg-15.ts", "http://localhost:3333/ads/creative-1/out_005.ts"},
		{"break-1-seg-15.ts", "http://localhost:3333/ads/creative-2/out_005.ts"},
	}
	for _, c := range cases {
		url, ok := p.ResolveSegmentURL(c.adName, "test")
		require.True(t, ok, "name %q", c.adName)
		assert.Equal(t, c.want, url, "name %q", c.adName)
	}

	_, ok := p.ResolveSegmentURL("invalid.ts", "test")
	assert.False(t, ok)
}

func TestDemoGetSegments(t *testing.T) {
	p := NewDemoProvider("http://localhost:3333/ads")
	segments := p.GetAdSegments(context.Background(), 10.0, "test")

	require.Len(t, segments, 10)
	assert.Equal(t, 1.0, segments[0].Duration)
	assert.Nil(t, segments[0].Tracking)
}
