// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

package hls

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeldelpilar/ritcher/pkg/ads"
)

func testOpts() RewriteOptions {
	return RewriteOptions{
		SessionID:  "S",
		BaseURL:    "http://stitch.test",
		OriginBase: "http://cdn.test/live",
		Now:        time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRewriteSSAISingleBreak(t *testing.T) {
	media, _, err := Parse(singleBreakPlaylist)
	require.NoError(t, err)
	breaks := DetectAdBreaks(media)
	require.Len(t, breaks, 1)

	provider := ads.NewStaticProvider("https://ads.example.com", 1.0)
	out, err := RewriteSSAI(context.Background(), media, breaks, provider, testOpts())
	require.NoError(t, err)
	text := out.Encode().String()

	// 10s break at 1s per ad segment yields 10 ad segments.
	for i := 0; i < 10; i++ {
		assert.Contains(t, text,
			fmt.Sprintf("http://stitch.test/stitch/S/ad/break-0-seg-%d.ts", i))
	}
	assert.Equal(t, 1, strings.Count(text, "#EXT-X-DISCONTINUITY\n"),
		"exactly one discontinuity opens the ad group")

	// Content segments proxied; placeholder seg1 replaced.
	assert.Contains(t, text, "http://stitch.test/stitch/S/segment/seg0.ts?origin=http://cdn.test/live")
	assert.Contains(t, text, "http://stitch.test/stitch/S/segment/seg2.ts?origin=http://cdn.test/live")
	assert.NotContains(t, text, "segment/seg1.ts", "placeholder must be replaced")

	// Stitched output carries no cue markers.
	assert.NotContains(t, text, "#EXT-X-CUE-OUT")
	assert.NotContains(t, text, "#EXT-X-CUE-IN")
	assert.Contains(t, text, "#EXT-X-ENDLIST")
}

func TestRewriteSSAIEveryURIPointsAtProxy(t *testing.T) {
	media, _, err := Parse(twoBreakPlaylist)
	require.NoError(t, err)
	breaks := DetectAdBreaks(media)

	provider := ads.NewStaticProvider("https://ads.example.com", 1.0)
	out, err := RewriteSSAI(context.Background(), media, breaks, provider, testOpts())
	require.NoError(t, err)

	for _, line := range strings.Split(out.Encode().String(), "\n") {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		assert.True(t, strings.HasPrefix(line, "http://stitch.test/stitch/S/"),
			"URI line must route through the proxy: %s", line)
	}
}

func TestRewriteSSAITwoBreaksTwoGroups(t *testing.T) {
	media, _, err := Parse(twoBreakPlaylist)
	require.NoError(t, err)
	breaks := DetectAdBreaks(media)
	require.Len(t, breaks, 2)

	provider := ads.NewStaticProvider("https://ads.example.com", 10.0)
	out, err := RewriteSSAI(context.Background(), media, breaks, provider, testOpts())
	require.NoError(t, err)
	text := out.Encode().String()

	assert.Equal(t, 2, strings.Count(text, "#EXT-X-DISCONTINUITY\n"))
	assert.Contains(t, text, "/ad/break-0-seg-0.ts")
	assert.Contains(t, text, "/ad/break-1-seg-0.ts")
	assert.Contains(t, text, "/ad/break-1-seg-1.ts", "20s break at 10s segments needs 2")
}

func TestRewriteSSAIEmptyProviderPassesPlaceholdersThrough(t *testing.T) {
	media, _, err := Parse(singleBreakPlaylist)
	require.NoError(t, err)
	breaks := DetectAdBreaks(media)

	out, err := RewriteSSAI(context.Background(), media, breaks, emptyProvider{}, testOpts())
	require.NoError(t, err)
	text := out.Encode().String()

	assert.Contains(t, text, "segment/seg1.ts",
		"unfilled break passes the placeholder through, proxied")
	assert.NotContains(t, text, "#EXT-X-DISCONTINUITY")
	assert.NotContains(t, text, "/ad/")
}

func TestRewriteSGAISingleBreak(t *testing.T) {
	media, _, err := Parse(singleBreakPlaylist)
	require.NoError(t, err)
	breaks := DetectAdBreaks(media)

	out, err := RewriteSGAI(media, breaks, testOpts())
	require.NoError(t, err)
	text := out.Encode().String()

	assert.Equal(t, 1, strings.Count(text, "#EXT-X-DATERANGE:"))
	assert.Contains(t, text, `CLASS="com.apple.hls.interstitial"`)
	assert.Contains(t, text, `ID="ad-break-0"`)
	assert.Contains(t, text, `X-ASSET-LIST="http://stitch.test/stitch/S/asset-list/0?dur=10"`)
	assert.NotContains(t, text, "#EXT-X-DISCONTINUITY", "SGAI never injects discontinuities")

	// START-DATE from accumulated PDT + EXTINF: break starts 10s in.
	assert.Contains(t, text, `START-DATE="2026-01-01T00:00:10Z"`)

	// Content segments are kept (proxied), never replaced.
	assert.Contains(t, text, "segment/seg0.ts")
	assert.Contains(t, text, "segment/seg1.ts")
	assert.Contains(t, text, "segment/seg2.ts")
	assert.NotContains(t, text, "/ad/")
}

func TestRewriteSGAIWallClockFallback(t *testing.T) {
	media, _, err := Parse(twoBreakPlaylist) // no PDT in this fixture
	require.NoError(t, err)
	breaks := DetectAdBreaks(media)

	opts := testOpts()
	out, err := RewriteSGAI(media, breaks, opts)
	require.NoError(t, err)
	text := out.Encode().String()

	assert.Equal(t, 2, strings.Count(text, "#EXT-X-DATERANGE:"))
	// Breaks at 10s and 30s of playlist time, anchored at opts.Now.
	assert.Contains(t, text, `START-DATE="2026-01-01T12:00:10Z"`)
	assert.Contains(t, text, `START-DATE="2026-01-01T12:00:30Z"`)
	assert.Contains(t, text, `X-ASSET-LIST="http://stitch.test/stitch/S/asset-list/1?dur=20"`)
}

func TestRewriteMaster(t *testing.T) {
	_, master, err := Parse(masterPlaylist)
	require.NoError(t, err)

	text := RewriteMaster(master, testOpts())

	assert.Contains(t, text,
		"http://stitch.test/stitch/S/playlist.m3u8?origin=http://cdn.test/live/360p.m3u8")
	assert.Contains(t, text,
		"http://stitch.test/stitch/S/playlist.m3u8?origin=https://cdn.test/live/720p.m3u8")
}

func TestSplitSegmentURI(t *testing.T) {
	name, origin := splitSegmentURI("seg5.ts", "http://cdn.test/live")
	assert.Equal(t, "seg5.ts", name)
	assert.Equal(t, "http://cdn.test/live", origin)

	name, origin = splitSegmentURI("https://other.test/path/seg5.ts", "http://cdn.test/live")
	assert.Equal(t, "seg5.ts", name)
	assert.Equal(t, "https://other.test/path", origin)
}

// emptyProvider simulates an ad provider with no creatives and no slate.
type emptyProvider struct{}

func (emptyProvider) GetAdSegments(context.Context, float64, string) []ads.Segment { return nil }
func (emptyProvider) ResolveSegmentURL(string, string) (string, bool)              { return "", false }
func (emptyProvider) ResolveSegmentWithTracking(string, string) (ads.ResolvedSegment, bool) {
	return ads.ResolvedSegment{}, false
}
func (emptyProvider) GetAdCreatives(context.Context, float64, string) []ads.Creative { return nil }
func (emptyProvider) CleanupCache()                                                  {}
