// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

package dash

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rewriteOpts() RewriteOptions {
	return RewriteOptions{
		SessionID:         "S",
		BaseURL:           "http://stitch.test",
		AdSegmentDuration: 1.0,
	}
}

func TestRewriteSSAIInsertsAdPeriods(t *testing.T) {
	doc, err := Parse(testMPD)
	require.NoError(t, err)
	breaks := DetectAdBreaks(doc)
	require.Len(t, breaks, 2)

	RewriteSSAI(doc, breaks, rewriteOpts())

	periods := doc.Root().SelectElements("Period")
	require.Len(t, periods, 5, "3 content Periods + 2 ad Periods")

	// Ad Periods sit immediately after their host Periods.
	assert.Equal(t, "content-1", periods[0].SelectAttrValue("id", ""))
	assert.Equal(t, "ad-0", periods[1].SelectAttrValue("id", ""))
	assert.Equal(t, "content-2", periods[2].SelectAttrValue("id", ""))
	assert.Equal(t, "content-3", periods[3].SelectAttrValue("id", ""))
	assert.Equal(t, "ad-1", periods[4].SelectAttrValue("id", ""))

	// Ad Period structure: duration, proxied BaseURL, SegmentTemplate.
	adPeriod := periods[1]
	assert.Equal(t, "PT10S", adPeriod.SelectAttrValue("duration", ""))
	base := adPeriod.SelectElement("BaseURL")
	require.NotNil(t, base)
	assert.Equal(t, "http://stitch.test/stitch/S/ad/", base.Text())
	tmpl := findDescendant(adPeriod, "SegmentTemplate")
	require.NotNil(t, tmpl)
	assert.Equal(t, "break-0-seg-$Number$.ts", tmpl.SelectAttrValue("media", ""))

	// Original SCTE-35 EventStreams are stripped.
	for _, p := range periods {
		for _, es := range p.SelectElements("EventStream") {
			assert.False(t, IsSCTE35Scheme(es.SelectAttrValue("schemeIdUri", "")),
				"no SCTE-35 EventStream may remain after strip")
		}
	}
}

func TestRewriteSSAIRewritesContentBaseURLs(t *testing.T) {
	doc, err := Parse(testMPD)
	require.NoError(t, err)
	RewriteSSAI(doc, DetectAdBreaks(doc), rewriteOpts())

	serialized, err := Serialize(doc)
	require.NoError(t, err)
	assert.NotContains(t, serialized, "https://cdn.test/live/",
		"origin BaseURLs must be re-rooted onto the proxy")
	assert.Contains(t, serialized, "http://stitch.test/stitch/S/segment/")
	// Relative SegmentTemplate values stay relative.
	assert.Contains(t, serialized, `media="url_$Number$/seg.ts"`)
}

func TestRewriteSGAIInjectsCallbacks(t *testing.T) {
	doc, err := Parse(testMPD)
	require.NoError(t, err)
	breaks := DetectAdBreaks(doc)

	RewriteSGAI(doc, breaks, rewriteOpts())

	periods := doc.Root().SelectElements("Period")
	require.Len(t, periods, 3, "SGAI never inserts Periods")

	// Period 0: callback stream with ad-break-0.
	var callbackStreams int
	for pIdx, p := range periods {
		for _, es := range p.SelectElements("EventStream") {
			scheme := es.SelectAttrValue("schemeIdUri", "")
			assert.False(t, IsSCTE35Scheme(scheme))
			if scheme != CallbackScheme {
				continue
			}
			callbackStreams++
			assert.Equal(t, "1", es.SelectAttrValue("timescale", ""))
			events := es.SelectElements("Event")
			require.Len(t, events, 1)
			ev := events[0]
			switch pIdx {
			case 0:
				assert.Equal(t, "ad-break-0", ev.SelectAttrValue("id", ""))
				assert.Equal(t, "15", ev.SelectAttrValue("presentationTime", ""))
				assert.Equal(t, "10", ev.SelectAttrValue("duration", ""))
				assert.Equal(t, "http://stitch.test/stitch/S/asset-list/0?dur=10", ev.Text())
			case 2:
				assert.Equal(t, "ad-break-1", ev.SelectAttrValue("id", ""))
				assert.Equal(t, "http://stitch.test/stitch/S/asset-list/1?dur=10", ev.Text())
			default:
				t.Fatalf("unexpected callback stream in Period %d", pIdx)
			}
		}
	}
	assert.Equal(t, 2, callbackStreams)
}

func TestRewriteSGAIConsolidatesBreaksPerPeriod(t *testing.T) {
	doc, err := Parse(`<?xml version="1.0"?>
<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="static">
  <Period id="p0">
    <EventStream schemeIdUri="urn:scte:scte35:2013:xml" timescale="1">
      <Event presentationTime="10" duration="15" id="a"/>
      <Event presentationTime="40" duration="20" id="b"/>
    </EventStream>
  </Period>
</MPD>`)
	require.NoError(t, err)
	breaks := DetectAdBreaks(doc)
	require.Len(t, breaks, 2)

	RewriteSGAI(doc, breaks, rewriteOpts())

	period := doc.Root().SelectElements("Period")[0]
	var callback int
	for _, es := range period.SelectElements("EventStream") {
		if es.SelectAttrValue("schemeIdUri", "") == CallbackScheme {
			callback++
			assert.Len(t, es.SelectElements("Event"), 2,
				"breaks in the same Period share one EventStream")
		}
	}
	assert.Equal(t, 1, callback)
}

func TestRewriteSGAIEmptyBreaksKeepsDocumentIntact(t *testing.T) {
	doc, err := Parse(testMPD)
	require.NoError(t, err)

	RewriteSGAI(doc, nil, rewriteOpts())

	// No callback streams, but the SCTE-35 strip and URL rewrite still run.
	serialized, err := Serialize(doc)
	require.NoError(t, err)
	assert.NotContains(t, serialized, CallbackScheme)
	assert.NotContains(t, serialized, "urn:scte:scte35")
}

func TestRewriteAbsoluteTemplatesReRooted(t *testing.T) {
	doc, err := Parse(`<?xml version="1.0"?>
<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="static">
  <Period id="p0">
    <AdaptationSet id="1">
      <Representation id="v">
        <SegmentTemplate media="https://cdn.test/live/url_$Number$/seg.ts" initialization="init.mp4"/>
      </Representation>
    </AdaptationSet>
  </Period>
</MPD>`)
	require.NoError(t, err)

	RewriteSSAI(doc, nil, rewriteOpts())

	serialized, err := Serialize(doc)
	require.NoError(t, err)
	assert.Contains(t, serialized,
		`media="http://stitch.test/stitch/S/segment/live/url_$Number$/seg.ts"`)
	assert.Contains(t, serialized, `initialization="init.mp4"`,
		"relative initialization stays in place")
}

func TestValidateRewrittenMPD(t *testing.T) {
	doc, err := Parse(testMPD)
	require.NoError(t, err)
	RewriteSSAI(doc, DetectAdBreaks(doc), rewriteOpts())

	serialized, err := Serialize(doc)
	require.NoError(t, err)
	assert.NoError(t, Validate(serialized))
	assert.True(t, strings.Contains(serialized, "<MPD"))

	assert.Error(t, Validate("definitely not an MPD"))
}
