// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

package app

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/joeldelpilar/ritcher/pkg/scte35"
)

// Synthetic fixture endpoints backed by the Mux Big Buck Bunny test
// stream. They exist so the stitcher can be exercised end-to-end
// without a real packager: the playlists carry genuine SCTE-35
// signaling at configurable positions.
const (
	muxBase       = "https://test-streams.mux.dev/x36xhzz/url_0"
	muxSegment    = "193039199_mp4_h264_aac_hd_7.ts"
	muxStartIndex = 462
	// demoSegmentDuration is the content segment duration in seconds.
	demoSegmentDuration = 10.0
	// demoBreakDuration matches the demo ad provider: 10 one-second
	// segments per break.
	demoBreakDuration = 10
	// demoBreakSegments is the number of placeholder segments per break.
	demoBreakSegments = 1
	demoTrailingSegs  = 3
)

// demoParams validates the breaks/interval query parameters.
type demoParams struct {
	numBreaks    int
	intervalSecs int
}

func parseDemoParams(r *http.Request) demoParams {
	p := demoParams{numBreaks: 1, intervalSecs: 15}
	if raw := r.URL.Query().Get("breaks"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			p.numBreaks = min(max(v, 1), 5)
		}
	}
	if raw := r.URL.Query().Get("interval"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			switch {
			case v <= 12:
				p.intervalSecs = 10
			case v <= 17:
				p.intervalSecs = 15
			default:
				p.intervalSecs = 20
			}
		}
	}
	return p
}

func muxSegmentURL(index int) string {
	return fmt.Sprintf("%s/url_%d/%s", muxBase, index, muxSegment)
}

// buildDemoHLS generates a VOD playlist with CUE-OUT/CUE-IN markers and
// OATCLS splice_insert payloads at configurable intervals.
func buildDemoHLS(p demoParams) string {
	segsPerInterval := p.intervalSecs / int(demoSegmentDuration)
	segIdx := muxStartIndex
	var b strings.Builder
	b.Grow(4096)

	fmt.Fprintln(&b, "#EXTM3U")
	fmt.Fprintln(&b, "#EXT-X-VERSION:3")
	fmt.Fprintln(&b, "#EXT-X-TARGETDURATION:10")
	fmt.Fprintln(&b, "#EXT-X-MEDIA-SEQUENCE:0")
	fmt.Fprintln(&b, "#EXT-X-PROGRAM-DATE-TIME:2026-01-01T00:00:00.000Z")
	fmt.Fprintln(&b)

	for breakNum := 0; breakNum < p.numBreaks; breakNum++ {
		for i := 0; i < segsPerInterval; i++ {
			fmt.Fprintf(&b, "#EXTINF:%.1f,\n", demoSegmentDuration)
			fmt.Fprintln(&b, muxSegmentURL(segIdx))
			segIdx++
		}
		fmt.Fprintln(&b)

		fmt.Fprintf(&b, "#EXT-OATCLS-SCTE35:%s\n",
			scte35.CreateOutCue(uint32(100+breakNum), demoBreakDuration))
		fmt.Fprintf(&b, "#EXT-X-CUE-OUT:%d\n", demoBreakDuration)

		// Placeholder segments within the break are replaced by the
		// stitcher. Reuse the last content segment without advancing
		// segIdx so content resumes seamlessly after the break.
		placeholderIdx := segIdx - 1
		for cont := 0; cont < demoBreakSegments; cont++ {
			if cont > 0 {
				elapsed := cont * int(demoSegmentDuration)
				fmt.Fprintf(&b, "#EXT-X-CUE-OUT-CONT:ElapsedTime=%d,Duration=%d\n",
					elapsed, demoBreakDuration)
			}
			fmt.Fprintf(&b, "#EXTINF:%.1f,\n", demoSegmentDuration)
			fmt.Fprintln(&b, muxSegmentURL(placeholderIdx))
		}

		fmt.Fprintln(&b, "#EXT-X-CUE-IN")
		fmt.Fprintln(&b)
	}

	for i := 0; i < demoTrailingSegs; i++ {
		fmt.Fprintf(&b, "#EXTINF:%.1f,\n", demoSegmentDuration)
		fmt.Fprintln(&b, muxSegmentURL(segIdx))
		segIdx++
	}

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "#EXT-X-ENDLIST")
	return b.String()
}

// buildDemoMPD generates a static MPD with one SCTE-35 EventStream per
// content Period.
func buildDemoMPD(p demoParams) string {
	segsPerInterval := p.intervalSecs / int(demoSegmentDuration)
	segStart := muxStartIndex
	var b strings.Builder
	b.Grow(4096)

	totalDuration := p.numBreaks*(p.intervalSecs+demoBreakDuration) + 30

	fmt.Fprintln(&b, `<?xml version="1.0" encoding="UTF-8"?>`)
	fmt.Fprintf(&b, `<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="static" mediaPresentationDuration="PT%dS" minBufferTime="PT2S" profiles="urn:mpeg:dash:profile:isoff-live:2011">`+"\n",
		totalDuration)

	for breakNum := 0; breakNum < p.numBreaks; breakNum++ {
		periodDuration := p.intervalSecs + demoBreakDuration
		eventTime := p.intervalSecs

		fmt.Fprintf(&b, `  <Period id="content-%d" duration="PT%dS">`+"\n", breakNum+1, periodDuration)
		fmt.Fprintf(&b, "    <BaseURL>%s/</BaseURL>\n", muxBase)
		writeDemoAdaptationSets(&b, segStart)

		fmt.Fprintln(&b, `    <EventStream schemeIdUri="urn:scte:scte35:2013:xml" timescale="1">`)
		fmt.Fprintf(&b, `      <Event presentationTime="%d" duration="%d" id="ad-%d">`+"\n",
			eventTime, demoBreakDuration, breakNum+1)
		fmt.Fprintln(&b, `        <scte35:SpliceInfoSection xmlns:scte35="http://www.scte.org/schemas/35/2016">`)
		fmt.Fprintf(&b, `          <scte35:SpliceInsert spliceEventId="%d" outOfNetworkIndicator="true">`+"\n", 100+breakNum)
		fmt.Fprintf(&b, `            <scte35:BreakDuration autoReturn="true" duration="%d"/>`+"\n", demoBreakDuration)
		fmt.Fprintln(&b, `          </scte35:SpliceInsert>`)
		fmt.Fprintln(&b, `        </scte35:SpliceInfoSection>`)
		fmt.Fprintln(&b, `      </Event>`)
		fmt.Fprintln(&b, `    </EventStream>`)
		fmt.Fprintln(&b, `  </Period>`)

		// Break segments are stitched placeholders; only content
		// segments consume source indices.
		segStart += segsPerInterval
	}

	fmt.Fprintln(&b, `  <Period id="content-trailing" duration="PT30S">`)
	fmt.Fprintf(&b, "    <BaseURL>%s/</BaseURL>\n", muxBase)
	writeDemoAdaptationSets(&b, segStart)
	fmt.Fprintln(&b, `  </Period>`)
	fmt.Fprintln(&b, `</MPD>`)
	return b.String()
}

func writeDemoAdaptationSets(b *strings.Builder, segStart int) {
	fmt.Fprintln(b, `    <AdaptationSet id="1" contentType="video" mimeType="video/mp2t">`)
	fmt.Fprintln(b, `      <Representation id="video" bandwidth="800000" codecs="avc1.64001f">`)
	fmt.Fprintf(b, `        <SegmentTemplate media="url_$Number$/%s" timescale="1" duration="10" startNumber="%d"/>`+"\n",
		muxSegment, segStart)
	fmt.Fprintln(b, `      </Representation>`)
	fmt.Fprintln(b, `    </AdaptationSet>`)
	fmt.Fprintln(b, `    <AdaptationSet id="2" contentType="audio" mimeType="audio/mp4" lang="en">`)
	fmt.Fprintln(b, `      <Representation id="audio" bandwidth="128000" codecs="mp4a.40.2">`)
	fmt.Fprintf(b, `        <SegmentTemplate media="url_$Number$/%s" timescale="1" duration="10" startNumber="%d"/>`+"\n",
		muxSegment, segStart)
	fmt.Fprintln(b, `      </Representation>`)
	fmt.Fprintln(b, `    </AdaptationSet>`)
}

// LL-HLS demo parameters.
const (
	llHLSPartTarget  = 0.33334
	llHLSPartsPerSeg = 3
)

// writeLLHLSSegment writes one full segment with its partial segments.
// The first part of each segment is INDEPENDENT=YES.
func writeLLHLSSegment(b *strings.Builder, segIdx int) {
	for part := 0; part < llHLSPartsPerSeg; part++ {
		if part == 0 {
			fmt.Fprintf(b, "#EXT-X-PART:DURATION=%.5f,URI=\"%s/seg%d.%d.mp4\",INDEPENDENT=YES\n",
				llHLSPartTarget, muxBase, segIdx, part)
		} else {
			fmt.Fprintf(b, "#EXT-X-PART:DURATION=%.5f,URI=\"%s/seg%d.%d.mp4\"\n",
				llHLSPartTarget, muxBase, segIdx, part)
		}
	}
	fmt.Fprintf(b, "#EXTINF:%.5f,\n", llHLSPartTarget*llHLSPartsPerSeg)
	fmt.Fprintln(b, muxSegmentURL(segIdx))
}

// buildDemoLLHLS generates a live-like playlist with LL-HLS tags
// (SERVER-CONTROL, PART-INF, PART, PRELOAD-HINT, RENDITION-REPORT) and
// CUE markers. Partial segment URIs are synthetic but structurally
// correct for exercising the LL-HLS rewrite pipeline.
func buildDemoLLHLS(p demoParams) string {
	// Each full segment is about one second (3 parts).
	segsPerInterval := p.intervalSecs
	segIdx := muxStartIndex
	var b strings.Builder
	b.Grow(8192)

	fmt.Fprintln(&b, "#EXTM3U")
	fmt.Fprintln(&b, "#EXT-X-VERSION:6")
	fmt.Fprintln(&b, "#EXT-X-TARGETDURATION:4")
	fmt.Fprintln(&b, "#EXT-X-SERVER-CONTROL:CAN-BLOCK-RELOAD=YES,PART-HOLD-BACK=1.0,CAN-SKIP-UNTIL=12.0")
	fmt.Fprintf(&b, "#EXT-X-PART-INF:PART-TARGET=%.5f\n", llHLSPartTarget)
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", muxStartIndex)
	fmt.Fprintln(&b, "#EXT-X-PROGRAM-DATE-TIME:2026-01-01T00:00:00.000Z")
	fmt.Fprintln(&b)

	for breakNum := 0; breakNum < p.numBreaks; breakNum++ {
		for i := 0; i < segsPerInterval; i++ {
			writeLLHLSSegment(&b, segIdx)
			segIdx++
		}
		fmt.Fprintln(&b)

		fmt.Fprintf(&b, "#EXT-X-CUE-OUT:%d\n", demoBreakDuration)
		placeholderIdx := segIdx - 1
		fmt.Fprintf(&b, "#EXTINF:%.1f,\n", demoSegmentDuration)
		fmt.Fprintln(&b, muxSegmentURL(placeholderIdx))
		fmt.Fprintln(&b, "#EXT-X-CUE-IN")
		fmt.Fprintln(&b)
	}

	for i := 0; i < demoTrailingSegs; i++ {
		writeLLHLSSegment(&b, segIdx)
		segIdx++
	}
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "#EXT-X-PRELOAD-HINT:TYPE=PART,URI=\"%s/seg%d.0.mp4\"\n", muxBase, segIdx)
	fmt.Fprintf(&b, "#EXT-X-RENDITION-REPORT:URI=\"alt-playlist.m3u8\",LAST-MSN=%d,LAST-PART=2\n", segIdx-1)
	return b.String()
}

func (s *Server) demoPlaylistHandlerFunc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", hlsContentType)
	_, _ = w.Write([]byte(buildDemoHLS(parseDemoParams(r))))
}

func (s *Server) demoManifestHandlerFunc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", dashContentType)
	_, _ = w.Write([]byte(buildDemoMPD(parseDemoParams(r))))
}

func (s *Server) demoLLHLSHandlerFunc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", hlsContentType)
	_, _ = w.Write([]byte(buildDemoLLHLS(parseDemoParams(r))))
}
