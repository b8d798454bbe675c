// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

package dash

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/beevik/etree"
	mpdmodel "github.com/Eyevinn/dash-mpd/mpd"
)

// RewriteOptions carries the per-request context for MPD rewriting.
type RewriteOptions struct {
	// SessionID is the viewer session.
	SessionID string
	// BaseURL is the stitcher's external base URL without trailing slash.
	BaseURL string
	// AdSegmentDuration is the fill segment duration used in inserted
	// ad Period SegmentTemplates.
	AdSegmentDuration float64
}

// RewriteSSAI splices an ad Period after each break's host Period,
// strips the original SCTE-35 EventStreams, and routes content BaseURLs
// through the segment proxy.
func RewriteSSAI(doc *etree.Document, breaks []AdBreak, opts RewriteOptions) {
	root := doc.Root()
	periods := root.SelectElements("Period")

	// Insert in reverse so earlier insertions do not shift the index of
	// later hosts, and breaks sharing a host keep ascending order.
	for b := len(breaks) - 1; b >= 0; b-- {
		br := breaks[b]
		if br.PeriodIndex < 0 || br.PeriodIndex >= len(periods) {
			slog.Warn("ad break references missing Period, skipping",
				"periodIndex", br.PeriodIndex)
			continue
		}
		host := periods[br.PeriodIndex]
		root.InsertChildAt(host.Index()+1, adPeriod(b, br, opts))
	}

	rewriteContentBaseURLs(periods, opts)
	StripSCTE35EventStreams(doc)
}

// RewriteSGAI injects one callback EventStream per break-hosting Period
// (breaks in the same Period consolidate into a single EventStream with
// multiple Events), strips the original SCTE-35 EventStreams, and
// routes content BaseURLs through the segment proxy. No ad Periods are
// inserted.
func RewriteSGAI(doc *etree.Document, breaks []AdBreak, opts RewriteOptions) {
	root := doc.Root()
	periods := root.SelectElements("Period")

	streams := make(map[int]*etree.Element)
	for b, br := range breaks {
		if br.PeriodIndex < 0 || br.PeriodIndex >= len(periods) {
			slog.Warn("ad break references missing Period, skipping",
				"periodIndex", br.PeriodIndex)
			continue
		}
		es, ok := streams[br.PeriodIndex]
		if !ok {
			es = periods[br.PeriodIndex].CreateElement("EventStream")
			es.CreateAttr("schemeIdUri", CallbackScheme)
			es.CreateAttr("timescale", "1")
			streams[br.PeriodIndex] = es
		}
		durS := int64(math.Round(br.Duration))
		ev := es.CreateElement("Event")
		ev.CreateAttr("id", fmt.Sprintf("ad-break-%d", b))
		ev.CreateAttr("presentationTime", fmt.Sprintf("%d", int64(math.Round(br.PresentationTime))))
		ev.CreateAttr("duration", fmt.Sprintf("%d", durS))
		ev.SetText(fmt.Sprintf("%s/stitch/%s/asset-list/%d?dur=%d",
			opts.BaseURL, opts.SessionID, b, durS))
	}

	rewriteContentBaseURLs(periods, opts)
	StripSCTE35EventStreams(doc)
}

// StripSCTE35EventStreams removes SCTE-35 EventStreams from every
// Period to prevent double-signaling. Other EventStreams, including an
// injected callback stream, are kept.
func StripSCTE35EventStreams(doc *etree.Document) {
	for _, period := range doc.Root().SelectElements("Period") {
		for _, es := range period.SelectElements("EventStream") {
			if IsSCTE35Scheme(es.SelectAttrValue("schemeIdUri", "")) {
				period.RemoveChild(es)
			}
		}
	}
}

// Validate re-parses the rewritten MPD through the dash-mpd typed model
// as a structural sanity check before serving.
func Validate(serialized string) error {
	if _, err := mpdmodel.MPDFromBytes([]byte(serialized)); err != nil {
		return fmt.Errorf("rewritten MPD failed validation: %w", err)
	}
	return nil
}

// adPeriod builds the spliced-in ad Period. Its BaseURL is the
// stitcher's ad endpoint so the player fetches break-{b}-seg-{n}.ts
// through the proxy.
func adPeriod(b int, br AdBreak, opts RewriteOptions) *etree.Element {
	segDur := opts.AdSegmentDuration
	if segDur <= 0 {
		segDur = 1
	}

	period := etree.NewElement("Period")
	period.CreateAttr("id", fmt.Sprintf("ad-%d", b))
	period.CreateAttr("duration", FormatISODuration(br.Duration))

	base := period.CreateElement("BaseURL")
	base.SetText(fmt.Sprintf("%s/stitch/%s/ad/", opts.BaseURL, opts.SessionID))

	as := period.CreateElement("AdaptationSet")
	as.CreateAttr("id", "1")
	as.CreateAttr("contentType", "video")
	as.CreateAttr("mimeType", "video/MP2T")

	rep := as.CreateElement("Representation")
	rep.CreateAttr("id", "ad")
	rep.CreateAttr("bandwidth", "800000")

	tmpl := rep.CreateElement("SegmentTemplate")
	tmpl.CreateAttr("media", fmt.Sprintf("break-%d-seg-$Number$.ts", b))
	tmpl.CreateAttr("timescale", "1000")
	tmpl.CreateAttr("duration", fmt.Sprintf("%d", int64(math.Round(segDur*1000))))
	tmpl.CreateAttr("startNumber", "0")

	return period
}

// rewriteContentBaseURLs makes the proxy the authority for every
// content Period. Relative SegmentTemplate values resolve against the
// proxied BaseURL at fetch time; absolute ones are re-rooted onto the
// proxy, with the session origin supplying the host at fetch time.
func rewriteContentBaseURLs(periods []*etree.Element, opts RewriteOptions) {
	proxyRoot := fmt.Sprintf("%s/stitch/%s/segment/", opts.BaseURL, opts.SessionID)
	for _, period := range periods {
		baseURLs := period.SelectElements("BaseURL")
		if len(baseURLs) == 0 {
			el := etree.NewElement("BaseURL")
			el.SetText(proxyRoot)
			period.InsertChildAt(0, el)
		}
		for _, el := range baseURLs {
			el.SetText(proxyRoot)
		}
		rewriteAbsoluteTemplates(period, proxyRoot)
	}
}

// rewriteAbsoluteTemplates re-roots absolute SegmentTemplate media and
// initialization attributes onto the proxy. Relative values are left in
// place.
func rewriteAbsoluteTemplates(el *etree.Element, proxyRoot string) {
	if el.Tag == "SegmentTemplate" {
		for _, name := range []string{"media", "initialization"} {
			attr := el.SelectAttr(name)
			if attr == nil || !isAbsoluteURL(attr.Value) {
				continue
			}
			attr.Value = proxyRoot + stripOrigin(attr.Value)
		}
	}
	for _, child := range el.ChildElements() {
		rewriteAbsoluteTemplates(child, proxyRoot)
	}
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// stripOrigin drops the scheme and authority from an absolute URL.
func stripOrigin(s string) string {
	rest := s[strings.Index(s, "://")+3:]
	if idx := strings.Index(rest, "/"); idx >= 0 {
		return rest[idx+1:]
	}
	return ""
}
