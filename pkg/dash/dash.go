// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

// Package dash detects SCTE-35 ad breaks in MPD manifests and rewrites
// them for SSAI (spliced-in ad Periods) or SGAI (callback EventStreams).
//
// The MPD is manipulated as an XML document (etree) rather than through
// a typed model: origin manifests carry vendor extensions and SCTE-35
// payload elements that a typed round-trip would drop. The rewritten
// document is re-parsed through the dash-mpd typed model as a
// structural sanity check before it is served.
package dash

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// scte35SchemePrefix matches all SCTE-35 EventStream schemes
// (urn:scte:scte35:2013:xml, urn:scte:scte35:2013:bin,
// urn:scte:scte35:2014:xml+bin).
const scte35SchemePrefix = "urn:scte:scte35:"

// CallbackScheme is the DASH event callback scheme (ISO 23009-1).
// Players GET the URL in the Event's text content when the event fires.
const CallbackScheme = "urn:mpeg:dash:event:callback:2015"

// AdBreak is an ad break signaled by an SCTE-35 Event in the MPD.
type AdBreak struct {
	// PeriodIndex is the index of the Period holding the signal.
	PeriodIndex int
	// PresentationTime is the splice point in seconds within the Period.
	PresentationTime float64
	// Duration is the break duration in seconds.
	Duration float64
	// SignalType names the SCTE-35 construct (splice_insert,
	// time_signal, or binary).
	SignalType string
}

// Parse reads an MPD document.
func Parse(content string) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(content); err != nil {
		return nil, fmt.Errorf("parse MPD: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "MPD" {
		return nil, fmt.Errorf("parse MPD: no MPD root element")
	}
	return doc, nil
}

// Serialize writes the document back to XML text.
func Serialize(doc *etree.Document) (string, error) {
	doc.Indent(2)
	out, err := doc.WriteToString()
	if err != nil {
		return "", fmt.Errorf("serialize MPD: %w", err)
	}
	return out, nil
}

// IsSCTE35Scheme reports whether an EventStream schemeIdUri carries
// SCTE-35 signaling.
func IsSCTE35Scheme(scheme string) bool {
	return strings.HasPrefix(scheme, scte35SchemePrefix)
}

// DetectAdBreaks walks each Period's EventStreams and returns the ad
// breaks signaled with an SCTE-35 scheme. presentationTime and duration
// are converted from EventStream timescale units to seconds.
func DetectAdBreaks(doc *etree.Document) []AdBreak {
	var breaks []AdBreak
	for pIdx, period := range doc.Root().SelectElements("Period") {
		for _, es := range period.SelectElements("EventStream") {
			if !IsSCTE35Scheme(es.SelectAttrValue("schemeIdUri", "")) {
				continue
			}
			timescale := attrFloat(es, "timescale", 1)
			if timescale <= 0 {
				timescale = 1
			}
			for _, ev := range es.SelectElements("Event") {
				breaks = append(breaks, AdBreak{
					PeriodIndex:      pIdx,
					PresentationTime: attrFloat(ev, "presentationTime", 0) / timescale,
					Duration:         eventDuration(ev, timescale),
					SignalType:       signalType(ev),
				})
			}
		}
	}
	return breaks
}

// eventDuration resolves the break duration: the Event's duration
// attribute, then a BreakDuration element inside the SCTE-35 payload.
func eventDuration(ev *etree.Element, timescale float64) float64 {
	if d := attrFloat(ev, "duration", 0); d > 0 {
		return d / timescale
	}
	if bd := findDescendant(ev, "BreakDuration"); bd != nil {
		// BreakDuration@duration is in the payload's own units; SCTE-35
		// XML carries seconds here in practice.
		if d := attrFloat(bd, "duration", 0); d > 0 {
			return d
		}
	}
	return 0
}

func signalType(ev *etree.Element) string {
	switch {
	case findDescendant(ev, "SpliceInsert") != nil:
		return "splice_insert"
	case findDescendant(ev, "TimeSignal") != nil:
		return "time_signal"
	case strings.TrimSpace(ev.Text()) != "":
		return "binary"
	default:
		return "unknown"
	}
}

// findDescendant returns the first descendant element whose local tag
// name matches, at any depth and in any namespace.
func findDescendant(el *etree.Element, tag string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == tag {
			return child
		}
		if found := findDescendant(child, tag); found != nil {
			return found
		}
	}
	return nil
}

func attrFloat(el *etree.Element, name string, fallback float64) float64 {
	raw := el.SelectAttrValue(name, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

// isoDurationRe matches the subset of ISO-8601 durations used in MPDs.
var isoDurationRe = regexp.MustCompile(
	`^PT(?:(\d+(?:\.\d+)?)H)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)S)?$`)

// ParseISODuration parses an MPD duration attribute (PT…H…M…S) into
// seconds.
func ParseISODuration(s string) (float64, error) {
	m := isoDurationRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("invalid MPD duration %q", s)
	}
	var total float64
	for i, mult := range []float64{3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return 0, err
		}
		total += v * mult
	}
	return total, nil
}

// FormatISODuration formats seconds as an MPD duration attribute.
func FormatISODuration(seconds float64) string {
	if seconds == float64(int64(seconds)) {
		return fmt.Sprintf("PT%dS", int64(seconds))
	}
	return fmt.Sprintf("PT%gS", seconds)
}
