// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

// Package hls parses HLS media playlists, detects SCTE-35 ad breaks,
// and rewrites playlists for server-side (SSAI) or server-guided (SGAI)
// ad insertion. All emitted URIs route through the stitcher proxy.
package hls

import (
	"fmt"
	"strings"

	"github.com/mogiioin/hls-m3u8/m3u8"

	"github.com/joeldelpilar/ritcher/pkg/scte35"
)

// MarkerKind says which playlist construct signaled an ad break.
type MarkerKind string

const (
	// MarkerCueOut is a CUE-OUT / CUE-IN pair (OATCLS syntax).
	MarkerCueOut MarkerKind = "cue-out"
	// MarkerDateRange is an inline EXT-X-DATERANGE with SCTE35-OUT.
	MarkerDateRange MarkerKind = "daterange"
)

// defaultBreakDuration is used when a cue carries no usable duration.
const defaultBreakDuration = 30.0

// AdBreak is a detected ad break in a media playlist.
type AdBreak struct {
	// StartSegmentIndex is the index of the first placeholder segment.
	StartSegmentIndex int
	// SegmentCount is the number of placeholder segments covered by the
	// break. For a break still open at the end of a live playlist it
	// counts through the last segment.
	SegmentCount int
	// Duration is the signaled break duration in seconds.
	Duration float64
	// Marker is the signaling construct that opened the break.
	Marker MarkerKind
	// Open is true when the playlist ended before the closing marker
	// (live case).
	Open bool
}

// Parse decodes playlist content. Exactly one of the returned playlists
// is non-nil.
func Parse(content string) (*m3u8.MediaPlaylist, *m3u8.MasterPlaylist, error) {
	playlist, listType, err := m3u8.DecodeFrom(strings.NewReader(content), false)
	if err != nil {
		return nil, nil, fmt.Errorf("parse playlist: %w", err)
	}
	switch listType {
	case m3u8.MEDIA:
		return playlist.(*m3u8.MediaPlaylist), nil, nil
	case m3u8.MASTER:
		return nil, playlist.(*m3u8.MasterPlaylist), nil
	default:
		return nil, nil, fmt.Errorf("parse playlist: unknown list type")
	}
}

// DetectAdBreaks scans segments in order and returns the ad breaks
// signaled by CUE-OUT/CUE-IN pairs or inline SCTE-35 DATERANGE tags.
//
// A CUE-OUT opens a break at the segment it precedes; segments up to
// the matching CUE-IN are placeholders. CUE-OUT-CONT inside a break is
// advisory and never opens a new one. A playlist ending mid-break
// yields a break marked Open.
func DetectAdBreaks(pl *m3u8.MediaPlaylist) []AdBreak {
	var breaks []AdBreak
	var current *AdBreak

	closeCurrent := func() {
		if current != nil {
			current.Open = false
			breaks = append(breaks, *current)
			current = nil
		}
	}

	segments := pl.GetAllSegments()
	for i, seg := range segments {
		if current == nil {
			if dr := scte35OutDateRange(seg); dr != nil {
				current = &AdBreak{
					StartSegmentIndex: i,
					SegmentCount:      1,
					Duration:          dateRangeDuration(dr),
					Marker:            MarkerDateRange,
					Open:              true,
				}
				continue
			}
		}

		if seg.SCTE != nil && seg.SCTE.Syntax == m3u8.SCTE35_OATCLS {
			switch seg.SCTE.CueType {
			case m3u8.SCTE35Cue_Start:
				if current == nil {
					current = &AdBreak{
						StartSegmentIndex: i,
						Duration:          cueOutDuration(seg.SCTE),
						Marker:            MarkerCueOut,
						Open:              true,
					}
				}
				current.SegmentCount++
				continue
			case m3u8.SCTE35Cue_Mid:
				// Advisory continuation marker. Counts as a placeholder
				// when a break is open, never opens one.
				if current != nil {
					current.SegmentCount++
				}
				continue
			case m3u8.SCTE35Cue_End:
				closeCurrent()
				continue
			}
		}

		if current != nil {
			if scte35InDateRange(seg) != nil {
				closeCurrent()
				continue
			}
			current.SegmentCount++
		}
	}
	// Playlist ended mid-break (live case) — record it as still open.
	if current != nil {
		breaks = append(breaks, *current)
	}
	return breaks
}

// cueOutDuration resolves the break duration of a CUE-OUT: the explicit
// tag value, then the binary splice_insert payload, then the default.
func cueOutDuration(s *m3u8.SCTE) float64 {
	if s.Time > 0 {
		return s.Time
	}
	if s.Cue != "" {
		if dur, ok := scte35.SpliceInsertDuration(s.Cue); ok {
			return dur
		}
	}
	return defaultBreakDuration
}

func scte35OutDateRange(seg *m3u8.MediaSegment) *m3u8.DateRange {
	for _, dr := range seg.SCTE35DateRanges {
		if dr.SCTE35Out != "" {
			return dr
		}
	}
	return nil
}

func scte35InDateRange(seg *m3u8.MediaSegment) *m3u8.DateRange {
	for _, dr := range seg.SCTE35DateRanges {
		if dr.SCTE35In != "" {
			return dr
		}
	}
	return nil
}

func dateRangeDuration(dr *m3u8.DateRange) float64 {
	if dr.Duration != nil && *dr.Duration > 0 {
		return *dr.Duration
	}
	if dr.PlannedDuration != nil && *dr.PlannedDuration > 0 {
		return *dr.PlannedDuration
	}
	return defaultBreakDuration
}
