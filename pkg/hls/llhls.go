// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

// Low-Latency HLS tag pass-through.
//
// The playlist writer drops LL-HLS tags (EXT-X-SERVER-CONTROL,
// EXT-X-PART-INF, EXT-X-SKIP, EXT-X-PART, EXT-X-PRELOAD-HINT,
// EXT-X-RENDITION-REPORT) on serialization, so a parse-serialize
// round-trip loses them. Rather than forking the parser, the preserver
// captures the raw lines before parsing and re-injects them verbatim
// after serialization, rewriting their URIs to route through the
// stitcher. This is a deliberate textual cross-cut, not a parser patch.

package hls

import (
	"fmt"
	"strings"
)

// LLHLSTags holds raw captured LL-HLS lines, byte-for-byte.
type LLHLSTags struct {
	ServerControl string
	PartInf       string
	Skip          string
	// PreloadHints appear after the last segment; order preserved.
	PreloadHints []string
	// RenditionReports appear at the end of the playlist, one per
	// alternative rendition; order preserved.
	RenditionReports []string
	// PartGroups[i] holds the EXT-X-PART lines preceding the i-th
	// segment URI line. The writer drops parts, so they are re-injected
	// positionally — valid only when the rewrite keeps every content
	// segment (SGAI).
	PartGroups [][]string
	// TrailingParts are EXT-X-PART lines of the in-progress segment
	// after the last full segment.
	TrailingParts []string
}

// IsLLHLS is a cheap check for whether content needs the LL-HLS path.
func IsLLHLS(content string) bool {
	return strings.Contains(content, "#EXT-X-SERVER-CONTROL:") ||
		strings.Contains(content, "#EXT-X-PART-INF:") ||
		strings.Contains(content, "#EXT-X-PART:")
}

// ExtractLLHLSTags captures the LL-HLS playlist-level and trailer tags
// from raw playlist content.
func ExtractLLHLSTags(content string) LLHLSTags {
	var tags LLHLSTags
	var currentParts []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, "#EXT-X-SERVER-CONTROL:"):
			tags.ServerControl = line
		case strings.HasPrefix(line, "#EXT-X-PART-INF:"):
			tags.PartInf = line
		case strings.HasPrefix(line, "#EXT-X-SKIP:"):
			tags.Skip = line
		case strings.HasPrefix(line, "#EXT-X-PART:"):
			currentParts = append(currentParts, line)
		case strings.HasPrefix(line, "#EXT-X-PRELOAD-HINT:"):
			tags.PreloadHints = append(tags.PreloadHints, line)
		case strings.HasPrefix(line, "#EXT-X-RENDITION-REPORT:"):
			tags.RenditionReports = append(tags.RenditionReports, line)
		case line != "" && !strings.HasPrefix(line, "#"):
			// Segment URI line — close the part group it belongs to.
			tags.PartGroups = append(tags.PartGroups, currentParts)
			currentParts = nil
		}
	}
	tags.TrailingParts = currentParts
	return tags
}

// InjectPartGroups re-inserts captured EXT-X-PART lines before their
// segment URI lines. Group i precedes the i-th URI line of the
// serialized output, so this is only valid when the rewrite preserved
// every content segment (the SGAI path). Trailing parts of the
// in-progress segment are appended after the last segment.
func InjectPartGroups(serialized string, tags LLHLSTags) string {
	hasParts := len(tags.TrailingParts) > 0
	for _, g := range tags.PartGroups {
		if len(g) > 0 {
			hasParts = true
		}
	}
	if !hasParts {
		return serialized
	}

	var b strings.Builder
	b.Grow(len(serialized) + 1024)
	segIdx := 0
	for _, line := range strings.Split(strings.TrimSuffix(serialized, "\n"), "\n") {
		if line != "" && !strings.HasPrefix(line, "#") {
			if segIdx < len(tags.PartGroups) {
				for _, part := range tags.PartGroups[segIdx] {
					b.WriteString(part)
					b.WriteByte('\n')
				}
			}
			segIdx++
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	for _, part := range tags.TrailingParts {
		b.WriteString(part)
		b.WriteByte('\n')
	}
	return b.String()
}

// InjectLLHLSTags re-inserts captured tags into serialized output.
//
// Playlist-level tags go after the EXT-X-TARGETDURATION line (falling
// back to EXT-X-VERSION, then EXTM3U), in the order SERVER-CONTROL,
// PART-INF, SKIP. Trailer tags are appended at the end in their
// original order.
func InjectLLHLSTags(serialized string, tags LLHLSTags) string {
	hasHeaderTags := tags.ServerControl != "" || tags.PartInf != "" || tags.Skip != ""
	hasTailTags := len(tags.PreloadHints) > 0 || len(tags.RenditionReports) > 0
	if !hasHeaderTags && !hasTailTags {
		return serialized
	}

	var b strings.Builder
	b.Grow(len(serialized) + 512)

	if hasHeaderTags {
		insertionLine := findInsertionLine(serialized)
		for idx, line := range strings.Split(strings.TrimSuffix(serialized, "\n"), "\n") {
			b.WriteString(line)
			b.WriteByte('\n')
			if idx == insertionLine {
				for _, tag := range []string{tags.ServerControl, tags.PartInf, tags.Skip} {
					if tag != "" {
						b.WriteString(tag)
						b.WriteByte('\n')
					}
				}
			}
		}
	} else {
		b.WriteString(serialized)
		if !strings.HasSuffix(serialized, "\n") {
			b.WriteByte('\n')
		}
	}

	for _, hint := range tags.PreloadHints {
		b.WriteString(hint)
		b.WriteByte('\n')
	}
	for _, report := range tags.RenditionReports {
		b.WriteString(report)
		b.WriteByte('\n')
	}
	return b.String()
}

// findInsertionLine returns the zero-based line index after which
// playlist-level tags are injected. Priority: TARGETDURATION, then
// VERSION, then EXTM3U.
func findInsertionLine(content string) int {
	versionLine := -1
	extm3uLine := -1
	for idx, line := range strings.Split(content, "\n") {
		switch {
		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			return idx
		case strings.HasPrefix(line, "#EXT-X-VERSION:"):
			versionLine = idx
		case strings.HasPrefix(line, "#EXTM3U"):
			extm3uLine = idx
		}
	}
	if versionLine >= 0 {
		return versionLine
	}
	if extm3uLine >= 0 {
		return extm3uLine
	}
	return 0
}

// RewriteLLHLSURIs rewrites the URIs inside line-level LL-HLS tags:
// PART and PRELOAD-HINT to the segment proxy, RENDITION-REPORT to the
// playlist proxy. Absolute URIs carry their own origin; relative ones
// resolve against originBase.
func RewriteLLHLSURIs(serialized, sessionID, baseURL, originBase string) string {
	var b strings.Builder
	b.Grow(len(serialized) + 512)

	for _, line := range strings.Split(strings.TrimSuffix(serialized, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "#EXT-X-PART:"), strings.HasPrefix(line, "#EXT-X-PRELOAD-HINT:"):
			b.WriteString(rewritePartURI(line, sessionID, baseURL, originBase))
		case strings.HasPrefix(line, "#EXT-X-RENDITION-REPORT:"):
			b.WriteString(rewriteReportURI(line, sessionID, baseURL, originBase))
		default:
			b.WriteString(line)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// ExtractQuotedURI finds the URI="..." attribute in a tag line and
// returns the value plus the byte offsets of the opening quote and one
// past the closing quote.
func ExtractQuotedURI(line string) (value string, quoteStart, quoteEnd int, ok bool) {
	const marker = `URI="`
	markerPos := strings.Index(line, marker)
	if markerPos < 0 {
		return "", 0, 0, false
	}
	valueStart := markerPos + len(marker)
	closing := strings.Index(line[valueStart:], `"`)
	if closing < 0 {
		return "", 0, 0, false
	}
	return line[valueStart : valueStart+closing], valueStart - 1, valueStart + closing + 1, true
}

// rewritePartURI routes a PART or PRELOAD-HINT URI through the segment proxy.
func rewritePartURI(line, sessionID, baseURL, originBase string) string {
	uri, quoteStart, quoteEnd, ok := ExtractQuotedURI(line)
	if !ok {
		return line
	}
	name, origin := splitSegmentURI(uri, originBase)
	newURI := fmt.Sprintf("%q", fmt.Sprintf("%s/stitch/%s/segment/%s?origin=%s",
		baseURL, sessionID, name, origin))
	return line[:quoteStart] + newURI + line[quoteEnd:]
}

// rewriteReportURI routes a RENDITION-REPORT URI through the playlist proxy.
func rewriteReportURI(line, sessionID, baseURL, originBase string) string {
	uri, quoteStart, quoteEnd, ok := ExtractQuotedURI(line)
	if !ok {
		return line
	}
	absolute := uri
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		absolute = originBase + "/" + uri
	}
	newURI := fmt.Sprintf("%q", fmt.Sprintf("%s/stitch/%s/playlist.m3u8?origin=%s",
		baseURL, sessionID, absolute))
	return line[:quoteStart] + newURI + line[quoteEnd:]
}
