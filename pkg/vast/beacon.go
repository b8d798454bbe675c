// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

package vast

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joeldelpilar/ritcher/pkg/ads"
)

// beaconTimeout bounds each beacon request. Beacons run detached from
// the serving request and never delay it.
const beaconTimeout = 5 * time.Second

// beaconClient is shared by all beacon goroutines.
var beaconClient = &http.Client{Timeout: beaconTimeout}

// FireBeacons issues fire-and-forget GETs for the given URLs.
// Failures are logged only.
func FireBeacons(urls []string) {
	for _, u := range urls {
		if u == "" {
			continue
		}
		go fireOne(u)
	}
}

// FireErrorBeacons fires error URLs with the [ERRORCODE] macro replaced.
func FireErrorBeacons(urls []string, errCode string) {
	if errCode == "" {
		errCode = "900"
	}
	expanded := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		expanded = append(expanded, strings.ReplaceAll(u, "[ERRORCODE]", errCode))
	}
	FireBeacons(expanded)
}

func fireOne(url string) {
	ctx, cancel := context.WithTimeout(context.Background(), beaconTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		slog.Warn("beacon request build failed", "url", url, "err", err)
		return
	}
	resp, err := beaconClient.Do(req)
	if err != nil {
		slog.Warn("beacon fire failed", "url", url, "err", err)
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<12))
	_ = resp.Body.Close()
	slog.Debug("beacon fired", "url", url, "status", resp.StatusCode)
}

// quartile triggers in normalized playback position.
var quartileTriggers = []struct {
	event   string
	trigger float64
}{
	{"start", 0.0},
	{"firstQuartile", 0.25},
	{"midpoint", 0.5},
	{"thirdQuartile", 0.75},
	{"complete", 1.0},
}

// EventsForSegment returns the tracking URLs a given sub-segment should
// fire. A segment covers the normalized interval
// [segmentIndex/total, (segmentIndex+1)/total); the final segment's
// interval is closed on the right so the complete event fires.
func EventsForSegment(t *ads.TrackingInfo) []string {
	if t == nil || t.TotalSegments <= 0 {
		return nil
	}
	lo := float64(t.SegmentIndex) / float64(t.TotalSegments)
	hi := float64(t.SegmentIndex+1) / float64(t.TotalSegments)
	last := t.SegmentIndex == t.TotalSegments-1

	wanted := map[string]bool{}
	for _, q := range quartileTriggers {
		if q.trigger >= lo && (q.trigger < hi || (last && q.trigger <= hi)) {
			wanted[q.event] = true
		}
	}

	var urls []string
	if wanted["start"] {
		urls = append(urls, t.ImpressionURLs...)
	}
	for _, ev := range t.TrackingEvents {
		if wanted[ev.Event] {
			urls = append(urls, ev.URL)
		}
	}
	return urls
}
