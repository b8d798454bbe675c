// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

package app

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	defaultBuckets = []float64{5, 10, 20, 50, 100, 200, 500, 1000}
	prometheusMW   prometheusMiddleware
)

const (
	playlistReqsName    = "playlist_requests_total"
	playlistLatencyName = "playlist_request_duration_milliseconds"
	manifestReqsName    = "manifest_requests_total"
	manifestLatencyName = "manifest_request_duration_milliseconds"
	segReqsName         = "segment_requests_total"
	segLatencyName      = "segment_request_duration_milliseconds"
	service             = "ritcher"
)

// prometheusMiddleware exposes counters and latency histograms for
// playlist, manifest, and segment requests, partitioned by status code.
type prometheusMiddleware struct {
	playlistReqs    *prometheus.CounterVec
	playlistLatency *prometheus.HistogramVec
	manifestReqs    *prometheus.CounterVec
	manifestLatency *prometheus.HistogramVec
	segReqs         *prometheus.CounterVec
	segLatency      *prometheus.HistogramVec
}

func init() {
	prometheusMW.playlistReqs = newCounter(playlistReqsName,
		"Number of HLS playlist requests processed, partitioned by status code.", service)
	prometheusMW.playlistLatency = newHistogram(playlistLatencyName,
		"HLS playlist response latency.", service, defaultBuckets)
	prometheusMW.manifestReqs = newCounter(manifestReqsName,
		"Number of DASH manifest requests processed, partitioned by status code.", service)
	prometheusMW.manifestLatency = newHistogram(manifestLatencyName,
		"DASH manifest response latency.", service, defaultBuckets)
	prometheusMW.segReqs = newCounter(segReqsName,
		"Number of segment requests processed, partitioned by status code.", service)
	prometheusMW.segLatency = newHistogram(segLatencyName,
		"Segment response latency.", service, defaultBuckets)
}

// NewPrometheusMiddleware returns a new prometheus middleware handler.
func NewPrometheusMiddleware() func(next http.Handler) http.Handler {
	return prometheusMW.handler
}

func (mw prometheusMiddleware) handler(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := strconv.Itoa(ww.Status())
		latencyMS := float64(time.Since(start).Nanoseconds()) * 1e-6
		extIdx := strings.LastIndex(path, ".")
		if extIdx < 0 {
			return
		}

		switch ext := path[extIdx:]; ext {
		case ".m3u8":
			mw.playlistReqs.WithLabelValues(status).Inc()
			mw.playlistLatency.WithLabelValues(status).Observe(latencyMS)
		case ".mpd":
			mw.manifestReqs.WithLabelValues(status).Inc()
			mw.manifestLatency.WithLabelValues(status).Observe(latencyMS)
		case ".ts", ".m4s", ".mp4":
			mw.segReqs.WithLabelValues(status).Inc()
			mw.segLatency.WithLabelValues(status).Observe(latencyMS)
		}
	}
	return http.HandlerFunc(fn)
}

func newCounter(counterName, help, serviceName string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        counterName,
			Help:        help,
			ConstLabels: prometheus.Labels{"service": serviceName},
		},
		[]string{"code"},
	)
	prometheus.MustRegister(cv)
	return cv
}

func newHistogram(histogramName, help, serviceName string, buckets []float64) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        histogramName,
		Help:        help,
		ConstLabels: prometheus.Labels{"service": serviceName},
		Buckets:     buckets,
	},
		[]string{"code"},
	)
	prometheus.MustRegister(h)
	return h
}
