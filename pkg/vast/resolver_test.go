// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

package vast

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inlineVAST = `<?xml version="1.0" encoding="UTF-8"?>
<VAST version="4.0">
  <Ad id="ad-1">
    <InLine>
      <AdSystem>TestAdServer</AdSystem>
      <AdTitle>Test Ad</AdTitle>
      <Impression><![CDATA[https://track.example.com/impression]]></Impression>
      <Error><![CDATA[https://track.example.com/error?code=[ERRORCODE]]]></Error>
      <Creatives>
        <Creative id="c1">
          <Linear>
            <Duration>00:00:15</Duration>
            <TrackingEvents>
              <Tracking event="start"><![CDATA[https://track.example.com/start]]></Tracking>
              <Tracking event="midpoint"><![CDATA[https://track.example.com/mid]]></Tracking>
              <Tracking event="complete"><![CDATA[https://track.example.com/complete]]></Tracking>
            </TrackingEvents>
            <MediaFiles>
              <MediaFile delivery="streaming" type="application/vnd.apple.mpegurl" width="1280" height="720"><![CDATA[https://ads.example.com/creative.m3u8]]></MediaFile>
              <MediaFile delivery="progressive" type="video/mp4" width="1280" height="720"><![CDATA[https://ads.example.com/creative.mp4]]></MediaFile>
            </MediaFiles>
          </Linear>
        </Creative>
      </Creatives>
    </InLine>
  </Ad>
</VAST>`

func wrapperVAST(nextURL string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<VAST version="4.0">
  <Ad id="wrapper-1">
    <Wrapper>
      <AdSystem>WrapperServer</AdSystem>
      <Impression><![CDATA[https://track.example.com/wrapper-impression]]></Impression>
      <VASTAdTagURI><![CDATA[%s]]></VASTAdTagURI>
    </Wrapper>
  </Ad>
</VAST>`, nextURL)
}

const emptyVAST = `<?xml version="1.0" encoding="UTF-8"?>
<VAST version="4.0">
  <Error><![CDATA[https://track.example.com/noad?code=[ERRORCODE]]]></Error>
</VAST>`

func TestResolveInline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sess-1", r.URL.Query().Get("session"))
		_, _ = w.Write([]byte(inlineVAST))
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, srv.Client())
	creatives := r.Resolve(context.Background(), "sess-1")

	require.Len(t, creatives, 1)
	c := creatives[0]
	assert.Equal(t, "https://ads.example.com/creative.mp4", c.MediaURL,
		"progressive MP4 should be preferred over HLS")
	assert.InDelta(t, 15.0, c.DurationS, 0.001)
	assert.Equal(t, []string{"https://track.example.com/impression"}, c.ImpressionURLs)
	assert.Len(t, c.TrackingEvents, 3)
	assert.Equal(t, "https://track.example.com/error?code=[ERRORCODE]", c.ErrorURL)
}

func TestResolveWrapperChain(t *testing.T) {
	inline := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(inlineVAST))
	}))
	defer inline.Close()

	wrapper := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(wrapperVAST(inline.URL)))
	}))
	defer wrapper.Close()

	r := NewResolver(wrapper.URL, wrapper.Client())
	creatives := r.Resolve(context.Background(), "sess-2")

	require.Len(t, creatives, 1)
	assert.Equal(t, "https://ads.example.com/creative.mp4", creatives[0].MediaURL)
	// Wrapper impressions are appended to the wrapped creative's.
	assert.Contains(t, creatives[0].ImpressionURLs, "https://track.example.com/wrapper-impression")
	assert.Contains(t, creatives[0].ImpressionURLs, "https://track.example.com/impression")
}

func TestResolveWrapperCycle(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Points back at itself, stripped of query so the URL repeats.
		_, _ = w.Write([]byte(wrapperVAST(srv.URL + "/loop")))
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, srv.Client())
	creatives := r.Resolve(context.Background(), "sess-3")
	assert.Empty(t, creatives, "cycle must terminate with no creatives")
}

func TestResolveDepthLimit(t *testing.T) {
	var hops atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hops.Add(1)
		// Every hop points to a fresh URL so cycle detection never trips.
		_, _ = w.Write([]byte(wrapperVAST(fmt.Sprintf("%s/hop/%d", srv.URL, n))))
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, srv.Client())
	r.MaxDepth = 3
	creatives := r.Resolve(context.Background(), "sess-4")

	assert.Empty(t, creatives)
	assert.LessOrEqual(t, hops.Load(), int32(r.MaxDepth+1), "walk must stop at the depth limit")
}

func TestResolveEmptyResponseFiresNoAdError(t *testing.T) {
	errorFired := make(chan string, 1)
	track := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errorFired <- r.URL.RawQuery
	}))
	defer track.Close()

	vastSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := fmt.Sprintf(`<?xml version="1.0"?><VAST version="4.0"><Error><![CDATA[%s/err?code=[ERRORCODE]]]></Error></VAST>`, track.URL)
		_, _ = w.Write([]byte(body))
	}))
	defer vastSrv.Close()

	r := NewResolver(vastSrv.URL, http.DefaultClient)
	creatives := r.Resolve(context.Background(), "sess-5")
	assert.Empty(t, creatives)

	query := <-errorFired
	assert.Equal(t, "code=303", query, "[ERRORCODE] should expand to 303 for no-ads")
}

func TestResolveUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, srv.Client())
	creatives := r.Resolve(context.Background(), "sess-6")
	assert.Empty(t, creatives)
}
