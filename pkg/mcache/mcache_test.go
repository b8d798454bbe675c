// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

package mcache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHitWithinTTL(t *testing.T) {
	c := New(0)
	c.Insert("https://origin.example.com/live.m3u8", "body")

	body, ok := c.Get("https://origin.example.com/live.m3u8")
	assert.True(t, ok)
	assert.Equal(t, "body", body)
}

func TestMissForUnknownURL(t *testing.T) {
	c := New(0)
	_, ok := c.Get("https://unknown.example.com/live.m3u8")
	assert.False(t, ok)
}

func TestMissAfterTTL(t *testing.T) {
	c := New(time.Millisecond)
	c.Insert("https://origin.example.com/live.m3u8", "body")

	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("https://origin.example.com/live.m3u8")
	assert.False(t, ok, "entry should be stale after TTL")
}

func TestOverwriteRefreshesEntry(t *testing.T) {
	c := New(0)
	c.Insert("https://origin.example.com/live.m3u8", "old")
	c.Insert("https://origin.example.com/live.m3u8", "new")

	body, ok := c.Get("https://origin.example.com/live.m3u8")
	assert.True(t, ok)
	assert.Equal(t, "new", body)
}

func TestConcurrentAccess(t *testing.T) {
	c := New(time.Second)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			url := fmt.Sprintf("https://origin.example.com/%d.m3u8", n%4)
			for j := 0; j < 100; j++ {
				c.Insert(url, "body")
				_, _ = c.Get(url)
			}
		}(i)
	}
	wg.Wait()
}
