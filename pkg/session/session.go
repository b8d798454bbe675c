// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

// Package session tracks viewer sessions for the stitcher.
//
// A session binds an opaque session ID to the origin URL captured when
// the session was first seen. Two backends share the same interface:
// an in-memory map with a TTL sweep, and a Valkey/Redis store that
// relies on native key expiry. The backend is chosen at startup and
// never switched.
package session

import (
	"context"
	"time"
)

// Session is the record stored for each active viewer session.
type Session struct {
	SessionID    string    `json:"session_id"`
	OriginURL    string    `json:"origin_url"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
}

// Store is the session store interface shared by all backends.
type Store interface {
	// GetOrCreate returns the existing session for id, or creates one
	// with the given origin URL. Idempotent — an existing session's
	// origin URL is never overwritten.
	GetOrCreate(ctx context.Context, id, originURL string) Session

	// Touch extends the session's liveness. The in-memory backend
	// updates last_accessed; the Valkey backend refreshes the key TTL
	// with a single O(1) EXPIRE (the stored last_accessed field is
	// diagnostic only).
	Touch(ctx context.Context, id string)

	// Get returns the session for id if present.
	Get(ctx context.Context, id string) (Session, bool)

	// Remove deletes the session and returns it if it was present.
	Remove(ctx context.Context, id string) (Session, bool)

	// CleanupExpired removes stale entries. No-op for backends with
	// native TTL.
	CleanupExpired(ctx context.Context)

	// Count returns the number of active sessions.
	Count(ctx context.Context) int
}
