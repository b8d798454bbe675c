// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ritcher:session"

// scanBatchSize bounds each SCAN batch so Count never blocks the server.
const scanBatchSize = 100

// ValkeyStore is a Valkey/Redis-backed session store. Key expiry is
// native: sessions disappear when their TTL elapses without a Touch.
type ValkeyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewValkeyStore connects to the Valkey server at url (redis:// URL)
// and verifies the connection with a PING.
func NewValkeyStore(ctx context.Context, url string, ttl time.Duration) (*ValkeyStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	slog.Info("connected to Valkey", "url", url)
	return &ValkeyStore{client: client, ttl: ttl}, nil
}

// newValkeyStoreFromClient is used by tests to inject a miniredis-backed client.
func newValkeyStoreFromClient(client *redis.Client, ttl time.Duration) *ValkeyStore {
	return &ValkeyStore{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return keyPrefix + ":" + id
}

func (s *ValkeyStore) GetOrCreate(ctx context.Context, id, originURL string) Session {
	key := sessionKey(id)
	if raw, err := s.client.Get(ctx, key).Result(); err == nil {
		var sess Session
		if err := json.Unmarshal([]byte(raw), &sess); err == nil {
			return sess
		}
	} else if !errors.Is(err, redis.Nil) {
		slog.Error("Valkey GET failed in GetOrCreate", "err", err)
	}

	now := time.Now()
	sess := Session{
		SessionID:    id,
		OriginURL:    originURL,
		CreatedAt:    now,
		LastAccessed: now,
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		slog.Error("could not marshal session", "err", err)
		return sess
	}
	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		slog.Error("failed to store session in Valkey", "err", err)
	}
	return sess
}

// Touch refreshes the key TTL with a single O(1) EXPIRE instead of
// GET, decode, modify, encode, SET. The stored last_accessed field is
// not rewritten; the key TTL is what reflects session liveness.
func (s *ValkeyStore) Touch(ctx context.Context, id string) {
	if err := s.client.Expire(ctx, sessionKey(id), s.ttl).Err(); err != nil {
		slog.Error("Valkey EXPIRE failed in Touch", "err", err)
	}
}

func (s *ValkeyStore) Get(ctx context.Context, id string) (Session, bool) {
	raw, err := s.client.Get(ctx, sessionKey(id)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Error("Valkey GET failed", "err", err)
		}
		return Session{}, false
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return Session{}, false
	}
	return sess, true
}

func (s *ValkeyStore) Remove(ctx context.Context, id string) (Session, bool) {
	key := sessionKey(id)
	raw, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Error("Valkey GET failed in Remove", "err", err)
		}
		return Session{}, false
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		slog.Error("Valkey DEL failed in Remove", "err", err)
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return Session{}, false
	}
	return sess, true
}

// CleanupExpired is a no-op — Valkey expires keys natively.
func (s *ValkeyStore) CleanupExpired(_ context.Context) {}

// Count iterates the keyspace with cursor-based SCAN in bounded
// batches. KEYS would block the server and is never used.
func (s *ValkeyStore) Count(ctx context.Context) int {
	var cursor uint64
	count := 0
	for {
		keys, next, err := s.client.Scan(ctx, cursor, keyPrefix+":*", scanBatchSize).Result()
		if err != nil {
			slog.Error("Valkey SCAN failed in Count", "err", err)
			return 0
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count
		}
	}
}
