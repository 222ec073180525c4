package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront-sync/internal/domain"
)

const keyPrefix = "storefront:cache:"

// SnapshotStore implements store.Snapshotter using Redis.
type SnapshotStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewSnapshotStore creates a Redis-backed snapshot store. Keys expire after ttl.
func NewSnapshotStore(client redis.UniversalClient, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{
		client: client,
		ttl:    ttl,
	}
}

func key(session, resource string) string {
	return keyPrefix + session + ":" + resource
}

// Load returns the persisted entry, or false when none exists.
func (s *SnapshotStore) Load(ctx context.Context, session, resource string) (domain.CacheEntry, bool, error) {
	data, err := s.client.Get(ctx, key(session, resource)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.CacheEntry{}, false, nil
		}
		return domain.CacheEntry{}, false, fmt.Errorf("redis get snapshot: %w", err)
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return domain.CacheEntry{}, false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return entry, true, nil
}

// Save persists entry with the configured TTL.
func (s *SnapshotStore) Save(ctx context.Context, session, resource string, entry domain.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := s.client.Set(ctx, key(session, resource), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set snapshot: %w", err)
	}
	return nil
}

// Delete removes the given resources of session, or all of them when none
// are named.
func (s *SnapshotStore) Delete(ctx context.Context, session string, resources ...string) error {
	keys := make([]string, 0, len(resources))
	for _, r := range resources {
		keys = append(keys, key(session, r))
	}

	if len(keys) == 0 {
		iter := s.client.Scan(ctx, 0, keyPrefix+session+":*", 100).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("redis scan snapshots: %w", err)
		}
		if len(keys) == 0 {
			return nil
		}
	}

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del snapshots: %w", err)
	}
	return nil
}
