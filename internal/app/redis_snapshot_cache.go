package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSnapshotCache stores the dashboard snapshot as JSON under one key.
type RedisSnapshotCache struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewRedisSnapshotCache creates a cache. An empty key uses the default key.
func NewRedisSnapshotCache(client redis.UniversalClient, key string, ttl time.Duration) *RedisSnapshotCache {
	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		trimmedKey = "admin:dashboard:snapshot"
	}
	return &RedisSnapshotCache{client: client, key: trimmedKey, ttl: ttl}
}

// Save overwrites the cached snapshot.
func (c *RedisSnapshotCache) Save(ctx context.Context, snapshot DashboardSnapshot) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key, payload, c.ttl).Err()
}

// Load returns nil, nil when nothing is cached.
func (c *RedisSnapshotCache) Load(ctx context.Context) (*DashboardSnapshot, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	payload, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snapshot DashboardSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}
