// Package store caches the reverse trust index: normalized contact email →
// the trustors that designated it.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"heirloom/internal/trust/models"
	"heirloom/pkg/platform/sentinel"
)

const trustorsKeyPrefix = "trust:trustors:"

// RedisCache stores each email's trustor list as one JSON value with a TTL.
// An empty list is cached too, so unknown emails do not hit the database on
// every lookup.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get returns sentinel.ErrNotFound on a cache miss.
func (c *RedisCache) Get(ctx context.Context, address string) ([]models.Trustor, error) {
	raw, err := c.client.Get(ctx, trustorsKeyPrefix+address).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trustors: %w", err)
	}
	var trustors []models.Trustor
	if err := json.Unmarshal(raw, &trustors); err != nil {
		return nil, fmt.Errorf("decode trustors: %w", err)
	}
	return trustors, nil
}

func (c *RedisCache) Set(ctx context.Context, address string, trustors []models.Trustor) error {
	if trustors == nil {
		trustors = []models.Trustor{}
	}
	raw, err := json.Marshal(trustors)
	if err != nil {
		return fmt.Errorf("encode trustors: %w", err)
	}
	return c.client.Set(ctx, trustorsKeyPrefix+address, raw, c.ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, address string) error {
	return c.client.Del(ctx, trustorsKeyPrefix+address).Err()
}
