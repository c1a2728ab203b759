package store

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"heirloom/internal/trust/models"
	"heirloom/pkg/platform/sentinel"
)

const inMemoryCacheSize = 10_000

// InMemoryCache is used when no Redis URL is configured. It is a
// per-process LRU bounded in size; entries expire after ttl.
type InMemoryCache struct {
	entries *expirable.LRU[string, []models.Trustor]
}

func NewInMemoryCache(ttl time.Duration) *InMemoryCache {
	return &InMemoryCache{entries: expirable.NewLRU[string, []models.Trustor](inMemoryCacheSize, nil, ttl)}
}

func (c *InMemoryCache) Get(_ context.Context, address string) ([]models.Trustor, error) {
	trustors, ok := c.entries.Get(address)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]models.Trustor(nil), trustors...), nil
}

func (c *InMemoryCache) Set(_ context.Context, address string, trustors []models.Trustor) error {
	c.entries.Add(address, append([]models.Trustor(nil), trustors...))
	return nil
}

func (c *InMemoryCache) Delete(_ context.Context, address string) error {
	c.entries.Remove(address)
	return nil
}
