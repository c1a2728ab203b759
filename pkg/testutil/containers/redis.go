//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// RedisContainer backs the trust index cache in integration suites. It is
// shared through Manager, so no per-test cleanup is registered.
type RedisContainer struct {
	Container testcontainers.Container
	URL       string
	Client    *redis.Client
}

func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7.4-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	abort := func(step string, err error) {
		t.Helper()
		_ = container.Terminate(ctx)
		t.Fatalf("%s: %v", step, err)
	}

	rc := &RedisContainer{Container: container}
	if rc.URL, err = container.ConnectionString(ctx); err != nil {
		abort("redis connection string", err)
	}
	opts, err := redis.ParseURL(rc.URL)
	if err != nil {
		abort("parse redis url", err)
	}
	rc.Client = redis.NewClient(opts)
	if err := rc.Client.Ping(ctx).Err(); err != nil {
		_ = rc.Client.Close()
		abort("ping redis", err)
	}
	return rc
}

// Reset empties the keyspace so each test starts from a cold cache.
func (r *RedisContainer) Reset(t *testing.T) {
	t.Helper()
	if err := r.Client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
}
