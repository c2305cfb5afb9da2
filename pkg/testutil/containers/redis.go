//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"healthtrack/internal/platform/config"
	redisClient "healthtrack/internal/platform/redis"
)

// ledgerKeyPattern matches every key the participation RedisStore writes.
const ledgerKeyPattern = "ptc:*"

// RedisContainer is a single-node Redis reached through the same client
// constructor the server uses, so pool and timeout overrides are exercised.
type RedisContainer struct {
	Container testcontainers.Container
	Config    config.Redis
	*redisClient.Client
}

// NewRedisContainer starts Redis. Cleanup is left to Ryuk since the Manager
// shares the container across suites.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}

	url, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("redis connection string: %v", err)
	}

	cfg := config.Default().Redis
	cfg.URL = url
	client, err := redisClient.New(ctx, cfg)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("connect to redis: %v", err)
	}

	return &RedisContainer{Container: container, Config: cfg, Client: client}
}

// ResetLedger deletes the participation keyspace between tests and leaves
// anything else in the database alone.
func (r *RedisContainer) ResetLedger(ctx context.Context) error {
	iter := r.Scan(ctx, 0, ledgerKeyPattern, 500).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.Del(ctx, keys...).Err()
}
