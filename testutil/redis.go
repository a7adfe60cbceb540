package testutil

import (
	"context"
	"testing"

	"github.com/go-redis/redis/v8"
)

// RedisAddrEnv names the variable holding the Redis address used by
// integration tests.
const RedisAddrEnv = "TEST_REDIS_ADDR"

// redisTestDB keeps integration tests away from the default database.
const redisTestDB = 15

// NewRedisClient connects to TEST_REDIS_ADDR, flushes the test database and
// closes the client when the test finishes. Skips the test if the variable is
// unset.
func NewRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: requireEnv(t, RedisAddrEnv), DB: redisTestDB})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("testutil.NewRedisClient: ping: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("testutil.NewRedisClient: flush: %v", err)
	}
	return client
}
