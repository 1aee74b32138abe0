package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// nextScript initializes the counter to the start value on first use and
// increments it otherwise, atomically on the Redis server.
var nextScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
  redis.call('SET', KEYS[1], ARGV[1])
  return tonumber(ARGV[1])
end
return redis.call('INCR', KEYS[1])
`)

type RedisCounter struct {
	client redis.Scripter
	prefix string
	start  int64
}

func NewRedisCounter(client redis.Scripter, prefix string, start int64) *RedisCounter {
	if prefix == "" {
		prefix = "counters:"
	}
	return &RedisCounter{client: client, prefix: prefix, start: start}
}

func (c *RedisCounter) Next(ctx context.Context, key string) (int64, error) {
	n, err := nextScript.Run(ctx, c.client, []string{c.prefix + key}, c.start).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrCounterUnavailable, key, err)
	}
	return n, nil
}
