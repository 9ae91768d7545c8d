package kvstore

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// casScript atomically compares-and-swaps a key's value: read current,
// branch, write, all inside one script so no other client can observe an
// intermediate state.
// KEYS[1] = key, ARGV[1] = old value ("" means "must be absent"),
// ARGV[2] = new value, ARGV[3] = ttl seconds (0 = no expiry).
// Returns 1 on success, 0 on mismatch.
var casScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if ARGV[1] == '' then
    if current then
        return 0
    end
else
    if current ~= ARGV[1] then
        return 0
    end
end
redis.call('SET', KEYS[1], ARGV[2])
if tonumber(ARGV[3]) > 0 then
    redis.call('EXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

// Redis is a Store implementation backed by a Redis client.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an existing Redis client as a Store.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) CompareAndSwap(ctx context.Context, key, oldValue, newValue string, ttl time.Duration) error {
	res, err := casScript.Run(ctx, r.client, []string{key}, oldValue, newValue, int64(ttl/time.Second)).Int()
	if err != nil {
		return err
	}
	if res == 0 {
		return ErrCASMismatch
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *Redis) DeletePrefix(ctx context.Context, prefix string) error {
	iter := r.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
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
	return r.client.Del(ctx, keys...).Err()
}

var _ Store = (*Redis)(nil)
