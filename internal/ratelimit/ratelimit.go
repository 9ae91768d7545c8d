// Package ratelimit implements the rate-limit response reporter: an
// advisory, non-blocking enrichment derived from a Redis token bucket.
package ratelimit

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Scope is where a rate-limit entry applies.
type Scope string

const (
	ScopeGlobal   Scope = "global"
	ScopeService  Scope = "service"
	ScopeFunction Scope = "function"
	ScopeUser     Scope = "user"
)

// nearLimitThreshold is the default fraction of a limit at which a warning
// is attached.
const nearLimitThreshold = 0.9

// Window describes the bucket's refill window.
type Window struct {
	Value int
	Unit  string
}

// Entry is the response-side rate-limit extension payload.
type Entry struct {
	Limit     int
	Used      int
	Remaining int
	Window    Window
	ResetsIn  time.Duration
	Scope     Scope
	Warning   string
}

// tokenBucketScript atomically refills and consumes a token bucket keyed
// by the caller's key alone (the scope is not part of it): HMGET the stored tokens/last_refill, refill by
// elapsed*rate capped at burst size, consume n tokens if available,
// persist, and re-arm the key's TTL.
var tokenBucketScript = redis.NewScript(`
local bucket = redis.call('HMGET', KEYS[1], 'tokens', 'last_refill')
local tokens = tonumber(bucket[1]) or tonumber(ARGV[1])
local last = tonumber(bucket[2]) or tonumber(ARGV[3])

local elapsed = tonumber(ARGV[3]) - last
tokens = math.min(tonumber(ARGV[1]), tokens + elapsed * tonumber(ARGV[2]))

local allowed = 0
if tokens >= tonumber(ARGV[4]) then
    tokens = tokens - tonumber(ARGV[4])
    allowed = 1
end

redis.call('HMSET', KEYS[1], 'tokens', tokens, 'last_refill', ARGV[3])
redis.call('EXPIRE', KEYS[1], math.ceil(tonumber(ARGV[1]) / tonumber(ARGV[2])) + 10)

return {allowed, math.floor(tokens)}
`)

// BucketConfig is a scope's token-bucket shape.
type BucketConfig struct {
	Limit             int
	RequestsPerSecond float64
	Window            Window
}

// Reporter computes rate-limit entries from a Redis-backed token bucket.
// Reporters never block the pipeline and are silently skipped on failure:
// callers should treat a non-nil error from Report as "omit this
// extension", not as a request failure.
type Reporter struct {
	client *redis.Client
	config BucketConfig
}

// NewReporter constructs a Reporter bound to a Redis client and bucket
// configuration for one scope.
func NewReporter(client *redis.Client, cfg BucketConfig) *Reporter {
	return &Reporter{client: client, config: cfg}
}

// Report consumes n tokens (normally 1, for the current request) from the
// bucket identified by key and returns the resulting entry.
func (r *Reporter) Report(ctx context.Context, scope Scope, key string, n int) (Entry, error) {
	now := float64(time.Now().Unix())
	res, err := tokenBucketScript.Run(ctx, r.client, []string{key},
		r.config.Limit, r.config.RequestsPerSecond, now, n,
	).Slice()
	if err != nil {
		return Entry{}, err
	}

	remaining := 0
	if len(res) == 2 {
		if v, ok := res[1].(int64); ok {
			remaining = int(v)
		}
	}
	used := r.config.Limit - remaining
	if used < 0 {
		used = 0
	}

	entry := Entry{
		Limit:     r.config.Limit,
		Used:      used,
		Remaining: maxInt(0, remaining),
		Window:    r.config.Window,
		ResetsIn:  refillDuration(r.config),
		Scope:     scope,
	}
	if r.config.Limit > 0 && float64(used)/float64(r.config.Limit) >= nearLimitThreshold {
		entry.Warning = "approaching rate limit"
	}
	return entry, nil
}

func refillDuration(cfg BucketConfig) time.Duration {
	if cfg.RequestsPerSecond <= 0 {
		return 0
	}
	secs := float64(cfg.Limit) / cfg.RequestsPerSecond
	return time.Duration(secs * float64(time.Second))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
