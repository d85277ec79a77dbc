package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/leafcart/storefront-api/internal/ports"
)

const rateLimitKeyPrefix = "rate_limit:"

// RateLimitStore implements the bucketed counter backend for the rate
// limiter on Redis INCR. The TTL is applied on the first increment of a
// bucket so counters disappear one window after their bucket closes.
type RateLimitStore struct {
	client redis.UniversalClient
}

// NewRateLimitStore creates a Redis-backed rate-limit counter store.
func NewRateLimitStore(client redis.UniversalClient) *RateLimitStore {
	return &RateLimitStore{client: client}
}

var _ ports.RateLimitStore = (*RateLimitStore)(nil)

func (s *RateLimitStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	if key == "" {
		return 0, fmt.Errorf("rate limit key cannot be empty")
	}
	if window <= 0 {
		window = time.Minute
	}

	fullKey := rateLimitKeyPrefix + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, fullKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}

	count := incr.Val()
	if count == 1 {
		if err := s.client.Expire(ctx, fullKey, window).Err(); err != nil {
			return count, fmt.Errorf("redis expire: %w", err)
		}
	}
	return count, nil
}

// SweepMissingTTL repairs counter keys left without a TTL, which can
// happen when a process dies between the first INCR and the EXPIRE.
func (s *RateLimitStore) SweepMissingTTL(ctx context.Context, window time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	if window <= 0 {
		window = time.Minute
	}

	var repaired int64
	iter := s.client.Scan(ctx, 0, rateLimitKeyPrefix+"*", int64(batchSize)).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ttl, err := s.client.TTL(ctx, key).Result()
		if err != nil {
			return repaired, fmt.Errorf("redis ttl: %w", err)
		}
		// -1 means the key exists with no expiry.
		if ttl == -1 {
			if err := s.client.Expire(ctx, key, window).Err(); err != nil {
				return repaired, fmt.Errorf("redis expire: %w", err)
			}
			repaired++
		}
	}
	if err := iter.Err(); err != nil {
		return repaired, fmt.Errorf("redis scan: %w", err)
	}
	return repaired, nil
}
