package cache

import (
	"context"
	"cycle-nav-service/internal/domain"
	"cycle-nav-service/internal/platform/obs"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const segmentKeyPrefix = "segments:"

// RedisSegmentCache stores resolved route segments in Redis with a TTL.
type RedisSegmentCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedisSegmentCache(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisSegmentCache {
	return &RedisSegmentCache{client: client, ttl: ttl, log: log}
}

func (r *RedisSegmentCache) GetSegments(ctx context.Context, key string) (_ domain.RouteSegments, _ bool, err error) {
	defer obs.Time(ctx, r.log, "segments.cache.Get")(&err)

	b, err := r.client.Get(ctx, segmentKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get segment cache: %w", err)
	}

	segs, err := decodeSegments(b)
	if err != nil {
		return nil, false, fmt.Errorf("get segment cache key=%q: %w", key, err)
	}
	return segs, true, nil
}

func (r *RedisSegmentCache) PutSegments(ctx context.Context, key string, segs domain.RouteSegments) (err error) {
	defer obs.Time(ctx, r.log, "segments.cache.Put")(&err)

	b, err := encodeSegments(segs)
	if err != nil {
		return fmt.Errorf("put segment cache: encode: %w", err)
	}
	if err := r.client.Set(ctx, segmentKeyPrefix+key, b, r.ttl).Err(); err != nil {
		return fmt.Errorf("put segment cache: %w", err)
	}
	return nil
}
