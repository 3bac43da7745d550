// Package cache holds Redis-backed read caches.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MarkoPoloResearchLab/bookingledger/pkg/cart"
	"github.com/MarkoPoloResearchLab/bookingledger/pkg/operation"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultCountTTL bounds how stale a cached item count may get if an invalidation is lost.
	DefaultCountTTL = time.Minute

	cartCountKeyPrefix = "cart:count:"

	errorOperationCache = "cache"
	errorSubjectCount   = "cart_count"
	errorCodeGet        = "get"
	errorCodeSet        = "set"
	errorCodeInvalidate = "invalidate"
)

// ErrInvalidConfig reports a missing client.
var ErrInvalidConfig = errors.New("invalid cache config")

// CartCountCache stores cart item counts in Redis.
type CartCountCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewCartCountCache wraps client. A non-positive ttl falls back to DefaultCountTTL.
func NewCartCountCache(client redis.Cmdable, ttl time.Duration) (*CartCountCache, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: redis client is nil", ErrInvalidConfig)
	}
	if ttl <= 0 {
		ttl = DefaultCountTTL
	}
	return &CartCountCache{client: client, ttl: ttl}, nil
}

// Get returns the cached count; ok is false on a miss.
func (cache *CartCountCache) Get(ctx context.Context, cartID string) (int64, bool, error) {
	raw, err := cache.client.Get(ctx, cartCountKey(cartID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, operation.WrapError(errorOperationCache, errorSubjectCount, errorCodeGet, err)
	}
	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, operation.WrapError(errorOperationCache, errorSubjectCount, errorCodeGet, err)
	}
	return count, true, nil
}

func (cache *CartCountCache) Set(ctx context.Context, cartID string, count int64) error {
	if err := cache.client.Set(ctx, cartCountKey(cartID), strconv.FormatInt(count, 10), cache.ttl).Err(); err != nil {
		return operation.WrapError(errorOperationCache, errorSubjectCount, errorCodeSet, err)
	}
	return nil
}

// Invalidate drops the counts of every listed cart.
func (cache *CartCountCache) Invalidate(ctx context.Context, cartIDs ...string) error {
	if len(cartIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(cartIDs))
	for _, cartID := range cartIDs {
		keys = append(keys, cartCountKey(cartID))
	}
	if err := cache.client.Del(ctx, keys...).Err(); err != nil {
		return operation.WrapError(errorOperationCache, errorSubjectCount, errorCodeInvalidate, err)
	}
	return nil
}

func cartCountKey(cartID string) string {
	return cartCountKeyPrefix + cartID
}

// NewRedisClient parses a redis:// URL and verifies the server answers.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

var _ cart.CountCache = (*CartCountCache)(nil)
