package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 24 * time.Hour

func NewRedisCache(client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

// Get reads the view and pushes its expiry forward by the full TTL.
// An entry that does not decode is deleted and reported as a miss.
func (r *RedisCache) Get(ctx context.Context, owner domain.OwnerKey) (domain.CartView, error) {
	key := cacheKey(owner)

	data, err := r.client.GetEx(ctx, key, r.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis getex failed: %w", err)
	}

	var view domain.CartView
	if err2 := json.Unmarshal(data, &view); err2 != nil {
		r.logger.WarnContext(ctx, "discarding corrupt cart cache entry", "key", key, "error", err2)
		if errDel := r.client.Del(ctx, key).Err(); errDel != nil {
			return nil, fmt.Errorf("redis delete corrupt entry failed: %w", errDel)
		}
		return nil, ErrCacheMiss
	}
	if len(view) == 0 {
		return nil, ErrCacheMiss
	}

	return view, nil
}

// Set stores the view. An empty view removes the entry instead.
func (r *RedisCache) Set(ctx context.Context, owner domain.OwnerKey, view domain.CartView) error {
	if len(view) == 0 {
		return r.Delete(ctx, owner)
	}

	key := cacheKey(owner)
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal cart view failed: %w", err)
	}

	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, owner domain.OwnerKey) error {
	if err := r.client.Del(ctx, cacheKey(owner)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(owner domain.OwnerKey) string {
	return fmt.Sprintf("cart:%s", owner)
}
