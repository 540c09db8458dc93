package httpx

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type FetchFunc[T any] func(ctx context.Context) (T, error)

const cacheSetTimeout = 5 * time.Second

// ttlJitter spreads expirations by up to ±15s so report keys do not
// all lapse together. Short TTLs are clamped so the jitter can never
// produce a non-positive expiration.
func ttlJitter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttl
	}
	jittered := ttl + time.Duration(rand.Intn(30)-15)*time.Second
	if jittered < time.Second {
		return time.Second
	}
	return jittered
}

// findAndCache is a read-through cache with singleflight collapsing.
// A nil Cacher disables caching and calls fn directly.
func findAndCache[T any](
	ctx context.Context,
	c Cacher,
	sf *singleflight.Group,
	key string,
	ttl time.Duration,
	logger *zap.Logger,
	fn FetchFunc[T],
) (T, error) {
	var zero T
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		return fn(ctx)
	}

	var cached T
	err := c.Get(ctx, key, &cached)
	switch {
	case err == nil:
		logger.Debug("cache hit", zap.String("key", key))
		return cached, nil
	case errors.Is(err, redis.Nil):
		logger.Debug("cache miss", zap.String("key", key))
	default:
		logger.Warn("cache get error, treating as miss", zap.String("key", key), zap.Error(err))
	}

	v, err, shared := sf.Do(key, func() (any, error) {
		value, err := fn(ctx)
		if err != nil {
			return nil, err
		}

		go func() {
			setCtx, cancel := context.WithTimeout(context.Background(), cacheSetTimeout)
			defer cancel()
			if err := c.Set(setCtx, key, value, ttlJitter(ttl)); err != nil {
				logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
			}
		}()

		return value, nil
	})
	if err != nil {
		return zero, err
	}

	value, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache type mismatch for key %q", key)
	}
	if shared {
		logger.Debug("singleflight shared result", zap.String("key", key))
	}
	return value, nil
}
