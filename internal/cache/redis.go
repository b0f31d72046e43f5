package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oggyb/match-relay/internal/config"
	"github.com/oggyb/match-relay/internal/metrics"
)

// AdmirerCountTTL bounds how long a cached admirer count may be stale.
const AdmirerCountTTL = time.Hour

type RedisCache struct {
	Client *redis.Client
}

type metricsHook struct{}

func (h metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			metrics.RedisErrors.WithLabelValues(cmd.Name()).Inc()
		}
		return err
	}
}

func (h metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			metrics.RedisErrors.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// NewRedisCache initializes Redis client from config.
// Addr may be host:port or a redis:// URL; Password/DB are optional.
func NewRedisCache(cfg *config.Config) (*RedisCache, error) {
	var opts *redis.Options
	if strings.Contains(cfg.Redis.Addr, "://") {
		parsed, err := redis.ParseURL(cfg.Redis.Addr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: cfg.Redis.Addr}
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return NewFromClient(redis.NewClient(opts)), nil
}

// NewFromClient wraps an existing client, e.g. one pointed at miniredis.
func NewFromClient(client *redis.Client) *RedisCache {
	client.AddHook(metricsHook{})
	return &RedisCache{Client: client}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, keys ...string) error {
	return c.Client.Del(ctx, keys...).Err()
}

// KeyForAdmirerCount generates the Redis key for a user's admirer count.
func (c *RedisCache) KeyForAdmirerCount(userID uint64) string {
	return fmt.Sprintf("admirers:count:%d", userID)
}

func (c *RedisCache) SetAdmirerCount(ctx context.Context, userID uint64, count int64) error {
	return c.Client.Set(ctx, c.KeyForAdmirerCount(userID), count, AdmirerCountTTL).Err()
}

// GetAdmirerCount returns the cached count; ok is false on a cache miss.
func (c *RedisCache) GetAdmirerCount(ctx context.Context, userID uint64) (count int64, ok bool, err error) {
	key := c.KeyForAdmirerCount(userID)
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	// refresh TTL on access
	_ = c.Client.Expire(ctx, key, AdmirerCountTTL).Err()
	return n, true, nil
}

// InvalidateAdmirerCounts drops cached counts for the given users.
func (c *RedisCache) InvalidateAdmirerCounts(ctx context.Context, userIDs ...uint64) error {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, c.KeyForAdmirerCount(id))
	}
	if len(keys) == 0 {
		return nil
	}
	return c.Del(ctx, keys...)
}
