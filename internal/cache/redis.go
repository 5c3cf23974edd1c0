// Package cache wraps go-redis for the JWT blacklist lookups of spec §5(a);
// the JWKS active-key and public-JWKS caches are held in memory by the JWKS
// Service and do not use this package. Grounded on the teacher's
// third_party/cache/redis.go (redis.NewClient + Ping probe on construction,
// logx on connect/failure), generalized from a bare connection holder into
// the small SetBlacklisted/IsBlacklisted surface the JWKS Service needs for
// a fast blacklist check.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zeromicro/go-zero/core/logx"
)

// Config names a Redis endpoint, mirroring the teacher's RedisConfig.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisCache is a thin wrapper other packages hold as an optional
// collaborator (e.g. jwks.Service.blacklistCache) rather than a global.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache dials Redis and pings it once before returning, exactly as
// the teacher's NewRedisConnection does.
func NewRedisCache(cfg Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		logx.Errorf("cache: failed to connect to redis: %v", err)
		return nil, fmt.Errorf("cache: failed to connect to redis: %w", err)
	}

	logx.Info("cache: connected to redis")
	return &RedisCache{client: client}, nil
}

// SetBlacklisted marks a token hash blacklisted with a TTL, so repeated
// verifyJWT calls can skip the ORM lookup (spec §5(a): process-wide,
// read-mostly caches).
func (c *RedisCache) SetBlacklisted(ctx context.Context, tokenHash string, ttl time.Duration) error {
	return c.client.Set(ctx, blacklistKey(tokenHash), "1", ttl).Err()
}

// IsBlacklisted reports whether tokenHash is cached as blacklisted. A miss
// (key absent) is not an error - callers fall back to the ORM as the
// source of truth.
func (c *RedisCache) IsBlacklisted(ctx context.Context, tokenHash string) (bool, error) {
	n, err := c.client.Exists(ctx, blacklistKey(tokenHash)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func blacklistKey(tokenHash string) string {
	return "authcore:blacklist:" + tokenHash
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
