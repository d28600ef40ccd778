package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/config"
)

// Redis wraps the go-redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis using the provided configuration.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

// TokenCache keeps the CRM access token in Redis so a restarted process can
// reuse it instead of refreshing immediately.
type TokenCache struct {
	client redis.Cmdable
	key    string
}

// NewTokenCache stores the token under key.
func NewTokenCache(client redis.Cmdable, key string) *TokenCache {
	return &TokenCache{client: client, key: key}
}

// Load returns the cached token, or "" when nothing is cached.
func (c *TokenCache) Load(ctx context.Context) (string, error) {
	token, err := c.client.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

// ErrNoTokenTTL is returned by Save when no positive expiry is given.
var ErrNoTokenTTL = errors.New("token cache requires a positive ttl")

// Save caches token for ttl. Tokens are never stored without an expiry.
func (c *TokenCache) Save(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrNoTokenTTL
	}
	return c.client.Set(ctx, c.key, token, ttl).Err()
}
