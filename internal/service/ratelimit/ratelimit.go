package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultMaxFailures = 5
	defaultWindow      = 15 * time.Minute
	defaultKeyPrefix   = "habitus:login-failures:"
)

// Fixed window counter of failed attempts per key (client ip usually)
type Config struct {
	// Attempts allowed within the window, the next one is blocked
	MaxFailures int

	// Counter lifetime, starts with the first failure
	Window time.Duration

	KeyPrefix string
}

type RedisLimiter struct {
	client      redis.Cmdable
	maxFailures int64
	window      time.Duration
	prefix      string
}

func NewRedis(client redis.Cmdable, cfg Config) *RedisLimiter {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = defaultMaxFailures
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultKeyPrefix
	}

	return &RedisLimiter{
		client:      client,
		maxFailures: int64(cfg.MaxFailures),
		window:      cfg.Window,
		prefix:      cfg.KeyPrefix,
	}
}

// Connect to redis and make sure it is reachable
func Connect(ctx context.Context, addr string, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis is not reachable. Err: %w", err)
	}

	return client, nil
}

// Report whether key reached the limit and how long it stays blocked
func (l *RedisLimiter) Blocked(ctx context.Context, key string) (bool, time.Duration, error) {
	var get *redis.StringCmd
	var ttl *redis.DurationCmd

	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.Get(ctx, l.prefix+key)
		ttl = pipe.TTL(ctx, l.prefix+key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, 0, fmt.Errorf("redis error: %w", err)
	}

	count, err := get.Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return false, 0, nil
	case err != nil:
		return false, 0, fmt.Errorf("redis error: %w", err)
	case count < l.maxFailures:
		return false, 0, nil
	}

	retryAfter := ttl.Val()
	if retryAfter <= 0 {
		retryAfter = l.window
	}
	return true, retryAfter, nil
}

// Count failed attempt, the window starts with the first one
func (l *RedisLimiter) RegisterFailure(ctx context.Context, key string) error {
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, l.prefix+key)
		pipe.ExpireNX(ctx, l.prefix+key, l.window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

// Failed attempts counter
type Limiter interface {
	Blocked(ctx context.Context, key string) (bool, time.Duration, error)
	RegisterFailure(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// Limiter that never blocks, used when redis is not configured
type Nop struct{}

func (Nop) Blocked(context.Context, string) (bool, time.Duration, error) { return false, 0, nil }
func (Nop) RegisterFailure(context.Context, string) error               { return nil }
func (Nop) Reset(context.Context, string) error                         { return nil }
