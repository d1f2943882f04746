package ratewindow

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisWindow is the Redis-backed RateWindow, for deployments where
// perimeter limits must coordinate across instances. Events live in a
// sorted set scored by timestamp; block state is a keyed TTL value.
type RedisWindow struct {
	client    *redis.Client
	window    time.Duration
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisWindow creates a Redis-backed window
func NewRedisWindow(client *redis.Client, window time.Duration, keyPrefix string, logger *zap.Logger) *RedisWindow {
	if keyPrefix == "" {
		keyPrefix = "riskwindow"
	}
	return &RedisWindow{
		client:    client,
		window:    window,
		keyPrefix: keyPrefix,
		logger:    logger,
	}
}

// Increment records one event and returns the in-window count
func (r *RedisWindow) Increment(ctx context.Context, key string) (int, error) {
	now := time.Now()
	windowStart := now.Add(-r.window)
	redisKey := r.countKey(key)

	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart.UnixNano()))
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: now.UnixNano(),
	})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, r.window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to execute rate window pipeline",
			zap.Error(err),
			zap.String("key", key))
		return 0, fmt.Errorf("rate window increment failed: %w", err)
	}

	return int(countCmd.Val()), nil
}

// CountInWindow returns the in-window count without recording
func (r *RedisWindow) CountInWindow(ctx context.Context, key string) (int, error) {
	windowStart := time.Now().Add(-r.window)

	count, err := r.client.ZCount(ctx, r.countKey(key),
		fmt.Sprintf("%d", windowStart.UnixNano()), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("rate window count failed: %w", err)
	}
	return int(count), nil
}

// Block denies the key for the given duration
func (r *RedisWindow) Block(ctx context.Context, key string, d time.Duration) error {
	until := time.Now().Add(d)
	if err := r.client.Set(ctx, r.blockKey(key), until.UnixNano(), d).Err(); err != nil {
		r.logger.Error("Failed to set block",
			zap.Error(err),
			zap.String("key", key))
		return fmt.Errorf("rate window block failed: %w", err)
	}
	return nil
}

// IsBlocked reports an active block and its remaining duration
func (r *RedisWindow) IsBlocked(ctx context.Context, key string) (bool, time.Duration, error) {
	nanos, err := r.client.Get(ctx, r.blockKey(key)).Int64()
	if err == redis.Nil {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("rate window block lookup failed: %w", err)
	}

	until := time.Unix(0, nanos)
	remaining := time.Until(until)
	if remaining <= 0 {
		return false, 0, nil
	}
	return true, remaining, nil
}

// Reset clears all state for the key
func (r *RedisWindow) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.countKey(key), r.blockKey(key)).Err(); err != nil {
		return fmt.Errorf("rate window reset failed: %w", err)
	}
	return nil
}

func (r *RedisWindow) countKey(key string) string {
	return fmt.Sprintf("%s:count:%s", r.keyPrefix, key)
}

func (r *RedisWindow) blockKey(key string) string {
	return fmt.Sprintf("%s:block:%s", r.keyPrefix, key)
}
