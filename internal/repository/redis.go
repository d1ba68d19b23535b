package repository

import (
	"context"
	"fmt"
	"time"

	"photoq/internal/config"
	"photoq/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisMarkerStore implements MarkerStore on a shared Redis instance
type RedisMarkerStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisMarkerStore creates a new Redis-backed marker store
func NewRedisMarkerStore(cfg *config.RedisConfig, ttl time.Duration) (MarkerStore, error) {
	logger.Info("Initializing Redis marker store",
		zap.String("url", cfg.URL),
		zap.Int("db", cfg.DB),
		zap.Duration("ttl", ttl))

	// Parse Redis URL and create client
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	// Override with config values
	opt.Password = cfg.Password
	opt.DB = cfg.DB
	opt.PoolSize = cfg.PoolSize
	opt.DialTimeout = cfg.Timeout
	opt.ReadTimeout = cfg.Timeout
	opt.WriteTimeout = cfg.Timeout

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis marker store initialized successfully")
	return &RedisMarkerStore{client: client, ttl: ttl}, nil
}

// MarkProcessed records a completed submission uuid
func (r *RedisMarkerStore) MarkProcessed(ctx context.Context, uuid string) error {
	if err := r.client.Set(ctx, markerKey(uuid), "1", r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store marker: %w", err)
	}
	return nil
}

// IsProcessed reports whether a submission uuid already completed
func (r *RedisMarkerStore) IsProcessed(ctx context.Context, uuid string) (bool, error) {
	_, err := r.client.Get(ctx, markerKey(uuid)).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to get marker: %w", err)
	}
	return true, nil
}

// Health checks marker store health
func (r *RedisMarkerStore) Health(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the store
func (r *RedisMarkerStore) Close() error {
	return r.client.Close()
}

func markerKey(uuid string) string {
	return "submission:processed:" + uuid
}
