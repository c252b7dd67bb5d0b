package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/agentscope/agentscope/internal/config"
	"github.com/agentscope/agentscope/internal/pkg/logger"
)

// RedisDB wraps a Redis client
type RedisDB struct {
	Client *redis.Client
}

// NewRedis creates a new Redis client
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*RedisDB, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:            addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		PoolSize:        100,
		MinIdleConns:    10,
		PoolTimeout:     4 * time.Second,
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info("connected to Redis",
		zap.String("addr", addr),
		zap.Int("db", cfg.DB),
	)

	return &RedisDB{Client: client}, nil
}

// Close closes the Redis connection
func (db *RedisDB) Close() error {
	if db.Client != nil {
		return db.Client.Close()
	}
	return nil
}

// SAdd adds members to a set
func (db *RedisDB) SAdd(ctx context.Context, key string, members ...interface{}) (int64, error) {
	return db.Client.SAdd(ctx, key, members...).Result()
}

// SIsMember checks if a member is in a set
func (db *RedisDB) SIsMember(ctx context.Context, key string, member interface{}) (bool, error) {
	return db.Client.SIsMember(ctx, key, member).Result()
}

// SMembers gets all set members
func (db *RedisDB) SMembers(ctx context.Context, key string) ([]string, error) {
	return db.Client.SMembers(ctx, key).Result()
}

// Del deletes one or more keys
func (db *RedisDB) Del(ctx context.Context, keys ...string) error {
	return db.Client.Del(ctx, keys...).Err()
}
