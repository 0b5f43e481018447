package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "traceprint:fp:"

// RedisTier backs the shared cache tier with Redis so multiple analyzer
// processes share warm lookups.
type RedisTier struct {
	client *redis.Client
}

// RedisConfig carries the connection settings for the shared tier.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisTier connects to Redis and verifies the connection.
func NewRedisTier(ctx context.Context, cfg RedisConfig) (*RedisTier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	return &RedisTier{client: client}, nil
}

func (t *RedisTier) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := t.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (t *RedisTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return t.client.Set(ctx, redisKeyPrefix+key, value, ttl).Err()
}

func (t *RedisTier) Delete(ctx context.Context, key string) error {
	return t.client.Del(ctx, redisKeyPrefix+key).Err()
}

// DeletePattern walks the keyspace with SCAN and deletes each batch of
// matches. Redis's MATCH glob covers the same syntax callers pass in.
func (t *RedisTier) DeletePattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := t.client.Scan(ctx, cursor, redisKeyPrefix+pattern, 256).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := t.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (t *RedisTier) Close() error {
	return t.client.Close()
}
