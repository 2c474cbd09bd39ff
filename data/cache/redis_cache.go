package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	dm "corr.service/data/models"
)

type RedisCache struct {
	client redis.Cmdable
}

func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client}
}

// GetRedisClient parses a redis url such as redis://localhost:6379/0.
func GetRedisClient(redisUrl string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisUrl)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (rc *RedisCache) Get(ctx context.Context, key string) (dm.Table, bool, error) {
	raw, err := rc.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return dm.Table{}, false, nil
	}
	if err != nil {
		return dm.Table{}, false, fmt.Errorf("error reading %s from redis: %w", key, err)
	}

	var table dm.Table
	if err := json.Unmarshal(raw, &table); err != nil {
		return dm.Table{}, false, fmt.Errorf("error decoding cached table %s: %w", key, err)
	}
	return table, true, nil
}

func (rc *RedisCache) Set(ctx context.Context, key string, table dm.Table, ttl time.Duration) error {
	raw, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("error encoding table %s: %w", key, err)
	}

	if err := rc.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("error writing %s to redis: %w", key, err)
	}
	return nil
}
