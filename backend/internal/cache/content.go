package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// DefaultTTL 内容缓存的固定过期时间，每次写入都会重置
const DefaultTTL = 3600 * time.Second

// ContentCache 笔记内容的读写缓存。
// Get 未命中时不会回填，只有 Set 会写入。
type ContentCache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}

// 具体实现：基于 redis 的 ContentCache。
// redis.UniversalClient 同时兼容单机和集群客户端
type redisContent struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisContent(rdb redis.UniversalClient, ttl time.Duration) ContentCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &redisContent{rdb: rdb, ttl: ttl}
}

func (c *redisContent) Get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := c.rdb.Get(ctx, contentKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return true, nil
}

// Set 序列化后写入，SET ... EX 一次完成，覆盖之前的 TTL
func (c *redisContent) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	return c.rdb.Set(ctx, contentKey(key), data, c.ttl).Err()
}

func (c *redisContent) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, contentKey(key)).Err()
}
