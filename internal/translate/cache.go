package translate

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "goalnews:title:"

// Cache 译文缓存，跨次运行复用同一标题的翻译结果
type Cache interface {
	Get(ctx context.Context, backend, title string) (string, bool, error)
	Set(ctx context.Context, backend, title, translated string) error
}

// RedisCache 以 backend+标题 的哈希为 key
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// DialRedis 连接并 ping 一次，失败时关闭连接
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func (c *RedisCache) Get(ctx context.Context, backend, title string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, cacheKey(backend, title)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, backend, title, translated string) error {
	return c.rdb.Set(ctx, cacheKey(backend, title), translated, c.ttl).Err()
}

func cacheKey(backend, title string) string {
	sum := sha1.Sum([]byte(backend + "\x00" + title))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
