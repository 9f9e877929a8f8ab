package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCache 共享缓存。字符串原样存取，其他值按 JSON 编码，读回时是
// 解码后的通用类型（map、[]interface{}、float64）。
type redisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects and pings within DialTimeout (default 5s).
func NewRedisCache(config RedisConfig) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	timeout := config.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis %s: %w", config.Addr, err)
	}
	return &redisCache{client: client, prefix: config.KeyPrefix}, nil
}

// stringTag marks values written as plain strings.
const stringTag = "s:"

func (rc *redisCache) Get(ctx context.Context, key string) (interface{}, bool) {
	raw, err := rc.client.Get(ctx, rc.prefix+key).Result()
	if err != nil {
		return nil, false
	}
	if len(raw) >= len(stringTag) && raw[:len(stringTag)] == stringTag {
		return raw[len(stringTag):], true
	}
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false
	}
	return v, true
}

func (rc *redisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	var data string
	switch v := value.(type) {
	case string:
		data = stringTag + v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal value for %s: %w", key, err)
		}
		data = string(b)
	}
	if expiration < 0 {
		expiration = 0
	}
	return rc.client.Set(ctx, rc.prefix+key, data, expiration).Err()
}

func (rc *redisCache) Delete(ctx context.Context, key string) error {
	return rc.client.Del(ctx, rc.prefix+key).Err()
}

// Clear 删除本前缀下的所有键；没有前缀时清空当前 DB
func (rc *redisCache) Clear(ctx context.Context) error {
	if rc.prefix == "" {
		return rc.client.FlushDB(ctx).Err()
	}
	iter := rc.client.Scan(ctx, 0, rc.prefix+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}
	return rc.client.Del(ctx, batch...).Err()
}

func (rc *redisCache) Close() error { return rc.client.Close() }
