// Package cache backs the device key/value store and the short-lived view
// caches (admin reports, agency locations).
package cache

import (
	"context"
	"time"
)

// Cache is a key/value cache. An expiration <= 0 keeps the entry until it is
// deleted or evicted.
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	// Clear drops every entry this cache owns
	Clear(ctx context.Context) error
	Close() error
}

// Config selects a backend: "local" (LRU), "gocache" (optionally snapshotted
// to disk) or "redis".
type Config struct {
	Type  string      `mapstructure:"type"`
	Redis RedisConfig `mapstructure:"redis"`
	Local LocalConfig `mapstructure:"local"`
}

type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// 键前缀，Clear 只删除带前缀的键
	KeyPrefix string `mapstructure:"key_prefix"`
}

type LocalConfig struct {
	// LRU 容量，只对 local 生效
	MaxSize           int           `mapstructure:"max_size"`
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`

	// gocache 快照文件，为空时不落盘
	SnapshotPath string `mapstructure:"snapshot_path"`
}

// Remember returns the cached T under key, or calls load and caches its
// result for ttl. A nil cache or ttl <= 0 always loads. Values of another
// type (e.g. decoded from redis) count as a miss.
func Remember[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if c != nil && ttl > 0 {
		if v, ok := c.Get(ctx, key); ok {
			if t, ok := v.(T); ok {
				return t, nil
			}
		}
	}
	v, err := load(ctx)
	if err != nil || c == nil || ttl <= 0 {
		return v, err
	}
	// 写缓存失败不影响结果
	_ = c.Set(ctx, key, v, ttl)
	return v, nil
}
