package cache

import (
	"context"
	"errors"
	"io/fs"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// snapshotCache wraps go-cache. With a snapshot path every write rewrites
// the file, so values must be gob-encodable; the device store only writes
// strings.
type snapshotCache struct {
	items *gocache.Cache
	path  string
	mu    sync.Mutex
}

// NewGoCache 创建基于 go-cache 的缓存，SnapshotPath 存在时先加载
func NewGoCache(config LocalConfig) (Cache, error) {
	def := config.DefaultExpiration
	if def <= 0 {
		def = gocache.NoExpiration
	}
	sc := &snapshotCache{
		items: gocache.New(def, config.CleanupInterval),
		path:  config.SnapshotPath,
	}
	if sc.path == "" {
		return sc, nil
	}
	if err := sc.items.LoadFile(sc.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return sc, nil
}

func (sc *snapshotCache) Get(_ context.Context, key string) (interface{}, bool) {
	return sc.items.Get(key)
}

func (sc *snapshotCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = gocache.NoExpiration
	}
	sc.items.Set(key, value, expiration)
	return sc.save()
}

func (sc *snapshotCache) Delete(_ context.Context, key string) error {
	sc.items.Delete(key)
	return sc.save()
}

func (sc *snapshotCache) Clear(context.Context) error {
	sc.items.Flush()
	return sc.save()
}

// Close 写出最后一次快照
func (sc *snapshotCache) Close() error { return sc.save() }

func (sc *snapshotCache) save() error {
	if sc.path == "" {
		return nil
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.items.SaveFile(sc.path)
}
