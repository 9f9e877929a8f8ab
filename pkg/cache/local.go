package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type entry struct {
	value   interface{}
	expires time.Time
}

func (e entry) live(now time.Time) bool {
	return e.expires.IsZero() || !now.After(e.expires)
}

// lruCache 内存 LRU，过期项在读取或定期清理时移除
type lruCache struct {
	items *lru.Cache[string, entry]
	now   func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewLocalCache returns an in-memory LRU holding at most MaxSize entries
// (default 1000). With a CleanupInterval a goroutine sweeps expired entries
// until Close.
func NewLocalCache(config LocalConfig) Cache {
	size := config.MaxSize
	if size <= 0 {
		size = 1000
	}
	items, _ := lru.New[string, entry](size)
	lc := &lruCache{items: items, now: time.Now, stop: make(chan struct{})}
	if config.CleanupInterval > 0 {
		go lc.sweepEvery(config.CleanupInterval)
	}
	return lc
}

func (lc *lruCache) Get(_ context.Context, key string) (interface{}, bool) {
	e, ok := lc.items.Get(key)
	if !ok {
		return nil, false
	}
	if !e.live(lc.now()) {
		lc.items.Remove(key)
		return nil, false
	}
	return e.value, true
}

func (lc *lruCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	e := entry{value: value}
	if expiration > 0 {
		e.expires = lc.now().Add(expiration)
	}
	lc.items.Add(key, e)
	return nil
}

func (lc *lruCache) Delete(_ context.Context, key string) error {
	lc.items.Remove(key)
	return nil
}

func (lc *lruCache) Clear(context.Context) error {
	lc.items.Purge()
	return nil
}

func (lc *lruCache) Close() error {
	lc.stopOnce.Do(func() { close(lc.stop) })
	return nil
}

func (lc *lruCache) sweepEvery(d time.Duration) {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-lc.stop:
			return
		case <-t.C:
			now := lc.now()
			for _, k := range lc.items.Keys() {
				if e, ok := lc.items.Peek(k); ok && !e.live(now) {
					lc.items.Remove(k)
				}
			}
		}
	}
}
