package metrics

import (
	"sync"
)

var (
	global *Metrics
	mu     sync.RWMutex
)

// SetGlobal 设置全局指标实例
func SetGlobal(m *Metrics) {
	mu.Lock()
	defer mu.Unlock()
	global = m
}

// Global 获取全局指标实例，未设置时为 nil（所有记录方法都是空操作）
func Global() *Metrics {
	mu.RLock()
	defer mu.RUnlock()
	return global
}
