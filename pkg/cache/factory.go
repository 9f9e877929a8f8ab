package cache

import (
	"fmt"
	"strings"
)

// NewCache builds the backend named by config.Type; empty means local.
func NewCache(config Config) (Cache, error) {
	switch t := strings.ToLower(config.Type); t {
	case "", "local":
		return NewLocalCache(config.Local), nil
	case "gocache":
		return NewGoCache(config.Local)
	case "redis":
		return NewRedisCache(config.Redis)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", t)
	}
}
