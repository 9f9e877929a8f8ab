package localstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"LiveGuard/internal/models"
	"LiveGuard/pkg/cache"
)

// KV is the raw device key/value storage. Writes are last-writer-wins.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type sqlKV struct {
	db *gorm.DB
}

// NewSQLKV stores entries in the device_kv table, migrating it if needed.
func NewSQLKV(db *gorm.DB) (KV, error) {
	if err := db.AutoMigrate(&models.KVEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate device_kv: %w", err)
	}
	return &sqlKV{db: db}, nil
}

func (s *sqlKV) Get(ctx context.Context, key string) (string, bool, error) {
	var e models.KVEntry
	err := s.db.WithContext(ctx).Where(&models.KVEntry{Key: key}).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return e.Value, true, nil
}

func (s *sqlKV) Set(ctx context.Context, key, value string) error {
	e := models.KVEntry{Key: key, Value: value, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
}

func (s *sqlKV) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Delete(&models.KVEntry{Key: key}).Error
}

type cacheKV struct {
	c cache.Cache
}

// NewCacheKV adapts a cache backend. Entries never expire.
func NewCacheKV(c cache.Cache) KV {
	return &cacheKV{c: c}
}

func (k *cacheKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := k.c.Get(ctx, key)
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, fmt.Errorf("unexpected value type %T for %s", v, key)
	}
	return s, true, nil
}

func (k *cacheKV) Set(ctx context.Context, key, value string) error {
	return k.c.Set(ctx, key, value, 0)
}

func (k *cacheKV) Delete(ctx context.Context, key string) error {
	return k.c.Delete(ctx, key)
}
