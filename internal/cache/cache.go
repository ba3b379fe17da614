// Package cache 提供信息流分页缓存：配置了 Redis 时多实例共享，否则退回进程内 LRU
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"ideafeed/internal/utils"
	"time"
)

// Store 缓存后端
type Store interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// FeedKey 信息流首页缓存键，按租户分前缀便于整体失效
func FeedKey(tenantID uint, tag string, limit int) string {
	return fmt.Sprintf("%s%s:%d", TenantPrefix(tenantID), tag, limit)
}

// TenantPrefix 某租户所有信息流缓存的前缀
func TenantPrefix(tenantID uint) string {
	return fmt.Sprintf("feed:%d:", tenantID)
}

// LocalStore 基于 utils.GlobalCache 的进程内实现
type LocalStore struct {
	cache *utils.GlobalCache
}

func NewLocalStore(c *utils.GlobalCache) *LocalStore {
	return &LocalStore{cache: c}
}

func (s *LocalStore) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	data, ok := s.cache.Get(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		s.cache.Delete(key)
		return false, err
	}
	return true, nil
}

func (s *LocalStore) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.cache.Set(key, data, ttl)
	return nil
}

func (s *LocalStore) DeletePrefix(_ context.Context, prefix string) error {
	s.cache.DeletePrefix(prefix)
	return nil
}
