package utils

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// CacheItem 包装缓存数据和过期时间
type CacheItem struct {
	Data      []byte
	ExpiresAt time.Time
}

// GlobalCache 进程内 LRU 缓存，条目带 TTL
type GlobalCache struct {
	lruCache *lru.Cache[string, CacheItem]
	now      func() time.Time
}

var (
	cacheInstance *GlobalCache
	cacheOnce     sync.Once
)

// NewGlobalCache 创建指定容量的缓存
func NewGlobalCache(size int) (*GlobalCache, error) {
	l, err := lru.New[string, CacheItem](size)
	if err != nil {
		return nil, err
	}
	return &GlobalCache{lruCache: l, now: time.Now}, nil
}

// GetCache 获取单例缓存实例（容量 500）
func GetCache() *GlobalCache {
	cacheOnce.Do(func() {
		c, err := NewGlobalCache(500)
		if err != nil {
			zap.L().Fatal("Failed to create LRU cache", zap.Error(err))
		}
		cacheInstance = c
	})
	return cacheInstance
}

// Set 设置缓存，TTL 为过期时间
func (c *GlobalCache) Set(key string, data []byte, ttl time.Duration) {
	c.lruCache.Add(key, CacheItem{
		Data:      data,
		ExpiresAt: c.now().Add(ttl),
	})
}

// Get 获取缓存，不存在或已过期返回 false
func (c *GlobalCache) Get(key string) ([]byte, bool) {
	val, ok := c.lruCache.Get(key)
	if !ok {
		return nil, false
	}

	if c.now().After(val.ExpiresAt) {
		c.lruCache.Remove(key)
		return nil, false
	}

	return val.Data, true
}

// Delete 删除指定缓存
func (c *GlobalCache) Delete(key string) {
	c.lruCache.Remove(key)
}

// DeletePrefix 删除所有以 prefix 开头的缓存
func (c *GlobalCache) DeletePrefix(prefix string) int {
	removed := 0
	for _, key := range c.lruCache.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.lruCache.Remove(key)
			removed++
		}
	}
	return removed
}
