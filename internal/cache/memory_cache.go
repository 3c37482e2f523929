package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache 基于go-cache实现的进程内缓存
// 适合单实例部署或测试环境
type MemoryCache struct {
	cache      *gocache.Cache
	defaultTTL time.Duration
}

// NewMemoryCache 创建一个新的内存缓存
func NewMemoryCache(config Config) (Cache, error) {
	defaultTTL := config.DefaultTTL
	if defaultTTL == 0 {
		defaultTTL = 24 * time.Hour
	}

	cleanupInterval := config.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = 10 * time.Minute
	}

	return &MemoryCache{
		cache:      gocache.New(defaultTTL, cleanupInterval),
		defaultTTL: defaultTTL,
	}, nil
}

// Get 获取缓存内容
func (m *MemoryCache) Get(key string) (string, bool, error) {
	value, found := m.cache.Get(key)
	if !found {
		return "", false, nil
	}

	str, ok := value.(string)
	if !ok {
		// 类型不匹配视为未命中
		return "", false, nil
	}
	return str, true, nil
}

// Set 设置缓存内容
func (m *MemoryCache) Set(key string, value string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = m.defaultTTL
	}
	m.cache.Set(key, value, ttl)
	return nil
}

// Delete 删除缓存项
func (m *MemoryCache) Delete(key string) error {
	m.cache.Delete(key)
	return nil
}

// Clear 清空所有缓存
func (m *MemoryCache) Clear() error {
	m.cache.Flush()
	return nil
}

// 在包初始化时注册内存缓存
func init() {
	RegisterCache("memory", NewMemoryCache)
}
