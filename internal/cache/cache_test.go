package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemoryCache 测试内存缓存的基本功能
func TestMemoryCache(t *testing.T) {
	config := Config{
		Type:            "memory",
		DefaultTTL:      time.Second * 2,
		CleanupInterval: time.Second,
	}
	cache, err := NewMemoryCache(config)
	assert.NoError(t, err)
	assert.NotNil(t, cache)

	// 测试Set和Get
	err = cache.Set("key1", "value1", 0) // 使用默认TTL
	assert.NoError(t, err)

	val, found, err := cache.Get("key1")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "value1", val)

	// 测试不存在的键
	val, found, err = cache.Get("non-existent")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, val)

	// 测试过期
	err = cache.Set("expire-soon", "temp-value", time.Millisecond*500)
	assert.NoError(t, err)

	time.Sleep(time.Second)

	val, found, err = cache.Get("expire-soon")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, val)

	// 测试删除
	err = cache.Set("to-delete", "delete-me", 0)
	assert.NoError(t, err)

	err = cache.Delete("to-delete")
	assert.NoError(t, err)

	_, found, err = cache.Get("to-delete")
	assert.NoError(t, err)
	assert.False(t, found)

	// 测试清空
	err = cache.Set("key2", "value2", 0)
	assert.NoError(t, err)

	err = cache.Clear()
	assert.NoError(t, err)

	_, found, err = cache.Get("key2")
	assert.NoError(t, err)
	assert.False(t, found)
}

// TestRedisCache 使用miniredis测试Redis缓存
func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	config := Config{
		Type:       "redis",
		RedisAddr:  mr.Addr(),
		DefaultTTL: time.Second * 2,
	}

	cache, err := NewRedisCache(config)
	require.NoError(t, err)
	assert.NotNil(t, cache)

	// 测试Set和Get
	err = cache.Set("redis-key1", "redis-value1", 0)
	assert.NoError(t, err)

	val, found, err := cache.Get("redis-key1")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "redis-value1", val)

	// 测试不存在的键
	val, found, err = cache.Get("redis-non-existent")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, val)

	// 测试过期
	err = cache.Set("redis-expire-soon", "redis-temp-value", time.Second)
	assert.NoError(t, err)

	// miniredis需要手动推进时钟来触发过期
	mr.FastForward(time.Second * 2)

	val, found, err = cache.Get("redis-expire-soon")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, val)

	// 测试删除
	err = cache.Set("redis-to-delete", "redis-delete-me", 0)
	assert.NoError(t, err)

	err = cache.Delete("redis-to-delete")
	assert.NoError(t, err)

	_, found, err = cache.Get("redis-to-delete")
	assert.NoError(t, err)
	assert.False(t, found)
}

// TestRedisCacheClear Clear只清空缓存自己的命名空间
func TestRedisCacheClear(t *testing.T) {
	mr := miniredis.RunT(t)

	cache, err := NewRedisCache(Config{
		Type:       "redis",
		RedisAddr:  mr.Addr(),
		DefaultTTL: time.Minute,
	})
	require.NoError(t, err)

	require.NoError(t, cache.Set("run-1", "ents-1", 0))
	require.NoError(t, cache.Set("run-2", "ents-2", 0))

	// 同一个Redis库中任务队列的数据不应被波及
	require.NoError(t, mr.Set("task:abc", "queued"))

	err = cache.Clear()
	assert.NoError(t, err)

	_, found, err := cache.Get("run-1")
	assert.NoError(t, err)
	assert.False(t, found)

	_, found, err = cache.Get("run-2")
	assert.NoError(t, err)
	assert.False(t, found)

	assert.True(t, mr.Exists("task:abc"))
}

// TestRedisCacheDefaultTTL ttl为0时应落到默认过期时间
func TestRedisCacheDefaultTTL(t *testing.T) {
	mr := miniredis.RunT(t)

	cache, err := NewRedisCache(Config{
		Type:       "redis",
		RedisAddr:  mr.Addr(),
		DefaultTTL: time.Second,
	})
	require.NoError(t, err)

	require.NoError(t, cache.Set("short-lived", "value", 0))

	mr.FastForward(time.Second * 2)

	_, found, err := cache.Get("short-lived")
	assert.NoError(t, err)
	assert.False(t, found)
}

// TestCacheFactory 测试缓存工厂函数
func TestCacheFactory(t *testing.T) {
	// 测试内存缓存创建
	memConfig := DefaultConfig()
	memCache, err := NewCache(memConfig)
	assert.NoError(t, err)
	assert.NotNil(t, memCache)

	// 测试Redis缓存创建
	mr := miniredis.RunT(t)
	redisConfig := Config{
		Type:      "redis",
		RedisAddr: mr.Addr(),
	}

	redisCache, err := NewCache(redisConfig)
	require.NoError(t, err)
	err = redisCache.Set("factory-test", "value", 0)
	assert.NoError(t, err)
	redisCache.Delete("factory-test")

	// 测试未知缓存类型（应该返回默认内存缓存）
	unknownConfig := Config{
		Type: "unknown-type",
	}
	unknownCache, err := NewCache(unknownConfig)
	assert.NoError(t, err)
	assert.NotNil(t, unknownCache)
}

// TestGenerateCacheKey 测试缓存键生成
func TestGenerateCacheKey(t *testing.T) {
	// 测试没有部分
	key := GenerateCacheKey("prefix")
	assert.Equal(t, "prefix", key)

	// 测试单部分
	key = GenerateCacheKey("prefix", "part1")
	assert.Equal(t, "prefix:part1", key)

	// 测试多部分
	key = GenerateCacheKey("prefix", "part1", "part2", "part3")
	assert.Equal(t, "prefix:part1:part2:part3", key)
}

// TestAnnotationCacheKey 测试标注结果缓存键生成
func TestAnnotationCacheKey(t *testing.T) {
	key1 := AnnotationCacheKey("en_core_web_sm", "I have got my plants and shall lose no time.")
	key2 := AnnotationCacheKey("en_core_web_sm", "I have got my plants and shall lose no time.")
	key3 := AnnotationCacheKey("en_core_web_sm", "A different letter entirely.")
	key4 := AnnotationCacheKey("en_core_web_md", "I have got my plants and shall lose no time.")

	// 相同模型和文本生成相同的键
	assert.Equal(t, key1, key2)

	// 不同文本或不同模型生成不同的键
	assert.NotEqual(t, key1, key3)
	assert.NotEqual(t, key1, key4)

	// 键带有标注前缀和模型名
	assert.True(t, strings.HasPrefix(key1, "annotation:en_core_web_sm:"))
}
