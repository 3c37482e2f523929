package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// 标注缓存键的命名空间前缀
// 缓存可能与任务队列共用一个Redis库，所有键都加前缀隔离
const redisKeyNamespace = "nercache:"

// RedisCache 基于Redis实现的缓存
// 多个服务实例可以共享同一份标注结果
type RedisCache struct {
	client     *redis.Client
	ctx        context.Context
	defaultTTL time.Duration
}

// NewRedisCache 创建一个新的Redis缓存
func NewRedisCache(config Config) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	// 测试连接
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{
		client:     client,
		ctx:        ctx,
		defaultTTL: config.DefaultTTL,
	}, nil
}

// Get 获取缓存内容
func (r *RedisCache) Get(key string) (string, bool, error) {
	value, err := r.client.Get(r.ctx, redisKeyNamespace+key).Result()
	if errors.Is(err, redis.Nil) {
		// 键不存在
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	return value, true, nil
}

// Set 设置缓存内容，ttl为0时使用默认过期时间
func (r *RedisCache) Set(key string, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	return r.client.Set(r.ctx, redisKeyNamespace+key, value, ttl).Err()
}

// Delete 删除缓存项
func (r *RedisCache) Delete(key string) error {
	return r.client.Del(r.ctx, redisKeyNamespace+key).Err()
}

// Clear 清空本缓存命名空间下的所有键
// 按前缀逐批扫描删除，不影响同库中的其他数据
func (r *RedisCache) Clear() error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(r.ctx, cursor, redisKeyNamespace+"*", 100).Result()
		if err != nil {
			return err
		}

		if len(keys) > 0 {
			if err := r.client.Del(r.ctx, keys...).Err(); err != nil {
				return err
			}
		}

		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// 在包初始化时注册Redis缓存
func init() {
	RegisterCache("redis", NewRedisCache)
}
