// Package cache 提供基于 allegro/bigcache 的本地计数缓存，作为远端计数存储的读穿层.
package cache

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/wyfcoding/bayes/config"
	"github.com/wyfcoding/bayes/metrics"
)

// CountCache 缓存 int64 计数。bigcache 对所有键使用统一的过期时间.
type CountCache struct {
	cache   *bigcache.BigCache
	metrics *metrics.Metrics
}

// NewCountCache 根据配置创建缓存，未设置的字段使用 bigcache 默认值.
func NewCountCache(ctx context.Context, cfg config.BigCacheConfig, m *metrics.Metrics) (*CountCache, error) {
	life := cfg.LifeWindow
	if life <= 0 {
		life = 10 * time.Minute
	}
	bc := bigcache.DefaultConfig(life)
	if cfg.Shards > 0 {
		bc.Shards = cfg.Shards
	}
	if cfg.CleanWindow > 0 {
		bc.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntrySize > 0 {
		bc.MaxEntrySize = cfg.MaxEntrySize
	}
	bc.HardMaxCacheSize = cfg.HardMaxCacheSize
	bc.Verbose = false

	c, err := bigcache.New(ctx, bc)
	if err != nil {
		return nil, fmt.Errorf("初始化 bigcache 失败: %w", err)
	}
	return &CountCache{cache: c, metrics: m}, nil
}

// Get 读取计数，第二个返回值表示是否命中.
func (c *CountCache) Get(key string) (int64, bool) {
	if c == nil {
		return 0, false
	}
	data, err := c.cache.Get(key)
	if err != nil || len(data) != 8 {
		c.metrics.ObserveCache(false)
		return 0, false
	}
	c.metrics.ObserveCache(true)
	return int64(binary.BigEndian.Uint64(data)), true
}

// Set 写入计数.
func (c *CountCache) Set(key string, n int64) error {
	if c == nil {
		return nil
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	return c.cache.Set(key, buf[:])
}

// Reset 清空全部缓存项，模型切换版本时调用.
func (c *CountCache) Reset() error {
	if c == nil {
		return nil
	}
	return c.cache.Reset()
}

// Len 返回缓存项数量.
func (c *CountCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}

// Close 关闭缓存并停止后台清理协程.
func (c *CountCache) Close() error {
	if c == nil {
		return nil
	}
	return c.cache.Close()
}
