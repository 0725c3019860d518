package cache

import (
	"context"
	"testing"

	"github.com/wyfcoding/bayes/config"
)

func TestCountCache(t *testing.T) {
	c, err := NewCountCache(context.Background(), config.BigCacheConfig{Shards: 16}, nil)
	if err != nil {
		t.Fatalf("NewCountCache() error = %v", err)
	}
	defer c.Close()

	if _, ok := c.Get("news:v1:wc:sports:goal"); ok {
		t.Fatal("Get() hit on empty cache")
	}
	if err := c.Set("news:v1:wc:sports:goal", 42); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if n, ok := c.Get("news:v1:wc:sports:goal"); !ok || n != 42 {
		t.Errorf("Get() = %d, %v, want 42, true", n, ok)
	}
	if err := c.Set("zero", 0); err != nil {
		t.Fatalf("Set(zero) error = %v", err)
	}
	if n, ok := c.Get("zero"); !ok || n != 0 {
		t.Errorf("Get(zero) = %d, %v, want cached zero", n, ok)
	}

	if err := c.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() after Reset = %d", c.Len())
	}

	var nilCache *CountCache
	if _, ok := nilCache.Get("k"); ok || nilCache.Set("k", 1) != nil {
		t.Error("nil cache must be a no-op")
	}
}
