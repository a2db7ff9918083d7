package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// planCache stores encoded calculator responses. Plans are deterministic in
// their inputs, so entries never need invalidating, only expiring.
type planCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte) error
	Close() error
}

func planCacheKey(kind string, input any) (string, error) {
	b, err := json.Marshal(input)
	if err != nil {
		return "", errors.Wrap(err, "encode cache key input")
	}
	return fmt.Sprintf("plan:%s:%016x", kind, xxhash.Sum64(b)), nil
}

type RedisPlanCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPlanCache(addr, password string, ttl time.Duration) *RedisPlanCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	return &RedisPlanCache{client: rdb, ttl: ttl}
}

func (c *RedisPlanCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "redis get %s", key)
	}
	return val, true, nil
}

func (c *RedisPlanCache) Set(ctx context.Context, key string, val []byte) error {
	return errors.Wrapf(c.client.Set(ctx, key, val, c.ttl).Err(), "redis set %s", key)
}

func (c *RedisPlanCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisPlanCache) Close() error {
	return c.client.Close()
}

type memoryEntry struct {
	val     []byte
	expires time.Time
}

type MemoryPlanCache struct {
	mu   sync.RWMutex
	ttl  time.Duration
	data map[string]memoryEntry
	now  func() time.Time
}

func NewMemoryPlanCache(ttl time.Duration) *MemoryPlanCache {
	return &MemoryPlanCache{
		ttl:  ttl,
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

func (c *MemoryPlanCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if c.now().After(e.expires) {
		c.mu.Lock()
		delete(c.data, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.val, true, nil
}

func (c *MemoryPlanCache) Set(_ context.Context, key string, val []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.data {
		if now.After(e.expires) {
			delete(c.data, k)
		}
	}
	c.data[key] = memoryEntry{val: val, expires: now.Add(c.ttl)}
	return nil
}

func (c *MemoryPlanCache) Close() error { return nil }

// newPlanCacheFromConfig prefers Redis and falls back to memory when it is
// unset or unreachable at startup.
func newPlanCacheFromConfig(ctx context.Context, cfg Config, log *zap.Logger) planCache {
	if cfg.RedisAddr == "" {
		log.Info("plan cache: in-memory", zap.Duration("ttl", cfg.PlanCacheTTL))
		return NewMemoryPlanCache(cfg.PlanCacheTTL)
	}

	rc := NewRedisPlanCache(cfg.RedisAddr, cfg.RedisPassword, cfg.PlanCacheTTL)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		log.Warn("plan cache: redis unreachable, using in-memory", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = rc.Close()
		return NewMemoryPlanCache(cfg.PlanCacheTTL)
	}
	log.Info("plan cache: redis", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.PlanCacheTTL))
	return rc
}
