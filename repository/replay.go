package repository

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linlinbupt123-crypto/mock_wallet/domain"
)

const replayPrefix = "transfer:consumed:v1:"

// RedisReplayGuard stores consumed message hashes with SETNX so every API instance shares them.
type RedisReplayGuard struct {
	cache *redis.Client
}

func NewRedisReplayGuard(cache *redis.Client) *RedisReplayGuard {
	return &RedisReplayGuard{cache: cache}
}

func (g *RedisReplayGuard) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return g.cache.SetNX(ctx, replayPrefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

func (g *RedisReplayGuard) Release(ctx context.Context, key string) error {
	return g.cache.Del(ctx, replayPrefix+key).Err()
}

// MemoryReplayGuard is the single-process variant.
type MemoryReplayGuard struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

func NewMemoryReplayGuard(now func() time.Time) *MemoryReplayGuard {
	if now == nil {
		now = time.Now
	}
	return &MemoryReplayGuard{keys: make(map[string]time.Time), now: now}
}

func (g *MemoryReplayGuard) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	for k, exp := range g.keys {
		if !now.Before(exp) {
			delete(g.keys, k)
		}
	}
	if _, ok := g.keys[key]; ok {
		return false, nil
	}
	g.keys[key] = now.Add(ttl)
	return true, nil
}

func (g *MemoryReplayGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, key)
	return nil
}

var (
	_ domain.ReplayGuard = (*RedisReplayGuard)(nil)
	_ domain.ReplayGuard = (*MemoryReplayGuard)(nil)
)
