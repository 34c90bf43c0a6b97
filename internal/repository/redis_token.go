package repository

import (
	"context"
	"sync"
	"time"

	"github.com/medscan/scangate/internal/config"
	"github.com/redis/go-redis/v9"
)

// TokenCache stores the WeCom application access token so one node's refresh
// is visible to all of them.
type TokenCache interface {
	Get(ctx context.Context) (string, bool)
	Set(ctx context.Context, token string, ttl time.Duration)
}

type RedisTokenCache struct {
	client *redis.Client
	key    string
}

func NewRedisClient(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

func NewRedisTokenCache(client *redis.Client, key string) *RedisTokenCache {
	if key == "" {
		key = "scangate:wecom_token"
	}
	return &RedisTokenCache{client: client, key: key}
}

func (c *RedisTokenCache) Get(ctx context.Context) (string, bool) {
	val, err := c.client.Get(ctx, c.key).Result()
	if err != nil || val == "" {
		return "", false
	}
	return val, true
}

func (c *RedisTokenCache) Set(ctx context.Context, token string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	_ = c.client.Set(ctx, c.key, token, ttl).Err()
}

// MemoryTokenCache is the single-node fallback when Redis is not configured.
type MemoryTokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{}
}

func (c *MemoryTokenCache) Get(_ context.Context) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || time.Now().After(c.expiresAt) {
		return "", false
	}
	return c.token, true
}

func (c *MemoryTokenCache) Set(_ context.Context, token string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.expiresAt = time.Now().Add(ttl)
}
