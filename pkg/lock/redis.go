package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// unlockScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by another replica is left alone.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisOption func(*RedisConfig)

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	Prefix       string
}

// RedisLocker guards keys across every process sharing the Redis instance.
type RedisLocker struct {
	client *redis.Client
	prefix string

	mu     sync.Mutex
	tokens map[string]string // key -> token of locks this process holds
}

func NewRedisLocker(ctx context.Context, opts ...RedisOption) (*RedisLocker, error) {
	cfg := &RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		Prefix:       "forecastdesk",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return newRedisLocker(client, cfg.Prefix), nil
}

func newRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{
		client: client,
		prefix: prefix,
		tokens: make(map[string]string),
	}
}

func (r *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token, err := newToken()
	if err != nil {
		return false, err
	}

	ok, err := r.client.SetNX(ctx, r.wrapKey(key), token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}

	r.mu.Lock()
	r.tokens[key] = token
	r.mu.Unlock()
	return true, nil
}

func (r *RedisLocker) Unlock(ctx context.Context, key string) error {
	r.mu.Lock()
	token, ok := r.tokens[key]
	delete(r.tokens, key)
	r.mu.Unlock()
	if !ok {
		return ErrNotHeld
	}

	n, err := unlockScript.Run(ctx, r.client, []string{r.wrapKey(key)}, token).Int()
	if err != nil {
		return fmt.Errorf("redis unlock %s: %w", key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

func (r *RedisLocker) Close() error {
	return r.client.Close()
}

func (r *RedisLocker) wrapKey(key string) string {
	return fmt.Sprintf("%s:lock:%s", r.prefix, key)
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func WithRedisAddr(addr string) RedisOption {
	return func(c *RedisConfig) {
		c.Addr = addr
	}
}

func WithRedisAuth(password string, db int) RedisOption {
	return func(c *RedisConfig) {
		c.Password = password
		c.DB = db
	}
}

func WithRedisPrefix(prefix string) RedisOption {
	return func(c *RedisConfig) {
		c.Prefix = prefix
	}
}

func WithRedisPool(poolSize, minIdleConns int) RedisOption {
	return func(c *RedisConfig) {
		c.PoolSize = poolSize
		c.MinIdleConns = minIdleConns
	}
}
