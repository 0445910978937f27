package auth

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"islatel/internal/config"
)

// AttemptLimiter counts login attempts per client key inside a rolling window.
type AttemptLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// NewRedisClient builds a redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

type RedisLimiter struct {
	client *redis.Client
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	redisKey := fmt.Sprintf("login_attempts:%s", key)
	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment login attempts: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, redisKey, window)
	}

	return count <= int64(limit), nil
}

type attemptEntry struct {
	count     int
	expiresAt time.Time
}

// MemoryLimiter is the in-process fallback counter. Counts are guarded by a
// mutex so concurrent logins cannot lose increments.
type MemoryLimiter struct {
	mu       sync.Mutex
	attempts map[string]*attemptEntry
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{attempts: make(map[string]*attemptEntry)}
}

func (m *MemoryLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.attempts[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &attemptEntry{expiresAt: now.Add(window)}
		m.attempts[key] = entry
	}
	entry.count++
	return entry.count <= limit, nil
}

// FailoverLimiter counts against redis while it is healthy and falls back to
// the in-memory counter when it is not, probing the primary again after a
// minute.
type FailoverLimiter struct {
	primary   AttemptLimiter
	fallback  AttemptLimiter
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverLimiter(primary, fallback AttemptLimiter, logger *zerolog.Logger) *FailoverLimiter {
	return &FailoverLimiter{primary: primary, fallback: fallback, logger: logger}
}

func (f *FailoverLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	tryPrimary := !f.isDown.Load()
	if !tryPrimary && time.Since(time.Unix(f.lastCheck.Load(), 0)) > time.Minute {
		tryPrimary = true
	}

	if tryPrimary {
		allowed, err := f.primary.Allow(ctx, key, limit, window)
		if err == nil {
			f.isDown.Store(false)
			return allowed, nil
		}
		f.logger.Error().Err(err).Msg("primary attempt limiter failed, falling back to memory")
		f.isDown.Store(true)
		f.lastCheck.Store(time.Now().Unix())
	}

	return f.fallback.Allow(ctx, key, limit, window)
}
