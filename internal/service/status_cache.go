package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"identity-auth/internal/domain"
)

const statusKeyPrefix = "UserStatus:"

// StatusCache refleja el estado de cada usuario para otros servicios.
type StatusCache interface {
	Save(ctx context.Context, userID int64, status domain.UserStatus) error
	Delete(ctx context.Context, userID int64) error
	Get(ctx context.Context, userID int64) (domain.UserStatus, bool, error)
}

// StatusKey arma la clave "UserStatus:<id>".
func StatusKey(userID int64) string {
	return statusKeyPrefix + strconv.FormatInt(userID, 10)
}

type memoryStatusEntry struct {
	status    domain.UserStatus
	expiresAt time.Time
}

type memoryStatusCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]memoryStatusEntry
	now   func() time.Time
}

// NewMemoryStatusCache se usa cuando Redis no está configurado.
func NewMemoryStatusCache(ttl time.Duration) StatusCache {
	return &memoryStatusCache{
		ttl:   ttl,
		items: make(map[string]memoryStatusEntry),
		now:   time.Now,
	}
}

func (c *memoryStatusCache) Save(_ context.Context, userID int64, status domain.UserStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[StatusKey(userID)] = memoryStatusEntry{status: status, expiresAt: c.now().Add(c.ttl)}
	return nil
}

func (c *memoryStatusCache) Delete(_ context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, StatusKey(userID))
	return nil
}

func (c *memoryStatusCache) Get(_ context.Context, userID int64) (domain.UserStatus, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := StatusKey(userID)
	entry, ok := c.items[key]
	if !ok {
		return "", false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.items, key)
		return "", false, nil
	}
	return entry.status, true, nil
}

// redisKVClient es el subconjunto de comandos que usa la cache.
type redisKVClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisStatusCache struct {
	client  redisKVClient
	ttl     time.Duration
	timeout time.Duration
}

func NewRedisStatusCache(client *redis.Client, ttl time.Duration) StatusCache {
	if client == nil {
		return nil
	}
	return newRedisStatusCache(client, ttl)
}

func newRedisStatusCache(client redisKVClient, ttl time.Duration) *redisStatusCache {
	return &redisStatusCache{
		client:  client,
		ttl:     ttl,
		timeout: 500 * time.Millisecond,
	}
}

func (c *redisStatusCache) Save(ctx context.Context, userID int64, status domain.UserStatus) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.client.Set(ctx, StatusKey(userID), string(status), c.ttl).Err()
}

func (c *redisStatusCache) Delete(ctx context.Context, userID int64) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.client.Del(ctx, StatusKey(userID)).Err()
}

func (c *redisStatusCache) Get(ctx context.Context, userID int64) (domain.UserStatus, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	val, err := c.client.Get(ctx, StatusKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return domain.UserStatus(val), true, nil
}

// StatusWriter escribe en la cache después del commit. Las fallas se
// registran y no interrumpen la operación.
type StatusWriter struct {
	cache  StatusCache
	logger *zap.Logger
}

func NewStatusWriter(cache StatusCache, logger *zap.Logger) *StatusWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusWriter{cache: cache, logger: logger}
}

func (w *StatusWriter) Put(ctx context.Context, userID int64, enabled bool) {
	if w == nil || w.cache == nil {
		return
	}
	status := domain.StatusOf(enabled)
	if err := w.cache.Save(context.WithoutCancel(ctx), userID, status); err != nil {
		w.logger.Error("status cache write failed",
			zap.Int64("user_id", userID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}

func (w *StatusWriter) Remove(ctx context.Context, userID int64) {
	if w == nil || w.cache == nil {
		return
	}
	if err := w.cache.Delete(context.WithoutCancel(ctx), userID); err != nil {
		w.logger.Error("status cache delete failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}
