package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ResetThrottle limita cuántos códigos de restablecimiento se piden por email
// dentro de una ventana.
type ResetThrottle interface {
	Allow(ctx context.Context, mail string) bool
}

const resetThrottleScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

const resetThrottlePrefix = "reset:rl:"

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisResetThrottle struct {
	client redisEvaler
	window time.Duration
	max    int
	logger *zap.Logger
}

// NewRedisResetThrottle comparte el contador entre instancias. Si Redis falla
// deja pasar el pedido.
func NewRedisResetThrottle(client *redis.Client, window time.Duration, max int, logger *zap.Logger) ResetThrottle {
	if client == nil {
		return nil
	}
	return newRedisResetThrottle(client, window, max, logger)
}

func newRedisResetThrottle(client redisEvaler, window time.Duration, max int, logger *zap.Logger) *redisResetThrottle {
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisResetThrottle{client: client, window: window, max: max, logger: logger}
}

func (l *redisResetThrottle) Allow(ctx context.Context, mail string) bool {
	if l == nil || l.client == nil {
		return true
	}
	key := throttleKey(mail)
	if key == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	seconds := int(l.window.Seconds())
	if seconds <= 0 {
		seconds = 60
	}
	count, err := l.client.Eval(ctx, resetThrottleScript, []string{resetThrottlePrefix + key}, seconds).Int()
	if err != nil {
		l.logger.Warn("reset throttle unavailable", zap.Error(err))
		return true
	}
	return count <= l.max
}

type memoryResetThrottle struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryResetThrottle mantiene un token bucket por email en el proceso:
// max pedidos de ráfaga que se recargan a lo largo de window. Sirve cuando
// hay una sola instancia o no hay Redis.
func NewMemoryResetThrottle(window time.Duration, max int) ResetThrottle {
	return newMemoryResetThrottle(window, max)
}

func newMemoryResetThrottle(window time.Duration, max int) *memoryResetThrottle {
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &memoryResetThrottle{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		limit:    rate.Every(window / time.Duration(max)),
		burst:    max,
		ttl:      window,
		now:      time.Now,
	}
}

func (l *memoryResetThrottle) Allow(_ context.Context, mail string) bool {
	key := throttleKey(mail)
	if key == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	limiter, ok := l.limiters[key]
	if !ok {
		l.cleanup(now)
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = limiter
	}
	l.lastSeen[key] = now
	return limiter.AllowN(now, 1)
}

// cleanup descarta los emails sin pedidos durante una ventana completa; para
// entonces su bucket ya está lleno otra vez.
func (l *memoryResetThrottle) cleanup(now time.Time) {
	cutoff := now.Add(-l.ttl)
	for key, last := range l.lastSeen {
		if !last.After(cutoff) {
			delete(l.lastSeen, key)
			delete(l.limiters, key)
		}
	}
}

func throttleKey(mail string) string {
	return strings.ToLower(strings.TrimSpace(mail))
}
