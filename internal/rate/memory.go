package rate

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter: fixed window en proceso sobre go-cache. Sirve para una sola
// instancia; con varias réplicas usar RedisLimiter.
type MemoryLimiter struct {
	c      *gocache.Cache
	Max    int64
	Window time.Duration
	now    func() time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		c:      gocache.New(window, 2*window),
		Max:    int64(max),
		Window: window,
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	var hits int64 = 1
	if err := l.c.Add(key, int64(1), l.Window); err != nil {
		n, err := l.c.IncrementInt64(key, 1)
		if err != nil {
			// expiró entre Add e Increment: nueva ventana
			l.c.Set(key, int64(1), l.Window)
			n = 1
		}
		hits = n
	}

	var ttl time.Duration
	if _, exp, ok := l.c.GetWithExpiration(key); ok && !exp.IsZero() {
		ttl = exp.Sub(l.now())
	}
	return windowResult(hits, l.Max, ttl, l.Window), nil
}
