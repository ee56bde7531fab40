package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryClient implementa Client sobre go-cache. Add es atómico, así que dos
// callbacks concurrentes con el mismo state no pueden ganar ambos.
type memoryClient struct {
	prefix string
	c      *gocache.Cache
}

// NewMemory crea un cliente de cache en memoria. Las entradas expiradas se
// limpian cada minuto.
func NewMemory(prefix string) *memoryClient {
	return &memoryClient{
		prefix: prefix,
		c:      gocache.New(gocache.NoExpiration, time.Minute),
	}
}

func (m *memoryClient) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	if err := m.c.Add(prefixed(m.prefix, key), value, ttl); err != nil {
		// go-cache solo falla Add si la key ya existe y no expiró
		return false, nil
	}
	return true, nil
}

func (m *memoryClient) Ping(context.Context) error { return nil }

func (m *memoryClient) Close() error {
	m.c.Flush()
	return nil
}
