// Package cache provee el ledger de states consumidos con soporte multi-backend.
//
// Soporta:
//   - Memory (in-process, go-cache; una sola instancia)
//   - Redis (distribuido, varias instancias detrás de un balanceador)
package cache

import (
	"context"
	"fmt"
	"time"
)

// Client define las operaciones mínimas que necesita el ledger.
type Client interface {
	// SetNX guarda value solo si key no existe. Retorna true si la guardó.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error
}

// Config configuración para crear un cliente de cache.
type Config struct {
	Driver   string // "memory" | "redis"
	Addr     string // host:port (redis)
	Password string
	DB       int
	Prefix   string // Prefijo para todas las keys
}

// New crea un cliente de cache según la configuración.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		rc, err := NewRedis(cfg)
		if err != nil {
			return nil, err
		}
		return rc, nil
	case "memory", "":
		return NewMemory(cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("cache: unknown driver %q", cfg.Driver)
	}
}

func prefixed(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + ":" + k
}
