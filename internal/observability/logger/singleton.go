package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu       sync.Mutex
	instance *zap.Logger
)

// Init inicializa el logger singleton. Solo la primera llamada tiene efecto.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if instance == nil {
		instance = build(cfg)
	}
}

// L retorna el logger singleton.
// Si Init() no fue llamado, crea un logger por defecto (dev, info).
func L() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if instance == nil {
		instance = build(Config{Env: "dev", Level: "info"})
	}
	return instance
}

// Replace swaps the singleton; tests use it with zap.NewNop or an observer core.
func Replace(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	instance = l
}

// Sync flushea cualquier buffer pendiente.
func Sync() error {
	mu.Lock()
	l := instance
	mu.Unlock()
	if l != nil {
		return l.Sync()
	}
	return nil
}
