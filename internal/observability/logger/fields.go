package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

func RequestID(v string) zap.Field { return zap.String("request_id", v) }

func Method(v string) zap.Field { return zap.String("method", v) }

func Path(v string) zap.Field { return zap.String("path", v) }

func Status(v int) zap.Field { return zap.Int("status", v) }

func DurationMs(v time.Duration) zap.Field { return zap.Int64("duration_ms", v.Milliseconds()) }

func Bytes(v int) zap.Field { return zap.Int("bytes", v) }

func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }

// =================================================================================
// CAMPOS ESTÁNDAR - OAUTH
// =================================================================================

// Provider crea un campo para la key del provider ("github", "google", ...).
func Provider(v string) zap.Field { return zap.String("provider", v) }

// Phase crea un campo para la fase del flow (initiated, exchanging, ...).
func Phase(v string) zap.Field { return zap.String("phase", v) }

// Kind crea un campo para el tipo de error del flow.
func Kind(v string) zap.Field { return zap.String("error_kind", v) }

// Upstream crea un campo para el endpoint remoto (sin query string).
func Upstream(v string) zap.Field { return zap.String("upstream", v) }

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

func Component(v string) zap.Field { return zap.String("component", v) }

func Op(v string) zap.Field { return zap.String("op", v) }

func Err(err error) zap.Field { return zap.Error(err) }

func String(key, v string) zap.Field { return zap.String(key, v) }
