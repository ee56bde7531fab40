package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := zap.New(core)

	ctx := ToContext(context.Background(), l.With(Provider("github")))
	From(ctx).Info("callback", Phase("completed"), DurationMs(1500*time.Microsecond), Err(errors.New("x")))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	fields := entry.ContextMap()
	assert.Equal(t, "github", fields["provider"])
	assert.Equal(t, "completed", fields["phase"])
	assert.Contains(t, fields, "error")
}

func TestFrom_FallsBackToSingleton(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := L()
	Replace(zap.New(core))
	t.Cleanup(func() { Replace(prev) })

	From(context.Background()).Info("hello")
	assert.Equal(t, 1, logs.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("WARN"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
	assert.True(t, isProd("production"))
	assert.False(t, isProd("dev"))
}
