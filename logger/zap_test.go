package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("info"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestZapLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))

	l.Warn("submit failed", map[string]any{
		"checkoutId": "chk_1",
		"error":      errors.New("boom"),
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "submit failed", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "chk_1", ctx["checkoutId"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestOrNoop(t *testing.T) {
	assert.IsType(t, NoopLogger{}, OrNoop(nil))

	z := FromZap(zap.NewNop())
	assert.Same(t, z, OrNoop(z))
}
