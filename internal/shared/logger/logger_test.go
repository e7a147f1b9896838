package logger

import (
	"bytes"
	"context"
	"testing"

	"content-sync/internal/shared/contextkeys"

	"github.com/stretchr/testify/assert"
)

func TestLoggerInterface_Contract(t *testing.T) {
	var _ Logger = NewLogger()
	var _ Logger = NewLoggerWithConfig("logrus", "info", "json")
	var _ Logger = NewLoggerWithConfig("zap", "debug", "text")
	var _ Logger = NewNopLogger()
}

func TestNewLogger_SelectsBackendFromEnv(t *testing.T) {
	t.Setenv("LOG_BACKEND", "zap")
	_, ok := NewLogger().(*ZapLogger)
	assert.True(t, ok)

	t.Setenv("LOG_BACKEND", "")
	_, ok = NewLogger().(*LogrusLogger)
	assert.True(t, ok)
}

func TestLogrusLogger_WithFieldsAndContext(t *testing.T) {
	logger := NewLoggerWithConfig("logrus", "debug", "text")
	logger2 := logger.WithFields(map[string]interface{}{"foo": "bar"})
	assert.NotNil(t, logger2)

	ctx := context.WithValue(context.Background(), contextkeys.CollectionKey, "poems")
	logger3 := logger.WithContext(ctx)
	assert.NotNil(t, logger3)
}

func TestContextFields(t *testing.T) {
	ctx := context.Background()
	ctx = context.WithValue(ctx, contextkeys.CollectionKey, "invites")
	ctx = context.WithValue(ctx, contextkeys.OperationKey, "select")
	ctx = context.WithValue(ctx, contextkeys.StoreIDKey, "")

	fields := contextFields(ctx)
	assert.Equal(t, "invites", fields["collection"])
	assert.Equal(t, "select", fields["operation"])
	_, hasStore := fields["store_id"]
	assert.False(t, hasStore, "empty values are not logged")
}

func TestZapLogger_WithComponent(t *testing.T) {
	logger := NewZapLogger("not-a-level", "json")
	logger2 := logger.WithComponent("test-component")
	assert.NotNil(t, logger2)
	logger2.Infof("hello %s", "world")
}

func TestOrNop(t *testing.T) {
	assert.Equal(t, NopLogger{}, OrNop(nil))
	l := NewNopLogger()
	assert.Equal(t, l, OrNop(l))
}

func TestNewWriterLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriterLogger(&buf, "warn")
	log.Info("hidden")
	log.WithComponent("cli").Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "component=cli")
}
