package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     LogConfig
		wantErr bool
	}{
		{name: "default", cfg: DefaultLogConfig()},
		{name: "json stdout", cfg: LogConfig{Level: "info", Format: "json", Output: "stdout"}},
		{name: "debug console", cfg: LogConfig{Level: "debug", Format: "console"}},
		{name: "invalid level", cfg: LogConfig{Level: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
			logger.Debug("debug")
			logger.Info("info", String("k", "v"))
		})
	}
}

func TestDefaultLogConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultLogConfig()
	assert.Equal(t, "warn", cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.Equal(t, "stderr", cfg.Output)
}

func TestLogger_WithContext(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewLoggerFromZap(zap.New(core))

	ctx := ContextWithConnID(context.Background(), "conn-1")
	assert.Equal(t, "conn-1", ConnIDFromContext(ctx))

	logger.WithContext(ctx).Info("accepted")
	logger.WithContext(context.Background()).Info("plain")
	logger.With(String("vector", "http://a.example")).Warn("chosen")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "conn-1", entries[0].ContextMap()["conn_id"])
	assert.NotContains(t, entries[1].ContextMap(), "conn_id")
	assert.Equal(t, "http://a.example", entries[2].ContextMap()["vector"])
}

func TestConnIDFromContext_Missing(t *testing.T) {
	t.Parallel()

	assert.Empty(t, ConnIDFromContext(context.Background()))
}

func TestNewLoggerFromZap_Nil(t *testing.T) {
	t.Parallel()

	logger := NewLoggerFromZap(nil)
	assert.NotNil(t, logger)
	logger.Info("discarded")
	assert.NotNil(t, NopLogger())
}

func TestGlobalLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	SetGlobalLogger(NewLoggerFromZap(zap.New(core)))
	t.Cleanup(func() { SetGlobalLogger(nil) })

	L().Info("global")
	assert.Equal(t, 1, logs.Len())

	SetGlobalLogger(nil)
	assert.NotNil(t, GetGlobalLogger())
}
