package logs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDisabledProviderLeavesLoggerAlone(t *testing.T) {
	p, err := Init(context.Background(), Config{ServiceName: "test"})
	require.NoError(t, err)
	assert.False(t, p.Enabled())

	logger := zap.NewNop()
	assert.Same(t, logger, p.Attach(logger, "test", zapcore.InfoLevel))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestAttachKeepsLocalCore(t *testing.T) {
	p, err := Init(context.Background(), Config{ServiceName: "test", Endpoint: "127.0.0.1:1", Insecure: true})
	require.NoError(t, err)
	require.True(t, p.Enabled())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_ = p.Shutdown(ctx)
	})

	core, local := observer.New(zapcore.DebugLevel)
	logger := p.Attach(zap.New(core), "test", zapcore.InfoLevel)
	logger.Info("order created", zap.String("order_id", "ORD-1"))

	require.Equal(t, 1, local.Len())
	assert.Equal(t, "ORD-1", local.All()[0].ContextMap()["order_id"])
}
