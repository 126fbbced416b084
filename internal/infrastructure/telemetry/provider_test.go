package telemetry_test

import (
	"context"
	"testing"

	"github.com/khata/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewProvider_Disabled(t *testing.T) {
	p, err := telemetry.NewProvider(context.Background(), telemetry.Config{ServiceName: "khata"}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, p.IsEnabled())
	assert.NotNil(t, p.Meter("test"))
	assert.False(t, p.LogCore(zapcore.InfoLevel).Enabled(zapcore.ErrorLevel))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_Enabled(t *testing.T) {
	// exporters connect lazily, so an unreachable collector is fine here
	p, err := telemetry.NewProvider(context.Background(), telemetry.Config{
		Enabled:           true,
		CollectorEndpoint: "127.0.0.1:4317",
		Insecure:          true,
		SamplingRatio:     1,
		ServiceName:       "khata",
		ServiceVersion:    "test",
		ExportLogs:        true,
	}, zap.NewNop())
	require.NoError(t, err)

	assert.True(t, p.IsEnabled())
	core := p.LogCore(zapcore.WarnLevel)
	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.ErrorLevel))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = p.Shutdown(ctx)
}
