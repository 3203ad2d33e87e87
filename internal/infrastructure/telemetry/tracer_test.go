package telemetry_test

import (
	"context"
	"testing"

	"github.com/clinic/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zaptest"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:     false,
		ServiceName: "clinic-test",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.ForceFlush(ctx))
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{ServiceName: "clinic-test"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	// the no-op meter still hands out working instruments
	metrics, err := telemetry.NewLedgerMetrics(mp.Meter("test"))
	require.NoError(t, err)
	assert.NotNil(t, metrics)
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestSampler(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  string
	}{
		{"always", 1.0, sdktrace.AlwaysSample().Description()},
		{"above one", 2.0, sdktrace.AlwaysSample().Description()},
		{"never", 0.0, sdktrace.NeverSample().Description()},
		{"ratio", 0.25, sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.25)).Description()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, telemetry.Sampler(tt.ratio).Description())
		})
	}
}
