package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestNewTracerProviderWithExporter(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := NewTracerProviderWithExporter(exporter, Config{SamplingRatio: 1.0, ServiceName: "test"}, zap.NewNop())
	defer func() { _ = tp.Shutdown(context.Background()) }()

	assert.True(t, tp.IsEnabled())

	_, span := tp.Tracer("fulfillment").Start(context.Background(), "MarkPacked")
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "MarkPacked", spans[0].Name)
}

func TestNewSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), NewSampler(1.0).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), NewSampler(0).Description())
	assert.Contains(t, NewSampler(0.5).Description(), "TraceIDRatioBased")
}
