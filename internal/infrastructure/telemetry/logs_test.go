package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type exportedRecord struct {
	body     string
	severity otellog.Severity
}

// recordingExporter keeps what it was asked to export
type recordingExporter struct {
	mu      sync.Mutex
	records []exportedRecord
}

func (e *recordingExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, exportedRecord{body: r.Body().AsString(), severity: r.Severity()})
	}
	return nil
}

func (e *recordingExporter) Shutdown(context.Context) error   { return nil }
func (e *recordingExporter) ForceFlush(context.Context) error { return nil }

func (e *recordingExporter) snapshot() []exportedRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]exportedRecord(nil), e.records...)
}

func TestNewLogProvider_Disabled(t *testing.T) {
	lp, err := NewLogProvider(context.Background(), Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, lp.IsEnabled())
	base := zap.NewNop()
	assert.Same(t, base, lp.Bridge(base))
	assert.NoError(t, lp.Shutdown(context.Background()))
}

func TestLogProvider_BridgeTeesEntries(t *testing.T) {
	exporter := &recordingExporter{}
	lp := NewLogProviderWithExporter(exporter, Config{ServiceName: "test"}, zap.NewNop())
	defer func() { _ = lp.Shutdown(context.Background()) }()
	require.True(t, lp.IsEnabled())

	core, local := observer.New(zapcore.InfoLevel)
	log := lp.Bridge(zap.New(core))

	log.Debug("below the base level")
	log.Warn("Relay publish failed", zap.String("type", "order_updated"))

	assert.Equal(t, 1, local.Len(), "the base core still receives entries")
	records := exporter.snapshot()
	require.Len(t, records, 1)
	assert.Equal(t, "Relay publish failed", records[0].body)
	assert.Equal(t, otellog.SeverityWarn, records[0].severity)
}
