package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogProvider ships zap entries to the collector next to the spans.
// A disabled LogProvider leaves loggers untouched.
type LogProvider struct {
	provider    *sdklog.LoggerProvider
	serviceName string
	logger      *zap.Logger
}

// NewLogProvider exports log records over OTLP/gRPC to cfg.CollectorEndpoint
func NewLogProvider(ctx context.Context, cfg Config, logger *zap.Logger) (*LogProvider, error) {
	if !cfg.Enabled {
		return &LogProvider{serviceName: cfg.ServiceName, logger: logger}, nil
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp log exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("log resource: %w", err)
	}

	lp := installLogs(logger, cfg,
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(res),
	)
	logger.Info("Log export enabled", zap.String("collector_endpoint", cfg.CollectorEndpoint))
	return lp, nil
}

// NewLogProviderWithExporter exports every record synchronously to exporter
func NewLogProviderWithExporter(exporter sdklog.Exporter, cfg Config, logger *zap.Logger) *LogProvider {
	return installLogs(logger, cfg, sdklog.WithProcessor(sdklog.NewSimpleProcessor(exporter)))
}

func installLogs(logger *zap.Logger, cfg Config, opts ...sdklog.LoggerProviderOption) *LogProvider {
	provider := sdklog.NewLoggerProvider(opts...)
	global.SetLoggerProvider(provider)
	return &LogProvider{provider: provider, serviceName: cfg.ServiceName, logger: logger}
}

// Bridge returns base teed into the OTLP pipeline at base's level
func (lp *LogProvider) Bridge(base *zap.Logger) *zap.Logger {
	if lp.provider == nil {
		return base
	}
	otelCore := otelzap.NewCore(lp.serviceName, otelzap.WithLoggerProvider(lp.provider))
	leveled, err := zapcore.NewIncreaseLevelCore(otelCore, base.Level())
	if err == nil {
		otelCore = leveled
	}
	return base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, otelCore)
	}))
}

// Shutdown flushes pending records. The caller's ctx bounds the flush.
func (lp *LogProvider) Shutdown(ctx context.Context) error {
	if lp.provider == nil {
		return nil
	}
	lp.logger.Info("Flushing logs")
	if err := lp.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown log provider: %w", err)
	}
	return nil
}

func (lp *LogProvider) IsEnabled() bool {
	return lp.provider != nil
}
