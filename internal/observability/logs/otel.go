// Package logs ships zap log entries to an OpenTelemetry collector through
// the otelzap bridge.
package logs

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds log export configuration
type Config struct {
	ServiceName string
	// Endpoint is the OTLP/HTTP collector host:port. Empty disables export.
	Endpoint string
	Insecure bool
}

// Provider wraps the log provider
type Provider struct {
	lp       log.LoggerProvider
	shutdown func(context.Context) error
}

// Init builds the log provider. With no endpoint it is a no-op provider and
// Attach leaves loggers untouched.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Endpoint == "" {
		return &Provider{lp: noop.NewLoggerProvider()}, nil
	}

	opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploghttp.WithInsecure())
	}
	exporter, err := otlploghttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create log exporter: %w", err)
	}

	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(resource.NewSchemaless(semconv.ServiceName(cfg.ServiceName))),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	return &Provider{lp: lp, shutdown: lp.Shutdown}, nil
}

// Enabled reports whether entries are exported
func (p *Provider) Enabled() bool {
	return p.shutdown != nil
}

// Attach tees logger into the OTel bridge, keeping entries at or above
// level. The original core keeps writing locally.
func (p *Provider) Attach(logger *zap.Logger, scope string, level zapcore.Level) *zap.Logger {
	if !p.Enabled() {
		return logger
	}
	bridge, err := zapcore.NewIncreaseLevelCore(otelzap.NewCore(scope, otelzap.WithLoggerProvider(p.lp)), level)
	if err != nil {
		logger.Warn("otel log bridge disabled", zap.Error(err))
		return logger
	}
	return logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, bridge)
	}))
}

// Shutdown flushes pending log records
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.shutdown != nil {
		return p.shutdown(ctx)
	}
	return nil
}
