package telemetry

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope used for orchestrator spans.
const TracerName = "github.com/tjfontaine/automation-orchestrator"

// TracerOption configures InitTracer.
type TracerOption func(*tracerConfig)

type tracerConfig struct {
	writer      io.Writer
	sampleRatio float64
	pretty      bool
}

// WithTraceWriter sends exported spans to w instead of stdout.
func WithTraceWriter(w io.Writer) TracerOption {
	return func(c *tracerConfig) {
		c.writer = w
		c.pretty = false
	}
}

// WithSampleRatio samples the given fraction of root spans. Values outside
// (0, 1] keep every span.
func WithSampleRatio(ratio float64) TracerOption {
	return func(c *tracerConfig) {
		c.sampleRatio = ratio
	}
}

// InitTracer installs a global tracer provider exporting to stdout and
// returns its shutdown function.
func InitTracer(serviceName string, logger *slog.Logger, opts ...TracerOption) (func(context.Context) error, error) {
	cfg := tracerConfig{pretty: true, sampleRatio: 1}
	for _, opt := range opts {
		opt(&cfg)
	}

	exporterOpts := []stdouttrace.Option{}
	if cfg.pretty {
		exporterOpts = append(exporterOpts, stdouttrace.WithPrettyPrint())
	}
	if cfg.writer != nil {
		exporterOpts = append(exporterOpts, stdouttrace.WithWriter(cfg.writer))
	}
	exporter, err := stdouttrace.New(exporterOpts...)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.sampleRatio > 0 && cfg.sampleRatio < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.sampleRatio))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)

	logger.Info("OpenTelemetry initialized",
		slog.String("service", serviceName),
		slog.Float64("sample_ratio", cfg.sampleRatio),
	)

	return tp.Shutdown, nil
}

// Tracer returns the orchestrator tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
