package observe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/MrWong99/telephonist/internal/config"
)

// ProviderConfig configures the OpenTelemetry SDK providers.
type ProviderConfig struct {
	ServiceName    string
	ServiceVersion string

	// TraceExporter selects where finished spans go. Empty means
	// [config.TraceNone].
	TraceExporter config.TraceExporter

	// SampleRatio is the share of root spans that are sampled.
	SampleRatio float64

	// Registerer receives the Prometheus collector that serves the metrics.
	// Default: [prometheus.DefaultRegisterer], which /metrics exposes.
	Registerer prometheus.Registerer

	// TraceWriter receives spans of the stdout exporter. Default: stderr,
	// since stdout may carry the console.
	TraceWriter io.Writer
}

// ProviderConfigFrom maps the telemetry section of the configuration.
func ProviderConfigFrom(cfg config.TelemetryConfig, version string) ProviderConfig {
	pc := ProviderConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version,
		TraceExporter:  cfg.TraceExporter,
		SampleRatio:    1,
	}
	if cfg.TraceSampleRatio != nil {
		pc.SampleRatio = *cfg.TraceSampleRatio
	}
	return pc
}

// Providers holds the SDK meter and tracer providers of the process.
type Providers struct {
	Meter  *sdkmetric.MeterProvider
	Tracer *sdktrace.TracerProvider
}

// NewProviders builds the providers without registering them globally.
// Metrics are bridged to Prometheus; spans are sampled by trace id ratio
// unless a remote parent already decided.
func NewProviders(ctx context.Context, cfg ProviderConfig) (*Providers, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "telephonist"
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}
	if cfg.TraceWriter == nil {
		cfg.TraceWriter = os.Stderr
	}

	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: resource: %w", err)
	}

	promExp, err := promexporter.New(promexporter.WithRegisterer(cfg.Registerer))
	if err != nil {
		return nil, fmt.Errorf("observe: prometheus exporter: %w", err)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(cfg.SampleRatio)),
	}
	switch cfg.TraceExporter {
	case config.TraceStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(cfg.TraceWriter))
		if err != nil {
			return nil, fmt.Errorf("observe: stdout trace exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	case "", config.TraceNone:
	default:
		return nil, fmt.Errorf("observe: unknown trace exporter %q", cfg.TraceExporter)
	}

	return &Providers{
		Meter:  sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(promExp)),
		Tracer: sdktrace.NewTracerProvider(tpOpts...),
	}, nil
}

// Sampler returns the sampler for ratio: a parent-based sampler whose roots
// are sampled by trace id. A ratio of 1 or more samples every root.
func Sampler(ratio float64) sdktrace.Sampler {
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// Install registers p as the global OTel providers.
func (p *Providers) Install() {
	otel.SetMeterProvider(p.Meter)
	otel.SetTracerProvider(p.Tracer)
}

// Shutdown flushes pending spans and closes both providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(p.Tracer.Shutdown(ctx), p.Meter.Shutdown(ctx))
}

// InitProvider builds the providers for cfg and installs them globally.
// Call [Providers.Shutdown] before exiting.
func InitProvider(ctx context.Context, cfg ProviderConfig) (*Providers, error) {
	p, err := NewProviders(ctx, cfg)
	if err != nil {
		return nil, err
	}
	p.Install()
	return p, nil
}
