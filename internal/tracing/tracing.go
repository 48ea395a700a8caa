// Package tracing configures the OpenTelemetry tracer used around process
// invocations.
package tracing

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Span names.
const (
	SpanExec           = "process.exec"
	SpanExecObservable = "process.exec_observable"
)

// Config configures the tracing subsystem.
type Config struct {
	// Enabled controls whether tracing is active. When false a no-op tracer
	// is returned.
	Enabled bool

	// Writer receives JSON spans from the stdout exporter.
	Writer io.Writer

	// ServiceName identifies this service in traces.
	ServiceName string
}

// DefaultConfig returns tracing disabled.
func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		ServiceName: "pyexec",
	}
}

// Provider owns the tracer provider and its exporter.
type Provider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewProvider creates a provider for cfg.
func NewProvider(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{tracer: Noop()}, nil
	}
	if cfg.Writer == nil {
		return nil, fmt.Errorf("tracing enabled without a writer")
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(cfg.Writer))
	if err != nil {
		return nil, fmt.Errorf("create stdout exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
		)),
	)

	return &Provider{
		provider: tp,
		tracer:   tp.Tracer(cfg.ServiceName),
	}, nil
}

// Tracer returns the configured tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Shutdown flushes and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.provider == nil {
		return nil
	}
	return p.provider.Shutdown(ctx)
}

// Noop returns a tracer that records nothing.
func Noop() trace.Tracer {
	return noop.NewTracerProvider().Tracer("noop")
}
