// Package telemetry wires OpenTelemetry traces and metrics for tasker.
//
// It is off unless TASKER_OTEL_ENABLED=true, in which case spans and
// metrics go to stdout (TASKER_OTEL_STDOUT=true), to an OTLP/HTTP
// collector (OTEL_EXPORTER_OTLP_ENDPOINT), or to stdout when neither is
// set. OTEL_SERVICE_NAME overrides the service name.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const scope = "github.com/cloudsbay/tasker"

const (
	stdoutMetricInterval = 15 * time.Second
	otlpMetricInterval   = 30 * time.Second
)

// settings is the environment-derived exporter selection.
type settings struct {
	enabled         bool
	stdout          bool
	traceEndpoint   string
	metricsEndpoint string
	serviceName     string
}

func readSettings(serviceName string) settings {
	s := settings{
		enabled:       os.Getenv("TASKER_OTEL_ENABLED") == "true",
		stdout:        os.Getenv("TASKER_OTEL_STDOUT") == "true",
		traceEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		serviceName:   serviceName,
	}
	s.metricsEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
	if s.metricsEndpoint == "" {
		s.metricsEndpoint = s.traceEndpoint
	}
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		s.serviceName = name
	}
	// Enabled with nowhere to send: fall back to stdout.
	if s.enabled && !s.stdout && s.traceEndpoint == "" && s.metricsEndpoint == "" {
		s.stdout = true
	}
	return s
}

var (
	mu        sync.Mutex
	providers []interface{ Shutdown(context.Context) error }
)

// Enabled reports whether TASKER_OTEL_ENABLED=true.
func Enabled() bool {
	return readSettings("").enabled
}

// Init installs global tracer and meter providers. When telemetry is off
// it installs no-op providers.
func Init(ctx context.Context, serviceName, version string) error {
	s := readSettings(serviceName)
	if !s.enabled {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(s.serviceName),
			semconv.ServiceVersionKey.String(version),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return fmt.Errorf("telemetry resource: %w", err)
	}

	tp, err := newTracerProvider(ctx, s, res)
	if err != nil {
		return fmt.Errorf("telemetry traces: %w", err)
	}
	mp, err := newMeterProvider(ctx, s, res)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return fmt.Errorf("telemetry metrics: %w", err)
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	mu.Lock()
	providers = append(providers, tp, mp)
	mu.Unlock()
	return nil
}

func newTracerProvider(ctx context.Context, s settings, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	if s.stdout {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	if s.traceEndpoint != "" {
		exp, err := buildOTLPTraceExporter(ctx, s.traceEndpoint)
		if err != nil {
			return nil, fmt.Errorf("otlp: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

func newMeterProvider(ctx context.Context, s settings, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if s.stdout {
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(stdoutMetricInterval))))
	}
	if s.metricsEndpoint != "" {
		exp, err := buildOTLPMetricExporter(ctx, s.metricsEndpoint)
		if err != nil {
			return nil, fmt.Errorf("otlp: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(otlpMetricInterval))))
	}
	return sdkmetric.NewMeterProvider(opts...), nil
}

// Tracer returns a tracer for name, or for tasker when name is empty.
func Tracer(name string) trace.Tracer {
	if name == "" {
		name = scope
	}
	return otel.Tracer(name)
}

// Meter returns a meter for name, or for tasker when name is empty.
func Meter(name string) metric.Meter {
	if name == "" {
		name = scope
	}
	return otel.Meter(name)
}

// Shutdown flushes and stops every provider Init installed.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	ps := providers
	providers = nil
	mu.Unlock()

	var errs []error
	for _, p := range ps {
		errs = append(errs, p.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
