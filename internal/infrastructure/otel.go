package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	ServiceName    = "csst"
	ServiceVersion = "1.0.0"
	MeterName      = "csstcli"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	TraceExporter  string // "stdout" or "none"
	// TraceWriter receives stdout spans, os.Stderr when nil
	TraceWriter   io.Writer
	EnableMetrics bool
}

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	// Registry gathers the metrics exported through the Prometheus reader
	Registry *promclient.Registry
	Logger   *slog.Logger
}

// DefaultOTelConfig returns tracing off and metrics on
func DefaultOTelConfig() *OTelConfig {
	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: ServiceVersion,
		TraceExporter:  "none",
		EnableMetrics:  true,
	}
}

// InitializeOTel sets up tracing and metrics and installs them as the
// global providers
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx := context.Background()

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.ServiceInstanceID(instanceID()),
	)

	providers := &OTelProviders{Logger: logger}
	if err := initializeTracing(cfg, res, providers); err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	if err := initializeMetrics(cfg, res, providers); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	logger.DebugContext(ctx, "telemetry ready",
		slog.String("trace_exporter", cfg.TraceExporter),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))
	return providers, nil
}

func initializeTracing(cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.TraceExporter {
	case "", "none":
		providers.Tracer = tracenoop.NewTracerProvider().Tracer(MeterName)
		return nil
	case "stdout":
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	w := cfg.TraceWriter
	if w == nil {
		w = os.Stderr
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return fmt.Errorf("stdout trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetTracerProvider(tp)
	return nil
}

func initializeMetrics(cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	if !cfg.EnableMetrics {
		providers.Meter = otel.GetMeterProvider().Meter(MeterName)
		return nil
	}

	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return fmt.Errorf("prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	providers.Registry = registry
	providers.MeterProvider = mp
	providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetMeterProvider(mp)
	return nil
}

// WriteMetricsFile writes the gathered metrics in Prometheus text format,
// ready for the node exporter textfile collector
func (p *OTelProviders) WriteMetricsFile(path string) error {
	if p.Registry == nil {
		return errors.New("metrics are not enabled")
	}
	if err := promclient.WriteToTextfile(path, p.Registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

// Shutdown flushes pending spans and stops the providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error
	if tp := p.TracerProvider; tp != nil {
		errs = append(errs, wrapShutdown("tracer", tp.Shutdown(ctx)))
	}
	if mp := p.MeterProvider; mp != nil {
		errs = append(errs, wrapShutdown("meter", mp.Shutdown(ctx)))
	}
	return errors.Join(errs...)
}

func wrapShutdown(provider string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("shut down %s provider: %w", provider, err)
}

// instanceID names this process as host/pid
func instanceID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s/%d", host, os.Getpid())
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// BatchMetrics are the instruments of a batch run
type BatchMetrics struct {
	FilesTotal        metric.Int64Counter
	ReactorsTotal     metric.Int64Counter
	BucketsTotal      metric.Int64Counter
	ExperimentsStored metric.Int64Counter
	ArchivedTotal     metric.Int64Counter
	FileDuration      metric.Float64Histogram
}

// CreateBatchMetrics registers the batch instruments on meter
func CreateBatchMetrics(meter metric.Meter) (*BatchMetrics, error) {
	filesTotal, err := meter.Int64Counter("csst_files_processed",
		metric.WithDescription("Instrument export files handled, by outcome"))
	if err != nil {
		return nil, err
	}
	reactorsTotal, err := meter.Int64Counter("csst_reactors_processed",
		metric.WithDescription("Reactors bucketed"))
	if err != nil {
		return nil, err
	}
	bucketsTotal, err := meter.Int64Counter("csst_temperature_buckets",
		metric.WithDescription("Non-empty temperature buckets produced"))
	if err != nil {
		return nil, err
	}
	stored, err := meter.Int64Counter("csst_experiments_stored",
		metric.WithDescription("Experiments written to the store, by whether they were new"))
	if err != nil {
		return nil, err
	}
	archived, err := meter.Int64Counter("csst_archive_objects",
		metric.WithDescription("Raw exports written to the archive"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("csst_file_duration",
		metric.WithDescription("Time to handle one export file"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &BatchMetrics{
		FilesTotal:        filesTotal,
		ReactorsTotal:     reactorsTotal,
		BucketsTotal:      bucketsTotal,
		ExperimentsStored: stored,
		ArchivedTotal:     archived,
		FileDuration:      duration,
	}, nil
}

// RecordFile records one handled file. outcome is "ok" or an error type.
func (m *BatchMetrics) RecordFile(ctx context.Context, outcome string, duration time.Duration, reactors, buckets int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.FilesTotal.Add(ctx, 1, attrs)
	m.FileDuration.Record(ctx, duration.Seconds(), attrs)
	m.ReactorsTotal.Add(ctx, int64(reactors))
	m.BucketsTotal.Add(ctx, int64(buckets))
}

// RecordStored records a store write
func (m *BatchMetrics) RecordStored(ctx context.Context, added bool) {
	if m == nil {
		return
	}
	m.ExperimentsStored.Add(ctx, 1, metric.WithAttributes(attribute.Bool("added", added)))
}

// RecordArchived records a new archive object
func (m *BatchMetrics) RecordArchived(ctx context.Context, driver string) {
	if m == nil {
		return
	}
	m.ArchivedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("driver", driver)))
}
