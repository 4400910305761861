package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"b3collect/internal/config"
)

const (
	ServiceVersion = "1.0.0"
	MeterName      = "b3collect"
)

// Telemetry holds the OpenTelemetry providers of one collector run
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Registry       *prometheus.Registry
	Metrics        *CollectionMetrics

	metricsFile string
	traceOut    io.Closer
	logger      *slog.Logger
}

// InitializeTelemetry sets up tracing and metrics for a job.
// Metrics always go to a private Prometheus registry; traces go to stdout,
// a file, or nowhere depending on cfg.TraceExporter.
func InitializeTelemetry(cfg config.TelemetryConfig, job string, logger *slog.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = GetLogger()
	}
	ctx := context.Background()

	res, err := createResource(cfg, job)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	t := &Telemetry{
		metricsFile: cfg.MetricsFile,
		logger:      logger,
	}

	if err := t.initializeTracing(cfg, res); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if err := t.initializeMetrics(res); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	logger.InfoContext(ctx, "Telemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.String("job", job),
		slog.String("trace_exporter", cfg.TraceExporter),
		slog.String("metrics_file", cfg.MetricsFile))

	return t, nil
}

// createResource creates the OpenTelemetry resource
func createResource(cfg config.TelemetryConfig, job string) (*resource.Resource, error) {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(ServiceVersion),
		attribute.String("b3collect.job", job),
		attribute.String("service.instance.id", generateInstanceID()),
	), nil
}

func (t *Telemetry) initializeTracing(cfg config.TelemetryConfig, res *resource.Resource) error {
	if cfg.TraceExporter != "stdout" {
		t.Tracer = noop.NewTracerProvider().Tracer(MeterName)
		return nil
	}

	var out io.Writer = os.Stdout
	if cfg.TraceFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.TraceFile), 0755); err != nil {
			return fmt.Errorf("failed to create trace directory: %w", err)
		}
		file, err := os.OpenFile(cfg.TraceFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open trace file: %w", err)
		}
		t.traceOut = file
		out = file
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(out))
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	t.TracerProvider = tp
	t.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(ServiceVersion))
	otel.SetTracerProvider(tp)

	return nil
}

func (t *Telemetry) initializeMetrics(res *resource.Resource) error {
	t.Registry = prometheus.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(t.Registry))
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	t.MeterProvider = mp
	t.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(ServiceVersion))

	metrics, err := NewCollectionMetrics(t.Meter)
	if err != nil {
		return err
	}
	t.Metrics = metrics
	return nil
}

// WriteMetricsFile writes the gathered metrics in the Prometheus text format
// to the configured metrics file. It is a no-op without one.
func (t *Telemetry) WriteMetricsFile() error {
	if t.metricsFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(t.metricsFile), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(t.metricsFile, t.Registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	t.logger.Info("Metrics written", slog.String("file", t.metricsFile))
	return nil
}

// Shutdown flushes metrics to the textfile and shuts the providers down
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error

	if err := t.WriteMetricsFile(); err != nil {
		errs = append(errs, err)
	}

	if t.TracerProvider != nil {
		if err := t.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if t.MeterProvider != nil {
		if err := t.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if t.traceOut != nil {
		if err := t.traceOut.Close(); err != nil {
			errs = append(errs, fmt.Errorf("trace file close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}
	return nil
}

// CollectionMetrics are the instruments recorded by the collection runners
type CollectionMetrics struct {
	FetchOutcomes  metric.Int64Counter
	FilesWritten   metric.Int64Counter
	RowsWritten    metric.Int64Counter
	WindowsSkipped metric.Int64Counter
	WindowDuration metric.Float64Histogram
}

// NewCollectionMetrics creates the collection instruments on meter
func NewCollectionMetrics(meter metric.Meter) (*CollectionMetrics, error) {
	fetchOutcomes, err := meter.Int64Counter(
		"b3collect_fetch_outcomes_total",
		metric.WithDescription("Per-item fetch results by dataset and status"),
	)
	if err != nil {
		return nil, err
	}

	filesWritten, err := meter.Int64Counter(
		"b3collect_files_written_total",
		metric.WithDescription("Output files written"),
	)
	if err != nil {
		return nil, err
	}

	rowsWritten, err := meter.Int64Counter(
		"b3collect_rows_written_total",
		metric.WithDescription("Data rows written to output files"),
	)
	if err != nil {
		return nil, err
	}

	windowsSkipped, err := meter.Int64Counter(
		"b3collect_windows_skipped_total",
		metric.WithDescription("Windows that produced no output file"),
	)
	if err != nil {
		return nil, err
	}

	windowDuration, err := meter.Float64Histogram(
		"b3collect_window_duration_seconds",
		metric.WithDescription("Time spent collecting one window"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &CollectionMetrics{
		FetchOutcomes:  fetchOutcomes,
		FilesWritten:   filesWritten,
		RowsWritten:    rowsWritten,
		WindowsSkipped: windowsSkipped,
		WindowDuration: windowDuration,
	}, nil
}

// RecordFetch counts one per-item fetch result. Safe on a nil receiver.
func (m *CollectionMetrics) RecordFetch(ctx context.Context, dataset, status string) {
	if m == nil {
		return
	}
	m.FetchOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("dataset", dataset),
		attribute.String("status", status),
	))
}

// RecordWindow records the duration of one window and whether it produced a file
func (m *CollectionMetrics) RecordWindow(ctx context.Context, dataset string, d time.Duration, rows int, written bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("dataset", dataset))
	m.WindowDuration.Record(ctx, d.Seconds(), attrs)
	if !written {
		m.WindowsSkipped.Add(ctx, 1, attrs)
		return
	}
	m.FilesWritten.Add(ctx, 1, attrs)
	m.RowsWritten.Add(ctx, int64(rows), attrs)
}

// generateInstanceID generates a unique instance identifier
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// TraceIDFromContext extracts trace ID from context for logging correlation
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
