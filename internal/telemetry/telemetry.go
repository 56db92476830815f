// Package telemetry installs the global OpenTelemetry providers. Metrics are
// always bridged into the Prometheus registry served on /metrics; traces and
// logs are exported over OTLP/gRPC only when a collector endpoint is set.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	defaultServiceName = "signup-notifier"
	shutdownTimeout    = 5 * time.Second
)

// Options configures the OpenTelemetry providers.
type Options struct {
	// Endpoint is the OTLP/gRPC collector, either host:port or a URL such as
	// http://otel-collector:4317. Empty disables trace and log export.
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	// Registerer receives the OTel metrics bridge. Defaults to
	// prometheus.DefaultRegisterer, which backs /metrics.
	Registerer prometheus.Registerer
	Logger     *slog.Logger
}

// Providers holds the installed providers.
type Providers struct {
	Tracer trace.TracerProvider
	Meter  metric.MeterProvider
	// LogHandler forwards slog records to the OTLP log exporter. It is nil
	// when no endpoint is configured.
	LogHandler slog.Handler

	shutdowns []func(context.Context) error
}

// Shutdown flushes pending telemetry and stops every provider.
func (p *Providers) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	for i := len(p.shutdowns) - 1; i >= 0; i-- {
		errs = append(errs, p.shutdowns[i](ctx))
	}
	return errors.Join(errs...)
}

// Init installs the global TracerProvider, MeterProvider and propagator, and
// the global LoggerProvider when an endpoint is set.
func Init(ctx context.Context, opts Options) (*Providers, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = defaultServiceName
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	// NewSchemaless avoids schema URL conflicts with resource.Default().
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", opts.ServiceName),
			attribute.String("service.version", opts.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OTel resource: %w", err)
	}

	p := &Providers{}
	ok := false
	defer func() {
		if !ok {
			_ = p.Shutdown(context.Background())
		}
	}()
	exporting := opts.Endpoint != ""

	promExporter, err := otelprom.New(otelprom.WithRegisterer(opts.Registerer))
	if err != nil {
		return nil, fmt.Errorf("creating Prometheus metrics bridge: %w", err)
	}
	meterOpts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	}
	if exporting {
		metricExporter, err := newMetricExporter(ctx, opts.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("creating OTLP metric exporter: %w", err)
		}
		meterOpts = append(meterOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)))
	}
	mp := sdkmetric.NewMeterProvider(meterOpts...)
	p.Meter = mp
	p.shutdowns = append(p.shutdowns, mp.Shutdown)

	if !exporting {
		p.Tracer = noop.NewTracerProvider()
		otel.SetMeterProvider(mp)
		otel.SetTracerProvider(p.Tracer)
		ok = true
		return p, nil
	}

	traceExporter, err := newTraceExporter(ctx, opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter),
	)
	p.Tracer = tp
	p.shutdowns = append(p.shutdowns, tp.Shutdown)

	logExporter, err := newLogExporter(ctx, opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP log exporter: %w", err)
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
	)
	p.LogHandler = otelslog.NewHandler(opts.ServiceName, otelslog.WithLoggerProvider(lp))
	p.shutdowns = append(p.shutdowns, lp.Shutdown)

	// Globals are only installed once every provider exists.
	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)
	global.SetLoggerProvider(lp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	// Route OTel internal errors (e.g. export failures) through slog.
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		log.Warn("OpenTelemetry internal error", "error", err)
	}))

	log.Info("OpenTelemetry export initialized",
		"endpoint", opts.Endpoint,
		"service_name", opts.ServiceName,
	)
	ok = true
	return p, nil
}

// Exporter constructors, replaced in tests.
var (
	newTraceExporter = func(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
		return otlptracegrpc.New(ctx, traceEndpoint(endpoint))
	}
	newMetricExporter = func(ctx context.Context, endpoint string) (sdkmetric.Exporter, error) {
		return otlpmetricgrpc.New(ctx, metricEndpoint(endpoint))
	}
	newLogExporter = func(ctx context.Context, endpoint string) (sdklog.Exporter, error) {
		return otlploggrpc.New(ctx, logEndpoint(endpoint))
	}
)

func hasScheme(endpoint string) bool {
	return strings.Contains(endpoint, "://")
}

func traceEndpoint(endpoint string) otlptracegrpc.Option {
	if hasScheme(endpoint) {
		return otlptracegrpc.WithEndpointURL(endpoint)
	}
	return otlptracegrpc.WithEndpoint(endpoint)
}

func metricEndpoint(endpoint string) otlpmetricgrpc.Option {
	if hasScheme(endpoint) {
		return otlpmetricgrpc.WithEndpointURL(endpoint)
	}
	return otlpmetricgrpc.WithEndpoint(endpoint)
}

func logEndpoint(endpoint string) otlploggrpc.Option {
	if hasScheme(endpoint) {
		return otlploggrpc.WithEndpointURL(endpoint)
	}
	return otlploggrpc.WithEndpoint(endpoint)
}
