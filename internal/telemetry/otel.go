package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	ServiceVersion = "0.1.0"
	ExportTimeout  = 30 * time.Second
	MaxQueueSize   = 2048

	tracesPath = "/v1/traces"
)

// SetupTracing installs the global tracer provider. With an empty endpoint the
// global no-op provider stays in place and shutdown does nothing.
func SetupTracing(ctx context.Context, serviceName, endpoint string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if endpoint == "" {
		return noop, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(ServiceVersion),
		),
	)
	if err != nil {
		return noop, fmt.Errorf("create resource: %w", err)
	}

	opts, err := exporterOptions(endpoint)
	if err != nil {
		return noop, err
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return noop, fmt.Errorf("otlp trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter,
			sdktrace.WithExportTimeout(ExportTimeout),
			sdktrace.WithMaxQueueSize(MaxQueueSize),
		)),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

type collector struct {
	host     string
	path     string
	insecure bool
}

// parseEndpoint accepts the OTEL_EXPORTER_OTLP_ENDPOINT base URL
// (http://collector:4318) or a bare host:port, which is sent plaintext.
func parseEndpoint(endpoint string) (collector, error) {
	if !strings.Contains(endpoint, "://") {
		return collector{host: endpoint, path: tracesPath, insecure: true}, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return collector{}, fmt.Errorf("otlp endpoint: %w", err)
	}
	if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return collector{}, fmt.Errorf("otlp endpoint %q: want http(s)://host:port", endpoint)
	}
	return collector{
		host:     u.Host,
		path:     strings.TrimSuffix(u.Path, "/") + tracesPath,
		insecure: u.Scheme == "http",
	}, nil
}

func exporterOptions(endpoint string) ([]otlptracehttp.Option, error) {
	c, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(c.host), otlptracehttp.WithURLPath(c.path)}
	if c.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts, nil
}
