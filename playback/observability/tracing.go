// Package observability sets up OpenTelemetry tracing for trace fetches.
package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Supported exporters.
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// DefaultOTLPEndpoint is used when the otlp exporter has no endpoint configured.
const DefaultOTLPEndpoint = "localhost:4317"

// TracingConfig governs how tracing is initialised.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Exporter    string  `yaml:"exporter"` // stdout | otlp
	Endpoint    string  `yaml:"endpoint"` // used when Exporter == otlp
	SampleRatio float64 `yaml:"sample_ratio"`

	// Writer receives stdout-exporter output. Defaults to os.Stderr so spans
	// never interleave with command output on stdout.
	Writer io.Writer `yaml:"-"`
}

// Validate checks the exporter name and sample ratio.
func (c TracingConfig) Validate() error {
	switch strings.ToLower(c.Exporter) {
	case "", ExporterStdout, ExporterOTLP, "otlpgrpc":
	default:
		return fmt.Errorf("unsupported tracing exporter: %s", c.Exporter)
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("tracing sample_ratio must be in [0, 1], got %v", c.SampleRatio)
	}
	return nil
}

// ConfigFromEnv overlays TRACEPLAY_TRACING_* environment variables on base.
// Malformed values are ignored.
func ConfigFromEnv(base TracingConfig) TracingConfig {
	cfg := base
	if v := os.Getenv("TRACEPLAY_TRACING_ENABLED"); v != "" {
		cfg.Enabled = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("TRACEPLAY_TRACING_EXPORTER"); v != "" {
		cfg.Exporter = strings.ToLower(v)
	}
	if v := os.Getenv("TRACEPLAY_TRACING_SERVICE_NAME"); v != "" {
		cfg.ServiceName = v
	}
	if v := os.Getenv("TRACEPLAY_OTLP_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("TRACEPLAY_TRACING_SAMPLE_RATIO"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed >= 0 && parsed <= 1 {
			cfg.SampleRatio = parsed
		}
	}
	return cfg
}

// InitTracing installs the global tracer provider and propagators described by
// cfg and returns a shutdown function that flushes pending spans. When tracing is
// disabled a noop provider is installed and shutdown does nothing.
func InitTracing(ctx context.Context, cfg TracingConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.TraceContext{})
		logrus.Debug("tracing disabled; using noop tracer provider")
		return func(context.Context) error { return nil }, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tp, err := NewTracerProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	logrus.WithFields(logrus.Fields{
		"exporter":     cfg.Exporter,
		"service_name": cfg.ServiceName,
		"sampler":      fmt.Sprintf("parentbased_traceidratio_%0.2f", cfg.SampleRatio),
	}).Info("tracing enabled")

	return tp.Shutdown, nil
}

// NewTracerProvider builds an SDK tracer provider without installing it globally.
func NewTracerProvider(ctx context.Context, cfg TracingConfig) (*sdktrace.TracerProvider, error) {
	exp, err := exporterFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	service := cfg.ServiceName
	if service == "" {
		service = "traceplay"
	}
	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			attribute.String("service.name", service),
			attribute.String("service.namespace", "traceplay"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))
	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	), nil
}

func exporterFromConfig(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(cfg.Exporter) {
	case ExporterStdout, "":
		w := cfg.Writer
		if w == nil {
			w = os.Stderr
		}
		return stdouttrace.New(
			stdouttrace.WithWriter(w),
			stdouttrace.WithPrettyPrint(),
			stdouttrace.WithoutTimestamps(),
		)
	case ExporterOTLP, "otlpgrpc":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = DefaultOTLPEndpoint
		}
		client := otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
		return otlptrace.New(ctx, client)
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", cfg.Exporter)
	}
}

// ShutdownWithTimeout invokes shutdown with a bounded timeout, logging rather
// than returning any error.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error) {
	if shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logrus.Warnf("tracing shutdown failed: %v", err)
	}
}
