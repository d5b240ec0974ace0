package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitTracing_Disabled_InstallsNoop(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{Enabled: false})

	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
	_, isSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.False(t, isSDK)
}

func TestInitTracing_Stdout_ExportsSpansOnShutdown(t *testing.T) {
	// GIVEN stdout tracing into a buffer
	var buf bytes.Buffer
	cfg := TracingConfig{Enabled: true, ServiceName: "traceplay-test", Exporter: ExporterStdout, SampleRatio: 1, Writer: &buf}
	shutdown, err := InitTracing(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _, _ = InitTracing(context.Background(), TracingConfig{}) }()

	// WHEN a span ends and the provider shuts down
	_, span := otel.Tracer("test").Start(context.Background(), "fetch/kmeans")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	// THEN the exported span names the operation and service
	assert.Contains(t, buf.String(), "fetch/kmeans")
	assert.Contains(t, buf.String(), "traceplay-test")
}

func TestInitTracing_UnknownExporter_Error(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin", SampleRatio: 1})
	assert.ErrorContains(t, err, "unsupported tracing exporter")
}

func TestTracingConfig_Validate_SampleRatio(t *testing.T) {
	assert.NoError(t, TracingConfig{Exporter: "otlp", SampleRatio: 0.5}.Validate())
	assert.Error(t, TracingConfig{SampleRatio: 1.5}.Validate())
	assert.Error(t, TracingConfig{SampleRatio: -0.1}.Validate())
}

func TestNewTracerProvider_OTLP_BuildsLazily(t *testing.T) {
	// The gRPC exporter connects lazily, so construction succeeds without a collector.
	tp, err := NewTracerProvider(context.Background(), TracingConfig{Exporter: ExporterOTLP, Endpoint: "127.0.0.1:1", SampleRatio: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = tp.Shutdown(ctx)
}

func TestConfigFromEnv_OverlaysBase(t *testing.T) {
	t.Setenv("TRACEPLAY_TRACING_ENABLED", "TRUE")
	t.Setenv("TRACEPLAY_TRACING_EXPORTER", "OTLP")
	t.Setenv("TRACEPLAY_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("TRACEPLAY_TRACING_SAMPLE_RATIO", "7")

	cfg := ConfigFromEnv(TracingConfig{ServiceName: "base", SampleRatio: 0.25})

	assert.True(t, cfg.Enabled)
	assert.Equal(t, ExporterOTLP, cfg.Exporter)
	assert.Equal(t, "collector:4317", cfg.Endpoint)
	assert.Equal(t, "base", cfg.ServiceName)
	assert.Equal(t, 0.25, cfg.SampleRatio, "out-of-range ratio is ignored")
}

func TestShutdownWithTimeout_SwallowsErrors(t *testing.T) {
	called := false
	ShutdownWithTimeout(context.Background(), func(ctx context.Context) error {
		called = true
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return errors.New("flush failed")
	})
	assert.True(t, called)

	ShutdownWithTimeout(context.Background(), nil)
}
