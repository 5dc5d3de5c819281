package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/irfndi/celebrum-analytics/internal/config"
)

func TestNormalizeOTLPEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		hostport string
		urlPath  string
		insecure bool
		resolved string
		wantErr  bool
	}{
		{"default localhost", "http://localhost:4318", "localhost:4318", "/v1/traces", true, "http://localhost:4318/v1/traces", false},
		{"trailing slash base", "http://collector:4318/", "collector:4318", "/v1/traces", true, "http://collector:4318/v1/traces", false},
		{"already traces path", "http://collector:4318/v1/traces", "collector:4318", "/v1/traces", true, "http://collector:4318/v1/traces", false},
		{"custom base path", "https://otlp.example.com:4318/otlp", "otlp.example.com:4318", "/otlp/v1/traces", false, "https://otlp.example.com:4318/otlp/v1/traces", false},
		{"invalid no scheme", "collector:4318", "", "", true, "", true},
		{"unsupported scheme", "grpc://collector:4317", "", "", true, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hp, path, insecure, resolved, err := normalizeOTLPEndpoint(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hostport, hp)
			assert.Equal(t, tt.urlPath, path)
			assert.Equal(t, tt.insecure, insecure)
			assert.Equal(t, tt.resolved, resolved)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, ExporterOTLP, cfg.Exporter)
	assert.Equal(t, "http://localhost:4318", cfg.OTLPEndpoint)
	assert.Equal(t, ServiceName, cfg.ServiceName)
	assert.Equal(t, ServiceVersion, cfg.ServiceVersion)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.Equal(t, 5*time.Second, cfg.BatchTimeout)
	assert.Equal(t, 512, cfg.MaxExportBatch)
	assert.Equal(t, 2048, cfg.MaxQueueSize)
}

func TestFromConfig(t *testing.T) {
	tc := FromConfig(config.TelemetryConfig{Enabled: true, Exporter: "stdout", SampleRate: 0.25}, "production")
	assert.True(t, tc.Enabled)
	assert.Equal(t, ExporterStdout, tc.Exporter)
	assert.Equal(t, 0.25, tc.SampleRate)
	assert.Equal(t, "production", tc.Environment)
	assert.Equal(t, ServiceName, tc.ServiceName)
	assert.Equal(t, "http://localhost:4318", tc.OTLPEndpoint)

	tc = FromConfig(config.TelemetryConfig{}, "")
	assert.False(t, tc.Enabled)
	assert.Equal(t, "development", tc.Environment)
}

func TestTracerGetters(t *testing.T) {
	assert.NotNil(t, GetTracer("test-tracer"))
	assert.NotNil(t, GetPipelineTracer())
	assert.NotNil(t, GetCacheTracer())
	assert.NotNil(t, GetExternalTracer())
}

func TestSpanHelpers(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

	ctx, span := StartSpan(context.Background(), tracer, "test-span",
		StringAttribute("asset", "bitcoin"))
	assert.NotNil(t, ctx)

	SetSpanAttributes(span, Int64Attribute("rows", 42), IntAttribute("window", 14))
	RecordError(span, nil)
	span.End()

	_, failed := StartSpan(context.Background(), tracer, "failed-span")
	RecordError(failed, assert.AnError)
	failed.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Len(t, spans[0].Attributes(), 3)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, assert.AnError.Error(), spans[1].Status().Description)
	assert.Len(t, spans[1].Events(), 1)
}

func TestAttributeHelpers(t *testing.T) {
	strAttr := StringAttribute("key", "value")
	assert.Equal(t, attribute.Key("key"), strAttr.Key)
	assert.Equal(t, "value", strAttr.Value.AsString())

	sliceAttr := StringSliceAttribute("key", []string{"a", "b"})
	assert.Equal(t, attribute.STRINGSLICE, sliceAttr.Value.Type())
	assert.Equal(t, []string{"a", "b"}, sliceAttr.Value.AsStringSlice())

	assert.Equal(t, int64(42), Int64Attribute("key", 42).Value.AsInt64())
	assert.Equal(t, int64(7), IntAttribute("key", 7).Value.AsInt64())
	assert.True(t, BoolAttribute("key", true).Value.AsBool())
}

func TestInitTelemetry(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		require.NoError(t, InitTelemetry(TelemetryConfig{Enabled: false}))
		assert.NoError(t, Shutdown(context.Background()))
	})

	t.Run("stdout exporter", func(t *testing.T) {
		cfg := *DefaultConfig()
		cfg.Exporter = ExporterStdout
		require.NoError(t, InitTelemetry(cfg))
		assert.NoError(t, Shutdown(context.Background()))
	})

	t.Run("invalid endpoint", func(t *testing.T) {
		cfg := *DefaultConfig()
		cfg.OTLPEndpoint = "collector:4318"
		err := InitTelemetry(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid OTLP endpoint")
	})

	t.Run("unknown exporter", func(t *testing.T) {
		cfg := *DefaultConfig()
		cfg.Exporter = "zipkin"
		assert.EqualError(t, InitTelemetry(cfg), `unknown telemetry exporter "zipkin"`)
	})
}

func TestShutdownWithoutProvider(t *testing.T) {
	assert.NoError(t, Shutdown(context.Background()))
}
