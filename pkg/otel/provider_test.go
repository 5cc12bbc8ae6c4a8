package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestSetup_DisabledIsNoop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServiceName = "gateway-jwt-authorizer"
	cfg.EndpointURL = "grpc://localhost:4317"

	p, err := Setup(context.Background(), cfg)
	require.NoError(t, err)

	_, span := p.Tracer().Start(context.Background(), "noop")
	defer span.End()
	assert.False(t, span.SpanContext().IsValid())
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSetup_Exporting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.EndpointURL = "http://127.0.0.1:4318"

	p, err := Setup(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = Setup(context.Background(), DefaultConfig()) })

	_, span := p.Tracer().Start(context.Background(), "exported")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	// Nothing listens on the endpoint; Shutdown must still release the provider.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = p.Shutdown(ctx)
}

func TestNewExporter_UnsupportedScheme(t *testing.T) {
	for _, endpoint := range []string{"tcp://collector:4317", "collector:4317", "://"} {
		cfg := DefaultConfig()
		cfg.EndpointURL = endpoint

		_, err := newExporter(context.Background(), cfg)
		require.ErrorIs(t, err, ErrUnsupportedEndpoint, endpoint)
	}
}

func TestNilProvider(t *testing.T) {
	var p *Provider
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.5).Description(), sampler(0.5).Description())
}

func TestResourceAttributes(t *testing.T) {
	cfg := Config{
		ServiceName:        "svc",
		ServiceVersion:     "1.2.3",
		ResourceAttributes: map[string]string{"deployment.environment": "test"},
	}

	attrs := cfg.resourceAttributes()
	got := make(map[string]string, len(attrs))
	for _, a := range attrs {
		got[string(a.Key)] = a.Value.AsString()
	}

	assert.Equal(t, map[string]string{
		"service.name":           "svc",
		"service.version":        "1.2.3",
		"deployment.environment": "test",
	}, got)
}
