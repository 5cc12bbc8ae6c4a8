package otel

import (
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config describes where spans are exported and how they are sampled.
// EndpointURL selects the transport by scheme: grpc:// for OTLP/gRPC,
// http:// or https:// for OTLP/HTTP.
type Config struct {
	ServiceName        string
	ServiceVersion     string
	EndpointURL        string
	Enabled            bool
	SampleRatio        float64
	Insecure           bool
	ResourceAttributes map[string]string
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "unknown-service",
		SampleRatio: 1.0,
		Insecure:    true,
	}
}

func (c Config) exporting() bool {
	return c.Enabled && c.EndpointURL != ""
}

func (c Config) resourceAttributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{semconv.ServiceName(c.ServiceName)}
	if c.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(c.ServiceVersion))
	}
	for k, v := range c.ResourceAttributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}
