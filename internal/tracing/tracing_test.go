package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

func TestInitDisabledIsNoop(t *testing.T) {
	before := otel.GetTracerProvider()

	shutdown, err := Init(context.Background(), Options{ServiceName: "posctl"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
	assert.Equal(t, before, otel.GetTracerProvider())
}

func TestInitExportsSpans(t *testing.T) {
	before := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(before) })

	exp := tracetest.NewInMemoryExporter()
	shutdown, err := Init(context.Background(), Options{
		ServiceName:  "posctl",
		SamplingRate: 1,
		Exporter:     exp,
	})
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "fetch products-list", attribute.String("cache.key", "products-list"))
	span.End()

	tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	require.True(t, ok)
	require.NoError(t, tp.ForceFlush(context.Background()))
	spans := exp.GetSpans()
	require.NoError(t, shutdown(context.Background()))

	require.Len(t, spans, 1)
	assert.Equal(t, "fetch products-list", spans[0].Name)
	assert.Contains(t, spans[0].Attributes, attribute.String("cache.key", "products-list"))
	assert.Contains(t, spans[0].Resource.Attributes(), semconv.ServiceName("posctl"))
}

func TestInitWithCollectorEndpoint(t *testing.T) {
	before := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(before) })

	shutdown, err := Init(context.Background(), Options{
		ServiceName:  "posctl",
		Endpoint:     "localhost:4318",
		SamplingRate: 1,
	})
	require.NoError(t, err, "resource schema must match the SDK default resource")
	require.NoError(t, shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "AlwaysOn")
	assert.Contains(t, sampler(0).Description(), "AlwaysOff")
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}
