package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEndpoint(t *testing.T) {
	cases := []struct {
		in   string
		want collector
	}{
		{"http://collector:4318", collector{host: "collector:4318", path: "/v1/traces", insecure: true}},
		{"https://otel.example.com/", collector{host: "otel.example.com", path: "/v1/traces"}},
		{"http://gw:4318/otlp", collector{host: "gw:4318", path: "/otlp/v1/traces", insecure: true}},
		{"collector:4318", collector{host: "collector:4318", path: "/v1/traces", insecure: true}},
	}
	for _, tc := range cases {
		got, err := parseEndpoint(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := parseEndpoint("grpc://collector:4317")
	assert.Error(t, err)
	_, err = parseEndpoint("http://")
	assert.Error(t, err)
}

func TestSetupTracing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	shutdown, err := SetupTracing(ctx, "order-api-test", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(ctx))

	shutdown, err = SetupTracing(ctx, "order-api-test", "http://127.0.0.1:4318")
	require.NoError(t, err)
	assert.NoError(t, shutdown(ctx))

	_, err = SetupTracing(ctx, "order-api-test", "ftp://x")
	assert.Error(t, err)
}
