package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracingDisabled(t *testing.T) {
	err := InitTracing(Config{Enabled: false})
	require.NoError(t, err)

	// No provider installed, shutdown is a no-op.
	assert.NoError(t, Shutdown(context.Background()))
}

func TestTracerAlwaysUsable(t *testing.T) {
	tracer := Tracer("heliowatch-test")
	require.NotNil(t, tracer)

	_, span := tracer.Start(context.Background(), "noop")
	span.End()
}

func TestShutdownIdempotent(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, Shutdown(ctx))
	assert.NoError(t, Shutdown(ctx))
}
