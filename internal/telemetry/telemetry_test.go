package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), "", "kairo", "dev", false)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestScopedHelpersUsableBeforeInit(t *testing.T) {
	// No provider configured: both helpers fall back to the no-op
	// globals and stay safe to call.
	_, span := Tracer("pipeline").Start(context.Background(), "noop")
	span.End()

	ctr, err := Meter("pipeline").Int64Counter("kairo.test.count")
	require.NoError(t, err)
	ctr.Add(context.Background(), 1)
}
