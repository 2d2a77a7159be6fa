package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ashureev/handoff-voice/internal/domain"
	"github.com/ashureev/handoff-voice/internal/reasoning"
)

// Tests in this file replace the global tracer provider and must not run
// in parallel.

func TestNewProviderDisabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{ServiceName: "test"})
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderEnabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{ServiceName: "test", Endpoint: "http://127.0.0.1:4318"})
	require.NoError(t, err)
	assert.True(t, p.Enabled())
	_ = p.Shutdown(context.Background())
}

func TestReasoningSpansRecorded(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	p := newProvider(Config{ServiceName: "test"}, sdktrace.WithSpanProcessor(rec))
	defer func() { _ = p.Shutdown(context.Background()) }()

	r := reasoning.New(reasoning.MockBackend{})
	_, err := r.Complete(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "permit?"}}, domain.Bob)
	require.NoError(t, err)

	spans := rec.Ended()
	require.NotEmpty(t, spans)
	assert.Equal(t, "reasoning.Complete", spans[0].Name())
	assert.NotNil(t, otel.GetTracerProvider())
}
