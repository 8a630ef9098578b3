package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/guideforge/engine/telemetry"
)

func TestNoopLoggerDoesNotPanic(t *testing.T) {
	logger := telemetry.NewNoopLogger()
	require.NotPanics(t, func() {
		logger.Debug(context.Background(), "debug", "key", "value")
		logger.Info(context.Background(), "info")
		logger.Warn(context.Background(), "warn", "retry", 3)
		logger.Error(context.Background(), "error", "cause", "boom")
	})
}

func TestNoopMetricsDoesNotPanic(t *testing.T) {
	metrics := telemetry.NewNoopMetrics()
	require.NotPanics(t, func() {
		metrics.IncCounter("session.started", 1, "status", "ok")
		metrics.RecordTimer("step.duration", 50*time.Millisecond)
		metrics.RecordGauge("session.active", 4)
	})
}

func TestNoopTracerProducesUsableSpan(t *testing.T) {
	tracer := telemetry.NewNoopTracer()
	ctx, span := tracer.Start(context.Background(), "orchestrator.run")
	require.NotNil(t, ctx)
	require.NotPanics(t, func() {
		span.AddEvent("step.planned")
		span.End()
	})
}
