package telemetry

import (
	"context"
	"testing"
)

func TestMetricsRecord(t *testing.T) {
	m, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	m.PlanComputed(ctx, true, "")
	m.ForecastComputed(ctx, false)
	m.QueryServed(ctx, "query", 120)
	m.AlertFired(ctx, "warn")
	m.PinsEvaluated(ctx, 3)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.PlanComputed(ctx, false, "out of fuel")
	m.ForecastComputed(ctx, true)
	m.QueryServed(ctx, "resolve", 0)
	m.AlertFired(ctx, "info")
	m.PinsEvaluated(ctx, 1)
}
