// Package telemetry owns the OpenTelemetry instruments shared by the host.
// Instruments come from the global meter provider, so they are no-ops until a
// provider is installed.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/masterblaster1999/Nebula4X-sub001/internal/telemetry"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type Metrics struct {
	plans        metric.Int64Counter
	forecasts    metric.Int64Counter
	queries      metric.Int64Counter
	alertsFired  metric.Int64Counter
	pinsEval     metric.Int64Counter
	nodesVisited metric.Int64Histogram
}

// New registers the instruments. A nil *Metrics is valid and records nothing.
func New() (*Metrics, error) {
	m := meter()
	out := &Metrics{}
	var err error
	if out.plans, err = m.Int64Counter("n4x.plans",
		metric.WithDescription("Mission plans computed"),
		metric.WithUnit("{plan}")); err != nil {
		return nil, err
	}
	if out.forecasts, err = m.Int64Counter("n4x.forecasts",
		metric.WithDescription("Terraforming forecasts computed"),
		metric.WithUnit("{forecast}")); err != nil {
		return nil, err
	}
	if out.queries, err = m.Int64Counter("n4x.queries",
		metric.WithDescription("Pointer resolutions, glob queries and completions served"),
		metric.WithUnit("{query}")); err != nil {
		return nil, err
	}
	if out.alertsFired, err = m.Int64Counter("n4x.alerts.fired",
		metric.WithDescription("Watch alerts emitted"),
		metric.WithUnit("{alert}")); err != nil {
		return nil, err
	}
	if out.pinsEval, err = m.Int64Counter("n4x.pins.evaluated",
		metric.WithDescription("Pin evaluations performed by the watchboard"),
		metric.WithUnit("{pin}")); err != nil {
		return nil, err
	}
	if out.nodesVisited, err = m.Int64Histogram("n4x.query.nodes_visited",
		metric.WithDescription("Nodes visited per glob query"),
		metric.WithUnit("{node}")); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Metrics) PlanComputed(ctx context.Context, ok bool, reason string) {
	if m == nil {
		return
	}
	m.plans.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("ok", ok),
		attribute.String("truncated_reason", reason),
	))
}

func (m *Metrics) ForecastComputed(ctx context.Context, complete bool) {
	if m == nil {
		return
	}
	m.forecasts.Add(ctx, 1, metric.WithAttributes(attribute.Bool("complete", complete)))
}

// QueryServed counts one request of kind resolve, query or complete. Glob
// queries also record how many nodes they visited.
func (m *Metrics) QueryServed(ctx context.Context, kind string, nodesVisited int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	m.queries.Add(ctx, 1, attrs)
	if nodesVisited > 0 {
		m.nodesVisited.Record(ctx, int64(nodesVisited), attrs)
	}
}

func (m *Metrics) AlertFired(ctx context.Context, level string) {
	if m == nil {
		return
	}
	m.alertsFired.Add(ctx, 1, metric.WithAttributes(attribute.String("level", level)))
}

func (m *Metrics) PinsEvaluated(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.pinsEval.Add(ctx, int64(n))
}
