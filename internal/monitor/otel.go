package monitor

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/tacband/skirmish/internal/monitor"

type otelMetrics struct {
	frameTime     metric.Float64ObservableGauge
	raycastQueue  metric.Int64ObservableGauge
	deathQueue    metric.Int64ObservableGauge
	activeMoves   metric.Int64ObservableGauge
	raycastBudget metric.Int64ObservableGauge
}

func newOtelMetrics(m *Monitor) *otelMetrics {
	meter := otel.Meter(instrumentationName)
	om := &otelMetrics{}

	var err error
	om.frameTime, err = meter.Float64ObservableGauge(
		"engine.frame.rolling_ms",
		metric.WithDescription("Rolling average tick duration in milliseconds"),
	)
	if err != nil {
		return om
	}
	om.raycastQueue, err = meter.Int64ObservableGauge(
		"engine.los.queue.size",
		metric.WithDescription("Pending line-of-sight requests"),
	)
	if err != nil {
		return om
	}
	om.deathQueue, err = meter.Int64ObservableGauge(
		"engine.death.queue.size",
		metric.WithDescription("Deaths awaiting processing"),
	)
	if err != nil {
		return om
	}
	om.activeMoves, err = meter.Int64ObservableGauge(
		"engine.movement.active",
		metric.WithDescription("Units currently animating a move"),
	)
	if err != nil {
		return om
	}
	om.raycastBudget, err = meter.Int64ObservableGauge(
		"engine.los.budget",
		metric.WithDescription("Current per-tick raycast budget"),
	)
	if err != nil {
		return om
	}

	_, err = meter.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			snap := m.Last()
			o.ObserveFloat64(om.frameTime, snap.RollingFrameMs)
			o.ObserveInt64(om.raycastQueue, int64(snap.RaycastQueueLen))
			o.ObserveInt64(om.deathQueue, int64(snap.DeathQueueLen))
			o.ObserveInt64(om.activeMoves, int64(snap.ActiveMoves))
			o.ObserveInt64(om.raycastBudget, int64(snap.RaycastBudget))
			return nil
		},
		om.frameTime, om.raycastQueue, om.deathQueue, om.activeMoves, om.raycastBudget,
	)
	if err != nil && m.log != nil {
		m.log.Warn("monitor metric callback registration failed", "error", err)
	}
	return om
}
