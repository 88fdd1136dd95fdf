package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	domainevents "github.com/dialerops/callgate-backend/internal/domain/events"
	"github.com/dialerops/callgate-backend/internal/infrastructure/events"
)

var (
	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "callgate",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Engine events published on the bus, by type.",
		},
		[]string{"type"},
	)

	eventsDropped = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "callgate",
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Events discarded because a subscriber fell behind.",
		},
	)

	usageThresholdCrossings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "callgate",
			Subsystem: "usage",
			Name:      "threshold_crossings_total",
			Help:      "Accounts crossing a usage notification threshold.",
		},
		[]string{"threshold"},
	)

	complianceViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "callgate",
			Subsystem: "compliance",
			Name:      "violations_total",
			Help:      "High-severity compliance violations, by type.",
		},
		[]string{"type", "severity"},
	)
)

// observeBus tails the event bus and folds engine events into the
// Prometheus registry served on /metrics.
func observeBus(ctx context.Context, bus *events.Bus) {
	sub := bus.Subscribe()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				record(ev)
				eventsDropped.Set(float64(bus.Dropped()))
			}
		}
	}()
}

func record(ev domainevents.Event) {
	eventsPublished.WithLabelValues(ev.Type).Inc()

	switch ev.Type {
	case domainevents.TypeUsageThresholdCrossed:
		threshold := "80"
		if pct, ok := ev.Payload["percentage"].(float64); ok && pct >= 100 {
			threshold = "100"
		}
		usageThresholdCrossings.WithLabelValues(threshold).Inc()
	case domainevents.TypeComplianceViolation:
		violationType, _ := ev.Payload["type"].(string)
		severity, _ := ev.Payload["severity"].(string)
		complianceViolations.WithLabelValues(violationType, severity).Inc()
	}
}
