package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// metrics are recorded on the global meter provider; they are no-ops until the
// host process installs an SDK.
type metrics struct {
	turns     otelmetric.Int64Counter
	fallbacks otelmetric.Int64Counter
	degraded  otelmetric.Int64Counter
	episodes  otelmetric.Int64Counter
	summaries otelmetric.Int64Counter
	latency   otelmetric.Float64Histogram
}

func newMetrics(log *logrus.Entry) *metrics {
	meter := otel.Meter("github.com/easeaico/convo-memory/service")
	m := &metrics{}

	var err error
	if m.turns, err = meter.Int64Counter("memory.turns"); err != nil {
		log.WithError(err).Warn("otel counter memory.turns")
	}
	if m.fallbacks, err = meter.Int64Counter("memory.turn.fallbacks"); err != nil {
		log.WithError(err).Warn("otel counter memory.turn.fallbacks")
	}
	if m.degraded, err = meter.Int64Counter("memory.tier.degraded"); err != nil {
		log.WithError(err).Warn("otel counter memory.tier.degraded")
	}
	if m.episodes, err = meter.Int64Counter("memory.episodes.stored"); err != nil {
		log.WithError(err).Warn("otel counter memory.episodes.stored")
	}
	if m.summaries, err = meter.Int64Counter("memory.summaries.generated"); err != nil {
		log.WithError(err).Warn("otel counter memory.summaries.generated")
	}
	if m.latency, err = meter.Float64Histogram("memory.turn.duration", otelmetric.WithUnit("ms")); err != nil {
		log.WithError(err).Warn("otel histogram memory.turn.duration")
	}

	return m
}

func (m *metrics) add(ctx context.Context, c otelmetric.Int64Counter, n int64, attrs ...attribute.KeyValue) {
	if c == nil || n == 0 {
		return
	}
	c.Add(ctx, n, otelmetric.WithAttributes(attrs...))
}

func (m *metrics) observeTurn(ctx context.Context, start time.Time, fallback bool) {
	m.add(ctx, m.turns, 1)
	if fallback {
		m.add(ctx, m.fallbacks, 1)
	}
	if m.latency != nil {
		m.latency.Record(ctx, float64(time.Since(start).Milliseconds()))
	}
}
