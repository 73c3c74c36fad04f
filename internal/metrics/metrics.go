// Package metrics exposes Prometheus metrics for the membership tracker.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type TrackerMetrics struct {
	registry             prometheus.Registerer
	trackedMembers       prometheus.Gauge
	eventsTotal          *prometheus.CounterVec
	expulsionsTotal      *prometheus.CounterVec
	sweepsTotal          prometheus.Counter
	sweepDuration        prometheus.Histogram
	notificationFailures prometheus.Counter
}

func InitTrackerMetrics(namespace string, reg prometheus.Registerer) *TrackerMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &TrackerMetrics{
		registry: reg,
		trackedMembers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tracked_members",
				Help:      "Number of currently tracked members",
			},
		),
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "membership_events_total",
				Help:      "Total number of processed membership events",
			},
			[]string{"kind"},
		),
		expulsionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "expulsions_total",
				Help:      "Total number of expulsion attempts",
			},
			[]string{"status"},
		),
		sweepsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweeps_total",
				Help:      "Total number of completed sweep cycles",
			},
		),
		sweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sweep_duration_seconds",
				Help:      "Duration of sweep cycles",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
			},
		),
		notificationFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notification_failures_total",
				Help:      "Total number of failed admin notifications",
			},
		),
	}

	reg.MustRegister(
		m.trackedMembers,
		m.eventsTotal,
		m.expulsionsTotal,
		m.sweepsTotal,
		m.sweepDuration,
		m.notificationFailures,
	)

	return m
}

func (m *TrackerMetrics) SetTrackedMembers(count int) {
	m.trackedMembers.Set(float64(count))
}

func (m *TrackerMetrics) RecordEvent(kind string) {
	m.eventsTotal.WithLabelValues(kind).Inc()
}

func (m *TrackerMetrics) RecordExpulsion(status string) {
	m.expulsionsTotal.WithLabelValues(status).Inc()
}

func (m *TrackerMetrics) RecordSweep(duration time.Duration) {
	m.sweepsTotal.Inc()
	m.sweepDuration.Observe(duration.Seconds())
}

func (m *TrackerMetrics) RecordNotificationFailure() {
	m.notificationFailures.Inc()
}
