// Package metrics declares the Prometheus series exported on /metrics and
// the observers that feed them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Footprint gauges, updated on every sample whether or not it was accepted.
var (
	UsedBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "headroom_used_bytes",
			Help: "Resident footprint of the watched process at the last sample",
		},
	)

	RemainingBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "headroom_remaining_bytes",
			Help: "Bytes left before the termination limit at the last sample",
		},
	)

	LimitBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "headroom_limit_bytes",
			Help: "Termination limit at the last sample",
		},
	)

	UsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "headroom_usage_ratio",
			Help: "Used bytes divided by the limit at the last sample (0-1)",
		},
	)
)

// Accepted state gauges.
var (
	StateLevel = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "headroom_state_level",
			Help: "Accepted severity level (0=normal 1=warning 2=urgent 3=critical 4=terminal)",
		},
	)

	PressureLevel = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "headroom_pressure_level",
			Help: "Accepted pressure level (0=normal 1=warning 3=critical)",
		},
	)
)

// Engine counters.
var (
	SamplesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headroom_samples_total",
			Help: "Samples taken, by trigger",
		},
		[]string{"trigger"},
	)

	OutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headroom_candidate_outcomes_total",
			Help: "Snapshot store decisions, by outcome",
		},
		[]string{"outcome"},
	)

	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headroom_transitions_total",
			Help: "Accepted transitions, by changed dimension",
		},
		[]string{"change"},
	)

	SampleFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "headroom_sample_failures_total",
			Help: "Raw memory samples that failed and were replaced by a zero snapshot",
		},
	)
)

// WebSocket metrics.
var (
	WSClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "headroom_ws_clients",
			Help: "Connected WebSocket clients",
		},
	)

	WSMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "headroom_ws_messages_total",
			Help: "WebSocket messages broadcast, by type",
		},
		[]string{"type"},
	)

	WSSlowDisconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "headroom_ws_slow_disconnects_total",
			Help: "Clients disconnected because their send queue was full",
		},
	)
)
