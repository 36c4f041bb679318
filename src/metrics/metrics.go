// Package metrics exposes the poller's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "streamalert",
		Name:      "ticks_total",
		Help:      "Completed poll ticks.",
	})

	ChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamalert",
		Name:      "checks_total",
		Help:      "Adapter checks by platform and result.",
	}, []string{"platform", "result"})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamalert",
		Name:      "transitions_total",
		Help:      "Detected state transitions by type.",
	}, []string{"type"})

	StoreWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "streamalert",
		Name:      "store_write_failures_total",
		Help:      "Failed persistence writes after a poll tick.",
	})

	LiveEntities = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamalert",
		Name:      "live_entities",
		Help:      "Entities currently observed live.",
	})
)

const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultSkipped = "skipped"
)
