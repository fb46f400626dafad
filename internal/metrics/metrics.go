// Package metrics exposes the coordinator's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "syncroom"

var (
	// RoomsActive is the number of rooms resident in memory.
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rooms_active",
		Help:      "Rooms currently resident in memory.",
	})

	// SessionsActive is the number of live sessions across all rooms.
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Live client sessions across all rooms.",
	})

	// FramesTotal counts inbound frames by decoded kind.
	FramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_total",
		Help:      "Inbound frames by message kind.",
	}, []string{"kind"})

	// ProtocolErrors counts frames dropped as undecodable.
	ProtocolErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "protocol_errors_total",
		Help:      "Frames dropped because they could not be decoded.",
	})

	// MergeErrors counts deltas the merge engine rejected.
	MergeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "merge_errors_total",
		Help:      "Deltas rejected by the merge engine.",
	})

	// SessionsDropped counts sessions removed after a failed send.
	SessionsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_dropped_total",
		Help:      "Sessions removed after a send failure.",
	})

	// FlushesTotal counts persistence flushes by outcome.
	FlushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "flushes_total",
		Help:      "Persistence flushes by outcome.",
	}, []string{"status"})
)
