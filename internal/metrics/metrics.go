// Package metrics - прометеевские счётчики рендера.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchInvocations считает вызовы бэкендов по формату и исходу
	// (success, error, timeout, skipped).
	DispatchInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenereel_dispatch_invocations_total",
			Help: "Total number of render job invocations by backend, format and outcome.",
		},
		[]string{"renderer", "format", "outcome"},
	)

	PayloadOffloads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scenereel_payload_offloads_total",
		Help: "Total number of render payloads offloaded to the object store.",
	})

	PayloadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scenereel_payload_bytes",
		Help:    "Size of serialized render payloads.",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
	})

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenereel_notifications_total",
			Help: "Total number of render completion notifications by outcome and merge result.",
		},
		[]string{"outcome", "result"},
	)

	RenderCompletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scenereel_render_completions_total",
			Help: "Total number of renders reaching a terminal status.",
		},
		[]string{"status"},
	)

	FrameDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scenereel_frame_render_seconds",
		Help:    "Time to compose and rasterise one frame in the local renderer.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
)
