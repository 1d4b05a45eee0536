package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchMessagesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "messages_total",
			Help:      "Per-message dispatch outcomes.",
		},
		[]string{"outcome"}, // "sent", "failed"
	)

	dispatchBatchesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "batches_total",
			Help:      "Bulk batches by final status.",
		},
		[]string{"status"}, // "success", "partial", "error"
	)

	gatewaySendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dispatch",
			Name:      "gateway_send_duration_seconds",
			Help:      "Latency of breaker-wrapped gateway send calls.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
