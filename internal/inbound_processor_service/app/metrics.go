package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var inboundEventsCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "inbound",
		Name:      "events_total",
		Help:      "Gateway events by kind and handling outcome.",
	},
	[]string{"kind", "outcome"}, // kind: "message", "connection"
)
