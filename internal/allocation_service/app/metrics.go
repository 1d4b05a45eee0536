package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lineAllocationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "allocation",
			Name:      "line_allocations_total",
			Help:      "Total line allocation attempts.",
		},
		[]string{"outcome"}, // "reused", "assigned", "none_available", "error"
	)

	capacityRemovalsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "allocation",
			Name:      "capacity_binding_removals_total",
			Help:      "Bindings removed by segment capacity enforcement.",
		},
	)
)
