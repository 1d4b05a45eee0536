package circuitbreaker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var breakerStateGauge = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "circuit_breaker",
		Name:      "state",
		Help:      "Breaker state per destination (0=closed, 1=open, 2=half-open).",
	},
	[]string{"destination"},
)

// Manager owns one Breaker per destination key. Breakers are created
// lazily and never removed; cardinality is bounded by the number of
// distinct gateway instances.
type Manager struct {
	config Config
	logger *slog.Logger

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewManager creates a Manager whose breakers share config.
func NewManager(config Config, logger *slog.Logger) *Manager {
	return &Manager{
		config:   config,
		logger:   logger.With("component", "circuit_breaker_manager"),
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for key, creating it on first use.
func (m *Manager) Get(key string) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.breakers[key]; ok {
		return b
	}
	b := NewBreaker(key, m.config, m.onTransition)
	m.breakers[key] = b
	return b
}

// Execute runs action through the breaker for key.
func (m *Manager) Execute(ctx context.Context, key string, action func(ctx context.Context) error) error {
	return m.Get(key).Execute(ctx, action)
}

func (m *Manager) onTransition(key string, from, to State) {
	m.logger.Warn("Circuit breaker state changed",
		"destination", key, "from", from.String(), "to", to.String())
	breakerStateGauge.WithLabelValues(key).Set(float64(to))
}
