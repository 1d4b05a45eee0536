package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker rejects a call without
// attempting it. Callers surface it as a generic "temporarily
// unavailable" condition; breaker internals stay out of user responses.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the breaker state.
type State int

const (
	// StateClosed is normal operation: calls pass through.
	StateClosed State = iota
	// StateOpen rejects calls immediately without attempting them.
	StateOpen
	// StateHalfOpen allows exactly one trial call.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config configures a breaker for one destination.
type Config struct {
	// CallTimeout bounds each wrapped call (default 5s).
	CallTimeout time.Duration
	// FailureThreshold is the failure ratio in the rolling window that
	// opens the breaker (default 0.5).
	FailureThreshold float64
	// ResetTimeout is how long the breaker stays open before allowing a
	// probe (default 30s).
	ResetTimeout time.Duration
	// WindowSize is the number of most recent calls considered (default 10).
	WindowSize int
	// MinCalls is the minimum number of recorded calls before the ratio
	// is evaluated (default 4).
	MinCalls int
}

// DefaultConfig returns the deployed defaults.
func DefaultConfig() Config {
	return Config{
		CallTimeout:      5 * time.Second,
		FailureThreshold: 0.5,
		ResetTimeout:     30 * time.Second,
		WindowSize:       10,
		MinCalls:         4,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CallTimeout <= 0 {
		c.CallTimeout = d.CallTimeout
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = d.ResetTimeout
	}
	if c.WindowSize <= 0 {
		c.WindowSize = d.WindowSize
	}
	if c.MinCalls <= 0 {
		c.MinCalls = d.MinCalls
	}
	return c
}

// TransitionListener is notified on state changes. It runs on its own
// goroutine and must never block the calling path.
type TransitionListener func(key string, from, to State)

// Breaker contains failures for a single destination key. Safe for
// concurrent use.
type Breaker struct {
	key      string
	config   Config
	listener TransitionListener

	mu             sync.Mutex
	state          State
	window         []bool // true = failure; ring buffer of recent outcomes
	windowPos      int
	windowFilled   int
	lastTransition time.Time
	probeInFlight  bool

	now func() time.Time
}

// NewBreaker creates a breaker for key. listener may be nil.
func NewBreaker(key string, config Config, listener TransitionListener) *Breaker {
	cfg := config.withDefaults()
	return &Breaker{
		key:            key,
		config:         cfg,
		listener:       listener,
		state:          StateClosed,
		window:         make([]bool, cfg.WindowSize),
		lastTransition: time.Now(),
		now:            time.Now,
	}
}

// State reports the current state, accounting for open->half-open expiry.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpenLocked()
	return b.state
}

// Execute runs action through the breaker. When the breaker is open it
// returns ErrCircuitOpen without invoking action. The action context is
// bounded by the configured call timeout.
func (b *Breaker) Execute(ctx context.Context, action func(ctx context.Context) error) error {
	if err := b.beforeCall(); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, b.config.CallTimeout)
	defer cancel()

	err := action(callCtx)
	b.afterCall(err == nil)
	return err
}

func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeHalfOpenLocked()

	switch b.state {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.probeInFlight {
			return ErrCircuitOpen
		}
		b.probeInFlight = true
	}
	return nil
}

func (b *Breaker) afterCall(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.probeInFlight = false
		if success {
			b.transitionLocked(StateClosed)
		} else {
			b.transitionLocked(StateOpen)
		}
		return
	}

	if b.state != StateClosed {
		// Result of a call that started before the breaker opened; the
		// window restarts on close, so drop it.
		return
	}

	b.window[b.windowPos] = !success
	b.windowPos = (b.windowPos + 1) % b.config.WindowSize
	if b.windowFilled < b.config.WindowSize {
		b.windowFilled++
	}

	if b.windowFilled >= b.config.MinCalls && b.failureRatioLocked() >= b.config.FailureThreshold {
		b.transitionLocked(StateOpen)
	}
}

func (b *Breaker) failureRatioLocked() float64 {
	failures := 0
	for i := 0; i < b.windowFilled; i++ {
		if b.window[i] {
			failures++
		}
	}
	return float64(failures) / float64(b.windowFilled)
}

// maybeHalfOpenLocked moves an expired open breaker to half-open.
func (b *Breaker) maybeHalfOpenLocked() {
	if b.state == StateOpen && b.now().Sub(b.lastTransition) >= b.config.ResetTimeout {
		b.transitionLocked(StateHalfOpen)
	}
}

func (b *Breaker) transitionLocked(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.lastTransition = b.now()
	b.probeInFlight = false
	if to == StateClosed {
		b.windowPos = 0
		b.windowFilled = 0
	}
	if b.listener != nil {
		go b.listener(b.key, from, to)
	}
}
