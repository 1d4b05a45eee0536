package circuitbreaker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errGatewayDown = errors.New("gateway down")

func newTestBreaker(t *testing.T) (*Breaker, *time.Time) {
	t.Helper()
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := NewBreaker("gw-instance-1", Config{
		CallTimeout:      time.Second,
		FailureThreshold: 0.5,
		ResetTimeout:     30 * time.Second,
		WindowSize:       10,
		MinCalls:         4,
	}, nil)
	b.now = func() time.Time { return current }
	b.lastTransition = current
	return b, &current
}

func failingCall(ctx context.Context) error { return errGatewayDown }
func okCall(ctx context.Context) error      { return nil }

func TestBreaker_OpensAfterFailureRatioExceeded(t *testing.T) {
	b, _ := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		err := b.Execute(ctx, failingCall)
		require.ErrorIs(t, err, errGatewayDown)
	}
	assert.Equal(t, StateOpen, b.State())

	// Open breaker rejects without attempting the action.
	attempted := false
	err := b.Execute(ctx, func(ctx context.Context) error {
		attempted = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, attempted)
}

func TestBreaker_StaysClosedBelowMinCalls(t *testing.T) {
	b, _ := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = b.Execute(ctx, failingCall)
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_MixedOutcomesBelowThresholdStayClosed(t *testing.T) {
	b, _ := newTestBreaker(t)
	ctx := context.Background()

	// 3 failures out of 10 calls: 30% < 50%.
	for i := 0; i < 7; i++ {
		require.NoError(t, b.Execute(ctx, okCall))
	}
	for i := 0; i < 3; i++ {
		_ = b.Execute(ctx, failingCall)
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenAllowsSingleProbe(t *testing.T) {
	b, current := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_ = b.Execute(ctx, failingCall)
	}
	require.Equal(t, StateOpen, b.State())

	// Before the reset timeout the breaker still rejects.
	*current = current.Add(29 * time.Second)
	assert.ErrorIs(t, b.Execute(ctx, okCall), ErrCircuitOpen)

	// After the reset timeout exactly one probe passes through.
	*current = current.Add(2 * time.Second)
	require.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.beforeCall()) // first probe admitted
	assert.ErrorIs(t, b.beforeCall(), ErrCircuitOpen)

	b.afterCall(true)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_FailedProbeReopensAndResetsTimer(t *testing.T) {
	b, current := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_ = b.Execute(ctx, failingCall)
	}
	*current = current.Add(31 * time.Second)
	require.Equal(t, StateHalfOpen, b.State())

	err := b.Execute(ctx, failingCall)
	require.ErrorIs(t, err, errGatewayDown)
	assert.Equal(t, StateOpen, b.State())

	// Timer restarted on the failed probe: still open 29s later.
	*current = current.Add(29 * time.Second)
	assert.Equal(t, StateOpen, b.State())
	*current = current.Add(2 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())
}

func TestBreaker_SuccessfulProbeClearsWindow(t *testing.T) {
	b, current := newTestBreaker(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_ = b.Execute(ctx, failingCall)
	}
	*current = current.Add(31 * time.Second)
	require.NoError(t, b.Execute(ctx, okCall))
	require.Equal(t, StateClosed, b.State())

	// One new failure must not trip the freshly closed breaker.
	_ = b.Execute(ctx, failingCall)
	assert.Equal(t, StateClosed, b.State())
}

func TestManager_ReturnsSameBreakerPerKey(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(DefaultConfig(), logger)

	b1 := m.Get("gw-instance-1")
	b2 := m.Get("gw-instance-1")
	b3 := m.Get("gw-instance-2")

	assert.Same(t, b1, b2)
	assert.NotSame(t, b1, b3)
}
