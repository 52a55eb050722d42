package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffDelaySequence(t *testing.T) {
	expected := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for n, want := range expected {
		require.Equal(t, want, backoffDelay(n))
	}
}

func TestRestartBudgetAllowsUpToMax(t *testing.T) {
	b := &restartBudget{}
	now := time.Now()
	for i := 0; i < maxRestarts; i++ {
		delay, ok := b.next(now)
		require.True(t, ok, "attempt %d should be permitted", i)
		require.Equal(t, backoffDelay(i), delay)
		b.record(now)
	}
	_, ok := b.next(now)
	require.False(t, ok, "budget should be exhausted after maxRestarts")
}

func TestRestartBudgetPrunesOldAttempts(t *testing.T) {
	b := &restartBudget{}
	old := time.Now().Add(-restartWindow - time.Minute)
	for i := 0; i < maxRestarts; i++ {
		b.record(old)
	}
	now := time.Now()
	_, ok := b.next(now)
	require.True(t, ok, "attempts outside the rolling window must not count")
}

func TestRestartBudgetReset(t *testing.T) {
	b := &restartBudget{}
	now := time.Now()
	for i := 0; i < maxRestarts; i++ {
		b.record(now)
	}
	b.reset()
	_, ok := b.next(now)
	require.True(t, ok)
}
