package repdig

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoff(t *testing.T) {
	base := 2 * time.Second

	table := []struct {
		attempt  int
		expected time.Duration
	}{
		{attempt: -1, expected: 2 * time.Second},
		{attempt: 0, expected: 2 * time.Second},
		{attempt: 1, expected: 4 * time.Second},
		{attempt: 2, expected: 8 * time.Second},
		{attempt: 3, expected: 16 * time.Second},
		{attempt: 4, expected: 32 * time.Second},
		{attempt: 5, expected: MaxBackoff},
		{attempt: 64, expected: MaxBackoff},
		{attempt: math.MaxInt32, expected: MaxBackoff},
	}

	for _, row := range table {
		require.Equal(t, row.expected, Backoff(row.attempt, base), "attempt %d", row.attempt)
	}
}

func TestBackoffMonotonic(t *testing.T) {
	for _, base := range []time.Duration{time.Millisecond, 750 * time.Millisecond, 2 * time.Second, time.Minute, 2 * time.Minute} {
		prev := time.Duration(0)
		for attempt := 0; attempt < 100; attempt++ {
			d := Backoff(attempt, base)
			require.GreaterOrEqual(t, d, prev)
			require.LessOrEqual(t, d, MaxBackoff)
			prev = d
		}
	}
}

func TestBackoffZeroBase(t *testing.T) {
	require.Equal(t, time.Duration(0), Backoff(3, 0))
}
