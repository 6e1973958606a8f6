package harvest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryDelaySchedule(t *testing.T) {
	t.Parallel()

	require.Equal(t, time.Minute, RetryDelay(1))
	require.Equal(t, 3*time.Minute, RetryDelay(2))
	// Flat beyond the second retry.
	require.Equal(t, 3*time.Minute, RetryDelay(3))
	require.Equal(t, 3*time.Minute, RetryDelay(7))
}

func TestPriorityForOrdersTiersBeforePages(t *testing.T) {
	t.Parallel()

	require.Equal(t, 1001, PriorityFor(1, 1))
	require.Equal(t, 1030, PriorityFor(1, 30))
	require.Equal(t, 2001, PriorityFor(2, 1))
	require.Less(t, PriorityFor(1, 30), PriorityFor(2, 1))
}
