package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunNowSwallowsJobError(t *testing.T) {
	s := New(context.Background())

	called := 0
	s.RunNow("monitor", func(ctx context.Context) error {
		called++
		return errors.New("transient database failure")
	})

	// The error is logged, not propagated: a failed pass must not take
	// the agent down.
	assert.Equal(t, 1, called)
}

func TestRunNowUsesSchedulerContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(ctx)
	cancel()

	var got error
	s.RunNow("monitor", func(jobCtx context.Context) error {
		got = jobCtx.Err()
		return nil
	})

	assert.ErrorIs(t, got, context.Canceled)
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(context.Background())

	err := s.AddMonitorJob("not a cron expression", func(ctx context.Context) error { return nil })
	require.Error(t, err)
	assert.Empty(t, s.ListJobs())
}

func TestAddAndRemoveJob(t *testing.T) {
	s := New(context.Background())

	require.NoError(t, s.AddMonitorJob("0 */12 * * *", func(ctx context.Context) error { return nil }))
	require.Len(t, s.ListJobs(), 1)
	assert.Equal(t, "monitor", s.ListJobs()[0].Name)

	s.RemoveJob("monitor")
	assert.Empty(t, s.ListJobs())
}
