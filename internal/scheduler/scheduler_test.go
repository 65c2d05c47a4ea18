package scheduler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babyresell/babyresell/internal/scheduler"
)

func newScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()

	s, err := scheduler.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	return s
}

func TestScheduler_RunsJob(t *testing.T) {
	s := newScheduler(t)

	var runs atomic.Int32

	require.NoError(t, s.Register(scheduler.Job{
		Name:     "tick",
		Schedule: "* * * * * *",
		Run: func(context.Context) error {
			runs.Add(1)
			return errors.New("failures do not stop the schedule")
		},
	}))

	s.Start()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)
	require.NoError(t, s.Stop())
}

func TestScheduler_StopCancelsContext(t *testing.T) {
	s := newScheduler(t)

	started := make(chan struct{})
	cancelled := make(chan struct{})

	require.NoError(t, s.Register(scheduler.Job{
		Name:     "slow",
		Schedule: "* * * * * *",
		Run: func(ctx context.Context) error {
			select {
			case started <- struct{}{}:
			default:
				return nil
			}

			<-ctx.Done()
			close(cancelled)

			return ctx.Err()
		},
	}))

	s.Start()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never started")
	}

	require.NoError(t, s.Stop())

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("job context was not cancelled")
	}
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := newScheduler(t)

	err := s.Register(scheduler.Job{Name: "broken", Schedule: "every hour", Run: func(context.Context) error { return nil }})
	assert.Error(t, err)
}
