package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddJob_RejectsBadSpec(t *testing.T) {
	s := New(zerolog.Nop())

	err := s.AddJob("not a cron spec", "broken", func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestScheduler_RunsJob(t *testing.T) {
	s := New(zerolog.Nop())

	var runs atomic.Int64
	require.NoError(t, s.AddJob("@every 10ms", "tick", func(context.Context) error {
		runs.Add(1)
		return nil
	}))

	s.Start()
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("job never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestScheduler_JobErrorDoesNotStopOthers(t *testing.T) {
	s := New(zerolog.Nop())

	var ok atomic.Int64
	require.NoError(t, s.AddJob("@every 10ms", "failing", func(context.Context) error {
		return context.DeadlineExceeded
	}))
	require.NoError(t, s.AddJob("@every 10ms", "healthy", func(context.Context) error {
		ok.Add(1)
		return nil
	}))

	s.Start()
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for ok.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("healthy job starved")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
