package scheduler

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rtxlabs/vperp/logging"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.ERROR, io.Discard)
}

func TestSupervisorRunsRegisteredJobOnInterval(t *testing.T) {
	s := New(testLogger())
	var ticks atomic.Int64
	s.Register(Job{
		Name:     "counter",
		Interval: 10 * time.Millisecond,
		Run: func(_ context.Context) {
			ticks.Add(1)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	time.Sleep(55 * time.Millisecond)
	s.Stop()

	if got := ticks.Load(); got < 2 {
		t.Errorf("ticks = %d, want at least 2", got)
	}
}

func TestSupervisorRecoversFromPanickingJob(t *testing.T) {
	s := New(testLogger())
	var ticks atomic.Int64
	s.Register(Job{
		Name:     "flaky",
		Interval: 5 * time.Millisecond,
		Run: func(_ context.Context) {
			ticks.Add(1)
			panic("boom")
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	if got := ticks.Load(); got < 2 {
		t.Errorf("ticks = %d, want at least 2 (supervisor must survive a panicking job)", got)
	}
}

func TestStopBlocksUntilAllJobsExit(t *testing.T) {
	s := New(testLogger())
	for i := 0; i < 3; i++ {
		s.Register(Job{
			Name:     "job",
			Interval: 5 * time.Millisecond,
			Run:      func(_ context.Context) {},
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return within 1s")
	}
}
