package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRunsJobs(t *testing.T) {
	var count int32
	sched := NewScheduler(10*time.Millisecond, testLogger())
	sched.Add(func(ctx context.Context) error {
		atomic.AddInt32(&count, 1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	sched.Start(ctx)
	if c := atomic.LoadInt32(&count); c < 2 {
		t.Fatalf("expected several runs, got %d", c)
	}
}

func TestSchedulerRunsImmediately(t *testing.T) {
	ran := make(chan struct{}, 1)
	sched := NewScheduler(time.Hour, testLogger())
	sched.Add(func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Start(ctx)
		close(done)
	}()
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatalf("job did not run before first tick")
	}
	cancel()
	<-done
}

func TestSchedulerKeepsRunningAfterJobError(t *testing.T) {
	var count int32
	sched := NewScheduler(5*time.Millisecond, testLogger())
	sched.Add(func(ctx context.Context) error {
		atomic.AddInt32(&count, 1)
		return errors.New("flaky")
	})
	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	sched.Start(ctx)
	if c := atomic.LoadInt32(&count); c < 2 {
		t.Fatalf("expected scheduler to continue after error, got %d runs", c)
	}
}
