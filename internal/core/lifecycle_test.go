package core

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func runLifecycle(t *testing.T, l *Lifecycle, setup SetupFunc) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(context.Background(), setup) }()
	return errCh
}

func waitErr(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("lifecycle did not stop")
		return nil
	}
}

func TestLifecycleSetupFailureStopsBeforeTransports(t *testing.T) {
	tr := &fakeTransport{name: "socket"}
	mgr := NewTransportManager()
	require.NoError(t, mgr.Register(tr))
	l := NewLifecycle(testLogger(), NewTaskSet(), mgr, time.Second)

	missing := errors.New("ryzenadj is not installed")
	err := l.Run(context.Background(), func(ctx context.Context) error { return missing })
	require.ErrorIs(t, err, missing)
	assert.Equal(t, StateStopped, l.State())
	assert.Equal(t, 0, tr.startCalls)
}

func TestLifecycleProgrammaticShutdown(t *testing.T) {
	tr := &fakeTransport{name: "socket"}
	mgr := NewTransportManager()
	require.NoError(t, mgr.Register(tr))
	l := NewLifecycle(testLogger(), NewTaskSet(), mgr, time.Second)
	assert.Equal(t, StateStarting, l.State())

	var setupState atomic.Int32
	errCh := runLifecycle(t, l, func(ctx context.Context) error {
		setupState.Store(int32(l.State()))
		return nil
	})
	<-l.Ready()
	assert.True(t, l.Running())

	l.Shutdown()
	l.Shutdown()
	require.NoError(t, waitErr(t, errCh))
	assert.Equal(t, StateStopped, l.State())
	assert.Equal(t, StateStarting, State(setupState.Load()))
	assert.Equal(t, 1, tr.startCalls)
	assert.Equal(t, 1, tr.stopCalls)
}

func TestLifecycleSignalCancelsTasks(t *testing.T) {
	for _, sig := range []os.Signal{unix.SIGHUP, unix.SIGQUIT} {
		tasks := NewTaskSet()
		l := NewLifecycle(testLogger(), tasks, NewTransportManager(), time.Second)
		errCh := runLifecycle(t, l, nil)
		<-l.Ready()

		const n = 4
		var cancelled atomic.Int32
		started := make(chan struct{}, n)
		for i := 0; i < n; i++ {
			tasks.Go(context.Background(), "conn", func(ctx context.Context) {
				started <- struct{}{}
				<-ctx.Done()
				cancelled.Add(1)
			})
		}
		for i := 0; i < n; i++ {
			<-started
		}

		require.NoError(t, unix.Kill(os.Getpid(), sig.(unix.Signal)))
		require.NoError(t, waitErr(t, errCh))
		assert.Equal(t, int32(n), cancelled.Load(), "signal %v", sig)
		assert.Equal(t, StateStopped, l.State())
		assert.False(t, tasks.Go(context.Background(), "late", func(context.Context) {}))
	}
}

func TestLifecycleContextCancel(t *testing.T) {
	l := NewLifecycle(testLogger(), NewTaskSet(), NewTransportManager(), time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx, nil) }()
	<-l.Ready()
	cancel()
	require.NoError(t, waitErr(t, errCh))
	assert.Equal(t, "stopped", l.State().String())
}
