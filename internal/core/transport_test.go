package core

import (
	"context"
	"errors"
	"testing"
)

type fakeTransport struct {
	name       string
	startErr   error
	stopErr    error
	startCalls int
	stopCalls  int
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) Start(ctx context.Context) error {
	f.startCalls++
	return f.startErr
}

func (f *fakeTransport) Stop(ctx context.Context) error {
	f.stopCalls++
	return f.stopErr
}

func TestTransportManagerRegisterStartStop(t *testing.T) {
	mgr := NewTransportManager()
	tr := &fakeTransport{name: "socket"}
	if err := mgr.Register(tr); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := mgr.StartAll(context.Background()); err != nil {
		t.Fatalf("start all: %v", err)
	}
	if err := mgr.StopAll(context.Background()); err != nil {
		t.Fatalf("stop all: %v", err)
	}
	if tr.startCalls != 1 || tr.stopCalls != 1 {
		t.Fatalf("unexpected calls: start=%d stop=%d", tr.startCalls, tr.stopCalls)
	}
}

func TestTransportManagerDuplicateRegister(t *testing.T) {
	mgr := NewTransportManager()
	if err := mgr.Register(&fakeTransport{name: "socket"}); err != nil {
		t.Fatalf("register first: %v", err)
	}
	if err := mgr.Register(&fakeTransport{name: "socket"}); !errors.Is(err, errTransportExists) {
		t.Fatalf("expected errTransportExists, got %v", err)
	}
}

func TestTransportManagerStartFailureRollsBack(t *testing.T) {
	mgr := NewTransportManager()
	first := &fakeTransport{name: "a"}
	broken := &fakeTransport{name: "b", startErr: errors.New("bind failed")}
	_ = mgr.Register(first)
	_ = mgr.Register(broken)
	if err := mgr.StartAll(context.Background()); err == nil {
		t.Fatalf("expected start error")
	}
	if first.stopCalls != 1 {
		t.Fatalf("expected started transport to be stopped, got %d", first.stopCalls)
	}
}

func TestTransportManagerStopAllContinuesOnError(t *testing.T) {
	mgr := NewTransportManager()
	bad := &fakeTransport{name: "a", stopErr: errors.New("close failed")}
	good := &fakeTransport{name: "b"}
	_ = mgr.Register(bad)
	_ = mgr.Register(good)
	if err := mgr.StopAll(context.Background()); err == nil {
		t.Fatalf("expected stop error")
	}
	if good.stopCalls != 1 {
		t.Fatalf("expected second transport to be stopped")
	}
	if names := mgr.Names(); len(names) != 2 || names[0] != "a" {
		t.Fatalf("unexpected names: %v", names)
	}
}
