package core

import (
	"context"
	"errors"
	"testing"
)

type fakeProvider struct {
	name    string
	execErr error
}

func (f *fakeProvider) Name() string                   { return f.name }
func (f *fakeProvider) Init(ctx context.Context) error { return nil }
func (f *fakeProvider) Execute(ctx context.Context, cmd string, args []string) (Response, error) {
	if f.execErr != nil {
		return Response{Status: "error"}, f.execErr
	}
	return Response{Status: "ok", Data: cmd}, nil
}

func TestRegisterAndExecute(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	if err := r.Register(ctx, &fakeProvider{name: "host"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	resp, err := r.Execute(ctx, "host", "status", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if resp.Status != "ok" || resp.Data != "status" {
		t.Fatalf("unexpected response: %#v", resp)
	}
}

func TestDuplicateProvider(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	prov := &fakeProvider{name: "dup"}
	if err := r.Register(ctx, prov); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(ctx, prov); !errors.Is(err, errProviderExists) {
		t.Fatalf("expected errProviderExists, got %v", err)
	}
}

func TestUnknownProvider(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), "none", "status", nil)
	if !errors.Is(err, errUnknownProvider) {
		t.Fatalf("expected errUnknownProvider, got %v", err)
	}
}

func TestProvidersSorted(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	for _, n := range []string{"zeta", "alpha"} {
		if err := r.Register(ctx, &fakeProvider{name: n}); err != nil {
			t.Fatalf("register %s: %v", n, err)
		}
	}
	got := r.Providers()
	if len(got) != 2 || got[0] != "alpha" || got[1] != "zeta" {
		t.Fatalf("unexpected providers: %v", got)
	}
}

type checkedProvider struct {
	fakeProvider
	err  error
	runs *[]string
}

func (c *checkedProvider) Preflight(ctx context.Context) error {
	*c.runs = append(*c.runs, c.name)
	return c.err
}

func TestPreflightRunsInRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	var runs []string
	for _, n := range []string{"zeta", "alpha"} {
		if err := r.Register(ctx, &checkedProvider{fakeProvider: fakeProvider{name: n}, runs: &runs}); err != nil {
			t.Fatalf("register %s: %v", n, err)
		}
	}
	if err := r.Register(ctx, &fakeProvider{name: "plain"}); err != nil {
		t.Fatalf("register plain: %v", err)
	}
	if err := r.Preflight(ctx); err != nil {
		t.Fatalf("preflight: %v", err)
	}
	if len(runs) != 2 || runs[0] != "zeta" || runs[1] != "alpha" {
		t.Fatalf("unexpected preflight order: %v", runs)
	}
}

func TestPreflightStopsOnFirstError(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	var runs []string
	boom := errors.New("unsupported")
	_ = r.Register(ctx, &checkedProvider{fakeProvider: fakeProvider{name: "host"}, err: boom, runs: &runs})
	_ = r.Register(ctx, &checkedProvider{fakeProvider: fakeProvider{name: "later"}, runs: &runs})

	err := r.Preflight(ctx)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped preflight error, got %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("later checks must not run: %v", runs)
	}
}

func TestExecuteRejectsEmptyCommand(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	if err := r.Register(ctx, &fakeProvider{name: "host"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	resp, err := r.Execute(ctx, "host", "", nil)
	if !errors.Is(err, errInvalidArguments) || resp.ErrorCode != "invalid_arguments" {
		t.Fatalf("expected invalid arguments, got %#v, %v", resp, err)
	}
}
