package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// State описывает состояние жизненного цикла демона. Переходы только вперед.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ShutdownSignals возвращает сигналы, по которым демон штатно завершается.
func ShutdownSignals() []os.Signal {
	return []os.Signal{unix.SIGHUP, unix.SIGTERM, unix.SIGINT, unix.SIGQUIT}
}

// SetupFunc выполняется в состоянии Starting: проверки окружения,
// загрузка грамматики, регистрация транспортов.
type SetupFunc func(ctx context.Context) error

// Lifecycle управляет запуском, работой и остановкой демона.
type Lifecycle struct {
	log         *slog.Logger
	tasks       *TaskSet
	transports  *TransportManager
	signals     []os.Signal
	stopTimeout time.Duration

	state        atomic.Int32
	ready        chan struct{}
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// NewLifecycle создает менеджер жизненного цикла.
func NewLifecycle(log *slog.Logger, tasks *TaskSet, transports *TransportManager, stopTimeout time.Duration) *Lifecycle {
	if log == nil {
		log = slog.Default()
	}
	if stopTimeout <= 0 {
		stopTimeout = 5 * time.Second
	}
	return &Lifecycle{
		log:         log,
		tasks:       tasks,
		transports:  transports,
		signals:     ShutdownSignals(),
		stopTimeout: stopTimeout,
		ready:       make(chan struct{}),
		shutdownCh:  make(chan struct{}),
	}
}

// State возвращает текущее состояние.
func (l *Lifecycle) State() State { return State(l.state.Load()) }

// Running сообщает, принимает ли демон работу.
func (l *Lifecycle) Running() bool { return l.State() == StateRunning }

// Ready закрывается при переходе в Running.
func (l *Lifecycle) Ready() <-chan struct{} { return l.ready }

// Shutdown запускает штатную остановку программно.
func (l *Lifecycle) Shutdown() {
	l.shutdownOnce.Do(func() { close(l.shutdownCh) })
}

// Run проводит демон через Starting -> Running -> Stopping -> Stopped.
// Ошибка setup означает невыполненное предусловие: сокет не открывается.
func (l *Lifecycle) Run(ctx context.Context, setup SetupFunc) error {
	if setup != nil {
		if err := setup(ctx); err != nil {
			l.state.Store(int32(StateStopped))
			return fmt.Errorf("startup: %w", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, l.signals...)
	defer signal.Stop(sigCh)

	if err := l.transports.StartAll(ctx); err != nil {
		l.state.Store(int32(StateStopped))
		return err
	}
	l.state.Store(int32(StateRunning))
	close(l.ready)
	l.log.Info("daemon running", "transports", l.transports.Names())

	select {
	case sig := <-sigCh:
		l.log.Info("signal received, shutting down", "signal", sig.String())
	case <-l.shutdownCh:
		l.log.Info("shutdown requested")
	case <-ctx.Done():
		l.log.Info("context done, shutting down")
	}
	return l.stop()
}

// stop отменяет все отслеживаемые задачи, дожидается их и закрывает транспорты.
func (l *Lifecycle) stop() error {
	l.state.Store(int32(StateStopping))

	pending := l.tasks.Len()
	if err := l.tasks.CancelAll(context.Background()); err != nil {
		return fmt.Errorf("cancel tasks: %w", err)
	}
	l.log.Debug("tasks cancelled", "count", pending)

	stopCtx, cancel := context.WithTimeout(context.Background(), l.stopTimeout)
	defer cancel()
	err := l.transports.StopAll(stopCtx)
	if errors.Is(err, context.DeadlineExceeded) {
		l.log.Warn("transports did not stop in time", "timeout", l.stopTimeout)
	}

	l.state.Store(int32(StateStopped))
	l.log.Info("daemon stopped")
	return err
}
