package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"ryzenadjd/internal/config"
	"ryzenadjd/internal/core"
	"ryzenadjd/internal/modules/host"
	"ryzenadjd/internal/ryzenadj"
	"ryzenadjd/internal/storage"
	"ryzenadjd/internal/storage/sqlite"
	"ryzenadjd/internal/transports/socket"
	"ryzenadjd/internal/watchdog"
)

// Options позволяет подменить внешние зависимости (в тестах).
type Options struct {
	Invoker        core.Invoker
	CheckInstalled func() error
	DetectCPU      host.CPUDetector
}

// App агрегирует зависимости демона.
type App struct {
	Config     config.Config
	Log        *slog.Logger
	Registry   *core.Registry
	Host       *host.Module
	Tasks      *core.TaskSet
	Transports *core.TransportManager
	Lifecycle  *core.Lifecycle
	Store      storage.Store

	invoker        core.Invoker
	checkInstalled func() error
	grammar        core.Grammar
}

// NewApp строит приложение: реестр модулей, хранилище, жизненный цикл.
// Предусловия и грамматика проверяются позже, в Serve.
func NewApp(ctx context.Context, cfg config.Config, log *slog.Logger, opts Options) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	hostModule := &host.Module{Extra: cfg.Host.SupportedDevices, Detect: opts.DetectCPU, SkipCheck: cfg.Host.SkipCheck}
	r := core.NewRegistry()
	if err := r.Register(ctx, hostModule); err != nil {
		return nil, fmt.Errorf("register host module: %w", err)
	}

	runner := ryzenadj.New(cfg.Ryzenadj.Path, log)
	a := &App{
		Config:         cfg,
		Log:            log,
		Registry:       r,
		Host:           hostModule,
		Tasks:          core.NewTaskSet(),
		Transports:     core.NewTransportManager(),
		invoker:        opts.Invoker,
		checkInstalled: opts.CheckInstalled,
	}
	if a.invoker == nil {
		a.invoker = runner
	}
	if a.checkInstalled == nil {
		a.checkInstalled = runner.CheckInstalled
	}

	if cfg.SQLite.Path != "" {
		st, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.Store = st
	}

	stopTimeout := time.Duration(cfg.Shutdown.TimeoutS) * time.Second
	a.Lifecycle = core.NewLifecycle(log, a.Tasks, a.Transports, stopTimeout)
	return a, nil
}

// Close высвобождает ресурсы приложения.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// Grammar возвращает грамматику, загруженную при старте.
func (a *App) Grammar() core.Grammar { return a.grammar }

// Serve проводит демон через весь жизненный цикл до сигнала остановки.
func (a *App) Serve(ctx context.Context) error {
	return a.Lifecycle.Run(ctx, a.setup)
}

// setup выполняется в состоянии Starting.
func (a *App) setup(ctx context.Context) error {
	if err := a.checkInstalled(); err != nil {
		return err
	}
	if a.Config.Host.SkipCheck {
		a.Log.Warn("supported device check skipped")
	}
	if err := a.Registry.Preflight(ctx); err != nil {
		return err
	}
	if model := a.Host.Model(); model != "" {
		a.Log.Debug("found cpu", "model", model)
	}

	grammar, err := core.DiscoverGrammar(ctx, a.invoker, a.Config.Ryzenadj.HelpFlag)
	if err != nil {
		return err
	}
	if grammar.Len() == 0 {
		a.Log.Warn("no commands discovered in ryzenadj help, every request will be rejected")
	}
	a.grammar = grammar
	a.Log.Info("grammar loaded", "commands", grammar.Len())

	perm, err := parseFileMode(a.Config.Socket.Permissions)
	if err != nil {
		return err
	}
	var recorder storage.CommandRecorder
	if a.Store != nil {
		recorder = a.Store
	}
	srv := socket.New(socket.Config{
		Path:        a.Config.Socket.Path,
		Permissions: perm,
		ReadBuffer:  a.Config.Socket.ReadBuffer,
	}, core.NewDispatcher(grammar, a.invoker, a.Log), a.Tasks, recorder, a.Log)
	if err := a.Transports.Register(srv); err != nil {
		return fmt.Errorf("register socket transport: %w", err)
	}

	if a.Config.Watchdog.Enabled {
		if err := a.registerWatchdog(); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) registerWatchdog() error {
	var saver watchdog.ReadingSaver
	if a.Store != nil {
		saver = a.Store
	}
	wd := watchdog.New(watchdog.Config{
		Target:   a.Config.Watchdog.TargetTctl,
		Interval: time.Duration(a.Config.Watchdog.IntervalMS) * time.Millisecond,
		Excluded: a.Config.Watchdog.ExcludedDevices,
	}, a.invoker, saver, a.Log)
	if model := a.Host.Model(); !wd.Supports(model) {
		a.Log.Info("cpu does not support tctl setting, skipping automatic tctl management", "model", model)
		return nil
	}
	bg := &backgroundTask{name: "watchdog", tasks: a.Tasks, run: wd.Scheduler().Start}
	if err := a.Transports.Register(bg); err != nil {
		return fmt.Errorf("register watchdog: %w", err)
	}
	return nil
}

// backgroundTask запускает фоновую задачу вместе с транспортами. Остановка
// идет через TaskSet, поэтому Stop ничего не делает.
type backgroundTask struct {
	name  string
	tasks *core.TaskSet
	run   func(ctx context.Context)
}

func (b *backgroundTask) Name() string { return b.name }

func (b *backgroundTask) Start(ctx context.Context) error {
	if !b.tasks.Go(ctx, b.name, b.run) {
		return errors.New("task set is closed")
	}
	return nil
}

func (b *backgroundTask) Stop(ctx context.Context) error { return nil }

func parseFileMode(s string) (os.FileMode, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid socket permissions %q: %w", s, err)
	}
	return os.FileMode(v), nil
}
