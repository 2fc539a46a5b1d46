// Package ryzenadj запускает внешнюю утилиту ryzenadj. Все вызовы бинарника
// идут через Runner, диспетчер и загрузка грамматики видят только core.Invoker.
package ryzenadj

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// DefaultPath: путь, куда бинарник ставят пакеты дистрибутивов.
const DefaultPath = "/usr/bin/ryzenadj"

// ErrNotInstalled возвращает CheckInstalled, если бинарника нет.
var ErrNotInstalled = errors.New("ryzenadj is not installed")

// Runner запускает ryzenadj с заданными аргументами.
type Runner struct {
	path string
	log  *slog.Logger
}

// New создает Runner для бинарника по пути path.
func New(path string, log *slog.Logger) *Runner {
	if path == "" {
		path = DefaultPath
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{path: path, log: log}
}

// Path возвращает путь к бинарнику.
func (r *Runner) Path() string { return r.path }

// CheckInstalled проверяет, что бинарник существует и исполняемый.
func (r *Runner) CheckInstalled() error {
	info, err := os.Stat(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", r.path, ErrNotInstalled)
		}
		return fmt.Errorf("stat %s: %w", r.path, err)
	}
	if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%s is not executable: %w", r.path, ErrNotInstalled)
	}
	return nil
}

// Invoke запускает бинарник и возвращает stdout без пробелов по краям.
// Ненулевой код возврата с выводом считается результатом: так ryzenadj
// сообщает часть ошибок, и их нужно передать клиенту. Нулевой код с пустым
// выводом тоже результат, пустой ответ. При отмене ctx Invoke возвращается
// сразу, процесс доработает сам.
func (r *Runner) Invoke(ctx context.Context, args ...string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cmd := exec.Command(r.path, args...) // #nosec G204 -- args are whitelisted by the dispatcher.
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start %s: %w", r.path, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		out := strings.TrimSpace(stdout.String())
		if err == nil {
			return out, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && out != "" {
			r.log.Debug("ryzenadj exited non-zero", "args", args, "code", exitErr.ExitCode())
			return out, nil
		}
		return "", fmt.Errorf("ryzenadj %v: %w (stderr: %s)", args, err, strings.TrimSpace(stderr.String()))
	case <-ctx.Done():
		r.log.Debug("abandoning ryzenadj call", "args", args, "pid", cmd.Process.Pid)
		return "", ctx.Err()
	}
}
