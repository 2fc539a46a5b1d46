// Package watchdog удерживает лимит температуры Tctl на заданном значении.
// Некоторые портативные устройства сбрасывают лимит после сна или смены
// питания; watchdog периодически читает его и при расхождении выставляет снова.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"ryzenadjd/internal/core"
	"ryzenadjd/internal/storage"
)

// ReadingName: имя показания, под которым хранятся коррекции tctl.
const ReadingName = "tctl"

const tctlMarker = "THM LIMIT CORE"

var errNoTctl = errors.New("tctl limit not found in ryzenadj info")

// Correction описывает одну коррекцию tctl; хранится в Reading.Payload.
type Correction struct {
	Previous string `json:"previous"`
	Target   int    `json:"target"`
	Output   string `json:"output"`
}

// ReadingSaver сохраняет коррекции, сделанные watchdog.
type ReadingSaver interface {
	SaveReading(ctx context.Context, r storage.Reading) error
}

// Config задает параметры watchdog.
type Config struct {
	Target   int
	Interval time.Duration
	Excluded []string
}

// Watchdog проверяет и исправляет tctl.
type Watchdog struct {
	cfg     Config
	invoker core.Invoker
	saver   ReadingSaver
	log     *slog.Logger
}

// New создает watchdog. saver может быть nil.
func New(cfg Config, inv core.Invoker, saver ReadingSaver, log *slog.Logger) *Watchdog {
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if log == nil {
		log = slog.Default()
	}
	return &Watchdog{cfg: cfg, invoker: inv, saver: saver, log: log}
}

// Supports сообщает, можно ли управлять tctl на данной модели CPU.
func (w *Watchdog) Supports(cpuModel string) bool {
	for _, ex := range w.cfg.Excluded {
		if ex == cpuModel {
			return false
		}
	}
	return true
}

// Scheduler возвращает планировщик, вызывающий Check с заданным интервалом.
func (w *Watchdog) Scheduler() *core.Scheduler {
	s := core.NewScheduler(w.cfg.Interval, w.log)
	s.Add(w.Check)
	return s
}

// Check читает текущий лимит и выставляет целевой, если они расходятся.
func (w *Watchdog) Check(ctx context.Context) error {
	info, err := w.invoker.Invoke(ctx, "-i")
	if err != nil {
		return fmt.Errorf("read info: %w", err)
	}
	current, err := ParseTctl(info)
	if err != nil {
		return err
	}
	target := strconv.Itoa(w.cfg.Target)
	if current == target+".000" {
		return nil
	}
	w.log.Info("tctl drifted", "current", current, "target", w.cfg.Target)

	out, err := w.invoker.Invoke(ctx, "-f", target)
	if err != nil {
		return fmt.Errorf("set tctl: %w", err)
	}
	out = strings.TrimSpace(out)
	w.log.Info("tctl reapplied", "output", out)
	w.record(ctx, current, out)
	return nil
}

func (w *Watchdog) record(ctx context.Context, current, output string) {
	if w.saver == nil {
		return
	}
	payload, err := storage.MarshalPayload(Correction{Previous: current, Target: w.cfg.Target, Output: output})
	if err != nil {
		w.log.Warn("encode tctl correction failed", "err", err)
		return
	}
	r := storage.Reading{Name: ReadingName, Value: current, Payload: payload}
	if err := w.saver.SaveReading(ctx, r); err != nil {
		w.log.Warn("save tctl reading failed", "err", err)
	}
}

// ParseTctl достает значение THM LIMIT CORE из вывода `ryzenadj -i`.
func ParseTctl(info string) (string, error) {
	for _, line := range strings.Split(info, "\n") {
		if !strings.Contains(line, tctlMarker) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 6 {
			return "", fmt.Errorf("malformed line %q: %w", line, errNoTctl)
		}
		return fields[5], nil
	}
	return "", errNoTctl
}
