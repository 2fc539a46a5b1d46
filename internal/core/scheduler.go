package core

import (
	"context"
	"log/slog"
	"time"
)

// Job описывает периодическую задачу.
type Job func(ctx context.Context) error

// Scheduler выполняет задачи с фиксированным интервалом. Задачи одного тика
// идут последовательно: обе ходят в одну и ту же утилиту.
type Scheduler struct {
	interval time.Duration
	jobs     []Job
	log      *slog.Logger
}

// NewScheduler создает scheduler с заданным интервалом.
func NewScheduler(interval time.Duration, log *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{interval: interval, log: log}
}

// Add добавляет задачу в расписание.
func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, job)
}

// Start выполняет задачи сразу и затем по тикеру до отмены контекста.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.runOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return
		}
		if err := job(ctx); err != nil && ctx.Err() == nil {
			s.log.Warn("scheduled job failed", "err", err)
		}
	}
}
