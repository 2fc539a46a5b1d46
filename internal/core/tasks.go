package core

import (
	"context"
	"sync"
)

// TaskSet отслеживает запущенные задачи (обработчики соединений, watchdog)
// и умеет кооперативно отменить их при остановке.
type TaskSet struct {
	mu     sync.Mutex
	closed bool
	nextID uint64
	tasks  map[uint64]*task
}

type task struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTaskSet создает пустой набор задач.
func NewTaskSet() *TaskSet {
	return &TaskSet{tasks: make(map[uint64]*task)}
}

// Go запускает fn в отдельной горутине с собственным отменяемым контекстом.
// После CancelAll новые задачи не принимаются: Go возвращает false.
func (s *TaskSet) Go(parent context.Context, name string, fn func(ctx context.Context)) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(parent)
	id := s.nextID
	s.nextID++
	t := &task{name: name, cancel: cancel, done: make(chan struct{})}
	s.tasks[id] = t
	s.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			s.mu.Lock()
			delete(s.tasks, id)
			s.mu.Unlock()
			close(t.done)
		}()
		fn(ctx)
	}()
	return true
}

// Len возвращает число активных задач.
func (s *TaskSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Closed сообщает, закрыт ли набор для новых задач.
func (s *TaskSet) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// CancelAll закрывает набор, отменяет каждую задачу и ждет ее завершения.
// ctx ограничивает только ожидание.
func (s *TaskSet) CancelAll(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	pending := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		pending = append(pending, t)
	}
	s.mu.Unlock()

	for _, t := range pending {
		t.cancel()
	}
	for _, t := range pending {
		select {
		case <-t.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
