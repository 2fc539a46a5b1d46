package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var errTransportExists = errors.New("transport already registered")

// TransportAdapter определяет жизненный цикл входного транспорта.
type TransportAdapter interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// TransportManager управляет запуском и остановкой транспортов.
type TransportManager struct {
	mu         sync.Mutex
	transports map[string]TransportAdapter
}

// NewTransportManager создает пустой менеджер транспортов.
func NewTransportManager() *TransportManager {
	return &TransportManager{transports: make(map[string]TransportAdapter)}
}

// Register добавляет транспорт; имена должны быть уникальны.
func (m *TransportManager) Register(adapter TransportAdapter) error {
	if adapter == nil {
		return fmt.Errorf("transport is nil: %w", errInvalidArguments)
	}
	name := adapter.Name()
	if name == "" {
		return fmt.Errorf("transport name is empty: %w", errInvalidArguments)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.transports[name]; exists {
		return fmt.Errorf("%s: %w", name, errTransportExists)
	}
	m.transports[name] = adapter
	return nil
}

// Names возвращает имена транспортов в алфавитном порядке.
func (m *TransportManager) Names() []string {
	list := m.snapshot()
	names := make([]string, 0, len(list))
	for _, tr := range list {
		names = append(names, tr.Name())
	}
	return names
}

// StartAll запускает все транспорты; при ошибке уже запущенные останавливаются.
func (m *TransportManager) StartAll(ctx context.Context) error {
	list := m.snapshot()
	for i, tr := range list {
		if err := tr.Start(ctx); err != nil {
			for _, started := range list[:i] {
				_ = started.Stop(ctx)
			}
			return fmt.Errorf("start transport %s: %w", tr.Name(), err)
		}
	}
	return nil
}

// StopAll останавливает все транспорты, даже если какой-то вернул ошибку.
func (m *TransportManager) StopAll(ctx context.Context) error {
	var errs []error
	for _, tr := range m.snapshot() {
		if err := tr.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop transport %s: %w", tr.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m *TransportManager) snapshot() []TransportAdapter {
	m.mu.Lock()
	list := make([]TransportAdapter, 0, len(m.transports))
	for _, tr := range m.transports {
		list = append(list, tr)
	}
	m.mu.Unlock()
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}
