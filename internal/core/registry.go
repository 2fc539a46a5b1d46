package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	errProviderExists   = errors.New("provider already registered")
	errUnknownProvider  = errors.New("unknown provider")
	errInvalidArguments = errors.New("invalid arguments")
)

// Registry хранит служебные модули демона и проводит их стартовые проверки.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]CommandProvider
	order     []string
}

// NewRegistry создает пустой реестр модулей.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]CommandProvider)}
}

// Register инициализирует модуль и добавляет его; имя должно быть уникальным.
func (r *Registry) Register(ctx context.Context, provider CommandProvider) error {
	if provider == nil {
		return fmt.Errorf("provider is nil: %w", errInvalidArguments)
	}
	name := provider.Name()
	if name == "" {
		return fmt.Errorf("provider name is empty: %w", errInvalidArguments)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("%s: %w", name, errProviderExists)
	}
	if err := provider.Init(ctx); err != nil {
		return fmt.Errorf("init %s: %w", name, err)
	}
	r.providers[name] = provider
	r.order = append(r.order, name)
	return nil
}

// Execute вызывает команду модуля по имени.
func (r *Registry) Execute(ctx context.Context, module, cmd string, args []string) (Response, error) {
	if cmd == "" {
		return Response{Status: "error", ErrorCode: "invalid_arguments"}, fmt.Errorf("%s: empty command: %w", module, errInvalidArguments)
	}
	r.mu.RLock()
	prov, ok := r.providers[module]
	r.mu.RUnlock()
	if !ok {
		return Response{Status: "error", ErrorCode: "module_not_found"}, fmt.Errorf("%s: %w", module, errUnknownProvider)
	}
	return prov.Execute(ctx, cmd, args)
}

// Preflight запускает проверки модулей в порядке регистрации и
// останавливается на первой ошибке. Модули без Preflighter пропускаются.
func (r *Registry) Preflight(ctx context.Context) error {
	r.mu.RLock()
	checks := make([]CommandProvider, 0, len(r.order))
	for _, name := range r.order {
		checks = append(checks, r.providers[name])
	}
	r.mu.RUnlock()

	for _, prov := range checks {
		pf, ok := prov.(Preflighter)
		if !ok {
			continue
		}
		if err := pf.Preflight(ctx); err != nil {
			return fmt.Errorf("preflight %s: %w", prov.Name(), err)
		}
	}
	return nil
}

// Providers возвращает отсортированный список модулей.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	names := append([]string(nil), r.order...)
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
