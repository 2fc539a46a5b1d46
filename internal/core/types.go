package core

import "context"

// Response описывает унифицированный результат выполнения команды модуля.
type Response struct {
	Status    string      `json:"status"`
	Data      interface{} `json:"data,omitempty"`
	ErrorCode string      `json:"error_code,omitempty"`
}

// CommandProvider определяет контракт для служебных модулей (host и т.п.).
type CommandProvider interface {
	Name() string
	Init(ctx context.Context) error
	Execute(ctx context.Context, cmd string, args []string) (Response, error)
}

// Preflighter реализуют модули, которым нужно проверить узел до открытия
// сокета. Ошибка Preflight останавливает запуск демона.
type Preflighter interface {
	Preflight(ctx context.Context) error
}

// Invoker запускает внешнюю утилиту управления питанием и возвращает
// ее stdout без пробелов по краям. При отмене ctx вызов возвращается сразу,
// сам процесс не убивается.
type Invoker interface {
	Invoke(ctx context.Context, args ...string) (string, error)
}
