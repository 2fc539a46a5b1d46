package core

import (
	"errors"
	"fmt"
)

// Виды отказов диспетчера.
var (
	ErrUnknownCommand   = errors.New("unknown command")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrTooManyArguments = errors.New("too many arguments")
	ErrExecution        = errors.New("execution failed")

	// ErrEmptyMessage означает, что диспетчеризовать нечего; это не ошибка клиента.
	ErrEmptyMessage = errors.New("empty message")
)

// DispatchError описывает отказ в выполнении команды. Error() возвращает
// ровно тот текст, который уходит клиенту.
type DispatchError struct {
	Kind  error
	Name  string
	Value string
	Cause error
}

func (e *DispatchError) Error() string {
	switch e.Kind {
	case ErrUnknownCommand:
		return fmt.Sprintf("Error: Got invalid command: %s", e.Name)
	case ErrInvalidArgument:
		return fmt.Sprintf("Error: Invalid argument %s for command %s", e.Value, e.Name)
	case ErrTooManyArguments:
		return fmt.Sprintf("Error: %s called with too many arguments", e.Name)
	case ErrExecution:
		return fmt.Sprintf("Error: Failed to execute ryzenadj: %v", e.Cause)
	default:
		return fmt.Sprintf("Error: %v", e.Kind)
	}
}

// Is позволяет сравнивать с ErrUnknownCommand и остальными видами.
func (e *DispatchError) Is(target error) bool { return e.Kind == target }

func (e *DispatchError) Unwrap() error { return e.Cause }

// Code возвращает короткий код вида отказа для журнала и истории.
func (e *DispatchError) Code() string {
	switch e.Kind {
	case ErrUnknownCommand:
		return "unknown_command"
	case ErrInvalidArgument:
		return "invalid_argument"
	case ErrTooManyArguments:
		return "too_many_arguments"
	case ErrExecution:
		return "exec_error"
	default:
		return "error"
	}
}
