package core

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// ParsedCommand хранит разобранное сообщение клиента.
type ParsedCommand struct {
	Head       string // первый токен как пришел, вместе с "=value"
	Name       string
	Inline     string
	HasInline  bool
	Positional string
	HasPos     bool
}

// Args возвращает аргументы для утилиты: первый токен передается без изменений.
func (p ParsedCommand) Args() []string {
	if p.HasPos {
		return []string{p.Head, p.Positional}
	}
	return []string{p.Head}
}

// Result содержит итог обработки одного сообщения.
type Result struct {
	Output string
	Err    *DispatchError
}

// String отдает текст ответа клиенту.
func (r Result) String() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	return r.Output
}

// ParseCommand проверяет токены против грамматики. Порядок проверок важен:
// inline-аргумент, затем членство в грамматике, затем число токенов.
// Второй позиционный токен не проверяется, его валидирует сама утилита.
func ParseCommand(tokens []string, g Grammar) (ParsedCommand, error) {
	if len(tokens) == 0 {
		return ParsedCommand{}, ErrEmptyMessage
	}
	head := tokens[0]
	p := ParsedCommand{Head: head, Name: head}
	if name, arg, ok := strings.Cut(head, "="); ok {
		p.Name, p.Inline, p.HasInline = name, arg, true
		if !isDigits(arg) {
			return ParsedCommand{}, &DispatchError{Kind: ErrInvalidArgument, Name: name, Value: arg}
		}
	}
	if !g.Contains(p.Name) {
		return ParsedCommand{}, &DispatchError{Kind: ErrUnknownCommand, Name: p.Name}
	}
	if len(tokens) > 2 {
		return ParsedCommand{}, &DispatchError{Kind: ErrTooManyArguments, Name: head}
	}
	if len(tokens) == 2 {
		p.Positional, p.HasPos = tokens[1], true
	}
	return p, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Dispatcher проверяет сообщения клиентов и передает допустимые команды утилите.
type Dispatcher struct {
	grammar Grammar
	invoker Invoker
	log     *slog.Logger
}

// NewDispatcher создает диспетчер с неизменяемой грамматикой.
func NewDispatcher(g Grammar, inv Invoker, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{grammar: g, invoker: inv, log: log}
}

// Grammar возвращает грамматику диспетчера.
func (d *Dispatcher) Grammar() Grammar { return d.grammar }

// Dispatch обрабатывает токены одного сообщения. Ошибки валидации и запуска
// утилиты возвращаются в Result. Ошибка из самого Dispatch бывает только
// ErrEmptyMessage (ничего не делать) или ошибкой отмененного ctx (ответ не нужен).
func (d *Dispatcher) Dispatch(ctx context.Context, tokens []string) (Result, error) {
	cmd, err := ParseCommand(tokens, d.grammar)
	if err != nil {
		var de *DispatchError
		if !errors.As(err, &de) {
			return Result{}, err
		}
		d.log.Info("command rejected", "tokens", tokens, "reason", de.Code())
		return Result{Err: de}, nil
	}

	out, err := d.invoker.Invoke(ctx, cmd.Args()...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}
	if err != nil {
		d.log.Error("ryzenadj execution failed", "args", cmd.Args(), "err", err)
		return Result{Err: &DispatchError{Kind: ErrExecution, Name: cmd.Name, Cause: err}}, nil
	}
	d.log.Debug("command executed", "args", cmd.Args())
	return Result{Output: strings.TrimSpace(out)}, nil
}
