package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Grammar хранит множество команд, которые принимает демон.
// Заполняется один раз при старте и дальше только читается.
type Grammar struct {
	commands map[string]struct{}
}

// NewGrammar собирает грамматику из готового списка команд.
func NewGrammar(commands ...string) Grammar {
	g := Grammar{commands: make(map[string]struct{}, len(commands))}
	for _, c := range commands {
		if c != "" {
			g.commands[c] = struct{}{}
		}
	}
	return g
}

// LoadGrammar разбирает справку утилиты в грамматику.
// На строке смотрим только первые два токена: команда бывает записана
// одним флагом или двумя синонимами через запятую.
func LoadGrammar(helpText string) Grammar {
	g := NewGrammar()
	for _, line := range strings.Split(helpText, "\n") {
		fields := strings.Fields(line)
		for i := 0; i < 2 && i < len(fields); i++ {
			if name, ok := commandToken(fields[i]); ok {
				g.commands[name] = struct{}{}
			}
		}
	}
	return g
}

// commandToken отрезает суффикс "=value" и хвостовые запятые.
func commandToken(tok string) (string, bool) {
	if !strings.HasPrefix(tok, "-") {
		return "", false
	}
	if i := strings.IndexByte(tok, '='); i >= 0 {
		tok = tok[:i]
	}
	tok = strings.TrimRight(tok, ",")
	return tok, tok != ""
}

// DiscoverGrammar запрашивает справку у утилиты и строит по ней грамматику.
func DiscoverGrammar(ctx context.Context, inv Invoker, helpFlag string) (Grammar, error) {
	help, err := inv.Invoke(ctx, helpFlag)
	if err != nil {
		return Grammar{}, fmt.Errorf("read help: %w", err)
	}
	return LoadGrammar(help), nil
}

// Contains сообщает, входит ли команда в грамматику.
func (g Grammar) Contains(name string) bool {
	_, ok := g.commands[name]
	return ok
}

// Len возвращает число команд.
func (g Grammar) Len() int { return len(g.commands) }

// Commands возвращает команды в отсортированном виде.
func (g Grammar) Commands() []string {
	out := make([]string, 0, len(g.commands))
	for c := range g.commands {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
