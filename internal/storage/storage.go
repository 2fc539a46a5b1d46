package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound возвращается, если запрошенной записи нет.
var ErrNotFound = errors.New("not found")

// Статусы записей истории команд.
const (
	StatusOK        = "ok"
	StatusRejected  = "rejected"
	StatusExecError = "exec_error"
)

// CommandRecord фиксирует одно сообщение клиента и ответ на него.
type CommandRecord struct {
	RequestID string    `json:"request_id"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Response  string    `json:"response"`
	TS        time.Time `json:"ts"`
}

// Reading описывает показание, снятое фоновой задачей (например, tctl).
// Payload хранит JSON с подробностями, см. MarshalPayload.
type Reading struct {
	Name    string
	Value   string
	Payload []byte
	TS      time.Time
}

// CommandQuery задает фильтры выборки истории. Нулевые From/To не ограничивают
// интервал.
type CommandQuery struct {
	From   time.Time
	To     time.Time
	Status string
	Limit  int
}

// CommandRecorder позволяет транспорту писать историю, не зная о Store.
type CommandRecorder interface {
	SaveCommand(ctx context.Context, rec CommandRecord) error
}

// Store описывает операции хранилища.
type Store interface {
	CommandRecorder
	SaveReading(ctx context.Context, r Reading) error
	LatestReading(ctx context.Context, name string) (Reading, error)
	QueryCommands(ctx context.Context, q CommandQuery) ([]CommandRecord, error)
	Close() error
}

// MarshalPayload сериализует подробности показания в JSON.
func MarshalPayload(data interface{}) ([]byte, error) {
	buf, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return buf, nil
}
