package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite driver

	"ryzenadjd/internal/storage"
)

// Store реализует storage.Store поверх SQLite.
type Store struct {
	db *sql.DB
}

// Open создает каталог базы, открывает соединение и выполняет миграции.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_journal=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS commands (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			request_id TEXT NOT NULL,
			message TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT,
			response TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_commands_ts ON commands(ts);`,
		`CREATE INDEX IF NOT EXISTS idx_commands_status_ts ON commands(status, ts);`,
		`CREATE TABLE IF NOT EXISTS readings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			name TEXT NOT NULL,
			value TEXT NOT NULL,
			payload BLOB
		);`,
		`CREATE INDEX IF NOT EXISTS idx_readings_name_ts ON readings(name, ts);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// SaveCommand сохраняет запись истории.
func (s *Store) SaveCommand(ctx context.Context, rec storage.CommandRecord) error {
	ts := rec.TS
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO commands(request_id, message, status, reason, response, ts) VALUES(?,?,?,?,?,?)`,
		rec.RequestID, rec.Message, rec.Status, rec.Reason, rec.Response, ts)
	if err != nil {
		return fmt.Errorf("insert command: %w", err)
	}
	return nil
}

// SaveReading сохраняет показание.
func (s *Store) SaveReading(ctx context.Context, r storage.Reading) error {
	ts := r.TS
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO readings(name, value, payload, ts) VALUES(?,?,?,?)`, r.Name, r.Value, r.Payload, ts)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

// LatestReading возвращает последнее показание по имени.
func (s *Store) LatestReading(ctx context.Context, name string) (storage.Reading, error) {
	row := s.db.QueryRowContext(ctx, `SELECT name, value, payload, ts FROM readings WHERE name = ? ORDER BY ts DESC, id DESC LIMIT 1`, name)
	var r storage.Reading
	var ts string
	if err := row.Scan(&r.Name, &r.Value, &r.Payload, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Reading{}, fmt.Errorf("latest reading %q: %w", name, storage.ErrNotFound)
		}
		return storage.Reading{}, fmt.Errorf("query latest reading: %w", err)
	}
	parsedTS, err := parseSQLiteTS(ts)
	if err != nil {
		return storage.Reading{}, fmt.Errorf("parse reading timestamp: %w", err)
	}
	r.TS = parsedTS
	return r, nil
}

// QueryCommands возвращает историю по фильтрам, новые записи первыми.
func (s *Store) QueryCommands(ctx context.Context, q storage.CommandQuery) ([]storage.CommandRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	// ts хранится строкой в UTC, поэтому границы тоже приводим к UTC.
	from := q.From.UTC()
	if q.From.IsZero() {
		from = time.Unix(0, 0).UTC()
	}
	to := q.To.UTC()
	if q.To.IsZero() {
		to = time.Now().UTC()
	}
	if to.Before(from) {
		return nil, fmt.Errorf("query commands: until %s is before since %s", to.Format(time.RFC3339), from.Format(time.RFC3339))
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT request_id, message, status, reason, response, ts
FROM commands
WHERE ts >= ? AND ts <= ? AND (? = '' OR status = ?)
ORDER BY ts DESC, id DESC
LIMIT ?`, from, to, q.Status, q.Status, limit)
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}
	defer rows.Close()

	records := make([]storage.CommandRecord, 0, limit)
	for rows.Next() {
		var rec storage.CommandRecord
		var reason, response sql.NullString
		var ts string
		if err := rows.Scan(&rec.RequestID, &rec.Message, &rec.Status, &reason, &response, &ts); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		parsedTS, err := parseSQLiteTS(ts)
		if err != nil {
			return nil, fmt.Errorf("parse command timestamp: %w", err)
		}
		rec.Reason = reason.String
		rec.Response = response.String
		rec.TS = parsedTS
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commands: %w", err)
	}
	return records, nil
}

func parseSQLiteTS(v string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported sqlite time format: %q", v)
}

// Close закрывает соединение.
func (s *Store) Close() error {
	return s.db.Close()
}
