package socket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ryzenadjd/internal/core"
	"ryzenadjd/internal/storage"
)

// DefaultReadBuffer задает максимальный размер одного сообщения клиента.
const DefaultReadBuffer = 4096

// Dispatcher обрабатывает токены одного сообщения.
type Dispatcher interface {
	Dispatch(ctx context.Context, tokens []string) (core.Result, error)
}

// Config определяет параметры Unix-сокета.
type Config struct {
	Path        string
	Permissions os.FileMode
	ReadBuffer  int
}

// Server принимает соединения на Unix-сокете: одно соединение обслуживает один запрос
// и один ответ, после чего соединение закрывается.
type Server struct {
	cfg        Config
	dispatcher Dispatcher
	tasks      *core.TaskSet
	recorder   storage.CommandRecorder
	log        *slog.Logger

	mu         sync.Mutex
	listener   net.Listener
	stopping   bool
	acceptDone chan struct{}
}

// New создает сервер. Обработчики соединений запускаются через tasks,
// чтобы их можно было отменить при остановке. recorder может быть nil.
func New(cfg Config, d Dispatcher, tasks *core.TaskSet, recorder storage.CommandRecorder, log *slog.Logger) *Server {
	if cfg.ReadBuffer <= 0 {
		cfg.ReadBuffer = DefaultReadBuffer
	}
	if cfg.Permissions == 0 {
		cfg.Permissions = 0o666
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{cfg: cfg, dispatcher: d, tasks: tasks, recorder: recorder, log: log}
}

func (s *Server) Name() string { return "socket" }

// Path возвращает путь к сокету.
func (s *Server) Path() string { return s.cfg.Path }

// Start открывает сокет и запускает цикл приема соединений.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return errors.New("socket transport already started")
	}
	if s.cfg.Path == "" {
		return errors.New("socket path is not configured")
	}
	if err := os.MkdirAll(filepath.Dir(s.cfg.Path), 0o755); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	if err := removeStaleSocket(s.cfg.Path); err != nil {
		return err
	}
	ln, err := net.Listen("unix", s.cfg.Path)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Path, err)
	}
	if err := os.Chmod(s.cfg.Path, s.cfg.Permissions); err != nil {
		_ = ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}
	s.listener = ln
	s.stopping = false
	s.acceptDone = make(chan struct{})
	go s.acceptLoop(ctx, ln, s.acceptDone)
	s.log.Info("unix socket opened", "path", s.cfg.Path)
	return nil
}

// Stop закрывает listener, ждет выхода из цикла приема и удаляет файл сокета.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	ln, done := s.listener, s.acceptDone
	s.listener = nil
	s.stopping = true
	s.mu.Unlock()
	if ln == nil {
		return nil
	}
	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("close listener: %w", err)
	}
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := os.Remove(s.cfg.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove socket: %w", err)
	}
	return nil
}

func (s *Server) isStopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, done chan struct{}) {
	defer close(done)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isStopping() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept failed", "err", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		started := s.tasks.Go(ctx, "conn", func(taskCtx context.Context) {
			s.handleConn(taskCtx, conn)
		})
		if !started {
			// набор задач уже закрыт: демон останавливается
			_ = conn.Close()
		}
	}
}

// handleConn читает одно сообщение, отвечает и закрывает соединение.
// Отмена ctx прерывает чтение; ответ в этом случае не отправляется.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	buf := make([]byte, s.cfg.ReadBuffer)
	n, err := conn.Read(buf)
	if n == 0 {
		if err != nil && ctx.Err() == nil && !isEOF(err) {
			s.log.Debug("read failed", "err", err)
		}
		return
	}
	message := strings.TrimSpace(strings.ToValidUTF8(string(buf[:n]), "�"))
	tokens := strings.Fields(message)
	s.log.Debug("message received", "tokens", tokens)

	res, err := s.dispatcher.Dispatch(ctx, tokens)
	if err != nil {
		// пустое сообщение или отмена при остановке: отвечать нечего
		return
	}
	reply := res.String()
	if _, err := conn.Write([]byte(reply)); err != nil && ctx.Err() == nil {
		s.log.Warn("write response failed", "err", err)
	}
	s.log.Info("command handled", "message", message, "response", reply)
	s.record(ctx, message, res)
}

func (s *Server) record(ctx context.Context, message string, res core.Result) {
	if s.recorder == nil {
		return
	}
	rec := storage.CommandRecord{
		RequestID: uuid.NewString(),
		Message:   message,
		Status:    storage.StatusOK,
		Response:  res.String(),
	}
	if res.Err != nil {
		rec.Reason = res.Err.Code()
		rec.Status = storage.StatusRejected
		if errors.Is(res.Err, core.ErrExecution) {
			rec.Status = storage.StatusExecError
		}
	}
	if err := s.recorder.SaveCommand(context.WithoutCancel(ctx), rec); err != nil {
		s.log.Warn("save command history failed", "err", err)
	}
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}

// removeStaleSocket удаляет файл сокета, если его никто не слушает.
func removeStaleSocket(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	conn, err := net.DialTimeout("unix", path, 500*time.Millisecond)
	if err == nil {
		_ = conn.Close()
		return fmt.Errorf("socket %s is in use by another daemon", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	return nil
}
