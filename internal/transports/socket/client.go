package socket

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
)

// Send отправляет одно сообщение демону и возвращает его ответ.
func Send(ctx context.Context, path string, tokens []string) (string, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", path, err)
	}
	defer func() { _ = conn.Close() }()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := io.WriteString(conn, strings.Join(tokens, " ")); err != nil {
		return "", fmt.Errorf("write request: %w", err)
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		_ = uc.CloseWrite()
	}
	reply, err := io.ReadAll(conn)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return string(reply), nil
}
