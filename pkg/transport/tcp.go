package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"
)

// DefaultConnectTimeout bounds dialing a network attached coordinator.
const DefaultConnectTimeout = 10 * time.Second

// DialTCP connects to a serial-over-TCP bridge.
func DialTCP(ctx context.Context, address string, timeout time.Duration) (io.ReadWriteCloser, error) {
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}
	// Apply timeout from config if context doesn't have one
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	dialer := &net.Dialer{KeepAlive: 15 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	return conn, nil
}
