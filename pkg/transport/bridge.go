package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
)

// BridgeConfig configures a Bridge.
type BridgeConfig struct {
	// Address to listen on (e.g., ":6638").
	Address string

	// Open opens the chip link for each client session. Required.
	Open func(ctx context.Context) (io.ReadWriteCloser, error)

	Logger *slog.Logger
}

// Bridge exposes a serial link over TCP to one client at a time. The link
// is opened when a client connects and closed when it leaves; further
// clients are refused while a session is active.
type Bridge struct {
	config   BridgeConfig
	logger   *slog.Logger
	listener net.Listener

	active   atomic.Bool
	sessions atomic.Int64

	mu      sync.Mutex
	current net.Conn

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewBridge creates a Bridge.
func NewBridge(config BridgeConfig) (*Bridge, error) {
	if config.Open == nil {
		return nil, errors.New("bridge needs a link opener")
	}
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", 6638)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{config: config, logger: logger.With("component", "bridge")}, nil
}

// Start listens and begins accepting clients.
func (b *Bridge) Start(ctx context.Context) error {
	if b.running.Load() {
		return fmt.Errorf("bridge already running")
	}
	listener, err := net.Listen("tcp", b.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	b.ctx, b.cancel = context.WithCancel(ctx)
	b.listener = listener
	b.running.Store(true)

	b.wg.Add(1)
	go b.acceptLoop()
	b.logger.Info("bridge listening", "address", listener.Addr().String())
	return nil
}

// Stop closes the listener and the active session.
func (b *Bridge) Stop() error {
	if !b.running.Swap(false) {
		return nil
	}
	b.cancel()
	err := b.listener.Close()

	b.mu.Lock()
	if b.current != nil {
		_ = b.current.Close()
	}
	b.mu.Unlock()

	b.wg.Wait()
	return err
}

// Addr returns the listen address.
func (b *Bridge) Addr() net.Addr {
	if b.listener != nil {
		return b.listener.Addr()
	}
	return nil
}

// Sessions returns the number of sessions served so far.
func (b *Bridge) Sessions() int64 {
	return b.sessions.Load()
}

func (b *Bridge) acceptLoop() {
	defer b.wg.Done()

	for b.running.Load() {
		conn, err := b.listener.Accept()
		if err != nil {
			if b.running.Load() {
				b.logger.Warn("accept failed", "error", err)
			}
			continue
		}
		if !b.active.CompareAndSwap(false, true) {
			b.logger.Warn("refused client, session active", "remote", conn.RemoteAddr().String())
			_ = conn.Close()
			continue
		}
		b.wg.Add(1)
		go b.serve(conn)
	}
}

// serve pipes bytes between conn and the chip until either side closes.
func (b *Bridge) serve(conn net.Conn) {
	defer b.wg.Done()
	defer b.active.Store(false)

	remote := conn.RemoteAddr().String()
	link, err := b.config.Open(b.ctx)
	if err != nil {
		b.logger.Error("open link for client", "remote", remote, "error", err)
		_ = conn.Close()
		return
	}

	b.mu.Lock()
	b.current = conn
	b.mu.Unlock()
	b.sessions.Add(1)
	b.logger.Info("client connected", "remote", remote)

	done := make(chan struct{}, 2)
	go func() {
		_, _ = io.Copy(link, conn)
		done <- struct{}{}
	}()
	go func() {
		_, _ = io.Copy(conn, link)
		done <- struct{}{}
	}()
	<-done
	_ = conn.Close()
	_ = link.Close()
	<-done

	b.mu.Lock()
	b.current = nil
	b.mu.Unlock()
	b.logger.Info("client disconnected", "remote", remote)
}
