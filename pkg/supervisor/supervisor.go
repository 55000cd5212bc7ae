package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/claudegel/zigbee-herdsman/pkg/zstack"
)

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("supervisor closed")

// DefaultAttemptTimeout bounds a single restart attempt.
const DefaultAttemptTimeout = 2 * time.Minute

// State is the supervision state.
type State uint8

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateRestarting
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateRestarting:
		return "RESTARTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// StartFunc brings the coordinator up. On failure it must leave the link
// closed so the next attempt can reopen it.
type StartFunc func(ctx context.Context) error

// Config configures a Supervisor.
type Config struct {
	// Start is called for the first start and every restart. Required.
	Start StartFunc

	Backoff BackoffConfig

	// AttemptTimeout bounds each restart (default: 2 minutes).
	AttemptTimeout time.Duration

	// OnStateChange is called after each transition. Optional.
	OnStateChange func(oldState, newState State)

	// OnRestarting is called before waiting delay for restart attempt n.
	OnRestarting func(attempt int, delay time.Duration)

	Logger *slog.Logger
}

// Supervisor restarts a coordinator after link loss.
type Supervisor struct {
	zstack.NopObserver

	config  Config
	backoff *Backoff
	logger  *slog.Logger

	mu       sync.Mutex
	state    State
	restarts int
	lastErr  error

	lostCh chan error
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ zstack.Observer = (*Supervisor)(nil)

// New creates a Supervisor.
func New(config Config) *Supervisor {
	if config.AttemptTimeout <= 0 {
		config.AttemptTimeout = DefaultAttemptTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		config:  config,
		backoff: NewBackoff(config.Backoff),
		logger:  logger.With("component", "supervisor"),
		lostCh:  make(chan error, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start runs the first start synchronously and, when it succeeds, begins
// watching for link loss.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state != StateIdle {
		s.mu.Unlock()
		return errors.New("supervisor already started")
	}
	s.mu.Unlock()

	s.setState(StateStarting)
	if err := s.config.Start(ctx); err != nil {
		s.setState(StateIdle)
		return err
	}
	s.setState(StateRunning)

	s.wg.Add(1)
	go s.loop()
	return nil
}

// OnDisconnected implements zstack.Observer.
func (s *Supervisor) OnDisconnected(err error) {
	s.LinkLost(err)
}

// LinkLost schedules a restart. It is ignored unless the coordinator is
// running.
func (s *Supervisor) LinkLost(err error) {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.lastErr = err
	s.mu.Unlock()

	s.setState(StateRestarting)
	select {
	case s.lostCh <- err:
	default:
	}
}

// State returns the supervision state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Restarts returns the number of successful restarts.
func (s *Supervisor) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

// LastError returns the cause of the most recent link loss.
func (s *Supervisor) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Close stops supervision and waits for a running restart to end. It does
// not stop the coordinator.
func (s *Supervisor) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.setState(StateClosed)
	s.cancel()
	s.wg.Wait()
}

func (s *Supervisor) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case err := <-s.lostCh:
			s.logger.Warn("coordinator link lost, restarting", "error", err)
			s.restart()
		}
	}
}

// restart retries Start with backoff until it succeeds or Close is called.
func (s *Supervisor) restart() {
	for {
		delay := s.backoff.Next()
		attempt := s.backoff.Attempts()
		if s.config.OnRestarting != nil {
			s.config.OnRestarting(attempt, delay)
		}

		select {
		case <-s.ctx.Done():
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(s.ctx, s.config.AttemptTimeout)
		err := s.config.Start(ctx)
		cancel()

		if s.State() == StateClosed {
			return
		}
		if err == nil {
			s.backoff.Reset()
			s.setState(StateRunning)
			s.mu.Lock()
			s.restarts++
			s.mu.Unlock()
			s.logger.Info("coordinator restarted", "attempts", attempt)
			return
		}
		s.logger.Warn("restart failed", "attempt", attempt, "error", err)
	}
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	old := s.state
	if old == state || old == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.mu.Unlock()

	if s.config.OnStateChange != nil {
		s.config.OnStateChange(old, state)
	}
}
