package znp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/claudegel/zigbee-herdsman/pkg/log"
	"github.com/claudegel/zigbee-herdsman/pkg/unpi"
	"github.com/claudegel/zigbee-herdsman/pkg/waitress"
)

// Default timeouts.
const (
	DefaultSREQTimeout  = 6 * time.Second
	DefaultResetTimeout = 30 * time.Second
)

// skipBootloaderByte makes CC2652/CC1352 serial bootloaders jump to the
// application image.
const skipBootloaderByte = 0xEF

// LinkState is the state of the serial link.
type LinkState int32

const (
	StateClosed LinkState = iota
	StateOpening
	StateOpen
	StateClosing
)

// String returns the link state name.
func (s LinkState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpening:
		return "OPENING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// OpenFunc opens the byte stream to the chip.
type OpenFunc func(ctx context.Context) (io.ReadWriteCloser, error)

// Config configures a Znp.
type Config struct {
	// Open opens the link. Required.
	Open OpenFunc

	// Port names the link in logs.
	Port string

	// SkipBootloader writes the bootloader skip byte after opening and
	// waits BootloaderDelay for the application to start.
	SkipBootloader  bool
	BootloaderDelay time.Duration

	// SREQTimeout bounds the wait for an SRSP (default: 6s).
	SREQTimeout time.Duration

	// ResetTimeout bounds the wait for SYS resetInd (default: 30s).
	ResetTimeout time.Duration

	// Logger receives operational logs. Defaults to slog.Default().
	Logger *slog.Logger

	// ProtocolLogger receives frame and message capture events. Optional.
	ProtocolLogger log.Logger
}

// Observer receives every decoded inbound frame and unexpected link loss.
type Observer interface {
	OnReceived(obj *ZpiObject)
	OnClosed(err error)
}

// Matcher selects the frames a pending wait accepts.
type Matcher struct {
	Type      unpi.Type
	Subsystem unpi.Subsystem
	Command   string
	Payload   Payload
}

func (m Matcher) String() string {
	if len(m.Payload) == 0 {
		return fmt.Sprintf("%s - %s - %s", m.Type, m.Subsystem, m.Command)
	}
	return fmt.Sprintf("%s - %s - %s %v", m.Type, m.Subsystem, m.Command, map[string]any(m.Payload))
}

// Waiter is the handle of a pending wait registered with WaitFor.
type Waiter = waitress.Waiter[*ZpiObject, Matcher]

// Waitress is the pending-wait index used by Znp.
type Waitress = waitress.Waitress[*ZpiObject, Matcher]

// NewWaitress returns a pending-wait index keyed on type, subsystem and
// command, matching payloads as supersets.
func NewWaitress() *Waitress {
	return waitress.New(waitress.Config[*ZpiObject, Matcher]{
		MatcherKey: func(m Matcher) string { return waitKey(m.Type, m.Subsystem, m.Command) },
		PayloadKey: func(o *ZpiObject) string { return waitKey(o.Type, o.Subsystem, o.Command) },
		Validate:   func(o *ZpiObject, m Matcher) bool { return o.Payload.Matches(m.Payload) },
	})
}

func waitKey(t unpi.Type, s unpi.Subsystem, command string) string {
	return fmt.Sprintf("%d/%d/%s", t, s, command)
}

// RequestOption configures a single Request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	expected []Status
}

// WithExpectedStatus replaces the accepted SRSP statuses (default: SUCCESS).
// With no arguments any status is accepted.
func WithExpectedStatus(statuses ...Status) RequestOption {
	return func(o *requestOptions) {
		o.expected = statuses
	}
}

// Znp correlates MT requests with their responses over a UNPI link.
type Znp struct {
	cfg    Config
	logger *slog.Logger

	state   atomic.Int32
	connID  string
	rwc     io.ReadWriteCloser
	writer  *unpi.Writer
	readEnd chan struct{}

	// Only one SREQ may be outstanding on the link.
	sreqMu sync.Mutex

	waitress *Waitress

	observersMu sync.RWMutex
	observers   []Observer

	closing   atomic.Bool
	closeOnce sync.Once
}

// New creates a Znp. The link is opened by Open.
func New(cfg Config) *Znp {
	if cfg.SREQTimeout == 0 {
		cfg.SREQTimeout = DefaultSREQTimeout
	}
	if cfg.ResetTimeout == 0 {
		cfg.ResetTimeout = DefaultResetTimeout
	}
	if cfg.BootloaderDelay == 0 {
		cfg.BootloaderDelay = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Znp{
		cfg:      cfg,
		logger:   logger.With("component", "znp", "port", cfg.Port),
		waitress: NewWaitress(),
	}
}

// State returns the link state.
func (z *Znp) State() LinkState {
	return LinkState(z.state.Load())
}

// ConnectionID identifies the current link session in protocol captures.
func (z *Znp) ConnectionID() string {
	return z.connID
}

// AddObserver registers o for inbound frames and link loss.
func (z *Znp) AddObserver(o Observer) {
	z.observersMu.Lock()
	defer z.observersMu.Unlock()
	z.observers = append(z.observers, o)
}

// Open opens the link and starts dispatching inbound frames.
func (z *Znp) Open(ctx context.Context) error {
	if !z.state.CompareAndSwap(int32(StateClosed), int32(StateOpening)) {
		return fmt.Errorf("znp: open in state %s", z.State())
	}
	if z.cfg.Open == nil {
		z.setState(StateClosed, "no opener")
		return &TransportError{Op: "open", Err: errors.New("no transport configured")}
	}

	rwc, err := z.cfg.Open(ctx)
	if err != nil {
		z.setState(StateClosed, err.Error())
		return &TransportError{Op: "open", Err: err}
	}

	z.connID = uuid.New().String()
	z.rwc = rwc
	z.writer = unpi.NewWriter(rwc)
	reader := unpi.NewReader(rwc)
	if z.cfg.ProtocolLogger != nil {
		z.writer.SetLogger(z.cfg.ProtocolLogger, z.connID)
		reader.SetLogger(z.cfg.ProtocolLogger, z.connID)
	}
	z.closing.Store(false)
	z.closeOnce = sync.Once{}
	z.readEnd = make(chan struct{})

	if z.cfg.SkipBootloader {
		if _, err := rwc.Write([]byte{skipBootloaderByte}); err != nil {
			_ = rwc.Close()
			z.setState(StateClosed, err.Error())
			return &TransportError{Op: "skip bootloader", Err: err}
		}
		select {
		case <-time.After(z.cfg.BootloaderDelay):
		case <-ctx.Done():
			_ = rwc.Close()
			z.setState(StateClosed, ctx.Err().Error())
			return ctx.Err()
		}
	}

	z.setState(StateOpen, "")
	z.logger.Info("link open", "conn_id", z.connID)
	go z.readLoop(reader)
	return nil
}

// Close closes the link. Pending waits fail with ErrConnectionClosed and
// observers are not notified.
func (z *Znp) Close() error {
	if z.State() != StateOpen {
		return nil
	}
	z.closing.Store(true)
	z.setState(StateClosing, "closed by owner")
	err := z.rwc.Close()
	<-z.readEnd
	return err
}

func (z *Znp) readLoop(reader *unpi.Reader) {
	defer close(z.readEnd)
	for {
		f, err := reader.ReadFrame()
		if err != nil {
			var perr *unpi.ProtocolError
			if errors.As(err, &perr) {
				z.logger.Debug("dropped malformed frame", "error", err)
				z.logError(err.Error(), "read frame")
				continue
			}
			z.handleClose(err)
			return
		}

		obj, err := FromFrame(f)
		if err != nil {
			z.logger.Debug("undecodable frame", "frame", f.String(), "error", err)
			continue
		}
		z.logMessage(log.DirectionIn, obj)
		z.dispatch(obj)
	}
}

// dispatch offers obj to pending waits, then publishes it to observers.
func (z *Znp) dispatch(obj *ZpiObject) {
	z.waitress.Resolve(obj)

	z.observersMu.RLock()
	observers := append([]Observer(nil), z.observers...)
	z.observersMu.RUnlock()
	for _, o := range observers {
		o.OnReceived(obj)
	}
}

func (z *Znp) handleClose(cause error) {
	z.closeOnce.Do(func() {
		z.waitress.RejectAll(ErrConnectionClosed)
		initiated := z.closing.Load()
		z.setState(StateClosed, fmt.Sprint(cause))
		if initiated {
			z.logger.Info("link closed")
			return
		}
		_ = z.rwc.Close()
		z.logger.Warn("link lost", "error", cause)

		terr := &TransportError{Op: "read", Err: cause}
		z.observersMu.RLock()
		observers := append([]Observer(nil), z.observers...)
		z.observersMu.RUnlock()
		for _, o := range observers {
			o.OnClosed(terr)
		}
	})
}

// Request sends a command. For SREQ commands it blocks until the SRSP
// arrives and checks its status. SYS resetReq waits for SYS resetInd;
// other AREQ commands return once written with a nil object.
func (z *Znp) Request(ctx context.Context, subsystem unpi.Subsystem, command string, payload Payload, opts ...RequestOption) (*ZpiObject, error) {
	if z.State() != StateOpen {
		return nil, ErrNotOpen
	}
	options := requestOptions{expected: []Status{StatusSuccess}}
	for _, opt := range opts {
		opt(&options)
	}

	obj, err := NewRequest(subsystem, command, payload)
	if err != nil {
		return nil, err
	}
	frame, err := obj.Frame()
	if err != nil {
		return nil, err
	}

	switch obj.Type {
	case unpi.SREQ:
		z.sreqMu.Lock()
		defer z.sreqMu.Unlock()

		waiter := z.waitress.WaitFor(Matcher{Type: unpi.SRSP, Subsystem: subsystem, Command: command}, z.cfg.SREQTimeout)
		if err := z.write(obj, frame); err != nil {
			waiter.Cancel()
			return nil, err
		}
		rsp, err := waiter.Wait(ctx)
		if err != nil {
			return nil, fmt.Errorf("SREQ '%s %s': %w", subsystem, command, err)
		}
		if len(options.expected) > 0 && rsp.Payload.Has("status") {
			status := Status(rsp.Payload.Uint8("status"))
			if !containsStatus(options.expected, status) {
				return nil, &StatusError{Subsystem: subsystem, Command: command, Status: status, Expected: options.expected}
			}
		}
		return rsp, nil

	case unpi.AREQ:
		if subsystem == unpi.SYS && command == "resetReq" {
			waiter := z.waitress.WaitFor(Matcher{Type: unpi.AREQ, Subsystem: unpi.SYS, Command: "resetInd"}, z.cfg.ResetTimeout)
			if err := z.write(obj, frame); err != nil {
				waiter.Cancel()
				return nil, err
			}
			return waiter.Wait(ctx)
		}
		return nil, z.write(obj, frame)

	default:
		return nil, fmt.Errorf("znp: cannot send %s frame %s", obj.Type, command)
	}
}

// WaitFor registers a pending wait before returning. A zero timeout never
// expires.
func (z *Znp) WaitFor(t unpi.Type, subsystem unpi.Subsystem, command string, match Payload, timeout time.Duration) *Waiter {
	return z.waitress.WaitFor(Matcher{Type: t, Subsystem: subsystem, Command: command, Payload: match}, timeout)
}

func (z *Znp) write(obj *ZpiObject, frame *unpi.Frame) error {
	z.logMessage(log.DirectionOut, obj)
	if err := z.writer.WriteFrame(frame); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (z *Znp) setState(s LinkState, reason string) {
	old := LinkState(z.state.Swap(int32(s)))
	if z.cfg.ProtocolLogger == nil || old == s {
		return
	}
	z.cfg.ProtocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: z.connID,
		Layer:        log.LayerZNP,
		Category:     log.CategoryState,
		Port:         z.cfg.Port,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityLink,
			OldState: old.String(),
			NewState: s.String(),
			Reason:   reason,
		},
	})
}

func (z *Znp) logMessage(dir log.Direction, obj *ZpiObject) {
	z.logger.Debug("mt", "dir", dir.String(), "obj", obj.String())
	if z.cfg.ProtocolLogger == nil {
		return
	}
	z.cfg.ProtocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: z.connID,
		Direction:    dir,
		Layer:        log.LayerZNP,
		Category:     log.CategoryMessage,
		Port:         z.cfg.Port,
		Message: &log.MessageEvent{
			Type:      obj.Type.String(),
			Subsystem: obj.Subsystem.String(),
			Command:   obj.Command,
			CommandID: obj.CommandID,
			Payload:   map[string]any(obj.Payload),
		},
	})
}

func (z *Znp) logError(msg, op string) {
	if z.cfg.ProtocolLogger == nil {
		return
	}
	z.cfg.ProtocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: z.connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryError,
		Port:         z.cfg.Port,
		Error:        &log.ErrorEventData{Layer: log.LayerTransport, Message: msg, Context: op},
	})
}
