package zstack

import (
	"context"
	"encoding/binary"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/claudegel/zigbee-herdsman/pkg/log"
	"github.com/claudegel/zigbee-herdsman/pkg/persistence"
	"github.com/claudegel/zigbee-herdsman/pkg/queue"
	"github.com/claudegel/zigbee-herdsman/pkg/transport"
	"github.com/claudegel/zigbee-herdsman/pkg/unpi"
	"github.com/claudegel/zigbee-herdsman/pkg/waitress"
	"github.com/claudegel/zigbee-herdsman/pkg/znp"
)

// ZNP is the correlation engine the adapter drives. *znp.Znp implements it.
type ZNP interface {
	Open(ctx context.Context) error
	Close() error
	Request(ctx context.Context, subsystem unpi.Subsystem, command string, payload znp.Payload, opts ...znp.RequestOption) (*znp.ZpiObject, error)
	WaitFor(t unpi.Type, subsystem unpi.Subsystem, command string, match znp.Payload, timeout time.Duration) *znp.Waiter
	AddObserver(o znp.Observer)
	ConnectionID() string
}

var _ ZNP = (*znp.Znp)(nil)

// NetworkOptions are the network parameters the coordinator forms or
// resumes.
type NetworkOptions struct {
	PanID                uint16
	ExtendedPanID        [8]byte
	ChannelList          []uint8
	NetworkKey           [16]byte
	NetworkKeyDistribute bool
}

// ChannelMask returns the 32-bit channel bitmap.
func (o NetworkOptions) ChannelMask() uint32 {
	var mask uint32
	for _, ch := range o.ChannelList {
		mask |= 1 << ch
	}
	return mask
}

func (o NetworkOptions) channelMaskBytes() []byte {
	return binary.LittleEndian.AppendUint32(nil, o.ChannelMask())
}

func (o NetworkOptions) panIDBytes() []byte {
	return []byte{byte(o.PanID & 0xFF), byte(o.PanID >> 8)}
}

func (o NetworkOptions) distributeFlag() []byte {
	if o.NetworkKeyDistribute {
		return []byte{1}
	}
	return []byte{0}
}

// Timeouts bounds the adapter's waits. Zero fields take the defaults.
type Timeouts struct {
	DataConfirm     time.Duration
	Response        time.Duration
	DefaultResponse time.Duration
	ZDO             time.Duration
	Commissioning   time.Duration
}

func (t *Timeouts) applyDefaults() {
	if t.DataConfirm == 0 {
		t.DataConfirm = DefaultDataConfirmTimeout
	}
	if t.Response == 0 {
		t.Response = DefaultResponseTimeout
	}
	if t.DefaultResponse == 0 {
		t.DefaultResponse = DefaultDefaultResponseTimeout
	}
	if t.ZDO == 0 {
		t.ZDO = DefaultZDOTimeout
	}
	if t.Commissioning == 0 {
		t.Commissioning = DefaultCommissioningTimeout
	}
}

// Options configures an Adapter.
type Options struct {
	Network NetworkOptions

	// Backup is restored by Start when the chip is not configured. Optional.
	Backup *persistence.Backup

	// Queue serializes operations per destination. Defaults to queue.New().
	Queue queue.Executor

	Timeouts Timeouts

	// KeepAlive pings the chip once started and reports a dead link to
	// observers. Nil disables it.
	KeepAlive *transport.KeepAliveConfig

	// Logger receives operational logs. Defaults to slog.Default().
	Logger *slog.Logger

	// ProtocolLogger receives commissioning state changes. Optional.
	ProtocolLogger log.Logger
}

// StartResult is the outcome of Start.
type StartResult string

const (
	StartResetted StartResult = "resetted"
	StartResumed  StartResult = "resumed"
	StartRestored StartResult = "restored"
)

// State is the commissioning state of the adapter.
type State int32

const (
	StateUninitialized State = iota
	StateVersionQueried
	StateReset
	StateResume
	StateRestore
	StateReady
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateVersionQueried:
		return "VERSION_QUERIED"
	case StateReset:
		return "RESET"
	case StateResume:
		return "RESUME"
	case StateRestore:
		return "RESTORE"
	case StateReady:
		return "READY"
	default:
		return "UNKNOWN"
	}
}

// Adapter operates a Z-Stack coordinator through a ZNP.
type Adapter struct {
	znp      ZNP
	opts     Options
	queue    queue.Executor
	logger   *slog.Logger
	protocol log.Logger

	state atomic.Int32

	// Set by Start once SYS version has been read.
	version *VersionInfo
	profile variantProfile

	transID   transactionID
	responses *zclWaitress

	observersMu sync.RWMutex
	observers   []Observer

	keepAlive *transport.KeepAlive
	stopping  atomic.Bool
}

// New creates an Adapter and subscribes it to z's inbound frames.
func New(z ZNP, opts Options) *Adapter {
	opts.Timeouts.applyDefaults()
	if opts.Queue == nil {
		opts.Queue = queue.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opts.Network.ChannelList = append([]uint8(nil), opts.Network.ChannelList...)

	a := &Adapter{
		znp:       z,
		opts:      opts,
		queue:     opts.Queue,
		logger:    logger.With("component", "zstack"),
		protocol:  opts.ProtocolLogger,
		responses: newZclWaitress(),
	}
	z.AddObserver(a)
	return a
}

// State returns the commissioning state.
func (a *Adapter) State() State {
	return State(a.state.Load())
}

// Variant returns the firmware variant detected by Start.
func (a *Adapter) Variant() Variant {
	if a.version == nil {
		return VariantLegacy
	}
	return a.version.Variant
}

// SupportsBackup reports whether the firmware supports Backup.
func (a *Adapter) SupportsBackup() bool {
	return a.version != nil && a.profile.backup
}

// AddObserver registers o for adapter notifications.
func (a *Adapter) AddObserver(o Observer) {
	a.observersMu.Lock()
	defer a.observersMu.Unlock()
	a.observers = append(a.observers, o)
}

func (a *Adapter) observerList() []Observer {
	a.observersMu.RLock()
	defer a.observersMu.RUnlock()
	return append([]Observer(nil), a.observers...)
}

// Stop closes the link. Pending waits fail and no disconnect notification
// is emitted.
func (a *Adapter) Stop() error {
	a.stopping.Store(true)
	if a.keepAlive != nil {
		a.keepAlive.Stop()
	}
	a.responses.RejectAll(znp.ErrConnectionClosed)
	err := a.znp.Close()
	a.setState(StateUninitialized, "stopped")
	return err
}

// startKeepAlive starts link monitoring. A dead link is closed and
// reported as a disconnect.
func (a *Adapter) startKeepAlive() {
	if a.opts.KeepAlive == nil {
		return
	}
	if a.keepAlive == nil {
		a.keepAlive = transport.NewKeepAlive(*a.opts.KeepAlive, a.ping, a.linkDead)
	}
	a.keepAlive.Start(context.Background())
}

func (a *Adapter) ping(ctx context.Context) error {
	_, err := a.znp.Request(ctx, unpi.SYS, "ping", nil)
	return err
}

// linkDead closes a link that stopped answering pings. Only the first of
// linkDead, OnClosed and Stop reports; Start rearms them.
func (a *Adapter) linkDead(err error) {
	if a.State() != StateReady || !a.stopping.CompareAndSwap(false, true) {
		return
	}
	a.logger.Error("coordinator stopped answering pings", "error", err)
	_ = a.znp.Close()
	a.responses.RejectAll(znp.ErrConnectionClosed)
	a.setState(StateUninitialized, "keep-alive timeout")
	cause := &LinkDeadError{Err: err}
	for _, o := range a.observerList() {
		o.OnDisconnected(cause)
	}
}

func (a *Adapter) setState(s State, reason string) {
	old := State(a.state.Swap(int32(s)))
	if old == s {
		return
	}
	a.logger.Debug("commissioning state", "from", old.String(), "to", s.String())
	if a.protocol == nil {
		return
	}
	a.protocol.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: a.znp.ConnectionID(),
		Layer:        log.LayerAdapter,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityCommissioning,
			OldState: old.String(),
			NewState: s.String(),
			Reason:   reason,
		},
	})
}

// readNV reads an NV item from offset 0.
func (a *Adapter) readNV(ctx context.Context, id uint16) ([]byte, error) {
	rsp, err := a.znp.Request(ctx, unpi.SYS, "osalNvRead", znp.Payload{"id": id, "offset": 0})
	if err != nil {
		return nil, err
	}
	return rsp.Payload.Bytes("value"), nil
}

// writeNV writes value at offset 0 of an NV item.
func (a *Adapter) writeNV(ctx context.Context, id uint16, value []byte) error {
	_, err := a.znp.Request(ctx, unpi.SYS, "osalNvWrite", znp.Payload{
		"id":     id,
		"offset": 0,
		"value":  value,
	})
	return err
}

// initNV creates an NV item holding value if it does not exist yet.
func (a *Adapter) initNV(ctx context.Context, id uint16, value []byte) error {
	_, err := a.znp.Request(ctx, unpi.SYS, "osalNvItemInit", znp.Payload{
		"id":        id,
		"len":       len(value),
		"initvalue": value,
	}, znp.WithExpectedStatus(znp.StatusSuccess, znp.StatusNVItemUninit))
	return err
}

// zdoWait registers a wait for a ZDO callback. It is a shorthand for the
// many ZDO request/response pairs.
func (a *Adapter) zdoWait(command string, match znp.Payload) *znp.Waiter {
	return a.znp.WaitFor(unpi.AREQ, unpi.ZDO, command, match, a.opts.Timeouts.ZDO)
}

// zclWaitress is the index of data plane response waits.
type zclWaitress = waitress.Waitress[*ZclData, zclMatcher]
