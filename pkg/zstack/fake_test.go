package zstack

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/claudegel/zigbee-herdsman/pkg/queue"
	"github.com/claudegel/zigbee-herdsman/pkg/unpi"
	"github.com/claudegel/zigbee-herdsman/pkg/znp"
)

// call is one request seen by fakeZnp.
type call struct {
	Subsystem unpi.Subsystem
	Command   string
	Payload   znp.Payload
}

func (c call) String() string {
	return fmt.Sprintf("%s %s", c.Subsystem, c.Command)
}

type handlerFunc func(f *fakeZnp, c call) (znp.Payload, error)

// fakeZnp simulates a coordinator with an in-memory NV store. Requests
// are validated against the command table; handlers may emit AREQ frames
// before the request returns.
type fakeZnp struct {
	mu          sync.Mutex
	calls       []call
	handlers    map[string]handlerFunc
	observers   []znp.Observer
	nv          map[uint16][]byte
	product     uint8
	deviceState uint8
	activeEps   []uint8
	confirm     uint8
	chunk       int
	closed      bool

	waitress *znp.Waitress

	// onData runs after the data confirm of every AF data request.
	onData func(f *fakeZnp, c call)
}

func newFakeZnp(product uint8) *fakeZnp {
	f := &fakeZnp{
		handlers:    make(map[string]handlerFunc),
		nv:          make(map[uint16][]byte),
		product:     product,
		deviceState: deviceStateCoordinator,
		chunk:       100,
		waitress:    znp.NewWaitress(),
	}
	f.handle(unpi.SYS, "version", func(f *fakeZnp, c call) (znp.Payload, error) {
		return znp.Payload{
			"transportrev": 2, "product": f.product, "majorrel": 2,
			"minorrel": 7, "maintrel": 1, "revision": uint32(20200805),
		}, nil
	})
	f.handle(unpi.SYS, "resetReq", func(f *fakeZnp, c call) (znp.Payload, error) {
		return znp.Payload{"reason": 0, "transportrev": 2, "productid": f.product}, nil
	})
	f.handle(unpi.SYS, "osalNvRead", func(f *fakeZnp, c call) (znp.Payload, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		value, ok := f.nv[c.Payload.Uint16("id")]
		if !ok {
			return znp.Payload{"status": uint8(znp.StatusNVItemUninit), "len": 0, "value": []byte{}}, nil
		}
		offset := int(c.Payload.Uint8("offset"))
		if offset > len(value) {
			offset = len(value)
		}
		value = value[offset:]
		if len(value) > f.chunk {
			value = value[:f.chunk]
		}
		return znp.Payload{"status": 0, "len": len(value), "value": append([]byte{}, value...)}, nil
	})
	f.handle(unpi.SYS, "osalNvWrite", func(f *fakeZnp, c call) (znp.Payload, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := c.Payload.Uint16("id")
		offset := int(c.Payload.Uint8("offset"))
		value := c.Payload.Bytes("value")
		cur := f.nv[id]
		if len(cur) < offset+len(value) {
			cur = append(cur, make([]byte, offset+len(value)-len(cur))...)
		}
		copy(cur[offset:], value)
		f.nv[id] = cur
		return znp.Payload{"status": 0}, nil
	})
	f.handle(unpi.SYS, "osalNvItemInit", func(f *fakeZnp, c call) (znp.Payload, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := c.Payload.Uint16("id")
		if _, ok := f.nv[id]; !ok {
			f.nv[id] = append([]byte{}, c.Payload.Bytes("initvalue")...)
		}
		return znp.Payload{"status": 0}, nil
	})
	f.handle(unpi.SYS, "osalNvLength", func(f *fakeZnp, c call) (znp.Payload, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		return znp.Payload{"length": len(f.nv[c.Payload.Uint16("id")])}, nil
	})
	f.handle(unpi.SAPI, "readConfiguration", func(f *fakeZnp, c call) (znp.Payload, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := c.Payload.Uint8("configid")
		value := f.nv[uint16(id)]
		return znp.Payload{"status": 0, "configid": id, "len": len(value), "value": append([]byte{}, value...)}, nil
	})
	f.handle(unpi.SAPI, "writeConfiguration", func(f *fakeZnp, c call) (znp.Payload, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.nv[uint16(c.Payload.Uint8("configid"))] = append([]byte{}, c.Payload.Bytes("value")...)
		return znp.Payload{"status": 0}, nil
	})
	f.handle(unpi.UTIL, "getDeviceInfo", func(f *fakeZnp, c call) (znp.Payload, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		return znp.Payload{
			"status": 0, "ieeeaddr": "0x00124b0012345678", "shortaddr": 0,
			"devicetype": 7, "devicestate": f.deviceState,
			"numassocdevices": 0, "assocdeviceslist": []uint16{},
		}, nil
	})
	f.handle(unpi.ZDO, "startupFromApp", func(f *fakeZnp, c call) (znp.Payload, error) {
		f.mu.Lock()
		f.deviceState = deviceStateCoordinator
		f.mu.Unlock()
		f.emit(unpi.ZDO, "stateChangeInd", znp.Payload{"state": uint8(deviceStateCoordinator)})
		return znp.Payload{"status": 0}, nil
	})
	f.handle(unpi.APPConfig, "bdbStartCommissioning", func(f *fakeZnp, c call) (znp.Payload, error) {
		if c.Payload.Uint8("mode") == bdbModeNetworkFormation {
			f.emit(unpi.ZDO, "stateChangeInd", znp.Payload{"state": uint8(deviceStateCoordinator)})
		}
		return znp.Payload{"status": 0}, nil
	})
	f.handle(unpi.ZDO, "activeEpReq", func(f *fakeZnp, c call) (znp.Payload, error) {
		nwk := c.Payload.Uint16("nwkaddrofinterest")
		f.mu.Lock()
		eps := append([]byte{}, f.activeEps...)
		f.mu.Unlock()
		f.emit(unpi.ZDO, "activeEpRsp", znp.Payload{
			"srcaddr": nwk, "status": uint8(0), "nwkaddr": nwk,
			"activeepcount": uint8(len(eps)), "activeeplist": eps,
		})
		return znp.Payload{"status": 0}, nil
	})
	f.handle(unpi.AF, "register", func(f *fakeZnp, c call) (znp.Payload, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.activeEps = append(f.activeEps, c.Payload.Uint8("endpoint"))
		return znp.Payload{"status": 0}, nil
	})
	dataRequest := func(f *fakeZnp, c call) (znp.Payload, error) {
		f.mu.Lock()
		status := f.confirm
		onData := f.onData
		f.mu.Unlock()
		f.emit(unpi.AF, "dataConfirm", znp.Payload{
			"status": status, "endpoint": uint8(1), "transid": c.Payload.Uint8("transid"),
		})
		if onData != nil {
			onData(f, c)
		}
		return znp.Payload{"status": 0}, nil
	}
	f.handle(unpi.AF, "dataRequest", dataRequest)
	f.handle(unpi.AF, "dataRequestExt", dataRequest)
	return f
}

func (f *fakeZnp) handle(s unpi.Subsystem, command string, h handlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[fmt.Sprintf("%s %s", s, command)] = h
}

func (f *fakeZnp) Open(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = false
	return nil
}

func (f *fakeZnp) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.waitress.RejectAll(znp.ErrConnectionClosed)
	return nil
}

func (f *fakeZnp) ConnectionID() string { return "fake" }

func (f *fakeZnp) AddObserver(o znp.Observer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observers = append(f.observers, o)
}

func (f *fakeZnp) WaitFor(t unpi.Type, s unpi.Subsystem, command string, match znp.Payload, timeout time.Duration) *znp.Waiter {
	return f.waitress.WaitFor(znp.Matcher{Type: t, Subsystem: s, Command: command, Payload: match}, timeout)
}

func (f *fakeZnp) Request(ctx context.Context, s unpi.Subsystem, command string, payload znp.Payload, opts ...znp.RequestOption) (*znp.ZpiObject, error) {
	obj, err := znp.NewRequest(s, command, payload)
	if err != nil {
		return nil, err
	}
	if _, err := obj.Frame(); err != nil {
		return nil, err
	}
	c := call{Subsystem: s, Command: command, Payload: obj.Payload}

	f.mu.Lock()
	f.calls = append(f.calls, c)
	h := f.handlers[c.String()]
	f.mu.Unlock()

	rsp := znp.Payload{"status": 0}
	if h != nil {
		if rsp, err = h(f, c); err != nil {
			return nil, err
		}
	}
	t := unpi.SRSP
	if obj.Type == unpi.AREQ {
		t = unpi.AREQ
	}
	return &znp.ZpiObject{Type: t, Subsystem: s, Command: command, CommandID: obj.CommandID, Payload: rsp}, nil
}

// emit delivers an AREQ the way the engine does: waits first, then observers.
func (f *fakeZnp) emit(s unpi.Subsystem, command string, payload znp.Payload) {
	obj := &znp.ZpiObject{Type: unpi.AREQ, Subsystem: s, Command: command, Payload: payload}
	f.waitress.Resolve(obj)
	f.mu.Lock()
	observers := append([]znp.Observer(nil), f.observers...)
	f.mu.Unlock()
	for _, o := range observers {
		o.OnReceived(obj)
	}
}

// linkLost simulates an unexpected close of the link.
func (f *fakeZnp) linkLost(err error) {
	f.waitress.RejectAll(znp.ErrConnectionClosed)
	f.mu.Lock()
	observers := append([]znp.Observer(nil), f.observers...)
	f.mu.Unlock()
	for _, o := range observers {
		o.OnClosed(err)
	}
}

func (f *fakeZnp) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.String()
	}
	return out
}

func (f *fakeZnp) callsOf(s unpi.Subsystem, command string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.Subsystem == s && c.Command == command {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeZnp) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *fakeZnp) nvValue(id uint16) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nv[id]
}

func (f *fakeZnp) setNV(id uint16, value []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nv[id] = value
}

// recordingQueue records the key of every operation.
type recordingQueue struct {
	mu   sync.Mutex
	keys []string
	q    *queue.Queue
}

func newRecordingQueue() *recordingQueue {
	return &recordingQueue{q: queue.New()}
}

func (r *recordingQueue) Execute(ctx context.Context, key queue.Key, fn func(context.Context) error) error {
	r.mu.Lock()
	r.keys = append(r.keys, key.String())
	r.mu.Unlock()
	return r.q.Execute(ctx, key, fn)
}

func (r *recordingQueue) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.keys...)
}

// recordingObserver collects adapter notifications.
type recordingObserver struct {
	NopObserver
	mu           sync.Mutex
	data         []*ZclData
	joined       []DeviceJoined
	announced    []DeviceAnnounce
	left         []DeviceLeave
	disconnected []error
}

func (o *recordingObserver) OnZclData(d *ZclData) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.data = append(o.data, d)
}

func (o *recordingObserver) OnDeviceJoined(ev DeviceJoined) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.joined = append(o.joined, ev)
}

func (o *recordingObserver) OnDeviceAnnounce(ev DeviceAnnounce) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.announced = append(o.announced, ev)
}

func (o *recordingObserver) OnDeviceLeave(ev DeviceLeave) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.left = append(o.left, ev)
}

func (o *recordingObserver) OnDisconnected(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.disconnected = append(o.disconnected, err)
}

func (o *recordingObserver) zclData() []*ZclData {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*ZclData(nil), o.data...)
}
