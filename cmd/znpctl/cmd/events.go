package cmd

import (
	"fmt"
	"io"

	"github.com/claudegel/zigbee-herdsman/pkg/zstack"
)

// eventPrinter queues adapter notifications as text lines. Observer calls
// must not block, so lines are dropped when the buffer is full.
type eventPrinter struct {
	zstack.NopObserver
	lines chan string
}

func newEventPrinter() *eventPrinter {
	return &eventPrinter{lines: make(chan string, 256)}
}

func (p *eventPrinter) emit(format string, args ...any) {
	select {
	case p.lines <- fmt.Sprintf(format, args...):
	default:
	}
}

func (p *eventPrinter) OnZclData(d *zstack.ZclData) {
	p.emit("zcl  nwk=0x%04x ep=%d lqi=%d %s", d.NetworkAddress, d.Endpoint, d.LinkQuality, d.Frame)
}

func (p *eventPrinter) OnDeviceJoined(ev zstack.DeviceJoined) {
	p.emit("join nwk=0x%04x ieee=%s", ev.NetworkAddress, ev.IEEEAddr)
}

func (p *eventPrinter) OnDeviceAnnounce(ev zstack.DeviceAnnounce) {
	p.emit("annc nwk=0x%04x ieee=%s", ev.NetworkAddress, ev.IEEEAddr)
}

func (p *eventPrinter) OnDeviceLeave(ev zstack.DeviceLeave) {
	p.emit("left nwk=0x%04x ieee=%s", ev.NetworkAddress, ev.IEEEAddr)
}

func (p *eventPrinter) OnDisconnected(err error) {
	p.emit("link lost: %v", err)
}

// drain writes queued lines to w until done is closed.
func (p *eventPrinter) drain(w io.Writer, done <-chan struct{}) {
	for {
		select {
		case line := <-p.lines:
			fmt.Fprintln(w, line)
		case <-done:
			return
		}
	}
}
