package zstack

import (
	"github.com/claudegel/zigbee-herdsman/pkg/unpi"
	"github.com/claudegel/zigbee-herdsman/pkg/zcl"
	"github.com/claudegel/zigbee-herdsman/pkg/znp"
)

// DeviceJoined is emitted when the trust center admits a device.
type DeviceJoined struct {
	NetworkAddress uint16
	IEEEAddr       string
}

// DeviceAnnounce is emitted when a device announces itself.
type DeviceAnnounce struct {
	NetworkAddress uint16
	IEEEAddr       string
}

// DeviceLeave is emitted when a device leaves the network.
type DeviceLeave struct {
	NetworkAddress uint16
	IEEEAddr       string
}

// Observer receives adapter notifications. Calls happen on the link's
// read goroutine and must not block.
type Observer interface {
	OnZclData(data *ZclData)
	OnDeviceJoined(ev DeviceJoined)
	OnDeviceAnnounce(ev DeviceAnnounce)
	OnDeviceLeave(ev DeviceLeave)
	OnDisconnected(err error)
}

// NopObserver implements Observer with no-ops. Embed it to handle a
// subset of notifications.
type NopObserver struct{}

func (NopObserver) OnZclData(*ZclData)              {}
func (NopObserver) OnDeviceJoined(DeviceJoined)     {}
func (NopObserver) OnDeviceAnnounce(DeviceAnnounce) {}
func (NopObserver) OnDeviceLeave(DeviceLeave)       {}
func (NopObserver) OnDisconnected(error)            {}

var _ Observer = NopObserver{}

// OnReceived implements znp.Observer.
func (a *Adapter) OnReceived(obj *znp.ZpiObject) {
	if obj.Type != unpi.AREQ {
		return
	}
	p := obj.Payload

	switch {
	case obj.Is(unpi.AREQ, unpi.ZDO, "tcDeviceInd"):
		ev := DeviceJoined{NetworkAddress: p.Uint16("nwkaddr"), IEEEAddr: p.String("extaddr")}
		a.logger.Info("device joined", "nwk", ev.NetworkAddress, "ieee", ev.IEEEAddr)
		for _, o := range a.observerList() {
			o.OnDeviceJoined(ev)
		}

	case obj.Is(unpi.AREQ, unpi.ZDO, "endDeviceAnnceInd"):
		ev := DeviceAnnounce{NetworkAddress: p.Uint16("nwkaddr"), IEEEAddr: p.String("ieeeaddr")}
		for _, o := range a.observerList() {
			o.OnDeviceAnnounce(ev)
		}

	case obj.Is(unpi.AREQ, unpi.ZDO, "leaveInd"):
		ev := DeviceLeave{NetworkAddress: p.Uint16("srcaddr"), IEEEAddr: p.String("extaddr")}
		a.logger.Info("device left", "nwk", ev.NetworkAddress, "ieee", ev.IEEEAddr)
		for _, o := range a.observerList() {
			o.OnDeviceLeave(ev)
		}

	case obj.Is(unpi.AREQ, unpi.AF, "incomingMsg"), obj.Is(unpi.AREQ, unpi.AF, "incomingMsgExt"):
		a.handleIncoming(obj)

	case obj.Is(unpi.AREQ, unpi.ZDO, "permitJoinInd"):
		a.logger.Info("permit join", "duration", p.Uint8("duration"))

	case obj.Is(unpi.AREQ, unpi.APPConfig, "bdbComissioningNotifcation"):
		a.logger.Debug("commissioning notification",
			"status", p.Uint8("status"),
			"mode", p.Uint8("commissioningmode"),
			"remaining", p.Uint8("remainingcommissioningmodes"))
	}
}

// handleIncoming resolves a data plane wait with an inbound ZCL frame or
// publishes it as unsolicited data.
func (a *Adapter) handleIncoming(obj *znp.ZpiObject) {
	p := obj.Payload
	cluster := p.Uint16("clusterid")
	frame, err := zcl.Decode(cluster, p.Bytes("data"))
	if err != nil {
		a.logger.Debug("dropped undecodable ZCL frame", "cluster", cluster, "error", err)
		return
	}

	srcaddr := p.Uint16("srcaddr")
	if obj.Command == "incomingMsgExt" {
		if p.Uint8("srcaddrmode") != addrModeNwk {
			a.logger.Debug("dropped ZCL frame with extended source address", "srcaddr", p.String("srcaddr"))
			return
		}
		ieee, err := znp.ParseIEEEAddr(p["srcaddr"])
		if err != nil {
			a.logger.Debug("dropped ZCL frame with unreadable source address", "srcaddr", p.String("srcaddr"), "error", err)
			return
		}
		srcaddr = uint16(ieee)
	}

	data := &ZclData{
		NetworkAddress: srcaddr,
		Endpoint:       p.Uint8("srcendpoint"),
		GroupID:        p.Uint16("groupid"),
		LinkQuality:    p.Uint8("linkquality"),
		Frame:          frame,
	}
	if a.responses.Resolve(data) {
		return
	}
	for _, o := range a.observerList() {
		o.OnZclData(data)
	}
}

// OnClosed implements znp.Observer.
func (a *Adapter) OnClosed(err error) {
	if a.keepAlive != nil {
		a.keepAlive.Stop()
	}
	a.responses.RejectAll(znp.ErrConnectionClosed)
	a.setState(StateUninitialized, "link lost")
	if !a.stopping.CompareAndSwap(false, true) {
		return
	}
	a.logger.Warn("coordinator disconnected", "error", err)
	for _, o := range a.observerList() {
		o.OnDisconnected(err)
	}
}
