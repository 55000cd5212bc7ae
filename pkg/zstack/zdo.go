package zstack

import (
	"context"
	"fmt"

	"github.com/claudegel/zigbee-herdsman/pkg/queue"
	"github.com/claudegel/zigbee-herdsman/pkg/unpi"
	"github.com/claudegel/zigbee-herdsman/pkg/znp"
)

// DeviceType is the logical type from a node descriptor.
type DeviceType string

const (
	DeviceTypeCoordinator DeviceType = "Coordinator"
	DeviceTypeRouter      DeviceType = "Router"
	DeviceTypeEndDevice   DeviceType = "EndDevice"
	DeviceTypeUnknown     DeviceType = "Unknown"
)

func deviceTypeOf(logicalType uint8) DeviceType {
	switch logicalType & 0x07 {
	case 0:
		return DeviceTypeCoordinator
	case 1:
		return DeviceTypeRouter
	case 2:
		return DeviceTypeEndDevice
	default:
		return DeviceTypeUnknown
	}
}

// NodeDescriptor is the part of a ZDO node descriptor callers use.
type NodeDescriptor struct {
	ManufacturerCode uint16
	Type             DeviceType
}

// SimpleDescriptor describes one application endpoint.
type SimpleDescriptor struct {
	EndpointID     uint8
	ProfileID      uint16
	DeviceID       uint16
	InputClusters  []uint16
	OutputClusters []uint16
}

// Neighbor is one entry of a device's neighbor table.
type Neighbor struct {
	LinkQuality    uint8
	NetworkAddress uint16
	IEEEAddr       string
	Relationship   uint8
	Depth          uint8
}

// Route is one entry of a device's routing table.
type Route struct {
	DestinationAddress uint16
	Status             string
	NextHop            uint16
}

var routeStatusNames = map[uint8]string{
	0: "ACTIVE",
	1: "DISCOVERY_UNDERWAY",
	2: "DISCOVERY_FAILED",
	3: "INACTIVE",
	4: "VALIDATION_UNDERWAY",
}

func routeStatus(s uint8) string {
	if name, ok := routeStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", s)
}

// Coordinator describes the coordinator node.
type Coordinator struct {
	NetworkAddress uint16
	ManufacturerID uint16
	IEEEAddr       string
	Endpoints      []SimpleDescriptor
}

// NetworkParameters are the parameters of the running network.
type NetworkParameters struct {
	PanID         uint16
	ExtendedPanID string
	Channel       uint8
}

// BindTarget is the destination of a binding: a device endpoint or a group.
type BindTarget struct {
	IEEEAddr string
	Endpoint uint8

	Group   uint16
	ToGroup bool
}

// EndpointTarget binds to an endpoint of the device ieeeAddr.
func EndpointTarget(ieeeAddr string, endpoint uint8) BindTarget {
	return BindTarget{IEEEAddr: ieeeAddr, Endpoint: endpoint}
}

// GroupTarget binds to a group.
func GroupTarget(group uint16) BindTarget {
	return BindTarget{Group: group, ToGroup: true}
}

// zdoRequest sends a ZDO request queued under addr and returns the
// callback selected by match. The callback wait is registered first.
func (a *Adapter) zdoRequest(ctx context.Context, addr uint16, command string, payload znp.Payload, callback string, match znp.Payload) (znp.Payload, error) {
	return queue.Do(ctx, a.queue, queue.KeyOf(addr), func(ctx context.Context) (znp.Payload, error) {
		wait := a.zdoWait(callback, match)
		if _, err := a.znp.Request(ctx, unpi.ZDO, command, payload); err != nil {
			wait.Cancel()
			return nil, err
		}
		rsp, err := wait.Wait(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", callback, err)
		}
		return rsp.Payload, nil
	})
}

// NodeDescriptor queries the node descriptor of a device.
func (a *Adapter) NodeDescriptor(ctx context.Context, addr uint16) (NodeDescriptor, error) {
	rsp, err := a.zdoRequest(ctx, addr, "nodeDescReq",
		znp.Payload{"dstaddr": addr, "nwkaddrofinterest": addr},
		"nodeDescRsp", znp.Payload{"nwkaddr": addr})
	if err != nil {
		return NodeDescriptor{}, err
	}
	return NodeDescriptor{
		ManufacturerCode: rsp.Uint16("manufacturercode"),
		Type:             deviceTypeOf(rsp.Uint8("logicaltype_cmplxdescavai_userdescavai")),
	}, nil
}

// ActiveEndpoints lists the active endpoints of a device.
func (a *Adapter) ActiveEndpoints(ctx context.Context, addr uint16) ([]uint8, error) {
	rsp, err := a.zdoRequest(ctx, addr, "activeEpReq",
		znp.Payload{"dstaddr": addr, "nwkaddrofinterest": addr},
		"activeEpRsp", znp.Payload{"nwkaddr": addr})
	if err != nil {
		return nil, err
	}
	return rsp.Bytes("activeeplist"), nil
}

// SimpleDescriptor queries the descriptor of one endpoint of a device.
func (a *Adapter) SimpleDescriptor(ctx context.Context, addr uint16, endpoint uint8) (SimpleDescriptor, error) {
	rsp, err := a.zdoRequest(ctx, addr, "simpleDescReq",
		znp.Payload{"dstaddr": addr, "nwkaddrofinterest": addr, "endpoint": endpoint},
		"simpleDescRsp", znp.Payload{"nwkaddr": addr, "endpoint": endpoint})
	if err != nil {
		return SimpleDescriptor{}, err
	}
	return SimpleDescriptor{
		EndpointID:     rsp.Uint8("endpoint"),
		ProfileID:      rsp.Uint16("profileid"),
		DeviceID:       rsp.Uint16("deviceid"),
		InputClusters:  rsp.Uint16s("inclusterlist"),
		OutputClusters: rsp.Uint16s("outclusterlist"),
	}, nil
}

// LQI reads the neighbor table of a device, page by page.
func (a *Adapter) LQI(ctx context.Context, addr uint16) ([]Neighbor, error) {
	var neighbors []Neighbor
	for {
		rsp, err := a.zdoRequest(ctx, addr, "mgmtLqiReq",
			znp.Payload{"dstaddr": addr, "startindex": len(neighbors)},
			"mgmtLqiRsp", znp.Payload{"srcaddr": addr})
		if err != nil {
			return nil, err
		}
		if status := rsp.Uint8("status"); status != 0 {
			return nil, &ZdoError{Operation: "LQI", NetworkAddress: addr, Status: status}
		}
		page, _ := rsp["neighborlqilist"].([]znp.NeighborLqi)
		for _, n := range page {
			neighbors = append(neighbors, Neighbor{
				LinkQuality:    n.LinkQuality,
				NetworkAddress: n.NetworkAddr,
				IEEEAddr:       n.ExtendedAddr,
				Relationship:   n.Relationship,
				Depth:          n.Depth,
			})
		}
		if len(page) == 0 || len(neighbors) >= int(rsp.Uint8("neighbortableentries")) {
			return neighbors, nil
		}
	}
}

// RoutingTable reads the routing table of a device, page by page.
func (a *Adapter) RoutingTable(ctx context.Context, addr uint16) ([]Route, error) {
	var routes []Route
	for {
		rsp, err := a.zdoRequest(ctx, addr, "mgmtRtgReq",
			znp.Payload{"dstaddr": addr, "startindex": len(routes)},
			"mgmtRtgRsp", znp.Payload{"srcaddr": addr})
		if err != nil {
			return nil, err
		}
		if status := rsp.Uint8("status"); status != 0 {
			return nil, &ZdoError{Operation: "Routing table", NetworkAddress: addr, Status: status}
		}
		page, _ := rsp["routingtablelist"].([]znp.RoutingEntry)
		for _, r := range page {
			routes = append(routes, Route{
				DestinationAddress: r.DestinationAddr,
				Status:             routeStatus(r.RouteStatus),
				NextHop:            r.NextHop,
			})
		}
		if len(page) == 0 || len(routes) >= int(rsp.Uint8("routingtableentries")) {
			return routes, nil
		}
	}
}

// Bind creates a binding on the device at addr from its sourceIEEE
// endpoint and cluster to target.
func (a *Adapter) Bind(ctx context.Context, addr uint16, sourceIEEE string, sourceEndpoint uint8, clusterID uint16, target BindTarget) error {
	return a.binding(ctx, "bindReq", "bindRsp", "Bind", addr, sourceIEEE, sourceEndpoint, clusterID, target)
}

// Unbind removes a binding created by Bind.
func (a *Adapter) Unbind(ctx context.Context, addr uint16, sourceIEEE string, sourceEndpoint uint8, clusterID uint16, target BindTarget) error {
	return a.binding(ctx, "unbindReq", "unbindRsp", "Unbind", addr, sourceIEEE, sourceEndpoint, clusterID, target)
}

func (a *Adapter) binding(ctx context.Context, command, callback, op string, addr uint16, sourceIEEE string, sourceEndpoint uint8, clusterID uint16, target BindTarget) error {
	payload := znp.Payload{
		"dstaddr":     addr,
		"srcaddr":     sourceIEEE,
		"srcendpoint": sourceEndpoint,
		"clusterid":   clusterID,
	}
	if target.ToGroup {
		payload["dstaddrmode"] = addrModeGroup
		payload["dstaddress"] = znp.FormatIEEEAddr(uint64(target.Group))
		payload["dstendpoint"] = groupEndpoint
	} else {
		payload["dstaddrmode"] = addrModeIEEE
		payload["dstaddress"] = target.IEEEAddr
		payload["dstendpoint"] = target.Endpoint
	}

	rsp, err := a.zdoRequest(ctx, addr, command, payload, callback, znp.Payload{"srcaddr": addr})
	if err != nil {
		return err
	}
	if status := rsp.Uint8("status"); status != 0 {
		return &ZdoError{Operation: op, NetworkAddress: addr, Status: status}
	}
	return nil
}

// RemoveDevice asks the device at addr to leave the network.
func (a *Adapter) RemoveDevice(ctx context.Context, addr uint16, ieeeAddr string) error {
	rsp, err := a.zdoRequest(ctx, addr, "mgmtLeaveReq",
		znp.Payload{"dstaddr": addr, "deviceaddress": ieeeAddr, "removechildrenRejoin": 0},
		"mgmtLeaveRsp", znp.Payload{"srcaddr": addr})
	if err != nil {
		return err
	}
	if status := rsp.Uint8("status"); status != 0 {
		return &ZdoError{Operation: "Remove device", NetworkAddress: addr, Status: status}
	}
	return nil
}

// PermitJoin opens the network for joining for seconds; zero closes it.
func (a *Adapter) PermitJoin(ctx context.Context, seconds uint8) error {
	_, err := a.znp.Request(ctx, unpi.ZDO, "mgmtPermitJoinReq", znp.Payload{
		"addrmode":       broadcastAddrMode,
		"dstaddr":        broadcastAddress,
		"duration":       seconds,
		"tcsignificance": 0,
	})
	return err
}

// SoftReset restarts the chip.
func (a *Adapter) SoftReset(ctx context.Context) error {
	return a.resetChip(ctx)
}

// DisableLED switches off the chip's status LED.
func (a *Adapter) DisableLED(ctx context.Context) error {
	_, err := a.znp.Request(ctx, unpi.UTIL, "ledControl", znp.Payload{"ledid": 3, "mode": 0})
	return err
}

// GetCoordinator describes the coordinator and its registered endpoints.
func (a *Adapter) GetCoordinator(ctx context.Context) (Coordinator, error) {
	info, err := a.znp.Request(ctx, unpi.UTIL, "getDeviceInfo", nil)
	if err != nil {
		return Coordinator{}, err
	}
	eps, err := a.ActiveEndpoints(ctx, 0)
	if err != nil {
		return Coordinator{}, err
	}
	c := Coordinator{IEEEAddr: info.Payload.String("ieeeaddr")}
	for _, ep := range eps {
		desc, err := a.SimpleDescriptor(ctx, 0, ep)
		if err != nil {
			return Coordinator{}, err
		}
		c.Endpoints = append(c.Endpoints, desc)
	}
	return c, nil
}

// GetNetworkParameters reads the parameters of the running network.
func (a *Adapter) GetNetworkParameters(ctx context.Context) (NetworkParameters, error) {
	rsp, err := a.znp.Request(ctx, unpi.ZDO, "extNwkInfo", nil)
	if err != nil {
		return NetworkParameters{}, err
	}
	return NetworkParameters{
		PanID:         rsp.Payload.Uint16("panid"),
		ExtendedPanID: rsp.Payload.String("extendedpanid"),
		Channel:       rsp.Payload.Uint8("channel"),
	}, nil
}
