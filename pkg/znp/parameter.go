package znp

// ParameterType is the wire encoding of a single MT command parameter.
type ParameterType uint8

const (
	Uint8 ParameterType = iota
	Uint16
	Uint32
	Int8
	// IEEEAddr is an 8 byte little-endian address, exposed as "0x%016x".
	IEEEAddr
	// Buffer is a byte string whose length is the value of the preceding parameter.
	Buffer
	// ListUint8 holds as many bytes as the preceding parameter counts.
	ListUint8
	// ListUint16 holds as many uint16 as the preceding parameter counts.
	ListUint16
	// ListNeighborLqi holds ZDO neighbor table entries.
	ListNeighborLqi
	// ListRoutingTable holds ZDO routing table entries.
	ListRoutingTable
)

// variable reports whether the parameter's size comes from the preceding one.
func (t ParameterType) variable() bool {
	switch t {
	case Buffer, ListUint8, ListUint16, ListNeighborLqi, ListRoutingTable:
		return true
	}
	return false
}

// Parameter is one named field of an MT command.
type Parameter struct {
	Name string
	Type ParameterType
}

// NeighborLqi is one entry of a ZDO Mgmt_Lqi_rsp neighbor table.
type NeighborLqi struct {
	ExtendedPanID string `cbor:"1,keyasint"`
	ExtendedAddr  string `cbor:"2,keyasint"`
	NetworkAddr   uint16 `cbor:"3,keyasint"`
	DeviceType    uint8  `cbor:"4,keyasint"`
	RxOnWhenIdle  uint8  `cbor:"5,keyasint"`
	Relationship  uint8  `cbor:"6,keyasint"`
	PermitJoin    uint8  `cbor:"7,keyasint"`
	Depth         uint8  `cbor:"8,keyasint"`
	LinkQuality   uint8  `cbor:"9,keyasint"`
}

// RoutingEntry is one entry of a ZDO Mgmt_Rtg_rsp routing table.
type RoutingEntry struct {
	DestinationAddr uint16 `cbor:"1,keyasint"`
	RouteStatus     uint8  `cbor:"2,keyasint"`
	NextHop         uint16 `cbor:"3,keyasint"`
}

// neighborLqiSize and routingEntrySize are the encoded entry sizes.
const (
	neighborLqiSize  = 22
	routingEntrySize = 5
)
