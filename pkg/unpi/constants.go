package unpi

import "fmt"

// Framing constants.
const (
	// SOF is the start-of-frame marker.
	SOF byte = 0xFE

	// HeaderSize counts SOF, LEN, CTRL and CMD.
	HeaderSize = 4

	// MaxDataLength is the largest payload a single frame can carry.
	MaxDataLength = 250

	// MinFrameSize is the size of a frame without payload.
	MinFrameSize = HeaderSize + 1
)

// Type is the frame type carried in the high bits of CTRL.
type Type uint8

const (
	POLL Type = 0
	SREQ Type = 1
	AREQ Type = 2
	SRSP Type = 3
)

// String returns the frame type name.
func (t Type) String() string {
	switch t {
	case POLL:
		return "POLL"
	case SREQ:
		return "SREQ"
	case AREQ:
		return "AREQ"
	case SRSP:
		return "SRSP"
	default:
		return fmt.Sprintf("TYPE(%d)", uint8(t))
	}
}

// Subsystem is the MT subsystem carried in the low bits of CTRL.
type Subsystem uint8

const (
	RPCError   Subsystem = 0
	SYS        Subsystem = 1
	MAC        Subsystem = 2
	NWK        Subsystem = 3
	AF         Subsystem = 4
	ZDO        Subsystem = 5
	SAPI       Subsystem = 6
	UTIL       Subsystem = 7
	DEBUG      Subsystem = 8
	APP        Subsystem = 9
	APPConfig  Subsystem = 15
	GreenPower Subsystem = 21
)

var subsystemNames = map[Subsystem]string{
	RPCError:   "RPC_ERROR",
	SYS:        "SYS",
	MAC:        "MAC",
	NWK:        "NWK",
	AF:         "AF",
	ZDO:        "ZDO",
	SAPI:       "SAPI",
	UTIL:       "UTIL",
	DEBUG:      "DEBUG",
	APP:        "APP",
	APPConfig:  "APP_CNF",
	GreenPower: "GREENPOWER",
}

// String returns the subsystem name.
func (s Subsystem) String() string {
	if name, ok := subsystemNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SUBSYSTEM(%d)", uint8(s))
}
