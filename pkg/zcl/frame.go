package zcl

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrFrameTooShort indicates a buffer shorter than its ZCL header.
var ErrFrameTooShort = errors.New("zcl: frame too short")

// FrameType selects between profile-wide and cluster-specific commands.
type FrameType uint8

const (
	FrameTypeGlobal   FrameType = 0
	FrameTypeSpecific FrameType = 1
)

// String returns the frame type name.
func (t FrameType) String() string {
	switch t {
	case FrameTypeGlobal:
		return "GLOBAL"
	case FrameTypeSpecific:
		return "SPECIFIC"
	default:
		return fmt.Sprintf("FRAMETYPE(%d)", uint8(t))
	}
}

// Direction is the direction of a command relative to the cluster server.
type Direction uint8

const (
	ClientToServer Direction = 0
	ServerToClient Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	if d == ServerToClient {
		return "SERVER_TO_CLIENT"
	}
	return "CLIENT_TO_SERVER"
}

// Opposite returns the direction a reply travels in.
func (d Direction) Opposite() Direction {
	if d == ServerToClient {
		return ClientToServer
	}
	return ServerToClient
}

// Frame control bits.
const (
	fcFrameTypeMask        = 0x03
	fcManufacturerSpecific = 0x04
	fcDirection            = 0x08
	fcDisableDefaultRsp    = 0x10
)

// Header is the ZCL frame header. TransactionSequenceNumber correlates a
// command with its responses.
type Header struct {
	FrameType                 FrameType
	ManufacturerSpecific      bool
	Direction                 Direction
	DisableDefaultResponse    bool
	ManufacturerCode          uint16
	TransactionSequenceNumber uint8
	CommandID                 uint8
}

// Frame is a ZCL frame sent to or received from a cluster.
type Frame struct {
	Header
	ClusterID uint16
	Payload   []byte
}

// NewFrame builds an outbound frame. A non-zero manufacturer code marks the
// frame manufacturer specific.
func NewFrame(frameType FrameType, dir Direction, disableDefaultResponse bool, manufacturerCode uint16, seq uint8, commandID uint8, clusterID uint16, payload []byte) *Frame {
	return &Frame{
		Header: Header{
			FrameType:                 frameType,
			ManufacturerSpecific:      manufacturerCode != 0,
			Direction:                 dir,
			DisableDefaultResponse:    disableDefaultResponse,
			ManufacturerCode:          manufacturerCode,
			TransactionSequenceNumber: seq,
			CommandID:                 commandID,
		},
		ClusterID: clusterID,
		Payload:   payload,
	}
}

// FrameControl returns the encoded frame control byte.
func (h Header) FrameControl() byte {
	fc := byte(h.FrameType) & fcFrameTypeMask
	if h.ManufacturerSpecific {
		fc |= fcManufacturerSpecific
	}
	if h.Direction == ServerToClient {
		fc |= fcDirection
	}
	if h.DisableDefaultResponse {
		fc |= fcDisableDefaultRsp
	}
	return fc
}

// Encode returns the wire form of the frame.
func (f *Frame) Encode() []byte {
	buf := make([]byte, 0, 5+len(f.Payload))
	buf = append(buf, f.FrameControl())
	if f.ManufacturerSpecific {
		buf = binary.LittleEndian.AppendUint16(buf, f.ManufacturerCode)
	}
	buf = append(buf, f.TransactionSequenceNumber, f.CommandID)
	return append(buf, f.Payload...)
}

// Decode parses a frame received on clusterID.
func Decode(clusterID uint16, b []byte) (*Frame, error) {
	if len(b) < 3 {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooShort, len(b))
	}
	fc := b[0]
	h := Header{
		FrameType:              FrameType(fc & fcFrameTypeMask),
		ManufacturerSpecific:   fc&fcManufacturerSpecific != 0,
		Direction:              Direction((fc & fcDirection) >> 3),
		DisableDefaultResponse: fc&fcDisableDefaultRsp != 0,
	}
	pos := 1
	if h.ManufacturerSpecific {
		if len(b) < 5 {
			return nil, fmt.Errorf("%w: %d bytes with manufacturer code", ErrFrameTooShort, len(b))
		}
		h.ManufacturerCode = binary.LittleEndian.Uint16(b[1:])
		pos = 3
	}
	h.TransactionSequenceNumber = b[pos]
	h.CommandID = b[pos+1]
	pos += 2

	f := &Frame{Header: h, ClusterID: clusterID}
	if pos < len(b) {
		f.Payload = append([]byte{}, b[pos:]...)
	}
	return f, nil
}

// CommandName returns the command's name, or a hex placeholder when the
// command is not in the table.
func (f *Frame) CommandName() string {
	if c, ok := f.command(); ok {
		return c.Name
	}
	return fmt.Sprintf("0x%02x", f.CommandID)
}

// Response returns the command a peer answers this frame with.
func (f *Frame) Response() (uint8, bool) {
	c, ok := f.command()
	if !ok || !c.HasResponse {
		return 0, false
	}
	return c.Response, true
}

// IsDefaultResponse reports whether the frame is a global Default Response.
func (f *Frame) IsDefaultResponse() bool {
	return f.FrameType == FrameTypeGlobal && f.CommandID == CommandDefaultRsp
}

func (f *Frame) command() (Command, bool) {
	if f.FrameType == FrameTypeGlobal {
		c, ok := globalCommands[f.CommandID]
		return c, ok
	}
	c, ok := clusterCommands[clusterCommandKey{f.ClusterID, f.Direction, f.CommandID}]
	return c, ok
}

func (f *Frame) String() string {
	return fmt.Sprintf("%s %s cluster=0x%04x seq=%d cmd=%s payload=% x",
		f.FrameType, f.Direction, f.ClusterID, f.TransactionSequenceNumber, f.CommandName(), f.Payload)
}
