package unpi

import "fmt"

// Frame is a single UNPI frame. Data is the raw MT payload.
type Frame struct {
	Type      Type
	Subsystem Subsystem
	CommandID uint8
	Data      []byte
}

// NewFrame creates a frame. data is not copied.
func NewFrame(t Type, s Subsystem, cmd uint8, data []byte) *Frame {
	return &Frame{Type: t, Subsystem: s, CommandID: cmd, Data: data}
}

// Control returns the CTRL byte.
func (f *Frame) Control() byte {
	return byte(f.Type)<<5 | byte(f.Subsystem)&0x1F
}

// Encode returns the wire representation of the frame.
func (f *Frame) Encode() ([]byte, error) {
	if len(f.Data) > MaxDataLength {
		return nil, fmt.Errorf("%w: %d > %d", ErrDataTooLarge, len(f.Data), MaxDataLength)
	}
	buf := make([]byte, 0, MinFrameSize+len(f.Data))
	buf = append(buf, SOF, byte(len(f.Data)), f.Control(), f.CommandID)
	buf = append(buf, f.Data...)
	buf = append(buf, Checksum(buf[1:]))
	return buf, nil
}

func (f *Frame) String() string {
	return fmt.Sprintf("%s %s 0x%02x [% x]", f.Type, f.Subsystem, f.CommandID, f.Data)
}

// Checksum XORs b. Callers pass LEN, CTRL, CMD and the data bytes.
func Checksum(b []byte) byte {
	var fcs byte
	for _, c := range b {
		fcs ^= c
	}
	return fcs
}

// Decode parses exactly one frame from b. Trailing bytes are ignored.
func Decode(b []byte) (*Frame, error) {
	if len(b) == 0 || b[0] != SOF {
		return nil, &ProtocolError{Err: ErrNoStartMarker, Raw: b}
	}
	if len(b) < MinFrameSize {
		return nil, &ProtocolError{Err: ErrFrameTruncated, Raw: b}
	}
	length := int(b[1])
	if length > MaxDataLength {
		return nil, &ProtocolError{Err: ErrDataTooLarge, Raw: b[:2]}
	}
	total := MinFrameSize + length
	if len(b) < total {
		return nil, &ProtocolError{Err: ErrFrameTruncated, Raw: b}
	}
	return frameFromRaw(b[:total])
}

// frameFromRaw validates a complete frame and copies its payload.
func frameFromRaw(raw []byte) (*Frame, error) {
	last := len(raw) - 1
	if Checksum(raw[1:last]) != raw[last] {
		return nil, &ProtocolError{Err: ErrChecksum, Raw: append([]byte(nil), raw...)}
	}
	ctrl := raw[2]
	return &Frame{
		Type:      Type(ctrl >> 5),
		Subsystem: Subsystem(ctrl & 0x1F),
		CommandID: raw[3],
		Data:      append([]byte(nil), raw[HeaderSize:last]...),
	}, nil
}
