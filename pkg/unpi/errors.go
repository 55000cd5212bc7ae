package unpi

import (
	"errors"
	"fmt"
)

// Framing errors.
var (
	// ErrChecksum indicates the FCS byte did not match the frame contents.
	ErrChecksum = errors.New("checksum mismatch")

	// ErrDataTooLarge indicates a payload longer than MaxDataLength.
	ErrDataTooLarge = errors.New("data too large")

	// ErrFrameTruncated indicates the input ended inside a frame.
	ErrFrameTruncated = errors.New("frame truncated")

	// ErrNoStartMarker indicates a buffer that does not begin with SOF.
	ErrNoStartMarker = errors.New("missing start of frame")
)

// ProtocolError reports a malformed frame on the link. The parser has
// already resynchronized when it is returned.
type ProtocolError struct {
	Err error
	Raw []byte
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unpi: %v (% x)", e.Err, e.Raw)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
