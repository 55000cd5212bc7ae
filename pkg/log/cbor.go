package log

import (
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	captureEnc cbor.EncMode
	captureDec cbor.DecMode
)

func init() {
	var err error

	// Payload maps are sorted so identical frames capture identically.
	// Timestamps keep nanoseconds to order frames read in one burst.
	captureEnc, err = cbor.EncOptions{
		Sort:          cbor.SortCoreDeterministic,
		ShortestFloat: cbor.ShortestFloat16,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("capture CBOR encoder: %v", err))
	}

	// Nested payload values (neighbor and route lists) come back as
	// string keyed maps so the viewer can print them as JSON.
	captureDec, err = cbor.DecOptions{
		DupMapKey:             cbor.DupMapKeyQuiet,
		IndefLength:           cbor.IndefLengthForbidden,
		DefaultMapType:        reflect.TypeOf(map[string]any(nil)),
		DefaultByteStringType: reflect.TypeOf([]byte(nil)),
		MaxArrayElements:      1 << 16,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("capture CBOR decoder: %v", err))
	}
}

// EncodeEvent encodes one captured event.
func EncodeEvent(event Event) ([]byte, error) {
	return captureEnc.Marshal(event)
}

// DecodeEvent decodes one captured event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := captureDec.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// NewEncoder returns an event stream encoder for a capture file.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return captureEnc.NewEncoder(w)
}

// NewDecoder returns an event stream decoder for a capture file.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return captureDec.NewDecoder(r)
}
