package znp

import (
	"bytes"
	"reflect"
	"strings"
)

// Payload holds the named parameters of an MT command. Decoded values use
// uint8, uint16, uint32, int8, string (IEEE addresses), []byte, []uint16,
// []NeighborLqi and []RoutingEntry. Request payloads accept any integer
// type for numeric parameters.
type Payload map[string]any

// Uint8 returns a numeric parameter truncated to 8 bits.
func (p Payload) Uint8(name string) uint8 {
	n, _ := toUint64(p[name])
	return uint8(n)
}

// Uint16 returns a numeric parameter truncated to 16 bits.
func (p Payload) Uint16(name string) uint16 {
	n, _ := toUint64(p[name])
	return uint16(n)
}

// Uint32 returns a numeric parameter truncated to 32 bits.
func (p Payload) Uint32(name string) uint32 {
	n, _ := toUint64(p[name])
	return uint32(n)
}

// Bytes returns a buffer or uint8 list parameter.
func (p Payload) Bytes(name string) []byte {
	b, _ := toBytes(p[name])
	return b
}

// Uint16s returns a uint16 list parameter.
func (p Payload) Uint16s(name string) []uint16 {
	l, _ := toUint16s(p[name])
	return l
}

// String returns a string parameter such as an IEEE address.
func (p Payload) String(name string) string {
	s, _ := p[name].(string)
	return s
}

// Has reports whether the parameter is present.
func (p Payload) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// Matches reports whether every entry of want is present in p with an
// equal value. Numbers compare by value regardless of their Go type and
// IEEE address strings compare numerically.
func (p Payload) Matches(want Payload) bool {
	for k, w := range want {
		got, ok := p[k]
		if !ok || !valuesEqual(got, w) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	if x, ok := toUint64(a); ok {
		y, ok := toUint64(b)
		return ok && x == y
	}
	if x, ok := a.(string); ok {
		y, ok := b.(string)
		if !ok {
			return false
		}
		if strings.HasPrefix(x, "0x") && strings.HasPrefix(y, "0x") {
			xa, errA := ParseIEEEAddr(x)
			ya, errB := ParseIEEEAddr(y)
			if errA == nil && errB == nil {
				return xa == ya
			}
		}
		return x == y
	}
	if x, ok := toBytes(a); ok {
		y, ok := toBytes(b)
		return ok && bytes.Equal(x, y)
	}
	return reflect.DeepEqual(a, b)
}

func toUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	case uint:
		return uint64(n), true
	case int:
		return uint64(n), n >= 0
	case int8:
		return uint64(n), n >= 0
	case int16:
		return uint64(n), n >= 0
	case int32:
		return uint64(n), n >= 0
	case int64:
		return uint64(n), n >= 0
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func toBytes(v any) ([]byte, bool) {
	switch b := v.(type) {
	case []byte:
		return b, true
	case []int:
		out := make([]byte, len(b))
		for i, n := range b {
			if n < 0 || n > 0xFF {
				return nil, false
			}
			out[i] = byte(n)
		}
		return out, true
	}
	return nil, false
}

func toUint16s(v any) ([]uint16, bool) {
	switch l := v.(type) {
	case []uint16:
		return l, true
	case []int:
		out := make([]uint16, len(l))
		for i, n := range l {
			if n < 0 || n > 0xFFFF {
				return nil, false
			}
			out[i] = uint16(n)
		}
		return out, true
	case nil:
		return nil, true
	}
	return nil, false
}

// length returns the element count of a variable-size parameter value.
func length(v any) (int, bool) {
	if b, ok := toBytes(v); ok {
		return len(b), true
	}
	if l, ok := toUint16s(v); ok {
		return len(l), true
	}
	return 0, false
}
