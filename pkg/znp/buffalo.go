package znp

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// encodeParameters serializes payload according to params.
func encodeParameters(params []Parameter, payload Payload) ([]byte, error) {
	buf := make([]byte, 0, 32)
	for _, param := range params {
		value, ok := payload[param.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingParameter, param.Name)
		}
		var err error
		buf, err = appendParameter(buf, param, value)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func appendParameter(buf []byte, param Parameter, value any) ([]byte, error) {
	switch param.Type {
	case Uint8, Int8:
		n, err := numberParam(param, value, 0xFF)
		if err != nil {
			return nil, err
		}
		return append(buf, byte(n)), nil
	case Uint16:
		n, err := numberParam(param, value, 0xFFFF)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint16(buf, uint16(n)), nil
	case Uint32:
		n, err := numberParam(param, value, 0xFFFFFFFF)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint32(buf, uint32(n)), nil
	case IEEEAddr:
		addr, err := ParseIEEEAddr(value)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", param.Name, err)
		}
		return binary.LittleEndian.AppendUint64(buf, addr), nil
	case Buffer, ListUint8:
		b, ok := toBytes(value)
		if !ok {
			return nil, fmt.Errorf("%w: %q is %T", ErrParameterType, param.Name, value)
		}
		return append(buf, b...), nil
	case ListUint16:
		list, ok := toUint16s(value)
		if !ok {
			return nil, fmt.Errorf("%w: %q is %T", ErrParameterType, param.Name, value)
		}
		for _, v := range list {
			buf = binary.LittleEndian.AppendUint16(buf, v)
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("%w: %q cannot be encoded", ErrParameterType, param.Name)
	}
}

func numberParam(param Parameter, value any, max uint64) (uint64, error) {
	if param.Type == Int8 {
		if v, ok := value.(int8); ok {
			return uint64(uint8(v)), nil
		}
	}
	n, ok := toUint64(value)
	if !ok {
		return 0, fmt.Errorf("%w: %q is %T", ErrParameterType, param.Name, value)
	}
	if n > max {
		return 0, fmt.Errorf("%w: %q value %d overflows", ErrParameterType, param.Name, n)
	}
	return n, nil
}

// decodeParameters parses data according to params.
func decodeParameters(params []Parameter, data []byte) (Payload, error) {
	payload := make(Payload, len(params))
	pos := 0
	var prev uint64

	need := func(name string, n int) error {
		if pos+n > len(data) {
			return fmt.Errorf("%w: %q needs %d bytes at offset %d of %d", ErrShortPayload, name, n, pos, len(data))
		}
		return nil
	}

	for _, param := range params {
		switch param.Type {
		case Uint8:
			if err := need(param.Name, 1); err != nil {
				return nil, err
			}
			v := data[pos]
			payload[param.Name], prev = v, uint64(v)
			pos++
		case Int8:
			if err := need(param.Name, 1); err != nil {
				return nil, err
			}
			payload[param.Name] = int8(data[pos])
			pos++
		case Uint16:
			if err := need(param.Name, 2); err != nil {
				return nil, err
			}
			v := binary.LittleEndian.Uint16(data[pos:])
			payload[param.Name], prev = v, uint64(v)
			pos += 2
		case Uint32:
			if err := need(param.Name, 4); err != nil {
				return nil, err
			}
			v := binary.LittleEndian.Uint32(data[pos:])
			payload[param.Name], prev = v, uint64(v)
			pos += 4
		case IEEEAddr:
			if err := need(param.Name, 8); err != nil {
				return nil, err
			}
			payload[param.Name] = FormatIEEEAddr(binary.LittleEndian.Uint64(data[pos:]))
			pos += 8
		case Buffer, ListUint8:
			n := int(prev)
			if err := need(param.Name, n); err != nil {
				return nil, err
			}
			payload[param.Name] = append([]byte{}, data[pos:pos+n]...)
			pos += n
		case ListUint16:
			n := int(prev)
			if err := need(param.Name, 2*n); err != nil {
				return nil, err
			}
			list := make([]uint16, n)
			for i := range list {
				list[i] = binary.LittleEndian.Uint16(data[pos:])
				pos += 2
			}
			payload[param.Name] = list
		case ListNeighborLqi:
			n := int(prev)
			if err := need(param.Name, n*neighborLqiSize); err != nil {
				return nil, err
			}
			list := make([]NeighborLqi, n)
			for i := range list {
				e := data[pos : pos+neighborLqiSize]
				list[i] = NeighborLqi{
					ExtendedPanID: FormatIEEEAddr(binary.LittleEndian.Uint64(e[0:])),
					ExtendedAddr:  FormatIEEEAddr(binary.LittleEndian.Uint64(e[8:])),
					NetworkAddr:   binary.LittleEndian.Uint16(e[16:]),
					DeviceType:    e[18] & 0x03,
					RxOnWhenIdle:  (e[18] >> 2) & 0x03,
					Relationship:  (e[18] >> 4) & 0x07,
					PermitJoin:    e[19] & 0x03,
					Depth:         e[20],
					LinkQuality:   e[21],
				}
				pos += neighborLqiSize
			}
			payload[param.Name] = list
		case ListRoutingTable:
			n := int(prev)
			if err := need(param.Name, n*routingEntrySize); err != nil {
				return nil, err
			}
			list := make([]RoutingEntry, n)
			for i := range list {
				e := data[pos : pos+routingEntrySize]
				list[i] = RoutingEntry{
					DestinationAddr: binary.LittleEndian.Uint16(e[0:]),
					RouteStatus:     e[2] & 0x07,
					NextHop:         binary.LittleEndian.Uint16(e[3:]),
				}
				pos += routingEntrySize
			}
			payload[param.Name] = list
		}
	}
	return payload, nil
}

// FormatIEEEAddr renders a 64-bit address the way payloads carry it.
func FormatIEEEAddr(addr uint64) string {
	return fmt.Sprintf("0x%016x", addr)
}

// ParseIEEEAddr accepts a "0x" prefixed hex string or an unsigned integer.
func ParseIEEEAddr(value any) (uint64, error) {
	if s, ok := value.(string); ok {
		hex := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
		if hex == "" || len(hex) > 16 {
			return 0, fmt.Errorf("%w: invalid IEEE address %q", ErrParameterType, s)
		}
		addr, err := strconv.ParseUint(hex, 16, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid IEEE address %q", ErrParameterType, s)
		}
		return addr, nil
	}
	if n, ok := toUint64(value); ok {
		return n, nil
	}
	return 0, fmt.Errorf("%w: IEEE address is %T", ErrParameterType, value)
}
