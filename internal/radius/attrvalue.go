package radius

import (
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/dlp-radius/goradius/internal/dictionary"
)

// -------------------------------------------------------------------------
// Attribute Type Codecs
// -------------------------------------------------------------------------
//
// Each DataType has an encode (Go value -> wire octets) and decode (wire
// octets -> Go value) pair, applying strict length validation: reject
// anything that does not exactly match the RFC-mandated shape rather
// than guess at intent.
//
// Value representations:
//
//	string, octets, abinary   []byte
//	text                      string
//	ipaddr                    netip.Addr (4-in-6 unwrapped)
//	ipv6addr                  netip.Addr
//	ipv4prefix, ipv6prefix    netip.Prefix
//	integer                   uint32 (encode also accepts int)
//	integer64                 uint64
//	signed                    int32
//	date                      time.Time
//	ifid                      [8]byte
//	byte                      uint8
//	short                     uint16
//	ether                     net.HardwareAddr
//	tlv                       []byte (nested sub-attributes, opaque)
//	vsa                       []byte (RFC 6929 long-extended-plus-VSA payload, opaque)

// encodeValue converts a Go value into wire octets for the given DataType.
func encodeValue(dt dictionary.DataType, v any) ([]byte, error) {
	switch dt {
	case dictionary.TypeString, dictionary.TypeOctets, dictionary.TypeAbinary, dictionary.TypeTLV, dictionary.TypeVSA:
		b, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("radius: encode %s: want []byte, got %T", dt, v)
		}
		return b, nil

	case dictionary.TypeText:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("radius: encode text: want string, got %T", v)
		}
		return []byte(s), nil

	case dictionary.TypeIPAddr:
		addr, ok := v.(netip.Addr)
		if !ok {
			return nil, fmt.Errorf("radius: encode ipaddr: want netip.Addr, got %T", v)
		}
		a4 := addr.As4()
		return a4[:], nil

	case dictionary.TypeIPv6Addr:
		addr, ok := v.(netip.Addr)
		if !ok {
			return nil, fmt.Errorf("radius: encode ipv6addr: want netip.Addr, got %T", v)
		}
		a16 := addr.As16()
		return a16[:], nil

	case dictionary.TypeIPv4Prefix:
		return encodePrefix(v, 4)

	case dictionary.TypeIPv6Prefix:
		return encodePrefix(v, 16)

	case dictionary.TypeInteger:
		n, err := toUint32(v)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, n)
		return buf, nil

	case dictionary.TypeDate:
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("radius: encode date: want time.Time, got %T", v)
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(t.Unix())) //nolint:gosec // G115: RFC 2865 date field is 32-bit seconds since epoch.
		return buf, nil

	case dictionary.TypeInteger64:
		n, ok := v.(uint64)
		if !ok {
			return nil, fmt.Errorf("radius: encode integer64: want uint64, got %T", v)
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, n)
		return buf, nil

	case dictionary.TypeSigned:
		n, ok := v.(int32)
		if !ok {
			return nil, fmt.Errorf("radius: encode signed: want int32, got %T", v)
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(n))
		return buf, nil

	case dictionary.TypeIfID:
		switch id := v.(type) {
		case [8]byte:
			return id[:], nil
		case []byte:
			if len(id) != 8 {
				return nil, fmt.Errorf("radius: encode ifid: %w: got %d bytes, want 8", ErrValueLength, len(id))
			}
			return id, nil
		default:
			return nil, fmt.Errorf("radius: encode ifid: want [8]byte, got %T", v)
		}

	case dictionary.TypeByte:
		n, ok := v.(uint8)
		if !ok {
			return nil, fmt.Errorf("radius: encode byte: want uint8, got %T", v)
		}
		return []byte{n}, nil

	case dictionary.TypeShort:
		n, ok := v.(uint16)
		if !ok {
			return nil, fmt.Errorf("radius: encode short: want uint16, got %T", v)
		}
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, n)
		return buf, nil

	case dictionary.TypeEther:
		hw, ok := v.(net.HardwareAddr)
		if !ok {
			return nil, fmt.Errorf("radius: encode ether: want net.HardwareAddr, got %T", v)
		}
		if len(hw) != 6 {
			return nil, fmt.Errorf("radius: encode ether: %w: got %d bytes, want 6", ErrValueLength, len(hw))
		}
		return []byte(hw), nil

	default:
		return nil, fmt.Errorf("radius: encode: unsupported data type %s", dt)
	}
}

func toUint32(v any) (uint32, error) {
	switch n := v.(type) {
	case uint32:
		return n, nil
	case int:
		return uint32(n), nil //nolint:gosec // G115: caller-supplied attribute values, not parsed wire lengths.
	default:
		return 0, fmt.Errorf("radius: encode integer: want uint32 or int, got %T", v)
	}
}

func encodePrefix(v any, addrLen int) ([]byte, error) {
	p, ok := v.(netip.Prefix)
	if !ok {
		return nil, fmt.Errorf("radius: encode prefix: want netip.Prefix, got %T", v)
	}
	buf := make([]byte, 2+addrLen)
	buf[0] = 0 // reserved
	buf[1] = uint8(p.Bits())
	if addrLen == 4 {
		a4 := p.Addr().As4()
		copy(buf[2:], a4[:])
	} else {
		a16 := p.Addr().As16()
		copy(buf[2:], a16[:])
	}
	return buf, nil
}

// decodeValue converts wire octets into a Go value for the given DataType.
func decodeValue(dt dictionary.DataType, raw []byte) (any, error) {
	switch dt {
	case dictionary.TypeString, dictionary.TypeOctets, dictionary.TypeAbinary, dictionary.TypeTLV, dictionary.TypeVSA:
		out := make([]byte, len(raw))
		copy(out, raw)
		return out, nil

	case dictionary.TypeText:
		return string(raw), nil

	case dictionary.TypeIPAddr:
		if len(raw) != 4 {
			return nil, fmt.Errorf("radius: decode ipaddr: %w: got %d bytes, want 4", ErrValueLength, len(raw))
		}
		return netip.AddrFrom4([4]byte(raw)), nil

	case dictionary.TypeIPv6Addr:
		if len(raw) != 16 {
			return nil, fmt.Errorf("radius: decode ipv6addr: %w: got %d bytes, want 16", ErrValueLength, len(raw))
		}
		return netip.AddrFrom16([16]byte(raw)), nil

	case dictionary.TypeIPv4Prefix:
		return decodePrefix(raw, 4)

	case dictionary.TypeIPv6Prefix:
		return decodePrefix(raw, 16)

	case dictionary.TypeInteger:
		if len(raw) != 4 {
			return nil, fmt.Errorf("radius: decode integer: %w: got %d bytes, want 4", ErrValueLength, len(raw))
		}
		return binary.BigEndian.Uint32(raw), nil

	case dictionary.TypeDate:
		if len(raw) != 4 {
			return nil, fmt.Errorf("radius: decode date: %w: got %d bytes, want 4", ErrValueLength, len(raw))
		}
		return time.Unix(int64(binary.BigEndian.Uint32(raw)), 0).UTC(), nil

	case dictionary.TypeInteger64:
		if len(raw) != 8 {
			return nil, fmt.Errorf("radius: decode integer64: %w: got %d bytes, want 8", ErrValueLength, len(raw))
		}
		return binary.BigEndian.Uint64(raw), nil

	case dictionary.TypeSigned:
		if len(raw) != 4 {
			return nil, fmt.Errorf("radius: decode signed: %w: got %d bytes, want 4", ErrValueLength, len(raw))
		}
		return int32(binary.BigEndian.Uint32(raw)), nil //nolint:gosec // G115: explicit two's-complement reinterpretation, not a truncation.

	case dictionary.TypeIfID:
		if len(raw) != 8 {
			return nil, fmt.Errorf("radius: decode ifid: %w: got %d bytes, want 8", ErrValueLength, len(raw))
		}
		return [8]byte(raw), nil

	case dictionary.TypeByte:
		if len(raw) != 1 {
			return nil, fmt.Errorf("radius: decode byte: %w: got %d bytes, want 1", ErrValueLength, len(raw))
		}
		return raw[0], nil

	case dictionary.TypeShort:
		if len(raw) != 2 {
			return nil, fmt.Errorf("radius: decode short: %w: got %d bytes, want 2", ErrValueLength, len(raw))
		}
		return binary.BigEndian.Uint16(raw), nil

	case dictionary.TypeEther:
		if len(raw) != 6 {
			return nil, fmt.Errorf("radius: decode ether: %w: got %d bytes, want 6", ErrValueLength, len(raw))
		}
		hw := make(net.HardwareAddr, 6)
		copy(hw, raw)
		return hw, nil

	default:
		return nil, fmt.Errorf("radius: decode: unsupported data type %s", dt)
	}
}

// decodePrefix decodes the shared ipv4prefix/ipv6prefix wire shape: a
// reserved byte, a prefix-length byte, and 2..addrLen address octets.
// Decode must accept 2..18 bytes for ipv6prefix.
func decodePrefix(raw []byte, addrLen int) (netip.Prefix, error) {
	if len(raw) < 2 || len(raw) > 2+addrLen {
		return netip.Prefix{}, fmt.Errorf("radius: decode prefix: %w: got %d bytes, want 2..%d",
			ErrValueLength, len(raw), 2+addrLen)
	}
	bits := int(raw[1])
	if bits > addrLen*8 {
		return netip.Prefix{}, fmt.Errorf("radius: decode prefix: %w: prefix length %d exceeds %d bits",
			ErrValueLength, bits, addrLen*8)
	}

	var addrBytes [16]byte
	copy(addrBytes[:], raw[2:])

	var addr netip.Addr
	if addrLen == 4 {
		addr = netip.AddrFrom4([4]byte(addrBytes[:4]))
	} else {
		addr = netip.AddrFrom16(addrBytes)
	}

	return netip.PrefixFrom(addr, bits), nil
}
