package radius

import (
	"bytes"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/dlp-radius/goradius/internal/dictionary"
)

func TestValueCodecRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		dt   dictionary.DataType
		in   any
	}{
		{"string", dictionary.TypeString, []byte{0x01, 0x02, 0x03}},
		{"text", dictionary.TypeText, "hello world"},
		{"ipaddr", dictionary.TypeIPAddr, netip.MustParseAddr("192.0.2.5")},
		{"ipv6addr", dictionary.TypeIPv6Addr, netip.MustParseAddr("2001:db8::1")},
		{"integer", dictionary.TypeInteger, uint32(1812)},
		{"integer64", dictionary.TypeInteger64, uint64(1 << 40)},
		{"signed", dictionary.TypeSigned, int32(-42)},
		{"date", dictionary.TypeDate, time.Unix(1700000000, 0).UTC()},
		{"octets", dictionary.TypeOctets, []byte{0xFF, 0x00, 0xAB}},
		{"ifid", dictionary.TypeIfID, [8]byte{1, 2, 3, 4, 5, 6, 7, 8}},
		{"byte", dictionary.TypeByte, uint8(7)},
		{"short", dictionary.TypeShort, uint16(4096)},
		{"ether", dictionary.TypeEther, net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := encodeValue(tc.dt, tc.in)
			if err != nil {
				t.Fatalf("encodeValue: %v", err)
			}
			got, err := decodeValue(tc.dt, raw)
			if err != nil {
				t.Fatalf("decodeValue: %v", err)
			}

			switch want := tc.in.(type) {
			case []byte:
				if !bytes.Equal(got.([]byte), want) {
					t.Fatalf("round-trip = %v, want %v", got, want)
				}
			case net.HardwareAddr:
				if !bytes.Equal(got.(net.HardwareAddr), want) {
					t.Fatalf("round-trip = %v, want %v", got, want)
				}
			default:
				if got != tc.in {
					t.Fatalf("round-trip = %v, want %v", got, tc.in)
				}
			}
		})
	}
}

func TestIPv4PrefixRoundTrip(t *testing.T) {
	p := netip.MustParsePrefix("192.0.2.0/24")
	raw, err := encodeValue(dictionary.TypeIPv4Prefix, p)
	if err != nil {
		t.Fatalf("encodeValue: %v", err)
	}
	if len(raw) != 6 {
		t.Fatalf("encodeValue ipv4prefix: got %d bytes, want 6", len(raw))
	}
	got, err := decodeValue(dictionary.TypeIPv4Prefix, raw)
	if err != nil {
		t.Fatalf("decodeValue: %v", err)
	}
	if got.(netip.Prefix) != p {
		t.Fatalf("round-trip = %v, want %v", got, p)
	}
}

func TestIPv6PrefixAcceptsShortenedWire(t *testing.T) {
	// decode MUST accept 2..18 bytes (a sender may omit trailing zero
	// address octets).
	raw := []byte{0x00, 0x40, 0x20, 0x01, 0x0d, 0xb8} // /64, 4 address bytes
	got, err := decodeValue(dictionary.TypeIPv6Prefix, raw)
	if err != nil {
		t.Fatalf("decodeValue: %v", err)
	}
	p := got.(netip.Prefix)
	if p.Bits() != 64 {
		t.Fatalf("prefix bits = %d, want 64", p.Bits())
	}
}

func TestIPv6PrefixRejectsOverlongWire(t *testing.T) {
	raw := make([]byte, 20)
	if _, err := decodeValue(dictionary.TypeIPv6Prefix, raw); err == nil {
		t.Fatalf("decodeValue: want error for 20-byte ipv6prefix")
	}
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	tests := []struct {
		dt  dictionary.DataType
		raw []byte
	}{
		{dictionary.TypeIPAddr, []byte{1, 2, 3}},
		{dictionary.TypeIPv6Addr, make([]byte, 15)},
		{dictionary.TypeInteger, []byte{1, 2, 3}},
		{dictionary.TypeInteger64, []byte{1, 2, 3, 4, 5, 6, 7}},
		{dictionary.TypeSigned, []byte{1, 2, 3}},
		{dictionary.TypeIfID, []byte{1, 2, 3}},
		{dictionary.TypeByte, []byte{1, 2}},
		{dictionary.TypeShort, []byte{1}},
		{dictionary.TypeEther, []byte{1, 2, 3, 4, 5}},
		{dictionary.TypeDate, []byte{1, 2, 3}},
	}
	for _, tc := range tests {
		if _, err := decodeValue(tc.dt, tc.raw); err == nil {
			t.Fatalf("decodeValue(%s, %d bytes): want error", tc.dt, len(tc.raw))
		}
	}
}

func TestEncodeRejectsWrongGoType(t *testing.T) {
	if _, err := encodeValue(dictionary.TypeIPAddr, "not-an-addr"); err == nil {
		t.Fatalf("encodeValue: want error for wrong Go type")
	}
	if _, err := encodeValue(dictionary.TypeInteger, "nope"); err == nil {
		t.Fatalf("encodeValue: want error for wrong Go type")
	}
}
