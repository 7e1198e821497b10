package commands

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/dlp-radius/goradius/internal/dictionary"
	"github.com/dlp-radius/goradius/internal/radclient"
)

// errMalformedAttr indicates an --attr flag was not of the form name=value.
var errMalformedAttr = errors.New("malformed attribute, expected name=value")

// parseAttrFlags converts a list of "Name=value" strings into
// radclient.AttrValue, resolving each name's wire type from dict to decide
// how to parse its value.
func parseAttrFlags(d *dictionary.Dictionary, raw []string) ([]radclient.AttrValue, error) {
	out := make([]radclient.AttrValue, 0, len(raw))
	for _, s := range raw {
		name, value, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("%q: %w", s, errMalformedAttr)
		}

		def, err := d.LookupByName(dictionary.NoVendor, name)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}

		parsed, err := parseAttrValue(def, value)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}

		out = append(out, radclient.AttrValue{Name: name, Value: parsed})
	}
	return out, nil
}

// parseAttrValue converts a CLI string into the Go value type
// radius.Packet.Add expects for def's wire data type.
func parseAttrValue(def *dictionary.AttributeDef, s string) (any, error) {
	switch def.Type {
	case dictionary.TypeString, dictionary.TypeOctets, dictionary.TypeAbinary, dictionary.TypeTLV:
		return []byte(s), nil

	case dictionary.TypeText:
		return s, nil

	case dictionary.TypeIPAddr, dictionary.TypeIPv6Addr:
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("parse address %q: %w", s, err)
		}
		return addr, nil

	case dictionary.TypeIPv4Prefix, dictionary.TypeIPv6Prefix:
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, fmt.Errorf("parse prefix %q: %w", s, err)
		}
		return p, nil

	case dictionary.TypeInteger, dictionary.TypeByte, dictionary.TypeShort:
		if v, ok := def.Values[s]; ok {
			return coerceInt(def.Type, v)
		}
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parse integer %q: %w", s, err)
		}
		return coerceInt(def.Type, uint32(n))

	case dictionary.TypeInteger64:
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse integer64 %q: %w", s, err)
		}
		return n, nil

	case dictionary.TypeSigned:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parse signed %q: %w", s, err)
		}
		return int32(n), nil

	case dictionary.TypeDate:
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", s, err)
		}
		return t, nil

	case dictionary.TypeEther:
		hw, err := net.ParseMAC(s)
		if err != nil {
			return nil, fmt.Errorf("parse ether %q: %w", s, err)
		}
		return hw, nil

	default:
		return nil, fmt.Errorf("attribute type %s has no CLI parser", def.Type)
	}
}

func coerceInt(dt dictionary.DataType, v uint32) (any, error) {
	switch dt {
	case dictionary.TypeByte:
		if v > 0xFF {
			return nil, fmt.Errorf("value %d exceeds byte range", v)
		}
		return uint8(v), nil
	case dictionary.TypeShort:
		if v > 0xFFFF {
			return nil, fmt.Errorf("value %d exceeds short range", v)
		}
		return uint16(v), nil
	default:
		return v, nil
	}
}
