package radius

import (
	"encoding/binary"
	"fmt"

	"github.com/dlp-radius/goradius/internal/dictionary"
)

// -------------------------------------------------------------------------
// Decode
// -------------------------------------------------------------------------

// DecodeOptions controls Decode's strictness.
type DecodeOptions struct {
	// Lenient, when true, skips attributes that fail to resolve against
	// the dictionary (unknown vendor, unknown code), fail to decrypt, or
	// fail to decode for their type (e.g. wrong length), and skips
	// malformed VSA containers, instead of failing the whole decode. A
	// broken attribute header (length < 2 or overrunning the packet)
	// still fails the decode. Lenient decode is opt-in.
	Lenient bool
}

// DecodeOption configures DecodeOptions.
type DecodeOption func(*DecodeOptions)

// WithLenientDecode enables lenient decoding: attributes that cannot be
// resolved, decrypted, or decoded are dropped rather than causing Decode
// to fail (see DecodeOptions.Lenient).
func WithLenientDecode() DecodeOption {
	return func(o *DecodeOptions) { o.Lenient = true }
}

// Decode parses raw RADIUS wire bytes into a Packet.
//
// reqAuthenticator is the original request's Authenticator; it is required
// (non-nil) to decode encrypt=1/2 attributes carried in a reply (Access-
// Accept/Reject/Challenge, Accounting-Response, CoA/Disconnect ACK/NAK).
// For request-code packets, the packet's own header Authenticator is used
// and reqAuthenticator is ignored (may be nil).
//
// Decode does not verify the Authenticator or Message-Authenticator; call
// VerifyRequestAuthenticator/VerifyResponseAuthenticator and
// VerifyMessageAuthenticator on raw separately, since verification requires
// the shared secret and, for replies, context Decode does not otherwise
// need.
func Decode(raw []byte, secret []byte, dict *dictionary.Dictionary, reqAuthenticator *[16]byte, opts ...DecodeOption) (*Packet, error) {
	var o DecodeOptions
	for _, opt := range opts {
		opt(&o)
	}

	if len(raw) < HeaderSize {
		return nil, fmt.Errorf("radius: decode: %w: %d bytes", ErrPacketTooShort, len(raw))
	}

	length := int(binary.BigEndian.Uint16(raw[2:4]))
	if length < HeaderSize || length > MaxPacketSize {
		return nil, fmt.Errorf("radius: decode: %w: %d", ErrInvalidLength, length)
	}
	if length > len(raw) {
		return nil, fmt.Errorf("radius: decode: %w: length %d, have %d", ErrLengthExceedsPayload, length, len(raw))
	}

	p := &Packet{
		Code:       Code(raw[0]),
		Identifier: raw[1],
		Dict:       dict,
	}
	copy(p.Authenticator[:], raw[4:20])

	var encryptRA [16]byte
	if p.Code.IsRequest() {
		encryptRA = p.Authenticator
	} else if reqAuthenticator != nil {
		encryptRA = *reqAuthenticator
	}

	attrs, err := decodeAttributes(dict, raw[HeaderSize:length], secret, encryptRA, o)
	if err != nil {
		return nil, fmt.Errorf("radius: decode: %w", err)
	}
	p.attrs = attrs

	return p, nil
}

// rawAttr is one wire-level (type, value) pair prior to dictionary
// resolution, type/tag/decrypt handling, and fragment merging.
type rawAttr struct {
	vendor  uint32
	code    uint8
	ext     bool
	subtype uint8
	more    bool
	value   []byte
}

// decodeAttributes walks body, expanding VSA and long-extended containers
// into a flat list of rawAttr, then resolves, merges fragments, strips
// tags, decrypts, and type-decodes each into an Attribute.
func decodeAttributes(dict *dictionary.Dictionary, body []byte, secret []byte, encryptRA [16]byte, o DecodeOptions) ([]*Attribute, error) {
	raws, err := walkAttributes(dict, body, o)
	if err != nil {
		return nil, err
	}

	merged := mergeFragments(dict, raws)

	out := make([]*Attribute, 0, len(merged))
	for _, ra := range merged {
		a, skip, err := resolveAttribute(dict, ra, secret, encryptRA)
		if err != nil {
			if o.Lenient {
				continue
			}
			return nil, err
		}
		if skip {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// walkAttributes parses body into a flat list of rawAttr, descending into
// VSA (type 26) containers using the owning vendor's (type_width,
// length_width) format.
func walkAttributes(dict *dictionary.Dictionary, body []byte, o DecodeOptions) ([]rawAttr, error) {
	var out []rawAttr
	for len(body) > 0 {
		if len(body) < 2 {
			return nil, ErrAttributeTooShort
		}
		typ := body[0]
		l := int(body[1])
		if l < 2 {
			return nil, ErrAttributeTooShort
		}
		if l > len(body) {
			return nil, ErrAttributeOverrun
		}
		value := body[2:l]
		body = body[l:]

		switch {
		case typ == codeVSA:
			sub, err := walkVSA(dict, value, o)
			if err != nil {
				if o.Lenient {
					continue
				}
				return nil, err
			}
			out = append(out, sub...)

		case typ >= 241 && typ <= 246 && len(value) >= 2:
			out = append(out, rawAttr{
				code:    typ,
				ext:     true,
				subtype: value[0],
				more:    value[1]&extendedMoreFlag != 0,
				value:   value[2:],
			})

		default:
			out = append(out, rawAttr{code: typ, value: value})
		}
	}
	return out, nil
}

// walkVSA parses a single VSA (type 26) container's value: a 4-byte
// vendor ID followed by one vendor-scoped sub-attribute.
func walkVSA(dict *dictionary.Dictionary, value []byte, o DecodeOptions) ([]rawAttr, error) {
	if len(value) < 4 {
		return nil, fmt.Errorf("radius: %w: vsa container too short", ErrAttributeOverrun)
	}
	vendorID := binary.BigEndian.Uint32(value[0:4])
	rest := value[4:]

	tw, lw := vendorWidths(dict, vendorID)
	if len(rest) < tw {
		return nil, fmt.Errorf("radius: %w: vsa sub-attribute header truncated", ErrAttributeOverrun)
	}
	subCode := decodeWidthField(rest[:tw])
	rest = rest[tw:]

	var subValue []byte
	if lw > 0 {
		if len(rest) < lw {
			return nil, fmt.Errorf("radius: %w: vsa sub-attribute length truncated", ErrAttributeOverrun)
		}
		subLen := int(decodeWidthField(rest[:lw]))
		rest = rest[lw:]
		bodyLen := subLen - tw - lw
		if bodyLen < 0 || bodyLen > len(rest) {
			return nil, fmt.Errorf("radius: %w: vsa sub-attribute length out of range", ErrAttributeOverrun)
		}
		subValue = rest[:bodyLen]
	} else {
		subValue = rest
	}

	return []rawAttr{{
		vendor: vendorID,
		code:   uint8(subCode), //nolint:gosec // G115: AttributeDef.Code is uint8; wider vendor type widths are truncated, a documented simplification.
		value:  subValue,
	}}, nil
}

func decodeWidthField(b []byte) uint32 {
	switch len(b) {
	case 1:
		return uint32(b[0])
	case 2:
		return uint32(binary.BigEndian.Uint16(b))
	case 4:
		return binary.BigEndian.Uint32(b)
	default:
		return 0
	}
}

// mergeFragments concatenates adjacent rawAttr entries that are fragments
// of one logical value, per RFC 2865 Section 5.1.5 (plain attribute
// splitting) and RFC 6929 Section 4.3 (long-extended continuation,
// governed by the More flag).
//
// Long-extended fragments are unambiguous: the More flag is an explicit
// wire signal. Plain attributes have no such signal, so RFC 2865 gives no
// way to tell "one value split across instances" from "several distinct
// values of a legitimately multi-valued attribute" (e.g. Reply-Message,
// Proxy-State) from the wire alone; only dictionary.AttributeDef.Concat,
// set per-attribute by the dictionary author, resolves the ambiguity.
func mergeFragments(dict *dictionary.Dictionary, raws []rawAttr) []rawAttr {
	var out []rawAttr
	for _, ra := range raws {
		if n := len(out); n > 0 {
			prev := &out[n-1]
			if prev.ext && ra.ext && prev.vendor == ra.vendor && prev.code == ra.code &&
				prev.subtype == ra.subtype && prev.more {
				prev.value = append(prev.value, ra.value...)
				prev.more = ra.more
				continue
			}
			if !prev.ext && !ra.ext && prev.vendor == ra.vendor && prev.code == ra.code &&
				isConcatAttribute(dict, prev.vendor, prev.code) {
				prev.value = append(prev.value, ra.value...)
				continue
			}
		}
		cp := ra
		out = append(out, cp)
	}
	return out
}

// isConcatAttribute reports whether (vendor, code) names an attribute
// whose dictionary entry carries the concat flag.
func isConcatAttribute(dict *dictionary.Dictionary, vendor uint32, code uint8) bool {
	if dict == nil {
		return false
	}
	def, err := dict.LookupByCode(vendor, code)
	if err != nil {
		return false
	}
	return def.Concat
}

// resolveAttribute looks up ra's dictionary definition and decodes its
// value. skip is true, together with a non-nil err, when the attribute has
// no dictionary definition; the caller decides from its options whether
// that error fails the decode or the attribute is dropped.
func resolveAttribute(dict *dictionary.Dictionary, ra rawAttr, secret []byte, encryptRA [16]byte) (attr *Attribute, skip bool, err error) {
	if dict == nil {
		return nil, false, fmt.Errorf("radius: %w: no dictionary attached", ErrUnknownAttribute)
	}

	var def *dictionary.AttributeDef
	if ra.ext {
		def, err = dict.LookupExtended(ra.vendor, ra.code, ra.subtype)
	} else {
		def, err = dict.LookupByCode(ra.vendor, ra.code)
	}
	if err != nil {
		return nil, true, fmt.Errorf("radius: %w (vendor %d code %d)", ErrUnknownAttribute, ra.vendor, ra.code)
	}

	raw := ra.value
	switch def.Encrypt {
	case dictionary.EncryptUserPassword:
		raw, err = PwDecrypt(raw, secret, encryptRA)
		if err != nil {
			return nil, false, err
		}
	case dictionary.EncryptTunnelPassword:
		raw, err = TunnelPasswordDecrypt(raw, secret, encryptRA)
		if err != nil {
			return nil, false, err
		}
	}

	var tag uint8
	if def.Tagged {
		tag, raw = stripTag(def, raw)
	}

	val, err := decodeValue(def.Type, raw)
	if err != nil {
		return nil, false, err
	}

	return &Attribute{Def: def, Tag: tag, Value: val}, false, nil
}

// stripTag reverses applyTag.
func stripTag(def *dictionary.AttributeDef, raw []byte) (tag uint8, rest []byte) {
	if def.Type == dictionary.TypeInteger {
		if len(raw) != 4 {
			return 0, raw
		}
		out := make([]byte, 4)
		copy(out, raw)
		tag = out[0]
		out[0] = 0
		return tag, out
	}
	if len(raw) >= 1 && raw[0] <= 0x1F {
		return raw[0], raw[1:]
	}
	return 0, raw
}
