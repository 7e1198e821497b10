package radius

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/dlp-radius/goradius/internal/dictionary"
)

// -------------------------------------------------------------------------
// Protocol Constants — RFC 2865 Section 3
// -------------------------------------------------------------------------

// HeaderSize is the fixed RADIUS packet header size in bytes: code(1) +
// identifier(1) + length(2) + authenticator(16) (RFC 2865 Section 3).
const HeaderSize = 20

// MinPacketSize is the smallest valid packet: a bare header with no
// attributes.
const MinPacketSize = HeaderSize

// MaxPacketSize is the largest valid packet.
const MaxPacketSize = 4096

// maxAttrValueLen is the largest value a single standard (non-extended,
// non-VSA) wire attribute instance can carry: 255 (max length octet) minus
// the 2-byte type+length header.
const maxAttrValueLen = 253

// maxExtValueLen is the largest value a single RFC 6929 long-extended
// fragment can carry: 255 minus type(1)+length(1)+ext-type(1)+flags(1).
const maxExtValueLen = 251

// extendedMoreFlag is the "More" bit of the long-extended Flags octet
// (RFC 6929 Section 4.3), indicating another fragment follows.
const extendedMoreFlag = 0x80

// codeVSA is the wire type for Vendor-Specific Attribute containers
// (RFC 2865 Section 5.26).
const codeVSA = 26

// -------------------------------------------------------------------------
// Attribute — a single decoded (or to-be-encoded) attribute/value pair
// -------------------------------------------------------------------------

// Attribute is one logical attribute value attached to a Packet. Value
// holds a decoded Go value whose concrete type is determined by Def.Type
// (see the table in attrvalue.go); RADIUS permits the same attribute name
// to appear more than once, so Packet stores Attributes as an ordered
// slice, never a map.
type Attribute struct {
	// Def is the dictionary definition resolved for this attribute.
	Def *dictionary.AttributeDef
	// Tag is the RFC 2868 tag octet (0 means "untagged"), meaningful
	// only when Def.Tagged is set.
	Tag uint8
	// Value is the decoded value; see decodeValue/encodeValue for the
	// concrete Go type expected per Def.Type.
	Value any
}

// -------------------------------------------------------------------------
// Packet — RFC 2865 Section 3
// -------------------------------------------------------------------------

// Packet is a decoded or in-progress RADIUS packet: a header plus an
// ordered list of attributes.
type Packet struct {
	// Code is the packet type.
	Code Code
	// Identifier matches requests to replies (RFC 2865 Section 3).
	Identifier uint8
	// Authenticator is populated by Encode (for requests) or supplied by
	// the caller before verification (for replies); see crypto.go.
	Authenticator [16]byte
	// Dict resolves attribute names to wire codes for Add/Get and is
	// attached by Decode for attributes resolved during decoding.
	Dict *dictionary.Dictionary

	attrs []*Attribute
}

// NewPacket creates an empty packet of the given code.
func NewPacket(code Code, dict *dictionary.Dictionary) *Packet {
	return &Packet{Code: code, Dict: dict}
}

// Add appends a standard-space attribute with a decoded value, resolved
// by symbolic name through p.Dict.
func (p *Packet) Add(name string, value any) error {
	return p.AddVendor(dictionary.NoVendor, name, value)
}

// AddVendor appends a vendor-scoped (or standard-space, with
// dictionary.NoVendor) attribute with a decoded value.
func (p *Packet) AddVendor(vendor uint32, name string, value any) error {
	if p.Dict == nil {
		return fmt.Errorf("radius: Add(%q): packet has no dictionary", name)
	}
	def, err := p.Dict.LookupByName(vendor, name)
	if err != nil {
		return fmt.Errorf("radius: Add(%q): %w", name, err)
	}
	p.attrs = append(p.attrs, &Attribute{Def: def, Value: value})
	return nil
}

// AddTagged is like AddVendor but sets the RFC 2868 tag octet.
func (p *Packet) AddTagged(vendor uint32, name string, tag uint8, value any) error {
	if p.Dict == nil {
		return fmt.Errorf("radius: AddTagged(%q): packet has no dictionary", name)
	}
	def, err := p.Dict.LookupByName(vendor, name)
	if err != nil {
		return fmt.Errorf("radius: AddTagged(%q): %w", name, err)
	}
	p.attrs = append(p.attrs, &Attribute{Def: def, Tag: tag, Value: value})
	return nil
}

// Get returns the first standard-space attribute value named name.
func (p *Packet) Get(name string) (any, bool) {
	return p.GetVendor(dictionary.NoVendor, name)
}

// GetVendor returns the first vendor-scoped attribute value named name.
func (p *Packet) GetVendor(vendor uint32, name string) (any, bool) {
	for _, a := range p.attrs {
		if a.Def.Vendor == vendor && a.Def.Name == name {
			return a.Value, true
		}
	}
	return nil, false
}

// GetAll returns every standard-space value named name, in wire order;
// multi-valued attributes are never collapsed.
func (p *Packet) GetAll(name string) []any {
	var out []any
	for _, a := range p.attrs {
		if a.Def.Vendor == dictionary.NoVendor && a.Def.Name == name {
			out = append(out, a.Value)
		}
	}
	return out
}

// Attributes returns the packet's attributes in wire order. The returned
// slice is a copy of the header; the *Attribute values are shared with
// the packet's internal state.
func (p *Packet) Attributes() []*Attribute {
	out := make([]*Attribute, len(p.attrs))
	copy(out, p.attrs)
	return out
}

// hasAttribute reports whether a standard-space attribute named name is
// present.
func (p *Packet) hasAttribute(name string) bool {
	_, ok := p.Get(name)
	return ok
}

// -------------------------------------------------------------------------
// Encode
// -------------------------------------------------------------------------

// Encode serializes p into RADIUS wire bytes, computing the Authenticator
// and, if a Message-Authenticator attribute is present (or the packet
// carries an EAP-Message and none was added explicitly), its HMAC-MD5.
//
// reqAuthenticator is the original request's Authenticator; it is required
// (non-nil) when p.Code is a reply code (Access-Accept/Reject/Challenge,
// Accounting-Response, CoA/Disconnect ACK/NAK) and ignored for request
// codes. For Access-Request/Status-Server/Status-Client, if
// p.Authenticator is still the zero value it is replaced with 16
// cryptographically random bytes; callers that need a deterministic
// Authenticator (tests reproducing RFC 2865 Appendix vectors) may pre-set
// p.Authenticator to a nonzero value, which is then used as-is.
func (p *Packet) Encode(secret []byte, reqAuthenticator *[16]byte) ([]byte, error) {
	kind := p.Code.authenticatorKind()
	if kind == authKindResponse && reqAuthenticator == nil {
		return nil, fmt.Errorf("radius: Encode: code %s requires the request authenticator", p.Code)
	}

	if kind == authKindRandom && p.Authenticator == ([16]byte{}) {
		if err := randomAuthenticator(&p.Authenticator); err != nil {
			return nil, err
		}
	}

	workAttrs := p.attrs
	if !p.hasAttribute("Message-Authenticator") && p.hasAttribute("EAP-Message") {
		if def, err := p.Dict.LookupByName(dictionary.NoVendor, "Message-Authenticator"); err == nil {
			workAttrs = append(append([]*Attribute{}, p.attrs...),
				&Attribute{Def: def, Value: make([]byte, messageAuthenticatorSize)})
		}
	}

	attrBytes, maOffset, err := encodeAttributes(p.Dict, workAttrs, secret, p.effectiveEncryptRA(kind, reqAuthenticator))
	if err != nil {
		return nil, fmt.Errorf("radius: Encode: %w", err)
	}

	total := HeaderSize + len(attrBytes)
	if total > MaxPacketSize {
		return nil, fmt.Errorf("radius: Encode: %w: %d bytes", ErrPacketTooLong, total)
	}

	buf := make([]byte, total)
	buf[0] = uint8(p.Code)
	buf[1] = p.Identifier
	binary.BigEndian.PutUint16(buf[2:4], uint16(total)) //nolint:gosec // G115: total bounded by MaxPacketSize above.
	copy(buf[20:], attrBytes)

	switch kind {
	case authKindRandom:
		copy(buf[4:20], p.Authenticator[:])
	case authKindZeroKeyedMD5:
		// Slot stays zero for the Message-Authenticator pass below.
	case authKindResponse:
		copy(buf[4:20], reqAuthenticator[:])
	}

	if maOffset >= 0 {
		clear(buf[20+maOffset : 20+maOffset+messageAuthenticatorSize])
		mac := computeMessageAuthenticator(buf, secret)
		copy(buf[20+maOffset:20+maOffset+messageAuthenticatorSize], mac[:])
	}

	switch kind {
	case authKindZeroKeyedMD5:
		sum := zeroKeyedMD5Authenticator(buf, secret)
		copy(buf[4:20], sum[:])
		p.Authenticator = sum
	case authKindResponse:
		sum := responseAuthenticator(buf, secret)
		copy(buf[4:20], sum[:])
		p.Authenticator = sum
	}

	return buf, nil
}

// effectiveEncryptRA returns the Request Authenticator used to obfuscate
// encrypt=1/2 attribute values during this Encode call (RFC 2865 Section
// 5.2, RFC 2868 Section 3.5).
func (p *Packet) effectiveEncryptRA(kind requestAuthenticatorKind, reqAuthenticator *[16]byte) [16]byte {
	switch kind {
	case authKindRandom:
		return p.Authenticator
	case authKindResponse:
		return *reqAuthenticator
	default:
		return [16]byte{}
	}
}

// encodeAttributes serializes attrs in order, returning the wire bytes and
// the byte offset of the Message-Authenticator attribute's value within
// those bytes (or -1 if none is present).
func encodeAttributes(dict *dictionary.Dictionary, attrs []*Attribute, secret []byte, encryptRA [16]byte) ([]byte, int, error) {
	var buf []byte
	maOffset := -1

	for _, a := range attrs {
		raw, err := encodeValue(a.Def.Type, a.Value)
		if err != nil {
			return nil, -1, err
		}

		raw, err = applyTagAndEncrypt(a.Def, a.Tag, raw, secret, encryptRA)
		if err != nil {
			return nil, -1, err
		}

		if a.Def.Name == "Message-Authenticator" {
			maOffset = len(buf) + 2
		}

		switch {
		case a.Def.Vendor != dictionary.NoVendor:
			tw, lw := vendorWidths(dict, a.Def.Vendor)
			buf = appendVendorAttribute(buf, a.Def, tw, lw, raw)
		case a.Def.Extended:
			buf = appendExtendedAttribute(buf, a.Def.Code, a.Def.ExtendedSubtype, raw)
		default:
			buf = appendPlainAttribute(buf, a.Def.Code, raw)
		}
	}

	return buf, maOffset, nil
}

// applyTagAndEncrypt applies RFC 2868 tagging and encrypt=1/2 obfuscation
// to an attribute's encoded value, in that order (tag first, since the
// obfuscation transforms operate on the tagged octets for non-integer
// types, matching FreeRADIUS behavior).
func applyTagAndEncrypt(def *dictionary.AttributeDef, tag uint8, raw []byte, secret []byte, encryptRA [16]byte) ([]byte, error) {
	if def.Tagged {
		raw = applyTag(def, tag, raw)
	}

	switch def.Encrypt {
	case dictionary.EncryptUserPassword:
		return PwCrypt(raw, secret, encryptRA)
	case dictionary.EncryptTunnelPassword:
		var salt [2]byte
		if _, err := rand.Read(salt[:]); err != nil {
			return nil, fmt.Errorf("radius: generate tunnel password salt: %w", err)
		}
		return TunnelPasswordEncrypt(raw, secret, encryptRA, salt)
	default:
		return raw, nil
	}
}

// applyTag prepends (or, for integer-typed attributes, embeds) the RFC
// 2868 tag octet. A zero tag is encoded as "no tag" for variable-length
// types by omitting the prefix entirely, matching the decode-side rule
// that a tag octet is only recognized when its value is <= 0x1F.
func applyTag(def *dictionary.AttributeDef, tag uint8, raw []byte) []byte {
	if def.Type == dictionary.TypeInteger {
		out := make([]byte, 4)
		copy(out, raw)
		out[0] = tag
		return out
	}
	if tag == 0 {
		return raw
	}
	out := make([]byte, 1+len(raw))
	out[0] = tag
	copy(out[1:], raw)
	return out
}

// appendPlainAttribute appends a standard-space attribute, splitting the
// value across multiple wire instances of the same type if it exceeds
// maxAttrValueLen (RFC 2865 Section 5.1.5).
func appendPlainAttribute(buf []byte, code uint8, value []byte) []byte {
	if len(value) == 0 {
		return append(buf, code, 2)
	}
	for off := 0; off < len(value); off += maxAttrValueLen {
		end := min(off+maxAttrValueLen, len(value))
		chunk := value[off:end]
		buf = append(buf, code, uint8(2+len(chunk))) //nolint:gosec // G115: chunk bounded by maxAttrValueLen.
		buf = append(buf, chunk...)
	}
	return buf
}

// appendExtendedAttribute appends an RFC 6929 long-extended attribute,
// fragmenting the value across multiple Type/Ext-Type instances with the
// More flag set on every fragment but the last.
func appendExtendedAttribute(buf []byte, parent, subtype uint8, value []byte) []byte {
	if len(value) == 0 {
		return append(buf, parent, 4, subtype, 0)
	}
	for off := 0; off < len(value); off += maxExtValueLen {
		end := min(off+maxExtValueLen, len(value))
		chunk := value[off:end]
		var flags uint8
		if end < len(value) {
			flags = extendedMoreFlag
		}
		buf = append(buf, parent, uint8(4+len(chunk)), subtype, flags) //nolint:gosec // G115: chunk bounded by maxExtValueLen.
		buf = append(buf, chunk...)
	}
	return buf
}

// appendVendorAttribute appends one or more top-level VSA (type 26)
// attributes carrying def's vendor-scoped sub-attribute, splitting the
// sub-attribute value if it exceeds the per-instance capacity implied by
// the vendor's (type_width, length_width) format.
func appendVendorAttribute(buf []byte, def *dictionary.AttributeDef, tw, lw int, value []byte) []byte {
	overhead := 2 + 4 + tw + lw // outer type+len, vendor id, sub type, sub len
	capacity := 255 - overhead
	if capacity <= 0 {
		capacity = 1
	}

	if len(value) == 0 {
		buf = appendVSAInstance(buf, def.Vendor, def.Code, tw, lw, nil)
		return buf
	}

	for off := 0; off < len(value); off += capacity {
		end := min(off+capacity, len(value))
		buf = appendVSAInstance(buf, def.Vendor, def.Code, tw, lw, value[off:end])
	}
	return buf
}

// vendorWidths returns a vendor's sub-attribute (type_width, length_width)
// format, defaulting to the common (1,1) format if the vendor is unknown
// or dict is nil (should not happen for a def resolved from dict, but
// Encode tolerates a caller-constructed Attribute with no live dict).
func vendorWidths(dict *dictionary.Dictionary, vendorID uint32) (typeWidth, lengthWidth int) {
	if dict == nil {
		return 1, 1
	}
	v, err := dict.VendorByID(vendorID)
	if err != nil {
		return 1, 1
	}
	return v.TypeWidth, v.LengthWidth
}

func appendVSAInstance(buf []byte, vendorID uint32, subCode uint8, tw, lw int, subValue []byte) []byte {
	subHeaderLen := tw + lw
	outerLen := 2 + 4 + subHeaderLen + len(subValue)

	buf = append(buf, codeVSA, uint8(outerLen)) //nolint:gosec // G115: outerLen bounded to <=255 by appendVendorAttribute's capacity math.
	var vbuf [4]byte
	binary.BigEndian.PutUint32(vbuf[:], vendorID)
	buf = append(buf, vbuf[:]...)
	buf = append(buf, encodeWidthField(tw, uint32(subCode))...)
	if lw > 0 {
		buf = append(buf, encodeWidthField(lw, uint32(subHeaderLen+len(subValue)))...) //nolint:gosec // G115: bounded by capacity math above.
	}
	buf = append(buf, subValue...)
	return buf
}

func encodeWidthField(width int, v uint32) []byte {
	out := make([]byte, width)
	switch width {
	case 1:
		out[0] = uint8(v) //nolint:gosec // G115: caller ensures v fits in width bytes.
	case 2:
		binary.BigEndian.PutUint16(out, uint16(v)) //nolint:gosec // G115: caller ensures v fits in width bytes.
	case 4:
		binary.BigEndian.PutUint32(out, v)
	}
	return out
}
