// Package dictionary implements the RADIUS attribute dictionary: a parser
// for FreeRADIUS-style dictionary files (RFC 2865/2866/2869/3162/5176/6929
// attribute definitions) and an immutable, O(1) lookup registry translating
// between symbolic attribute names and their on-wire numeric identifiers,
// types, and vendor scope.
package dictionary

import "fmt"

// DataType identifies the wire encoding of an attribute's value.
type DataType uint8

// Recognized attribute data types.
const (
	TypeString DataType = iota
	TypeText
	TypeIPAddr
	TypeIPv6Addr
	TypeIPv6Prefix
	TypeIPv4Prefix
	TypeInteger
	TypeInteger64
	TypeSigned
	TypeDate
	TypeOctets
	TypeAbinary
	TypeIfID
	TypeByte
	TypeShort
	TypeEther
	TypeTLV
	TypeVSA // RFC 6929 long-extended-plus-VSA payload (241.26/242.26/243.26); opaque bytes
)

// typeNames maps DataType to the dictionary file token it is spelled as.
var typeNames = map[DataType]string{
	TypeString:     "string",
	TypeText:       "text",
	TypeIPAddr:     "ipaddr",
	TypeIPv6Addr:   "ipv6addr",
	TypeIPv6Prefix: "ipv6prefix",
	TypeIPv4Prefix: "ipv4prefix",
	TypeInteger:    "integer",
	TypeInteger64:  "integer64",
	TypeSigned:     "signed",
	TypeDate:       "date",
	TypeOctets:     "octets",
	TypeAbinary:    "abinary",
	TypeIfID:       "ifid",
	TypeByte:       "byte",
	TypeShort:      "short",
	TypeEther:      "ether",
	TypeTLV:        "tlv",
	TypeVSA:        "vsa",
}

// nameToType is the inverse of typeNames, built once at init.
var nameToType map[string]DataType

func init() {
	nameToType = make(map[string]DataType, len(typeNames))
	for t, n := range typeNames {
		nameToType[n] = t
	}
}

// String returns the dictionary-file spelling of the data type.
func (t DataType) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("DataType(%d)", uint8(t))
}

// ParseDataType resolves a dictionary token (e.g. "ipaddr") to a DataType.
func ParseDataType(s string) (DataType, bool) {
	t, ok := nameToType[s]
	return t, ok
}

// EncryptKind identifies the value-obfuscation transform applied to an
// attribute's value before it is placed on the wire.
type EncryptKind uint8

// Recognized encrypt= flag values.
const (
	EncryptNone           EncryptKind = 0
	EncryptUserPassword   EncryptKind = 1
	EncryptTunnelPassword EncryptKind = 2
	EncryptAscendSend     EncryptKind = 3
)

// NoVendor is the vendor ID used for attributes in the standard (top-level)
// namespace, i.e. not scoped to any VENDOR/BEGIN-VENDOR block.
const NoVendor uint32 = 0

// Vendor describes a VSA vendor scope.
type Vendor struct {
	// ID is the IANA SMI Private Enterprise Number.
	ID uint32
	// Name is the symbolic vendor name used in BEGIN-VENDOR/END-VENDOR.
	Name string
	// TypeWidth is the width in bytes of the vendor sub-attribute type
	// field: 1, 2, or 4. Defaults to 1.
	TypeWidth int
	// LengthWidth is the width in bytes of the vendor sub-attribute length
	// field: 0, 1, or 2. Defaults to 1.
	LengthWidth int
}

// AttributeDef is a fully resolved attribute definition.
type AttributeDef struct {
	// Name is the symbolic attribute name, e.g. "User-Name".
	Name string
	// Code is the on-wire attribute type octet (1..255), or for RFC 6929
	// extended attributes the parent type (241..246); see ExtendedSubtype.
	Code uint8
	// ExtendedSubtype is nonzero for RFC 6929 "t.s" attributes: the extra
	// sub-type byte carried as the first byte of the attribute value.
	ExtendedSubtype uint8
	// Extended reports whether this attribute uses the t.s long-extended
	// form rather than a plain top-level code.
	Extended bool
	// Type is the wire data type.
	Type DataType
	// Vendor is NoVendor for standard-space attributes, else the owning
	// vendor's SMI number (the attribute was defined within a
	// BEGIN-VENDOR/END-VENDOR block, or is a top-level VSA code 26
	// sub-attribute).
	Vendor uint32
	// Tagged is true when the ATTRIBUTE line carried the has_tag flag
	// (RFC 2868 tagged tunnel attributes).
	Tagged bool
	// Concat is true when the ATTRIBUTE line carried the concat flag:
	// multiple consecutive wire instances of this attribute are
	// fragments of one logical value (RFC 2865 Section 5.1.5) and must
	// be reassembled by concatenation on decode, rather than kept as
	// distinct multi-valued instances (e.g. EAP-Message, RFC 3579
	// Section 3.1).
	Concat bool
	// Encrypt selects the value-obfuscation transform, if any.
	Encrypt EncryptKind
	// Values maps symbolic VALUE names to their integer encoding, scoped
	// to this attribute.
	Values map[string]uint32
	// valueNames is the inverse of Values, built lazily by addValue.
	valueNames map[uint32]string
}

// ValueName returns the symbolic name for an enumerated integer value, or
// ok=false if no VALUE line named it.
func (a *AttributeDef) ValueName(v uint32) (string, bool) {
	if a.valueNames == nil {
		return "", false
	}
	name, ok := a.valueNames[v]
	return name, ok
}

func (a *AttributeDef) addValue(name string, v uint32) {
	if a.Values == nil {
		a.Values = make(map[string]uint32)
	}
	if a.valueNames == nil {
		a.valueNames = make(map[uint32]string)
	}
	a.Values[name] = v
	a.valueNames[v] = name
}

// key identifies an attribute within the registry: (vendor, code) or, for
// RFC 6929 extended attributes, (vendor, code, subtype).
type key struct {
	vendor  uint32
	code    uint8
	ext     bool
	subtype uint8
}

// nameKey identifies an attribute by (vendor, name) for name-based lookup.
type nameKey struct {
	vendor uint32
	name   string
}
