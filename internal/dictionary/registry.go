package dictionary

import "fmt"

// Dictionary is an immutable, O(1)-average-lookup registry of attribute and
// vendor definitions built by Load or LoadStandard.
// A *Dictionary is safe for concurrent read access from multiple goroutines;
// it exposes no exported mutator.
type Dictionary struct {
	byCode        map[key]*AttributeDef
	byName        map[nameKey]*AttributeDef
	vendorsByID   map[uint32]*Vendor
	vendorsByName map[string]*Vendor
}

// LookupByName resolves a standard-space or vendor-scoped attribute by its
// symbolic name.
func (d *Dictionary) LookupByName(vendor uint32, name string) (*AttributeDef, error) {
	def, ok := d.byName[nameKey{vendor: vendor, name: name}]
	if !ok {
		return nil, fmt.Errorf("dictionary: attribute %q (vendor %d): %w", name, vendor, ErrNotFound)
	}
	return def, nil
}

// LookupByCode resolves a plain (non-extended) attribute by its on-wire
// type octet, scoped to vendor (NoVendor for the standard space).
func (d *Dictionary) LookupByCode(vendor uint32, code uint8) (*AttributeDef, error) {
	def, ok := d.byCode[key{vendor: vendor, code: code}]
	if !ok {
		return nil, fmt.Errorf("dictionary: code %d (vendor %d): %w", code, vendor, ErrNotFound)
	}
	return def, nil
}

// LookupExtended resolves an RFC 6929 long-extended attribute by its parent
// code and sub-type byte.
func (d *Dictionary) LookupExtended(vendor uint32, code, subtype uint8) (*AttributeDef, error) {
	def, ok := d.byCode[key{vendor: vendor, code: code, ext: true, subtype: subtype}]
	if !ok {
		return nil, fmt.Errorf("dictionary: extended code %d.%d (vendor %d): %w", code, subtype, vendor, ErrNotFound)
	}
	return def, nil
}

// LookupValue resolves a VALUE name to its integer encoding for the given
// attribute definition.
func (d *Dictionary) LookupValue(attr *AttributeDef, name string) (uint32, error) {
	if attr.Values == nil {
		return 0, fmt.Errorf("dictionary: attribute %q has no VALUE entries: %w", attr.Name, ErrNotFound)
	}
	v, ok := attr.Values[name]
	if !ok {
		return 0, fmt.Errorf("dictionary: value %q for attribute %q: %w", name, attr.Name, ErrNotFound)
	}
	return v, nil
}

// VendorByID resolves a vendor by its SMI Private Enterprise Number.
func (d *Dictionary) VendorByID(id uint32) (*Vendor, error) {
	v, ok := d.vendorsByID[id]
	if !ok {
		return nil, fmt.Errorf("dictionary: vendor id %d: %w", id, ErrNotFound)
	}
	return v, nil
}

// VendorByName resolves a vendor by its symbolic name.
func (d *Dictionary) VendorByName(name string) (*Vendor, error) {
	v, ok := d.vendorsByName[name]
	if !ok {
		return nil, fmt.Errorf("dictionary: vendor %q: %w", name, ErrNotFound)
	}
	return v, nil
}

// All returns every attribute definition in the registry, in no particular
// order. Used by goradiusctl's `dictionary` subcommand to dump a loaded
// dictionary for operator inspection.
func (d *Dictionary) All() []*AttributeDef {
	out := make([]*AttributeDef, 0, len(d.byCode))
	for _, def := range d.byCode {
		out = append(out, def)
	}
	return out
}

// Merge returns a new Dictionary containing the union of d and other, with
// other's definitions taking precedence on conflict; d and other are left
// unchanged. Used at startup by goradiusd and goradiusctl to layer
// dictionary files over the embedded baseline.
func (d *Dictionary) Merge(other *Dictionary) *Dictionary {
	out := &Dictionary{
		byCode:        make(map[key]*AttributeDef, len(d.byCode)+len(other.byCode)),
		byName:        make(map[nameKey]*AttributeDef, len(d.byName)+len(other.byName)),
		vendorsByID:   make(map[uint32]*Vendor, len(d.vendorsByID)+len(other.vendorsByID)),
		vendorsByName: make(map[string]*Vendor, len(d.vendorsByName)+len(other.vendorsByName)),
	}
	for k, v := range d.byCode {
		out.byCode[k] = v
	}
	for k, v := range d.byName {
		out.byName[k] = v
	}
	for k, v := range d.vendorsByID {
		out.vendorsByID[k] = v
	}
	for k, v := range d.vendorsByName {
		out.vendorsByName[k] = v
	}
	for k, v := range other.byCode {
		out.byCode[k] = v
	}
	for k, v := range other.byName {
		out.byName[k] = v
	}
	for k, v := range other.vendorsByID {
		out.vendorsByID[k] = v
	}
	for k, v := range other.vendorsByName {
		out.vendorsByName[k] = v
	}
	return out
}
