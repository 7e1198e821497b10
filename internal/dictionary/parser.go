package dictionary

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	stdpath "path"
	"strconv"
	"strings"
)

// builder accumulates attribute/vendor definitions while a set of dictionary
// files is parsed. It becomes the backing store of the returned Dictionary;
// callers never observe a partially-built Dictionary, since Load only
// returns on success.
type builder struct {
	byCode        map[key]*AttributeDef
	byName        map[nameKey]*AttributeDef
	vendorsByID   map[uint32]*Vendor
	vendorsByName map[string]*Vendor

	// vendorStack tracks nested BEGIN-VENDOR scopes; RADIUS dictionaries
	// do not nest vendor blocks in practice, but the stack keeps
	// END-VENDOR name-checking honest without special-casing depth 1.
	vendorStack []string

	// active is the set of files currently being included, for
	// $INCLUDE cycle detection.
	active map[string]bool

	// fsys sources dictionary file content. Nil means the host
	// filesystem via os.Open; set by LoadFS to read from an embed.FS
	// (the baseline dictionary shipped with this module).
	fsys fs.FS
}

func newBuilder(fsys fs.FS) *builder {
	return &builder{
		byCode:        make(map[key]*AttributeDef),
		byName:        make(map[nameKey]*AttributeDef),
		vendorsByID:   make(map[uint32]*Vendor),
		vendorsByName: make(map[string]*Vendor),
		active:        make(map[string]bool),
		fsys:          fsys,
	}
}

// currentVendor returns the SMI number of the innermost open BEGIN-VENDOR
// scope, or NoVendor if none is open.
func (b *builder) currentVendor() (uint32, error) {
	if len(b.vendorStack) == 0 {
		return NoVendor, nil
	}
	name := b.vendorStack[len(b.vendorStack)-1]
	v, ok := b.vendorsByName[name]
	if !ok {
		return 0, fmt.Errorf("internal error: vendor scope %q not registered", name)
	}
	return v.ID, nil
}

// Load parses each dictionary file in paths, in order, into a single
// Dictionary. Later files may extend attributes/vendors defined by earlier
// ones but not redefine them: duplicate definitions within a scope fail.
// Paths are resolved against the host filesystem;
// $INCLUDE is resolved relative to the including file's directory.
func Load(paths ...string) (*Dictionary, error) {
	b := newBuilder(nil)
	for _, p := range paths {
		if err := b.parseFile(p); err != nil {
			return nil, err
		}
	}
	return b.toDictionary(), nil
}

// LoadFS behaves like Load but reads files from fsys (forward-slash paths,
// no leading "/", per the io/fs contract) instead of the host filesystem.
// Used by LoadStandard to parse the embedded baseline dictionary.
func LoadFS(fsys fs.FS, paths ...string) (*Dictionary, error) {
	b := newBuilder(fsys)
	for _, p := range paths {
		if err := b.parseFile(p); err != nil {
			return nil, err
		}
	}
	return b.toDictionary(), nil
}

func (b *builder) toDictionary() *Dictionary {
	return &Dictionary{
		byCode:        b.byCode,
		byName:        b.byName,
		vendorsByID:   b.vendorsByID,
		vendorsByName: b.vendorsByName,
	}
}

func (b *builder) parseFile(name string) error {
	activeKey := name
	if b.fsys == nil {
		abs, err := filepath.Abs(name)
		if err != nil {
			return fmt.Errorf("resolve dictionary path %s: %w", name, err)
		}
		activeKey = abs
	}

	if b.active[activeKey] {
		return parseErrf(name, 0, KindIncludeCycle, "include cycle detected for %s", name)
	}
	b.active[activeKey] = true
	defer delete(b.active, activeKey)

	f, err := b.open(name)
	if err != nil {
		return parseErrf(name, 0, KindIncludeFailed, "open dictionary file: %v", err)
	}
	defer f.Close()

	path := name

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		if err := b.dispatch(path, lineNo, fields); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return parseErrf(path, lineNo, KindSyntax, "read dictionary file: %v", err)
	}

	if len(b.vendorStack) > 0 {
		return parseErrf(path, lineNo, KindUnbalancedVendor,
			"file ends with %d unclosed BEGIN-VENDOR scope(s)", len(b.vendorStack))
	}

	return nil
}

// open returns a reader for name, sourced from b.fsys if set, else the host
// filesystem.
func (b *builder) open(name string) (io.ReadCloser, error) {
	if b.fsys != nil {
		return b.fsys.Open(name)
	}
	return os.Open(name)
}

func (b *builder) dispatch(file string, line int, fields []string) error {
	switch strings.ToUpper(fields[0]) {
	case "ATTRIBUTE":
		return b.attribute(file, line, fields[1:])
	case "VALUE":
		return b.value(file, line, fields[1:])
	case "VENDOR":
		return b.vendor(file, line, fields[1:])
	case "BEGIN-VENDOR":
		return b.beginVendor(file, line, fields[1:])
	case "END-VENDOR":
		return b.endVendor(file, line, fields[1:])
	case "$INCLUDE":
		return b.include(file, line, fields[1:])
	default:
		return parseErrf(file, line, KindUnrecognizedToken, "unrecognized keyword %q", fields[0])
	}
}

// include resolves a $INCLUDE path relative to the directory of the
// including file.
func (b *builder) include(file string, line int, args []string) error {
	if len(args) < 1 {
		return parseErrf(file, line, KindMissingArguments, "$INCLUDE requires a path argument")
	}
	target := args[0]
	if b.fsys != nil {
		if !stdpath.IsAbs(target) {
			target = stdpath.Join(stdpath.Dir(file), target)
		}
	} else if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(file), target)
	}
	if err := b.parseFile(target); err != nil {
		return err
	}
	return nil
}

// attribute handles: ATTRIBUTE <name> <code> <type> [flags...]
func (b *builder) attribute(file string, line int, args []string) error {
	if len(args) < 3 {
		return parseErrf(file, line, KindMissingArguments,
			"ATTRIBUTE requires name, code, and type")
	}

	name, codeStr, typeStr := args[0], args[1], args[2]

	vendor, err := b.currentVendor()
	if err != nil {
		return parseErrf(file, line, KindSyntax, "%v", err)
	}

	dt, ok := ParseDataType(typeStr)
	if !ok {
		return parseErrf(file, line, KindUnknownType, "unknown attribute type %q", typeStr)
	}

	code, extSub, extended, err := parseAttributeCode(codeStr)
	if err != nil {
		return parseErrf(file, line, KindInvalidAttrCode, "%v", err)
	}

	def := &AttributeDef{
		Name:            name,
		Code:            code,
		ExtendedSubtype: extSub,
		Extended:        extended,
		Type:            dt,
		Vendor:          vendor,
	}

	for _, flag := range args[3:] {
		if err := applyFlag(def, flag); err != nil {
			return parseErrf(file, line, KindInvalidFlagValue, "%v", err)
		}
	}

	nk := nameKey{vendor: vendor, name: name}
	if _, dup := b.byName[nk]; dup {
		return parseErrf(file, line, KindDuplicateAttr,
			"attribute %q already defined in vendor scope %d", name, vendor)
	}

	ck := key{vendor: vendor, code: code, ext: extended, subtype: extSub}
	if _, dup := b.byCode[ck]; dup {
		return parseErrf(file, line, KindDuplicateAttr,
			"attribute code %d (vendor %d) already defined", code, vendor)
	}

	b.byName[nk] = def
	b.byCode[ck] = def

	return nil
}

// parseAttributeCode accepts a plain 1..255 code or an RFC 6929 "t.s"
// extended form (parent type 241..246, one extra sub-type byte carried in
// the value).
func parseAttributeCode(s string) (code uint8, subtype uint8, extended bool, err error) {
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		parentStr, subStr := s[:dot], s[dot+1:]
		parent, perr := strconv.ParseUint(parentStr, 10, 8)
		if perr != nil {
			return 0, 0, false, fmt.Errorf("invalid extended attribute parent %q: %w", parentStr, perr)
		}
		sub, serr := strconv.ParseUint(subStr, 10, 8)
		if serr != nil {
			return 0, 0, false, fmt.Errorf("invalid extended attribute sub-type %q: %w", subStr, serr)
		}
		if parent < 241 || parent > 246 {
			return 0, 0, false, fmt.Errorf("extended attribute parent %d outside RFC 6929 range 241-246", parent)
		}
		return uint8(parent), uint8(sub), true, nil
	}

	n, perr := strconv.ParseUint(s, 10, 8)
	if perr != nil {
		return 0, 0, false, fmt.Errorf("invalid attribute code %q: %w", s, perr)
	}
	if n == 0 {
		return 0, 0, false, fmt.Errorf("invalid attribute code %q: outside range 1-255", s)
	}
	return uint8(n), 0, false, nil
}

// applyFlag interprets one ATTRIBUTE trailing flag token: "has_tag",
// "concat", or "encrypt=N".
func applyFlag(def *AttributeDef, flag string) error {
	switch {
	case flag == "has_tag":
		def.Tagged = true
	case flag == "concat":
		def.Concat = true
	case strings.HasPrefix(flag, "encrypt="):
		n, err := strconv.Atoi(strings.TrimPrefix(flag, "encrypt="))
		if err != nil {
			return fmt.Errorf("invalid encrypt= value %q: %w", flag, err)
		}
		if n < 0 || n > 3 {
			return fmt.Errorf("encrypt= value %d out of range 0-3", n)
		}
		def.Encrypt = EncryptKind(n)
	default:
		// Unknown flags (e.g. array) are accepted but ignored; they do
		// not affect wire encoding of the types this codec supports.
	}
	return nil
}

// value handles: VALUE <attribute-name> <value-name> <integer>
func (b *builder) value(file string, line int, args []string) error {
	if len(args) < 3 {
		return parseErrf(file, line, KindMissingArguments,
			"VALUE requires attribute name, value name, and integer")
	}

	attrName, valName, numStr := args[0], args[1], args[2]

	vendor, err := b.currentVendor()
	if err != nil {
		return parseErrf(file, line, KindSyntax, "%v", err)
	}

	def, ok := b.byName[nameKey{vendor: vendor, name: attrName}]
	if !ok {
		// Standard practice allows VALUE lines for attributes defined
		// outside the current vendor scope (enum namespaces like
		// Service-Type are shared); fall back to the top-level scope.
		def, ok = b.byName[nameKey{vendor: NoVendor, name: attrName}]
	}
	if !ok {
		return parseErrf(file, line, KindUnknownAttribute,
			"VALUE references unknown attribute %q", attrName)
	}

	n, err := strconv.ParseUint(numStr, 10, 32)
	if err != nil {
		return parseErrf(file, line, KindSyntax, "invalid VALUE integer %q: %v", numStr, err)
	}

	if _, dup := def.Values[valName]; dup {
		return parseErrf(file, line, KindDuplicateValue,
			"VALUE %q already defined for attribute %q", valName, attrName)
	}

	def.addValue(valName, uint32(n))

	return nil
}

// vendor handles: VENDOR <name> <id> [format=t,l]
func (b *builder) vendor(file string, line int, args []string) error {
	if len(args) < 2 {
		return parseErrf(file, line, KindMissingArguments, "VENDOR requires name and id")
	}

	name, idStr := args[0], args[1]

	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return parseErrf(file, line, KindSyntax, "invalid VENDOR id %q: %v", idStr, err)
	}

	v := &Vendor{ID: uint32(id), Name: name, TypeWidth: 1, LengthWidth: 1}

	for _, arg := range args[2:] {
		if strings.HasPrefix(arg, "format=") {
			tw, lw, ferr := parseVendorFormat(strings.TrimPrefix(arg, "format="))
			if ferr != nil {
				return parseErrf(file, line, KindInvalidVendorFmt, "%v", ferr)
			}
			v.TypeWidth, v.LengthWidth = tw, lw
		}
	}

	if _, dup := b.vendorsByName[name]; dup {
		return parseErrf(file, line, KindDuplicateVendor, "vendor %q already defined", name)
	}
	if _, dup := b.vendorsByID[v.ID]; dup {
		return parseErrf(file, line, KindDuplicateVendor, "vendor id %d already defined", v.ID)
	}

	b.vendorsByName[name] = v
	b.vendorsByID[v.ID] = v

	return nil
}

// parseVendorFormat parses "T,L" into type-width and length-width octet
// counts.
func parseVendorFormat(s string) (typeWidth, lengthWidth int, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("vendor format %q must be T,L", s)
	}
	tw, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("vendor format type width %q: %w", parts[0], err)
	}
	lw, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("vendor format length width %q: %w", parts[1], err)
	}
	if tw != 1 && tw != 2 && tw != 4 {
		return 0, 0, fmt.Errorf("vendor format type width %d must be 1, 2, or 4", tw)
	}
	if lw != 0 && lw != 1 && lw != 2 {
		return 0, 0, fmt.Errorf("vendor format length width %d must be 0, 1, or 2", lw)
	}
	return tw, lw, nil
}

// beginVendor handles: BEGIN-VENDOR <name>
func (b *builder) beginVendor(file string, line int, args []string) error {
	if len(args) < 1 {
		return parseErrf(file, line, KindMissingArguments, "BEGIN-VENDOR requires a vendor name")
	}
	name := args[0]
	if _, ok := b.vendorsByName[name]; !ok {
		return parseErrf(file, line, KindUnknownVendor, "BEGIN-VENDOR references unknown vendor %q", name)
	}
	b.vendorStack = append(b.vendorStack, name)
	return nil
}

// endVendor handles: END-VENDOR <name>
func (b *builder) endVendor(file string, line int, args []string) error {
	if len(args) < 1 {
		return parseErrf(file, line, KindMissingArguments, "END-VENDOR requires a vendor name")
	}
	name := args[0]

	if len(b.vendorStack) == 0 {
		return parseErrf(file, line, KindUnbalancedVendor, "END-VENDOR %q with no open BEGIN-VENDOR", name)
	}

	top := b.vendorStack[len(b.vendorStack)-1]
	if top != name {
		return parseErrf(file, line, KindUnbalancedVendor,
			"END-VENDOR %q does not match open scope %q", name, top)
	}

	b.vendorStack = b.vendorStack[:len(b.vendorStack)-1]
	return nil
}
