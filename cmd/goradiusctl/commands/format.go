package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dlp-radius/goradius/internal/dictionary"
	"github.com/dlp-radius/goradius/internal/radius"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

// formatPacket renders a decoded reply packet in the requested format.
func formatPacket(p *radius.Packet, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatPacketJSON(p)
	case formatTable:
		return formatPacketTable(p), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// formatDictionary renders a dictionary dump in the requested format.
func formatDictionary(defs []*dictionary.AttributeDef, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatDictionaryJSON(defs)
	case formatTable:
		return formatDictionaryTable(defs), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// --- Table formatters ---

func formatPacketTable(p *radius.Packet) string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s (id=%d)\n", p.Code, p.Identifier)

	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ATTRIBUTE\tVALUE")
	for _, a := range p.Attributes() {
		fmt.Fprintf(w, "%s\t%v\n", a.Def.Name, a.Value)
	}
	_ = w.Flush()

	return buf.String()
}

func formatDictionaryTable(defs []*dictionary.AttributeDef) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCODE\tVENDOR\tTYPE")

	for _, d := range sortedAttrDefs(defs) {
		code := fmt.Sprintf("%d", d.Code)
		if d.Extended {
			code = fmt.Sprintf("%d.%d", d.Code, d.ExtendedSubtype)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", d.Name, code, d.Vendor, d.Type)
	}

	_ = w.Flush()
	return buf.String()
}

// --- JSON formatters ---

func formatPacketJSON(p *radius.Packet) (string, error) {
	data, err := json.MarshalIndent(packetToView(p), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal packet to JSON: %w", err)
	}
	return string(data) + "\n", nil
}

func formatDictionaryJSON(defs []*dictionary.AttributeDef) (string, error) {
	data, err := json.MarshalIndent(attrDefsToView(sortedAttrDefs(defs)), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal dictionary to JSON: %w", err)
	}
	return string(data) + "\n", nil
}

// --- View types for clean JSON output ---

type attrView struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type packetView struct {
	Code       string     `json:"code"`
	Identifier uint8      `json:"identifier"`
	Attributes []attrView `json:"attributes"`
}

func packetToView(p *radius.Packet) packetView {
	v := packetView{
		Code:       p.Code.String(),
		Identifier: p.Identifier,
		Attributes: make([]attrView, 0, len(p.Attributes())),
	}
	for _, a := range p.Attributes() {
		v.Attributes = append(v.Attributes, attrView{Name: a.Def.Name, Value: a.Value})
	}
	return v
}

type attrDefView struct {
	Name   string `json:"name"`
	Code   string `json:"code"`
	Vendor uint32 `json:"vendor,omitempty"`
	Type   string `json:"type"`
}

func attrDefsToView(defs []*dictionary.AttributeDef) []attrDefView {
	views := make([]attrDefView, 0, len(defs))
	for _, d := range defs {
		code := fmt.Sprintf("%d", d.Code)
		if d.Extended {
			code = fmt.Sprintf("%d.%d", d.Code, d.ExtendedSubtype)
		}
		views = append(views, attrDefView{
			Name:   d.Name,
			Code:   code,
			Vendor: d.Vendor,
			Type:   d.Type.String(),
		})
	}
	return views
}
