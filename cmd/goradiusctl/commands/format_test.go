package commands

import (
	"strings"
	"testing"

	"github.com/dlp-radius/goradius/internal/radius"
)

func TestFormatPacketTable(t *testing.T) {
	d := testCommandsDict(t)
	p := radius.NewPacket(radius.CodeAccessAccept, d)
	if err := p.Add("Reply-Message", "welcome"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	out, err := formatPacket(p, formatTable)
	if err != nil {
		t.Fatalf("formatPacket: %v", err)
	}
	if !strings.Contains(out, "Access-Accept") || !strings.Contains(out, "Reply-Message") {
		t.Errorf("table output missing expected fields: %q", out)
	}
}

func TestFormatPacketJSON(t *testing.T) {
	d := testCommandsDict(t)
	p := radius.NewPacket(radius.CodeAccessReject, d)

	out, err := formatPacket(p, formatJSON)
	if err != nil {
		t.Fatalf("formatPacket: %v", err)
	}
	if !strings.Contains(out, `"code": "Access-Reject"`) {
		t.Errorf("json output missing code field: %q", out)
	}
}

func TestFormatPacketUnsupportedFormat(t *testing.T) {
	d := testCommandsDict(t)
	p := radius.NewPacket(radius.CodeAccessAccept, d)

	if _, err := formatPacket(p, "xml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestFormatDictionaryTable(t *testing.T) {
	d := testCommandsDict(t)

	out := formatDictionaryTable(d.All())
	if !strings.Contains(out, "User-Name") {
		t.Errorf("table output missing User-Name: %q", out)
	}
}

func TestFormatDictionaryJSON(t *testing.T) {
	d := testCommandsDict(t)

	out, err := formatDictionaryJSON(d.All())
	if err != nil {
		t.Fatalf("formatDictionaryJSON: %v", err)
	}
	if !strings.Contains(out, "User-Name") {
		t.Errorf("json output missing User-Name: %q", out)
	}
}
