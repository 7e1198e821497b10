package radius_test

import (
	"bytes"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/dlp-radius/goradius/internal/dictionary"
	"github.com/dlp-radius/goradius/internal/radius"
)

func testDict(t *testing.T) *dictionary.Dictionary {
	t.Helper()
	d, err := dictionary.LoadStandard()
	if err != nil {
		t.Fatalf("LoadStandard: %v", err)
	}
	return d
}

func TestPacketEncodeDecodeRoundTrip(t *testing.T) {
	dict := testDict(t)
	secret := []byte("xyzzy5461")

	p := radius.NewPacket(radius.CodeAccessRequest, dict)
	p.Identifier = 42
	if err := p.Add("User-Name", []byte("nemo")); err != nil {
		t.Fatalf("Add User-Name: %v", err)
	}
	if err := p.Add("NAS-IP-Address", netip.MustParseAddr("192.0.2.1")); err != nil {
		t.Fatalf("Add NAS-IP-Address: %v", err)
	}
	if err := p.Add("NAS-Port", uint32(1812)); err != nil {
		t.Fatalf("Add NAS-Port: %v", err)
	}

	raw, err := p.Encode(secret, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(raw) < radius.HeaderSize || len(raw) > radius.MaxPacketSize {
		t.Fatalf("Encode produced %d bytes, want in [%d,%d]", len(raw), radius.HeaderSize, radius.MaxPacketSize)
	}

	got, err := radius.Decode(raw, secret, dict, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Code != radius.CodeAccessRequest || got.Identifier != 42 {
		t.Fatalf("Decode: code=%v id=%d, want AccessRequest/42", got.Code, got.Identifier)
	}

	name, ok := got.Get("User-Name")
	if !ok || !bytes.Equal(name.([]byte), []byte("nemo")) {
		t.Fatalf("Get(User-Name) = %v, %v", name, ok)
	}
	addr, ok := got.Get("NAS-IP-Address")
	if !ok || addr.(netip.Addr) != netip.MustParseAddr("192.0.2.1") {
		t.Fatalf("Get(NAS-IP-Address) = %v, %v", addr, ok)
	}
	port, ok := got.Get("NAS-Port")
	if !ok || port.(uint32) != 1812 {
		t.Fatalf("Get(NAS-Port) = %v, %v", port, ok)
	}
}

func TestAccountingRequestAuthenticator(t *testing.T) {
	// Accounting-Request with identifier 0, secret "73" (ASCII) and no
	// attributes. The Request Authenticator is
	// MD5(code|id|len|16 zero bytes|attributes|secret).
	dict := testDict(t)
	secret := []byte("73")

	p := radius.NewPacket(radius.CodeAccountingRequest, dict)
	p.Identifier = 0

	raw, err := p.Encode(secret, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(raw) != radius.HeaderSize {
		t.Fatalf("Encode: got %d bytes, want %d (no attributes)", len(raw), radius.HeaderSize)
	}

	if !radius.VerifyRequestAuthenticator(raw, secret) {
		t.Fatalf("VerifyRequestAuthenticator: want true")
	}
	// Tampering any byte must invalidate it.
	tampered := append([]byte{}, raw...)
	tampered[0] ^= 0xFF
	if radius.VerifyRequestAuthenticator(tampered, secret) {
		t.Fatalf("VerifyRequestAuthenticator: want false after tampering code byte")
	}
}

func TestResponseAuthenticatorRoundTrip(t *testing.T) {
	dict := testDict(t)
	secret := []byte("xyzzy5461")

	req := radius.NewPacket(radius.CodeAccessRequest, dict)
	req.Identifier = 7
	reqRaw, err := req.Encode(secret, nil)
	if err != nil {
		t.Fatalf("Encode request: %v", err)
	}
	reqAuth := [16]byte(reqRaw[4:20])

	resp := radius.NewPacket(radius.CodeAccessAccept, dict)
	resp.Identifier = 7
	if err := resp.Add("Reply-Message", "welcome"); err != nil {
		t.Fatalf("Add Reply-Message: %v", err)
	}

	respRaw, err := resp.Encode(secret, &reqAuth)
	if err != nil {
		t.Fatalf("Encode response: %v", err)
	}

	if !radius.VerifyResponseAuthenticator(respRaw, reqAuth, secret) {
		t.Fatalf("VerifyResponseAuthenticator: want true")
	}

	decoded, err := radius.Decode(respRaw, secret, dict, &reqAuth)
	if err != nil {
		t.Fatalf("Decode response: %v", err)
	}
	msg, ok := decoded.Get("Reply-Message")
	if !ok || msg.(string) != "welcome" {
		t.Fatalf("Get(Reply-Message) = %v, %v", msg, ok)
	}
}

func TestEncodeMissingRequestAuthenticatorForReply(t *testing.T) {
	dict := testDict(t)
	p := radius.NewPacket(radius.CodeAccessAccept, dict)
	if _, err := p.Encode([]byte("secret"), nil); err == nil {
		t.Fatalf("Encode: want error for reply code without request authenticator")
	}
}

func TestLongAttributeSplitAndMerge(t *testing.T) {
	dict := testDict(t)
	secret := []byte("secret")

	value := bytes.Repeat([]byte{0xAB}, 300)

	p := radius.NewPacket(radius.CodeAccountingRequest, dict)
	if err := p.Add("Class", value); err != nil {
		t.Fatalf("Add Class: %v", err)
	}

	raw, err := p.Encode(secret, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Two wire instances of type 25 (Class) must appear in the attribute
	// stream, since a single instance caps at 253 value bytes.
	count := 0
	body := raw[radius.HeaderSize:]
	for len(body) > 0 {
		l := int(body[1])
		if body[0] == 25 {
			count++
		}
		body = body[l:]
	}
	if count != 2 {
		t.Fatalf("wire instances of Class = %d, want 2", count)
	}

	decoded, err := radius.Decode(raw, secret, dict, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := decoded.Get("Class")
	if !ok {
		t.Fatalf("Get(Class): not found")
	}
	if !bytes.Equal(got.([]byte), value) {
		t.Fatalf("Get(Class) round-trip mismatch: got %d bytes, want %d", len(got.([]byte)), len(value))
	}
}

func TestVendorSpecificAttributeRoundTrip(t *testing.T) {
	dict := testDict(t)
	secret := []byte("secret")

	req := radius.NewPacket(radius.CodeAccessRequest, dict)
	req.Identifier = 1
	reqRaw, err := req.Encode(secret, nil)
	if err != nil {
		t.Fatalf("Encode request: %v", err)
	}
	reqAuth := [16]byte(reqRaw[4:20])

	resp := radius.NewPacket(radius.CodeAccessAccept, dict)
	resp.Identifier = 1
	key := bytes.Repeat([]byte{0x11}, 32)
	if err := resp.AddVendor(311, "MS-MPPE-Send-Key", key); err != nil {
		t.Fatalf("AddVendor MS-MPPE-Send-Key: %v", err)
	}

	raw, err := resp.Encode(secret, &reqAuth)
	if err != nil {
		t.Fatalf("Encode response: %v", err)
	}

	decoded, err := radius.Decode(raw, secret, dict, &reqAuth)
	if err != nil {
		t.Fatalf("Decode response: %v", err)
	}
	got, ok := decoded.GetVendor(311, "MS-MPPE-Send-Key")
	if !ok {
		t.Fatalf("GetVendor(MS-MPPE-Send-Key): not found")
	}
	if !bytes.Equal(got.([]byte), key) {
		t.Fatalf("MS-MPPE-Send-Key round-trip mismatch: got %v, want %v", got, key)
	}
}

func TestExtendedAttributeRoundTrip(t *testing.T) {
	dict := testDict(t)
	secret := []byte("secret")

	p := radius.NewPacket(radius.CodeAccountingRequest, dict)
	if err := p.Add("Original-Packet-Code", uint32(4)); err != nil {
		t.Fatalf("Add Original-Packet-Code: %v", err)
	}

	raw, err := p.Encode(secret, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := radius.Decode(raw, secret, dict, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := decoded.Get("Original-Packet-Code")
	if !ok || got.(uint32) != 4 {
		t.Fatalf("Get(Original-Packet-Code) = %v, %v", got, ok)
	}
}

// TestExtendedVendorSpecificRoundTrip covers the RFC 6929 "vsa"-typed
// Extended-Vendor-Specific-1 attribute (241.26): a VSA container nested
// inside a long-extended attribute, carried as an opaque byte blob (the
// 4-byte vendor ID plus whatever sub-attribute bytes the vendor's format
// dictates, not walked further).
func TestExtendedVendorSpecificRoundTrip(t *testing.T) {
	dict := testDict(t)
	secret := []byte("secret")

	payload := []byte{0x00, 0x00, 0x00, 0x09, 0x01, 0x05, 0xAA, 0xBB, 0xCC}

	p := radius.NewPacket(radius.CodeAccountingRequest, dict)
	if err := p.Add("Extended-Vendor-Specific-1", payload); err != nil {
		t.Fatalf("Add Extended-Vendor-Specific-1: %v", err)
	}

	raw, err := p.Encode(secret, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := radius.Decode(raw, secret, dict, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := decoded.Get("Extended-Vendor-Specific-1")
	if !ok {
		t.Fatalf("Get(Extended-Vendor-Specific-1): not found")
	}
	if !bytes.Equal(got.([]byte), payload) {
		t.Fatalf("Extended-Vendor-Specific-1 round-trip = % x, want % x", got, payload)
	}
}

// TestVendorSpecificAttributeLiteralVector pins VSA wire encoding to a
// literal vector: vendor Cisco (id 9, sub-attribute format 1,1),
// sub-attribute Cisco-AVPair (sub-code 1), value "shell:priv-lvl=15".
func TestVendorSpecificAttributeLiteralVector(t *testing.T) {
	dir := t.TempDir()
	ciscoPath := filepath.Join(dir, "dictionary.cisco")
	if err := os.WriteFile(ciscoPath, []byte(`
VENDOR		Cisco	9	format=1,1

BEGIN-VENDOR	Cisco
ATTRIBUTE	Cisco-AVPair	1	string
END-VENDOR	Cisco
`), 0o644); err != nil {
		t.Fatalf("write dictionary.cisco: %v", err)
	}
	cisco, err := dictionary.Load(ciscoPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	dict := testDict(t).Merge(cisco)
	secret := []byte("secret")

	p := radius.NewPacket(radius.CodeAccessRequest, dict)
	if err := p.AddVendor(9, "Cisco-AVPair", []byte("shell:priv-lvl=15")); err != nil {
		t.Fatalf("AddVendor Cisco-AVPair: %v", err)
	}

	raw, err := p.Encode(secret, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	body := raw[radius.HeaderSize:]

	want := []byte{
		26, 25, // type=26 (VSA), length=25
		0x00, 0x00, 0x00, 0x09, // vendor id 9
		0x01, 0x13, // sub-code 1, sub-length 19 (2 + 17)
	}
	want = append(want, []byte("shell:priv-lvl=15")...)

	if !bytes.Equal(body, want) {
		t.Fatalf("VSA wire bytes = % x, want % x", body, want)
	}

	decoded, err := radius.Decode(raw, secret, dict, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := decoded.GetVendor(9, "Cisco-AVPair")
	if !ok || !bytes.Equal(got.([]byte), []byte("shell:priv-lvl=15")) {
		t.Fatalf("GetVendor(Cisco-AVPair) = %v, %v", got, ok)
	}
}

func TestTaggedTunnelAttributeRoundTrip(t *testing.T) {
	dict := testDict(t)
	secret := []byte("secret")

	req := radius.NewPacket(radius.CodeAccessRequest, dict)
	req.Identifier = 5
	reqRaw, err := req.Encode(secret, nil)
	if err != nil {
		t.Fatalf("Encode request: %v", err)
	}
	reqAuth := [16]byte(reqRaw[4:20])

	resp := radius.NewPacket(radius.CodeAccessAccept, dict)
	resp.Identifier = 5
	if err := resp.AddTagged(dictionary.NoVendor, "Tunnel-Type", 1, uint32(3)); err != nil {
		t.Fatalf("AddTagged Tunnel-Type: %v", err)
	}
	if err := resp.AddTagged(dictionary.NoVendor, "Tunnel-Password", 1, []byte("s3cr3t")); err != nil {
		t.Fatalf("AddTagged Tunnel-Password: %v", err)
	}

	raw, err := resp.Encode(secret, &reqAuth)
	if err != nil {
		t.Fatalf("Encode response: %v", err)
	}

	decoded, err := radius.Decode(raw, secret, dict, &reqAuth)
	if err != nil {
		t.Fatalf("Decode response: %v", err)
	}

	for _, a := range decoded.Attributes() {
		switch a.Def.Name {
		case "Tunnel-Type":
			if a.Tag != 1 || a.Value.(uint32) != 3 {
				t.Fatalf("Tunnel-Type: tag=%d value=%v, want tag=1 value=3", a.Tag, a.Value)
			}
		case "Tunnel-Password":
			if a.Tag != 1 || !bytes.Equal(a.Value.([]byte), []byte("s3cr3t")) {
				t.Fatalf("Tunnel-Password: tag=%d value=%v, want tag=1 value=s3cr3t", a.Tag, a.Value)
			}
		}
	}
}

func TestMessageAuthenticatorTamperDetection(t *testing.T) {
	dict := testDict(t)
	secret := []byte("secret")

	p := radius.NewPacket(radius.CodeAccessRequest, dict)
	p.Identifier = 9
	if err := p.Add("User-Name", []byte("alice")); err != nil {
		t.Fatalf("Add User-Name: %v", err)
	}
	if err := p.Add("Message-Authenticator", make([]byte, 16)); err != nil {
		t.Fatalf("Add Message-Authenticator: %v", err)
	}

	raw, err := p.Encode(secret, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	found, ok := radius.VerifyMessageAuthenticator(raw, secret)
	if !found || !ok {
		t.Fatalf("VerifyMessageAuthenticator = %v, %v, want true, true", found, ok)
	}

	tampered := append([]byte{}, raw...)
	tampered[len(tampered)-1] ^= 0xFF
	found, ok = radius.VerifyMessageAuthenticator(tampered, secret)
	if !found || ok {
		t.Fatalf("VerifyMessageAuthenticator after tamper = %v, %v, want true, false", found, ok)
	}
}

func TestEAPMessageAutoMandatesMessageAuthenticator(t *testing.T) {
	dict := testDict(t)
	secret := []byte("secret")

	p := radius.NewPacket(radius.CodeAccessRequest, dict)
	if err := p.Add("EAP-Message", []byte{0x02, 0x01, 0x00, 0x04}); err != nil {
		t.Fatalf("Add EAP-Message: %v", err)
	}

	raw, err := p.Encode(secret, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	found, ok := radius.VerifyMessageAuthenticator(raw, secret)
	if !found {
		t.Fatalf("VerifyMessageAuthenticator: Message-Authenticator was not auto-added for EAP-Message")
	}
	if !ok {
		t.Fatalf("VerifyMessageAuthenticator: auto-added HMAC did not verify")
	}

	// The caller's packet itself is untouched by the auto-add.
	if _, ok := p.Get("Message-Authenticator"); ok {
		t.Fatalf("caller's packet should not be mutated by auto-add")
	}
}

func TestDecodeRejectsShortPacket(t *testing.T) {
	dict := testDict(t)
	if _, err := radius.Decode([]byte{1, 2, 3}, []byte("secret"), dict, nil); err == nil {
		t.Fatalf("Decode: want error for short packet")
	}
}

func TestDecodeRejectsOversizedLength(t *testing.T) {
	dict := testDict(t)
	raw := make([]byte, radius.HeaderSize)
	raw[0] = byte(radius.CodeAccessRequest)
	raw[2] = 0xFF
	raw[3] = 0xFF
	if _, err := radius.Decode(raw, []byte("secret"), dict, nil); err == nil {
		t.Fatalf("Decode: want error when length field exceeds buffer")
	}
}

func TestPacketGetAllMultiValued(t *testing.T) {
	dict := testDict(t)

	p := radius.NewPacket(radius.CodeAccessRequest, dict)
	if err := p.Add("Reply-Message", "one"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := p.Add("Reply-Message", "two"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	all := p.GetAll("Reply-Message")
	if len(all) != 2 || all[0].(string) != "one" || all[1].(string) != "two" {
		t.Fatalf("GetAll(Reply-Message) = %v, want [one two]", all)
	}
}

