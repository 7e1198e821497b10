package radius

import (
	"crypto/hmac"
	"crypto/md5" //nolint:gosec // G501: MD5 required by RFC 2865 Section 3.
	"crypto/rand"
	"crypto/subtle"
	"fmt"
)

// -------------------------------------------------------------------------
// Request/Response Authenticator — RFC 2865 Section 3, RFC 2866 Section 3
// -------------------------------------------------------------------------

// maxPasswordLen is the maximum User-Password length accepted by pw_crypt.
const maxPasswordLen = 128

// randomAuthenticator fills a with 16 cryptographically strong random
// bytes, as Authenticator generation must.
func randomAuthenticator(a *[16]byte) error {
	if _, err := rand.Read(a[:]); err != nil {
		return fmt.Errorf("radius: generate request authenticator: %w", err)
	}
	return nil
}

// zeroKeyedMD5Authenticator computes the Request Authenticator for
// Accounting-Request, CoA-Request, and Disconnect-Request (RFC 2866
// Section 3, RFC 5176 Section 3.3):
//
//	MD5(code | id | length | 16 zero bytes | attributes | secret)
//
// raw is the full serialized packet with the authenticator slot (bytes
// 4..20) already zeroed.
func zeroKeyedMD5Authenticator(raw []byte, secret []byte) [16]byte {
	h := md5.New() //nolint:gosec // G401: MD5 required by RFC 2866 Section 3.
	h.Write(raw)
	h.Write(secret)
	var sum [16]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// responseAuthenticator computes the Response Authenticator for any reply
// packet (RFC 2865 Section 3):
//
//	MD5(code | id | length | request_authenticator | attributes | secret)
//
// raw is the full serialized reply with the authenticator slot (bytes
// 4..20) holding the REQUEST authenticator at call time (the caller places
// it there before calling, matching the wire layout the hash covers).
func responseAuthenticator(raw []byte, secret []byte) [16]byte {
	h := md5.New() //nolint:gosec // G401: MD5 required by RFC 2865 Section 3.
	h.Write(raw)
	h.Write(secret)
	var sum [16]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// VerifyResponseAuthenticator recomputes the Response Authenticator of a
// received reply, given the Request Authenticator that was sent, and
// reports whether it matches. raw is the complete received reply with its
// authenticator slot replaced by reqAuthenticator before hashing, matching
// the construction in responseAuthenticator.
func VerifyResponseAuthenticator(raw []byte, reqAuthenticator [16]byte, secret []byte) bool {
	if len(raw) < HeaderSize {
		return false
	}
	got := [16]byte(raw[4:20])

	check := make([]byte, len(raw))
	copy(check, raw)
	copy(check[4:20], reqAuthenticator[:])

	want := responseAuthenticator(check, secret)
	return subtle.ConstantTimeCompare(got[:], want[:]) == 1
}

// VerifyRequestAuthenticator recomputes the zero-keyed MD5 Request
// Authenticator of a received Accounting-Request/CoA-Request/
// Disconnect-Request and reports whether it matches the shared secret.
func VerifyRequestAuthenticator(raw []byte, secret []byte) bool {
	if len(raw) < HeaderSize {
		return false
	}
	got := [16]byte(raw[4:20])

	check := make([]byte, len(raw))
	copy(check, raw)
	clear(check[4:20])

	want := zeroKeyedMD5Authenticator(check, secret)
	return subtle.ConstantTimeCompare(got[:], want[:]) == 1
}

// -------------------------------------------------------------------------
// Message-Authenticator — RFC 2869 Section 5.14
// -------------------------------------------------------------------------

// messageAuthenticatorSize is the fixed length of the Message-Authenticator
// attribute value: a 16-byte HMAC-MD5 digest.
const messageAuthenticatorSize = 16

// computeMessageAuthenticator computes HMAC-MD5(key=secret, data=raw) with
// raw being the full packet with the Message-Authenticator value slot
// zeroed and, for request packets, the Request Authenticator in place
// (RFC 2869 Section 5.14).
func computeMessageAuthenticator(raw []byte, secret []byte) [messageAuthenticatorSize]byte {
	mac := hmac.New(md5.New, secret) //nolint:gosec // G401: HMAC-MD5 required by RFC 2869 Section 5.14.
	mac.Write(raw)
	var sum [messageAuthenticatorSize]byte
	copy(sum[:], mac.Sum(nil))
	return sum
}

// verifyMessageAuthenticator reports whether got matches the HMAC-MD5 of
// raw; tampering any byte causes verification to fail. Comparison is
// constant-time.
func verifyMessageAuthenticator(raw []byte, secret []byte, got [messageAuthenticatorSize]byte) bool {
	want := computeMessageAuthenticator(raw, secret)
	return subtle.ConstantTimeCompare(got[:], want[:]) == 1
}

// VerifyMessageAuthenticator scans a received packet for a
// Message-Authenticator (type 80) attribute and, if present, verifies its
// HMAC-MD5 against the shared secret. found is false if the packet
// carries no Message-Authenticator attribute at all, in which case ok is
// meaningless. raw is the complete received packet, unmodified.
func VerifyMessageAuthenticator(raw []byte, secret []byte) (found, ok bool) {
	if len(raw) < HeaderSize {
		return false, false
	}
	body := raw[HeaderSize:]
	offset := HeaderSize

	for len(body) >= 2 {
		typ := body[0]
		l := int(body[1])
		if l < 2 || l > len(body) {
			return false, false
		}
		if typ == messageAuthenticatorType && l == 2+messageAuthenticatorSize {
			var got [messageAuthenticatorSize]byte
			copy(got[:], body[2:l])

			check := make([]byte, len(raw))
			copy(check, raw)
			clear(check[offset+2 : offset+l])

			return true, verifyMessageAuthenticator(check, secret, got)
		}
		offset += l
		body = body[l:]
	}
	return false, false
}

// messageAuthenticatorType is the wire attribute type for
// Message-Authenticator (RFC 2869 Section 5.14).
const messageAuthenticatorType = 80

// -------------------------------------------------------------------------
// User-Password Obfuscation (encrypt=1) — RFC 2865 Section 5.2
// -------------------------------------------------------------------------

// PwCrypt encodes a User-Password value per RFC 2865 Section 5.2:
//
//	b1 = MD5(S | RA);  c1 = p1 XOR b1
//	bi = MD5(S | c(i-1)); ci = pi XOR bi
//
// password is padded with NUL bytes to a multiple of 16, up to 128 bytes
// total; it is rejected if it exceeds that after padding.
func PwCrypt(password []byte, secret []byte, requestAuthenticator [16]byte) ([]byte, error) {
	if len(password) > maxPasswordLen {
		return nil, fmt.Errorf("radius: pw_crypt: %w: %d bytes", ErrPasswordTooLong, len(password))
	}

	padded := padTo16(password)

	out := make([]byte, len(padded))
	prev := requestAuthenticator[:]

	for i := 0; i < len(padded); i += 16 {
		block := chainedMD5Block(secret, prev)
		for j := range 16 {
			out[i+j] = padded[i+j] ^ block[j]
		}
		prev = out[i : i+16]
	}

	return out, nil
}

// PwDecrypt reverses PwCrypt, stopping at the first NUL byte of the
// recovered plaintext.
func PwDecrypt(ciphertext []byte, secret []byte, requestAuthenticator [16]byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%16 != 0 {
		return nil, fmt.Errorf("radius: pw_decrypt: %w: %d bytes", ErrMalformedCiphertext, len(ciphertext))
	}

	out := make([]byte, len(ciphertext))
	prev := requestAuthenticator[:]

	for i := 0; i < len(ciphertext); i += 16 {
		block := chainedMD5Block(secret, prev)
		for j := range 16 {
			out[i+j] = ciphertext[i+j] ^ block[j]
		}
		prev = ciphertext[i : i+16]
	}

	if nul := indexByte(out, 0); nul >= 0 {
		out = out[:nul]
	}

	return out, nil
}

// padTo16 pads b with NUL bytes to the next multiple of 16; an empty input
// still yields a 16-byte block, matching FreeRADIUS/RFC 2865 behavior for
// an empty User-Password.
func padTo16(b []byte) []byte {
	n := len(b)
	if n == 0 {
		n = 16
	} else if n%16 != 0 {
		n += 16 - n%16
	}
	padded := make([]byte, n)
	copy(padded, b)
	return padded
}

func chainedMD5Block(secret, salt []byte) [16]byte {
	h := md5.New() //nolint:gosec // G401: MD5 required by RFC 2865 Section 5.2.
	h.Write(secret)
	h.Write(salt)
	var sum [16]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

func indexByte(b []byte, target byte) int {
	for i, c := range b {
		if c == target {
			return i
		}
	}
	return -1
}

// -------------------------------------------------------------------------
// Tunnel-Password Obfuscation (encrypt=2) — RFC 2868 Section 3.5
// -------------------------------------------------------------------------

// TunnelPasswordEncrypt encodes a Tunnel-Password value per RFC 2868
// Section 3.5: a 2-byte salt (high bit of the first byte set) followed by
// a 1-byte plaintext length prefix and the chained-MD5-XOR ciphertext,
// salt folded into the first hash input.
func TunnelPasswordEncrypt(password []byte, secret []byte, requestAuthenticator [16]byte, salt [2]byte) ([]byte, error) {
	if len(password) > 253 {
		return nil, fmt.Errorf("radius: tunnel password: %w: %d bytes", ErrPasswordTooLong, len(password))
	}
	salt[0] |= 0x80

	plain := make([]byte, 0, 1+len(password))
	plain = append(plain, uint8(len(password))) //nolint:gosec // G115: bounded to 253 above.
	plain = append(plain, password...)

	padded := padTo16(plain)

	out := make([]byte, 2+len(padded))
	out[0], out[1] = salt[0], salt[1]

	prev := append(append([]byte{}, requestAuthenticator[:]...), salt[:]...)

	for i := 0; i < len(padded); i += 16 {
		block := chainedMD5Block(secret, prev)
		for j := range 16 {
			out[2+i+j] = padded[i+j] ^ block[j]
		}
		prev = out[2+i : 2+i+16]
	}

	return out, nil
}

// TunnelPasswordDecrypt reverses TunnelPasswordEncrypt.
func TunnelPasswordDecrypt(ciphertext []byte, secret []byte, requestAuthenticator [16]byte) ([]byte, error) {
	if len(ciphertext) < 2+16 || (len(ciphertext)-2)%16 != 0 {
		return nil, fmt.Errorf("radius: tunnel password decrypt: %w: %d bytes", ErrMalformedCiphertext, len(ciphertext))
	}
	salt := ciphertext[0:2]
	body := ciphertext[2:]

	out := make([]byte, len(body))
	prev := append(append([]byte{}, requestAuthenticator[:]...), salt...)

	for i := 0; i < len(body); i += 16 {
		block := chainedMD5Block(secret, prev)
		for j := range 16 {
			out[i+j] = body[i+j] ^ block[j]
		}
		prev = body[i : i+16]
	}

	n := int(out[0])
	if n < 0 || n+1 > len(out) {
		return nil, fmt.Errorf("radius: tunnel password decrypt: %w: length prefix %d", ErrMalformedCiphertext, n)
	}

	return out[1 : 1+n], nil
}
