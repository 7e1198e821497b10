package radius

import "fmt"

// -------------------------------------------------------------------------
// Packet Codes — RFC 2865 Section 3, RFC 2866 Section 4, RFC 5176 Section 3
// -------------------------------------------------------------------------

// Code identifies the RADIUS packet type (RFC 2865 Section 3).
type Code uint8

const (
	// CodeAccessRequest requests authentication and authorization for a
	// user (RFC 2865 Section 4.1).
	CodeAccessRequest Code = 1

	// CodeAccessAccept indicates successful authentication and carries
	// authorization attributes (RFC 2865 Section 4.2).
	CodeAccessAccept Code = 2

	// CodeAccessReject indicates the request was denied
	// (RFC 2865 Section 4.3).
	CodeAccessReject Code = 3

	// CodeAccountingRequest carries accounting data
	// (RFC 2866 Section 4.1).
	CodeAccountingRequest Code = 4

	// CodeAccountingResponse acknowledges an Accounting-Request
	// (RFC 2866 Section 4.2).
	CodeAccountingResponse Code = 5

	// CodeAccessChallenge requests additional information before the
	// authentication can proceed (RFC 2865 Section 4.4).
	CodeAccessChallenge Code = 11

	// CodeStatusServer is reserved for experimental server liveness
	// checks (RFC 2865 Section 3).
	CodeStatusServer Code = 12

	// CodeStatusClient is reserved for experimental client liveness
	// checks (RFC 2865 Section 3).
	CodeStatusClient Code = 13

	// CodeDisconnectRequest asks a NAS to terminate a session
	// (RFC 5176 Section 3.1).
	CodeDisconnectRequest Code = 40

	// CodeDisconnectACK acknowledges a successful Disconnect-Request
	// (RFC 5176 Section 3.2).
	CodeDisconnectACK Code = 41

	// CodeDisconnectNAK indicates a Disconnect-Request failed
	// (RFC 5176 Section 3.2).
	CodeDisconnectNAK Code = 42

	// CodeCoARequest asks a NAS to change a session's authorization
	// attributes (RFC 5176 Section 3.1).
	CodeCoARequest Code = 43

	// CodeCoAACK acknowledges a successful CoA-Request
	// (RFC 5176 Section 3.2).
	CodeCoAACK Code = 44

	// CodeCoANAK indicates a CoA-Request failed
	// (RFC 5176 Section 3.2).
	CodeCoANAK Code = 45
)

// codeNames maps packet codes to human-readable strings.
var codeNames = map[Code]string{
	CodeAccessRequest:      "Access-Request",
	CodeAccessAccept:       "Access-Accept",
	CodeAccessReject:       "Access-Reject",
	CodeAccountingRequest:  "Accounting-Request",
	CodeAccountingResponse: "Accounting-Response",
	CodeAccessChallenge:    "Access-Challenge",
	CodeStatusServer:       "Status-Server",
	CodeStatusClient:       "Status-Client",
	CodeDisconnectRequest:  "Disconnect-Request",
	CodeDisconnectACK:      "Disconnect-ACK",
	CodeDisconnectNAK:      "Disconnect-NAK",
	CodeCoARequest:         "CoA-Request",
	CodeCoAACK:             "CoA-ACK",
	CodeCoANAK:             "CoA-NAK",
}

// String returns the human-readable name for the packet code.
func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Code(%d)", uint8(c))
}

// requestAuthenticatorKind classifies how a packet's Authenticator field is
// populated (RFC 2865 Section 3, RFC 2866 Section 3, RFC 5176 Section 3.3).
type requestAuthenticatorKind int

const (
	authKindRandom requestAuthenticatorKind = iota
	authKindZeroKeyedMD5
	authKindResponse
)

// authenticatorKind returns how c's Authenticator field must be computed.
func (c Code) authenticatorKind() requestAuthenticatorKind {
	switch c {
	case CodeAccessRequest, CodeStatusServer, CodeStatusClient:
		return authKindRandom
	case CodeAccountingRequest, CodeCoARequest, CodeDisconnectRequest:
		return authKindZeroKeyedMD5
	default:
		return authKindResponse
	}
}

// IsRequest reports whether c is a packet that originates a transaction
// (as opposed to a reply).
func (c Code) IsRequest() bool {
	return c.authenticatorKind() != authKindResponse
}
