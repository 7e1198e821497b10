// Package radius implements the core RADIUS wire protocol (RFC 2865, 2866,
// 2869, 3162, 5176, 6929): the packet codec (header, attribute walk,
// Request/Response Authenticator, Message-Authenticator), the per-DataType
// attribute codecs, vendor-specific attribute (VSA) encapsulation, RFC 6929
// long-extended attribute fragmentation, and the User-Password/
// Tunnel-Password obfuscation transforms.
//
// The package is pure and holds no mutable global state: every operation
// takes an explicit *dictionary.Dictionary and shared secret. Transport
// (internal/radnet), transaction management (internal/radclient), and
// dispatch (internal/radserver) are layered on top.
package radius
