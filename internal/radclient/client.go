package radclient

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/dlp-radius/goradius/internal/dictionary"
	"github.com/dlp-radius/goradius/internal/radius"
)

// Default ports.
const (
	DefaultAuthPort = 1812
	DefaultAcctPort = 1813
	DefaultCoAPort  = 3799
)

// Default retransmission parameters.
const (
	DefaultTimeout = 5 * time.Second
	DefaultRetries = 3
)

// AttrValue is one name/value pair passed to a CreateXPacket helper. A
// slice of AttrValue (rather than a map) preserves caller-specified order,
// since RADIUS permits duplicate attribute names and wire order is
// meaningful for some of them.
type AttrValue struct {
	Name  string
	Value any
}

// Config configures a Client: server, auth_port, acct_port, coa_port,
// secret, dict, timeout, and retries.
type Config struct {
	// Server is the RADIUS server's hostname or IP address.
	Server string
	// AuthPort, AcctPort, CoAPort default to 1812, 1813, 3799.
	AuthPort, AcctPort, CoAPort int
	// Secret is the shared secret used for authenticator computation
	// and attribute encryption.
	Secret []byte
	// Dict resolves attribute names for CreateXPacket and Decode.
	Dict *dictionary.Dictionary
	// Timeout is the per-attempt wait before retransmitting. Defaults
	// to DefaultTimeout.
	Timeout time.Duration
	// Retries is the total number of transmissions attempted (the
	// first send plus Retries-1 retransmits). Defaults to DefaultRetries.
	Retries int
	// Rand seeds the identifier allocator's starting identifiers; defaults
	// to crypto/rand.Reader. Request Authenticators always come from
	// crypto/rand and are not affected by Rand.
	Rand io.Reader
	// Now returns the current time, for deterministic tests; defaults
	// to time.Now.
	Now func() time.Time
}

func (c *Config) setDefaults() {
	if c.AuthPort == 0 {
		c.AuthPort = DefaultAuthPort
	}
	if c.AcctPort == 0 {
		c.AcctPort = DefaultAcctPort
	}
	if c.CoAPort == 0 {
		c.CoAPort = DefaultCoAPort
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Retries == 0 {
		c.Retries = DefaultRetries
	}
	if c.Rand == nil {
		c.Rand = rand.Reader
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Client is the RADIUS client transaction engine: it constructs request
// packets, allocates identifiers, and drives
// send/retransmit/validate over UDP against one server.
//
// A Client is safe for concurrent use: IdentifierAllocator serializes
// identifier assignment, and each SendPacket call owns its own socket
// read/write sequence.
type Client struct {
	cfg  Config
	ids  *IdentifierAllocator
	conn map[radius.Code]*net.UDPConn
}

// NewClient resolves cfg.Server and dials the auth, acct, and CoA ports,
// applying Config defaults for any zero-valued field.
func NewClient(cfg Config) (*Client, error) {
	cfg.setDefaults()

	c := &Client{
		cfg:  cfg,
		ids:  newIdentifierAllocator(cfg.Rand),
		conn: make(map[radius.Code]*net.UDPConn),
	}

	ports := map[string]int{
		"auth": cfg.AuthPort,
		"acct": cfg.AcctPort,
		"coa":  cfg.CoAPort,
	}
	conns := make(map[string]*net.UDPConn, len(ports))
	for name, port := range ports {
		conn, err := dialServer(cfg.Server, port)
		if err != nil {
			for _, opened := range conns {
				_ = opened.Close()
			}
			return nil, fmt.Errorf("radclient: dial %s (%s:%d): %w: %w", name, cfg.Server, port, ErrNoHostFound, err)
		}
		conns[name] = conn
	}

	c.conn[radius.CodeAccessRequest] = conns["auth"]
	c.conn[radius.CodeAccountingRequest] = conns["acct"]
	c.conn[radius.CodeCoARequest] = conns["coa"]
	c.conn[radius.CodeDisconnectRequest] = conns["coa"]

	return c, nil
}

func dialServer(server string, port int) (*net.UDPConn, error) {
	raddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", server, port))
	if err != nil {
		return nil, err
	}
	return net.DialUDP("udp", nil, raddr)
}

// Close closes all underlying sockets.
func (c *Client) Close() error {
	var firstErr error
	seen := make(map[*net.UDPConn]struct{})
	for _, conn := range c.conn {
		if _, ok := seen[conn]; ok {
			continue
		}
		seen[conn] = struct{}{}
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CreateAuthPacket builds an unsent Access-Request.
func (c *Client) CreateAuthPacket(attrs ...AttrValue) (*radius.Packet, error) {
	return c.createPacket(radius.CodeAccessRequest, attrs)
}

// CreateAcctPacket builds an unsent Accounting-Request.
func (c *Client) CreateAcctPacket(attrs ...AttrValue) (*radius.Packet, error) {
	return c.createPacket(radius.CodeAccountingRequest, attrs)
}

// CreateCoAPacket builds an unsent CoA-Request or Disconnect-Request;
// code must be radius.CodeCoARequest or radius.CodeDisconnectRequest.
func (c *Client) CreateCoAPacket(code radius.Code, attrs ...AttrValue) (*radius.Packet, error) {
	if code != radius.CodeCoARequest && code != radius.CodeDisconnectRequest {
		return nil, fmt.Errorf("radclient: CreateCoAPacket: unsupported code %s", code)
	}
	return c.createPacket(code, attrs)
}

func (c *Client) createPacket(code radius.Code, attrs []AttrValue) (*radius.Packet, error) {
	p := radius.NewPacket(code, c.cfg.Dict)
	for _, a := range attrs {
		if err := p.Add(a.Name, a.Value); err != nil {
			return nil, fmt.Errorf("radclient: add %s: %w", a.Name, err)
		}
	}
	return p, nil
}

// SendPacket transmits p, allocating its Identifier and Authenticator,
// retransmitting up to cfg.Retries times at cfg.Timeout intervals, and
// validating the reply.
//
// On success it returns the decoded reply. On failure it returns a
// *TimeoutError if the retransmit budget was exhausted, or a
// *BadReplyError if a datagram from the server carrying p's identifier
// failed authenticator validation or failed to decode.
func (c *Client) SendPacket(ctx context.Context, p *radius.Packet) (*radius.Packet, error) {
	conn, ok := c.conn[p.Code]
	if !ok {
		return nil, fmt.Errorf("radclient: SendPacket: no transport for code %s", p.Code)
	}
	dest := conn.RemoteAddr().String()

	id, err := c.ids.Allocate(dest)
	if err != nil {
		return nil, err
	}
	defer c.ids.Release(dest, id)
	p.Identifier = id

	raw, err := p.Encode(c.cfg.Secret, nil)
	if err != nil {
		return nil, fmt.Errorf("radclient: encode: %w", err)
	}
	reqAuthenticator := p.Authenticator

	bufPtr := radius.GetBuffer()
	defer radius.PutBuffer(bufPtr)
	recvBuf := *bufPtr

	for attempt := 1; attempt <= c.cfg.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if _, err := conn.Write(raw); err != nil {
			return nil, fmt.Errorf("radclient: send to %s: %w", dest, err)
		}

		deadline := c.cfg.Now().Add(c.cfg.Timeout)
		if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
			deadline = ctxDeadline
		}
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("radclient: set read deadline: %w", err)
		}

		reply, err := c.awaitReply(conn, recvBuf, p.Code, id, reqAuthenticator)
		switch {
		case err == nil:
			return reply, nil
		case isDeadlineExceeded(err):
			continue // this attempt's window elapsed; retransmit.
		default:
			return nil, err // BadReplyError or I/O error.
		}
	}

	return nil, &TimeoutError{Dest: dest, Attempts: c.cfg.Retries, Identifier: id}
}

// awaitReply reads datagrams from conn until the read deadline set by the
// caller expires, discarding anything that doesn't carry id, and returns
// the first datagram that does once it passes validation.
func (c *Client) awaitReply(conn *net.UDPConn, buf []byte, reqCode radius.Code, id uint8, reqAuthenticator [16]byte) (*radius.Packet, error) {
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return nil, err
		}
		raw := buf[:n]

		if len(raw) < 2 || raw[1] != id {
			continue // not this transaction's reply; keep waiting.
		}

		reply, err := radius.Decode(raw, c.cfg.Secret, c.cfg.Dict, &reqAuthenticator)
		if err != nil {
			return nil, &BadReplyError{Reason: ReasonMalformed, Err: err}
		}
		if !isExpectedReply(reqCode, reply.Code) {
			return nil, &BadReplyError{Reason: ReasonMalformed, Err: fmt.Errorf("unexpected reply code %s to %s", reply.Code, reqCode)}
		}
		if !radius.VerifyResponseAuthenticator(raw, reqAuthenticator, c.cfg.Secret) {
			return nil, &BadReplyError{Reason: ReasonAuthMismatch}
		}
		if found, ok := radius.VerifyMessageAuthenticator(raw, c.cfg.Secret); found && !ok {
			return nil, &BadReplyError{Reason: ReasonAuthMismatch, Err: radius.ErrMessageAuthenticatorMismatch}
		}

		return reply, nil
	}
}

func isDeadlineExceeded(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
