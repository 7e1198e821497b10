package netio

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/dlp-radius/goradius/internal/radius"
)

// -------------------------------------------------------------------------
// PacketMeta — transport metadata for one received datagram
// -------------------------------------------------------------------------

// PacketMeta carries the addressing context of one received datagram.
type PacketMeta struct {
	// SrcAddr is the peer that sent the datagram; radserver resolves it
	// against the host table and uses it as the reply destination.
	SrcAddr netip.AddrPort
	// LocalAddr is the local socket address the datagram arrived on.
	LocalAddr netip.AddrPort
}

// -------------------------------------------------------------------------
// Listener — a single bound UDP socket
// -------------------------------------------------------------------------

// Listener wraps a UDP socket bound to one local address:port (auth 1812,
// acct 1813, CoA/Disconnect 3799 by default) and provides a context-aware
// receive loop plus a matching Send for replies. RADIUS UDP transport is
// plain and unauthenticated at the IP layer, unlike BFD's GTSM-validated
// single/multi-hop sockets.
type Listener struct {
	conn *net.UDPConn
	addr netip.AddrPort
}

// NewListener binds a UDP socket at addr.
func NewListener(addr netip.AddrPort) (*Listener, error) {
	conn, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(addr))
	if err != nil {
		return nil, fmt.Errorf("netio: listen %s: %w", addr, err)
	}
	bound, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		_ = conn.Close()
		return nil, fmt.Errorf("netio: listen %s: unexpected local address type", addr)
	}
	return &Listener{conn: conn, addr: bound.AddrPort()}, nil
}

// Addr returns the listener's bound local address.
func (l *Listener) Addr() netip.AddrPort { return l.addr }

// Recv blocks until a datagram is received or ctx is cancelled. The
// datagram is read into a pooled buffer and copied into a freshly
// allocated slice before the pooled buffer is returned, so the result is
// safe to retain and hand to a handler goroutine.
func (l *Listener) Recv(ctx context.Context) ([]byte, PacketMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, PacketMeta{}, fmt.Errorf("netio: recv: %w", err)
	}

	// Cancelling ctx expires the read deadline so the blocking read below
	// returns; a deadline left by an earlier cancelled Recv is cleared first.
	_ = l.conn.SetReadDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() { _ = l.conn.SetReadDeadline(time.Now()) })
	defer stop()

	bufPtr := radius.GetBuffer()
	defer radius.PutBuffer(bufPtr)

	n, peer, err := l.conn.ReadFromUDPAddrPort(*bufPtr)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, PacketMeta{}, fmt.Errorf("netio: recv: %w", ctxErr)
		}
		return nil, PacketMeta{}, fmt.Errorf("netio: read: %w", err)
	}

	out := make([]byte, n)
	copy(out, (*bufPtr)[:n])

	return out, PacketMeta{SrcAddr: peer, LocalAddr: l.addr}, nil
}

// Send writes raw to dst on this listener's socket — a RADIUS reply is
// always sent from the same socket the request arrived on.
func (l *Listener) Send(raw []byte, dst netip.AddrPort) error {
	if _, err := l.conn.WriteToUDPAddrPort(raw, dst); err != nil {
		return fmt.Errorf("netio: send to %s: %w", dst, err)
	}
	return nil
}

// Close closes the underlying socket.
func (l *Listener) Close() error {
	if err := l.conn.Close(); err != nil {
		return fmt.Errorf("netio: close listener %s: %w", l.addr, err)
	}
	return nil
}
