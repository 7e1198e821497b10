// Package radserver implements the RADIUS server dispatch engine: binding
// listen sockets, resolving an incoming datagram's source address to a
// known host, decoding and authenticating the request, and invoking an
// embedder-supplied Handler.
package radserver

import (
	"errors"
	"fmt"
	"net/netip"
	"sync"
)

// ErrHostExists indicates RegisterHost was called twice for the same
// address.
var ErrHostExists = errors.New("radserver: host already registered")

// ErrHostNotFound indicates a lookup (or Deregister) found no host for
// the given address.
var ErrHostNotFound = errors.New("radserver: host not found")

// ErrUnknownHost indicates a datagram arrived from a source address with
// no registered Host.
var ErrUnknownHost = errors.New("radserver: unknown host")

// ErrAuthFailed indicates an Accounting-Request, CoA-Request, or
// Disconnect-Request's Request Authenticator did not verify against the
// host's shared secret.
var ErrAuthFailed = errors.New("radserver: request authenticator verification failed")

// Host is a RADIUS client the server accepts requests from, specialized
// to the server's direction — a peer address resolves directly to a
// shared secret, rather than the client's per-packet-type port binding.
type Host struct {
	// Name identifies the host in logs and the admin introspection
	// endpoint; it carries no protocol meaning.
	Name string
	// Addr is the host's source IP address, the server's dispatch key.
	Addr netip.Addr
	// Secret is the shared secret used to verify and decode this host's
	// requests and to sign replies sent back to it.
	Secret []byte
}

// HostTable is the server's host registry, read-mostly and guarded by a
// reader-writer lock. RADIUS has no discriminator tier, only the single
// peer-IP lookup a datagram's source address resolves through.
type HostTable struct {
	mu    sync.RWMutex
	hosts map[netip.Addr]*Host
}

// NewHostTable creates an empty HostTable.
func NewHostTable() *HostTable {
	return &HostTable{hosts: make(map[netip.Addr]*Host)}
}

// RegisterHost adds a host by its peer address. Returns ErrHostExists if
// addr is already registered.
func (t *HostTable) RegisterHost(addr netip.Addr, secret []byte, name string) error {
	if !addr.IsValid() {
		return fmt.Errorf("radserver: register host %q: invalid address", name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.hosts[addr]; exists {
		return fmt.Errorf("radserver: register host %s (%q): %w", addr, name, ErrHostExists)
	}
	t.hosts[addr] = &Host{Name: name, Addr: addr, Secret: secret}
	return nil
}

// DeregisterHost removes the host at addr. Returns ErrHostNotFound if no
// host is registered there.
func (t *HostTable) DeregisterHost(addr netip.Addr) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.hosts[addr]; !exists {
		return fmt.Errorf("radserver: deregister host %s: %w", addr, ErrHostNotFound)
	}
	delete(t.hosts, addr)
	return nil
}

// Lookup resolves addr to its registered Host. ok is false for an unknown
// source address, which the caller must treat as a silent drop plus an
// UnknownHost event.
func (t *HostTable) Lookup(addr netip.Addr) (*Host, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h, ok := t.hosts[addr]
	return h, ok
}

// Hosts returns a snapshot of all registered hosts, including their
// secrets; callers exposing this externally (the admin introspection
// endpoint's "/debug/hosts") must redact Secret before serializing.
func (t *HostTable) Hosts() []Host {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Host, 0, len(t.hosts))
	for _, h := range t.hosts {
		out = append(out, *h)
	}
	return out
}
