package radserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/dlp-radius/goradius/internal/dictionary"
	radnet "github.com/dlp-radius/goradius/internal/radnet"
	"github.com/dlp-radius/goradius/internal/radius"
)

// Default ports, duplicated from radclient rather than imported to keep
// radserver free of a dependency on the client package.
const (
	DefaultAuthPort = 1812
	DefaultAcctPort = 1813
	DefaultCoAPort  = 3799
)

// defaultDrainTimeout bounds how long Run waits for in-flight handler
// invocations to complete once its context is cancelled.
const defaultDrainTimeout = 2 * time.Second

// Config configures a Server: addresses, auth_port, acct_port, coa_port,
// hosts, and dict.
type Config struct {
	// Addresses are the local IPs to bind; each gets its own auth, acct,
	// and CoA/Disconnect listener.
	Addresses []netip.Addr
	// AuthPort, AcctPort, CoAPort default to 1812, 1813, 3799.
	AuthPort, AcctPort, CoAPort int
	// Hosts is the registered-peer table; if nil, a fresh empty table is
	// created and RegisterHost may be used to populate it.
	Hosts *HostTable
	// Dict resolves attribute names for decoding requests and building
	// replies.
	Dict *dictionary.Dictionary
	// Metrics records dispatch events; defaults to noopMetrics.
	Metrics MetricsReporter
	// DrainTimeout bounds Run's shutdown wait for in-flight handlers.
	// Defaults to defaultDrainTimeout.
	DrainTimeout time.Duration
	// Logger defaults to slog.Default().
	Logger *slog.Logger
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
	if c.Hosts == nil {
		c.Hosts = NewHostTable()
	}
	if c.Metrics == nil {
		c.Metrics = noopMetrics{}
	}
	if c.DrainTimeout == 0 {
		c.DrainTimeout = defaultDrainTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server is the RADIUS server dispatch engine: it binds auth/acct/CoA
// listeners, resolves each datagram's source address against a Host
// table, decodes and authenticates the request, and invokes a Handler.
type Server struct {
	cfg       Config
	listeners []*radnet.Listener
	handler   Handler
	inFlight  sync.WaitGroup
}

// NewServer builds a Server from cfg, applying defaults for any
// zero-valued field. Sockets are not opened until Bind.
func NewServer(cfg Config) *Server {
	cfg.setDefaults()
	return &Server{cfg: cfg}
}

// Hosts returns the server's host table, for RegisterHost/DeregisterHost
// calls and admin introspection.
func (s *Server) Hosts() *HostTable { return s.cfg.Hosts }

// Bind opens the auth, accounting, and CoA/Disconnect listen sockets on
// every configured address. Bind must be called before Run; calling it
// twice opens a second set of sockets and is a caller error.
func (s *Server) Bind() error {
	ports := map[string]int{
		"auth": s.cfg.AuthPort,
		"acct": s.cfg.AcctPort,
		"coa":  s.cfg.CoAPort,
	}

	for _, addr := range s.cfg.Addresses {
		for name, port := range ports {
			ln, err := radnet.NewListener(netip.AddrPortFrom(addr, uint16(port))) //nolint:gosec // G115: RADIUS ports fit uint16.
			if err != nil {
				_ = s.closeListeners()
				return fmt.Errorf("radserver: bind %s listener on %s:%d: %w", name, addr, port, err)
			}
			s.listeners = append(s.listeners, ln)
		}
	}

	if len(s.listeners) == 0 {
		return fmt.Errorf("radserver: bind: no addresses configured")
	}
	return nil
}

func (s *Server) closeListeners() error {
	var firstErr error
	for _, ln := range s.listeners {
		if err := ln.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.listeners = nil
	return firstErr
}

// Run starts the event loop: it reads datagrams from every bound
// listener and dispatches them to handler until ctx is cancelled. On
// cancellation, Run stops accepting by closing every listener, which
// unblocks any goroutine parked in a read, then waits up to
// cfg.DrainTimeout for in-flight handler invocations to finish.
func (s *Server) Run(ctx context.Context, handler Handler) error {
	if len(s.listeners) == 0 {
		return fmt.Errorf("radserver: run: Bind was not called")
	}
	s.handler = handler

	recv := radnet.NewReceiver(s, s.cfg.Logger)
	recvDone := make(chan error, 1)
	go func() {
		recvDone <- recv.Run(ctx, s.listeners...)
	}()

	<-ctx.Done()
	closeErr := s.closeListeners()

	var runErr error
	select {
	case runErr = <-recvDone:
	case <-time.After(s.cfg.DrainTimeout):
		s.cfg.Logger.Warn("receive loop did not exit before drain timeout")
	}

	drained := make(chan struct{})
	go func() {
		s.inFlight.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(s.cfg.DrainTimeout):
		s.cfg.Logger.Warn("drain timeout exceeded, handlers still in flight")
	}

	if runErr == nil {
		runErr = closeErr
	}
	return runErr
}

// Dispatch implements radnet.Dispatcher: it is the per-datagram state
// machine, Received -> Authenticated -> Decoded -> Dispatched ->
// Replied | Dropped. Host resolution happens first since
// it is cheaper than decoding and gates which secret decode uses; request
// authenticator verification (for the codes that carry a verifiable one)
// and Message-Authenticator verification (whenever the attribute is
// present, regardless of code) both happen on the raw bytes before the
// attribute-level decode so a tampered packet never reaches a Handler.
func (s *Server) Dispatch(ctx context.Context, raw []byte, meta radnet.PacketMeta, reply func([]byte) error) error {
	host, ok := s.cfg.Hosts.Lookup(meta.SrcAddr.Addr())
	if !ok {
		s.cfg.Metrics.PacketDropped("unknown", "unknown-host")
		return fmt.Errorf("radserver: dispatch: %w: %s", ErrUnknownHost, meta.SrcAddr.Addr())
	}

	if len(raw) < 1 {
		s.cfg.Metrics.PacketDropped(host.Name, "malformed")
		return fmt.Errorf("radserver: dispatch: %w", radius.ErrPacketTooShort)
	}
	code := radius.Code(raw[0])

	if requiresRequestAuthenticator(code) && !radius.VerifyRequestAuthenticator(raw, host.Secret) {
		s.cfg.Metrics.PacketDropped(host.Name, "auth-mismatch")
		return fmt.Errorf("radserver: dispatch: %w from host %s", ErrAuthFailed, host.Name)
	}

	if found, ok := radius.VerifyMessageAuthenticator(raw, host.Secret); found && !ok {
		s.cfg.Metrics.PacketDropped(host.Name, "auth-mismatch")
		return fmt.Errorf("radserver: dispatch: %w from host %s: %w", ErrAuthFailed, host.Name, radius.ErrMessageAuthenticatorMismatch)
	}

	req, err := radius.Decode(raw, host.Secret, s.cfg.Dict, nil)
	if err != nil {
		s.cfg.Metrics.PacketDropped(host.Name, "decode-error")
		return fmt.Errorf("radserver: dispatch: decode from host %s: %w", host.Name, err)
	}
	s.cfg.Metrics.PacketReceived(host.Name, req.Code)

	s.inFlight.Add(1)
	defer s.inFlight.Done()

	return s.handleDecoded(ctx, req, host, reply)
}

// handleDecoded invokes the Handler method matching req.Code and, unless
// the handler signals ErrDrop, stamps the Response Authenticator and
// sends the reply back to the source.
func (s *Server) handleDecoded(ctx context.Context, req *radius.Packet, host *Host, reply func([]byte) error) error {
	handle, err := s.handlerFor(req.Code)
	if err != nil {
		s.cfg.Metrics.PacketDropped(host.Name, "unsupported-code")
		return err
	}

	resp, err := handle(ctx, req, host)
	if errors.Is(err, ErrDrop) {
		s.cfg.Metrics.PacketDropped(host.Name, "handler-drop")
		return nil
	}
	if err != nil {
		s.cfg.Metrics.PacketDropped(host.Name, "handler-error")
		return fmt.Errorf("radserver: handler: %w", err)
	}

	resp.Identifier = req.Identifier
	raw, err := resp.Encode(host.Secret, &req.Authenticator)
	if err != nil {
		s.cfg.Metrics.PacketDropped(host.Name, "encode-error")
		return fmt.Errorf("radserver: encode reply to host %s: %w", host.Name, err)
	}

	if err := reply(raw); err != nil {
		return fmt.Errorf("radserver: send reply to host %s: %w", host.Name, err)
	}
	s.cfg.Metrics.PacketReplied(host.Name, resp.Code)
	return nil
}

func (s *Server) handlerFor(code radius.Code) (func(context.Context, *radius.Packet, *Host) (*radius.Packet, error), error) {
	switch code {
	case radius.CodeAccessRequest:
		return s.handler.HandleAuth, nil
	case radius.CodeAccountingRequest:
		return s.handler.HandleAcct, nil
	case radius.CodeCoARequest:
		return s.handler.HandleCoA, nil
	case radius.CodeDisconnectRequest:
		return s.handler.HandleDisconnect, nil
	default:
		return nil, fmt.Errorf("radserver: no handler for code %s", code)
	}
}

// requiresRequestAuthenticator reports whether code's Request
// Authenticator is independently verifiable against the shared secret
// without first decrypting attributes. Access-Request is deliberately
// excluded: its Authenticator is per-request random input used only to
// obfuscate User-Password, not a value the server can verify on its own.
func requiresRequestAuthenticator(code radius.Code) bool {
	switch code {
	case radius.CodeAccountingRequest, radius.CodeCoARequest, radius.CodeDisconnectRequest:
		return true
	default:
		return false
	}
}
