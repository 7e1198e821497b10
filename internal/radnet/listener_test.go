package netio_test

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/dlp-radius/goradius/internal/radnet"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func mustLoopback(t *testing.T) netip.AddrPort {
	t.Helper()
	return netip.MustParseAddrPort("127.0.0.1:0")
}

func TestListenerSendRecvRoundTrip(t *testing.T) {
	t.Parallel()

	ln, err := netio.NewListener(mustLoopback(t))
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	peer, err := net.ListenUDP("udp", nil)
	if err != nil {
		t.Fatalf("dial peer: %v", err)
	}
	t.Cleanup(func() { _ = peer.Close() })

	payload := []byte{0x01, 0x02, 0x03, 0x04}
	if _, err := peer.WriteToUDPAddrPort(payload, ln.Addr()); err != nil {
		t.Fatalf("write to listener: %v", err)
	}

	ctx := t.Context()
	raw, meta, err := ln.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if string(raw) != string(payload) {
		t.Errorf("raw = %v, want %v", raw, payload)
	}

	peerAddr, ok := peer.LocalAddr().(*net.UDPAddr)
	if !ok {
		t.Fatalf("peer.LocalAddr() not *net.UDPAddr")
	}
	if meta.SrcAddr.Port() != uint16(peerAddr.Port) {
		t.Errorf("SrcAddr port = %d, want %d", meta.SrcAddr.Port(), peerAddr.Port)
	}
	if meta.LocalAddr != ln.Addr() {
		t.Errorf("LocalAddr = %s, want %s", meta.LocalAddr, ln.Addr())
	}

	reply := []byte{0xAA, 0xBB}
	if err := ln.Send(reply, meta.SrcAddr); err != nil {
		t.Fatalf("Send: %v", err)
	}

	buf := make([]byte, 64)
	if err := peer.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	n, _, err := peer.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("peer read: %v", err)
	}
	if string(buf[:n]) != string(reply) {
		t.Errorf("peer received %v, want %v", buf[:n], reply)
	}
}

func TestListenerRecvContextCancelled(t *testing.T) {
	t.Parallel()

	ln, err := netio.NewListener(mustLoopback(t))
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if _, _, err := ln.Recv(ctx); err == nil {
		t.Fatal("Recv: expected error on cancelled context")
	}
}

func TestListenerAddrMatchesBoundSocket(t *testing.T) {
	t.Parallel()

	ln, err := netio.NewListener(mustLoopback(t))
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	if ln.Addr().Port() == 0 {
		t.Error("expected a nonzero ephemeral port to be assigned")
	}
	if !ln.Addr().Addr().IsLoopback() {
		t.Errorf("Addr = %s, want loopback", ln.Addr())
	}
}
