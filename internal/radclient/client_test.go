package radclient_test

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/dlp-radius/goradius/internal/dictionary"
	"github.com/dlp-radius/goradius/internal/radclient"
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

// fakeServer is a minimal one-socket RADIUS peer for exercising Client
// against real UDP I/O without a full radserver.
type fakeServer struct {
	conn *net.UDPConn
	addr *net.UDPAddr
}

// handle processes one received datagram and returns the bytes to send
// back, or ok=false to send nothing (simulating an unreachable/silent
// server, used for timeout tests).
type fakeServerHandler func(raw []byte) (reply []byte, ok bool)

func newFakeServer(t *testing.T, handler fakeServerHandler) *fakeServer {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	s := &fakeServer{conn: conn, addr: conn.LocalAddr().(*net.UDPAddr)}

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, radius.MaxPacketSize)
		for {
			n, peer, err := conn.ReadFromUDP(buf)
			if err != nil {
				return // conn closed by t.Cleanup
			}
			reply, ok := handler(append([]byte(nil), buf[:n]...))
			if !ok {
				continue
			}
			_, _ = conn.WriteToUDP(reply, peer)
		}
	}()

	t.Cleanup(func() {
		_ = conn.Close()
		<-done
	})
	return s
}

func (s *fakeServer) port() int { return s.addr.Port }

const testSecret = "testing123"

func TestSendPacketAuthAcceptRoundTrip(t *testing.T) {
	dict := testDict(t)
	secret := []byte(testSecret)

	srv := newFakeServer(t, func(raw []byte) ([]byte, bool) {
		req, err := radius.Decode(raw, secret, dict, nil)
		if err != nil {
			t.Errorf("server decode: %v", err)
			return nil, false
		}
		reqAuth := req.Authenticator

		reply := radius.NewPacket(radius.CodeAccessAccept, dict)
		reply.Identifier = req.Identifier
		if err := reply.Add("Reply-Message", "welcome"); err != nil {
			t.Errorf("server reply Add: %v", err)
		}
		out, err := reply.Encode(secret, &reqAuth)
		if err != nil {
			t.Errorf("server encode: %v", err)
			return nil, false
		}
		return out, true
	})

	client, err := radclient.NewClient(radclient.Config{
		Server:  "127.0.0.1",
		AuthPort: srv.port(),
		Secret:  secret,
		Dict:    dict,
		Timeout: time.Second,
		Retries: 2,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	req, err := client.CreateAuthPacket(
		radclient.AttrValue{Name: "User-Name", Value: []byte("nemo")},
		radclient.AttrValue{Name: "NAS-IP-Address", Value: netip.MustParseAddr("192.168.1.16")},
	)
	if err != nil {
		t.Fatalf("CreateAuthPacket: %v", err)
	}

	reply, err := client.SendPacket(context.Background(), req)
	if err != nil {
		t.Fatalf("SendPacket: %v", err)
	}
	if reply.Code != radius.CodeAccessAccept {
		t.Errorf("reply.Code = %v, want Access-Accept", reply.Code)
	}
	if msg, ok := reply.Get("Reply-Message"); !ok || msg != "welcome" {
		t.Errorf("Reply-Message = %v, %v, want welcome, true", msg, ok)
	}
}

func TestSendPacketAcctRoundTrip(t *testing.T) {
	dict := testDict(t)
	secret := []byte(testSecret)

	srv := newFakeServer(t, func(raw []byte) ([]byte, bool) {
		req, err := radius.Decode(raw, secret, dict, nil)
		if err != nil {
			t.Errorf("server decode: %v", err)
			return nil, false
		}
		if !radius.VerifyRequestAuthenticator(raw, secret) {
			t.Error("server: request authenticator did not verify")
		}
		reqAuth := req.Authenticator

		reply := radius.NewPacket(radius.CodeAccountingResponse, dict)
		reply.Identifier = req.Identifier
		out, err := reply.Encode(secret, &reqAuth)
		if err != nil {
			t.Errorf("server encode: %v", err)
			return nil, false
		}
		return out, true
	})

	client, err := radclient.NewClient(radclient.Config{
		Server:  "127.0.0.1",
		AcctPort: srv.port(),
		Secret:  secret,
		Dict:    dict,
		Timeout: time.Second,
		Retries: 2,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	req, err := client.CreateAcctPacket(radclient.AttrValue{Name: "User-Name", Value: []byte("nemo")})
	if err != nil {
		t.Fatalf("CreateAcctPacket: %v", err)
	}

	reply, err := client.SendPacket(context.Background(), req)
	if err != nil {
		t.Fatalf("SendPacket: %v", err)
	}
	if reply.Code != radius.CodeAccountingResponse {
		t.Errorf("reply.Code = %v, want Accounting-Response", reply.Code)
	}
}

func TestSendPacketBadAuthMismatch(t *testing.T) {
	dict := testDict(t)
	secret := []byte(testSecret)

	srv := newFakeServer(t, func(raw []byte) ([]byte, bool) {
		req, err := radius.Decode(raw, secret, dict, nil)
		if err != nil {
			t.Errorf("server decode: %v", err)
			return nil, false
		}
		reqAuth := req.Authenticator

		reply := radius.NewPacket(radius.CodeAccessReject, dict)
		reply.Identifier = req.Identifier
		out, err := reply.Encode(secret, &reqAuth)
		if err != nil {
			t.Errorf("server encode: %v", err)
			return nil, false
		}
		out[len(out)-1] ^= 0xFF // flip the last Authenticator byte so it fails verification.
		return out, true
	})

	client, err := radclient.NewClient(radclient.Config{
		Server:  "127.0.0.1",
		AuthPort: srv.port(),
		Secret:  secret,
		Dict:    dict,
		Timeout: 200 * time.Millisecond,
		Retries: 1,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	req, err := client.CreateAuthPacket(radclient.AttrValue{Name: "User-Name", Value: []byte("nemo")})
	if err != nil {
		t.Fatalf("CreateAuthPacket: %v", err)
	}

	_, err = client.SendPacket(context.Background(), req)
	var badReply *radclient.BadReplyError
	if !errors.As(err, &badReply) {
		t.Fatalf("SendPacket err = %v, want *BadReplyError", err)
	}
	if badReply.Reason != radclient.ReasonAuthMismatch {
		t.Errorf("BadReplyError.Reason = %v, want auth-mismatch", badReply.Reason)
	}
}

func TestSendPacketTimeout(t *testing.T) {
	dict := testDict(t)
	secret := []byte(testSecret)

	srv := newFakeServer(t, func(raw []byte) ([]byte, bool) {
		return nil, false // never reply
	})

	client, err := radclient.NewClient(radclient.Config{
		Server:  "127.0.0.1",
		AuthPort: srv.port(),
		Secret:  secret,
		Dict:    dict,
		Timeout: 50 * time.Millisecond,
		Retries: 3,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	req, err := client.CreateAuthPacket(radclient.AttrValue{Name: "User-Name", Value: []byte("nemo")})
	if err != nil {
		t.Fatalf("CreateAuthPacket: %v", err)
	}

	start := time.Now()
	_, err = client.SendPacket(context.Background(), req)
	elapsed := time.Since(start)

	var timeoutErr *radclient.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("SendPacket err = %v, want *TimeoutError", err)
	}
	if timeoutErr.Attempts != 3 {
		t.Errorf("TimeoutError.Attempts = %d, want 3", timeoutErr.Attempts)
	}
	if elapsed < 3*50*time.Millisecond {
		t.Errorf("elapsed = %v, want at least 3*50ms (one send per attempt)", elapsed)
	}
}

func TestSendPacketWrongIdentifierDiscardedThenTimeout(t *testing.T) {
	dict := testDict(t)
	secret := []byte(testSecret)

	srv := newFakeServer(t, func(raw []byte) ([]byte, bool) {
		req, err := radius.Decode(raw, secret, dict, nil)
		if err != nil {
			t.Errorf("server decode: %v", err)
			return nil, false
		}
		reqAuth := req.Authenticator

		reply := radius.NewPacket(radius.CodeAccessAccept, dict)
		reply.Identifier = req.Identifier + 1 // deliberately wrong
		out, err := reply.Encode(secret, &reqAuth)
		if err != nil {
			t.Errorf("server encode: %v", err)
			return nil, false
		}
		return out, true
	})

	client, err := radclient.NewClient(radclient.Config{
		Server:  "127.0.0.1",
		AuthPort: srv.port(),
		Secret:  secret,
		Dict:    dict,
		Timeout: 50 * time.Millisecond,
		Retries: 2,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	req, err := client.CreateAuthPacket(radclient.AttrValue{Name: "User-Name", Value: []byte("nemo")})
	if err != nil {
		t.Fatalf("CreateAuthPacket: %v", err)
	}

	_, err = client.SendPacket(context.Background(), req)
	var timeoutErr *radclient.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("SendPacket err = %v, want *TimeoutError (wrong-id replies must be discarded silently)", err)
	}
}

func TestSendPacketContextCancellation(t *testing.T) {
	dict := testDict(t)
	secret := []byte(testSecret)

	srv := newFakeServer(t, func(raw []byte) ([]byte, bool) {
		return nil, false
	})

	client, err := radclient.NewClient(radclient.Config{
		Server:  "127.0.0.1",
		AuthPort: srv.port(),
		Secret:  secret,
		Dict:    dict,
		Timeout: time.Second,
		Retries: 5,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	req, err := client.CreateAuthPacket(radclient.AttrValue{Name: "User-Name", Value: []byte("nemo")})
	if err != nil {
		t.Fatalf("CreateAuthPacket: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = client.SendPacket(ctx, req)
	if err == nil {
		t.Fatal("SendPacket with a canceling context: err = nil, want non-nil")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("SendPacket did not respect context deadline: took %v", elapsed)
	}
}

func TestSendPacketCoARoundTrip(t *testing.T) {
	dict := testDict(t)
	secret := []byte(testSecret)

	srv := newFakeServer(t, func(raw []byte) ([]byte, bool) {
		req, err := radius.Decode(raw, secret, dict, nil)
		if err != nil {
			t.Errorf("server decode: %v", err)
			return nil, false
		}
		if req.Code != radius.CodeCoARequest {
			t.Errorf("server: req.Code = %v, want CoA-Request", req.Code)
		}
		reqAuth := req.Authenticator

		reply := radius.NewPacket(radius.CodeCoAACK, dict)
		reply.Identifier = req.Identifier
		out, err := reply.Encode(secret, &reqAuth)
		if err != nil {
			t.Errorf("server encode: %v", err)
			return nil, false
		}
		return out, true
	})

	client, err := radclient.NewClient(radclient.Config{
		Server:  "127.0.0.1",
		CoAPort: srv.port(),
		Secret:  secret,
		Dict:    dict,
		Timeout: time.Second,
		Retries: 2,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	req, err := client.CreateCoAPacket(radius.CodeCoARequest,
		radclient.AttrValue{Name: "NAS-IP-Address", Value: netip.MustParseAddr("192.168.1.16")},
	)
	if err != nil {
		t.Fatalf("CreateCoAPacket: %v", err)
	}

	reply, err := client.SendPacket(context.Background(), req)
	if err != nil {
		t.Fatalf("SendPacket: %v", err)
	}
	if reply.Code != radius.CodeCoAACK {
		t.Errorf("reply.Code = %v, want CoA-ACK", reply.Code)
	}
}

func TestCreateCoAPacketRejectsBadCode(t *testing.T) {
	dict := testDict(t)
	client, err := radclient.NewClient(radclient.Config{
		Server: "127.0.0.1",
		CoAPort: func() int {
			srv := newFakeServer(t, func([]byte) ([]byte, bool) { return nil, false })
			return srv.port()
		}(),
		Secret: []byte(testSecret),
		Dict:   dict,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	if _, err := client.CreateCoAPacket(radius.CodeAccessRequest); err == nil {
		t.Fatal("CreateCoAPacket(CodeAccessRequest): err = nil, want non-nil")
	}
}

func TestNewClientNoHostFound(t *testing.T) {
	dict := testDict(t)
	// A port of 0 with no listener and an address that cannot be
	// dialed as UDP (DialUDP itself rarely fails for a well-formed
	// address since UDP is connectionless, so this exercises the
	// resolution failure path instead).
	_, err := radclient.NewClient(radclient.Config{
		Server: "this.host.does.not.resolve.invalid",
		Secret: []byte(testSecret),
		Dict:   dict,
	})
	if !errors.Is(err, radclient.ErrNoHostFound) {
		t.Fatalf("NewClient err = %v, want ErrNoHostFound", err)
	}
}
