package main

import (
	"context"
	"log/slog"

	"github.com/dlp-radius/goradius/internal/config"
	"github.com/dlp-radius/goradius/internal/dictionary"
	"github.com/dlp-radius/goradius/internal/radius"
	"github.com/dlp-radius/goradius/internal/radserver"
)

// staticHandler is goradiusd's bundled authentication backend. It
// authenticates Access-Requests against a fixed User-Name/User-Password
// list loaded from configuration and acknowledges accounting/CoA/disconnect
// traffic without acting on it, keeping the daemon runnable out of the box
// without a database-backed or EAP-capable backend.
type staticHandler struct {
	dict   *dictionary.Dictionary
	users  map[string]string
	logger *slog.Logger
}

func newStaticHandler(dict *dictionary.Dictionary, users []config.UserConfig, logger *slog.Logger) *staticHandler {
	byName := make(map[string]string, len(users))
	for _, u := range users {
		byName[u.Name] = u.Password
	}
	return &staticHandler{dict: dict, users: byName, logger: logger}
}

var _ radserver.Handler = (*staticHandler)(nil)

// HandleAuth implements PAP authentication: it compares the request's
// User-Name/User-Password against the static list and returns
// Access-Accept or Access-Reject. radius.Decode has already transparently
// decrypted User-Password, so the comparison is a plain byte match.
func (h *staticHandler) HandleAuth(_ context.Context, req *radius.Packet, host *radserver.Host) (*radius.Packet, error) {
	name, _ := req.Get("User-Name")
	pass, _ := req.Get("User-Password")

	if h.authenticates(name, pass) {
		resp := radius.NewPacket(radius.CodeAccessAccept, h.dict)
		return resp, nil
	}

	resp := radius.NewPacket(radius.CodeAccessReject, h.dict)
	if err := resp.Add("Reply-Message", "authentication failed"); err != nil {
		return nil, err
	}
	h.logger.Warn("access reject",
		slog.String("host", host.Name),
		slog.String("user", attrString(name)),
	)
	return resp, nil
}

// HandleAcct acknowledges any accounting packet without persisting it.
func (h *staticHandler) HandleAcct(_ context.Context, _ *radius.Packet, _ *radserver.Host) (*radius.Packet, error) {
	return radius.NewPacket(radius.CodeAccountingResponse, h.dict), nil
}

// HandleCoA acknowledges every CoA-Request with CoA-NAK: the static
// backend has no session table to apply authorization changes to.
func (h *staticHandler) HandleCoA(_ context.Context, _ *radius.Packet, _ *radserver.Host) (*radius.Packet, error) {
	return radius.NewPacket(radius.CodeCoANAK, h.dict), nil
}

// HandleDisconnect acknowledges every Disconnect-Request with
// Disconnect-NAK for the same reason as HandleCoA.
func (h *staticHandler) HandleDisconnect(_ context.Context, _ *radius.Packet, _ *radserver.Host) (*radius.Packet, error) {
	return radius.NewPacket(radius.CodeDisconnectNAK, h.dict), nil
}

func (h *staticHandler) authenticates(name, pass any) bool {
	nameStr, ok := name.([]byte)
	if !ok {
		return false
	}
	want, ok := h.users[string(nameStr)]
	if !ok {
		return false
	}
	passStr, ok := pass.([]byte)
	if !ok {
		return false
	}
	return string(passStr) == want
}

func attrString(v any) string {
	b, ok := v.([]byte)
	if !ok {
		return ""
	}
	return string(b)
}
