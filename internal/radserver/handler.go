package radserver

import (
	"context"
	"errors"

	"github.com/dlp-radius/goradius/internal/radius"
)

// ErrDrop is returned by a Handler method to signal that the request
// should be silently dropped rather than replied to.
var ErrDrop = errors.New("radserver: handler dropped request")

// Handler processes decoded, authenticated requests. Each method receives
// the decoded request and the Host it arrived from, and returns either a
// reply packet to send back or ErrDrop. Handlers must be reentrant: the
// engine makes no ordering guarantees between concurrent requests.
type Handler interface {
	HandleAuth(ctx context.Context, req *radius.Packet, host *Host) (*radius.Packet, error)
	HandleAcct(ctx context.Context, req *radius.Packet, host *Host) (*radius.Packet, error)
	HandleCoA(ctx context.Context, req *radius.Packet, host *Host) (*radius.Packet, error)
	HandleDisconnect(ctx context.Context, req *radius.Packet, host *Host) (*radius.Packet, error)
}

// MetricsReporter records dispatch-engine events: counters for packets
// sent/received/dropped per host. The engine takes an optional reporter,
// defaulting to a no-op, rather than hard-depending on Prometheus types.
type MetricsReporter interface {
	PacketReceived(host string, code radius.Code)
	PacketDropped(host string, reason string)
	PacketReplied(host string, code radius.Code)
}

type noopMetrics struct{}

func (noopMetrics) PacketReceived(string, radius.Code) {}
func (noopMetrics) PacketDropped(string, string)       {}
func (noopMetrics) PacketReplied(string, radius.Code)  {}
