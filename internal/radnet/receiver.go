package netio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoListeners indicates that Run was called without any listeners.
var ErrNoListeners = errors.New("receiver run: no listeners provided")

// Dispatcher routes a raw RADIUS datagram to the server-side protocol
// layer. This interface decouples the transport from radserver, whose
// host-table-by-source-IP lookup replaces a two-tier discriminator
// lookup.
//
// reply is how the dispatcher sends a response back once it has decoded,
// authenticated, and handled the request; Receiver passes the Listener
// the datagram arrived on so a reply always leaves from the same socket.
type Dispatcher interface {
	Dispatch(ctx context.Context, raw []byte, meta PacketMeta, reply func([]byte) error) error
}

// Receiver reads RADIUS datagrams from one or more Listeners and routes
// them to a Dispatcher.
type Receiver struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewReceiver creates a Receiver that routes datagrams to the given Dispatcher.
func NewReceiver(dispatcher Dispatcher, logger *slog.Logger) *Receiver {
	return &Receiver{
		dispatcher: dispatcher,
		logger:     logger.With(slog.String("component", "netio.receiver")),
	}
}

// Run reads from all listeners concurrently until ctx is cancelled. Each
// listener gets its own goroutine; Run blocks until every goroutine
// returns.
//
// Errors from individual datagram reads or dispatch attempts are logged
// but do not stop the receiver — only context cancellation terminates
// the loop; malformed or unauthenticated datagrams are dropped, not fatal.
func (r *Receiver) Run(ctx context.Context, listeners ...*Listener) error {
	if len(listeners) == 0 {
		return fmt.Errorf("receiver: %w", ErrNoListeners)
	}

	done := make(chan struct{}, len(listeners))

	for _, ln := range listeners {
		go func(l *Listener) {
			r.recvLoop(ctx, l)
			done <- struct{}{}
		}(ln)
	}

	for range len(listeners) {
		<-done
	}

	return nil
}

// recvLoop reads datagrams from a single Listener until ctx is cancelled.
func (r *Receiver) recvLoop(ctx context.Context, ln *Listener) {
	for {
		if ctx.Err() != nil {
			return
		}

		if err := r.recvOne(ctx, ln); err != nil {
			if ctx.Err() != nil {
				return // cancellation during read/dispatch is expected at shutdown.
			}
			r.logger.Warn("recv error", slog.String("error", err.Error()))
		}
	}
}

// recvOne performs a single receive-dispatch cycle.
func (r *Receiver) recvOne(ctx context.Context, ln *Listener) error {
	raw, meta, err := ln.Recv(ctx)
	if err != nil {
		return fmt.Errorf("recv: %w", err)
	}

	reply := func(out []byte) error {
		return ln.Send(out, meta.SrcAddr)
	}

	if err := r.dispatcher.Dispatch(ctx, raw, meta, reply); err != nil {
		r.logger.Debug("dispatch dropped datagram",
			slog.String("src", meta.SrcAddr.String()),
			slog.String("error", err.Error()),
		)
	}

	return nil
}
