// Package moqt implements a Media-over-QUIC Transport client and server:
// wire codec, track handlers, and the transport engine that drives the
// control and data planes of a single MoQT session. Client and Server are
// the entry points most applications use; the wire, track, cache, clock,
// transport, and session packages are the building blocks underneath.
package moqt

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"

	"github.com/moqtransport/moqt/clock"
	"github.com/moqtransport/moqt/session"
	"github.com/moqtransport/moqt/track"
	"github.com/moqtransport/moqt/transport"
	"github.com/moqtransport/moqt/wire"
)

// ClientConfig configures Dial.
type ClientConfig struct {
	// TLSConfig is required; MoQT runs entirely over QUIC/TLS 1.3.
	TLSConfig *tls.Config
	// SupportedVersions offered in CLIENT_SETUP. Defaults to []uint64{wire.Version}.
	SupportedVersions []uint64
	Hooks             session.Hooks
	Log               *slog.Logger
}

// Client is one QUIC connection to a MoQT server, driven by a
// session.Engine in the client role.
type Client struct {
	conn   transport.Connection
	engine *session.Engine
	cancel context.CancelFunc
	runErr chan error
}

// Dial opens a QUIC connection to addr, runs the CLIENT_SETUP/SERVER_SETUP
// handshake, and returns once the session is ready to issue SUBSCRIBE,
// ANNOUNCE, and FETCH requests. The connection continues being served by a
// background goroutine until ctx is cancelled or Close is called.
func Dial(ctx context.Context, addr string, cfg ClientConfig) (*Client, error) {
	if cfg.TLSConfig == nil {
		return nil, fmt.Errorf("moqt: ClientConfig.TLSConfig is required")
	}
	versions := cfg.SupportedVersions
	if len(versions) == 0 {
		versions = []uint64{wire.Version}
	}

	dialer := transport.NewDialer(cfg.TLSConfig, nil)
	conn, err := dialer.Dial(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("moqt: dial %s: %w", addr, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	tick := clock.NewRealTicker(runCtx, 0)
	engine := session.NewEngine(session.RoleClient, conn, tick, cfg.Log)
	engine.SupportedVersions = versions
	engine.Hooks = cfg.Hooks

	runErr := make(chan error, 1)
	go func() { runErr <- engine.RunClient(runCtx) }()
	go func() { _ = engine.ServeDatagrams(runCtx) }()

	select {
	case <-engine.Ready():
	case err := <-runErr:
		cancel()
		return nil, fmt.Errorf("moqt: handshake failed: %w", err)
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}

	return &Client{conn: conn, engine: engine, cancel: cancel, runErr: runErr}, nil
}

// Engine exposes the underlying transport engine for advanced use
// (Publish, direct access to its Context).
func (c *Client) Engine() *session.Engine { return c.engine }

// Done reports the background serve loop's terminal error once the
// connection ends, whether from Close, a protocol violation, or the peer
// closing first.
func (c *Client) Done() <-chan error { return c.runErr }

// Subscribe issues a SUBSCRIBE for name and returns the handler that will
// receive its objects once SUBSCRIBE_OK arrives.
func (c *Client) Subscribe(name track.FullTrackName, filter track.FilterType) (*track.SubscribeHandler, error) {
	h := track.NewSubscribeHandler(name, filter)
	requestID := c.engine.Ctx.NextRequestID()
	alias := requestID // the client owns alias assignment for tracks it subscribes to
	h.SetTrackAlias(alias)
	h.SetRequestID(requestID)
	h.SetStatus(track.SubscribePendingResponse)
	c.engine.Ctx.BindSubscribe(requestID, h)

	err := c.engine.WriteControl(wire.MsgSubscribe, wire.EncodeSubscribe(wire.Subscribe{
		RequestID:  requestID,
		TrackAlias: alias,
		Namespace:  name.Namespace,
		TrackName:  name.Name,
		GroupOrder: wire.GroupOrderAscending,
		FilterType: filterToWire(filter),
	}))
	if err != nil {
		c.engine.Ctx.Unbind(requestID)
		return nil, fmt.Errorf("moqt: write SUBSCRIBE: %w", err)
	}
	return h, nil
}

func filterToWire(f track.FilterType) uint64 {
	switch f {
	case track.FilterAbsoluteStart:
		return wire.FilterAbsoluteStart
	case track.FilterAbsoluteRange:
		return wire.FilterAbsoluteRange
	case track.FilterLatestObject:
		return wire.FilterLatestObject
	default:
		return wire.FilterNextGroupStart
	}
}

// Announce declares that this client will publish tracks under ns.
func (c *Client) Announce(ns track.Namespace) error {
	return c.engine.WriteControl(wire.MsgAnnounce, wire.EncodeAnnounce(wire.Announce{Namespace: ns}))
}

// Publish attaches h as a locally published track, ready to accept
// PublishObject calls once the peer subscribes to it.
func (c *Client) Publish(h *track.PublishHandler) error {
	name := h.FullTrackName()
	return c.engine.Publish(h, name.Namespace.Hash(), track.NameHash(name.Name))
}

// Close tears down the connection and stops the background serve loop.
func (c *Client) Close() error {
	c.cancel()
	return c.conn.CloseWithError(0, "client closing")
}
