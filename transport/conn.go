// Package transport narrows the surface this module needs from a QUIC
// connection down to a small interface, so the session and engine packages
// never import quic-go directly. Production code uses the quic-go adapter
// in this package; tests substitute an in-memory fake.
package transport

import (
	"context"
	"io"
)

// Stream is a bidirectional or send-only QUIC stream. Receive-only streams
// satisfy it too; callers that only read never call Write.
type Stream interface {
	io.Reader
	io.Writer
	// StreamID returns the QUIC stream ID, stable for the life of the stream.
	StreamID() int64
	// CancelWrite aborts the send side with an application error code,
	// analogous to RESET_STREAM.
	CancelWrite(code uint64)
	// CancelRead aborts the receive side with an application error code,
	// analogous to STOP_SENDING.
	CancelRead(code uint64)
	// Close closes the send side gracefully (FIN); the peer still sees
	// any bytes already written.
	Close() error
}

// Connection is the narrow surface this module needs from a QUIC
// connection: open/accept streams, send/receive datagrams, and close with
// an application error code. A concrete adapter over quic-go satisfies
// this; engine code is written entirely against the interface.
type Connection interface {
	// OpenStream opens a new bidirectional stream without blocking on flow
	// control credit (the control stream is opened this way by both peers
	// at connection start).
	OpenStream() (Stream, error)
	// OpenStreamSync opens a new bidirectional stream, blocking until flow
	// control credit is available or ctx is done.
	OpenStreamSync(ctx context.Context) (Stream, error)
	// OpenUniStreamSync opens a new unidirectional (send-only) stream,
	// blocking until flow control credit is available or ctx is done. Used
	// for subgroup/fetch data streams.
	OpenUniStreamSync(ctx context.Context) (Stream, error)
	// AcceptStream waits for and returns the next bidirectional stream
	// opened by the peer. MoQT uses exactly one: the control stream.
	AcceptStream(ctx context.Context) (Stream, error)
	// AcceptUniStream waits for and returns the next unidirectional
	// (receive-only) stream opened by the peer, carrying a subgroup or
	// fetch object stream.
	AcceptUniStream(ctx context.Context) (Stream, error)
	// SendDatagram sends an unreliable, unordered application datagram.
	SendDatagram(payload []byte) error
	// ReceiveDatagram blocks until a datagram arrives or ctx is done.
	ReceiveDatagram(ctx context.Context) ([]byte, error)
	// CloseWithError closes the connection, signaling code and reason to
	// the peer in the QUIC CONNECTION_CLOSE frame.
	CloseWithError(code uint64, reason string) error
	// Context returns a context that is done when the connection closes.
	Context() context.Context
	// RemoteAddr returns the string form of the peer's network address,
	// used only for logging.
	RemoteAddr() string
}

// Dialer dials a QUIC connection to addr. A concrete implementation wraps
// quic.DialAddr; tests substitute an in-memory pair.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Connection, error)
}

// Listener accepts incoming QUIC connections. A concrete implementation
// wraps quic.Listener.
type Listener interface {
	Accept(ctx context.Context) (Connection, error)
	Addr() string
	Close() error
}
