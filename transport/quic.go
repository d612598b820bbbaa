package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/quic-go/quic-go"
)

// quicConn adapts a *quic.Conn to the Connection interface.
type quicConn struct {
	conn *quic.Conn
}

// NewQUICConnection wraps an established quic-go connection.
func NewQUICConnection(conn *quic.Conn) Connection {
	return &quicConn{conn: conn}
}

func (c *quicConn) OpenStream() (Stream, error) {
	s, err := c.conn.OpenStream()
	if err != nil {
		return nil, err
	}
	return &biStream{s}, nil
}

func (c *quicConn) OpenStreamSync(ctx context.Context) (Stream, error) {
	s, err := c.conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	return &biStream{s}, nil
}

func (c *quicConn) OpenUniStreamSync(ctx context.Context) (Stream, error) {
	s, err := c.conn.OpenUniStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	return &sendStream{s}, nil
}

func (c *quicConn) AcceptStream(ctx context.Context) (Stream, error) {
	s, err := c.conn.AcceptStream(ctx)
	if err != nil {
		return nil, err
	}
	return &biStream{s}, nil
}

func (c *quicConn) AcceptUniStream(ctx context.Context) (Stream, error) {
	s, err := c.conn.AcceptUniStream(ctx)
	if err != nil {
		return nil, err
	}
	return &receiveStream{s}, nil
}

func (c *quicConn) SendDatagram(payload []byte) error {
	return c.conn.SendDatagram(payload)
}

func (c *quicConn) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	return c.conn.ReceiveDatagram(ctx)
}

func (c *quicConn) CloseWithError(code uint64, reason string) error {
	return c.conn.CloseWithError(quic.ApplicationErrorCode(code), reason)
}

func (c *quicConn) Context() context.Context {
	return c.conn.Context()
}

func (c *quicConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// biStream adapts a *quic.Stream (bidirectional).
type biStream struct {
	s *quic.Stream
}

func (b *biStream) Read(p []byte) (int, error)  { return b.s.Read(p) }
func (b *biStream) Write(p []byte) (int, error) { return b.s.Write(p) }
func (b *biStream) StreamID() int64             { return int64(b.s.StreamID()) }
func (b *biStream) CancelWrite(code uint64)     { b.s.CancelWrite(quic.StreamErrorCode(code)) }
func (b *biStream) CancelRead(code uint64)      { b.s.CancelRead(quic.StreamErrorCode(code)) }
func (b *biStream) Close() error                { return b.s.Close() }

// sendStream adapts a *quic.SendStream (unidirectional, outgoing).
type sendStream struct {
	s *quic.SendStream
}

func (w *sendStream) Read(p []byte) (int, error) {
	return 0, errors.New("transport: send-only stream is not readable")
}
func (w *sendStream) Write(p []byte) (int, error) { return w.s.Write(p) }
func (w *sendStream) StreamID() int64             { return int64(w.s.StreamID()) }
func (w *sendStream) CancelWrite(code uint64)      { w.s.CancelWrite(quic.StreamErrorCode(code)) }
func (w *sendStream) CancelRead(code uint64)       {}
func (w *sendStream) Close() error                 { return w.s.Close() }

// receiveStream adapts a *quic.ReceiveStream (unidirectional, incoming).
type receiveStream struct {
	s *quic.ReceiveStream
}

func (r *receiveStream) Read(p []byte) (int, error) { return r.s.Read(p) }
func (r *receiveStream) Write(p []byte) (int, error) {
	return 0, errors.New("transport: receive-only stream is not writable")
}
func (r *receiveStream) StreamID() int64        { return int64(r.s.StreamID()) }
func (r *receiveStream) CancelWrite(code uint64) {}
func (r *receiveStream) CancelRead(code uint64)  { r.s.CancelRead(quic.StreamErrorCode(code)) }
func (r *receiveStream) Close() error            { return nil }

// quicDialer adapts quic.DialAddr to the Dialer interface.
type quicDialer struct {
	tlsConfig  *tls.Config
	quicConfig *quic.Config
}

// NewDialer returns a Dialer that dials with the given TLS and QUIC
// configuration, mirroring the teacher's QUICConfig usage in
// internal/distribution/server.go.
func NewDialer(tlsConfig *tls.Config, quicConfig *quic.Config) Dialer {
	return &quicDialer{tlsConfig: tlsConfig, quicConfig: quicConfig}
}

func (d *quicDialer) Dial(ctx context.Context, addr string) (Connection, error) {
	conn, err := quic.DialAddr(ctx, addr, d.tlsConfig, d.quicConfig)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return NewQUICConnection(conn), nil
}

// quicListener adapts a *quic.Listener to the Listener interface.
type quicListener struct {
	ln *quic.Listener
}

// Listen starts a QUIC listener on addr with the given TLS and QUIC
// configuration.
func Listen(addr string, tlsConfig *tls.Config, quicConfig *quic.Config) (Listener, error) {
	ln, err := quic.ListenAddr(addr, tlsConfig, quicConfig)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	return &quicListener{ln: ln}, nil
}

func (l *quicListener) Accept(ctx context.Context) (Connection, error) {
	conn, err := l.ln.Accept(ctx)
	if err != nil {
		return nil, err
	}
	return NewQUICConnection(conn), nil
}

func (l *quicListener) Addr() string { return l.ln.Addr().String() }
func (l *quicListener) Close() error { return l.ln.Close() }
