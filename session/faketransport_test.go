package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/moqtransport/moqt/transport"
)

// fakeStream is an in-memory transport.Stream backed by an io.Pipe half (or
// two, for a bidirectional stream). Grounded on the teacher's
// mockControlStream test helper (internal/distribution/moq_session_test.go),
// which paired a bytes.Buffer reader with a bytes.Buffer writer to stand in
// for a *quic.Stream in control-message tests.
type fakeStream struct {
	id int64
	r  *io.PipeReader
	w  *io.PipeWriter
}

func (s *fakeStream) Read(p []byte) (int, error) {
	if s.r == nil {
		return 0, errors.New("fake: stream is write-only")
	}
	return s.r.Read(p)
}

func (s *fakeStream) Write(p []byte) (int, error) {
	if s.w == nil {
		return 0, errors.New("fake: stream is read-only")
	}
	return s.w.Write(p)
}

func (s *fakeStream) StreamID() int64 { return s.id }

func (s *fakeStream) CancelWrite(code uint64) {
	if s.w != nil {
		s.w.CloseWithError(fmt.Errorf("fake: write cancelled, code %d", code))
	}
}

func (s *fakeStream) CancelRead(code uint64) {
	if s.r != nil {
		s.r.CloseWithError(fmt.Errorf("fake: read cancelled, code %d", code))
	}
}

func (s *fakeStream) Close() error {
	if s.w != nil {
		return s.w.Close()
	}
	return nil
}

// newBidiStreamPair wires two fakeStreams so each side's writes arrive as
// the other's reads, standing in for one bidirectional QUIC stream.
func newBidiStreamPair(id int64) (a, b *fakeStream) {
	r1, w1 := io.Pipe()
	r2, w2 := io.Pipe()
	return &fakeStream{id: id, r: r1, w: w2}, &fakeStream{id: id, r: r2, w: w1}
}

// newUniStreamPair returns the send-only and receive-only halves of one
// unidirectional stream.
func newUniStreamPair(id int64) (sender, receiver *fakeStream) {
	r, w := io.Pipe()
	return &fakeStream{id: id, w: w}, &fakeStream{id: id, r: r}
}

// fakeConn is an in-memory transport.Connection paired with a peer, so
// OpenStreamSync/OpenUniStreamSync on one side surfaces as
// AcceptStream/AcceptUniStream on the other and SendDatagram on one side
// surfaces as ReceiveDatagram on the other. No network or QUIC stack is
// involved; this exists purely so the engine's handshake, control dispatch,
// and egress draining can be exercised end to end in tests.
type fakeConn struct {
	remoteAddr string
	peer       *fakeConn

	mu       sync.Mutex
	nextID   int64
	closed   bool
	closeErr error

	acceptBidi chan *fakeStream
	acceptUni  chan *fakeStream
	datagrams  chan []byte
	done       chan struct{}
}

// newFakeConnPair returns two connected fakeConns, as if one dialed the
// other.
func newFakeConnPair() (client, server *fakeConn) {
	client = &fakeConn{
		remoteAddr: "fake-server:443",
		acceptBidi: make(chan *fakeStream, 4),
		acceptUni:  make(chan *fakeStream, 16),
		datagrams:  make(chan []byte, 16),
		done:       make(chan struct{}),
	}
	server = &fakeConn{
		remoteAddr: "fake-client:51234",
		acceptBidi: make(chan *fakeStream, 4),
		acceptUni:  make(chan *fakeStream, 16),
		datagrams:  make(chan []byte, 16),
		done:       make(chan struct{}),
	}
	client.peer, server.peer = server, client
	return client, server
}

func (c *fakeConn) OpenStream() (transport.Stream, error) {
	return c.OpenStreamSync(context.Background())
}

func (c *fakeConn) OpenStreamSync(ctx context.Context) (transport.Stream, error) {
	c.mu.Lock()
	if c.closed {
		err := c.closeErr
		c.mu.Unlock()
		return nil, err
	}
	c.nextID++
	id := c.nextID
	c.mu.Unlock()

	mine, theirs := newBidiStreamPair(id)
	select {
	case c.peer.acceptBidi <- theirs:
		return mine, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) OpenUniStreamSync(ctx context.Context) (transport.Stream, error) {
	c.mu.Lock()
	if c.closed {
		err := c.closeErr
		c.mu.Unlock()
		return nil, err
	}
	c.nextID++
	id := c.nextID
	c.mu.Unlock()

	sender, receiver := newUniStreamPair(id)
	select {
	case c.peer.acceptUni <- receiver:
		return sender, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) AcceptStream(ctx context.Context) (transport.Stream, error) {
	select {
	case s := <-c.acceptBidi:
		return s, nil
	case <-c.done:
		return nil, c.closeErr
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) AcceptUniStream(ctx context.Context) (transport.Stream, error) {
	select {
	case s := <-c.acceptUni:
		return s, nil
	case <-c.done:
		return nil, c.closeErr
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) SendDatagram(payload []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return c.closeErr
	}
	cp := append([]byte(nil), payload...)
	select {
	case c.peer.datagrams <- cp:
	default:
		// peer isn't reading fast enough; datagrams are unreliable, so drop.
	}
	return nil
}

func (c *fakeConn) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	select {
	case p := <-c.datagrams:
		return p, nil
	case <-c.done:
		return nil, c.closeErr
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) CloseWithError(code uint64, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.closeErr = fmt.Errorf("fake: connection closed (code %d): %s", code, reason)
	close(c.done)
	return nil
}

func (c *fakeConn) Context() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-c.done
		cancel()
	}()
	return ctx
}

func (c *fakeConn) RemoteAddr() string { return c.remoteAddr }
