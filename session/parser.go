package session

import (
	"errors"
	"fmt"
	"io"

	"github.com/moqtransport/moqt/track"
	"github.com/moqtransport/moqt/transport"
	"github.com/moqtransport/moqt/wire"
)

const readChunkSize = 4096

// streamReader incrementally fills a wire.Buffer from a transport.Stream.
// It is the parser_state spec.md's connection context names for each
// inbound unidirectional stream, realized here as a value owned by that
// stream's dedicated read goroutine rather than threaded through a shared
// map, since this engine drives I/O with one blocking goroutine per stream
// (the teacher's write-loop-per-subscription idiom, mirrored on the read
// side) instead of a single callback-driven event loop.
type streamReader struct {
	s   transport.Stream
	buf wire.Buffer
}

func newStreamReader(s transport.Stream) *streamReader {
	return &streamReader{s: s}
}

func (sr *streamReader) fill() error {
	chunk := make([]byte, readChunkSize)
	n, err := sr.s.Read(chunk)
	if n > 0 {
		sr.buf.Push(chunk[:n])
		return nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// isIncomplete reports whether err means "the decoder simply hasn't seen
// enough bytes yet". DecodeVarint reports this as wire.ErrNeedMore; the
// fixed-length-body decoders in the wire package (designed around an
// already-fully-buffered control message) report it as io.ErrUnexpectedEOF
// instead, since a short control message body never happens. Both mean the
// same thing when the bytes are arriving incrementally off a live stream.
func isIncomplete(err error) bool {
	return errors.Is(err, wire.ErrNeedMore) || errors.Is(err, io.ErrUnexpectedEOF)
}

// decodeRetry calls decode against whatever is currently buffered, pulling
// more bytes from the stream and retrying whenever decode reports an
// incomplete read.
func (sr *streamReader) decodeRetry(decode func([]byte) (int, error)) error {
	for {
		data, _ := sr.buf.FrontN(sr.buf.Len())
		n, err := decode(data)
		if err == nil {
			sr.buf.Pop(n)
			return nil
		}
		if !isIncomplete(err) {
			return err
		}
		if ferr := sr.fill(); ferr != nil {
			return ferr
		}
	}
}

// peekStreamType decodes (without consuming) the leading varint that
// identifies the stream type, filling the buffer as needed.
func (sr *streamReader) peekStreamType() (uint64, error) {
	for {
		data, _ := sr.buf.FrontN(sr.buf.Len())
		v, _, err := wire.DecodeVarint(data)
		if err == nil {
			return v, nil
		}
		if !isIncomplete(err) {
			return 0, err
		}
		if ferr := sr.fill(); ferr != nil {
			return 0, ferr
		}
	}
}

// ParseDataStream reads and dispatches one inbound unidirectional stream.
// It peeks the leading stream-type varint to decide between a subgroup
// stream and a fetch stream, then decodes and delivers objects until the
// peer closes the stream. ctx resolves track_alias (subgroup streams) or
// request_id (fetch streams) to the handler that should receive each
// object. Returning nil means the stream ended cleanly; a non-nil error
// other than io.EOF indicates a protocol violation the caller should close
// the connection over.
func ParseDataStream(ctx *Context, s transport.Stream) error {
	sr := newStreamReader(s)

	typ, err := sr.peekStreamType()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("session: stream type: %w", err)
	}

	if typ == wire.StreamTypeFetch {
		return parseFetchStream(ctx, sr)
	}
	return parseSubgroupStream(ctx, sr)
}

func parseSubgroupStream(ctx *Context, sr *streamReader) error {
	var header wire.SubgroupStreamHeader
	if err := sr.decodeRetry(func(b []byte) (int, error) {
		h, n, err := wire.DecodeSubgroupStreamHeader(b)
		if err != nil {
			return 0, err
		}
		header = h
		return n, nil
	}); err != nil {
		return fmt.Errorf("session: subgroup stream header: %w", err)
	}

	sub, ok := ctx.ByTrackAlias(header.TrackAlias)
	if !ok {
		return fmt.Errorf("session: subgroup stream for unknown track alias %d", header.TrackAlias)
	}

	subgroupID := header.SubgroupID
	firstObject := true
	var lastObjectID uint64

	for {
		var obj wire.SubgroupObject
		err := sr.decodeRetry(func(b []byte) (int, error) {
			o, n, err := wire.DecodeSubgroupObject(b, header.HasExtensions, lastObjectID, firstObject)
			if err != nil {
				return 0, err
			}
			obj = o
			return n, nil
		})
		if err != nil {
			if errors.Is(err, wire.ErrObjectIDNotMonotonic) {
				return fmt.Errorf("session: subgroup stream object id not monotonic: %w", err)
			}
			return nil // the peer closed the stream; no more objects follow
		}

		if firstObject && header.Mode == wire.SubgroupIDEqualsFirstObjectID {
			subgroupID = obj.ObjectID
		}
		firstObject = false
		lastObjectID = obj.ObjectID

		deliverObject(sub, header.GroupID, subgroupID, obj.ObjectID, 0, obj.Extensions, obj.Payload)
	}
}

func parseFetchStream(ctx *Context, sr *streamReader) error {
	var header wire.FetchStreamHeader
	if err := sr.decodeRetry(func(b []byte) (int, error) {
		h, n, err := wire.DecodeFetchStreamHeader(b)
		if err != nil {
			return 0, err
		}
		header = h
		return n, nil
	}); err != nil {
		return fmt.Errorf("session: fetch stream header: %w", err)
	}

	fh, ok := ctx.Fetch(header.RequestID)
	if !ok {
		return fmt.Errorf("session: fetch stream for unknown request id %d", header.RequestID)
	}

	for {
		var obj wire.FetchObject
		err := sr.decodeRetry(func(b []byte) (int, error) {
			o, n, err := wire.DecodeFetchObject(b, header.HasExtensions)
			if err != nil {
				return 0, err
			}
			obj = o
			return n, nil
		})
		if err != nil {
			fh.SetStatus(track.FetchComplete)
			return nil
		}

		deliverObject(fh, obj.GroupID, obj.SubgroupID, obj.ObjectID, obj.Priority, obj.Extensions, obj.Payload)
	}
}

// deliverer is satisfied by both *track.SubscribeHandler and
// *track.FetchHandler: both expose Deliver(track.Object).
type deliverer interface {
	Deliver(track.Object)
}

func deliverObject(d deliverer, groupID, subgroupID, objectID uint64, priority byte, ext wire.Extensions, payload []byte) {
	var values map[uint64]uint64
	var exts map[uint64][]byte
	for _, e := range ext.Mutable {
		if e.Bytes != nil {
			if exts == nil {
				exts = make(map[uint64][]byte)
			}
			exts[e.Tag] = e.Bytes
		} else {
			if values == nil {
				values = make(map[uint64]uint64)
			}
			values[e.Tag] = e.Value
		}
	}
	d.Deliver(track.Object{
		GroupID:    groupID,
		SubgroupID: subgroupID,
		ObjectID:   objectID,
		Priority:   priority,
		Extensions: exts,
		Values:     values,
		Payload:    payload,
	})
}
