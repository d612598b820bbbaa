package wire

// StreamTypeFetch is the stream-type byte that opens a Fetch Stream,
// carrying the response to a FETCH request. Unlike a subgroup stream, a
// fetch stream can span multiple groups, so every object carries its own
// group and subgroup IDs. Bit 0x08 (fetchExtBit) marks whether extensions
// are present on every object of the stream, mirroring the subgroup
// stream's stream-wide extensions bit.
const StreamTypeFetch uint64 = 0x05

const fetchExtBit uint64 = 0x08

// FetchStreamHeader is written once at the start of a fetch response
// stream.
type FetchStreamHeader struct {
	RequestID     uint64
	HasExtensions bool
}

func EncodeFetchStreamHeader(h FetchStreamHeader) []byte {
	typ := StreamTypeFetch
	if h.HasExtensions {
		typ |= fetchExtBit
	}
	buf := AppendVarint(nil, typ)
	return AppendVarint(buf, h.RequestID)
}

func DecodeFetchStreamHeader(b []byte) (FetchStreamHeader, int, error) {
	var h FetchStreamHeader
	typ, n, err := DecodeVarint(b)
	if err != nil {
		return h, 0, &ParseError{Message: "FETCH_HEADER", Field: "stream_type", Err: err}
	}
	h.HasExtensions = typ&fetchExtBit != 0
	if typ&^fetchExtBit != StreamTypeFetch {
		return h, 0, &ParseError{Message: "FETCH_HEADER", Field: "stream_type", Err: ErrUnknownMessageType}
	}
	r := newFieldReader(b[n:])
	if h.RequestID, err = r.varint(); err != nil {
		return h, 0, &ParseError{Message: "FETCH_HEADER", Field: "request_id", Err: err}
	}
	return h, n + r.pos, nil
}

// FetchObject is one object within a fetch response, fully self-describing
// since a single fetch stream may cross group and subgroup boundaries.
type FetchObject struct {
	GroupID       uint64
	SubgroupID    uint64
	ObjectID      uint64
	Priority      byte
	Extensions    Extensions
	HasExtensions bool
	StatusCode    uint64 // meaningful only when Payload is empty
	Payload       []byte
}

func EncodeFetchObject(o FetchObject) []byte {
	buf := AppendVarint(nil, o.GroupID)
	buf = AppendVarint(buf, o.SubgroupID)
	buf = AppendVarint(buf, o.ObjectID)
	buf = append(buf, o.Priority)
	if o.HasExtensions {
		buf = AppendExtensions(buf, o.Extensions)
	}
	buf = AppendVarint(buf, uint64(len(o.Payload)))
	if len(o.Payload) == 0 {
		buf = AppendVarint(buf, o.StatusCode)
		return buf
	}
	return append(buf, o.Payload...)
}

func DecodeFetchObject(b []byte, hasExtensions bool) (FetchObject, int, error) {
	var o FetchObject
	r := newFieldReader(b)
	var err error
	if o.GroupID, err = r.varint(); err != nil {
		return o, 0, &ParseError{Message: "FETCH_OBJECT", Field: "group_id", Err: err}
	}
	if o.SubgroupID, err = r.varint(); err != nil {
		return o, 0, &ParseError{Message: "FETCH_OBJECT", Field: "subgroup_id", Err: err}
	}
	if o.ObjectID, err = r.varint(); err != nil {
		return o, 0, &ParseError{Message: "FETCH_OBJECT", Field: "object_id", Err: err}
	}
	if o.Priority, err = r.byteVal(); err != nil {
		return o, 0, &ParseError{Message: "FETCH_OBJECT", Field: "priority", Err: err}
	}
	o.HasExtensions = hasExtensions
	if hasExtensions {
		ext, consumed, err := DecodeExtensions(r.remaining())
		if err != nil {
			return o, 0, &ParseError{Message: "FETCH_OBJECT", Field: "extensions", Err: err}
		}
		o.Extensions = ext
		r.pos += consumed
	}
	payloadLen, err := r.varint()
	if err != nil {
		return o, 0, &ParseError{Message: "FETCH_OBJECT", Field: "payload_length", Err: err}
	}
	if payloadLen == 0 {
		if o.StatusCode, err = r.varint(); err != nil {
			return o, 0, &ParseError{Message: "FETCH_OBJECT", Field: "status_code", Err: err}
		}
		return o, r.pos, nil
	}
	rest := r.remaining()
	if uint64(len(rest)) < payloadLen {
		return o, 0, ErrNeedMore
	}
	o.Payload = append([]byte(nil), rest[:payloadLen]...)
	r.pos += int(payloadLen)
	return o, r.pos, nil
}
