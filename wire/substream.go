package wire

// Subgroup Stream type values (draft-15 §9.4.1). The low bit marks whether
// extensions are present on every object of the stream; the next two bits
// select how the subgroup ID is carried.
const (
	subgroupExtBit       uint64 = 0x01
	subgroupIDZero       uint64 = 0x00 << 1 // subgroup_id == 0, omitted
	subgroupIDExplicit   uint64 = 0x01 << 1 // subgroup_id carried as a varint
	subgroupIDFirstObj   uint64 = 0x02 << 1 // subgroup_id == first object_id in the stream
	streamTypeSubgroupBase uint64 = 0x08
)

// ExtGroupIDGap is the extension tag carrying the gap between a track's
// previous group ID and the one that just started, set on the first object
// of a new group whenever that group's ID does not immediately follow the
// last one delivered. Even tag, so the value rides in Extension.Value as a
// varint rather than in Extension.Bytes. The numeric tag isn't pinned by
// any single MoQT draft (it has shifted across drafts); this module uses
// 0x40, named after the original implementation's kPriorGroupIdGap.
const ExtGroupIDGap uint64 = 0x40

// SubgroupIDMode selects how a SubgroupStreamHeader's subgroup ID is
// represented on the wire.
type SubgroupIDMode int

const (
	SubgroupIDIsZero SubgroupIDMode = iota
	SubgroupIDExplicitValue
	SubgroupIDEqualsFirstObjectID
)

// SubgroupStreamHeader is written once at the start of a QUIC unidirectional
// stream carrying one subgroup's objects in order.
type SubgroupStreamHeader struct {
	TrackAlias    uint64
	GroupID       uint64
	SubgroupID    uint64
	Mode          SubgroupIDMode
	Priority      byte
	HasExtensions bool
}

// EncodeSubgroupStreamHeader serializes the stream-type byte and header
// fields that precede the first object on a subgroup stream.
func EncodeSubgroupStreamHeader(h SubgroupStreamHeader) []byte {
	typ := streamTypeSubgroupBase
	switch h.Mode {
	case SubgroupIDIsZero:
		typ |= subgroupIDZero
	case SubgroupIDExplicitValue:
		typ |= subgroupIDExplicit
	case SubgroupIDEqualsFirstObjectID:
		typ |= subgroupIDFirstObj
	}
	if h.HasExtensions {
		typ |= subgroupExtBit
	}

	buf := AppendVarint(nil, typ)
	buf = AppendVarint(buf, h.TrackAlias)
	buf = AppendVarint(buf, h.GroupID)
	if h.Mode == SubgroupIDExplicitValue {
		buf = AppendVarint(buf, h.SubgroupID)
	}
	return append(buf, h.Priority)
}

// DecodeSubgroupStreamHeader reads a subgroup stream header from the front
// of b, returning the header and the number of bytes consumed.
func DecodeSubgroupStreamHeader(b []byte) (SubgroupStreamHeader, int, error) {
	var h SubgroupStreamHeader
	typ, n, err := DecodeVarint(b)
	if err != nil {
		return h, 0, &ParseError{Message: "SUBGROUP_HEADER", Field: "stream_type", Err: err}
	}
	h.HasExtensions = typ&subgroupExtBit != 0
	switch (typ >> 1) & 0x03 {
	case 0:
		h.Mode = SubgroupIDIsZero
	case 1:
		h.Mode = SubgroupIDExplicitValue
	case 2:
		h.Mode = SubgroupIDEqualsFirstObjectID
	default:
		return h, 0, &ParseError{Message: "SUBGROUP_HEADER", Field: "stream_type", Err: ErrUnknownMessageType}
	}

	r := newFieldReader(b[n:])
	if h.TrackAlias, err = r.varint(); err != nil {
		return h, 0, &ParseError{Message: "SUBGROUP_HEADER", Field: "track_alias", Err: err}
	}
	if h.GroupID, err = r.varint(); err != nil {
		return h, 0, &ParseError{Message: "SUBGROUP_HEADER", Field: "group_id", Err: err}
	}
	if h.Mode == SubgroupIDExplicitValue {
		if h.SubgroupID, err = r.varint(); err != nil {
			return h, 0, &ParseError{Message: "SUBGROUP_HEADER", Field: "subgroup_id", Err: err}
		}
	}
	if h.Priority, err = r.byteVal(); err != nil {
		return h, 0, &ParseError{Message: "SUBGROUP_HEADER", Field: "priority", Err: err}
	}
	return h, n + r.pos, nil
}

// SubgroupObject is one object on an already-headered subgroup stream.
// ObjectID is carried here as the object's absolute ID; on the wire it is
// object_delta, a varint that carries the ObjectID itself for a stream's
// first record and the gap since the previous record's ObjectID thereafter (draft-15 §9.4.1). Encode/
// DecodeSubgroupObject take the previous ObjectID and a first-record flag so
// callers never touch delta arithmetic directly.
type SubgroupObject struct {
	ObjectID      uint64
	Extensions    Extensions
	HasExtensions bool
	StatusCode    uint64 // meaningful only when Payload is empty
	Payload       []byte
}

// EncodeSubgroupObject serializes one object body onto a subgroup stream
// (the stream header itself is written once via EncodeSubgroupStreamHeader).
// prevObjectID is ignored when first is true. The caller is responsible for
// tracking prevObjectID/first per stream (it resets whenever a new subgroup
// stream is opened).
func EncodeSubgroupObject(o SubgroupObject, prevObjectID uint64, first bool) []byte {
	delta := o.ObjectID
	if !first {
		delta = o.ObjectID - prevObjectID
	}
	buf := AppendVarint(nil, delta)
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

// DecodeSubgroupObject reads one object from the front of b. hasExtensions
// must be known from the enclosing stream header, since it applies
// uniformly to every object on the stream. prevObjectID/first carry the
// running-sum state the caller maintains across a stream's objects; on
// return, o.ObjectID is the accumulated absolute ID. A delta whose
// accumulation would not strictly increase the object ID (including via
// uint64 wraparound) is rejected with ErrObjectIDNotMonotonic, per draft-15
// §4.6's requirement that object IDs within a subgroup strictly increase.
func DecodeSubgroupObject(b []byte, hasExtensions bool, prevObjectID uint64, first bool) (SubgroupObject, int, error) {
	var o SubgroupObject
	r := newFieldReader(b)
	var err error
	var delta uint64
	if delta, err = r.varint(); err != nil {
		return o, 0, &ParseError{Message: "SUBGROUP_OBJECT", Field: "object_delta", Err: err}
	}
	if first {
		o.ObjectID = delta
	} else {
		o.ObjectID = prevObjectID + delta
		if o.ObjectID <= prevObjectID {
			return o, 0, &ParseError{Message: "SUBGROUP_OBJECT", Field: "object_delta", Err: ErrObjectIDNotMonotonic}
		}
	}
	o.HasExtensions = hasExtensions
	if hasExtensions {
		ext, consumed, err := DecodeExtensions(r.remaining())
		if err != nil {
			return o, 0, &ParseError{Message: "SUBGROUP_OBJECT", Field: "extensions", Err: err}
		}
		o.Extensions = ext
		r.pos += consumed
	}
	payloadLen, err := r.varint()
	if err != nil {
		return o, 0, &ParseError{Message: "SUBGROUP_OBJECT", Field: "payload_length", Err: err}
	}
	if payloadLen == 0 {
		if o.StatusCode, err = r.varint(); err != nil {
			return o, 0, &ParseError{Message: "SUBGROUP_OBJECT", Field: "status_code", Err: err}
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
