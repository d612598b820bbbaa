package wire

// Object Datagram and Object Datagram Status type values (spec §6, draft-15
// §9.2/§9.3). Both carry the extension-present bit in the low bit of the
// type, as the subgroup stream header does.
const (
	DatagramTypeObject       uint64 = 0x00 // no extensions
	DatagramTypeObjectExt    uint64 = 0x01 // extensions present
	DatagramTypeStatus       uint64 = 0x02
	DatagramTypeStatusExt    uint64 = 0x03
)

// Object status codes, carried either in an Object Datagram Status message
// or as the implicit status of a zero-length payload object on a stream.
const (
	ObjectStatusNormal          uint64 = 0x00
	ObjectStatusDoesNotExist    uint64 = 0x01
	ObjectStatusEndOfGroup      uint64 = 0x03
	ObjectStatusEndOfTrack      uint64 = 0x04
	ObjectStatusEndOfSubgroup   uint64 = 0x05
)

// ObjectDatagram is a single object sent standalone over a QUIC datagram,
// used for latency-sensitive tracks that can tolerate loss.
type ObjectDatagram struct {
	TrackAlias  uint64
	GroupID     uint64
	ObjectID    uint64
	Priority    byte
	Extensions  Extensions
	HasExtensions bool
	Payload     []byte
}

// EncodeObjectDatagram serializes an object for direct transmission over a
// QUIC unreliable datagram.
func EncodeObjectDatagram(m ObjectDatagram) []byte {
	typ := DatagramTypeObject
	if m.HasExtensions {
		typ = DatagramTypeObjectExt
	}
	buf := AppendVarint(nil, typ)
	buf = AppendVarint(buf, m.TrackAlias)
	buf = AppendVarint(buf, m.GroupID)
	buf = AppendVarint(buf, m.ObjectID)
	buf = append(buf, m.Priority)
	if m.HasExtensions {
		buf = AppendExtensions(buf, m.Extensions)
	}
	return append(buf, m.Payload...)
}

// DecodeObjectDatagram parses a complete datagram payload (QUIC datagrams
// are delivered whole, never partially).
func DecodeObjectDatagram(b []byte) (ObjectDatagram, error) {
	var m ObjectDatagram
	typ, n, err := DecodeVarint(b)
	if err != nil {
		return m, &ParseError{Message: "OBJECT_DATAGRAM", Field: "type", Err: err}
	}
	b = b[n:]
	m.HasExtensions = typ == DatagramTypeObjectExt

	r := newFieldReader(b)
	if m.TrackAlias, err = r.varint(); err != nil {
		return m, &ParseError{Message: "OBJECT_DATAGRAM", Field: "track_alias", Err: err}
	}
	if m.GroupID, err = r.varint(); err != nil {
		return m, &ParseError{Message: "OBJECT_DATAGRAM", Field: "group_id", Err: err}
	}
	if m.ObjectID, err = r.varint(); err != nil {
		return m, &ParseError{Message: "OBJECT_DATAGRAM", Field: "object_id", Err: err}
	}
	if m.Priority, err = r.byteVal(); err != nil {
		return m, &ParseError{Message: "OBJECT_DATAGRAM", Field: "priority", Err: err}
	}
	if m.HasExtensions {
		ext, consumed, err := DecodeExtensions(r.remaining())
		if err != nil {
			return m, &ParseError{Message: "OBJECT_DATAGRAM", Field: "extensions", Err: err}
		}
		m.Extensions = ext
		r.pos += consumed
	}
	m.Payload = append([]byte(nil), r.remaining()...)
	return m, nil
}

// ObjectDatagramStatus reports an object's status (end-of-group,
// does-not-exist, ...) without a payload, e.g. to signal a dropped or
// skipped object on an unreliable transport.
type ObjectDatagramStatus struct {
	TrackAlias    uint64
	GroupID       uint64
	ObjectID      uint64
	Priority      byte
	StatusCode    uint64
	Extensions    Extensions
	HasExtensions bool
}

func EncodeObjectDatagramStatus(m ObjectDatagramStatus) []byte {
	typ := DatagramTypeStatus
	if m.HasExtensions {
		typ = DatagramTypeStatusExt
	}
	buf := AppendVarint(nil, typ)
	buf = AppendVarint(buf, m.TrackAlias)
	buf = AppendVarint(buf, m.GroupID)
	buf = AppendVarint(buf, m.ObjectID)
	buf = append(buf, m.Priority)
	if m.HasExtensions {
		buf = AppendExtensions(buf, m.Extensions)
	}
	return AppendVarint(buf, m.StatusCode)
}

func DecodeObjectDatagramStatus(b []byte) (ObjectDatagramStatus, error) {
	var m ObjectDatagramStatus
	typ, n, err := DecodeVarint(b)
	if err != nil {
		return m, &ParseError{Message: "OBJECT_DATAGRAM_STATUS", Field: "type", Err: err}
	}
	b = b[n:]
	m.HasExtensions = typ == DatagramTypeStatusExt

	r := newFieldReader(b)
	if m.TrackAlias, err = r.varint(); err != nil {
		return m, &ParseError{Message: "OBJECT_DATAGRAM_STATUS", Field: "track_alias", Err: err}
	}
	if m.GroupID, err = r.varint(); err != nil {
		return m, &ParseError{Message: "OBJECT_DATAGRAM_STATUS", Field: "group_id", Err: err}
	}
	if m.ObjectID, err = r.varint(); err != nil {
		return m, &ParseError{Message: "OBJECT_DATAGRAM_STATUS", Field: "object_id", Err: err}
	}
	if m.Priority, err = r.byteVal(); err != nil {
		return m, &ParseError{Message: "OBJECT_DATAGRAM_STATUS", Field: "priority", Err: err}
	}
	if m.HasExtensions {
		ext, consumed, err := DecodeExtensions(r.remaining())
		if err != nil {
			return m, &ParseError{Message: "OBJECT_DATAGRAM_STATUS", Field: "extensions", Err: err}
		}
		m.Extensions = ext
		r.pos += consumed
	}
	if m.StatusCode, err = r.varint(); err != nil {
		return m, &ParseError{Message: "OBJECT_DATAGRAM_STATUS", Field: "status_code", Err: err}
	}
	return m, nil
}
