package wire

// ExtImmutable is the reserved extension tag that nests a second, frozen
// KV list inside its own value. It MUST NOT itself appear inside another
// immutable block (spec §3, §6).
const ExtImmutable uint64 = 0x0e

// Extension is a single tagged key/value pair from an object's extension
// block. Even tags carry a single varint Value; odd tags carry a
// length-prefixed Bytes payload.
type Extension struct {
	Tag   uint64
	Value uint64 // meaningful when Tag is even
	Bytes []byte // meaningful when Tag is odd
}

// IsVarint reports whether this extension's tag uses the even (varint
// value) encoding.
func (e Extension) IsVarint() bool { return e.Tag%2 == 0 }

// Extensions is a mutable list of extensions plus, when present, the
// separately-decoded immutable block nested under ExtImmutable.
type Extensions struct {
	Mutable   []Extension
	Immutable []Extension
	HasImmutable bool
}

// AppendExtensions serializes the extension block (total length prefix
// followed by each KVP) and appends it to buf.
func AppendExtensions(buf []byte, ext Extensions) []byte {
	body := appendExtensionList(nil, ext.Mutable)
	if ext.HasImmutable {
		inner := appendExtensionList(nil, ext.Immutable)
		body = AppendVarint(body, ExtImmutable)
		body = AppendVarintBytes(body, inner)
	}
	buf = AppendVarint(buf, uint64(len(body)))
	return append(buf, body...)
}

func appendExtensionList(buf []byte, list []Extension) []byte {
	for _, e := range list {
		if e.Tag == ExtImmutable {
			continue // immutable block is appended separately by the caller
		}
		buf = AppendVarint(buf, e.Tag)
		if e.IsVarint() {
			buf = AppendVarint(buf, e.Value)
		} else {
			buf = AppendVarintBytes(buf, e.Bytes)
		}
	}
	return buf
}

// DecodeExtensions reads a varint total_length followed by that many bytes
// of KV pairs from the front of b, returning the decoded Extensions and the
// number of bytes consumed (including the length prefix). It enforces that
// an immutable block never nests another immutable tag.
func DecodeExtensions(b []byte) (Extensions, int, error) {
	total, n, err := DecodeVarint(b)
	if err != nil {
		return Extensions{}, 0, err
	}
	if uint64(len(b)-n) < total {
		return Extensions{}, 0, ErrNeedMore
	}
	body := b[n : n+int(total)]

	var out Extensions
	pos := 0
	nested := false
	for pos < len(body) {
		tag, tn, err := DecodeVarint(body[pos:])
		if err != nil {
			return Extensions{}, 0, err
		}
		pos += tn

		if tag == ExtImmutable {
			if nested {
				return Extensions{}, 0, ErrImmutableNesting
			}
			innerBytes, bn, err := DecodeBytesAt(body[pos:])
			if err != nil {
				return Extensions{}, 0, err
			}
			pos += bn

			inner, _, err := decodeExtensionList(innerBytes, true)
			if err != nil {
				return Extensions{}, 0, err
			}
			out.Immutable = inner
			out.HasImmutable = true
			continue
		}

		if tag%2 == 0 {
			v, vn, err := DecodeVarint(body[pos:])
			if err != nil {
				return Extensions{}, 0, err
			}
			pos += vn
			out.Mutable = append(out.Mutable, Extension{Tag: tag, Value: v})
		} else {
			val, bn, err := DecodeBytesAt(body[pos:])
			if err != nil {
				return Extensions{}, 0, err
			}
			pos += bn
			out.Mutable = append(out.Mutable, Extension{Tag: tag, Bytes: val})
		}
	}

	return out, n + int(total), nil
}

// decodeExtensionList decodes a flat sequence of KVPs (no outer length
// prefix) from body, forbidding a nested immutable tag when nested is true.
func decodeExtensionList(body []byte, nested bool) ([]Extension, int, error) {
	var out []Extension
	pos := 0
	for pos < len(body) {
		tag, tn, err := DecodeVarint(body[pos:])
		if err != nil {
			return nil, 0, err
		}
		pos += tn

		if tag == ExtImmutable {
			if nested {
				return nil, 0, ErrImmutableNesting
			}
		}

		if tag%2 == 0 {
			v, vn, err := DecodeVarint(body[pos:])
			if err != nil {
				return nil, 0, err
			}
			pos += vn
			out = append(out, Extension{Tag: tag, Value: v})
		} else {
			val, bn, err := DecodeBytesAt(body[pos:])
			if err != nil {
				return nil, 0, err
			}
			pos += bn
			out = append(out, Extension{Tag: tag, Bytes: val})
		}
	}
	return out, pos, nil
}

// DecodeBytesAt reads a varint length prefix followed by that many bytes
// from the front of b, returning the payload and total bytes consumed.
func DecodeBytesAt(b []byte) ([]byte, int, error) {
	length, n, err := DecodeVarint(b)
	if err != nil {
		return nil, 0, err
	}
	end := n + int(length)
	if end > len(b) {
		return nil, 0, ErrNeedMore
	}
	out := make([]byte, length)
	copy(out, b[n:end])
	return out, end, nil
}
