package wire

import "io"

// fieldReader sequentially decodes varints, bytes, and raw bytes from a
// single in-memory message body. Unlike Buffer, it is not meant to survive
// partial reads across calls — a control message body is always delivered
// whole (the control stream framing in control.go reads the full
// length-prefixed payload before handing it to the per-message decoder).
type fieldReader struct {
	data []byte
	pos  int
}

func newFieldReader(data []byte) *fieldReader {
	return &fieldReader{data: data}
}

func (r *fieldReader) varint() (uint64, error) {
	if r.pos >= len(r.data) {
		return 0, io.ErrUnexpectedEOF
	}
	v, n, err := DecodeVarint(r.data[r.pos:])
	if err != nil {
		return 0, err
	}
	r.pos += n
	return v, nil
}

func (r *fieldReader) byteVal() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, io.ErrUnexpectedEOF
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *fieldReader) bytes() ([]byte, error) {
	length, err := r.varint()
	if err != nil {
		return nil, err
	}
	end := r.pos + int(length)
	if end > len(r.data) {
		return nil, io.ErrUnexpectedEOF
	}
	v := r.data[r.pos:end]
	r.pos = end
	return v, nil
}

func (r *fieldReader) remaining() []byte {
	return r.data[r.pos:]
}

// namespaceTuple reads a track namespace tuple: [count(varint)] [len(varint) bytes]...
func (r *fieldReader) namespaceTuple() ([][]byte, error) {
	count, err := r.varint()
	if err != nil {
		return nil, err
	}
	parts := make([][]byte, count)
	for i := uint64(0); i < count; i++ {
		b, err := r.bytes()
		if err != nil {
			return nil, err
		}
		parts[i] = append([]byte(nil), b...)
	}
	return parts, nil
}

// AppendNamespaceTuple appends a namespace tuple to buf.
func AppendNamespaceTuple(buf []byte, parts [][]byte) []byte {
	buf = AppendVarint(buf, uint64(len(parts)))
	for _, p := range parts {
		buf = AppendVarintBytes(buf, p)
	}
	return buf
}
