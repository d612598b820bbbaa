package wire

import (
	"github.com/quic-go/quic-go/quicvarint"
)

// MaxVarint is the largest value representable by the MoQ/QUIC varint
// encoding: 2^62 - 1.
const MaxVarint = uint64(1)<<62 - 1

// AppendVarint appends the QUIC variable-length encoding of v to buf and
// returns the extended slice. The shortest of the four forms (1/2/4/8
// bytes) that can hold v is always chosen.
func AppendVarint(buf []byte, v uint64) []byte {
	return quicvarint.Append(buf, v)
}

// VarintLen returns the number of bytes AppendVarint(nil, v) would produce.
func VarintLen(v uint64) int {
	return int(quicvarint.Len(v))
}

// AppendVarintBytes appends a varint length prefix followed by data.
func AppendVarintBytes(buf []byte, data []byte) []byte {
	buf = AppendVarint(buf, uint64(len(data)))
	return append(buf, data...)
}

// DecodeVarint reads one varint from the front of b.
//
// It returns (value, bytesConsumed, nil) on success. If b is too short to
// hold the form its first byte declares, it returns ErrNeedMore so callers
// fed a partial stream can retry once more bytes arrive. b itself is never
// mutated.
func DecodeVarint(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, ErrNeedMore
	}
	n := varintFormLen(b[0])
	if len(b) < n {
		return 0, 0, ErrNeedMore
	}
	v, consumed, err := quicvarint.Parse(b[:n])
	if err != nil {
		return 0, 0, ErrInvalidVarint
	}
	return v, consumed, nil
}

// varintFormLen returns the total encoded length (including the first byte)
// that the top two bits of the first byte declare.
func varintFormLen(first byte) int {
	switch first >> 6 {
	case 0:
		return 1
	case 1:
		return 2
	case 2:
		return 4
	default:
		return 8
	}
}
