// Package wire implements the MoQ Transport wire-level codec: the varint
// encoding, the byte-queue primitives used to accumulate partial reads from
// a QUIC stream, and the encode/decode pair for every control and data-plane
// message defined by draft-ietf-moq-transport-15.
//
// This package owns no session or transport-engine logic; that lives in
// [github.com/moqtransport/moqt/session].
package wire
