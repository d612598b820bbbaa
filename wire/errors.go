package wire

import (
	"errors"
	"fmt"
)

// Sentinel errors for wire-level decode failures. These enable callers to
// distinguish failure modes with errors.Is instead of string matching.
var (
	// ErrNeedMore indicates the buffer does not yet contain a complete
	// field/message; the caller should retry once more bytes arrive.
	ErrNeedMore = errors.New("wire: need more data")

	// ErrInvalidVarint indicates a length prefix or varint tag that cannot
	// be satisfied by well-formed input (not a "needs more" condition).
	ErrInvalidVarint = errors.New("wire: invalid varint")

	// ErrLengthExceeded indicates a length prefix exceeded a caller-defined
	// ceiling. The owning connection must close with PROTOCOL_VIOLATION.
	ErrLengthExceeded = errors.New("wire: length prefix exceeds limit")

	// ErrImmutableNesting indicates an immutable extension block contained
	// a nested immutable tag, which draft-15 forbids.
	ErrImmutableNesting = errors.New("wire: immutable extension must not nest")

	// ErrUnknownMessageType indicates a required (not ignorable) message
	// type the decoder does not recognize.
	ErrUnknownMessageType = errors.New("wire: unknown message type")

	// ErrObjectIDNotMonotonic indicates a subgroup stream's object_delta
	// decoded to an object ID that did not strictly increase over the
	// previous object on the same stream. The peer must be closed with
	// PROTOCOL_VIOLATION.
	ErrObjectIDNotMonotonic = errors.New("wire: object id not monotonically increasing")
)

// ParseError indicates a failure to parse a specific field of a message. It
// wraps the underlying error and records the field name for diagnostics.
type ParseError struct {
	Message string
	Field   string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("wire: parse %s.%s: %v", e.Message, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
