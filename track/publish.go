package track

import (
	"errors"
	"sync"
)

// PublishStatus reports where a publish handler stands with its peer.
type PublishStatus int

const (
	PublishNotConnected PublishStatus = iota
	PublishPendingAnnounce
	PublishOK
	PublishAnnounceNotAuthorized
	PublishNoSubscribers
	PublishSendingUnannounce
)

// PublishError is returned by PublishHandler.PublishObject.
type PublishError int

const (
	PublishErrOK PublishError = iota
	PublishErrInternal
	PublishErrNotAuthorized
	PublishErrNotAnnounced
	PublishErrNoSubscribers
	// PublishErrPayloadLengthExceeded is returned when a payload is larger
	// than the handler's MaxPayloadBytes.
	PublishErrPayloadLengthExceeded
	// PublishErrContinuationDataNeeded is returned by PublishPartialObject
	// when the call was accepted but the object is not yet complete — the
	// caller must keep calling PublishPartialObject with the remaining
	// bytes before starting a different object.
	PublishErrContinuationDataNeeded
	// PublishErrPreviousObjectNotComplete is returned when a caller starts
	// a new object (or a new group) while a partial object opened by
	// PublishPartialObject is still incomplete.
	PublishErrPreviousObjectNotComplete
)

func (e PublishError) Error() string {
	switch e {
	case PublishErrOK:
		return "ok"
	case PublishErrInternal:
		return "internal error"
	case PublishErrNotAuthorized:
		return "not authorized"
	case PublishErrNotAnnounced:
		return "namespace not announced"
	case PublishErrNoSubscribers:
		return "no subscribers"
	case PublishErrPayloadLengthExceeded:
		return "object payload length exceeded"
	case PublishErrContinuationDataNeeded:
		return "continuation data needed"
	case PublishErrPreviousObjectNotComplete:
		return "previous object not complete, must start new group"
	default:
		return "unknown publish error"
	}
}

// ErrHandlerDetached names the state of a handler whose send function the
// engine has detached, e.g. after the connection closed. PublishObject does
// not return it: it reports a detached handler as PublishErrInternal.
var ErrHandlerDetached = errors.New("track: handler detached from transport")

// SendParams overrides a publish handler's per-object group/priority/ttl
// defaults. Any zero field falls back to the handler's configured default.
type SendParams struct {
	GroupID   *uint64
	ObjectID  *uint64
	Priority  *byte
	TTLMillis *uint64
	NewGroup  bool // force this object to start a new group

	// Extensions carries odd-tag (length-prefixed) extension values, keyed
	// by tag. Nil means no byte-valued extensions.
	Extensions map[uint64][]byte
	// Values carries even-tag (varint) extension values, keyed by tag. Nil
	// means no varint-valued extensions.
	Values map[uint64]uint64
}

// PublishFunc is the engine-supplied function a PublishHandler calls to
// actually place an object on the wire (egress queue, stream write, or
// datagram send, depending on the track's Mode).
type PublishFunc func(params SendParams, payload []byte) PublishError

// PublishHandler represents one track this side is publishing. The engine
// drives StatusChanged as the ANNOUNCE/SUBSCRIBE lifecycle progresses;
// application code calls PublishObject to send data.
type PublishHandler struct {
	base

	Mode            Mode
	DefaultPriority byte
	DefaultTTLMS    uint64

	// StatusChanged, if set, is invoked by the engine whenever the
	// handler's status transitions. Left nil, status changes are silently
	// dropped — callers that don't care don't have to implement anything.
	StatusChanged func(PublishStatus)

	Metrics Metrics

	// MaxPayloadBytes caps a single PublishObject/PublishPartialObject
	// payload. Zero means no cap.
	MaxPayloadBytes uint64

	mu         sync.RWMutex
	status     PublishStatus
	sendFn     PublishFunc
	dataCtxID  uint64
	nextObject uint64

	// partial tracks an in-progress PublishPartialObject sequence so a
	// caller starting a different object before finishing this one gets
	// PublishErrPreviousObjectNotComplete instead of silently interleaving
	// payload bytes on the wire.
	partialOpen   bool
	partialParams SendParams
	partialBuf    []byte
}

// NewPublishHandler constructs a handler for the given track, ready to be
// passed to a session's Publish call.
func NewPublishHandler(name FullTrackName, mode Mode, defaultPriority byte, defaultTTLMS uint64) *PublishHandler {
	h := &PublishHandler{
		Mode:            mode,
		DefaultPriority: defaultPriority,
		DefaultTTLMS:    defaultTTLMS,
		status:          PublishNotConnected,
	}
	h.fullTrackName = name
	return h
}

// Status returns the handler's current publish status.
func (h *PublishHandler) Status() PublishStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// SetStatus is called by the engine to transition status and fire the
// StatusChanged callback.
func (h *PublishHandler) SetStatus(s PublishStatus) {
	h.mu.Lock()
	h.status = s
	cb := h.StatusChanged
	h.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

// Attach is called by the engine once the handler's track is live, wiring
// in the function that actually sends objects.
func (h *PublishHandler) Attach(dataCtxID uint64, fn PublishFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dataCtxID = dataCtxID
	h.sendFn = fn
}

// Detach clears the send function, e.g. once the connection has closed.
func (h *PublishHandler) Detach() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendFn = nil
}

// DataContextID returns the engine-assigned identifier for this track's
// egress data context.
func (h *PublishHandler) DataContextID() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dataCtxID
}

// PublishObject sends one object, filling in any SendParams left unset from
// the handler's defaults and auto-incrementing the object ID within the
// current group when params.ObjectID is nil.
func (h *PublishHandler) PublishObject(params SendParams, payload []byte) PublishError {
	if h.MaxPayloadBytes != 0 && uint64(len(payload)) > h.MaxPayloadBytes {
		return PublishErrPayloadLengthExceeded
	}

	h.mu.Lock()
	if h.partialOpen {
		h.mu.Unlock()
		return PublishErrPreviousObjectNotComplete
	}
	fn := h.sendFn
	if params.Priority == nil {
		p := h.DefaultPriority
		params.Priority = &p
	}
	if params.TTLMillis == nil {
		ttl := h.DefaultTTLMS
		params.TTLMillis = &ttl
	}
	if params.NewGroup {
		h.nextObject = 0
	}
	if params.ObjectID == nil {
		id := h.nextObject
		params.ObjectID = &id
		h.nextObject++
	}
	h.mu.Unlock()

	if fn == nil {
		return PublishErrInternal
	}
	return fn(params, payload)
}

// PublishPartialObject streams one object's payload across multiple calls.
// The first call for a given object opens it; pass more=true on every call
// except the last. A caller that starts a different object (a call with
// NewGroup set, or an explicit ObjectID/GroupID different from the open
// one) while the previous object is still incomplete gets
// PublishErrPreviousObjectNotComplete — it must finish or abandon the open
// object first.
func (h *PublishHandler) PublishPartialObject(params SendParams, payload []byte, more bool) PublishError {
	h.mu.Lock()
	if h.partialOpen && !sameObject(h.partialParams, params) {
		h.mu.Unlock()
		return PublishErrPreviousObjectNotComplete
	}
	if !h.partialOpen {
		h.partialOpen = true
		h.partialParams = params
		h.partialBuf = nil
	}
	h.partialBuf = append(h.partialBuf, payload...)
	if h.MaxPayloadBytes != 0 && uint64(len(h.partialBuf)) > h.MaxPayloadBytes {
		h.partialOpen = false
		h.partialBuf = nil
		h.mu.Unlock()
		return PublishErrPayloadLengthExceeded
	}
	if more {
		h.mu.Unlock()
		return PublishErrContinuationDataNeeded
	}

	complete := h.partialParams
	buf := h.partialBuf
	h.partialOpen = false
	h.partialParams = SendParams{}
	h.partialBuf = nil
	h.mu.Unlock()

	return h.PublishObject(complete, buf)
}

// sameObject reports whether two SendParams refer to the same in-progress
// object for PublishPartialObject's continuation check. Unset fields (nil
// pointers) are treated as matching, since callers commonly omit GroupID/
// ObjectID on every continuation call and let the handler's own sequencing
// carry them.
func sameObject(a, b SendParams) bool {
	if a.NewGroup != b.NewGroup {
		return false
	}
	if a.GroupID != nil && b.GroupID != nil && *a.GroupID != *b.GroupID {
		return false
	}
	if a.ObjectID != nil && b.ObjectID != nil && *a.ObjectID != *b.ObjectID {
		return false
	}
	return true
}
