package track

import "sync"

// SubscribeStatus reports where a subscribe handler stands with its peer.
type SubscribeStatus int

const (
	SubscribeNotConnected SubscribeStatus = iota
	SubscribePendingResponse
	SubscribeOK
	SubscribeError
	SubscribeNotAuthorized
	SubscribeSendingUnsubscribe
)

// FilterType selects which objects a SUBSCRIBE asks for; it mirrors the
// wire's filter_type field (wire.FilterNextGroupStart, etc.) so application
// code never constructs wire types directly.
type FilterType int

const (
	FilterLatestObject FilterType = iota
	FilterNextGroupStart
	FilterAbsoluteStart
	FilterAbsoluteRange
)

// SubscribeHandler represents one track this side has subscribed to (or is
// subscribing to). The engine delivers objects and status transitions
// through the callback fields; neither callback is required.
type SubscribeHandler struct {
	base

	FilterType  FilterType
	StartGroup  uint64
	StartObject uint64
	EndGroup    uint64
	Priority    byte

	// ObjectReceived is invoked for every object delivered on this track,
	// in delivery order within a subgroup (subgroups may interleave across
	// groups; the engine does not reorder across groups).
	ObjectReceived func(Object)

	// StatusChanged is invoked whenever the subscription's status
	// transitions, e.g. once SUBSCRIBE_OK/SUBSCRIBE_ERROR arrives.
	StatusChanged func(SubscribeStatus)

	// StatusReceived is invoked for an inbound Object Datagram Status:
	// the publisher reporting an object's status (end-of-group,
	// does-not-exist, ...) without sending a payload. Left nil, status
	// datagrams are dropped.
	StatusReceived func(groupID, objectID, statusCode uint64)

	Metrics Metrics

	mu     sync.RWMutex
	status SubscribeStatus
}

// NewSubscribeHandler constructs a handler for the given track and filter.
func NewSubscribeHandler(name FullTrackName, filter FilterType) *SubscribeHandler {
	h := &SubscribeHandler{FilterType: filter, status: SubscribeNotConnected}
	h.fullTrackName = name
	return h
}

// Status returns the handler's current subscribe status.
func (h *SubscribeHandler) Status() SubscribeStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// SetStatus is called by the engine to transition status and fire the
// StatusChanged callback.
func (h *SubscribeHandler) SetStatus(s SubscribeStatus) {
	h.mu.Lock()
	h.status = s
	cb := h.StatusChanged
	h.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

// Deliver is called by the engine for every object arriving on this
// subscription. It updates Metrics before invoking ObjectReceived.
func (h *SubscribeHandler) Deliver(obj Object) {
	h.Metrics.ObjectsReceived.Add(1)
	h.Metrics.BytesReceived.Add(uint64(len(obj.Payload)))

	h.mu.RLock()
	cb := h.ObjectReceived
	h.mu.RUnlock()
	if cb != nil {
		cb(obj)
	}
}

// DeliverStatus is called by the engine for an inbound Object Datagram
// Status addressed to this subscription.
func (h *SubscribeHandler) DeliverStatus(groupID, objectID, statusCode uint64) {
	h.mu.RLock()
	cb := h.StatusReceived
	h.mu.RUnlock()
	if cb != nil {
		cb(groupID, objectID, statusCode)
	}
}
