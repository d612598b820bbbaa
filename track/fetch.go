package track

import "sync"

// FetchStatus reports where a fetch handler stands with its peer.
type FetchStatus int

const (
	FetchNotConnected FetchStatus = iota
	FetchPendingResponse
	FetchOK
	FetchError
	FetchComplete
)

// FetchHandler represents one outstanding historical-range request. Unlike
// SubscribeHandler it has a natural end: the engine moves it to
// FetchComplete once the publisher's fetch stream closes.
type FetchHandler struct {
	base

	StartGroup  uint64
	StartObject uint64
	EndGroup    uint64
	EndObject   uint64
	Priority    byte

	ObjectReceived func(Object)
	StatusChanged  func(FetchStatus)

	Metrics Metrics

	mu     sync.RWMutex
	status FetchStatus
}

// NewFetchHandler constructs a handler for a standalone range fetch over
// [startGroup:startObject, endGroup:endObject].
func NewFetchHandler(name FullTrackName, startGroup, startObject, endGroup, endObject uint64) *FetchHandler {
	h := &FetchHandler{
		StartGroup:  startGroup,
		StartObject: startObject,
		EndGroup:    endGroup,
		EndObject:   endObject,
		status:      FetchNotConnected,
	}
	h.fullTrackName = name
	return h
}

// Status returns the handler's current fetch status.
func (h *FetchHandler) Status() FetchStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// SetStatus is called by the engine to transition status and fire the
// StatusChanged callback.
func (h *FetchHandler) SetStatus(s FetchStatus) {
	h.mu.Lock()
	h.status = s
	cb := h.StatusChanged
	h.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

// Deliver is called by the engine for every object arriving in the fetch
// response.
func (h *FetchHandler) Deliver(obj Object) {
	h.Metrics.ObjectsReceived.Add(1)
	h.Metrics.BytesReceived.Add(uint64(len(obj.Payload)))

	h.mu.RLock()
	cb := h.ObjectReceived
	h.mu.RUnlock()
	if cb != nil {
		cb(obj)
	}
}
