package track

import "sync"

// AnnounceStatus reports where a PublishNamespaceHandler's ANNOUNCE stands
// with its peer.
type AnnounceStatus int

const (
	AnnounceNotConnected AnnounceStatus = iota
	AnnouncePendingResponse
	AnnounceOK
	AnnounceNotAuthorized
	AnnounceSendingUnannounce
	AnnounceErrorStatus
)

// PublishNamespaceHandler represents one namespace this side has announced.
// A single announce can back many tracks; PublishTrack registers one.
type PublishNamespaceHandler struct {
	Prefix Namespace

	StatusChanged func(AnnounceStatus)

	mu       sync.RWMutex
	status   AnnounceStatus
	tracks   map[uint64]*PublishHandler // keyed by FullTrackName.Hash()
	requestID uint64
	hasRequestID bool
}

// NewPublishNamespaceHandler constructs a handler that will announce
// prefix once attached to a session.
func NewPublishNamespaceHandler(prefix Namespace) *PublishNamespaceHandler {
	return &PublishNamespaceHandler{
		Prefix: prefix,
		status: AnnounceNotConnected,
		tracks: make(map[uint64]*PublishHandler),
	}
}

// Status returns the handler's current announce status.
func (h *PublishNamespaceHandler) Status() AnnounceStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// SetStatus transitions status and fires StatusChanged.
func (h *PublishNamespaceHandler) SetStatus(s AnnounceStatus) {
	h.mu.Lock()
	h.status = s
	cb := h.StatusChanged
	h.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

// SetRequestID records the request ID this announce was issued under.
func (h *PublishNamespaceHandler) SetRequestID(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requestID = id
	h.hasRequestID = true
}

// RequestID returns the request ID set by SetRequestID, if any.
func (h *PublishNamespaceHandler) RequestID() (uint64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.requestID, h.hasRequestID
}

// PublishTrack registers a track under this namespace, returning a new
// PublishHandler for it. name.Namespace must fall under Prefix.
func (h *PublishNamespaceHandler) PublishTrack(name FullTrackName, mode Mode, defaultPriority byte, defaultTTLMS uint64) *PublishHandler {
	pt := NewPublishHandler(name, mode, defaultPriority, defaultTTLMS)
	h.mu.Lock()
	h.tracks[name.Hash()] = pt
	h.mu.Unlock()
	return pt
}

// Track returns the previously registered PublishHandler for name, if any.
func (h *PublishNamespaceHandler) Track(name FullTrackName) (*PublishHandler, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	pt, ok := h.tracks[name.Hash()]
	return pt, ok
}

// Tracks returns every track currently registered under this namespace.
func (h *PublishNamespaceHandler) Tracks() []*PublishHandler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*PublishHandler, 0, len(h.tracks))
	for _, pt := range h.tracks {
		out = append(out, pt)
	}
	return out
}

// SubscribeNamespaceStatus reports where a SubscribeNamespaceHandler's
// SUBSCRIBE_ANNOUNCES stands with its peer.
type SubscribeNamespaceStatus int

const (
	SubscribeNamespaceNotSubscribed SubscribeNamespaceStatus = iota
	SubscribeNamespaceOK
	SubscribeNamespaceError
)

// SubscribeNamespaceHandler expresses interest in any namespace under a
// prefix and is notified as publishers announce/unannounce under it.
type SubscribeNamespaceHandler struct {
	Prefix Namespace

	// TrackAvailable is a callback slot for a namespace under this prefix
	// that may return false to decline it. The session engine does not
	// invoke it, and this module never auto-subscribes.
	TrackAvailable func(ns Namespace) bool
	StatusChanged  func(SubscribeNamespaceStatus)

	mu        sync.RWMutex
	status    SubscribeNamespaceStatus
	requestID uint64
}

// NewSubscribeNamespaceHandler constructs a handler for the given prefix.
func NewSubscribeNamespaceHandler(prefix Namespace) *SubscribeNamespaceHandler {
	return &SubscribeNamespaceHandler{Prefix: prefix, status: SubscribeNamespaceNotSubscribed}
}

// Status returns the handler's current status.
func (h *SubscribeNamespaceHandler) Status() SubscribeNamespaceStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// SetStatus transitions status and fires StatusChanged.
func (h *SubscribeNamespaceHandler) SetStatus(s SubscribeNamespaceStatus) {
	h.mu.Lock()
	h.status = s
	cb := h.StatusChanged
	h.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

// SetRequestID records the request ID this subscribe-announces was issued
// under.
func (h *SubscribeNamespaceHandler) SetRequestID(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requestID = id
}

// RequestID returns the request ID set by SetRequestID.
func (h *SubscribeNamespaceHandler) RequestID() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.requestID
}

// Registry indexes namespace handlers by prefix, the
// pattern both the publish-side and subscribe-side namespace tables use to
// route an incoming ANNOUNCE or decide which SUBSCRIBE_ANNOUNCES registrants
// to notify.
type Registry[H any] struct {
	mu      sync.RWMutex
	entries map[string]entry[H]
}

type entry[H any] struct {
	prefix  Namespace
	handler H
}

// NewRegistry returns an empty Registry.
func NewRegistry[H any]() *Registry[H] {
	return &Registry[H]{entries: make(map[string]entry[H])}
}

func prefixKey(prefix Namespace) string {
	var b []byte
	for _, p := range prefix {
		b = append(b, byte(len(p)))
		b = append(b, p...)
	}
	return string(b)
}

// Add registers handler under prefix, replacing any existing registration
// for the identical prefix.
func (r *Registry[H]) Add(prefix Namespace, handler H) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[prefixKey(prefix)] = entry[H]{prefix: prefix, handler: handler}
}

// Remove unregisters the handler for the identical prefix, if present.
func (r *Registry[H]) Remove(prefix Namespace) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, prefixKey(prefix))
}

// MatchingPrefixes returns every registered handler whose prefix is a
// prefix of ns (i.e. every SUBSCRIBE_ANNOUNCES registrant an ANNOUNCE for ns
// must notify).
func (r *Registry[H]) MatchingPrefixes(ns Namespace) []H {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []H
	for _, e := range r.entries {
		if ns.HasPrefix(e.prefix) {
			out = append(out, e.handler)
		}
	}
	return out
}

// Exact returns the handler registered for the identical prefix, if any.
func (r *Registry[H]) Exact(prefix Namespace) (H, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[prefixKey(prefix)]
	return e.handler, ok
}
