// Package session holds per-QUIC-connection state and the transport engine
// that drives the MoQT control and data planes over it.
package session

import (
	"errors"
	"sync"

	"github.com/moqtransport/moqt/track"
)

// Role distinguishes which side of the handshake a connection played.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// ErrRequestIDNotMonotonic is returned when a peer reuses or decreases a
// request id; the caller must close the connection with PROTOCOL_VIOLATION.
var ErrRequestIDNotMonotonic = errors.New("session: request id is not strictly increasing")

// ErrDuplicateTrackAlias is returned by RegisterPublished when the
// namespace/name pair is already registered to a different publish handler
// on this connection. Track aliases themselves are not checked for
// collisions.
var ErrDuplicateTrackAlias = errors.New("session: duplicate track alias")

// requestEntry is whichever handler a request id currently correlates to:
// a SUBSCRIBE, FETCH, PUBLISH-NAMESPACE, or SUBSCRIBE-NAMESPACE exchange.
// Exactly one field is non-nil.
type requestEntry struct {
	subscribe   *track.SubscribeHandler
	fetch       *track.FetchHandler
	publishNS   *track.PublishNamespaceHandler
	subscribeNS *track.SubscribeNamespaceHandler

	// publish is bound when an inbound SUBSCRIBE resolves to one of our
	// own published tracks, so a later UNSUBSCRIBE can find it again.
	publish *track.PublishHandler
}

// Context holds all per-connection state named in the connection-context
// design: request id discipline, the four lookup maps, and the negotiated
// version. One Context exists per live QUIC connection, mirroring
// MoQSession's per-connection field set generalized to both client and
// server roles and to all track/namespace handler kinds, not just media
// subscriptions.
type Context struct {
	Role    Role
	Version uint64

	mu sync.Mutex

	setupComplete bool

	nextRequestID    uint64
	lastSeenRequestID uint64
	haveSeenRequestID bool

	byRequestID map[uint64]requestEntry

	// pubByNsHashByNameHash indexes published tracks by namespace hash then
	// name hash, the fast path an inbound SUBSCRIBE looks up against.
	pubByNsHashByNameHash map[uint64]map[uint64]*track.PublishHandler

	// pubByDataContextID indexes published tracks by the data-context id
	// the engine assigns when a publish handler attaches to this
	// connection, the fast path taken when a stream is about to carry data
	// for a specific published track.
	pubByDataContextID map[uint64]*track.PublishHandler

	// trackAliasToHandler resolves an inbound datagram or stream's
	// track_alias to the subscribe handler awaiting its objects.
	trackAliasToHandler map[uint64]*track.SubscribeHandler

	nextDataContextID uint64

	// streamParsers tracks the cancel func for each inbound unidirectional
	// stream's parse goroutine, keyed by QUIC stream id, so connection
	// teardown can stop them all without waiting for EOF.
	streamParsers map[int64]func()
}

// NewContext creates an empty connection context for the given role. The
// request id counter starts at 0 for both roles (client- and
// server-initiated requests share one monotonic space per connection in
// this engine, matching spec.md §4.7's single `next request id` field).
func NewContext(role Role) *Context {
	return &Context{
		Role:                  role,
		byRequestID:           make(map[uint64]requestEntry),
		pubByNsHashByNameHash: make(map[uint64]map[uint64]*track.PublishHandler),
		pubByDataContextID:    make(map[uint64]*track.PublishHandler),
		trackAliasToHandler:   make(map[uint64]*track.SubscribeHandler),
		streamParsers:         make(map[int64]func()),
	}
}

// RegisterStreamParser records the cancel func for streamID's parse
// goroutine, started when the engine accepts a new unidirectional stream.
func (c *Context) RegisterStreamParser(streamID int64, cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streamParsers[streamID] = cancel
}

// UnregisterStreamParser removes streamID's parser entry (called when the
// stream ends, whether by EOF or error).
func (c *Context) UnregisterStreamParser(streamID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.streamParsers, streamID)
}

// CancelAllStreamParsers stops every in-flight stream parse goroutine, used
// during connection teardown.
func (c *Context) CancelAllStreamParsers() {
	c.mu.Lock()
	cancels := make([]func(), 0, len(c.streamParsers))
	for _, cancel := range c.streamParsers {
		cancels = append(cancels, cancel)
	}
	c.streamParsers = make(map[int64]func())
	c.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// SetupComplete reports whether the CLIENT_SETUP/SERVER_SETUP exchange has
// finished. Until it has, the engine must reject every other message type.
func (c *Context) SetupComplete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setupComplete
}

// MarkSetupComplete records that the setup exchange finished, negotiating
// version.
func (c *Context) MarkSetupComplete(version uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setupComplete = true
	c.Version = version
}

// NextRequestID allocates the next request id this side will issue.
func (c *Context) NextRequestID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextRequestID
	c.nextRequestID++
	return id
}

// ObserveRequestID validates an inbound request id against the
// strictly-increasing invariant and records it as the new high-water mark.
func (c *Context) ObserveRequestID(id uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.haveSeenRequestID && id <= c.lastSeenRequestID {
		return ErrRequestIDNotMonotonic
	}
	c.lastSeenRequestID = id
	c.haveSeenRequestID = true
	return nil
}

// BindSubscribe registers a subscribe handler under requestID and its
// received track alias, so both request-id-keyed control messages (e.g.
// UNSUBSCRIBE) and alias-keyed data (datagrams/streams) can find it.
func (c *Context) BindSubscribe(requestID uint64, h *track.SubscribeHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byRequestID[requestID] = requestEntry{subscribe: h}
	c.trackAliasToHandler[h.TrackAlias()] = h
}

// BindFetch registers a fetch handler under requestID.
func (c *Context) BindFetch(requestID uint64, h *track.FetchHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byRequestID[requestID] = requestEntry{fetch: h}
}

// BindPublish registers a local publish handler under the request id of
// the inbound SUBSCRIBE it is now serving, so a later UNSUBSCRIBE or
// NEW_GROUP_REQUEST referencing that request id can find it again.
func (c *Context) BindPublish(requestID uint64, h *track.PublishHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byRequestID[requestID] = requestEntry{publish: h}
}

// PublishedByRequestID returns the publish handler bound to requestID, if
// any.
func (c *Context) PublishedByRequestID(requestID uint64) (*track.PublishHandler, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byRequestID[requestID]
	return e.publish, ok && e.publish != nil
}

// BindPublishNamespace registers an outstanding ANNOUNCE under requestID.
func (c *Context) BindPublishNamespace(requestID uint64, h *track.PublishNamespaceHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byRequestID[requestID] = requestEntry{publishNS: h}
}

// BindSubscribeNamespace registers an outstanding SUBSCRIBE_ANNOUNCES under
// requestID.
func (c *Context) BindSubscribeNamespace(requestID uint64, h *track.SubscribeNamespaceHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byRequestID[requestID] = requestEntry{subscribeNS: h}
}

// Subscribe returns the subscribe handler bound to requestID, if any.
func (c *Context) Subscribe(requestID uint64) (*track.SubscribeHandler, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byRequestID[requestID]
	return e.subscribe, ok && e.subscribe != nil
}

// Fetch returns the fetch handler bound to requestID, if any.
func (c *Context) Fetch(requestID uint64) (*track.FetchHandler, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byRequestID[requestID]
	return e.fetch, ok && e.fetch != nil
}

// PublishNamespace returns the publish-namespace handler bound to
// requestID, if any.
func (c *Context) PublishNamespace(requestID uint64) (*track.PublishNamespaceHandler, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byRequestID[requestID]
	return e.publishNS, ok && e.publishNS != nil
}

// SubscribeNamespace returns the subscribe-namespace handler bound to
// requestID, if any.
func (c *Context) SubscribeNamespace(requestID uint64) (*track.SubscribeNamespaceHandler, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byRequestID[requestID]
	return e.subscribeNS, ok && e.subscribeNS != nil
}

// ByTrackAlias resolves an inbound object's track_alias to the subscribe
// handler awaiting it.
func (c *Context) ByTrackAlias(alias uint64) (*track.SubscribeHandler, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.trackAliasToHandler[alias]
	return h, ok
}

// Unbind removes requestID's entry and, for a subscribe, its track alias
// mapping (used on SUBSCRIBE_ERROR, UNSUBSCRIBE, SUBSCRIBE_DONE and
// FETCH_ERROR). Published-track indexes are left in place.
func (c *Context) Unbind(requestID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byRequestID[requestID]
	if !ok {
		return
	}
	delete(c.byRequestID, requestID)
	if e.subscribe != nil {
		delete(c.trackAliasToHandler, e.subscribe.TrackAlias())
	}
}

// RegisterPublished indexes a publish handler by its namespace hash and
// name hash, the lookup an inbound SUBSCRIBE uses to find it, and assigns
// it a data-context id for the stream-egress fast path. It returns
// ErrDuplicateTrackAlias if the namespace/name pair is already registered
// to a different handler on this connection; trackAlias is not checked.
func (c *Context) RegisterPublished(nsHash, nameHash, trackAlias uint64, h *track.PublishHandler) (dataContextID uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byName, ok := c.pubByNsHashByNameHash[nsHash]
	if !ok {
		byName = make(map[uint64]*track.PublishHandler)
		c.pubByNsHashByNameHash[nsHash] = byName
	}
	if existing, ok := byName[nameHash]; ok && existing != h {
		return 0, ErrDuplicateTrackAlias
	}
	byName[nameHash] = h

	dataContextID = c.nextDataContextID
	c.nextDataContextID++
	c.pubByDataContextID[dataContextID] = h
	return dataContextID, nil
}

// LookupPublished resolves an inbound SUBSCRIBE's (namespace, name) hash
// pair to the publish handler serving it.
func (c *Context) LookupPublished(nsHash, nameHash uint64) (*track.PublishHandler, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byName, ok := c.pubByNsHashByNameHash[nsHash]
	if !ok {
		return nil, false
	}
	h, ok := byName[nameHash]
	return h, ok
}

// PublishedByDataContext resolves a data-context id to its publish handler.
func (c *Context) PublishedByDataContext(id uint64) (*track.PublishHandler, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.pubByDataContextID[id]
	return h, ok
}
