package track

import "sync"

// Mode selects whether a track's objects travel as unreliable datagrams or
// as ordered subgroup streams.
type Mode int

const (
	ModeDatagram Mode = iota
	ModeStream
)

// Object is one decoded object delivered to a subscribe or fetch handler.
type Object struct {
	GroupID    uint64
	SubgroupID uint64
	ObjectID   uint64
	Priority   byte
	Extensions map[uint64][]byte // odd-tag (bytes) extensions, keyed by tag
	Values     map[uint64]uint64 // even-tag (varint) extensions, keyed by tag
	Payload    []byte
}

// base holds the fields and bookkeeping every handler kind shares. It
// replaces the original implementation's virtual base class: rather than
// handlers overriding base methods, the engine calls whichever callback
// field on the concrete handler is non-nil, per the accompanying design
// notes' sum-typed-handler decision.
type base struct {
	mu sync.RWMutex

	fullTrackName   FullTrackName
	connectionID    uint64
	requestID       uint64
	requestIDSet    bool
}

// FullTrackName returns the track this handler was created for.
func (b *base) FullTrackName() FullTrackName {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.fullTrackName
}

// SetTrackAlias records the alias the transport engine assigned this track
// once it went live.
func (b *base) SetTrackAlias(alias uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fullTrackName.TrackAlias = alias
}

// TrackAlias returns the alias assigned by SetTrackAlias, or 0 before one
// has been assigned.
func (b *base) TrackAlias() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.fullTrackName.TrackAlias
}

// SetConnectionID records which connection this handler is attached to.
// Only the engine calls this, when a handler is handed to a session.
func (b *base) SetConnectionID(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connectionID = id
}

// ConnectionID returns the connection this handler is attached to.
func (b *base) ConnectionID() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connectionID
}

// SetRequestID records the request ID this handler's SUBSCRIBE/PUBLISH/
// FETCH was issued under.
func (b *base) SetRequestID(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requestID = id
	b.requestIDSet = true
}

// RequestID returns the request ID set by SetRequestID, and whether one has
// been set yet.
func (b *base) RequestID() (uint64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.requestID, b.requestIDSet
}
