// Package track holds the handler types an application attaches to a
// session to publish, subscribe to, or fetch a single MoQ track, plus the
// namespace-prefix registries used to route ANNOUNCE/SUBSCRIBE_ANNOUNCES.
package track

import (
	"bytes"
	"hash/fnv"
)

// Namespace is an ordered tuple of namespace components, matching the wire
// representation's tuple-of-byte-strings (spec §3, §6).
type Namespace [][]byte

// Clone returns a deep copy of the namespace, so callers can retain a
// namespace past the lifetime of a decoded message buffer.
func (n Namespace) Clone() Namespace {
	out := make(Namespace, len(n))
	for i, part := range n {
		out[i] = append([]byte(nil), part...)
	}
	return out
}

// Equal reports whether n and other have identical components in the same
// order.
func (n Namespace) Equal(other Namespace) bool {
	if len(n) != len(other) {
		return false
	}
	for i := range n {
		if !bytes.Equal(n[i], other[i]) {
			return false
		}
	}
	return true
}

// HasPrefix reports whether n begins with every component of prefix, in
// order. An empty prefix matches every namespace.
func (n Namespace) HasPrefix(prefix Namespace) bool {
	if len(prefix) > len(n) {
		return false
	}
	for i := range prefix {
		if !bytes.Equal(n[i], prefix[i]) {
			return false
		}
	}
	return true
}

// Hash returns a 64-bit FNV-1a digest of the namespace tuple, used to key
// the per-connection namespace/name lookup maps. There is no third-party
// hashing library in the example corpus or its transitive dependency set;
// FNV-1a is the standard library's own general-purpose non-cryptographic
// hash and needs no justification beyond that absence.
func (n Namespace) Hash() uint64 {
	h := fnv.New64a()
	for _, part := range n {
		h.Write(part)
		h.Write([]byte{0}) // separator so ("ab","c") != ("a","bc")
	}
	return h.Sum64()
}

// FullTrackName identifies a track by namespace and name. TrackAlias is
// assigned by the local transport engine once a SUBSCRIBE or PUBLISH makes
// the track live; it is the zero value until then.
type FullTrackName struct {
	Namespace  Namespace
	Name       []byte
	TrackAlias uint64
}

// NameHash returns a 64-bit FNV-1a digest of the track name alone.
func NameHash(name []byte) uint64 {
	h := fnv.New64a()
	h.Write(name)
	return h.Sum64()
}

// Hash combines the namespace hash and name hash into a single key for maps
// keyed on "full track identity", such as PublishNamespaceHandler's track
// table.
func (f FullTrackName) Hash() uint64 {
	ns := f.Namespace.Hash()
	name := NameHash(f.Name)
	return (ns ^ (name << 1)) << 1 >> 2
}

// Equal reports whether f and other name the same namespace and track name.
func (f FullTrackName) Equal(other FullTrackName) bool {
	return f.Namespace.Equal(other.Namespace) && bytes.Equal(f.Name, other.Name)
}
