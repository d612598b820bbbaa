package track

import "testing"

func TestNamespaceEqualAndClone(t *testing.T) {
	t.Parallel()
	ns := Namespace{[]byte("example.org"), []byte("room1")}
	clone := ns.Clone()
	if !ns.Equal(clone) {
		t.Fatal("expected clone to equal original")
	}
	clone[0][0] = 'X'
	if ns.Equal(clone) {
		t.Fatal("mutating the clone should not affect the original")
	}
}

func TestNamespaceHasPrefix(t *testing.T) {
	t.Parallel()
	ns := Namespace{[]byte("example.org"), []byte("room1"), []byte("video")}
	prefix := Namespace{[]byte("example.org"), []byte("room1")}
	if !ns.HasPrefix(prefix) {
		t.Fatal("expected ns to have prefix")
	}
	if !ns.HasPrefix(Namespace{}) {
		t.Fatal("empty prefix should match everything")
	}
	if ns.HasPrefix(Namespace{[]byte("other")}) {
		t.Fatal("mismatched first component should not match")
	}
	if prefix.HasPrefix(ns) {
		t.Fatal("a shorter namespace cannot have a longer prefix")
	}
}

func TestNamespaceHashDistinguishesBoundaries(t *testing.T) {
	t.Parallel()
	a := Namespace{[]byte("ab"), []byte("c")}
	b := Namespace{[]byte("a"), []byte("bc")}
	if a.Hash() == b.Hash() {
		t.Fatal("expected different component boundaries to hash differently")
	}
}

func TestFullTrackNameEqualAndHash(t *testing.T) {
	t.Parallel()
	a := FullTrackName{Namespace: Namespace{[]byte("ns")}, Name: []byte("video")}
	b := FullTrackName{Namespace: Namespace{[]byte("ns")}, Name: []byte("video")}
	c := FullTrackName{Namespace: Namespace{[]byte("ns")}, Name: []byte("audio")}

	if !a.Equal(b) {
		t.Fatal("expected identical namespace+name to be equal")
	}
	if a.Equal(c) {
		t.Fatal("expected different names to be unequal")
	}
	if a.Hash() != b.Hash() {
		t.Fatal("expected identical FullTrackName to hash identically")
	}
	if a.Hash() == c.Hash() {
		t.Fatal("expected different FullTrackName to hash differently (with overwhelming probability)")
	}
}
