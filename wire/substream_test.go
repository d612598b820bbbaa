package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestSubgroupStreamHeaderRoundTrip(t *testing.T) {
	t.Parallel()
	h := SubgroupStreamHeader{TrackAlias: 1, GroupID: 2, Mode: SubgroupIDExplicitValue, SubgroupID: 7, Priority: 128}
	buf := EncodeSubgroupStreamHeader(h)
	got, n, err := DecodeSubgroupStreamHeader(buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(buf) {
		t.Fatalf("consumed %d, want %d", n, len(buf))
	}
	if got.SubgroupID != 7 || got.Mode != SubgroupIDExplicitValue {
		t.Fatalf("got = %+v", got)
	}
}

func TestSubgroupStreamHeaderZeroID(t *testing.T) {
	t.Parallel()
	h := SubgroupStreamHeader{TrackAlias: 1, GroupID: 2, Mode: SubgroupIDIsZero, Priority: 0}
	got, _, err := DecodeSubgroupStreamHeader(EncodeSubgroupStreamHeader(h))
	if err != nil {
		t.Fatal(err)
	}
	if got.SubgroupID != 0 || got.Mode != SubgroupIDIsZero {
		t.Fatalf("got = %+v", got)
	}
}

func TestSubgroupObjectRoundTripWithPayload(t *testing.T) {
	t.Parallel()
	o := SubgroupObject{ObjectID: 4, Payload: []byte("chunk")}
	buf := EncodeSubgroupObject(o, 0, true)
	got, n, err := DecodeSubgroupObject(buf, false, 0, true)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(buf) {
		t.Fatalf("consumed %d, want %d", n, len(buf))
	}
	if got.ObjectID != o.ObjectID {
		t.Fatalf("object id = %d, want %d", got.ObjectID, o.ObjectID)
	}
	if !bytes.Equal(got.Payload, o.Payload) {
		t.Fatalf("payload = %q", got.Payload)
	}
}

func TestSubgroupObjectRoundTripStatusOnly(t *testing.T) {
	t.Parallel()
	o := SubgroupObject{ObjectID: 4, StatusCode: ObjectStatusEndOfGroup}
	got, _, err := DecodeSubgroupObject(EncodeSubgroupObject(o, 0, true), false, 0, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Payload) != 0 {
		t.Fatalf("expected empty payload, got %q", got.Payload)
	}
	if got.StatusCode != ObjectStatusEndOfGroup {
		t.Fatalf("status = %d", got.StatusCode)
	}
}

func TestSubgroupObjectSequenceOnOneStream(t *testing.T) {
	t.Parallel()
	var stream []byte
	stream = append(stream, EncodeSubgroupObject(SubgroupObject{ObjectID: 0, Payload: []byte("a")}, 0, true)...)
	stream = append(stream, EncodeSubgroupObject(SubgroupObject{ObjectID: 1, Payload: []byte("bb")}, 0, false)...)

	o1, n1, err := DecodeSubgroupObject(stream, false, 0, true)
	if err != nil {
		t.Fatal(err)
	}
	o2, n2, err := DecodeSubgroupObject(stream[n1:], false, o1.ObjectID, false)
	if err != nil {
		t.Fatal(err)
	}
	if string(o1.Payload) != "a" || string(o2.Payload) != "bb" {
		t.Fatalf("o1=%q o2=%q", o1.Payload, o2.Payload)
	}
	if o1.ObjectID != 0 || o2.ObjectID != 1 {
		t.Fatalf("object ids: got %d, %d", o1.ObjectID, o2.ObjectID)
	}
	if n1+n2 != len(stream) {
		t.Fatalf("total consumed %d, want %d", n1+n2, len(stream))
	}
}

func TestSubgroupObjectRejectsNonMonotonicDelta(t *testing.T) {
	t.Parallel()
	// A delta that doesn't advance the object id (second object repeats id 5)
	// must be rejected as a protocol violation, not silently accepted.
	buf := EncodeSubgroupObject(SubgroupObject{ObjectID: 5, Payload: []byte("x")}, 5, false)
	if _, _, err := DecodeSubgroupObject(buf, false, 5, false); !errors.Is(err, ErrObjectIDNotMonotonic) {
		t.Fatalf("err = %v, want ErrObjectIDNotMonotonic", err)
	}
}
