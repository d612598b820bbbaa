package wire

import "testing"

func TestFetchStreamHeaderRoundTrip(t *testing.T) {
	t.Parallel()
	h := FetchStreamHeader{RequestID: 12}
	buf := EncodeFetchStreamHeader(h)
	got, n, err := DecodeFetchStreamHeader(buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(buf) {
		t.Fatalf("consumed %d, want %d", n, len(buf))
	}
	if got.RequestID != 12 {
		t.Fatalf("request id = %d", got.RequestID)
	}
}

func TestFetchObjectRoundTrip(t *testing.T) {
	t.Parallel()
	o := FetchObject{GroupID: 1, SubgroupID: 0, ObjectID: 3, Priority: 64, Payload: []byte("payload")}
	got, n, err := DecodeFetchObject(EncodeFetchObject(o), false)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(EncodeFetchObject(o)) {
		t.Fatalf("consumed %d, want %d", n, len(EncodeFetchObject(o)))
	}
	if string(got.Payload) != "payload" {
		t.Fatalf("payload = %q", got.Payload)
	}
}

func TestFetchObjectAcrossGroups(t *testing.T) {
	t.Parallel()
	var stream []byte
	stream = append(stream, EncodeFetchObject(FetchObject{GroupID: 0, ObjectID: 0, Payload: []byte("g0o0")})...)
	stream = append(stream, EncodeFetchObject(FetchObject{GroupID: 1, ObjectID: 0, Payload: []byte("g1o0")})...)

	o1, n1, err := DecodeFetchObject(stream, false)
	if err != nil {
		t.Fatal(err)
	}
	o2, _, err := DecodeFetchObject(stream[n1:], false)
	if err != nil {
		t.Fatal(err)
	}
	if o1.GroupID != 0 || o2.GroupID != 1 {
		t.Fatalf("groups = %d, %d", o1.GroupID, o2.GroupID)
	}
}
