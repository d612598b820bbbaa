package track

import "testing"

func TestFetchHandlerLifecycle(t *testing.T) {
	t.Parallel()
	h := NewFetchHandler(FullTrackName{Name: []byte("video")}, 0, 0, 10, 0)

	var statuses []FetchStatus
	h.StatusChanged = func(s FetchStatus) { statuses = append(statuses, s) }

	var objs []Object
	h.ObjectReceived = func(o Object) { objs = append(objs, o) }

	h.SetStatus(FetchPendingResponse)
	h.SetStatus(FetchOK)
	h.Deliver(Object{GroupID: 0, ObjectID: 0, Payload: []byte("a")})
	h.Deliver(Object{GroupID: 1, ObjectID: 0, Payload: []byte("b")})
	h.SetStatus(FetchComplete)

	if len(objs) != 2 {
		t.Fatalf("delivered %d objects, want 2", len(objs))
	}
	if len(statuses) != 3 || statuses[2] != FetchComplete {
		t.Fatalf("statuses = %v", statuses)
	}
	if snap := h.Metrics.Snapshot(); snap.ObjectsReceived != 2 {
		t.Fatalf("ObjectsReceived = %d, want 2", snap.ObjectsReceived)
	}
}
