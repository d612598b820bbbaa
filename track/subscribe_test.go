package track

import "testing"

func TestSubscribeHandlerDeliverUpdatesMetrics(t *testing.T) {
	t.Parallel()
	h := NewSubscribeHandler(FullTrackName{Name: []byte("video")}, FilterLatestObject)

	var got []Object
	h.ObjectReceived = func(o Object) { got = append(got, o) }

	h.Deliver(Object{ObjectID: 1, Payload: []byte("hello")})
	h.Deliver(Object{ObjectID: 2, Payload: []byte("wo")})

	if len(got) != 2 {
		t.Fatalf("delivered %d objects, want 2", len(got))
	}
	snap := h.Metrics.Snapshot()
	if snap.ObjectsReceived != 2 {
		t.Fatalf("ObjectsReceived = %d, want 2", snap.ObjectsReceived)
	}
	if snap.BytesReceived != 7 {
		t.Fatalf("BytesReceived = %d, want 7", snap.BytesReceived)
	}
}

func TestSubscribeHandlerStatusChanged(t *testing.T) {
	t.Parallel()
	h := NewSubscribeHandler(FullTrackName{Name: []byte("video")}, FilterLatestObject)
	var got SubscribeStatus
	h.StatusChanged = func(s SubscribeStatus) { got = s }

	h.SetStatus(SubscribeOK)
	if got != SubscribeOK || h.Status() != SubscribeOK {
		t.Fatalf("got = %v, Status() = %v", got, h.Status())
	}
}

func TestSubscribeHandlerNoCallbackDoesNotPanic(t *testing.T) {
	t.Parallel()
	h := NewSubscribeHandler(FullTrackName{Name: []byte("video")}, FilterLatestObject)
	h.Deliver(Object{ObjectID: 1, Payload: []byte("x")}) // no ObjectReceived set
	h.SetStatus(SubscribeError)                          // no StatusChanged set
}
