package track

import "testing"

func TestPublishHandlerObjectIDAutoIncrement(t *testing.T) {
	t.Parallel()
	h := NewPublishHandler(FullTrackName{Name: []byte("video")}, ModeStream, 128, 0)

	var gotIDs []uint64
	h.Attach(1, func(params SendParams, payload []byte) PublishError {
		gotIDs = append(gotIDs, *params.ObjectID)
		return PublishErrOK
	})

	for i := 0; i < 3; i++ {
		if err := h.PublishObject(SendParams{}, []byte("x")); err != PublishErrOK {
			t.Fatalf("PublishObject: %v", err)
		}
	}
	for i, id := range gotIDs {
		if id != uint64(i) {
			t.Fatalf("object id[%d] = %d, want %d", i, id, i)
		}
	}
}

func TestPublishHandlerNewGroupResetsObjectID(t *testing.T) {
	t.Parallel()
	h := NewPublishHandler(FullTrackName{Name: []byte("video")}, ModeStream, 128, 0)
	var gotIDs []uint64
	h.Attach(1, func(params SendParams, payload []byte) PublishError {
		gotIDs = append(gotIDs, *params.ObjectID)
		return PublishErrOK
	})

	h.PublishObject(SendParams{}, []byte("a"))
	h.PublishObject(SendParams{}, []byte("b"))
	h.PublishObject(SendParams{NewGroup: true}, []byte("c"))
	h.PublishObject(SendParams{}, []byte("d"))

	want := []uint64{0, 1, 0, 1}
	for i, id := range gotIDs {
		if id != want[i] {
			t.Fatalf("object id[%d] = %d, want %d", i, id, want[i])
		}
	}
}

func TestPublishHandlerDetachedReturnsInternalError(t *testing.T) {
	t.Parallel()
	h := NewPublishHandler(FullTrackName{Name: []byte("video")}, ModeStream, 128, 0)
	if err := h.PublishObject(SendParams{}, []byte("x")); err != PublishErrInternal {
		t.Fatalf("err = %v, want PublishErrInternal", err)
	}
}

func TestPublishHandlerPayloadLengthExceeded(t *testing.T) {
	t.Parallel()
	h := NewPublishHandler(FullTrackName{Name: []byte("video")}, ModeStream, 128, 0)
	h.MaxPayloadBytes = 4
	h.Attach(1, func(params SendParams, payload []byte) PublishError { return PublishErrOK })

	if err := h.PublishObject(SendParams{}, []byte("hello")); err != PublishErrPayloadLengthExceeded {
		t.Fatalf("err = %v, want PublishErrPayloadLengthExceeded", err)
	}
}

func TestPublishHandlerPartialObjectAssemblesPayload(t *testing.T) {
	t.Parallel()
	h := NewPublishHandler(FullTrackName{Name: []byte("video")}, ModeStream, 128, 0)
	var gotPayload []byte
	var gotID uint64
	h.Attach(1, func(params SendParams, payload []byte) PublishError {
		gotPayload = payload
		gotID = *params.ObjectID
		return PublishErrOK
	})

	objID := uint64(0)
	if err := h.PublishPartialObject(SendParams{ObjectID: &objID}, []byte("hel"), true); err != PublishErrContinuationDataNeeded {
		t.Fatalf("first chunk: err = %v, want PublishErrContinuationDataNeeded", err)
	}
	if err := h.PublishPartialObject(SendParams{ObjectID: &objID}, []byte("lo"), false); err != PublishErrOK {
		t.Fatalf("final chunk: err = %v", err)
	}
	if string(gotPayload) != "hello" {
		t.Fatalf("assembled payload = %q, want %q", gotPayload, "hello")
	}
	if gotID != 0 {
		t.Fatalf("object id = %d, want 0", gotID)
	}
}

func TestPublishHandlerPartialObjectRejectsInterleavedObject(t *testing.T) {
	t.Parallel()
	h := NewPublishHandler(FullTrackName{Name: []byte("video")}, ModeStream, 128, 0)
	h.Attach(1, func(params SendParams, payload []byte) PublishError { return PublishErrOK })

	first := uint64(0)
	if err := h.PublishPartialObject(SendParams{ObjectID: &first}, []byte("a"), true); err != PublishErrContinuationDataNeeded {
		t.Fatalf("open chunk: err = %v", err)
	}
	if err := h.PublishObject(SendParams{}, []byte("b")); err != PublishErrPreviousObjectNotComplete {
		t.Fatalf("interleaved PublishObject: err = %v, want PublishErrPreviousObjectNotComplete", err)
	}
}

func TestPublishHandlerStatusChangedCallback(t *testing.T) {
	t.Parallel()
	h := NewPublishHandler(FullTrackName{Name: []byte("video")}, ModeStream, 128, 0)
	var got []PublishStatus
	h.StatusChanged = func(s PublishStatus) { got = append(got, s) }

	h.SetStatus(PublishPendingAnnounce)
	h.SetStatus(PublishOK)

	if len(got) != 2 || got[0] != PublishPendingAnnounce || got[1] != PublishOK {
		t.Fatalf("got = %v", got)
	}
	if h.Status() != PublishOK {
		t.Fatalf("Status() = %v, want PublishOK", h.Status())
	}
}
