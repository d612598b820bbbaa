package wire

import (
	"bytes"
	"testing"
)

func TestControlMsgRoundTrip(t *testing.T) {
	t.Parallel()
	payload := []byte("hello")
	var buf bytes.Buffer
	if err := WriteControlMsg(&buf, MsgClientSetup, payload); err != nil {
		t.Fatal(err)
	}

	msgType, got, err := ReadControlMsg(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if msgType != MsgClientSetup {
		t.Fatalf("message type = %#x, want %#x", msgType, MsgClientSetup)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload = %q, want %q", got, payload)
	}
}

func TestControlMsgEmptyPayload(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	if err := WriteControlMsg(&buf, MsgGoAway, nil); err != nil {
		t.Fatal(err)
	}

	msgType, got, err := ReadControlMsg(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if msgType != MsgGoAway {
		t.Fatalf("message type = %#x, want %#x", msgType, MsgGoAway)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty payload, got %d bytes", len(got))
	}
}

func TestControlMsgTruncatedType(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	if _, _, err := ReadControlMsg(&buf); err == nil {
		t.Fatal("expected error on empty input")
	}
}

func TestControlMsgTruncatedPayload(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	buf.Write(AppendVarint(nil, MsgClientSetup))
	buf.Write(AppendVarint(nil, 10))
	buf.Write([]byte{1, 2, 3}) // only 3 of 10 declared bytes

	if _, _, err := ReadControlMsg(&buf); err == nil {
		t.Fatal("expected error on truncated payload")
	}
}

func TestClientSetupRoundTrip(t *testing.T) {
	t.Parallel()
	m := ClientSetup{
		SupportedVersions: []uint64{Version, Version - 1},
		Params: Params{
			{Type: ParamPath, Bytes: []byte("/moq")},
			{Type: ParamMaxRequestID, Value: 1000},
		},
	}
	got, err := DecodeClientSetup(EncodeClientSetup(m))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.SupportedVersions) != 2 || got.SupportedVersions[0] != Version {
		t.Fatalf("versions = %v", got.SupportedVersions)
	}
	if b, ok := got.Params.BytesValue(ParamPath); !ok || string(b) != "/moq" {
		t.Fatalf("path param = %q, %v", b, ok)
	}
}

func TestServerSetupRoundTrip(t *testing.T) {
	t.Parallel()
	m := ServerSetup{SelectedVersion: Version}
	got, err := DecodeServerSetup(EncodeServerSetup(m))
	if err != nil {
		t.Fatal(err)
	}
	if got.SelectedVersion != Version {
		t.Fatalf("selected version = %#x, want %#x", got.SelectedVersion, Version)
	}
}

func TestSubscribeRoundTripLatestObject(t *testing.T) {
	t.Parallel()
	m := Subscribe{
		RequestID:          1,
		TrackAlias:         2,
		Namespace:          [][]byte{[]byte("example.org"), []byte("live")},
		TrackName:          []byte("video"),
		SubscriberPriority: 128,
		GroupOrder:         GroupOrderAscending,
		FilterType:         FilterLatestObject,
	}
	got, err := DecodeSubscribe(EncodeSubscribe(m))
	if err != nil {
		t.Fatal(err)
	}
	if got.RequestID != m.RequestID || got.TrackAlias != m.TrackAlias {
		t.Fatalf("ids = %+v", got)
	}
	if string(got.TrackName) != "video" {
		t.Fatalf("track name = %q", got.TrackName)
	}
	if len(got.Namespace) != 2 || string(got.Namespace[1]) != "live" {
		t.Fatalf("namespace = %v", got.Namespace)
	}
	if got.FilterType != FilterLatestObject {
		t.Fatalf("filter type = %d", got.FilterType)
	}
}

func TestSubscribeRoundTripAbsoluteRange(t *testing.T) {
	t.Parallel()
	m := Subscribe{
		RequestID:   5,
		TrackAlias:  6,
		Namespace:   [][]byte{[]byte("ns")},
		TrackName:   []byte("track"),
		FilterType:  FilterAbsoluteRange,
		StartGroup:  10,
		StartObject: 0,
		EndGroup:    20,
	}
	got, err := DecodeSubscribe(EncodeSubscribe(m))
	if err != nil {
		t.Fatal(err)
	}
	if got.StartGroup != 10 || got.EndGroup != 20 {
		t.Fatalf("range = %+v", got)
	}
}

func TestSubscribeOKRoundTripWithContent(t *testing.T) {
	t.Parallel()
	m := SubscribeOK{
		RequestID:     1,
		TrackAlias:    2,
		Expires:       5000,
		GroupOrder:    GroupOrderDescending,
		ContentExists: true,
		LargestGroup:  7,
		LargestObject: 3,
	}
	got, err := DecodeSubscribeOK(EncodeSubscribeOK(m))
	if err != nil {
		t.Fatal(err)
	}
	if !got.ContentExists || got.LargestGroup != 7 || got.LargestObject != 3 {
		t.Fatalf("got = %+v", got)
	}
}

func TestSubscribeOKRoundTripNoContent(t *testing.T) {
	t.Parallel()
	m := SubscribeOK{RequestID: 1, TrackAlias: 2, ContentExists: false}
	got, err := DecodeSubscribeOK(EncodeSubscribeOK(m))
	if err != nil {
		t.Fatal(err)
	}
	if got.ContentExists {
		t.Fatal("expected ContentExists = false")
	}
}

func TestSubscribeErrorRoundTrip(t *testing.T) {
	t.Parallel()
	m := SubscribeError{RequestID: 1, ErrorCode: ErrCodeTrackNotExist, ReasonPhrase: "no such track", TrackAlias: 9}
	got, err := DecodeSubscribeError(EncodeSubscribeError(m))
	if err != nil {
		t.Fatal(err)
	}
	if got.ErrorCode != ErrCodeTrackNotExist || got.ReasonPhrase != "no such track" || got.TrackAlias != 9 {
		t.Fatalf("got = %+v", got)
	}
}

func TestAnnounceFamilyRoundTrip(t *testing.T) {
	t.Parallel()
	ns := [][]byte{[]byte("example.org"), []byte("room1")}

	a := Announce{Namespace: ns}
	gotA, err := DecodeAnnounce(EncodeAnnounce(a))
	if err != nil {
		t.Fatal(err)
	}
	if len(gotA.Namespace) != 2 {
		t.Fatalf("namespace = %v", gotA.Namespace)
	}

	ok := AnnounceOK{Namespace: ns}
	gotOK, err := DecodeAnnounceOK(EncodeAnnounceOK(ok))
	if err != nil {
		t.Fatal(err)
	}
	if string(gotOK.Namespace[1]) != "room1" {
		t.Fatalf("namespace = %v", gotOK.Namespace)
	}

	ae := AnnounceError{Namespace: ns, ErrorCode: ErrCodeUnauthorized, ReasonPhrase: "denied"}
	gotAE, err := DecodeAnnounceError(EncodeAnnounceError(ae))
	if err != nil {
		t.Fatal(err)
	}
	if gotAE.ReasonPhrase != "denied" {
		t.Fatalf("reason = %q", gotAE.ReasonPhrase)
	}
}

func TestFetchStandaloneRoundTrip(t *testing.T) {
	t.Parallel()
	m := Fetch{
		RequestID:          3,
		SubscriberPriority: 64,
		GroupOrder:         GroupOrderAscending,
		FetchType:          FetchTypeStandalone,
		Namespace:          [][]byte{[]byte("ns")},
		TrackName:          []byte("track"),
		StartGroup:         0,
		StartObject:        0,
		EndGroup:           5,
		EndObject:          2,
	}
	got, err := DecodeFetch(EncodeFetch(m))
	if err != nil {
		t.Fatal(err)
	}
	if got.EndGroup != 5 || got.EndObject != 2 {
		t.Fatalf("got = %+v", got)
	}
}

func TestFetchJoiningRoundTrip(t *testing.T) {
	t.Parallel()
	m := Fetch{
		RequestID:            3,
		FetchType:            FetchTypeJoining,
		JoiningSubscribeID:   11,
		PrecedingGroupOffset: 2,
	}
	got, err := DecodeFetch(EncodeFetch(m))
	if err != nil {
		t.Fatal(err)
	}
	if got.JoiningSubscribeID != 11 || got.PrecedingGroupOffset != 2 {
		t.Fatalf("got = %+v", got)
	}
}

func TestGoAwayRoundTrip(t *testing.T) {
	t.Parallel()
	m := GoAway{NewSessionURI: "https://example.org/moq"}
	got, err := DecodeGoAway(EncodeGoAway(m))
	if err != nil {
		t.Fatal(err)
	}
	if got.NewSessionURI != m.NewSessionURI {
		t.Fatalf("uri = %q", got.NewSessionURI)
	}
}

func TestMaxRequestIDRoundTrip(t *testing.T) {
	t.Parallel()
	got, err := DecodeMaxRequestID(EncodeMaxRequestID(MaxRequestID{RequestID: 42}))
	if err != nil {
		t.Fatal(err)
	}
	if got.RequestID != 42 {
		t.Fatalf("request id = %d", got.RequestID)
	}
}

func TestNewGroupRequestRoundTrip(t *testing.T) {
	t.Parallel()
	got, err := DecodeNewGroupRequest(EncodeNewGroupRequest(NewGroupRequest{RequestID: 1, TrackAlias: 2}))
	if err != nil {
		t.Fatal(err)
	}
	if got.RequestID != 1 || got.TrackAlias != 2 {
		t.Fatalf("got = %+v", got)
	}
}
