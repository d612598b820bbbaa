package wire

import "testing"

func TestParamsRoundTrip(t *testing.T) {
	t.Parallel()
	params := Params{
		{Type: ParamMaxRequestID, Value: 100},
		{Type: ParamPath, Bytes: []byte("/moq")},
	}
	buf := AppendParams(nil, params)
	got, err := decodeParams(newFieldReader(buf))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("param count = %d, want 2", len(got))
	}
	if v, ok := got.VarintValue(ParamMaxRequestID); !ok || v != 100 {
		t.Fatalf("VarintValue(ParamMaxRequestID) = %d, %v", v, ok)
	}
	if b, ok := got.BytesValue(ParamPath); !ok || string(b) != "/moq" {
		t.Fatalf("BytesValue(ParamPath) = %q, %v", b, ok)
	}
}

func TestParamsEmpty(t *testing.T) {
	t.Parallel()
	buf := AppendParams(nil, nil)
	got, err := decodeParams(newFieldReader(buf))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no params, got %d", len(got))
	}
}

func TestParamsUnknownLookupMiss(t *testing.T) {
	t.Parallel()
	params := Params{{Type: ParamRole, Value: 1}}
	if _, ok := params.VarintValue(ParamMaxRequestID); ok {
		t.Fatal("expected lookup miss for absent param type")
	}
}
