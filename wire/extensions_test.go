package wire

import "testing"

func TestExtensionsRoundTrip(t *testing.T) {
	t.Parallel()
	ext := Extensions{
		Mutable: []Extension{
			{Tag: 2, Value: 1234},
			{Tag: 13, Bytes: []byte{0xde, 0xad, 0xbe, 0xef}},
		},
	}
	buf := AppendExtensions(nil, ext)
	got, n, err := DecodeExtensions(buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(buf) {
		t.Fatalf("consumed %d bytes, want %d", n, len(buf))
	}
	if len(got.Mutable) != 2 {
		t.Fatalf("mutable count = %d, want 2", len(got.Mutable))
	}
	if got.Mutable[0].Value != 1234 {
		t.Fatalf("first extension value = %d, want 1234", got.Mutable[0].Value)
	}
	if string(got.Mutable[1].Bytes) != string([]byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Fatalf("second extension bytes = %v", got.Mutable[1].Bytes)
	}
	if got.HasImmutable {
		t.Fatal("expected no immutable block")
	}
}

func TestExtensionsWithImmutableBlock(t *testing.T) {
	t.Parallel()
	ext := Extensions{
		Mutable:      []Extension{{Tag: 2, Value: 7}},
		Immutable:    []Extension{{Tag: 4, Value: 99}},
		HasImmutable: true,
	}
	buf := AppendExtensions(nil, ext)
	got, _, err := DecodeExtensions(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !got.HasImmutable {
		t.Fatal("expected immutable block to decode")
	}
	if len(got.Immutable) != 1 || got.Immutable[0].Value != 99 {
		t.Fatalf("immutable extensions = %+v", got.Immutable)
	}
}

func TestExtensionsImmutableCannotNest(t *testing.T) {
	t.Parallel()
	// Hand-build an immutable block whose inner bytes themselves contain
	// another immutable tag, which must be rejected.
	inner := AppendVarint(nil, ExtImmutable)
	inner = AppendVarintBytes(inner, nil)
	body := AppendVarint(nil, ExtImmutable)
	body = AppendVarintBytes(body, inner)
	buf := AppendVarint(nil, uint64(len(body)))
	buf = append(buf, body...)

	if _, _, err := DecodeExtensions(buf); err != ErrImmutableNesting {
		t.Fatalf("err = %v, want ErrImmutableNesting", err)
	}
}

func TestExtensionsEmpty(t *testing.T) {
	t.Parallel()
	buf := AppendExtensions(nil, Extensions{})
	got, n, err := DecodeExtensions(buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(buf) {
		t.Fatalf("consumed %d, want %d", n, len(buf))
	}
	if len(got.Mutable) != 0 || got.HasImmutable {
		t.Fatalf("expected empty extensions, got %+v", got)
	}
}
