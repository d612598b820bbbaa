package wire

import (
	"bytes"
	"testing"
)

func TestBufferDecodeVarintAcrossPushes(t *testing.T) {
	t.Parallel()
	buf := NewBuffer()
	full := AppendVarint(nil, 1<<40)

	buf.Push(full[:1])
	if _, err := buf.DecodeVarint(); err != ErrNeedMore {
		t.Fatalf("partial push: err = %v, want ErrNeedMore", err)
	}

	buf.Push(full[1:])
	v, err := buf.DecodeVarint()
	if err != nil {
		t.Fatal(err)
	}
	if v != 1<<40 {
		t.Fatalf("value = %d, want %d", v, 1<<40)
	}
}

func TestBufferDecodeBytesAtomic(t *testing.T) {
	t.Parallel()
	buf := NewBuffer()
	payload := []byte("hello, world")
	framed := AppendVarintBytes(nil, payload)

	buf.Push(framed[:len(framed)-2])
	if _, err := buf.DecodeBytes(0); err != ErrNeedMore {
		t.Fatalf("partial frame: err = %v, want ErrNeedMore", err)
	}
	if buf.Len() != len(framed)-2 {
		t.Fatalf("partial decode consumed bytes; Len() = %d, want %d", buf.Len(), len(framed)-2)
	}

	buf.Push(framed[len(framed)-2:])
	got, err := buf.DecodeBytes(0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload = %q, want %q", got, payload)
	}
}

func TestBufferDecodeBytesLengthExceeded(t *testing.T) {
	t.Parallel()
	buf := NewBuffer()
	buf.Push(AppendVarintBytes(nil, make([]byte, 100)))
	if _, err := buf.DecodeBytes(10); err != ErrLengthExceeded {
		t.Fatalf("err = %v, want ErrLengthExceeded", err)
	}
}

func TestBufferCompaction(t *testing.T) {
	t.Parallel()
	buf := NewBuffer()
	for i := 0; i < 2000; i++ {
		buf.Push(AppendVarint(nil, uint64(i)))
	}
	for i := 0; i < 2000; i++ {
		v, err := buf.DecodeVarint()
		if err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
		if v != uint64(i) {
			t.Fatalf("value = %d, want %d", v, i)
		}
	}
	if buf.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", buf.Len())
	}
}

func TestParseStateLifecycle(t *testing.T) {
	t.Parallel()
	var ps ParseState[int]
	if ps.Active() {
		t.Fatal("expected inactive scratchpad before Start")
	}
	ps.Start(5)
	if !ps.Active() || ps.Value() != 5 {
		t.Fatalf("after Start: active=%v value=%d", ps.Active(), ps.Value())
	}
	ps.Update(9)
	if ps.Value() != 9 {
		t.Fatalf("after Update: value=%d, want 9", ps.Value())
	}
	ps.Reset()
	if ps.Active() || ps.Value() != 0 {
		t.Fatalf("after Reset: active=%v value=%d", ps.Active(), ps.Value())
	}
}

func TestSyncBufferConcurrentPushDecode(t *testing.T) {
	t.Parallel()
	sb := NewSyncBuffer()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			sb.Push(AppendVarint(nil, uint64(i)))
		}
		close(done)
	}()
	<-done
	count := 0
	for sb.Len() > 0 {
		if _, err := sb.DecodeVarint(); err != nil {
			t.Fatal(err)
		}
		count++
	}
	if count != 100 {
		t.Fatalf("decoded %d varints, want 100", count)
	}
}
