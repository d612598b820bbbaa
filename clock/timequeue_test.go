package clock

import "testing"

func TestNewTimeQueueRejectsBadArgs(t *testing.T) {
	t.Parallel()
	ft := NewFakeTicker()
	cases := []struct {
		duration, interval uint64
	}{
		{0, 1},
		{10, 3},
		{10, 10},
	}
	for _, c := range cases {
		if _, err := NewTimeQueue[int](c.duration, c.interval, ft); err != ErrInvalidQueueArgs {
			t.Fatalf("duration=%d interval=%d: err = %v, want ErrInvalidQueueArgs", c.duration, c.interval, err)
		}
	}
}

func TestTimeQueuePushFrontOrder(t *testing.T) {
	t.Parallel()
	ft := NewFakeTicker()
	tq, err := NewTimeQueue[string](1000, 10, ft)
	if err != nil {
		t.Fatal(err)
	}

	if err := tq.Push("a", 500, 0); err != nil {
		t.Fatal(err)
	}
	if err := tq.Push("b", 500, 0); err != nil {
		t.Fatal(err)
	}

	e1 := tq.PopFront()
	if !e1.HasValue || e1.Value != "a" {
		t.Fatalf("first pop = %+v, want a", e1)
	}
	e2 := tq.PopFront()
	if !e2.HasValue || e2.Value != "b" {
		t.Fatalf("second pop = %+v, want b", e2)
	}
	if !tq.Empty() {
		t.Fatal("expected queue empty after draining")
	}
}

func TestTimeQueueExpiresOldEntries(t *testing.T) {
	t.Parallel()
	ft := NewFakeTicker()
	tq, err := NewTimeQueue[int](1000, 10, ft)
	if err != nil {
		t.Fatal(err)
	}

	if err := tq.Push(1, 20, 0); err != nil {
		t.Fatal(err)
	}
	ft.Advance(1000) // well past the 20ms ttl and the full 1000ms duration

	e := tq.Front()
	if e.HasValue {
		t.Fatalf("expected expired entry to be invisible, got %+v", e)
	}
	if e.ExpiredCount == 0 {
		t.Fatal("expected ExpiredCount > 0 for the expired push")
	}
}

func TestTimeQueueRejectsTTLExceedingDuration(t *testing.T) {
	t.Parallel()
	ft := NewFakeTicker()
	tq, err := NewTimeQueue[int](100, 10, ft)
	if err != nil {
		t.Fatal(err)
	}
	if err := tq.Push(1, 200, 0); err != ErrTTLExceedsDuration {
		t.Fatalf("err = %v, want ErrTTLExceedsDuration", err)
	}
}

func TestTimeQueueDelayTTLHoldsBackVisibility(t *testing.T) {
	t.Parallel()
	ft := NewFakeTicker()
	tq, err := NewTimeQueue[int](1000, 10, ft)
	if err != nil {
		t.Fatal(err)
	}
	if err := tq.Push(42, 500, 100); err != nil {
		t.Fatal(err)
	}

	if e := tq.Front(); e.HasValue {
		t.Fatalf("expected value withheld by delay_ttl, got %+v", e)
	}

	ft.Advance(150)
	e := tq.Front()
	if !e.HasValue || e.Value != 42 {
		t.Fatalf("expected value visible after delay elapsed, got %+v", e)
	}
}

func TestTimeQueueClampsBucketCount(t *testing.T) {
	t.Parallel()
	ft := NewFakeTicker()
	tq, err := NewTimeQueue[int](1_000_000, 1, ft)
	if err != nil {
		t.Fatal(err)
	}
	if tq.totalBuckets != MaxBuckets {
		t.Fatalf("totalBuckets = %d, want %d", tq.totalBuckets, MaxBuckets)
	}
}

func TestSafeTimeQueueConcurrentPush(t *testing.T) {
	t.Parallel()
	ft := NewFakeTicker()
	sq, err := NewSafeTimeQueue[int](1000, 10, ft)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			sq.Push(i, 500, 0)
		}
		close(done)
	}()
	<-done

	if sq.Size() != 50 {
		t.Fatalf("size = %d, want 50", sq.Size())
	}
}
