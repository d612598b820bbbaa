package track

import "testing"

func TestMetricsSnapshotCounters(t *testing.T) {
	t.Parallel()
	var m Metrics
	m.ObjectsSent.Add(3)
	m.BytesSent.Add(300)
	m.ObjectsReceived.Add(2)
	m.BytesReceived.Add(150)
	m.ObjectsDropped.Add(1)

	snap := m.Snapshot()
	if snap.ObjectsSent != 3 || snap.BytesSent != 300 {
		t.Fatalf("sent counters = %+v", snap)
	}
	if snap.ObjectsReceived != 2 || snap.BytesReceived != 150 {
		t.Fatalf("received counters = %+v", snap)
	}
	if snap.ObjectsDropped != 1 {
		t.Fatalf("ObjectsDropped = %d, want 1", snap.ObjectsDropped)
	}
	if snap.BytesPerSecond != 0 || snap.ObjectsPerSecond != 0 {
		t.Fatalf("first snapshot should report a zero rate, got %+v", snap)
	}
}

func TestMetricsSnapshotAccumulatesBetweenCalls(t *testing.T) {
	t.Parallel()
	var m Metrics
	m.Snapshot()

	m.ObjectsSent.Add(5)
	m.BytesSent.Add(500)
	snap := m.Snapshot()

	if snap.ObjectsSent != 5 || snap.BytesSent != 500 {
		t.Fatalf("counters after second add = %+v", snap)
	}
}
