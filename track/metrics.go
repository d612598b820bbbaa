package track

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds the running counters a publish or subscribe handler
// accumulates for one track. ObjectsReceived and BytesReceived are updated
// by SubscribeHandler.Deliver from the engine's I/O goroutines; the session
// engine does not update ObjectsSent, BytesSent or ObjectsDropped. Fields
// are read by application code calling Snapshot, so all updates go through
// atomics rather than a mutex.
type Metrics struct {
	ObjectsSent     atomic.Uint64
	ObjectsReceived atomic.Uint64
	BytesSent       atomic.Uint64
	BytesReceived   atomic.Uint64
	ObjectsDropped  atomic.Uint64 // egress drops are counted by session.EgressQueue.Dropped, not here

	mu        sync.Mutex
	lastSnap  time.Time
	lastBytes uint64
	lastObjs  uint64
}

// Snapshot is a point-in-time read of a track's counters plus the send/
// receive rate computed since the previous Snapshot call.
type Snapshot struct {
	ObjectsSent     uint64
	ObjectsReceived uint64
	BytesSent       uint64
	BytesReceived   uint64
	ObjectsDropped  uint64
	BytesPerSecond  float64
	ObjectsPerSecond float64
}

// Snapshot reads the current counters and computes the rate since the
// previous call to Snapshot (or since the Metrics was created, for the
// first call). This mirrors the sample-period metric reset the original
// implementation's MetricsSampled callback drives, re-expressed as a pull
// rather than a push so it fits an idiomatic Go accessor.
func (m *Metrics) Snapshot() Snapshot {
	sent := m.BytesSent.Load()
	recv := m.BytesReceived.Load()
	objSent := m.ObjectsSent.Load()
	objRecv := m.ObjectsReceived.Load()

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	total := sent + recv
	totalObjs := objSent + objRecv

	var bps, ops float64
	if !m.lastSnap.IsZero() {
		elapsed := now.Sub(m.lastSnap).Seconds()
		if elapsed > 0 {
			bps = float64(total-m.lastBytes) / elapsed
			ops = float64(totalObjs-m.lastObjs) / elapsed
		}
	}

	m.lastSnap = now
	m.lastBytes = total
	m.lastObjs = totalObjs

	return Snapshot{
		ObjectsSent:      objSent,
		ObjectsReceived:  objRecv,
		BytesSent:        sent,
		BytesReceived:    recv,
		ObjectsDropped:   m.ObjectsDropped.Load(),
		BytesPerSecond:   bps,
		ObjectsPerSecond: ops,
	}
}
