package session

import (
	"container/heap"
	"sync"
	"sync/atomic"

	"github.com/moqtransport/moqt/clock"
)

// EgressObject is one encoded object queued for transmission on behalf of a
// single publish handler, carrying enough framing for the engine to choose
// a datagram or a (group, subgroup) stream when it is finally sent.
type EgressObject struct {
	GroupID    uint64
	SubgroupID uint64
	ObjectID   uint64
	Priority   byte
	NewGroup   bool
	Extensions map[uint64][]byte
	Values     map[uint64]uint64
	Payload    []byte
}

type egressEntry struct {
	obj       EgressObject
	expiresAt uint64 // tick value; 0 = never expires
	seq       uint64 // enqueue order, breaks priority ties FIFO
}

// egressHeap orders entries by ascending priority value (0 = highest,
// matching spec.md's publisher_priority convention where lower numbers win)
// and, within equal priority, by enqueue order (oldest first).
type egressHeap []*egressEntry

func (h egressHeap) Len() int { return len(h) }
func (h egressHeap) Less(i, j int) bool {
	if h[i].obj.Priority != h[j].obj.Priority {
		return h[i].obj.Priority < h[j].obj.Priority
	}
	return h[i].seq < h[j].seq
}
func (h egressHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *egressHeap) Push(x any)   { *h = append(*h, x.(*egressEntry)) }
func (h *egressHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// EgressQueue is the priority-ordered, TTL-aware queue spec.md §4.8
// describes for per-track outbound objects: the engine pulls in priority
// order, oldest first within equal priority, dropping items whose TTL
// elapsed before they were sent. Each item keeps its own expiry tick read
// from the clock.Ticker for TTL bookkeeping. Grounded on trySendVideo's non-blocking-enqueue/drop-and-count
// idiom, generalized from a fixed-capacity channel to a priority heap
// bounded by MaxPending instead of channel capacity.
type EgressQueue struct {
	ticker clock.Ticker

	mu         sync.Mutex
	heap       egressHeap
	nextSeq    uint64
	maxPending int

	dropped atomic.Uint64
}

// NewEgressQueue creates an egress queue that drops the newest item once
// maxPending objects are already waiting. maxPending of 0 means
// unbounded.
func NewEgressQueue(ticker clock.Ticker, maxPending int) *EgressQueue {
	return &EgressQueue{ticker: ticker, maxPending: maxPending}
}

// Push enqueues obj with the given TTL in milliseconds (0 = never expires).
// It never blocks: once the queue is at capacity the new item is itself
// dropped and counted, matching trySendVideo's drop-newest behavior rather
// than evicting older, possibly higher-priority, queued work.
func (q *EgressQueue) Push(obj EgressObject, ttlMS uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.maxPending > 0 && len(q.heap) >= q.maxPending {
		q.dropped.Add(1)
		return
	}

	var expiresAt uint64
	if ttlMS > 0 {
		expiresAt = q.ticker.Milliseconds() + ttlMS
	}

	entry := &egressEntry{obj: obj, expiresAt: expiresAt, seq: q.nextSeq}
	q.nextSeq++
	heap.Push(&q.heap, entry)
}

// Pop removes and returns the highest-priority, oldest-enqueued object
// whose TTL has not elapsed, skipping and counting any expired entries
// found along the way. ok is false once no live object remains.
func (q *EgressQueue) Pop() (obj EgressObject, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.ticker.Milliseconds()
	for q.heap.Len() > 0 {
		entry := heap.Pop(&q.heap).(*egressEntry)
		if entry.expiresAt != 0 && now >= entry.expiresAt {
			q.dropped.Add(1)
			continue
		}
		return entry.obj, true
	}
	return EgressObject{}, false
}

// Len returns the number of objects currently queued, including any that
// have expired but have not yet been popped.
func (q *EgressQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

// Dropped returns the running count of objects dropped for capacity or TTL
// expiry.
func (q *EgressQueue) Dropped() uint64 {
	return q.dropped.Load()
}
