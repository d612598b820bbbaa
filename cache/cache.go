// Package cache provides a TTL-bucketed key/value store for recently
// published objects, so a late-joining or reconnecting subscriber can be
// served recent history instead of only the live edge.
package cache

import (
	"errors"
	"sync"

	"golang.org/x/exp/constraints"

	"github.com/moqtransport/moqt/clock"
)

var (
	// ErrInvalidArgs is returned by New when duration/interval fail the
	// same constraints TimeQueue enforces.
	ErrInvalidArgs = errors.New("cache: invalid duration/interval")
	// ErrTTLExceedsDuration is returned by Insert when ttl exceeds the
	// cache's configured duration.
	ErrTTLExceedsDuration = errors.New("cache: ttl exceeds cache duration")
	// ErrInvalidRange is returned by range Contains/Get when start >= end.
	ErrInvalidRange = errors.New("cache: end key must be greater than start key")
)

// Cache stores values under ordered, incrementable keys (object or group
// IDs) and expires them on a bucketed TTL schedule, the same lazy,
// bulk-clear-on-advance scheme as clock.TimeQueue, but keyed for point and
// range lookup rather than FIFO consumption.
type Cache[K constraints.Integer, T any] struct {
	mu sync.Mutex

	durationMS   uint64
	intervalMS   uint64
	totalBuckets uint64

	bucketIdx    uint64
	currentTicks uint64

	buckets [][]K
	data    map[K]T

	ticker clock.Ticker
}

// New constructs a Cache spanning durationMS, divided into intervalMS
// buckets, reading elapsed time from ticker.
func New[K constraints.Integer, T any](durationMS, intervalMS uint64, ticker clock.Ticker) (*Cache[K, T], error) {
	if durationMS == 0 || intervalMS == 0 || durationMS%intervalMS != 0 || durationMS == intervalMS {
		return nil, ErrInvalidArgs
	}
	totalBuckets := durationMS / intervalMS
	return &Cache[K, T]{
		durationMS:   durationMS,
		intervalMS:   intervalMS,
		totalBuckets: totalBuckets,
		buckets:      make([][]K, totalBuckets),
		data:         make(map[K]T),
		ticker:       ticker,
	}, nil
}

// Size returns the number of live entries.
func (c *Cache[K, T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Empty reports whether the cache currently holds no entries.
func (c *Cache[K, T]) Empty() bool { return c.Size() == 0 }

// Insert stores value under key with the given ttl in milliseconds (0 means
// the cache's full duration), replacing any existing entry for key.
func (c *Cache[K, T]) Insert(key K, value T, ttlMS uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttlMS > c.durationMS {
		return ErrTTLExceedsDuration
	}
	if ttlMS == 0 {
		ttlMS = c.durationMS
	}
	relativeTTL := ttlMS / c.intervalMS

	c.advance()
	futureIdx := (c.bucketIdx + relativeTTL - 1) % c.totalBuckets
	c.buckets[futureIdx] = append(c.buckets[futureIdx], key)
	c.data[key] = value
	return nil
}

// Contains reports whether key is present and not yet expired.
func (c *Cache[K, T]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance()
	_, ok := c.data[key]
	return ok
}

// ContainsRange reports whether every key in [startKey, endKey) is present.
func (c *Cache[K, T]) ContainsRange(startKey, endKey K) (bool, error) {
	if startKey >= endKey {
		return false, ErrInvalidRange
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance()
	for k := startKey; k < endKey; k++ {
		if _, ok := c.data[k]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// Get returns the value stored under key and whether it was present.
func (c *Cache[K, T]) Get(key K) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance()
	v, ok := c.data[key]
	return v, ok
}

// GetRange returns the values for every key in [startKey, endKey), or
// (nil, false) if any key in the range is missing or expired.
func (c *Cache[K, T]) GetRange(startKey, endKey K) ([]T, bool, error) {
	if startKey >= endKey {
		return nil, false, ErrInvalidRange
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance()

	for k := startKey; k < endKey; k++ {
		if _, ok := c.data[k]; !ok {
			return nil, false, nil
		}
	}
	entries := make([]T, 0, int(endKey-startKey))
	for k := startKey; k < endKey; k++ {
		entries = append(entries, c.data[k])
	}
	return entries, true, nil
}

// First returns the value under the smallest live key. It scans every live
// key, since Go maps carry no ordering; callers needing this on a hot path
// should track the bound externally (the track handlers that build on this
// cache already know their lowest unexpired group/object ID).
func (c *Cache[K, T]) First() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance()
	return c.extreme(true)
}

// Last returns the value under the largest live key, with the same O(n)
// caveat as First.
func (c *Cache[K, T]) Last() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance()
	return c.extreme(false)
}

func (c *Cache[K, T]) extreme(smallest bool) (T, bool) {
	var zero T
	if len(c.data) == 0 {
		return zero, false
	}
	var bestKey K
	first := true
	for k := range c.data {
		if first || (smallest && k < bestKey) || (!smallest && k > bestKey) {
			bestKey = k
			first = false
		}
	}
	return c.data[bestKey], true
}

// Clear discards every entry.
func (c *Cache[K, T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

func (c *Cache[K, T]) clearLocked() {
	c.data = make(map[K]T)
	c.bucketIdx = 0
	for i := range c.buckets {
		c.buckets[i] = c.buckets[i][:0]
	}
}

func (c *Cache[K, T]) advance() {
	newTicks := c.ticker.Milliseconds()
	delta := (newTicks - c.currentTicks) / c.intervalMS
	c.currentTicks = newTicks

	if delta == 0 {
		return
	}
	if delta >= c.totalBuckets {
		c.clearLocked()
		return
	}
	for i := uint64(0); i < delta; i++ {
		idx := (c.bucketIdx + i) % c.totalBuckets
		for _, key := range c.buckets[idx] {
			delete(c.data, key)
		}
		c.buckets[idx] = c.buckets[idx][:0]
	}
	c.bucketIdx = (c.bucketIdx + delta) % c.totalBuckets
}
