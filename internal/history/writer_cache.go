// Package history implements the writer- and reader-side sample stores of
// spec.md §4.2: ordered CacheChange sequences with sequence-number
// bookkeeping, KEEP_LAST/KEEP_ALL eviction, and reader-side sample/view/
// instance-state tracking.
//
// Grounded in shape on original_source/dds_rtps_implementation's
// RTPSHistoryCacheImpl (a flat slice of changes with add/remove/min/max),
// generalized to the spec's per-instance KEEP_LAST eviction and the
// reliable-writer "retain until acked" rule.
package history

import (
	"sort"
	"sync"

	"godds/internal/qos"
	"godds/internal/rtpscore"
)

// WriterHistoryCache holds the changes a local DataWriter has produced,
// plus the running sequence-number counter assigning each new change its
// number.
type WriterHistoryCache struct {
	mu       sync.RWMutex
	changes  []rtpscore.CacheChange
	nextSeq  rtpscore.SequenceNumber
	qosDepth qos.History
}

// NewWriterHistoryCache builds an empty cache governed by h (KEEP_LAST
// depth or KEEP_ALL).
func NewWriterHistoryCache(h qos.History) *WriterHistoryCache {
	return &WriterHistoryCache{nextSeq: 1, qosDepth: h}
}

// AddChange assigns the next sequence number to change and appends it,
// evicting the oldest Alive change for the same instance if a KEEP_LAST
// depth is exceeded (or that instance's oldest change if none is Alive).
// Returns the assigned sequence number and, if an eviction happened, the
// evicted change's sequence number.
func (c *WriterHistoryCache) AddChange(change rtpscore.CacheChange) (assigned rtpscore.SequenceNumber, evicted rtpscore.SequenceNumber, didEvict bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	change.SequenceNumber = c.nextSeq
	c.nextSeq++
	c.changes = append(c.changes, change)

	if c.qosDepth.Kind == qos.KeepLast && c.qosDepth.Depth > 0 {
		count := 0
		oldestIdx := -1
		oldestAliveIdx := -1
		for i, ch := range c.changes {
			if ch.InstanceHandle == change.InstanceHandle {
				count++
				if oldestIdx == -1 {
					oldestIdx = i
				}
				if oldestAliveIdx == -1 && ch.Kind == rtpscore.ChangeAlive {
					oldestAliveIdx = i
				}
			}
		}
		if oldestAliveIdx >= 0 {
			oldestIdx = oldestAliveIdx
		}
		if count > c.qosDepth.Depth && oldestIdx >= 0 {
			evicted = c.changes[oldestIdx].SequenceNumber
			didEvict = true
			c.changes = append(c.changes[:oldestIdx], c.changes[oldestIdx+1:]...)
		}
	}
	return change.SequenceNumber, evicted, didEvict
}

// RemoveChange deletes the change with the given sequence number, e.g.
// once every matched reliable reader has acknowledged it.
func (c *WriterHistoryCache) RemoveChange(seq rtpscore.SequenceNumber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, ch := range c.changes {
		if ch.SequenceNumber == seq {
			c.changes = append(c.changes[:i], c.changes[i+1:]...)
			return
		}
	}
}

// GetChange returns the change with the given sequence number, if present.
func (c *WriterHistoryCache) GetChange(seq rtpscore.SequenceNumber) (rtpscore.CacheChange, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range c.changes {
		if ch.SequenceNumber == seq {
			return ch, true
		}
	}
	return rtpscore.CacheChange{}, false
}

// MinSeq and MaxSeq return the lowest/highest sequence number currently
// held, or (0, false) if the cache is empty.
func (c *WriterHistoryCache) MinSeq() (rtpscore.SequenceNumber, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.changes) == 0 {
		return 0, false
	}
	min := c.changes[0].SequenceNumber
	for _, ch := range c.changes[1:] {
		if ch.SequenceNumber < min {
			min = ch.SequenceNumber
		}
	}
	return min, true
}

func (c *WriterHistoryCache) MaxSeq() (rtpscore.SequenceNumber, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.changes) == 0 {
		return 0, false
	}
	max := c.changes[0].SequenceNumber
	for _, ch := range c.changes[1:] {
		if ch.SequenceNumber > max {
			max = ch.SequenceNumber
		}
	}
	return max, true
}

// Since returns every change with sequence number >= from, in ascending
// order — the set a ReaderProxy needs resent after a GAP/HEARTBEAT round.
func (c *WriterHistoryCache) Since(from rtpscore.SequenceNumber) []rtpscore.CacheChange {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []rtpscore.CacheChange
	for _, ch := range c.changes {
		if ch.SequenceNumber >= from {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out
}

// Len reports how many changes the cache currently holds.
func (c *WriterHistoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.changes)
}
