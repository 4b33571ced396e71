package history

import (
	"sync"

	"godds/internal/rtpscore"
)

// SampleState tracks whether a sample has been returned by a prior read/take.
type SampleState int

const (
	NotRead SampleState = iota
	Read
)

// ViewState tracks whether this is the first sample seen for an instance.
type ViewState int

const (
	New ViewState = iota
	NotNew
)

// InstanceState tracks an instance's liveliness as observed by a reader.
type InstanceState int

const (
	Alive InstanceState = iota
	NotAliveDisposed
	NotAliveNoWriters
)

// Sample is a received CacheChange plus the reader-local state spec.md
// §4.2 attaches to it.
type Sample struct {
	Change        rtpscore.CacheChange
	SampleState   SampleState
	ViewState     ViewState
	InstanceState InstanceState
}

// ReaderHistoryCache holds samples received from matched writers, indexed
// by (writer_guid, sequence_number) as spec.md §4.2 requires, plus the
// per-instance state needed to answer read/take with state masks.
type ReaderHistoryCache struct {
	mu             sync.RWMutex
	samples        []*Sample
	instanceViewed map[rtpscore.InstanceHandle]bool
	depth          int // KEEP_LAST depth per instance; 0 means unbounded
}

// NewReaderHistoryCache builds an empty cache. depth <= 0 means KEEP_ALL.
func NewReaderHistoryCache(depth int) *ReaderHistoryCache {
	return &ReaderHistoryCache{
		instanceViewed: make(map[rtpscore.InstanceHandle]bool),
		depth:          depth,
	}
}

// Contains reports whether a change from writer with the given sequence
// number is already present, implementing the "a CacheChange never appears
// twice" invariant (spec.md §4.1) for duplicate-detection on receipt.
func (c *ReaderHistoryCache) Contains(writerGUID rtpscore.GUID, seq rtpscore.SequenceNumber) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.samples {
		if s.Change.WriterGUID == writerGUID && s.Change.SequenceNumber == seq {
			return true
		}
	}
	return false
}

// Add inserts change as a new sample, computing its view state from whether
// this instance has been seen before, and evicting the oldest sample for
// the same instance if depth is exceeded (KEEP_LAST).
func (c *ReaderHistoryCache) Add(change rtpscore.CacheChange) *Sample {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := NotNew
	if !c.instanceViewed[change.InstanceHandle] {
		view = New
		c.instanceViewed[change.InstanceHandle] = true
	}

	instState := Alive
	switch change.Kind {
	case rtpscore.ChangeDisposed:
		instState = NotAliveDisposed
	case rtpscore.ChangeUnregistered:
		instState = NotAliveNoWriters
	}

	sample := &Sample{
		Change:        change,
		SampleState:   NotRead,
		ViewState:     view,
		InstanceState: instState,
	}
	c.samples = append(c.samples, sample)

	if c.depth > 0 {
		count := 0
		oldestIdx := -1
		for i, s := range c.samples {
			if s.Change.InstanceHandle == change.InstanceHandle {
				count++
				if oldestIdx == -1 {
					oldestIdx = i
				}
			}
		}
		if count > c.depth && oldestIdx >= 0 {
			c.samples = append(c.samples[:oldestIdx], c.samples[oldestIdx+1:]...)
		}
	}
	return sample
}

// Read returns samples matching the given state masks without removing
// them, marking each returned sample Read. A nil mask slice matches any
// value for that dimension.
func (c *ReaderHistoryCache) Read(sampleMask []SampleState, viewMask []ViewState, instanceMask []InstanceState) []*Sample {
	return c.selectAndConsume(sampleMask, viewMask, instanceMask, false)
}

// Take behaves like Read but removes matched samples from the cache.
func (c *ReaderHistoryCache) Take(sampleMask []SampleState, viewMask []ViewState, instanceMask []InstanceState) []*Sample {
	return c.selectAndConsume(sampleMask, viewMask, instanceMask, true)
}

func (c *ReaderHistoryCache) selectAndConsume(sampleMask []SampleState, viewMask []ViewState, instanceMask []InstanceState, remove bool) []*Sample {
	c.mu.Lock()
	defer c.mu.Unlock()

	var matched []*Sample
	var remaining []*Sample
	for _, s := range c.samples {
		if matches(s, sampleMask, viewMask, instanceMask) {
			matched = append(matched, s)
			if !remove {
				remaining = append(remaining, s)
			}
		} else {
			remaining = append(remaining, s)
		}
	}
	for _, s := range matched {
		s.SampleState = Read
	}
	c.samples = remaining
	return matched
}

func matches(s *Sample, sampleMask []SampleState, viewMask []ViewState, instanceMask []InstanceState) bool {
	if sampleMask != nil && !containsSample(sampleMask, s.SampleState) {
		return false
	}
	if viewMask != nil && !containsView(viewMask, s.ViewState) {
		return false
	}
	if instanceMask != nil && !containsInstance(instanceMask, s.InstanceState) {
		return false
	}
	return true
}

func containsSample(mask []SampleState, v SampleState) bool {
	for _, m := range mask {
		if m == v {
			return true
		}
	}
	return false
}

func containsView(mask []ViewState, v ViewState) bool {
	for _, m := range mask {
		if m == v {
			return true
		}
	}
	return false
}

func containsInstance(mask []InstanceState, v InstanceState) bool {
	for _, m := range mask {
		if m == v {
			return true
		}
	}
	return false
}

// Len reports how many samples the cache currently holds.
func (c *ReaderHistoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.samples)
}
