package endpoint

import (
	"sort"
	"sync"

	"godds/internal/history"
	"godds/internal/rtpscore"
	"godds/internal/wire"
)

// ReaderLocator is a stateless writer's per-destination record: a locator
// plus the set of sequence numbers not yet sent there. Used for SPDP
// participant announcement (spec.md §4.5) where there is no reader
// identity to track, only a destination address.
type ReaderLocator struct {
	Locator       rtpscore.Locator
	unsentChanges map[rtpscore.SequenceNumber]bool
	mu            sync.Mutex
}

func newReaderLocator(loc rtpscore.Locator) *ReaderLocator {
	return &ReaderLocator{Locator: loc, unsentChanges: make(map[rtpscore.SequenceNumber]bool)}
}

// StatelessWriter is a best-effort-only writer with no per-reader ack
// tracking, used for SPDP (spec.md §4.5).
type StatelessWriter struct {
	mu       sync.Mutex
	GUID     rtpscore.GUID
	cache    *history.WriterHistoryCache
	locators []*ReaderLocator
}

// NewStatelessWriter builds a stateless writer over the given cache.
func NewStatelessWriter(guid rtpscore.GUID, cache *history.WriterHistoryCache) *StatelessWriter {
	return &StatelessWriter{GUID: guid, cache: cache}
}

// AddReaderLocator registers a destination locator to announce to.
func (w *StatelessWriter) AddReaderLocator(loc rtpscore.Locator) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, rl := range w.locators {
		if rl.Locator == loc {
			return
		}
	}
	w.locators = append(w.locators, newReaderLocator(loc))
}

// AddChange appends change to the cache and marks it unsent to every
// registered reader-locator.
func (w *StatelessWriter) AddChange(change rtpscore.CacheChange) rtpscore.SequenceNumber {
	sn, _, _ := w.cache.AddChange(change)
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, rl := range w.locators {
		rl.mu.Lock()
		rl.unsentChanges[sn] = true
		rl.mu.Unlock()
	}
	return sn
}

// Flush returns a DATA submessage per (reader-locator, unsent change) pair,
// draining each locator's unsent set.
func (w *StatelessWriter) Flush() []OutboundSubmessage {
	w.mu.Lock()
	locators := append([]*ReaderLocator(nil), w.locators...)
	w.mu.Unlock()

	var out []OutboundSubmessage
	for _, rl := range locators {
		rl.mu.Lock()
		seqs := make([]rtpscore.SequenceNumber, 0, len(rl.unsentChanges))
		for sn := range rl.unsentChanges {
			seqs = append(seqs, sn)
		}
		sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
		for _, sn := range seqs {
			delete(rl.unsentChanges, sn)
		}
		rl.mu.Unlock()

		for _, sn := range seqs {
			change, ok := w.cache.GetChange(sn)
			if !ok {
				continue
			}
			out = append(out, OutboundSubmessage{
				Locators: []rtpscore.Locator{rl.Locator},
				Data: &wire.Data{
					ReaderID:          rtpscore.EntityIdUnknown,
					WriterID:          w.GUID.Entity,
					WriterSN:          sn,
					InlineQoS:         change.InlineQoS,
					SerializedPayload: change.SerializedPayload,
				},
			})
		}
	}
	return out
}
