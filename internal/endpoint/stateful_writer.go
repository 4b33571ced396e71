package endpoint

import (
	"sync"
	"time"

	"godds/internal/history"
	"godds/internal/qos"
	"godds/internal/rtpscore"
	"godds/internal/wire"
)

// OutboundSubmessage pairs a decoded submessage with the destination
// locators it must be sent to, letting transport stay ignorant of RTPS
// semantics.
type OutboundSubmessage struct {
	Locators []rtpscore.Locator
	InfoDst  *rtpscore.GUID // set when the destination participant is known, for an INFO_DST submessage
	Data     *wire.Data
	DataFrag *wire.DataFrag
	Heartbeat *wire.Heartbeat
	Gap      *wire.Gap
}

// StatefulWriter drives one reliable or best-effort local DataWriter's
// matched-reader bookkeeping: the send algorithm of spec.md §4.3.
type StatefulWriter struct {
	mu sync.Mutex

	GUID            rtpscore.GUID
	Reliable        bool
	FragmentSize    int
	HeartbeatPeriod time.Duration

	cache         *history.WriterHistoryCache
	readers       map[rtpscore.GUID]*ReaderProxy
	lastHeartbeat time.Time
}

// NewStatefulWriter builds a writer over the given history cache.
func NewStatefulWriter(guid rtpscore.GUID, reliable bool, fragmentSize int, heartbeatPeriod time.Duration, cache *history.WriterHistoryCache) *StatefulWriter {
	return &StatefulWriter{
		GUID:            guid,
		Reliable:        reliable,
		FragmentSize:    fragmentSize,
		HeartbeatPeriod: heartbeatPeriod,
		cache:           cache,
		readers:         make(map[rtpscore.GUID]*ReaderProxy),
	}
}

// AddMatchedReader registers remote as matched, choosing its
// first-relevant-sample sequence number per spec.md §4.3's durability rule.
func (w *StatefulWriter) AddMatchedReader(remote rtpscore.GUID, durability qos.DurabilityKind, reliable bool) *ReaderProxy {
	w.mu.Lock()
	defer w.mu.Unlock()
	if rp, ok := w.readers[remote]; ok {
		return rp
	}
	var firstRelevant rtpscore.SequenceNumber = 1
	if durability == qos.Volatile {
		if max, ok := w.cache.MaxSeq(); ok {
			firstRelevant = max + 1
		} else {
			firstRelevant = 1
		}
	}
	rp := NewReaderProxy(remote, reliable, firstRelevant)
	w.readers[remote] = rp
	return rp
}

// RemoveMatchedReader unregisters remote, e.g. on SEDP dispose or lease
// expiry.
func (w *StatefulWriter) RemoveMatchedReader(remote rtpscore.GUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.readers, remote)
}

// MatchedReaderCount reports how many readers are currently matched.
func (w *StatefulWriter) MatchedReaderCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.readers)
}

// IsAcknowledgedByAll reports whether every matched reliable reader has
// acknowledged sn, for wait_for_acknowledgments (spec.md §4.2/§5).
func (w *StatefulWriter) IsAcknowledgedByAll(sn rtpscore.SequenceNumber) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, rp := range w.readers {
		if rp.Reliable && rp.Unacked(sn) {
			return false
		}
	}
	return true
}

// OnAckNack processes an ACKNACK from remote, returning the resend work it
// triggers.
func (w *StatefulWriter) OnAckNack(remote rtpscore.GUID, ack wire.AckNack) []OutboundSubmessage {
	w.mu.Lock()
	rp, ok := w.readers[remote]
	w.mu.Unlock()
	if !ok || !rp.Reliable || !rp.AcceptAckNack(int32(ack.Count)) {
		return nil
	}
	rp.AckedChangesSet(ack.ReaderSNState.Base - 1)
	rp.RequestedChangesSet(ack.ReaderSNState.Set())
	return w.sendToReader(rp)
}

// OnNackFrag processes a NACK_FRAG, treating the named sequence number as
// requested again (spec.md §4.3: "union that single sequence into
// requested").
func (w *StatefulWriter) OnNackFrag(remote rtpscore.GUID, nf wire.NackFrag) []OutboundSubmessage {
	w.mu.Lock()
	rp, ok := w.readers[remote]
	w.mu.Unlock()
	if !ok || !rp.Reliable || !rp.AcceptNackFrag(int32(nf.Count)) {
		return nil
	}
	rp.RequestedChangesSet([]rtpscore.SequenceNumber{nf.WriterSN})
	return w.sendToReader(rp)
}

// Tick runs the periodic send algorithm for every matched reader: flush
// unsent changes, resend requested changes, and heartbeat if the period
// has elapsed and unacked changes remain.
func (w *StatefulWriter) Tick(now time.Time) []OutboundSubmessage {
	w.mu.Lock()
	readers := make([]*ReaderProxy, 0, len(w.readers))
	for _, rp := range w.readers {
		readers = append(readers, rp)
	}
	w.mu.Unlock()

	var out []OutboundSubmessage
	for _, rp := range readers {
		out = append(out, w.sendToReader(rp)...)
	}
	return out
}

func (w *StatefulWriter) sendToReader(rp *ReaderProxy) []OutboundSubmessage {
	var out []OutboundSubmessage
	locators := rp.UnicastLocators

	for _, sn := range rp.RequestedChanges() {
		out = append(out, w.emitChange(rp, sn, locators)...)
	}

	available := changeSeqNumbers(w.cache)
	for {
		next, ok := rp.NextUnsentChange(available)
		if !ok {
			break
		}
		if next > rp.HighestSentSeq()+1 {
			out = append(out, OutboundSubmessage{
				Locators: locators,
				Gap: &wire.Gap{
					ReaderID: rtpscore.EntityIdUnknown,
					WriterID: w.GUID.Entity,
					GapStart: rp.HighestSentSeq() + 1,
					GapList:  rtpscore.NewSequenceNumberSet(next, nil),
				},
			})
		}
		out = append(out, w.emitChange(rp, next, locators)...)
		rp.MarkSent(next)
	}

	if rp.Reliable {
		min, hasMin := w.cache.MinSeq()
		max, hasMax := w.cache.MaxSeq()
		if hasMin && hasMax && rp.Unacked(max) && time.Since(w.lastHeartbeat) >= w.HeartbeatPeriod {
			w.lastHeartbeat = time.Now()
			out = append(out, OutboundSubmessage{
				Locators: locators,
				Heartbeat: &wire.Heartbeat{
					ReaderID: rtpscore.EntityIdUnknown,
					WriterID: w.GUID.Entity,
					FirstSN:  min,
					LastSN:   max,
					Count:    uint32(rp.NextHeartbeatCount()),
					Final:    false,
				},
			})
		}
	}
	return out
}

func (w *StatefulWriter) emitChange(rp *ReaderProxy, sn rtpscore.SequenceNumber, locators []rtpscore.Locator) []OutboundSubmessage {
	change, ok := w.cache.GetChange(sn)
	if !ok {
		return nil
	}
	if w.FragmentSize > 0 && len(change.SerializedPayload) > w.FragmentSize {
		return w.fragmentChange(change, locators)
	}
	return []OutboundSubmessage{{
		Locators: locators,
		Data: &wire.Data{
			ReaderID:          rtpscore.EntityIdUnknown,
			WriterID:          w.GUID.Entity,
			WriterSN:          sn,
			InlineQoS:         change.InlineQoS,
			SerializedPayload: change.SerializedPayload,
			KeyPresent:        change.Kind != rtpscore.ChangeAlive,
		},
	}}
}

func (w *StatefulWriter) fragmentChange(change rtpscore.CacheChange, locators []rtpscore.Locator) []OutboundSubmessage {
	var out []OutboundSubmessage
	dataSize := uint32(len(change.SerializedPayload))
	fragSize := uint32(w.FragmentSize)
	total := (dataSize + fragSize - 1) / fragSize
	for i := uint32(0); i < total; i++ {
		start := i * fragSize
		end := start + fragSize
		if end > dataSize {
			end = dataSize
		}
		var inlineQoS []byte
		if i == 0 {
			inlineQoS = change.InlineQoS
		}
		out = append(out, OutboundSubmessage{
			Locators: locators,
			DataFrag: &wire.DataFrag{
				ReaderID:              rtpscore.EntityIdUnknown,
				WriterID:              w.GUID.Entity,
				WriterSN:              change.SequenceNumber,
				FragmentStartingNum:   i + 1,
				FragmentsInSubmessage: 1,
				FragmentSize:          uint16(fragSize),
				DataSize:              dataSize,
				InlineQoS:             inlineQoS,
				SerializedPayload:     change.SerializedPayload[start:end],
				KeyPresent:            change.Kind != rtpscore.ChangeAlive,
			},
		})
	}
	return out
}

func changeSeqNumbers(cache *history.WriterHistoryCache) []rtpscore.SequenceNumber {
	changes := cache.Since(0)
	out := make([]rtpscore.SequenceNumber, len(changes))
	for i, c := range changes {
		out[i] = c.SequenceNumber
	}
	return out
}
