package endpoint

import (
	"sync"
	"time"

	"godds/internal/cdr"
	"godds/internal/history"
	"godds/internal/rtpscore"
	"godds/internal/wire"
)

// decodeInlineQoS recovers a DATA/DATAFRAG's instance identity
// (PID_KEY_HASH) and dispose/unregister kind (PID_STATUS_INFO) from its
// inline QoS parameter list. Ordinary alive data with no inline QoS
// decodes to the zero handle and ChangeAlive.
func decodeInlineQoS(inlineQoS []byte) (rtpscore.CacheChangeKind, rtpscore.InstanceHandle) {
	var handle rtpscore.InstanceHandle
	if len(inlineQoS) == 0 {
		return rtpscore.ChangeAlive, handle
	}
	pl, err := cdr.DecodeParameterList(inlineQoS)
	if err != nil {
		return rtpscore.ChangeAlive, handle
	}
	if p, ok := pl.Get(cdr.PIDKeyHash); ok && len(p.Value) >= 16 {
		copy(handle[:], p.Value[:16])
	}
	kind := rtpscore.ChangeAlive
	if p, ok := pl.Get(cdr.PIDStatusInfo); ok && len(p.Value) >= 4 {
		flags := p.Value[3]
		switch {
		case flags&cdr.StatusInfoDisposed != 0:
			kind = rtpscore.ChangeDisposed
		case flags&cdr.StatusInfoUnregistered != 0:
			kind = rtpscore.ChangeUnregistered
		}
	}
	return kind, handle
}

// StatefulReader drives one local DataReader's matched-writer bookkeeping:
// the receive algorithm of spec.md §4.4.
type StatefulReader struct {
	mu sync.Mutex

	GUID     rtpscore.GUID
	Reliable bool

	cache         *history.ReaderHistoryCache
	writers       map[rtpscore.GUID]*WriterProxy
	ackNackCount  uint32

	// SamplesLost counts sequence numbers a best-effort reader determined
	// were permanently skipped (spec.md §4.4), surfaced to SAMPLE_LOST.
	SamplesLost int
}

// NewStatefulReader builds a reader over the given history cache.
func NewStatefulReader(guid rtpscore.GUID, reliable bool, cache *history.ReaderHistoryCache) *StatefulReader {
	return &StatefulReader{
		GUID:     guid,
		Reliable: reliable,
		cache:    cache,
		writers:  make(map[rtpscore.GUID]*WriterProxy),
	}
}

// AddMatchedWriter registers remote as matched.
func (r *StatefulReader) AddMatchedWriter(remote rtpscore.GUID, reliable bool) *WriterProxy {
	r.mu.Lock()
	defer r.mu.Unlock()
	if wp, ok := r.writers[remote]; ok {
		return wp
	}
	wp := NewWriterProxy(remote, reliable)
	r.writers[remote] = wp
	return wp
}

// RemoveMatchedWriter unregisters remote.
func (r *StatefulReader) RemoveMatchedWriter(remote rtpscore.GUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.writers, remote)
}

// MatchedWriterCount reports how many writers are currently matched.
func (r *StatefulReader) MatchedWriterCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.writers)
}

// DataResult classifies the effect of processing one DATA/DATAFRAG
// submessage (original_source/stateful_reader.rs's
// StatefulReaderDataReceivedResult).
type DataResult int

const (
	ResultNoMatchedWriter DataResult = iota
	ResultUnexpectedSeqNum
	ResultAdded
	ResultAddedWithLoss
	ResultDuplicate
)

// OnData processes a DATA submessage from remote, applying spec.md §4.4's
// best-effort/reliable acceptance rule and updating the writer proxy and
// reader cache.
func (r *StatefulReader) OnData(remote rtpscore.GUID, d wire.Data, sourceTimestamp rtpscore.Time) DataResult {
	r.mu.Lock()
	wp, ok := r.writers[remote]
	r.mu.Unlock()
	if !ok {
		return ResultNoMatchedWriter
	}

	if r.cache.Contains(remote, d.WriterSN) {
		return ResultDuplicate
	}

	expected := wp.AvailableChangesMax() + 1
	if r.Reliable {
		if d.WriterSN != expected {
			return ResultUnexpectedSeqNum
		}
	} else if d.WriterSN < expected {
		return ResultUnexpectedSeqNum
	}

	kind, handle := decodeInlineQoS(d.InlineQoS)
	change := rtpscore.CacheChange{
		Kind:              kind,
		WriterGUID:        remote,
		SequenceNumber:    d.WriterSN,
		InstanceHandle:    handle,
		SourceTimestamp:   sourceTimestamp,
		SerializedPayload: d.SerializedPayload,
		InlineQoS:         d.InlineQoS,
	}
	r.cache.Add(change)

	lostBefore := d.WriterSN > expected
	wp.ReceivedChangeSet(d.WriterSN)
	if lostBefore {
		lost := wp.LostChangesUpdate(d.WriterSN)
		r.SamplesLost += lost
		return ResultAddedWithLoss
	}
	return ResultAdded
}

// OnDataFrag processes one DATAFRAG fragment, materializing a CacheChange
// once every fragment for its sequence number has arrived.
func (r *StatefulReader) OnDataFrag(remote rtpscore.GUID, df wire.DataFrag, sourceTimestamp rtpscore.Time) DataResult {
	r.mu.Lock()
	wp, ok := r.writers[remote]
	r.mu.Unlock()
	if !ok {
		return ResultNoMatchedWriter
	}
	if r.cache.Contains(remote, df.WriterSN) {
		return ResultDuplicate
	}

	payload, inlineQoS, complete := wp.ReceiveFragment(df.WriterSN, df.FragmentStartingNum, uint32(df.FragmentsInSubmessage), uint32(df.FragmentSize), df.DataSize, df.SerializedPayload, df.InlineQoS)
	if !complete {
		return ResultUnexpectedSeqNum
	}

	kind, handle := decodeInlineQoS(inlineQoS)
	change := rtpscore.CacheChange{
		Kind:              kind,
		WriterGUID:        remote,
		SequenceNumber:    df.WriterSN,
		InstanceHandle:    handle,
		SourceTimestamp:   sourceTimestamp,
		SerializedPayload: payload,
		InlineQoS:         inlineQoS,
	}
	r.cache.Add(change)
	wp.ReceivedChangeSet(df.WriterSN)
	return ResultAdded
}

// OnHeartbeat processes a HEARTBEAT, updating the missing-changes set and
// reporting whether an ACKNACK should be sent (spec.md §4.4).
func (r *StatefulReader) OnHeartbeat(remote rtpscore.GUID, hb wire.Heartbeat) (needAckNack bool) {
	r.mu.Lock()
	wp, ok := r.writers[remote]
	r.mu.Unlock()
	if !ok || !wp.AcceptHeartbeat(int32(hb.Count)) {
		return false
	}
	wp.MissingChangesUpdate(hb.FirstSN, hb.LastSN)
	return !hb.Final || len(wp.MissingChanges()) > 0
}

// OnGap processes a GAP, marking the listed sequence numbers irrelevant.
func (r *StatefulReader) OnGap(remote rtpscore.GUID, gap wire.Gap) {
	r.mu.Lock()
	wp, ok := r.writers[remote]
	r.mu.Unlock()
	if !ok {
		return
	}
	for _, sn := range gap.AllIrrelevant() {
		wp.ReceivedChangeSet(sn)
	}
}

// BuildAckNacks constructs one ACKNACK per matched reliable writer, per
// spec.md §4.4: base = highest_contiguous+1, bitmap of missing. Best-effort
// writers get none.
func (r *StatefulReader) BuildAckNacks(now time.Time) map[rtpscore.GUID]wire.AckNack {
	r.mu.Lock()
	writers := make(map[rtpscore.GUID]*WriterProxy, len(r.writers))
	for g, wp := range r.writers {
		writers[g] = wp
	}
	r.ackNackCount++
	count := r.ackNackCount
	r.mu.Unlock()

	out := make(map[rtpscore.GUID]wire.AckNack)
	for remote, wp := range writers {
		if !wp.Reliable {
			continue
		}
		missing := wp.MissingChanges()
		base := wp.AvailableChangesMax() + 1
		out[remote] = wire.AckNack{
			ReaderID:      r.GUID.Entity,
			WriterID:      remote.Entity,
			ReaderSNState: rtpscore.NewSequenceNumberSet(base, missing),
			Count:         count,
			Final:         len(missing) == 0,
		}
	}
	return out
}
