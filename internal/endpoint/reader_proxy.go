// Package endpoint implements the stateful per-match bookkeeping of spec.md
// §4.3/§4.4/§4.5: ReaderProxy (writer-side view of a matched reader) and
// WriterProxy (reader-side view of a matched writer), their heartbeat/
// acknack/nackfrag state machines, and fragmentation reassembly.
//
// Grounded on original_source/dds/src/rtps/stateful_writer.rs's
// RtpsReaderProxy bookkeeping (next_unsent_change, acked_changes_set,
// requested_changes_set, last_received_acknack_count) and
// stateful_reader.rs's RtpsWriterProxy (available_changes_max,
// received_change_set, lost_changes_update), translated from their
// iterator-driven Rust shape into explicit Go state plus methods.
package endpoint

import (
	"sync"

	"godds/internal/rtpscore"
)

// ReaderProxy is a reliable or best-effort writer's view of one matched
// remote reader.
type ReaderProxy struct {
	mu sync.Mutex

	RemoteReaderGUID  rtpscore.GUID
	UnicastLocators   []rtpscore.Locator
	MulticastLocators []rtpscore.Locator
	Reliable          bool
	ExpectsInlineQoS  bool

	highestSentSeq   rtpscore.SequenceNumber
	lowestAckedSeq   rtpscore.SequenceNumber // everything <= this has been acked
	requestedChanges map[rtpscore.SequenceNumber]bool

	lastAckNackCount  int32
	lastNackFragCount int32

	heartbeatCount int32
}

// NewReaderProxy builds a proxy whose highest-sent sequence number starts
// at firstRelevantSeq-1, so the next unsent change is firstRelevantSeq —
// spec.md §4.3's rule: Volatile durability starts at current max+1 (skip
// history), TransientLocal or stronger starts at 1 (resend all history).
func NewReaderProxy(remote rtpscore.GUID, reliable bool, firstRelevantSeq rtpscore.SequenceNumber) *ReaderProxy {
	return &ReaderProxy{
		RemoteReaderGUID: remote,
		Reliable:         reliable,
		highestSentSeq:   firstRelevantSeq - 1,
		requestedChanges: make(map[rtpscore.SequenceNumber]bool),
	}
}

// NextUnsentChange returns the smallest sequence number in available
// (sorted ascending) greater than HighestSentSeq, if any.
func (p *ReaderProxy) NextUnsentChange(available []rtpscore.SequenceNumber) (rtpscore.SequenceNumber, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sn := range available {
		if sn > p.highestSentSeq {
			return sn, true
		}
	}
	return 0, false
}

// MarkSent records that sn has been sent (in a DATA or GAP) to this reader.
func (p *ReaderProxy) MarkSent(sn rtpscore.SequenceNumber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sn > p.highestSentSeq {
		p.highestSentSeq = sn
	}
}

// HighestSentSeq returns the highest sequence number sent so far.
func (p *ReaderProxy) HighestSentSeq() rtpscore.SequenceNumber {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.highestSentSeq
}

// AckedChangesSet records that the reader has acknowledged everything up
// to and including seq (an ACKNACK's reader_sn_state.base - 1).
func (p *ReaderProxy) AckedChangesSet(seq rtpscore.SequenceNumber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if seq > p.lowestAckedSeq {
		p.lowestAckedSeq = seq
	}
}

// Unacked reports whether sn has not yet been acknowledged.
func (p *ReaderProxy) Unacked(sn rtpscore.SequenceNumber) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return sn > p.lowestAckedSeq
}

// LowestAckedSeq returns the sequence number at or below which every change
// is acknowledged.
func (p *ReaderProxy) LowestAckedSeq() rtpscore.SequenceNumber {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lowestAckedSeq
}

// RequestedChangesSet records the set of sequence numbers an ACKNACK
// negatively acknowledged — these must be resent regardless of
// HighestSentSeq.
func (p *ReaderProxy) RequestedChangesSet(seqs []rtpscore.SequenceNumber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sn := range seqs {
		p.requestedChanges[sn] = true
	}
}

// RequestedChanges drains and returns the currently requested sequence
// numbers.
func (p *ReaderProxy) RequestedChanges() []rtpscore.SequenceNumber {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]rtpscore.SequenceNumber, 0, len(p.requestedChanges))
	for sn := range p.requestedChanges {
		out = append(out, sn)
		delete(p.requestedChanges, sn)
	}
	return out
}

// AcceptAckNack reports whether count is newer than the last processed
// ACKNACK count, updating the stored count if so (duplicate/out-of-order
// ACKNACK suppression per spec.md §4.3).
func (p *ReaderProxy) AcceptAckNack(count int32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if count <= p.lastAckNackCount {
		return false
	}
	p.lastAckNackCount = count
	return true
}

// AcceptNackFrag reports whether count is newer than the last processed
// NACK_FRAG count.
func (p *ReaderProxy) AcceptNackFrag(count int32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if count <= p.lastNackFragCount {
		return false
	}
	p.lastNackFragCount = count
	return true
}

// NextHeartbeatCount returns the next HEARTBEAT submessage count to send.
func (p *ReaderProxy) NextHeartbeatCount() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.heartbeatCount++
	return p.heartbeatCount
}
