package endpoint

import (
	"sort"
	"sync"

	"godds/internal/rtpscore"
)

// ChangeFromWriterStatus classifies what a reader knows about one sequence
// number from a matched writer (original_source/stateful_reader.rs's
// ChangeFromWriterStatusKind).
type ChangeFromWriterStatus int

const (
	StatusUnknown ChangeFromWriterStatus = iota
	StatusMissing
	StatusReceived
	StatusLost
)

// WriterProxy is a reader's view of one matched remote writer: the highest
// contiguously received sequence number, the set of sequence numbers known
// missing, and any in-progress fragment reassembly.
type WriterProxy struct {
	mu sync.Mutex

	RemoteWriterGUID rtpscore.GUID
	Reliable         bool

	availableChangesMax rtpscore.SequenceNumber
	received            map[rtpscore.SequenceNumber]bool
	missing             map[rtpscore.SequenceNumber]bool

	lastHeartbeatCount int32
	reassembly         map[rtpscore.SequenceNumber]*fragmentAssembly
}

// NewWriterProxy builds a proxy with no changes received yet.
func NewWriterProxy(remote rtpscore.GUID, reliable bool) *WriterProxy {
	return &WriterProxy{
		RemoteWriterGUID: remote,
		Reliable:         reliable,
		received:         make(map[rtpscore.SequenceNumber]bool),
		missing:          make(map[rtpscore.SequenceNumber]bool),
		reassembly:       make(map[rtpscore.SequenceNumber]*fragmentAssembly),
	}
}

// AvailableChangesMax returns the highest sequence number known available
// (received or determined lost), the value spec.md's reliable reception
// rule compares an incoming DATA's sequence number against.
func (w *WriterProxy) AvailableChangesMax() rtpscore.SequenceNumber {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.availableChangesMax
}

// ReceivedChangeSet records that sn was received, advancing
// AvailableChangesMax if sn closes a gap.
func (w *WriterProxy) ReceivedChangeSet(sn rtpscore.SequenceNumber) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.received[sn] = true
	delete(w.missing, sn)
	w.advanceLocked()
}

// LostChangesUpdate marks every sequence number in (availableChangesMax, sn)
// as permanently lost (a best-effort reader detecting a gap, spec.md §4.4).
// Returns the count of newly lost sequence numbers, for SAMPLE_LOST.
func (w *WriterProxy) LostChangesUpdate(sn rtpscore.SequenceNumber) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	lost := 0
	for s := w.availableChangesMax + 1; s < sn; s++ {
		if !w.received[s] {
			lost++
		}
		delete(w.missing, s)
	}
	if sn-1 > w.availableChangesMax {
		w.availableChangesMax = sn - 1
	}
	w.advanceLocked()
	return lost
}

func (w *WriterProxy) advanceLocked() {
	for w.received[w.availableChangesMax+1] {
		w.availableChangesMax++
	}
}

// MissingChangesUpdate marks every sequence number in [firstAvailable,
// lastAvailable] not yet received as missing, for reliable ACKNACK
// generation (spec.md §4.4).
func (w *WriterProxy) MissingChangesUpdate(firstAvailable, lastAvailable rtpscore.SequenceNumber) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for s := firstAvailable; s <= lastAvailable; s++ {
		if !w.received[s] {
			w.missing[s] = true
		}
	}
}

// MissingChanges returns the sorted set of sequence numbers this reader
// still needs from the writer, for building an ACKNACK's reader_sn_state.
func (w *WriterProxy) MissingChanges() []rtpscore.SequenceNumber {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]rtpscore.SequenceNumber, 0, len(w.missing))
	for sn := range w.missing {
		out = append(out, sn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AcceptHeartbeat reports whether count is newer than the last processed
// HEARTBEAT count.
func (w *WriterProxy) AcceptHeartbeat(count int32) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if count <= w.lastHeartbeatCount {
		return false
	}
	w.lastHeartbeatCount = count
	return true
}

// fragmentAssembly buffers DATAFRAG fragments for one sequence number
// until every fragment has arrived.
type fragmentAssembly struct {
	dataSize  uint32
	fragSize  uint32
	fragments map[uint32][]byte
	total     uint32
	inlineQoS []byte // captured from fragment 1, which the writer carries it on
}

// ReceiveFragment stores one fragment of sn and reports the reassembled
// payload once every fragment in [1, totalFragments] has arrived, along
// with the inline QoS fragment 1 carried (DATAFRAG only repeats inline
// QoS on the first fragment of a change, matching what
// StatefulWriter.fragmentChange sends).
func (w *WriterProxy) ReceiveFragment(sn rtpscore.SequenceNumber, fragmentStart, fragmentCount, fragmentSize, dataSize uint32, payload, inlineQoS []byte) ([]byte, []byte, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	total := (dataSize + fragmentSize - 1) / fragmentSize
	asm, ok := w.reassembly[sn]
	if !ok {
		asm = &fragmentAssembly{dataSize: dataSize, fragSize: fragmentSize, fragments: make(map[uint32][]byte), total: total}
		w.reassembly[sn] = asm
	}
	if fragmentStart == 1 && len(inlineQoS) > 0 {
		asm.inlineQoS = inlineQoS
	}
	for i := uint32(0); i < fragmentCount; i++ {
		fragNum := fragmentStart + i
		start := i * fragmentSize
		end := start + fragmentSize
		if end > uint32(len(payload)) {
			end = uint32(len(payload))
		}
		asm.fragments[fragNum] = append([]byte(nil), payload[start:end]...)
	}

	if uint32(len(asm.fragments)) < asm.total {
		return nil, nil, false
	}

	out := make([]byte, 0, asm.dataSize)
	for i := uint32(1); i <= asm.total; i++ {
		frag, ok := asm.fragments[i]
		if !ok {
			return nil, nil, false
		}
		out = append(out, frag...)
	}
	if uint32(len(out)) > asm.dataSize {
		out = out[:asm.dataSize]
	}
	inlineQoSOut := asm.inlineQoS
	delete(w.reassembly, sn)
	return out, inlineQoSOut, true
}
