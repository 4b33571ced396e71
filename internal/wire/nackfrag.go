package wire

import "godds/internal/rtpscore"

// NackFrag requests retransmission of specific fragments of one sample.
type NackFrag struct {
	ReaderID      rtpscore.EntityId
	WriterID      rtpscore.EntityId
	WriterSN      rtpscore.SequenceNumber
	FragmentNumberState rtpscore.SequenceNumberSet // reused shape: base+bitmap over fragment numbers
	Count         uint32
}

// Encode serializes this NackFrag submessage body.
func (n NackFrag) Encode() (body []byte, flags byte) {
	w := newElementWriter(littleEndian)
	w.putEntityID(n.ReaderID)
	w.putEntityID(n.WriterID)
	w.putSeqNum(n.WriterSN)
	w.putSeqNumSet(n.FragmentNumberState)
	w.putU32(n.Count)
	return w.bytes(), 0
}

// DecodeNackFrag parses a NackFrag submessage body.
func DecodeNackFrag(raw RawSubmessage) (NackFrag, error) {
	r := newElementReader(raw.order(), raw.Body)
	readerID, err := r.getEntityID()
	if err != nil {
		return NackFrag{}, err
	}
	writerID, err := r.getEntityID()
	if err != nil {
		return NackFrag{}, err
	}
	sn, err := r.getSeqNum()
	if err != nil {
		return NackFrag{}, err
	}
	set, err := r.getSeqNumSet()
	if err != nil {
		return NackFrag{}, err
	}
	count, err := r.getU32()
	if err != nil {
		return NackFrag{}, err
	}
	return NackFrag{ReaderID: readerID, WriterID: writerID, WriterSN: sn, FragmentNumberState: set, Count: count}, nil
}

// HeartbeatFrag tells a reader how many fragments of a sample the writer
// currently holds, used for fragmented reliable delivery's flow control.
type HeartbeatFrag struct {
	ReaderID        rtpscore.EntityId
	WriterID        rtpscore.EntityId
	WriterSN        rtpscore.SequenceNumber
	LastFragmentNum uint32
	Count           uint32
}

// Encode serializes this HeartbeatFrag submessage body.
func (h HeartbeatFrag) Encode() (body []byte, flags byte) {
	w := newElementWriter(littleEndian)
	w.putEntityID(h.ReaderID)
	w.putEntityID(h.WriterID)
	w.putSeqNum(h.WriterSN)
	w.putU32(h.LastFragmentNum)
	w.putU32(h.Count)
	return w.bytes(), 0
}

// DecodeHeartbeatFrag parses a HeartbeatFrag submessage body.
func DecodeHeartbeatFrag(raw RawSubmessage) (HeartbeatFrag, error) {
	r := newElementReader(raw.order(), raw.Body)
	readerID, err := r.getEntityID()
	if err != nil {
		return HeartbeatFrag{}, err
	}
	writerID, err := r.getEntityID()
	if err != nil {
		return HeartbeatFrag{}, err
	}
	sn, err := r.getSeqNum()
	if err != nil {
		return HeartbeatFrag{}, err
	}
	lastFrag, err := r.getU32()
	if err != nil {
		return HeartbeatFrag{}, err
	}
	count, err := r.getU32()
	if err != nil {
		return HeartbeatFrag{}, err
	}
	return HeartbeatFrag{ReaderID: readerID, WriterID: writerID, WriterSN: sn, LastFragmentNum: lastFrag, Count: count}, nil
}
