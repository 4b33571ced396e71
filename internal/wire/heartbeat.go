package wire

import "godds/internal/rtpscore"

// Heartbeat flags.
const (
	HeartbeatFlagFinal      = 0x02
	HeartbeatFlagLiveliness = 0x04
)

// Heartbeat tells a reader the range of sequence numbers a writer holds,
// prompting an AckNack if the reader is missing any of them.
type Heartbeat struct {
	ReaderID    rtpscore.EntityId
	WriterID    rtpscore.EntityId
	FirstSN     rtpscore.SequenceNumber
	LastSN      rtpscore.SequenceNumber
	Count       uint32
	Final       bool
	Liveliness  bool
}

// Encode serializes this Heartbeat submessage body.
func (h Heartbeat) Encode() (body []byte, flags byte) {
	w := newElementWriter(littleEndian)
	w.putEntityID(h.ReaderID)
	w.putEntityID(h.WriterID)
	w.putSeqNum(h.FirstSN)
	w.putSeqNum(h.LastSN)
	w.putU32(h.Count)
	if h.Final {
		flags |= HeartbeatFlagFinal
	}
	if h.Liveliness {
		flags |= HeartbeatFlagLiveliness
	}
	return w.bytes(), flags
}

// DecodeHeartbeat parses a Heartbeat submessage body.
func DecodeHeartbeat(raw RawSubmessage) (Heartbeat, error) {
	r := newElementReader(raw.order(), raw.Body)
	readerID, err := r.getEntityID()
	if err != nil {
		return Heartbeat{}, err
	}
	writerID, err := r.getEntityID()
	if err != nil {
		return Heartbeat{}, err
	}
	first, err := r.getSeqNum()
	if err != nil {
		return Heartbeat{}, err
	}
	last, err := r.getSeqNum()
	if err != nil {
		return Heartbeat{}, err
	}
	count, err := r.getU32()
	if err != nil {
		return Heartbeat{}, err
	}
	return Heartbeat{
		ReaderID:   readerID,
		WriterID:   writerID,
		FirstSN:    first,
		LastSN:     last,
		Count:      count,
		Final:      raw.Flags&HeartbeatFlagFinal != 0,
		Liveliness: raw.Flags&HeartbeatFlagLiveliness != 0,
	}, nil
}
