package wire

import "godds/internal/rtpscore"

// AckNack flags.
const AckNackFlagFinal = 0x02

// AckNack tells a writer which sequence numbers a reader still wants
// (re)sent, or acknowledges receipt up to ReaderSNState.Base-1.
type AckNack struct {
	ReaderID      rtpscore.EntityId
	WriterID      rtpscore.EntityId
	ReaderSNState rtpscore.SequenceNumberSet
	Count         uint32
	Final         bool
}

// Encode serializes this AckNack submessage body.
func (a AckNack) Encode() (body []byte, flags byte) {
	w := newElementWriter(littleEndian)
	w.putEntityID(a.ReaderID)
	w.putEntityID(a.WriterID)
	w.putSeqNumSet(a.ReaderSNState)
	w.putU32(a.Count)
	if a.Final {
		flags |= AckNackFlagFinal
	}
	return w.bytes(), flags
}

// DecodeAckNack parses an AckNack submessage body.
func DecodeAckNack(raw RawSubmessage) (AckNack, error) {
	r := newElementReader(raw.order(), raw.Body)
	readerID, err := r.getEntityID()
	if err != nil {
		return AckNack{}, err
	}
	writerID, err := r.getEntityID()
	if err != nil {
		return AckNack{}, err
	}
	set, err := r.getSeqNumSet()
	if err != nil {
		return AckNack{}, err
	}
	count, err := r.getU32()
	if err != nil {
		return AckNack{}, err
	}
	return AckNack{
		ReaderID:      readerID,
		WriterID:      writerID,
		ReaderSNState: set,
		Count:         count,
		Final:         raw.Flags&AckNackFlagFinal != 0,
	}, nil
}
