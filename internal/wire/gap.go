package wire

import "godds/internal/rtpscore"

// Gap tells a reader that a range of sequence numbers will never be sent
// (irrelevant to this reader), so it should stop waiting for them.
type Gap struct {
	ReaderID rtpscore.EntityId
	WriterID rtpscore.EntityId
	GapStart rtpscore.SequenceNumber
	GapList  rtpscore.SequenceNumberSet
}

// Encode serializes this Gap submessage body.
func (g Gap) Encode() (body []byte, flags byte) {
	w := newElementWriter(littleEndian)
	w.putEntityID(g.ReaderID)
	w.putEntityID(g.WriterID)
	w.putSeqNum(g.GapStart)
	w.putSeqNumSet(g.GapList)
	return w.bytes(), 0
}

// DecodeGap parses a Gap submessage body.
func DecodeGap(raw RawSubmessage) (Gap, error) {
	r := newElementReader(raw.order(), raw.Body)
	readerID, err := r.getEntityID()
	if err != nil {
		return Gap{}, err
	}
	writerID, err := r.getEntityID()
	if err != nil {
		return Gap{}, err
	}
	start, err := r.getSeqNum()
	if err != nil {
		return Gap{}, err
	}
	list, err := r.getSeqNumSet()
	if err != nil {
		return Gap{}, err
	}
	return Gap{ReaderID: readerID, WriterID: writerID, GapStart: start, GapList: list}, nil
}

// AllIrrelevant returns every sequence number this Gap marks irrelevant:
// [GapStart, GapList.Base) plus the members of GapList itself.
func (g Gap) AllIrrelevant() []rtpscore.SequenceNumber {
	var out []rtpscore.SequenceNumber
	for n := g.GapStart; n < g.GapList.Base; n++ {
		out = append(out, n)
	}
	out = append(out, g.GapList.Set()...)
	return out
}
