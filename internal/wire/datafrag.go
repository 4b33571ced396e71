package wire

import (
	"fmt"

	"godds/internal/rtpscore"
)

// DataFrag submessage flags.
const (
	DataFragFlagInlineQos     = 0x02
	DataFragFlagKeyPresent    = 0x04
	DataFragFlagNonStdPayload = 0x08
)

// DataFrag carries one fragment of a sample too large to fit in a single
// Data submessage.
type DataFrag struct {
	ReaderID            rtpscore.EntityId
	WriterID            rtpscore.EntityId
	WriterSN            rtpscore.SequenceNumber
	FragmentStartingNum uint32 // 1-based
	FragmentsInSubmessage uint16
	FragmentSize        uint16
	DataSize            uint32 // total size of the unfragmented sample
	InlineQoS           []byte
	SerializedPayload   []byte
	KeyPresent          bool
}

// Encode serializes this DataFrag submessage body.
func (d DataFrag) Encode() (body []byte, flags byte) {
	w := newElementWriter(littleEndian)
	w.putU16(0) // extraFlags
	octetsToInlineQosPos := len(w.buf)
	w.putU16(0)
	w.putEntityID(d.ReaderID)
	w.putEntityID(d.WriterID)
	w.putSeqNum(d.WriterSN)
	w.putU32(d.FragmentStartingNum)
	w.putU16(d.FragmentsInSubmessage)
	w.putU16(d.FragmentSize)
	w.putU32(d.DataSize)

	octetsToInlineQos := len(w.buf) - (octetsToInlineQosPos + 2)
	w.order.PutUint16(w.buf[octetsToInlineQosPos:octetsToInlineQosPos+2], uint16(octetsToInlineQos))

	if len(d.InlineQoS) > 0 {
		w.putBytes(d.InlineQoS)
		flags |= DataFragFlagInlineQos
	}
	w.putBytes(d.SerializedPayload)
	if d.KeyPresent {
		flags |= DataFragFlagKeyPresent
	}
	return w.bytes(), flags
}

// DecodeDataFrag parses a DataFrag submessage body.
func DecodeDataFrag(raw RawSubmessage) (DataFrag, error) {
	r := newElementReader(raw.order(), raw.Body)
	if _, err := r.getU16(); err != nil {
		return DataFrag{}, err
	}
	octetsToInlineQos, err := r.getU16()
	if err != nil {
		return DataFrag{}, err
	}
	posAfterOctets := r.pos
	readerID, err := r.getEntityID()
	if err != nil {
		return DataFrag{}, err
	}
	writerID, err := r.getEntityID()
	if err != nil {
		return DataFrag{}, err
	}
	sn, err := r.getSeqNum()
	if err != nil {
		return DataFrag{}, err
	}
	startNum, err := r.getU32()
	if err != nil {
		return DataFrag{}, err
	}
	fragCount, err := r.getU16()
	if err != nil {
		return DataFrag{}, err
	}
	fragSize, err := r.getU16()
	if err != nil {
		return DataFrag{}, err
	}
	dataSize, err := r.getU32()
	if err != nil {
		return DataFrag{}, err
	}

	d := DataFrag{
		ReaderID:              readerID,
		WriterID:              writerID,
		WriterSN:              sn,
		FragmentStartingNum:   startNum,
		FragmentsInSubmessage: fragCount,
		FragmentSize:          fragSize,
		DataSize:              dataSize,
		KeyPresent:            raw.Flags&DataFragFlagKeyPresent != 0,
	}

	r.pos = posAfterOctets + int(octetsToInlineQos)
	if r.pos > len(r.buf) {
		return DataFrag{}, fmt.Errorf("wire: DATAFRAG octetsToInlineQos out of range")
	}

	if raw.Flags&DataFragFlagInlineQos != 0 {
		rest := r.buf[r.pos:]
		consumed := parameterListWireLength(rest, raw.order())
		d.InlineQoS = rest[:consumed]
		r.pos += consumed
	}

	d.SerializedPayload = r.buf[r.pos:]
	return d, nil
}
