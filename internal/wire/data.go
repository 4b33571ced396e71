package wire

import (
	"fmt"

	"godds/internal/rtpscore"
)

// Data submessage flags, per spec.md §4.1.
const (
	DataFlagInlineQos    = 0x02
	DataFlagDataPresent  = 0x04
	DataFlagKeyPresent   = 0x08
	DataFlagNonStdPayload = 0x10
)

// Data carries one sample (or a dispose/unregister marker) from a writer
// to a reader.
type Data struct {
	ReaderID          rtpscore.EntityId
	WriterID          rtpscore.EntityId
	WriterSN          rtpscore.SequenceNumber
	InlineQoS         []byte // encoded ParameterList, or nil
	SerializedPayload []byte // present iff DataPresent
	KeyPresent        bool
	NonStandardPayload bool
}

// Encode serializes this Data submessage body (without the submessage
// header) using little-endian element encoding.
func (d Data) Encode() (body []byte, flags byte) {
	w := newElementWriter(littleEndian)
	w.putU16(0) // extraFlags
	octetsToInlineQosPos := len(w.buf)
	w.putU16(0) // octetsToInlineQos placeholder
	w.putEntityID(d.ReaderID)
	w.putEntityID(d.WriterID)
	w.putSeqNum(d.WriterSN)

	octetsToInlineQos := len(w.buf) - (octetsToInlineQosPos + 2)
	w.order.PutUint16(w.buf[octetsToInlineQosPos:octetsToInlineQosPos+2], uint16(octetsToInlineQos))

	if len(d.InlineQoS) > 0 {
		w.putBytes(d.InlineQoS)
		flags |= DataFlagInlineQos
	}
	if len(d.SerializedPayload) > 0 {
		w.putBytes(d.SerializedPayload)
		flags |= DataFlagDataPresent
	}
	if d.KeyPresent {
		flags |= DataFlagKeyPresent
	}
	if d.NonStandardPayload {
		flags |= DataFlagNonStdPayload
	}
	return w.bytes(), flags
}

// DecodeData parses a Data submessage body.
func DecodeData(raw RawSubmessage) (Data, error) {
	r := newElementReader(raw.order(), raw.Body)
	if _, err := r.getU16(); err != nil { // extraFlags
		return Data{}, err
	}
	octetsToInlineQos, err := r.getU16()
	if err != nil {
		return Data{}, err
	}
	posAfterOctets := r.pos
	readerID, err := r.getEntityID()
	if err != nil {
		return Data{}, err
	}
	writerID, err := r.getEntityID()
	if err != nil {
		return Data{}, err
	}
	sn, err := r.getSeqNum()
	if err != nil {
		return Data{}, err
	}

	d := Data{
		ReaderID:          readerID,
		WriterID:          writerID,
		WriterSN:          sn,
		KeyPresent:        raw.Flags&DataFlagKeyPresent != 0,
		NonStandardPayload: raw.Flags&DataFlagNonStdPayload != 0,
	}

	// Resync to the declared inline-QoS offset: vendors may insert extra
	// fields between writerSN and inlineQos that this runtime doesn't emit.
	r.pos = posAfterOctets + int(octetsToInlineQos)
	if r.pos > len(r.buf) {
		return Data{}, fmt.Errorf("wire: DATA octetsToInlineQos out of range")
	}

	if raw.Flags&DataFlagInlineQos != 0 {
		rest := r.buf[r.pos:]
		pl, err := parameterListFrom(rest, raw.order())
		if err != nil {
			return Data{}, fmt.Errorf("wire: DATA inline qos: %w", err)
		}
		consumed := parameterListWireLength(rest, raw.order())
		d.InlineQoS = rest[:consumed]
		r.pos += consumed
		_ = pl
	}

	if raw.Flags&DataFlagDataPresent != 0 {
		d.SerializedPayload = r.buf[r.pos:]
	}

	return d, nil
}
