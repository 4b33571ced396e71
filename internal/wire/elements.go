package wire

import (
	"encoding/binary"
	"fmt"

	"godds/internal/rtpscore"
)

var littleEndian = binary.LittleEndian

// elementWriter accumulates submessage-element bytes in a chosen byte
// order, used by every per-kind Encode method in this package.
type elementWriter struct {
	order binary.ByteOrder
	buf   []byte
}

func newElementWriter(order binary.ByteOrder) *elementWriter {
	return &elementWriter{order: order}
}

func (w *elementWriter) bytes() []byte { return pad4(w.buf) }

func (w *elementWriter) putByte(b byte) { w.buf = append(w.buf, b) }

func (w *elementWriter) putBytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *elementWriter) putU16(v uint16) {
	var b [2]byte
	w.order.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *elementWriter) putU32(v uint32) {
	var b [4]byte
	w.order.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *elementWriter) putI32(v int32) { w.putU32(uint32(v)) }

func (w *elementWriter) putEntityID(e rtpscore.EntityId) {
	w.putBytes(e.Key[:])
	w.putByte(e.Kind)
}

func (w *elementWriter) putGuidPrefix(p rtpscore.GuidPrefix) { w.putBytes(p[:]) }

func (w *elementWriter) putSeqNum(sn rtpscore.SequenceNumber) {
	w.putI32(int32(int64(sn) >> 32))
	w.putU32(uint32(int64(sn)))
}

func (w *elementWriter) putSeqNumSet(s rtpscore.SequenceNumberSet) {
	w.putSeqNum(s.Base)
	w.putU32(s.NumBits)
	for _, word := range s.Bitmap {
		w.putU32(word)
	}
}

func (w *elementWriter) putLocator(l rtpscore.Locator) {
	w.putI32(int32(l.Kind))
	w.putU32(l.Port)
	w.putBytes(l.Address[:])
}

func (w *elementWriter) putTime(t rtpscore.Time) {
	w.putI32(t.Seconds)
	w.putU32(t.NanoSeconds)
}

// elementReader parses submessage-element bytes in a chosen byte order.
type elementReader struct {
	order binary.ByteOrder
	buf   []byte
	pos   int
}

func newElementReader(order binary.ByteOrder, buf []byte) *elementReader {
	return &elementReader{order: order, buf: buf}
}

func (r *elementReader) remaining() int { return len(r.buf) - r.pos }

func (r *elementReader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return fmt.Errorf("wire: need %d bytes, have %d", n, r.remaining())
	}
	return nil
}

func (r *elementReader) getByte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *elementReader) getBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *elementReader) getU16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := r.order.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *elementReader) getU32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := r.order.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *elementReader) getI32() (int32, error) {
	v, err := r.getU32()
	return int32(v), err
}

func (r *elementReader) getEntityID() (rtpscore.EntityId, error) {
	b, err := r.getBytes(4)
	if err != nil {
		return rtpscore.EntityId{}, err
	}
	var e rtpscore.EntityId
	copy(e.Key[:], b[0:3])
	e.Kind = b[3]
	return e, nil
}

func (r *elementReader) getGuidPrefix() (rtpscore.GuidPrefix, error) {
	b, err := r.getBytes(12)
	if err != nil {
		return rtpscore.GuidPrefix{}, err
	}
	var p rtpscore.GuidPrefix
	copy(p[:], b)
	return p, nil
}

func (r *elementReader) getSeqNum() (rtpscore.SequenceNumber, error) {
	hi, err := r.getI32()
	if err != nil {
		return 0, err
	}
	lo, err := r.getU32()
	if err != nil {
		return 0, err
	}
	return rtpscore.SequenceNumber(int64(hi)<<32 | int64(lo)), nil
}

func (r *elementReader) getSeqNumSet() (rtpscore.SequenceNumberSet, error) {
	base, err := r.getSeqNum()
	if err != nil {
		return rtpscore.SequenceNumberSet{}, err
	}
	numBits, err := r.getU32()
	if err != nil {
		return rtpscore.SequenceNumberSet{}, err
	}
	if numBits > rtpscore.MaxBitmapBits {
		return rtpscore.SequenceNumberSet{}, fmt.Errorf("wire: sequence number set numBits %d exceeds 256", numBits)
	}
	words := int((numBits + 31) / 32)
	bitmap := make([]uint32, words)
	for i := 0; i < words; i++ {
		w, err := r.getU32()
		if err != nil {
			return rtpscore.SequenceNumberSet{}, err
		}
		bitmap[i] = w
	}
	return rtpscore.SequenceNumberSet{Base: base, NumBits: numBits, Bitmap: bitmap}, nil
}

func (r *elementReader) getLocator() (rtpscore.Locator, error) {
	kind, err := r.getI32()
	if err != nil {
		return rtpscore.Locator{}, err
	}
	port, err := r.getU32()
	if err != nil {
		return rtpscore.Locator{}, err
	}
	addr, err := r.getBytes(16)
	if err != nil {
		return rtpscore.Locator{}, err
	}
	var l rtpscore.Locator
	l.Kind = rtpscore.LocatorKind(kind)
	l.Port = port
	copy(l.Address[:], addr)
	return l, nil
}

func (r *elementReader) getTime() (rtpscore.Time, error) {
	sec, err := r.getI32()
	if err != nil {
		return rtpscore.Time{}, err
	}
	nsec, err := r.getU32()
	if err != nil {
		return rtpscore.Time{}, err
	}
	return rtpscore.Time{Seconds: sec, NanoSeconds: nsec}, nil
}
