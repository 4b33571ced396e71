package cdr

import (
	"encoding/binary"
	"fmt"
)

// Writer builds a classic-CDR little-endian byte stream with the standard
// CDR alignment rules (each primitive aligns to its own size, relative to
// the start of the buffer).
type Writer struct {
	buf []byte
}

// NewWriter returns an empty CDR writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the encoded buffer.
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) align(n int) {
	pad := (n - len(w.buf)%n) % n
	for i := 0; i < pad; i++ {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) PutByte(b byte) { w.buf = append(w.buf, b) }

func (w *Writer) PutBytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *Writer) PutU16(v uint16) {
	w.align(2)
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutU32(v uint32) {
	w.align(4)
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutI32(v int32) { w.PutU32(uint32(v)) }

func (w *Writer) PutU64(v uint64) {
	w.align(8)
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutI64(v int64) { w.PutU64(uint64(v)) }

// PutString encodes a CDR string: u32 length (including the trailing NUL)
// followed by the bytes and a NUL terminator.
func (w *Writer) PutString(s string) {
	w.PutU32(uint32(len(s) + 1))
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

// Reader parses a classic-CDR little-endian byte stream with the matching
// alignment rules.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps b for CDR decoding.
func NewReader(b []byte) *Reader { return &Reader{buf: b} }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) align(n int) {
	pad := (n - r.pos%n) % n
	r.pos += pad
}

func (r *Reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return fmt.Errorf("cdr: need %d bytes, have %d", n, len(r.buf)-r.pos)
	}
	return nil
}

func (r *Reader) GetByte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *Reader) GetBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) GetU16() (uint16, error) {
	r.align(2)
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) GetU32() (uint32, error) {
	r.align(4)
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) GetI32() (int32, error) {
	v, err := r.GetU32()
	return int32(v), err
}

func (r *Reader) GetU64() (uint64, error) {
	r.align(8)
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) GetI64() (int64, error) {
	v, err := r.GetU64()
	return int64(v), err
}

func (r *Reader) GetString() (string, error) {
	n, err := r.GetU32()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	b, err := r.GetBytes(int(n))
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", nil
	}
	return string(b[:len(b)-1]), nil // drop trailing NUL
}
