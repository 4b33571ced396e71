package wire

import (
	"encoding/binary"
	"fmt"

	"godds/internal/cdr"
)

// parameterListFrom parses a ParameterList from buf using the submessage's
// declared byte order for the id/length header of each entry (parameter
// values are left as opaque already-encoded bytes, as cdr.ParameterList
// stores them).
func parameterListFrom(buf []byte, order binary.ByteOrder) (cdr.ParameterList, error) {
	r := newElementReader(order, buf)
	var pl cdr.ParameterList
	for r.remaining() >= 4 {
		id, err := r.getU16()
		if err != nil {
			return pl, err
		}
		if cdr.ParameterID(id) == cdr.PIDSentinel {
			return pl, nil
		}
		length, err := r.getU16()
		if err != nil {
			return pl, err
		}
		value, err := r.getBytes(int(length))
		if err != nil {
			return pl, fmt.Errorf("parameter list: truncated value for pid %#x: %w", id, err)
		}
		pl.Params = append(pl.Params, cdr.Parameter{ID: cdr.ParameterID(id), Value: value})
	}
	return pl, nil
}

// parameterListWireLength returns how many bytes of buf the encoded
// parameter list (including its sentinel) occupies, so callers can advance
// past it without re-parsing. It tolerates a missing sentinel by consuming
// the whole buffer, matching parameterListFrom's leniency.
func parameterListWireLength(buf []byte, order binary.ByteOrder) int {
	pos := 0
	for pos+4 <= len(buf) {
		id := order.Uint16(buf[pos : pos+2])
		length := order.Uint16(buf[pos+2 : pos+4])
		pos += 4
		if cdr.ParameterID(id) == cdr.PIDSentinel {
			return pos
		}
		pos += int(length)
	}
	return pos
}
