// Package wire implements the RTPS 2.x UDP mapping: parsing and building
// the message header, submessage headers, and the submessage bodies
// listed in spec.md §4.1. It is the one package in this runtime that
// knows about byte layout; everything above it (internal/endpoint,
// internal/discovery) deals in internal/rtpscore values.
package wire

import (
	"encoding/binary"
	"fmt"

	"godds/internal/rtpscore"
)

// ProtocolVersion is the RTPS protocol version this runtime speaks.
type ProtocolVersion struct {
	Major, Minor byte
}

// DefaultProtocolVersion is RTPS 2.3, the default profile spec.md targets.
var DefaultProtocolVersion = ProtocolVersion{Major: 2, Minor: 3}

// VendorID identifies the implementation that produced a message. Vendor
// ids are assigned by the OMG; an unregistered deployment uses a vendor-
// specific value (here, a placeholder in the unassigned range).
type VendorID [2]byte

// VendorIDThisImplementation is this runtime's vendor id.
var VendorIDThisImplementation = VendorID{0x01, 0xff}

// MessageHeaderLength is the fixed size of an RTPS message header.
const MessageHeaderLength = 20

var protocolMagic = [4]byte{'R', 'T', 'P', 'S'}

// MessageHeader is the 20-byte prefix of every RTPS message.
type MessageHeader struct {
	Version     ProtocolVersion
	VendorID    VendorID
	GuidPrefix  rtpscore.GuidPrefix
}

// Encode writes the 20-byte message header.
func (h MessageHeader) Encode() []byte {
	b := make([]byte, MessageHeaderLength)
	copy(b[0:4], protocolMagic[:])
	b[4] = h.Version.Major
	b[5] = h.Version.Minor
	b[6] = h.VendorID[0]
	b[7] = h.VendorID[1]
	copy(b[8:20], h.GuidPrefix[:])
	return b
}

// DecodeMessageHeader parses the fixed 20-byte message header.
func DecodeMessageHeader(b []byte) (MessageHeader, error) {
	if len(b) < MessageHeaderLength {
		return MessageHeader{}, fmt.Errorf("wire: message too short for header: %d bytes", len(b))
	}
	if b[0] != 'R' || b[1] != 'T' || b[2] != 'P' || b[3] != 'S' {
		return MessageHeader{}, fmt.Errorf("wire: bad magic %q", b[0:4])
	}
	var h MessageHeader
	h.Version = ProtocolVersion{Major: b[4], Minor: b[5]}
	h.VendorID = VendorID{b[6], b[7]}
	copy(h.GuidPrefix[:], b[8:20])
	return h, nil
}

// SubmessageKind identifies an RTPS submessage (spec.md §4.1).
type SubmessageKind byte

const (
	KindPad           SubmessageKind = 0x01
	KindAckNack       SubmessageKind = 0x06
	KindHeartbeat     SubmessageKind = 0x07
	KindGap           SubmessageKind = 0x08
	KindInfoTS        SubmessageKind = 0x09
	KindInfoSrc       SubmessageKind = 0x0C
	KindInfoReply     SubmessageKind = 0x0F
	KindInfoDst       SubmessageKind = 0x0E
	KindNackFrag      SubmessageKind = 0x12
	KindHeartbeatFrag SubmessageKind = 0x13
	KindData          SubmessageKind = 0x15
	KindDataFrag      SubmessageKind = 0x16
)

// SubmessageHeaderLength is the fixed size of a submessage header.
const SubmessageHeaderLength = 4

// FlagEndianness is bit 0 of every submessage's flags byte: when set, the
// submessage body is little-endian; when clear, big-endian.
const FlagEndianness = 0x01

// byteOrder returns the encoding/binary.ByteOrder implied by a flags byte.
func byteOrder(flags byte) binary.ByteOrder {
	if flags&FlagEndianness != 0 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// RawSubmessage is an undecoded submessage: its header plus the raw body
// bytes (exactly Length bytes, per the header). The message parser always
// produces these first; per-kind decoders then parse the body.
type RawSubmessage struct {
	Kind   SubmessageKind
	Flags  byte
	Length uint16
	Body   []byte
}

func (r RawSubmessage) order() binary.ByteOrder { return byteOrder(r.Flags) }

// Message is a parsed RTPS message: a header plus its submessages, still
// undecoded (callers decode only the kinds they care about).
type Message struct {
	Header      MessageHeader
	Submessages []RawSubmessage
}

// ParseMessage parses an RTPS message from a UDP datagram payload.
//
// Per spec.md §4.1/§7: a malformed header drops the rest of the datagram;
// a truncated submessage is skipped to its declared length; an unknown
// submessage id is skipped using the length field, never rejected.
func ParseMessage(b []byte) (Message, error) {
	hdr, err := DecodeMessageHeader(b)
	if err != nil {
		return Message{}, err
	}
	msg := Message{Header: hdr}
	pos := MessageHeaderLength
	for pos+SubmessageHeaderLength <= len(b) {
		id := SubmessageKind(b[pos])
		flags := b[pos+1]
		order := byteOrder(flags)
		length := order.Uint16(b[pos+2 : pos+4])
		bodyStart := pos + SubmessageHeaderLength
		bodyEnd := bodyStart + int(length)
		if bodyEnd > len(b) {
			// Truncated submessage: per spec.md §4.1/§7, drop the remainder
			// of the datagram rather than reading past the buffer.
			break
		}
		msg.Submessages = append(msg.Submessages, RawSubmessage{
			Kind:   id,
			Flags:  flags,
			Length: length,
			Body:   b[bodyStart:bodyEnd],
		})
		pos = bodyEnd
	}
	return msg, nil
}

// Builder accumulates submessages into an outgoing RTPS message.
type Builder struct {
	header MessageHeader
	buf    []byte
}

// NewBuilder starts a new outgoing message with the given header.
func NewBuilder(header MessageHeader) *Builder {
	return &Builder{header: header, buf: header.Encode()}
}

// Len returns the number of bytes the message would occupy so far.
func (b *Builder) Len() int { return len(b.buf) }

// AppendSubmessage appends one submessage (header + body); body's length
// must already be a multiple of 4 per RTPS alignment (callers pad before
// calling this).
func (b *Builder) AppendSubmessage(kind SubmessageKind, flags byte, body []byte) {
	flags |= FlagEndianness // this runtime always emits little-endian
	var lb [4]byte
	lb[0] = byte(kind)
	lb[1] = flags
	binary.LittleEndian.PutUint16(lb[2:4], uint16(len(body)))
	b.buf = append(b.buf, lb[:]...)
	b.buf = append(b.buf, body...)
}

// Bytes returns the encoded message.
func (b *Builder) Bytes() []byte { return b.buf }

func pad4(b []byte) []byte {
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}
