package transport

import (
	"net"

	"github.com/rs/zerolog"

	"godds/internal/endpoint"
	"godds/internal/rtpscore"
	"godds/internal/wire"
)

// Sender batches endpoint.OutboundSubmessage values addressed to the same
// locator into one RTPS message per spec.md §4.9 ("never split a
// logically related INFO_DST+INFO_TS+DATA run across datagrams"),
// starting a new message only when the next submessage would push the
// accumulated length past maxMessage (submessages themselves are never
// fragmented here).
type Sender struct {
	socket        *Socket
	header        wire.MessageHeader
	maxMessage    int
	logger        zerolog.Logger
}

// NewSender builds a Sender that prefixes every outbound message with the
// given header (this participant's GUID prefix and protocol/vendor id).
func NewSender(socket *Socket, header wire.MessageHeader, maxMessage int, logger zerolog.Logger) *Sender {
	return &Sender{socket: socket, header: header, maxMessage: maxMessage, logger: logger}
}

// SendAll groups msgs by destination locator and emits one or more RTPS
// messages per destination, splitting only when a message would exceed
// maxMessage.
func (s *Sender) SendAll(msgs []endpoint.OutboundSubmessage) {
	byLocator := make(map[rtpscore.Locator][]endpoint.OutboundSubmessage)
	for _, m := range msgs {
		for _, loc := range m.Locators {
			byLocator[loc] = append(byLocator[loc], m)
		}
	}
	for loc, group := range byLocator {
		s.sendGroup(loc, group)
	}
}

func (s *Sender) sendGroup(loc rtpscore.Locator, group []endpoint.OutboundSubmessage) {
	dst := ToUDPAddr(loc)
	b := wire.NewBuilder(s.header)

	flush := func() {
		if b.Len() > wire.MessageHeaderLength {
			if err := s.socket.Send(dst, b.Bytes()); err != nil {
				s.logger.Warn().Err(err).Str("dst", dst.String()).Msg("udp send failed")
			}
			b = wire.NewBuilder(s.header)
		}
	}

	for _, m := range group {
		body, kind, flags, ok := encodeSubmessage(m)
		if !ok {
			continue
		}
		if s.maxMessage > 0 && b.Len()+4+len(body) > s.maxMessage {
			flush()
		}
		b.AppendSubmessage(kind, flags, body)
	}
	flush()
}

func encodeSubmessage(m endpoint.OutboundSubmessage) (body []byte, kind wire.SubmessageKind, flags byte, ok bool) {
	switch {
	case m.Data != nil:
		body, flags = m.Data.Encode()
		return body, wire.KindData, flags, true
	case m.DataFrag != nil:
		body, flags = m.DataFrag.Encode()
		return body, wire.KindDataFrag, flags, true
	case m.Heartbeat != nil:
		body, flags = m.Heartbeat.Encode()
		return body, wire.KindHeartbeat, flags, true
	case m.Gap != nil:
		body, flags = m.Gap.Encode()
		return body, wire.KindGap, flags, true
	default:
		return nil, 0, 0, false
	}
}

// SendAckNacks emits one ACKNACK message per destination, used by
// StatefulReader.BuildAckNacks's output (keyed by remote writer GUID,
// resolved to a locator by the caller).
func (s *Sender) SendAckNacks(acks map[rtpscore.GUID]wire.AckNack, locators map[rtpscore.GUID]net.UDPAddr) {
	for guid, ack := range acks {
		dst, ok := locators[guid]
		if !ok {
			continue
		}
		b := wire.NewBuilder(s.header)
		body, flags := ack.Encode()
		b.AppendSubmessage(wire.KindAckNack, flags, body)
		if err := s.socket.Send(&dst, b.Bytes()); err != nil {
			s.logger.Warn().Err(err).Msg("acknack send failed")
		}
	}
}
