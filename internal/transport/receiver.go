package transport

import (
	"net"

	"github.com/rs/zerolog"

	"godds/internal/rtpscore"
	"godds/internal/wire"
)

// MessageContext carries the per-message state a RTPS message establishes
// for its submessages: source participant (INFO_SRC may override it),
// destination participant (set by INFO_DST), the timestamp most recently
// set by INFO_TS, and the sender's UDP address (spec.md §4.1's
// "per-message context"). Reply locators from INFO_REPLY are not tracked.
type MessageContext struct {
	SourceGUIDPrefix rtpscore.GuidPrefix
	DestGUIDPrefix   rtpscore.GuidPrefix
	Timestamp        rtpscore.Time
	From             *net.UDPAddr
}

// SubmessageHandler processes one decoded submessage with its message
// context. Implementations look up the targeted local entity (by the
// submessage's reader/writer id) and dispatch to its mailbox.
type SubmessageHandler func(ctx MessageContext, kind wire.SubmessageKind, raw wire.RawSubmessage)

// Receiver decodes incoming datagrams into RTPS messages and walks their
// submessages, updating MessageContext as INFO_TS/INFO_SRC/INFO_DST
// submessages are seen and handing every other submessage except PAD
// (including unknown kinds) to handler.
type Receiver struct {
	logger  zerolog.Logger
	handler SubmessageHandler
}

// NewReceiver builds a Receiver that calls handler for each submessage.
func NewReceiver(handler SubmessageHandler, logger zerolog.Logger) *Receiver {
	return &Receiver{handler: handler, logger: logger}
}

// HandleDatagram parses one UDP datagram as an RTPS message and dispatches
// its submessages. Malformed datagrams are logged and dropped — the
// receiver never panics on untrusted network input (spec.md §7).
func (r *Receiver) HandleDatagram(from *net.UDPAddr, data []byte) {
	msg, err := wire.ParseMessage(data)
	if err != nil {
		r.logger.Debug().Err(err).Str("from", from.String()).Msg("dropping malformed RTPS message")
		return
	}

	ctx := MessageContext{
		SourceGUIDPrefix: msg.Header.GuidPrefix,
		From:             from,
		Timestamp:        rtpscore.TimeInvalid,
	}

	for _, sub := range msg.Submessages {
		switch sub.Kind {
		case wire.KindInfoTS:
			ts, err := wire.DecodeInfoTS(sub)
			if err == nil && !ts.Invalidate {
				ctx.Timestamp = ts.Timestamp
			}
		case wire.KindInfoSrc:
			info, err := wire.DecodeInfoSrc(sub)
			if err == nil {
				ctx.SourceGUIDPrefix = info.GuidPrefix
			}
		case wire.KindInfoDst:
			info, err := wire.DecodeInfoDst(sub)
			if err == nil {
				ctx.DestGUIDPrefix = info.GuidPrefix
			}
		case wire.KindPad:
			// no-op
		default:
			r.handler(ctx, sub.Kind, sub)
		}
	}
}
