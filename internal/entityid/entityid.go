// Package entityid holds the RTPS-reserved EntityId values for built-in
// discovery endpoints (spec.md §6).
package entityid

import "godds/internal/rtpscore"

func id(b0, b1, b2, kind byte) rtpscore.EntityId {
	return rtpscore.EntityId{Key: [3]byte{b0, b1, b2}, Kind: kind}
}

var (
	Participant = id(0x00, 0x00, 0x01, 0xc1)

	SPDPBuiltinParticipantWriter = id(0x00, 0x01, 0x00, 0xc2)
	SPDPBuiltinParticipantReader = id(0x00, 0x01, 0x00, 0xc7)

	SEDPBuiltinPublicationsWriter = id(0x00, 0x00, 0x03, 0xc2)
	SEDPBuiltinPublicationsReader = id(0x00, 0x00, 0x03, 0xc7)

	SEDPBuiltinSubscriptionsWriter = id(0x00, 0x00, 0x04, 0xc2)
	SEDPBuiltinSubscriptionsReader = id(0x00, 0x00, 0x04, 0xc7)

	SEDPBuiltinTopicsWriter = id(0x00, 0x00, 0x02, 0xc2)
	SEDPBuiltinTopicsReader = id(0x00, 0x00, 0x02, 0xc7)
)

// BuiltinEndpointBit mirrors the "available built-in endpoints" bitmap
// advertised in SPDP (spec.md §4.6).
type BuiltinEndpointBit uint32

const (
	DisablesSPDPAnnouncementWriter            BuiltinEndpointBit = 0
	BuiltinParticipantAnnouncer                BuiltinEndpointBit = 1 << 0
	BuiltinParticipantDetector                 BuiltinEndpointBit = 1 << 1
	BuiltinPublicationsAnnouncer               BuiltinEndpointBit = 1 << 2
	BuiltinPublicationsDetector                BuiltinEndpointBit = 1 << 3
	BuiltinSubscriptionsAnnouncer              BuiltinEndpointBit = 1 << 4
	BuiltinSubscriptionsDetector               BuiltinEndpointBit = 1 << 5
	BuiltinTopicsAnnouncer                     BuiltinEndpointBit = 1 << 28
	BuiltinTopicsDetector                      BuiltinEndpointBit = 1 << 29
)

// DefaultAvailableBuiltinEndpoints is the bitmap every participant in this
// implementation advertises: it runs SPDP and all three SEDP topics,
// both announcer and detector sides.
const DefaultAvailableBuiltinEndpoints = BuiltinParticipantAnnouncer |
	BuiltinParticipantDetector |
	BuiltinPublicationsAnnouncer |
	BuiltinPublicationsDetector |
	BuiltinSubscriptionsAnnouncer |
	BuiltinSubscriptionsDetector |
	BuiltinTopicsAnnouncer |
	BuiltinTopicsDetector
