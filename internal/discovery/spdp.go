// Package discovery implements SPDP participant discovery and SEDP
// endpoint discovery (spec.md §4.6): periodic participant announcement
// over a stateless writer, and reliable publication/subscription/topic
// advertisement with QoS and partition matching.
//
// Grounded on original_source/dds/src/implementation/actors/
// domain_participant_actor.rs's as_spdp_discovered_participant_data
// (the announced ParticipantProxy fields) and add_discovered_participant
// (domain id/tag matching, ignored/already-known checks before acting).
package discovery

import (
	"strings"
	"sync"
	"time"

	"godds/internal/cdr"
	"godds/internal/rtpscore"
)

// ParticipantProxy is the data a remote participant announces about
// itself via SPDP, per spec.md §4.6.
type ParticipantProxy struct {
	GUID                      rtpscore.GUID
	DomainID                  uint32
	DomainTag                 string
	ProtocolVersion           [2]byte
	VendorID                  [2]byte
	AvailableBuiltinEndpoints uint32
	MetatrafficUnicast        []rtpscore.Locator
	MetatrafficMulticast      []rtpscore.Locator
	DefaultUnicast            []rtpscore.Locator
	DefaultMulticast          []rtpscore.Locator
	LeaseDuration             rtpscore.Duration
}

// discoveredParticipant tracks a remote participant plus when it was last
// heard from; its lease is measured from lastSeen (spec.md §4.6/§4.8
// liveliness).
type discoveredParticipant struct {
	proxy      ParticipantProxy
	lastSeen   time.Time
}

// SPDP manages the local participant's announcement and the table of
// discovered remote participants.
type SPDP struct {
	mu sync.Mutex

	Local     ParticipantProxy
	discovered map[rtpscore.GUID]*discoveredParticipant
	ignored    map[rtpscore.GUID]bool

	// OnDiscovered is invoked (outside the lock) for every newly discovered,
	// non-ignored, domain-matching participant.
	OnDiscovered func(ParticipantProxy)
	// OnLost is invoked when a participant's lease expires.
	OnLost func(rtpscore.GUID)
}

// NewSPDP builds an SPDP state machine announcing local.
func NewSPDP(local ParticipantProxy) *SPDP {
	return &SPDP{
		Local:      local,
		discovered: make(map[rtpscore.GUID]*discoveredParticipant),
		ignored:    make(map[rtpscore.GUID]bool),
	}
}

// IgnoreParticipant excludes remote from discovery processing.
func (s *SPDP) IgnoreParticipant(remote rtpscore.GUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignored[remote] = true
	delete(s.discovered, remote)
}

// OnAnnouncement processes a received SPDP sample, per spec.md §4.6: domain
// id and domain tag must match, the participant must not be ignored or
// already known, for OnDiscovered to fire.
func (s *SPDP) OnAnnouncement(proxy ParticipantProxy) {
	s.mu.Lock()
	if proxy.DomainID != s.Local.DomainID || proxy.DomainTag != s.Local.DomainTag {
		s.mu.Unlock()
		return
	}
	if s.ignored[proxy.GUID] {
		s.mu.Unlock()
		return
	}
	_, known := s.discovered[proxy.GUID]
	s.discovered[proxy.GUID] = &discoveredParticipant{proxy: proxy, lastSeen: time.Now()}
	s.mu.Unlock()

	if !known && s.OnDiscovered != nil {
		s.OnDiscovered(proxy)
	}
}

// ExpireLeases drops participants whose lease has elapsed since lastSeen,
// invoking OnLost for each.
func (s *SPDP) ExpireLeases(now time.Time) {
	s.mu.Lock()
	var lost []rtpscore.GUID
	for guid, dp := range s.discovered {
		if now.Sub(dp.lastSeen) > dp.proxy.LeaseDuration.ToGoDuration() {
			lost = append(lost, guid)
			delete(s.discovered, guid)
		}
	}
	s.mu.Unlock()

	for _, guid := range lost {
		if s.OnLost != nil {
			s.OnLost(guid)
		}
	}
}

// DiscoveredParticipants returns a snapshot of currently known remote
// participants.
func (s *SPDP) DiscoveredParticipants() []ParticipantProxy {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ParticipantProxy, 0, len(s.discovered))
	for _, dp := range s.discovered {
		out = append(out, dp.proxy)
	}
	return out
}

// EncodeParticipantProxy serializes proxy as a ParameterList, the payload
// of an SPDP announcement DATA submessage. Each locator list PID may
// repeat (RTPS allows multiple parameters with the same id to build up a
// list); lease duration is the RTPS Duration_t wire shape, 8 bytes.
func EncodeParticipantProxy(proxy ParticipantProxy) []byte {
	var pl cdr.ParameterList
	guidBytes := proxy.GUID.Bytes()
	pl.Put(cdr.PIDParticipantGUID, guidBytes[:])
	pl.Put(cdr.PIDDomainID, encodeU32(proxy.DomainID))
	if proxy.DomainTag != "" {
		pl.Put(cdr.PIDDomainTag, []byte(proxy.DomainTag))
	}
	pl.Put(cdr.PIDBuiltinEndpointSet, encodeU32(proxy.AvailableBuiltinEndpoints))
	pl.Put(cdr.PIDProtocolVersion, proxy.ProtocolVersion[:])
	pl.Put(cdr.PIDVendorID, proxy.VendorID[:])
	for _, loc := range proxy.MetatrafficUnicast {
		lb := loc.Bytes()
		pl.Add(cdr.PIDMetatrafficUnicastLocator, lb[:])
	}
	for _, loc := range proxy.MetatrafficMulticast {
		lb := loc.Bytes()
		pl.Add(cdr.PIDMetatrafficMulticastLocator, lb[:])
	}
	for _, loc := range proxy.DefaultUnicast {
		lb := loc.Bytes()
		pl.Add(cdr.PIDDefaultUnicastLocator, lb[:])
	}
	for _, loc := range proxy.DefaultMulticast {
		lb := loc.Bytes()
		pl.Add(cdr.PIDDefaultMulticastLocator, lb[:])
	}
	pl.Put(cdr.PIDParticipantLeaseDuration, encodeDuration(proxy.LeaseDuration))
	return pl.Encode()
}

// DecodeParticipantProxy reconstructs a ParticipantProxy from a decoded
// ParameterList (the counterpart of EncodeParticipantProxy).
func DecodeParticipantProxy(pl cdr.ParameterList) ParticipantProxy {
	var p ParticipantProxy
	if v, ok := pl.Get(cdr.PIDParticipantGUID); ok && len(v.Value) == 16 {
		var b [16]byte
		copy(b[:], v.Value)
		p.GUID = rtpscore.GUIDFromBytes(b)
	}
	if v, ok := pl.Get(cdr.PIDDomainID); ok && len(v.Value) == 4 {
		p.DomainID = decodeU32(v.Value)
	}
	if v, ok := pl.Get(cdr.PIDDomainTag); ok {
		p.DomainTag = strings.TrimRight(string(v.Value), "\x00")
	}
	if v, ok := pl.Get(cdr.PIDBuiltinEndpointSet); ok && len(v.Value) == 4 {
		p.AvailableBuiltinEndpoints = decodeU32(v.Value)
	}
	if v, ok := pl.Get(cdr.PIDProtocolVersion); ok && len(v.Value) >= 2 {
		copy(p.ProtocolVersion[:], v.Value)
	}
	if v, ok := pl.Get(cdr.PIDVendorID); ok && len(v.Value) >= 2 {
		copy(p.VendorID[:], v.Value)
	}
	p.MetatrafficUnicast = decodeLocators(pl, cdr.PIDMetatrafficUnicastLocator)
	p.MetatrafficMulticast = decodeLocators(pl, cdr.PIDMetatrafficMulticastLocator)
	p.DefaultUnicast = decodeLocators(pl, cdr.PIDDefaultUnicastLocator)
	p.DefaultMulticast = decodeLocators(pl, cdr.PIDDefaultMulticastLocator)
	if v, ok := pl.Get(cdr.PIDParticipantLeaseDuration); ok && len(v.Value) == 8 {
		p.LeaseDuration = decodeDuration(v.Value)
	}
	return p
}

func decodeLocators(pl cdr.ParameterList, id cdr.ParameterID) []rtpscore.Locator {
	var out []rtpscore.Locator
	for _, v := range pl.GetAll(id) {
		if len(v) != 24 {
			continue
		}
		var b [24]byte
		copy(b[:], v)
		out = append(out, rtpscore.LocatorFromBytes(b))
	}
	return out
}

func encodeDuration(d rtpscore.Duration) []byte {
	b := make([]byte, 8)
	copy(b[0:4], encodeU32(uint32(d.Seconds)))
	copy(b[4:8], encodeU32(d.NanoSeconds))
	return b
}

func decodeDuration(b []byte) rtpscore.Duration {
	return rtpscore.Duration{
		Seconds:     int32(decodeU32(b[0:4])),
		NanoSeconds: decodeU32(b[4:8]),
	}
}

func encodeU32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func decodeU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
