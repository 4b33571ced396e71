package discovery

import (
	"strings"

	"godds/internal/cdr"
	"godds/internal/qos"
	"godds/internal/rtpscore"
)

// EncodeEndpointData serializes ep as a ParameterList, the payload of
// a SEDP builtin-topic DATA submessage (spec.md §4.6). Only the fields
// needed for Match are carried: full QoS fidelity beyond
// reliability/durability/partitions is out of scope for the built-in
// discovery wire format in this runtime.
func EncodeEndpointData(ep DiscoveredEndpoint) []byte {
	var pl cdr.ParameterList
	guidBytes := ep.GUID.Bytes()
	pl.Put(cdr.PIDEndpointGUID, guidBytes[:])
	pl.Put(cdr.PIDTopicName, []byte(ep.TopicName+"\x00"))
	pl.Put(cdr.PIDTypeName, []byte(ep.TypeName+"\x00"))
	pl.Put(cdr.PIDReliability, encodeU32(uint32(ep.QoS.Reliability)))
	pl.Put(cdr.PIDDurability, encodeU32(uint32(ep.QoS.Durability)))
	if len(ep.QoS.Partitions) > 0 {
		pl.Put(cdr.PIDPartition, []byte(strings.Join(ep.QoS.Partitions, "\x00")))
	}
	return pl.Encode()
}

// DecodeEndpointData reconstructs a DiscoveredEndpoint from a decoded
// ParameterList. kind is supplied by the caller since it's implied by
// which SEDP builtin topic (publications vs subscriptions) the DATA
// arrived on, not carried in the parameter list itself.
func DecodeEndpointData(pl cdr.ParameterList, kind EndpointKind) DiscoveredEndpoint {
	ep := DiscoveredEndpoint{Kind: kind, QoS: qos.Policies{}}
	if v, ok := pl.Get(cdr.PIDEndpointGUID); ok && len(v.Value) == 16 {
		var b [16]byte
		copy(b[:], v.Value)
		ep.GUID = rtpscore.GUIDFromBytes(b)
	}
	if v, ok := pl.Get(cdr.PIDTopicName); ok {
		ep.TopicName = strings.TrimRight(string(v.Value), "\x00")
	}
	if v, ok := pl.Get(cdr.PIDTypeName); ok {
		ep.TypeName = strings.TrimRight(string(v.Value), "\x00")
	}
	if v, ok := pl.Get(cdr.PIDReliability); ok && len(v.Value) == 4 {
		ep.QoS.Reliability = qos.ReliabilityKind(decodeU32(v.Value))
	}
	if v, ok := pl.Get(cdr.PIDDurability); ok && len(v.Value) == 4 {
		ep.QoS.Durability = qos.DurabilityKind(decodeU32(v.Value))
	}
	if v, ok := pl.Get(cdr.PIDPartition); ok && len(v.Value) > 0 {
		ep.QoS.Partitions = strings.Split(strings.TrimRight(string(v.Value), "\x00"), "\x00")
	}
	return ep
}
