// Package rtpscore holds the protocol-independent RTPS data model: the
// value types shared by the wire codec, the history caches, and the
// endpoint state machines, with no knowledge of byte layout.
package rtpscore

import "fmt"

// GuidPrefixLength is the size in bytes of a GuidPrefix.
const GuidPrefixLength = 12

// EntityIdLength is the size in bytes of an EntityId.
const EntityIdLength = 4

// GuidPrefix identifies a participant: the first 12 bytes of every GUID
// owned by that participant.
type GuidPrefix [GuidPrefixLength]byte

func (p GuidPrefix) String() string {
	return fmt.Sprintf("%x", [GuidPrefixLength]byte(p))
}

// EntityId identifies an entity within a participant: a 3-byte key plus a
// 1-byte kind octet.
type EntityId struct {
	Key  [3]byte
	Kind byte
}

func (e EntityId) String() string {
	return fmt.Sprintf("%02x%02x%02x.%02x", e.Key[0], e.Key[1], e.Key[2], e.Kind)
}

// EntityKind bits, per the RTPS entity-kind octet.
const (
	EntityKindUserDefined  = 0x00
	EntityKindBuiltIn      = 0x80
	EntityKindKeyedWriter  = 0x02
	EntityKindNoKeyWriter  = 0x03
	EntityKindKeyedReader  = 0x07
	EntityKindNoKeyReader  = 0x04
	EntityKindParticipant  = 0x01
	EntityKindWriterGroup  = 0x08
	EntityKindReaderGroup  = 0x09
)

// IsBuiltIn reports whether this entity id designates a built-in entity.
func (e EntityId) IsBuiltIn() bool { return e.Kind&EntityKindBuiltIn != 0 }

// IsWriter reports whether this entity id designates a writer.
func (e EntityId) IsWriter() bool {
	k := e.Kind & 0x3f // drop the two built-in/vendor bits (built-in kinds are 0xc_)
	return k == EntityKindKeyedWriter || k == EntityKindNoKeyWriter
}

// IsReader reports whether this entity id designates a reader.
func (e EntityId) IsReader() bool {
	k := e.Kind & 0x3f
	return k == EntityKindKeyedReader || k == EntityKindNoKeyReader
}

// EntityIdUnknown is the RTPS-reserved "no entity" id, used in submessages that
// address an unspecified reader or writer (e.g. stateless DATA).
var EntityIdUnknown = EntityId{}

// GUID is the 16-byte global identity of an RTPS entity: a GuidPrefix
// (participant) plus an EntityId (entity within that participant).
type GUID struct {
	Prefix GuidPrefix
	Entity EntityId
}

func (g GUID) String() string {
	return fmt.Sprintf("%s:%s", g.Prefix, g.Entity)
}

// Bytes returns the 16-byte wire representation of the GUID.
func (g GUID) Bytes() [16]byte {
	var b [16]byte
	copy(b[0:12], g.Prefix[:])
	copy(b[12:15], g.Entity.Key[:])
	b[15] = g.Entity.Kind
	return b
}

// GUIDFromBytes reconstructs a GUID from its 16-byte wire representation.
func GUIDFromBytes(b [16]byte) GUID {
	var g GUID
	copy(g.Prefix[:], b[0:12])
	copy(g.Entity.Key[:], b[12:15])
	g.Entity.Kind = b[15]
	return g
}
