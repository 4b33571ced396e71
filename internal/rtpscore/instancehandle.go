package rtpscore

// InstanceHandle is an opaque 16-byte identifier for "the same instance":
// derived from a GUID for entity identity, or from a sample's serialized
// key fields for data instances.
type InstanceHandle [16]byte

// InstanceHandleFromGUID derives the handle entities expose via
// get_instance_handle — the GUID bytes themselves, per common RTPS
// vendor practice (the GUID is already a unique 16-byte value).
func InstanceHandleFromGUID(g GUID) InstanceHandle {
	return InstanceHandle(g.Bytes())
}

// CacheChangeKind classifies a CacheChange's effect on its instance.
type CacheChangeKind int

const (
	ChangeAlive CacheChangeKind = iota
	ChangeDisposed
	ChangeUnregistered
)

// CacheChange is a single published or received sample plus its RTPS
// bookkeeping metadata.
type CacheChange struct {
	Kind              CacheChangeKind
	WriterGUID        GUID
	SequenceNumber    SequenceNumber
	InstanceHandle    InstanceHandle
	SourceTimestamp   Time
	SerializedPayload []byte
	InlineQoS         []byte
}
