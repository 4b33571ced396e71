package cdr

import "fmt"

// ParameterID identifies a parameter in a ParameterList (inline QoS /
// discovery data). Only the subset this runtime produces and consumes is
// named; everything else round-trips as an opaque Parameter.
type ParameterID uint16

const (
	PIDPad                   ParameterID = 0x0000
	PIDSentinel               ParameterID = 0x0001
	PIDKeyHash                ParameterID = 0x0070
	PIDStatusInfo              ParameterID = 0x0071
	PIDTopicName              ParameterID = 0x0005
	PIDTypeName               ParameterID = 0x0007
	PIDReliability            ParameterID = 0x001a
	PIDDurability             ParameterID = 0x001d
	PIDPartition              ParameterID = 0x0029
	PIDEndpointGUID           ParameterID = 0x005a
	PIDParticipantGUID        ParameterID = 0x0050
	PIDDefaultUnicastLocator  ParameterID = 0x0031
	PIDMetatrafficUnicastLocator ParameterID = 0x0032
	PIDDefaultMulticastLocator ParameterID = 0x0048
	PIDMetatrafficMulticastLocator ParameterID = 0x0033
	PIDParticipantLeaseDuration ParameterID = 0x0002
	PIDBuiltinEndpointSet     ParameterID = 0x0058
	PIDDomainID               ParameterID = 0x000f
	PIDDomainTag              ParameterID = 0x4014
	PIDProtocolVersion        ParameterID = 0x0015
	PIDVendorID               ParameterID = 0x0016
)

// StatusInfo flag bits, packed into the last octet of a PID_STATUS_INFO
// parameter's 4-byte value, distinguishing a dispose or unregister change
// from ordinary alive data on the wire.
const (
	StatusInfoDisposed    = 0x1
	StatusInfoUnregistered = 0x2
)

// Parameter is one (id, value) entry of a ParameterList; Value holds the
// raw, already CDR-encoded payload (4-byte aligned).
type Parameter struct {
	ID    ParameterID
	Value []byte
}

// ParameterList is an ordered, sentinel-terminated sequence of Parameters
// (the RTPS "inline QoS" / discovery data wire format).
type ParameterList struct {
	Params []Parameter
}

// Get returns the first parameter with the given id, if any.
func (pl ParameterList) Get(id ParameterID) (Parameter, bool) {
	for _, p := range pl.Params {
		if p.ID == id {
			return p, true
		}
	}
	return Parameter{}, false
}

// Put appends or replaces the parameter with the given id. Use this for
// PIDs that carry a single scalar value.
func (pl *ParameterList) Put(id ParameterID, value []byte) {
	for i, p := range pl.Params {
		if p.ID == id {
			pl.Params[i].Value = value
			return
		}
	}
	pl.Params = append(pl.Params, Parameter{ID: id, Value: value})
}

// Add always appends a new parameter, for PIDs the RTPS wire format
// repeats to build up a list (e.g. locator lists: one parameter entry
// per locator, same id).
func (pl *ParameterList) Add(id ParameterID, value []byte) {
	pl.Params = append(pl.Params, Parameter{ID: id, Value: value})
}

// GetAll returns every parameter value with the given id, in wire order.
func (pl ParameterList) GetAll(id ParameterID) [][]byte {
	var out [][]byte
	for _, p := range pl.Params {
		if p.ID == id {
			out = append(out, p.Value)
		}
	}
	return out
}

// Encode serializes the parameter list, each entry as (u16 id, u16 length,
// value padded to a 4-byte boundary), terminated by PID_SENTINEL.
func (pl ParameterList) Encode() []byte {
	w := NewWriter()
	for _, p := range pl.Params {
		w.PutU16(uint16(p.ID))
		padded := (len(p.Value) + 3) &^ 3
		w.PutU16(uint16(padded))
		w.PutBytes(p.Value)
		for i := len(p.Value); i < padded; i++ {
			w.PutByte(0)
		}
	}
	w.PutU16(uint16(PIDSentinel))
	w.PutU16(0)
	return w.Bytes()
}

// DecodeParameterList parses a ParameterList from b, stopping at the
// sentinel or at the end of the buffer if no sentinel is present.
func DecodeParameterList(b []byte) (ParameterList, error) {
	r := NewReader(b)
	var pl ParameterList
	for r.Remaining() >= 4 {
		id, err := r.GetU16()
		if err != nil {
			return pl, err
		}
		if ParameterID(id) == PIDSentinel {
			return pl, nil
		}
		length, err := r.GetU16()
		if err != nil {
			return pl, err
		}
		value, err := r.GetBytes(int(length))
		if err != nil {
			return pl, fmt.Errorf("parameter list: truncated value for pid %#x: %w", id, err)
		}
		pl.Params = append(pl.Params, Parameter{ID: ParameterID(id), Value: value})
	}
	return pl, nil
}
