package dds

import (
	"godds/internal/history"
	"godds/internal/rtpscore"
)

// SampleInfo is the metadata accompanying a sample returned from
// DataReader.Read/Take, per spec.md §4.1/§8 S1 (`sample_info.valid_data`).
type SampleInfo struct {
	ValidData      bool
	SampleState    history.SampleState
	ViewState      history.ViewState
	InstanceState  history.InstanceState
	InstanceHandle rtpscore.InstanceHandle
	SourceTimestamp rtpscore.Time
}

// Sample is one payload plus its SampleInfo. Payload is nil and
// ValidData is false for a pure dispose/unregister transition with no
// associated data (DDS's "invalid sample" convention).
//
// There is no separate Key field: DataWriter.Write's key argument only
// crosses the wire as its 16-byte InstanceHandle hash (PID_KEY_HASH),
// not as the original key bytes, since spec.md §1 scopes out the typed
// façade that would otherwise extract key fields from a deserialized
// sample. Callers that need the key back on read should include it
// in the payload themselves.
type Sample struct {
	Payload []byte
	Info    SampleInfo
}

func sampleFromHistory(s *history.Sample) Sample {
	validData := s.Change.Kind == rtpscore.ChangeAlive && len(s.Change.SerializedPayload) > 0
	return Sample{
		Payload: s.Change.SerializedPayload,
		Info: SampleInfo{
			ValidData:       validData,
			SampleState:     s.SampleState,
			ViewState:       s.ViewState,
			InstanceState:   s.InstanceState,
			InstanceHandle:  s.Change.InstanceHandle,
			SourceTimestamp: s.Change.SourceTimestamp,
		},
	}
}
