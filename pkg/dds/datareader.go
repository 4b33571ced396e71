package dds

import (
	"sync"
	"time"

	"godds/internal/endpoint"
	"godds/internal/history"
	"godds/internal/qos"
	"godds/internal/rtpscore"
	"godds/internal/status"
	"godds/internal/wire"
)

// DataReader subscribes to a Topic. Always backed by a StatefulReader
// (see DataWriter's doc comment for why "stateless" is reserved for
// the SPDP reader).
type DataReader struct {
	entity
	subscriber *Subscriber
	topic      *Topic
	qos        qos.Policies

	cache *history.ReaderHistoryCache
	rtps  *endpoint.StatefulReader

	deadlineMu  sync.Mutex
	lastReceive time.Time
}

func newDataReader(sub *Subscriber, topic *Topic, q qos.Policies, guid rtpscore.GUID) *DataReader {
	depth := q.History.Depth
	if q.History.Kind == qos.KeepAll {
		depth = 0
	}
	cache := history.NewReaderHistoryCache(depth)
	r := &DataReader{
		entity:     newEntity(guid, sub.participant.dispatch),
		subscriber: sub,
		topic:      topic,
		qos:        q,
		cache:      cache,
		rtps:       endpoint.NewStatefulReader(guid, q.Reliability == qos.Reliable, cache),
	}
	r.initStatus()
	return r
}

// Topic returns the topic this reader subscribes to.
func (r *DataReader) Topic() *Topic { return r.topic }

// GetQos returns the reader's current QoS.
func (r *DataReader) GetQos() qos.Policies {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.qos
}

// SetQos validates and applies a new QoS, rejecting changes to
// immutable policies once the reader is enabled.
func (r *DataReader) SetQos(q qos.Policies) error {
	if err := q.Validate(); err != nil {
		return newError(InconsistentPolicy, err.Error())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := checkImmutableChange(r.enabled, r.qos, q); err != nil {
		return err
	}
	r.qos = q
	return nil
}

// Read returns samples matching the given masks without removing them
// from the cache (DDS read semantics); an empty mask slice means
// "don't filter on this dimension".
func (r *DataReader) Read(sampleMask []history.SampleState, viewMask []history.ViewState, instanceMask []history.InstanceState) ([]Sample, error) {
	if !r.isEnabled() {
		return nil, newError(NotEnabled, "")
	}
	hs := r.cache.Read(sampleMask, viewMask, instanceMask)
	if len(hs) == 0 {
		return nil, newError(NoData, "")
	}
	r.tracker.TakeDataAvailable()
	out := make([]Sample, len(hs))
	for i, s := range hs {
		out[i] = sampleFromHistory(s)
	}
	return out, nil
}

// Take returns samples matching the given masks and removes them from
// the cache (DDS take semantics).
func (r *DataReader) Take(sampleMask []history.SampleState, viewMask []history.ViewState, instanceMask []history.InstanceState) ([]Sample, error) {
	if !r.isEnabled() {
		return nil, newError(NotEnabled, "")
	}
	hs := r.cache.Take(sampleMask, viewMask, instanceMask)
	if len(hs) == 0 {
		return nil, newError(NoData, "")
	}
	r.tracker.TakeDataAvailable()
	out := make([]Sample, len(hs))
	for i, s := range hs {
		out[i] = sampleFromHistory(s)
	}
	return out, nil
}

// AddMatchedWriter registers a matched remote writer's proxy state,
// called by the participant's SEDP match callback.
func (r *DataReader) AddMatchedWriter(remote rtpscore.GUID, reliable bool) *endpoint.WriterProxy {
	return r.rtps.AddMatchedWriter(remote, reliable)
}

// RemoveMatchedWriter unmatches a remote writer.
func (r *DataReader) RemoveMatchedWriter(remote rtpscore.GUID) {
	r.rtps.RemoveMatchedWriter(remote)
}

// OnData processes a received DATA submessage from remote, updating
// the cache and raising DataAvailable/SampleLost as appropriate.
func (r *DataReader) OnData(remote rtpscore.GUID, d wire.Data, ts rtpscore.Time) endpoint.DataResult {
	result := r.rtps.OnData(remote, d, ts)
	switch result {
	case endpoint.ResultAdded:
		r.tracker.NotifyDataAvailable()
	case endpoint.ResultAddedWithLoss:
		r.tracker.NotifyDataAvailable()
		r.tracker.NotifySampleLost()
	}
	if result == endpoint.ResultAdded || result == endpoint.ResultAddedWithLoss {
		r.deadlineMu.Lock()
		r.lastReceive = time.Now()
		r.deadlineMu.Unlock()
	}
	return result
}

// CheckDeadline raises REQUESTED_DEADLINE_MISSED if this reader's
// DEADLINE QoS period has elapsed since the last received sample
// without a new one (spec.md §4.1/§4.8), mirroring DataWriter's
// writer-wide simplification of the per-instance rule.
func (r *DataReader) CheckDeadline(now time.Time) {
	r.mu.Lock()
	deadline := r.qos.Deadline
	r.mu.Unlock()
	if deadline <= 0 {
		return
	}
	r.deadlineMu.Lock()
	last := r.lastReceive
	missed := !last.IsZero() && now.Sub(last) > deadline
	if missed {
		r.lastReceive = now
	}
	r.deadlineMu.Unlock()
	if missed {
		r.tracker.NotifyRequestedDeadlineMissed()
	}
}

// SubscriptionMatchedStatus returns and clears the reader's pending
// SUBSCRIPTION_MATCHED status (spec.md §4.8).
func (r *DataReader) SubscriptionMatchedStatus() status.MatchedStatus {
	return r.tracker.SubscriptionMatchedStatus()
}

// RequestedIncompatibleQoSStatus returns and clears the reader's
// pending REQUESTED_INCOMPATIBLE_QOS status.
func (r *DataReader) RequestedIncompatibleQoSStatus() status.IncompatibleQoSStatus {
	return r.tracker.RequestedIncompatibleQoSStatus()
}

// RequestedDeadlineMissedStatus returns and clears the reader's
// pending REQUESTED_DEADLINE_MISSED status.
func (r *DataReader) RequestedDeadlineMissedStatus() status.DeadlineMissedStatus {
	return r.tracker.RequestedDeadlineMissedStatus()
}

// SampleLostStatus returns and clears the reader's pending SAMPLE_LOST
// status.
func (r *DataReader) SampleLostStatus() status.SampleLostStatus {
	return r.tracker.SampleLostStatus()
}

// SampleRejectedStatus returns and clears the reader's pending
// SAMPLE_REJECTED status. Nothing currently raises SampleRejected
// (this runtime has no resource-limit rejection path yet), so this
// always reads zero.
func (r *DataReader) SampleRejectedStatus() status.SampleRejectedStatus {
	return r.tracker.SampleRejectedStatus()
}

// OnHeartbeat forwards a received HEARTBEAT to the RTPS reader state
// machine.
func (r *DataReader) OnHeartbeat(remote rtpscore.GUID, hb wire.Heartbeat) bool {
	return r.rtps.OnHeartbeat(remote, hb)
}

// OnGap forwards a received GAP to the RTPS reader state machine.
func (r *DataReader) OnGap(remote rtpscore.GUID, gap wire.Gap) {
	r.rtps.OnGap(remote, gap)
}

// BuildAckNacks returns the ACKNACK submessages due to be sent to
// matched writers right now (the participant's timer loop drives
// this).
func (r *DataReader) BuildAckNacks(now time.Time) map[rtpscore.GUID]wire.AckNack {
	return r.rtps.BuildAckNacks(now)
}

func (r *DataReader) subscriptionMatchedStatus() {
	r.tracker.NotifySubscriptionMatched(1)
}
