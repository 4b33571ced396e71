package dds

import (
	"context"
	"sync"
	"time"

	"godds/internal/cdr"
	"godds/internal/endpoint"
	"godds/internal/history"
	"godds/internal/qos"
	"godds/internal/rtpscore"
	"godds/internal/status"
)

// DataWriter publishes samples on a Topic. It always owns a
// StatefulWriter (spec.md generalizes the reliable/best-effort split
// to whether the writer tracks per-reader state at all — a best-effort
// writer still uses the stateful machinery so late-joining readers and
// KEEP_LAST depth work uniformly; "stateless" in this runtime is
// reserved for the SPDP announcement writer, which has no notion of a
// matched reader set).
type DataWriter struct {
	entity
	publisher *Publisher
	topic     *Topic
	qos       qos.Policies

	cache  *history.WriterHistoryCache
	rtps   *endpoint.StatefulWriter
	sendFn func([]endpoint.OutboundSubmessage)

	deadlineMu sync.Mutex
	lastWrite  time.Time
}

func newDataWriter(pub *Publisher, topic *Topic, q qos.Policies, guid rtpscore.GUID, fragmentSize int, heartbeatPeriod time.Duration, sendFn func([]endpoint.OutboundSubmessage)) *DataWriter {
	cache := history.NewWriterHistoryCache(q.History)
	w := &DataWriter{
		entity:    newEntity(guid, pub.participant.dispatch),
		publisher: pub,
		topic:     topic,
		qos:       q,
		cache:     cache,
		rtps:      endpoint.NewStatefulWriter(guid, q.Reliability == qos.Reliable, fragmentSize, heartbeatPeriod, cache),
		sendFn:    sendFn,
	}
	w.initStatus()
	return w
}

// Topic returns the topic this writer publishes on.
func (w *DataWriter) Topic() *Topic { return w.topic }

// GetQos returns the writer's current QoS.
func (w *DataWriter) GetQos() qos.Policies {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.qos
}

// SetQos validates and applies a new QoS, rejecting changes to
// immutable policies once the writer is enabled.
func (w *DataWriter) SetQos(q qos.Policies) error {
	if err := q.Validate(); err != nil {
		return newError(InconsistentPolicy, err.Error())
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := checkImmutableChange(w.enabled, w.qos, q); err != nil {
		return err
	}
	w.qos = q
	return nil
}

// Write publishes a new (key, payload) sample, timestamped now.
func (w *DataWriter) Write(key, payload []byte) error {
	return w.WriteWithTimestamp(key, payload, rtpscore.Now())
}

// WriteWithTimestamp publishes a sample with an explicit source
// timestamp.
func (w *DataWriter) WriteWithTimestamp(key, payload []byte, ts rtpscore.Time) error {
	if !w.isEnabled() {
		return newError(NotEnabled, "")
	}
	return w.submit(rtpscore.ChangeAlive, key, payload, ts)
}

// Dispose marks the instance identified by key as disposed.
func (w *DataWriter) Dispose(key []byte) error {
	if !w.isEnabled() {
		return newError(NotEnabled, "")
	}
	return w.submit(rtpscore.ChangeDisposed, key, nil, rtpscore.Now())
}

// UnregisterInstance tells matched readers this writer will no longer
// update the instance identified by key.
func (w *DataWriter) UnregisterInstance(key []byte) error {
	if !w.isEnabled() {
		return newError(NotEnabled, "")
	}
	return w.submit(rtpscore.ChangeUnregistered, key, nil, rtpscore.Now())
}

func (w *DataWriter) submit(kind rtpscore.CacheChangeKind, key, payload []byte, ts rtpscore.Time) error {
	handle := cdr.KeyHash(key)
	change := rtpscore.CacheChange{
		Kind:              kind,
		WriterGUID:        w.guid,
		InstanceHandle:    handle,
		SourceTimestamp:   ts,
		SerializedPayload: payload,
		InlineQoS:         inlineQoSParams(kind, handle),
	}
	assigned, _, _ := w.cache.AddChange(change)
	change.SequenceNumber = assigned
	w.deadlineMu.Lock()
	w.lastWrite = time.Now()
	w.deadlineMu.Unlock()
	if w.sendFn != nil {
		w.sendFn(w.rtps.Tick(time.Now()))
	}
	return nil
}

// CheckDeadline raises OFFERED_DEADLINE_MISSED if this writer's DEADLINE
// QoS period has elapsed since the last write without a new one (spec.md
// §4.1/§4.8). The window starts at the first Write call; a writer that
// has never published has nothing to miss yet. DDS specifies DEADLINE
// per-instance; this runtime tracks it writer-wide, matching the
// instance granularity the rest of this package's history caches
// already settle for.
func (w *DataWriter) CheckDeadline(now time.Time) {
	w.mu.Lock()
	deadline := w.qos.Deadline
	w.mu.Unlock()
	if deadline <= 0 {
		return
	}
	w.deadlineMu.Lock()
	last := w.lastWrite
	missed := !last.IsZero() && now.Sub(last) > deadline
	if missed {
		w.lastWrite = now
	}
	w.deadlineMu.Unlock()
	if missed {
		w.tracker.NotifyOfferedDeadlineMissed()
	}
}

// PublicationMatchedStatus returns and clears the writer's pending
// PUBLICATION_MATCHED status (spec.md §4.8).
func (w *DataWriter) PublicationMatchedStatus() status.MatchedStatus {
	return w.tracker.PublicationMatchedStatus()
}

// OfferedIncompatibleQoSStatus returns and clears the writer's pending
// OFFERED_INCOMPATIBLE_QOS status.
func (w *DataWriter) OfferedIncompatibleQoSStatus() status.IncompatibleQoSStatus {
	return w.tracker.OfferedIncompatibleQoSStatus()
}

// OfferedDeadlineMissedStatus returns and clears the writer's pending
// OFFERED_DEADLINE_MISSED status.
func (w *DataWriter) OfferedDeadlineMissedStatus() status.DeadlineMissedStatus {
	return w.tracker.OfferedDeadlineMissedStatus()
}

// LivelinessLostStatus returns and clears the writer's pending
// LIVELINESS_LOST status. Liveliness monitoring itself is not yet
// implemented (spec.md §9 open question); this always reads zero.
func (w *DataWriter) LivelinessLostStatus() status.LivelinessLostStatus {
	return w.tracker.LivelinessLostStatus()
}

// AddMatchedReader registers a matched remote reader's proxy state,
// called by the participant's SEDP match callback.
func (w *DataWriter) AddMatchedReader(remote rtpscore.GUID, durability qos.DurabilityKind, reliable bool) *endpoint.ReaderProxy {
	return w.rtps.AddMatchedReader(remote, durability, reliable)
}

// RemoveMatchedReader unmatches a remote reader.
func (w *DataWriter) RemoveMatchedReader(remote rtpscore.GUID) {
	w.rtps.RemoveMatchedReader(remote)
}

// WaitForAcknowledgments blocks until every matched reliable reader has
// acknowledged every sample written so far, or ctx is done (spec.md
// §4.8's wait_for_acknowledgments).
func (w *DataWriter) WaitForAcknowledgments(ctx context.Context) error {
	maxSeq, ok := w.cache.MaxSeq()
	if !ok {
		return nil
	}
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if w.rtps.IsAcknowledgedByAll(maxSeq) {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return newError(Timeout, "")
			}
			return ctx.Err()
		}
	}
}

// Tick flushes pending retransmissions/heartbeats; the participant's
// timer loop calls this periodically for every enabled writer.
func (w *DataWriter) Tick(now time.Time) []endpoint.OutboundSubmessage {
	return w.rtps.Tick(now)
}

func (w *DataWriter) publicationMatchedStatus() {
	w.tracker.NotifyPublicationMatched(1)
}

// inlineQoSParams builds the inline-QoS parameter list every change
// carries: PID_KEY_HASH so a reader can recover instance identity across
// the wire (spec.md §4.1/§4.2 instance matching; without this every
// sample a reader receives collapses into a single zero-value instance),
// and PID_STATUS_INFO for dispose/unregister changes (spec.md §4.2's
// dispose/unregister changes need to cross the wire as something other
// than a plain DATA payload). Both ride the teacher's InlineQoS []byte
// plumbing already threaded through StatefulWriter.emitChange.
func inlineQoSParams(kind rtpscore.CacheChangeKind, handle rtpscore.InstanceHandle) []byte {
	var pl cdr.ParameterList
	pl.Put(cdr.PIDKeyHash, handle[:])
	if flags, ok := statusInfoFlags(kind); ok {
		pl.Put(cdr.PIDStatusInfo, []byte{0, 0, 0, flags})
	}
	return pl.Encode()
}

func statusInfoFlags(kind rtpscore.CacheChangeKind) (byte, bool) {
	switch kind {
	case rtpscore.ChangeDisposed:
		return cdr.StatusInfoDisposed, true
	case rtpscore.ChangeUnregistered:
		return cdr.StatusInfoUnregistered, true
	default:
		return 0, false
	}
}
