package dds

import (
	"sync"

	"godds/internal/qos"
	"godds/internal/rtpscore"
	"godds/internal/status"
)

// entity is the state spec.md §4.1 says every DDS entity carries: "an
// enabled flag, a QoS value, a listener slot with a status mask, a
// StatusCondition, and an InstanceHandle derived from its GUID."
// Publisher, Subscriber, Topic, DataWriter, and DataReader all embed
// it rather than re-declaring the same five fields.
type entity struct {
	mu      sync.Mutex
	guid    rtpscore.GUID
	enabled bool
	deleted bool

	tracker   *status.Tracker
	condition *status.StatusCondition
	listener  *status.Listener
	dispatch  *status.Dispatcher
}

// newEntity builds the guid/dispatch fields only. Callers must follow up
// with initStatus once the embedding struct has its final address (a
// method value taken here would bind to this function's local stack
// copy, not to the struct the caller goes on to embed it in).
func newEntity(guid rtpscore.GUID, dispatch *status.Dispatcher) entity {
	return entity{guid: guid, dispatch: dispatch}
}

// initStatus wires up the tracker and status condition. Must be called
// through a stable pointer to the entity's final location (e.g.
// &t.entity via t's own pointer-receiver method), after the embedding
// struct has been allocated.
func (e *entity) initStatus() {
	e.tracker = status.NewTracker(e.notify)
	e.condition = status.NewStatusCondition(e.tracker)
}

func (e *entity) notify(k status.Kind) {
	e.mu.Lock()
	l := e.listener
	d := e.dispatch
	e.mu.Unlock()
	if d != nil {
		d.Dispatch(l, k)
	}
}

// InstanceHandle returns the entity's GUID-derived instance handle.
func (e *entity) InstanceHandle() rtpscore.InstanceHandle {
	return rtpscore.InstanceHandleFromGUID(e.guid)
}

// GUID returns the entity's RTPS identity.
func (e *entity) GUID() rtpscore.GUID { return e.guid }

// Enable transitions the entity to enabled, the point past which
// immutable QoS policies may no longer change (spec.md §4.1).
func (e *entity) Enable() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return newError(AlreadyDeleted, "")
	}
	e.enabled = true
	return nil
}

func (e *entity) isEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

func (e *entity) isDeleted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deleted
}

func (e *entity) markDeleted() {
	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()
}

// SetListener replaces the entity's listener and mask. Per spec.md
// §4.8, a status not masked here falls through to the participant's
// listener, which callers implement by also attaching their
// participant-level listener through their own SetListener call.
func (e *entity) SetListener(l *status.Listener) {
	e.mu.Lock()
	e.listener = l
	e.mu.Unlock()
}

// GetStatusCondition returns the entity's StatusCondition, attachable
// to a WaitSet.
func (e *entity) GetStatusCondition() *status.StatusCondition {
	return e.condition
}

// GetStatusChanges returns the bitset of currently pending statuses.
func (e *entity) GetStatusChanges() status.Kind {
	return e.tracker.ActiveStatuses()
}

// checkImmutableChange rejects a QoS change to an immutable policy on
// an already-enabled entity (spec.md §4.1/§7 ImmutablePolicy).
func checkImmutableChange(enabled bool, current, next qos.Policies) error {
	if !enabled {
		return nil
	}
	if id, differs := qos.DiffersOnImmutable(current, next); differs {
		return newError(ImmutablePolicy, id.String())
	}
	return nil
}
