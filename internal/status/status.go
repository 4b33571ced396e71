// Package status implements the StatusKind bitset, StatusCondition
// trigger, WaitSet blocking wait, and listener dispatch described in
// spec.md §4.8: asynchronous events (data arrival, match changes,
// sample loss) surface either as an edge-triggered condition a WaitSet
// can block on, or as a callback on a dedicated per-participant
// listener thread — never inline in the entity handler that detected
// them.
//
// Grounded on original_source/dds/src/implementation/actors/
// subscriber_listener_actor.rs's trigger_on_* dispatch (one method per
// status, invoked off the entity's own task) and the teacher's
// _examples/adred-codev-ws_poc/ws/worker_pool.go panic-recovering dispatch loop for the listener
// thread itself.
package status

import "sync"

// Kind is one bit of spec.md §4.8's StatusKind bitset.
type Kind uint32

const (
	InconsistentTopic Kind = 1 << iota
	OfferedDeadlineMissed
	RequestedDeadlineMissed
	OfferedIncompatibleQoS
	RequestedIncompatibleQoS
	SampleLost
	SampleRejected
	DataOnReaders
	DataAvailable
	SubscriptionMatched
	PublicationMatched
	LivelinessLost
	LivelinessChanged
)

// All is the mask matching every defined status kind.
const All = InconsistentTopic | OfferedDeadlineMissed | RequestedDeadlineMissed |
	OfferedIncompatibleQoS | RequestedIncompatibleQoS | SampleLost | SampleRejected |
	DataOnReaders | DataAvailable | SubscriptionMatched | PublicationMatched |
	LivelinessLost | LivelinessChanged

func (k Kind) String() string {
	switch k {
	case InconsistentTopic:
		return "INCONSISTENT_TOPIC"
	case OfferedDeadlineMissed:
		return "OFFERED_DEADLINE_MISSED"
	case RequestedDeadlineMissed:
		return "REQUESTED_DEADLINE_MISSED"
	case OfferedIncompatibleQoS:
		return "OFFERED_INCOMPATIBLE_QOS"
	case RequestedIncompatibleQoS:
		return "REQUESTED_INCOMPATIBLE_QOS"
	case SampleLost:
		return "SAMPLE_LOST"
	case SampleRejected:
		return "SAMPLE_REJECTED"
	case DataOnReaders:
		return "DATA_ON_READERS"
	case DataAvailable:
		return "DATA_AVAILABLE"
	case SubscriptionMatched:
		return "SUBSCRIPTION_MATCHED"
	case PublicationMatched:
		return "PUBLICATION_MATCHED"
	case LivelinessLost:
		return "LIVELINESS_LOST"
	case LivelinessChanged:
		return "LIVELINESS_CHANGED"
	default:
		return "UNKNOWN"
	}
}

// SampleLostStatus, SampleRejectedStatus, and the match-count statuses
// carry the small amount of state spec.md's status getters expose
// beyond "this happened". Counts are cumulative since entity creation,
// per DDS convention; *_change fields are the delta since the last
// getter call.

type SampleLostStatus struct {
	TotalCount       int32
	TotalCountChange int32
}

type DeadlineMissedStatus struct {
	TotalCount       int32
	TotalCountChange int32
}

type SampleRejectedStatus struct {
	TotalCount       int32
	TotalCountChange int32
	LastReason       string
}

type MatchedStatus struct {
	TotalCount        int32
	TotalCountChange  int32
	CurrentCount      int32
	CurrentCountChange int32
}

type IncompatibleQoSStatus struct {
	TotalCount       int32
	TotalCountChange int32
	LastPolicyID     int
}

type LivelinessLostStatus struct {
	TotalCount       int32
	TotalCountChange int32
}

type LivelinessChangedStatus struct {
	AliveCount         int32
	NotAliveCount      int32
	AliveCountChange   int32
	NotAliveCountChange int32
}

// Tracker accumulates per-kind occurrence counts for one entity and
// exposes the edge-triggered read-and-clear getters spec.md §4.8
// requires ("status bits are cleared on the corresponding getter
// call"). It is embedded by whichever entity needs it; StatusCondition
// and listener dispatch both read from the same Tracker so a getter
// call and a condition trigger can never disagree about pending state.
type Tracker struct {
	mu     sync.Mutex
	active Kind

	sampleLost        SampleLostStatus
	sampleRejected    SampleRejectedStatus
	subscriptionMatch MatchedStatus
	publicationMatch  MatchedStatus
	reqIncompatible   IncompatibleQoSStatus
	offIncompatible   IncompatibleQoSStatus
	livelinessLost    LivelinessLostStatus
	livelinessChanged LivelinessChangedStatus
	offDeadline       DeadlineMissedStatus
	reqDeadline       DeadlineMissedStatus

	onChange func(active Kind)
}

// NewTracker builds an empty Tracker. onChange, if non-nil, fires
// (outside any lock the caller holds) whenever a new status bit goes
// from inactive to active, letting the owning entity forward the
// change to its StatusCondition and listener.
func NewTracker(onChange func(active Kind)) *Tracker {
	return &Tracker{onChange: onChange}
}

func (t *Tracker) raise(k Kind) {
	t.mu.Lock()
	wasActive := t.active&k != 0
	t.active |= k
	onChange := t.onChange
	t.mu.Unlock()
	if !wasActive && onChange != nil {
		onChange(k)
	}
}

// ActiveStatuses returns the bitset of currently pending (unread)
// statuses.
func (t *Tracker) ActiveStatuses() Kind {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

func (t *Tracker) clear(k Kind) {
	t.mu.Lock()
	t.active &^= k
	t.mu.Unlock()
}

// NotifySampleLost records a lost sample and raises SampleLost.
func (t *Tracker) NotifySampleLost() {
	t.mu.Lock()
	t.sampleLost.TotalCount++
	t.sampleLost.TotalCountChange++
	t.mu.Unlock()
	t.raise(SampleLost)
}

// SampleLostStatus returns and clears the pending sample-lost status.
func (t *Tracker) SampleLostStatus() SampleLostStatus {
	t.mu.Lock()
	s := t.sampleLost
	t.sampleLost.TotalCountChange = 0
	t.mu.Unlock()
	t.clear(SampleLost)
	return s
}

// NotifySampleRejected records a rejected sample and raises SampleRejected.
func (t *Tracker) NotifySampleRejected(reason string) {
	t.mu.Lock()
	t.sampleRejected.TotalCount++
	t.sampleRejected.TotalCountChange++
	t.sampleRejected.LastReason = reason
	t.mu.Unlock()
	t.raise(SampleRejected)
}

func (t *Tracker) SampleRejectedStatus() SampleRejectedStatus {
	t.mu.Lock()
	s := t.sampleRejected
	t.sampleRejected.TotalCountChange = 0
	t.mu.Unlock()
	t.clear(SampleRejected)
	return s
}

// NotifyDataAvailable raises DataAvailable; it carries no accumulated
// state, just the edge.
func (t *Tracker) NotifyDataAvailable() {
	t.raise(DataAvailable)
}

// TakeDataAvailable clears DataAvailable, mirroring read()/take()
// consuming the pending notification.
func (t *Tracker) TakeDataAvailable() {
	t.clear(DataAvailable)
}

// NotifySubscriptionMatched (and NotifyPublicationMatched below) update
// the match counts. delta is +1 on a new match, -1 on an unmatch.
func (t *Tracker) NotifySubscriptionMatched(delta int32) {
	t.mu.Lock()
	if delta > 0 {
		t.subscriptionMatch.TotalCount++
		t.subscriptionMatch.TotalCountChange++
	}
	t.subscriptionMatch.CurrentCount += delta
	t.subscriptionMatch.CurrentCountChange += delta
	t.mu.Unlock()
	t.raise(SubscriptionMatched)
}

func (t *Tracker) SubscriptionMatchedStatus() MatchedStatus {
	t.mu.Lock()
	s := t.subscriptionMatch
	t.subscriptionMatch.TotalCountChange = 0
	t.subscriptionMatch.CurrentCountChange = 0
	t.mu.Unlock()
	t.clear(SubscriptionMatched)
	return s
}

func (t *Tracker) NotifyPublicationMatched(delta int32) {
	t.mu.Lock()
	if delta > 0 {
		t.publicationMatch.TotalCount++
		t.publicationMatch.TotalCountChange++
	}
	t.publicationMatch.CurrentCount += delta
	t.publicationMatch.CurrentCountChange += delta
	t.mu.Unlock()
	t.raise(PublicationMatched)
}

func (t *Tracker) PublicationMatchedStatus() MatchedStatus {
	t.mu.Lock()
	s := t.publicationMatch
	t.publicationMatch.TotalCountChange = 0
	t.publicationMatch.CurrentCountChange = 0
	t.mu.Unlock()
	t.clear(PublicationMatched)
	return s
}

func (t *Tracker) NotifyRequestedIncompatibleQoS(policyID int) {
	t.mu.Lock()
	t.reqIncompatible.TotalCount++
	t.reqIncompatible.TotalCountChange++
	t.reqIncompatible.LastPolicyID = policyID
	t.mu.Unlock()
	t.raise(RequestedIncompatibleQoS)
}

func (t *Tracker) RequestedIncompatibleQoSStatus() IncompatibleQoSStatus {
	t.mu.Lock()
	s := t.reqIncompatible
	t.reqIncompatible.TotalCountChange = 0
	t.mu.Unlock()
	t.clear(RequestedIncompatibleQoS)
	return s
}

func (t *Tracker) NotifyOfferedIncompatibleQoS(policyID int) {
	t.mu.Lock()
	t.offIncompatible.TotalCount++
	t.offIncompatible.TotalCountChange++
	t.offIncompatible.LastPolicyID = policyID
	t.mu.Unlock()
	t.raise(OfferedIncompatibleQoS)
}

func (t *Tracker) OfferedIncompatibleQoSStatus() IncompatibleQoSStatus {
	t.mu.Lock()
	s := t.offIncompatible
	t.offIncompatible.TotalCountChange = 0
	t.mu.Unlock()
	t.clear(OfferedIncompatibleQoS)
	return s
}

// NotifyOfferedDeadlineMissed records a missed DEADLINE period on a
// writer.
func (t *Tracker) NotifyOfferedDeadlineMissed() {
	t.mu.Lock()
	t.offDeadline.TotalCount++
	t.offDeadline.TotalCountChange++
	t.mu.Unlock()
	t.raise(OfferedDeadlineMissed)
}

func (t *Tracker) OfferedDeadlineMissedStatus() DeadlineMissedStatus {
	t.mu.Lock()
	s := t.offDeadline
	t.offDeadline.TotalCountChange = 0
	t.mu.Unlock()
	t.clear(OfferedDeadlineMissed)
	return s
}

// NotifyRequestedDeadlineMissed records a missed DEADLINE period on a
// reader.
func (t *Tracker) NotifyRequestedDeadlineMissed() {
	t.mu.Lock()
	t.reqDeadline.TotalCount++
	t.reqDeadline.TotalCountChange++
	t.mu.Unlock()
	t.raise(RequestedDeadlineMissed)
}

func (t *Tracker) RequestedDeadlineMissedStatus() DeadlineMissedStatus {
	t.mu.Lock()
	s := t.reqDeadline
	t.reqDeadline.TotalCountChange = 0
	t.mu.Unlock()
	t.clear(RequestedDeadlineMissed)
	return s
}

func (t *Tracker) NotifyLivelinessLost() {
	t.mu.Lock()
	t.livelinessLost.TotalCount++
	t.livelinessLost.TotalCountChange++
	t.mu.Unlock()
	t.raise(LivelinessLost)
}

func (t *Tracker) LivelinessLostStatus() LivelinessLostStatus {
	t.mu.Lock()
	s := t.livelinessLost
	t.livelinessLost.TotalCountChange = 0
	t.mu.Unlock()
	t.clear(LivelinessLost)
	return s
}

func (t *Tracker) NotifyLivelinessChanged(aliveDelta, notAliveDelta int32) {
	t.mu.Lock()
	t.livelinessChanged.AliveCount += aliveDelta
	t.livelinessChanged.NotAliveCount += notAliveDelta
	t.livelinessChanged.AliveCountChange += aliveDelta
	t.livelinessChanged.NotAliveCountChange += notAliveDelta
	t.mu.Unlock()
	t.raise(LivelinessChanged)
}

func (t *Tracker) LivelinessChangedStatus() LivelinessChangedStatus {
	t.mu.Lock()
	s := t.livelinessChanged
	t.livelinessChanged.AliveCountChange = 0
	t.livelinessChanged.NotAliveCountChange = 0
	t.mu.Unlock()
	t.clear(LivelinessChanged)
	return s
}
