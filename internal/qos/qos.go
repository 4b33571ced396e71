// Package qos defines the Quality-of-Service policy values attached to
// every DDS entity, their defaults, self-consistency validation, and the
// offered/requested compatibility rule SEDP matching depends on (spec.md
// §4.1, §4.7, §4.8).
//
// Grounded in shape on the teacher's config.Configuration (a flat struct of
// named, independently defaulted and validated fields) generalized from one
// process-wide config to one value attached per entity.
package qos

import (
	"fmt"
	"time"
)

// ReliabilityKind selects best-effort or reliable delivery.
type ReliabilityKind int

const (
	BestEffort ReliabilityKind = iota
	Reliable
)

// DurabilityKind ranks how much history a late-joining reader should see.
// Higher values are "stronger": a writer offering a kind is compatible with
// every reader requesting that kind or a weaker one.
type DurabilityKind int

const (
	Volatile DurabilityKind = iota
	TransientLocal
	Transient
	Persistent
)

// HistoryKind selects whether a cache keeps every sample or only the last N
// per instance.
type HistoryKind int

const (
	KeepLast HistoryKind = iota
	KeepAll
)

// OwnershipKind selects whether multiple writers may update the same
// instance concurrently or only the highest-strength one may.
type OwnershipKind int

const (
	SharedOwnership OwnershipKind = iota
	ExclusiveOwnership
)

// LivelinessKind selects how a writer's liveliness is asserted.
type LivelinessKind int

const (
	Automatic LivelinessKind = iota
	ManualByParticipant
	ManualByTopic
)

// PolicyID identifies a QoS policy for INCOMPATIBLE_QOS status reporting
// (spec.md §4.1 last_policy_id).
type PolicyID int

const (
	PolicyIDInvalid PolicyID = iota
	PolicyIDReliability
	PolicyIDDurability
	PolicyIDHistory
	PolicyIDDeadline
	PolicyIDLatencyBudget
	PolicyIDOwnership
	PolicyIDLiveliness
	PolicyIDResourceLimits
	PolicyIDPartition
)

func (p PolicyID) String() string {
	switch p {
	case PolicyIDReliability:
		return "RELIABILITY"
	case PolicyIDDurability:
		return "DURABILITY"
	case PolicyIDHistory:
		return "HISTORY"
	case PolicyIDDeadline:
		return "DEADLINE"
	case PolicyIDLatencyBudget:
		return "LATENCY_BUDGET"
	case PolicyIDOwnership:
		return "OWNERSHIP"
	case PolicyIDLiveliness:
		return "LIVELINESS"
	case PolicyIDResourceLimits:
		return "RESOURCE_LIMITS"
	case PolicyIDPartition:
		return "PARTITION"
	default:
		return "INVALID"
	}
}

// ResourceLimits bounds how many samples a history cache may hold.
// Unlimited is represented by a negative value, matching the OMG IDL
// convention of LENGTH_UNLIMITED == -1.
type ResourceLimits struct {
	MaxSamples             int
	MaxInstances           int
	MaxSamplesPerInstance  int
}

// Unlimited is the sentinel for "no bound" on a ResourceLimits field.
const Unlimited = -1

// History bounds how many samples per instance a cache retains.
type History struct {
	Kind  HistoryKind
	Depth int // meaningful only when Kind == KeepLast
}

// Policies is the full QoS value attached to a Topic, DataWriter, or
// DataReader. Not every field applies to every entity kind; unused fields
// are simply ignored the way the OMG spec's shared QosPolicy structs are.
type Policies struct {
	Reliability    ReliabilityKind
	MaxBlockingTime time.Duration // Reliability's max_blocking_time

	Durability DurabilityKind

	History        History
	ResourceLimits ResourceLimits

	Deadline      time.Duration // 0 means infinite
	LatencyBudget time.Duration

	Ownership         OwnershipKind
	OwnershipStrength int32

	Liveliness      LivelinessKind
	LeaseDuration   time.Duration

	Partitions []string
}

// DefaultDataWriterQoS matches the OMG spec's default DataWriterQos:
// best-effort, volatile, keep-last depth 1, shared ownership.
func DefaultDataWriterQoS() Policies {
	return Policies{
		Reliability:   BestEffort,
		Durability:    Volatile,
		History:       History{Kind: KeepLast, Depth: 1},
		ResourceLimits: ResourceLimits{MaxSamples: Unlimited, MaxInstances: Unlimited, MaxSamplesPerInstance: Unlimited},
		Ownership:     SharedOwnership,
		Liveliness:    Automatic,
		LeaseDuration: 0,
	}
}

// DefaultDataReaderQoS mirrors DefaultDataWriterQoS; the two defaults are
// compatible with each other out of the box.
func DefaultDataReaderQoS() Policies {
	return DefaultDataWriterQoS()
}

// Validate checks self-consistency the way spec.md §4.7 requires at
// create_* time: HISTORY.depth <= RESOURCE_LIMITS.max_samples_per_instance,
// and a KeepLast history must have a positive depth.
func (p Policies) Validate() error {
	if p.History.Kind == KeepLast && p.History.Depth <= 0 {
		return fmt.Errorf("qos: HISTORY.depth must be > 0 for KEEP_LAST, got %d", p.History.Depth)
	}
	if p.ResourceLimits.MaxSamplesPerInstance != Unlimited && p.History.Kind == KeepLast {
		if p.History.Depth > p.ResourceLimits.MaxSamplesPerInstance {
			return fmt.Errorf("qos: HISTORY.depth (%d) must be <= RESOURCE_LIMITS.max_samples_per_instance (%d)",
				p.History.Depth, p.ResourceLimits.MaxSamplesPerInstance)
		}
	}
	if p.ResourceLimits.MaxSamples != Unlimited && p.ResourceLimits.MaxInstances != Unlimited {
		if p.ResourceLimits.MaxSamples < p.ResourceLimits.MaxInstances {
			return fmt.Errorf("qos: RESOURCE_LIMITS.max_samples (%d) must be >= max_instances (%d)",
				p.ResourceLimits.MaxSamples, p.ResourceLimits.MaxInstances)
		}
	}
	return nil
}

// immutablePolicies are rejected by set_qos once an entity is enabled
// (spec.md §4.7 IMMUTABLE_POLICY).
var immutablePolicies = []PolicyID{
	PolicyIDReliability, PolicyIDDurability, PolicyIDLiveliness,
	PolicyIDOwnership, PolicyIDHistory, PolicyIDResourceLimits,
}

// DiffersOnImmutable reports whether next changes any field set_qos may not
// touch after enable, returning the first such policy found.
func DiffersOnImmutable(current, next Policies) (PolicyID, bool) {
	if current.Reliability != next.Reliability {
		return PolicyIDReliability, true
	}
	if current.Durability != next.Durability {
		return PolicyIDDurability, true
	}
	if current.Liveliness != next.Liveliness {
		return PolicyIDLiveliness, true
	}
	if current.Ownership != next.Ownership {
		return PolicyIDOwnership, true
	}
	if current.History != next.History {
		return PolicyIDHistory, true
	}
	if current.ResourceLimits != next.ResourceLimits {
		return PolicyIDResourceLimits, true
	}
	return PolicyIDInvalid, false
}

// Compatible implements spec.md §4.1's "offered >= requested" rule: offered
// is a writer's Policies, requested is a reader's. Returns the first
// incompatible policy id, or PolicyIDInvalid if fully compatible.
func Compatible(offered, requested Policies) (PolicyID, bool) {
	if requested.Reliability == Reliable && offered.Reliability != Reliable {
		return PolicyIDReliability, false
	}
	if requested.Durability > offered.Durability {
		return PolicyIDDurability, false
	}
	if requested.Deadline != 0 && (offered.Deadline == 0 || offered.Deadline > requested.Deadline) {
		return PolicyIDDeadline, false
	}
	if requested.Ownership != offered.Ownership {
		return PolicyIDOwnership, false
	}
	if requested.LatencyBudget != 0 && offered.LatencyBudget > requested.LatencyBudget {
		return PolicyIDLatencyBudget, false
	}
	return PolicyIDInvalid, true
}
