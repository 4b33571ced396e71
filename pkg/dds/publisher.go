package dds

import (
	"reflect"
	"time"

	"godds/internal/qos"
	"godds/internal/rtpscore"
)

// Publisher is a factory and container for DataWriters (spec.md
// §4.1's containment tree: Participant -> Publisher -> DataWriter).
type Publisher struct {
	entity
	participant *DomainParticipant
	defaultQoS  qos.Policies
	writers     map[rtpscore.GUID]*DataWriter
}

func newPublisher(p *DomainParticipant, guid rtpscore.GUID) *Publisher {
	pub := &Publisher{
		entity:      newEntity(guid, p.dispatch),
		participant: p,
		defaultQoS:  qos.DefaultDataWriterQoS(),
		writers:     make(map[rtpscore.GUID]*DataWriter),
	}
	pub.initStatus()
	return pub
}

// GetDefaultDataWriterQos returns the QoS newly created DataWriters
// inherit when none is given explicitly.
func (p *Publisher) GetDefaultDataWriterQos() qos.Policies {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.defaultQoS
}

// SetDefaultDataWriterQos changes that default.
func (p *Publisher) SetDefaultDataWriterQos(q qos.Policies) error {
	if err := q.Validate(); err != nil {
		return newError(InconsistentPolicy, err.Error())
	}
	p.mu.Lock()
	p.defaultQoS = q
	p.mu.Unlock()
	return nil
}

// CreateDataWriter creates a DataWriter for topic with the given QoS
// (or the publisher's default if q is the zero value — callers
// typically pass GetDefaultDataWriterQos()).
func (p *Publisher) CreateDataWriter(topic *Topic, q qos.Policies) (*DataWriter, error) {
	if topic == nil || topic.isDeleted() {
		return nil, newError(PreconditionNotMet, "topic is nil or deleted")
	}
	if reflect.DeepEqual(q, qos.Policies{}) {
		q = p.GetDefaultDataWriterQos()
	}
	if err := q.Validate(); err != nil {
		return nil, newError(InconsistentPolicy, err.Error())
	}

	p.mu.Lock()
	guid := p.participant.allocateEntityID(rtpscore.EntityKindNoKeyWriter)
	p.mu.Unlock()

	w := newDataWriter(p, topic, q, guid, p.participant.cfg.FragmentSize,
		p.participant.cfg.HeartbeatPeriod, p.participant.sendSubmessages)

	p.mu.Lock()
	p.writers[guid] = w
	p.mu.Unlock()

	p.participant.registerWriter(w)
	return w, nil
}

// DeleteDataWriter removes w from this publisher, rejecting the call
// if w belongs to a different publisher (spec.md §7
// PreconditionNotMet: "deleting across participants").
func (p *Publisher) DeleteDataWriter(w *DataWriter) error {
	if w.publisher != p {
		return newError(PreconditionNotMet, "data writer belongs to a different publisher")
	}
	p.mu.Lock()
	delete(p.writers, w.guid)
	p.mu.Unlock()
	p.participant.unregisterWriter(w.guid)
	w.markDeleted()
	return nil
}

// Tick flushes every writer's pending retransmissions/heartbeats.
func (p *Publisher) Tick(now time.Time) {
	p.mu.Lock()
	writers := make([]*DataWriter, 0, len(p.writers))
	for _, w := range p.writers {
		writers = append(writers, w)
	}
	p.mu.Unlock()

	for _, w := range writers {
		if !w.isEnabled() {
			continue
		}
		w.CheckDeadline(now)
		msgs := w.Tick(now)
		if len(msgs) > 0 {
			p.participant.sendSubmessages(msgs)
		}
	}
}
