package dds

import (
	"reflect"

	"godds/internal/qos"
	"godds/internal/rtpscore"
)

// Subscriber is a factory and container for DataReaders.
type Subscriber struct {
	entity
	participant *DomainParticipant
	defaultQoS  qos.Policies
	readers     map[rtpscore.GUID]*DataReader
}

func newSubscriber(p *DomainParticipant, guid rtpscore.GUID) *Subscriber {
	sub := &Subscriber{
		entity:      newEntity(guid, p.dispatch),
		participant: p,
		defaultQoS:  qos.DefaultDataReaderQoS(),
		readers:     make(map[rtpscore.GUID]*DataReader),
	}
	sub.initStatus()
	return sub
}

// GetDefaultDataReaderQos returns the QoS newly created DataReaders
// inherit when none is given explicitly.
func (s *Subscriber) GetDefaultDataReaderQos() qos.Policies {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaultQoS
}

// SetDefaultDataReaderQos changes that default.
func (s *Subscriber) SetDefaultDataReaderQos(q qos.Policies) error {
	if err := q.Validate(); err != nil {
		return newError(InconsistentPolicy, err.Error())
	}
	s.mu.Lock()
	s.defaultQoS = q
	s.mu.Unlock()
	return nil
}

// CreateDataReader creates a DataReader for topic with the given QoS.
func (s *Subscriber) CreateDataReader(topic *Topic, q qos.Policies) (*DataReader, error) {
	if topic == nil || topic.isDeleted() {
		return nil, newError(PreconditionNotMet, "topic is nil or deleted")
	}
	if reflect.DeepEqual(q, qos.Policies{}) {
		q = s.GetDefaultDataReaderQos()
	}
	if err := q.Validate(); err != nil {
		return nil, newError(InconsistentPolicy, err.Error())
	}

	s.mu.Lock()
	guid := s.participant.allocateEntityID(rtpscore.EntityKindNoKeyReader)
	s.mu.Unlock()

	r := newDataReader(s, topic, q, guid)

	s.mu.Lock()
	s.readers[guid] = r
	s.mu.Unlock()

	s.participant.registerReader(r)
	return r, nil
}

// DeleteDataReader removes r from this subscriber, rejecting the call
// if r belongs to a different subscriber.
func (s *Subscriber) DeleteDataReader(r *DataReader) error {
	if r.subscriber != s {
		return newError(PreconditionNotMet, "data reader belongs to a different subscriber")
	}
	s.mu.Lock()
	delete(s.readers, r.guid)
	s.mu.Unlock()
	s.participant.unregisterReader(r.guid)
	r.markDeleted()
	return nil
}
