package dds

import "godds/internal/qos"

// Topic names the (topic name, type name) pair DataWriters and
// DataReaders must agree on to match (spec.md §4.1/§4.6).
type Topic struct {
	entity
	participant *DomainParticipant
	name        string
	typeName    string
	qos         qos.Policies
}

// Name returns the topic's name.
func (t *Topic) Name() string { return t.name }

// TypeName returns the topic's type name.
func (t *Topic) TypeName() string { return t.typeName }

// GetQos returns the topic's current QoS.
func (t *Topic) GetQos() qos.Policies {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.qos
}

// SetQos validates and (if the entity isn't enabled yet, or the change
// is mutable) applies a new QoS.
func (t *Topic) SetQos(p qos.Policies) error {
	if err := p.Validate(); err != nil {
		return newError(InconsistentPolicy, err.Error())
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := checkImmutableChange(t.enabled, t.qos, p); err != nil {
		return err
	}
	t.qos = p
	return nil
}
