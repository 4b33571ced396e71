package discovery

import (
	"sync"

	"godds/internal/qos"
	"godds/internal/rtpscore"
)

// EndpointKind distinguishes a discovered writer from a discovered reader.
type EndpointKind int

const (
	KindWriter EndpointKind = iota
	KindReader
)

// DiscoveredEndpoint is a remote publication or subscription advertised on
// DCPSPublication/DCPSSubscription (spec.md §4.6).
type DiscoveredEndpoint struct {
	GUID      rtpscore.GUID
	Kind      EndpointKind
	TopicName string
	TypeName  string
	QoS       qos.Policies
}

// LocalEndpoint is the minimal view SEDP needs of one of this
// participant's own writers or readers to decide a match.
type LocalEndpoint struct {
	GUID      rtpscore.GUID
	Kind      EndpointKind
	TopicName string
	TypeName  string
	QoS       qos.Policies
}

// MatchResult reports the outcome of comparing a local endpoint against a
// discovered remote one.
type MatchResult struct {
	Matched            bool
	IncompatiblePolicy qos.PolicyID
}

// Match implements spec.md §4.1/§4.6's matching rule: identical topic and
// type name, QoS compatibility (offered >= requested), and partition
// compatibility.
func Match(local LocalEndpoint, remote DiscoveredEndpoint) MatchResult {
	if local.Kind == remote.Kind {
		return MatchResult{}
	}
	if local.TopicName != remote.TopicName || local.TypeName != remote.TypeName {
		return MatchResult{}
	}

	var offered, requested qos.Policies
	if local.Kind == KindWriter {
		offered, requested = local.QoS, remote.QoS
	} else {
		offered, requested = remote.QoS, local.QoS
	}
	if id, ok := qos.Compatible(offered, requested); !ok {
		return MatchResult{IncompatiblePolicy: id}
	}
	if !qos.PartitionsMatch(offered.Partitions, requested.Partitions) {
		return MatchResult{IncompatiblePolicy: qos.PolicyIDPartition}
	}
	return MatchResult{Matched: true}
}

// SEDP tracks this participant's local endpoints and the remote endpoints
// discovered from matched participants, firing match/unmatch callbacks.
type SEDP struct {
	mu sync.Mutex

	local  map[rtpscore.GUID]LocalEndpoint
	remote map[rtpscore.GUID]DiscoveredEndpoint

	// matches records an established match (localGUID, remoteGUID) pair so
	// a remote dispose can be translated into the correct unmatch calls.
	matches map[rtpscore.GUID]map[rtpscore.GUID]bool

	OnMatched            func(local LocalEndpoint, remote DiscoveredEndpoint)
	OnUnmatched          func(local LocalEndpoint, remote DiscoveredEndpoint)
	OnIncompatibleQoS    func(local LocalEndpoint, remote DiscoveredEndpoint, policy qos.PolicyID)
}

// NewSEDP builds an empty SEDP matcher.
func NewSEDP() *SEDP {
	return &SEDP{
		local:   make(map[rtpscore.GUID]LocalEndpoint),
		remote:  make(map[rtpscore.GUID]DiscoveredEndpoint),
		matches: make(map[rtpscore.GUID]map[rtpscore.GUID]bool),
	}
}

// AddLocalEndpoint registers a local writer/reader and tries to match it
// against every already-known remote endpoint.
func (s *SEDP) AddLocalEndpoint(ep LocalEndpoint) {
	s.mu.Lock()
	s.local[ep.GUID] = ep
	remotes := make([]DiscoveredEndpoint, 0, len(s.remote))
	for _, r := range s.remote {
		remotes = append(remotes, r)
	}
	s.mu.Unlock()

	for _, r := range remotes {
		s.tryMatch(ep, r)
	}
}

// RemoveLocalEndpoint unregisters a local endpoint and unmatches it from
// everything it was matched with.
func (s *SEDP) RemoveLocalEndpoint(guid rtpscore.GUID) {
	s.mu.Lock()
	local, ok := s.local[guid]
	delete(s.local, guid)
	var remoteGUIDs []rtpscore.GUID
	for rg := range s.matches[guid] {
		remoteGUIDs = append(remoteGUIDs, rg)
	}
	delete(s.matches, guid)
	s.mu.Unlock()

	if !ok {
		return
	}
	for _, rg := range remoteGUIDs {
		s.mu.Lock()
		remote := s.remote[rg]
		s.mu.Unlock()
		if s.OnUnmatched != nil {
			s.OnUnmatched(local, remote)
		}
	}
}

// OnDiscoveredEndpoint processes a sample received on a SEDP built-in
// topic: a newly advertised endpoint is matched against every local
// opposite endpoint.
func (s *SEDP) OnDiscoveredEndpoint(ep DiscoveredEndpoint) {
	s.mu.Lock()
	s.remote[ep.GUID] = ep
	locals := make([]LocalEndpoint, 0, len(s.local))
	for _, l := range s.local {
		locals = append(locals, l)
	}
	s.mu.Unlock()

	for _, l := range locals {
		s.tryMatch(l, ep)
	}
}

// OnDisposedEndpoint processes a dispose sample on a SEDP built-in topic:
// the remote endpoint is removed and every local endpoint matched with it
// is unmatched (spec.md §4.6: "Dispose samples on these topics remove the
// matching").
func (s *SEDP) OnDisposedEndpoint(remoteGUID rtpscore.GUID) {
	s.mu.Lock()
	remote, ok := s.remote[remoteGUID]
	delete(s.remote, remoteGUID)
	var affectedLocals []rtpscore.GUID
	for localGUID, rs := range s.matches {
		if rs[remoteGUID] {
			affectedLocals = append(affectedLocals, localGUID)
			delete(rs, remoteGUID)
		}
	}
	locals := make(map[rtpscore.GUID]LocalEndpoint, len(affectedLocals))
	for _, lg := range affectedLocals {
		locals[lg] = s.local[lg]
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	for _, l := range locals {
		if s.OnUnmatched != nil {
			s.OnUnmatched(l, remote)
		}
	}
}

// RemoveParticipant drops every discovered remote endpoint whose GUID
// carries the given prefix and unmatches it from every local endpoint,
// per spec.md §4.6/§4.8: an expired SPDP lease takes that participant's
// whole endpoint set down with it.
func (s *SEDP) RemoveParticipant(prefix rtpscore.GuidPrefix) {
	s.mu.Lock()
	var dead []rtpscore.GUID
	for guid := range s.remote {
		if guid.Prefix == prefix {
			dead = append(dead, guid)
		}
	}
	s.mu.Unlock()

	for _, guid := range dead {
		s.OnDisposedEndpoint(guid)
	}
}

func (s *SEDP) tryMatch(local LocalEndpoint, remote DiscoveredEndpoint) {
	result := Match(local, remote)
	if !result.Matched {
		if result.IncompatiblePolicy != qos.PolicyIDInvalid && s.OnIncompatibleQoS != nil {
			s.OnIncompatibleQoS(local, remote, result.IncompatiblePolicy)
		}
		return
	}

	s.mu.Lock()
	if s.matches[local.GUID] == nil {
		s.matches[local.GUID] = make(map[rtpscore.GUID]bool)
	}
	alreadyMatched := s.matches[local.GUID][remote.GUID]
	s.matches[local.GUID][remote.GUID] = true
	s.mu.Unlock()

	if !alreadyMatched && s.OnMatched != nil {
		s.OnMatched(local, remote)
	}
}
