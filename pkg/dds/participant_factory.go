package dds

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"reflect"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"godds/internal/config"
	"godds/internal/discovery"
	"godds/internal/endpoint"
	"godds/internal/entityid"
	"godds/internal/history"
	"godds/internal/metrics"
	"godds/internal/qos"
	"godds/internal/rtpscore"
	"godds/internal/status"
	"godds/internal/transport"
	"godds/internal/wire"
)

// ParticipantFactory creates and tracks every DomainParticipant this
// process owns (spec.md §6's DomainParticipantFactory singleton).
//
// Grounded on _examples/adred-codev-ws_poc/go-server/pkg/websocket/hub.go's registry-of-children
// pattern (the factory is the one level above the participant's own
// "hub owns its children" role).
type ParticipantFactory struct {
	mu                sync.Mutex
	participants      map[rtpscore.GUID]*DomainParticipant
	defaultQoS        qos.Policies
	defaultListenerMask status.Kind
}

var defaultFactory = NewParticipantFactory()

// TheParticipantFactory returns the process-wide singleton factory, the
// usual entry point per spec.md §6 ("the_participant_factory").
func TheParticipantFactory() *ParticipantFactory { return defaultFactory }

// NewParticipantFactory builds an independent factory, for callers who
// want isolated factories within one process (tests, embedders).
func NewParticipantFactory() *ParticipantFactory {
	return &ParticipantFactory{
		participants: make(map[rtpscore.GUID]*DomainParticipant),
		defaultQoS:   qos.DefaultDataWriterQoS(),
	}
}

// GetDefaultParticipantQos returns the QoS new participants get when
// CreateParticipant is called with the zero value.
func (f *ParticipantFactory) GetDefaultParticipantQos() qos.Policies {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.defaultQoS
}

// SetDefaultParticipantQos changes that default.
func (f *ParticipantFactory) SetDefaultParticipantQos(q qos.Policies) error {
	if err := q.Validate(); err != nil {
		return newError(InconsistentPolicy, err.Error())
	}
	f.mu.Lock()
	f.defaultQoS = q
	f.mu.Unlock()
	return nil
}

// CreateParticipant builds a DomainParticipant on domainID: opens its
// metatraffic and user-data sockets, starts its SPDP/SEDP discovery
// state, and launches its background tick loop.
func (f *ParticipantFactory) CreateParticipant(domainID uint32, q qos.Policies, cfg *config.Configuration, logger zerolog.Logger, reg prometheus.Registerer) (*DomainParticipant, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if reflect.DeepEqual(q, qos.Policies{}) {
		q = f.GetDefaultParticipantQos()
	}
	if err := q.Validate(); err != nil {
		return nil, newError(InconsistentPolicy, err.Error())
	}

	prefix, err := newGuidPrefix()
	if err != nil {
		return nil, newError(OutOfResources, err.Error())
	}
	guid := rtpscore.GUID{Prefix: prefix, Entity: entityid.Participant}

	metatraffic, participantID, err := bindMetatrafficUnicast(domainID, cfg, logger)
	if err != nil {
		return nil, err
	}
	multicast, err := transport.ListenMulticast(net.ParseIP(rtpscore.WellKnownMulticastAddress),
		int(rtpscore.BuiltinMulticastPort(domainID)), cfg.InterfaceName, cfg.MaxMessageSize, logger)
	if err != nil {
		metatraffic.Close()
		return nil, fmt.Errorf("dds: join metatraffic multicast group: %w", err)
	}
	userSocket, err := transport.ListenUnicast(0, nil, cfg.MaxMessageSize, logger)
	if err != nil {
		metatraffic.Close()
		multicast.Close()
		return nil, fmt.Errorf("dds: open user-data unicast socket: %w", err)
	}
	logger = logger.With().Uint32("participant_id", participantID).Logger()

	ctx, cancel := context.WithCancel(context.Background())

	p := &DomainParticipant{
		entity:   newEntity(guid, nil),
		domainID: domainID,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics.New(reg),

		ctx:    ctx,
		cancel: cancel,

		metatraffic: metatraffic,
		multicast:   multicast,
		userSocket:  userSocket,

		publishers:  make(map[rtpscore.GUID]*Publisher),
		subscribers: make(map[rtpscore.GUID]*Subscriber),
		topics:      make(map[string]*Topic),
		writers:     make(map[rtpscore.GUID]*DataWriter),
		readers:     make(map[rtpscore.GUID]*DataReader),
	}
	p.dispatch = status.NewDispatcher(256, logger)
	p.initStatus()

	header := wire.MessageHeader{
		Version:    wire.DefaultProtocolVersion,
		VendorID:   wire.VendorIDThisImplementation,
		GuidPrefix: prefix,
	}
	p.sender = transport.NewSender(metatraffic, header, cfg.MaxMessageSize, logger)

	unicastLocator := rtpscore.NewUDPv4Locator(localIP(), uint32(metatraffic.LocalPort()))
	multicastLocator := rtpscore.NewUDPv4Locator(net.ParseIP(rtpscore.WellKnownMulticastAddress), rtpscore.BuiltinMulticastPort(domainID))

	localProxy := discovery.ParticipantProxy{
		GUID:                      guid,
		DomainID:                  domainID,
		DomainTag:                 cfg.DomainTag,
		ProtocolVersion:           [2]byte{wire.DefaultProtocolVersion.Major, wire.DefaultProtocolVersion.Minor},
		VendorID:                  [2]byte{wire.VendorIDThisImplementation[0], wire.VendorIDThisImplementation[1]},
		AvailableBuiltinEndpoints: uint32(entityid.DefaultAvailableBuiltinEndpoints),
		MetatrafficUnicast:        []rtpscore.Locator{unicastLocator},
		MetatrafficMulticast:      []rtpscore.Locator{multicastLocator},
		DefaultUnicast:            []rtpscore.Locator{rtpscore.NewUDPv4Locator(localIP(), uint32(userSocket.LocalPort()))},
		LeaseDuration:             rtpscore.DurationFromGo(cfg.ParticipantAnnouncementInterval * 10),
	}
	p.spdp = discovery.NewSPDP(localProxy)
	p.spdp.OnDiscovered = p.onParticipantDiscovered
	p.spdp.OnLost = p.onParticipantLost

	p.sedp = discovery.NewSEDP()
	p.sedp.OnMatched = p.onSEDPMatched
	p.sedp.OnUnmatched = p.onSEDPUnmatched
	p.sedp.OnIncompatibleQoS = p.onSEDPIncompatibleQoS

	spdpCache := history.NewWriterHistoryCache(qos.History{Kind: qos.KeepLast, Depth: 1})
	p.spdpWriter = endpoint.NewStatelessWriter(rtpscore.GUID{Prefix: prefix, Entity: entityid.SPDPBuiltinParticipantWriter}, spdpCache)
	p.spdpWriter.AddReaderLocator(multicastLocator)

	sedpQoS := qos.Policies{Reliability: qos.Reliable, Durability: qos.TransientLocal, History: qos.History{Kind: qos.KeepAll}}

	p.sedpPubCache = history.NewWriterHistoryCache(sedpQoS.History)
	p.sedpPubWriter = endpoint.NewStatefulWriter(rtpscore.GUID{Prefix: prefix, Entity: entityid.SEDPBuiltinPublicationsWriter},
		true, cfg.FragmentSize, cfg.HeartbeatPeriod, p.sedpPubCache)
	p.sedpPubReader = endpoint.NewStatefulReader(rtpscore.GUID{Prefix: prefix, Entity: entityid.SEDPBuiltinPublicationsReader},
		true, history.NewReaderHistoryCache(0))

	p.sedpSubCache = history.NewWriterHistoryCache(sedpQoS.History)
	p.sedpSubWriter = endpoint.NewStatefulWriter(rtpscore.GUID{Prefix: prefix, Entity: entityid.SEDPBuiltinSubscriptionsWriter},
		true, cfg.FragmentSize, cfg.HeartbeatPeriod, p.sedpSubCache)
	p.sedpSubReader = endpoint.NewStatefulReader(rtpscore.GUID{Prefix: prefix, Entity: entityid.SEDPBuiltinSubscriptionsReader},
		true, history.NewReaderHistoryCache(0))

	receiver := transport.NewReceiver(p.onSubmessage, logger)
	go metatraffic.Run(ctx, receiver.HandleDatagram)
	go multicast.Run(ctx, receiver.HandleDatagram)
	go userSocket.Run(ctx, receiver.HandleDatagram)

	go p.dispatch.Run(ctx)
	p.wg.Add(1)
	go p.run()

	f.mu.Lock()
	f.participants[guid] = p
	f.mu.Unlock()

	return p, nil
}

// DeleteParticipant shuts down p and removes it from the factory.
func (f *ParticipantFactory) DeleteParticipant(p *DomainParticipant) error {
	f.mu.Lock()
	_, ok := f.participants[p.guid]
	delete(f.participants, p.guid)
	f.mu.Unlock()
	if !ok {
		return newError(PreconditionNotMet, "participant not owned by this factory")
	}
	return p.Close()
}

// LookupParticipant returns a participant this factory created on
// domainID, or nil if there is none (spec.md §6's lookup_participant).
// When there are several on that domain, which one is returned is not
// defined.
func (f *ParticipantFactory) LookupParticipant(domainID uint32) *DomainParticipant {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.participants {
		if p.domainID == domainID {
			return p
		}
	}
	return nil
}

// bindMetatrafficUnicast walks participant ids 0..ParticipantIDMax looking
// for one whose well-known metatraffic unicast port is free, so several
// participants on the same domain and host (spec.md §8 S1) each get a
// distinct port per the RTPS default port-mapping formula.
func bindMetatrafficUnicast(domainID uint32, cfg *config.Configuration, logger zerolog.Logger) (*transport.Socket, uint32, error) {
	var lastErr error
	for id := uint32(0); id <= rtpscore.ParticipantIDMax; id++ {
		port := int(rtpscore.BuiltinUnicastPort(domainID, id))
		sock, err := transport.ListenUnicast(port, nil, cfg.MaxMessageSize, logger)
		if err == nil {
			return sock, id, nil
		}
		lastErr = err
	}
	return nil, 0, fmt.Errorf("dds: no free participant id on domain %d: %w", domainID, lastErr)
}

func newGuidPrefix() (rtpscore.GuidPrefix, error) {
	var p rtpscore.GuidPrefix
	_, err := rand.Read(p[:])
	return p, err
}

func localIP() net.IP {
	addrs, err := net.InterfaceAddrs()
	if err == nil {
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok || ipNet.IP.IsLoopback() {
				continue
			}
			if ip4 := ipNet.IP.To4(); ip4 != nil {
				return ip4
			}
		}
	}
	return net.IPv4(127, 0, 0, 1)
}
