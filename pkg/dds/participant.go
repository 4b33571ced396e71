package dds

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"godds/internal/cdr"
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

// DomainParticipant is the root of the entity containment tree
// (spec.md §4.1): it owns the transport sockets, the SPDP/SEDP
// discovery state, and every Publisher/Subscriber/Topic/DataWriter/
// DataReader it creates.
//
// Grounded on _examples/adred-codev-ws_poc/go-server/pkg/websocket/hub.go's single-owner-of-child-
// lifecycle pattern, generalized from "hub owns client connections" to
// "participant owns the whole entity tree plus the sockets and
// discovery state the tree is matched and transported through".
type DomainParticipant struct {
	entity
	domainID uint32
	cfg      *config.Configuration
	logger   zerolog.Logger
	metrics  *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metatraffic *transport.Socket
	multicast   *transport.Socket
	userSocket  *transport.Socket
	sender      *transport.Sender
	senderLock  sync.Mutex

	spdp *discovery.SPDP
	sedp *discovery.SEDP

	nextEntityKey uint32

	publishers  map[rtpscore.GUID]*Publisher
	subscribers map[rtpscore.GUID]*Subscriber
	topics      map[string]*Topic

	writers map[rtpscore.GUID]*DataWriter
	readers map[rtpscore.GUID]*DataReader

	spdpWriter *endpoint.StatelessWriter

	sedpPubCache  *history.WriterHistoryCache
	sedpPubWriter *endpoint.StatefulWriter
	sedpPubReader *endpoint.StatefulReader

	sedpSubCache  *history.WriterHistoryCache
	sedpSubWriter *endpoint.StatefulWriter
	sedpSubReader *endpoint.StatefulReader
}

// allocateEntityID hands out the next unused EntityId for an entity of
// the given RTPS entity kind within this participant.
func (p *DomainParticipant) allocateEntityID(kind byte) rtpscore.GUID {
	p.mu.Lock()
	p.nextEntityKey++
	key := p.nextEntityKey
	p.mu.Unlock()
	return rtpscore.GUID{
		Prefix: p.guid.Prefix,
		Entity: rtpscore.EntityId{Key: [3]byte{byte(key >> 16), byte(key >> 8), byte(key)}, Kind: kind},
	}
}

// DomainID returns the domain this participant was created on.
func (p *DomainParticipant) DomainID() uint32 { return p.domainID }

// CreateTopic registers a (name, typeName) pair with the given QoS.
// Re-registering an existing name with a different type name is
// rejected (spec.md §7 InconsistentPolicy / DDS's topic-consistency
// rule).
func (p *DomainParticipant) CreateTopic(name, typeName string, q qos.Policies) (*Topic, error) {
	if name == "" || typeName == "" {
		return nil, newError(BadParameter, "topic/type name must not be empty")
	}
	if err := q.Validate(); err != nil {
		return nil, newError(InconsistentPolicy, err.Error())
	}

	p.mu.Lock()
	if existing, ok := p.topics[name]; ok {
		p.mu.Unlock()
		if existing.typeName != typeName {
			return nil, newError(InconsistentPolicy, "topic already registered with a different type name")
		}
		return existing, nil
	}
	p.mu.Unlock()

	guid := p.allocateEntityID(rtpscore.EntityKindUserDefined)
	t := &Topic{entity: newEntity(guid, p.dispatch), participant: p, name: name, typeName: typeName, qos: q}
	t.initStatus()

	p.mu.Lock()
	p.topics[name] = t
	p.mu.Unlock()
	return t, nil
}

// CreatePublisher creates a new Publisher owned by this participant.
func (p *DomainParticipant) CreatePublisher() (*Publisher, error) {
	guid := p.allocateEntityID(rtpscore.EntityKindWriterGroup)
	pub := newPublisher(p, guid)
	p.mu.Lock()
	p.publishers[guid] = pub
	p.mu.Unlock()
	return pub, nil
}

// CreateSubscriber creates a new Subscriber owned by this participant.
func (p *DomainParticipant) CreateSubscriber() (*Subscriber, error) {
	guid := p.allocateEntityID(rtpscore.EntityKindReaderGroup)
	sub := newSubscriber(p, guid)
	p.mu.Lock()
	p.subscribers[guid] = sub
	p.mu.Unlock()
	return sub, nil
}

func (p *DomainParticipant) registerWriter(w *DataWriter) {
	p.mu.Lock()
	p.writers[w.guid] = w
	p.mu.Unlock()
	ep := discovery.LocalEndpoint{
		GUID: w.guid, Kind: discovery.KindWriter,
		TopicName: w.topic.name, TypeName: w.topic.typeName, QoS: w.qos,
	}
	p.sedp.AddLocalEndpoint(ep)
	p.announceEndpoint(discovery.DiscoveredEndpoint(ep), rtpscore.ChangeAlive)
}

func (p *DomainParticipant) unregisterWriter(guid rtpscore.GUID) {
	p.mu.Lock()
	w, ok := p.writers[guid]
	delete(p.writers, guid)
	p.mu.Unlock()
	p.sedp.RemoveLocalEndpoint(guid)
	if ok {
		p.announceEndpoint(discovery.DiscoveredEndpoint{
			GUID: guid, Kind: discovery.KindWriter, TopicName: w.topic.name, TypeName: w.topic.typeName, QoS: w.qos,
		}, rtpscore.ChangeDisposed)
	}
}

func (p *DomainParticipant) registerReader(r *DataReader) {
	p.mu.Lock()
	p.readers[r.guid] = r
	p.mu.Unlock()
	ep := discovery.LocalEndpoint{
		GUID: r.guid, Kind: discovery.KindReader,
		TopicName: r.topic.name, TypeName: r.topic.typeName, QoS: r.qos,
	}
	p.sedp.AddLocalEndpoint(ep)
	p.announceEndpoint(discovery.DiscoveredEndpoint(ep), rtpscore.ChangeAlive)
}

func (p *DomainParticipant) unregisterReader(guid rtpscore.GUID) {
	p.mu.Lock()
	r, ok := p.readers[guid]
	delete(p.readers, guid)
	p.mu.Unlock()
	p.sedp.RemoveLocalEndpoint(guid)
	if ok {
		p.announceEndpoint(discovery.DiscoveredEndpoint{
			GUID: guid, Kind: discovery.KindReader, TopicName: r.topic.name, TypeName: r.topic.typeName, QoS: r.qos,
		}, rtpscore.ChangeDisposed)
	}
}

// announceEndpoint publishes ep on the appropriate SEDP builtin topic so
// matched remote participants learn about it. kind == ChangeDisposed
// marks it withdrawn: the receiving side tells alive from disposed by
// the KeyPresent wire flag (spec.md §4.6), not by a separate message
// shape, since both carry the same encoded parameter list.
func (p *DomainParticipant) announceEndpoint(ep discovery.DiscoveredEndpoint, kind rtpscore.CacheChangeKind) {
	payload := discovery.EncodeEndpointData(ep)
	change := rtpscore.CacheChange{
		Kind:              kind,
		SourceTimestamp:   rtpscore.Now(),
		SerializedPayload: payload,
	}
	var cache *history.WriterHistoryCache
	var w *endpoint.StatefulWriter
	if ep.Kind == discovery.KindWriter {
		cache, w = p.sedpPubCache, p.sedpPubWriter
	} else {
		cache, w = p.sedpSubCache, p.sedpSubWriter
	}
	cache.AddChange(change)
	p.sendSubmessages(w.Tick(time.Now()))
}

// sendSubmessages routes every OutboundSubmessage to its locator via
// the shared UDP sender (spec.md §4.9's MTU-bounded batching).
func (p *DomainParticipant) sendSubmessages(msgs []endpoint.OutboundSubmessage) {
	if len(msgs) == 0 {
		return
	}
	p.senderLock.Lock()
	defer p.senderLock.Unlock()
	p.sender.SendAll(msgs)
}

// onSubmessage demultiplexes one inbound RTPS submessage to the local
// endpoint it targets, per spec.md §4.1's data flow: "incoming UDP
// datagram -> receiver -> dispatch to targeted endpoint -> cache
// update -> status bits -> listener/wait-set notification."
func (p *DomainParticipant) onSubmessage(ctx transport.MessageContext, kind wire.SubmessageKind, raw wire.RawSubmessage) {
	switch kind {
	case wire.KindData:
		d, err := wire.DecodeData(raw)
		if err != nil {
			p.logger.Debug().Err(err).Msg("dropping malformed DATA")
			return
		}
		p.onData(ctx, d)
	case wire.KindDataFrag:
		df, err := wire.DecodeDataFrag(raw)
		if err != nil {
			p.logger.Debug().Err(err).Msg("dropping malformed DATAFRAG")
			return
		}
		p.onDataFrag(ctx, df)
	case wire.KindHeartbeat:
		hb, err := wire.DecodeHeartbeat(raw)
		if err != nil {
			return
		}
		p.onHeartbeat(ctx, hb)
	case wire.KindAckNack:
		ack, err := wire.DecodeAckNack(raw)
		if err != nil {
			return
		}
		p.onAckNack(ctx, ack)
	case wire.KindGap:
		gap, err := wire.DecodeGap(raw)
		if err != nil {
			return
		}
		p.onGap(ctx, gap)
	}
}

func (p *DomainParticipant) localReader(id rtpscore.EntityId) *DataReader {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readers[rtpscore.GUID{Prefix: p.guid.Prefix, Entity: id}]
}

func (p *DomainParticipant) localWriter(id rtpscore.EntityId) *DataWriter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writers[rtpscore.GUID{Prefix: p.guid.Prefix, Entity: id}]
}

func (p *DomainParticipant) onData(ctx transport.MessageContext, d wire.Data) {
	switch d.ReaderID {
	case entityid.SEDPBuiltinPublicationsReader:
		p.onSEDPData(d, discovery.KindWriter)
		return
	case entityid.SEDPBuiltinSubscriptionsReader:
		p.onSEDPData(d, discovery.KindReader)
		return
	case entityid.SPDPBuiltinParticipantReader:
		p.onSPDPData(d)
		return
	}

	r := p.localReader(d.ReaderID)
	if r == nil {
		return
	}
	remoteWriter := rtpscore.GUID{Prefix: ctx.SourceGUIDPrefix, Entity: d.WriterID}
	result := r.OnData(remoteWriter, d, ctx.Timestamp)
	if p.metrics != nil && result == endpoint.ResultAdded {
		p.metrics.SamplesWritten.WithLabelValues(r.topic.name).Inc()
	}
}

func (p *DomainParticipant) onDataFrag(ctx transport.MessageContext, df wire.DataFrag) {
	r := p.localReader(df.ReaderID)
	if r == nil {
		return
	}
	remoteWriter := rtpscore.GUID{Prefix: ctx.SourceGUIDPrefix, Entity: df.WriterID}
	r.rtps.OnDataFrag(remoteWriter, df, ctx.Timestamp)
}

func (p *DomainParticipant) onHeartbeat(ctx transport.MessageContext, hb wire.Heartbeat) {
	remoteWriter := rtpscore.GUID{Prefix: ctx.SourceGUIDPrefix, Entity: hb.WriterID}
	if r := p.localReader(hb.ReaderID); r != nil {
		r.OnHeartbeat(remoteWriter, hb)
		return
	}
	switch hb.WriterID {
	case entityid.SEDPBuiltinPublicationsWriter:
		p.sedpPubReader.OnHeartbeat(remoteWriter, hb)
	case entityid.SEDPBuiltinSubscriptionsWriter:
		p.sedpSubReader.OnHeartbeat(remoteWriter, hb)
	}
}

func (p *DomainParticipant) onAckNack(ctx transport.MessageContext, ack wire.AckNack) {
	remoteReader := rtpscore.GUID{Prefix: ctx.SourceGUIDPrefix, Entity: ack.ReaderID}
	if w := p.localWriter(ack.WriterID); w != nil {
		p.sendSubmessages(w.rtps.OnAckNack(remoteReader, ack))
		return
	}
	switch ack.WriterID {
	case entityid.SEDPBuiltinPublicationsWriter:
		p.sendSubmessages(p.sedpPubWriter.OnAckNack(remoteReader, ack))
	case entityid.SEDPBuiltinSubscriptionsWriter:
		p.sendSubmessages(p.sedpSubWriter.OnAckNack(remoteReader, ack))
	}
}

func (p *DomainParticipant) onGap(ctx transport.MessageContext, gap wire.Gap) {
	if r := p.localReader(gap.ReaderID); r != nil {
		r.OnGap(rtpscore.GUID{Prefix: ctx.SourceGUIDPrefix, Entity: gap.WriterID}, gap)
	}
}

func (p *DomainParticipant) onSPDPData(d wire.Data) {
	if len(d.SerializedPayload) == 0 {
		return
	}
	pl, err := cdr.DecodeParameterList(d.SerializedPayload)
	if err != nil {
		return
	}
	proxy := discovery.DecodeParticipantProxy(pl)
	p.spdp.OnAnnouncement(proxy)
}

func (p *DomainParticipant) onSEDPData(d wire.Data, kind discovery.EndpointKind) {
	if len(d.SerializedPayload) == 0 {
		return
	}
	pl, err := cdr.DecodeParameterList(d.SerializedPayload)
	if err != nil {
		return
	}
	ep := discovery.DecodeEndpointData(pl, kind)
	if d.KeyPresent {
		p.sedp.OnDisposedEndpoint(ep.GUID)
		return
	}
	p.sedp.OnDiscoveredEndpoint(ep)
}

// onSEDPMatched wires a confirmed SEDP match into the matching local
// writer/reader's RTPS proxy state.
func (p *DomainParticipant) onSEDPMatched(local discovery.LocalEndpoint, remote discovery.DiscoveredEndpoint) {
	reliable := remote.QoS.Reliability == qos.Reliable
	if local.Kind == discovery.KindWriter {
		p.mu.Lock()
		w := p.writers[local.GUID]
		p.mu.Unlock()
		if w == nil {
			return
		}
		rp := w.AddMatchedReader(remote.GUID, remote.QoS.Durability, reliable)
		rp.UnicastLocators = p.remoteDefaultLocators(remote.GUID)
		w.publicationMatchedStatus()
	} else {
		p.mu.Lock()
		r := p.readers[local.GUID]
		p.mu.Unlock()
		if r == nil {
			return
		}
		r.AddMatchedWriter(remote.GUID, reliable)
		r.subscriptionMatchedStatus()
	}
}

func (p *DomainParticipant) onSEDPUnmatched(local discovery.LocalEndpoint, remote discovery.DiscoveredEndpoint) {
	if local.Kind == discovery.KindWriter {
		p.mu.Lock()
		w := p.writers[local.GUID]
		p.mu.Unlock()
		if w != nil {
			w.RemoveMatchedReader(remote.GUID)
			w.tracker.NotifyPublicationMatched(-1)
		}
	} else {
		p.mu.Lock()
		r := p.readers[local.GUID]
		p.mu.Unlock()
		if r != nil {
			r.RemoveMatchedWriter(remote.GUID)
			r.tracker.NotifySubscriptionMatched(-1)
		}
	}
}

func (p *DomainParticipant) onSEDPIncompatibleQoS(local discovery.LocalEndpoint, remote discovery.DiscoveredEndpoint, policyID qos.PolicyID) {
	if local.Kind == discovery.KindWriter {
		p.mu.Lock()
		w := p.writers[local.GUID]
		p.mu.Unlock()
		if w != nil {
			w.tracker.NotifyOfferedIncompatibleQoS(int(policyID))
		}
	} else {
		p.mu.Lock()
		r := p.readers[local.GUID]
		p.mu.Unlock()
		if r != nil {
			r.tracker.NotifyRequestedIncompatibleQoS(int(policyID))
		}
	}
}

// run drives every periodic activity a participant needs while alive:
// SPDP (re)announcement, lease expiry, and per-writer/-reader ticks
// (heartbeats, retransmission, ack-nack flush). One goroutine, grounded
// on the teacher's hub.Run() dedicated-loop pattern.
func (p *DomainParticipant) run() {
	defer p.wg.Done()
	announce := time.NewTicker(p.cfg.ParticipantAnnouncementInterval)
	tick := time.NewTicker(p.cfg.HeartbeatPeriod)
	defer announce.Stop()
	defer tick.Stop()

	p.announceSelf()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-announce.C:
			p.announceSelf()
			p.spdp.ExpireLeases(time.Now())
		case now := <-tick.C:
			p.tickEntities(now)
		}
	}
}

func (p *DomainParticipant) announceSelf() {
	payload := discovery.EncodeParticipantProxy(p.spdp.Local)
	change := rtpscore.CacheChange{
		Kind:              rtpscore.ChangeAlive,
		SourceTimestamp:   rtpscore.Now(),
		SerializedPayload: payload,
	}
	p.spdpWriter.AddChange(change)
	p.sendSubmessages(p.spdpWriter.Flush())
}

func (p *DomainParticipant) tickEntities(now time.Time) {
	p.mu.Lock()
	pubs := make([]*Publisher, 0, len(p.publishers))
	for _, pub := range p.publishers {
		pubs = append(pubs, pub)
	}
	readers := make([]*DataReader, 0, len(p.readers))
	for _, r := range p.readers {
		readers = append(readers, r)
	}
	p.mu.Unlock()

	for _, pub := range pubs {
		pub.Tick(now)
	}
	p.sendSubmessages(p.sedpPubWriter.Tick(now))
	p.sendSubmessages(p.sedpSubWriter.Tick(now))
	p.sendMetatrafficAckNacks(p.sedpPubReader.BuildAckNacks(now))
	p.sendMetatrafficAckNacks(p.sedpSubReader.BuildAckNacks(now))

	for _, r := range readers {
		r.CheckDeadline(now)
		acks := r.BuildAckNacks(now)
		p.sendAckNacks(acks)
	}
}

// sendMetatrafficAckNacks delivers ACKNACKs for this participant's builtin
// SEDP readers, destined for the remote participant's metatraffic port
// rather than a user endpoint's default locator.
func (p *DomainParticipant) sendMetatrafficAckNacks(acks map[rtpscore.GUID]wire.AckNack) {
	if len(acks) == 0 {
		return
	}
	locators := make(map[rtpscore.GUID]net.UDPAddr, len(acks))
	for remote := range acks {
		loc := p.remoteMetatrafficLocator(remote)
		if loc.Kind == rtpscore.LocatorKindInvalid {
			continue
		}
		locators[remote] = *transport.ToUDPAddr(loc)
	}
	p.senderLock.Lock()
	defer p.senderLock.Unlock()
	p.sender.SendAckNacks(acks, locators)
}

// sendAckNacks delivers ACKNACKs built for matched user writers (spec.md
// §4.4): destination is the remote writer's default unicast locator, the
// port its DataWriter listens on, not its participant's metatraffic port.
func (p *DomainParticipant) sendAckNacks(acks map[rtpscore.GUID]wire.AckNack) {
	if len(acks) == 0 {
		return
	}
	locators := make(map[rtpscore.GUID]net.UDPAddr, len(acks))
	for remote := range acks {
		locs := p.remoteDefaultLocators(remote)
		if len(locs) == 0 {
			continue
		}
		locators[remote] = *transport.ToUDPAddr(locs[0])
	}
	p.senderLock.Lock()
	defer p.senderLock.Unlock()
	p.sender.SendAckNacks(acks, locators)
}

func (p *DomainParticipant) remoteMetatrafficLocator(remote rtpscore.GUID) rtpscore.Locator {
	for _, dp := range p.spdp.DiscoveredParticipants() {
		if dp.GUID.Prefix == remote.Prefix && len(dp.MetatrafficUnicast) > 0 {
			return dp.MetatrafficUnicast[0]
		}
	}
	return rtpscore.LocatorInvalid
}

func (p *DomainParticipant) remoteDefaultLocators(remote rtpscore.GUID) []rtpscore.Locator {
	for _, dp := range p.spdp.DiscoveredParticipants() {
		if dp.GUID.Prefix == remote.Prefix {
			return dp.DefaultUnicast
		}
	}
	return nil
}

// onParticipantDiscovered bootstraps this participant's matched state for
// a newly discovered remote: the four builtin SEDP endpoints are matched
// unconditionally (spec.md §4.6's "SEDP runs over builtin endpoints that
// are implicitly matched on participant discovery, not user endpoint
// matching"), so publication/subscription announcements can start
// flowing before any user Topic/DataWriter/DataReader exists.
func (p *DomainParticipant) onParticipantDiscovered(remote discovery.ParticipantProxy) {
	p.logger.Info().Str("remote", remote.GUID.String()).Msg("discovered participant")

	rGUID := func(id rtpscore.EntityId) rtpscore.GUID {
		return rtpscore.GUID{Prefix: remote.GUID.Prefix, Entity: id}
	}

	pubReaderProxy := p.sedpPubWriter.AddMatchedReader(rGUID(entityid.SEDPBuiltinPublicationsReader), qos.TransientLocal, true)
	pubReaderProxy.UnicastLocators = remote.MetatrafficUnicast
	p.sedpPubReader.AddMatchedWriter(rGUID(entityid.SEDPBuiltinPublicationsWriter), true)

	subReaderProxy := p.sedpSubWriter.AddMatchedReader(rGUID(entityid.SEDPBuiltinSubscriptionsReader), qos.TransientLocal, true)
	subReaderProxy.UnicastLocators = remote.MetatrafficUnicast
	p.sedpSubReader.AddMatchedWriter(rGUID(entityid.SEDPBuiltinSubscriptionsWriter), true)
}

func (p *DomainParticipant) onParticipantLost(remote rtpscore.GUID) {
	p.logger.Info().Str("remote", remote.String()).Msg("participant lease expired")

	rGUID := func(id rtpscore.EntityId) rtpscore.GUID {
		return rtpscore.GUID{Prefix: remote.Prefix, Entity: id}
	}
	p.sedpPubWriter.RemoveMatchedReader(rGUID(entityid.SEDPBuiltinPublicationsReader))
	p.sedpPubReader.RemoveMatchedWriter(rGUID(entityid.SEDPBuiltinPublicationsWriter))
	p.sedpSubWriter.RemoveMatchedReader(rGUID(entityid.SEDPBuiltinSubscriptionsReader))
	p.sedpSubReader.RemoveMatchedWriter(rGUID(entityid.SEDPBuiltinSubscriptionsWriter))

	p.sedp.RemoveParticipant(remote.Prefix)
}

// Close stops the participant's background activity and releases its
// sockets. Queued listener callbacks are allowed to finish (spec.md
// §4.8's shutdown contract).
func (p *DomainParticipant) Close() error {
	p.cancel()
	p.wg.Wait()
	p.dispatch.Wait()
	if p.metatraffic != nil {
		p.metatraffic.Close()
	}
	if p.multicast != nil {
		p.multicast.Close()
	}
	if p.userSocket != nil {
		p.userSocket.Close()
	}
	p.markDeleted()
	return nil
}
