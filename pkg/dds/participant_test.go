package dds_test

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"godds/internal/config"
	"godds/internal/logging"
	"godds/internal/qos"
	"godds/internal/status"
	"godds/pkg/dds"
)

// encodeHello/decodeHello give the untyped byte-payload API something
// concrete to carry for spec.md §8 S1's {id: 8, msg: "hi"} sample: a
// 4-byte big-endian id followed by the message bytes.
func encodeHello(id int32, msg string) []byte {
	b := make([]byte, 4+len(msg))
	binary.BigEndian.PutUint32(b, uint32(id))
	copy(b[4:], msg)
	return b
}

func decodeHello(b []byte) (int32, string) {
	if len(b) < 4 {
		return 0, ""
	}
	return int32(binary.BigEndian.Uint32(b)), string(b[4:])
}

// waitForStatus blocks until cond reports one of the kinds in mask, or
// fails the test after timeout.
func waitForStatus(t *testing.T, cond *status.StatusCondition, mask status.Kind, timeout time.Duration) {
	t.Helper()
	cond.SetEnabledStatuses(mask)
	ws := status.NewWaitSet()
	ws.Attach(cond)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if _, err := ws.Wait(ctx); err != nil {
		t.Fatalf("waiting for status %v: %v", mask, err)
	}
}

func newTestParticipant(t *testing.T, domainID uint32) *dds.DomainParticipant {
	t.Helper()
	cfg := config.Default()
	cfg.ParticipantAnnouncementInterval = 50 * time.Millisecond
	cfg.HeartbeatPeriod = 20 * time.Millisecond
	cfg.NackResponseDelay = 20 * time.Millisecond

	factory := dds.NewParticipantFactory()
	logger := logging.New("error", "json")
	p, err := factory.CreateParticipant(domainID, factory.GetDefaultParticipantQos(), cfg, logger, nil)
	if err != nil {
		t.Fatalf("CreateParticipant: %v", err)
	}
	t.Cleanup(func() {
		if err := factory.DeleteParticipant(p); err != nil {
			t.Errorf("DeleteParticipant: %v", err)
		}
	})
	return p
}

// TestHelloSingleSample reproduces spec.md §8 S1: two participants on
// the same domain and host, a reliable reader created before the
// matching writer publishes one sample, observed via a WaitSet blocked
// on DATA_AVAILABLE.
func TestHelloSingleSample(t *testing.T) {
	const domainID = 0
	reliableQoS := qos.DefaultDataWriterQoS()
	reliableQoS.Reliability = qos.Reliable

	readerParticipant := newTestParticipant(t, domainID)
	writerParticipant := newTestParticipant(t, domainID)

	readerTopic, err := readerParticipant.CreateTopic("HelloTopic", "HelloMsg", reliableQoS)
	if err != nil {
		t.Fatalf("CreateTopic (reader side): %v", err)
	}
	sub, err := readerParticipant.CreateSubscriber()
	if err != nil {
		t.Fatalf("CreateSubscriber: %v", err)
	}
	reader, err := sub.CreateDataReader(readerTopic, reliableQoS)
	if err != nil {
		t.Fatalf("CreateDataReader: %v", err)
	}
	if err := reader.Enable(); err != nil {
		t.Fatalf("reader.Enable: %v", err)
	}

	writerTopic, err := writerParticipant.CreateTopic("HelloTopic", "HelloMsg", reliableQoS)
	if err != nil {
		t.Fatalf("CreateTopic (writer side): %v", err)
	}
	pub, err := writerParticipant.CreatePublisher()
	if err != nil {
		t.Fatalf("CreatePublisher: %v", err)
	}
	writer, err := pub.CreateDataWriter(writerTopic, reliableQoS)
	if err != nil {
		t.Fatalf("CreateDataWriter: %v", err)
	}
	if err := writer.Enable(); err != nil {
		t.Fatalf("writer.Enable: %v", err)
	}

	waitForStatus(t, writer.GetStatusCondition(), status.PublicationMatched, 5*time.Second)

	if err := writer.Write(nil, encodeHello(8, "hi")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	waitForStatus(t, reader.GetStatusCondition(), status.DataAvailable, 5*time.Second)

	samples, err := reader.Read(nil, nil, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(samples))
	}
	if !samples[0].Info.ValidData {
		t.Fatal("expected sample_info.valid_data == true")
	}
	id, msg := decodeHello(samples[0].Payload)
	if id != 8 || msg != "hi" {
		t.Fatalf("expected {8,\"hi\"}, got {%d,%q}", id, msg)
	}
}

// TestIncompatibleReliabilityNeverMatches reproduces spec.md §8 S4: a
// best-effort writer and a reliable reader must never match, and both
// sides must report the incompatibility against RELIABILITY.
func TestIncompatibleReliabilityNeverMatches(t *testing.T) {
	const domainID = 1
	writerQoS := qos.DefaultDataWriterQoS() // BestEffort
	readerQoS := qos.DefaultDataReaderQoS()
	readerQoS.Reliability = qos.Reliable

	readerParticipant := newTestParticipant(t, domainID)
	writerParticipant := newTestParticipant(t, domainID)

	readerTopic, err := readerParticipant.CreateTopic("S4Topic", "S4Msg", readerQoS)
	if err != nil {
		t.Fatalf("CreateTopic (reader side): %v", err)
	}
	sub, err := readerParticipant.CreateSubscriber()
	if err != nil {
		t.Fatalf("CreateSubscriber: %v", err)
	}
	reader, err := sub.CreateDataReader(readerTopic, readerQoS)
	if err != nil {
		t.Fatalf("CreateDataReader: %v", err)
	}
	reader.Enable()

	writerTopic, err := writerParticipant.CreateTopic("S4Topic", "S4Msg", writerQoS)
	if err != nil {
		t.Fatalf("CreateTopic (writer side): %v", err)
	}
	pub, err := writerParticipant.CreatePublisher()
	if err != nil {
		t.Fatalf("CreatePublisher: %v", err)
	}
	writer, err := pub.CreateDataWriter(writerTopic, writerQoS)
	if err != nil {
		t.Fatalf("CreateDataWriter: %v", err)
	}
	writer.Enable()

	waitForStatus(t, reader.GetStatusCondition(), status.RequestedIncompatibleQoS, 5*time.Second)
	waitForStatus(t, writer.GetStatusCondition(), status.OfferedIncompatibleQoS, 5*time.Second)

	if reader.GetStatusChanges()&status.SubscriptionMatched != 0 {
		t.Fatal("SUBSCRIPTION_MATCHED must not fire on incompatible reliability")
	}
	if writer.GetStatusChanges()&status.PublicationMatched != 0 {
		t.Fatal("PUBLICATION_MATCHED must not fire on incompatible reliability")
	}
}
