package dds_test

import (
	"testing"
	"time"

	"godds/internal/history"
	"godds/internal/qos"
	"godds/internal/status"
)

// TestLateJoinerTransientLocal reproduces spec.md §8 S2: a writer
// publishes before any reader exists, then a TRANSIENT_LOCAL reader
// joins and must still receive the earlier sample (AddMatchedReader's
// durability rule in internal/endpoint/stateful_writer.go starts a
// TRANSIENT_LOCAL reader's relevant range at sequence 1 instead of the
// writer's current high-water mark).
func TestLateJoinerTransientLocal(t *testing.T) {
	const domainID = 2
	writerQoS := qos.DefaultDataWriterQoS()
	writerQoS.Reliability = qos.Reliable
	writerQoS.Durability = qos.TransientLocal
	readerQoS := writerQoS

	writerParticipant := newTestParticipant(t, domainID)
	readerParticipant := newTestParticipant(t, domainID)

	writerTopic, err := writerParticipant.CreateTopic("S2Topic", "S2Msg", writerQoS)
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
	if err := writer.Enable(); err != nil {
		t.Fatalf("writer.Enable: %v", err)
	}

	if err := writer.Write(nil, encodeHello(1, "before")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	readerTopic, err := readerParticipant.CreateTopic("S2Topic", "S2Msg", readerQoS)
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
	if err := reader.Enable(); err != nil {
		t.Fatalf("reader.Enable: %v", err)
	}

	waitForStatus(t, reader.GetStatusCondition(), status.DataAvailable, 5*time.Second)

	samples, err := reader.Take(nil, nil, nil)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("expected 1 late-joined sample, got %d", len(samples))
	}
	id, msg := decodeHello(samples[0].Payload)
	if id != 1 || msg != "before" {
		t.Fatalf("expected {1,\"before\"}, got {%d,%q}", id, msg)
	}
}

// TestDisposeCycle reproduces spec.md §8 S3: a writer disposes an
// instance after writing it, and the reader must observe the dispose as
// an invalid sample (ValidData == false, InstanceState ==
// NotAliveDisposed) rather than as ordinary data.
func TestDisposeCycle(t *testing.T) {
	const domainID = 3
	q := qos.DefaultDataWriterQoS()
	q.Reliability = qos.Reliable
	q.History = qos.History{Kind: qos.KeepAll}

	readerParticipant := newTestParticipant(t, domainID)
	writerParticipant := newTestParticipant(t, domainID)

	readerTopic, err := readerParticipant.CreateTopic("S3Topic", "S3Msg", q)
	if err != nil {
		t.Fatalf("CreateTopic (reader side): %v", err)
	}
	sub, err := readerParticipant.CreateSubscriber()
	if err != nil {
		t.Fatalf("CreateSubscriber: %v", err)
	}
	reader, err := sub.CreateDataReader(readerTopic, q)
	if err != nil {
		t.Fatalf("CreateDataReader: %v", err)
	}
	if err := reader.Enable(); err != nil {
		t.Fatalf("reader.Enable: %v", err)
	}

	writerTopic, err := writerParticipant.CreateTopic("S3Topic", "S3Msg", q)
	if err != nil {
		t.Fatalf("CreateTopic (writer side): %v", err)
	}
	pub, err := writerParticipant.CreatePublisher()
	if err != nil {
		t.Fatalf("CreatePublisher: %v", err)
	}
	writer, err := pub.CreateDataWriter(writerTopic, q)
	if err != nil {
		t.Fatalf("CreateDataWriter: %v", err)
	}
	if err := writer.Enable(); err != nil {
		t.Fatalf("writer.Enable: %v", err)
	}

	waitForStatus(t, writer.GetStatusCondition(), status.PublicationMatched, 5*time.Second)

	key := []byte("instance-a")
	if err := writer.Write(key, encodeHello(1, "alive")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	waitForStatus(t, reader.GetStatusCondition(), status.DataAvailable, 5*time.Second)
	if _, err := reader.Take(nil, nil, nil); err != nil {
		t.Fatalf("Take (first sample): %v", err)
	}

	if err := writer.Dispose(key); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	waitForStatus(t, reader.GetStatusCondition(), status.DataAvailable, 5*time.Second)

	samples, err := reader.Take(nil, nil, nil)
	if err != nil {
		t.Fatalf("Take (dispose): %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("expected 1 dispose sample, got %d", len(samples))
	}
	if samples[0].Info.ValidData {
		t.Fatal("dispose sample must report valid_data == false")
	}
	if samples[0].Info.InstanceState != history.NotAliveDisposed {
		t.Fatalf("expected NotAliveDisposed instance state, got %v", samples[0].Info.InstanceState)
	}
}

// TestFragmentation reproduces spec.md §8 S5: a payload larger than the
// configured fragment size is split into DATAFRAG submessages on the
// wire and reassembled whole on the reader side.
func TestFragmentation(t *testing.T) {
	const domainID = 4
	q := qos.DefaultDataWriterQoS()
	q.Reliability = qos.Reliable

	readerParticipant := newTestParticipant(t, domainID)
	writerParticipant := newTestParticipant(t, domainID)

	readerTopic, err := readerParticipant.CreateTopic("S5Topic", "S5Msg", q)
	if err != nil {
		t.Fatalf("CreateTopic (reader side): %v", err)
	}
	sub, err := readerParticipant.CreateSubscriber()
	if err != nil {
		t.Fatalf("CreateSubscriber: %v", err)
	}
	reader, err := sub.CreateDataReader(readerTopic, q)
	if err != nil {
		t.Fatalf("CreateDataReader: %v", err)
	}
	if err := reader.Enable(); err != nil {
		t.Fatalf("reader.Enable: %v", err)
	}

	writerTopic, err := writerParticipant.CreateTopic("S5Topic", "S5Msg", q)
	if err != nil {
		t.Fatalf("CreateTopic (writer side): %v", err)
	}
	pub, err := writerParticipant.CreatePublisher()
	if err != nil {
		t.Fatalf("CreatePublisher: %v", err)
	}
	writer, err := pub.CreateDataWriter(writerTopic, q)
	if err != nil {
		t.Fatalf("CreateDataWriter: %v", err)
	}
	if err := writer.Enable(); err != nil {
		t.Fatalf("writer.Enable: %v", err)
	}

	waitForStatus(t, writer.GetStatusCondition(), status.PublicationMatched, 5*time.Second)

	// The test participant's FragmentSize comes from config.Default(),
	// comfortably smaller than this payload, so Write must fragment it.
	big := make([]byte, 8000)
	for i := range big {
		big[i] = byte(i)
	}
	if err := writer.Write(nil, big); err != nil {
		t.Fatalf("Write: %v", err)
	}

	waitForStatus(t, reader.GetStatusCondition(), status.DataAvailable, 5*time.Second)

	samples, err := reader.Read(nil, nil, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("expected 1 reassembled sample, got %d", len(samples))
	}
	if len(samples[0].Payload) != len(big) {
		t.Fatalf("expected reassembled payload of %d bytes, got %d", len(big), len(samples[0].Payload))
	}
	for i := range big {
		if samples[0].Payload[i] != big[i] {
			t.Fatalf("reassembled payload diverges at byte %d", i)
		}
	}
}

// TestPartitionMatching reproduces spec.md §8 S6: a matching partition
// pair matches and exchanges data; a disjoint partition pair never
// matches and reports PARTITION as the incompatible policy on both
// sides.
func TestPartitionMatching(t *testing.T) {
	const domainID = 5

	t.Run("matching partitions match", func(t *testing.T) {
		q := qos.DefaultDataWriterQoS()
		q.Reliability = qos.Reliable
		q.Partitions = []string{"zone-a"}

		readerParticipant := newTestParticipant(t, domainID)
		writerParticipant := newTestParticipant(t, domainID)

		readerTopic, err := readerParticipant.CreateTopic("S6aTopic", "S6Msg", q)
		if err != nil {
			t.Fatalf("CreateTopic (reader side): %v", err)
		}
		sub, err := readerParticipant.CreateSubscriber()
		if err != nil {
			t.Fatalf("CreateSubscriber: %v", err)
		}
		reader, err := sub.CreateDataReader(readerTopic, q)
		if err != nil {
			t.Fatalf("CreateDataReader: %v", err)
		}
		reader.Enable()

		writerTopic, err := writerParticipant.CreateTopic("S6aTopic", "S6Msg", q)
		if err != nil {
			t.Fatalf("CreateTopic (writer side): %v", err)
		}
		pub, err := writerParticipant.CreatePublisher()
		if err != nil {
			t.Fatalf("CreatePublisher: %v", err)
		}
		writer, err := pub.CreateDataWriter(writerTopic, q)
		if err != nil {
			t.Fatalf("CreateDataWriter: %v", err)
		}
		writer.Enable()

		waitForStatus(t, writer.GetStatusCondition(), status.PublicationMatched, 5*time.Second)
		waitForStatus(t, reader.GetStatusCondition(), status.SubscriptionMatched, 5*time.Second)
	})

	t.Run("disjoint partitions never match", func(t *testing.T) {
		writerQoS := qos.DefaultDataWriterQoS()
		writerQoS.Reliability = qos.Reliable
		writerQoS.Partitions = []string{"zone-a"}
		readerQoS := writerQoS
		readerQoS.Partitions = []string{"zone-b"}

		readerParticipant := newTestParticipant(t, domainID)
		writerParticipant := newTestParticipant(t, domainID)

		readerTopic, err := readerParticipant.CreateTopic("S6bTopic", "S6Msg", readerQoS)
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

		writerTopic, err := writerParticipant.CreateTopic("S6bTopic", "S6Msg", writerQoS)
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
			t.Fatal("SUBSCRIPTION_MATCHED must not fire on disjoint partitions")
		}
		if writer.GetStatusChanges()&status.PublicationMatched != 0 {
			t.Fatal("PUBLICATION_MATCHED must not fire on disjoint partitions")
		}
	})
}
