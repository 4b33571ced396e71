package endpoint

import (
	"net"
	"testing"
	"time"

	"godds/internal/history"
	"godds/internal/qos"
	"godds/internal/rtpscore"
	"godds/internal/wire"
)

func testGUID(key byte) rtpscore.GUID {
	var prefix rtpscore.GuidPrefix
	prefix[0] = key
	return rtpscore.GUID{Prefix: prefix, Entity: rtpscore.EntityId{Key: [3]byte{key, 0, 0}, Kind: 1}}
}

func TestStatefulWriterSendsDataOnAddChange(t *testing.T) {
	cache := history.NewWriterHistoryCache(qos.History{Kind: qos.KeepAll})
	w := NewStatefulWriter(testGUID(1), true, 0, time.Second, cache)
	reader := testGUID(2)
	w.AddMatchedReader(reader, qos.Volatile, true)

	cache.AddChange(rtpscore.CacheChange{SerializedPayload: []byte("hello")})

	out := w.Tick(time.Now())
	var sawData bool
	for _, o := range out {
		if o.Data != nil {
			sawData = true
		}
	}
	if !sawData {
		t.Fatal("expected a DATA submessage for the new change")
	}
}

func TestStatefulWriterLateJoinerTransientLocalGetsHistory(t *testing.T) {
	cache := history.NewWriterHistoryCache(qos.History{Kind: qos.KeepLast, Depth: 3})
	w := NewStatefulWriter(testGUID(1), true, 0, time.Second, cache)

	cache.AddChange(rtpscore.CacheChange{SerializedPayload: []byte("1")})
	cache.AddChange(rtpscore.CacheChange{SerializedPayload: []byte("2")})
	cache.AddChange(rtpscore.CacheChange{SerializedPayload: []byte("3")})

	reader := testGUID(2)
	w.AddMatchedReader(reader, qos.TransientLocal, true)

	out := w.Tick(time.Now())
	count := 0
	for _, o := range out {
		if o.Data != nil {
			count++
		}
	}
	if count != 3 {
		t.Fatalf("expected all 3 historical samples resent to a TransientLocal late joiner, got %d", count)
	}
}

func TestStatefulWriterVolatileLateJoinerSkipsHistory(t *testing.T) {
	cache := history.NewWriterHistoryCache(qos.History{Kind: qos.KeepLast, Depth: 3})
	w := NewStatefulWriter(testGUID(1), true, 0, time.Second, cache)

	cache.AddChange(rtpscore.CacheChange{SerializedPayload: []byte("1")})
	cache.AddChange(rtpscore.CacheChange{SerializedPayload: []byte("2")})

	reader := testGUID(2)
	w.AddMatchedReader(reader, qos.Volatile, true)

	out := w.Tick(time.Now())
	for _, o := range out {
		if o.Data != nil {
			t.Fatal("expected no historical data resent to a Volatile late joiner")
		}
	}
}

func TestStatefulWriterFragmentsLargeChange(t *testing.T) {
	cache := history.NewWriterHistoryCache(qos.History{Kind: qos.KeepAll})
	w := NewStatefulWriter(testGUID(1), true, 4, time.Second, cache)
	w.AddMatchedReader(testGUID(2), qos.Volatile, true)

	cache.AddChange(rtpscore.CacheChange{SerializedPayload: []byte("0123456789")})
	out := w.Tick(time.Now())

	var frags int
	for _, o := range out {
		if o.DataFrag != nil {
			frags++
		}
		if o.Data != nil {
			t.Fatal("expected no plain DATA for an oversized change")
		}
	}
	if frags != 3 {
		t.Fatalf("expected 3 fragments of size 4 for a 10-byte payload, got %d", frags)
	}
}

func TestStatefulReaderAcceptsInOrderReliable(t *testing.T) {
	cache := history.NewReaderHistoryCache(0)
	r := NewStatefulReader(testGUID(2), true, cache)
	writer := testGUID(1)
	r.AddMatchedWriter(writer, true)

	res := r.OnData(writer, wire.Data{WriterSN: 1, SerializedPayload: []byte("a")}, rtpscore.Now())
	if res != ResultAdded {
		t.Fatalf("expected ResultAdded, got %v", res)
	}
	res = r.OnData(writer, wire.Data{WriterSN: 2, SerializedPayload: []byte("b")}, rtpscore.Now())
	if res != ResultAdded {
		t.Fatalf("expected ResultAdded, got %v", res)
	}
	if cache.Len() != 2 {
		t.Fatalf("expected 2 samples cached, got %d", cache.Len())
	}
}

func TestStatefulReaderRejectsOutOfOrderReliable(t *testing.T) {
	cache := history.NewReaderHistoryCache(0)
	r := NewStatefulReader(testGUID(2), true, cache)
	writer := testGUID(1)
	r.AddMatchedWriter(writer, true)

	res := r.OnData(writer, wire.Data{WriterSN: 2, SerializedPayload: []byte("b")}, rtpscore.Now())
	if res != ResultUnexpectedSeqNum {
		t.Fatalf("expected ResultUnexpectedSeqNum, got %v", res)
	}
}

func TestStatefulReaderBestEffortDetectsLoss(t *testing.T) {
	cache := history.NewReaderHistoryCache(0)
	r := NewStatefulReader(testGUID(2), false, cache)
	writer := testGUID(1)
	r.AddMatchedWriter(writer, false)

	r.OnData(writer, wire.Data{WriterSN: 1, SerializedPayload: []byte("a")}, rtpscore.Now())
	res := r.OnData(writer, wire.Data{WriterSN: 4, SerializedPayload: []byte("d")}, rtpscore.Now())
	if res != ResultAddedWithLoss {
		t.Fatalf("expected ResultAddedWithLoss, got %v", res)
	}
	if r.SamplesLost != 2 {
		t.Fatalf("expected 2 samples lost (seq 2,3), got %d", r.SamplesLost)
	}
}

func TestStatefulReaderHeartbeatDrivesAckNack(t *testing.T) {
	cache := history.NewReaderHistoryCache(0)
	r := NewStatefulReader(testGUID(2), true, cache)
	writer := testGUID(1)
	r.AddMatchedWriter(writer, true)

	need := r.OnHeartbeat(writer, wire.Heartbeat{FirstSN: 1, LastSN: 3, Count: 1, Final: false})
	if !need {
		t.Fatal("expected ACKNACK to be needed after a non-final heartbeat with missing samples")
	}
	acks := r.BuildAckNacks(time.Now())
	ack, ok := acks[writer]
	if !ok {
		t.Fatal("expected an ACKNACK for the matched writer")
	}
	missing := ack.ReaderSNState.Set()
	if len(missing) != 3 {
		t.Fatalf("expected 3 missing sequence numbers, got %v", missing)
	}
}

func TestStatelessWriterFlushSendsToEveryLocator(t *testing.T) {
	cache := history.NewWriterHistoryCache(qos.History{Kind: qos.KeepAll})
	w := NewStatelessWriter(testGUID(1), cache)
	w.AddReaderLocator(rtpscore.NewUDPv4Locator(net.IPv4(239, 255, 0, 1), 7400))
	w.AddChange(rtpscore.CacheChange{SerializedPayload: []byte("spdp")})

	out := w.Flush()
	if len(out) != 1 {
		t.Fatalf("expected 1 DATA submessage, got %d", len(out))
	}
	if out[0].Data == nil {
		t.Fatal("expected a Data submessage")
	}

	if len(w.Flush()) != 0 {
		t.Fatal("expected second flush to be empty, unsent set should have drained")
	}
}
