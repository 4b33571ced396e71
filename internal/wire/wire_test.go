package wire

import (
	"reflect"
	"testing"

	"godds/internal/rtpscore"
)

func testHeader() MessageHeader {
	return MessageHeader{
		Version:    DefaultProtocolVersion,
		VendorID:   VendorIDThisImplementation,
		GuidPrefix: rtpscore.GuidPrefix{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
	}
}

func entity(k byte) rtpscore.EntityId {
	return rtpscore.EntityId{Key: [3]byte{0xAA, 0xBB, k}, Kind: 0xc2}
}

// TestMessageHeaderRoundTrip exercises spec.md §8.1 for the message header.
func TestMessageHeaderRoundTrip(t *testing.T) {
	h := testHeader()
	got, err := DecodeMessageHeader(h.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if got != h {
		t.Fatalf("got %+v, want %+v", got, h)
	}
}

func buildOneSubmessage(t *testing.T, kind SubmessageKind, body []byte, flags byte) RawSubmessage {
	t.Helper()
	b := NewBuilder(testHeader())
	b.AppendSubmessage(kind, flags, body)
	msg, err := ParseMessage(b.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(msg.Submessages) != 1 {
		t.Fatalf("expected 1 submessage, got %d", len(msg.Submessages))
	}
	return msg.Submessages[0]
}

func TestDataRoundTrip(t *testing.T) {
	orig := Data{
		ReaderID:          entity(1),
		WriterID:          entity(2),
		WriterSN:          42,
		SerializedPayload: []byte{1, 2, 3, 4},
	}
	body, flags := orig.Encode()
	raw := buildOneSubmessage(t, KindData, body, flags)
	got, err := DecodeData(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.ReaderID != orig.ReaderID || got.WriterID != orig.WriterID || got.WriterSN != orig.WriterSN {
		t.Fatalf("got %+v, want %+v", got, orig)
	}
	if !reflect.DeepEqual(got.SerializedPayload, orig.SerializedPayload) {
		t.Fatalf("payload: got %v want %v", got.SerializedPayload, orig.SerializedPayload)
	}
}

func TestDataFragRoundTrip(t *testing.T) {
	orig := DataFrag{
		ReaderID:              entity(1),
		WriterID:              entity(2),
		WriterSN:              7,
		FragmentStartingNum:   1,
		FragmentsInSubmessage: 1,
		FragmentSize:          1024,
		DataSize:              4000,
		SerializedPayload:     []byte{9, 9, 9, 9},
	}
	body, flags := orig.Encode()
	raw := buildOneSubmessage(t, KindDataFrag, body, flags)
	got, err := DecodeDataFrag(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, DataFrag{
		ReaderID:              orig.ReaderID,
		WriterID:              orig.WriterID,
		WriterSN:              orig.WriterSN,
		FragmentStartingNum:   orig.FragmentStartingNum,
		FragmentsInSubmessage: orig.FragmentsInSubmessage,
		FragmentSize:          orig.FragmentSize,
		DataSize:              orig.DataSize,
		SerializedPayload:     got.SerializedPayload,
	}) {
		t.Fatalf("got %+v, want %+v", got, orig)
	}
	if !reflect.DeepEqual(got.SerializedPayload, orig.SerializedPayload) {
		t.Fatalf("payload mismatch: got %v want %v", got.SerializedPayload, orig.SerializedPayload)
	}
}

func TestHeartbeatRoundTrip(t *testing.T) {
	orig := Heartbeat{ReaderID: entity(1), WriterID: entity(2), FirstSN: 1, LastSN: 10, Count: 5, Final: true}
	body, flags := orig.Encode()
	raw := buildOneSubmessage(t, KindHeartbeat, body, flags)
	got, err := DecodeHeartbeat(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got != orig {
		t.Fatalf("got %+v, want %+v", got, orig)
	}
}

func TestAckNackRoundTrip(t *testing.T) {
	set := rtpscore.NewSequenceNumberSet(1, []rtpscore.SequenceNumber{1, 3, 5})
	orig := AckNack{ReaderID: entity(1), WriterID: entity(2), ReaderSNState: set, Count: 9}
	body, flags := orig.Encode()
	raw := buildOneSubmessage(t, KindAckNack, body, flags)
	got, err := DecodeAckNack(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.ReaderID != orig.ReaderID || got.WriterID != orig.WriterID || got.Count != orig.Count {
		t.Fatalf("got %+v, want %+v", got, orig)
	}
	if !reflect.DeepEqual(got.ReaderSNState.Set(), orig.ReaderSNState.Set()) {
		t.Fatalf("set mismatch: got %v want %v", got.ReaderSNState.Set(), orig.ReaderSNState.Set())
	}
}

func TestGapRoundTrip(t *testing.T) {
	list := rtpscore.NewSequenceNumberSet(5, []rtpscore.SequenceNumber{5, 6})
	orig := Gap{ReaderID: entity(1), WriterID: entity(2), GapStart: 1, GapList: list}
	body, flags := orig.Encode()
	raw := buildOneSubmessage(t, KindGap, body, flags)
	got, err := DecodeGap(raw)
	if err != nil {
		t.Fatal(err)
	}
	irrelevant := got.AllIrrelevant()
	want := []rtpscore.SequenceNumber{1, 2, 3, 4, 5, 6}
	if !reflect.DeepEqual(irrelevant, want) {
		t.Fatalf("AllIrrelevant() = %v, want %v", irrelevant, want)
	}
}

func TestNackFragRoundTrip(t *testing.T) {
	set := rtpscore.NewSequenceNumberSet(1, []rtpscore.SequenceNumber{1})
	orig := NackFrag{ReaderID: entity(1), WriterID: entity(2), WriterSN: 3, FragmentNumberState: set, Count: 1}
	body, flags := orig.Encode()
	raw := buildOneSubmessage(t, KindNackFrag, body, flags)
	got, err := DecodeNackFrag(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.ReaderID != orig.ReaderID || got.WriterID != orig.WriterID || got.WriterSN != orig.WriterSN || got.Count != orig.Count {
		t.Fatalf("got %+v, want %+v", got, orig)
	}
}

func TestHeartbeatFragRoundTrip(t *testing.T) {
	orig := HeartbeatFrag{ReaderID: entity(1), WriterID: entity(2), WriterSN: 3, LastFragmentNum: 4, Count: 1}
	body, flags := orig.Encode()
	raw := buildOneSubmessage(t, KindHeartbeatFrag, body, flags)
	got, err := DecodeHeartbeatFrag(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got != orig {
		t.Fatalf("got %+v, want %+v", got, orig)
	}
}

func TestInfoTSRoundTrip(t *testing.T) {
	orig := InfoTS{Timestamp: rtpscore.Time{Seconds: 100, NanoSeconds: 200}}
	body, flags := orig.Encode()
	raw := buildOneSubmessage(t, KindInfoTS, body, flags)
	got, err := DecodeInfoTS(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got != orig {
		t.Fatalf("got %+v, want %+v", got, orig)
	}

	inv := InfoTS{Invalidate: true}
	body, flags = inv.Encode()
	raw = buildOneSubmessage(t, KindInfoTS, body, flags)
	got, err = DecodeInfoTS(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Invalidate {
		t.Fatal("expected Invalidate to round-trip")
	}
}

func TestInfoDstRoundTrip(t *testing.T) {
	orig := InfoDst{GuidPrefix: rtpscore.GuidPrefix{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9}}
	body, flags := orig.Encode()
	raw := buildOneSubmessage(t, KindInfoDst, body, flags)
	got, err := DecodeInfoDst(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got != orig {
		t.Fatalf("got %+v, want %+v", got, orig)
	}
}

// TestUnknownSubmessageSkipped exercises spec.md §8.1's "unknown-id
// submessages are skipped by exactly their declared length" property: a
// bogus id between two known submessages must not derail parsing of the
// second.
func TestUnknownSubmessageSkipped(t *testing.T) {
	b := NewBuilder(testHeader())
	b.AppendSubmessage(0x7e, 0, []byte{1, 2, 3, 4, 5, 6, 7, 8}) // unknown, vendor-specific id
	hb := Heartbeat{ReaderID: entity(1), WriterID: entity(2), FirstSN: 1, LastSN: 2, Count: 1}
	body, flags := hb.Encode()
	b.AppendSubmessage(KindHeartbeat, flags, body)

	msg, err := ParseMessage(b.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(msg.Submessages) != 2 {
		t.Fatalf("expected 2 submessages (1 skippable + 1 known), got %d", len(msg.Submessages))
	}
	if msg.Submessages[0].Kind != 0x7e {
		t.Fatalf("expected first submessage kind 0x7e, got %#x", msg.Submessages[0].Kind)
	}
	got, err := DecodeHeartbeat(msg.Submessages[1])
	if err != nil {
		t.Fatal(err)
	}
	if got != hb {
		t.Fatalf("got %+v, want %+v", got, hb)
	}
}

// TestTruncatedSubmessageDropsRemainder exercises spec.md §4.1/§7: a
// submessage whose declared length runs past the datagram end causes the
// remainder of the datagram to be dropped, not a panic or partial read.
func TestTruncatedSubmessageDropsRemainder(t *testing.T) {
	b := NewBuilder(testHeader())
	raw := b.Bytes()
	raw = append(raw, byte(KindHeartbeat), 0x01, 0xFF, 0xFF) // claims 65535 bytes of body, has none
	msg, err := ParseMessage(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(msg.Submessages) != 0 {
		t.Fatalf("expected truncated submessage to be dropped, got %d submessages", len(msg.Submessages))
	}
}
