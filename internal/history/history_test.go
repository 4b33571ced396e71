package history

import (
	"testing"

	"godds/internal/qos"
	"godds/internal/rtpscore"
)

func change(instance byte, payload string) rtpscore.CacheChange {
	var h rtpscore.InstanceHandle
	h[0] = instance
	return rtpscore.CacheChange{
		Kind:              rtpscore.ChangeAlive,
		InstanceHandle:    h,
		SerializedPayload: []byte(payload),
	}
}

func TestWriterCacheAssignsIncreasingSeq(t *testing.T) {
	c := NewWriterHistoryCache(qos.History{Kind: qos.KeepAll})
	s1, _, _ := c.AddChange(change(1, "a"))
	s2, _, _ := c.AddChange(change(1, "b"))
	if s1 != 1 || s2 != 2 {
		t.Fatalf("got %d, %d", s1, s2)
	}
}

func TestWriterCacheKeepLastEvictsOldest(t *testing.T) {
	c := NewWriterHistoryCache(qos.History{Kind: qos.KeepLast, Depth: 2})
	c.AddChange(change(1, "a"))
	c.AddChange(change(1, "b"))
	_, evicted, didEvict := c.AddChange(change(1, "c"))
	if !didEvict || evicted != 1 {
		t.Fatalf("expected eviction of seq 1, got evicted=%d didEvict=%v", evicted, didEvict)
	}
	if c.Len() != 2 {
		t.Fatalf("expected cache depth 2, got %d", c.Len())
	}
}

func TestWriterCacheKeepLastPerInstance(t *testing.T) {
	c := NewWriterHistoryCache(qos.History{Kind: qos.KeepLast, Depth: 1})
	c.AddChange(change(1, "a"))
	c.AddChange(change(2, "b"))
	if c.Len() != 2 {
		t.Fatalf("expected no cross-instance eviction, got len %d", c.Len())
	}
}

func TestWriterCacheMinMaxSeq(t *testing.T) {
	c := NewWriterHistoryCache(qos.History{Kind: qos.KeepAll})
	c.AddChange(change(1, "a"))
	c.AddChange(change(1, "b"))
	c.AddChange(change(1, "c"))
	c.RemoveChange(1)
	min, ok := c.MinSeq()
	if !ok || min != 2 {
		t.Fatalf("got min=%d ok=%v", min, ok)
	}
	max, ok := c.MaxSeq()
	if !ok || max != 3 {
		t.Fatalf("got max=%d ok=%v", max, ok)
	}
}

func TestReaderCacheDuplicateDetection(t *testing.T) {
	c := NewReaderHistoryCache(0)
	guid := rtpscore.GUID{}
	ch := change(1, "a")
	ch.WriterGUID = guid
	ch.SequenceNumber = 1
	c.Add(ch)
	if !c.Contains(guid, 1) {
		t.Fatal("expected duplicate detection to find the sample")
	}
	if c.Contains(guid, 2) {
		t.Fatal("unexpected match for unseen sequence number")
	}
}

func TestReaderCacheViewStateFirstSampleIsNew(t *testing.T) {
	c := NewReaderHistoryCache(0)
	first := c.Add(change(1, "a"))
	second := c.Add(change(1, "b"))
	if first.ViewState != New {
		t.Fatal("expected first sample for an instance to be New")
	}
	if second.ViewState != NotNew {
		t.Fatal("expected second sample for the same instance to be NotNew")
	}
}

func TestReaderCacheTakeRemovesSamples(t *testing.T) {
	c := NewReaderHistoryCache(0)
	c.Add(change(1, "a"))
	c.Add(change(1, "b"))
	taken := c.Take(nil, nil, nil)
	if len(taken) != 2 {
		t.Fatalf("expected 2 samples taken, got %d", len(taken))
	}
	if c.Len() != 0 {
		t.Fatalf("expected cache empty after take, got %d", c.Len())
	}
}

func TestReaderCacheReadDoesNotRemove(t *testing.T) {
	c := NewReaderHistoryCache(0)
	c.Add(change(1, "a"))
	read := c.Read(nil, nil, nil)
	if len(read) != 1 || c.Len() != 1 {
		t.Fatal("read must not remove samples")
	}
	readAgain := c.Read([]SampleState{NotRead}, nil, nil)
	if len(readAgain) != 0 {
		t.Fatal("expected no NotRead samples remaining after a prior read marked it Read")
	}
}

func TestReaderCacheKeepLastDepthEvicts(t *testing.T) {
	c := NewReaderHistoryCache(2)
	c.Add(change(1, "a"))
	c.Add(change(1, "b"))
	c.Add(change(1, "c"))
	if c.Len() != 2 {
		t.Fatalf("expected depth-bounded cache to hold 2, got %d", c.Len())
	}
}
