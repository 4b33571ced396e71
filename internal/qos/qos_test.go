package qos

import "testing"

func TestDefaultQoSCompatibleWithItself(t *testing.T) {
	d := DefaultDataWriterQoS()
	if err := d.Validate(); err != nil {
		t.Fatalf("default qos should validate: %v", err)
	}
	if _, ok := Compatible(d, DefaultDataReaderQoS()); !ok {
		t.Fatal("default writer/reader qos should be compatible")
	}
}

func TestIncompatibleReliability(t *testing.T) {
	offered := DefaultDataWriterQoS()
	offered.Reliability = BestEffort
	requested := DefaultDataReaderQoS()
	requested.Reliability = Reliable

	id, ok := Compatible(offered, requested)
	if ok || id != PolicyIDReliability {
		t.Fatalf("expected RELIABILITY incompatibility, got %v ok=%v", id, ok)
	}
}

func TestIncompatibleDurability(t *testing.T) {
	offered := DefaultDataWriterQoS()
	offered.Durability = Volatile
	requested := DefaultDataReaderQoS()
	requested.Durability = TransientLocal

	id, ok := Compatible(offered, requested)
	if ok || id != PolicyIDDurability {
		t.Fatalf("expected DURABILITY incompatibility, got %v ok=%v", id, ok)
	}
}

func TestValidateRejectsDepthOverResourceLimit(t *testing.T) {
	p := DefaultDataWriterQoS()
	p.History.Depth = 10
	p.ResourceLimits.MaxSamplesPerInstance = 3
	if err := p.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestPartitionMatch(t *testing.T) {
	cases := []struct {
		a, b []string
		want bool
	}{
		{nil, nil, true},
		{[]string{"A"}, nil, false},
		{[]string{"A"}, []string{"A"}, true},
		{[]string{"A*"}, []string{"Alpha"}, true},
		{[]string{"Alpha"}, []string{"B"}, false},
		{[]string{"B"}, []string{"B"}, true},
	}
	for _, c := range cases {
		if got := PartitionsMatch(c.a, c.b); got != c.want {
			t.Errorf("PartitionsMatch(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

// TestPartitionMatchScenarioS6 reproduces spec.md S6: publisher partition
// ["A*"] matches subscriber ["Alpha"]; changing the subscriber to ["B"]
// unmatches.
func TestPartitionMatchScenarioS6(t *testing.T) {
	pub := []string{"A*"}
	if !PartitionsMatch(pub, []string{"Alpha"}) {
		t.Fatal("expected A* to match Alpha")
	}
	if PartitionsMatch(pub, []string{"B"}) {
		t.Fatal("expected A* not to match B")
	}
}
