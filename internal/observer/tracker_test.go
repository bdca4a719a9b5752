package observer

import "testing"

func TestSnapshotAfterWithoutBeforeIsZero(t *testing.T) {
	tr := NewTracker()
	overhead := tr.SnapshotAfter()
	if overhead.GoroutinesStart != 0 || overhead.GoroutinesEnd != 0 {
		t.Fatalf("expected a zero-valued overhead without SnapshotBefore, got %+v", overhead)
	}
}

func TestSnapshotBeforeThenAfterRecordsGoroutineCounts(t *testing.T) {
	tr := NewTracker()
	tr.SnapshotBefore()
	overhead := tr.SnapshotAfter()
	if overhead.GoroutinesStart == 0 {
		t.Errorf("expected a nonzero starting goroutine count")
	}
	if overhead.GoroutinesEnd == 0 {
		t.Errorf("expected a nonzero ending goroutine count")
	}
}

func TestSnapshotAfterTracksAllocation(t *testing.T) {
	tr := NewTracker()
	tr.SnapshotBefore()

	// Force some allocation so TotalAlloc/Mallocs visibly advance.
	junk := make([][]byte, 0, 1024)
	for i := 0; i < 1024; i++ {
		junk = append(junk, make([]byte, 256))
	}
	_ = junk

	overhead := tr.SnapshotAfter()
	if overhead.Mallocs == 0 {
		t.Errorf("expected Mallocs to advance after allocating, got 0")
	}
}
