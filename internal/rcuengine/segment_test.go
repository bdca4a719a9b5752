package rcuengine

import "testing"

func TestSegmentedListFillAndAdvance(t *testing.T) {
	l := NewSegmentedCallbackList()

	for i := 0; i < 64; i++ {
		if ok := l.Enqueue(&Callback{}, 0); !ok {
			t.Fatalf("Enqueue callback %d failed unexpectedly", i)
		}
	}
	st := l.Snapshot()
	if st.SegmentStates[0] != SegFull {
		t.Errorf("segment 0 state = %v, want Full", st.SegmentStates[0])
	}
	if st.SegmentAdvances != 1 {
		t.Errorf("segmentAdvances = %d, want 1", st.SegmentAdvances)
	}
	if st.SegmentStates[1] != SegFilling {
		t.Errorf("segment 1 state = %v, want Filling", st.SegmentStates[1])
	}

	if ok := l.Enqueue(&Callback{}, 0); !ok {
		t.Fatal("65th enqueue failed unexpectedly")
	}
	st = l.Snapshot()
	if st.SegmentCounts[1] != 1 {
		t.Errorf("segment 1 count = %d, want 1 (65th callback)", st.SegmentCounts[1])
	}
}

func TestSegmentedListDrainsInFourPasses(t *testing.T) {
	l := NewSegmentedCallbackList()
	for i := 0; i < 65; i++ {
		l.Enqueue(&Callback{}, 0)
	}

	for pass := 1; pass <= 4; pass++ {
		l.ProcessPass()
		st := l.Snapshot()
		wantCount := 64 - pass*MaxBatch
		if wantCount < 0 {
			wantCount = 0
		}
		if st.SegmentCounts[0] != wantCount {
			t.Errorf("pass %d: segment 0 count = %d, want %d", pass, st.SegmentCounts[0], wantCount)
		}
		if pass < 4 && st.SegmentStates[0] != SegProcessing {
			t.Errorf("pass %d: segment 0 state = %v, want Processing", pass, st.SegmentStates[0])
		}
	}
	st := l.Snapshot()
	if st.SegmentStates[0] != SegEmpty {
		t.Errorf("segment 0 state after 4 passes = %v, want Empty", st.SegmentStates[0])
	}
	if st.Processed != 64 {
		t.Errorf("processed = %d, want 64 (segment 1's leftover callback is untouched, still Filling)", st.Processed)
	}
}

func TestEnqueuedCallbackExecutesNoEarlierThanNextGeneration(t *testing.T) {
	l := NewSegmentedCallbackList()
	executed := false
	l.Enqueue(&Callback{Fn: func(any) { executed = true }}, 0)
	// Still within the same generation: no ProcessPass has run yet.
	if executed {
		t.Fatal("callback executed before any processor pass")
	}
	l.ProcessPass()
	if !executed {
		t.Fatal("callback did not execute after a processor pass")
	}
}

func TestProcessPassDrainsPartialFillingSegmentWithNoFullSegment(t *testing.T) {
	l := NewSegmentedCallbackList()
	for i := 0; i < 5; i++ {
		if ok := l.Enqueue(&Callback{}, 0); !ok {
			t.Fatalf("Enqueue callback %d failed unexpectedly", i)
		}
	}
	st := l.Snapshot()
	if st.SegmentStates[0] != SegFilling {
		t.Fatalf("segment 0 state = %v, want Filling (no segment ever reached Full)", st.SegmentStates[0])
	}

	n := l.ProcessPass()
	if n != 5 {
		t.Fatalf("ProcessPass() = %d, want 5 (the only non-empty, if still Filling, segment)", n)
	}

	st = l.Snapshot()
	if st.Processed != st.Enqueued {
		t.Errorf("processed = %d, enqueued = %d, want equal (full drain law)", st.Processed, st.Enqueued)
	}
	if st.SegmentCounts[0] != 0 {
		t.Errorf("segment 0 count = %d, want 0 after drain", st.SegmentCounts[0])
	}
	if st.SegmentStates[0] != SegFilling {
		t.Errorf("segment 0 state = %v, want Filling again (re-armed for further enqueues)", st.SegmentStates[0])
	}
}

func TestCallbackPanicDoesNotWedgeProcessor(t *testing.T) {
	l := NewSegmentedCallbackList()
	l.Enqueue(&Callback{Fn: func(any) { panic("boom") }}, 0)
	l.Enqueue(&Callback{Fn: func(any) {}}, 0)

	n := l.ProcessPass()
	if n != 2 {
		t.Fatalf("ProcessPass() = %d, want 2 (panic swallowed, both counted processed)", n)
	}
}
