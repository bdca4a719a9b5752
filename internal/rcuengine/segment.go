package rcuengine

import "sync"

// MaxSegmentCapacity bounds each segment's deque (spec.md §3: "≤64
// callbacks").
const MaxSegmentCapacity = 64

// NumSegments is the fixed carousel size.
const NumSegments = 4

// MaxBatch is the maximum number of callbacks processed per segment per
// processor pass.
const MaxBatch = 16

// SegmentState is a Segment's lifecycle state.
type SegmentState int

const (
	SegEmpty SegmentState = iota
	SegFilling
	SegFull
	SegProcessing
)

// Segment is a fixed-capacity bounded deque of callbacks.
type Segment struct {
	state SegmentState
	items []*Callback // items[0] is head
}

func newSegment() *Segment {
	return &Segment{state: SegEmpty}
}

func (s *Segment) len() int { return len(s.items) }

// SegmentedCallbackList owns NumSegments segments in a rotating carousel
// plus a current-segment (Filling) index. At most one segment is Filling at
// a time — enforced by construction, since only segments[cur] is ever
// appended to.
type SegmentedCallbackList struct {
	mu       sync.Mutex
	segments [NumSegments]*Segment
	cur      int // index of the Filling segment

	enqueued        uint64
	processed       uint64
	dropped         uint64
	segmentAdvances uint64
	gracePeriods    uint64
}

// NewSegmentedCallbackList constructs a carousel with segment 0 Filling and
// the rest Empty.
func NewSegmentedCallbackList() *SegmentedCallbackList {
	l := &SegmentedCallbackList{}
	for i := range l.segments {
		l.segments[i] = newSegment()
	}
	l.segments[0].state = SegFilling
	return l
}

// Enqueue appends cb to the Filling segment. When that segment reaches
// MaxSegmentCapacity it transitions Filling -> Full, the carousel advances,
// and the next segment becomes Filling if it is Empty. If the next segment
// is not Empty, no segment is Filling and Enqueue fails (false return,
// counted as dropped) until a ProcessPass re-arms a drained segment, even
// when other segments are Empty. Existing work is never dropped to make room.
func (l *SegmentedCallbackList) Enqueue(cb *Callback, generation uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	filling := l.segments[l.cur]
	if filling.state != SegFilling {
		// Carousel has wrapped all the way around without any segment
		// draining; nothing can accept more work right now.
		l.dropped++
		return false
	}

	cb.State = CBPending
	cb.Generation = generation
	filling.items = append(filling.items, cb)
	l.enqueued++

	if len(filling.items) >= MaxSegmentCapacity {
		filling.state = SegFull
		next := (l.cur + 1) % NumSegments
		if l.segments[next].state == SegEmpty {
			l.segments[next].state = SegFilling
			l.cur = next
			l.segmentAdvances++
		}
		// else: next segment isn't drained yet; Enqueue will report
		// CapacityExceeded on the following call until it frees up.
	}
	return true
}

// ProcessPass scans all segments once, executing up to MaxBatch callbacks
// per Full segment. A segment whose callbacks are all executed returns to
// Empty with its items reset and, if no segment is Filling at that moment,
// is re-armed as Filling and becomes the current segment. If no segment is
// Full/Processing when a pass starts, the current Filling segment (if
// non-empty) is force-closed and scanned too, so a tail of fewer than
// MaxSegmentCapacity callbacks — the normal end-of-run or low-traffic case —
// still drains instead of waiting forever for a Full segment that will
// never arrive. Returns the number of callbacks executed this pass.
func (l *SegmentedCallbackList) ProcessPass() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	hasWork := false
	for _, seg := range l.segments {
		if seg.state == SegFull || seg.state == SegProcessing {
			hasWork = true
			break
		}
	}
	if !hasWork {
		filling := l.segments[l.cur]
		if filling.state == SegFilling && filling.len() > 0 {
			filling.state = SegFull
		}
	}

	executed := 0
	for i := range l.segments {
		seg := l.segments[i]
		if seg.state != SegFull && seg.state != SegProcessing {
			continue
		}
		seg.state = SegProcessing

		n := len(seg.items)
		if n > MaxBatch {
			n = MaxBatch
		}
		batch := seg.items[:n]
		seg.items = seg.items[n:]

		for _, cb := range batch {
			cb.State = CBProcessing
			runCallbackSafely(cb)
			cb.State = CBDone
			executed++
		}
		l.processed += uint64(len(batch))

		if len(seg.items) == 0 {
			seg.state = SegEmpty
			if l.segments[l.cur].state != SegFilling {
				// No segment is currently accepting writes; arm this one.
				seg.state = SegFilling
				l.cur = i
			}
		}
	}
	l.gracePeriods++
	return executed
}

func runCallbackSafely(cb *Callback) {
	defer func() {
		_ = recover() // a misbehaving callback must not wedge the processor
	}()
	cb.run()
}

// ListStats is a snapshot of carousel counters.
type ListStats struct {
	Enqueued        uint64
	Processed       uint64
	Dropped         uint64
	SegmentAdvances uint64
	GracePeriods    uint64
	SegmentStates   [NumSegments]SegmentState
	SegmentCounts   [NumSegments]int
}

func (l *SegmentedCallbackList) Snapshot() ListStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := ListStats{
		Enqueued:        l.enqueued,
		Processed:       l.processed,
		Dropped:         l.dropped,
		SegmentAdvances: l.segmentAdvances,
		GracePeriods:    l.gracePeriods,
	}
	for i, seg := range l.segments {
		st.SegmentStates[i] = seg.state
		st.SegmentCounts[i] = seg.len()
	}
	return st
}
