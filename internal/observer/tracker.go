// Package observer provides self-overhead measurement for kernsim. It has no
// child processes to watch (spec.md's Non-goals exclude shelling out to real
// tools), so where the teacher's PIDTracker reads /proc/[pid]/io before and
// after a collection pass, this tracker snapshots runtime.MemStats and
// runtime.NumGoroutine around an orchestrator run instead — same
// snapshot-before/snapshot-after shape, different data source.
package observer

import (
	"runtime"

	"github.com/dmitriimaksimovdevelop/kernsim/internal/model"
)

// Tracker records kernsim's own heap and goroutine usage across a run.
type Tracker struct {
	before runtime.MemStats
	goBefore int
	taken  bool
}

// NewTracker creates a Tracker; call SnapshotBefore before starting work.
func NewTracker() *Tracker {
	return &Tracker{}
}

// SnapshotBefore records current memory stats and goroutine count.
func (t *Tracker) SnapshotBefore() {
	runtime.ReadMemStats(&t.before)
	t.goBefore = runtime.NumGoroutine()
	t.taken = true
}

// SnapshotAfter reads current stats and returns the delta since
// SnapshotBefore. Calling it without a prior SnapshotBefore returns a
// zero-valued overhead (mirrors the teacher's nil-before guard).
func (t *Tracker) SnapshotAfter() model.ObserverOverhead {
	if !t.taken {
		return model.ObserverOverhead{}
	}
	var after runtime.MemStats
	runtime.ReadMemStats(&after)
	goAfter := runtime.NumGoroutine()

	return model.ObserverOverhead{
		HeapAllocDeltaBytes:  int64(after.HeapAlloc) - int64(t.before.HeapAlloc),
		TotalAllocDeltaBytes: after.TotalAlloc - t.before.TotalAlloc,
		Mallocs:              after.Mallocs - t.before.Mallocs,
		NumGCDelta:           after.NumGC - t.before.NumGC,
		GoroutinesStart:      t.goBefore,
		GoroutinesEnd:        goAfter,
	}
}
