package rcuengine

import (
	"sync"
	"time"

	"github.com/dmitriimaksimovdevelop/kernsim/internal/collab"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/simerr"
)

// MaxSrcuReaders bounds concurrent reader slots.
const MaxSrcuReaders = 32

// SrcuPollInterval is how often synchronize() re-checks reader slots.
const SrcuPollInterval = 1 * time.Microsecond

// SrcuDomain implements the sleepable-RCU domain from spec.md §4.2. Per §9's
// "open questions" note, synchronize() here saves the *old* index before
// flipping current and waits on that saved value — the corrected behavior,
// not the source's ambiguous (current^1)+1 read-after-flip.
type SrcuDomain struct {
	mu        sync.Mutex
	clock     collab.Clock
	current   int // 0 or 1
	completed uint64
	readers   [MaxSrcuReaders]int // 0 = free; readers[slot] == idx+1 while occupied
}

func NewSrcuDomain(clock collab.Clock) *SrcuDomain {
	return &SrcuDomain{clock: clock}
}

// ReadLock enters a read-side critical section, returning the generation
// index observed and the slot it occupies. Fails with CapacityExceeded if
// all MaxSrcuReaders slots are occupied.
func (d *SrcuDomain) ReadLock() (idx, slot int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, v := range d.readers {
		if v == 0 {
			d.readers[i] = d.current + 1
			return d.current, i, nil
		}
	}
	return 0, -1, simerr.New(simerr.CapacityExceeded, "rcuengine.srcu", "ReadLock", nil)
}

// ReadUnlock clears slot iff it still equals idx+1 — a caller that races a
// synchronize() flip between ReadLock and ReadUnlock still clears its own
// reservation correctly since the slot value is generation-stamped, not
// just a boolean.
func (d *SrcuDomain) ReadUnlock(slot, idx int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if slot < 0 || slot >= MaxSrcuReaders {
		return
	}
	if d.readers[slot] == idx+1 {
		d.readers[slot] = 0
	}
}

// Synchronize flips current, then blocks until every reader that observed
// the pre-flip index has called ReadUnlock. Concurrent Synchronize callers
// serialize on the domain lock for the flip itself but each waits
// independently on its own saved old-index value.
func (d *SrcuDomain) Synchronize() {
	d.mu.Lock()
	oldIdx := d.current
	d.current ^= 1
	d.completed++
	d.mu.Unlock()

	target := oldIdx + 1
	for {
		d.mu.Lock()
		clear := true
		for _, v := range d.readers {
			if v == target {
				clear = false
				break
			}
		}
		d.mu.Unlock()
		if clear {
			return
		}
		d.clock.Sleep(SrcuPollInterval)
	}
}

// SrcuStats is a snapshot of domain counters.
type SrcuStats struct {
	Current      int
	Completed    uint64
	ActiveReaders int
}

func (d *SrcuDomain) Snapshot() SrcuStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	active := 0
	for _, v := range d.readers {
		if v != 0 {
			active++
		}
	}
	return SrcuStats{Current: d.current, Completed: d.completed, ActiveReaders: active}
}
