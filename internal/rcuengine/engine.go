package rcuengine

import (
	"sync"
	"time"

	"github.com/dmitriimaksimovdevelop/kernsim/internal/collab"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/simerr"
)

const component = "rcuengine"

// GracePeriodInterval is the default processor pass period.
const GracePeriodInterval = 10 * time.Millisecond

// Config configures an Engine.
type Config struct {
	NumCPUs       int
	NocbEnabled   func(cpu int) bool // default: even-indexed CPUs
	NocbWorkers   int                // default: MaxNocbWorkers
	GracePeriod   time.Duration      // default: GracePeriodInterval
}

// Engine owns a SegmentedCallbackList, a NOCB worker pool draining
// nocb-enabled per-CPU queues, and an SRCU domain — the three related
// primitives of spec.md §4.2. The engine's grace-period generation is
// stamped on segmented-list callbacks; the SRCU domain keeps its own
// completed-generation counter.
type Engine struct {
	clock  collab.Clock
	logger *collab.Logger
	cfg    Config

	list *SegmentedCallbackList
	srcu *SrcuDomain
	pool *nocbPool

	cpuQueues []*cpuQueue

	generation uint64
	genMu      sync.Mutex

	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New constructs an Engine; it starts no threads.
func New(cfg Config, clock collab.Clock, logger *collab.Logger) (*Engine, error) {
	if cfg.NumCPUs <= 0 {
		return nil, simerr.New(simerr.InvalidArgument, component, "New", nil)
	}
	if cfg.NocbEnabled == nil {
		cfg.NocbEnabled = func(cpu int) bool { return cpu%2 == 0 }
	}
	if cfg.NocbWorkers <= 0 {
		cfg.NocbWorkers = MaxNocbWorkers
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = GracePeriodInterval
	}

	e := &Engine{
		clock:  clock,
		logger: logger,
		cfg:    cfg,
		list:   NewSegmentedCallbackList(),
		srcu:   NewSrcuDomain(clock),
	}
	e.cpuQueues = make([]*cpuQueue, cfg.NumCPUs)
	var enabled []*cpuQueue
	for i := 0; i < cfg.NumCPUs; i++ {
		q := &cpuQueue{enabled: cfg.NocbEnabled(i)}
		e.cpuQueues[i] = q
		if q.enabled {
			enabled = append(enabled, q)
		}
	}
	e.pool = newNocbPool(cfg.NocbWorkers, enabled, clock, logger)
	return e, nil
}

// Start launches the segment processor and the NOCB worker pool.
func (e *Engine) Start() error {
	if e.running {
		return simerr.New(simerr.StateViolation, component, "Start", nil)
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.wg.Add(1)
	go e.runProcessor()
	e.pool.start(e.stopCh, &e.wg)
	return nil
}

func (e *Engine) Stop() {
	if !e.running {
		return
	}
	e.running = false
	close(e.stopCh)
	e.wg.Wait()
}

func (e *Engine) runProcessor() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.GracePeriod)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.list.ProcessPass()
			e.genMu.Lock()
			e.generation++
			e.genMu.Unlock()
		}
	}
}

// EnqueueSegmented enqueues a callback onto the shared segmented list.
// Returns false (CapacityExceeded, counted in ListStats.Dropped) if every
// segment is full.
func (e *Engine) EnqueueSegmented(fn CallbackFunc, arg any, tag string) bool {
	e.genMu.Lock()
	gen := e.generation
	e.genMu.Unlock()
	cb := &Callback{Fn: fn, Arg: arg, Tag: tag, EnqueuedAt: e.clock.NowMonotonic()}
	return e.list.Enqueue(cb, gen)
}

// EnqueuePerCPU pushes a callback onto one CPU's NOCB-drainable queue. Only
// CPUs flagged nocb_enabled are ever drained by the worker pool; callbacks
// queued on a non-enabled CPU accumulate until that CPU is reconfigured
// (there is no foreground-execution fallback path in this simulator — the
// teacher's collaborators model offload only, matching spec.md §4.2's scope).
func (e *Engine) EnqueuePerCPU(cpu int, fn CallbackFunc, arg any) error {
	if cpu < 0 || cpu >= len(e.cpuQueues) {
		return simerr.New(simerr.InvalidArgument, component, "EnqueuePerCPU", nil)
	}
	cb := &Callback{Fn: fn, Arg: arg, EnqueuedAt: e.clock.NowMonotonic()}
	e.cpuQueues[cpu].push(cb)
	return nil
}

// ReadLock / ReadUnlock / Synchronize expose the SRCU domain directly.
func (e *Engine) ReadLock() (idx, slot int, err error) { return e.srcu.ReadLock() }
func (e *Engine) ReadUnlock(slot, idx int)              { e.srcu.ReadUnlock(slot, idx) }
func (e *Engine) Synchronize()                          { e.srcu.Synchronize() }

// Stats aggregates all three sub-primitives for reporting.
type Stats struct {
	List       ListStats
	Srcu       SrcuStats
	Generation uint64
	NocbWorkers []NocbWorkerStats
}

type NocbWorkerStats struct {
	ID        int
	Processed uint64
	Busy      time.Duration
}

func (e *Engine) SnapshotStats() Stats {
	e.genMu.Lock()
	gen := e.generation
	e.genMu.Unlock()
	st := Stats{
		List:       e.list.Snapshot(),
		Srcu:       e.srcu.Snapshot(),
		Generation: gen,
	}
	for _, w := range e.pool.workers {
		st.NocbWorkers = append(st.NocbWorkers, NocbWorkerStats{ID: w.ID, Processed: w.Processed.Load(), Busy: time.Duration(w.Busy.Load())})
	}
	return st
}
