package cpuscheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitriimaksimovdevelop/kernsim/internal/collab"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/simerr"
)

const component = "cpuscheduler"

// LoadBalanceInterval is how often the load-balancer pass runs.
const LoadBalanceInterval = 1 * time.Second

// Config configures a Scheduler at construction time.
type Config struct {
	NumCPUs      int // <= MaxCPUs
	MaxTasks     int // 0 = DefaultMaxTasks
	LoadBalance  time.Duration
	WorkerSleep  func(time.Duration) // overridable for tests; defaults to clock.Sleep
}

const MaxCPUs = 16
const DefaultMaxTasks = 4096

// Stats is a snapshot of aggregated scheduler counters.
type Stats struct {
	NumCPUs         int
	TotalTasks      int
	CompletedTasks  uint64
	ContextSwitches uint64
	Migrations      uint64
	LoadBalances    uint64
	CapacityDrops   uint64
	BusyTime        []time.Duration
	IdleTime        []time.Duration
	QueueLengths    []int
}

// Scheduler distributes Tasks across N CPU worker threads, enforces
// per-task timeslices, retires tasks at runtime >= deadline, and rebalances
// queues periodically. Locking order for any operation touching two CPUs:
// always lock the lower-indexed CPU first (spec.md §4.1, §5).
type Scheduler struct {
	clock  collab.Clock
	rng    collab.Rng
	logger *collab.Logger

	cfg  Config
	cpus []*cpuGuard

	taskCount   int32
	maxTasks    int32
	nextTaskID  uint64

	completed       atomic.Uint64
	ctxSwitches     atomic.Uint64
	migrations      atomic.Uint64
	loadBalances    atomic.Uint64
	capacityDrops   atomic.Uint64

	running atomic.Bool
	wg      sync.WaitGroup
	stopCh  chan struct{}
}

// cpuGuard pairs a CpuRecord with the mutex that guards it, the minimal unit
// needed to implement the ascending-CPU-id lock ordering from §5.
type cpuGuard struct {
	mu     sync.Mutex
	record *CpuRecord
}

// New allocates N CpuRecords with empty queues; it starts no threads.
func New(cfg Config, clock collab.Clock, rng collab.Rng, logger *collab.Logger) (*Scheduler, error) {
	if cfg.NumCPUs <= 0 || cfg.NumCPUs > MaxCPUs {
		return nil, simerr.New(simerr.InvalidArgument, component, "New", nil)
	}
	if cfg.MaxTasks <= 0 {
		cfg.MaxTasks = DefaultMaxTasks
	}
	if cfg.LoadBalance <= 0 {
		cfg.LoadBalance = LoadBalanceInterval
	}
	s := &Scheduler{
		clock:    clock,
		rng:      rng,
		logger:   logger,
		cfg:      cfg,
		maxTasks: int32(cfg.MaxTasks),
	}
	s.cpus = make([]*cpuGuard, cfg.NumCPUs)
	for i := range s.cpus {
		s.cpus[i] = &cpuGuard{record: &CpuRecord{ID: i, State: IdleCPU, Queue: newRunQueue(i)}}
	}
	return s, nil
}

// Schedule inserts task into the currently least-loaded CPU's queue
// (tie-break: lowest CPU id), sets task.CPU, and fails with
// CapacityExceeded once the configured task ceiling is reached.
func (s *Scheduler) Schedule(task *Task) error {
	if task == nil {
		return simerr.New(simerr.InvalidArgument, component, "Schedule", nil)
	}
	if atomic.AddInt32(&s.taskCount, 1) > s.maxTasks {
		atomic.AddInt32(&s.taskCount, -1)
		s.capacityDrops.Add(1)
		return simerr.New(simerr.CapacityExceeded, component, "Schedule", nil)
	}
	if task.Timeslice <= 0 {
		task.Timeslice = DefaultTimeslice
	}

	best := 0
	bestLen := s.cpus[0].lockedLen()
	for i := 1; i < len(s.cpus); i++ {
		l := s.cpus[i].lockedLen()
		if l < bestLen {
			best, bestLen = i, l
		}
	}

	g := s.cpus[best]
	g.mu.Lock()
	task.CPU = best
	task.State = Ready
	g.record.Queue.PushTail(task)
	g.mu.Unlock()
	return nil
}

func (g *cpuGuard) lockedLen() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.record.Queue.Len()
}

// Start spawns N CPU workers and one load-balancer thread.
func (s *Scheduler) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return simerr.New(simerr.StateViolation, component, "Start", nil)
	}
	s.stopCh = make(chan struct{})
	for i := range s.cpus {
		s.wg.Add(1)
		go s.runWorker(i)
	}
	s.wg.Add(1)
	go s.runLoadBalancer()
	return nil
}

// Stop clears the running flag, closes stopCh, and blocks until every
// worker and the load balancer have exited.
func (s *Scheduler) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) sleep(d time.Duration) {
	if s.cfg.WorkerSleep != nil {
		s.cfg.WorkerSleep(d)
		return
	}
	s.clock.Sleep(d)
}

// runWorker implements the per-CPU worker algorithm from spec.md §4.1.
func (s *Scheduler) runWorker(cpu int) {
	defer s.wg.Done()
	g := s.cpus[cpu]
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		g.mu.Lock()
		current := g.record.Current
		g.mu.Unlock()

		if current != nil {
			s.sleep(current.Timeslice)

			g.mu.Lock()
			current.Runtime += current.Timeslice
			g.record.BusyTime += current.Timeslice
			if current.Runtime >= current.Deadline {
				current.State = Dead
				g.record.Current = nil
				s.completed.Add(1)
				atomic.AddInt32(&s.taskCount, -1)
			} else {
				current.State = Ready
				g.record.Current = nil
				g.record.Queue.PushHead(current)
			}
			g.mu.Unlock()
		}

		g.mu.Lock()
		next := g.record.Queue.PopHead()
		if next == nil {
			g.record.State = IdleCPU
			g.record.IdleTime += DefaultTimeslice
			g.mu.Unlock()
			s.sleep(DefaultTimeslice)
			continue
		}
		next.State = Running
		g.record.State = Active
		g.record.Current = next
		g.record.CtxSwitch++
		s.ctxSwitches.Add(1)
		g.mu.Unlock()
	}
}

// runLoadBalancer implements spec.md §4.1's load-balancer pass, running
// every Config.LoadBalance.
func (s *Scheduler) runLoadBalancer() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.LoadBalance)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.balanceOnce()
		}
	}
}

// balanceOnce finds the max/min-loaded CPUs and, if they differ by more than
// one task, migrates one task from the max queue's head to the min queue's
// head. Locks are acquired in ascending CPU-id order to avoid deadlock.
func (s *Scheduler) balanceOnce() {
	lens := make([]int, len(s.cpus))
	for i, g := range s.cpus {
		lens[i] = g.lockedLen()
	}

	maxIdx, minIdx := 0, 0
	for i := 1; i < len(lens); i++ {
		if lens[i] > lens[maxIdx] {
			maxIdx = i
		}
		if lens[i] < lens[minIdx] {
			minIdx = i
		}
	}
	if lens[maxIdx]-lens[minIdx] <= 1 {
		return
	}

	lo, hi := maxIdx, minIdx
	if lo > hi {
		lo, hi = hi, lo
	}
	s.cpus[lo].mu.Lock()
	s.cpus[hi].mu.Lock()
	defer s.cpus[hi].mu.Unlock()
	defer s.cpus[lo].mu.Unlock()

	src, dst := s.cpus[maxIdx], s.cpus[minIdx]
	t := src.record.Queue.PopHead()
	if t == nil {
		return
	}
	t.CPU = minIdx
	dst.record.Queue.PushHead(t)
	s.migrations.Add(1)
	s.loadBalances.Add(1)
	s.logger.Debugf("migrated task %d from cpu %d to cpu %d", t.ID, maxIdx, minIdx)
}

// SnapshotStats returns an aggregated counter snapshot.
func (s *Scheduler) SnapshotStats() Stats {
	st := Stats{
		NumCPUs:         len(s.cpus),
		TotalTasks:      int(atomic.LoadInt32(&s.taskCount)),
		CompletedTasks:  s.completed.Load(),
		ContextSwitches: s.ctxSwitches.Load(),
		Migrations:      s.migrations.Load(),
		LoadBalances:    s.loadBalances.Load(),
		CapacityDrops:   s.capacityDrops.Load(),
		BusyTime:        make([]time.Duration, len(s.cpus)),
		IdleTime:        make([]time.Duration, len(s.cpus)),
		QueueLengths:    make([]int, len(s.cpus)),
	}
	for i, g := range s.cpus {
		g.mu.Lock()
		st.BusyTime[i] = g.record.BusyTime
		st.IdleTime[i] = g.record.IdleTime
		st.QueueLengths[i] = g.record.Queue.Len()
		g.mu.Unlock()
	}
	return st
}
