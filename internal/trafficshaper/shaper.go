package trafficshaper

import (
	"sync"
	"time"

	"github.com/dmitriimaksimovdevelop/kernsim/internal/collab"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/simerr"
)

// Config configures a Shaper at construction time.
type Config struct {
	RootRate, RootCeil  float64
	EtfBandwidth        float64
	EtfMaxQueueDepth    int
	TickInterval        time.Duration // how often Start's background loop re-derives bucket/ETF state
}

const DefaultTickInterval = 10 * time.Millisecond

// Stats is an aggregated snapshot across both sub-schedulers.
type Stats struct {
	Classes []HtbClassStats
	Etf     EtfStats
}

// Shaper pairs one HtbTree with one EtfScheduler under a single mutex; both
// disciplines see the same simulated clock. Unlike cpuscheduler's per-CPU
// guards, a single mutex is sufficient here because neither sub-scheduler
// ever blocks the other (spec.md §5: "single-threaded per shaper instance").
type Shaper struct {
	clock  collab.Clock
	logger *collab.Logger
	cfg    Config

	mu   sync.Mutex
	tree *HtbTree
	etf  *EtfScheduler

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(cfg Config, clock collab.Clock, logger *collab.Logger) (*Shaper, error) {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	tree, err := NewHtbTree(cfg.RootRate, cfg.RootCeil, clock.NowMonotonic())
	if err != nil {
		return nil, err
	}
	etf := NewEtfScheduler(EtfConfig{BandwidthBytesPerSec: cfg.EtfBandwidth, MaxQueueDepth: cfg.EtfMaxQueueDepth})
	return &Shaper{clock: clock, logger: logger, cfg: cfg, tree: tree, etf: etf}, nil
}

// AddClass creates an HTB child class under parentID.
func (s *Shaper) AddClass(parentID int, rate, ceil float64, traffic TrafficClass) (*HtbClass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.AddChild(parentID, rate, ceil, traffic, s.clock.NowMonotonic())
}

// ChargeClass charges a send of size bytes against classID's token buckets.
func (s *Shaper) ChargeClass(classID int, size float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.tree.Class(classID)
	if !ok {
		return false, simerr.New(simerr.InvalidArgument, component, "ChargeClass", nil)
	}
	return c.Charge(s.clock.NowMonotonic(), size), nil
}

// EnqueuePacket inserts pkt into the ETF deadline-ordered queue.
func (s *Shaper) EnqueuePacket(pkt *EtfPacket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.etf.Enqueue(pkt)
}

// DequeuePacket pops the earliest-deadline packet, if any.
func (s *Shaper) DequeuePacket() *EtfPacket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.etf.Dequeue(s.clock.NowMonotonic())
}

// Start spawns a background loop that refills every HTB class's buckets and
// advances the ETF transmission list once per TickInterval. Both
// sub-schedulers also accept direct synchronous calls (ChargeClass,
// DequeuePacket) between ticks, matching §5's "driven by the caller" model.
func (s *Shaper) Start() {
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.runTicker()
}

func (s *Shaper) Stop() {
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Shaper) runTicker() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Shaper) tick() {
	now := s.clock.NowMonotonic()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.tree.AllClasses() {
		c.Update(now)
	}
	s.etf.UpdateSchedulerTime(now)
}

// SnapshotStats returns a combined snapshot across both sub-schedulers.
func (s *Shaper) SnapshotStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	classes := s.tree.AllClasses()
	out := Stats{Classes: make([]HtbClassStats, len(classes)), Etf: s.etf.Snapshot()}
	for i, c := range classes {
		out.Classes[i] = c.Snapshot()
	}
	return out
}
