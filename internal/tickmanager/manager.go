package tickmanager

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitriimaksimovdevelop/kernsim/internal/collab"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/simerr"
)

const MaxCPUs = 16

// Config configures a Manager at construction time.
type Config struct {
	NumCPUs int
}

// Manager owns a global jiffy counter and N per-CPU tick devices, driven by
// a tick thread and a load thread (spec.md §4.5, §5).
type Manager struct {
	clock  collab.Clock
	logger *collab.Logger

	mu   sync.Mutex
	cpus []*cpuTick

	jiffies        atomic.Uint64
	forcedRestarts atomic.Uint64

	lastNow time.Duration

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func New(cfg Config, clock collab.Clock, logger *collab.Logger) (*Manager, error) {
	if cfg.NumCPUs <= 0 || cfg.NumCPUs > MaxCPUs {
		return nil, simerr.New(simerr.InvalidArgument, component, "New", nil)
	}
	m := &Manager{clock: clock, logger: logger}
	m.cpus = make([]*cpuTick, cfg.NumCPUs)
	for i := range m.cpus {
		m.cpus[i] = &cpuTick{id: i, device: Periodic, run: Active}
	}
	return m, nil
}

// Start spawns the tick thread and the load thread.
func (m *Manager) Start() error {
	if !m.running.CompareAndSwap(false, true) {
		return simerr.New(simerr.StateViolation, component, "Start", nil)
	}
	m.lastNow = m.clock.NowMonotonic()
	m.stopCh = make(chan struct{})
	m.wg.Add(2)
	go m.runTickThread()
	go m.runLoadThread()
	return nil
}

func (m *Manager) Stop() {
	if !m.running.CompareAndSwap(true, false) {
		return
	}
	close(m.stopCh)
	m.wg.Wait()
}

// runTickThread wakes every TickThreadSleep, advances jiffies by as many
// whole TickPeriods as have elapsed since the last wake (clamped at zero so
// clock jitter can never move jiffies backwards), and calls each Active
// CPU's tick handler once per wake, passing it the number of elapsed periods.
func (m *Manager) runTickThread() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			return
		default:
		}
		m.clock.Sleep(TickThreadSleep)

		now := m.clock.NowMonotonic()
		m.mu.Lock()
		elapsed := now - m.lastNow
		if elapsed < 0 {
			elapsed = 0
		}
		periods := int(elapsed / TickPeriod)
		if periods > 0 {
			m.lastNow += time.Duration(periods) * TickPeriod
			m.jiffies.Add(uint64(periods))
			for _, c := range m.cpus {
				if c.run != Active {
					continue
				}
				m.dispatchTick(c, periods)
			}
		}
		m.mu.Unlock()
	}
}

// dispatchTick must be called with mu held.
func (m *Manager) dispatchTick(c *cpuTick, periods int) {
	switch c.device {
	case Periodic:
		c.lastTick += time.Duration(periods) * TickPeriod
		c.periodicTicks++
	case OneShot:
		c.idleSamples++
	case Stopped:
		// ticks are not delivered while stopped; nothing to dispatch.
	}
}

// runLoadThread forces one Idle CPU back to Active (and restarts its tick)
// whenever more than MaxIdleBalance CPUs are Idle.
func (m *Manager) runLoadThread() {
	defer m.wg.Done()
	ticker := time.NewTicker(LoadThreadSleep)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.balanceIdle()
		}
	}
}

func (m *Manager) balanceIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	idleCount := 0
	var victim *cpuTick
	for _, c := range m.cpus {
		if c.run == Idle {
			idleCount++
			if victim == nil {
				victim = c
			}
		}
	}
	if idleCount > MaxIdleBalance && victim != nil {
		victim.run = Active
		m.startTickLocked(victim)
		m.forcedRestarts.Add(1)
		m.logger.Debugf("forced cpu %d out of idle (idle count %d > %d)", victim.id, idleCount, MaxIdleBalance)
	}
}

// SetRunState transitions cpu's run state. A transition into NewlyIdle
// while the CPU is in HighRes NOHZ mode automatically stops its tick
// (spec.md §4.5).
func (m *Manager) SetRunState(cpu int, state RunState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.cpuLocked(cpu)
	if err != nil {
		return err
	}
	c.run = state
	if state == NewlyIdle && c.nohz == NohzHighRes {
		m.stopTickLocked(c)
	}
	return nil
}

// SwitchToNohz hands cpu's tick device to tickless/HighRes NOHZ management.
func (m *Manager) SwitchToNohz(cpu int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.cpuLocked(cpu)
	if err != nil {
		return err
	}
	if c.nohz == NohzInactive {
		c.device = OneShot
		c.nohz = NohzHighRes
	}
	return nil
}

// StopTick idempotently stops cpu's tick device.
func (m *Manager) StopTick(cpu int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.cpuLocked(cpu)
	if err != nil {
		return err
	}
	m.stopTickLocked(c)
	return nil
}

func (m *Manager) stopTickLocked(c *cpuTick) {
	if c.device == Stopped {
		return
	}
	c.prevDevice = c.device
	c.device = Stopped
	c.idleTick = c.lastTick
	c.tickStops++
}

// StartTick restores cpu's tick device to whatever it was before the most
// recent StopTick.
func (m *Manager) StartTick(cpu int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.cpuLocked(cpu)
	if err != nil {
		return err
	}
	m.startTickLocked(c)
	return nil
}

func (m *Manager) startTickLocked(c *cpuTick) {
	if c.device != Stopped {
		return
	}
	c.device = c.prevDevice
	c.tickStarts++
}

func (m *Manager) cpuLocked(cpu int) (*cpuTick, error) {
	if cpu < 0 || cpu >= len(m.cpus) {
		return nil, simerr.New(simerr.InvalidArgument, component, "cpuLocked", nil)
	}
	return m.cpus[cpu], nil
}

// Jiffies returns the current global jiffy count.
func (m *Manager) Jiffies() uint64 {
	return m.jiffies.Load()
}

// SnapshotStats returns an aggregated counter snapshot.
func (m *Manager) SnapshotStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Stats{
		Jiffies:        m.jiffies.Load(),
		ForcedRestarts: m.forcedRestarts.Load(),
		CPUs:           make([]CpuStats, len(m.cpus)),
	}
	for i, c := range m.cpus {
		st.CPUs[i] = CpuStats{
			ID: c.id, Device: c.device, Nohz: c.nohz, Run: c.run,
			LastTick: c.lastTick, IdleTick: c.idleTick,
			TickStops: c.tickStops, TickStarts: c.tickStarts,
			IdleSamples: c.idleSamples, PeriodicTicks: c.periodicTicks,
		}
	}
	return st
}
