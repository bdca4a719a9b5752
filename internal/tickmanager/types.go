// Package tickmanager simulates the jiffy/tick device and its NOHZ
// (tickless) idle handling: a tick thread that advances a global jiffy
// counter and dispatches per-CPU tick handlers, and a load thread that
// forces an idle CPU back to work when too many CPUs have gone idle.
//
// Grounded on the teacher's two-thread orchestration shape
// (orchestrator.go spawning one goroutine per concern plus a periodic
// ticker) and on rcuengine's ticker-driven processor loop for the tick
// thread's "wake, advance, dispatch" structure.
package tickmanager

import "time"

const component = "tickmanager"

// TickPeriod is one jiffy: 1 ms, per spec.md §4.5.
const TickPeriod = time.Millisecond

// TickThreadSleep is how often the tick thread wakes to check elapsed time.
const TickThreadSleep = 100 * time.Microsecond

// LoadThreadSleep is how often the load thread samples CPU idle counts.
const LoadThreadSleep = 1 * time.Millisecond

// MaxIdleBalance is the idle-CPU count above which the load thread forces
// one CPU back to work.
const MaxIdleBalance = 10

// NohzMode is whether a CPU's tick has been handed off to tickless/HighRes
// NOHZ management.
type NohzMode int

const (
	NohzInactive NohzMode = iota
	NohzHighRes
)

func (m NohzMode) String() string {
	if m == NohzHighRes {
		return "HighRes"
	}
	return "Inactive"
}

// DeviceState is a CPU's tick-device mode.
type DeviceState int

const (
	Periodic DeviceState = iota
	OneShot
	Stopped
)

func (s DeviceState) String() string {
	switch s {
	case Periodic:
		return "Periodic"
	case OneShot:
		return "OneShot"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// RunState is a CPU's scheduling-idle state, independent of its tick device.
type RunState int

const (
	Active RunState = iota
	Idle
	NewlyIdle
)

func (s RunState) String() string {
	switch s {
	case Active:
		return "Active"
	case Idle:
		return "Idle"
	case NewlyIdle:
		return "NewlyIdle"
	default:
		return "Unknown"
	}
}

// cpuTick is one CPU's tick-device and run-state bookkeeping.
type cpuTick struct {
	id int

	device     DeviceState
	prevDevice DeviceState
	nohz       NohzMode
	run        RunState

	lastTick time.Duration
	idleTick time.Duration

	tickStops    uint64
	tickStarts   uint64
	idleSamples  uint64
	periodicTicks uint64
}

// CpuStats is a per-CPU reporting snapshot.
type CpuStats struct {
	ID            int
	Device        DeviceState
	Nohz          NohzMode
	Run           RunState
	LastTick      time.Duration
	IdleTick      time.Duration
	TickStops     uint64
	TickStarts    uint64
	IdleSamples   uint64
	PeriodicTicks uint64
}

// Stats is an aggregated snapshot across the whole manager.
type Stats struct {
	Jiffies        uint64
	ForcedRestarts uint64
	CPUs           []CpuStats
}
