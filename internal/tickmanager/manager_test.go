package tickmanager

import (
	"testing"
	"time"

	"github.com/dmitriimaksimovdevelop/kernsim/internal/collab"
)

func newTestManager(t *testing.T, numCPUs int) *Manager {
	t.Helper()
	m, err := New(Config{NumCPUs: numCPUs}, collab.NewRealClock(), collab.NewLogger("tickmanager", collab.Error))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m
}

// TestStopThenStartTickRoundTrips mirrors spec.md's round-trip law:
// stop_tick then start_tick on an active CPU must yield the same NOHZ mode
// and device state, with tick-stops+1 and tick-starts+1.
func TestStopThenStartTickRoundTrips(t *testing.T) {
	m := newTestManager(t, 1)
	if err := m.SwitchToNohz(0); err != nil {
		t.Fatalf("SwitchToNohz() error = %v", err)
	}
	before := m.SnapshotStats().CPUs[0]

	if err := m.StopTick(0); err != nil {
		t.Fatalf("StopTick() error = %v", err)
	}
	if err := m.StartTick(0); err != nil {
		t.Fatalf("StartTick() error = %v", err)
	}

	after := m.SnapshotStats().CPUs[0]
	if after.Device != before.Device {
		t.Errorf("device after round trip = %v, want %v", after.Device, before.Device)
	}
	if after.Nohz != before.Nohz {
		t.Errorf("nohz after round trip = %v, want %v", after.Nohz, before.Nohz)
	}
	if after.TickStops != before.TickStops+1 {
		t.Errorf("tickStops = %d, want %d", after.TickStops, before.TickStops+1)
	}
	if after.TickStarts != before.TickStarts+1 {
		t.Errorf("tickStarts = %d, want %d", after.TickStarts, before.TickStarts+1)
	}
}

func TestStopTickIsIdempotent(t *testing.T) {
	m := newTestManager(t, 1)
	m.StopTick(0)
	m.StopTick(0)
	st := m.SnapshotStats().CPUs[0]
	if st.TickStops != 1 {
		t.Errorf("tickStops = %d, want 1 (second StopTick must be a no-op)", st.TickStops)
	}
}

func TestSwitchToNohzOnlyEngagesOnce(t *testing.T) {
	m := newTestManager(t, 1)
	m.SwitchToNohz(0)
	m.StopTick(0)
	m.StartTick(0)
	// Switching again while already HighRes must not reset the device mode.
	m.SwitchToNohz(0)
	st := m.SnapshotStats().CPUs[0]
	if st.Nohz != NohzHighRes {
		t.Errorf("nohz = %v, want HighRes", st.Nohz)
	}
	if st.Device != OneShot {
		t.Errorf("device = %v, want OneShot (unchanged by redundant SwitchToNohz)", st.Device)
	}
}

func TestNewlyIdleInHighResAutoStopsTick(t *testing.T) {
	m := newTestManager(t, 1)
	m.SwitchToNohz(0)
	if err := m.SetRunState(0, NewlyIdle); err != nil {
		t.Fatalf("SetRunState() error = %v", err)
	}
	st := m.SnapshotStats().CPUs[0]
	if st.Device != Stopped {
		t.Errorf("device = %v, want Stopped (NewlyIdle while HighRes auto-stops tick)", st.Device)
	}
	if st.TickStops != 1 {
		t.Errorf("tickStops = %d, want 1", st.TickStops)
	}
}

func TestJiffiesAdvanceMonotonicallyUnderLoad(t *testing.T) {
	m := newTestManager(t, 2)
	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	var last uint64
	deadline := time.Now().Add(50 * time.Millisecond)
	for time.Now().Before(deadline) {
		cur := m.Jiffies()
		if cur < last {
			t.Fatalf("jiffies went backwards: %d -> %d", last, cur)
		}
		last = cur
		time.Sleep(time.Millisecond)
	}
	m.Stop()
	if last == 0 {
		t.Fatal("jiffies never advanced during a 50ms run")
	}
}

func TestLoadThreadForcesIdleCpuBackToActive(t *testing.T) {
	m := newTestManager(t, MaxIdleBalance+2)
	for i := 0; i < MaxIdleBalance+2; i++ {
		if err := m.SetRunState(i, Idle); err != nil {
			t.Fatalf("SetRunState(%d) error = %v", i, err)
		}
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if m.SnapshotStats().ForcedRestarts > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	m.Stop()

	st := m.SnapshotStats()
	if st.ForcedRestarts == 0 {
		t.Fatal("expected at least one forced restart when idle count exceeds MaxIdleBalance")
	}
	activeCount := 0
	for _, c := range st.CPUs {
		if c.Run == Active {
			activeCount++
		}
	}
	if activeCount == 0 {
		t.Error("expected at least one CPU forced back to Active")
	}
}

func TestSetRunStateRejectsUnknownCpu(t *testing.T) {
	m := newTestManager(t, 1)
	if err := m.SetRunState(5, Idle); err == nil {
		t.Fatal("expected InvalidArgument for out-of-range cpu id, got nil")
	}
}
