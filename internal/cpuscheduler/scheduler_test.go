package cpuscheduler

import (
	"testing"
	"time"

	"github.com/dmitriimaksimovdevelop/kernsim/internal/collab"
)

func newTestScheduler(t *testing.T, numCPUs int) *Scheduler {
	t.Helper()
	s, err := New(Config{NumCPUs: numCPUs}, collab.NewRealClock(), collab.NewRng(1), collab.NewLogger("cpuscheduler", collab.Error))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestScheduleLeastLoaded(t *testing.T) {
	s := newTestScheduler(t, 4)

	for i := 0; i < 3; i++ {
		task := &Task{ID: uint64(i), Deadline: time.Hour}
		if err := s.Schedule(task); err != nil {
			t.Fatalf("Schedule() error = %v", err)
		}
	}

	// Each of the first 3 tasks should land on a distinct CPU (0,1,2) since
	// every CPU starts at queue length 0 and ties break on lowest id.
	seen := map[int]bool{}
	for _, g := range s.cpus {
		g.mu.Lock()
		if g.record.Queue.Len() > 0 {
			seen[g.record.ID] = true
		}
		g.mu.Unlock()
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 distinct CPUs populated, got %d", len(seen))
	}
}

func TestScheduleCapacityExceeded(t *testing.T) {
	s := newTestScheduler(t, 1)
	s.maxTasks = 2

	for i := 0; i < 2; i++ {
		if err := s.Schedule(&Task{ID: uint64(i), Deadline: time.Hour}); err != nil {
			t.Fatalf("Schedule() error = %v", err)
		}
	}
	err := s.Schedule(&Task{ID: 99, Deadline: time.Hour})
	if err == nil {
		t.Fatal("expected CapacityExceeded error, got nil")
	}
}

func TestLoadBalanceMovesOneTask(t *testing.T) {
	s := newTestScheduler(t, 4)

	// Pathological starting state: CPU 0 has 10 tasks, others 0.
	s.cpus[0].mu.Lock()
	for i := 0; i < 10; i++ {
		s.cpus[0].record.Queue.PushTail(&Task{ID: uint64(i), CPU: 0, Deadline: time.Hour})
	}
	s.cpus[0].mu.Unlock()
	s.taskCount = 10

	s.balanceOnce()

	if got := s.cpus[0].lockedLen(); got != 9 {
		t.Errorf("cpu 0 queue len = %d, want 9", got)
	}
	if got := s.cpus[1].lockedLen(); got != 1 {
		t.Errorf("cpu 1 queue len = %d, want 1", got)
	}
	if got := s.migrations.Load(); got != 1 {
		t.Errorf("migrations = %d, want 1", got)
	}
	if got := s.loadBalances.Load(); got != 1 {
		t.Errorf("loadBalances = %d, want 1", got)
	}
}

func TestLoadBalanceNoOpWhenBalanced(t *testing.T) {
	s := newTestScheduler(t, 2)
	s.cpus[0].record.Queue.PushTail(&Task{ID: 1, Deadline: time.Hour})
	s.cpus[1].record.Queue.PushTail(&Task{ID: 2, Deadline: time.Hour})

	s.balanceOnce()

	if got := s.migrations.Load(); got != 0 {
		t.Errorf("migrations = %d, want 0 (already balanced)", got)
	}
}

func TestStartStopJoinsWorkers(t *testing.T) {
	s := newTestScheduler(t, 2)
	s.cfg.WorkerSleep = func(time.Duration) {} // no real sleeping in the test
	task := &Task{ID: 1, Deadline: 2 * DefaultTimeslice}
	if err := s.Schedule(task); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	// Give workers a moment to retire the task deterministically via a
	// bounded wait loop rather than a fixed sleep.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if s.SnapshotStats().CompletedTasks >= 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	s.Stop()

	stats := s.SnapshotStats()
	if stats.CompletedTasks < 1 {
		t.Errorf("CompletedTasks = %d, want >= 1", stats.CompletedTasks)
	}
}

func TestTaskBecomesDeadOnlyAtOrPastDeadline(t *testing.T) {
	task := &Task{ID: 1, Timeslice: DefaultTimeslice, Deadline: DefaultTimeslice}
	task.Runtime += task.Timeslice
	if task.Runtime < task.Deadline {
		t.Fatalf("runtime %v should be >= deadline %v", task.Runtime, task.Deadline)
	}
}
