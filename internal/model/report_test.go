package model

import (
	"testing"
	"time"

	"github.com/dmitriimaksimovdevelop/kernsim/internal/cpuscheduler"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/rcuengine"
)

func TestComputeUSEMetricsSchedulerUtilization(t *testing.T) {
	report := &Report{Components: map[string]Result{
		"cpuscheduler": {Stats: cpuscheduler.Stats{
			BusyTime:     []time.Duration{8 * time.Second, 8 * time.Second},
			IdleTime:     []time.Duration{2 * time.Second, 2 * time.Second},
			QueueLengths: []int{5, 1},
		}},
	}}
	resources := ComputeUSEMetrics(report)
	use, ok := resources["cpuscheduler"]
	if !ok {
		t.Fatal("expected a cpuscheduler USE entry")
	}
	if use.Utilization != 80 {
		t.Errorf("utilization = %v, want 80 (16s busy / 20s total)", use.Utilization)
	}
	if use.Saturation != 4 {
		t.Errorf("saturation = %v, want 4 (max queue 5 - min queue 1)", use.Saturation)
	}
}

func TestComputeUSEMetricsRcuUsesListCounters(t *testing.T) {
	report := &Report{Components: map[string]Result{
		"rcuengine": {Stats: rcuengine.Stats{
			List: rcuengine.ListStats{Enqueued: 100, Processed: 80, Dropped: 5},
			Srcu: rcuengine.SrcuStats{ActiveReaders: 3},
		}},
	}}
	use := ComputeUSEMetrics(report)["rcuengine"]
	if use.Utilization != 80 {
		t.Errorf("utilization = %v, want 80", use.Utilization)
	}
	if use.Saturation != 3 {
		t.Errorf("saturation = %v, want 3", use.Saturation)
	}
	if use.Errors != 5 {
		t.Errorf("errors = %d, want 5", use.Errors)
	}
}

func TestComputeUSEMetricsSkipsUnknownComponents(t *testing.T) {
	report := &Report{Components: map[string]Result{
		"mystery": {Stats: "not a known stats type"},
	}}
	if resources := ComputeUSEMetrics(report); len(resources) != 0 {
		t.Errorf("expected no USE entries for an unrecognized stats type, got %v", resources)
	}
}
