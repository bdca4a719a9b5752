package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/dmitriimaksimovdevelop/kernsim/internal/collab"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/congestion"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/cpuscheduler"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/rcuengine"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/tickmanager"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/trafficshaper"
)

// smokeCfg returns a RunConfig short enough to finish quickly in tests.
func smokeCfg(only ...string) RunConfig {
	return RunConfig{
		Profile: "smoke",
		Seed:    1,
		Only:    only,
		Quiet:   true,
	}
}

func TestOrchestratorRunAllComponents(t *testing.T) {
	orch := New(smokeCfg())
	report, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Metadata.Tool != "kernsim" {
		t.Errorf("tool = %q, want kernsim", report.Metadata.Tool)
	}
	if len(report.Components) != 5 {
		t.Errorf("components = %d, want 5", len(report.Components))
	}
	for _, name := range allComponents {
		if _, ok := report.Components[name]; !ok {
			t.Errorf("missing component result for %q", name)
		}
	}
}

func TestOrchestratorRunOnlyFilter(t *testing.T) {
	orch := New(smokeCfg("cpuscheduler", "congestion"))
	report, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(report.Components) != 2 {
		t.Fatalf("components = %d, want 2", len(report.Components))
	}
	if _, ok := report.Components["cpuscheduler"]; !ok {
		t.Error("missing cpuscheduler result")
	}
	if _, ok := report.Components["congestion"]; !ok {
		t.Error("missing congestion result")
	}
	if _, ok := report.Components["rcuengine"]; ok {
		t.Error("rcuengine should have been filtered out")
	}
}

func TestOrchestratorRunNoComponentsErrors(t *testing.T) {
	cfg := smokeCfg()
	cfg.Only = []string{"nonexistent"}
	orch := New(cfg)
	if _, err := orch.Run(context.Background()); err == nil {
		t.Error("expected error for empty active set")
	}
}

func TestOrchestratorReportHasSummary(t *testing.T) {
	orch := New(smokeCfg())
	report, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Summary.Resources == nil {
		t.Error("summary should have Resources map")
	}
	if report.Summary.Anomalies == nil {
		t.Error("summary should have Anomalies slice")
	}
	if report.Summary.HealthScore < 0 || report.Summary.HealthScore > 100 {
		t.Errorf("health score = %d, want 0-100", report.Summary.HealthScore)
	}
}

func TestOrchestratorReportMetadata(t *testing.T) {
	orch := New(smokeCfg())
	report, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Metadata.SchemaVersion != "1.0.0" {
		t.Errorf("schema_version = %q, want 1.0.0", report.Metadata.SchemaVersion)
	}
	if report.Metadata.Profile != "smoke" {
		t.Errorf("profile = %q, want smoke", report.Metadata.Profile)
	}
	if report.Metadata.Seed != 1 {
		t.Errorf("seed = %d, want 1", report.Metadata.Seed)
	}
	if report.Metadata.RunID == "" {
		t.Error("run_id should not be empty")
	}
	if report.Metadata.Timestamp == "" {
		t.Error("timestamp should not be empty")
	}
	if report.Metadata.ObserverOverhead == nil {
		t.Error("report should include observer overhead")
	}
}

func TestOrchestratorDeterministicWithSameSeed(t *testing.T) {
	cfg := smokeCfg("congestion")
	r1, err := New(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run 1: %v", err)
	}
	r2, err := New(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run 2: %v", err)
	}

	sts1, ok1 := r1.Components["congestion"].Stats.([]congestion.Stats)
	sts2, ok2 := r2.Components["congestion"].Stats.([]congestion.Stats)
	if !ok1 || !ok2 {
		t.Fatal("congestion stats missing or wrong type")
	}
	if len(sts1) != len(sts2) {
		t.Fatalf("flow count mismatch: %d vs %d", len(sts1), len(sts2))
	}
	for i := range sts1 {
		if sts1[i].Cwnd != sts2[i].Cwnd {
			t.Errorf("flow %d cwnd diverged across identical-seed runs: %d vs %d", i, sts1[i].Cwnd, sts2[i].Cwnd)
		}
	}
}

func TestOrchestratorRunRespectsContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	cfg := RunConfig{Profile: "standard", Seed: 1, Quiet: true} // 10s profile duration
	start := time.Now()
	_, err := New(cfg).Run(ctx)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed > 2*time.Second {
		t.Errorf("Run should have stopped early on context cancel, took %v", elapsed)
	}
}

func TestActiveSetDefaultsToAll(t *testing.T) {
	orch := New(RunConfig{})
	got := orch.activeSet()
	if len(got) != len(allComponents) {
		t.Errorf("activeSet() = %v, want all %v", got, allComponents)
	}
}

func TestActiveSetFilters(t *testing.T) {
	orch := New(RunConfig{Only: []string{"tickmanager", "rcuengine"}})
	got := orch.activeSet()
	if len(got) != 2 {
		t.Fatalf("activeSet() = %v, want 2 entries", got)
	}
	// canonical order preserved: rcuengine before tickmanager
	if got[0] != "rcuengine" || got[1] != "tickmanager" {
		t.Errorf("activeSet() = %v, want [rcuengine tickmanager]", got)
	}
}

func TestBuildComponentsOnlyBuildsRequested(t *testing.T) {
	clock := collab.NewRealClock()
	rng := collab.NewRng(1)
	logger := collab.NewLogger("test", collab.Error)

	comps, err := buildComponents([]string{"cpuscheduler"}, GetProfile("smoke"), clock, rng, logger)
	if err != nil {
		t.Fatalf("buildComponents: %v", err)
	}
	if comps.scheduler == nil {
		t.Error("expected scheduler to be built")
	}
	if comps.rcu != nil || comps.shaper != nil || comps.tick != nil || comps.congestion != nil {
		t.Error("unrequested components should remain nil")
	}
}

func TestSnapshotComponentsTypesMatchModelExpectations(t *testing.T) {
	clock := collab.NewRealClock()
	rng := collab.NewRng(1)
	logger := collab.NewLogger("test", collab.Error)

	comps, err := buildComponents(allComponents, GetProfile("smoke"), clock, rng, logger)
	if err != nil {
		t.Fatalf("buildComponents: %v", err)
	}

	results := snapshotComponents(allComponents, comps)

	if _, ok := results["cpuscheduler"].Stats.(cpuscheduler.Stats); !ok {
		t.Error("cpuscheduler stats has wrong type")
	}
	if _, ok := results["rcuengine"].Stats.(rcuengine.Stats); !ok {
		t.Error("rcuengine stats has wrong type")
	}
	if _, ok := results["trafficshaper"].Stats.(trafficshaper.Stats); !ok {
		t.Error("trafficshaper stats has wrong type")
	}
	if _, ok := results["congestion"].Stats.([]congestion.Stats); !ok {
		t.Error("congestion stats has wrong type")
	}
	if _, ok := results["tickmanager"].Stats.(tickmanager.Stats); !ok {
		t.Error("tickmanager stats has wrong type")
	}
}
