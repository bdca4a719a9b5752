// Package orchestrator drives one complete run: it constructs all five
// simulator cores behind a shared clock/rng/logger, starts them, feeds each
// a synthetic workload for the profile's duration, stops them, and reduces
// their stats into a Report. Grounded on the teacher's
// orchestrator.Orchestrator.Run — same context/timeout/signal shape and
// same parallel-fan-out-then-join pattern — retargeted from "collect from N
// independent procfs/BCC collectors" to "drive N interdependent-free
// simulator cores".
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/dmitriimaksimovdevelop/kernsim/internal/collab"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/congestion"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/cpuscheduler"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/model"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/observer"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/output"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/rcuengine"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/tickmanager"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/trafficshaper"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/workload"
)

// allComponents lists every driveable component in report order.
var allComponents = []string{"cpuscheduler", "rcuengine", "trafficshaper", "congestion", "tickmanager"}

// numCongestionFlows is how many independent congestion-controlled flows
// the orchestrator simulates per run.
const numCongestionFlows = 8

// RunConfig selects what Run builds and how long it drives it.
type RunConfig struct {
	Profile      string
	ScenarioFile string // path to a YAML file overriding the named profile's knobs
	Seed         int64
	Only         []string // component names to drive; empty/nil = all
	Quiet        bool
	Verbose      bool
}

// Orchestrator owns the progress logger used across one Run call.
type Orchestrator struct {
	config   RunConfig
	progress *output.Progress
}

// New creates an Orchestrator for the given config.
func New(cfg RunConfig) *Orchestrator {
	return &Orchestrator{
		config:   cfg,
		progress: output.NewProgress(!cfg.Quiet),
	}
}

// components bundles every constructed core, so Run can Start/Stop/snapshot
// them uniformly.
type components struct {
	scheduler  *cpuscheduler.Scheduler
	rcu        *rcuengine.Engine
	shaper     *trafficshaper.Shaper
	congestion []*congestion.Controller
	tick       *tickmanager.Manager
}

// Run constructs the active component set, drives synthetic workload into
// it for the profile's duration (or until SIGINT/SIGTERM), stops everything,
// and returns the reduced Report.
func (o *Orchestrator) Run(ctx context.Context) (*model.Report, error) {
	var profile WorkloadProfile
	if o.config.ScenarioFile != "" {
		var err error
		profile, err = LoadScenario(o.config.ScenarioFile, o.config.Profile)
		if err != nil {
			return nil, fmt.Errorf("load scenario: %w", err)
		}
	} else {
		profile = GetProfile(o.config.Profile)
	}
	active := o.activeSet()
	if len(active) == 0 {
		return nil, fmt.Errorf("no components selected")
	}

	seed := o.config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := collab.NewRng(seed)
	clock := collab.NewRealClock()
	level := collab.Info
	if o.config.Verbose {
		level = collab.Debug
	}
	logger := collab.NewLogger("kernsim", level)

	tracker := observer.NewTracker()
	goroutinesStart := runtime.NumGoroutine()
	tracker.SnapshotBefore()

	comps, err := buildComponents(active, profile, clock, rng, logger)
	if err != nil {
		return nil, fmt.Errorf("build components: %w", err)
	}

	if err := startComponents(active, comps); err != nil {
		return nil, fmt.Errorf("start components: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, profile.Duration)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			o.progress.Log("received %v, stopping run early", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	defer signal.Stop(sigCh)

	o.progress.Log("starting run: profile=%s duration=%s seed=%d components=%v",
		o.config.Profile, profile.Duration, seed, active)

	drivers := &workload.Drivers{
		Scheduler:  comps.scheduler,
		Rcu:        comps.rcu,
		Shaper:     comps.shaper,
		Congestion: comps.congestion,
		Tick:       comps.tick,
	}

	var wg sync.WaitGroup
	for _, name := range active {
		spec, ok := workload.Registry[name]
		if !ok {
			continue
		}
		wg.Add(1)
		go o.driveWorkload(ctx, &wg, spec, profile, rng, clock, drivers)
	}
	wg.Wait()

	stopComponents(active, comps)

	report := &model.Report{
		Metadata: model.Metadata{
			Tool:          "kernsim",
			Version:       "0.1.0",
			SchemaVersion: "1.0.0",
			RunID:         uuid.New().String(),
			Hostname:      hostname(),
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
			Duration:      profile.Duration.String(),
			Profile:       o.config.Profile,
			Seed:          seed,
			Components:    active,
			GoVersion:     runtime.Version(),
			NumGoroutine:  goroutinesStart,
		},
		Components: snapshotComponents(active, comps),
		Summary: model.Summary{
			Anomalies: []model.Anomaly{},
			Resources: map[string]model.USEMetric{},
		},
	}

	overhead := tracker.SnapshotAfter()
	report.Metadata.ObserverOverhead = &overhead

	report.Summary.Resources = model.ComputeUSEMetrics(report)
	report.Summary.Anomalies = model.DetectAnomalies(report)
	report.Summary.HealthScore = model.ComputeHealthScore(report.Summary.Resources, report.Summary.Anomalies)
	report.Summary.Recommendations = model.GenerateRecommendations(report)

	o.progress.Log("run complete: health=%d/100 anomalies=%d", report.Summary.HealthScore, len(report.Summary.Anomalies))
	return report, nil
}

// driveWorkload calls spec.Generate at a rate derived from its base
// intensity and the profile's per-component multiplier, applying every
// Submission against drivers until ctx is done.
func (o *Orchestrator) driveWorkload(ctx context.Context, wg *sync.WaitGroup, spec *workload.Spec, profile WorkloadProfile, rng collab.Rng, clock collab.Clock, drivers *workload.Drivers) {
	defer wg.Done()

	rate := spec.Intensity * profile.GetIntensity(spec.Component)
	if rate <= 0 {
		return
	}
	interval := time.Duration(float64(time.Second) / rate)
	if interval <= 0 {
		interval = time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			submission := spec.Generate(rng, clock)
			if err := submission.Apply(drivers); err != nil {
				o.progress.Log("  [%s] workload error: %v", submission.Component, err)
			}
		}
	}
}

// activeSet returns the components to drive, in canonical order, honoring
// Only as a filter when non-empty.
func (o *Orchestrator) activeSet() []string {
	if len(o.config.Only) == 0 {
		return append([]string{}, allComponents...)
	}
	only := make(map[string]bool, len(o.config.Only))
	for _, n := range o.config.Only {
		only[n] = true
	}
	var active []string
	for _, n := range allComponents {
		if only[n] {
			active = append(active, n)
		}
	}
	return active
}

func buildComponents(active []string, profile WorkloadProfile, clock collab.Clock, rng collab.Rng, logger *collab.Logger) (*components, error) {
	want := make(map[string]bool, len(active))
	for _, n := range active {
		want[n] = true
	}
	var comps components

	if want["cpuscheduler"] {
		s, err := cpuscheduler.New(cpuscheduler.Config{NumCPUs: profile.NumCPUs}, clock, rng, logger.With("cpuscheduler"))
		if err != nil {
			return nil, fmt.Errorf("cpuscheduler: %w", err)
		}
		comps.scheduler = s
	}

	if want["rcuengine"] {
		e, err := rcuengine.New(rcuengine.Config{NumCPUs: profile.NumCPUs}, clock, logger.With("rcuengine"))
		if err != nil {
			return nil, fmt.Errorf("rcuengine: %w", err)
		}
		comps.rcu = e
	}

	if want["trafficshaper"] {
		sh, err := trafficshaper.New(trafficshaper.Config{
			RootRate:         1e8,
			RootCeil:         2e8,
			EtfBandwidth:     1e8,
			EtfMaxQueueDepth: 1024,
			TickInterval:     trafficshaper.DefaultTickInterval,
		}, clock, logger.With("trafficshaper"))
		if err != nil {
			return nil, fmt.Errorf("trafficshaper: %w", err)
		}
		if _, err := sh.AddClass(0, 5e7, 1e8, trafficshaper.BestEffort); err != nil {
			return nil, fmt.Errorf("trafficshaper root class: %w", err)
		}
		comps.shaper = sh
	}

	if want["congestion"] {
		comps.congestion = make([]*congestion.Controller, numCongestionFlows)
		for i := range comps.congestion {
			algo := congestion.Cubic
			if i%2 == 1 {
				algo = congestion.Bic
			}
			comps.congestion[i] = congestion.New(algo)
		}
	}

	if want["tickmanager"] {
		m, err := tickmanager.New(tickmanager.Config{NumCPUs: profile.NumCPUs}, clock, logger.With("tickmanager"))
		if err != nil {
			return nil, fmt.Errorf("tickmanager: %w", err)
		}
		comps.tick = m
	}

	return &comps, nil
}

func startComponents(active []string, comps *components) error {
	for _, name := range active {
		var err error
		switch name {
		case "cpuscheduler":
			err = comps.scheduler.Start()
		case "rcuengine":
			err = comps.rcu.Start()
		case "trafficshaper":
			comps.shaper.Start()
		case "tickmanager":
			err = comps.tick.Start()
		}
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func stopComponents(active []string, comps *components) {
	for _, name := range active {
		switch name {
		case "cpuscheduler":
			comps.scheduler.Stop()
		case "rcuengine":
			comps.rcu.Stop()
		case "trafficshaper":
			comps.shaper.Stop()
		case "tickmanager":
			comps.tick.Stop()
		}
	}
}

func snapshotComponents(active []string, comps *components) map[string]model.Result {
	now := time.Now()
	results := make(map[string]model.Result, len(active))
	for _, name := range active {
		switch name {
		case "cpuscheduler":
			results[name] = model.Result{Component: name, EndTime: now, Stats: comps.scheduler.SnapshotStats()}
		case "rcuengine":
			results[name] = model.Result{Component: name, EndTime: now, Stats: comps.rcu.SnapshotStats()}
		case "trafficshaper":
			results[name] = model.Result{Component: name, EndTime: now, Stats: comps.shaper.SnapshotStats()}
		case "congestion":
			sts := make([]congestion.Stats, len(comps.congestion))
			for i, c := range comps.congestion {
				sts[i] = c.Snapshot()
			}
			results[name] = model.Result{Component: name, EndTime: now, Stats: sts}
		case "tickmanager":
			results[name] = model.Result{Component: name, EndTime: now, Stats: comps.tick.SnapshotStats()}
		}
	}
	return results
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}

// BuildReport is a one-call shorthand for New(cfg).Run(ctx); the CLI calls
// New(cfg).Run directly.
func BuildReport(ctx context.Context, cfg RunConfig) (*model.Report, error) {
	return New(cfg).Run(ctx)
}
