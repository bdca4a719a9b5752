// Package workload generates synthetic traffic for each simulator core,
// grounded on the teacher's executor.Registry/ToolSpec pattern: a
// map[string]*Spec keyed by component name, each carrying a BuildArgs-like
// closure. Where ToolSpec.BuildArgs(duration) built a BCC command line and
// ToolSpec.Parser(raw) turned its stdout into a model.Result, Spec.Generate
// builds one synthetic Submission and Apply feeds it straight into the
// already-running component — there is no subprocess or stdout to parse.
package workload

import (
	"time"

	"github.com/dmitriimaksimovdevelop/kernsim/internal/collab"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/congestion"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/cpuscheduler"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/rcuengine"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/tickmanager"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/trafficshaper"
)

// Drivers bundles the live component handles a Submission applies against.
// The orchestrator constructs one Drivers per run and passes it to every
// Spec.Generate's Submission.Apply call.
type Drivers struct {
	Scheduler   *cpuscheduler.Scheduler
	Rcu         *rcuengine.Engine
	Shaper      *trafficshaper.Shaper
	Congestion  []*congestion.Controller // one per simulated flow
	Tick        *tickmanager.Manager
}

// Submission is one unit of synthetic work ready to be applied.
type Submission struct {
	Component string
	Apply     func(d *Drivers) error
}

// Spec generates one Submission per invocation. Intensity scales how often
// the orchestrator's workload loop calls Generate per second (spec.md §9:
// "workload intensity" knob on the profile).
type Spec struct {
	Component string
	Intensity float64 // submissions per second at profile intensity 1.0
	Generate  func(rng collab.Rng, clock collab.Clock) Submission
}

// Registry maps component name to its workload generator.
var Registry = map[string]*Spec{
	"cpuscheduler": {
		Component: "cpuscheduler",
		Intensity: 20,
		Generate: func(rng collab.Rng, clock collab.Clock) Submission {
			kind := cpuscheduler.Kind(rng.Intn(3))
			timeslice := time.Duration(10+rng.Intn(90)) * time.Millisecond
			deadline := timeslice * time.Duration(1+rng.Intn(10))
			return Submission{
				Component: "cpuscheduler",
				Apply: func(d *Drivers) error {
					task := &cpuscheduler.Task{
						Kind:      kind,
						Priority:  rng.Intn(100),
						Timeslice: timeslice,
						Deadline:  deadline,
					}
					return d.Scheduler.Schedule(task)
				},
			}
		},
	},
	"rcuengine": {
		Component: "rcuengine",
		Intensity: 30,
		Generate: func(rng collab.Rng, clock collab.Clock) Submission {
			cpu := rng.Intn(tickmanager.MaxCPUs)
			useSegmented := rng.Intn(2) == 0
			return Submission{
				Component: "rcuengine",
				Apply: func(d *Drivers) error {
					if useSegmented {
						d.Rcu.EnqueueSegmented(func(any) {}, nil, "synthetic")
						return nil
					}
					return d.Rcu.EnqueuePerCPU(cpu, func(any) {}, nil)
				},
			}
		},
	},
	"trafficshaper": {
		Component: "trafficshaper",
		Intensity: 50,
		Generate: func(rng collab.Rng, clock collab.Clock) Submission {
			size := 64 + rng.Intn(1400)
			deadline := clock.NowMonotonic() + time.Duration(1+rng.Intn(5))*time.Millisecond
			pkt := &trafficshaper.EtfPacket{
				ID:       uint64(rng.NextU32()),
				Size:     size,
				Priority: rng.Intn(5),
				Arrival:  clock.NowMonotonic(),
				Deadline: deadline,
			}
			return Submission{
				Component: "trafficshaper",
				Apply: func(d *Drivers) error {
					return d.Shaper.EnqueuePacket(pkt)
				},
			}
		},
	},
	"congestion": {
		Component: "congestion",
		Intensity: 100,
		Generate: func(rng collab.Rng, clock collab.Clock) Submission {
			flow := rng.Intn(8)
			roll := rng.Float64()
			acked := uint32(1)
			rtt := time.Duration(20+rng.Intn(80)) * time.Millisecond
			event := congestion.Ack
			switch {
			case roll < 0.02:
				event = congestion.Timeout
			case roll < 0.08:
				event = congestion.Loss
			}
			return Submission{
				Component: "congestion",
				Apply: func(d *Drivers) error {
					if len(d.Congestion) == 0 {
						return nil
					}
					c := d.Congestion[flow%len(d.Congestion)]
					_, err := c.Update(event, acked, rtt)
					return err
				},
			}
		},
	},
	"tickmanager": {
		Component: "tickmanager",
		Intensity: 5,
		Generate: func(rng collab.Rng, clock collab.Clock) Submission {
			rawCPU := rng.Intn(tickmanager.MaxCPUs)
			action := rng.Intn(4)
			return Submission{
				Component: "tickmanager",
				Apply: func(d *Drivers) error {
					cpu := rawCPU % tickCPUCount(d)
					switch action {
					case 0:
						return d.Tick.SwitchToNohz(cpu)
					case 1:
						return d.Tick.StopTick(cpu)
					case 2:
						return d.Tick.StartTick(cpu)
					default:
						return d.Tick.SetRunState(cpu, tickmanager.RunState(rng.Intn(3)))
					}
				},
			}
		},
	},
}

// tickCPUCount reports how many CPUs d.Tick was configured with, so
// Submissions generated before Drivers existed can still pick a valid index.
func tickCPUCount(d *Drivers) int {
	st := d.Tick.SnapshotStats()
	if len(st.CPUs) == 0 {
		return 1
	}
	return len(st.CPUs)
}
