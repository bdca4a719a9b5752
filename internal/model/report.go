package model

import (
	"github.com/dmitriimaksimovdevelop/kernsim/internal/congestion"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/cpuscheduler"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/rcuengine"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/tickmanager"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/trafficshaper"
)

// ComputeUSEMetrics derives Utilization/Saturation/Errors for every
// component present in the report, type-switching on each Result's typed
// Stats snapshot.
func ComputeUSEMetrics(report *Report) map[string]USEMetric {
	resources := make(map[string]USEMetric)
	for name, res := range report.Components {
		switch st := res.Stats.(type) {
		case cpuscheduler.Stats:
			resources[name] = useFromScheduler(st)
		case rcuengine.Stats:
			resources[name] = useFromRcu(st)
		case trafficshaper.Stats:
			resources[name] = useFromShaper(st)
		case []congestion.Stats:
			resources[name] = useFromCongestion(st)
		case tickmanager.Stats:
			resources[name] = useFromTick(st)
		}
	}
	return resources
}

func useFromScheduler(st cpuscheduler.Stats) USEMetric {
	var busy, idle float64
	for i := range st.BusyTime {
		busy += st.BusyTime[i].Seconds()
		idle += st.IdleTime[i].Seconds()
	}
	util := 0.0
	if total := busy + idle; total > 0 {
		util = busy / total * 100
	}
	maxQ, minQ := 0, 0
	for i, q := range st.QueueLengths {
		if i == 0 || q > maxQ {
			maxQ = q
		}
		if i == 0 || q < minQ {
			minQ = q
		}
	}
	saturation := float64(maxQ - minQ)
	return USEMetric{Utilization: util, Saturation: saturation, Errors: int(st.CapacityDrops)}
}

func useFromRcu(st rcuengine.Stats) USEMetric {
	util := 0.0
	if st.List.Enqueued > 0 {
		util = float64(st.List.Processed) / float64(st.List.Enqueued) * 100
	}
	return USEMetric{
		Utilization: util,
		Saturation:  float64(st.Srcu.ActiveReaders),
		Errors:      int(st.List.Dropped),
	}
}

func useFromShaper(st trafficshaper.Stats) USEMetric {
	var sent, drops, overlimit uint64
	for _, c := range st.Classes {
		sent += c.BytesSent
		drops += c.Drops
		overlimit += c.Overlimit
	}
	util := 0.0
	if sent+drops > 0 {
		util = float64(sent) / float64(sent+drops) * 100
	}
	return USEMetric{
		Utilization: util,
		Saturation:  float64(st.Etf.QueueLen),
		Errors:      int(drops + st.Etf.DeadlineMiss + st.Etf.QueueOverflow),
	}
}

func useFromCongestion(sts []congestion.Stats) USEMetric {
	var sumCwnd float64
	var losses, timeouts uint64
	for _, s := range sts {
		sumCwnd += float64(s.Cwnd) / float64(congestion.MaxWindow) * 100
		losses += s.Losses
		timeouts += s.Timeouts
	}
	util := 0.0
	if len(sts) > 0 {
		util = sumCwnd / float64(len(sts))
	}
	return USEMetric{Utilization: util, Saturation: 0, Errors: int(losses + timeouts)}
}

func useFromTick(st tickmanager.Stats) USEMetric {
	idleCPUs := 0
	for _, c := range st.CPUs {
		if c.Run != tickmanager.Active {
			idleCPUs++
		}
	}
	saturation := 0.0
	if len(st.CPUs) > 0 {
		saturation = float64(idleCPUs) / float64(len(st.CPUs)) * 100
	}
	return USEMetric{Utilization: 100 - saturation, Saturation: float64(st.ForcedRestarts), Errors: 0}
}
