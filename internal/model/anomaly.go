package model

import (
	"fmt"

	"github.com/dmitriimaksimovdevelop/kernsim/internal/congestion"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/cpuscheduler"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/rcuengine"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/tickmanager"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/trafficshaper"
)

// Threshold defines one anomaly-detection rule.
type Threshold struct {
	Metric    string
	Component string
	Warning   float64
	Critical  float64
	Evaluator func(report *Report) (float64, bool)
	Message   func(value float64) string
}

// DefaultThresholds returns the built-in anomaly thresholds, one per
// component-specific failure mode worth surfacing in the summary.
func DefaultThresholds() []Threshold {
	return []Threshold{
		{
			Metric: "scheduler_capacity_drops", Component: "cpuscheduler",
			Warning: 1, Critical: 50,
			Evaluator: func(r *Report) (float64, bool) {
				res, ok := r.Components["cpuscheduler"]
				if !ok {
					return 0, false
				}
				st, ok := res.Stats.(cpuscheduler.Stats)
				if !ok {
					return 0, false
				}
				return float64(st.CapacityDrops), true
			},
			Message: func(v float64) string { return fmt.Sprintf("%.0f tasks rejected for CapacityExceeded", v) },
		},
		{
			Metric: "srcu_reader_saturation", Component: "rcuengine",
			Warning: 24, Critical: 32,
			Evaluator: func(r *Report) (float64, bool) {
				res, ok := r.Components["rcuengine"]
				if !ok {
					return 0, false
				}
				st, ok := res.Stats.(rcuengine.Stats)
				if !ok {
					return 0, false
				}
				return float64(st.Srcu.ActiveReaders), true
			},
			Message: func(v float64) string {
				return fmt.Sprintf("SRCU reader slots at %.0f/%d", v, rcuengine.MaxSrcuReaders)
			},
		},
		{
			Metric: "htb_drop_rate", Component: "trafficshaper",
			Warning: 1, Critical: 100,
			Evaluator: func(r *Report) (float64, bool) {
				res, ok := r.Components["trafficshaper"]
				if !ok {
					return 0, false
				}
				st, ok := res.Stats.(trafficshaper.Stats)
				if !ok {
					return 0, false
				}
				var drops uint64
				for _, c := range st.Classes {
					drops += c.Drops
				}
				return float64(drops), true
			},
			Message: func(v float64) string { return fmt.Sprintf("%.0f HTB packets dropped (buckets exhausted)", v) },
		},
		{
			Metric: "etf_deadline_misses", Component: "trafficshaper",
			Warning: 1, Critical: 50,
			Evaluator: func(r *Report) (float64, bool) {
				res, ok := r.Components["trafficshaper"]
				if !ok {
					return 0, false
				}
				st, ok := res.Stats.(trafficshaper.Stats)
				if !ok {
					return 0, false
				}
				return float64(st.Etf.DeadlineMiss), true
			},
			Message: func(v float64) string { return fmt.Sprintf("%.0f ETF packets missed their deadline", v) },
		},
		{
			Metric: "congestion_loss_rate", Component: "congestion",
			Warning: 5, Critical: 20,
			Evaluator: func(r *Report) (float64, bool) {
				res, ok := r.Components["congestion"]
				if !ok {
					return 0, false
				}
				sts, ok := res.Stats.([]congestion.Stats)
				if !ok || len(sts) == 0 {
					return 0, false
				}
				var losses uint64
				for _, s := range sts {
					losses += s.Losses
				}
				return float64(losses), true
			},
			Message: func(v float64) string { return fmt.Sprintf("%.0f total congestion LOSS events across connections", v) },
		},
		{
			Metric: "tick_forced_restarts", Component: "tickmanager",
			Warning: 1, Critical: 10,
			Evaluator: func(r *Report) (float64, bool) {
				res, ok := r.Components["tickmanager"]
				if !ok {
					return 0, false
				}
				st, ok := res.Stats.(tickmanager.Stats)
				if !ok {
					return 0, false
				}
				return float64(st.ForcedRestarts), true
			},
			Message: func(v float64) string {
				return fmt.Sprintf("%.0f CPUs forced out of idle by the load thread", v)
			},
		},
	}
}

// DetectAnomalies runs every threshold against the report.
func DetectAnomalies(report *Report) []Anomaly {
	var anomalies []Anomaly
	for _, threshold := range DefaultThresholds() {
		value, found := threshold.Evaluator(report)
		if !found {
			continue
		}
		var severity string
		switch {
		case value >= threshold.Critical:
			severity = "critical"
		case value >= threshold.Warning:
			severity = "warning"
		default:
			continue
		}
		anomalies = append(anomalies, Anomaly{
			Severity:  severity,
			Component: threshold.Component,
			Metric:    threshold.Metric,
			Message:   threshold.Message(value),
			Value:     fmt.Sprintf("%.2f", value),
			Threshold: fmt.Sprintf("warning=%.0f, critical=%.0f", threshold.Warning, threshold.Critical),
		})
	}
	return anomalies
}
