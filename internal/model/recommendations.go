package model

import (
	"fmt"

	"github.com/dmitriimaksimovdevelop/kernsim/internal/cpuscheduler"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/tickmanager"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/trafficshaper"
)

// GenerateRecommendations produces actionable config-tuning suggestions
// from the report's component stats and detected anomalies.
func GenerateRecommendations(report *Report) []Recommendation {
	var recs []Recommendation
	priority := 1

	if res, ok := report.Components["cpuscheduler"]; ok {
		if st, ok := res.Stats.(cpuscheduler.Stats); ok {
			maxQ, minQ := 0, 0
			for i, q := range st.QueueLengths {
				if i == 0 || q > maxQ {
					maxQ = q
				}
				if i == 0 || q < minQ {
					minQ = q
				}
			}
			if maxQ-minQ > 2 {
				recs = append(recs, Recommendation{
					Priority: priority, Component: "cpuscheduler",
					Title:          "Shorten the load-balance interval",
					ExpectedImpact: "Reduce steady-state queue-length skew across CPUs",
					Evidence:       fmt.Sprintf("max_queue=%d min_queue=%d migrations=%d", maxQ, minQ, st.Migrations),
				})
				priority++
			}
		}
	}

	if res, ok := report.Components["trafficshaper"]; ok {
		if st, ok := res.Stats.(trafficshaper.Stats); ok {
			var drops uint64
			for _, c := range st.Classes {
				drops += c.Drops
			}
			if drops > 0 {
				recs = append(recs, Recommendation{
					Priority: priority, Component: "trafficshaper",
					Title:          "Raise HTB ceil or lower offered load on saturated classes",
					ExpectedImpact: "Eliminate token-bucket drops under the current traffic mix",
					Evidence:       fmt.Sprintf("total_drops=%d", drops),
				})
				priority++
			}
			if st.Etf.DeadlineMiss > 0 {
				recs = append(recs, Recommendation{
					Priority: priority, Component: "trafficshaper",
					Title:          "Increase ETF bandwidth or tighten admitted deadlines",
					ExpectedImpact: "Reduce packets dequeued past their deadline",
					Evidence:       fmt.Sprintf("deadline_misses=%d", st.Etf.DeadlineMiss),
				})
				priority++
			}
		}
	}

	if res, ok := report.Components["tickmanager"]; ok {
		if st, ok := res.Stats.(tickmanager.Stats); ok && st.ForcedRestarts > 0 {
			recs = append(recs, Recommendation{
				Priority: priority, Component: "tickmanager",
				Title:          "Raise MAX_IDLE_BALANCE or investigate why CPUs pile up idle",
				ExpectedImpact: "Fewer forced tick restarts, more time spent in NOHZ",
				Evidence:       fmt.Sprintf("forced_restarts=%d", st.ForcedRestarts),
			})
			priority++
		}
	}

	return recs
}
