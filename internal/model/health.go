package model

// ComputeHealthScore computes a 0-100 health score: 100 = healthy, 0 =
// critical. Based on USE methodology: deduct points for
// utilization/saturation/errors per component, plus flat deductions for
// detected anomalies.
func ComputeHealthScore(resources map[string]USEMetric, anomalies []Anomaly) int {
	score := 100

	for component, use := range resources {
		weight := resourceWeight(component)

		switch {
		case use.Utilization >= 95:
			score -= int(15 * weight)
		case use.Utilization >= 85:
			score -= int(8 * weight)
		case use.Utilization >= 70:
			score -= int(3 * weight)
		}

		switch {
		case use.Saturation > 50:
			score -= int(15 * weight)
		case use.Saturation > 10:
			score -= int(8 * weight)
		case use.Saturation > 1:
			score -= int(3 * weight)
		}

		switch {
		case use.Errors > 1000:
			score -= int(10 * weight)
		case use.Errors > 100:
			score -= int(5 * weight)
		case use.Errors > 0:
			score -= int(2 * weight)
		}
	}

	for _, a := range anomalies {
		switch a.Severity {
		case "critical":
			score -= 10
		case "warning":
			score -= 5
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// resourceWeight returns the importance weight for a component.
func resourceWeight(component string) float64 {
	switch component {
	case "cpuscheduler":
		return 1.5
	case "rcuengine":
		return 1.2
	case "trafficshaper":
		return 1.0
	case "congestion":
		return 1.0
	case "tickmanager":
		return 0.8
	default:
		return 0.5
	}
}
