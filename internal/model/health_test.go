package model

import "testing"

func TestComputeHealthScorePerfectWhenEmpty(t *testing.T) {
	if score := ComputeHealthScore(nil, nil); score != 100 {
		t.Errorf("score = %d, want 100", score)
	}
}

func TestComputeHealthScoreDeductsForHighUtilization(t *testing.T) {
	resources := map[string]USEMetric{"cpuscheduler": {Utilization: 96}}
	score := ComputeHealthScore(resources, nil)
	if score >= 100 {
		t.Errorf("score = %d, want < 100 for 96%% utilization", score)
	}
}

func TestComputeHealthScoreDeductsForAnomalies(t *testing.T) {
	anomalies := []Anomaly{{Severity: "critical"}, {Severity: "warning"}}
	score := ComputeHealthScore(nil, anomalies)
	if score != 85 {
		t.Errorf("score = %d, want 85 (100 - 10 - 5)", score)
	}
}

func TestComputeHealthScoreNeverLeavesBounds(t *testing.T) {
	resources := map[string]USEMetric{
		"cpuscheduler": {Utilization: 100, Saturation: 100, Errors: 5000},
		"rcuengine":    {Utilization: 100, Saturation: 100, Errors: 5000},
	}
	anomalies := make([]Anomaly, 50)
	for i := range anomalies {
		anomalies[i] = Anomaly{Severity: "critical"}
	}
	if score := ComputeHealthScore(resources, anomalies); score < 0 || score > 100 {
		t.Fatalf("score = %d, want within [0,100]", score)
	}
}
