// Package diff compares two kernsim reports and highlights
// regressions/improvements. Direct port of the teacher's
// MetricChange/DiffReport shape, applied to simulator USE metrics and
// per-component health instead of procfs USE metrics and histograms.
package diff

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/dmitriimaksimovdevelop/kernsim/internal/model"
)

// DiffReport contains the comparison between two reports.
type DiffReport struct {
	Baseline     string         `json:"baseline"`
	Current      string         `json:"current"`
	Changes      []MetricChange `json:"changes"`
	Regressions  int            `json:"regressions"`
	Improvements int            `json:"improvements"`
	HealthDelta  int            `json:"health_delta"` // positive = improved
}

// MetricChange represents a single metric difference between reports.
type MetricChange struct {
	Component    string  `json:"component"`
	Metric       string  `json:"metric"`
	OldValue     float64 `json:"old_value"`
	NewValue     float64 `json:"new_value"`
	Delta        float64 `json:"delta"`
	DeltaPct     float64 `json:"delta_pct"`
	Direction    string  `json:"direction"`    // "regression", "improvement", "unchanged"
	Significance string  `json:"significance"` // "high", "medium", "low"
}

// LoadReport reads and parses a JSON report file.
func LoadReport(path string) (*model.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var report model.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &report, nil
}

// Compare computes differences between two reports.
func Compare(baseline, current *model.Report) *DiffReport {
	diff := &DiffReport{
		Baseline:    baseline.Metadata.Timestamp,
		Current:     current.Metadata.Timestamp,
		HealthDelta: current.Summary.HealthScore - baseline.Summary.HealthScore,
	}

	for component, newMetric := range current.Summary.Resources {
		oldMetric, ok := baseline.Summary.Resources[component]
		if !ok {
			continue
		}
		addChange(diff, component, "utilization_pct", oldMetric.Utilization, newMetric.Utilization, true)
		addChange(diff, component, "saturation_pct", oldMetric.Saturation, newMetric.Saturation, true)
		addChange(diff, component, "errors", float64(oldMetric.Errors), float64(newMetric.Errors), true)
	}

	for _, c := range diff.Changes {
		switch c.Direction {
		case "regression":
			diff.Regressions++
		case "improvement":
			diff.Improvements++
		}
	}

	return diff
}

func addChange(diff *DiffReport, component, metric string, oldVal, newVal float64, higherIsWorse bool) {
	delta := newVal - oldVal
	deltaPct := 0.0
	if oldVal != 0 {
		deltaPct = (delta / math.Abs(oldVal)) * 100
	}

	// Skip negligible changes.
	if math.Abs(deltaPct) < 1.0 && math.Abs(delta) < 0.1 {
		return
	}

	direction := "unchanged"
	if higherIsWorse {
		if deltaPct > 5 {
			direction = "regression"
		} else if deltaPct < -5 {
			direction = "improvement"
		}
	} else {
		if deltaPct < -5 {
			direction = "regression"
		} else if deltaPct > 5 {
			direction = "improvement"
		}
	}

	significance := "low"
	absPct := math.Abs(deltaPct)
	if absPct >= 50 {
		significance = "high"
	} else if absPct >= 20 {
		significance = "medium"
	}

	diff.Changes = append(diff.Changes, MetricChange{
		Component:    component,
		Metric:       metric,
		OldValue:     oldVal,
		NewValue:     newVal,
		Delta:        delta,
		DeltaPct:     deltaPct,
		Direction:    direction,
		Significance: significance,
	})
}

// FormatDiff returns a human-readable diff summary.
func FormatDiff(d *DiffReport) string {
	var sb strings.Builder

	sb.WriteString("=== Run Diff ===\n")
	sb.WriteString(fmt.Sprintf("Baseline: %s\n", d.Baseline))
	sb.WriteString(fmt.Sprintf("Current:  %s\n\n", d.Current))

	symbol := "→"
	if d.HealthDelta > 0 {
		symbol = "↑"
	} else if d.HealthDelta < 0 {
		symbol = "↓"
	}
	sb.WriteString(fmt.Sprintf("Health Score: %+d %s\n", d.HealthDelta, symbol))
	sb.WriteString(fmt.Sprintf("Regressions: %d, Improvements: %d\n\n", d.Regressions, d.Improvements))

	if d.Regressions > 0 {
		sb.WriteString("Regressions:\n")
		for _, c := range d.Changes {
			if c.Direction == "regression" {
				sb.WriteString(fmt.Sprintf("  [%s] %s/%s: %.2f -> %.2f (%+.1f%%)\n",
					strings.ToUpper(c.Significance), c.Component, c.Metric,
					c.OldValue, c.NewValue, c.DeltaPct))
			}
		}
		sb.WriteString("\n")
	}

	if d.Improvements > 0 {
		sb.WriteString("Improvements:\n")
		for _, c := range d.Changes {
			if c.Direction == "improvement" {
				sb.WriteString(fmt.Sprintf("  [%s] %s/%s: %.2f -> %.2f (%+.1f%%)\n",
					strings.ToUpper(c.Significance), c.Component, c.Metric,
					c.OldValue, c.NewValue, c.DeltaPct))
			}
		}
	}

	return sb.String()
}
