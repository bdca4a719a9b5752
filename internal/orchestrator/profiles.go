package orchestrator

import "time"

// WorkloadProfile defines run duration, CPU count, and per-component
// workload intensity scaling. Direct generalization of the teacher's
// three-tier quick/standard/deep ProfileConfig: FocusDuration's per-area
// override becomes Intensity's per-component multiplier, since there is no
// "focus area" here, only a workload rate per component.
type WorkloadProfile struct {
	Duration  time.Duration
	NumCPUs   int
	Intensity map[string]float64 // component -> multiplier on workload.Spec.Intensity; default 1.0
}

// profiles contains the built-in profile presets.
var profiles = map[string]WorkloadProfile{
	"smoke": {
		Duration: 2 * time.Second,
		NumCPUs:  2,
	},
	"standard": {
		Duration: 10 * time.Second,
		NumCPUs:  4,
	},
	"soak": {
		Duration: 60 * time.Second,
		NumCPUs:  8,
		Intensity: map[string]float64{
			"congestion":    2.0,
			"trafficshaper": 1.5,
		},
	},
}

// GetProfile returns the profile config for the given name.
// Falls back to "standard" if unknown.
func GetProfile(name string) WorkloadProfile {
	if p, ok := profiles[name]; ok {
		return p
	}
	return profiles["standard"]
}

// ProfileNames returns available profile names.
func ProfileNames() []string {
	return []string{"smoke", "standard", "soak"}
}

// GetIntensity returns the effective intensity multiplier for a component,
// falling back to 1.0 when the profile doesn't override it.
func (p WorkloadProfile) GetIntensity(component string) float64 {
	if m, ok := p.Intensity[component]; ok {
		return m
	}
	return 1.0
}
