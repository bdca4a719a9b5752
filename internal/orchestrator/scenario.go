package orchestrator

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// scenarioFile is the on-disk shape of a --scenario override file: a base
// profile name plus whichever WorkloadProfile knobs the run should override.
// Mirrors the teacher's profile-override idiom (named preset plus optional
// per-field overrides) rather than requiring a fully-specified profile.
type scenarioFile struct {
	Profile   string             `yaml:"profile"`
	Duration  string             `yaml:"duration"`
	NumCPUs   int                `yaml:"num_cpus"`
	Intensity map[string]float64 `yaml:"intensity"`
}

// LoadScenario reads a YAML scenario file and merges its overrides onto the
// named base profile (or the file's own "profile" field if name is empty).
// Fields the file omits keep the base profile's value.
func LoadScenario(path, baseName string) (WorkloadProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WorkloadProfile{}, fmt.Errorf("read scenario file: %w", err)
	}

	var sf scenarioFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return WorkloadProfile{}, fmt.Errorf("parse scenario file: %w", err)
	}

	base := baseName
	if base == "" {
		base = sf.Profile
	}
	profile := GetProfile(base)

	if sf.Duration != "" {
		d, err := time.ParseDuration(sf.Duration)
		if err != nil {
			return WorkloadProfile{}, fmt.Errorf("scenario duration %q: %w", sf.Duration, err)
		}
		profile.Duration = d
	}
	if sf.NumCPUs > 0 {
		profile.NumCPUs = sf.NumCPUs
	}
	if len(sf.Intensity) > 0 {
		merged := make(map[string]float64, len(profile.Intensity)+len(sf.Intensity))
		for k, v := range profile.Intensity {
			merged[k] = v
		}
		for k, v := range sf.Intensity {
			merged[k] = v
		}
		profile.Intensity = merged
	}

	return profile, nil
}
