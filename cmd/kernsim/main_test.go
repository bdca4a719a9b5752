package main

import (
	"strings"
	"testing"
	"time"

	"github.com/dmitriimaksimovdevelop/kernsim/internal/orchestrator"
)

func TestCLIProfileSetsCorrectDuration(t *testing.T) {
	tests := []struct {
		profile  string
		expected time.Duration
	}{
		{"smoke", 2 * time.Second},
		{"standard", 10 * time.Second},
		{"soak", 60 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.profile, func(t *testing.T) {
			p := orchestrator.GetProfile(tt.profile)
			if p.Duration != tt.expected {
				t.Errorf("profile %q duration = %v, want %v", tt.profile, p.Duration, tt.expected)
			}
		})
	}
}

// TestOnlyFlagParsing exercises the same comma-split-and-trim the run
// command's RunE applies to --only.
func TestOnlyFlagParsing(t *testing.T) {
	raw := "cpuscheduler, congestion ,tickmanager"
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	want := []string{"cpuscheduler", "congestion", "tickmanager"}
	if len(parts) != len(want) {
		t.Fatalf("parts = %v, want %v", parts, want)
	}
	for i := range want {
		if parts[i] != want[i] {
			t.Errorf("parts[%d] = %q, want %q", i, parts[i], want[i])
		}
	}
}
