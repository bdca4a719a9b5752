package model

import (
	"testing"

	"github.com/dmitriimaksimovdevelop/kernsim/internal/tickmanager"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/trafficshaper"
)

func TestGenerateRecommendationsFlagsHtbDrops(t *testing.T) {
	report := &Report{Components: map[string]Result{
		"trafficshaper": {Stats: trafficshaper.Stats{
			Classes: []trafficshaper.HtbClassStats{{ID: 0, Drops: 3}},
		}},
	}}
	recs := GenerateRecommendations(report)
	found := false
	for _, r := range recs {
		if r.Component == "trafficshaper" && r.Title != "" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a trafficshaper recommendation, got %+v", recs)
	}
}

func TestGenerateRecommendationsEmptyWhenNothingWrong(t *testing.T) {
	report := &Report{Components: map[string]Result{
		"tickmanager": {Stats: tickmanager.Stats{ForcedRestarts: 0}},
	}}
	if recs := GenerateRecommendations(report); len(recs) != 0 {
		t.Errorf("expected no recommendations, got %+v", recs)
	}
}
