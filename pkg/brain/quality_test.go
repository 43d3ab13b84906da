// Copyright 2025 Certen Protocol

package brain

import (
	"testing"
	"time"

	"github.com/certen/sovereign-engine/pkg/event"
)

func TestQualityFromStaleness_FreshIsPerfect(t *testing.T) {
	s := 2 * time.Minute
	q := qualityFromStaleness(&s, 15*time.Minute)
	if q != 1.0 {
		t.Fatalf("expected quality 1.0 within expected interval, got %v", q)
	}
}

func TestQualityFromStaleness_MissingIsZero(t *testing.T) {
	q := qualityFromStaleness(nil, 15*time.Minute)
	if q != 0.0 {
		t.Fatalf("expected quality 0 for missing staleness, got %v", q)
	}
}

func TestQualityFromStaleness_DecaysLinearlyThenFloors(t *testing.T) {
	expected := 15 * time.Minute
	mid := expected + (3*expected)/2 // halfway through the decay span
	q := qualityFromStaleness(&mid, expected)
	if q <= 0 || q >= 1 {
		t.Fatalf("expected partial decay in (0,1), got %v", q)
	}

	stale := 10 * expected
	q2 := qualityFromStaleness(&stale, expected)
	if q2 != 0 {
		t.Fatalf("expected quality to floor at 0 far past the decay span, got %v", q2)
	}
}

func TestDataQualityResult_AdjustedWeightsRenormalizes(t *testing.T) {
	r := DataQualityResult{
		PerDomainQuality: map[event.Domain]float64{
			event.DomainTechnical: 1.0,
			event.DomainTradfi:    0.0,
		},
	}
	base := map[event.Domain]float64{
		event.DomainTechnical: 0.5,
		event.DomainTradfi:    0.5,
	}
	adjusted := r.AdjustedWeights(base)
	if adjusted[event.DomainTechnical] != 1.0 {
		t.Fatalf("expected stale domain's weight to fully transfer, got technical=%v", adjusted[event.DomainTechnical])
	}
	if adjusted[event.DomainTradfi] != 0.0 {
		t.Fatalf("expected zero-quality domain to get zero weight, got %v", adjusted[event.DomainTradfi])
	}
}

func TestDataQualityResult_AdjustedWeightsFallsBackWhenAllStale(t *testing.T) {
	r := DataQualityResult{
		PerDomainQuality: map[event.Domain]float64{
			event.DomainTechnical: 0.0,
			event.DomainTradfi:    0.0,
		},
	}
	base := map[event.Domain]float64{
		event.DomainTechnical: 0.5,
		event.DomainTradfi:    0.5,
	}
	adjusted := r.AdjustedWeights(base)
	if adjusted[event.DomainTechnical] != 0.5 || adjusted[event.DomainTradfi] != 0.5 {
		t.Fatalf("expected fallback to base weights when total is zero, got %v", adjusted)
	}
}
