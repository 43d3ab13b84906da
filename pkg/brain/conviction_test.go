// Copyright 2025 Certen Protocol

package brain

import (
	"testing"
	"time"

	"github.com/certen/sovereign-engine/pkg/event"
)

func TestConvictionEngine_HighPCSTriggersCounterThesis(t *testing.T) {
	e := NewConvictionEngine("node-1")
	synth := SynthesisResult{
		Snapshot: FeatureSnapshot{
			Symbol: "BTC-USD",
			Features: map[event.Domain]map[string]float64{
				event.DomainTechnical: {"rsi_14": 75},
			},
		},
		DomainScores:  map[event.Domain]float64{event.DomainTechnical: 0.95},
		WeightedScore: 0.95,
	}

	res, err := e.Compute(synth, RegimeBull, time.Now(), "4h")
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if res.PCS <= 75.0 {
		t.Fatalf("expected high PCS from weighted_score=0.95, got %v", res.PCS)
	}
	if res.CTS <= 0 {
		t.Fatal("expected counter-thesis to engage on overbought RSI above PCS 75")
	}
	if res.FinalConviction >= res.PCS {
		t.Fatalf("expected CTS to reduce final conviction below PCS: final=%v pcs=%v", res.FinalConviction, res.PCS)
	}
}

func TestConvictionEngine_LowPCSNeverTriggersCounterThesis(t *testing.T) {
	e := NewConvictionEngine("node-1")
	synth := SynthesisResult{
		Snapshot: FeatureSnapshot{
			Symbol:   "BTC-USD",
			Features: map[event.Domain]map[string]float64{},
		},
		DomainScores:  map[event.Domain]float64{},
		WeightedScore: 0.5,
	}

	res, err := e.Compute(synth, RegimeTransition, time.Now(), "4h")
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if res.CTS != 0 {
		t.Fatalf("expected CTS=0 below the PCS 75 gate, got %v", res.CTS)
	}
	if res.FinalConviction != res.PCS {
		t.Fatalf("expected final conviction to equal PCS with no counter-thesis, got final=%v pcs=%v", res.FinalConviction, res.PCS)
	}
}

func TestConvictionEngine_CommitmentHashIsDeterministic(t *testing.T) {
	e := NewConvictionEngine("node-1")
	synth := SynthesisResult{
		Snapshot:      FeatureSnapshot{Symbol: "BTC-USD"},
		DomainScores:  map[event.Domain]float64{event.DomainTechnical: 0.6},
		WeightedScore: 0.6,
	}
	ts := time.Now()

	a, err := e.Compute(synth, RegimeBull, ts, "4h")
	if err != nil {
		t.Fatalf("Compute a: %v", err)
	}
	b, err := e.Compute(synth, RegimeBull, ts, "4h")
	if err != nil {
		t.Fatalf("Compute b: %v", err)
	}
	if a.Score.CommitmentHash != b.Score.CommitmentHash {
		t.Fatal("expected identical inputs to produce identical commitment hashes")
	}
}
