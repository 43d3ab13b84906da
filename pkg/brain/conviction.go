// Copyright 2025 Certen Protocol

package brain

import (
	"fmt"
	"sort"
	"time"

	"github.com/certen/sovereign-engine/pkg/canon"
	"github.com/certen/sovereign-engine/pkg/event"
)

// ConvictionScore is the network-facing conviction primitive: a
// commitment-hashed directional call. The commitment covers Symbol,
// Direction, Magnitude, Timeframe, PCS, CTS, Regime and DomainsUsed (see
// commitmentPayload); NodeID, Ts, Confidence and the hash itself are not
// part of it.
type ConvictionScore struct {
	NodeID         string
	Symbol         string
	Direction      string
	Magnitude      float64
	Timeframe      string
	Ts             time.Time
	CommitmentHash string
	PCS            float64
	CTS            float64
	Regime         string
	DomainsUsed    []string
	Confidence     float64
}

// ConvictionResult is the output of one conviction computation.
type ConvictionResult struct {
	Score           ConvictionScore
	PCS             float64
	CTS             float64
	FinalConviction float64
}

// counterThesisPenalties computes CTS, the devil's-advocate score: rule
// based and conservative, meant to catch high-confidence mistakes rather
// than to generate trades of its own.
func counterThesisPenalties(synth SynthesisResult, pcs float64, regime Regime) float64 {
	var penalties []float64

	if tech, ok := synth.Snapshot.Features[event.DomainTechnical]; ok {
		if rsi, ok := tech["rsi_14"]; ok && rsi >= 70.0 {
			penalties = append(penalties, 25.0)
		}
	}
	if tradfi, ok := synth.Snapshot.Features[event.DomainTradfi]; ok {
		if funding, ok := tradfi["funding_annualized"]; ok && funding >= 30.0 {
			penalties = append(penalties, 25.0)
		}
		if basis, ok := tradfi["basis_annualized"]; ok && basis >= 8.0 {
			penalties = append(penalties, 20.0)
		}
	}
	if regime == RegimeCrisis {
		penalties = append(penalties, 30.0)
	}

	var base float64
	for _, p := range penalties {
		base += p
	}
	if pcs > 75.0 && base > 0 {
		base += 10.0
	}

	if base < 0 {
		base = 0
	}
	if base > 100 {
		base = 100
	}
	return base
}

// commitmentPayload is the exact shape hashed into ConvictionScore's
// commitment — any field change here changes every future commitment.
type commitmentPayload struct {
	Symbol      string   `json:"symbol"`
	Direction   string   `json:"direction"`
	Magnitude   float64  `json:"magnitude"`
	Timeframe   string   `json:"timeframe"`
	PCSScore    float64  `json:"pcs_score"`
	CTSScore    float64  `json:"cts_score"`
	Regime      string   `json:"regime"`
	DomainsUsed []string `json:"domains_used"`
}

// ConvictionEngine turns a SynthesisResult + Regime into a conviction
// score: PCS (position conviction score, the weighted synthesis output
// rescaled to 0..100) counter-weighted by CTS (counter-thesis score),
// which only engages once PCS clears 75.
type ConvictionEngine struct {
	nodeID string
}

// NewConvictionEngine constructs a ConvictionEngine attributing every
// score it computes to nodeID.
func NewConvictionEngine(nodeID string) *ConvictionEngine {
	return &ConvictionEngine{nodeID: nodeID}
}

// Compute derives PCS, CTS, and the final conviction for one symbol/cycle.
func (e *ConvictionEngine) Compute(synth SynthesisResult, regime Regime, asOf time.Time, timeframe string) (ConvictionResult, error) {
	pcs := clampRange(synth.WeightedScore*100.0, 0, 100)

	var cts float64
	if pcs > 75.0 {
		cts = counterThesisPenalties(synth, pcs, regime)
	}

	final := clampRange(pcs*(1.0-cts/200.0), 0, 100)

	var direction string
	switch {
	case final >= 55.0:
		direction = "long"
	case final <= 45.0:
		direction = "short"
	default:
		direction = "neutral"
	}

	magnitude := clampRange(abs(final-50.0)/5.0, 0, 10)

	domainsUsed := make([]string, 0, len(synth.DomainScores))
	for d := range synth.DomainScores {
		domainsUsed = append(domainsUsed, string(d))
	}
	sort.Strings(domainsUsed)

	commitHash, err := canon.HashOf(commitmentPayload{
		Symbol:      synth.Snapshot.Symbol,
		Direction:   direction,
		Magnitude:   magnitude,
		Timeframe:   timeframe,
		PCSScore:    pcs,
		CTSScore:    cts,
		Regime:      string(regime),
		DomainsUsed: domainsUsed,
	})
	if err != nil {
		return ConvictionResult{}, fmt.Errorf("brain: commitment hash: %w", err)
	}

	confidence := clampRange(float64(len(synth.Snapshot.Features))/6.0, 0, 1)

	score := ConvictionScore{
		NodeID:         e.nodeID,
		Symbol:         synth.Snapshot.Symbol,
		Direction:      direction,
		Magnitude:      magnitude,
		Timeframe:      timeframe,
		Ts:             asOf,
		CommitmentHash: commitHash,
		PCS:            pcs,
		CTS:            cts,
		Regime:         string(regime),
		DomainsUsed:    domainsUsed,
		Confidence:     confidence,
	}

	return ConvictionResult{Score: score, PCS: pcs, CTS: cts, FinalConviction: final}, nil
}

func clampRange(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
