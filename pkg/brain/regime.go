// Copyright 2025 Certen Protocol

package brain

import (
	"time"

	"github.com/certen/sovereign-engine/pkg/event"
)

// Regime is one of the four market regimes the detector can name.
type Regime string

const (
	RegimeBull       Regime = "BULL"
	RegimeBear       Regime = "BEAR"
	RegimeCrisis     Regime = "CRISIS"
	RegimeTransition Regime = "TRANSITION"
)

// RegimeState is a regime call with the evidence that produced it.
type RegimeState struct {
	Regime   Regime
	Ts       time.Time
	Evidence map[string]float64
}

// RegimeResult is the outcome of one Detect call, including whether the
// regime changed from the previous call.
type RegimeResult struct {
	State    RegimeState
	Changed  bool
	Previous Regime
}

// RegimeDetector is a deterministic rule counter over a handful of BTC
// indicators pulled from whatever domains synthesis populated this
// cycle. Missing indicators just drop their vote rather than failing
// the detector — the observer is part of the system, but it never
// blocks on an incomplete one.
type RegimeDetector struct {
	last    Regime
	hasLast bool
}

// NewRegimeDetector constructs a RegimeDetector with no prior state.
func NewRegimeDetector() *RegimeDetector {
	return &RegimeDetector{}
}

// Detect runs the rule counter against the BTC feature snapshot (nil if
// unavailable this cycle) and returns the regime call.
func (d *RegimeDetector) Detect(asOf time.Time, btc *FeatureSnapshot) RegimeResult {
	evidence := map[string]float64{}

	if btc != nil {
		if tech, ok := btc.Features[event.DomainTechnical]; ok {
			if rsi, ok := tech["rsi_14"]; ok {
				evidence["btc_rsi"] = rsi
			}
		}
		if tradfi, ok := btc.Features[event.DomainTradfi]; ok {
			if funding, ok := tradfi["funding_annualized"]; ok {
				evidence["funding_annualized"] = funding
			}
			if basis, ok := tradfi["basis_annualized"]; ok {
				evidence["basis_annualized"] = basis
			}
		}
		if social, ok := btc.Features[event.DomainSocial]; ok {
			if fng, ok := social["fear_greed"]; ok {
				evidence["fear_greed"] = fng
			}
		}
	}

	funding, hasFunding := evidence["funding_annualized"]
	basis, hasBasis := evidence["basis_annualized"]
	rsi, hasRSI := evidence["btc_rsi"]
	fng, hasFNG := evidence["fear_greed"]

	var bull, bear, crisis int

	if hasFunding && funding > 5.0 && funding < 30.0 {
		bull++
	}
	if hasBasis && basis > 3.0 && basis < 8.0 {
		bull++
	}
	if hasRSI && rsi > 50.0 {
		bull++
	}
	if hasFNG && fng > 40.0 {
		bull++
	}

	if hasFunding && funding < 0.0 {
		bear++
	}
	if hasBasis && basis < 2.0 {
		bear++
	}
	if hasRSI && rsi < 30.0 {
		bear++
	}
	if hasFNG && fng < 25.0 {
		bear++
	}

	if hasFunding && funding < -10.0 {
		crisis++
	}
	if hasBasis && (basis > 8.0 || basis < 1.0) {
		crisis++
	}
	if hasFNG && fng < 15.0 {
		crisis++
	}

	var regime Regime
	switch {
	case crisis >= 2:
		regime = RegimeCrisis
	case bull >= 3:
		regime = RegimeBull
	case bear >= 3:
		regime = RegimeBear
	default:
		regime = RegimeTransition
	}

	prev := d.last
	changed := d.hasLast && prev != regime
	d.last = regime
	d.hasLast = true

	return RegimeResult{
		State:    RegimeState{Regime: regime, Ts: asOf, Evidence: evidence},
		Changed:  changed,
		Previous: prev,
	}
}
