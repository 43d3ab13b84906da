// Copyright 2025 Certen Protocol
//
// Package learning closes the loop between conviction and outcome: it
// attributes each closed position back to the domain scores that
// produced its originating conviction, then nudges the synthesis
// weights toward whatever domains have actually been predictive,
// subject to cold-start gating, bounded deltas, and overfitting
// reversion. It never mutates config.Weights directly — it journals
// the decision and writes the learned_weights.yaml overlay that
// config.Load reads on the next process start.
package learning

import "time"

// Tunables fixed as constants rather than config — changing them
// changes the learned-weights contract other tooling reads.
const (
	// MinObservations is the minimum number of attributed closed
	// positions in the trailing window before a weight adjustment is
	// computed at all.
	MinObservations = 20

	// MaxWeightDelta bounds how far a single cycle can move one
	// domain's weight, in full-magnitude mode.
	MaxWeightDelta = 0.02
	// WarmUpWeightDelta is the half-magnitude delta used between day
	// 30 and day 90 since the first closed position.
	WarmUpWeightDelta = MaxWeightDelta / 2

	// MinDomainWeight and MaxDomainWeight bound every domain's weight
	// after adjustment and renormalization.
	MinDomainWeight = 0.05
	MaxDomainWeight = 0.40

	// ReversionThreshold is how many consecutive degrading cycles
	// trigger a revert to the preset weights.
	ReversionThreshold = 3

	// cold-start windows, measured from the first closed position.
	baselineWindow = 30 * 24 * time.Hour
	warmUpWindow   = 90 * 24 * time.Hour

	// attributionWindow is how far back closed positions are
	// considered for a weight-adjustment cycle.
	attributionWindow = 30 * 24 * time.Hour
)

// CycleType identifies how often a learning cycle runs; it is also the
// key learning_weights rows and learning.report.v1 events are grouped
// by for overfitting reversion.
type CycleType string

const (
	CycleDaily   CycleType = "daily"
	CycleWeekly  CycleType = "weekly"
	CycleMonthly CycleType = "monthly"
)

// coldStartStage classifies how much magnitude a cycle is allowed,
// based on how long ago the first-ever closed position happened.
type coldStartStage int

const (
	stageNoHistory coldStartStage = iota
	stageBaseline
	stageWarmUp
	stageFull
)

func (s coldStartStage) blocked() bool {
	return s == stageNoHistory || s == stageBaseline
}

func (s coldStartStage) reason() string {
	switch s {
	case stageNoHistory:
		return "cold_start_no_history"
	case stageBaseline:
		return "cold_start_baseline"
	default:
		return ""
	}
}

func (s coldStartStage) maxDelta() float64 {
	if s == stageWarmUp {
		return WarmUpWeightDelta
	}
	return MaxWeightDelta
}

// classifyColdStart derives the cold-start stage from the age of the
// first closed position relative to asOf. firstClosedAt.IsZero means no
// closed position has ever been attributed.
func classifyColdStart(firstClosedAt time.Time, asOf time.Time) coldStartStage {
	if firstClosedAt.IsZero() {
		return stageNoHistory
	}
	age := asOf.Sub(firstClosedAt)
	switch {
	case age < baselineWindow:
		return stageBaseline
	case age < warmUpWindow:
		return stageWarmUp
	default:
		return stageFull
	}
}
