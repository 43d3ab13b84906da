// Copyright 2025 Certen Protocol
//
// Package killswitch implements the engine's single monotonic safety
// gate: a six-level state machine that only escalates under automatic
// evaluation and can only be lowered by an explicit manual reset.
package killswitch

import (
	"context"
	"fmt"

	"github.com/certen/sovereign-engine/pkg/config"
	"github.com/certen/sovereign-engine/pkg/event"
	"github.com/certen/sovereign-engine/pkg/journal"
	"github.com/certen/sovereign-engine/pkg/metrics"
	"github.com/certen/sovereign-engine/pkg/projections"
)

// Level is one of the six kill-switch states. Levels are ordered; an
// auto-evaluation can only move level upward.
type Level int

const (
	Safe      Level = 0
	Caution   Level = 1
	Defensive Level = 2
	Lockdown  Level = 3
	Emergency Level = 4
	Shutdown  Level = 5
)

// messages holds the human-readable reason attached to a transition
// when the caller does not supply a more specific one.
var messages = map[Level]string{
	Safe:      "normal operation",
	Caution:   "caution: reduce size, tighten stops",
	Defensive: "defensive: no new positions",
	Lockdown:  "lockdown: close non-core, halt new",
	Emergency: "emergency: close everything",
	Shutdown:  "shutdown",
}

func (l Level) String() string {
	switch l {
	case Safe:
		return "SAFE"
	case Caution:
		return "CAUTION"
	case Defensive:
		return "DEFENSIVE"
	case Lockdown:
		return "LOCKDOWN"
	case Emergency:
		return "EMERGENCY"
	case Shutdown:
		return "SHUTDOWN"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// Indicators are the numeric risk readings evaluate() compares against
// the configured thresholds. A nil pointer means "not measured this
// cycle" and the corresponding rule is skipped.
type Indicators struct {
	DailyLossPct     *float64
	PortfolioHeatPct *float64
	CrisisConditions *int
	MaxDrawdownPct   *float64
	ManualLevel      *Level
	Reason           string
}

// Decision describes a transition evaluate() decided to make. A nil
// Decision means no escalation was warranted.
type Decision struct {
	Level         Level
	PreviousLevel Level
	Reason        string
	Auto          bool
	Actor         string
}

// Switch is the kill switch state machine. It rehydrates its level from
// the journal on construction so a process restart never silently
// drops back to Safe.
type Switch struct {
	cfg     config.KillSwitch
	journal *journal.Store
	level   Level
	metrics *metrics.Registry
}

// SetMetrics attaches a metrics.Registry so the current level is
// reflected in its gauge on every transition. Optional.
func (s *Switch) SetMetrics(reg *metrics.Registry) {
	s.metrics = reg
	s.metrics.SetKillSwitchLevel(int(s.level))
}

// Open constructs a Switch, rehydrating its current level from the most
// recent system.kill_switch.v1 event in the journal, if any.
func Open(ctx context.Context, cfg config.KillSwitch, store *journal.Store) (*Switch, error) {
	s := &Switch{cfg: cfg, journal: store, level: Safe}
	state, err := projections.BuildKillSwitchState(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("killswitch: rehydrate: %w", err)
	}
	if state.Found {
		s.level = Level(state.Level)
	}
	return s, nil
}

// Level returns the current level.
func (s *Switch) Level() Level { return s.level }

// CanOpenNewPositions reports whether the engine may open new exposure.
func (s *Switch) CanOpenNewPositions() bool { return s.level < Defensive }

// CanTrade reports whether the engine may submit any order at all.
func (s *Switch) CanTrade() bool { return s.level < Shutdown }

// Evaluate compares ind against the configured thresholds and, if any
// rule (or a manual target) calls for a level higher than the current
// one, escalates and appends a system.kill_switch.v1 event. Auto rules
// are evaluated in ascending severity order; the final target is
// max(current, every triggered rule, manual target). Returns nil if no
// escalation occurred.
func (s *Switch) Evaluate(ctx context.Context, ind Indicators) (*Decision, error) {
	prev := s.level
	target := prev
	auto := true
	reason := ind.Reason

	if ind.ManualLevel != nil {
		target = maxLevel(target, *ind.ManualLevel)
		auto = false
		if reason == "" {
			reason = fmt.Sprintf("manual:%d", int(*ind.ManualLevel))
		}
	}

	if ind.DailyLossPct != nil && *ind.DailyLossPct >= s.cfg.L1DailyLossPct {
		target = maxLevel(target, Caution)
		if reason == "" {
			reason = fmt.Sprintf("daily_loss_pct=%.4f", *ind.DailyLossPct)
		}
	}
	if ind.PortfolioHeatPct != nil && *ind.PortfolioHeatPct >= s.cfg.L2PortfolioHeatPct {
		target = maxLevel(target, Defensive)
		if reason == "" {
			reason = fmt.Sprintf("portfolio_heat_pct=%.4f", *ind.PortfolioHeatPct)
		}
	}
	if ind.CrisisConditions != nil && float64(*ind.CrisisConditions) >= s.cfg.L3CrisisThreshold {
		target = maxLevel(target, Lockdown)
		if reason == "" {
			reason = fmt.Sprintf("crisis_conditions=%d", *ind.CrisisConditions)
		}
	}
	if ind.MaxDrawdownPct != nil && *ind.MaxDrawdownPct >= s.cfg.L4MaxDrawdownPct {
		target = maxLevel(target, Emergency)
		if reason == "" {
			reason = fmt.Sprintf("max_drawdown_pct=%.4f", *ind.MaxDrawdownPct)
		}
	}

	if target <= prev {
		return nil, nil
	}
	if reason == "" {
		reason = messages[target]
	}

	actor := "system"
	if !auto {
		actor = "operator"
	}
	dec := &Decision{Level: target, PreviousLevel: prev, Reason: reason, Auto: auto, Actor: actor}
	if err := s.transition(ctx, dec); err != nil {
		return nil, err
	}
	return dec, nil
}

// Reset manually lowers (or raises) the level to target, bypassing the
// monotonic auto-escalation rule. Unlike an auto escalation this is
// always attributed to the operator, and still appends a
// system.kill_switch.v1 event so the journal records the full history
// of the machine's level, not just its auto-escalations.
func (s *Switch) Reset(ctx context.Context, target Level, reason string) (*Decision, error) {
	prev := s.level
	if reason == "" {
		reason = fmt.Sprintf("reset:%s", target)
	}
	dec := &Decision{Level: target, PreviousLevel: prev, Reason: reason, Auto: false, Actor: "operator"}
	if err := s.transition(ctx, dec); err != nil {
		return nil, err
	}
	return dec, nil
}

func (s *Switch) transition(ctx context.Context, dec *Decision) error {
	payload := event.KillSwitchPayload{
		Level:         int(dec.Level),
		PreviousLevel: int(dec.PreviousLevel),
		Reason:        dec.Reason,
		Auto:          dec.Auto,
		Actor:         dec.Actor,
	}
	_, err := s.journal.Append(ctx, event.DraftEvent{
		Type:    event.TypeSystemKillSwitch,
		Source:  "brain.kill_switch",
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("killswitch: append transition: %w", err)
	}
	s.level = dec.Level
	s.metrics.SetKillSwitchLevel(int(s.level))
	return nil
}

func maxLevel(a, b Level) Level {
	if a > b {
		return a
	}
	return b
}
