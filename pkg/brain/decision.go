// Copyright 2025 Certen Protocol

package brain

import (
	"strings"

	"github.com/certen/sovereign-engine/pkg/config"
	"github.com/certen/sovereign-engine/pkg/execution"
	"github.com/certen/sovereign-engine/pkg/killswitch"
)

// DecisionContext is what the decision policy reads to produce a trade
// intent (or not): PCS over regime over kill-switch level.
type DecisionContext struct {
	Symbol    string
	PCS       float64
	Regime    Regime
	KillLevel killswitch.Level
}

// DecisionPolicy is the swappable decision matrix. DefaultDecisionPolicy
// is deterministic and conservative; a future policy can be dropped in
// without touching the orchestrator.
type DecisionPolicy interface {
	Decide(ctx DecisionContext, risk config.Risk) *execution.TradeIntent
}

// DefaultDecisionPolicy is a small, deterministic sizing matrix. Above
// PCS 90 it flags requires_approval in the rationale rather than
// enforcing an approval gate structurally — approval workflow is a
// downstream concern of whoever consumes the trade intent.
type DefaultDecisionPolicy struct{}

func ptr(f float64) *float64 { return &f }

// Decide implements DecisionPolicy.
func (DefaultDecisionPolicy) Decide(ctx DecisionContext, risk config.Risk) *execution.TradeIntent {
	if ctx.KillLevel >= killswitch.Defensive {
		return nil
	}
	if ctx.Regime == RegimeCrisis {
		return nil
	}

	var direction string
	switch {
	case ctx.PCS >= 55.0:
		direction = "long"
	case ctx.PCS <= 45.0:
		direction = "short"
	default:
		direction = "long"
	}

	var sizePct, leverage float64
	var rationale string
	switch {
	case ctx.PCS >= 90.0:
		sizePct = 0.10
		leverage = minFloat(2.0, risk.MaxLeverage)
		rationale = "approval_required: high conviction over consensus"
	case ctx.PCS >= 75.0:
		sizePct = 0.05
		leverage = minFloat(2.0, risk.MaxLeverage)
		rationale = "enter: strong conviction"
	case ctx.PCS >= 60.0:
		sizePct = 0.02
		leverage = 1.0
		rationale = "enter: moderate conviction"
	default:
		return nil
	}

	if sizePct > risk.MaxPositionPct {
		sizePct = risk.MaxPositionPct
	}

	return &execution.TradeIntent{
		Symbol:          ctx.Symbol,
		Direction:       direction,
		SizePct:         sizePct,
		Leverage:        leverage,
		ConvictionScore: ctx.PCS,
		Regime:          string(ctx.Regime),
		Rationale:       rationale,
		StopLossPct:     ptr(0.05),
		TakeProfitPct:   ptr(0.10),
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// DecisionEngine wraps a DecisionPolicy with the risk limits it sizes
// against.
type DecisionEngine struct {
	risk   config.Risk
	policy DecisionPolicy
}

// NewDecisionEngine constructs a DecisionEngine with the default policy.
func NewDecisionEngine(risk config.Risk) *DecisionEngine {
	return &DecisionEngine{risk: risk, policy: DefaultDecisionPolicy{}}
}

// Decide runs the configured policy for one symbol.
func (e *DecisionEngine) Decide(symbol string, pcs float64, regime Regime, killLevel killswitch.Level) *execution.TradeIntent {
	ctx := DecisionContext{
		Symbol:    strings.ToUpper(symbol),
		PCS:       pcs,
		Regime:    regime,
		KillLevel: killLevel,
	}
	return e.policy.Decide(ctx, e.risk)
}
