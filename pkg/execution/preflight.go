// Copyright 2025 Certen Protocol

package execution

import (
	"context"
	"fmt"

	"github.com/certen/sovereign-engine/pkg/config"
	"github.com/certen/sovereign-engine/pkg/killswitch"
)

// Preflight is the hard risk gate every intent passes through before
// sizing. Checks run in a fixed order — kill switch, daily loss,
// position size, leverage, and (live mode only) gas — and every failing
// check appends a reason rather than short-circuiting, so a caller sees
// the full rejection picture in one pass.
type Preflight struct {
	risk            config.Risk
	killSwitch      *killswitch.Switch
	gasRequirements []GasRequirement
}

// NewPreflight constructs a Preflight bound to the given risk limits,
// kill switch, and (optional) live-mode gas requirements.
func NewPreflight(risk config.Risk, ks *killswitch.Switch, gasRequirements []GasRequirement) *Preflight {
	return &Preflight{risk: risk, killSwitch: ks, gasRequirements: gasRequirements}
}

// Check runs the full preflight gate for intent under the given
// execution mode and returns an approval record. Rejection reasons use
// a fixed vocabulary: kill_switch, daily_loss_limit, position_size_limit,
// leverage_limit, insufficient_gas.
func (p *Preflight) Check(ctx context.Context, intent TradeIntent, mode string, params SubmitParams) PreflightResult {
	var reasons []string
	details := map[string]any{"mode": mode}

	level := p.killSwitch.Level()
	details["kill_switch_level"] = int(level)
	if !p.killSwitch.CanOpenNewPositions() {
		reasons = append(reasons, "kill_switch")
	}

	if p.risk.DailyLossLimitPct > 0 && params.EquityUSD > 0 {
		dailyLossPct := params.DailyLossUSD / params.EquityUSD
		details["daily_loss_pct"] = dailyLossPct
		if dailyLossPct >= p.risk.DailyLossLimitPct {
			reasons = append(reasons, "daily_loss_limit")
		}
	}

	if p.risk.MaxPositionPct > 0 && intent.SizePct > p.risk.MaxPositionPct {
		reasons = append(reasons, "position_size_limit")
	}

	if p.risk.MaxLeverage > 0 && intent.Leverage > p.risk.MaxLeverage {
		reasons = append(reasons, "leverage_limit")
	}

	if mode == "live" && len(p.gasRequirements) > 0 {
		gas := map[string]float64{}
		for _, req := range p.gasRequirements {
			have := params.GasBalances[GasKey{Venue: req.Venue, Asset: req.Asset}]
			gas[fmt.Sprintf("%s:%s", req.Venue, req.Asset)] = have
			if have+1e-12 < req.MinAmount {
				reasons = append(reasons, "insufficient_gas")
				break
			}
		}
		details["gas"] = gas
	}

	return PreflightResult{Approved: len(reasons) == 0, Reasons: reasons, Details: details}
}
