// Copyright 2025 Certen Protocol

package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/certen/sovereign-engine/pkg/brain"
	"github.com/certen/sovereign-engine/pkg/execution"
	"github.com/certen/sovereign-engine/pkg/killswitch"
)

// Bar is one historical observation a Runner replays: a conviction
// score and regime the live brain pipeline would have computed at Ts,
// alongside the mid price the paper broker fills against.
type Bar struct {
	Ts        time.Time
	Mid       float64
	PCS       float64
	Regime    brain.Regime
	KillLevel killswitch.Level
}

// EquityPoint is one bar's mark-to-market equity and the exposure
// fraction that produced it.
type EquityPoint struct {
	Ts       time.Time
	Equity   float64
	Exposure float64
}

// TradeRecord is one simulated fill the Runner booked through the
// paper broker when its target exposure changed.
type TradeRecord struct {
	Ts          time.Time
	Direction   string
	NotionalUSD float64
	FillPrice   float64
	FeeUSD      float64
}

// RunResult is everything one Runner.Replay call produced.
type RunResult struct {
	Symbol      string
	EquityCurve []EquityPoint
	Trades      []TradeRecord
	Returns     []float64
}

// RunnerConfig parameterizes a single-asset replay.
type RunnerConfig struct {
	Symbol         string
	StartingEquity float64
}

// Runner replays a Bar series through the live decision policy. Unlike
// Simulate's fixed signal array, exposure here is whatever
// brain.DecisionEngine.Decide actually returns for each bar's PCS,
// regime, and kill-switch level — the same function the live brain
// orchestrator calls every cycle.
type Runner struct {
	cfg RunnerConfig
}

// NewRunner builds a Runner for one symbol.
func NewRunner(cfg RunnerConfig) *Runner {
	return &Runner{cfg: cfg}
}

// Replay drives bars through decision and books every exposure change
// as a simulated fill via broker, returning the resulting equity curve.
// broker is any already-open execution.PaperBroker — reused, not
// reimplemented, so a backtest fill is identical to a live paper fill.
func (r *Runner) Replay(ctx context.Context, broker *execution.PaperBroker, decision *brain.DecisionEngine, bars []Bar) (*RunResult, error) {
	equity := r.cfg.StartingEquity
	if equity <= 0 {
		equity = 100_000
	}

	var curve []EquityPoint
	var trades []TradeRecord
	var returns []float64

	prevExposure := 0.0
	prevMid := 0.0

	for i, bar := range bars {
		if bar.Mid <= 0 {
			return nil, fmt.Errorf("backtest: bar %d has non-positive mid price %.8f", i, bar.Mid)
		}

		if i > 0 && prevMid > 0 {
			barReturn := bar.Mid/prevMid - 1.0
			pnl := equity * prevExposure * barReturn
			equity += pnl
			returns = append(returns, prevExposure*barReturn)
		}

		intent := decision.Decide(r.cfg.Symbol, bar.PCS, bar.Regime, bar.KillLevel)
		exposure := 0.0
		direction := "long"
		if intent != nil {
			exposure = intent.SizePct * intent.Leverage
			direction = intent.Direction
			if direction == "short" {
				exposure = -exposure
			}
		}

		if exposure != prevExposure {
			delta := exposure - prevExposure
			notional := equity * abs(delta)
			if notional > 0 {
				side := "long"
				if delta < 0 {
					side = "short"
				}
				fill, err := broker.ExecuteMarket(ctx, r.cfg.Symbol, side, notional, 1.0, bar.Mid, "")
				if err != nil {
					return nil, fmt.Errorf("backtest: bar %d execute: %w", i, err)
				}
				equity -= fill.FeeUSD
				trades = append(trades, TradeRecord{
					Ts:          bar.Ts,
					Direction:   direction,
					NotionalUSD: notional,
					FillPrice:   fill.FillPrice,
					FeeUSD:      fill.FeeUSD,
				})
			}
		}

		curve = append(curve, EquityPoint{Ts: bar.Ts, Equity: equity, Exposure: exposure})
		prevExposure = exposure
		prevMid = bar.Mid
	}

	return &RunResult{
		Symbol:      r.cfg.Symbol,
		EquityCurve: curve,
		Trades:      trades,
		Returns:     returns,
	}, nil
}
