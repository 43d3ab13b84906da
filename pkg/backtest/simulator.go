// Copyright 2025 Certen Protocol
//
// Package backtest implements a single-asset deterministic replay
// harness: a pure bar/signal simulator for quick strategy sweeps
// (Simulate), and a Runner that drives the exact live decision path —
// brain.DecisionEngine.Decide feeding execution.PaperBroker.ExecuteMarket
// — over a slice of historical inputs, so nothing about sizing or fill
// simulation is ever reimplemented for backtesting.
package backtest

// SimConfig tunes the pure bar/signal simulator.
type SimConfig struct {
	// FeeBps is the fee charged per unit of turnover (position-fraction
	// change), in basis points of notional.
	FeeBps float64
}

// DefaultSimConfig matches the 10bps assumption the signal-only
// simulator uses.
func DefaultSimConfig() SimConfig {
	return SimConfig{FeeBps: 10.0}
}

// SimResult is the bar-by-bar output of Simulate.
type SimResult struct {
	Equity   []float64
	Returns  []float64
	Position []float64
	Fees     []float64
}

// Simulate replays a fixed position-fraction signal (each entry in
// [-1, 1]) against a close-price series: no leverage, no funding, fixed
// bps fees on turnover. It is intentionally minimal — correct enough to
// sanity-check a synthesis weighting or a conviction threshold over a
// price history without needing the full Runner/PaperBroker path below.
func Simulate(close []float64, signal []float64, cfg SimConfig) (SimResult, error) {
	if len(close) != len(signal) {
		return SimResult{}, errLengthMismatch
	}
	n := len(close)
	if n == 0 {
		return SimResult{Equity: []float64{}, Returns: []float64{}, Position: []float64{}, Fees: []float64{}}, nil
	}

	pos := make([]float64, n)
	for i, s := range signal {
		pos[i] = clip(s, -1.0, 1.0)
	}

	ret := make([]float64, n)
	for i := 1; i < n; i++ {
		if close[i-1] != 0 {
			ret[i] = close[i]/close[i-1] - 1.0
		}
	}

	fees := make([]float64, n)
	feeRate := cfg.FeeBps / 10_000.0
	prev := pos[0]
	for i := 0; i < n; i++ {
		turnover := abs(pos[i] - prev)
		fees[i] = turnover * feeRate
		prev = pos[i]
	}

	stratRet := make([]float64, n)
	for i := range stratRet {
		stratRet[i] = pos[i]*ret[i] - fees[i]
	}

	equity := make([]float64, n)
	equity[0] = 1.0
	for i := 1; i < n; i++ {
		equity[i] = equity[i-1] * (1.0 + stratRet[i])
	}

	return SimResult{Equity: equity, Returns: stratRet, Position: pos, Fees: fees}, nil
}

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
