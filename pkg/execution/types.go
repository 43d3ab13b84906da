// Copyright 2025 Certen Protocol
//
// Package execution implements the hard risk gate, position sizer, paper
// broker, order management, P&L tracker, and karma funding engine that
// together turn a conviction-scored trade intent into a filled paper
// position. Every state-changing step appends to the journal; none of
// it maintains a parallel SQL ledger.
package execution

// TradeIntent is what the brain pipeline hands to the OMS: a proposed
// trade, not yet sized or risk-checked.
type TradeIntent struct {
	CycleID         string
	ConvictionID    string
	Symbol          string
	Direction       string // "long" | "short"
	SizePct         float64
	Leverage        float64
	ConvictionScore float64 // 0..100, matches brain.conviction.v1's PCS scale
	Regime          string
	Rationale       string
	StopLossPct     *float64
	TakeProfitPct   *float64
}

// GasRequirement is a minimum on-chain balance the live adapter needs to
// submit an order on a given venue/asset. Checked only in live mode.
type GasRequirement struct {
	Venue     string
	Asset     string
	MinAmount float64
}

// PreflightResult is the hard-gate verdict for one intent.
type PreflightResult struct {
	Approved bool
	Reasons  []string
	Details  map[string]any
}

// SubmitParams carries the market context Submit needs beyond the
// intent itself.
type SubmitParams struct {
	MidPrice         float64
	EquityUSD        float64
	DailyLossUSD     float64
	PortfolioHeatPct float64
	CorrToPortfolio  float64
	IdempotencyKey   string
	GasBalances      map[GasKey]float64
}

// GasKey identifies a (venue, asset) pair for a gas balance lookup.
type GasKey struct {
	Venue string
	Asset string
}

// OMSResult is the outcome of OMS.Submit.
type OMSResult struct {
	Status      string // "filled" | "rejected" | "error"
	Mode        string
	OrderID     string
	PositionID  string
	NotionalUSD float64
	Reasons     []string
}
