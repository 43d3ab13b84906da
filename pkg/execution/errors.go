// Copyright 2025 Certen Protocol

package execution

import "errors"

// Sentinel errors surfaced by the execution layer.
var (
	ErrInvalidDirection  = errors.New("execution: direction must be long or short")
	ErrInvalidMidPrice   = errors.New("execution: mid_price must be > 0")
	ErrInvalidNotional   = errors.New("execution: notional_usd must be > 0")
	ErrPositionNotFound  = errors.New("execution: position not found")
	ErrPositionNotOpen   = errors.New("execution: position not open")
	ErrGovernanceBlocked = errors.New("execution: karma settlement blocked by governance")
)
