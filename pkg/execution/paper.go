// Copyright 2025 Certen Protocol

package execution

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/certen/sovereign-engine/pkg/event"
	"github.com/certen/sovereign-engine/pkg/journal"
	"github.com/certen/sovereign-engine/pkg/timeutil"
)

// PaperConfig tunes the paper broker's simulated fill model.
type PaperConfig struct {
	SlippageBps float64
	FeeRate     float64
	Platform    string
	Venue       string
}

// DefaultPaperConfig is the standing paper-trading assumption: 5bps of
// slippage against mid, a 6bps taker fee.
func DefaultPaperConfig() PaperConfig {
	return PaperConfig{SlippageBps: 5.0, FeeRate: 0.0006, Platform: "paper", Venue: "paper"}
}

// PaperFill is the result of a simulated market execution.
type PaperFill struct {
	OrderID     string
	PositionID  string
	Symbol      string
	Side        string // buy|sell
	FillPrice   float64
	FillSize    float64
	NotionalUSD float64
	FeeUSD      float64
}

// PaperBroker simulates immediate fills at mid price plus slippage and
// records orders through the journal. Idempotency is enforced by an
// in-memory map keyed by idempotency_key, rehydrated from the journal on
// construction so a restart mid-retry still returns the original fill
// instead of double-filling.
type PaperBroker struct {
	cfg     PaperConfig
	journal *journal.Store
	clock   timeutil.Clock

	mu      sync.Mutex
	byIdKey map[string]*PaperFill
}

// OpenPaperBroker constructs a PaperBroker, replaying the journal to
// recover prior fills keyed by idempotency key.
func OpenPaperBroker(ctx context.Context, cfg PaperConfig, store *journal.Store, clock timeutil.Clock) (*PaperBroker, error) {
	b := &PaperBroker{cfg: cfg, journal: store, clock: clock, byIdKey: make(map[string]*PaperFill)}

	submitted, err := store.QueryByType(ctx, event.TypeExecutionOrderSubmitted, 0)
	if err != nil {
		return nil, fmt.Errorf("execution: rehydrate paper broker submissions: %w", err)
	}
	filledByOrder := make(map[string]event.OrderFilledPayload)
	filled, err := store.QueryByType(ctx, event.TypeExecutionOrderFilled, 0)
	if err != nil {
		return nil, fmt.Errorf("execution: rehydrate paper broker fills: %w", err)
	}
	for _, env := range filled {
		var p event.OrderFilledPayload
		if err := env.DecodePayload(&p); err != nil {
			continue
		}
		filledByOrder[p.OrderID] = p
	}
	for _, env := range submitted {
		var s event.OrderSubmittedPayload
		if err := env.DecodePayload(&s); err != nil {
			continue
		}
		f, ok := filledByOrder[s.OrderID]
		if !ok {
			continue
		}
		b.byIdKey[s.IdempotencyKey] = &PaperFill{
			OrderID:     s.OrderID,
			PositionID:  s.PositionID,
			Symbol:      s.Symbol,
			Side:        s.Side,
			FillPrice:   f.FillPrice,
			FillSize:    f.FillSize,
			NotionalUSD: f.FillPrice * f.FillSize,
			FeeUSD:      f.FeeUSD,
		}
	}
	return b, nil
}

func (b *PaperBroker) fillPrice(mid float64, side string) float64 {
	slip := b.cfg.SlippageBps / 10_000.0
	if side == "buy" {
		return mid * (1.0 + slip)
	}
	return mid * (1.0 - slip)
}

// ExecuteMarket simulates an immediate market fill. Re-submitting the
// same idempotencyKey returns the original fill rather than filling
// twice.
func (b *PaperBroker) ExecuteMarket(ctx context.Context, symbol, direction string, notionalUSD, leverage, midPrice float64, idempotencyKey string) (*PaperFill, error) {
	direction = normalizeDirection(direction)
	if direction != "long" && direction != "short" {
		return nil, ErrInvalidDirection
	}
	if midPrice <= 0 {
		return nil, ErrInvalidMidPrice
	}
	if notionalUSD <= 0 {
		return nil, ErrInvalidNotional
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	idem := idempotencyKey
	if idem == "" {
		idem = uuid.New().String()
	}
	if existing, ok := b.byIdKey[idem]; ok {
		return existing, nil
	}

	side := "buy"
	if direction == "short" {
		side = "sell"
	}
	fillPrice := b.fillPrice(midPrice, side)
	qty := notionalUSD / fillPrice
	fee := abs(notionalUSD) * b.cfg.FeeRate

	fill := &PaperFill{
		OrderID:     uuid.New().String(),
		PositionID:  uuid.New().String(),
		Symbol:      symbol,
		Side:        side,
		FillPrice:   fillPrice,
		FillSize:    qty,
		NotionalUSD: notionalUSD,
		FeeUSD:      fee,
	}
	b.byIdKey[idem] = fill
	return fill, nil
}

func normalizeDirection(d string) string {
	switch d {
	case "long", "LONG", "Long":
		return "long"
	case "short", "SHORT", "Short":
		return "short"
	default:
		return d
	}
}
