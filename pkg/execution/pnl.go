// Copyright 2025 Certen Protocol

package execution

import (
	"context"
	"fmt"
	"sync"

	"github.com/certen/sovereign-engine/pkg/event"
	"github.com/certen/sovereign-engine/pkg/journal"
	"github.com/certen/sovereign-engine/pkg/projections"
)

// openPosition is the minimal state the P&L tracker needs to compute
// unrealized P&L and close a position deterministically.
type openPosition struct {
	Symbol    string
	Direction string
	Entry     float64
	Notional  float64
}

// PnLSnapshot summarizes realized and unrealized P&L across the book.
type PnLSnapshot struct {
	RealizedUSD   float64
	UnrealizedUSD float64
	TotalUSD      float64
}

// PnLTracker computes unrealized P&L for open positions and closes them
// deterministically. It holds the open-position book in memory,
// rehydrated from the journal on construction — positions is a
// projection, not a second source of truth.
type PnLTracker struct {
	journal *journal.Store

	mu   sync.Mutex
	open map[string]*openPosition
}

// OpenPnLTracker constructs a PnLTracker, rehydrating the open-position
// book from the journal.
func OpenPnLTracker(ctx context.Context, store *journal.Store) (*PnLTracker, error) {
	idx, err := projections.BuildOpenPositionIndex(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("execution: rehydrate pnl tracker: %w", err)
	}
	t := &PnLTracker{journal: store, open: make(map[string]*openPosition)}
	for _, p := range idx.Open() {
		t.open[p.PositionID] = &openPosition{Symbol: p.Asset, Direction: p.Direction, Entry: p.EntryPrice, Notional: p.SizeNotional}
	}
	return t, nil
}

// Track registers a newly opened position so UnrealizedUSD/Close/Snapshot
// can see it without a fresh journal replay.
func (t *PnLTracker) Track(positionID, symbol, direction string, entryPrice, notional float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open[positionID] = &openPosition{Symbol: symbol, Direction: direction, Entry: entryPrice, Notional: notional}
}

func (p *openPosition) qty() float64 {
	if p.Entry <= 0 {
		return 0
	}
	return p.Notional / p.Entry
}

// UnrealizedUSD returns the mark-to-market P&L of an open position, or
// ErrPositionNotFound if it isn't open.
func (t *PnLTracker) UnrealizedUSD(positionID string, markPrice float64) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.open[positionID]
	if !ok {
		return 0, ErrPositionNotFound
	}
	qty := p.qty()
	if p.Direction == "long" {
		return (markPrice - p.Entry) * qty, nil
	}
	return (p.Entry - markPrice) * qty, nil
}

// Close realizes a position's P&L at exitPrice, appends
// execution.position_closed.v1, and removes it from the open book.
// Closing an already-closed (or unknown) position fails — there is no
// implicit double-close.
func (t *PnLTracker) Close(ctx context.Context, positionID string, exitPrice float64) (float64, error) {
	t.mu.Lock()
	p, ok := t.open[positionID]
	if !ok {
		t.mu.Unlock()
		return 0, ErrPositionNotOpen
	}
	delete(t.open, positionID)
	t.mu.Unlock()

	qty := p.qty()
	var realized float64
	if p.Direction == "long" {
		realized = (exitPrice - p.Entry) * qty
	} else {
		realized = (p.Entry - exitPrice) * qty
	}

	_, err := t.journal.Append(ctx, event.DraftEvent{
		Type:   event.TypeExecutionPositionClosed,
		Source: "execution.pnl",
		Payload: event.PositionClosedPayload{
			PositionID:  positionID,
			ExitPrice:   exitPrice,
			RealizedPnL: realized,
			Status:      "closed",
		},
	})
	if err != nil {
		return 0, fmt.Errorf("execution: append position_closed: %w", err)
	}
	return realized, nil
}

// Snapshot computes a full realized+unrealized P&L snapshot. Realized
// P&L is summed by replaying every execution.position_closed.v1 event in
// the journal; unrealized uses the in-memory open book against
// currentPrices (symbols not present there are skipped).
func (t *PnLTracker) Snapshot(ctx context.Context, currentPrices map[string]float64) (PnLSnapshot, error) {
	realized, err := projections.SumRealizedPnL(ctx, t.journal)
	if err != nil {
		return PnLSnapshot{}, fmt.Errorf("execution: sum realized pnl: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	var unrealized float64
	for _, p := range t.open {
		mark, ok := currentPrices[p.Symbol]
		if !ok {
			continue
		}
		qty := p.qty()
		if p.Direction == "long" {
			unrealized += (mark - p.Entry) * qty
		} else {
			unrealized += (p.Entry - mark) * qty
		}
	}
	return PnLSnapshot{RealizedUSD: realized, UnrealizedUSD: unrealized, TotalUSD: realized + unrealized}, nil
}
