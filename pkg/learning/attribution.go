// Copyright 2025 Certen Protocol

package learning

import (
	"context"
	"fmt"
	"time"

	"github.com/certen/sovereign-engine/pkg/event"
	"github.com/certen/sovereign-engine/pkg/journal"
)

// Outcome is one closed position's outcome, attributed back to the
// domain scores that produced its originating conviction. DomainScores
// is nil when the join chain (position -> conviction -> synthesis)
// could not be completed — the position is excluded from weight
// adjustment but still counted as an observation.
type Outcome struct {
	PositionID     string
	ConvictionID   string
	Symbol         string
	OpenedAt       time.Time
	ClosedAt       time.Time
	RealizedPnL    float64
	TimeHeldHours  float64
	MaxDrawdownPct float64
	RegimeAtEntry  string
	DomainScores   map[string]float64
}

// DirectionCorrect reports whether the position ended net profitable,
// standing in for "the conviction's direction call was right".
func (o Outcome) DirectionCorrect() bool { return o.RealizedPnL > 0 }

type convictionRef struct {
	CycleID string
	Symbol  string
}

// ledger accumulates the journal state attribution needs in a single
// ascending pass: positions opened/closed/updated, and the
// conviction/synthesis events that let a closed position recover the
// domain scores live at the moment its conviction was computed.
type ledger struct {
	opened  map[string]*event.PositionOpenedPayload
	openTs  map[string]time.Time
	worst   map[string]float64 // position_id -> worst adverse excursion pct seen
	closed  []closedPosition
	convBy  map[string]convictionRef      // commitment hash -> cycle/symbol
	synthBy map[string]map[string]float64 // "cycle_id|symbol" -> domain scores
}

type closedPosition struct {
	payload  event.PositionClosedPayload
	closedAt time.Time
}

func newLedger() *ledger {
	return &ledger{
		opened:  make(map[string]*event.PositionOpenedPayload),
		openTs:  make(map[string]time.Time),
		worst:   make(map[string]float64),
		convBy:  make(map[string]convictionRef),
		synthBy: make(map[string]map[string]float64),
	}
}

func (l *ledger) apply(env *event.Envelope) error {
	switch env.Type {
	case event.TypeExecutionPositionOpened:
		var p event.PositionOpenedPayload
		if err := env.DecodePayload(&p); err != nil {
			return fmt.Errorf("decode position_opened: %w", err)
		}
		l.opened[p.PositionID] = &p
		l.openTs[p.PositionID] = env.Ts

	case event.TypeExecutionPositionClosed:
		var p event.PositionClosedPayload
		if err := env.DecodePayload(&p); err != nil {
			return fmt.Errorf("decode position_closed: %w", err)
		}
		l.closed = append(l.closed, closedPosition{payload: p, closedAt: env.Ts})

	case event.TypeExecutionPositionUpdated:
		var p event.PositionUpdatedPayload
		if err := env.DecodePayload(&p); err != nil {
			return fmt.Errorf("decode position_updated: %w", err)
		}
		opened, ok := l.opened[p.PositionID]
		if !ok || opened.EntryPrice == 0 || p.MarkPrice == 0 {
			return nil
		}
		adverse := adverseExcursionPct(opened, p.MarkPrice)
		if adverse > l.worst[p.PositionID] {
			l.worst[p.PositionID] = adverse
		}

	case event.TypeBrainConviction:
		var p event.BrainConvictionPayload
		if err := env.DecodePayload(&p); err != nil {
			return fmt.Errorf("decode brain.conviction: %w", err)
		}
		if p.CommitmentHash != "" {
			l.convBy[p.CommitmentHash] = convictionRef{CycleID: p.CycleID, Symbol: p.Symbol}
		}

	case event.TypeBrainSynthesis:
		var p event.BrainSynthesisPayload
		if err := env.DecodePayload(&p); err != nil {
			return fmt.Errorf("decode brain.synthesis: %w", err)
		}
		l.synthBy[synthKey(p.CycleID, p.Symbol)] = p.DomainScores
	}
	return nil
}

func synthKey(cycleID, symbol string) string { return cycleID + "|" + symbol }

// adverseExcursionPct returns how far mark price has moved against the
// position's direction, as a fraction of entry price (0 if favorable).
func adverseExcursionPct(opened *event.PositionOpenedPayload, markPrice float64) float64 {
	var moveAgainst float64
	switch opened.Direction {
	case "short":
		moveAgainst = markPrice - opened.EntryPrice
	default: // "long"
		moveAgainst = opened.EntryPrice - markPrice
	}
	if moveAgainst <= 0 {
		return 0
	}
	return moveAgainst / opened.EntryPrice
}

// BuildOutcomes replays the journal and returns every closed position's
// attributed outcome, plus the timestamp of the first-ever closed
// position (zero if there is none), used for cold-start gating.
func BuildOutcomes(ctx context.Context, store *journal.Store) ([]Outcome, time.Time, error) {
	l := newLedger()
	if err := store.IterateAscending(ctx, 0, l.apply); err != nil {
		return nil, time.Time{}, fmt.Errorf("learning: replay journal: %w", err)
	}

	var firstClosedAt time.Time
	outcomes := make([]Outcome, 0, len(l.closed))
	for _, c := range l.closed {
		if firstClosedAt.IsZero() || c.closedAt.Before(firstClosedAt) {
			firstClosedAt = c.closedAt
		}

		opened, ok := l.opened[c.payload.PositionID]
		if !ok {
			continue
		}

		outcome := Outcome{
			PositionID:     c.payload.PositionID,
			ConvictionID:   opened.ConvictionID,
			Symbol:         opened.Asset,
			OpenedAt:       l.openTs[c.payload.PositionID],
			ClosedAt:       c.closedAt,
			RealizedPnL:    c.payload.RealizedPnL,
			TimeHeldHours:  c.closedAt.Sub(l.openTs[c.payload.PositionID]).Hours(),
			MaxDrawdownPct: l.worst[c.payload.PositionID],
			RegimeAtEntry:  opened.RegimeAtEntry,
		}

		if opened.ConvictionID != "" {
			if ref, ok := l.convBy[opened.ConvictionID]; ok {
				if scores, ok := l.synthBy[synthKey(ref.CycleID, ref.Symbol)]; ok {
					outcome.DomainScores = scores
				}
			}
		}

		outcomes = append(outcomes, outcome)
	}

	return outcomes, firstClosedAt, nil
}
