// Copyright 2025 Certen Protocol
//
// Package projections builds pure, replay-derived views over the
// journal. Every view here is reconstructible at any time from
// journal.Store.IterateAscending — none of them is itself a source of
// truth.
package projections

import (
	"context"
	"encoding/json"
	"time"

	"github.com/certen/sovereign-engine/pkg/event"
	"github.com/certen/sovereign-engine/pkg/journal"
)

// LatestSignalIndex holds the most recent signal event per (event type,
// symbol), the shape synthesis scans to build a feature snapshot.
type LatestSignalIndex struct {
	bySymbolAndType map[string]map[event.Type]*event.Envelope
}

// NewLatestSignalIndex builds an empty index.
func NewLatestSignalIndex() *LatestSignalIndex {
	return &LatestSignalIndex{bySymbolAndType: make(map[string]map[event.Type]*event.Envelope)}
}

// Apply folds one envelope into the index, keeping it if it is newer
// than whatever is already indexed for its (symbol, type) slot.
func (idx *LatestSignalIndex) Apply(env *event.Envelope, symbol string) {
	if symbol == "" {
		return
	}
	if _, ok := event.DomainFor(env.Type); !ok {
		return
	}
	bySymbol, ok := idx.bySymbolAndType[symbol]
	if !ok {
		bySymbol = make(map[event.Type]*event.Envelope)
		idx.bySymbolAndType[symbol] = bySymbol
	}
	if existing, ok := bySymbol[env.Type]; !ok || env.Ts.After(existing.Ts) {
		bySymbol[env.Type] = env
	}
}

// Latest returns the most recent event of type t for symbol, if any.
func (idx *LatestSignalIndex) Latest(symbol string, t event.Type) (*event.Envelope, bool) {
	bySymbol, ok := idx.bySymbolAndType[symbol]
	if !ok {
		return nil, false
	}
	env, ok := bySymbol[t]
	return env, ok
}

// LatestForDomain returns the most recent event among every type that
// feeds the given domain, for symbol.
func (idx *LatestSignalIndex) LatestForDomain(symbol string, d event.Domain) (*event.Envelope, bool) {
	bySymbol, ok := idx.bySymbolAndType[symbol]
	if !ok {
		return nil, false
	}
	var best *event.Envelope
	for _, t := range event.EventTypesForDomain(d) {
		env, ok := bySymbol[t]
		if !ok {
			continue
		}
		if best == nil || env.Ts.After(best.Ts) {
			best = env
		}
	}
	return best, best != nil
}

// symbolFromPayload extracts the "symbol" field a signal payload carries,
// without needing to know its concrete struct type.
func symbolFromPayload(payload json.RawMessage) string {
	var probe struct {
		Symbol string `json:"symbol"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return probe.Symbol
}

// BuildLatestSignalIndex replays the journal and returns the latest
// per-(symbol,type) signal index as of now.
func BuildLatestSignalIndex(ctx context.Context, store *journal.Store) (*LatestSignalIndex, error) {
	idx := NewLatestSignalIndex()
	err := store.IterateAscending(ctx, 0, func(env *event.Envelope) error {
		if _, ok := event.DomainFor(env.Type); !ok {
			return nil
		}
		symbol := symbolFromPayload(env.Payload)
		idx.Apply(env, symbol)
		return nil
	})
	return idx, err
}

// KillSwitchState is the latest (level, reason) derived from the journal's
// system.kill_switch.v1 events, used to rehydrate the kill switch state
// machine on construction.
type KillSwitchState struct {
	Level     int
	Reason    string
	Auto      bool
	Actor     string
	UpdatedAt time.Time
	Found     bool
}

// BuildKillSwitchState replays the journal and returns the most recent
// kill-switch transition, or Found=false if none exists yet.
func BuildKillSwitchState(ctx context.Context, store *journal.Store) (KillSwitchState, error) {
	var state KillSwitchState
	err := store.IterateAscending(ctx, 0, func(env *event.Envelope) error {
		if env.Type != event.TypeSystemKillSwitch {
			return nil
		}
		var payload event.KillSwitchPayload
		if err := env.DecodePayload(&payload); err != nil {
			return err
		}
		state = KillSwitchState{
			Level:     payload.Level,
			Reason:    payload.Reason,
			Auto:      payload.Auto,
			Actor:     payload.Actor,
			UpdatedAt: env.Ts,
			Found:     true,
		}
		return nil
	})
	return state, err
}

// OpenPositionIndex tracks open positions derived from
// position_opened/position_closed events, keyed by position id.
type OpenPositionIndex struct {
	open map[string]*event.PositionOpenedPayload
}

// NewOpenPositionIndex builds an empty index.
func NewOpenPositionIndex() *OpenPositionIndex {
	return &OpenPositionIndex{open: make(map[string]*event.PositionOpenedPayload)}
}

// Apply folds one execution envelope into the index.
func (idx *OpenPositionIndex) Apply(env *event.Envelope) error {
	switch env.Type {
	case event.TypeExecutionPositionOpened:
		var p event.PositionOpenedPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		idx.open[p.PositionID] = &p
	case event.TypeExecutionPositionClosed:
		var p event.PositionClosedPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		delete(idx.open, p.PositionID)
	}
	return nil
}

// Open returns every currently open position.
func (idx *OpenPositionIndex) Open() []*event.PositionOpenedPayload {
	out := make([]*event.PositionOpenedPayload, 0, len(idx.open))
	for _, p := range idx.open {
		out = append(out, p)
	}
	return out
}

// BuildOpenPositionIndex replays the journal into an OpenPositionIndex.
func BuildOpenPositionIndex(ctx context.Context, store *journal.Store) (*OpenPositionIndex, error) {
	idx := NewOpenPositionIndex()
	err := store.IterateAscending(ctx, 0, func(env *event.Envelope) error {
		return idx.Apply(env)
	})
	return idx, err
}

// SumRealizedPnL replays every execution.position_closed.v1 event in the
// journal and returns the cumulative realized P&L across the book.
func SumRealizedPnL(ctx context.Context, store *journal.Store) (float64, error) {
	var total float64
	err := store.IterateAscending(ctx, 0, func(env *event.Envelope) error {
		if env.Type != event.TypeExecutionPositionClosed {
			return nil
		}
		var p event.PositionClosedPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		total += p.RealizedPnL
		return nil
	})
	return total, err
}
