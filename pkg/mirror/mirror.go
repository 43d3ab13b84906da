// Copyright 2025 Certen Protocol

package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/certen/sovereign-engine/pkg/event"
	"github.com/certen/sovereign-engine/pkg/journal"
	"github.com/certen/sovereign-engine/pkg/projections"
)

// Service mirrors a fixed set of dashboard-facing projections to
// Firestore: the engine's single kill switch level, the current open
// position book, and the latest conviction computed per symbol. It
// holds no state of its own beyond the Client — every Mirror* call
// reads the journal fresh via pkg/projections and writes a full
// snapshot document, so a missed write is self-healing on the next
// call rather than something that needs reconciling.
type Service struct {
	client *Client
}

// NewService builds a Service over an already-constructed Client. A
// disabled Client makes every Mirror* call a no-op.
func NewService(client *Client) *Service {
	return &Service{client: client}
}

// ConvictionSnapshot is the subset of a brain conviction computation
// worth surfacing on a dashboard. Kept independent of pkg/brain's
// richer ConvictionResult so this package never needs to import the
// brain pipeline just to mirror a handful of scalars.
type ConvictionSnapshot struct {
	CycleID    string
	Symbol     string
	Direction  string
	Magnitude  float64
	Regime     string
	PCS        float64
	CTS        float64
	Confidence float64
	Ts         time.Time
}

// MirrorKillSwitch writes the current kill switch level to
// /engine/killSwitch. Called after every killswitch.Switch transition.
func (s *Service) MirrorKillSwitch(ctx context.Context, state projections.KillSwitchState) {
	s.client.set(ctx, "engine/killSwitch", map[string]interface{}{
		"level":     state.Level,
		"reason":    state.Reason,
		"auto":      state.Auto,
		"actor":     state.Actor,
		"updatedAt": state.UpdatedAt,
	})
}

// MirrorOpenPositions writes the full open-position book to
// /engine/positions. Called after a position opens or closes.
func (s *Service) MirrorOpenPositions(ctx context.Context, positions []*event.PositionOpenedPayload) {
	docs := make([]map[string]interface{}, 0, len(positions))
	for _, p := range positions {
		docs = append(docs, map[string]interface{}{
			"positionId":    p.PositionID,
			"platform":      p.Platform,
			"asset":         p.Asset,
			"direction":     p.Direction,
			"entryPrice":    p.EntryPrice,
			"sizeNotional":  p.SizeNotional,
			"leverage":      p.Leverage,
			"convictionId":  p.ConvictionID,
			"regimeAtEntry": p.RegimeAtEntry,
		})
	}
	s.client.set(ctx, "engine/positions", map[string]interface{}{
		"positions": docs,
		"count":     len(docs),
		"updatedAt": time.Now().UTC(),
	})
}

// MirrorConviction writes the latest conviction computed for symbol to
// /engine/convictions/bySymbol/{symbol}. Called once per symbol at the end of
// every brain cycle.
func (s *Service) MirrorConviction(ctx context.Context, snap ConvictionSnapshot) {
	path := fmt.Sprintf("engine/convictions/bySymbol/%s", snap.Symbol)
	s.client.set(ctx, path, map[string]interface{}{
		"cycleId":    snap.CycleID,
		"symbol":     snap.Symbol,
		"direction":  snap.Direction,
		"magnitude":  snap.Magnitude,
		"regime":     snap.Regime,
		"pcs":        snap.PCS,
		"cts":        snap.CTS,
		"confidence": snap.Confidence,
		"ts":         snap.Ts,
	})
}

// RefreshFromJournal rebuilds the kill switch and open position
// projections from the journal and mirrors both in one pass. Intended
// to be called on a slow periodic cadence (e.g. once a minute) as a
// self-healing backstop alongside the event-driven Mirror* calls that
// fire right after each transition.
func (s *Service) RefreshFromJournal(ctx context.Context, store *journal.Store) error {
	ksState, err := projections.BuildKillSwitchState(ctx, store)
	if err != nil {
		return fmt.Errorf("mirror: rebuild kill switch state: %w", err)
	}
	s.MirrorKillSwitch(ctx, ksState)

	openIdx, err := projections.BuildOpenPositionIndex(ctx, store)
	if err != nil {
		return fmt.Errorf("mirror: rebuild open position index: %w", err)
	}
	s.MirrorOpenPositions(ctx, openIdx.Open())
	return nil
}

// Run periodically calls RefreshFromJournal until ctx is canceled,
// logging (not returning) any refresh error so a transient Firestore
// or database hiccup never tears down the whole mirror loop.
func (s *Service) Run(ctx context.Context, store *journal.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RefreshFromJournal(ctx, store); err != nil {
				s.client.logger.Printf("mirror: periodic refresh failed: %v", err)
			}
		}
	}
}
