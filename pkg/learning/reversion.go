// Copyright 2025 Certen Protocol

package learning

import (
	"context"
	"fmt"

	"github.com/certen/sovereign-engine/pkg/event"
	"github.com/certen/sovereign-engine/pkg/journal"
)

// BuildReportSeries replays every learning.report.v1 event for
// cycleType and returns their AvgRealizedPnL values in journal order
// (oldest first) — the rolling performance series overfitting reversion
// evaluates. There is no separate performance file: the journal is
// already the append-only record, so the series is always whatever a
// fresh replay recomputes.
func BuildReportSeries(ctx context.Context, store *journal.Store, cycleType CycleType) ([]float64, error) {
	var series []float64
	err := store.IterateAscending(ctx, 0, func(env *event.Envelope) error {
		if env.Type != event.TypeLearningReport {
			return nil
		}
		var p event.LearningReportPayload
		if err := env.DecodePayload(&p); err != nil {
			return fmt.Errorf("decode learning.report: %w", err)
		}
		if p.CycleType != string(cycleType) {
			return nil
		}
		series = append(series, p.AvgRealizedPnL)
		return nil
	})
	return series, err
}

// shouldRevert reports whether the last ReversionThreshold entries of
// series (which must end with the current cycle's average) each
// strictly degraded relative to the entry before it. A short series
// (fewer than ReversionThreshold+1 points) never reverts — there isn't
// enough history yet to call it a trend.
func shouldRevert(series []float64) bool {
	need := ReversionThreshold + 1
	if len(series) < need {
		return false
	}
	tail := series[len(series)-need:]
	for i := 1; i < len(tail); i++ {
		if tail[i] >= tail[i-1] {
			return false
		}
	}
	return true
}
