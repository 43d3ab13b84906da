// Copyright 2025 Certen Protocol

package learning

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/certen/sovereign-engine/pkg/config"
	"github.com/certen/sovereign-engine/pkg/database"
	"github.com/certen/sovereign-engine/pkg/event"
	"github.com/certen/sovereign-engine/pkg/journal"
	"github.com/certen/sovereign-engine/pkg/timeutil"
)

// Report is what one RunCycle call produced: the new weights (equal to
// the previous ones when Applied is false) plus the reasoning, for a
// caller that wants to log or alert on it beyond what was journaled.
type Report struct {
	CycleType       CycleType
	Observations    int
	AvgRealizedPnL  float64
	Applied         bool
	Reverted        bool
	Reason          string
	PreviousWeights config.Weights
	NewWeights      config.Weights
	Deltas          map[string]float64
}

// Engine runs one compound-learning cycle end to end: attribute closed
// positions, gate on cold-start, compute bounded weight deltas, check
// for overfitting, and persist the result everywhere a consumer might
// look for it (journal, learned_weights.yaml, the learning_weights
// table).
type Engine struct {
	journal *journal.Store
	repo    *database.LearningRepository
	cfg     *config.Config
	clock   timeutil.Clock
}

// NewEngine builds an Engine over cfg's current weights/preset.
func NewEngine(store *journal.Store, repo *database.LearningRepository, cfg *config.Config) *Engine {
	return &Engine{journal: store, repo: repo, cfg: cfg, clock: timeutil.SystemClock{}}
}

// WithClock overrides the engine's clock, for deterministic tests.
func (e *Engine) WithClock(clock timeutil.Clock) *Engine {
	e.clock = clock
	return e
}

// RunCycle executes one learning cycle of the given type.
func (e *Engine) RunCycle(ctx context.Context, cycleType CycleType) (*Report, error) {
	now := e.clock.Now()

	outcomes, firstClosedAt, err := BuildOutcomes(ctx, e.journal)
	if err != nil {
		return nil, fmt.Errorf("learning: build outcomes: %w", err)
	}

	if err := e.journalOutcomes(ctx, outcomes); err != nil {
		return nil, fmt.Errorf("learning: journal outcomes: %w", err)
	}

	stage := classifyColdStart(firstClosedAt, now)
	windowed := withinWindow(outcomes, now)

	report := &Report{
		CycleType:       cycleType,
		Observations:    len(windowed),
		PreviousWeights: e.cfg.Weights,
		NewWeights:      e.cfg.Weights,
		Deltas:          map[string]float64{},
	}

	switch {
	case stage.blocked():
		report.Reason = stage.reason()
	case len(windowed) < MinObservations:
		report.Reason = "insufficient_data"
	default:
		report.AvgRealizedPnL = avgRealizedPnL(windowed)
		deltas := computeDeltas(windowed, stage.maxDelta())
		newWeights := applyDeltas(e.cfg.Weights, deltas)

		series, err := BuildReportSeries(ctx, e.journal, cycleType)
		if err != nil {
			return nil, fmt.Errorf("learning: build report series: %w", err)
		}
		series = append(series, report.AvgRealizedPnL)

		if shouldRevert(series) {
			preset, ok := config.PresetWeights(e.cfg.Preset)
			if !ok {
				preset = e.cfg.Weights
			}
			report.NewWeights = preset
			report.Reverted = true
			report.Reason = "reverted"
		} else {
			report.NewWeights = newWeights
			report.Deltas = deltas
		}
		report.Applied = true
	}

	if err := e.persist(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

func withinWindow(outcomes []Outcome, now time.Time) []Outcome {
	cutoff := now.Add(-attributionWindow)
	out := make([]Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.ClosedAt.After(cutoff) {
			out = append(out, o)
		}
	}
	return out
}

func avgRealizedPnL(outcomes []Outcome) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	var sum float64
	for _, o := range outcomes {
		sum += o.RealizedPnL
	}
	return sum / float64(len(outcomes))
}

// journalOutcomes appends a learning.outcome.v1 event per position,
// deduped by position id so a re-run of the same cycle over the same
// journal state is a no-op rather than a duplicate.
func (e *Engine) journalOutcomes(ctx context.Context, outcomes []Outcome) error {
	for _, o := range outcomes {
		domainScores := o.DomainScores
		if domainScores == nil {
			domainScores = map[string]float64{}
		}
		_, err := e.journal.Append(ctx, event.DraftEvent{
			Type:      event.TypeLearningOutcome,
			Source:    "learning.engine",
			TraceID:   o.ConvictionID,
			DedupeKey: fmt.Sprintf("%s:%s", event.TypeLearningOutcome, o.PositionID),
			Payload: event.LearningOutcomePayload{
				PositionID:          o.PositionID,
				ConvictionID:        o.ConvictionID,
				RealizedPnL:         o.RealizedPnL,
				DirectionCorrect:    o.DirectionCorrect(),
				TimeHeldHours:       o.TimeHeldHours,
				MaxDrawdownPct:      o.MaxDrawdownPct,
				RegimeAtEntry:       o.RegimeAtEntry,
				DomainScoresAtEntry: domainScores,
			},
		})
		if err != nil {
			return fmt.Errorf("append outcome %s: %w", o.PositionID, err)
		}
	}
	return nil
}

func (e *Engine) persist(ctx context.Context, report *Report) error {
	if _, err := e.journal.Append(ctx, event.DraftEvent{
		Type:   event.TypeLearningWeightAdjustment,
		Source: "learning.engine",
		Payload: event.LearningWeightAdjustmentPayload{
			CycleType:       string(report.CycleType),
			PreviousWeights: weightsToMap(report.PreviousWeights),
			NewWeights:      weightsToMap(report.NewWeights),
			Deltas:          report.Deltas,
			Applied:         report.Applied,
			Reason:          report.Reason,
		},
	}); err != nil {
		return fmt.Errorf("learning: append weight adjustment: %w", err)
	}

	if _, err := e.journal.Append(ctx, event.DraftEvent{
		Type:   event.TypeLearningReport,
		Source: "learning.engine",
		Payload: event.LearningReportPayload{
			CycleType:      string(report.CycleType),
			Observations:   report.Observations,
			AvgRealizedPnL: report.AvgRealizedPnL,
			Reverted:       report.Reverted,
		},
	}); err != nil {
		return fmt.Errorf("learning: append report: %w", err)
	}

	if !report.Applied {
		return nil
	}

	if e.repo != nil {
		rows := make([]database.LearningWeightRow, 0, len(event.AllDomains))
		prev := weightsToMap(report.PreviousWeights)
		next := weightsToMap(report.NewWeights)
		for _, d := range event.AllDomains {
			domain := string(d)
			rows = append(rows, database.LearningWeightRow{
				CycleType:  string(report.CycleType),
				Domain:     domain,
				Previous:   prev[domain],
				Delta:      report.Deltas[domain],
				NewWeight:  next[domain],
				Applied:    report.Applied,
				Reason:     report.Reason,
				RecordedAt: e.clock.Now(),
			})
		}
		if err := e.repo.RecordWeights(ctx, rows); err != nil {
			return fmt.Errorf("learning: record weight rows: %w", err)
		}
	}

	if e.cfg.LearnedWeightsPath != "" {
		if err := writeOverlay(e.cfg.LearnedWeightsPath, report.NewWeights); err != nil {
			return fmt.Errorf("learning: write overlay: %w", err)
		}
	}

	return nil
}

// overlayFile mirrors config's unexported learnedWeightsFile shape —
// the two must stay in sync since config.Load reads what this writes.
type overlayFile struct {
	Weights config.Weights `yaml:"weights"`
}

func writeOverlay(path string, weights config.Weights) error {
	raw, err := yaml.Marshal(overlayFile{Weights: weights})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}
