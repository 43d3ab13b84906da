// Copyright 2025 Certen Protocol

package brain

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/certen/sovereign-engine/pkg/config"
	"github.com/certen/sovereign-engine/pkg/event"
	"github.com/certen/sovereign-engine/pkg/execution"
	"github.com/certen/sovereign-engine/pkg/journal"
	"github.com/certen/sovereign-engine/pkg/killswitch"
	"github.com/certen/sovereign-engine/pkg/metrics"
	"github.com/certen/sovereign-engine/pkg/projections"
)

// CycleResult is everything one brain cycle produced, returned to the
// caller in addition to whatever it already journaled.
type CycleResult struct {
	CycleID     string
	Ts          time.Time
	DataQuality DataQualityResult
	KillSwitch  *killswitch.Decision
	Regime      RegimeResult
	Synthesis   map[string]SynthesisResult
	Convictions map[string]ConvictionResult
	Intents     []execution.TradeIntent
}

// BrainOrchestrator coordinates one cycle: data quality -> synthesis ->
// regime -> kill switch -> conviction -> decision. It is a conductor,
// not an implementor — every stage lives in its own file and the
// orchestrator only sequences them and journals their output.
type BrainOrchestrator struct {
	cfg        *config.Config
	journal    *journal.Store
	killSwitch *killswitch.Switch
	quality    *DataQualityMonitor
	synthesis  *VectorSynthesis
	regime     *RegimeDetector
	conviction *ConvictionEngine
	decision   *DecisionEngine
	metrics    *metrics.Registry
}

// SetMetrics attaches a metrics.Registry so every RunCycle reports its
// duration and outcome per symbol. Optional.
func (o *BrainOrchestrator) SetMetrics(reg *metrics.Registry) {
	o.metrics = reg
}

// NewBrainOrchestrator wires one cycle's worth of stages over cfg and
// the journal, attributing conviction scores to nodeID.
func NewBrainOrchestrator(cfg *config.Config, store *journal.Store, ks *killswitch.Switch, nodeID string) *BrainOrchestrator {
	return &BrainOrchestrator{
		cfg:        cfg,
		journal:    store,
		killSwitch: ks,
		quality:    NewDataQualityMonitor(store),
		synthesis:  NewVectorSynthesis(cfg.Weights),
		regime:     NewRegimeDetector(),
		conviction: NewConvictionEngine(nodeID),
		decision:   NewDecisionEngine(cfg.Risk),
	}
}

func featureSnapshotPayload(s FeatureSnapshot) event.BrainFeatureSnapshotPayload {
	features := make(map[string]map[string]float64, len(s.Features))
	for d, f := range s.Features {
		features[string(d)] = f
	}
	return event.BrainFeatureSnapshotPayload{
		CycleID:        s.CycleID,
		Symbol:         s.Symbol,
		Features:       features,
		SourceEventIDs: s.SourceEventIDs,
		Version:        s.Version,
	}
}

func synthesisPayload(res SynthesisResult) event.BrainSynthesisPayload {
	domainScores := make(map[string]float64, len(res.DomainScores))
	for d, score := range res.DomainScores {
		domainScores[string(d)] = score
	}
	return event.BrainSynthesisPayload{
		CycleID:        res.Snapshot.CycleID,
		Symbol:         res.Snapshot.Symbol,
		DomainScores:   domainScores,
		WeightedScore:  res.WeightedScore,
		SourceEventIDs: res.Snapshot.SourceEventIDs,
	}
}

// RunCycle executes one full brain cycle over symbols, journaling every
// stage's output, and returns the in-memory result for callers (e.g. the
// execution layer) that want to act on the intents directly rather than
// re-reading them back out of the journal.
func (o *BrainOrchestrator) RunCycle(ctx context.Context, symbols []string) (*CycleResult, error) {
	cycleID := uuid.New().String()
	now := time.Now().UTC()
	started := now

	upper := make([]string, len(symbols))
	for i, s := range symbols {
		upper[i] = strings.ToUpper(s)
	}

	dq, err := o.quality.Evaluate(ctx, now, nil)
	if err != nil {
		return nil, fmt.Errorf("brain: data quality: %w", err)
	}

	idx, err := projections.BuildLatestSignalIndex(ctx, o.journal)
	if err != nil {
		return nil, fmt.Errorf("brain: build signal index: %w", err)
	}

	synthResults := make(map[string]SynthesisResult, len(upper))
	for _, sym := range upper {
		res := o.synthesis.Synthesize(idx, cycleID, sym, now, dq.PerDomainQuality)
		synthResults[sym] = res

		if _, err := o.journal.Append(ctx, event.DraftEvent{
			Type:    event.TypeBrainFeatureSnapshot,
			Source:  "brain.orchestrator",
			TraceID: cycleID,
			Payload: featureSnapshotPayload(res.Snapshot),
		}); err != nil {
			return nil, fmt.Errorf("brain: append feature snapshot %s: %w", sym, err)
		}

		// brain.synthesis.v1 carries the per-domain scores (not just raw
		// features) that learning.BuildOutcomes later joins a closed
		// position's originating cycle_id+symbol back to.
		if _, err := o.journal.Append(ctx, event.DraftEvent{
			Type:    event.TypeBrainSynthesis,
			Source:  "brain.orchestrator",
			TraceID: cycleID,
			Payload: synthesisPayload(res),
		}); err != nil {
			return nil, fmt.Errorf("brain: append synthesis %s: %w", sym, err)
		}
	}

	var btcSnap *FeatureSnapshot
	for _, key := range []string{"BTC-USD", "BTC"} {
		if res, ok := synthResults[key]; ok {
			snap := res.Snapshot
			btcSnap = &snap
			break
		}
	}

	regimeRes := o.regime.Detect(now, btcSnap)

	if _, err := o.journal.Append(ctx, event.DraftEvent{
		Type:    event.TypeBrainCycle,
		Source:  "brain.orchestrator",
		TraceID: cycleID,
		Payload: event.BrainCyclePayload{
			CycleID:        cycleID,
			Symbols:        upper,
			OverallQuality: dq.OverallQuality,
			Regime:         string(regimeRes.State.Regime),
			StartedAt:      now,
			FinishedAt:     now,
		},
	}); err != nil {
		return nil, fmt.Errorf("brain: append cycle: %w", err)
	}

	if regimeRes.Changed {
		if _, err := o.journal.Append(ctx, event.DraftEvent{
			Type:    event.TypeBrainRegimeChange,
			Source:  "brain.orchestrator",
			TraceID: cycleID,
			Payload: event.BrainRegimeChangePayload{
				CycleID:  cycleID,
				Previous: string(regimeRes.Previous),
				Current:  string(regimeRes.State.Regime),
			},
		}); err != nil {
			return nil, fmt.Errorf("brain: append regime change: %w", err)
		}
	}

	var ksDecision *killswitch.Decision
	if regimeRes.State.Regime == RegimeCrisis {
		// Crisis regime escalates the kill switch unconditionally — the
		// threshold rounded up to a whole vote count is passed as the
		// observed count, so the >= comparison in Switch.Evaluate always
		// fires while in crisis.
		votes := int(math.Ceil(o.cfg.KillSwitch.L3CrisisThreshold))
		dec, err := o.killSwitch.Evaluate(ctx, killswitch.Indicators{CrisisConditions: &votes, Reason: "regime_crisis"})
		if err != nil {
			return nil, fmt.Errorf("brain: kill switch evaluate: %w", err)
		}
		ksDecision = dec
	}

	convictions := make(map[string]ConvictionResult, len(upper))
	var intents []execution.TradeIntent

	for _, sym := range upper {
		synth := synthResults[sym]
		conv, err := o.conviction.Compute(synth, regimeRes.State.Regime, now, "4h")
		if err != nil {
			return nil, fmt.Errorf("brain: conviction %s: %w", sym, err)
		}
		convictions[sym] = conv

		confidence := conv.Score.Confidence
		if _, err := o.journal.Append(ctx, event.DraftEvent{
			Type:    event.TypeBrainConviction,
			Source:  "brain.conviction",
			TraceID: cycleID,
			Payload: event.BrainConvictionPayload{
				CycleID:        cycleID,
				NodeID:         conv.Score.NodeID,
				Symbol:         conv.Score.Symbol,
				Direction:      conv.Score.Direction,
				Magnitude:      conv.Score.Magnitude,
				Timeframe:      conv.Score.Timeframe,
				Regime:         conv.Score.Regime,
				PCS:            conv.PCS,
				CTS:            conv.CTS,
				DomainsUsed:    conv.Score.DomainsUsed,
				Confidence:     &confidence,
				CommitmentHash: conv.Score.CommitmentHash,
			},
		}); err != nil {
			return nil, fmt.Errorf("brain: append conviction %s: %w", sym, err)
		}

		intent := o.decision.Decide(sym, conv.FinalConviction, regimeRes.State.Regime, o.killSwitch.Level())
		if intent == nil {
			continue
		}
		intent.CycleID = cycleID
		intent.ConvictionID = conv.Score.CommitmentHash

		// The intent itself is journaled by execution.OMS.Submit, which
		// owns the idempotency-keyed trade_intent.v1 append as the first
		// step of its preflight -> size -> fill pipeline. The brain's job
		// ends at producing a risk-unchecked, unsized intent.
		intents = append(intents, *intent)
	}

	elapsed := time.Since(started)
	for _, sym := range upper {
		outcome := "no_intent"
		for _, intent := range intents {
			if intent.Symbol == sym {
				outcome = "intent"
				break
			}
		}
		o.metrics.ObserveBrainCycle(sym, outcome, elapsed)
	}

	return &CycleResult{
		CycleID:     cycleID,
		Ts:          now,
		DataQuality: dq,
		KillSwitch:  ksDecision,
		Regime:      regimeRes,
		Synthesis:   synthResults,
		Convictions: convictions,
		Intents:     intents,
	}, nil
}
