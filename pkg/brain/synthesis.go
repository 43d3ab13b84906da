// Copyright 2025 Certen Protocol
//
// Package brain implements the synthesis -> regime -> conviction ->
// decision pipeline that turns raw signal events into trade intents.
// Every stage is a pure function over a replay-derived projection; the
// pipeline itself holds no state the journal couldn't rebuild.
package brain

import (
	"sort"
	"strings"
	"time"

	"github.com/certen/sovereign-engine/pkg/config"
	"github.com/certen/sovereign-engine/pkg/event"
	"github.com/certen/sovereign-engine/pkg/projections"
)

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func mean(xs []float64) (float64, bool) {
	if len(xs) == 0 {
		return 0, false
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs)), true
}

// FeatureSnapshot is the per-cycle, per-symbol feature vector synthesis
// preserves before collapsing it into a single score — domains stay
// distinct so regime detection, conviction, and learning can each read
// the slice they need instead of one opaque number.
type FeatureSnapshot struct {
	CycleID        string
	Symbol         string
	Ts             time.Time
	Features       map[event.Domain]map[string]float64
	SourceEventIDs []string
	Version        string
}

// SynthesisResult is the output of one synthesize() call for a symbol.
type SynthesisResult struct {
	Snapshot      FeatureSnapshot
	DomainScores  map[event.Domain]float64
	WeightsUsed   map[event.Domain]float64
	WeightedScore float64
}

// domainEventOrder lists, per domain, the signal event types synthesis
// knows how to extract features from, in a fixed order so snapshot
// building is deterministic across runs.
var domainEventOrder = map[event.Domain][]event.Type{
	event.DomainTechnical: {event.TypeSignalTA, event.TypeSignalOrderbook},
	event.DomainOnchain:   {event.TypeSignalOnchain, event.TypeSignalStablecoin, event.TypeSignalWhale},
	event.DomainTradfi:    {event.TypeSignalTradfi, event.TypeSignalETF},
	event.DomainSocial:    {event.TypeSignalSocial, event.TypeSignalSentiment, event.TypeSignalACI},
	event.DomainEvents:    {event.TypeSignalEvents},
	event.DomainCurator:   {event.TypeSignalCurator},
}

// extractFeatures maps one typed signal payload into a compact feature
// vector. Most fields treat a zero value as absent and leave the feature
// out; the social "score" and the curator "conviction" and "direction"
// features are set even when zero.
func extractFeatures(t event.Type, env *event.Envelope) map[string]float64 {
	out := map[string]float64{}

	switch t {
	case event.TypeSignalTA:
		var p event.SignalTAPayload
		if env.DecodePayload(&p) != nil {
			return nil
		}
		if p.RSI14 != 0 {
			out["rsi_14"] = p.RSI14
		}
		if p.TrendStrength != 0 {
			out["trend_strength"] = p.TrendStrength
		}
		if p.VolumeRatio != 0 {
			out["volume_ratio"] = p.VolumeRatio
		}
		if p.MACDHist != 0 {
			out["macd_hist"] = p.MACDHist
		}

	case event.TypeSignalOrderbook:
		var p event.SignalOrderbookPayload
		if env.DecodePayload(&p) != nil {
			return nil
		}
		if p.BidAskSpread != 0 {
			out["bid_ask_spread"] = p.BidAskSpread
		}
		if p.DepthImbalance != 0 {
			out["depth_imbalance"] = p.DepthImbalance
		}

	case event.TypeSignalOnchain:
		var p event.SignalOnchainPayload
		if env.DecodePayload(&p) != nil {
			return nil
		}
		if p.WhaleNetflow != 0 {
			out["whale_netflow"] = p.WhaleNetflow
		}
		if p.ExchangeFlow != 0 {
			out["exchange_flow"] = p.ExchangeFlow
		}
		if p.ActiveAddrPct != 0 {
			out["active_addresses_change"] = p.ActiveAddrPct
		}

	case event.TypeSignalStablecoin:
		var p event.SignalStablecoinPayload
		if env.DecodePayload(&p) != nil {
			return nil
		}
		if p.SupplyChangePct != 0 {
			out["supply_change_24h"] = p.SupplyChangePct
		}

	case event.TypeSignalWhale:
		var p event.SignalWhalePayload
		if env.DecodePayload(&p) != nil {
			return nil
		}
		if p.NetflowUSD != 0 {
			out["smart_money_netflow"] = p.NetflowUSD
		}

	case event.TypeSignalTradfi:
		var p event.SignalTradfiPayload
		if env.DecodePayload(&p) != nil {
			return nil
		}
		if p.FundingAnnualized != 0 {
			out["funding_annualized"] = p.FundingAnnualized
		}
		if p.BasisAnnualized != 0 {
			out["basis_annualized"] = p.BasisAnnualized
		}
		if p.OpenInterestDelta != 0 {
			out["oi_change_pct"] = p.OpenInterestDelta
		}

	case event.TypeSignalETF:
		var p event.SignalETFPayload
		if env.DecodePayload(&p) != nil {
			return nil
		}
		if p.NetFlowUSD != 0 {
			out["daily_flow_usd"] = p.NetFlowUSD
		}
		if p.CumulativeUSD != 0 {
			out["cumulative_7d"] = p.CumulativeUSD
		}

	case event.TypeSignalSocial:
		var p event.SignalSocialPayload
		if env.DecodePayload(&p) != nil {
			return nil
		}
		out["score"] = p.SentimentMean * 10.0
		if p.MentionVolume != 0 {
			out["mention_volume"] = p.MentionVolume
		}

	case event.TypeSignalSentiment:
		var p event.SignalSentimentPayload
		if env.DecodePayload(&p) != nil {
			return nil
		}
		if p.FearGreed != 0 {
			out["fear_greed"] = p.FearGreed
		}

	case event.TypeSignalACI:
		var p event.SignalACIPayload
		if env.DecodePayload(&p) != nil {
			return nil
		}
		if p.Index != 0 {
			out["consensus_score"] = p.Index * 10.0
		}

	case event.TypeSignalEvents:
		var p event.SignalEventsPayload
		if env.DecodePayload(&p) != nil {
			return nil
		}
		if p.ImpactScore != 0 {
			out["impact_score"] = p.ImpactScore
		}

	case event.TypeSignalCurator:
		var p event.SignalCuratorPayload
		if env.DecodePayload(&p) != nil {
			return nil
		}
		out["conviction"] = p.Conviction
		out["direction"] = event.Direction(strings.ToLower(p.Direction)).Numeric()

	default:
		return nil
	}

	return out
}

// domainScore reduces a domain's raw feature vector to a single 0..1
// score, averaging whichever sub-scores have supporting features —
// missing features are skipped, never defaulted to zero.
func domainScore(dom event.Domain, f map[string]float64) (float64, bool) {
	var scores []float64

	switch dom {
	case event.DomainTechnical:
		if rsi, ok := f["rsi_14"]; ok {
			scores = append(scores, clamp01((70.0-rsi)/40.0))
		}
		if ts, ok := f["trend_strength"]; ok {
			scores = append(scores, clamp01(ts))
		}
		if vr, ok := f["volume_ratio"]; ok {
			scores = append(scores, clamp01((vr-0.5)/2.0))
		}

	case event.DomainOnchain:
		if whale, ok := f["whale_netflow"]; ok {
			scores = append(scores, clamp01(0.5+whale/200.0))
		}
		if exch, ok := f["exchange_flow"]; ok {
			scores = append(scores, clamp01(0.5-exch/200.0))
		}
		if mom, ok := f["price_momentum_24h"]; ok {
			scores = append(scores, clamp01(0.5+mom/20.0))
		}

	case event.DomainTradfi:
		if fund, ok := f["funding_annualized"]; ok {
			scores = append(scores, clamp01(1.0-abs(fund-10.0)/30.0))
		}
		if basis, ok := f["basis_annualized"]; ok {
			scores = append(scores, clamp01(1.0-abs(basis-5.0)/8.0))
		}
		if oi, ok := f["oi_change_pct"]; ok {
			scores = append(scores, clamp01(0.5+oi/40.0))
		}

	case event.DomainSocial:
		if score, ok := f["score"]; ok {
			scores = append(scores, clamp01((score+10.0)/20.0))
		}
		if fng, ok := f["fear_greed"]; ok {
			scores = append(scores, clamp01((50.0-fng)/50.0))
		}

	case event.DomainEvents:
		if impact, ok := f["impact_score"]; ok {
			scores = append(scores, clamp01(impact))
		}

	case event.DomainCurator:
		if conv, ok := f["conviction"]; ok {
			scores = append(scores, clamp01(conv))
		}
		if dir, ok := f["direction"]; ok {
			scores = append(scores, clamp01(0.5+0.25*dir))
		}
	}

	return mean(scores)
}

// VectorSynthesis fuses the latest per-domain signal events into a
// feature snapshot, then a quality-adjusted weighted score.
type VectorSynthesis struct {
	weights config.Weights
}

// NewVectorSynthesis constructs a VectorSynthesis over the configured
// base domain weights.
func NewVectorSynthesis(weights config.Weights) *VectorSynthesis {
	return &VectorSynthesis{weights: weights}
}

func weightsMap(w config.Weights) map[event.Domain]float64 {
	return map[event.Domain]float64{
		event.DomainCurator:   w.Curator,
		event.DomainOnchain:   w.Onchain,
		event.DomainTradfi:    w.Tradfi,
		event.DomainSocial:    w.Social,
		event.DomainTechnical: w.Technical,
		event.DomainEvents:    w.Events,
	}
}

// BuildSnapshot reads the latest signal per domain for symbol out of idx
// and extracts a feature vector per populated domain.
func (v *VectorSynthesis) BuildSnapshot(idx *projections.LatestSignalIndex, cycleID, symbol string, asOf time.Time) FeatureSnapshot {
	symbol = strings.ToUpper(symbol)
	feats := make(map[event.Domain]map[string]float64)
	var sourceIDs []string

	for _, dom := range event.AllDomains {
		for _, t := range domainEventOrder[dom] {
			env, ok := idx.Latest(symbol, t)
			if !ok {
				continue
			}
			extracted := extractFeatures(t, env)
			if len(extracted) == 0 {
				continue
			}
			if feats[dom] == nil {
				feats[dom] = make(map[string]float64)
			}
			for k, val := range extracted {
				feats[dom][k] = val
			}
			sourceIDs = append(sourceIDs, env.ID)
		}
	}

	sourceIDs = dedupeSorted(sourceIDs)

	return FeatureSnapshot{
		CycleID:        cycleID,
		Symbol:         symbol,
		Ts:             asOf,
		Features:       feats,
		SourceEventIDs: sourceIDs,
		Version:        "v2",
	}
}

func dedupeSorted(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Synthesize builds the snapshot for symbol, renormalizes domain weights
// by qualityAdjustment (domain -> 0..1 multiplier from the data quality
// monitor, may be nil to use the base weights unadjusted), and computes
// the weighted score.
func (v *VectorSynthesis) Synthesize(idx *projections.LatestSignalIndex, cycleID, symbol string, asOf time.Time, qualityAdjustment map[event.Domain]float64) SynthesisResult {
	snapshot := v.BuildSnapshot(idx, cycleID, symbol, asOf)
	base := weightsMap(v.weights)

	var weightsUsed map[event.Domain]float64
	if len(qualityAdjustment) > 0 {
		adjusted := make(map[event.Domain]float64, len(base))
		var total float64
		for d, w := range base {
			q := 1.0
			if qa, ok := qualityAdjustment[d]; ok {
				q = clamp01(qa)
			}
			adjusted[d] = w * q
			total += adjusted[d]
		}
		weightsUsed = make(map[event.Domain]float64, len(adjusted))
		for d, w := range adjusted {
			if total > 0 {
				weightsUsed[d] = w / total
			} else {
				weightsUsed[d] = base[d]
			}
		}
	} else {
		weightsUsed = base
	}

	domainScores := make(map[event.Domain]float64, len(snapshot.Features))
	for dom, f := range snapshot.Features {
		if s, ok := domainScore(dom, f); ok {
			domainScores[dom] = s
		}
	}

	var weighted float64
	for dom, s := range domainScores {
		weighted += weightsUsed[dom] * s
	}

	return SynthesisResult{
		Snapshot:      snapshot,
		DomainScores:  domainScores,
		WeightsUsed:   weightsUsed,
		WeightedScore: clamp01(weighted),
	}
}
