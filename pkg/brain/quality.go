// Copyright 2025 Certen Protocol

package brain

import (
	"context"
	"time"

	"github.com/certen/sovereign-engine/pkg/event"
	"github.com/certen/sovereign-engine/pkg/journal"
)

// expectedIntervalByDomain holds how often, in the steady state, each
// domain should see a fresh signal. Staleness past this is a gradient,
// not a hard failure — a domain simply loses weight for the cycle.
var expectedIntervalByDomain = map[event.Domain]time.Duration{
	event.DomainTechnical: 15 * time.Minute,
	event.DomainTradfi:    6 * time.Hour,
	event.DomainOnchain:   6 * time.Hour,
	event.DomainEvents:    6 * time.Hour,
	event.DomainSocial:    6 * time.Hour,
	event.DomainCurator:   24 * time.Hour,
}

// qualityFromStaleness maps a staleness duration to a 0..1 score:
// missing -> 0, within the expected interval -> 1, then linear decay
// over the following 3x the interval down to 0.
func qualityFromStaleness(staleness *time.Duration, expected time.Duration) float64 {
	if staleness == nil {
		return 0
	}
	if expected <= 0 {
		return 1
	}
	s := *staleness
	if s < 0 {
		s = 0
	}
	if s <= expected {
		return 1
	}
	span := 3 * expected
	q := 1.0 - float64(s-expected)/float64(span)
	return clamp01(q)
}

// DataQualityResult is a point-in-time staleness read across every
// synthesis domain.
type DataQualityResult struct {
	AsOf               time.Time
	PerDomainStaleness map[event.Domain]*time.Duration
	PerDomainQuality   map[event.Domain]float64
	MissingDomains     []event.Domain
	OverallQuality     float64
}

// AdjustedWeights down-weights base by PerDomainQuality and renormalizes
// — the same adjust-then-renormalize pattern VectorSynthesis.Synthesize
// applies, exposed here so callers can compute it once per cycle and
// pass it to both synthesis and reporting.
func (r DataQualityResult) AdjustedWeights(base map[event.Domain]float64) map[event.Domain]float64 {
	weighted := make(map[event.Domain]float64, len(base))
	var total float64
	for dom, w := range base {
		q, ok := r.PerDomainQuality[dom]
		if !ok {
			q = 1
		}
		weighted[dom] = w * clamp01(q)
		total += weighted[dom]
	}
	if total <= 0 {
		out := make(map[event.Domain]float64, len(base))
		for d, w := range base {
			out[d] = w
		}
		return out
	}
	out := make(map[event.Domain]float64, len(weighted))
	for d, w := range weighted {
		out[d] = w / total
	}
	return out
}

// DataQualityMonitor measures domain staleness directly from the latest
// journal event timestamps per domain — independent of any particular
// projection, so it degrades gracefully even if a projection is behind.
type DataQualityMonitor struct {
	journal *journal.Store
}

// NewDataQualityMonitor constructs a DataQualityMonitor over the journal.
func NewDataQualityMonitor(store *journal.Store) *DataQualityMonitor {
	return &DataQualityMonitor{journal: store}
}

// Evaluate reads the latest event per domain-feeding event type across
// domains, and derives a staleness-based quality score for each.
func (m *DataQualityMonitor) Evaluate(ctx context.Context, asOf time.Time, domains []event.Domain) (DataQualityResult, error) {
	if len(domains) == 0 {
		domains = event.AllDomains
	}

	staleness := make(map[event.Domain]*time.Duration, len(domains))
	quality := make(map[event.Domain]float64, len(domains))
	var missing []event.Domain

	for _, dom := range domains {
		var latest *time.Time
		for _, t := range event.EventTypesForDomain(dom) {
			envs, err := m.journal.QueryByType(ctx, t, 1)
			if err != nil {
				return DataQualityResult{}, err
			}
			if len(envs) == 0 {
				continue
			}
			ts := envs[0].Ts
			if envs[0].ObservedAt != nil {
				ts = *envs[0].ObservedAt
			}
			if latest == nil || ts.After(*latest) {
				latest = &ts
			}
		}

		if latest == nil {
			staleness[dom] = nil
			missing = append(missing, dom)
		} else {
			age := asOf.Sub(*latest)
			staleness[dom] = &age
		}
		quality[dom] = qualityFromStaleness(staleness[dom], expectedIntervalByDomain[dom])
	}

	var overall float64
	if len(quality) > 0 {
		var sum float64
		for _, q := range quality {
			sum += q
		}
		overall = sum / float64(len(quality))
	}

	return DataQualityResult{
		AsOf:               asOf,
		PerDomainStaleness: staleness,
		PerDomainQuality:   quality,
		MissingDomains:     missing,
		OverallQuality:     overall,
	}, nil
}
