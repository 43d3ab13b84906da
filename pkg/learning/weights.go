// Copyright 2025 Certen Protocol

package learning

import (
	"math"

	"github.com/certen/sovereign-engine/pkg/config"
	"github.com/certen/sovereign-engine/pkg/event"
)

// minSampleCount is the minimum number of (domain_score, outcome) pairs
// a domain needs before its correlation counts for anything; below it
// the domain contributes a zero delta this cycle.
var minSampleCount = maxInt(5, MinObservations/2)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// weightsToMap flattens config.Weights into the domain-keyed map the
// rest of this package works with.
func weightsToMap(w config.Weights) map[string]float64 {
	return map[string]float64{
		string(event.DomainCurator):   w.Curator,
		string(event.DomainOnchain):   w.Onchain,
		string(event.DomainTradfi):    w.Tradfi,
		string(event.DomainSocial):    w.Social,
		string(event.DomainTechnical): w.Technical,
		string(event.DomainEvents):    w.Events,
	}
}

// mapToWeights is the inverse of weightsToMap.
func mapToWeights(m map[string]float64) config.Weights {
	return config.Weights{
		Curator:   m[string(event.DomainCurator)],
		Onchain:   m[string(event.DomainOnchain)],
		Tradfi:    m[string(event.DomainTradfi)],
		Social:    m[string(event.DomainSocial)],
		Technical: m[string(event.DomainTechnical)],
		Events:    m[string(event.DomainEvents)],
	}
}

// pearson computes the Pearson correlation coefficient between xs and
// ys. Returns 0 rather than NaN when the series are empty, differ in
// length, or either has zero variance; it applies no minimum sample count
// of its own.
func pearson(xs, ys []float64) float64 {
	n := len(xs)
	if n == 0 || n != len(ys) {
		return 0
	}

	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/float64(n), sumY/float64(n)

	var cov, varX, varY float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}

// sign returns 1 for a positive pnl, -1 for negative, 0 for exactly zero.
func sign(pnl float64) float64 {
	switch {
	case pnl > 0:
		return 1
	case pnl < 0:
		return -1
	default:
		return 0
	}
}

func clampf(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// computeDeltas derives a per-domain weight delta from Pearson
// correlation between each domain's score at entry and the sign of the
// position's realized P&L, over every outcome carrying domain scores.
//
// TODO: Pearson treats a domain's contribution as pnl sign only; a
// magnitude-weighted regression against realized pnl would reward
// domains that called the big wins, not just the frequent ones.
func computeDeltas(outcomes []Outcome, maxDelta float64) map[string]float64 {
	deltas := make(map[string]float64, len(event.AllDomains))
	for _, d := range event.AllDomains {
		domain := string(d)
		var xs, ys []float64
		for _, o := range outcomes {
			if o.DomainScores == nil {
				continue
			}
			score, ok := o.DomainScores[domain]
			if !ok {
				continue
			}
			xs = append(xs, score)
			ys = append(ys, sign(o.RealizedPnL))
		}

		var delta float64
		if len(xs) >= minSampleCount {
			corr := pearson(xs, ys)
			delta = clampf(corr*maxDelta, -maxDelta, maxDelta)
		}
		deltas[domain] = delta
	}
	return deltas
}

// applyDeltas adds deltas to base, clamps each domain to
// [MinDomainWeight, MaxDomainWeight], renormalizes to sum to 1,
// re-clamps, and applies any remaining drift to the largest-weight
// domain so the result sums to exactly 1.
func applyDeltas(base config.Weights, deltas map[string]float64) config.Weights {
	w := weightsToMap(base)

	for domain, delta := range deltas {
		w[domain] = clampf(w[domain]+delta, MinDomainWeight, MaxDomainWeight)
	}

	renormalize(w)
	for domain := range w {
		w[domain] = clampf(w[domain], MinDomainWeight, MaxDomainWeight)
	}

	var sum float64
	for _, v := range w {
		sum += v
	}
	drift := 1.0 - sum
	if drift != 0 {
		maxDomain := maxWeightDomain(w)
		w[maxDomain] = clampf(w[maxDomain]+drift, MinDomainWeight, MaxDomainWeight)
	}

	return mapToWeights(w)
}

func renormalize(w map[string]float64) {
	var sum float64
	for _, v := range w {
		sum += v
	}
	if sum == 0 {
		return
	}
	for domain, v := range w {
		w[domain] = v / sum
	}
}

func maxWeightDomain(w map[string]float64) string {
	var best string
	var bestW float64 = -1
	// Deterministic iteration order over the closed domain set, not
	// Go's randomized map order, so a tie always resolves the same way.
	for _, d := range event.AllDomains {
		domain := string(d)
		if v := w[domain]; v > bestW {
			bestW = v
			best = domain
		}
	}
	return best
}
