// Copyright 2025 Certen Protocol

package backtest

import (
	"math/rand"
	"sort"
)

// TestResult is a bootstrap significance test outcome.
type TestResult struct {
	Statistic float64
	PValue    float64
}

// BootstrapPValueMeanGTZero tests the null hypothesis that returns has
// zero mean via a sign-flip bootstrap, returning the one-sided p-value
// for mean(returns) > 0. This is a guardrail against noise, not a
// publication-grade test: if it says noise, treat it as noise.
func BootstrapPValueMeanGTZero(returns []float64, nBoot int, seed int64) TestResult {
	if len(returns) < 5 {
		return TestResult{Statistic: mean(returns), PValue: 1.0}
	}

	rng := rand.New(rand.NewSource(seed))
	obs := mean(returns)

	count := 0
	sample := make([]float64, len(returns))
	for b := 0; b < nBoot; b++ {
		var sum float64
		for i, r := range returns {
			flip := 1.0
			if rng.Intn(2) == 0 {
				flip = -1.0
			}
			sample[i] = flip * r
			sum += sample[i]
		}
		if sum/float64(len(returns)) >= obs {
			count++
		}
	}
	p := (float64(count) + 1.0) / (float64(nBoot) + 1.0)
	return TestResult{Statistic: obs, PValue: p}
}

// BenjaminiHochberg applies the Benjamini-Hochberg false discovery rate
// procedure at level q and returns, in the original order of pValues,
// whether each one is a discovery.
func BenjaminiHochberg(pValues []float64, q float64) []bool {
	m := len(pValues)
	if m == 0 {
		return nil
	}

	type indexed struct {
		p   float64
		idx int
	}
	sorted := make([]indexed, m)
	for i, p := range pValues {
		sorted[i] = indexed{p: p, idx: i}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].p < sorted[j].p })

	passed := make([]bool, m)
	for rank, s := range sorted {
		threshold := q * float64(rank+1) / float64(m)
		passed[rank] = s.p <= threshold
	}

	lastPass := -1
	for i, ok := range passed {
		if ok {
			lastPass = i
		}
	}

	out := make([]bool, m)
	if lastPass < 0 {
		return out
	}
	cutoff := sorted[lastPass].p
	for i, p := range pValues {
		out[i] = p <= cutoff
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
