// Copyright 2025 Certen Protocol

package learning

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certen/sovereign-engine/pkg/config"
	"github.com/certen/sovereign-engine/pkg/event"
)

func TestPearson_PerfectPositiveCorrelation(t *testing.T) {
	corr := pearson([]float64{1, 2, 3, 4}, []float64{1, 2, 3, 4})
	require.InDelta(t, 1.0, corr, 1e-9)
}

func TestPearson_PerfectNegativeCorrelation(t *testing.T) {
	corr := pearson([]float64{1, 2, 3, 4}, []float64{4, 3, 2, 1})
	require.InDelta(t, -1.0, corr, 1e-9)
}

func TestPearson_ZeroVarianceReturnsZero(t *testing.T) {
	require.Equal(t, 0.0, pearson([]float64{5, 5, 5}, []float64{1, 2, 3}))
}

func TestComputeDeltas_BelowMinSampleCountContributesZero(t *testing.T) {
	outcomes := make([]Outcome, minSampleCount-1)
	for i := range outcomes {
		outcomes[i] = Outcome{
			RealizedPnL:  10,
			DomainScores: map[string]float64{string(event.DomainTechnical): 0.8},
		}
	}
	deltas := computeDeltas(outcomes, MaxWeightDelta)
	require.Zero(t, deltas[string(event.DomainTechnical)])
}

func TestComputeDeltas_PositiveCorrelationYieldsPositiveDelta(t *testing.T) {
	outcomes := make([]Outcome, minSampleCount+5)
	for i := range outcomes {
		score := 0.2
		pnl := -10.0
		if i%2 == 0 {
			score = 0.9
			pnl = 10.0
		}
		outcomes[i] = Outcome{
			RealizedPnL:  pnl,
			DomainScores: map[string]float64{string(event.DomainTechnical): score},
		}
	}
	deltas := computeDeltas(outcomes, MaxWeightDelta)
	require.Greater(t, deltas[string(event.DomainTechnical)], 0.0)
	require.LessOrEqual(t, deltas[string(event.DomainTechnical)], MaxWeightDelta)
}

func TestApplyDeltas_ClampsAndRenormalizes(t *testing.T) {
	base := config.Weights{Curator: 0.10, Onchain: 0.10, Tradfi: 0.10, Social: 0.10, Technical: 0.39, Events: 0.21}
	deltas := map[string]float64{string(event.DomainTechnical): MaxWeightDelta}

	out := applyDeltas(base, deltas)

	require.LessOrEqual(t, out.Technical, MaxDomainWeight+1e-9)
	require.InDelta(t, 1.0, out.Sum(), 1e-9)
	for _, w := range []float64{out.Curator, out.Onchain, out.Tradfi, out.Social, out.Technical, out.Events} {
		require.GreaterOrEqual(t, w, MinDomainWeight-1e-9)
		require.LessOrEqual(t, w, MaxDomainWeight+1e-9)
	}
}

func TestApplyDeltas_NoDeltasIsIdentity(t *testing.T) {
	base := config.Weights{Curator: 0.15, Onchain: 0.20, Tradfi: 0.20, Social: 0.15, Technical: 0.20, Events: 0.10}
	out := applyDeltas(base, map[string]float64{})
	require.InDelta(t, base.Curator, out.Curator, 1e-9)
	require.InDelta(t, base.Technical, out.Technical, 1e-9)
	require.InDelta(t, 1.0, out.Sum(), 1e-9)
}
