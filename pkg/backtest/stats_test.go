// Copyright 2025 Certen Protocol

package backtest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBootstrapPValueMeanGTZero_TooFewSamplesReturnsOne(t *testing.T) {
	res := BootstrapPValueMeanGTZero([]float64{0.01, 0.02}, 1000, 1)
	require.Equal(t, 1.0, res.PValue)
}

func TestBootstrapPValueMeanGTZero_StronglyPositiveReturnsLowPValue(t *testing.T) {
	returns := []float64{0.05, 0.06, 0.04, 0.05, 0.07, 0.05, 0.06, 0.04, 0.05, 0.06}
	res := BootstrapPValueMeanGTZero(returns, 2000, 42)
	require.Less(t, res.PValue, 0.05)
}

func TestBootstrapPValueMeanGTZero_ZeroMeanReturnsHighPValue(t *testing.T) {
	returns := []float64{0.01, -0.01, 0.01, -0.01, 0.01, -0.01, 0.01, -0.01}
	res := BootstrapPValueMeanGTZero(returns, 2000, 42)
	require.Greater(t, res.PValue, 0.10)
}

func TestBenjaminiHochberg_EmptyInput(t *testing.T) {
	require.Nil(t, BenjaminiHochberg(nil, 0.05))
}

func TestBenjaminiHochberg_AllSignificantPassAtLooseQ(t *testing.T) {
	passed := BenjaminiHochberg([]float64{0.001, 0.002, 0.003}, 0.05)
	for _, p := range passed {
		require.True(t, p)
	}
}

func TestBenjaminiHochberg_NoneSignificantAtTightQ(t *testing.T) {
	passed := BenjaminiHochberg([]float64{0.40, 0.60, 0.90}, 0.01)
	for _, p := range passed {
		require.False(t, p)
	}
}
