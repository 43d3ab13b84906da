// Copyright 2025 Certen Protocol

package learning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShouldRevert_ThreeConsecutiveDegradesTriggersReversion(t *testing.T) {
	require.True(t, shouldRevert([]float64{100, 40, 30, 20, 10}))
}

func TestShouldRevert_ShortSeriesNeverReverts(t *testing.T) {
	require.False(t, shouldRevert([]float64{40, 30, 20}))
}

func TestShouldRevert_SteadilyImprovingSeriesDoesNotRevert(t *testing.T) {
	require.False(t, shouldRevert([]float64{10, 20, 30, 40, 50}))
}

func TestShouldRevert_ImprovementInterruptsTheStreak(t *testing.T) {
	require.False(t, shouldRevert([]float64{100, 40, 30, 35, 10}))
}

func TestClassifyColdStart(t *testing.T) {
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)

	require.Equal(t, stageNoHistory, classifyColdStart(time.Time{}, now))
	require.Equal(t, stageBaseline, classifyColdStart(now.Add(-10*24*time.Hour), now))
	require.Equal(t, stageWarmUp, classifyColdStart(now.Add(-60*24*time.Hour), now))
	require.Equal(t, stageFull, classifyColdStart(now.Add(-120*24*time.Hour), now))
}
