// Copyright 2025 Certen Protocol

package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/certen/sovereign-engine/pkg/database"
)

func TestHitRate_NoAcceptedIsZero(t *testing.T) {
	resolved, rate := hitRate(database.ContributorAggregate{})
	require.Equal(t, 0, resolved)
	require.Zero(t, rate)
}

func TestHitRate_ComputesWinFraction(t *testing.T) {
	resolved, rate := hitRate(database.ContributorAggregate{Accepted: 10, Profitable: 7})
	require.Equal(t, 10, resolved)
	require.InDelta(t, 0.7, rate, 1e-9)
}

func TestRecencyScore_WithinGraceIsFull(t *testing.T) {
	now := time.Now()
	require.Equal(t, 1.0, recencyScore(now.Add(-2*24*time.Hour), now))
}

func TestRecencyScore_DecaysPastGrace(t *testing.T) {
	now := time.Now()
	score := recencyScore(now.Add(-20*24*time.Hour), now)
	require.True(t, score > 0 && score < 1.0)
}

func TestRecencyScore_NeverActiveIsZero(t *testing.T) {
	require.Zero(t, recencyScore(time.Time{}, time.Now()))
}

func TestKarmaTotalByNode_NilStoreIsZero(t *testing.T) {
	total, err := karmaTotalByNode(context.Background(), nil, "node-1")
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestClamp01(t *testing.T) {
	require.Equal(t, 0.0, clamp01(-1))
	require.Equal(t, 1.0, clamp01(2))
	require.Equal(t, 0.5, clamp01(0.5))
}
