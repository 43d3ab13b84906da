// Copyright 2025 Certen Protocol
//
// Unit tests for ContributorRepository. Requires a live Postgres reachable
// at ENGINE_TEST_DB with migrations applied; skipped otherwise. Shares the
// package-level TestMain defined in learning_repository_test.go.

package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestContributorRepository_RegisterAndGet(t *testing.T) {
	if testDB == nil {
		t.Skip("ENGINE_TEST_DB not configured")
	}

	client := &Client{db: testDB}
	repo := NewContributorRepository(client)
	ctx := context.Background()

	nodeID := "node-" + time.Now().Format("150405.000000")
	c, err := repo.Register(ctx, nodeID, "curator-1", "curator", nil)
	require.NoError(t, err)
	defer func() {
		_, _ = testDB.ExecContext(ctx, "DELETE FROM contributors WHERE id = $1", c.ID)
	}()

	got, err := repo.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, nodeID, got.NodeID)
	require.Equal(t, "curator", got.Role)

	_, err = repo.Register(ctx, nodeID, "curator-1-dup", "curator", nil)
	require.ErrorIs(t, err, ErrDuplicateContributor)
}

func TestContributorRepository_GetUnknownReturnsNotFound(t *testing.T) {
	if testDB == nil {
		t.Skip("ENGINE_TEST_DB not configured")
	}

	client := &Client{db: testDB}
	repo := NewContributorRepository(client)
	_, err := repo.Get(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, ErrContributorNotFound)
}

func TestContributorRepository_SignalWindowsAndDuplicates(t *testing.T) {
	if testDB == nil {
		t.Skip("ENGINE_TEST_DB not configured")
	}

	client := &Client{db: testDB}
	repo := NewContributorRepository(client)
	ctx := context.Background()

	nodeID := "node-sig-" + time.Now().Format("150405.000000")
	c, err := repo.Register(ctx, nodeID, "curator-2", "curator", nil)
	require.NoError(t, err)
	defer func() {
		_, _ = testDB.ExecContext(ctx, "DELETE FROM contributor_signals WHERE contributor_id = $1", c.ID)
		_, _ = testDB.ExecContext(ctx, "DELETE FROM contributors WHERE id = $1", c.ID)
	}()

	now := time.Now().UTC()
	score := 0.8
	require.NoError(t, repo.RecordSignal(ctx, SignalRecord{
		ContributorID: c.ID, EventID: "evt-1", Asset: "BTC-USD", Direction: "long", Score: &score, CreatedAt: now,
	}))
	require.NoError(t, repo.RecordSignal(ctx, SignalRecord{
		ContributorID: c.ID, EventID: "evt-2", Asset: "BTC-USD", Direction: "long", Score: &score, CreatedAt: now,
	}))

	count, err := repo.CountSince(ctx, c.ID, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, 2, count)

	dupCount, err := repo.CountDuplicates(ctx, c.ID, "BTC-USD", "long", now.Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, 2, dupCount)

	require.NoError(t, repo.RecordOutcome(ctx, c.ID, "evt-1", true))
	require.NoError(t, repo.RecordOutcome(ctx, c.ID, "evt-2", false))

	agg, err := repo.Aggregate(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 2, agg.Submitted)
	require.Equal(t, 2, agg.Accepted)
	require.Equal(t, 1, agg.Profitable)

	avgWin, avgLoss, ok, err := repo.ConvictionAccuracy(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 0.8, avgWin, 1e-9)
	require.InDelta(t, 0.8, avgLoss, 1e-9)
}
