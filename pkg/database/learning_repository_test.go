// Copyright 2025 Certen Protocol
//
// Unit tests for LearningRepository. Requires a live Postgres reachable
// at ENGINE_TEST_DB with migrations applied; skipped otherwise.

package database

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/stretchr/testify/require"
)

var testDB *sql.DB

func TestMain(m *testing.M) {
	connStr := os.Getenv("ENGINE_TEST_DB")
	if connStr == "" {
		os.Exit(0)
	}

	var err error
	testDB, err = sql.Open("postgres", connStr)
	if err != nil {
		panic("failed to connect to test database: " + err.Error())
	}

	code := m.Run()
	testDB.Close()
	os.Exit(code)
}

func TestLearningRepository_RecordAndQueryLatestWeights(t *testing.T) {
	if testDB == nil {
		t.Skip("ENGINE_TEST_DB not configured")
	}

	client := &Client{db: testDB}
	repo := NewLearningRepository(client)
	ctx := context.Background()

	cycleType := "daily-test-" + time.Now().Format("150405.000000")
	defer func() {
		_, _ = testDB.ExecContext(ctx, "DELETE FROM learning_weights WHERE cycle_type = $1", cycleType)
	}()

	first := []LearningWeightRow{
		{CycleType: cycleType, Domain: "technical", Previous: 0.20, Delta: 0.01, NewWeight: 0.21, Applied: true, RecordedAt: time.Now().Add(-time.Hour)},
		{CycleType: cycleType, Domain: "tradfi", Previous: 0.20, Delta: -0.01, NewWeight: 0.19, Applied: true, RecordedAt: time.Now().Add(-time.Hour)},
	}
	require.NoError(t, repo.RecordWeights(ctx, first))

	second := []LearningWeightRow{
		{CycleType: cycleType, Domain: "technical", Previous: 0.21, Delta: 0.01, NewWeight: 0.22, Applied: true, RecordedAt: time.Now()},
	}
	require.NoError(t, repo.RecordWeights(ctx, second))

	latest, err := repo.LatestAppliedWeights(ctx, cycleType)
	require.NoError(t, err)
	require.InDelta(t, 0.22, latest["technical"], 1e-9)
	require.InDelta(t, 0.19, latest["tradfi"], 1e-9)
}

func TestLearningRepository_RecordWeightsNoOpOnEmpty(t *testing.T) {
	if testDB == nil {
		t.Skip("ENGINE_TEST_DB not configured")
	}

	client := &Client{db: testDB}
	repo := NewLearningRepository(client)
	require.NoError(t, repo.RecordWeights(context.Background(), nil))
}
