// Copyright 2025 Certen Protocol
//
// Switch rehydrates from and appends to a real journal, so these tests
// need ENGINE_TEST_DB. Skipped otherwise.

package killswitch

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/stretchr/testify/require"

	"github.com/certen/sovereign-engine/pkg/config"
	"github.com/certen/sovereign-engine/pkg/database"
	"github.com/certen/sovereign-engine/pkg/journal"
)

var testConnStr string

func TestMain(m *testing.M) {
	testConnStr = os.Getenv("ENGINE_TEST_DB")
	if testConnStr == "" {
		os.Exit(0)
	}
	os.Exit(m.Run())
}

var testCfg = config.KillSwitch{
	L1DailyLossPct:     0.02,
	L2PortfolioHeatPct: 0.50,
	L3CrisisThreshold:  3,
	L4MaxDrawdownPct:   0.25,
}

func openTestSwitch(t *testing.T) (*Switch, *journal.Store) {
	t.Helper()
	if testConnStr == "" {
		t.Skip("ENGINE_TEST_DB not configured")
	}

	cfg := &config.Config{DatabaseURL: testConnStr, DatabaseMaxConns: 5, DatabaseMinConns: 1, DatabaseMaxIdleTime: 30, DatabaseMaxLifetime: 300}
	client, err := database.NewClient(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	sqlDB, err := sql.Open("postgres", testConnStr)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	_, err = sqlDB.ExecContext(context.Background(), "TRUNCATE events RESTART IDENTITY")
	require.NoError(t, err)

	store, err := journal.Open(context.Background(), client)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sw, err := Open(context.Background(), testCfg, store)
	require.NoError(t, err)
	return sw, store
}

func ptr[T any](v T) *T { return &v }

func TestOpen_StartsAtSafeWithNoHistory(t *testing.T) {
	sw, _ := openTestSwitch(t)
	require.Equal(t, Safe, sw.Level())
	require.True(t, sw.CanOpenNewPositions())
	require.True(t, sw.CanTrade())
}

func TestOpen_RehydratesTheMostRecentLevel(t *testing.T) {
	sw, store := openTestSwitch(t)
	ctx := context.Background()

	_, err := sw.Evaluate(ctx, Indicators{DailyLossPct: ptr(0.05)})
	require.NoError(t, err)
	require.Equal(t, Caution, sw.Level())

	reopened, err := Open(ctx, testCfg, store)
	require.NoError(t, err)
	require.Equal(t, Caution, reopened.Level())
}

func TestEvaluate_BelowThresholdDoesNotEscalate(t *testing.T) {
	sw, _ := openTestSwitch(t)
	dec, err := sw.Evaluate(context.Background(), Indicators{DailyLossPct: ptr(0.001)})
	require.NoError(t, err)
	require.Nil(t, dec)
	require.Equal(t, Safe, sw.Level())
}

func TestEvaluate_EscalatesToTheHighestTriggeredRule(t *testing.T) {
	sw, _ := openTestSwitch(t)
	dec, err := sw.Evaluate(context.Background(), Indicators{
		DailyLossPct:     ptr(0.05),
		PortfolioHeatPct: ptr(0.80),
	})
	require.NoError(t, err)
	require.NotNil(t, dec)
	require.Equal(t, Defensive, dec.Level)
	require.Equal(t, Safe, dec.PreviousLevel)
	require.True(t, dec.Auto)
	require.Equal(t, "system", dec.Actor)
	require.False(t, sw.CanOpenNewPositions())
	require.True(t, sw.CanTrade())
}

func TestEvaluate_NeverDeescalatesAutomatically(t *testing.T) {
	sw, _ := openTestSwitch(t)
	ctx := context.Background()

	_, err := sw.Evaluate(ctx, Indicators{PortfolioHeatPct: ptr(0.80)})
	require.NoError(t, err)
	require.Equal(t, Defensive, sw.Level())

	dec, err := sw.Evaluate(ctx, Indicators{DailyLossPct: ptr(0.001)})
	require.NoError(t, err)
	require.Nil(t, dec)
	require.Equal(t, Defensive, sw.Level())
}

func TestEvaluate_ManualLevelIsAttributedToOperator(t *testing.T) {
	sw, _ := openTestSwitch(t)
	dec, err := sw.Evaluate(context.Background(), Indicators{ManualLevel: ptr(Lockdown)})
	require.NoError(t, err)
	require.NotNil(t, dec)
	require.Equal(t, Lockdown, dec.Level)
	require.False(t, dec.Auto)
	require.Equal(t, "operator", dec.Actor)
}

func TestReset_LowersLevelAndIsAttributedToOperator(t *testing.T) {
	sw, _ := openTestSwitch(t)
	ctx := context.Background()

	_, err := sw.Evaluate(ctx, Indicators{MaxDrawdownPct: ptr(0.30)})
	require.NoError(t, err)
	require.Equal(t, Emergency, sw.Level())

	dec, err := sw.Reset(ctx, Safe, "manual recovery after incident review")
	require.NoError(t, err)
	require.Equal(t, Safe, dec.Level)
	require.Equal(t, Emergency, dec.PreviousLevel)
	require.False(t, dec.Auto)
	require.Equal(t, Safe, sw.Level())
}

func TestEvaluate_ShutdownBlocksAllTrading(t *testing.T) {
	sw, _ := openTestSwitch(t)
	dec, err := sw.Evaluate(context.Background(), Indicators{ManualLevel: ptr(Shutdown)})
	require.NoError(t, err)
	require.Equal(t, Shutdown, dec.Level)
	require.False(t, sw.CanTrade())
	require.False(t, sw.CanOpenNewPositions())
}
