// Copyright 2025 Certen Protocol
//
// Most of this package's behavior is only observable against a real
// journal (order/position events, idempotent replay, kill-switch
// gating), so its tests need ENGINE_TEST_DB. Skipped otherwise.

package execution

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
	"github.com/certen/sovereign-engine/pkg/killswitch"
)

var testConnStr string

func TestMain(m *testing.M) {
	testConnStr = os.Getenv("ENGINE_TEST_DB")
	if testConnStr == "" {
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func openTestStore(t *testing.T) *journal.Store {
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
	return store
}

func openTestKillSwitch(t *testing.T, store *journal.Store) *killswitch.Switch {
	t.Helper()
	cfg := config.KillSwitch{L1DailyLossPct: 0.02, L2PortfolioHeatPct: 0.50, L3CrisisThreshold: 3, L4MaxDrawdownPct: 0.25}
	ks, err := killswitch.Open(context.Background(), cfg, store)
	require.NoError(t, err)
	return ks
}
