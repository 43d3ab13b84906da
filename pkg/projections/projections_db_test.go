// Copyright 2025 Certen Protocol
//
// The Build* functions replay a real journal via IterateAscending, so
// these tests need ENGINE_TEST_DB. Skipped otherwise.

package projections

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/stretchr/testify/require"

	"github.com/certen/sovereign-engine/pkg/config"
	"github.com/certen/sovereign-engine/pkg/database"
	"github.com/certen/sovereign-engine/pkg/event"
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

func TestBuildLatestSignalIndex_ReplaysToTheMostRecentTickPerSymbol(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Append(ctx, event.DraftEvent{Type: event.TypeSignalPriceWS, Payload: event.SignalPriceWSPayload{Symbol: "BTC-USD", MidPrice: 100}})
	require.NoError(t, err)
	_, err = store.Append(ctx, event.DraftEvent{Type: event.TypeSignalPriceWS, Payload: event.SignalPriceWSPayload{Symbol: "BTC-USD", MidPrice: 101}})
	require.NoError(t, err)

	idx, err := BuildLatestSignalIndex(ctx, store)
	require.NoError(t, err)

	env, ok := idx.Latest("BTC-USD", event.TypeSignalPriceWS)
	require.True(t, ok)
	var payload event.SignalPriceWSPayload
	require.NoError(t, env.DecodePayload(&payload))
	require.Equal(t, 101.0, payload.MidPrice)
}

func TestBuildKillSwitchState_ReturnsNotFoundOnAnEmptyJournal(t *testing.T) {
	store := openTestStore(t)
	state, err := BuildKillSwitchState(context.Background(), store)
	require.NoError(t, err)
	require.False(t, state.Found)
}

func TestBuildKillSwitchState_ReturnsTheMostRecentTransition(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Append(ctx, event.DraftEvent{Type: event.TypeSystemKillSwitch, Payload: event.KillSwitchPayload{Level: 1, Reason: "caution"}})
	require.NoError(t, err)
	_, err = store.Append(ctx, event.DraftEvent{Type: event.TypeSystemKillSwitch, Payload: event.KillSwitchPayload{Level: 2, PreviousLevel: 1, Reason: "defensive", Actor: "system"}})
	require.NoError(t, err)

	state, err := BuildKillSwitchState(ctx, store)
	require.NoError(t, err)
	require.True(t, state.Found)
	require.Equal(t, 2, state.Level)
	require.Equal(t, "defensive", state.Reason)
}

func TestBuildOpenPositionIndex_ReplaysOpenAndCloseEvents(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Append(ctx, event.DraftEvent{Type: event.TypeExecutionPositionOpened, Payload: event.PositionOpenedPayload{PositionID: "pos-1", Asset: "BTC-USD", EntryPrice: 100, SizeNotional: 1000}})
	require.NoError(t, err)
	_, err = store.Append(ctx, event.DraftEvent{Type: event.TypeExecutionPositionOpened, Payload: event.PositionOpenedPayload{PositionID: "pos-2", Asset: "ETH-USD", EntryPrice: 2000, SizeNotional: 500}})
	require.NoError(t, err)
	_, err = store.Append(ctx, event.DraftEvent{Type: event.TypeExecutionPositionClosed, Payload: event.PositionClosedPayload{PositionID: "pos-1", ExitPrice: 110, RealizedPnL: 100}})
	require.NoError(t, err)

	idx, err := BuildOpenPositionIndex(ctx, store)
	require.NoError(t, err)
	require.Len(t, idx.Open(), 1)
	require.Equal(t, "pos-2", idx.Open()[0].PositionID)
}

func TestSumRealizedPnL_AccumulatesAcrossClosedPositions(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Append(ctx, event.DraftEvent{Type: event.TypeExecutionPositionClosed, Payload: event.PositionClosedPayload{PositionID: "pos-1", RealizedPnL: 150.5}})
	require.NoError(t, err)
	_, err = store.Append(ctx, event.DraftEvent{Type: event.TypeExecutionPositionClosed, Payload: event.PositionClosedPayload{PositionID: "pos-2", RealizedPnL: -25.25}})
	require.NoError(t, err)

	total, err := SumRealizedPnL(ctx, store)
	require.NoError(t, err)
	require.InDelta(t, 125.25, total, 1e-9)
}
