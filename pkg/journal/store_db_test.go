// Copyright 2025 Certen Protocol
//
// Store exercises real Postgres (advisory locks, transactions, the
// hash-chain insert) and therefore needs ENGINE_TEST_DB. Skipped
// otherwise.

package journal

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/stretchr/testify/require"

	"github.com/certen/sovereign-engine/pkg/canon"
	"github.com/certen/sovereign-engine/pkg/config"
	"github.com/certen/sovereign-engine/pkg/database"
	"github.com/certen/sovereign-engine/pkg/event"
)

var testConnStr string

func TestMain(m *testing.M) {
	testConnStr = os.Getenv("ENGINE_TEST_DB")
	if testConnStr == "" {
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func openTestStore(t *testing.T) *Store {
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

	store, err := Open(context.Background(), client)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func draft(eventType event.Type, payload any) event.DraftEvent {
	return event.DraftEvent{Type: eventType, Payload: payload}
}

func TestOpen_SecondConcurrentOpenFails(t *testing.T) {
	if testConnStr == "" {
		t.Skip("ENGINE_TEST_DB not configured")
	}
	store := openTestStore(t)

	cfg := &config.Config{DatabaseURL: testConnStr, DatabaseMaxConns: 5, DatabaseMinConns: 1, DatabaseMaxIdleTime: 30, DatabaseMaxLifetime: 300}
	client, err := database.NewClient(cfg)
	require.NoError(t, err)
	defer client.Close()

	_, err = Open(context.Background(), client)
	require.Error(t, err)

	held, err := ProbeConcurrentWriter(context.Background(), client)
	require.NoError(t, err)
	require.True(t, held)

	_ = store
}

func TestAppend_ChainsHashAcrossEvents(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.Append(ctx, draft(event.TypeSignalPriceWS, event.SignalPriceWSPayload{Symbol: "BTC-USD", MidPrice: 100}))
	require.NoError(t, err)
	require.Equal(t, canon.GenesisPrevHash, first.PrevHash, "genesis event links to the all-zero genesis prev_hash")

	second, err := store.Append(ctx, draft(event.TypeSignalPriceWS, event.SignalPriceWSPayload{Symbol: "BTC-USD", MidPrice: 101}))
	require.NoError(t, err)
	require.Equal(t, first.Hash, second.PrevHash)
	require.NotEqual(t, first.Hash, second.Hash)
}

func TestAppend_RejectsEmptyTypeAndNilPayload(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Append(ctx, event.DraftEvent{Payload: event.SignalPriceWSPayload{Symbol: "BTC-USD"}})
	require.ErrorIs(t, err, ErrSchemaViolation)

	_, err = store.Append(ctx, event.DraftEvent{Type: event.TypeSignalPriceWS})
	require.ErrorIs(t, err, ErrSchemaViolation)
}

func TestAppend_DuplicateDedupeKeySameSameSamePayloadReturnsOriginal(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	d := draft(event.TypeSignalPriceWS, event.SignalPriceWSPayload{Symbol: "ETH-USD", MidPrice: 2000})
	d.DedupeKey = "tick-1"

	first, err := store.Append(ctx, d)
	require.NoError(t, err)

	second, err := store.Append(ctx, d)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestAppend_DuplicateDedupeKeyDifferentPayloadErrors(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	d1 := draft(event.TypeSignalPriceWS, event.SignalPriceWSPayload{Symbol: "ETH-USD", MidPrice: 2000})
	d1.DedupeKey = "tick-conflict"
	_, err := store.Append(ctx, d1)
	require.NoError(t, err)

	d2 := draft(event.TypeSignalPriceWS, event.SignalPriceWSPayload{Symbol: "ETH-USD", MidPrice: 2001})
	d2.DedupeKey = "tick-conflict"
	_, err = store.Append(ctx, d2)
	require.ErrorIs(t, err, ErrDedupeConflict)
}

func TestBatchAppend_EmptyBatchErrors(t *testing.T) {
	store := openTestStore(t)
	_, err := store.BatchAppend(context.Background(), nil)
	require.ErrorIs(t, err, ErrEmptyBatch)
}

func TestBatchAppend_LinksAllEventsInOrderAtomically(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	drafts := []event.DraftEvent{
		draft(event.TypeSignalPriceWS, event.SignalPriceWSPayload{Symbol: "BTC-USD", MidPrice: 100}),
		draft(event.TypeSignalPriceWS, event.SignalPriceWSPayload{Symbol: "BTC-USD", MidPrice: 101}),
		draft(event.TypeSignalPriceWS, event.SignalPriceWSPayload{Symbol: "BTC-USD", MidPrice: 102}),
	}

	envs, err := store.BatchAppend(ctx, drafts)
	require.NoError(t, err)
	require.Len(t, envs, 3)
	require.Equal(t, envs[0].Hash, envs[1].PrevHash)
	require.Equal(t, envs[1].Hash, envs[2].PrevHash)
}

func TestGetByID_UnknownIDReturnsNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.GetByID(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, ErrEventNotFound)
}

func TestQueryByType_ReturnsNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.Append(ctx, draft(event.TypeSignalPriceWS, event.SignalPriceWSPayload{Symbol: "BTC-USD", MidPrice: float64(100 + i)}))
		require.NoError(t, err)
	}

	envs, err := store.QueryByType(ctx, event.TypeSignalPriceWS, 10)
	require.NoError(t, err)
	require.Len(t, envs, 3)

	var payload event.SignalPriceWSPayload
	require.NoError(t, envs[0].DecodePayload(&payload))
	require.Equal(t, 102.0, payload.MidPrice)
}

func TestQueryByTimeRange_FiltersToWindow(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	past := time.Now().Add(-48 * time.Hour)
	d := draft(event.TypeSignalPriceWS, event.SignalPriceWSPayload{Symbol: "BTC-USD", MidPrice: 100})
	d.Ts = &past
	_, err := store.Append(ctx, d)
	require.NoError(t, err)

	_, err = store.Append(ctx, draft(event.TypeSignalPriceWS, event.SignalPriceWSPayload{Symbol: "BTC-USD", MidPrice: 101}))
	require.NoError(t, err)

	envs, err := store.QueryByTimeRange(ctx, time.Now().Add(-1*time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, envs, 1)
	require.Equal(t, 101.0, decodeMid(t, envs[0]))
}

func TestIterateAscending_VisitsEveryEventInOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.Append(ctx, draft(event.TypeSignalPriceWS, event.SignalPriceWSPayload{Symbol: "BTC-USD", MidPrice: float64(i)}))
		require.NoError(t, err)
	}

	var seen []float64
	err := store.IterateAscending(ctx, 2, func(env *event.Envelope) error {
		seen = append(seen, decodeMid(t, env))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []float64{0, 1, 2, 3, 4}, seen)
}

func TestVerify_PassesOnAnUntamperedChain(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := store.Append(ctx, draft(event.TypeSignalPriceWS, event.SignalPriceWSPayload{Symbol: "BTC-USD", MidPrice: float64(i)}))
		require.NoError(t, err)
	}

	require.NoError(t, store.Verify(ctx, false, 0))
}

func TestVerify_DetectsATamperedPayload(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Append(ctx, draft(event.TypeSignalPriceWS, event.SignalPriceWSPayload{Symbol: "BTC-USD", MidPrice: 100}))
	require.NoError(t, err)
	_, err = store.Append(ctx, draft(event.TypeSignalPriceWS, event.SignalPriceWSPayload{Symbol: "BTC-USD", MidPrice: 101}))
	require.NoError(t, err)

	_, err = store.db.DB().ExecContext(ctx, `UPDATE events SET payload = '{"symbol":"BTC-USD","mid_price":999}' WHERE seq = 1`)
	require.NoError(t, err)

	err = store.Verify(ctx, false, 0)
	require.ErrorIs(t, err, ErrIntegrityError)
}

func decodeMid(t *testing.T, env *event.Envelope) float64 {
	t.Helper()
	var payload event.SignalPriceWSPayload
	require.NoError(t, env.DecodePayload(&payload))
	return payload.MidPrice
}
