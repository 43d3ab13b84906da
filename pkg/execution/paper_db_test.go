// Copyright 2025 Certen Protocol

package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certen/sovereign-engine/pkg/event"
	"github.com/certen/sovereign-engine/pkg/journal"
	"github.com/certen/sovereign-engine/pkg/timeutil"
)

func appendOrderEvents(t *testing.T, store *journal.Store, fill *PaperFill, idempotencyKey string) {
	t.Helper()
	ctx := context.Background()
	_, err := store.Append(ctx, event.DraftEvent{
		Type: event.TypeExecutionOrderSubmitted,
		Payload: event.OrderSubmittedPayload{
			OrderID: fill.OrderID, PositionID: fill.PositionID, Symbol: fill.Symbol,
			Side: fill.Side, Type: "market", Size: fill.FillSize, IdempotencyKey: idempotencyKey,
		},
	})
	require.NoError(t, err)

	_, err = store.Append(ctx, event.DraftEvent{
		Type: event.TypeExecutionOrderFilled,
		Payload: event.OrderFilledPayload{
			OrderID: fill.OrderID, PositionID: fill.PositionID,
			FillPrice: fill.FillPrice, FillSize: fill.FillSize, FeeUSD: fill.FeeUSD,
		},
	})
	require.NoError(t, err)
}

func openTestBroker(t *testing.T) *PaperBroker {
	t.Helper()
	store := openTestStore(t)
	broker, err := OpenPaperBroker(context.Background(), DefaultPaperConfig(), store, timeutil.SystemClock{})
	require.NoError(t, err)
	return broker
}

func TestExecuteMarket_LongFillsAboveMidBySlippage(t *testing.T) {
	broker := openTestBroker(t)
	fill, err := broker.ExecuteMarket(context.Background(), "BTC-USD", "long", 10_000, 1.0, 100, "")
	require.NoError(t, err)
	require.Equal(t, "buy", fill.Side)
	require.Greater(t, fill.FillPrice, 100.0)
	require.InDelta(t, 6.0, fill.FeeUSD, 1e-9)
}

func TestExecuteMarket_ShortFillsBelowMidBySlippage(t *testing.T) {
	broker := openTestBroker(t)
	fill, err := broker.ExecuteMarket(context.Background(), "BTC-USD", "short", 10_000, 1.0, 100, "")
	require.NoError(t, err)
	require.Equal(t, "sell", fill.Side)
	require.Less(t, fill.FillPrice, 100.0)
}

func TestExecuteMarket_SameIdempotencyKeyReturnsOriginalFill(t *testing.T) {
	broker := openTestBroker(t)
	key := "retry-key-1"
	first, err := broker.ExecuteMarket(context.Background(), "BTC-USD", "long", 10_000, 1.0, 100, key)
	require.NoError(t, err)
	second, err := broker.ExecuteMarket(context.Background(), "BTC-USD", "long", 20_000, 1.0, 150, key)
	require.NoError(t, err)
	require.Equal(t, first.OrderID, second.OrderID)
	require.Equal(t, first.FillPrice, second.FillPrice)
}

func TestExecuteMarket_RejectsInvalidInputs(t *testing.T) {
	broker := openTestBroker(t)
	ctx := context.Background()

	_, err := broker.ExecuteMarket(ctx, "BTC-USD", "sideways", 10_000, 1.0, 100, "")
	require.ErrorIs(t, err, ErrInvalidDirection)

	_, err = broker.ExecuteMarket(ctx, "BTC-USD", "long", 10_000, 1.0, 0, "")
	require.ErrorIs(t, err, ErrInvalidMidPrice)

	_, err = broker.ExecuteMarket(ctx, "BTC-USD", "long", 0, 1.0, 100, "")
	require.ErrorIs(t, err, ErrInvalidNotional)
}

func TestOpenPaperBroker_RehydratesFillsFromTheJournal(t *testing.T) {
	store := openTestStore(t)
	broker, err := OpenPaperBroker(context.Background(), DefaultPaperConfig(), store, timeutil.SystemClock{})
	require.NoError(t, err)

	key := "persisted-key"
	fill, err := broker.ExecuteMarket(context.Background(), "BTC-USD", "long", 10_000, 1.0, 100, key)
	require.NoError(t, err)

	// ExecuteMarket itself never journals — OMS.Submit does — so append
	// the two events it would have produced before reopening the broker.
	appendOrderEvents(t, store, fill, key)

	reopened, err := OpenPaperBroker(context.Background(), DefaultPaperConfig(), store, timeutil.SystemClock{})
	require.NoError(t, err)

	replayed, err := reopened.ExecuteMarket(context.Background(), "BTC-USD", "long", 99_999, 1.0, 500, key)
	require.NoError(t, err)
	require.Equal(t, fill.OrderID, replayed.OrderID)
	require.Equal(t, fill.FillPrice, replayed.FillPrice)
}
