// Copyright 2025 Certen Protocol

package projections

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/certen/sovereign-engine/pkg/event"
)

func mustPayload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func envAt(t *testing.T, typ event.Type, ts time.Time, payload any) *event.Envelope {
	t.Helper()
	return &event.Envelope{ID: "id", Type: typ, Ts: ts, Payload: mustPayload(t, payload)}
}

func TestLatestSignalIndex_KeepsTheNewerEventPerSymbolAndType(t *testing.T) {
	idx := NewLatestSignalIndex()
	now := time.Now()

	older := envAt(t, event.TypeSignalTA, now, event.SignalTAPayload{Symbol: "BTC-USD"})
	newer := envAt(t, event.TypeSignalTA, now.Add(time.Minute), event.SignalTAPayload{Symbol: "BTC-USD"})

	idx.Apply(older, "BTC-USD")
	idx.Apply(newer, "BTC-USD")

	got, ok := idx.Latest("BTC-USD", event.TypeSignalTA)
	require.True(t, ok)
	require.Equal(t, newer, got)
}

func TestLatestSignalIndex_OlderEventAfterNewerIsIgnored(t *testing.T) {
	idx := NewLatestSignalIndex()
	now := time.Now()

	newer := envAt(t, event.TypeSignalTA, now.Add(time.Minute), event.SignalTAPayload{Symbol: "BTC-USD"})
	older := envAt(t, event.TypeSignalTA, now, event.SignalTAPayload{Symbol: "BTC-USD"})

	idx.Apply(newer, "BTC-USD")
	idx.Apply(older, "BTC-USD")

	got, ok := idx.Latest("BTC-USD", event.TypeSignalTA)
	require.True(t, ok)
	require.Equal(t, newer, got)
}

func TestLatestSignalIndex_IgnoresNonSignalTypesAndEmptySymbol(t *testing.T) {
	idx := NewLatestSignalIndex()
	now := time.Now()

	idx.Apply(envAt(t, event.TypeBrainCycle, now, event.BrainCyclePayload{}), "BTC-USD")
	idx.Apply(envAt(t, event.TypeSignalTA, now, event.SignalTAPayload{}), "")

	_, ok := idx.Latest("BTC-USD", event.TypeBrainCycle)
	require.False(t, ok)
	_, ok = idx.Latest("", event.TypeSignalTA)
	require.False(t, ok)
}

func TestLatestSignalIndex_UnknownSymbolOrTypeIsNotFound(t *testing.T) {
	idx := NewLatestSignalIndex()
	_, ok := idx.Latest("ETH-USD", event.TypeSignalTA)
	require.False(t, ok)
}

func TestLatestSignalIndex_LatestForDomainPicksNewestAcrossTypes(t *testing.T) {
	idx := NewLatestSignalIndex()
	now := time.Now()

	ta := envAt(t, event.TypeSignalTA, now, event.SignalTAPayload{Symbol: "BTC-USD"})
	ws := envAt(t, event.TypeSignalPriceWS, now.Add(time.Minute), event.SignalPriceWSPayload{Symbol: "BTC-USD", MidPrice: 100})

	idx.Apply(ta, "BTC-USD")
	idx.Apply(ws, "BTC-USD")

	got, ok := idx.LatestForDomain("BTC-USD", event.DomainTechnical)
	require.True(t, ok)
	require.Equal(t, ws, got)
}

func TestLatestSignalIndex_LatestForDomainNoMatchReturnsFalse(t *testing.T) {
	idx := NewLatestSignalIndex()
	_, ok := idx.LatestForDomain("BTC-USD", event.DomainTechnical)
	require.False(t, ok)
}

func TestOpenPositionIndex_OpenThenCloseRemovesPosition(t *testing.T) {
	idx := NewOpenPositionIndex()

	opened := envAt(t, event.TypeExecutionPositionOpened, time.Now(), event.PositionOpenedPayload{
		PositionID: "pos-1", Asset: "BTC-USD", Direction: "long", EntryPrice: 100, SizeNotional: 1000,
	})
	require.NoError(t, idx.Apply(opened))
	require.Len(t, idx.Open(), 1)
	require.Equal(t, "pos-1", idx.Open()[0].PositionID)

	closed := envAt(t, event.TypeExecutionPositionClosed, time.Now(), event.PositionClosedPayload{
		PositionID: "pos-1", ExitPrice: 110, RealizedPnL: 100,
	})
	require.NoError(t, idx.Apply(closed))
	require.Empty(t, idx.Open())
}

func TestOpenPositionIndex_IgnoresUnrelatedEventTypes(t *testing.T) {
	idx := NewOpenPositionIndex()
	require.NoError(t, idx.Apply(envAt(t, event.TypeBrainCycle, time.Now(), event.BrainCyclePayload{})))
	require.Empty(t, idx.Open())
}

func TestOpenPositionIndex_ClosingAnUnknownPositionIsANoOp(t *testing.T) {
	idx := NewOpenPositionIndex()
	closed := envAt(t, event.TypeExecutionPositionClosed, time.Now(), event.PositionClosedPayload{PositionID: "ghost"})
	require.NoError(t, idx.Apply(closed))
	require.Empty(t, idx.Open())
}
