// Copyright 2025 Certen Protocol

package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certen/sovereign-engine/pkg/config"
	"github.com/certen/sovereign-engine/pkg/timeutil"
)

func newTestOMS(t *testing.T, risk config.Risk) *OMS {
	t.Helper()
	store := openTestStore(t)
	ks := openTestKillSwitch(t, store)
	preflight := NewPreflight(risk, ks, nil)
	sizer := NewCorrelationAwareSizer(NewSizer(DefaultKellyParams(), RiskLimits{MaxPositionPct: risk.MaxPositionPct, MinPositionUSD: 10}))
	broker, err := OpenPaperBroker(context.Background(), DefaultPaperConfig(), store, timeutil.SystemClock{})
	require.NoError(t, err)
	pnl, err := OpenPnLTracker(context.Background(), store)
	require.NoError(t, err)
	return NewOMS(store, preflight, sizer, broker, pnl, "paper", risk.MaxPositionPct)
}

func TestOMS_Submit_FillsAHighConvictionIntent(t *testing.T) {
	risk := config.Risk{MaxLeverage: 2.0, MaxPositionPct: 0.10}
	oms := newTestOMS(t, risk)

	intent := TradeIntent{Symbol: "BTC-USD", Direction: "long", SizePct: 0.05, Leverage: 1.0, ConvictionScore: 80}
	res, err := oms.Submit(context.Background(), intent, SubmitParams{MidPrice: 100, EquityUSD: 100_000})

	require.NoError(t, err)
	require.Equal(t, "filled", res.Status)
	require.Equal(t, "paper", res.Mode)
	require.NotEmpty(t, res.OrderID)
	require.NotEmpty(t, res.PositionID)
	require.Greater(t, res.NotionalUSD, 0.0)
}

func TestOMS_Submit_RejectsWhenPreflightFails(t *testing.T) {
	risk := config.Risk{MaxLeverage: 2.0, MaxPositionPct: 0.01}
	oms := newTestOMS(t, risk)

	intent := TradeIntent{Symbol: "BTC-USD", Direction: "long", SizePct: 0.50, Leverage: 1.0, ConvictionScore: 80}
	res, err := oms.Submit(context.Background(), intent, SubmitParams{MidPrice: 100, EquityUSD: 100_000})

	require.NoError(t, err)
	require.Equal(t, "rejected", res.Status)
	require.Contains(t, res.Reasons, "position_size_limit")
}

func TestOMS_Submit_RejectsOnZeroConvictionSizingToZero(t *testing.T) {
	risk := config.Risk{MaxLeverage: 2.0, MaxPositionPct: 0.10}
	oms := newTestOMS(t, risk)

	intent := TradeIntent{Symbol: "BTC-USD", Direction: "long", SizePct: 0.05, Leverage: 1.0, ConvictionScore: 0}
	res, err := oms.Submit(context.Background(), intent, SubmitParams{MidPrice: 100, EquityUSD: 1})

	require.NoError(t, err)
	require.Equal(t, "rejected", res.Status)
	require.Contains(t, res.Reasons, "size_zero")
}

func TestOMS_Submit_SameIdempotencyKeyNeverDoubleFills(t *testing.T) {
	risk := config.Risk{MaxLeverage: 2.0, MaxPositionPct: 0.10}
	oms := newTestOMS(t, risk)

	intent := TradeIntent{Symbol: "BTC-USD", Direction: "long", SizePct: 0.05, Leverage: 1.0, ConvictionScore: 80}
	params := SubmitParams{MidPrice: 100, EquityUSD: 100_000, IdempotencyKey: "cycle-1:BTC-USD"}

	first, err := oms.Submit(context.Background(), intent, params)
	require.NoError(t, err)
	second, err := oms.Submit(context.Background(), intent, params)
	require.NoError(t, err)

	require.Equal(t, first.OrderID, second.OrderID)
	require.Equal(t, first.PositionID, second.PositionID)
}
