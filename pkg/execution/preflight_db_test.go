// Copyright 2025 Certen Protocol

package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certen/sovereign-engine/pkg/config"
	"github.com/certen/sovereign-engine/pkg/killswitch"
)

func TestPreflight_ApprovesAWellFormedIntentUnderSafe(t *testing.T) {
	store := openTestStore(t)
	ks := openTestKillSwitch(t, store)
	risk := config.Risk{MaxLeverage: 2.0, MaxPositionPct: 0.10, DailyLossLimitPct: 0.05}
	pf := NewPreflight(risk, ks, nil)

	intent := TradeIntent{Symbol: "BTC-USD", Direction: "long", SizePct: 0.05, Leverage: 1.0}
	res := pf.Check(context.Background(), intent, "paper", SubmitParams{EquityUSD: 100_000, DailyLossUSD: 0})

	require.True(t, res.Approved)
	require.Empty(t, res.Reasons)
}

func TestPreflight_RejectsWhenKillSwitchBlocksNewPositions(t *testing.T) {
	store := openTestStore(t)
	ks := openTestKillSwitch(t, store)
	heat := 0.80
	_, err := ks.Evaluate(context.Background(), killswitch.Indicators{PortfolioHeatPct: &heat})
	require.NoError(t, err)

	risk := config.Risk{MaxLeverage: 2.0, MaxPositionPct: 0.10}
	pf := NewPreflight(risk, ks, nil)
	intent := TradeIntent{Symbol: "BTC-USD", Direction: "long", SizePct: 0.05, Leverage: 1.0}
	res := pf.Check(context.Background(), intent, "paper", SubmitParams{EquityUSD: 100_000})

	require.False(t, res.Approved)
	require.Contains(t, res.Reasons, "kill_switch")
}

func TestPreflight_RejectsOverDailyLossLimit(t *testing.T) {
	store := openTestStore(t)
	ks := openTestKillSwitch(t, store)
	risk := config.Risk{MaxLeverage: 2.0, MaxPositionPct: 0.10, DailyLossLimitPct: 0.02}
	pf := NewPreflight(risk, ks, nil)

	intent := TradeIntent{Symbol: "BTC-USD", Direction: "long", SizePct: 0.05, Leverage: 1.0}
	res := pf.Check(context.Background(), intent, "paper", SubmitParams{EquityUSD: 100_000, DailyLossUSD: 5_000})

	require.False(t, res.Approved)
	require.Contains(t, res.Reasons, "daily_loss_limit")
}

func TestPreflight_RejectsOverPositionSizeAndLeverageLimits(t *testing.T) {
	store := openTestStore(t)
	ks := openTestKillSwitch(t, store)
	risk := config.Risk{MaxLeverage: 1.5, MaxPositionPct: 0.05}
	pf := NewPreflight(risk, ks, nil)

	intent := TradeIntent{Symbol: "BTC-USD", Direction: "long", SizePct: 0.20, Leverage: 3.0}
	res := pf.Check(context.Background(), intent, "paper", SubmitParams{EquityUSD: 100_000})

	require.False(t, res.Approved)
	require.Contains(t, res.Reasons, "position_size_limit")
	require.Contains(t, res.Reasons, "leverage_limit")
}

func TestPreflight_LiveModeRejectsOnInsufficientGas(t *testing.T) {
	store := openTestStore(t)
	ks := openTestKillSwitch(t, store)
	risk := config.Risk{MaxLeverage: 2.0, MaxPositionPct: 0.10}
	pf := NewPreflight(risk, ks, []GasRequirement{{Venue: "hyperliquid", Asset: "ETH", MinAmount: 0.05}})

	intent := TradeIntent{Symbol: "BTC-USD", Direction: "long", SizePct: 0.05, Leverage: 1.0}
	res := pf.Check(context.Background(), intent, "live", SubmitParams{
		EquityUSD:   100_000,
		GasBalances: map[GasKey]float64{{Venue: "hyperliquid", Asset: "ETH"}: 0.01},
	})

	require.False(t, res.Approved)
	require.Contains(t, res.Reasons, "insufficient_gas")
}

func TestPreflight_PaperModeNeverChecksGas(t *testing.T) {
	store := openTestStore(t)
	ks := openTestKillSwitch(t, store)
	risk := config.Risk{MaxLeverage: 2.0, MaxPositionPct: 0.10}
	pf := NewPreflight(risk, ks, []GasRequirement{{Venue: "hyperliquid", Asset: "ETH", MinAmount: 0.05}})

	intent := TradeIntent{Symbol: "BTC-USD", Direction: "long", SizePct: 0.05, Leverage: 1.0}
	res := pf.Check(context.Background(), intent, "paper", SubmitParams{EquityUSD: 100_000})

	require.True(t, res.Approved)
}
