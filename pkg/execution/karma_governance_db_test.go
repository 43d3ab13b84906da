// Copyright 2025 Certen Protocol

package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certen/sovereign-engine/pkg/event"
	"github.com/certen/sovereign-engine/pkg/journal"
)

func TestKarmaGovernance_AllowsTheFirstSettlementToAnyWallet(t *testing.T) {
	store := openTestStore(t)
	gov := NewKarmaGovernance(store)

	res, err := gov.CheckSettlementAllowed(context.Background(), "0xWalletA")
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestKarmaGovernance_LocksToTheFirstSettledWallet(t *testing.T) {
	store := openTestStore(t)
	gov := NewKarmaGovernance(store)
	ctx := context.Background()

	appendSettlement(t, store, "0xWalletA")

	res, err := gov.CheckSettlementAllowed(ctx, "0xWalletA")
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = gov.CheckSettlementAllowed(ctx, "0xWalletB")
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Contains(t, res.Reason, "without a wallet migration event")
}

func TestKarmaGovernance_AllowsTheLockedWalletAfterAnExplicitMigration(t *testing.T) {
	store := openTestStore(t)
	gov := NewKarmaGovernance(store)
	ctx := context.Background()

	appendSettlement(t, store, "0xWalletA")
	require.NoError(t, gov.RecordWalletMigration(ctx, "0xWalletA", "0xWalletB", "operator-approved rotation", "operator"))

	res, err := gov.CheckSettlementAllowed(ctx, "0xWalletB")
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestKarmaGovernance_HasPriorSettlementReflectsJournalState(t *testing.T) {
	store := openTestStore(t)
	gov := NewKarmaGovernance(store)
	ctx := context.Background()

	has, err := gov.HasPriorSettlement(ctx)
	require.NoError(t, err)
	require.False(t, has)

	appendSettlement(t, store, "0xWalletA")

	has, err = gov.HasPriorSettlement(ctx)
	require.NoError(t, err)
	require.True(t, has)
}

func appendSettlement(t *testing.T, store *journal.Store, wallet string) {
	t.Helper()
	_, err := store.Append(context.Background(), event.DraftEvent{
		Type: event.TypeKarmaSettlement,
		Payload: event.KarmaSettlementPayload{
			BatchID: "batch-1", DestinationWallet: wallet, TotalUSD: 100, Status: "submitted",
		},
	})
	require.NoError(t, err)
}
