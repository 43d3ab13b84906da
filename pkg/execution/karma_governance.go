// Copyright 2025 Certen Protocol

package execution

import (
	"context"
	"fmt"

	"github.com/certen/sovereign-engine/pkg/event"
	"github.com/certen/sovereign-engine/pkg/journal"
)

// GovernanceCheckResult is the verdict of a pre-settlement governance
// check.
type GovernanceCheckResult struct {
	Allowed bool
	Reason  string
}

// KarmaGovernance enforces the settlement governance rule: after the
// first settlement, the destination wallet is locked and can only
// change via an explicit karma.wallet_migration.v1 event.
type KarmaGovernance struct {
	journal *journal.Store
}

// NewKarmaGovernance constructs a KarmaGovernance over the journal.
func NewKarmaGovernance(store *journal.Store) *KarmaGovernance {
	return &KarmaGovernance{journal: store}
}

// HasPriorSettlement reports whether any karma.settlement.v1 event has
// ever been recorded.
func (g *KarmaGovernance) HasPriorSettlement(ctx context.Context) (bool, error) {
	envs, err := g.journal.QueryByType(ctx, event.TypeKarmaSettlement, 1)
	if err != nil {
		return false, fmt.Errorf("execution: query prior settlements: %w", err)
	}
	return len(envs) > 0, nil
}

// lockedWallet returns the destination_wallet recorded on the very first
// settlement, the wallet every later settlement is locked to.
func (g *KarmaGovernance) lockedWallet(ctx context.Context) (string, bool, error) {
	var wallet string
	found := false
	err := g.journal.IterateAscending(ctx, 0, func(env *event.Envelope) error {
		if found || env.Type != event.TypeKarmaSettlement {
			return nil
		}
		var p event.KarmaSettlementPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		wallet = p.DestinationWallet
		found = true
		return nil
	})
	return wallet, found, err
}

// hasWalletMigration reports whether an explicit migration event names
// exactly this (oldWallet, newWallet) pair.
func (g *KarmaGovernance) hasWalletMigration(ctx context.Context, oldWallet, newWallet string) (bool, error) {
	found := false
	err := g.journal.IterateAscending(ctx, 0, func(env *event.Envelope) error {
		if env.Type != event.TypeKarmaWalletMigration {
			return nil
		}
		var p event.KarmaWalletMigrationPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		if p.OldWallet == oldWallet && p.NewWallet == newWallet {
			found = true
		}
		return nil
	})
	return found, err
}

// CheckSettlementAllowed validates that treasuryAddress matches the
// locked wallet once a settlement has happened, unless an explicit
// migration event authorizes the change.
func (g *KarmaGovernance) CheckSettlementAllowed(ctx context.Context, treasuryAddress string) (GovernanceCheckResult, error) {
	hasPrior, err := g.HasPriorSettlement(ctx)
	if err != nil {
		return GovernanceCheckResult{}, err
	}
	if !hasPrior {
		return GovernanceCheckResult{Allowed: true}, nil
	}

	locked, found, err := g.lockedWallet(ctx)
	if err != nil {
		return GovernanceCheckResult{}, err
	}
	if !found || locked == "" || treasuryAddress == locked {
		return GovernanceCheckResult{Allowed: true}, nil
	}

	migrated, err := g.hasWalletMigration(ctx, locked, treasuryAddress)
	if err != nil {
		return GovernanceCheckResult{}, err
	}
	if !migrated {
		return GovernanceCheckResult{
			Allowed: false,
			Reason:  fmt.Sprintf("treasury address changed from %s to %s without a wallet migration event", locked, treasuryAddress),
		}, nil
	}
	return GovernanceCheckResult{Allowed: true}, nil
}

// RecordWalletMigration appends an explicit authorization to change the
// settlement destination wallet.
func (g *KarmaGovernance) RecordWalletMigration(ctx context.Context, oldWallet, newWallet, reason, authorizedBy string) error {
	_, err := g.journal.Append(ctx, event.DraftEvent{
		Type:      event.TypeKarmaWalletMigration,
		Source:    "execution.karma_governance",
		DedupeKey: fmt.Sprintf("karma.migration:%s->%s", oldWallet, newWallet),
		Payload: event.KarmaWalletMigrationPayload{
			OldWallet:    oldWallet,
			NewWallet:    newWallet,
			Reason:       reason,
			AuthorizedBy: authorizedBy,
		},
	})
	if err != nil {
		return fmt.Errorf("execution: record wallet migration: %w", err)
	}
	return nil
}
