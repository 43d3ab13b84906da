// Copyright 2025 Certen Protocol

package execution

import (
	"context"
	"encoding/base64"
	"log"

	"github.com/google/uuid"

	"github.com/certen/sovereign-engine/pkg/canon"
	"github.com/certen/sovereign-engine/pkg/config"
	"github.com/certen/sovereign-engine/pkg/event"
	"github.com/certen/sovereign-engine/pkg/identity"
	"github.com/certen/sovereign-engine/pkg/journal"
)

// KarmaIntentRecord is a signed record of what a profitable close would
// contribute, recorded locally and automatically.
type KarmaIntentRecord struct {
	ID             string
	TradeID        string
	RealizedPnLUSD float64
	Percentage     float64
	AmountUSD      float64
	NodeID         string
	SignatureB64   string
}

// KarmaReceipt is a signed record of a batch settlement.
type KarmaReceipt struct {
	ID                string
	IntentIDs         []string
	TotalUSD          float64
	DestinationWallet string
	TxHash            string
	Status            string
	SignatureB64      string
}

// KarmaEngine records signed funding intents on profitable closes and
// batches operator-triggered settlements. Realized profit only, never
// losses; intent recording and settlement are both fail-open — a karma
// failure must never break trade execution.
type KarmaEngine struct {
	cfg        config.Karma
	journal    *journal.Store
	identity   *identity.Identity
	governance *KarmaGovernance
}

// NewKarmaEngine constructs a KarmaEngine.
func NewKarmaEngine(cfg config.Karma, store *journal.Store, id *identity.Identity) *KarmaEngine {
	return &KarmaEngine{cfg: cfg, journal: store, identity: id, governance: NewKarmaGovernance(store)}
}

func signPayload(id *identity.Identity, payload any) (string, error) {
	data, err := canon.Marshal(payload)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(id.Sign(data)), nil
}

// RecordIntent records a signed karma intent for a profitable close.
// Per the non-blocking contract, any failure is logged and swallowed —
// this never returns an error and never blocks the caller.
func (k *KarmaEngine) RecordIntent(ctx context.Context, tradeID string, realizedPnLUSD float64) *KarmaIntentRecord {
	if !k.cfg.Enabled || k.cfg.Percentage <= 0 {
		return nil
	}
	if k.cfg.TreasuryAddress == "" {
		return nil
	}
	if realizedPnLUSD <= 0 {
		return nil
	}

	amount := realizedPnLUSD * k.cfg.Percentage
	intentID := uuid.New().String()
	nodeID := k.identity.ValidatorID()

	payload := event.KarmaIntentPayload{
		IntentID:       intentID,
		TradeID:        tradeID,
		RealizedPnLUSD: realizedPnLUSD,
		Percentage:     k.cfg.Percentage,
		AmountUSD:      amount,
		NodeID:         nodeID,
	}
	sig, err := signPayload(k.identity, payload)
	if err != nil {
		log.Printf("karma: sign intent %s: %v", intentID, err)
		return nil
	}
	payload.SignatureB64 = sig

	_, err = k.journal.Append(ctx, event.DraftEvent{
		Type:      event.TypeKarmaIntent,
		Source:    "execution.karma",
		DedupeKey: "karma.intent:" + intentID,
		Payload:   payload,
	})
	if err != nil {
		log.Printf("karma: append intent %s: %v", intentID, err)
		return nil
	}

	return &KarmaIntentRecord{
		ID:             intentID,
		TradeID:        tradeID,
		RealizedPnLUSD: realizedPnLUSD,
		Percentage:     k.cfg.Percentage,
		AmountUSD:      amount,
		NodeID:         nodeID,
		SignatureB64:   sig,
	}
}

// PendingIntents returns every recorded intent not yet referenced by a
// settlement, derived from a fresh journal replay.
func (k *KarmaEngine) PendingIntents(ctx context.Context) ([]event.KarmaIntentPayload, error) {
	intents := map[string]event.KarmaIntentPayload{}
	settled := map[string]bool{}
	err := k.journal.IterateAscending(ctx, 0, func(env *event.Envelope) error {
		switch env.Type {
		case event.TypeKarmaIntent:
			var p event.KarmaIntentPayload
			if err := env.DecodePayload(&p); err != nil {
				return err
			}
			intents[p.IntentID] = p
		case event.TypeKarmaSettlement:
			var p event.KarmaSettlementPayload
			if err := env.DecodePayload(&p); err != nil {
				return err
			}
			for _, id := range p.IntentIDs {
				settled[id] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]event.KarmaIntentPayload, 0, len(intents))
	for id, p := range intents {
		if !settled[id] {
			out = append(out, p)
		}
	}
	return out, nil
}

// Settle batch-settles intentIDs against the configured treasury
// address, subject to the wallet-migration governance gate. Like
// RecordIntent this is fail-open: any error is logged and nil returned
// rather than propagated.
func (k *KarmaEngine) Settle(ctx context.Context, intentIDs []string, txHash string) *KarmaReceipt {
	if len(intentIDs) == 0 || !k.cfg.Enabled {
		return nil
	}
	destination := k.cfg.TreasuryAddress
	if destination == "" {
		return nil
	}

	check, err := k.governance.CheckSettlementAllowed(ctx, destination)
	if err != nil {
		log.Printf("karma: governance check: %v", err)
		return nil
	}
	if !check.Allowed {
		log.Printf("karma: settlement blocked: %s", check.Reason)
		return nil
	}

	pending, err := k.PendingIntents(ctx)
	if err != nil {
		log.Printf("karma: load pending intents: %v", err)
		return nil
	}
	byID := make(map[string]event.KarmaIntentPayload, len(pending))
	for _, p := range pending {
		byID[p.IntentID] = p
	}

	var total float64
	var settledIDs []string
	for _, id := range intentIDs {
		p, ok := byID[id]
		if !ok {
			continue
		}
		total += p.AmountUSD
		settledIDs = append(settledIDs, id)
	}
	if len(settledIDs) == 0 {
		return nil
	}

	status := "pending"
	if txHash != "" {
		status = "submitted"
	}
	receiptID := uuid.New().String()

	settlementPayload := event.KarmaSettlementPayload{
		BatchID:           receiptID,
		IntentIDs:         settledIDs,
		TotalUSD:          total,
		DestinationWallet: destination,
		TxHash:            txHash,
		Status:            status,
	}
	sig, err := signPayload(k.identity, settlementPayload)
	if err != nil {
		log.Printf("karma: sign settlement %s: %v", receiptID, err)
		return nil
	}
	settlementPayload.SignatureB64 = sig

	if _, err := k.journal.Append(ctx, event.DraftEvent{
		Type:      event.TypeKarmaSettlement,
		Source:    "execution.karma",
		DedupeKey: "karma.settlement:" + receiptID,
		Payload:   settlementPayload,
	}); err != nil {
		log.Printf("karma: append settlement %s: %v", receiptID, err)
		return nil
	}

	receiptPayload := event.KarmaReceiptPayload{
		ReceiptID:         receiptID,
		BatchID:           receiptID,
		IntentIDs:         settledIDs,
		DestinationWallet: destination,
		TxHash:            txHash,
		TotalUSD:          total,
		Status:            status,
		SignatureB64:      sig,
	}
	if _, err := k.journal.Append(ctx, event.DraftEvent{
		Type:      event.TypeKarmaReceipt,
		Source:    "execution.karma",
		DedupeKey: "karma.receipt:" + receiptID,
		Payload:   receiptPayload,
	}); err != nil {
		log.Printf("karma: append receipt %s: %v", receiptID, err)
		return nil
	}

	return &KarmaReceipt{
		ID:                receiptID,
		IntentIDs:         settledIDs,
		TotalUSD:          total,
		DestinationWallet: destination,
		TxHash:            txHash,
		Status:            status,
		SignatureB64:      sig,
	}
}
