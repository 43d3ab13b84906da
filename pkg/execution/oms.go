// Copyright 2025 Certen Protocol

package execution

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/certen/sovereign-engine/pkg/event"
	"github.com/certen/sovereign-engine/pkg/journal"
)

// OMS is the order management system: it turns a trade intent into a
// journaled, filled paper position. Submit never half-commits — a
// rejection at any gate returns before any order/position event is
// appended, and once the paper broker has filled, every downstream
// event append uses the already-committed fill data.
type OMS struct {
	journal        *journal.Store
	preflight      *Preflight
	sizer          *CorrelationAwareSizer
	paper          *PaperBroker
	pnl            *PnLTracker
	mode           string
	maxPositionPct float64
}

// NewOMS constructs an OMS.
func NewOMS(store *journal.Store, preflight *Preflight, sizer *CorrelationAwareSizer, paper *PaperBroker, pnl *PnLTracker, mode string, maxPositionPct float64) *OMS {
	return &OMS{journal: store, preflight: preflight, sizer: sizer, paper: paper, pnl: pnl, mode: mode, maxPositionPct: maxPositionPct}
}

// Submit runs an intent through the full preflight → size → fill
// pipeline, journaling every step.
func (o *OMS) Submit(ctx context.Context, intent TradeIntent, params SubmitParams) (*OMSResult, error) {
	idem := params.IdempotencyKey
	if idem == "" {
		idem = uuid.New().String()
	}

	_, err := o.journal.Append(ctx, event.DraftEvent{
		Type:      event.TypeExecutionTradeIntent,
		Source:    "execution.oms",
		DedupeKey: fmt.Sprintf("%s:%s", event.TypeExecutionTradeIntent, idem),
		Payload: event.TradeIntentPayload{
			CycleID:      intent.CycleID,
			ConvictionID: intent.ConvictionID,
			Symbol:       intent.Symbol,
			Direction:    intent.Direction,
			SizePct:      intent.SizePct,
			Leverage:     intent.Leverage,
			Regime:       intent.Regime,
			PCS:          intent.ConvictionScore,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("execution: append trade_intent: %w", err)
	}

	pf := o.preflight.Check(ctx, intent, o.mode, params)
	if !pf.Approved {
		return &OMSResult{Status: "rejected", Mode: o.mode, Reasons: pf.Reasons}, nil
	}

	notional := o.sizer.SizeUSD(params.EquityUSD, intent.ConvictionScore/100.0, params.CorrToPortfolio, params.PortfolioHeatPct, o.maxPositionPct)
	if notional <= 0 {
		return &OMSResult{Status: "rejected", Mode: o.mode, Reasons: []string{"size_zero"}}, nil
	}

	if o.mode != "paper" {
		return &OMSResult{Status: "error", Mode: o.mode, Reasons: []string{"unknown_mode:" + o.mode}}, nil
	}

	fill, err := o.paper.ExecuteMarket(ctx, intent.Symbol, intent.Direction, notional, intent.Leverage, params.MidPrice, idem)
	if err != nil {
		return nil, fmt.Errorf("execution: paper fill: %w", err)
	}

	if _, err := o.journal.Append(ctx, event.DraftEvent{
		Type:   event.TypeExecutionOrderSubmitted,
		Source: "execution.oms",
		Payload: event.OrderSubmittedPayload{
			OrderID:        fill.OrderID,
			PositionID:     fill.PositionID,
			Symbol:         fill.Symbol,
			Side:           fill.Side,
			Type:           "market",
			Size:           fill.FillSize,
			IdempotencyKey: idem,
		},
	}); err != nil {
		return nil, fmt.Errorf("execution: append order_submitted: %w", err)
	}

	if _, err := o.journal.Append(ctx, event.DraftEvent{
		Type:   event.TypeExecutionOrderFilled,
		Source: "execution.oms",
		Payload: event.OrderFilledPayload{
			OrderID:    fill.OrderID,
			PositionID: fill.PositionID,
			FillPrice:  fill.FillPrice,
			FillSize:   fill.FillSize,
			FeeUSD:     fill.FeeUSD,
		},
	}); err != nil {
		return nil, fmt.Errorf("execution: append order_filled: %w", err)
	}

	if _, err := o.journal.Append(ctx, event.DraftEvent{
		Type:   event.TypeExecutionPositionOpened,
		Source: "execution.oms",
		Payload: event.PositionOpenedPayload{
			PositionID:    fill.PositionID,
			Platform:      "paper",
			Asset:         fill.Symbol,
			Direction:     intent.Direction,
			EntryPrice:    fill.FillPrice,
			SizeNotional:  fill.NotionalUSD,
			Leverage:      intent.Leverage,
			ConvictionID:  intent.ConvictionID,
			RegimeAtEntry: intent.Regime,
			PCSAtEntry:    intent.ConvictionScore,
		},
	}); err != nil {
		return nil, fmt.Errorf("execution: append position_opened: %w", err)
	}
	o.pnl.Track(fill.PositionID, fill.Symbol, intent.Direction, fill.FillPrice, fill.NotionalUSD)

	return &OMSResult{
		Status:      "filled",
		Mode:        o.mode,
		OrderID:     fill.OrderID,
		PositionID:  fill.PositionID,
		NotionalUSD: notional,
	}, nil
}
